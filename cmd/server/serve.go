package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"google.golang.org/genai"

	"github.com/m2tx/agent_chat/internal/agent"
	"github.com/m2tx/agent_chat/internal/auth"
	"github.com/m2tx/agent_chat/internal/config"
	"github.com/m2tx/agent_chat/internal/conversation"
	"github.com/m2tx/agent_chat/internal/functions"
	"github.com/m2tx/agent_chat/internal/knowledge"
	"github.com/m2tx/agent_chat/internal/server"
	"github.com/m2tx/agent_chat/internal/telemetry"
	"github.com/m2tx/agent_chat/internal/tool"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the chat HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg == nil {
			return fmt.Errorf("config not loaded")
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return serve(ctx, cfg, slog.Default())
	},
}

func addServeFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.String("addr", config.DefaultServerAddr, "listen address")
	flags.String("model", config.DefaultModelName, "Gemini model name")
	flags.String("store", config.DefaultStoreDriver, "conversation store (memory, mongo, redis, sqlite)")
	flags.String("sqlite-path", config.DefaultSQLitePath, "sqlite database file")
	flags.String("mongo-uri", config.DefaultMongoURI, "MongoDB connection URI")
	flags.String("redis-addr", config.DefaultRedisAddr, "Redis address")
	flags.Int("max-passes", config.DefaultOrchestratorMaxPasses, "maximum generation passes per turn")
	flags.String("docs-dir", config.DefaultKnowledgeDocsDir, "directory indexed by getGeneralKnowledge")
	flags.Bool("telemetry", false, "export OpenTelemetry traces")
	flags.String("service-name", config.DefaultTelemetryServiceName, "service name reported in traces")
}

func init() {
	addServeFlags(serveCmd)
}

func serve(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	readTimeout, err := config.DurationOrDefault(cfg.Server.ReadTimeout, config.DefaultServerReadTimeout)
	if err != nil {
		return err
	}
	idleTimeout, err := config.DurationOrDefault(cfg.Server.IdleTimeout, config.DefaultServerIdleTimeout)
	if err != nil {
		return err
	}
	shutdownTimeout, err := config.DurationOrDefault(cfg.Server.ShutdownTimeout, config.DefaultServerShutdownTimeout)
	if err != nil {
		return err
	}

	authenticator, err := newAuthenticator(cfg.Auth)
	if err != nil {
		return err
	}

	repo, closeStore, err := openStore(ctx, cfg.Store, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeStore(context.Background()); err != nil {
			log.Warn("Closing store failed", "error", err)
		}
	}()

	registry, err := newToolRegistry(cfg.Tools, log)
	if err != nil {
		return err
	}

	client, err := newGenAIClient(ctx, cfg.Model)
	if err != nil {
		return err
	}

	tracer, shutdownTelemetry, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName: cfg.Telemetry.ServiceName,
		Environment: cfg.Telemetry.Environment,
		Disable:     !cfg.Telemetry.Enabled,
		Logger:      log,
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdownTelemetry(context.Background()); err != nil {
			log.Warn("Telemetry shutdown failed", "error", err)
		}
	}()

	var observer agent.Observer = agent.NewLogObserver(log)
	if cfg.Telemetry.Enabled {
		observer = agent.NewTraceObserver(tracer, observer)
	}

	orchCfg, err := orchestratorConfig(cfg.Orchestrator)
	if err != nil {
		return err
	}

	orchestrator := agent.New(
		agent.NewGeminiGenerator(client, cfg.Model.Name),
		registry,
		conversation.NewGate(repo, orchCfg.PersistTimeout, log),
		orchCfg,
		observer,
	)

	srv := server.New(server.Config{
		Addr:        cfg.Server.Addr,
		ReadTimeout: readTimeout,
		IdleTimeout: idleTimeout,
	}, orchestrator, conversation.NewAccessController(repo), authenticator, log)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return nil
}

func newAuthenticator(cfg config.AuthConfig) (*auth.JWTAuthenticator, error) {
	if cfg.Secret == "" {
		return nil, fmt.Errorf("auth.secret is required (set CHAT_AUTH_SECRET or --auth-secret)")
	}
	return auth.NewJWTAuthenticator([]byte(cfg.Secret), cfg.CookieName, cfg.Issuer)
}

func newGenAIClient(ctx context.Context, cfg config.ModelConfig) (*genai.Client, error) {
	cc := &genai.ClientConfig{Backend: genai.BackendGeminiAPI, APIKey: cfg.APIKey}
	if cfg.Backend == "vertex" {
		cc = &genai.ClientConfig{
			Backend:  genai.BackendVertexAI,
			Project:  cfg.Project,
			Location: cfg.Location,
		}
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return client, nil
}

func newToolRegistry(cfg config.ToolsConfig, log *slog.Logger) (*tool.Registry, error) {
	weatherTimeout, err := config.DurationOrDefault(cfg.Weather.Timeout, config.DefaultWeatherTimeout)
	if err != nil {
		return nil, err
	}

	idx := knowledge.NewIndex(log)
	if err := idx.Load(cfg.Knowledge.DocsDir); err != nil {
		log.Warn("Knowledge index unavailable", "dir", cfg.Knowledge.DocsDir, "error", err)
	}

	registry := tool.NewRegistry()
	decls := []tool.Declaration{
		functions.CreateKnowledgeDeclaration(idx, cfg.Knowledge.TopK),
		functions.CreateWeatherDeclaration(functions.WeatherOptions{
			GeocodingURL: cfg.Weather.GeocodingURL,
			ForecastURL:  cfg.Weather.ForecastURL,
			Timeout:      weatherTimeout,
		}),
	}
	for _, d := range decls {
		if err := registry.Register(d); err != nil {
			return nil, err
		}
	}
	return registry, nil
}

func orchestratorConfig(cfg config.OrchestratorConfig) (agent.Config, error) {
	passTimeout, err := config.DurationOrDefault(cfg.PassTimeout, config.DefaultOrchestratorPassTimeout)
	if err != nil {
		return agent.Config{}, err
	}
	toolTimeout, err := config.DurationOrDefault(cfg.ToolTimeout, config.DefaultOrchestratorToolTimeout)
	if err != nil {
		return agent.Config{}, err
	}
	persistTimeout, err := config.DurationOrDefault(cfg.PersistTimeout, config.DefaultOrchestratorPersistTimeout)
	if err != nil {
		return agent.Config{}, err
	}

	prompt := cfg.SystemPrompt
	if prompt == "" {
		prompt = agent.DefaultSystemPrompt
	}

	return agent.Config{
		SystemPrompt:     prompt,
		MaxPasses:        cfg.MaxPasses,
		PassTimeout:      passTimeout,
		ToolTimeout:      toolTimeout,
		PersistTimeout:   persistTimeout,
		MaxParallelTools: cfg.MaxParallelTools,
	}, nil
}
