package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

type Config struct {
	Server       ServerConfig       `koanf:"server"`
	Model        ModelConfig        `koanf:"model"`
	Orchestrator OrchestratorConfig `koanf:"orchestrator"`
	Auth         AuthConfig         `koanf:"auth"`
	Store        StoreConfig        `koanf:"store"`
	Tools        ToolsConfig        `koanf:"tools"`
	Telemetry    TelemetryConfig    `koanf:"telemetry"`
}

type ServerConfig struct {
	Addr            string `koanf:"addr"`
	LogLevel        string `koanf:"log_level"`
	ReadTimeout     string `koanf:"read_timeout"`
	IdleTimeout     string `koanf:"idle_timeout"`
	ShutdownTimeout string `koanf:"shutdown_timeout"`
}

type ModelConfig struct {
	Name     string `koanf:"name"`
	APIKey   string `koanf:"api_key"`
	Backend  string `koanf:"backend"`
	Project  string `koanf:"project"`
	Location string `koanf:"location"`
}

type OrchestratorConfig struct {
	SystemPrompt     string `koanf:"system_prompt"`
	MaxPasses        int    `koanf:"max_passes"`
	MaxParallelTools int    `koanf:"max_parallel_tools"`
	PassTimeout      string `koanf:"pass_timeout"`
	ToolTimeout      string `koanf:"tool_timeout"`
	PersistTimeout   string `koanf:"persist_timeout"`
}

type AuthConfig struct {
	Secret     string `koanf:"secret"`
	CookieName string `koanf:"cookie_name"`
	Issuer     string `koanf:"issuer"`
	TokenTTL   string `koanf:"token_ttl"`
}

type StoreConfig struct {
	Driver string       `koanf:"driver"`
	Mongo  MongoConfig  `koanf:"mongo"`
	Redis  RedisConfig  `koanf:"redis"`
	SQLite SQLiteConfig `koanf:"sqlite"`
}

type MongoConfig struct {
	URI        string `koanf:"uri"`
	Database   string `koanf:"database"`
	Collection string `koanf:"collection"`
}

type RedisConfig struct {
	Addr     string `koanf:"addr"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`
	Prefix   string `koanf:"prefix"`
	TTL      string `koanf:"ttl"`
}

type SQLiteConfig struct {
	Path string `koanf:"path"`
}

type ToolsConfig struct {
	Weather   WeatherToolConfig   `koanf:"weather"`
	Knowledge KnowledgeToolConfig `koanf:"knowledge"`
}

type WeatherToolConfig struct {
	GeocodingURL string `koanf:"geocoding_url"`
	ForecastURL  string `koanf:"forecast_url"`
	Timeout      string `koanf:"timeout"`
}

type KnowledgeToolConfig struct {
	DocsDir string `koanf:"docs_dir"`
	TopK    int    `koanf:"top_k"`
}

type TelemetryConfig struct {
	Enabled     bool   `koanf:"enabled"`
	ServiceName string `koanf:"service_name"`
	Environment string `koanf:"environment"`
}

const (
	StoreDriverMemory = "memory"
	StoreDriverMongo  = "mongo"
	StoreDriverRedis  = "redis"
	StoreDriverSQLite = "sqlite"
)

const (
	DefaultServerAddr            = ":8080"
	DefaultServerLogLevel        = "info"
	DefaultServerReadTimeout     = "30s"
	DefaultServerIdleTimeout     = "120s"
	DefaultServerShutdownTimeout = "15s"

	DefaultModelName    = "gemini-2.5-flash"
	DefaultModelBackend = "gemini"

	DefaultOrchestratorMaxPasses        = 5
	DefaultOrchestratorMaxParallelTools = 4
	DefaultOrchestratorPassTimeout      = "60s"
	DefaultOrchestratorToolTimeout      = "15s"
	DefaultOrchestratorPersistTimeout   = "10s"

	DefaultAuthCookieName = "session"
	DefaultAuthIssuer     = "agent-chat"
	DefaultAuthTokenTTL   = "24h"

	DefaultStoreDriver          = StoreDriverMemory
	DefaultMongoURI             = "mongodb://localhost:27017"
	DefaultMongoDatabase        = "agent_chat"
	DefaultMongoCollection      = "conversations"
	DefaultRedisAddr            = "localhost:6379"
	DefaultRedisPrefix          = "chat:conversation:"
	DefaultRedisTTL             = "720h"
	DefaultSQLitePath           = "data/chat.db"
	DefaultWeatherGeocodingURL  = "https://geocoding-api.open-meteo.com/v1/search"
	DefaultWeatherForecastURL   = "https://api.open-meteo.com/v1/forecast"
	DefaultWeatherTimeout       = "10s"
	DefaultKnowledgeDocsDir     = "docs"
	DefaultKnowledgeTopK        = 3
	DefaultTelemetryServiceName = "agent-chat"
)

// flagKeys maps CLI flag names to config keys.
var flagKeys = map[string]string{
	"addr":         "server.addr",
	"log-level":    "server.log_level",
	"model":        "model.name",
	"store":        "store.driver",
	"max-passes":   "orchestrator.max_passes",
	"docs-dir":     "tools.knowledge.docs_dir",
	"telemetry":    "telemetry.enabled",
	"sqlite-path":  "store.sqlite.path",
	"mongo-uri":    "store.mongo.uri",
	"redis-addr":   "store.redis.addr",
	"auth-secret":  "auth.secret",
	"token-ttl":    "auth.token_ttl",
	"service-name": "telemetry.service_name",
}

// Load layers defaults, the --config YAML file, CHAT_* environment
// variables and changed command flags, in that order.
func Load(cmd *cobra.Command) (*Config, error) {
	k := koanf.New(".")

	defaults := map[string]interface{}{
		"server.addr":                     DefaultServerAddr,
		"server.log_level":                DefaultServerLogLevel,
		"server.read_timeout":             DefaultServerReadTimeout,
		"server.idle_timeout":             DefaultServerIdleTimeout,
		"server.shutdown_timeout":         DefaultServerShutdownTimeout,
		"model.name":                      DefaultModelName,
		"model.backend":                   DefaultModelBackend,
		"orchestrator.max_passes":         DefaultOrchestratorMaxPasses,
		"orchestrator.max_parallel_tools": DefaultOrchestratorMaxParallelTools,
		"orchestrator.pass_timeout":       DefaultOrchestratorPassTimeout,
		"orchestrator.tool_timeout":       DefaultOrchestratorToolTimeout,
		"orchestrator.persist_timeout":    DefaultOrchestratorPersistTimeout,
		"auth.cookie_name":                DefaultAuthCookieName,
		"auth.issuer":                     DefaultAuthIssuer,
		"auth.token_ttl":                  DefaultAuthTokenTTL,
		"store.driver":                    DefaultStoreDriver,
		"store.mongo.uri":                 DefaultMongoURI,
		"store.mongo.database":            DefaultMongoDatabase,
		"store.mongo.collection":          DefaultMongoCollection,
		"store.redis.addr":                DefaultRedisAddr,
		"store.redis.prefix":              DefaultRedisPrefix,
		"store.redis.ttl":                 DefaultRedisTTL,
		"store.sqlite.path":               DefaultSQLitePath,
		"tools.weather.geocoding_url":     DefaultWeatherGeocodingURL,
		"tools.weather.forecast_url":      DefaultWeatherForecastURL,
		"tools.weather.timeout":           DefaultWeatherTimeout,
		"tools.knowledge.docs_dir":        DefaultKnowledgeDocsDir,
		"tools.knowledge.top_k":           DefaultKnowledgeTopK,
		"telemetry.service_name":          DefaultTelemetryServiceName,
	}
	for key, value := range defaults {
		if err := k.Set(key, value); err != nil {
			return nil, fmt.Errorf("set default %s: %w", key, err)
		}
	}

	configPath := ""
	if cmd != nil {
		if flag := cmd.Flags().Lookup("config"); flag != nil {
			configPath = strings.TrimSpace(flag.Value.String())
		}
	}
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", configPath, err)
		}
	}

	// CHAT_STORE_DRIVER -> store.driver. Keys containing underscores are
	// only reachable through the file or flags.
	if err := k.Load(env.Provider("CHAT_", ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, "CHAT_")), "_", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	if cmd != nil {
		if err := k.Load(posflag.ProviderWithFlag(cmd.Flags(), ".", k, func(f *pflag.Flag) (string, interface{}) {
			key, ok := flagKeys[f.Name]
			if !ok {
				return "", nil
			}
			return key, posflag.FlagVal(cmd.Flags(), f)
		}), nil); err != nil {
			return nil, fmt.Errorf("load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}

	if cfg.Model.APIKey == "" {
		cfg.Model.APIKey = firstEnv("GEMINI_API_KEY", "GOOGLE_API_KEY")
	}
	if uri := os.Getenv("MONGODB_URI"); uri != "" && cfg.Store.Mongo.URI == DefaultMongoURI {
		cfg.Store.Mongo.URI = uri
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values that cannot be defaulted.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case StoreDriverMemory, StoreDriverMongo, StoreDriverRedis, StoreDriverSQLite:
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}
	if c.Orchestrator.MaxPasses < 1 {
		return fmt.Errorf("orchestrator.max_passes must be at least 1")
	}
	if c.Orchestrator.MaxParallelTools < 1 {
		return fmt.Errorf("orchestrator.max_parallel_tools must be at least 1")
	}
	return nil
}

func firstEnv(names ...string) string {
	for _, name := range names {
		if v := os.Getenv(name); v != "" {
			return v
		}
	}
	return ""
}
