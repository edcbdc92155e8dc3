// Package server exposes the chat endpoints over HTTP.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/m2tx/agent_chat/internal/agent"
	"github.com/m2tx/agent_chat/internal/auth"
	"github.com/m2tx/agent_chat/internal/stream"
)

const (
	DefaultReadTimeout  = 30 * time.Second
	DefaultIdleTimeout  = 120 * time.Second
	DefaultStreamBuffer = 16
	maxBodyBytes        = 4 << 20
)

// TurnRunner runs one chat turn, writing chunks to out.
type TurnRunner interface {
	Run(ctx context.Context, turn agent.Turn, out *stream.Stream) error
}

// ConversationDeleter removes a conversation on behalf of a requester.
type ConversationDeleter interface {
	Delete(ctx context.Context, conversationID, requesterID string) error
}

type Config struct {
	Addr         string
	ReadTimeout  time.Duration
	IdleTimeout  time.Duration
	StreamBuffer int
}

type Server struct {
	cfg        Config
	turns      TurnRunner
	deleter    ConversationDeleter
	auth       auth.Authenticator
	logger     *slog.Logger
	httpServer *http.Server
}

func New(cfg Config, turns TurnRunner, deleter ConversationDeleter, authenticator auth.Authenticator, logger *slog.Logger) *Server {
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = DefaultReadTimeout
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.StreamBuffer <= 0 {
		cfg.StreamBuffer = DefaultStreamBuffer
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		cfg:     cfg,
		turns:   turns,
		deleter: deleter,
		auth:    authenticator,
		logger:  logger.With("component", "http"),
	}

	// No write timeout: chat responses stream for as long as the turn runs.
	s.httpServer = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.Handler(),
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       cfg.IdleTimeout,
	}
	return s
}

// Handler returns the routed handler with middleware applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/chat", s.handleChat)
	mux.HandleFunc("DELETE /api/chat", s.handleDelete)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	return s.requestID(mux)
}

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("HTTP server listening", "addr", s.cfg.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("HTTP server shutting down")
	return s.httpServer.Shutdown(ctx)
}
