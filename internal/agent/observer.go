package agent

import (
	"context"
	"log/slog"
	"time"

	apperrors "github.com/m2tx/agent_chat/internal/errors"
	"github.com/m2tx/agent_chat/internal/logger"
	"github.com/m2tx/agent_chat/internal/model"
)

// Observer receives the lifecycle of a turn. TurnStarted and PassStarted
// may return a derived context that is passed to the matching later calls.
type Observer interface {
	TurnStarted(ctx context.Context, turn Turn) context.Context
	PassStarted(ctx context.Context, pass int) context.Context
	PassFinished(ctx context.Context, pass int, invocations int, err error)
	ToolFinished(ctx context.Context, inv model.ToolInvocation, res model.ToolResult, elapsed time.Duration)
	TurnFinished(ctx context.Context, state State, passes int, err error)
	PersistFailed(ctx context.Context, conversationID string, err error)
}

// NopObserver ignores everything.
type NopObserver struct{}

func (NopObserver) TurnStarted(ctx context.Context, _ Turn) context.Context {
	return ctx
}

func (NopObserver) PassStarted(ctx context.Context, _ int) context.Context {
	return ctx
}

func (NopObserver) PassFinished(context.Context, int, int, error) {}

func (NopObserver) ToolFinished(context.Context, model.ToolInvocation, model.ToolResult, time.Duration) {}

func (NopObserver) TurnFinished(context.Context, State, int, error) {}

func (NopObserver) PersistFailed(context.Context, string, error) {}

// LogObserver writes the turn lifecycle to a slog logger.
type LogObserver struct {
	logger *slog.Logger
}

func NewLogObserver(l *slog.Logger) *LogObserver {
	if l == nil {
		l = slog.Default()
	}
	return &LogObserver{logger: l.With("component", "orchestrator")}
}

func (o *LogObserver) TurnStarted(ctx context.Context, turn Turn) context.Context {
	ctx = logger.WithConversationID(ctx, turn.ConversationID)
	logger.FromContext(ctx, o.logger).Info("Turn started", "messages", len(turn.History))
	return ctx
}

func (o *LogObserver) PassStarted(ctx context.Context, pass int) context.Context {
	logger.FromContext(ctx, o.logger).Debug("Generation pass started", "pass", pass)
	return ctx
}

func (o *LogObserver) PassFinished(ctx context.Context, pass int, invocations int, err error) {
	l := logger.FromContext(ctx, o.logger)
	if err != nil {
		l.Warn("Generation pass failed", "pass", pass, "category", apperrors.Category(err), "error", err)
		return
	}
	l.Debug("Generation pass finished", "pass", pass, "tool_calls", invocations)
}

func (o *LogObserver) ToolFinished(ctx context.Context, inv model.ToolInvocation, res model.ToolResult, elapsed time.Duration) {
	l := logger.FromContext(ctx, o.logger).With("tool", inv.Name, "tool_call_id", inv.ID, "elapsed", elapsed)
	if res.IsError() {
		l.Warn("Tool failed", "error", res.Error)
		return
	}
	l.Info("Tool finished")
}

func (o *LogObserver) TurnFinished(ctx context.Context, state State, passes int, err error) {
	l := logger.FromContext(ctx, o.logger)
	if err != nil {
		l.Error("Turn failed", "state", state, "passes", passes, "category", apperrors.Category(err), "error", err)
		return
	}
	l.Info("Turn finished", "state", state, "passes", passes)
}

func (o *LogObserver) PersistFailed(ctx context.Context, conversationID string, err error) {
	logger.FromContext(ctx, o.logger).Error("Failed to save chat history",
		"conversation_id", conversationID,
		"category", apperrors.Category(err),
		"error", err,
	)
}
