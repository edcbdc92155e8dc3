package agent

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/m2tx/agent_chat/internal/model"
)

type turnSpanKey struct{}

// TraceObserver records a span per turn and a child span per generation
// pass, then forwards every call to next.
type TraceObserver struct {
	tracer trace.Tracer
	next   Observer
}

func NewTraceObserver(tracer trace.Tracer, next Observer) *TraceObserver {
	if next == nil {
		next = NopObserver{}
	}
	return &TraceObserver{tracer: tracer, next: next}
}

func (o *TraceObserver) TurnStarted(ctx context.Context, turn Turn) context.Context {
	ctx, span := o.tracer.Start(ctx, "chat.turn", trace.WithAttributes(
		attribute.String("chat.conversation_id", turn.ConversationID),
		attribute.Int("chat.history_length", len(turn.History)),
	))
	ctx = context.WithValue(ctx, turnSpanKey{}, span)
	return o.next.TurnStarted(ctx, turn)
}

func (o *TraceObserver) PassStarted(ctx context.Context, pass int) context.Context {
	ctx, _ = o.tracer.Start(ctx, "chat.generation_pass", trace.WithAttributes(attribute.Int("chat.pass", pass)))
	return o.next.PassStarted(ctx, pass)
}

func (o *TraceObserver) PassFinished(ctx context.Context, pass int, invocations int, err error) {
	span := trace.SpanFromContext(ctx)
	span.SetAttributes(attribute.Int("chat.tool_calls", invocations))
	end(span, err)
	o.next.PassFinished(ctx, pass, invocations, err)
}

func (o *TraceObserver) ToolFinished(ctx context.Context, inv model.ToolInvocation, res model.ToolResult, elapsed time.Duration) {
	trace.SpanFromContext(ctx).AddEvent("tool.finished", trace.WithAttributes(
		attribute.String("tool.name", inv.Name),
		attribute.String("tool.call_id", inv.ID),
		attribute.Bool("tool.error", res.IsError()),
		attribute.Int64("tool.elapsed_ms", elapsed.Milliseconds()),
	))
	o.next.ToolFinished(ctx, inv, res, elapsed)
}

func (o *TraceObserver) TurnFinished(ctx context.Context, state State, passes int, err error) {
	if span, ok := ctx.Value(turnSpanKey{}).(trace.Span); ok {
		span.SetAttributes(
			attribute.String("chat.state", state.String()),
			attribute.Int("chat.passes", passes),
		)
		end(span, err)
	}
	o.next.TurnFinished(ctx, state, passes, err)
}

func (o *TraceObserver) PersistFailed(ctx context.Context, conversationID string, err error) {
	if span, ok := ctx.Value(turnSpanKey{}).(trace.Span); ok {
		span.AddEvent("persist.failed", trace.WithAttributes(attribute.String("error", err.Error())))
	}
	o.next.PersistFailed(ctx, conversationID, err)
}

func end(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
