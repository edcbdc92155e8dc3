package agent

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	apperrors "github.com/m2tx/agent_chat/internal/errors"
	"github.com/m2tx/agent_chat/internal/model"
	"github.com/m2tx/agent_chat/internal/stream"
	"github.com/m2tx/agent_chat/internal/tool"
)

const (
	DefaultMaxPasses        = 5
	DefaultPassTimeout      = 60 * time.Second
	DefaultToolTimeout      = 15 * time.Second
	DefaultPersistTimeout   = 10 * time.Second
	DefaultMaxParallelTools = 4
)

// State is the orchestrator's position in a turn.
type State int

const (
	StateIdle State = iota
	StateGenerating
	StateAwaitingTools
	StateFinished
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateGenerating:
		return "generating"
	case StateAwaitingTools:
		return "awaiting_tools"
	case StateFinished:
		return "finished"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Persister stores a finished turn. Errors are reported, never retried.
type Persister interface {
	Persist(ctx context.Context, conversationID string, history []model.Message, ownerID string) error
}

// Config bounds a turn. Zero values fall back to the defaults.
type Config struct {
	SystemPrompt     string
	MaxPasses        int
	PassTimeout      time.Duration
	ToolTimeout      time.Duration
	PersistTimeout   time.Duration
	MaxParallelTools int
}

func (c Config) withDefaults() Config {
	if c.MaxPasses <= 0 {
		c.MaxPasses = DefaultMaxPasses
	}
	if c.PassTimeout <= 0 {
		c.PassTimeout = DefaultPassTimeout
	}
	if c.ToolTimeout <= 0 {
		c.ToolTimeout = DefaultToolTimeout
	}
	if c.PersistTimeout <= 0 {
		c.PersistTimeout = DefaultPersistTimeout
	}
	if c.MaxParallelTools <= 0 {
		c.MaxParallelTools = DefaultMaxParallelTools
	}
	return c
}

// Turn is one chat request: the normalized history and who sent it.
type Turn struct {
	ConversationID string
	OwnerID        string
	History        []model.Message
}

// Orchestrator drives a turn across generation passes, running the tools
// the model asks for in between. It holds no per-turn state and is safe
// for concurrent use.
type Orchestrator struct {
	generator Generator
	registry  *tool.Registry
	persister Persister
	observer  Observer
	cfg       Config
	now       func() time.Time
}

func New(generator Generator, registry *tool.Registry, persister Persister, cfg Config, observer Observer) *Orchestrator {
	if registry == nil {
		registry = tool.NewRegistry()
	}
	if observer == nil {
		observer = NopObserver{}
	}
	return &Orchestrator{
		generator: generator,
		registry:  registry,
		persister: persister,
		observer:  observer,
		cfg:       cfg.withDefaults(),
		now:       time.Now,
	}
}

type turnState struct {
	state   State
	passes  int
	history []model.Message
	ids     map[string]struct{}
}

// claimID returns id if it is usable for this turn, or a fresh one.
func (t *turnState) claimID(id string) string {
	if _, dup := t.ids[id]; id == "" || dup {
		id = uuid.NewString()
	}
	t.ids[id] = struct{}{}
	return id
}

// Run executes the turn, writing every chunk to out. out always ends with
// exactly one terminal chunk unless ctx is canceled, in which case it is
// aborted. The returned error is the reason the turn failed; persistence
// failures are not returned.
func (o *Orchestrator) Run(ctx context.Context, turn Turn, out *stream.Stream) error {
	ctx = o.observer.TurnStarted(ctx, turn)

	t := &turnState{
		state:   StateIdle,
		history: slices.Clone(turn.History),
		ids:     make(map[string]struct{}),
	}
	for _, m := range t.history {
		for _, inv := range m.ToolInvocations {
			t.ids[inv.ID] = struct{}{}
		}
	}

	for pass := 1; ; pass++ {
		t.passes = pass
		text, invocations, err := o.generate(ctx, pass, t, out)
		if err != nil {
			return o.fail(ctx, t, out, err)
		}

		if len(invocations) == 0 {
			if strings.TrimSpace(text) != "" {
				t.history = append(t.history, model.Message{Role: model.RoleAssistant, Content: text})
			}
			return o.finish(ctx, turn, t, out)
		}

		if pass >= o.cfg.MaxPasses {
			return o.fail(ctx, t, out, fmt.Errorf("model still requesting tools after %d passes: %w", pass, apperrors.ErrToolLoop))
		}

		t.state = StateAwaitingTools
		results := o.executeTools(ctx, invocations)
		if err := ctx.Err(); err != nil {
			return o.fail(ctx, t, out, apperrors.FromContext(err, "awaiting tools"))
		}

		for _, res := range results {
			if err := out.Emit(ctx, model.ToolResultChunk(res)); err != nil {
				return o.fail(ctx, t, out, apperrors.Wrap(err, "emit tool result"))
			}
		}

		if strings.TrimSpace(text) != "" {
			t.history = append(t.history, model.Message{Role: model.RoleAssistant, Content: text})
		}
		t.history = append(t.history, model.Message{
			Role:            model.RoleTool,
			ToolInvocations: invocations,
			ToolResults:     results,
		})
	}
}

// generate runs one pass, forwarding deltas as they arrive.
func (o *Orchestrator) generate(ctx context.Context, pass int, t *turnState, out *stream.Stream) (string, []model.ToolInvocation, error) {
	t.state = StateGenerating

	passCtx, cancel := context.WithTimeout(o.observer.PassStarted(ctx, pass), o.cfg.PassTimeout)
	defer cancel()

	req := PassRequest{
		SystemInstruction: systemInstruction(o.cfg.SystemPrompt, o.now()),
		Messages:          t.history,
		Tools:             o.registry.Declarations(),
	}

	var (
		text        strings.Builder
		invocations []model.ToolInvocation
	)
	err := func() error {
		for ev, err := range o.generator.Generate(passCtx, req) {
			if err != nil {
				return err
			}

			switch {
			case ev.Invocation != nil:
				inv := *ev.Invocation
				inv.ID = t.claimID(inv.ID)
				invocations = append(invocations, inv)
				if err := out.Emit(ctx, model.ToolCallChunk(inv)); err != nil {
					return err
				}
			case ev.TextDelta != "":
				text.WriteString(ev.TextDelta)
				if err := out.Emit(ctx, model.TextChunk(ev.TextDelta)); err != nil {
					return err
				}
			}
		}
		return passCtx.Err()
	}()

	err = passError(ctx, pass, err)
	o.observer.PassFinished(passCtx, pass, len(invocations), err)
	return text.String(), invocations, err
}

func passError(ctx context.Context, pass int, err error) error {
	switch {
	case err == nil:
		return nil
	case ctx.Err() != nil:
		return apperrors.FromContext(ctx.Err(), fmt.Sprintf("generation pass %d", pass))
	case errors.Is(err, context.DeadlineExceeded):
		return apperrors.Timeout(fmt.Sprintf("generation pass %d", pass))
	default:
		return apperrors.Wrap(err, fmt.Sprintf("generation pass %d", pass))
	}
}

// executeTools runs the invocations of one pass concurrently and returns
// their results in invocation order.
func (o *Orchestrator) executeTools(ctx context.Context, invocations []model.ToolInvocation) []model.ToolResult {
	results := make([]model.ToolResult, len(invocations))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.cfg.MaxParallelTools)

	for i, inv := range invocations {
		g.Go(func() error {
			toolCtx, cancel := context.WithTimeout(gctx, o.cfg.ToolTimeout)
			defer cancel()

			start := o.now()
			res := o.registry.Execute(toolCtx, inv)
			res.ID, res.Name = inv.ID, inv.Name
			results[i] = res

			o.observer.ToolFinished(ctx, inv, res, o.now().Sub(start))
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func (o *Orchestrator) finish(ctx context.Context, turn Turn, t *turnState, out *stream.Stream) error {
	if err := out.Finish(ctx, stream.FinishReasonStop); err != nil {
		return o.fail(ctx, t, out, apperrors.Wrap(err, "deliver finish"))
	}
	t.state = StateFinished

	o.persist(ctx, turn, t.history)
	o.observer.TurnFinished(ctx, t.state, t.passes, nil)
	return nil
}

// persist runs once per finished turn on a context that outlives the
// caller. The error is reported and dropped.
func (o *Orchestrator) persist(ctx context.Context, turn Turn, history []model.Message) {
	if o.persister == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.cfg.PersistTimeout)
	defer cancel()

	if err := o.persister.Persist(ctx, turn.ConversationID, history, turn.OwnerID); err != nil {
		o.observer.PersistFailed(ctx, turn.ConversationID, err)
	}
}

func (o *Orchestrator) fail(ctx context.Context, t *turnState, out *stream.Stream, err error) error {
	t.state = StateFailed

	if ctx.Err() != nil {
		out.Abort()
	} else if ferr := out.Fail(ctx, errors.New(publicMessage(err))); ferr != nil {
		out.Abort()
	}

	o.observer.TurnFinished(ctx, t.state, t.passes, err)
	return err
}

// publicMessage is what the caller sees in the error chunk.
func publicMessage(err error) string {
	switch {
	case errors.Is(err, apperrors.ErrToolLoop):
		return "Too many tool calls in one turn."
	case errors.Is(err, apperrors.ErrTimeout):
		return "The model took too long to respond."
	default:
		return "An error occurred."
	}
}
