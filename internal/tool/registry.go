package tool

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"

	"github.com/google/jsonschema-go/jsonschema"

	apperrors "github.com/m2tx/agent_chat/internal/errors"
	"github.com/m2tx/agent_chat/internal/model"
)

// ErrToolNotFound is returned by Resolve for unknown names.
var ErrToolNotFound = fmt.Errorf("tool: %w", apperrors.ErrNotFound)

// Executor runs a tool with validated arguments. Executors that do I/O must
// honour ctx.
type Executor func(ctx context.Context, args Args) (map[string]any, error)

// Declaration describes a callable tool. Parameters must be an object
// schema; nil means the tool takes no arguments.
type Declaration struct {
	Name        string
	Description string
	Parameters  *jsonschema.Schema
	Execute     Executor
}

type entry struct {
	decl   Declaration
	schema *jsonschema.Resolved
}

// Registry holds the tools offered to the model. It is filled once at
// startup and read concurrently afterwards.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]entry
	order []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]entry)}
}

// Register adds a declaration. Names must be unique.
func (r *Registry) Register(decl Declaration) error {
	if decl.Name == "" {
		return fmt.Errorf("tool name cannot be empty")
	}
	if decl.Execute == nil {
		return fmt.Errorf("tool %s: executor cannot be nil", decl.Name)
	}
	if decl.Parameters == nil {
		decl.Parameters = &jsonschema.Schema{Type: typeObject, Properties: map[string]*jsonschema.Schema{}}
	}
	if decl.Parameters.Type != typeObject {
		return fmt.Errorf("tool %s: parameters must be an object schema", decl.Name)
	}
	resolved, err := decl.Parameters.Resolve(nil)
	if err != nil {
		return fmt.Errorf("tool %s: %w", decl.Name, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[decl.Name]; exists {
		return fmt.Errorf("tool %s already registered", decl.Name)
	}
	r.tools[decl.Name] = entry{decl: decl, schema: resolved}
	r.order = append(r.order, decl.Name)
	return nil
}

// Resolve looks a declaration up by name.
func (r *Registry) Resolve(name string) (Declaration, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.tools[name]
	if !ok {
		return Declaration{}, fmt.Errorf("%s: %w", name, ErrToolNotFound)
	}
	return e.decl, nil
}

// Declarations returns the registered tools in registration order.
func (r *Registry) Declarations() []Declaration {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Declaration, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name].decl)
	}
	return out
}

type outcome struct {
	result map[string]any
	err    error
}

// Execute validates the invocation's arguments and runs the executor.
// It never returns an error: every failure, including ctx expiring while
// the executor is still running, is reported in the ToolResult. An executor
// that ignores ctx keeps running in the background and its result is
// dropped.
func (r *Registry) Execute(ctx context.Context, inv model.ToolInvocation) model.ToolResult {
	res := model.ToolResult{ID: inv.ID, Name: inv.Name}

	r.mu.RLock()
	e, ok := r.tools[inv.Name]
	r.mu.RUnlock()
	if !ok {
		res.Error = fmt.Sprintf("unknown tool %q", inv.Name)
		return res
	}
	decl := e.decl

	args, err := validateArgs(e.schema, inv.Args)
	if err != nil {
		res.Error = "invalid arguments: " + err.Error()
		return res
	}

	if err := ctx.Err(); err != nil {
		res.Error = contextFailure(err)
		return res
	}

	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				slog.Error("Tool panic recovered", "tool", inv.Name, "panic", p, "stack", string(debug.Stack()))
				done <- outcome{err: fmt.Errorf("tool panicked: %v", p)}
			}
		}()
		out, err := decl.Execute(ctx, args)
		done <- outcome{result: out, err: err}
	}()

	select {
	case o := <-done:
		if o.err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(o.err, ctxErr) {
				res.Error = contextFailure(ctxErr)
			} else {
				res.Error = o.err.Error()
			}
			return res
		}
		res.Result = o.result
		return res
	case <-ctx.Done():
		res.Error = contextFailure(ctx.Err())
		return res
	}
}

func contextFailure(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "tool timed out"
	}
	return "tool canceled"
}
