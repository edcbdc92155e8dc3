package tool

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/m2tx/agent_chat/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cityArgs struct {
	City string `json:"city" jsonschema:"City"`
}

func echoTool(name string) Declaration {
	return Declaration{
		Name:        name,
		Description: "echo the city back",
		Parameters:  MustSchemaFor[cityArgs](),
		Execute: func(ctx context.Context, args Args) (map[string]any, error) {
			return map[string]any{"city": args.String("city")}, nil
		},
	}
}

func TestRegistry_Register(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(echoTool("b")))
	require.NoError(t, r.Register(echoTool("a")))

	assert.ErrorContains(t, r.Register(echoTool("a")), "already registered")
	assert.ErrorContains(t, r.Register(Declaration{Execute: echoTool("x").Execute}), "name cannot be empty")
	assert.ErrorContains(t, r.Register(Declaration{Name: "x"}), "executor cannot be nil")
	assert.ErrorContains(t, r.Register(Declaration{Name: "s", Parameters: &jsonschema.Schema{Type: "string"}, Execute: echoTool("s").Execute}), "object schema")
	assert.ErrorContains(t, r.Register(Declaration{Name: "r", Parameters: &jsonschema.Schema{Type: "object", Ref: "#/$defs/missing"}, Execute: echoTool("r").Execute}), "tool r")

	decls := r.Declarations()
	if assert.Len(t, decls, 2) {
		assert.Equal(t, "b", decls[0].Name)
		assert.Equal(t, "a", decls[1].Name)
	}
}

func TestRegistry_Resolve(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(echoTool("getWeather")))

	decl, err := r.Resolve("getWeather")
	require.NoError(t, err)
	assert.Equal(t, "getWeather", decl.Name)

	_, err = r.Resolve("nope")
	assert.ErrorIs(t, err, ErrToolNotFound)
}

func TestRegistry_ExecuteSuccess(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(echoTool("getWeather")))

	res := r.Execute(context.Background(), model.ToolInvocation{ID: "c1", Name: "getWeather", Args: json.RawMessage(`{"city":"Paris"}`)})
	assert.False(t, res.IsError())
	assert.Equal(t, "c1", res.ID)
	assert.Equal(t, "getWeather", res.Name)
	assert.Equal(t, map[string]any{"city": "Paris"}, res.Result)
}

func TestRegistry_ExecuteFailuresAreData(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(echoTool("getWeather")))
	require.NoError(t, r.Register(Declaration{
		Name: "broken",
		Execute: func(ctx context.Context, args Args) (map[string]any, error) {
			return nil, errors.New("backend down")
		},
	}))
	require.NoError(t, r.Register(Declaration{
		Name: "panicky",
		Execute: func(ctx context.Context, args Args) (map[string]any, error) {
			panic("kaboom")
		},
	}))

	ctx := context.Background()

	res := r.Execute(ctx, model.ToolInvocation{ID: "1", Name: "unknown"})
	assert.Equal(t, `unknown tool "unknown"`, res.Error)

	res = r.Execute(ctx, model.ToolInvocation{ID: "2", Name: "getWeather", Args: json.RawMessage(`{"city":7}`)})
	assert.Contains(t, res.Error, "invalid arguments")
	assert.Contains(t, res.Error, `want "string"`)

	res = r.Execute(ctx, model.ToolInvocation{ID: "2b", Name: "getWeather", Args: json.RawMessage(`{}`)})
	assert.Contains(t, res.Error, "invalid arguments")
	assert.Contains(t, res.Error, "city")

	res = r.Execute(ctx, model.ToolInvocation{ID: "2c", Name: "getWeather", Args: json.RawMessage(`"Paris"`)})
	assert.Contains(t, res.Error, "arguments must be a JSON object")

	res = r.Execute(ctx, model.ToolInvocation{ID: "3", Name: "broken"})
	assert.Equal(t, "backend down", res.Error)

	res = r.Execute(ctx, model.ToolInvocation{ID: "4", Name: "panicky"})
	assert.Contains(t, res.Error, "kaboom")
	assert.Equal(t, "4", res.ID)
}

func TestRegistry_ExecuteDoesNotBlockOnUncancellableExecutor(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	r := NewRegistry()
	require.NoError(t, r.Register(Declaration{
		Name: "stuck",
		Execute: func(ctx context.Context, args Args) (map[string]any, error) {
			<-release
			return map[string]any{"late": true}, nil
		},
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	res := r.Execute(ctx, model.ToolInvocation{ID: "s1", Name: "stuck"})
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, "tool timed out", res.Error)
	assert.Nil(t, res.Result)
}

func TestRegistry_ExecuteCanceled(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(echoTool("getWeather")))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := r.Execute(ctx, model.ToolInvocation{ID: "c", Name: "getWeather", Args: json.RawMessage(`{"city":"Oslo"}`)})
	assert.Equal(t, "tool canceled", res.Error)
}
