package agent

import (
	"context"
	"iter"

	"github.com/m2tx/agent_chat/internal/model"
	"github.com/m2tx/agent_chat/internal/tool"
)

// PassRequest is the input of a single generation pass.
type PassRequest struct {
	SystemInstruction string
	Messages          []model.Message
	Tools             []tool.Declaration
}

// PassEvent is one increment of model output: either a text delta or a
// requested tool invocation.
type PassEvent struct {
	TextDelta  string
	Invocation *model.ToolInvocation
}

// Generator runs one generation pass against a model backend. The sequence
// ends when the model stops; a non-nil error ends it early.
type Generator interface {
	Generate(ctx context.Context, req PassRequest) iter.Seq2[PassEvent, error]
}
