package conversation

import (
	"bytes"
	"encoding/json"

	"github.com/m2tx/agent_chat/internal/model"
)

// RawToolInvocation is a tool call as rendered by the chat client. Only
// invocations with a result can be replayed to the model.
type RawToolInvocation struct {
	State      string          `json:"state,omitempty"`
	ToolCallID string          `json:"toolCallId"`
	ToolName   string          `json:"toolName"`
	Args       json.RawMessage `json:"args,omitempty"`
	Result     json.RawMessage `json:"result,omitempty"`
}

// RawMessage is a message as sent by the chat client.
type RawMessage struct {
	ID              string              `json:"id,omitempty"`
	Role            string              `json:"role"`
	Content         string              `json:"content"`
	ToolInvocations []RawToolInvocation `json:"toolInvocations,omitempty"`
}

// Normalize converts client messages into the internal representation.
// Assistant messages with completed tool invocations expand into the
// assistant text followed by a tool message holding the calls and results.
// Messages with an unknown role, tool messages without a completed
// invocation, and messages that end up carrying no text and no tool data
// are dropped. Order is preserved.
func Normalize(raw []RawMessage) []model.Message {
	out := make([]model.Message, 0, len(raw))
	for _, rm := range raw {
		role := model.Role(rm.Role)
		if !role.Valid() {
			continue
		}

		msg := model.Message{Role: role, Content: rm.Content}
		invocations, results := completedInvocations(rm.ToolInvocations)

		switch {
		case len(invocations) == 0 && role == model.RoleTool:
			continue
		case len(invocations) == 0:
			appendNonEmpty(&out, msg)
		case role == model.RoleTool:
			msg.ToolInvocations = invocations
			msg.ToolResults = results
			appendNonEmpty(&out, msg)
		default:
			appendNonEmpty(&out, msg)
			appendNonEmpty(&out, model.Message{
				Role:            model.RoleTool,
				ToolInvocations: invocations,
				ToolResults:     results,
			})
		}
	}
	return out
}

func appendNonEmpty(out *[]model.Message, msg model.Message) {
	if msg.IsEmpty() {
		return
	}
	*out = append(*out, msg)
}

func completedInvocations(raw []RawToolInvocation) ([]model.ToolInvocation, []model.ToolResult) {
	var (
		invocations []model.ToolInvocation
		results     []model.ToolResult
	)
	for _, ri := range raw {
		if ri.ToolCallID == "" || ri.ToolName == "" || !hasValue(ri.Result) {
			continue
		}
		if ri.State != "" && ri.State != "result" {
			continue
		}

		invocations = append(invocations, model.ToolInvocation{
			ID:   ri.ToolCallID,
			Name: ri.ToolName,
			Args: ri.Args,
		})
		results = append(results, model.ToolResult{
			ID:     ri.ToolCallID,
			Name:   ri.ToolName,
			Result: decodeResult(ri.Result),
		})
	}
	return invocations, results
}

func hasValue(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null"))
}

// decodeResult keeps object results as-is and wraps anything else.
func decodeResult(raw json.RawMessage) map[string]any {
	var obj map[string]any
	if err := json.Unmarshal(raw, &obj); err == nil && obj != nil {
		return obj
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return map[string]any{"result": string(raw)}
	}
	return map[string]any{"result": v}
}
