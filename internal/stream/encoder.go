package stream

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/m2tx/agent_chat/internal/model"
)

// Line prefixes of the AI data-stream protocol.
const (
	prefixText       = "0"
	prefixError      = "3"
	prefixToolCall   = "9"
	prefixToolResult = "a"
	prefixFinish     = "d"
)

// ContentType and ProtocolHeader describe the encoded response.
const (
	ContentType    = "text/plain; charset=utf-8"
	ProtocolHeader = "X-Vercel-AI-Data-Stream"
	ProtocolValue  = "v1"
)

type toolCallPart struct {
	ToolCallID string          `json:"toolCallId"`
	ToolName   string          `json:"toolName"`
	Args       json.RawMessage `json:"args"`
}

type toolResultPart struct {
	ToolCallID string         `json:"toolCallId"`
	Result     map[string]any `json:"result"`
}

type finishPart struct {
	FinishReason string `json:"finishReason"`
}

// Encoder writes chunks as newline-delimited "<prefix>:<json>" lines.
type Encoder struct {
	w io.Writer
}

// NewEncoder returns an encoder writing to w.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: w}
}

// Encode writes a single chunk.
func (e *Encoder) Encode(chunk model.Chunk) error {
	prefix, value, err := encodePart(chunk)
	if err != nil {
		return err
	}

	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("stream: encode %s chunk: %w", chunk.Kind, err)
	}

	_, err = fmt.Fprintf(e.w, "%s:%s\n", prefix, raw)
	return err
}

func encodePart(chunk model.Chunk) (string, any, error) {
	switch chunk.Kind {
	case model.ChunkText:
		return prefixText, chunk.Text, nil
	case model.ChunkToolCall:
		if chunk.Invocation == nil {
			return "", nil, fmt.Errorf("stream: tool_call chunk without invocation")
		}
		args := chunk.Invocation.Args
		if len(args) == 0 {
			args = json.RawMessage(`{}`)
		}
		return prefixToolCall, toolCallPart{
			ToolCallID: chunk.Invocation.ID,
			ToolName:   chunk.Invocation.Name,
			Args:       args,
		}, nil
	case model.ChunkToolResult:
		if chunk.Result == nil {
			return "", nil, fmt.Errorf("stream: tool_result chunk without result")
		}
		return prefixToolResult, toolResultPart{
			ToolCallID: chunk.Result.ID,
			Result:     chunk.Result.Payload(),
		}, nil
	case model.ChunkFinish:
		return prefixFinish, finishPart{FinishReason: chunk.FinishReason}, nil
	case model.ChunkError:
		return prefixError, chunk.Err, nil
	default:
		return "", nil, fmt.Errorf("stream: unknown chunk kind %q", chunk.Kind)
	}
}
