package stream

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/m2tx/agent_chat/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncoder_Lines(t *testing.T) {
	var buf bytes.Buffer
	enc := NewEncoder(&buf)

	chunks := []model.Chunk{
		model.TextChunk("It is \"sunny\"\n"),
		model.ToolCallChunk(model.ToolInvocation{ID: "call-1", Name: "getWeather", Args: json.RawMessage(`{"city":"Paris"}`)}),
		model.ToolResultChunk(model.ToolResult{ID: "call-1", Name: "getWeather", Result: map[string]any{"weather": "14°C"}}),
		model.ToolResultChunk(model.ToolResult{ID: "call-2", Name: "getWeather", Error: "tool timed out"}),
		{Kind: model.ChunkFinish, FinishReason: "stop"},
	}
	for _, c := range chunks {
		require.NoError(t, enc.Encode(c))
	}

	want := `0:"It is \"sunny\"\n"` + "\n" +
		`9:{"toolCallId":"call-1","toolName":"getWeather","args":{"city":"Paris"}}` + "\n" +
		`a:{"toolCallId":"call-1","result":{"weather":"14°C"}}` + "\n" +
		`a:{"toolCallId":"call-2","result":{"error":"tool timed out"}}` + "\n" +
		`d:{"finishReason":"stop"}` + "\n"
	assert.Equal(t, want, buf.String())
}

func TestEncoder_ErrorAndEmptyArgs(t *testing.T) {
	var buf bytes.Buffer
	enc := NewEncoder(&buf)

	require.NoError(t, enc.Encode(model.ToolCallChunk(model.ToolInvocation{ID: "x", Name: "getGeneralKnowledge"})))
	require.NoError(t, enc.Encode(model.Chunk{Kind: model.ChunkError, Err: "tool loop"}))

	assert.Equal(t, `9:{"toolCallId":"x","toolName":"getGeneralKnowledge","args":{}}`+"\n"+`3:"tool loop"`+"\n", buf.String())
}

func TestEncoder_RejectsMalformed(t *testing.T) {
	enc := NewEncoder(&bytes.Buffer{})
	assert.Error(t, enc.Encode(model.Chunk{Kind: model.ChunkToolCall}))
	assert.Error(t, enc.Encode(model.Chunk{Kind: model.ChunkToolResult}))
	assert.Error(t, enc.Encode(model.Chunk{Kind: "mystery"}))
}
