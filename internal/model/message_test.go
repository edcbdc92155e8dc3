package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMessage_IsEmpty(t *testing.T) {
	assert.True(t, Message{Role: RoleUser, Content: "  \n\t"}.IsEmpty())
	assert.False(t, Message{Role: RoleUser, Content: " hi "}.IsEmpty())
	assert.False(t, Message{Role: RoleTool, ToolResults: []ToolResult{{ID: "1"}}}.IsEmpty())
	assert.False(t, Message{Role: RoleTool, ToolInvocations: []ToolInvocation{{ID: "1", Name: "getWeather"}}}.IsEmpty())
}

func TestRole_Valid(t *testing.T) {
	for _, r := range []Role{RoleUser, RoleAssistant, RoleSystem, RoleTool} {
		assert.True(t, r.Valid())
	}
	assert.False(t, Role("function").Valid())
}

func TestToolResult_Payload(t *testing.T) {
	assert.Equal(t, map[string]any{"error": "boom"}, ToolResult{Error: "boom"}.Payload())
	assert.Equal(t, map[string]any{}, ToolResult{}.Payload())
	assert.Equal(t, map[string]any{"x": 1}, ToolResult{Result: map[string]any{"x": 1}}.Payload())
}

func TestMessage_JSONShape(t *testing.T) {
	msg := Message{
		Role:            RoleTool,
		ToolInvocations: []ToolInvocation{{ID: "call-1", Name: "getWeather", Args: json.RawMessage(`{"city":"Paris"}`)}},
		ToolResults:     []ToolResult{{ID: "call-1", Name: "getWeather", Result: map[string]any{"weather": "12°C"}}},
	}

	raw, err := json.Marshal(msg)
	assert.NoError(t, err)
	assert.JSONEq(t, `{
		"role": "tool",
		"content": "",
		"tool_invocations": [{"id": "call-1", "name": "getWeather", "args": {"city": "Paris"}}],
		"tool_results": [{"id": "call-1", "name": "getWeather", "result": {"weather": "12°C"}}]
	}`, string(raw))
}

func TestChunk_Terminal(t *testing.T) {
	assert.True(t, Chunk{Kind: ChunkFinish}.Terminal())
	assert.True(t, Chunk{Kind: ChunkError}.Terminal())
	assert.False(t, TextChunk("x").Terminal())
	assert.False(t, ToolCallChunk(ToolInvocation{ID: "1"}).Terminal())
}
