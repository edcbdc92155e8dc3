package conversation

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m2tx/agent_chat/internal/model"
)

func TestNormalize_DropsEmptyAndUnknown(t *testing.T) {
	got := Normalize([]RawMessage{
		{Role: "user", Content: "hi"},
		{Role: "assistant", Content: "  "},
		{Role: "data", Content: "ignored"},
		{Role: "user", Content: ""},
		{Role: "user", Content: "how are you?"},
	})

	require.Len(t, got, 2)
	assert.Equal(t, model.Message{Role: model.RoleUser, Content: "hi"}, got[0])
	assert.Equal(t, "how are you?", got[1].Content)
}

func TestNormalize_DropsToolMessagesWithoutInvocations(t *testing.T) {
	got := Normalize([]RawMessage{
		{Role: "user", Content: "hi"},
		{Role: "tool", Content: "weather: 12C"},
		{Role: "tool", Content: "pending", ToolInvocations: []RawToolInvocation{
			{State: "call", ToolCallID: "c1", ToolName: "getWeather"},
		}},
	})

	require.Len(t, got, 1)
	assert.Equal(t, model.RoleUser, got[0].Role)
}

func TestNormalize_EmptyInput(t *testing.T) {
	assert.Empty(t, Normalize(nil))
	assert.Empty(t, Normalize([]RawMessage{{Role: "user", Content: "\n\t"}}))
}

func TestNormalize_ExpandsToolInvocations(t *testing.T) {
	var raw []RawMessage
	require.NoError(t, json.Unmarshal([]byte(`[
		{"role":"user","content":"weather in Paris?"},
		{"role":"assistant","content":"","toolInvocations":[
			{"state":"result","toolCallId":"call-1","toolName":"getWeather","args":{"city":"Paris"},"result":{"weather":"Current temperature in Paris: 14°C"}}
		]},
		{"role":"assistant","content":"It is 14°C in Paris."}
	]`), &raw))

	got := Normalize(raw)

	require.Len(t, got, 3)
	assert.Equal(t, model.RoleUser, got[0].Role)

	toolMsg := got[1]
	assert.Equal(t, model.RoleTool, toolMsg.Role)
	require.Len(t, toolMsg.ToolInvocations, 1)
	require.Len(t, toolMsg.ToolResults, 1)
	assert.Equal(t, "call-1", toolMsg.ToolInvocations[0].ID)
	assert.Equal(t, "getWeather", toolMsg.ToolInvocations[0].Name)
	assert.JSONEq(t, `{"city":"Paris"}`, string(toolMsg.ToolInvocations[0].Args))
	assert.Equal(t, "call-1", toolMsg.ToolResults[0].ID)
	assert.Equal(t, "Current temperature in Paris: 14°C", toolMsg.ToolResults[0].Result["weather"])

	assert.Equal(t, model.RoleAssistant, got[2].Role)
}

func TestNormalize_KeepsAssistantTextBeforeTools(t *testing.T) {
	got := Normalize([]RawMessage{{
		Role:    "assistant",
		Content: "Let me check.",
		ToolInvocations: []RawToolInvocation{
			{ToolCallID: "a", ToolName: "getWeather", Args: json.RawMessage(`{"city":"Rome"}`), Result: json.RawMessage(`"sunny"`)},
		},
	}})

	require.Len(t, got, 2)
	assert.Equal(t, model.Message{Role: model.RoleAssistant, Content: "Let me check."}, got[0])
	assert.Equal(t, model.RoleTool, got[1].Role)
	assert.Equal(t, map[string]any{"result": "sunny"}, got[1].ToolResults[0].Result)
}

func TestNormalize_SkipsIncompleteInvocations(t *testing.T) {
	got := Normalize([]RawMessage{{
		Role: "assistant",
		ToolInvocations: []RawToolInvocation{
			{State: "call", ToolCallID: "a", ToolName: "getWeather", Args: json.RawMessage(`{}`)},
			{ToolCallID: "b", ToolName: "getWeather", Result: json.RawMessage(`null`)},
		},
	}})

	assert.Empty(t, got)
}

func TestNormalize_DoesNotMutateInput(t *testing.T) {
	raw := []RawMessage{{Role: "user", Content: "  padded  "}}
	got := Normalize(raw)

	require.Len(t, got, 1)
	assert.Equal(t, "  padded  ", got[0].Content)
	assert.Equal(t, "  padded  ", raw[0].Content)
}
