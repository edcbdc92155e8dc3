package agent

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/m2tx/agent_chat/internal/model"
	"github.com/m2tx/agent_chat/internal/tool"
)

func TestToGenAIContents(t *testing.T) {
	system, contents := toGenAIContents([]model.Message{
		{Role: model.RoleSystem, Content: "Answer in French."},
		{Role: model.RoleUser, Content: "weather in Paris"},
		{Role: model.RoleAssistant, Content: "Let me check."},
		{
			Role:            model.RoleTool,
			ToolInvocations: []model.ToolInvocation{{ID: "call-1", Name: "getWeather", Args: json.RawMessage(`{"city":"Paris"}`)}},
			ToolResults:     []model.ToolResult{{ID: "call-1", Name: "getWeather", Result: map[string]any{"weather": "14°C"}}},
		},
		{Role: model.RoleAssistant, Content: "Il fait 14°C."},
	})

	assert.Equal(t, []string{"Answer in French."}, system)
	require.Len(t, contents, 4)

	assert.Equal(t, "user", contents[0].Role)
	assert.Equal(t, "weather in Paris", contents[0].Parts[0].Text)

	model1 := contents[1]
	assert.Equal(t, "model", model1.Role)
	require.Len(t, model1.Parts, 2)
	assert.Equal(t, "Let me check.", model1.Parts[0].Text)
	require.NotNil(t, model1.Parts[1].FunctionCall)
	assert.Equal(t, "call-1", model1.Parts[1].FunctionCall.ID)
	assert.Equal(t, map[string]any{"city": "Paris"}, model1.Parts[1].FunctionCall.Args)

	responses := contents[2]
	assert.Equal(t, "user", responses.Role)
	require.NotNil(t, responses.Parts[0].FunctionResponse)
	assert.Equal(t, map[string]any{"weather": "14°C"}, responses.Parts[0].FunctionResponse.Response)

	assert.Equal(t, "model", contents[3].Role)
}

func TestToGenAIContents_ToolWithoutPrecedingModelTurn(t *testing.T) {
	_, contents := toGenAIContents([]model.Message{
		{Role: model.RoleUser, Content: "hi"},
		{
			Role:            model.RoleTool,
			ToolInvocations: []model.ToolInvocation{{ID: "a", Name: "getWeather"}},
			ToolResults:     []model.ToolResult{{ID: "a", Name: "getWeather", Error: "tool timed out"}},
		},
	})

	require.Len(t, contents, 3)
	assert.Equal(t, "model", contents[1].Role)
	assert.Equal(t, map[string]any{}, contents[1].Parts[0].FunctionCall.Args)
	assert.Equal(t, map[string]any{"error": "tool timed out"}, contents[2].Parts[0].FunctionResponse.Response)
}

func TestToGenAIContents_ToolMessageText(t *testing.T) {
	_, contents := toGenAIContents([]model.Message{
		{Role: model.RoleUser, Content: "hi"},
		{Role: model.RoleTool, Content: "weather: 12C"},
		{
			Role:            model.RoleTool,
			Content:         "cached",
			ToolInvocations: []model.ToolInvocation{{ID: "a", Name: "getWeather"}},
			ToolResults:     []model.ToolResult{{ID: "a", Name: "getWeather", Result: map[string]any{"weather": "12C"}}},
		},
	})

	require.Len(t, contents, 4)
	assert.Equal(t, "user", contents[1].Role)
	require.Len(t, contents[1].Parts, 1)
	assert.Equal(t, "weather: 12C", contents[1].Parts[0].Text)

	assert.Equal(t, "model", contents[2].Role)
	require.NotNil(t, contents[2].Parts[0].FunctionCall)

	responses := contents[3]
	require.Len(t, responses.Parts, 2)
	require.NotNil(t, responses.Parts[0].FunctionResponse)
	assert.Equal(t, "cached", responses.Parts[1].Text)
}

func TestPassEvents(t *testing.T) {
	events, err := passEvents(&genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{Content: &genai.Content{Parts: []*genai.Part{
				{Text: "thinking...", Thought: true},
				{Text: "Hello"},
				{FunctionCall: &genai.FunctionCall{Name: "getWeather", Args: map[string]any{"city": "Paris"}}},
			}}},
			nil,
		},
	})
	require.NoError(t, err)
	require.Len(t, events, 2)

	assert.Equal(t, "Hello", events[0].TextDelta)

	inv := events[1].Invocation
	require.NotNil(t, inv)
	assert.NotEmpty(t, inv.ID)
	assert.Equal(t, "getWeather", inv.Name)
	assert.JSONEq(t, `{"city":"Paris"}`, string(inv.Args))
}

func TestPassEvents_NilArgs(t *testing.T) {
	events, err := passEvents(&genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{Content: &genai.Content{Parts: []*genai.Part{
			{FunctionCall: &genai.FunctionCall{ID: "x", Name: "ping"}},
		}}}},
	})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "x", events[0].Invocation.ID)
	assert.JSONEq(t, `{}`, string(events[0].Invocation.Args))
}

func TestToGenAITools(t *testing.T) {
	assert.Nil(t, toGenAITools(nil))

	tools := toGenAITools([]tool.Declaration{{
		Name:        "getWeather",
		Description: "Get the current weather for a location",
		Parameters:  tool.MustSchemaFor[cityArgs](),
	}})
	require.Len(t, tools, 1)
	require.Len(t, tools[0].FunctionDeclarations, 1)

	fd := tools[0].FunctionDeclarations[0]
	assert.Equal(t, "getWeather", fd.Name)

	raw, err := json.Marshal(fd.ParametersJsonSchema)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"type": "object",
		"properties": {"city": {"type": "string", "description": "City name"}},
		"required": ["city"]
	}`, string(raw))
}

func TestSystemInstruction(t *testing.T) {
	now := time.Date(2026, time.March, 4, 10, 0, 0, 0, time.UTC)
	got := systemInstruction(DefaultSystemPrompt, now)

	assert.Contains(t, got, "ChatGPT-like AI assistant")
	assert.True(t, strings.HasSuffix(got, "- Today's date is March 4, 2026."))
	assert.Equal(t, "- Today's date is March 4, 2026.", systemInstruction("  ", now))
}
