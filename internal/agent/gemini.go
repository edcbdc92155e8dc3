package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"strings"

	"github.com/google/uuid"
	"google.golang.org/genai"

	"github.com/m2tx/agent_chat/internal/model"
	"github.com/m2tx/agent_chat/internal/tool"
)

const DefaultModel = "gemini-2.5-flash"

var (
	roleUser  = string(genai.RoleUser)
	roleModel = string(genai.RoleModel)
)

// GeminiGenerator streams generation passes from the Gemini API.
type GeminiGenerator struct {
	client *genai.Client
	model  string
}

func NewGeminiGenerator(client *genai.Client, model string) *GeminiGenerator {
	if model == "" {
		model = DefaultModel
	}
	return &GeminiGenerator{client: client, model: model}
}

func (g *GeminiGenerator) Generate(ctx context.Context, req PassRequest) iter.Seq2[PassEvent, error] {
	return func(yield func(PassEvent, error) bool) {
		system, contents := toGenAIContents(req.Messages)

		config := &genai.GenerateContentConfig{Tools: toGenAITools(req.Tools)}
		if instruction := joinNonEmpty(append([]string{req.SystemInstruction}, system...)); instruction != "" {
			config.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: instruction}}}
		}

		for resp, err := range g.client.Models.GenerateContentStream(ctx, g.model, contents, config) {
			if err != nil {
				yield(PassEvent{}, fmt.Errorf("gemini %s: %w", g.model, err))
				return
			}

			events, err := passEvents(resp)
			if err != nil {
				yield(PassEvent{}, err)
				return
			}
			for _, ev := range events {
				if !yield(ev, nil) {
					return
				}
			}
		}
	}
}

func toGenAITools(decls []tool.Declaration) []*genai.Tool {
	if len(decls) == 0 {
		return nil
	}

	functions := make([]*genai.FunctionDeclaration, 0, len(decls))
	for _, d := range decls {
		functions = append(functions, &genai.FunctionDeclaration{
			Name:                 d.Name,
			Description:          d.Description,
			ParametersJsonSchema: d.Parameters,
		})
	}

	return []*genai.Tool{
		{
			FunctionDeclarations: functions,
		},
	}
}

// passEvents extracts text deltas and function calls from one streamed
// response. Thought parts are skipped and missing call ids are filled in.
func passEvents(resp *genai.GenerateContentResponse) ([]PassEvent, error) {
	if resp == nil {
		return nil, nil
	}

	var events []PassEvent
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}

		for _, part := range candidate.Content.Parts {
			switch {
			case part == nil || part.Thought:
			case part.FunctionCall != nil:
				args, err := json.Marshal(part.FunctionCall.Args)
				if err != nil {
					return nil, fmt.Errorf("encode args of %s: %w", part.FunctionCall.Name, err)
				}
				if part.FunctionCall.Args == nil {
					args = json.RawMessage(`{}`)
				}

				id := part.FunctionCall.ID
				if id == "" {
					id = uuid.NewString()
				}
				events = append(events, PassEvent{Invocation: &model.ToolInvocation{
					ID:   id,
					Name: part.FunctionCall.Name,
					Args: args,
				}})
			case part.Text != "":
				events = append(events, PassEvent{TextDelta: part.Text})
			}
		}
	}
	return events, nil
}

// toGenAIContents converts the history to Gemini contents. System messages
// are returned separately since Gemini only takes them as instruction. A
// tool message becomes a model turn with the calls followed by a user turn
// with the responses and any text the message carries.
func toGenAIContents(messages []model.Message) ([]string, []*genai.Content) {
	var (
		system   []string
		contents = make([]*genai.Content, 0, len(messages))
	)

	for _, m := range messages {
		switch m.Role {
		case model.RoleSystem:
			system = append(system, m.Content)
		case model.RoleUser:
			contents = append(contents, &genai.Content{Role: roleUser, Parts: []*genai.Part{{Text: m.Content}}})
		case model.RoleAssistant:
			contents = append(contents, &genai.Content{Role: roleModel, Parts: []*genai.Part{{Text: m.Content}}})
		case model.RoleTool:
			calls := make([]*genai.Part, 0, len(m.ToolInvocations))
			for _, inv := range m.ToolInvocations {
				calls = append(calls, &genai.Part{FunctionCall: &genai.FunctionCall{
					ID:   inv.ID,
					Name: inv.Name,
					Args: decodeArgs(inv.Args),
				}})
			}
			if last := len(contents) - 1; last >= 0 && contents[last].Role == roleModel {
				contents[last].Parts = append(contents[last].Parts, calls...)
			} else if len(calls) > 0 {
				contents = append(contents, &genai.Content{Role: roleModel, Parts: calls})
			}

			responses := make([]*genai.Part, 0, len(m.ToolResults))
			for _, res := range m.ToolResults {
				responses = append(responses, &genai.Part{FunctionResponse: &genai.FunctionResponse{
					ID:       res.ID,
					Name:     res.Name,
					Response: res.Payload(),
				}})
			}
			if text := strings.TrimSpace(m.Content); text != "" {
				responses = append(responses, &genai.Part{Text: text})
			}
			if len(responses) > 0 {
				contents = append(contents, &genai.Content{Role: roleUser, Parts: responses})
			}
		}
	}

	return system, contents
}

func decodeArgs(raw json.RawMessage) map[string]any {
	args := map[string]any{}
	if len(raw) == 0 {
		return args
	}
	if err := json.Unmarshal(raw, &args); err != nil || args == nil {
		return map[string]any{}
	}
	return args
}

func joinNonEmpty(parts []string) string {
	kept := parts[:0:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, "\n\n")
}
