package functions

import (
	"context"
	"fmt"
	"strings"

	"github.com/m2tx/agent_chat/internal/knowledge"
	"github.com/m2tx/agent_chat/internal/tool"
)

const defaultKnowledgeTopK = 3

type knowledgeArgs struct {
	Question string `json:"question" jsonschema:"The question the user wants to ask"`
}

// CreateKnowledgeDeclaration returns the getGeneralKnowledge tool. Answers
// come from the local document index; with nothing relevant indexed the
// tool still answers with a generic pointer so the model can carry on.
func CreateKnowledgeDeclaration(idx *knowledge.Index, topK int) tool.Declaration {
	if topK <= 0 {
		topK = defaultKnowledgeTopK
	}

	return tool.Declaration{
		Name:        "getGeneralKnowledge",
		Description: "Answer general knowledge questions",
		Parameters:  tool.MustSchemaFor[knowledgeArgs](),
		Execute: func(ctx context.Context, args tool.Args) (map[string]any, error) {
			question := strings.TrimSpace(args.String("question"))
			if question == "" {
				return nil, fmt.Errorf("question is required")
			}

			var passages []knowledge.Passage
			if idx != nil {
				passages = idx.Search(question, topK)
			}

			if len(passages) == 0 {
				return map[string]any{
					"answer": fmt.Sprintf("Here's some information on: %s", question),
				}, nil
			}

			sources := make([]map[string]any, 0, len(passages))
			excerpts := make([]string, 0, len(passages))
			for _, p := range passages {
				sources = append(sources, map[string]any{
					"source":  p.Source,
					"content": p.Text,
				})
				excerpts = append(excerpts, p.Text)
			}

			return map[string]any{
				"answer":  strings.Join(excerpts, "\n\n"),
				"sources": sources,
			}, nil
		},
	}
}
