package model

import (
	"encoding/json"
	"strings"
)

// Role identifies who produced a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	RoleTool      Role = "tool"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem, RoleTool:
		return true
	}
	return false
}

// ToolInvocation represents a tool call requested by the model.
// Args is kept raw until the registry validates it.
type ToolInvocation struct {
	ID   string          `json:"id" bson:"id"`
	Name string          `json:"name" bson:"name"`
	Args json.RawMessage `json:"args,omitempty" bson:"args,omitempty"`
}

// ToolResult is the outcome of one invocation, matched by ID.
type ToolResult struct {
	ID     string         `json:"id" bson:"id"`
	Name   string         `json:"name" bson:"name"`
	Result map[string]any `json:"result,omitempty" bson:"result,omitempty"`
	Error  string         `json:"error,omitempty" bson:"error,omitempty"`
}

// IsError reports whether the tool failed.
func (r ToolResult) IsError() bool {
	return r.Error != ""
}

// Payload returns what is handed back to the model for this result.
func (r ToolResult) Payload() map[string]any {
	if r.IsError() {
		return map[string]any{"error": r.Error}
	}
	if r.Result == nil {
		return map[string]any{}
	}
	return r.Result
}

// Message is a single conversation entry. A tool message carries the
// invocations of one generation pass together with their results.
type Message struct {
	Role            Role             `json:"role" bson:"role"`
	Content         string           `json:"content" bson:"content"`
	ToolInvocations []ToolInvocation `json:"tool_invocations,omitempty" bson:"tool_invocations,omitempty"`
	ToolResults     []ToolResult     `json:"tool_results,omitempty" bson:"tool_results,omitempty"`
}

// IsEmpty reports whether the message carries no information at all.
func (m Message) IsEmpty() bool {
	return strings.TrimSpace(m.Content) == "" && len(m.ToolInvocations) == 0 && len(m.ToolResults) == 0
}
