package model

// ChunkKind tags a streamed chunk.
type ChunkKind string

const (
	ChunkText       ChunkKind = "text"
	ChunkToolCall   ChunkKind = "tool_call"
	ChunkToolResult ChunkKind = "tool_result"
	ChunkFinish     ChunkKind = "finish"
	ChunkError      ChunkKind = "error"
)

// Chunk is one ordered unit of streamed output.
type Chunk struct {
	Kind         ChunkKind
	Text         string
	Invocation   *ToolInvocation
	Result       *ToolResult
	FinishReason string
	Err          string
}

// Terminal reports whether the chunk ends the stream.
func (c Chunk) Terminal() bool {
	return c.Kind == ChunkFinish || c.Kind == ChunkError
}

func TextChunk(text string) Chunk {
	return Chunk{Kind: ChunkText, Text: text}
}

func ToolCallChunk(inv ToolInvocation) Chunk {
	return Chunk{Kind: ChunkToolCall, Invocation: &inv}
}

func ToolResultChunk(res ToolResult) Chunk {
	return Chunk{Kind: ChunkToolResult, Result: &res}
}
