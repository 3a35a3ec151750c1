package domain

import (
	"context"
	"encoding/json"
)

// ModelRequest is one model invocation: the system prompt, the full
// conversation so far and the tools the caller may use.
type ModelRequest struct {
	System   string
	Messages []Message
	Tools    []ToolDefinition
}

// ChunkKind tags a ModelChunk.
type ChunkKind int

const (
	ChunkText ChunkKind = iota
	ChunkToolCall
	ChunkError
)

// ModelChunk is a streamed piece of one model turn.
type ModelChunk struct {
	Kind ChunkKind
	Text string

	// Set for ChunkToolCall.
	CallID string
	Name   string
	Args   json.RawMessage

	// Set for ChunkError.
	Err error
}

// ChatModel is the model-agnostic interface for tool-calling chat.
// Implementations may be OpenAI-compatible endpoints, Gemini, local models, or mocks.
type ChatModel interface {
	// Stream starts one model turn. The returned channel yields text deltas
	// and complete tool calls and is closed when the turn ends. A failure is
	// delivered as a ChunkError, after which the channel is closed.
	// Implementations must stop sending once ctx is done.
	Stream(ctx context.Context, req ModelRequest) (<-chan ModelChunk, error)
}

// Tokenizer counts tokens in a string for prompt accounting.
type Tokenizer interface {
	// CountTokens returns the number of tokens in the given text.
	CountTokens(text string) (int, error)
}
