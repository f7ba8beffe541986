package llm

import (
	"context"

	"github.com/studyloop-ai/studyloop-engine/pkg/models"
)

// Message role constants.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message represents a chat message in provider-neutral form.
type Message struct {
	Role       string            `json:"role"`
	Content    string            `json:"content"`
	ToolCalls  []models.ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string            `json:"tool_call_id,omitempty"`
}

// CompletionRequest is a single streaming completion call. One request maps
// to one model round trip; the orchestrator drives the tool loop above it.
type CompletionRequest struct {
	System      string
	Messages    []Message
	Tools       []ToolDefinition
	Temperature float32
	MaxTokens   int
	// Reasoning enables the model's extended reasoning mode. Only set for
	// catalogue models flagged as reasoning-capable.
	Reasoning bool
}

// CompletionResult is the accumulated outcome of one streamed completion.
type CompletionResult struct {
	Content   string
	ToolCalls []models.ToolCall
}

// DeltaFunc receives text deltas as they arrive. A nil DeltaFunc is valid
// and discards deltas (used for title generation).
type DeltaFunc func(text string)

// StreamingModel is a chat model capable of a single streamed completion
// with native tool calling.
type StreamingModel interface {
	// StreamCompletion runs one completion, invoking onDelta per text delta,
	// and returns the accumulated content and tool calls.
	StreamCompletion(ctx context.Context, req *CompletionRequest, onDelta DeltaFunc) (*CompletionResult, error)
	// Name returns the underlying model name for logging.
	Name() string
}

// EmbeddingProvider converts text into an embedding vector.
type EmbeddingProvider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}
