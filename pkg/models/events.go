package models

import "github.com/google/uuid"

// ChatEventType represents the type of a streaming chat event.
type ChatEventType string

const (
	ChatEventText          ChatEventType = "text"
	ChatEventToolCall      ChatEventType = "tool_call"
	ChatEventToolResult    ChatEventType = "tool_result"
	ChatEventChatCreated   ChatEventType = "chat_created"
	ChatEventArtifact      ChatEventType = "artifact"
	ChatEventArtifactDelta ChatEventType = "artifact_delta"
	ChatEventFinish        ChatEventType = "finish"
	ChatEventError         ChatEventType = "error"
)

// ChatEvent represents a streaming event emitted during a chat turn.
type ChatEvent struct {
	Type    ChatEventType `json:"type"`
	Content string        `json:"content,omitempty"`
	Data    any           `json:"data,omitempty"`
}

// ArtifactRef announces an opening document sub-generation to the client.
type ArtifactRef struct {
	ID    uuid.UUID    `json:"id"`
	Title string       `json:"title"`
	Kind  DocumentKind `json:"kind"`
}

// NewTextEvent creates a text delta event.
func NewTextEvent(content string) ChatEvent {
	return ChatEvent{Type: ChatEventText, Content: content}
}

// NewToolCallEvent creates a tool call event.
func NewToolCallEvent(toolCall ToolCall) ChatEvent {
	return ChatEvent{Type: ChatEventToolCall, Data: toolCall}
}

// NewToolResultEvent creates a tool result event keyed by tool call id.
func NewToolResultEvent(toolCallID string, result any) ChatEvent {
	return ChatEvent{
		Type:    ChatEventToolResult,
		Content: toolCallID,
		Data:    result,
	}
}

// NewChatCreatedEvent announces a freshly created chat and its title.
func NewChatCreatedEvent(chat *Chat) ChatEvent {
	return ChatEvent{Type: ChatEventChatCreated, Data: chat}
}

// NewArtifactEvent announces an opening document sub-generation.
func NewArtifactEvent(ref ArtifactRef) ChatEvent {
	return ChatEvent{Type: ChatEventArtifact, Data: ref}
}

// NewArtifactDeltaEvent creates a content delta for an open artifact.
func NewArtifactDeltaEvent(artifactID uuid.UUID, content string) ChatEvent {
	return ChatEvent{
		Type:    ChatEventArtifactDelta,
		Content: content,
		Data:    map[string]string{"artifact_id": artifactID.String()},
	}
}

// NewFinishEvent creates a completion event.
func NewFinishEvent() ChatEvent {
	return ChatEvent{Type: ChatEventFinish}
}

// NewErrorEvent creates an error event.
func NewErrorEvent(err string) ChatEvent {
	return ChatEvent{Type: ChatEventError, Content: err}
}
