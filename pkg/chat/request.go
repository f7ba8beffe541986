// Package chat implements the streaming chat orchestration runtime.
package chat

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/studyloop-ai/studyloop-engine/pkg/apperrors"
	"github.com/studyloop-ai/studyloop-engine/pkg/models"
)

// IncomingMessage is the newest message of a turn.
type IncomingMessage struct {
	Role    string        `json:"role"`
	Content string        `json:"content"`
	Filter  models.Filter `json:"filter"`
}

// TurnRequest is one accepted chat turn. Immutable once validated; the
// filter fixes the retrieval scope for the whole turn.
type TurnRequest struct {
	ID      uuid.UUID       `json:"id"`
	Message IncomingMessage `json:"message"`
	// ModelIndex selects a catalogue model. Ignored when ModelID is set.
	ModelIndex int `json:"model_index"`
	// ModelID selects a tenant-registered model scoped to the filter's bucket.
	ModelID          *uuid.UUID `json:"model_id,omitempty"`
	IsTemporary      bool       `json:"is_temp"`
	ReasoningEnabled bool       `json:"reasoning"`
}

// Validate checks the structural constraints of the turn.
func (t *TurnRequest) Validate() error {
	if t.ID == uuid.Nil {
		return fmt.Errorf("%w: chat id is required", apperrors.ErrBadRequest)
	}
	if t.Message.Role != string(models.ChatRoleUser) {
		return fmt.Errorf("%w: last message must have role user", apperrors.ErrBadRequest)
	}
	if strings.TrimSpace(t.Message.Content) == "" {
		return fmt.Errorf("%w: message content is required", apperrors.ErrBadRequest)
	}
	if err := t.Message.Filter.Validate(); err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrBadRequest, err)
	}
	return nil
}
