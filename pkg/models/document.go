package models

import (
	"time"

	"github.com/google/uuid"
)

// DocumentKind represents the kind of a generated document artifact.
type DocumentKind string

const (
	DocumentKindText DocumentKind = "text"
	DocumentKindCode DocumentKind = "code"
)

// IsValidDocumentKind checks if the given kind is valid.
func IsValidDocumentKind(k DocumentKind) bool {
	return k == DocumentKindText || k == DocumentKindCode
}

// Document is a generated artifact produced by the create_document or
// modify_document tools. Content is accumulated from the streamed
// sub-generation and written exactly once per successful tool call.
type Document struct {
	ID        uuid.UUID    `json:"id"`
	ChatID    uuid.UUID    `json:"chat_id"`
	UserID    string       `json:"user_id"`
	Title     string       `json:"title"`
	Content   string       `json:"content"`
	Kind      DocumentKind `json:"kind"`
	CreatedAt time.Time    `json:"created_at"`
}

// MultipleChoice is an in-stream quiz question produced by the
// create_multiple_choice tool. It is rendered by the client and not persisted.
type MultipleChoice struct {
	Question      string `json:"question"`
	ChoiceA       string `json:"choice_a"`
	ChoiceB       string `json:"choice_b"`
	ChoiceC       string `json:"choice_c"`
	ChoiceD       string `json:"choice_d"`
	CorrectAnswer string `json:"correct_answer"`
}
