package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/studyloop-ai/studyloop-engine/pkg/llm"
	"github.com/studyloop-ai/studyloop-engine/pkg/models"
	"github.com/studyloop-ai/studyloop-engine/pkg/repositories"
)

// documentToolResult is the acknowledgement fed back to the model after a
// document sub-generation. The content itself reaches the client through
// artifact events, never through the model context.
type documentToolResult struct {
	Message       string              `json:"message"`
	DocumentID    uuid.UUID           `json:"documentId"`
	DocumentTitle string              `json:"documentTitle"`
	Kind          models.DocumentKind `json:"kind"`
}

// CreateDocumentTool runs a nested streamed generation that produces a new
// document artifact and persists it once the sub-stream completes.
type CreateDocumentTool struct {
	resolver  ModelResolver
	documents repositories.DocumentRepository
	chatID    uuid.UUID
	userID    string
	persist   bool
	logger    *zap.Logger
}

// NewCreateDocumentTool creates the create_document executor for one turn.
// Temporary turns stream the artifact but skip persistence.
func NewCreateDocumentTool(resolver ModelResolver, documents repositories.DocumentRepository, chatID uuid.UUID, userID string, persist bool, logger *zap.Logger) *CreateDocumentTool {
	return &CreateDocumentTool{
		resolver:  resolver,
		documents: documents,
		chatID:    chatID,
		userID:    userID,
		persist:   persist,
		logger:    logger.Named("create-document"),
	}
}

var _ Executor = (*CreateDocumentTool)(nil)

// Definition returns the tool definition.
func (t *CreateDocumentTool) Definition() llm.ToolDefinition {
	return llm.NewToolDefinition(
		"create_document",
		"Call this tool if the user explicitly asks for a new document. Provide the instructions that will be passed to a model for creating the document. The model will stream the document to the user.",
		map[string]llm.ParameterProperty{
			"document_title": {
				Type:        "string",
				Description: "Title of the document",
			},
			"instructions": {
				Type:        "string",
				Description: "Instructions for the document generator",
			},
			"kind": {
				Type:        "string",
				Enum:        []string{string(models.DocumentKindText), string(models.DocumentKindCode)},
				Description: "Kind of document to create",
			},
		},
		[]string{"document_title", "instructions", "kind"},
	)
}

type createDocumentArgs struct {
	DocumentTitle string `json:"document_title"`
	Instructions  string `json:"instructions"`
	Kind          string `json:"kind"`
}

// Execute streams the document to the client and persists the final draft.
func (t *CreateDocumentTool) Execute(ctx context.Context, arguments string, emit EmitFunc) (*ToolOutcome, error) {
	var args createDocumentArgs
	if err := json.Unmarshal([]byte(arguments), &args); err != nil {
		return nil, fmt.Errorf("invalid arguments: %w", err)
	}
	kind := models.DocumentKind(args.Kind)
	if kind != models.DocumentKindText && kind != models.DocumentKindCode {
		return nil, fmt.Errorf("unknown document kind: %s", args.Kind)
	}
	if strings.TrimSpace(args.DocumentTitle) == "" || strings.TrimSpace(args.Instructions) == "" {
		return nil, fmt.Errorf("document_title and instructions are required")
	}

	modelCfg, err := t.resolver.DocumentModel()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve document model: %w", err)
	}

	documentID := uuid.New()
	emit(models.NewArtifactEvent(models.ArtifactRef{
		ID:    documentID,
		Title: args.DocumentTitle,
		Kind:  kind,
	}))

	content, err := streamDocument(ctx, modelCfg.Model, createDocumentPrompt(kind), args.Instructions, documentID, emit)
	if err != nil {
		return nil, fmt.Errorf("document generation failed: %w", err)
	}

	if t.persist {
		doc := &models.Document{
			ID:      documentID,
			ChatID:  t.chatID,
			UserID:  t.userID,
			Title:   args.DocumentTitle,
			Content: content,
			Kind:    kind,
		}
		if err := t.documents.Insert(ctx, doc); err != nil {
			return nil, fmt.Errorf("failed to persist document: %w", err)
		}
	}

	t.logger.Debug("Document created",
		zap.String("document_id", documentID.String()),
		zap.String("kind", string(kind)),
		zap.Int("content_length", len(content)))

	result := documentToolResult{
		Message:       "The document was created and is now visible to the user. Ask the user if they want any other changes.",
		DocumentID:    documentID,
		DocumentTitle: args.DocumentTitle,
		Kind:          kind,
	}
	return documentOutcome(result)
}

// ModifyDocumentTool rewrites the document the user appended to the turn.
// The target document is fixed at registration time from the turn's filter.
type ModifyDocumentTool struct {
	resolver  ModelResolver
	documents repositories.DocumentRepository
	doc       *models.Document
	logger    *zap.Logger
}

// NewModifyDocumentTool creates the modify_document executor bound to the
// appended document.
func NewModifyDocumentTool(resolver ModelResolver, documents repositories.DocumentRepository, doc *models.Document, logger *zap.Logger) *ModifyDocumentTool {
	return &ModifyDocumentTool{
		resolver:  resolver,
		documents: documents,
		doc:       doc,
		logger:    logger.Named("modify-document"),
	}
}

var _ Executor = (*ModifyDocumentTool)(nil)

// Definition returns the tool definition.
func (t *ModifyDocumentTool) Definition() llm.ToolDefinition {
	return llm.NewToolDefinition(
		"modify_document",
		"Call this tool if the user wants you to modify the document they appended. Provide the instructions that will be passed to a model for doing the modifications. The model has access to the current document content and will stream the updated document to the user.",
		map[string]llm.ParameterProperty{
			"instructions": {
				Type:        "string",
				Description: "Instructions for the modification",
			},
		},
		[]string{"instructions"},
	)
}

type modifyDocumentArgs struct {
	Instructions string `json:"instructions"`
}

// Execute streams the updated document and stores the new content.
func (t *ModifyDocumentTool) Execute(ctx context.Context, arguments string, emit EmitFunc) (*ToolOutcome, error) {
	var args modifyDocumentArgs
	if err := json.Unmarshal([]byte(arguments), &args); err != nil {
		return nil, fmt.Errorf("invalid arguments: %w", err)
	}
	if strings.TrimSpace(args.Instructions) == "" {
		return nil, fmt.Errorf("instructions are required")
	}

	modelCfg, err := t.resolver.DocumentModel()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve document model: %w", err)
	}

	emit(models.NewArtifactEvent(models.ArtifactRef{
		ID:    t.doc.ID,
		Title: t.doc.Title,
		Kind:  t.doc.Kind,
	}))

	content, err := streamDocument(ctx, modelCfg.Model, updateDocumentPrompt(t.doc.Content, t.doc.Kind), args.Instructions, t.doc.ID, emit)
	if err != nil {
		return nil, fmt.Errorf("document modification failed: %w", err)
	}

	if err := t.documents.UpdateContent(ctx, t.doc.ID, content); err != nil {
		return nil, fmt.Errorf("failed to persist document: %w", err)
	}

	t.logger.Debug("Document modified",
		zap.String("document_id", t.doc.ID.String()),
		zap.Int("content_length", len(content)))

	result := documentToolResult{
		Message:       "The document was modified and is now visible to the user. Ask the user if they want any other changes.",
		DocumentID:    t.doc.ID,
		DocumentTitle: t.doc.Title,
		Kind:          t.doc.Kind,
	}
	return documentOutcome(result)
}

// streamDocument runs the nested generation, forwarding every delta as an
// artifact_delta event, and returns the accumulated draft.
func streamDocument(ctx context.Context, model llm.StreamingModel, system, instructions string, documentID uuid.UUID, emit EmitFunc) (string, error) {
	var draft strings.Builder
	result, err := model.StreamCompletion(ctx, &llm.CompletionRequest{
		System:   system,
		Messages: []llm.Message{{Role: llm.RoleUser, Content: instructions}},
	}, func(text string) {
		draft.WriteString(text)
		emit(models.NewArtifactDeltaEvent(documentID, text))
	})
	if err != nil {
		return "", err
	}
	// Non-streaming providers may deliver everything in the final result.
	if draft.Len() == 0 && result.Content != "" {
		draft.WriteString(result.Content)
		emit(models.NewArtifactDeltaEvent(documentID, result.Content))
	}
	return draft.String(), nil
}

func documentOutcome(result documentToolResult) (*ToolOutcome, error) {
	payload, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal document result: %w", err)
	}
	return &ToolOutcome{
		ModelResult:  string(payload),
		ClientResult: result,
	}, nil
}
