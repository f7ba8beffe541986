package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/studyloop-ai/studyloop-engine/pkg/apperrors"
	"github.com/studyloop-ai/studyloop-engine/pkg/llm"
	"github.com/studyloop-ai/studyloop-engine/pkg/models"
	"github.com/studyloop-ai/studyloop-engine/pkg/permissions"
	"github.com/studyloop-ai/studyloop-engine/pkg/repositories"
	"github.com/studyloop-ai/studyloop-engine/pkg/retrieval"
	"github.com/studyloop-ai/studyloop-engine/pkg/websearch"
)

const (
	// maxToolIterations caps model round trips within one turn.
	maxToolIterations = 6
	// historyWindow is the number of recent messages fed back to the model.
	historyWindow = 12
	// maxChatTitleChars caps generated chat titles.
	maxChatTitleChars = 80
)

// Orchestrator drives streaming chat turns end to end: validation, model
// resolution, the tool loop and transcript persistence. It also carries the
// non-streaming chat management operations.
type Orchestrator struct {
	gate      *permissions.Gate
	fanout    *retrieval.Fanout
	embedder  llm.EmbeddingProvider
	resolver  ModelResolver
	web       websearch.Provider
	chats     repositories.ChatRepository
	messages  repositories.MessageRepository
	documents repositories.DocumentRepository
	logger    *zap.Logger
}

// NewOrchestrator creates a chat orchestrator. A nil web provider disables
// the web tools.
func NewOrchestrator(
	gate *permissions.Gate,
	fanout *retrieval.Fanout,
	embedder llm.EmbeddingProvider,
	resolver ModelResolver,
	web websearch.Provider,
	chats repositories.ChatRepository,
	messages repositories.MessageRepository,
	documents repositories.DocumentRepository,
	logger *zap.Logger,
) *Orchestrator {
	return &Orchestrator{
		gate:      gate,
		fanout:    fanout,
		embedder:  embedder,
		resolver:  resolver,
		web:       web,
		chats:     chats,
		messages:  messages,
		documents: documents,
		logger:    logger.Named("chat-orchestrator"),
	}
}

// StreamTurn runs one chat turn, publishing events on the given channel as
// they happen. It returns once the turn is fully finished or failed; the
// caller owns the channel and closes it afterwards. Client-visible content
// already streamed is never retracted on failure, but nothing is persisted.
func (o *Orchestrator) StreamTurn(ctx context.Context, turn *TurnRequest, userID string, events chan<- models.ChatEvent) error {
	if err := turn.Validate(); err != nil {
		return err
	}

	scope := turn.Message.Filter
	allowed, err := o.gate.Authorize(ctx, userID, scope)
	if err != nil {
		return fmt.Errorf("permission check failed: %w", err)
	}
	if !allowed {
		return fmt.Errorf("%w: no access to the requested scope", apperrors.ErrForbidden)
	}

	emit := func(ev models.ChatEvent) { events <- ev }

	// Once accepted, the turn detaches from the request context: a client
	// disconnect must not abort in-flight generation or tool calls, and the
	// finished transcript still persists. Event emission is best-effort; the
	// handler keeps draining the channel until the turn ends.
	ctx = context.WithoutCancel(ctx)

	if !turn.IsTemporary {
		if err := o.ensureChat(ctx, turn, userID, emit); err != nil {
			return err
		}
		if err := o.messages.SaveAll(ctx, []*models.ChatMessage{{
			ChatID:  turn.ID,
			Role:    models.ChatRoleUser,
			Content: turn.Message.Content,
		}}); err != nil {
			return fmt.Errorf("failed to save user message: %w", err)
		}
	}

	modelCfg, err := o.resolveModel(ctx, turn)
	if err != nil {
		return err
	}

	registry := o.buildRegistry(ctx, turn, userID)

	history, err := o.buildHistory(ctx, turn)
	if err != nil {
		return err
	}

	o.logger.Info("Starting chat turn",
		zap.String("chat_id", turn.ID.String()),
		zap.String("model", modelCfg.Model.Name()),
		zap.Bool("temporary", turn.IsTemporary))

	reasoning := turn.ReasoningEnabled && modelCfg.Reasoning
	pending, err := o.runToolLoop(ctx, modelCfg.Model, registry, history, turn.ID, reasoning, emit)
	if err != nil {
		return err
	}

	if !turn.IsTemporary && len(pending) > 0 {
		if err := o.messages.SaveAll(ctx, pending); err != nil {
			return fmt.Errorf("failed to persist transcript: %w", err)
		}
	}

	emit(models.NewFinishEvent())
	return nil
}

// ensureChat loads the chat or creates it with a generated title. Continuing
// somebody else's chat is rejected.
func (o *Orchestrator) ensureChat(ctx context.Context, turn *TurnRequest, userID string, emit EmitFunc) error {
	chat, err := o.chats.GetByID(ctx, turn.ID)
	if err == nil {
		if chat.UserID != userID {
			return fmt.Errorf("%w: chat belongs to another user", apperrors.ErrUnauthorized)
		}
		return nil
	}
	if !errors.Is(err, apperrors.ErrNotFound) {
		return fmt.Errorf("failed to load chat: %w", err)
	}

	chat = &models.Chat{
		ID:     turn.ID,
		UserID: userID,
		Title:  o.generateTitle(ctx, turn.Message.Content),
	}
	if err := o.chats.Create(ctx, chat); err != nil {
		return fmt.Errorf("failed to create chat: %w", err)
	}
	emit(models.NewChatCreatedEvent(chat))
	return nil
}

// generateTitle asks the title model for a short chat title. Falls back to
// a truncated copy of the message when generation fails.
func (o *Orchestrator) generateTitle(ctx context.Context, firstMessage string) string {
	fallback := truncateRunes(strings.TrimSpace(firstMessage), maxChatTitleChars)

	modelCfg, err := o.resolver.TitleModel()
	if err != nil {
		o.logger.Warn("Title model unavailable", zap.Error(err))
		return fallback
	}

	result, err := modelCfg.Model.StreamCompletion(ctx, &llm.CompletionRequest{
		System:   titleSystemPrompt,
		Messages: []llm.Message{{Role: llm.RoleUser, Content: firstMessage}},
	}, nil)
	if err != nil {
		o.logger.Warn("Title generation failed", zap.Error(err))
		return fallback
	}

	title := strings.TrimSpace(result.Content)
	if title == "" {
		return fallback
	}
	return truncateRunes(title, maxChatTitleChars)
}

func (o *Orchestrator) resolveModel(ctx context.Context, turn *TurnRequest) (*llm.ModelConfig, error) {
	if turn.ModelID != nil {
		return o.resolver.ResolveCustom(ctx, *turn.ModelID, turn.Message.Filter.BucketID)
	}
	return o.resolver.ResolveIndex(turn.ModelIndex)
}

// buildRegistry assembles the tool catalogue for one turn. Web tools need a
// configured provider; modify_document needs an appended document owned by
// the caller.
func (o *Orchestrator) buildRegistry(ctx context.Context, turn *TurnRequest, userID string) *Registry {
	scope := turn.Message.Filter
	registry := NewRegistry(o.logger)

	registry.Register(NewSearchDocumentsTool(o.gate, o.fanout, o.embedder, scope, userID, o.logger))
	registry.Register(NewCreateDocumentTool(o.resolver, o.documents, turn.ID, userID, !turn.IsTemporary, o.logger))
	registry.Register(NewCreateMultipleChoiceTool(o.logger))

	if o.web != nil {
		registry.Register(NewSearchWebTool(o.web, o.logger))
		registry.Register(NewScrapeURLTool(o.web, o.logger))
	}

	if len(scope.DocumentIDs) == 1 {
		doc, err := o.documents.GetByID(ctx, scope.DocumentIDs[0])
		switch {
		case err != nil:
			o.logger.Warn("Appended document not found",
				zap.String("document_id", scope.DocumentIDs[0].String()),
				zap.Error(err))
		case doc.UserID != userID:
			o.logger.Warn("Appended document belongs to another user",
				zap.String("document_id", doc.ID.String()))
		default:
			registry.Register(NewModifyDocumentTool(o.resolver, o.documents, doc, o.logger))
		}
	}

	return registry
}

// buildHistory assembles the model context. Persistent turns replay the
// recent transcript, which already includes the just-saved user message.
func (o *Orchestrator) buildHistory(ctx context.Context, turn *TurnRequest) ([]llm.Message, error) {
	if turn.IsTemporary {
		return []llm.Message{{Role: llm.RoleUser, Content: turn.Message.Content}}, nil
	}

	stored, err := o.messages.ListRecent(ctx, turn.ID, historyWindow)
	if err != nil {
		return nil, fmt.Errorf("failed to load chat history: %w", err)
	}

	history := make([]llm.Message, 0, len(stored))
	for _, m := range stored {
		history = append(history, llm.Message{
			Role:       string(m.Role),
			Content:    m.Content,
			ToolCalls:  m.ToolCalls,
			ToolCallID: m.ToolCallID,
		})
	}
	return history, nil
}

// runToolLoop drives the streamed generation until the model stops calling
// tools or the iteration cap is reached. It returns the messages to persist.
func (o *Orchestrator) runToolLoop(
	ctx context.Context,
	model llm.StreamingModel,
	registry *Registry,
	history []llm.Message,
	chatID uuid.UUID,
	reasoning bool,
	emit EmitFunc,
) ([]*models.ChatMessage, error) {
	var pending []*models.ChatMessage

	for iteration := 0; iteration < maxToolIterations; iteration++ {
		result, err := model.StreamCompletion(ctx, &llm.CompletionRequest{
			System:    standardSystemPrompt,
			Messages:  history,
			Tools:     registry.Definitions(),
			Reasoning: reasoning,
		}, func(text string) {
			emit(models.NewTextEvent(text))
		})
		if err != nil {
			return nil, fmt.Errorf("model stream failed: %w", err)
		}

		assistant := llm.Message{
			Role:      llm.RoleAssistant,
			Content:   result.Content,
			ToolCalls: result.ToolCalls,
		}
		history = append(history, assistant)
		pending = append(pending, &models.ChatMessage{
			ChatID:    chatID,
			Role:      models.ChatRoleAssistant,
			Content:   result.Content,
			ToolCalls: result.ToolCalls,
		})

		if len(result.ToolCalls) == 0 {
			return pending, nil
		}

		for _, call := range result.ToolCalls {
			emit(models.NewToolCallEvent(call))

			outcome := registry.Dispatch(ctx, call, emit)
			emit(models.NewToolResultEvent(call.ID, outcome.ClientResult))

			history = append(history, llm.Message{
				Role:       llm.RoleTool,
				Content:    outcome.ModelResult,
				ToolCallID: call.ID,
			})
			pending = append(pending, &models.ChatMessage{
				ChatID:     chatID,
				Role:       models.ChatRoleTool,
				Content:    outcome.ModelResult,
				ToolCallID: call.ID,
			})
		}
	}

	o.logger.Warn("Tool iteration cap reached", zap.String("chat_id", chatID.String()))
	return pending, nil
}

// SetFavourite marks or unmarks a chat as favourite.
func (o *Orchestrator) SetFavourite(ctx context.Context, chatID uuid.UUID, userID string, favourite bool) error {
	if err := o.requireChatOwner(ctx, chatID, userID); err != nil {
		return err
	}
	return o.chats.SetFavourite(ctx, chatID, favourite)
}

// Rename changes a chat's title.
func (o *Orchestrator) Rename(ctx context.Context, chatID uuid.UUID, userID, title string) error {
	if strings.TrimSpace(title) == "" {
		return fmt.Errorf("%w: title is required", apperrors.ErrBadRequest)
	}
	if err := o.requireChatOwner(ctx, chatID, userID); err != nil {
		return err
	}
	return o.chats.Rename(ctx, chatID, truncateRunes(title, maxChatTitleChars))
}

// Delete removes a chat and its messages. Owner only.
func (o *Orchestrator) Delete(ctx context.Context, chatID uuid.UUID, userID string) error {
	if err := o.requireChatOwner(ctx, chatID, userID); err != nil {
		return err
	}
	return o.chats.Delete(ctx, chatID)
}

// DeleteLastMessage removes the most recent message of a chat.
func (o *Orchestrator) DeleteLastMessage(ctx context.Context, chatID uuid.UUID, userID string) error {
	if err := o.requireChatOwner(ctx, chatID, userID); err != nil {
		return err
	}
	return o.messages.DeleteLast(ctx, chatID)
}

// DeleteTrailing removes the given message and everything after it, used to
// regenerate a conversation from an earlier point.
func (o *Orchestrator) DeleteTrailing(ctx context.Context, messageID uuid.UUID, userID string) error {
	message, ownerID, err := o.messages.GetWithChatOwner(ctx, messageID)
	if err != nil {
		return err
	}
	if ownerID != userID {
		return fmt.Errorf("%w: chat belongs to another user", apperrors.ErrForbidden)
	}
	return o.messages.DeleteFromTimestamp(ctx, message.ChatID, message.CreatedAt)
}

func (o *Orchestrator) requireChatOwner(ctx context.Context, chatID uuid.UUID, userID string) error {
	chat, err := o.chats.GetByID(ctx, chatID)
	if err != nil {
		return err
	}
	if chat.UserID != userID {
		return fmt.Errorf("%w: chat belongs to another user", apperrors.ErrUnauthorized)
	}
	return nil
}
