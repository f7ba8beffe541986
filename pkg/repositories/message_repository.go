package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/studyloop-ai/studyloop-engine/pkg/apperrors"
	"github.com/studyloop-ai/studyloop-engine/pkg/database"
	"github.com/studyloop-ai/studyloop-engine/pkg/models"
)

// MessageRepository provides data access for chat messages.
type MessageRepository interface {
	// ListRecent returns up to limit most recent messages in chronological order.
	ListRecent(ctx context.Context, chatID uuid.UUID, limit int) ([]*models.ChatMessage, error)
	// SaveAll persists the given messages in a single transaction.
	SaveAll(ctx context.Context, messages []*models.ChatMessage) error
	// DeleteLast removes the most recent message of the chat.
	DeleteLast(ctx context.Context, chatID uuid.UUID) error
	// DeleteFromTimestamp removes all messages created at or after ts.
	DeleteFromTimestamp(ctx context.Context, chatID uuid.UUID, ts time.Time) error
	// GetWithChatOwner returns a message together with its chat's owner id.
	GetWithChatOwner(ctx context.Context, messageID uuid.UUID) (*models.ChatMessage, string, error)
}

type messageRepository struct {
	db *database.DB
}

// NewMessageRepository creates a new MessageRepository.
func NewMessageRepository(db *database.DB) MessageRepository {
	return &messageRepository{db: db}
}

var _ MessageRepository = (*messageRepository)(nil)

func (r *messageRepository) ListRecent(ctx context.Context, chatID uuid.UUID, limit int) ([]*models.ChatMessage, error) {
	if limit <= 0 {
		limit = 12
	}

	query := `
		SELECT id, chat_id, role, content, tool_calls, tool_call_id, created_at
		FROM messages
		WHERE chat_id = $1
		ORDER BY created_at DESC
		LIMIT $2`

	rows, err := r.db.Query(ctx, query, chatID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer rows.Close()

	messages := make([]*models.ChatMessage, 0)
	for rows.Next() {
		m, err := scanMessageRows(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating messages: %w", err)
	}

	// Reverse to chronological order
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	return messages, nil
}

func (r *messageRepository) SaveAll(ctx context.Context, messages []*models.ChatMessage) error {
	if len(messages) == 0 {
		return nil
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	query := `
		INSERT INTO messages (id, chat_id, role, content, tool_calls, tool_call_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	now := time.Now()
	for i, m := range messages {
		if m.ID == uuid.Nil {
			m.ID = uuid.New()
		}
		if m.CreatedAt.IsZero() {
			// Postgres stores microseconds; stamping the whole batch with
			// time.Now() could collide and make created_at ordering
			// ambiguous for ListRecent and DeleteLast.
			m.CreatedAt = batchTimestamp(now, i)
		}

		var toolCallsJSON []byte
		if m.ToolCalls != nil {
			toolCallsJSON, err = json.Marshal(m.ToolCalls)
			if err != nil {
				return fmt.Errorf("failed to marshal tool_calls: %w", err)
			}
		}

		var toolCallID *string
		if m.ToolCallID != "" {
			toolCallID = &m.ToolCallID
		}

		if _, err := tx.Exec(ctx, query,
			m.ID, m.ChatID, m.Role, m.Content, toolCallsJSON, toolCallID, m.CreatedAt,
		); err != nil {
			return fmt.Errorf("failed to save message: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit messages: %w", err)
	}

	return nil
}

// batchTimestamp spaces the i-th row of a batch one microsecond after its
// predecessor so created_at stays a total order at column precision.
func batchTimestamp(base time.Time, i int) time.Time {
	return base.Add(time.Duration(i) * time.Microsecond)
}

func (r *messageRepository) DeleteLast(ctx context.Context, chatID uuid.UUID) error {
	query := `
		DELETE FROM messages
		WHERE id = (
			SELECT id FROM messages
			WHERE chat_id = $1
			ORDER BY created_at DESC
			LIMIT 1
		)`

	tag, err := r.db.Exec(ctx, query, chatID)
	if err != nil {
		return fmt.Errorf("failed to delete last message: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

func (r *messageRepository) DeleteFromTimestamp(ctx context.Context, chatID uuid.UUID, ts time.Time) error {
	query := `DELETE FROM messages WHERE chat_id = $1 AND created_at >= $2`

	if _, err := r.db.Exec(ctx, query, chatID, ts); err != nil {
		return fmt.Errorf("failed to delete trailing messages: %w", err)
	}

	return nil
}

func (r *messageRepository) GetWithChatOwner(ctx context.Context, messageID uuid.UUID) (*models.ChatMessage, string, error) {
	query := `
		SELECT m.id, m.chat_id, m.role, m.content, m.tool_calls, m.tool_call_id, m.created_at, c.user_id
		FROM messages m
		JOIN chats c ON c.id = m.chat_id
		WHERE m.id = $1`

	var m models.ChatMessage
	var toolCallsJSON []byte
	var toolCallID *string
	var ownerID string

	err := r.db.QueryRow(ctx, query, messageID).Scan(
		&m.ID, &m.ChatID, &m.Role, &m.Content, &toolCallsJSON, &toolCallID, &m.CreatedAt, &ownerID,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, "", apperrors.ErrNotFound
	}
	if err != nil {
		return nil, "", fmt.Errorf("failed to get message: %w", err)
	}

	if toolCallID != nil {
		m.ToolCallID = *toolCallID
	}
	if len(toolCallsJSON) > 0 {
		if err := json.Unmarshal(toolCallsJSON, &m.ToolCalls); err != nil {
			return nil, "", fmt.Errorf("failed to unmarshal tool_calls: %w", err)
		}
	}

	return &m, ownerID, nil
}

func scanMessageRows(rows pgx.Rows) (*models.ChatMessage, error) {
	var m models.ChatMessage
	var toolCallsJSON []byte
	var toolCallID *string

	err := rows.Scan(&m.ID, &m.ChatID, &m.Role, &m.Content, &toolCallsJSON, &toolCallID, &m.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to scan message: %w", err)
	}

	if toolCallID != nil {
		m.ToolCallID = *toolCallID
	}
	if len(toolCallsJSON) > 0 {
		if err := json.Unmarshal(toolCallsJSON, &m.ToolCalls); err != nil {
			return nil, fmt.Errorf("failed to unmarshal tool_calls: %w", err)
		}
	}

	return &m, nil
}
