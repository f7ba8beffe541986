package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/studyloop-ai/studyloop-engine/pkg/apperrors"
	"github.com/studyloop-ai/studyloop-engine/pkg/database"
	"github.com/studyloop-ai/studyloop-engine/pkg/models"
)

// ChatRepository provides data access for chats.
type ChatRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Chat, error)
	Create(ctx context.Context, chat *models.Chat) error
	SetFavourite(ctx context.Context, id uuid.UUID, favourite bool) error
	Rename(ctx context.Context, id uuid.UUID, title string) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type chatRepository struct {
	db *database.DB
}

// NewChatRepository creates a new ChatRepository.
func NewChatRepository(db *database.DB) ChatRepository {
	return &chatRepository{db: db}
}

var _ ChatRepository = (*chatRepository)(nil)

func (r *chatRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Chat, error) {
	query := `
		SELECT id, user_id, title, is_favourite, created_at
		FROM chats
		WHERE id = $1`

	var c models.Chat
	err := r.db.QueryRow(ctx, query, id).Scan(&c.ID, &c.UserID, &c.Title, &c.IsFavourite, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get chat: %w", err)
	}

	return &c, nil
}

func (r *chatRepository) Create(ctx context.Context, chat *models.Chat) error {
	if chat.ID == uuid.Nil {
		chat.ID = uuid.New()
	}
	chat.CreatedAt = time.Now()

	query := `
		INSERT INTO chats (id, user_id, title, is_favourite, created_at)
		VALUES ($1, $2, $3, $4, $5)`

	_, err := r.db.Exec(ctx, query, chat.ID, chat.UserID, chat.Title, chat.IsFavourite, chat.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create chat: %w", err)
	}

	return nil
}

func (r *chatRepository) SetFavourite(ctx context.Context, id uuid.UUID, favourite bool) error {
	query := `UPDATE chats SET is_favourite = $2 WHERE id = $1`

	tag, err := r.db.Exec(ctx, query, id, favourite)
	if err != nil {
		return fmt.Errorf("failed to update chat favourite: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

func (r *chatRepository) Rename(ctx context.Context, id uuid.UUID, title string) error {
	query := `UPDATE chats SET title = $2 WHERE id = $1`

	tag, err := r.db.Exec(ctx, query, id, title)
	if err != nil {
		return fmt.Errorf("failed to rename chat: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

func (r *chatRepository) Delete(ctx context.Context, id uuid.UUID) error {
	query := `DELETE FROM chats WHERE id = $1`

	tag, err := r.db.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete chat: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}
