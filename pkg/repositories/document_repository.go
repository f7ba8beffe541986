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

// DocumentRepository provides data access for generated document artifacts.
type DocumentRepository interface {
	Insert(ctx context.Context, doc *models.Document) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Document, error)
	UpdateContent(ctx context.Context, id uuid.UUID, content string) error
}

type documentRepository struct {
	db *database.DB
}

// NewDocumentRepository creates a new DocumentRepository.
func NewDocumentRepository(db *database.DB) DocumentRepository {
	return &documentRepository{db: db}
}

var _ DocumentRepository = (*documentRepository)(nil)

func (r *documentRepository) Insert(ctx context.Context, doc *models.Document) error {
	if doc.ID == uuid.Nil {
		doc.ID = uuid.New()
	}
	doc.CreatedAt = time.Now()

	query := `
		INSERT INTO documents (id, chat_id, user_id, title, content, kind, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.db.Exec(ctx, query,
		doc.ID, doc.ChatID, doc.UserID, doc.Title, doc.Content, doc.Kind, doc.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert document: %w", err)
	}

	return nil
}

func (r *documentRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Document, error) {
	query := `
		SELECT id, chat_id, user_id, title, content, kind, created_at
		FROM documents
		WHERE id = $1`

	var d models.Document
	err := r.db.QueryRow(ctx, query, id).Scan(
		&d.ID, &d.ChatID, &d.UserID, &d.Title, &d.Content, &d.Kind, &d.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get document: %w", err)
	}

	return &d, nil
}

func (r *documentRepository) UpdateContent(ctx context.Context, id uuid.UUID, content string) error {
	query := `UPDATE documents SET content = $2 WHERE id = $1`

	tag, err := r.db.Exec(ctx, query, id, content)
	if err != nil {
		return fmt.Errorf("failed to update document: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}
