package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/studyloop-ai/studyloop-engine/pkg/apperrors"
	"github.com/studyloop-ai/studyloop-engine/pkg/database"
	"github.com/studyloop-ai/studyloop-engine/pkg/models"
)

// ModelRepository provides data access for tenant-registered models.
type ModelRepository interface {
	// GetByID returns the model only when it belongs to the given bucket.
	GetByID(ctx context.Context, id, bucketID uuid.UUID) (*models.CustomModel, error)
}

type modelRepository struct {
	db *database.DB
}

// NewModelRepository creates a new ModelRepository.
func NewModelRepository(db *database.DB) ModelRepository {
	return &modelRepository{db: db}
}

var _ ModelRepository = (*modelRepository)(nil)

func (r *modelRepository) GetByID(ctx context.Context, id, bucketID uuid.UUID) (*models.CustomModel, error) {
	query := `
		SELECT id, bucket_id, model_name, resource_name, deployment_id, api_key, created_at
		FROM models
		WHERE id = $1 AND bucket_id = $2`

	var m models.CustomModel
	err := r.db.QueryRow(ctx, query, id, bucketID).Scan(
		&m.ID, &m.BucketID, &m.ModelName, &m.ResourceName, &m.DeploymentID, &m.APIKey, &m.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get model: %w", err)
	}

	return &m, nil
}
