package models

import (
	"time"

	"github.com/google/uuid"
)

// CustomModel is a tenant-registered model configuration scoped to a bucket.
// The API key is stored encrypted (AES-256-GCM) and decrypted at resolve time.
// For Azure deployments, ResourceName and DeploymentID must both be set.
type CustomModel struct {
	ID           uuid.UUID `json:"id"`
	BucketID     uuid.UUID `json:"bucket_id"`
	ModelName    string    `json:"model_name"`
	ResourceName *string   `json:"resource_name,omitempty"`
	DeploymentID *string   `json:"deployment_id,omitempty"`
	APIKey       string    `json:"-"` // Encrypted at rest
	CreatedAt    time.Time `json:"created_at"`
}
