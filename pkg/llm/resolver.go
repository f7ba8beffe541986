package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/studyloop-ai/studyloop-engine/pkg/apperrors"
	"github.com/studyloop-ai/studyloop-engine/pkg/config"
	"github.com/studyloop-ai/studyloop-engine/pkg/crypto"
	"github.com/studyloop-ai/studyloop-engine/pkg/repositories"
)

// ModelConfig is a resolved, ready-to-call model.
type ModelConfig struct {
	Model     StreamingModel
	Reasoning bool
	IsDefault bool
}

// Resolver maps a model selection to a configured provider. Built-in
// selections index into the configured catalogue and use the default
// OpenAI-compatible endpoint. Custom selections load a bucket-scoped model
// record, decrypt its API key and infer the vendor from the model name:
// exact "azure" takes the Azure branch (resource + deployment required),
// a "claude" prefix takes Anthropic, anything else OpenAI.
type Resolver struct {
	cfg       *config.AIConfig
	modelRepo repositories.ModelRepository
	encryptor *crypto.CredentialEncryptor
	logger    *zap.Logger
}

// NewResolver creates a new model resolver.
func NewResolver(cfg *config.AIConfig, modelRepo repositories.ModelRepository, encryptor *crypto.CredentialEncryptor, logger *zap.Logger) *Resolver {
	return &Resolver{
		cfg:       cfg,
		modelRepo: modelRepo,
		encryptor: encryptor,
		logger:    logger.Named("model-resolver"),
	}
}

// ResolveIndex resolves a catalogue model by index.
func (r *Resolver) ResolveIndex(index int) (*ModelConfig, error) {
	if index < 0 || index >= len(r.cfg.Models) {
		return nil, fmt.Errorf("%w: model index %d out of range", apperrors.ErrBadRequest, index)
	}

	entry := r.cfg.Models[index]
	return &ModelConfig{
		Model:     NewOpenAIModel(r.cfg.APIKey, r.cfg.BaseURL, entry.Name, r.logger),
		Reasoning: entry.Reasoning,
		IsDefault: true,
	}, nil
}

// ResolveCustom resolves a tenant-registered model scoped to a bucket.
func (r *Resolver) ResolveCustom(ctx context.Context, modelID, bucketID uuid.UUID) (*ModelConfig, error) {
	record, err := r.modelRepo.GetByID(ctx, modelID, bucketID)
	if err != nil {
		return nil, err
	}

	apiKey, err := r.encryptor.Decrypt(record.APIKey)
	if err != nil {
		r.logger.Error("Failed to decrypt model API key",
			zap.String("model_id", modelID.String()),
			zap.Error(err))
		return nil, fmt.Errorf("%w: model credentials undecryptable: %v", apperrors.ErrConfiguration, err)
	}

	switch {
	case record.ModelName == "azure":
		if record.ResourceName == nil || *record.ResourceName == "" ||
			record.DeploymentID == nil || *record.DeploymentID == "" {
			r.logger.Error("Azure model missing resource or deployment",
				zap.String("model_id", modelID.String()))
			return nil, fmt.Errorf("%w: azure model requires resource_name and deployment_id", apperrors.ErrConfiguration)
		}
		return &ModelConfig{
			Model: NewAzureModel(apiKey, *record.ResourceName, *record.DeploymentID, r.logger),
		}, nil

	case strings.HasPrefix(record.ModelName, "claude"):
		return &ModelConfig{
			Model: NewAnthropicModel(apiKey, record.ModelName, r.logger),
		}, nil

	default:
		return &ModelConfig{
			Model: NewOpenAIModel(apiKey, "", record.ModelName, r.logger),
		}, nil
	}
}

// TitleModel returns the catalogue model used for chat title generation.
func (r *Resolver) TitleModel() (*ModelConfig, error) {
	return r.ResolveIndex(r.cfg.TitleModelIndex)
}

// DocumentModel returns the catalogue model used for document generation.
func (r *Resolver) DocumentModel() (*ModelConfig, error) {
	return r.ResolveIndex(r.cfg.DocumentModelIndex)
}
