package llm

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/studyloop-ai/studyloop-engine/pkg/apperrors"
	"github.com/studyloop-ai/studyloop-engine/pkg/config"
	"github.com/studyloop-ai/studyloop-engine/pkg/crypto"
	"github.com/studyloop-ai/studyloop-engine/pkg/models"
)

type fakeModelRepo struct {
	model *models.CustomModel
	err   error
}

func (f *fakeModelRepo) GetByID(_ context.Context, _, _ uuid.UUID) (*models.CustomModel, error) {
	return f.model, f.err
}

func strPtr(s string) *string { return &s }

func newTestResolver(t *testing.T, repo *fakeModelRepo) (*Resolver, *crypto.CredentialEncryptor) {
	t.Helper()

	encryptor, err := crypto.NewCredentialEncryptor("resolver-test-passphrase")
	require.NoError(t, err)

	cfg := &config.AIConfig{
		APIKey: "default-key",
		Models: []config.ChatModel{
			{Name: "gpt-4o-mini", Label: "Fast"},
			{Name: "gpt-4o", Label: "Smart", Reasoning: true},
		},
		TitleModelIndex:    0,
		DocumentModelIndex: 1,
	}

	return NewResolver(cfg, repo, encryptor, zap.NewNop()), encryptor
}

func encryptedKey(t *testing.T, enc *crypto.CredentialEncryptor) string {
	t.Helper()
	key, err := enc.Encrypt("sk-custom-key")
	require.NoError(t, err)
	return key
}

func TestResolveIndex(t *testing.T) {
	resolver, _ := newTestResolver(t, &fakeModelRepo{})

	cfg, err := resolver.ResolveIndex(1)
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o", cfg.Model.Name())
	assert.True(t, cfg.Reasoning)
	assert.True(t, cfg.IsDefault)

	_, err = resolver.ResolveIndex(2)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrBadRequest)

	_, err = resolver.ResolveIndex(-1)
	assert.ErrorIs(t, err, apperrors.ErrBadRequest)
}

func TestResolveCustom_VendorInference(t *testing.T) {
	tests := []struct {
		name      string
		modelName string
		resource  *string
		deploy    *string
		wantType  any
		wantName  string
	}{
		{
			name:      "claude prefix selects anthropic",
			modelName: "claude-sonnet-4-0",
			wantType:  (*AnthropicModel)(nil),
			wantName:  "claude-sonnet-4-0",
		},
		{
			name:      "azure with resource and deployment",
			modelName: "azure",
			resource:  strPtr("my-resource"),
			deploy:    strPtr("my-deployment"),
			wantType:  (*OpenAIModel)(nil),
			wantName:  "my-deployment",
		},
		{
			name:      "anything else selects openai",
			modelName: "grok-3",
			wantType:  (*OpenAIModel)(nil),
			wantName:  "grok-3",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &fakeModelRepo{}
			resolver, enc := newTestResolver(t, repo)
			repo.model = &models.CustomModel{
				ID:           uuid.New(),
				ModelName:    tt.modelName,
				ResourceName: tt.resource,
				DeploymentID: tt.deploy,
				APIKey:       encryptedKey(t, enc),
			}

			cfg, err := resolver.ResolveCustom(context.Background(), uuid.New(), uuid.New())
			require.NoError(t, err)
			assert.IsType(t, tt.wantType, cfg.Model)
			assert.Equal(t, tt.wantName, cfg.Model.Name())
			assert.False(t, cfg.IsDefault)
		})
	}
}

func TestResolveCustom_AzureRequiresResourceAndDeployment(t *testing.T) {
	tests := []struct {
		name     string
		resource *string
		deploy   *string
	}{
		{name: "both missing"},
		{name: "missing deployment", resource: strPtr("my-resource")},
		{name: "missing resource", deploy: strPtr("my-deployment")},
		{name: "empty strings", resource: strPtr(""), deploy: strPtr("")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &fakeModelRepo{}
			resolver, enc := newTestResolver(t, repo)
			repo.model = &models.CustomModel{
				ModelName:    "azure",
				ResourceName: tt.resource,
				DeploymentID: tt.deploy,
				APIKey:       encryptedKey(t, enc),
			}

			_, err := resolver.ResolveCustom(context.Background(), uuid.New(), uuid.New())
			require.Error(t, err)
			assert.ErrorIs(t, err, apperrors.ErrConfiguration)
		})
	}
}

func TestResolveCustom_UndecryptableKeyIsConfigurationError(t *testing.T) {
	repo := &fakeModelRepo{
		model: &models.CustomModel{
			ModelName: "gpt-4o",
			APIKey:    "not-a-valid-ciphertext",
		},
	}
	resolver, _ := newTestResolver(t, repo)

	_, err := resolver.ResolveCustom(context.Background(), uuid.New(), uuid.New())

	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrConfiguration)
}

func TestResolveCustom_MissingModelPropagatesNotFound(t *testing.T) {
	repo := &fakeModelRepo{err: apperrors.ErrNotFound}
	resolver, _ := newTestResolver(t, repo)

	_, err := resolver.ResolveCustom(context.Background(), uuid.New(), uuid.New())

	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestTitleAndDocumentModels(t *testing.T) {
	resolver, _ := newTestResolver(t, &fakeModelRepo{})

	title, err := resolver.TitleModel()
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o-mini", title.Model.Name())

	doc, err := resolver.DocumentModel()
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o", doc.Model.Name())
}
