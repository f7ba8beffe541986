package chat

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/studyloop-ai/studyloop-engine/pkg/models"
	"github.com/studyloop-ai/studyloop-engine/pkg/permissions"
	"github.com/studyloop-ai/studyloop-engine/pkg/repositories"
	"github.com/studyloop-ai/studyloop-engine/pkg/retrieval"
	"github.com/studyloop-ai/studyloop-engine/pkg/websearch"
)

type richChunkRepo struct {
	emptyChunkRepo
	vector []models.DocumentSource
	text   []models.DocumentSource
}

func (r richChunkRepo) SearchByVector(_ context.Context, _ repositories.VectorQuery) ([]models.DocumentSource, error) {
	return r.vector, nil
}

func (r richChunkRepo) SearchByText(_ context.Context, _ repositories.TextQuery) ([]models.DocumentSource, error) {
	return r.text, nil
}

func discard(models.ChatEvent) {}

func newSearchTool(membership repositories.MembershipRepository, chunks repositories.ChunkRepository) *SearchDocumentsTool {
	logger := zap.NewNop()
	return NewSearchDocumentsTool(
		permissions.NewGate(nil, membership, time.Hour, logger),
		retrieval.NewFanout(chunks, logger),
		fixedEmbedder{},
		models.Filter{BucketID: uuid.New()},
		"user-1",
		logger,
	)
}

func TestSearchDocumentsTool_FullContentForModelTruncatedForClient(t *testing.T) {
	longContent := strings.Repeat("x", 200)
	chunks := richChunkRepo{
		vector: []models.DocumentSource{{ID: "c1", PageContent: longContent}},
	}
	tool := newSearchTool(openMembership{}, chunks)

	outcome, err := tool.Execute(context.Background(), `{"questions":["What is ATP?"]}`, discard)
	require.NoError(t, err)

	// Model context keeps the full chunk content.
	var modelPayload searchDocumentsResult
	require.NoError(t, json.Unmarshal([]byte(outcome.ModelResult), &modelPayload))
	require.Len(t, modelPayload.DocSources, 1)
	assert.Equal(t, longContent, modelPayload.DocSources[0].PageContent)

	// Client event carries only a short preview.
	clientPayload, ok := outcome.ClientResult.(searchDocumentsResult)
	require.True(t, ok)
	require.Len(t, clientPayload.DocSources, 1)
	assert.Equal(t, strings.Repeat("x", 60)+"...", clientPayload.DocSources[0].PageContent)
}

func TestSearchDocumentsTool_DeniedScope(t *testing.T) {
	tool := newSearchTool(closedMembership{}, emptyChunkRepo{})

	_, err := tool.Execute(context.Background(), `{"keywords":["atp"]}`, discard)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "denied")
}

func TestSearchDocumentsTool_InvalidArguments(t *testing.T) {
	tool := newSearchTool(openMembership{}, emptyChunkRepo{})

	_, err := tool.Execute(context.Background(), `{not json`, discard)

	assert.Error(t, err)
}

func TestSearchDocumentsTool_NoInputsYieldEmptyResult(t *testing.T) {
	tool := newSearchTool(openMembership{}, emptyChunkRepo{})

	outcome, err := tool.Execute(context.Background(), `{}`, discard)

	require.NoError(t, err)
	var payload searchDocumentsResult
	require.NoError(t, json.Unmarshal([]byte(outcome.ModelResult), &payload))
	assert.Empty(t, payload.DocSources)
}

type fakeWebProvider struct {
	results  []websearch.Result
	markdown string
	err      error

	lastQuery string
	lastURL   string
}

func (f *fakeWebProvider) Search(_ context.Context, query string, _ int) ([]websearch.Result, error) {
	f.lastQuery = query
	return f.results, f.err
}

func (f *fakeWebProvider) Scrape(_ context.Context, rawURL string) (string, error) {
	f.lastURL = rawURL
	return f.markdown, f.err
}

func TestSearchWebTool_TruncatesClientMarkdown(t *testing.T) {
	long := strings.Repeat("m", 100)
	provider := &fakeWebProvider{
		results: []websearch.Result{{Title: "ATP", URL: "https://example.com", Content: long}},
	}
	tool := NewSearchWebTool(provider, zap.NewNop())

	outcome, err := tool.Execute(context.Background(), `{"query":"atp synthesis"}`, discard)
	require.NoError(t, err)
	assert.Equal(t, "atp synthesis", provider.lastQuery)

	var modelPayload searchWebResult
	require.NoError(t, json.Unmarshal([]byte(outcome.ModelResult), &modelPayload))
	require.Len(t, modelPayload.WebSources, 1)
	assert.Equal(t, long, modelPayload.WebSources[0].Markdown)
	assert.Equal(t, "web_0", modelPayload.WebSources[0].ID)

	clientPayload, ok := outcome.ClientResult.(searchWebResult)
	require.True(t, ok)
	assert.Equal(t, strings.Repeat("m", 60)+"...", clientPayload.WebSources[0].Markdown)
}

func TestSearchWebTool_RequiresQuery(t *testing.T) {
	tool := NewSearchWebTool(&fakeWebProvider{}, zap.NewNop())

	_, err := tool.Execute(context.Background(), `{"query":"  "}`, discard)

	assert.Error(t, err)
}

func TestScrapeURLTool_RejectsRelativeURL(t *testing.T) {
	tool := NewScrapeURLTool(&fakeWebProvider{}, zap.NewNop())

	_, err := tool.Execute(context.Background(), `{"url":"example.com/page"}`, discard)

	assert.Error(t, err)
}

func TestScrapeURLTool_ReturnsMarkdown(t *testing.T) {
	provider := &fakeWebProvider{markdown: "# Heading\n\nBody"}
	tool := NewScrapeURLTool(provider, zap.NewNop())

	outcome, err := tool.Execute(context.Background(), `{"url":"https://example.com/page"}`, discard)
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/page", provider.lastURL)

	var payload scrapeURLResult
	require.NoError(t, json.Unmarshal([]byte(outcome.ModelResult), &payload))
	assert.Equal(t, "# Heading\n\nBody", payload.Markdown)
}

func TestCreateMultipleChoiceTool(t *testing.T) {
	tool := NewCreateMultipleChoiceTool(zap.NewNop())

	valid := `{
		"question": "Which organelle runs the light reactions?",
		"choice_a": "Chloroplast",
		"choice_b": "Mitochondrion",
		"choice_c": "Nucleus",
		"choice_d": "Ribosome",
		"correct_answer": "a"
	}`
	outcome, err := tool.Execute(context.Background(), valid, discard)
	require.NoError(t, err)

	result, ok := outcome.ClientResult.(createMultipleChoiceResult)
	require.True(t, ok)
	assert.Equal(t, "A", result.Question.CorrectAnswer)
	assert.Equal(t, "Chloroplast", result.Question.ChoiceA)

	_, err = tool.Execute(context.Background(), `{"question":"q","choice_a":"a","choice_b":"b","choice_c":"c","choice_d":"d","correct_answer":"E"}`, discard)
	assert.Error(t, err)

	_, err = tool.Execute(context.Background(), `{"question":"q","choice_a":"a","choice_b":"b","correct_answer":"A"}`, discard)
	assert.Error(t, err)

	// Numeric choice text is accepted as-is.
	outcome, err = tool.Execute(context.Background(), `{"question":"How many ATP per glucose?","choice_a":2,"choice_b":36,"choice_c":100,"choice_d":0,"correct_answer":"B"}`, discard)
	require.NoError(t, err)
	result, ok = outcome.ClientResult.(createMultipleChoiceResult)
	require.True(t, ok)
	assert.Equal(t, "36", result.Question.ChoiceB)
}

func TestCreateDocumentTool_ValidationBeforeExecution(t *testing.T) {
	resolver := &fakeResolver{docModel: &scriptedModel{name: "doc"}}
	documents := newFakeDocumentRepo()
	tool := NewCreateDocumentTool(resolver, documents, uuid.New(), "user-1", true, zap.NewNop())

	tests := []string{
		`{not json`,
		`{"document_title":"t","instructions":"i","kind":"slides"}`,
		`{"document_title":"  ","instructions":"i","kind":"text"}`,
		`{"document_title":"t","instructions":"","kind":"code"}`,
	}
	for _, args := range tests {
		_, err := tool.Execute(context.Background(), args, discard)
		assert.Error(t, err, args)
	}

	assert.Equal(t, 0, resolver.docModel.calls)
	assert.Empty(t, documents.inserted)
}

func TestModifyDocumentTool_UpdatesStoredContent(t *testing.T) {
	resolver := &fakeResolver{docModel: &scriptedModel{
		name: "doc",
		steps: []scriptedStep{
			{deltas: []string{"better ", "content"}},
		},
	}}
	documents := newFakeDocumentRepo()
	docID := uuid.New()
	documents.docs[docID] = &models.Document{
		ID:      docID,
		UserID:  "user-1",
		Title:   "Draft",
		Content: "old content",
		Kind:    models.DocumentKindText,
	}

	tool := NewModifyDocumentTool(resolver, documents, documents.docs[docID], zap.NewNop())

	var artifacts int
	emit := func(ev models.ChatEvent) {
		if ev.Type == models.ChatEventArtifact || ev.Type == models.ChatEventArtifactDelta {
			artifacts++
		}
	}

	outcome, err := tool.Execute(context.Background(), `{"instructions":"improve it"}`, emit)
	require.NoError(t, err)

	assert.Equal(t, "better content", documents.docs[docID].Content)
	assert.Equal(t, 3, artifacts) // one artifact open, two deltas

	result, ok := outcome.ClientResult.(documentToolResult)
	require.True(t, ok)
	assert.Equal(t, docID, result.DocumentID)
}
