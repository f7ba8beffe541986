package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/studyloop-ai/studyloop-engine/pkg/models"
	"github.com/studyloop-ai/studyloop-engine/pkg/permissions"
	"github.com/studyloop-ai/studyloop-engine/pkg/repositories"
	"github.com/studyloop-ai/studyloop-engine/pkg/retrieval"
)

type stubMembership struct {
	member bool
}

func (s *stubMembership) IsBucketMember(_ context.Context, _ string, _ uuid.UUID) (bool, error) {
	return s.member, nil
}

func (s *stubMembership) FileCourses(_ context.Context, _ []uuid.UUID) ([]repositories.FileCourse, error) {
	return nil, nil
}

func (s *stubMembership) CountCoursesInBucket(_ context.Context, _ uuid.UUID, courseIDs []uuid.UUID) (int, error) {
	return len(courseIDs), nil
}

type stubChunkRepo struct {
	vectorHits []models.DocumentSource
	textHits   []models.DocumentSource
}

func (s *stubChunkRepo) SearchByVector(_ context.Context, _ repositories.VectorQuery) ([]models.DocumentSource, error) {
	return s.vectorHits, nil
}

func (s *stubChunkRepo) SearchByText(_ context.Context, _ repositories.TextQuery) ([]models.DocumentSource, error) {
	return s.textHits, nil
}

func (s *stubChunkRepo) SearchByPage(_ context.Context, _ repositories.PageQuery) ([]models.DocumentSource, error) {
	return nil, nil
}

type stubEmbedder struct{}

func (stubEmbedder) Embed(_ context.Context, _ string) ([]float32, error) {
	return []float32{0.1, 0.2}, nil
}

func newSearchMux(member bool, chunks *stubChunkRepo) *http.ServeMux {
	logger := zap.NewNop()
	gate := permissions.NewGate(nil, &stubMembership{member: member}, 0, logger)
	fanout := retrieval.NewFanout(chunks, logger)
	mux := http.NewServeMux()
	NewSearchHandler(gate, stubEmbedder{}, fanout, logger).RegisterRoutes(mux)
	return mux
}

func searchBody(t *testing.T, fts bool) string {
	t.Helper()
	data, err := json.Marshal(SearchRequest{Filter: models.Filter{BucketID: uuid.New()}, FTS: fts})
	require.NoError(t, err)
	return string(data)
}

func TestSearch_SemanticHappyPath(t *testing.T) {
	chunks := &stubChunkRepo{vectorHits: []models.DocumentSource{
		{ID: "c1", FileName: "bio.pdf", PageIndex: 3},
	}}
	mux := newSearchMux(true, chunks)

	req := httptest.NewRequest(http.MethodPost, "/search/photosynthesis", strings.NewReader(searchBody(t, false)))
	req.Header.Set(userIDHeader, "user-1")
	rec := httptest.NewRecorder()

	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp SearchResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Total)
	require.Len(t, resp.Sources, 1)
	assert.Equal(t, "bio.pdf", resp.Sources[0].FileName)
	assert.Empty(t, resp.Sources[0].PageContent, "locator responses carry no content")
}

func TestSearch_FullTextPath(t *testing.T) {
	chunks := &stubChunkRepo{
		vectorHits: []models.DocumentSource{{ID: "sem"}},
		textHits:   []models.DocumentSource{{ID: "fts", FileName: "notes.pdf"}},
	}
	mux := newSearchMux(true, chunks)

	req := httptest.NewRequest(http.MethodPost, "/search/mitochondria", strings.NewReader(searchBody(t, true)))
	req.Header.Set(userIDHeader, "user-1")
	rec := httptest.NewRecorder()

	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp SearchResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Sources, 1)
	assert.Equal(t, "fts", resp.Sources[0].ID)
}

func TestSearch_DeniedScope(t *testing.T) {
	mux := newSearchMux(false, &stubChunkRepo{})

	req := httptest.NewRequest(http.MethodPost, "/search/anything", strings.NewReader(searchBody(t, false)))
	req.Header.Set(userIDHeader, "user-1")
	rec := httptest.NewRecorder()

	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), "forbidden")
}

func TestSearch_InvalidFilter(t *testing.T) {
	mux := newSearchMux(true, &stubChunkRepo{})

	body := fmt.Sprintf(`{"filter":{"bucket_id":%q}}`, uuid.Nil)
	req := httptest.NewRequest(http.MethodPost, "/search/query", strings.NewReader(body))
	req.Header.Set(userIDHeader, "user-1")
	rec := httptest.NewRecorder()

	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSearch_MissingIdentity(t *testing.T) {
	mux := newSearchMux(true, &stubChunkRepo{})

	req := httptest.NewRequest(http.MethodPost, "/search/query", strings.NewReader(searchBody(t, false)))
	rec := httptest.NewRecorder()

	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
