package websearch

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/studyloop-ai/studyloop-engine/pkg/apperrors"
)

func TestSearch(t *testing.T) {
	var gotAuth string
	var gotBody searchRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/search", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		_ = json.NewEncoder(w).Encode(searchResponse{Results: []Result{
			{Title: "ATP synthase", URL: "https://example.com/atp", Content: "rotary enzyme", Score: 0.92},
		}})
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-key", zap.NewNop())

	results, err := client.Search(context.Background(), "atp synthase", 3)
	require.NoError(t, err)

	assert.Equal(t, "Bearer test-key", gotAuth)
	assert.Equal(t, "atp synthase", gotBody.Query)
	assert.Equal(t, 3, gotBody.MaxResults)
	require.Len(t, results, 1)
	assert.Equal(t, "ATP synthase", results[0].Title)
}

func TestSearch_DefaultLimit(t *testing.T) {
	var gotBody searchRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		_ = json.NewEncoder(w).Encode(searchResponse{})
	}))
	defer server.Close()

	client := NewClient(server.URL, "k", zap.NewNop())

	_, err := client.Search(context.Background(), "q", 0)
	require.NoError(t, err)
	assert.Equal(t, 5, gotBody.MaxResults)
}

func TestSearch_UpstreamFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewClient(server.URL, "k", zap.NewNop())

	_, err := client.Search(context.Background(), "q", 5)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrUpstream)
}

func TestScrape_ConvertsHTMLToMarkdown(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "studyloop-engine/1.0", r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html><body><h1>Title</h1><p>Some <strong>bold</strong> text.</p></body></html>"))
	}))
	defer server.Close()

	client := NewClient(server.URL, "k", zap.NewNop())

	markdown, err := client.Scrape(context.Background(), server.URL)
	require.NoError(t, err)

	assert.Contains(t, markdown, "# Title")
	assert.Contains(t, markdown, "**bold**")
}

func TestScrape_NonOKStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := NewClient(server.URL, "k", zap.NewNop())

	_, err := client.Scrape(context.Background(), server.URL+"/missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrUpstream)
}
