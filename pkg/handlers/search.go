package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/studyloop-ai/studyloop-engine/pkg/llm"
	"github.com/studyloop-ai/studyloop-engine/pkg/models"
	"github.com/studyloop-ai/studyloop-engine/pkg/permissions"
	"github.com/studyloop-ai/studyloop-engine/pkg/retrieval"
)

// SearchRequest for POST /search/{query}.
type SearchRequest struct {
	Filter models.Filter `json:"filter"`
	// FTS selects lexical search instead of semantic search.
	FTS bool `json:"fts"`
}

// SearchResponse for POST /search/{query}.
type SearchResponse struct {
	Sources []models.DocumentSource `json:"sources"`
	Total   int                     `json:"total"`
}

// SearchHandler exposes direct corpus search outside a chat turn, used by
// the find-in-documents UI.
type SearchHandler struct {
	gate     *permissions.Gate
	embedder llm.EmbeddingProvider
	fanout   *retrieval.Fanout
	logger   *zap.Logger
}

// NewSearchHandler creates a new search handler.
func NewSearchHandler(gate *permissions.Gate, embedder llm.EmbeddingProvider, fanout *retrieval.Fanout, logger *zap.Logger) *SearchHandler {
	return &SearchHandler{
		gate:     gate,
		embedder: embedder,
		fanout:   fanout,
		logger:   logger,
	}
}

// RegisterRoutes registers the search handler's routes on the given mux.
func (h *SearchHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /search/{query}", h.Search)
}

// Search handles POST /search/{query}.
// Returns source locators without chunk content; the client fetches pages
// itself.
func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	userID, ok := RequireUser(w, r, h.logger)
	if !ok {
		return
	}

	queryText := strings.TrimSpace(r.PathValue("query"))
	if queryText == "" {
		if err := ErrorResponse(w, http.StatusBadRequest, "missing_query", "Search query is required"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	var req SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}
	if err := req.Filter.Validate(); err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_filter", err.Error()); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	allowed, err := h.gate.Authorize(r.Context(), userID, req.Filter)
	if err != nil {
		h.logger.Error("Permission check failed", zap.Error(err))
		if err := ErrorResponse(w, http.StatusInternalServerError, "internal_error", "Permission check failed"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}
	if !allowed {
		if err := ErrorResponse(w, http.StatusForbidden, "forbidden", "No access to the requested scope"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	var query retrieval.Query
	if req.FTS {
		query.Text = queryText
	} else {
		embedding, err := h.embedder.Embed(r.Context(), queryText)
		if err != nil {
			h.logger.Error("Failed to embed search query", zap.Error(err))
			if err := ErrorResponse(w, http.StatusInternalServerError, "upstream_error", "Failed to embed search query"); err != nil {
				h.logger.Error("Failed to write error response", zap.Error(err))
			}
			return
		}
		query.Embedding = embedding
	}

	sources, err := h.fanout.Retrieve(r.Context(), query, req.Filter, false, retrieval.Options{})
	if err != nil {
		h.logger.Error("Search failed", zap.Error(err))
		if err := ErrorResponse(w, http.StatusInternalServerError, "upstream_error", "Search failed"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	response := SearchResponse{Sources: sources, Total: len(sources)}
	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}
