package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/studyloop-ai/studyloop-engine/pkg/llm"
	"github.com/studyloop-ai/studyloop-engine/pkg/models"
	"github.com/studyloop-ai/studyloop-engine/pkg/permissions"
	"github.com/studyloop-ai/studyloop-engine/pkg/retrieval"
)

// clientSnippetChars caps bulk tool content on client-bound events.
// The model context keeps the full payload; tool results streamed to the
// client carry only a short preview.
const clientSnippetChars = 60

// SearchDocumentsTool retrieves course material through the permission
// gate and the retrieval fanout, scoped to the turn's filter.
type SearchDocumentsTool struct {
	gate     *permissions.Gate
	fanout   *retrieval.Fanout
	embedder llm.EmbeddingProvider
	scope    models.Filter
	userID   string
	logger   *zap.Logger
}

// NewSearchDocumentsTool creates the search_documents executor for one turn.
func NewSearchDocumentsTool(gate *permissions.Gate, fanout *retrieval.Fanout, embedder llm.EmbeddingProvider, scope models.Filter, userID string, logger *zap.Logger) *SearchDocumentsTool {
	return &SearchDocumentsTool{
		gate:     gate,
		fanout:   fanout,
		embedder: embedder,
		scope:    scope,
		userID:   userID,
		logger:   logger.Named("search-documents"),
	}
}

var _ Executor = (*SearchDocumentsTool)(nil)

// Definition returns the tool definition.
func (t *SearchDocumentsTool) Definition() llm.ToolDefinition {
	return llm.NewToolDefinition(
		"search_documents",
		"Retrieves document sources from the course material based on keywords, questions and page numbers",
		map[string]llm.ParameterProperty{
			"keywords": {
				Type:        "array",
				Items:       "string",
				Description: "Keywords for full-text search",
			},
			"questions": {
				Type:        "array",
				Items:       "string",
				Description: "Questions for semantic search",
			},
			"page_numbers": {
				Type:        "array",
				Items:       "integer",
				Description: "Exact page numbers to look up",
			},
		},
		[]string{},
	)
}

type searchDocumentsArgs struct {
	Keywords    []string `json:"keywords"`
	Questions   []string `json:"questions"`
	PageNumbers []int    `json:"page_numbers"`
}

type searchDocumentsResult struct {
	DocSources []models.DocumentSource `json:"doc_sources"`
}

// Execute runs the permission-gated retrieval fanout.
func (t *SearchDocumentsTool) Execute(ctx context.Context, arguments string, emit EmitFunc) (*ToolOutcome, error) {
	var args searchDocumentsArgs
	if err := json.Unmarshal([]byte(arguments), &args); err != nil {
		return nil, fmt.Errorf("invalid arguments: %w", err)
	}

	allowed, err := t.gate.Authorize(ctx, t.userID, t.scope)
	if err != nil {
		return nil, fmt.Errorf("permission check failed: %w", err)
	}
	if !allowed {
		return nil, fmt.Errorf("access to the requested scope is denied")
	}

	query := retrieval.Query{
		Text:  strings.Join(args.Keywords, " "),
		Pages: args.PageNumbers,
	}
	if len(args.Questions) > 0 {
		embedding, err := t.embedder.Embed(ctx, strings.Join(args.Questions, " "))
		if err != nil {
			return nil, fmt.Errorf("failed to embed questions: %w", err)
		}
		query.Embedding = embedding
	}

	// Content always retrieved here; it is model context.
	sources, err := t.fanout.Retrieve(ctx, query, t.scope, true, retrieval.Options{})
	if err != nil {
		return nil, fmt.Errorf("document search failed: %w", err)
	}

	t.logger.Debug("Retrieved document sources", zap.Int("count", len(sources)))

	modelResult, err := json.Marshal(searchDocumentsResult{DocSources: sources})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal search result: %w", err)
	}

	return &ToolOutcome{
		ModelResult:  string(modelResult),
		ClientResult: searchDocumentsResult{DocSources: truncateSources(sources)},
	}, nil
}

// truncateSources trims page content for client-bound events while keeping
// the source locators intact.
func truncateSources(sources []models.DocumentSource) []models.DocumentSource {
	truncated := make([]models.DocumentSource, len(sources))
	for i, s := range sources {
		s.PageContent = truncateRunes(s.PageContent, clientSnippetChars)
		truncated[i] = s
	}
	return truncated
}

// truncateRunes shortens s to at most n runes, appending "..." when cut.
func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
