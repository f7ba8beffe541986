package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/studyloop-ai/studyloop-engine/pkg/llm"
	"github.com/studyloop-ai/studyloop-engine/pkg/websearch"
)

// WebSource is one web hit as surfaced to the model and client.
type WebSource struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	URL      string `json:"url"`
	Markdown string `json:"markdown"`
}

// SearchWebTool searches the open web through the collaborator API.
type SearchWebTool struct {
	provider websearch.Provider
	logger   *zap.Logger
}

// NewSearchWebTool creates the search_web executor.
func NewSearchWebTool(provider websearch.Provider, logger *zap.Logger) *SearchWebTool {
	return &SearchWebTool{
		provider: provider,
		logger:   logger.Named("search-web"),
	}
}

var _ Executor = (*SearchWebTool)(nil)

// Definition returns the tool definition.
func (t *SearchWebTool) Definition() llm.ToolDefinition {
	return llm.NewToolDefinition(
		"search_web",
		"Searches the web and returns page snippets with their URLs",
		map[string]llm.ParameterProperty{
			"query": {
				Type:        "string",
				Description: "The search query",
			},
		},
		[]string{"query"},
	)
}

type searchWebArgs struct {
	Query string `json:"query"`
}

type searchWebResult struct {
	WebSources []WebSource `json:"web_sources"`
}

// Execute runs the web search.
func (t *SearchWebTool) Execute(ctx context.Context, arguments string, _ EmitFunc) (*ToolOutcome, error) {
	var args searchWebArgs
	if err := json.Unmarshal([]byte(arguments), &args); err != nil {
		return nil, fmt.Errorf("invalid arguments: %w", err)
	}
	if strings.TrimSpace(args.Query) == "" {
		return nil, fmt.Errorf("query is required")
	}

	results, err := t.provider.Search(ctx, args.Query, 5)
	if err != nil {
		return nil, fmt.Errorf("web search failed: %w", err)
	}

	sources := make([]WebSource, len(results))
	for i, r := range results {
		sources[i] = WebSource{
			ID:       fmt.Sprintf("web_%d", i),
			Title:    r.Title,
			URL:      r.URL,
			Markdown: r.Content,
		}
	}

	t.logger.Debug("Web search completed",
		zap.String("query", args.Query),
		zap.Int("results", len(sources)))

	modelResult, err := json.Marshal(searchWebResult{WebSources: sources})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal web result: %w", err)
	}

	clientSources := make([]WebSource, len(sources))
	for i, s := range sources {
		s.Markdown = truncateRunes(s.Markdown, clientSnippetChars)
		clientSources[i] = s
	}

	return &ToolOutcome{
		ModelResult:  string(modelResult),
		ClientResult: searchWebResult{WebSources: clientSources},
	}, nil
}

// ScrapeURLTool fetches one page and returns it as markdown.
type ScrapeURLTool struct {
	provider websearch.Provider
	logger   *zap.Logger
}

// NewScrapeURLTool creates the scrape_url executor.
func NewScrapeURLTool(provider websearch.Provider, logger *zap.Logger) *ScrapeURLTool {
	return &ScrapeURLTool{
		provider: provider,
		logger:   logger.Named("scrape-url"),
	}
}

var _ Executor = (*ScrapeURLTool)(nil)

// Definition returns the tool definition.
func (t *ScrapeURLTool) Definition() llm.ToolDefinition {
	return llm.NewToolDefinition(
		"scrape_url",
		"Fetches a web page and returns its content as markdown",
		map[string]llm.ParameterProperty{
			"url": {
				Type:        "string",
				Description: "The URL to fetch",
			},
		},
		[]string{"url"},
	)
}

type scrapeURLArgs struct {
	URL string `json:"url"`
}

type scrapeURLResult struct {
	URL      string `json:"url"`
	Markdown string `json:"markdown"`
}

// Execute fetches and converts the page.
func (t *ScrapeURLTool) Execute(ctx context.Context, arguments string, _ EmitFunc) (*ToolOutcome, error) {
	var args scrapeURLArgs
	if err := json.Unmarshal([]byte(arguments), &args); err != nil {
		return nil, fmt.Errorf("invalid arguments: %w", err)
	}
	if !strings.HasPrefix(args.URL, "http://") && !strings.HasPrefix(args.URL, "https://") {
		return nil, fmt.Errorf("url must be absolute http(s)")
	}

	markdown, err := t.provider.Scrape(ctx, args.URL)
	if err != nil {
		return nil, fmt.Errorf("scrape failed: %w", err)
	}

	t.logger.Debug("Page scraped",
		zap.String("url", args.URL),
		zap.Int("markdown_length", len(markdown)))

	modelResult, err := json.Marshal(scrapeURLResult{URL: args.URL, Markdown: markdown})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal scrape result: %w", err)
	}

	return &ToolOutcome{
		ModelResult:  string(modelResult),
		ClientResult: scrapeURLResult{URL: args.URL, Markdown: truncateRunes(markdown, clientSnippetChars)},
	}, nil
}
