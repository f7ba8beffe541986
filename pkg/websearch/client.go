// Package websearch provides the external web-search and page-scrape
// collaborator used by the search_web and scrape_url tools.
package websearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"go.uber.org/zap"

	"github.com/studyloop-ai/studyloop-engine/pkg/apperrors"
	"github.com/studyloop-ai/studyloop-engine/pkg/retry"
)

// maxScrapeBody caps how much of a scraped page is read.
const maxScrapeBody = 2 << 20

// Result is a single web search hit.
type Result struct {
	Title   string  `json:"title"`
	URL     string  `json:"url"`
	Content string  `json:"content"`
	Score   float64 `json:"score"`
}

// Provider searches the web and scrapes pages.
type Provider interface {
	Search(ctx context.Context, query string, limit int) ([]Result, error)
	Scrape(ctx context.Context, rawURL string) (string, error)
}

// Client talks to a Tavily-style search API and fetches pages directly,
// converting their HTML to markdown.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	retryCfg   *retry.Config
	logger     *zap.Logger
}

// NewClient creates a web search client.
func NewClient(baseURL, apiKey string, logger *zap.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    baseURL,
		apiKey:     apiKey,
		retryCfg: &retry.Config{
			MaxRetries:   2,
			InitialDelay: 250 * time.Millisecond,
			MaxDelay:     2 * time.Second,
			Multiplier:   2.0,
			JitterFactor: 0.1,
		},
		logger: logger.Named("websearch"),
	}
}

var _ Provider = (*Client)(nil)

type searchRequest struct {
	Query      string `json:"query"`
	MaxResults int    `json:"max_results"`
}

type searchResponse struct {
	Results []Result `json:"results"`
}

// Search runs a web search through the collaborator API. Transient
// upstream failures are retried.
func (c *Client) Search(ctx context.Context, query string, limit int) ([]Result, error) {
	if limit <= 0 {
		limit = 5
	}

	var results []Result
	err := retry.DoIfRetryable(ctx, c.retryCfg, func() error {
		var err error
		results, err = c.search(ctx, query, limit)
		return err
	})
	return results, err
}

func (c *Client) search(ctx context.Context, query string, limit int) ([]Result, error) {
	body, err := json.Marshal(searchRequest{Query: query, MaxResults: limit})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal search request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/search", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: web search failed: %v", apperrors.ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: web search returned status %d", apperrors.ErrUpstream, resp.StatusCode)
	}

	var parsed searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("%w: failed to decode search response: %v", apperrors.ErrUpstream, err)
	}

	c.logger.Debug("Web search completed",
		zap.String("query", query),
		zap.Int("results", len(parsed.Results)))

	return parsed.Results, nil
}

// Scrape fetches a page and converts its HTML to markdown. Transient
// fetch failures are retried; client errors like 404 are not.
func (c *Client) Scrape(ctx context.Context, rawURL string) (string, error) {
	var markdown string
	err := retry.DoIfRetryable(ctx, c.retryCfg, func() error {
		var err error
		markdown, err = c.scrape(ctx, rawURL)
		return err
	})
	return markdown, err
}

func (c *Client) scrape(ctx context.Context, rawURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("%w: invalid url: %v", apperrors.ErrBadRequest, err)
	}
	req.Header.Set("User-Agent", "studyloop-engine/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: scrape failed: %v", apperrors.ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: scrape returned status %d", apperrors.ErrUpstream, resp.StatusCode)
	}

	html, err := io.ReadAll(io.LimitReader(resp.Body, maxScrapeBody))
	if err != nil {
		return "", fmt.Errorf("%w: failed to read page: %v", apperrors.ErrUpstream, err)
	}

	markdown, err := htmltomarkdown.ConvertString(string(html))
	if err != nil {
		return "", fmt.Errorf("failed to convert page to markdown: %w", err)
	}

	c.logger.Debug("Page scraped",
		zap.String("url", rawURL),
		zap.Int("markdown_length", len(markdown)))

	return markdown, nil
}
