// Package retrieval implements the multi-strategy document search fanout.
package retrieval

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/studyloop-ai/studyloop-engine/pkg/models"
	"github.com/studyloop-ai/studyloop-engine/pkg/repositories"
)

// Default search parameters.
const (
	DefaultMatchThreshold = 0.4
	DefaultMatchCount     = 4
)

// Query carries the per-strategy inputs of one retrieval request.
// Empty inputs skip their strategy; all empty yields an empty result.
type Query struct {
	// Embedding drives the semantic search when non-empty.
	Embedding []float32
	// Text drives the full-text search when non-empty.
	Text string
	// Pages drives the exact page-number lookup when non-empty.
	Pages []int
}

// IsEmpty reports whether no strategy has input.
func (q Query) IsEmpty() bool {
	return len(q.Embedding) == 0 && q.Text == "" && len(q.Pages) == 0
}

// Options tunes the semantic search.
type Options struct {
	MatchThreshold float64
	MatchCount     int
}

func (o Options) withDefaults() Options {
	if o.MatchThreshold == 0 {
		o.MatchThreshold = DefaultMatchThreshold
	}
	if o.MatchCount == 0 {
		o.MatchCount = DefaultMatchCount
	}
	return o
}

// Fanout runs the sub-searches of a retrieval request concurrently and
// merges their results with semantic > full-text > page precedence.
// One failing sub-search fails the whole call; there are no partial results.
type Fanout struct {
	chunks repositories.ChunkRepository
	logger *zap.Logger
}

// NewFanout creates a new retrieval fanout over the chunk store.
func NewFanout(chunks repositories.ChunkRepository, logger *zap.Logger) *Fanout {
	return &Fanout{
		chunks: chunks,
		logger: logger.Named("retrieval"),
	}
}

// Retrieve executes the fanout. withContent controls whether sources carry
// chunk content or only locator metadata.
func (f *Fanout) Retrieve(ctx context.Context, query Query, scope models.Filter, withContent bool, opts Options) ([]models.DocumentSource, error) {
	if query.IsEmpty() {
		return []models.DocumentSource{}, nil
	}

	opts = opts.withDefaults()
	start := time.Now()

	// Fixed slots keep merge precedence deterministic regardless of
	// completion order: semantic, full-text, page.
	var results [3][]models.DocumentSource

	g, gctx := errgroup.WithContext(ctx)

	if len(query.Embedding) > 0 {
		g.Go(func() error {
			sources, err := f.chunks.SearchByVector(gctx, repositories.VectorQuery{
				Embedding:   query.Embedding,
				Threshold:   opts.MatchThreshold,
				Limit:       opts.MatchCount,
				Scope:       scope,
				WithContent: withContent,
			})
			if err != nil {
				return err
			}
			results[0] = sources
			return nil
		})
	}

	if query.Text != "" {
		g.Go(func() error {
			sources, err := f.chunks.SearchByText(gctx, repositories.TextQuery{
				Query:       query.Text,
				Limit:       DefaultMatchCount,
				Scope:       scope,
				WithContent: withContent,
			})
			if err != nil {
				return err
			}
			results[1] = sources
			return nil
		})
	}

	if len(query.Pages) > 0 {
		g.Go(func() error {
			sources, err := f.chunks.SearchByPage(gctx, repositories.PageQuery{
				Pages:       query.Pages,
				Limit:       DefaultMatchCount,
				Scope:       scope,
				WithContent: withContent,
			})
			if err != nil {
				return err
			}
			results[2] = sources
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := Dedup(results[:])

	f.logger.Debug("Retrieval fanout completed",
		zap.Duration("elapsed", time.Since(start)),
		zap.Int("semantic", len(results[0])),
		zap.Int("fulltext", len(results[1])),
		zap.Int("page", len(results[2])),
		zap.Int("merged", len(merged)))

	return merged, nil
}
