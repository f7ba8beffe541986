package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"

	"github.com/studyloop-ai/studyloop-engine/pkg/database"
	"github.com/studyloop-ai/studyloop-engine/pkg/models"
)

// MaxPageContentChars caps the content carried on a DocumentSource.
const MaxPageContentChars = 2048

// VectorQuery parameterizes a semantic chunk search.
type VectorQuery struct {
	Embedding   []float32
	Threshold   float64
	Limit       int
	Scope       models.Filter
	WithContent bool
}

// TextQuery parameterizes a full-text chunk search. Query holds the raw
// user words; they are OR-combined into a tsquery.
type TextQuery struct {
	Query       string
	Limit       int
	Scope       models.Filter
	WithContent bool
}

// PageQuery parameterizes an exact page-number lookup.
type PageQuery struct {
	Pages       []int
	Limit       int
	Scope       models.Filter
	WithContent bool
}

// ChunkRepository provides read access to the chunked course material.
type ChunkRepository interface {
	SearchByVector(ctx context.Context, q VectorQuery) ([]models.DocumentSource, error)
	SearchByText(ctx context.Context, q TextQuery) ([]models.DocumentSource, error)
	SearchByPage(ctx context.Context, q PageQuery) ([]models.DocumentSource, error)
}

type chunkRepository struct {
	db *database.DB
}

// NewChunkRepository creates a new ChunkRepository.
func NewChunkRepository(db *database.DB) ChunkRepository {
	return &chunkRepository{db: db}
}

var _ ChunkRepository = (*chunkRepository)(nil)

// FormatTSQuery turns free text into an OR-combined to_tsquery expression.
// "mitochondria atp synthesis" becomes "mitochondria | atp | synthesis".
func FormatTSQuery(raw string) string {
	return strings.Join(strings.Fields(raw), " | ")
}

// scopeClause narrows a chunk query to the filter's files when any are named,
// then to its courses, then to the whole bucket. The returned clause
// references argument $n.
func scopeClause(scope models.Filter, argPos int) (string, any) {
	if len(scope.FileIDs) > 0 {
		return fmt.Sprintf("file_id = ANY($%d)", argPos), scope.FileIDs
	}
	if len(scope.CourseIDs) > 0 {
		return fmt.Sprintf("course_id = ANY($%d)", argPos), scope.CourseIDs
	}
	return fmt.Sprintf("course_id IN (SELECT id FROM courses WHERE bucket_id = $%d)", argPos), scope.BucketID
}

// contentColumn selects truncated chunk content or an empty placeholder.
func contentColumn(withContent bool) string {
	if withContent {
		return fmt.Sprintf("LEFT(content, %d)", MaxPageContentChars)
	}
	return "''"
}

func (r *chunkRepository) SearchByVector(ctx context.Context, q VectorQuery) ([]models.DocumentSource, error) {
	if len(q.Embedding) == 0 {
		return []models.DocumentSource{}, nil
	}

	clause, scopeArg := scopeClause(q.Scope, 4)
	query := fmt.Sprintf(`
		SELECT id, file_id, file_name, course_id, course_name, page_index, bbox, %s
		FROM chunks
		WHERE 1 - (embedding <=> $1) > $2 AND %s
		ORDER BY embedding <=> $1
		LIMIT $3`,
		contentColumn(q.WithContent), clause)

	rows, err := r.db.Query(ctx, query, pgvector.NewVector(q.Embedding), q.Threshold, q.Limit, scopeArg)
	if err != nil {
		return nil, fmt.Errorf("failed to search chunks by vector: %w", err)
	}
	defer rows.Close()

	return scanDocumentSources(rows)
}

func (r *chunkRepository) SearchByText(ctx context.Context, q TextQuery) ([]models.DocumentSource, error) {
	tsquery := FormatTSQuery(q.Query)
	if tsquery == "" {
		return []models.DocumentSource{}, nil
	}

	clause, scopeArg := scopeClause(q.Scope, 3)
	query := fmt.Sprintf(`
		SELECT id, file_id, file_name, course_id, course_name, page_index, bbox, %s
		FROM chunks
		WHERE fts @@ to_tsquery('english', $1) AND %s
		ORDER BY ts_rank(fts, to_tsquery('english', $1)) DESC
		LIMIT $2`,
		contentColumn(q.WithContent), clause)

	rows, err := r.db.Query(ctx, query, tsquery, q.Limit, scopeArg)
	if err != nil {
		return nil, fmt.Errorf("failed to search chunks by text: %w", err)
	}
	defer rows.Close()

	return scanDocumentSources(rows)
}

func (r *chunkRepository) SearchByPage(ctx context.Context, q PageQuery) ([]models.DocumentSource, error) {
	if len(q.Pages) == 0 {
		return []models.DocumentSource{}, nil
	}

	clause, scopeArg := scopeClause(q.Scope, 3)
	query := fmt.Sprintf(`
		SELECT id, file_id, file_name, course_id, course_name, page_index, bbox, %s
		FROM chunks
		WHERE page_number = ANY($1) AND %s
		ORDER BY page_number, page_index
		LIMIT $2`,
		contentColumn(q.WithContent), clause)

	rows, err := r.db.Query(ctx, query, q.Pages, q.Limit, scopeArg)
	if err != nil {
		return nil, fmt.Errorf("failed to search chunks by page: %w", err)
	}
	defer rows.Close()

	return scanDocumentSources(rows)
}

func scanDocumentSources(rows pgx.Rows) ([]models.DocumentSource, error) {
	sources := make([]models.DocumentSource, 0)
	for rows.Next() {
		var s models.DocumentSource
		var id uuid.UUID
		var bboxJSON []byte

		err := rows.Scan(&id, &s.FileID, &s.FileName, &s.CourseID, &s.CourseName,
			&s.PageIndex, &bboxJSON, &s.PageContent)
		if err != nil {
			return nil, fmt.Errorf("failed to scan chunk: %w", err)
		}
		s.ID = id.String()

		if len(bboxJSON) > 0 {
			var bbox [4]float64
			if err := json.Unmarshal(bboxJSON, &bbox); err != nil {
				return nil, fmt.Errorf("failed to unmarshal bbox: %w", err)
			}
			s.BBox = &bbox
		}

		sources = append(sources, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating chunks: %w", err)
	}

	return sources, nil
}
