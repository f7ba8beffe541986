package retrieval

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/studyloop-ai/studyloop-engine/pkg/models"
	"github.com/studyloop-ai/studyloop-engine/pkg/repositories"
)

type fakeChunkRepo struct {
	vectorResults []models.DocumentSource
	vectorErr     error
	textResults   []models.DocumentSource
	textErr       error
	pageResults   []models.DocumentSource
	pageErr       error

	calls atomic.Int32

	lastVectorQuery repositories.VectorQuery
}

func (f *fakeChunkRepo) SearchByVector(_ context.Context, q repositories.VectorQuery) ([]models.DocumentSource, error) {
	f.calls.Add(1)
	f.lastVectorQuery = q
	return f.vectorResults, f.vectorErr
}

func (f *fakeChunkRepo) SearchByText(_ context.Context, q repositories.TextQuery) ([]models.DocumentSource, error) {
	f.calls.Add(1)
	return f.textResults, f.textErr
}

func (f *fakeChunkRepo) SearchByPage(_ context.Context, q repositories.PageQuery) ([]models.DocumentSource, error) {
	f.calls.Add(1)
	return f.pageResults, f.pageErr
}

func testScope() models.Filter {
	return models.Filter{BucketID: uuid.New()}
}

func TestFanout_EmptyQueryReturnsEmptyWithoutSearching(t *testing.T) {
	repo := &fakeChunkRepo{}
	fanout := NewFanout(repo, zap.NewNop())

	sources, err := fanout.Retrieve(context.Background(), Query{}, testScope(), true, Options{})

	require.NoError(t, err)
	assert.Empty(t, sources)
	assert.NotNil(t, sources)
	assert.Equal(t, int32(0), repo.calls.Load())
}

func TestFanout_OnlyNonEmptyStrategiesRun(t *testing.T) {
	repo := &fakeChunkRepo{
		textResults: []models.DocumentSource{src("t1")},
	}
	fanout := NewFanout(repo, zap.NewNop())

	sources, err := fanout.Retrieve(context.Background(), Query{Text: "photosynthesis"}, testScope(), true, Options{})

	require.NoError(t, err)
	assert.Equal(t, int32(1), repo.calls.Load())
	require.Len(t, sources, 1)
	assert.Equal(t, "t1", sources[0].ID)
}

func TestFanout_MergePrecedenceSemanticFirst(t *testing.T) {
	repo := &fakeChunkRepo{
		vectorResults: []models.DocumentSource{{ID: "shared", FileName: "semantic"}, src("v2")},
		textResults:   []models.DocumentSource{{ID: "shared", FileName: "fulltext"}, src("t2")},
		pageResults:   []models.DocumentSource{src("p1")},
	}
	fanout := NewFanout(repo, zap.NewNop())

	query := Query{
		Embedding: []float32{0.1, 0.2},
		Text:      "photosynthesis",
		Pages:     []int{3},
	}
	sources, err := fanout.Retrieve(context.Background(), query, testScope(), true, Options{})

	require.NoError(t, err)
	ids := make([]string, len(sources))
	for i, s := range sources {
		ids[i] = s.ID
	}
	assert.Equal(t, []string{"shared", "v2", "t2", "p1"}, ids)
	assert.Equal(t, "semantic", sources[0].FileName)
}

func TestFanout_OneFailureFailsTheWholeCall(t *testing.T) {
	repo := &fakeChunkRepo{
		vectorResults: []models.DocumentSource{src("v1")},
		textErr:       errors.New("fts index unavailable"),
	}
	fanout := NewFanout(repo, zap.NewNop())

	query := Query{Embedding: []float32{0.1}, Text: "photosynthesis"}
	sources, err := fanout.Retrieve(context.Background(), query, testScope(), true, Options{})

	require.Error(t, err)
	assert.Nil(t, sources)
}

func TestFanout_DefaultsApplied(t *testing.T) {
	repo := &fakeChunkRepo{}
	fanout := NewFanout(repo, zap.NewNop())

	_, err := fanout.Retrieve(context.Background(), Query{Embedding: []float32{0.5}}, testScope(), false, Options{})

	require.NoError(t, err)
	assert.Equal(t, DefaultMatchThreshold, repo.lastVectorQuery.Threshold)
	assert.Equal(t, DefaultMatchCount, repo.lastVectorQuery.Limit)
	assert.False(t, repo.lastVectorQuery.WithContent)
}
