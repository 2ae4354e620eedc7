package retrieval

import (
	"context"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// markerEmbedder scores texts by how often they mention each marker word, so
// ranking is deterministic without a real embedding model.
type markerEmbedder struct {
	calls atomic.Int64
}

func (e *markerEmbedder) embed(text string) []float32 {
	return []float32{
		float32(strings.Count(text, "ocean")),
		float32(strings.Count(text, "mountain")),
	}
}

func (e *markerEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	e.calls.Add(1)
	vecs := make([][]float32, len(texts))
	for i, text := range texts {
		vecs[i] = e.embed(text)
	}
	return vecs, nil
}

func (e *markerEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return e.embed(text), nil
}

func testDocument() string {
	oceanPara := strings.TrimSpace(strings.Repeat("the ocean waves roll across the blue water ", 40))
	mountainPara := strings.TrimSpace(strings.Repeat("the mountain peaks rise above the snow line ", 40))
	return oceanPara + "\n\n" + mountainPara
}

func TestIndexRanksRelevantChunksFirst(t *testing.T) {
	embedder := &markerEmbedder{}
	index, err := BuildIndex(context.Background(), embedder, testDocument())
	require.NoError(t, err)

	passage, err := index.Query(context.Background(), "tell me about the ocean", 1)
	require.NoError(t, err)
	assert.Contains(t, passage, "ocean")
	assert.NotContains(t, passage, "mountain")

	passage, err = index.Query(context.Background(), "describe the mountain", 1)
	require.NoError(t, err)
	assert.Contains(t, passage, "mountain")
}

func TestQueryCapsKAtChunkCount(t *testing.T) {
	embedder := &markerEmbedder{}
	index, err := BuildIndex(context.Background(), embedder, testDocument())
	require.NoError(t, err)

	passage, err := index.Query(context.Background(), "ocean", TopK)
	require.NoError(t, err)
	assert.NotEmpty(t, passage)
}

func TestBuildIndexRejectsEmptyDocument(t *testing.T) {
	_, err := BuildIndex(context.Background(), &markerEmbedder{}, "")
	assert.Error(t, err)
}

func TestIndexCacheReusesBuiltIndexes(t *testing.T) {
	embedder := &markerEmbedder{}
	cache := NewIndexCache(4)
	uploadId := uuid.New()

	first, err := cache.GetOrBuild(context.Background(), embedder, uploadId, testDocument())
	require.NoError(t, err)
	second, err := cache.GetOrBuild(context.Background(), embedder, uploadId, testDocument())
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, int64(1), embedder.calls.Load())
}

func TestIndexCacheEvictsOldestEntry(t *testing.T) {
	embedder := &markerEmbedder{}
	cache := NewIndexCache(1)

	firstId, secondId := uuid.New(), uuid.New()
	_, err := cache.GetOrBuild(context.Background(), embedder, firstId, testDocument())
	require.NoError(t, err)
	_, err = cache.GetOrBuild(context.Background(), embedder, secondId, testDocument())
	require.NoError(t, err)

	// The first entry was evicted, so it is rebuilt on the next access.
	_, err = cache.GetOrBuild(context.Background(), embedder, firstId, testDocument())
	require.NoError(t, err)
	assert.Equal(t, int64(3), embedder.calls.Load())
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, cosineSimilarity([]float32{1, 0}, []float32{2, 0}), 1e-9)
	assert.InDelta(t, 0.0, cosineSimilarity([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.Equal(t, 0.0, cosineSimilarity([]float32{1}, []float32{1, 2}))
	assert.Equal(t, 0.0, cosineSimilarity(nil, nil))
}
