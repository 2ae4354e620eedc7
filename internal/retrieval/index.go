package retrieval

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/textsplitter"
)

const (
	chunkSize    = 2000
	chunkOverlap = 100

	// TopK passages returned for a query.
	TopK = 5
)

// Index is an in-memory semantic index over one uploaded document.
type Index struct {
	embedder embeddings.Embedder
	chunks   []string
	vectors  [][]float32
}

func BuildIndex(ctx context.Context, embedder embeddings.Embedder, text string) (*Index, error) {
	splitter := textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(chunkSize),
		textsplitter.WithChunkOverlap(chunkOverlap),
	)

	chunks, err := splitter.SplitText(text)
	if err != nil {
		return nil, fmt.Errorf("error splitting document: %w", err)
	}
	if len(chunks) == 0 {
		return nil, fmt.Errorf("document produced no chunks")
	}

	vectors, err := embedder.EmbedDocuments(ctx, chunks)
	if err != nil {
		return nil, fmt.Errorf("error embedding document chunks: %w", err)
	}

	return &Index{embedder: embedder, chunks: chunks, vectors: vectors}, nil
}

// Query returns the top-k most relevant passages joined by blank lines, ready
// to be inlined as prompt context.
func (idx *Index) Query(ctx context.Context, query string, k int) (string, error) {
	queryVec, err := idx.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return "", fmt.Errorf("error embedding query: %w", err)
	}

	type scored struct {
		chunk string
		score float64
	}

	results := make([]scored, len(idx.chunks))
	for i, vec := range idx.vectors {
		results[i] = scored{chunk: idx.chunks[i], score: cosineSimilarity(queryVec, vec)}
	}

	sort.SliceStable(results, func(i, j int) bool { return results[i].score > results[j].score })

	if k > len(results) {
		k = len(results)
	}
	passages := make([]string, k)
	for i := 0; i < k; i++ {
		passages[i] = results[i].chunk
	}
	return strings.Join(passages, "\n\n"), nil
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
