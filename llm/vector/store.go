package vector

import (
	"context"
	"math"

	"github.com/Data-Day-Solutions/bookworm-backend/llm"
)

// Entry is a chunk together with its embedding, as written to a store.
type Entry struct {
	Chunk  llm.Chunk
	Vector []float32
}

// Key returns the storage key of the entry.
func (e Entry) Key() string {
	return e.Chunk.Key()
}

// Hit is a stored chunk matched by a similarity query.
type Hit struct {
	Chunk llm.Chunk
	Score float32 // Cosine similarity clamped to [0,1]
}

// VectorStore defines the interface for vector storage operations
type VectorStore interface {
	// Upsert writes entries keyed by Entry.Key, replacing existing ones.
	Upsert(ctx context.Context, entries []Entry) error

	// Query returns at most k hits ordered by descending similarity
	Query(ctx context.Context, vector []float32, k int) ([]Hit, error)

	// DeleteByISBN removes every chunk of a book and reports how many went
	DeleteByISBN(ctx context.Context, isbn string) (int, error)

	// CountByISBN returns how many chunks of a book are stored
	CountByISBN(ctx context.Context, isbn string) (int, error)

	// List returns chunks matching the filter criteria
	List(ctx context.Context, filter llm.ListFilter) ([]llm.Chunk, error)

	// Count returns the total number of chunks in the store
	Count(ctx context.Context) (int64, error)

	// Close closes any connections or resources
	Close() error
}

// StoreConfig holds configuration for vector store implementations
type StoreConfig struct {
	// Embedding dimension (must match the embedding model)
	EmbeddingDim int

	// Index name for the vector index
	IndexName string

	// Key prefix for stored chunks
	KeyPrefix string
}

// DefaultStoreConfig returns default configuration
func DefaultStoreConfig() StoreConfig {
	return StoreConfig{
		EmbeddingDim: DefaultEmbeddingDim,
		IndexName:    "bookworm-books",
		KeyPrefix:    "book:",
	}
}

// cosineSimilarity returns the cosine of the angle between a and b clamped
// to [0,1]. Mismatched or zero vectors score 0.
func cosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return clampScore(float32(dot / (math.Sqrt(na) * math.Sqrt(nb))))
}

func clampScore(s float32) float32 {
	switch {
	case s < 0 || s != s:
		return 0
	case s > 1:
		return 1
	default:
		return s
	}
}

func clampListWindow(filter llm.ListFilter) (offset, limit int) {
	limit = filter.Limit
	if limit <= 0 {
		limit = 100
	}
	if limit > 1000 {
		limit = 1000
	}
	offset = max(filter.Offset, 0)
	return offset, limit
}
