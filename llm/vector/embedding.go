package vector

import (
	"context"
	"fmt"
	"time"

	"github.com/cloudwego/eino/components/embedding"

	"github.com/Data-Day-Solutions/bookworm-backend/llm"
)

const (
	// DefaultEmbeddingDim matches text-embedding-3-small.
	DefaultEmbeddingDim = 1536

	defaultEmbedTimeout = 30 * time.Second
)

// EmbeddingService wraps an embedding model for vector generation
type EmbeddingService struct {
	embedder embedding.Embedder
	dim      int
	timeout  time.Duration
}

// NewEmbeddingService creates a new embedding service. A dim of zero accepts
// whatever dimension the model returns.
func NewEmbeddingService(embedder embedding.Embedder, dim int, timeout time.Duration) *EmbeddingService {
	if timeout <= 0 {
		timeout = defaultEmbedTimeout
	}
	return &EmbeddingService{
		embedder: embedder,
		dim:      dim,
		timeout:  timeout,
	}
}

// Embed generates an embedding vector for a single text
func (s *EmbeddingService) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, llm.InvalidInput("text cannot be empty")
	}

	vectors, err := s.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch generates embedding vectors for multiple texts, in input order.
func (s *EmbeddingService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, llm.InvalidInput("texts cannot be empty")
	}
	for i, text := range texts {
		if text == "" {
			return nil, llm.InvalidInput("text %d is empty", i)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	vectors, err := s.embedder.EmbedStrings(ctx, texts)
	if err != nil {
		return nil, llm.Unavailable("embed", err)
	}
	if len(vectors) != len(texts) {
		return nil, llm.Unavailable("embed", fmt.Errorf("got %d embeddings for %d texts", len(vectors), len(texts)))
	}

	result := make([][]float32, len(vectors))
	for i, vec := range vectors {
		if len(vec) == 0 {
			return nil, llm.Unavailable("embed", fmt.Errorf("empty embedding returned for text %d", i))
		}
		if s.dim > 0 && len(vec) != s.dim {
			return nil, llm.Unavailable("embed", fmt.Errorf("embedding dimension %d, want %d", len(vec), s.dim))
		}
		// Convert float64 to float32
		result[i] = make([]float32, len(vec))
		for j, v := range vec {
			result[i][j] = float32(v)
		}
	}

	return result, nil
}
