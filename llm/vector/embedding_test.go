package vector

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cloudwego/eino/components/embedding"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Data-Day-Solutions/bookworm-backend/llm"
)

type stubEmbedder struct {
	vectors [][]float64
	err     error
	block   bool
}

func (s *stubEmbedder) EmbedStrings(ctx context.Context, texts []string, _ ...embedding.Option) ([][]float64, error) {
	if s.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return s.vectors, s.err
}

func TestEmbeddingService_EmbedBatch(t *testing.T) {
	ctx := context.Background()

	t.Run("converts to float32", func(t *testing.T) {
		svc := NewEmbeddingService(&stubEmbedder{vectors: [][]float64{{0.5, 1}, {2, 0}}}, 2, time.Second)
		got, err := svc.EmbedBatch(ctx, []string{"a", "b"})
		require.NoError(t, err)
		assert.Equal(t, [][]float32{{0.5, 1}, {2, 0}}, got)
	})

	t.Run("empty text is invalid", func(t *testing.T) {
		svc := NewEmbeddingService(&stubEmbedder{}, 2, time.Second)
		_, err := svc.EmbedBatch(ctx, []string{"a", ""})
		assert.ErrorIs(t, err, llm.ErrInvalidInput)
	})

	t.Run("provider error is unavailable", func(t *testing.T) {
		svc := NewEmbeddingService(&stubEmbedder{err: errors.New("502 bad gateway")}, 2, time.Second)
		_, err := svc.Embed(ctx, "a")
		assert.ErrorIs(t, err, llm.ErrServiceUnavailable)
	})

	t.Run("count mismatch is unavailable", func(t *testing.T) {
		svc := NewEmbeddingService(&stubEmbedder{vectors: [][]float64{{1, 1}}}, 2, time.Second)
		_, err := svc.EmbedBatch(ctx, []string{"a", "b"})
		assert.ErrorIs(t, err, llm.ErrServiceUnavailable)
	})

	t.Run("dimension mismatch is unavailable", func(t *testing.T) {
		svc := NewEmbeddingService(&stubEmbedder{vectors: [][]float64{{1, 1, 1}}}, 2, time.Second)
		_, err := svc.Embed(ctx, "a")
		assert.ErrorIs(t, err, llm.ErrServiceUnavailable)
	})

	t.Run("timeout is unavailable", func(t *testing.T) {
		svc := NewEmbeddingService(&stubEmbedder{block: true}, 2, 10*time.Millisecond)
		_, err := svc.Embed(ctx, "a")
		assert.ErrorIs(t, err, llm.ErrServiceUnavailable)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})
}
