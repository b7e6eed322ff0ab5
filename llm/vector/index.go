package vector

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/Data-Day-Solutions/bookworm-backend/llm"
)

// IndexConfig configures an IndexClient
type IndexConfig struct {
	BatchSize      int           // Chunks per upsert call
	MaxRetries     int           // Retries after the first attempt of upsert and query
	InitialBackoff time.Duration // First retry delay, doubled each retry
	StoreTimeout   time.Duration // Bound on each vector store call
}

// DefaultIndexConfig returns the default index client configuration
func DefaultIndexConfig() IndexConfig {
	return IndexConfig{
		BatchSize:      DefaultBatchSize,
		MaxRetries:     2,
		InitialBackoff: 500 * time.Millisecond,
		StoreTimeout:   30 * time.Second,
	}
}

// IndexClient embeds chunks and queries and talks to a VectorStore
type IndexClient struct {
	embedder *EmbeddingService
	store    VectorStore
	config   IndexConfig
	logger   *slog.Logger
}

// NewIndexClient creates an index client. A nil logger uses slog.Default().
func NewIndexClient(embedder *EmbeddingService, store VectorStore, cfg IndexConfig, logger *slog.Logger) *IndexClient {
	def := DefaultIndexConfig()
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = def.InitialBackoff
	}
	if cfg.StoreTimeout <= 0 {
		cfg.StoreTimeout = def.StoreTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &IndexClient{
		embedder: embedder,
		store:    store,
		config:   cfg,
		logger:   logger,
	}
}

// withRetry runs op until it succeeds, fails with an error that is not
// ErrServiceUnavailable, or MaxRetries retries have been spent.
func (c *IndexClient) withRetry(ctx context.Context, name string, op func(context.Context) error) error {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = c.config.InitialBackoff
	eb.Multiplier = 2
	eb.RandomizationFactor = 0.1
	eb.MaxElapsedTime = 0

	b := backoff.WithContext(backoff.WithMaxRetries(eb, uint64(c.config.MaxRetries)), ctx)

	attempt := func() error {
		err := op(ctx)
		if err != nil && !errors.Is(err, llm.ErrServiceUnavailable) {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		c.logger.Warn("index call failed, retrying", "op", name, "error", err, "wait", wait)
	}

	return llm.Unavailable(name, backoff.RetryNotify(attempt, b, notify))
}

// Upsert embeds and writes chunks in batches of at most BatchSize. Each
// batch is retried independently; the first batch that still fails stops
// the call. Chunks are keyed by ISBN and page, so writing the same chunks
// twice leaves a single copy of each.
func (c *IndexClient) Upsert(ctx context.Context, chunks []llm.Chunk) error {
	for _, ch := range chunks {
		if ch.ISBN() == "" {
			return llm.InvalidInput("chunk without isbn")
		}
		if ch.Content == "" {
			return llm.InvalidInput("chunk %s has no content", ch.Key())
		}
	}

	for batch := range Batches(chunks, c.config.BatchSize) {
		err := c.withRetry(ctx, "upsert", func(ctx context.Context) error {
			return c.upsertBatch(ctx, batch)
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (c *IndexClient) upsertBatch(ctx context.Context, batch []llm.Chunk) error {
	texts := make([]string, len(batch))
	for i, ch := range batch {
		texts[i] = ch.Content
	}

	vectors, err := c.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return err
	}

	entries := make([]Entry, len(batch))
	for i, ch := range batch {
		entries[i] = Entry{Chunk: ch, Vector: vectors[i]}
	}

	ctx, cancel := context.WithTimeout(ctx, c.config.StoreTimeout)
	defer cancel()
	return llm.Unavailable("upsert", c.store.Upsert(ctx, entries))
}

// Query returns at most k chunks whose similarity to text is at least
// threshold, by descending score. No match is an empty result, not an error.
func (c *IndexClient) Query(ctx context.Context, text string, k int, threshold float32) (llm.RetrievalResult, error) {
	if text == "" {
		return nil, llm.InvalidInput("query text cannot be empty")
	}
	if k <= 0 {
		return nil, llm.InvalidInput("k must be positive, got %d", k)
	}
	if threshold < 0 || threshold > 1 || threshold != threshold {
		return nil, llm.InvalidInput("threshold must be within [0,1], got %v", threshold)
	}

	var hits []Hit
	err := c.withRetry(ctx, "query", func(ctx context.Context) error {
		vec, err := c.embedder.Embed(ctx, text)
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(ctx, c.config.StoreTimeout)
		defer cancel()
		hits, err = c.store.Query(ctx, vec, k)
		return llm.Unavailable("query", err)
	})
	if err != nil {
		return nil, err
	}

	result := make(llm.RetrievalResult, 0, len(hits))
	for _, h := range hits {
		if h.Score >= threshold {
			result = append(result, llm.ScoredChunk{Chunk: h.Chunk, Score: h.Score})
		}
	}
	if len(result) > k {
		result = result[:k]
	}
	return result, nil
}

// DeleteBook removes every chunk of a book and reports how many went.
func (c *IndexClient) DeleteBook(ctx context.Context, isbn string) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, c.config.StoreTimeout)
	defer cancel()

	n, err := c.store.DeleteByISBN(ctx, isbn)
	return n, llm.Unavailable("delete", err)
}

// BookIndexed reports whether the index holds any chunk of a book.
func (c *IndexClient) BookIndexed(ctx context.Context, isbn string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, c.config.StoreTimeout)
	defer cancel()

	n, err := c.store.CountByISBN(ctx, isbn)
	if err != nil {
		return false, llm.Unavailable("count", err)
	}
	return n > 0, nil
}

// Count returns the number of stored chunks.
func (c *IndexClient) Count(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, c.config.StoreTimeout)
	defer cancel()

	n, err := c.store.Count(ctx)
	return n, llm.Unavailable("count", err)
}

// List returns stored chunks matching filter.
func (c *IndexClient) List(ctx context.Context, filter llm.ListFilter) ([]llm.Chunk, error) {
	ctx, cancel := context.WithTimeout(ctx, c.config.StoreTimeout)
	defer cancel()

	chunks, err := c.store.List(ctx, filter)
	return chunks, llm.Unavailable("list", err)
}

// Close releases the underlying store.
func (c *IndexClient) Close() error {
	return c.store.Close()
}
