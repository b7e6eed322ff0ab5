package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/Data-Day-Solutions/bookworm-backend/llm"
	"github.com/Data-Day-Solutions/bookworm-backend/llm/parser"
	"github.com/Data-Day-Solutions/bookworm-backend/llm/vector"
)

// Policy decides what happens to a book the index already holds
type Policy string

const (
	// PolicyReplace deletes a book's earlier chunks before writing new ones
	PolicyReplace Policy = "replace"
	// PolicySkip leaves already indexed books untouched
	PolicySkip Policy = "skip"
)

// ParsePolicy maps a config value to a Policy
func ParsePolicy(s string) (Policy, error) {
	switch Policy(strings.ToLower(strings.TrimSpace(s))) {
	case "", PolicyReplace:
		return PolicyReplace, nil
	case PolicySkip:
		return PolicySkip, nil
	default:
		return "", llm.InvalidInput("unknown ingestion policy %q", s)
	}
}

// Index is the part of the index client the pipeline writes through
type Index interface {
	Upsert(ctx context.Context, chunks []llm.Chunk) error
	DeleteBook(ctx context.Context, isbn string) (int, error)
	BookIndexed(ctx context.Context, isbn string) (bool, error)
}

// Options configures a Pipeline
type Options struct {
	// ChunkSize is the chunk length in characters (default 2000)
	ChunkSize int
	// BatchSize is the number of chunks per upsert (default 10)
	BatchSize int
	// Concurrency sets the number of batches written in parallel (default 4)
	Concurrency int
	// RateLimit caps batches per second; zero disables pacing
	RateLimit float64
	// Policy for books already in the index (default replace)
	Policy Policy
}

// DefaultOptions returns the reference ingestion settings
func DefaultOptions() Options {
	return Options{
		ChunkSize:   vector.DefaultChunkSize,
		BatchSize:   vector.DefaultBatchSize,
		Concurrency: 4,
		Policy:      PolicyReplace,
	}
}

// SkippedBook is a book that produced no chunks
type SkippedBook struct {
	ISBN   string `json:"isbn,omitempty"`
	Title  string `json:"title,omitempty"`
	Reason string `json:"reason"`
}

// BatchResult is the outcome of one upsert batch
type BatchResult struct {
	Index  int      `json:"index"`
	Chunks int      `json:"chunks"`
	ISBNs  []string `json:"isbns"`
	Err    error    `json:"-"`
}

// Failed reports whether the batch was not written
func (b BatchResult) Failed() bool {
	return b.Err != nil
}

// IngestionReport summarizes an ingestion run. A run never fails as a
// whole; failed batches are listed and Err derives the error.
type IngestionReport struct {
	Books         int           `json:"books"`
	Skipped       []SkippedBook `json:"skipped,omitempty"`
	Batches       []BatchResult `json:"batches"`
	ChunksWritten int           `json:"chunks_written"`
	BooksDeleted  int           `json:"books_deleted"`
	Duration      time.Duration `json:"duration"`
}

// Failed returns the failed batches in batch order
func (r *IngestionReport) Failed() []BatchResult {
	var out []BatchResult
	for _, b := range r.Batches {
		if b.Failed() {
			out = append(out, b)
		}
	}
	return out
}

// Err returns a *llm.PartialIngestionError when any batch failed
func (r *IngestionReport) Err() error {
	failed := r.Failed()
	if len(failed) == 0 {
		return nil
	}
	return &llm.PartialIngestionError{Failed: len(failed), Total: len(r.Batches), First: failed[0].Err}
}

// Pipeline turns book records into indexed chunks
type Pipeline struct {
	index   Index
	opts    Options
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewPipeline creates a pipeline writing to index.
func NewPipeline(index Index, opts Options, logger *slog.Logger) (*Pipeline, error) {
	if index == nil {
		return nil, llm.InvalidInput("index is required")
	}
	def := DefaultOptions()
	if opts.ChunkSize < 0 || opts.BatchSize < 0 {
		return nil, llm.InvalidInput("chunk size and batch size must be positive")
	}
	if opts.ChunkSize == 0 {
		opts.ChunkSize = def.ChunkSize
	}
	if opts.BatchSize == 0 {
		opts.BatchSize = def.BatchSize
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = def.Concurrency
	}
	if opts.Policy == "" {
		opts.Policy = def.Policy
	}
	if _, err := ParsePolicy(string(opts.Policy)); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	p := &Pipeline{index: index, opts: opts, logger: logger}
	if opts.RateLimit > 0 {
		p.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), 1)
	}
	return p, nil
}

// Options returns the settings in use
func (p *Pipeline) Options() Options {
	return p.opts
}

// prepared is a book ready to be written
type prepared struct {
	book   llm.BookRecord
	chunks []llm.Chunk
}

// Ingest chunks books and writes them in batches. Failures of individual
// batches are recorded in the report and do not stop the others.
func (p *Pipeline) Ingest(ctx context.Context, books []llm.BookRecord) *IngestionReport {
	start := time.Now()
	report := &IngestionReport{Books: len(books)}

	ready := p.prepare(ctx, books, report)

	// Deletions finish before any batch is written so a book never ends
	// up with a mix of old and new chunks
	var chunks []llm.Chunk
	for _, b := range ready {
		chunks = append(chunks, b.chunks...)
	}

	var batches [][]llm.Chunk
	for batch := range vector.Batches(chunks, p.opts.BatchSize) {
		batches = append(batches, batch)
	}
	report.Batches = p.writeBatches(ctx, batches)

	for _, b := range report.Batches {
		if !b.Failed() {
			report.ChunksWritten += b.Chunks
		}
	}
	report.Duration = time.Since(start)

	p.logger.Info("ingestion complete",
		"books", report.Books,
		"skipped", len(report.Skipped),
		"deleted", report.BooksDeleted,
		"batches", len(report.Batches),
		"failed_batches", len(report.Failed()),
		"chunks_written", report.ChunksWritten,
		"duration", report.Duration)
	return report
}

// prepare validates and chunks each book and applies the re-ingestion
// policy. Books that cannot be indexed are added to report.Skipped.
func (p *Pipeline) prepare(ctx context.Context, books []llm.BookRecord, report *IngestionReport) []prepared {
	skip := func(b llm.BookRecord, reason string) {
		p.logger.Warn("skipping book", "isbn", b.ISBN, "title", b.Title, "reason", reason)
		report.Skipped = append(report.Skipped, SkippedBook{ISBN: b.ISBN, Title: b.Title, Reason: reason})
	}

	seen := make(map[string]bool, len(books))
	var out []prepared
	for _, b := range books {
		b.ISBN = strings.TrimSpace(b.ISBN)
		if b.ISBN == "" {
			skip(b, "missing isbn")
			continue
		}
		if seen[b.ISBN] {
			skip(b, "duplicate isbn in input")
			continue
		}
		seen[b.ISBN] = true

		// Only the full text is normalised; the Gutenberg cut must not
		// reach the summary appended after it.
		if b.HasFullText() {
			full, err := parser.Normalize(b.FullText)
			if err != nil {
				skip(b, fmt.Sprintf("normalize text: %v", err))
				continue
			}
			b.FullText = full
		}
		text := b.Text()
		if strings.TrimSpace(text) == "" {
			skip(b, "no text")
			continue
		}

		seq, err := vector.Chunk(text, b.Metadata(), p.opts.ChunkSize)
		if err != nil {
			skip(b, err.Error())
			continue
		}

		switch p.opts.Policy {
		case PolicySkip:
			indexed, err := p.index.BookIndexed(ctx, b.ISBN)
			if err != nil {
				skip(b, fmt.Sprintf("check index: %v", err))
				continue
			}
			if indexed {
				skip(b, "already indexed")
				continue
			}
		default:
			n, err := p.index.DeleteBook(ctx, b.ISBN)
			if err != nil {
				skip(b, fmt.Sprintf("remove previous chunks: %v", err))
				continue
			}
			if n > 0 {
				report.BooksDeleted++
				p.logger.Debug("removed previous chunks", "isbn", b.ISBN, "chunks", n)
			}
		}

		out = append(out, prepared{book: b, chunks: vector.Collect(seq)})
	}
	return out
}

// writeBatches upserts batches in parallel. Each goroutine owns one slot of
// the result slice.
func (p *Pipeline) writeBatches(ctx context.Context, batches [][]llm.Chunk) []BatchResult {
	results := make([]BatchResult, len(batches))
	for i, batch := range batches {
		results[i] = BatchResult{Index: i, Chunks: len(batch), ISBNs: batchISBNs(batch)}
	}

	g := new(errgroup.Group)
	g.SetLimit(p.opts.Concurrency)

	for i, batch := range batches {
		if err := p.wait(ctx); err != nil {
			for j := i; j < len(batches); j++ {
				results[j].Err = err
			}
			break
		}

		g.Go(func() error {
			err := p.index.Upsert(ctx, batch)
			results[i].Err = err
			if err != nil {
				p.logger.Warn("batch failed", "batch", i, "chunks", len(batch), "isbns", results[i].ISBNs, "error", err)
			} else {
				p.logger.Debug("batch written", "batch", i, "chunks", len(batch))
			}
			// Failures are recorded, never returned, so siblings keep going
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// wait paces batch scheduling and stops it once ctx is done
func (p *Pipeline) wait(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if p.limiter == nil {
		return nil
	}
	if err := p.limiter.Wait(ctx); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return errors.Join(llm.ErrServiceUnavailable, err)
	}
	return nil
}

func batchISBNs(batch []llm.Chunk) []string {
	var out []string
	for _, c := range batch {
		isbn := c.ISBN()
		if len(out) == 0 || out[len(out)-1] != isbn {
			out = append(out, isbn)
		}
	}
	return out
}
