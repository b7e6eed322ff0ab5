package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/Data-Day-Solutions/bookworm-backend/llm"
	"github.com/Data-Day-Solutions/bookworm-backend/llm/ingest"
	"github.com/Data-Day-Solutions/bookworm-backend/llm/parser"
)

var (
	ingestGlobs  []string
	ingestPolicy string
	ingestJSON   bool
	ingestDryRun bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [files...]",
	Short: "Load book records into the vector index",
	Long: `Load book records from JSON, JSON-lines or YAML files, chunk their text
and write the chunks to the vector index.

Books already in the index are replaced by default; use --policy skip to
leave them untouched.

Examples:
  bookworm ingest data/books.json
  bookworm ingest --glob "data/**/*.yaml" --policy skip`,
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().StringSliceVarP(&ingestGlobs, "glob", "g", nil, "glob patterns for record files (supports **)")
	ingestCmd.Flags().StringVar(&ingestPolicy, "policy", "", "re-ingestion policy: replace or skip (default from config)")
	ingestCmd.Flags().BoolVar(&ingestJSON, "json", false, "print the report as JSON")
	ingestCmd.Flags().BoolVar(&ingestDryRun, "dry-run", false, "parse the records without writing anything")
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if len(args) == 0 && len(ingestGlobs) == 0 {
		return llm.InvalidInput("give record files or --glob patterns")
	}

	registry := parser.DefaultRegistry()
	books, err := registry.LoadBooks(ctx, args...)
	if err != nil {
		return err
	}
	if len(ingestGlobs) > 0 {
		more, err := registry.LoadBooksGlob(ctx, ingestGlobs...)
		if err != nil {
			return err
		}
		books = append(books, more...)
	}
	logger.Info("loaded book records", "books", len(books))

	if ingestDryRun {
		fmt.Fprintf(cmd.OutOrStdout(), "%d book records parsed\n", len(books))
		return nil
	}

	policy := cfg.Ingest.Policy
	if ingestPolicy != "" {
		policy = ingestPolicy
	}
	p, err := ingest.ParsePolicy(policy)
	if err != nil {
		return err
	}

	index, err := openIndex(ctx)
	if err != nil {
		return err
	}
	defer index.Close()

	pipeline, err := ingest.NewPipeline(index, ingest.Options{
		ChunkSize:   cfg.Ingest.ChunkSize,
		BatchSize:   cfg.Ingest.BatchSize,
		Concurrency: cfg.Ingest.Concurrency,
		RateLimit:   cfg.Ingest.RateLimit,
		Policy:      p,
	}, logger)
	if err != nil {
		return err
	}

	report := pipeline.Ingest(ctx, books)
	if ingestJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			return err
		}
	} else {
		printReport(cmd.OutOrStdout(), report)
	}
	return report.Err()
}

func printReport(w io.Writer, r *ingest.IngestionReport) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "Books\t%d\n", r.Books)
	fmt.Fprintf(tw, "Skipped\t%d\n", len(r.Skipped))
	fmt.Fprintf(tw, "Replaced\t%d\n", r.BooksDeleted)
	fmt.Fprintf(tw, "Batches\t%d (%d failed)\n", len(r.Batches), len(r.Failed()))
	fmt.Fprintf(tw, "Chunks written\t%d\n", r.ChunksWritten)
	fmt.Fprintf(tw, "Duration\t%s\n", r.Duration.Round(time.Millisecond))
	_ = tw.Flush()

	for _, s := range r.Skipped {
		fmt.Fprintf(w, "  skipped %s %q: %s\n", s.ISBN, s.Title, s.Reason)
	}
	for _, b := range r.Failed() {
		fmt.Fprintf(w, "  batch %d (%d chunks, books %v) failed: %v\n", b.Index, b.Chunks, b.ISBNs, b.Err)
	}
}
