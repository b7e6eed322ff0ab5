package parser

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/Data-Day-Solutions/bookworm-backend/llm"
)

// FileType represents the type of a book record file
type FileType string

const (
	FileTypeJSON    FileType = "json"
	FileTypeJSONL   FileType = "jsonl"
	FileTypeYAML    FileType = "yaml"
	FileTypeUnknown FileType = "unknown"
)

// Parser reads book records in one file format
type Parser interface {
	// Parse reads all book records from the reader
	Parse(ctx context.Context, r io.Reader) ([]llm.BookRecord, error)

	// FileType returns the file type this parser handles
	FileType() FileType
}

// Registry holds all registered parsers
type Registry struct {
	parsers map[FileType]Parser
}

// NewRegistry creates a new parser registry
func NewRegistry() *Registry {
	return &Registry{
		parsers: make(map[FileType]Parser),
	}
}

// Register adds a parser to the registry
func (r *Registry) Register(p Parser) {
	r.parsers[p.FileType()] = p
}

// GetParser returns a parser for the given file type
func (r *Registry) GetParser(ft FileType) (Parser, bool) {
	p, ok := r.parsers[ft]
	return p, ok
}

// GetParserForPath returns a parser for the given file path
func (r *Registry) GetParserForPath(filePath string) (Parser, bool) {
	ext := strings.TrimPrefix(filepath.Ext(filePath), ".")
	return r.GetParser(FileTypeFromExt(ext))
}

// ParseFile parses a record file using the appropriate parser. Records that
// name a full text file get it read in, resolved against the record file's
// directory.
func (r *Registry) ParseFile(ctx context.Context, filePath string) ([]llm.BookRecord, error) {
	parser, ok := r.GetParserForPath(filePath)
	if !ok {
		return nil, llm.InvalidInput("no parser found for file: %s", filePath)
	}

	f, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	books, err := parser.Parse(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", filePath, err)
	}

	dir := filepath.Dir(filePath)
	for i := range books {
		if books[i].FullTextFile == "" {
			continue
		}
		path := books[i].FullTextFile
		if !filepath.IsAbs(path) {
			path = filepath.Join(dir, path)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("book %s: failed to read full text: %w", books[i].ISBN, err)
		}
		books[i].FullText = string(data)
	}

	return books, nil
}

// LoadBooks parses every file in order and concatenates the records
func (r *Registry) LoadBooks(ctx context.Context, paths ...string) ([]llm.BookRecord, error) {
	var books []llm.BookRecord
	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		b, err := r.ParseFile(ctx, p)
		if err != nil {
			return nil, err
		}
		books = append(books, b...)
	}
	return books, nil
}

// LoadBooksGlob expands doublestar patterns such as "data/**/*.json" and
// loads every matching file with a registered parser
func (r *Registry) LoadBooksGlob(ctx context.Context, patterns ...string) ([]llm.BookRecord, error) {
	var paths []string
	seen := make(map[string]bool)
	for _, pattern := range patterns {
		matches, err := doublestar.FilepathGlob(pattern)
		if err != nil {
			return nil, llm.InvalidInput("bad glob pattern %q: %v", pattern, err)
		}
		for _, m := range matches {
			if _, ok := r.GetParserForPath(m); !ok || seen[m] {
				continue
			}
			seen[m] = true
			paths = append(paths, m)
		}
	}
	if len(paths) == 0 {
		return nil, llm.InvalidInput("no book files match %s", strings.Join(patterns, ", "))
	}
	return r.LoadBooks(ctx, paths...)
}

// FileTypeFromExt converts a file extension to FileType
func FileTypeFromExt(ext string) FileType {
	switch strings.ToLower(ext) {
	case "json":
		return FileTypeJSON
	case "jsonl", "ndjson":
		return FileTypeJSONL
	case "yaml", "yml":
		return FileTypeYAML
	default:
		return FileTypeUnknown
	}
}

// String returns the string representation of the FileType
func (ft FileType) String() string {
	return string(ft)
}

// DefaultRegistry returns a registry with all default parsers registered
func DefaultRegistry() *Registry {
	reg := NewRegistry()
	reg.Register(NewJSONParser())
	reg.Register(NewJSONLinesParser())
	reg.Register(NewYAMLParser())
	return reg
}
