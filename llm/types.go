package llm

import (
	"fmt"
	"strconv"
)

// Metadata keys attached to every indexed chunk.
const (
	MetaISBN          = "isbn"
	MetaTitle         = "title"
	MetaPublisher     = "publisher"
	MetaYear          = "year"
	MetaAuthors       = "authors"
	MetaCategories    = "categories"
	MetaLexileMeasure = "lexile_measure"
	MetaAgeRange      = "age_range"
	MetaPage          = "page"
)

// Metadata maps a field name to a scalar value.
type Metadata map[string]any

// Clone returns a shallow copy of the metadata.
func (m Metadata) Clone() Metadata {
	out := make(Metadata, len(m)+1)
	for k, v := range m {
		out[k] = v
	}
	return out
}

// String returns the value of key rendered as a string, or "" when absent.
func (m Metadata) String(key string) string {
	v, ok := m[key]
	if !ok || v == nil {
		return ""
	}
	switch val := v.(type) {
	case string:
		return val
	default:
		return fmt.Sprint(val)
	}
}

// Int returns the value of key as an int. JSON round trips turn numbers into
// float64 and Redis hashes turn them into strings, so both are accepted.
func (m Metadata) Int(key string) (int, bool) {
	switch v := m[key].(type) {
	case int:
		return v, true
	case int32:
		return int(v), true
	case int64:
		return int(v), true
	case float32:
		return int(v), true
	case float64:
		return int(v), true
	case string:
		n, err := strconv.Atoi(v)
		return n, err == nil
	default:
		return 0, false
	}
}

// Chunk is a contiguous slice of a book's text tagged with its metadata.
type Chunk struct {
	Content  string   `json:"content"`
	Metadata Metadata `json:"metadata"`
}

// ISBN returns the stable book identifier of the chunk.
func (c Chunk) ISBN() string {
	return c.Metadata.String(MetaISBN)
}

// Page returns the 1-based ordinal of the chunk within its book.
func (c Chunk) Page() int {
	p, _ := c.Metadata.Int(MetaPage)
	return p
}

// Key identifies the chunk within the index. Two chunks of the same book and
// page share a key, so writing one replaces the other.
func (c Chunk) Key() string {
	return fmt.Sprintf("%s:%d", c.ISBN(), c.Page())
}

// ScoredChunk is a retrieved chunk with its relevance score in [0,1].
type ScoredChunk struct {
	Chunk Chunk   `json:"chunk"`
	Score float32 `json:"score"`
}

// RetrievalResult is ordered by descending score.
type RetrievalResult []ScoredChunk

// ListFilter defines filters for listing stored chunks
type ListFilter struct {
	ISBN   string // Filter by book
	Limit  int    // Maximum number of results
	Offset int    // Offset for pagination
}
