package vector

import (
	"iter"
	"unicode/utf8"

	"github.com/Data-Day-Solutions/bookworm-backend/llm"
)

const (
	// DefaultChunkSize is the window size, in characters, used for book text.
	DefaultChunkSize = 2000
	// DefaultBatchSize bounds the number of chunks per upsert call.
	DefaultBatchSize = 10
)

// Chunk splits text into non-overlapping windows of exactly chunkSize
// characters; the final window holds the remainder. Every chunk carries a
// copy of template with "page" set to the window's 1-based ordinal.
//
// The returned sequence is lazy and can be ranged over any number of times,
// always yielding the same chunks.
func Chunk(text string, template llm.Metadata, chunkSize int) (iter.Seq[llm.Chunk], error) {
	if text == "" {
		return nil, llm.InvalidInput("text cannot be empty")
	}
	if chunkSize <= 0 {
		return nil, llm.InvalidInput("chunk size must be positive, got %d", chunkSize)
	}

	// Snapshot so that later changes to the caller's map cannot make two
	// passes over the sequence disagree.
	tmpl := template.Clone()

	return func(yield func(llm.Chunk) bool) {
		page := 1
		for start := 0; start < len(text); page++ {
			end := advance(text, start, chunkSize)

			md := tmpl.Clone()
			md[llm.MetaPage] = page
			if !yield(llm.Chunk{Content: text[start:end], Metadata: md}) {
				return
			}
			start = end
		}
	}, nil
}

// advance returns the byte offset n characters after start, or len(text).
// Invalid UTF-8 bytes count as one character each, so no byte is ever lost.
func advance(text string, start, n int) int {
	i := start
	for c := 0; c < n && i < len(text); c++ {
		_, w := utf8.DecodeRuneInString(text[i:])
		i += w
	}
	return i
}

// ChunkCount returns how many chunks Chunk produces for text.
func ChunkCount(text string, chunkSize int) int {
	if text == "" || chunkSize <= 0 {
		return 0
	}
	n := utf8.RuneCountInString(text)
	return (n + chunkSize - 1) / chunkSize
}

// Collect materialises a chunk sequence.
func Collect(seq iter.Seq[llm.Chunk]) []llm.Chunk {
	var out []llm.Chunk
	for c := range seq {
		out = append(out, c)
	}
	return out
}

// Batches yields successive slices of at most size items. The slices share
// the backing array of items.
func Batches[T any](items []T, size int) iter.Seq[[]T] {
	if size <= 0 {
		size = DefaultBatchSize
	}
	return func(yield func([]T) bool) {
		for i := 0; i < len(items); i += size {
			end := min(i+size, len(items))
			if !yield(items[i:end]) {
				return
			}
		}
	}
}
