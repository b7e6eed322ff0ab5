// Package vectortest provides deterministic embedders and fault-injecting
// stores for tests.
package vectortest

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/cloudwego/eino/components/embedding"

	"github.com/Data-Day-Solutions/bookworm-backend/llm"
	"github.com/Data-Day-Solutions/bookworm-backend/llm/vector"
)

// ErrInjected is returned by injected failures.
var ErrInjected = errors.New("injected failure")

// KeywordEmbedder embeds a text as the counts of a fixed vocabulary, so two
// texts are similar exactly when they share vocabulary words. Texts without
// any vocabulary word embed to the zero vector and match nothing.
type KeywordEmbedder struct {
	Vocabulary []string

	calls atomic.Int64
	fail  atomic.Int64
}

// NewKeywordEmbedder returns an embedder over vocab.
func NewKeywordEmbedder(vocab ...string) *KeywordEmbedder {
	return &KeywordEmbedder{Vocabulary: vocab}
}

// FailNext makes the next n calls fail with ErrInjected.
func (e *KeywordEmbedder) FailNext(n int) {
	e.fail.Store(int64(n))
}

// Calls returns how many EmbedStrings calls were made.
func (e *KeywordEmbedder) Calls() int {
	return int(e.calls.Load())
}

// Dim returns the embedding dimension.
func (e *KeywordEmbedder) Dim() int {
	return len(e.Vocabulary)
}

func (e *KeywordEmbedder) EmbedStrings(ctx context.Context, texts []string, _ ...embedding.Option) ([][]float64, error) {
	e.calls.Add(1)
	if e.fail.Load() > 0 {
		e.fail.Add(-1)
		return nil, ErrInjected
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := make([][]float64, len(texts))
	for i, text := range texts {
		words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
			return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
		})
		vec := make([]float64, len(e.Vocabulary))
		for j, v := range e.Vocabulary {
			for _, w := range words {
				if w == v {
					vec[j]++
				}
			}
		}
		out[i] = vec
	}
	return out, nil
}

// FlakyStore wraps a VectorStore and fails chosen calls.
type FlakyStore struct {
	vector.VectorStore

	mu          sync.Mutex
	upsertFails int
	queryFails  int
	failISBN    map[string]bool
	upserts     int
	queries     int
}

// NewFlakyStore wraps inner.
func NewFlakyStore(inner vector.VectorStore) *FlakyStore {
	return &FlakyStore{VectorStore: inner, failISBN: map[string]bool{}}
}

// FailUpserts makes the next n upserts fail as unavailable.
func (s *FlakyStore) FailUpserts(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upsertFails = n
}

// FailQueries makes the next n queries fail as unavailable.
func (s *FlakyStore) FailQueries(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queryFails = n
}

// FailISBN makes every upsert containing a chunk of isbn fail.
func (s *FlakyStore) FailISBN(isbn string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failISBN[isbn] = true
}

// Upserts returns how many upsert calls reached the store.
func (s *FlakyStore) Upserts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.upserts
}

// Queries returns how many query calls reached the store.
func (s *FlakyStore) Queries() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queries
}

func (s *FlakyStore) Upsert(ctx context.Context, entries []vector.Entry) error {
	s.mu.Lock()
	s.upserts++
	fail := s.upsertFails > 0
	if fail {
		s.upsertFails--
	}
	for _, e := range entries {
		if s.failISBN[e.Chunk.ISBN()] {
			fail = true
		}
	}
	s.mu.Unlock()

	if fail {
		return llm.Unavailable("upsert", ErrInjected)
	}
	return s.VectorStore.Upsert(ctx, entries)
}

func (s *FlakyStore) Query(ctx context.Context, vec []float32, k int) ([]vector.Hit, error) {
	s.mu.Lock()
	s.queries++
	fail := s.queryFails > 0
	if fail {
		s.queryFails--
	}
	s.mu.Unlock()

	if fail {
		return nil, llm.Unavailable("query", ErrInjected)
	}
	return s.VectorStore.Query(ctx, vec, k)
}
