package vector

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/Data-Day-Solutions/bookworm-backend/llm"
)

// snapshot is the JSON structure of a memory store file
type snapshot struct {
	Version   string        `json:"version"`
	CreatedAt string        `json:"created_at"`
	UpdatedAt string        `json:"updated_at"`
	Entries   []storedEntry `json:"entries"`
}

type storedEntry struct {
	Key      string       `json:"key"`
	Content  string       `json:"content"`
	Metadata llm.Metadata `json:"metadata"`
	Vector   []float32    `json:"vector"`
}

func (e storedEntry) chunk() llm.Chunk {
	return llm.Chunk{Content: e.Content, Metadata: e.Metadata.Clone()}
}

// MemoryStore is an in-process VectorStore using brute-force cosine
// similarity. When a file path is set every mutation is written back to it
// as a JSON snapshot.
type MemoryStore struct {
	filePath  string
	mu        sync.RWMutex
	entries   map[string]storedEntry
	createdAt time.Time
}

// NewMemoryStore creates an empty store. filePath may be empty.
func NewMemoryStore(filePath string) *MemoryStore {
	return &MemoryStore{
		filePath:  filePath,
		entries:   make(map[string]storedEntry),
		createdAt: time.Now(),
	}
}

// OpenMemoryStore creates a store backed by filePath, loading it if present.
func OpenMemoryStore(filePath string) (*MemoryStore, error) {
	s := NewMemoryStore(filePath)
	if err := s.Load(); err != nil {
		return nil, err
	}
	return s, nil
}

// Load replaces the store contents with the snapshot on disk.
func (s *MemoryStore) Load() error {
	if s.filePath == "" {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.filePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			// File doesn't exist yet, that's okay
			return nil
		}
		return fmt.Errorf("failed to read store file: %w", err)
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("failed to parse store data: %w", err)
	}

	s.entries = make(map[string]storedEntry, len(snap.Entries))
	for _, e := range snap.Entries {
		s.entries[e.Key] = e
	}
	if snap.CreatedAt != "" {
		s.createdAt, _ = time.Parse(time.RFC3339, snap.CreatedAt)
	}
	return nil
}

// Save writes the snapshot to disk. It is a no-op without a file path.
func (s *MemoryStore) Save() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.saveLocked()
}

func (s *MemoryStore) saveLocked() error {
	if s.filePath == "" {
		return nil
	}

	snap := snapshot{
		Version:   "1.0",
		CreatedAt: s.createdAt.Format(time.RFC3339),
		UpdatedAt: time.Now().Format(time.RFC3339),
		Entries:   s.sortedLocked(),
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal store data: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.filePath), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(s.filePath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write store file: %w", err)
	}
	return nil
}

// sortedLocked returns entries ordered by ISBN then page.
func (s *MemoryStore) sortedLocked() []storedEntry {
	out := make([]storedEntry, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e)
	}
	slices.SortFunc(out, func(a, b storedEntry) int {
		ca, cb := a.chunk(), b.chunk()
		if c := cmp.Compare(ca.ISBN(), cb.ISBN()); c != 0 {
			return c
		}
		return cmp.Compare(ca.Page(), cb.Page())
	})
	return out
}

// Upsert writes entries keyed by ISBN and page
func (s *MemoryStore) Upsert(ctx context.Context, entries []Entry) error {
	if err := ctx.Err(); err != nil {
		return llm.Unavailable("upsert", err)
	}
	if len(entries) == 0 {
		return nil
	}

	for i, e := range entries {
		if e.Chunk.ISBN() == "" {
			return llm.InvalidInput("entry %d: chunk without isbn", i)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range entries {
		s.entries[e.Key()] = storedEntry{
			Key:      e.Key(),
			Content:  e.Chunk.Content,
			Metadata: e.Chunk.Metadata.Clone(),
			Vector:   slices.Clone(e.Vector),
		}
	}
	return s.saveLocked()
}

// Query scores every stored entry against vector and returns the top k
func (s *MemoryStore) Query(ctx context.Context, vector []float32, k int) ([]Hit, error) {
	if err := ctx.Err(); err != nil {
		return nil, llm.Unavailable("query", err)
	}
	if k <= 0 {
		return nil, llm.InvalidInput("k must be positive, got %d", k)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	hits := make([]Hit, 0, len(s.entries))
	for _, e := range s.sortedLocked() {
		hits = append(hits, Hit{Chunk: e.chunk(), Score: cosineSimilarity(vector, e.Vector)})
	}

	// Stable sort keeps ISBN/page order among equal scores.
	slices.SortStableFunc(hits, func(a, b Hit) int {
		return cmp.Compare(b.Score, a.Score)
	})

	if k > len(hits) {
		k = len(hits)
	}
	return hits[:k], nil
}

// DeleteByISBN removes every chunk of a book
func (s *MemoryStore) DeleteByISBN(ctx context.Context, isbn string) (int, error) {
	if isbn == "" {
		return 0, llm.InvalidInput("isbn cannot be empty")
	}
	if err := ctx.Err(); err != nil {
		return 0, llm.Unavailable("delete", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var n int
	for key, e := range s.entries {
		if e.chunk().ISBN() == isbn {
			delete(s.entries, key)
			n++
		}
	}
	if n == 0 {
		return 0, nil
	}
	return n, s.saveLocked()
}

// CountByISBN returns how many chunks of a book are stored
func (s *MemoryStore) CountByISBN(ctx context.Context, isbn string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, llm.Unavailable("count", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int
	for _, e := range s.entries {
		if e.chunk().ISBN() == isbn {
			n++
		}
	}
	return n, nil
}

// List returns chunks ordered by ISBN and page
func (s *MemoryStore) List(ctx context.Context, filter llm.ListFilter) ([]llm.Chunk, error) {
	if err := ctx.Err(); err != nil {
		return nil, llm.Unavailable("list", err)
	}
	offset, limit := clampListWindow(filter)

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []llm.Chunk
	for _, e := range s.sortedLocked() {
		c := e.chunk()
		if filter.ISBN != "" && c.ISBN() != filter.ISBN {
			continue
		}
		if offset > 0 {
			offset--
			continue
		}
		out = append(out, c)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

// Count returns the total number of chunks in the store
func (s *MemoryStore) Count(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.entries)), nil
}

// Close flushes the snapshot, if any.
func (s *MemoryStore) Close() error {
	return s.Save()
}
