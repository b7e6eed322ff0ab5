package vector

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"unicode"

	"github.com/redis/go-redis/v9"

	"github.com/Data-Day-Solutions/bookworm-backend/llm"
)

const (
	// Default index configuration
	defaultEFConstruction = 200
	defaultM              = 16

	// Field names in Redis hash
	fieldContent  = "content"
	fieldVector   = "vector"
	fieldISBN     = "isbn"
	fieldTitle    = "title"
	fieldPage     = "page"
	fieldMetadata = "metadata"
	fieldScore    = "score"

	// Page size for tag scans used by delete
	maxScan = 10000
)

// RedisStore implements VectorStore using Redis with RediSearch vector search
type RedisStore struct {
	client         *redis.Client
	config         StoreConfig
	efConstruction int
	m              int
	scanLimit      int
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Addr           string
	Password       string
	DB             int
	PoolSize       int
	IndexName      string
	KeyPrefix      string
	VectorDim      int
	EFConstruction int
	M              int
}

// DefaultRedisConfig returns default Redis configuration
func DefaultRedisConfig() RedisConfig {
	def := DefaultStoreConfig()
	return RedisConfig{
		Addr:           "localhost:6379",
		PoolSize:       10,
		IndexName:      def.IndexName,
		KeyPrefix:      def.KeyPrefix,
		VectorDim:      def.EmbeddingDim,
		EFConstruction: defaultEFConstruction,
		M:              defaultM,
	}
}

// NewRedisStore connects to Redis and makes sure the vector index exists
func NewRedisStore(ctx context.Context, cfg RedisConfig) (*RedisStore, error) {
	if cfg.VectorDim <= 0 {
		return nil, llm.InvalidInput("vector dimension must be positive, got %d", cfg.VectorDim)
	}
	def := DefaultRedisConfig()
	if cfg.IndexName == "" {
		cfg.IndexName = def.IndexName
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = def.KeyPrefix
	}
	if cfg.EFConstruction <= 0 {
		cfg.EFConstruction = defaultEFConstruction
	}
	if cfg.M <= 0 {
		cfg.M = defaultM
	}

	// RESP2 keeps FT.SEARCH replies as flat arrays
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
		Protocol: 2,
	})

	// Test connection
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, llm.Unavailable("connect to redis", err)
	}

	store := &RedisStore{
		client: client,
		config: StoreConfig{
			EmbeddingDim: cfg.VectorDim,
			IndexName:    cfg.IndexName,
			KeyPrefix:    cfg.KeyPrefix,
		},
		efConstruction: cfg.EFConstruction,
		m:              cfg.M,
		scanLimit:      maxScan,
	}

	if err := store.ensureIndex(ctx); err != nil {
		client.Close()
		return nil, err
	}

	return store, nil
}

// ensureIndex creates the HNSW vector index if it doesn't exist
func (s *RedisStore) ensureIndex(ctx context.Context) error {
	indexName := s.config.IndexName
	if _, err := s.client.Do(ctx, "FT.INFO", indexName).Result(); err == nil {
		return nil
	}

	// FT.CREATE bookworm-books
	//   ON HASH PREFIX 1 "book:"
	//   SCHEMA vector VECTOR HNSW 10 TYPE FLOAT32 DIM 1536 DISTANCE_METRIC COSINE EF_CONSTRUCTION 200 M 16
	//          content TEXT
	//          isbn TAG
	//          title TEXT
	//          page NUMERIC SORTABLE
	_, err := s.client.Do(ctx, "FT.CREATE", indexName,
		"ON", "HASH",
		"PREFIX", "1", s.config.KeyPrefix,
		"SCHEMA",
		fieldVector, "VECTOR", "HNSW", "10",
		"TYPE", "FLOAT32",
		"DIM", strconv.Itoa(s.config.EmbeddingDim),
		"DISTANCE_METRIC", "COSINE",
		"EF_CONSTRUCTION", strconv.Itoa(s.efConstruction),
		"M", strconv.Itoa(s.m),
		fieldContent, "TEXT",
		fieldISBN, "TAG",
		fieldTitle, "TEXT",
		fieldPage, "NUMERIC", "SORTABLE",
	).Result()
	if err != nil {
		return llm.Unavailable("create vector index", err)
	}
	return nil
}

func (s *RedisStore) key(e Entry) string {
	return s.config.KeyPrefix + e.Key()
}

// Upsert writes all entries in one pipeline. HSET on an existing key
// overwrites it, so re-upserting a chunk never duplicates it.
func (s *RedisStore) Upsert(ctx context.Context, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}

	pipe := s.client.Pipeline()
	for _, e := range entries {
		if e.Chunk.ISBN() == "" {
			return llm.InvalidInput("chunk without isbn")
		}
		if len(e.Vector) != s.config.EmbeddingDim {
			return llm.InvalidInput("vector dimension %d, index expects %d", len(e.Vector), s.config.EmbeddingDim)
		}

		metadataJSON, err := json.Marshal(e.Chunk.Metadata)
		if err != nil {
			return fmt.Errorf("failed to encode metadata: %w", err)
		}

		pipe.HSet(ctx, s.key(e),
			fieldContent, e.Chunk.Content,
			fieldVector, encodeVector(e.Vector),
			fieldISBN, e.Chunk.ISBN(),
			fieldTitle, e.Chunk.Metadata.String(llm.MetaTitle),
			fieldPage, e.Chunk.Page(),
			fieldMetadata, metadataJSON,
		)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return llm.Unavailable("upsert", err)
	}
	return nil
}

// encodeVector encodes a float32 vector as the little-endian blob
// RediSearch expects for FLOAT32 vector fields
func encodeVector(vector []float32) []byte {
	buf := make([]byte, 4*len(vector))
	for i, v := range vector {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

// escapeTag escapes every punctuation and space character of a TAG query
// value, e.g. the hyphens of "978-0-14-143947-1"
func escapeTag(s string) string {
	var b strings.Builder
	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Query performs a KNN search. RediSearch reports cosine distance, which is
// turned into a similarity of 1 - distance.
func (s *RedisStore) Query(ctx context.Context, vector []float32, k int) ([]Hit, error) {
	if k <= 0 {
		return nil, llm.InvalidInput("k must be positive, got %d", k)
	}
	if len(vector) != s.config.EmbeddingDim {
		return nil, llm.InvalidInput("query vector dimension %d, index expects %d", len(vector), s.config.EmbeddingDim)
	}

	// FT.SEARCH bookworm-books "*=>[KNN 5 @vector $query_vector AS score]"
	//   PARAMS 2 query_vector "<bytes>"
	//   SORTBY score ASC
	//   RETURN 3 content metadata score
	//   LIMIT 0 5
	//   DIALECT 2
	queryStr := fmt.Sprintf("*=>[KNN %d @%s $query_vector AS %s]", k, fieldVector, fieldScore)

	result, err := s.client.Do(ctx, "FT.SEARCH", s.config.IndexName, queryStr,
		"PARAMS", "2", "query_vector", encodeVector(vector),
		"SORTBY", fieldScore, "ASC",
		"RETURN", "3", fieldContent, fieldMetadata, fieldScore,
		"LIMIT", "0", strconv.Itoa(k),
		"DIALECT", "2",
	).Result()
	if err != nil {
		return nil, llm.Unavailable("vector search", err)
	}

	docs, err := parseSearchResults(result)
	if err != nil {
		return nil, llm.Unavailable("vector search", err)
	}

	hits := make([]Hit, 0, len(docs))
	for _, d := range docs {
		dist, err := strconv.ParseFloat(d.fields[fieldScore], 32)
		if err != nil {
			slog.Warn("skipping search result with bad score", "key", d.id, "error", err)
			continue
		}
		chunk, err := d.chunk()
		if err != nil {
			slog.Warn("skipping search result", "key", d.id, "error", err)
			continue
		}
		hits = append(hits, Hit{
			Chunk: chunk,
			Score: clampScore(float32(1 - dist)),
		})
	}
	return hits, nil
}

// searchDoc is one document of an FT.SEARCH reply
type searchDoc struct {
	id     string
	fields map[string]string
}

// chunk rebuilds the stored chunk. A document whose metadata does not
// decode, or carries no ISBN, is an error.
func (d searchDoc) chunk() (llm.Chunk, error) {
	md := llm.Metadata{}
	if raw := d.fields[fieldMetadata]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &md); err != nil {
			return llm.Chunk{}, fmt.Errorf("decode metadata of %s: %w", d.id, err)
		}
	}
	c := llm.Chunk{Content: d.fields[fieldContent], Metadata: md}
	if c.ISBN() == "" {
		return llm.Chunk{}, fmt.Errorf("document %s has no isbn", d.id)
	}
	return c, nil
}

// parseSearchResults parses an FT.SEARCH reply: the total count followed by
// (id, fields) pairs
func parseSearchResults(result any) ([]searchDoc, error) {
	values, ok := result.([]any)
	if !ok {
		return nil, fmt.Errorf("unexpected result format %T", result)
	}
	if len(values) < 2 {
		return nil, nil
	}

	var docs []searchDoc
	for i := 1; i+1 < len(values); i += 2 {
		id, ok := values[i].(string)
		if !ok {
			continue
		}
		raw, ok := values[i+1].([]any)
		if !ok {
			continue
		}

		doc := searchDoc{id: id, fields: make(map[string]string, len(raw)/2)}
		for j := 0; j+1 < len(raw); j += 2 {
			name, ok := raw[j].(string)
			if !ok {
				continue
			}
			switch v := raw[j+1].(type) {
			case string:
				doc.fields[name] = v
			case []byte:
				doc.fields[name] = string(v)
			default:
				doc.fields[name] = fmt.Sprint(v)
			}
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// searchKeys runs a NOCONTENT search, whose reply is the count followed by
// bare document keys
func (s *RedisStore) searchKeys(ctx context.Context, query string, limit int) (int64, []string, error) {
	result, err := s.client.Do(ctx, "FT.SEARCH", s.config.IndexName, query,
		"NOCONTENT",
		"LIMIT", "0", strconv.Itoa(limit),
		"DIALECT", "2",
	).Result()
	if err != nil {
		return 0, nil, err
	}

	values, ok := result.([]any)
	if !ok || len(values) == 0 {
		return 0, nil, fmt.Errorf("unexpected result format %T", result)
	}
	total, _ := values[0].(int64)

	keys := make([]string, 0, len(values)-1)
	for _, v := range values[1:] {
		if key, ok := v.(string); ok {
			keys = append(keys, key)
		}
	}
	return total, keys, nil
}

func isbnQuery(isbn string) string {
	return fmt.Sprintf("@%s:{%s}", fieldISBN, escapeTag(isbn))
}

// DeleteByISBN removes every chunk of a book
func (s *RedisStore) DeleteByISBN(ctx context.Context, isbn string) (int, error) {
	if isbn == "" {
		return 0, llm.InvalidInput("isbn cannot be empty")
	}

	// Deleted hashes leave the index, so each scan returns the next page.
	var deleted int
	for {
		_, keys, err := s.searchKeys(ctx, isbnQuery(isbn), s.scanLimit)
		if err != nil {
			return deleted, llm.Unavailable("delete", err)
		}
		if len(keys) == 0 {
			return deleted, nil
		}

		n, err := s.client.Del(ctx, keys...).Result()
		if err != nil {
			return deleted, llm.Unavailable("delete", err)
		}
		if n == 0 {
			return deleted, llm.Unavailable("delete", fmt.Errorf("index lists %d keys of %s that no longer exist", len(keys), isbn))
		}
		deleted += int(n)
	}
}

// CountByISBN returns how many chunks of a book are stored
func (s *RedisStore) CountByISBN(ctx context.Context, isbn string) (int, error) {
	if isbn == "" {
		return 0, llm.InvalidInput("isbn cannot be empty")
	}
	total, _, err := s.searchKeys(ctx, isbnQuery(isbn), 0)
	if err != nil {
		return 0, llm.Unavailable("count", err)
	}
	return int(total), nil
}

// List returns chunks matching the filter criteria, ordered by page
func (s *RedisStore) List(ctx context.Context, filter llm.ListFilter) ([]llm.Chunk, error) {
	query := "*"
	if filter.ISBN != "" {
		query = isbnQuery(filter.ISBN)
	}
	offset, limit := clampListWindow(filter)

	result, err := s.client.Do(ctx, "FT.SEARCH", s.config.IndexName, query,
		"RETURN", "2", fieldContent, fieldMetadata,
		"SORTBY", fieldPage, "ASC",
		"LIMIT", strconv.Itoa(offset), strconv.Itoa(limit),
		"DIALECT", "2",
	).Result()
	if err != nil {
		return nil, llm.Unavailable("list", err)
	}

	docs, err := parseSearchResults(result)
	if err != nil {
		return nil, llm.Unavailable("list", err)
	}

	chunks := make([]llm.Chunk, 0, len(docs))
	for _, d := range docs {
		c, err := d.chunk()
		if err != nil {
			slog.Warn("skipping listed document", "key", d.id, "error", err)
			continue
		}
		chunks = append(chunks, c)
	}
	return chunks, nil
}

// Count returns the total number of chunks in the store
func (s *RedisStore) Count(ctx context.Context) (int64, error) {
	total, _, err := s.searchKeys(ctx, "*", 0)
	if err != nil {
		return 0, llm.Unavailable("count", err)
	}
	return total, nil
}

// Close closes the Redis connection
func (s *RedisStore) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}
