package vector

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/Data-Day-Solutions/bookworm-backend/llm"
)

func TestEncodeVector(t *testing.T) {
	got := encodeVector([]float32{1, -2})
	assert.Equal(t, []byte{0x00, 0x00, 0x80, 0x3f, 0x00, 0x00, 0x00, 0xc0}, got)
}

func TestEscapeTag(t *testing.T) {
	assert.Equal(t, "9780141439471", escapeTag("9780141439471"))
	assert.Equal(t, `978\-0\-14\-143947\-1`, escapeTag("978-0-14-143947-1"))
	assert.Equal(t, `a\ b`, escapeTag("a b"))
}

func TestSearchDocChunk(t *testing.T) {
	good := searchDoc{id: "book:1:1", fields: map[string]string{
		fieldContent:  "the creature wakes",
		fieldMetadata: `{"isbn":"1","page":1,"title":"Frankenstein"}`,
	}}
	c, err := good.chunk()
	require.NoError(t, err)
	assert.Equal(t, "1", c.ISBN())
	assert.Equal(t, 1, c.Page())
	assert.Equal(t, "the creature wakes", c.Content)

	broken := searchDoc{id: "book:1:2", fields: map[string]string{
		fieldContent:  "the arctic chase",
		fieldMetadata: `{"isbn":`,
	}}
	_, err = broken.chunk()
	assert.ErrorContains(t, err, "book:1:2")

	bare := searchDoc{id: "book:1:3", fields: map[string]string{fieldContent: "no metadata"}}
	_, err = bare.chunk()
	assert.ErrorContains(t, err, "no isbn")
}

// startRedisStack runs redis-stack in a container; the test is skipped when
// Docker is not available.
func startRedisStack(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping redis integration test in short mode")
	}
	os.Setenv("TESTCONTAINERS_RYUK_DISABLED", "true")

	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis/redis-stack-server:7.4.0-v1",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Skipf("redis-stack container unavailable: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	// Workaround: testcontainers may return "null" as host in some environments
	if host == "" || host == "null" {
		host = "localhost"
	}
	port, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)
	return fmt.Sprintf("%s:%s", host, port.Port())
}

func TestRedisStore_Integration(t *testing.T) {
	addr := startRedisStack(t)
	ctx := context.Background()

	cfg := DefaultRedisConfig()
	cfg.Addr = addr
	cfg.VectorDim = 3
	store, err := NewRedisStore(ctx, cfg)
	require.NoError(t, err)
	defer store.Close()

	isbn := "978-0-14-143947-1"
	entries := []Entry{
		entry(isbn, 1, "the creature wakes", 1, 0, 0),
		entry(isbn, 2, "the arctic chase", 0, 1, 0),
		entry("9781911171195", 1, "a chocolate time machine", 0, 0, 1),
	}
	require.NoError(t, store.Upsert(ctx, entries))
	require.NoError(t, store.Upsert(ctx, entries), "re-upsert overwrites")

	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)

	hits, err := store.Query(ctx, []float32{1, 0.1, 0}, 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "the creature wakes", hits[0].Chunk.Content)
	assert.Equal(t, isbn, hits[0].Chunk.ISBN())
	assert.Equal(t, 1, hits[0].Chunk.Page())
	assert.Greater(t, hits[0].Score, hits[1].Score)
	assert.LessOrEqual(t, hits[0].Score, float32(1))

	count, err := store.CountByISBN(ctx, isbn)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	listed, err := store.List(ctx, llm.ListFilter{ISBN: isbn})
	require.NoError(t, err)
	require.Len(t, listed, 2)
	assert.Equal(t, 1, listed[0].Page())

	// A scan page smaller than the book still removes every chunk.
	store.scanLimit = 1
	deleted, err := store.DeleteByISBN(ctx, isbn)
	require.NoError(t, err)
	assert.Equal(t, 2, deleted)

	count, err = store.CountByISBN(ctx, isbn)
	require.NoError(t, err)
	assert.Zero(t, count)

	_, err = store.Query(ctx, []float32{1, 0}, 2)
	assert.ErrorIs(t, err, llm.ErrInvalidInput)
}
