package agent

import (
	"strings"
	"sync"
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Data-Day-Solutions/bookworm-backend/llm"
)

func TestConversation_SystemTurnFirst(t *testing.T) {
	c := NewConversation("be helpful")
	h := c.History()
	require.Len(t, h, 1)
	assert.Equal(t, schema.System, h[0].Role)
	assert.Equal(t, "be helpful", h[0].Content)
}

func TestConversation_AppendRoles(t *testing.T) {
	c := NewConversation("sys")

	require.NoError(t, c.Append(schema.UserMessage("hi")))
	require.NoError(t, c.Append(schema.AssistantMessage("hello", nil)))

	assert.ErrorIs(t, c.Append(schema.SystemMessage("override")), llm.ErrInvalidInput)
	assert.ErrorIs(t, c.Append(schema.ToolMessage("obs", "id")), llm.ErrInvalidInput)
	assert.ErrorIs(t, c.Append(nil), llm.ErrInvalidInput)

	h := c.History()
	require.Len(t, h, 3)
	assert.Equal(t, []string{"sys", "hi", "hello"}, []string{h[0].Content, h[1].Content, h[2].Content})
}

func TestConversation_HistoryIsACopy(t *testing.T) {
	c := NewConversation("sys")
	msg := schema.UserMessage("original")
	require.NoError(t, c.Append(msg))

	msg.Content = "mutated by caller"
	h := c.History()
	h[1].Content = "mutated by reader"

	fresh := c.History()
	require.Len(t, fresh, 2)
	assert.Equal(t, "original", fresh[1].Content)
}

func TestConversation_Reset(t *testing.T) {
	c := NewConversation("sys")
	require.NoError(t, c.Append(schema.UserMessage("a")))
	require.NoError(t, c.Append(schema.AssistantMessage("b", nil)))
	before := c.History()

	c.Reset()
	assert.Equal(t, 1, c.Len())
	assert.Equal(t, "sys", c.History()[0].Content)

	require.NoError(t, c.Append(schema.UserMessage("c")))
	assert.Equal(t, "a", before[1].Content, "earlier snapshots are unaffected")
	assert.Equal(t, "c", c.History()[1].Content)
}

func TestConversation_ConcurrentAppend(t *testing.T) {
	c := NewConversation("sys")
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = c.Append(schema.UserMessage("q"))
			_ = c.History()
		}()
	}
	wg.Wait()
	assert.Equal(t, 21, c.Len())
}

func TestTruncateObservation(t *testing.T) {
	short := "A short passage."
	assert.Equal(t, short, truncateObservation(short, 100))
	assert.Equal(t, short, truncateObservation(short, 0))

	long := strings.Repeat("The owl flew. ", 20)
	got := truncateObservation(long, 100)
	kept, note, ok := strings.Cut(got, "\n\n[Content truncated:")
	require.True(t, ok, got)
	assert.True(t, strings.HasSuffix(kept, ". "), "cuts at a sentence boundary: %q", kept)
	assert.LessOrEqual(t, len([]rune(kept)), 100)
	assert.Contains(t, note, "original 280 chars")

	// Multi-byte runes are never split
	wide := strings.Repeat("é", 50)
	got = truncateObservation(wide, 10)
	assert.True(t, strings.HasPrefix(got, strings.Repeat("é", 10)+"\n\n"), got)
}
