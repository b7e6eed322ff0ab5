package vector

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Data-Day-Solutions/bookworm-backend/llm"
)

func TestChunk_BookScenario(t *testing.T) {
	text := strings.Repeat("a", 4500)
	seq, err := Chunk(text, llm.Metadata{llm.MetaISBN: "9780141439471"}, 2000)
	require.NoError(t, err)

	chunks := Collect(seq)
	require.Len(t, chunks, 3)

	wantLens := []int{2000, 2000, 500}
	for i, c := range chunks {
		assert.Equal(t, i+1, c.Page())
		assert.Equal(t, wantLens[i], len(c.Content))
		assert.Equal(t, "9780141439471", c.ISBN())
	}
}

func TestChunk_InvalidInput(t *testing.T) {
	tests := []struct {
		name string
		text string
		size int
	}{
		{"empty text", "", 10},
		{"zero size", "hello", 0},
		{"negative size", "hello", -3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seq, err := Chunk(tt.text, nil, tt.size)
			assert.ErrorIs(t, err, llm.ErrInvalidInput)
			assert.Nil(t, seq)
		})
	}
}

func TestChunk_CoverageAndBound(t *testing.T) {
	texts := []string{
		"x",
		"The Chrono-Confection Catastrophe",
		strings.Repeat("Fluffiness is the eternal balance. ", 97),
		"Sarah arched an elegant eyebrow — “Do tell us, Professor.” 甜点",
		"bad utf8 \xff\xfe bytes",
	}
	sizes := []int{1, 2, 3, 7, 64, 2000}

	for _, text := range texts {
		for _, size := range sizes {
			seq, err := Chunk(text, llm.Metadata{llm.MetaISBN: "1"}, size)
			require.NoError(t, err)
			chunks := Collect(seq)

			var sb strings.Builder
			for i, c := range chunks {
				assert.Equal(t, i+1, c.Page(), "pages are consecutive")
				n := utf8.RuneCountInString(c.Content)
				if i < len(chunks)-1 {
					assert.Equal(t, size, n, "inner chunks are full")
				} else {
					assert.GreaterOrEqual(t, n, 1)
					assert.LessOrEqual(t, n, size)
				}
				sb.WriteString(c.Content)
			}
			assert.Equal(t, text, sb.String(), "chunks reconstruct the text")
			assert.Equal(t, ChunkCount(text, size), len(chunks))
		}
	}
}

func TestChunk_Restartable(t *testing.T) {
	tmpl := llm.Metadata{llm.MetaISBN: "42", llm.MetaTitle: "Frankenstein"}
	seq, err := Chunk(strings.Repeat("abc", 50), tmpl, 16)
	require.NoError(t, err)

	first := Collect(seq)
	tmpl[llm.MetaTitle] = "changed after the fact"
	second := Collect(seq)

	assert.Equal(t, first, second)
	assert.Equal(t, "Frankenstein", second[0].Metadata[llm.MetaTitle])
}

func TestChunk_MetadataIsCopied(t *testing.T) {
	tmpl := llm.Metadata{llm.MetaISBN: "42"}
	seq, err := Chunk("abcdef", tmpl, 2)
	require.NoError(t, err)

	chunks := Collect(seq)
	chunks[0].Metadata[llm.MetaTitle] = "mutated"

	_, ok := tmpl[llm.MetaPage]
	assert.False(t, ok, "template must not receive a page")
	_, ok = chunks[1].Metadata[llm.MetaTitle]
	assert.False(t, ok, "chunks must not share metadata maps")
}

func TestChunk_EarlyStop(t *testing.T) {
	seq, err := Chunk(strings.Repeat("z", 100), nil, 10)
	require.NoError(t, err)

	var seen int
	for range seq {
		seen++
		if seen == 3 {
			break
		}
	}
	assert.Equal(t, 3, seen)
}

func TestBatches(t *testing.T) {
	items := make([]int, 23)
	var sizes []int
	for b := range Batches(items, 10) {
		sizes = append(sizes, len(b))
	}
	assert.Equal(t, []int{10, 10, 3}, sizes)

	var none int
	for range Batches([]int{}, 10) {
		none++
	}
	assert.Zero(t, none)
}
