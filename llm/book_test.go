package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBookRecord_Text(t *testing.T) {
	tests := []struct {
		name string
		book BookRecord
		want string
	}{
		{
			name: "summary only",
			book: BookRecord{Summary: "A monster story."},
			want: "A monster story.",
		},
		{
			name: "summary and extended summary",
			book: BookRecord{Summary: "A monster story.", ExtendedSummary: "Victor regrets it."},
			want: "A monster story.\n\nVictor regrets it.",
		},
		{
			name: "placeholder full text falls back to summary",
			book: BookRecord{Summary: "A monster story.", FullText: "Full text goes here."},
			want: "A monster story.",
		},
		{
			name: "full text then summary",
			book: BookRecord{Summary: "A monster story.", FullText: "You will rejoice to hear"},
			want: "You will rejoice to hear\nA monster story.",
		},
		{
			name: "full text without summary",
			book: BookRecord{FullText: "You will rejoice to hear"},
			want: "You will rejoice to hear",
		},
		{
			name: "nothing",
			book: BookRecord{ISBN: "1"},
			want: "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.book.Text())
		})
	}
}

func TestBookRecord_Metadata(t *testing.T) {
	b := BookRecord{
		ISBN:          "9780141439471",
		Title:         "Frankenstein",
		Publisher:     "Penguin Classics",
		Year:          2003,
		Summary:       "not copied",
		Authors:       "Mary Shelley",
		LexileMeasure: "1170L",
	}

	md := b.Metadata()
	assert.Equal(t, Metadata{
		MetaISBN:          "9780141439471",
		MetaTitle:         "Frankenstein",
		MetaPublisher:     "Penguin Classics",
		MetaYear:          2003,
		MetaAuthors:       "Mary Shelley",
		MetaLexileMeasure: "1170L",
	}, md)
}
