package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLooksLikeHTML(t *testing.T) {
	assert.True(t, LooksLikeHTML("<!DOCTYPE html><html><body></body></html>"))
	assert.True(t, LooksLikeHTML("intro <p>para</p>"))
	assert.False(t, LooksLikeHTML("Plain prose with a < sign and a <b>old</b> tag."))
}

func TestNormalize_PlainTextUnchanged(t *testing.T) {
	text := "Chapter 1\n\n\n\nIt was on a dreary night of November.  "
	got, err := Normalize(text)
	require.NoError(t, err)
	assert.Equal(t, text, got)
}

func TestNormalize_HTML(t *testing.T) {
	page := `<!DOCTYPE html>
<html>
<head><title>Frankenstein</title><style>p { color: red }</style></head>
<body>
<script>trackVisitor()</script>
<h1>Letter 1</h1>
<p>You will rejoice to hear that no disaster has accompanied the commencement.</p>



<p>I arrived here yesterday &amp; my first task is to assure my dear sister.</p>
</body>
</html>`

	got, err := Normalize(page)
	require.NoError(t, err)
	assert.Contains(t, got, "Letter 1")
	assert.Contains(t, got, "You will rejoice to hear")
	assert.Contains(t, got, "yesterday & my first task")
	assert.NotContains(t, got, "<p>")
	assert.NotContains(t, got, "trackVisitor")
	assert.NotContains(t, got, "color: red")
	assert.NotContains(t, got, "\n\n\n")
}

func TestNormalize_GutenbergBoilerplate(t *testing.T) {
	text := `The Project Gutenberg eBook of Frankenstein
This eBook is for the use of anyone anywhere.

*** START OF THE PROJECT GUTENBERG EBOOK FRANKENSTEIN ***

Letter 1

You will rejoice to hear.

*** END OF THE PROJECT GUTENBERG EBOOK FRANKENSTEIN ***

Section 5. General Information About Project Gutenberg electronic works`

	got, err := Normalize(text)
	require.NoError(t, err)
	assert.Equal(t, "Letter 1\n\nYou will rejoice to hear.", got)
}
