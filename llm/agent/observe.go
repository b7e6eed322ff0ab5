package agent

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// truncateObservation shortens a tool observation to about limit
// characters, preferring to cut at the end of a sentence or line in the
// second half of the window.
func truncateObservation(content string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(content) <= limit {
		return content
	}

	originalLen := utf8.RuneCountInString(content)

	// Byte offset of the limit-th rune
	end := 0
	for i := 0; i < limit; i++ {
		_, w := utf8.DecodeRuneInString(content[end:])
		end += w
	}
	window := content[:end]

	cutoff := end
	for _, bp := range []string{".\n", "\n\n", ". ", "\n"} {
		if idx := strings.LastIndex(window, bp); idx > end/2 {
			cutoff = idx + len(bp)
			break
		}
	}

	kept := content[:cutoff]
	return kept + fmt.Sprintf("\n\n[Content truncated: original %d chars -> %d chars]",
		originalLen, utf8.RuneCountInString(kept))
}
