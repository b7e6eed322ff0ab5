package parser

import (
	"fmt"
	"regexp"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
)

var (
	htmlMarker = regexp.MustCompile(`(?i)<(!doctype\s+html|html|body|p|div|h[1-6]|br)[\s/>]`)

	gutenbergStart = regexp.MustCompile(`(?im)^.*START OF (THE|THIS) PROJECT GUTENBERG EBOOK.*$`)
	gutenbergEnd   = regexp.MustCompile(`(?im)^.*END OF (THE|THIS) PROJECT GUTENBERG EBOOK.*$`)

	blankRuns = regexp.MustCompile(`\n{3,}`)
)

// LooksLikeHTML reports whether s appears to be an HTML page rather than
// plain text.
func LooksLikeHTML(s string) bool {
	return htmlMarker.MatchString(s)
}

// Normalize turns a stored full text into plain prose for chunking. HTML
// pages are reduced to their body and converted to Markdown; the Project
// Gutenberg licence header and footer are dropped. Other plain text is
// returned unchanged.
func Normalize(raw string) (string, error) {
	text := raw
	if LooksLikeHTML(raw) {
		var err error
		text, err = htmlToMarkdown(raw)
		if err != nil {
			return "", err
		}
	}
	return stripGutenberg(text), nil
}

func htmlToMarkdown(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("failed to parse HTML: %w", err)
	}
	doc.Find("script, style, noscript").Remove()

	body, err := doc.Find("body").Html()
	if err != nil {
		return "", fmt.Errorf("failed to extract body: %w", err)
	}

	converter := md.NewConverter("", true, nil)
	markdown, err := converter.ConvertString(body)
	if err != nil {
		return "", fmt.Errorf("failed to convert to markdown: %w", err)
	}

	// Clean up trailing spaces and excessive blank lines
	lines := strings.Split(markdown, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	markdown = blankRuns.ReplaceAllString(strings.Join(lines, "\n"), "\n\n")
	return strings.TrimSpace(markdown), nil
}

// stripGutenberg keeps only the text between the START and END markers of a
// Project Gutenberg ebook. Text without markers is returned as is.
func stripGutenberg(text string) string {
	found := false
	if loc := gutenbergStart.FindStringIndex(text); loc != nil {
		text = text[loc[1]:]
		found = true
	}
	if loc := gutenbergEnd.FindStringIndex(text); loc != nil {
		text = text[:loc[0]]
		found = true
	}
	if found {
		text = strings.TrimSpace(text)
	}
	return text
}
