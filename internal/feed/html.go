package feed

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ExtractText strips HTML markup from syndicated content, returning plain
// text suitable for keyword scoring and embedding. Script and style
// contents are dropped entirely. Input without markup passes through with
// whitespace collapsed.
func ExtractText(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if !strings.ContainsRune(s, '<') {
		return collapseWhitespace(s)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		// Malformed markup still carries words; fall back to the raw text.
		return collapseWhitespace(s)
	}

	doc.Find("script, style, noscript").Remove()
	return collapseWhitespace(doc.Text())
}

// collapseWhitespace folds runs of whitespace into single spaces.
func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
