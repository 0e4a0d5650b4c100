package embed

import (
	"strings"
	"unicode/utf8"
)

// TruncateAtWord shortens text to at most maxChars characters, cutting at
// a word boundary rather than mid-token. If the first word alone exceeds
// the ceiling it is cut hard at a rune boundary, since submitting nothing
// would be worse than submitting a clipped token.
func TruncateAtWord(text string, maxChars int) string {
	if maxChars <= 0 || len(text) <= maxChars {
		return text
	}

	cut := text[:maxChars]

	// Never split a multi-byte rune.
	for len(cut) > 0 && !utf8.ValidString(cut) {
		cut = cut[:len(cut)-1]
	}

	if idx := strings.LastIndexAny(cut, " \t\n\r"); idx > 0 {
		cut = cut[:idx]
	}

	return strings.TrimRight(cut, " \t\n\r")
}
