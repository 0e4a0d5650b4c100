package feed

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestExtractText(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"empty", "", ""},
		{"plain text", "just words here", "just words here"},
		{"whitespace collapsed", "a\n\n  b\tc", "a b c"},
		{"simple markup", "<p>Hello <b>world</b></p>", "Hello world"},
		{"nested markup", "<div><h1>Title</h1><p>Body text.</p></div>", "Title Body text."},
		{"script removed", "<p>keep</p><script>var x = 1;</script>", "keep"},
		{"style removed", "<style>.a{color:red}</style><p>visible</p>", "visible"},
		{"entities decoded", "<p>fish &amp; chips</p>", "fish & chips"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractText(tt.input))
		})
	}
}

func TestItemText(t *testing.T) {
	it := &Item{
		ID:          "a1",
		Title:       "Release notes",
		Summary:     "<p>Short <i>summary</i></p>",
		Body:        "<article>Full body</article>",
		PublishedAt: time.Now(),
	}

	assert.Equal(t, "Short summary\nFull body", it.Text())
	assert.Equal(t, "Release notes\nShort summary\nFull body", it.EmbeddingText())
}

func TestItemTextFallsBackToTitle(t *testing.T) {
	it := &Item{ID: "a2", Title: "Only a headline"}
	assert.Equal(t, "", it.Text())
	assert.Equal(t, "Only a headline", it.EmbeddingText())
}
