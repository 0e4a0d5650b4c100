// Package feed defines the syndicated content model consumed by the
// ranking pipeline. Items are owned by the ingestion collaborator; this
// package only reads them.
package feed

import (
	"context"
	"time"
)

// Item is an immutable content record once scored.
type Item struct {
	// ID uniquely identifies the item.
	ID string

	// Title is the item headline.
	Title string

	// Source is the publishing outlet name.
	Source string

	// URL is the canonical item link.
	URL string

	// PublishedAt is the publish timestamp.
	PublishedAt time.Time

	// Summary is an optional short description (may contain HTML).
	Summary string

	// Body is the optional full text (may contain HTML).
	Body string

	// Category is the topical tag assigned at ingestion.
	Category string

	// Relevance is an optional upstream quality/usefulness signal in
	// [0,1]. Zero means unscored. The digest blender uses it in place of
	// recomputed keyword scores.
	Relevance float64
}

// Text returns the item's scoreable body text: summary plus body with
// HTML stripped. Titles are scored separately with a higher weight.
func (it *Item) Text() string {
	summary := ExtractText(it.Summary)
	body := ExtractText(it.Body)
	switch {
	case summary == "":
		return body
	case body == "":
		return summary
	default:
		return summary + "\n" + body
	}
}

// EmbeddingText returns the text submitted to the embedding provider:
// title plus stripped body text.
func (it *Item) EmbeddingText() string {
	text := it.Text()
	if text == "" {
		return it.Title
	}
	return it.Title + "\n" + text
}

// Window describes a time window and optional category filter for item
// queries.
type Window struct {
	Since    time.Time
	Until    time.Time
	Category string
}

// Source provides read-only access to items, owned by ingestion.
type Source interface {
	// Items returns the items inside the window, newest first.
	Items(ctx context.Context, w Window) ([]*Item, error)
}
