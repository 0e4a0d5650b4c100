// Package store provides persistence for feedwise: item rows, the
// durable per-item vector cache, persisted selection records, and an
// optional indexed keyword backend. SQLite (pure Go driver) is the
// backing engine.
package store

import (
	"context"
	"time"

	"github.com/feedwise/feedwise/internal/feed"
)

// VectorEntry is one cached embedding with its provenance tag.
type VectorEntry struct {
	ID         string
	Vector     []float32
	Model      string
	Dimensions int
	CreatedAt  time.Time
}

// VectorCache persists one embedding per item identifier.
//
// Lookup misses are not errors: callers treat a missing vector as "needs
// generation". Vectors are immutable once written except for full
// replacement on re-embedding. Concurrent writers racing on the same id
// idempotently overwrite the same value; no locking is needed for
// correctness.
type VectorCache interface {
	// Get returns the cached vectors for ids. Missing ids are simply
	// absent from the map.
	Get(ctx context.Context, ids []string) (map[string][]float32, error)

	// Put stores one vector, replacing any previous entry.
	Put(ctx context.Context, id string, vec []float32, model string) error

	// PutBatch stores entries, replacing previous entries per id.
	PutBatch(ctx context.Context, entries []VectorEntry) error
}

// RejectionReason tags why the diversity selector skipped an item.
type RejectionReason string

const (
	ReasonDuplicateURL      RejectionReason = "duplicate_url"
	ReasonSourceCapExceeded RejectionReason = "source_cap_exceeded"
	ReasonBelowThreshold    RejectionReason = "below_threshold"
)

// Rejection records one skipped item and why.
type Rejection struct {
	ItemID string
	Reason RejectionReason
}

// SelectionRecord is the persisted outcome of one diversity selection,
// kept for analytics. Not required for correctness.
type SelectionRecord struct {
	ID        string
	Context   string // e.g. "digest:2026-08-30" or the query string
	Selected  []string
	Rejected  []Rejection
	CreatedAt time.Time
}

// ItemStore persists and queries items. Writes belong to the ingestion
// collaborator; the ranking pipeline only reads.
type ItemStore interface {
	feed.Source

	// SaveItems upserts items (ingestion side).
	SaveItems(ctx context.Context, items []*feed.Item) error

	// GetItems returns items by id, omitting unknown ids.
	GetItems(ctx context.Context, ids []string) ([]*feed.Item, error)
}

// SelectionStore persists selection records.
type SelectionStore interface {
	SaveSelection(ctx context.Context, rec *SelectionRecord) error
	ListSelections(ctx context.Context, since time.Time, limit int) ([]*SelectionRecord, error)
}

// KeywordResult is one hit from an indexed keyword backend.
type KeywordResult struct {
	ItemID string
	Score  float64
}

// KeywordIndex is an optional indexed keyword backend for large corpora.
// The heuristic scorer in internal/rank remains the always-available
// default; this interface exists so a prebuilt full-text index can supply
// the candidate pool instead of scanning every item per query.
type KeywordIndex interface {
	Index(ctx context.Context, items []*feed.Item) error
	Search(ctx context.Context, query string, limit int) ([]KeywordResult, error)
	Delete(ctx context.Context, ids []string) error
	Count() (int, error)
	Close() error
}
