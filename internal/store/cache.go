package store

import (
	"context"
	"log/slog"
	"sync"
)

// DegradingCache wraps a VectorCache so that a failing backing store
// never takes the ranking pipeline down with it. Failed lookups return
// an empty map (semantic ranking is an enhancement, not a dependency);
// failed writes are logged and dropped. The pipeline always talks to the
// cache through this wrapper.
type DegradingCache struct {
	inner VectorCache
}

var _ VectorCache = (*DegradingCache)(nil)

// NewDegradingCache wraps inner with degradation-on-error behavior.
func NewDegradingCache(inner VectorCache) *DegradingCache {
	return &DegradingCache{inner: inner}
}

// Get returns cached vectors, or an empty map if the store is
// unreachable.
func (d *DegradingCache) Get(ctx context.Context, ids []string) (map[string][]float32, error) {
	vecs, err := d.inner.Get(ctx, ids)
	if err != nil {
		slog.Warn("vector cache lookup failed, continuing without cached vectors",
			slog.Int("ids", len(ids)),
			slog.String("error", err.Error()))
		return map[string][]float32{}, nil
	}
	return vecs, nil
}

// Put stores one vector, logging and dropping the write on failure.
func (d *DegradingCache) Put(ctx context.Context, id string, vec []float32, model string) error {
	if err := d.inner.Put(ctx, id, vec, model); err != nil {
		slog.Warn("vector cache write failed",
			slog.String("item", id),
			slog.String("error", err.Error()))
	}
	return nil
}

// PutBatch stores entries, logging and dropping the writes on failure.
func (d *DegradingCache) PutBatch(ctx context.Context, entries []VectorEntry) error {
	if err := d.inner.PutBatch(ctx, entries); err != nil {
		slog.Warn("vector cache batch write failed",
			slog.Int("entries", len(entries)),
			slog.String("error", err.Error()))
	}
	return nil
}

// MemoryCache is an in-memory VectorCache for tests and ephemeral runs.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]VectorEntry
}

var _ VectorCache = (*MemoryCache)(nil)

// NewMemoryCache creates an empty in-memory cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]VectorEntry)}
}

// Get returns cached vectors for ids.
func (m *MemoryCache) Get(_ context.Context, ids []string) (map[string][]float32, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make(map[string][]float32, len(ids))
	for _, id := range ids {
		if e, ok := m.entries[id]; ok {
			result[id] = e.Vector
		}
	}
	return result, nil
}

// Put stores one vector.
func (m *MemoryCache) Put(_ context.Context, id string, vec []float32, model string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[id] = VectorEntry{ID: id, Vector: vec, Model: model, Dimensions: len(vec)}
	return nil
}

// PutBatch stores entries.
func (m *MemoryCache) PutBatch(_ context.Context, entries []VectorEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range entries {
		m.entries[e.ID] = e
	}
	return nil
}

// Len returns the number of cached entries.
func (m *MemoryCache) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
