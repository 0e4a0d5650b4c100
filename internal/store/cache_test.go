package store

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingCache struct {
	err error
}

var _ VectorCache = (*failingCache)(nil)

func (f *failingCache) Get(context.Context, []string) (map[string][]float32, error) {
	return nil, f.err
}
func (f *failingCache) Put(context.Context, string, []float32, string) error { return f.err }
func (f *failingCache) PutBatch(context.Context, []VectorEntry) error        { return f.err }

func TestDegradingCacheSwallowsErrors(t *testing.T) {
	ctx := context.Background()
	d := NewDegradingCache(&failingCache{err: errors.New("disk gone")})

	got, err := d.Get(ctx, []string{"a", "b"})
	require.NoError(t, err)
	assert.Empty(t, got, "failed lookup degrades to empty map")

	assert.NoError(t, d.Put(ctx, "a", []float32{1}, "m"))
	assert.NoError(t, d.PutBatch(ctx, []VectorEntry{{ID: "a", Vector: []float32{1}}}))
}

func TestDegradingCachePassesThrough(t *testing.T) {
	ctx := context.Background()
	d := NewDegradingCache(NewMemoryCache())

	require.NoError(t, d.Put(ctx, "a", []float32{1, 2}, "m"))
	got, err := d.Get(ctx, []string{"a"})
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2}, got["a"])
}

func TestMemoryCache(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryCache()

	require.NoError(t, m.PutBatch(ctx, []VectorEntry{
		{ID: "a", Vector: []float32{1}},
		{ID: "b", Vector: []float32{2}},
	}))
	assert.Equal(t, 2, m.Len())

	got, err := m.Get(ctx, []string{"a", "missing"})
	require.NoError(t, err)
	assert.Len(t, got, 1)
}
