package vector

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ferrors "github.com/feedwise/feedwise/internal/errors"
)

func testVec(dims int, seed float32) []float32 {
	v := make([]float32, dims)
	for i := range v {
		v[i] = seed * float32(i+1)
	}
	return v
}

func TestIndexAddAndSearch(t *testing.T) {
	ix, err := NewIndex(IndexConfig{Dimensions: 8})
	require.NoError(t, err)

	ids := []string{"a", "b", "c"}
	vectors := [][]float32{
		{1, 0, 0, 0, 0, 0, 0, 0},
		{0, 1, 0, 0, 0, 0, 0, 0},
		{0.9, 0.1, 0, 0, 0, 0, 0, 0},
	}
	require.NoError(t, ix.Add(ids, vectors))
	assert.Equal(t, 3, ix.Count())

	results, err := ix.Search([]float32{1, 0, 0, 0, 0, 0, 0, 0}, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "a", results[0].ID)
	assert.Equal(t, "c", results[1].ID)
	assert.InDelta(t, 1.0, results[0].Score, 1e-6)
}

func TestIndexReplaceExistingID(t *testing.T) {
	ix, err := NewIndex(IndexConfig{Dimensions: 4})
	require.NoError(t, err)

	require.NoError(t, ix.Add([]string{"x"}, [][]float32{{1, 0, 0, 0}}))
	require.NoError(t, ix.Add([]string{"x"}, [][]float32{{0, 1, 0, 0}}))
	assert.Equal(t, 1, ix.Count())

	results, err := ix.Search([]float32{0, 1, 0, 0}, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "x", results[0].ID)
	assert.InDelta(t, 1.0, results[0].Score, 1e-6)
}

func TestIndexDimensionChecks(t *testing.T) {
	ix, err := NewIndex(IndexConfig{Dimensions: 8})
	require.NoError(t, err)

	err = ix.Add([]string{"bad"}, [][]float32{make([]float32, 4)})
	require.Error(t, err)
	assert.Equal(t, ferrors.ErrCodeDimensionMismatch, ferrors.CodeOf(err))

	_, err = ix.Search(make([]float32, 4), 1)
	require.Error(t, err)
	assert.Equal(t, ferrors.ErrCodeDimensionMismatch, ferrors.CodeOf(err))
}

func TestIndexEmptySearch(t *testing.T) {
	ix, err := NewIndex(IndexConfig{Dimensions: 4})
	require.NoError(t, err)

	results, err := ix.Search(make([]float32, 4), 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestIndexLargerCorpus(t *testing.T) {
	ix, err := NewIndex(IndexConfig{Dimensions: 16})
	require.NoError(t, err)

	var ids []string
	var vectors [][]float32
	for i := 0; i < 50; i++ {
		ids = append(ids, fmt.Sprintf("item-%02d", i))
		vectors = append(vectors, testVec(16, float32(i+1)/50))
	}
	require.NoError(t, ix.Add(ids, vectors))
	assert.Equal(t, 50, ix.Count())
	assert.True(t, ix.Contains("item-25"))
	assert.False(t, ix.Contains("item-99"))

	results, err := ix.Search(testVec(16, 0.5), 10)
	require.NoError(t, err)
	assert.Len(t, results, 10)
}
