package embed

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdapterOrderPreserving(t *testing.T) {
	mock := newMockEmbedder(16)
	adapter := NewAdapter(mock, AdapterConfig{ChunkSize: 2})
	ctx := context.Background()

	texts := []string{"a", "bb", "ccc", "dddd", "eeeee"}
	got, err := adapter.EmbedBatch(ctx, texts)
	require.NoError(t, err)
	require.Len(t, got, len(texts))

	for i, text := range texts {
		want, err := mock.Embed(ctx, text)
		require.NoError(t, err)
		assert.Equal(t, want, got[i], "index %d", i)
	}
}

func TestAdapterChunksLargeBatches(t *testing.T) {
	mock := newMockEmbedder(8)
	adapter := NewAdapter(mock, AdapterConfig{ChunkSize: 10, Concurrency: 2})

	texts := make([]string, 35)
	for i := range texts {
		texts[i] = fmt.Sprintf("item %d", i)
	}

	got, err := adapter.EmbedBatch(context.Background(), texts)
	require.NoError(t, err)
	require.Len(t, got, 35)

	for _, size := range mock.batchSizes() {
		assert.LessOrEqual(t, size, 10)
	}
}

func TestAdapterProviderFailureSubstitutesFallback(t *testing.T) {
	mock := newMockEmbedder(32)
	mock.fail.Store(true)
	adapter := NewAdapter(mock, AdapterConfig{})
	ctx := context.Background()

	got, err := adapter.EmbedBatch(ctx, []string{"alpha", "beta"})
	require.NoError(t, err)
	require.Len(t, got, 2)

	// Fallback vectors have the provider's dimension and are deterministic.
	fallback := NewStaticEmbedder(32)
	wantAlpha, _ := fallback.Embed(ctx, "alpha")
	wantBeta, _ := fallback.Embed(ctx, "beta")
	assert.Equal(t, wantAlpha, got[0])
	assert.Equal(t, wantBeta, got[1])
}

func TestAdapterBatchCheckedFlagsSubstitutions(t *testing.T) {
	ctx := context.Background()

	mock := newMockEmbedder(16)
	adapter := NewAdapter(mock, AdapterConfig{})

	_, substituted, err := adapter.EmbedBatchChecked(ctx, []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, []bool{false, false}, substituted)

	mock.fail.Store(true)
	_, substituted, err = adapter.EmbedBatchChecked(ctx, []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, []bool{true, true}, substituted,
		"a failing provider marks every vector as substituted")
}

func TestAdapterCheckedCeilingFlagsOverflow(t *testing.T) {
	mock := newMockEmbedder(8)
	adapter := NewAdapter(mock, AdapterConfig{ChunkSize: 100, MaxItemsPerCall: 3})

	_, substituted, err := adapter.EmbedBatchChecked(context.Background(),
		[]string{"one", "two", "three", "four", "five"})
	require.NoError(t, err)
	assert.Equal(t, []bool{false, false, false, true, true}, substituted)
}

func TestAdapterSingleEmbedFallback(t *testing.T) {
	mock := newMockEmbedder(16)
	mock.fail.Store(true)
	adapter := NewAdapter(mock, AdapterConfig{})

	vec, err := adapter.Embed(context.Background(), "headline")
	require.NoError(t, err)
	assert.Len(t, vec, 16)
}

func TestAdapterProcessingCeiling(t *testing.T) {
	mock := newMockEmbedder(8)
	adapter := NewAdapter(mock, AdapterConfig{ChunkSize: 100, MaxItemsPerCall: 3})
	ctx := context.Background()

	texts := []string{"one", "two", "three", "four", "five"}
	got, err := adapter.EmbedBatch(ctx, texts)
	require.NoError(t, err)
	require.Len(t, got, 5)

	// First three come from the provider, overflow from the fallback.
	provider, _ := mock.Embed(ctx, "one")
	assert.Equal(t, provider, got[0])

	fallback := NewStaticEmbedder(8)
	wantFour, _ := fallback.Embed(ctx, "four")
	assert.Equal(t, wantFour, got[3])
}

func TestAdapterCancellationAborts(t *testing.T) {
	mock := newMockEmbedder(8)
	adapter := NewAdapter(mock, AdapterConfig{ChunkSize: 1})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := adapter.EmbedBatch(ctx, []string{"a", "b", "c"})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAdapterEmptyBatch(t *testing.T) {
	adapter := NewAdapter(newMockEmbedder(8), AdapterConfig{})
	got, err := adapter.EmbedBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestAdapterTruncatesInput(t *testing.T) {
	mock := newMockEmbedder(8)
	adapter := NewAdapter(mock, AdapterConfig{MaxChars: 10})
	ctx := context.Background()

	long := "alpha beta gamma delta epsilon"
	got, err := adapter.Embed(ctx, long)
	require.NoError(t, err)

	// Matches embedding the truncated text, not the full text.
	want, _ := mock.Embed(ctx, TruncateAtWord(long, 10))
	assert.Equal(t, want, got)
}
