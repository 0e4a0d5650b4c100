package rank

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feedwise/feedwise/internal/config"
	"github.com/feedwise/feedwise/internal/embed"
	"github.com/feedwise/feedwise/internal/feed"
	"github.com/feedwise/feedwise/internal/store"
)

// stubEmbedder produces deterministic vectors via the static embedder
// and counts provider calls. down simulates a dead backend; delay
// simulates a slow one.
type stubEmbedder struct {
	inner *embed.StaticEmbedder
	down  bool
	delay time.Duration

	mu         sync.Mutex
	embedCalls int
	batchCalls int
}

var _ embed.Embedder = (*stubEmbedder)(nil)

func newStubEmbedder() *stubEmbedder {
	return &stubEmbedder{inner: embed.NewStaticEmbedder(64)}
}

func (s *stubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	s.mu.Lock()
	s.embedCalls++
	s.mu.Unlock()
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return s.inner.Embed(ctx, text)
}

func (s *stubEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	s.mu.Lock()
	s.batchCalls++
	s.mu.Unlock()
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return s.inner.EmbedBatch(ctx, texts)
}

func (s *stubEmbedder) Dimensions() int                { return s.inner.Dimensions() }
func (s *stubEmbedder) ModelName() string              { return "stub" }
func (s *stubEmbedder) Available(context.Context) bool { return !s.down }
func (s *stubEmbedder) Close() error                   { return nil }

// failingProvider reports itself available but errors on every call,
// the shape of a provider with valid credentials and a broken upstream.
type failingProvider struct {
	dims int
}

var _ embed.Embedder = (*failingProvider)(nil)

func (p *failingProvider) Embed(context.Context, string) ([]float32, error) {
	return nil, errors.New("upstream 500")
}

func (p *failingProvider) EmbedBatch(context.Context, []string) ([][]float32, error) {
	return nil, errors.New("upstream 500")
}

func (p *failingProvider) Dimensions() int                { return p.dims }
func (p *failingProvider) ModelName() string              { return "failing" }
func (p *failingProvider) Available(context.Context) bool { return true }
func (p *failingProvider) Close() error                   { return nil }

func newTestBlender(e embed.Embedder) (*Blender, *store.MemoryCache) {
	cache := store.NewMemoryCache()
	return NewBlender(cache, e, config.Default().Search, time.Second), cache
}

func corpus() []*feed.Item {
	return []*feed.Item{
		{ID: "go-1", Title: "Go error handling patterns", Source: "gonews",
			Body: "Wrapping errors with context in Go programs."},
		{ID: "go-2", Title: "Profiling Go services", Source: "gonews",
			Body: "CPU profiles, heap profiles, flame graphs."},
		{ID: "db-1", Title: "Postgres indexing deep dive", Source: "dbweekly",
			Body: "B-tree and GIN indexes for query performance."},
		{ID: "ml-1", Title: "Embedding models compared", Source: "mlnews",
			Body: "Vector dimensions, cost, and retrieval quality."},
	}
}

func TestSearchHybridBlendsSignals(t *testing.T) {
	ctx := context.Background()
	b, _ := newTestBlender(newStubEmbedder())

	results, err := b.Search(ctx, "go profiling", corpus(), DefaultOptions())
	require.NoError(t, err)
	require.NotEmpty(t, results)

	for _, c := range results {
		assert.Equal(t, SignalHybrid, c.Signal)
		assert.GreaterOrEqual(t, c.Keyword, 0.0)
		assert.LessOrEqual(t, c.Keyword, 1.0)
		assert.GreaterOrEqual(t, c.Semantic, 0.0)
		assert.LessOrEqual(t, c.Semantic, 1.0)
	}
	assert.Equal(t, "go-2", results[0].Item.ID, "exact title phrase ranks first")
}

func TestSearchNeverReturnsDuplicates(t *testing.T) {
	ctx := context.Background()
	b, _ := newTestBlender(newStubEmbedder())

	items := append(corpus(), corpus()...) // every item twice
	for _, mode := range []Mode{ModeKeywordOnly, ModeSemanticOnly, ModeHybrid} {
		results, err := b.Search(ctx, "go profiling", items, Options{Mode: mode, Weight: -1})
		require.NoError(t, err)

		seen := make(map[string]bool)
		for _, c := range results {
			assert.False(t, seen[c.Item.ID], "duplicate %s in mode %s", c.Item.ID, mode)
			seen[c.Item.ID] = true
		}
	}
}

func TestSearchBlendIsConvexCombination(t *testing.T) {
	ctx := context.Background()

	for _, w := range []float64{0, 0.2, 0.55, 0.8, 1} {
		b, _ := newTestBlender(newStubEmbedder())
		results, err := b.Search(ctx, "go profiling", corpus(), Options{Mode: ModeHybrid, Weight: w})
		require.NoError(t, err)

		for _, c := range results {
			lo, hi := c.Semantic, c.Keyword
			if lo > hi {
				lo, hi = hi, lo
			}
			assert.GreaterOrEqual(t, c.Blended, lo-1e-9, "weight %v", w)
			assert.LessOrEqual(t, c.Blended, hi+1e-9, "weight %v", w)
		}
	}
}

func TestSearchDeadBackendFallsBackToKeywordOrder(t *testing.T) {
	ctx := context.Background()

	stub := newStubEmbedder()
	stub.down = true
	b, _ := newTestBlender(stub)

	degraded, err := b.Search(ctx, "go profiling", corpus(), DefaultOptions())
	require.NoError(t, err)

	keywordOnly, err := b.Search(ctx, "go profiling", corpus(), Options{Mode: ModeKeywordOnly, Weight: -1})
	require.NoError(t, err)

	require.Len(t, degraded, len(keywordOnly))
	for i := range degraded {
		assert.Equal(t, keywordOnly[i].Item.ID, degraded[i].Item.ID)
	}
	assert.Zero(t, stub.embedCalls, "dead backend gets no embed calls")

	out, err := b.SearchDetailed(ctx, "go profiling", corpus(), DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, FallbackProviderDown, out.Degraded)
}

func TestSearchAllFallbackVectorsRankKeywordOrder(t *testing.T) {
	ctx := context.Background()

	// The provider claims availability but fails every call, so the
	// adapter substitutes its hash-derived fallback for everything.
	adapter := embed.NewAdapter(&failingProvider{dims: 64}, embed.AdapterConfig{})
	b, cache := newTestBlender(adapter)

	out, err := b.SearchDetailed(ctx, "go", corpus(), DefaultOptions())
	require.NoError(t, err)
	require.NotEmpty(t, out.Candidates)
	assert.Equal(t, FallbackProviderDown, out.Degraded)

	keywordOnly, err := b.Search(ctx, "go", corpus(), Options{Mode: ModeKeywordOnly, Weight: -1})
	require.NoError(t, err)

	require.Len(t, out.Candidates, len(keywordOnly))
	for i := range out.Candidates {
		assert.Equal(t, keywordOnly[i].Item.ID, out.Candidates[i].Item.ID,
			"all-fallback vectors must not perturb keyword order")
	}
	assert.Zero(t, cache.Len(), "fallback vectors are never cached")
}

func TestSearchEmbedTimeoutFallsBackToKeywordOrder(t *testing.T) {
	ctx := context.Background()

	stub := newStubEmbedder()
	stub.delay = 5 * time.Second
	cache := store.NewMemoryCache()
	b := NewBlender(cache, stub, config.Default().Search, 50*time.Millisecond)

	out, err := b.SearchDetailed(ctx, "go profiling", corpus(), DefaultOptions())
	require.NoError(t, err)
	require.NotEmpty(t, out.Candidates)
	assert.Equal(t, "go-2", out.Candidates[0].Item.ID)
	assert.Equal(t, FallbackTimeout, out.Degraded,
		"a deadline-exceeded embed is reported as a timeout, not a dead provider")
}

func TestSearchSemanticOnlyIsDeterministic(t *testing.T) {
	ctx := context.Background()
	b, _ := newTestBlender(newStubEmbedder())

	var first []string
	for run := 0; run < 5; run++ {
		results, err := b.Search(ctx, "profiling services", corpus(), Options{Mode: ModeSemanticOnly, Weight: -1, Limit: 4})
		require.NoError(t, err)

		ids := make([]string, len(results))
		for i, c := range results {
			ids[i] = c.Item.ID
		}
		if run == 0 {
			first = ids
			continue
		}
		assert.Equal(t, first, ids, "identical inputs must produce identical ordering")
	}
}

func TestSearchWarmCacheIssuesNoBatchCalls(t *testing.T) {
	ctx := context.Background()
	stub := newStubEmbedder()
	b, cache := newTestBlender(stub)

	first, err := b.Search(ctx, "go profiling", corpus(), DefaultOptions())
	require.NoError(t, err)
	require.NotEmpty(t, first)
	require.Equal(t, 1, stub.batchCalls)
	assert.Positive(t, cache.Len(), "generated vectors are written back")

	second, err := b.Search(ctx, "go profiling", corpus(), DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, 1, stub.batchCalls, "warm cache issues zero additional batch calls")

	require.Len(t, second, len(first))
	for i := range first {
		assert.Equal(t, first[i].Item.ID, second[i].Item.ID)
		assert.InDelta(t, first[i].Blended, second[i].Blended, 1e-9)
	}
}

func TestSearchEmptyQueryReturnsEmpty(t *testing.T) {
	ctx := context.Background()
	b, _ := newTestBlender(newStubEmbedder())

	for _, q := range []string{"", "   ", "a b"} {
		results, err := b.Search(ctx, q, corpus(), DefaultOptions())
		require.NoError(t, err)
		assert.Empty(t, results, "query %q", q)
	}
}

func TestSearchSemanticOnlyTopsUpFromOverlap(t *testing.T) {
	ctx := context.Background()
	b, _ := newTestBlender(newStubEmbedder())

	results, err := b.Search(ctx, "postgres indexing", corpus(), Options{Mode: ModeSemanticOnly, Weight: -1, Limit: 4})
	require.NoError(t, err)
	require.NotEmpty(t, results)

	ids := make(map[string]bool)
	for _, c := range results {
		ids[c.Item.ID] = true
	}
	assert.True(t, ids["db-1"], "the on-topic item is present")
}

func TestSearchLimitBoundsResults(t *testing.T) {
	ctx := context.Background()
	b, _ := newTestBlender(newStubEmbedder())

	results, err := b.Search(ctx, "go", corpus(), Options{Mode: ModeKeywordOnly, Weight: -1, Limit: 1})
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestRerankRelevanceDominatesAtLowWeight(t *testing.T) {
	items := []*feed.Item{
		{ID: "high-rel", Title: "Editor picks", Relevance: 0.9},
		{ID: "high-sem", Title: "Merely similar", Relevance: 0.1},
	}
	semantic := map[string]float64{"high-rel": 0.2, "high-sem": 0.95}

	ranked := Rerank(items, semantic, 0.2)
	require.Len(t, ranked, 2)
	assert.Equal(t, "high-rel", ranked[0].Item.ID,
		"upstream relevance dominates at digest weight")
	assert.Equal(t, SignalRelevance, ranked[0].Signal)

	t.Run("high weight flips the order", func(t *testing.T) {
		ranked := Rerank(items, semantic, 0.9)
		assert.Equal(t, "high-sem", ranked[0].Item.ID)
	})
}

func TestSemanticScoresClampedAndKeyed(t *testing.T) {
	ctx := context.Background()
	b, _ := newTestBlender(newStubEmbedder())

	scores, err := b.SemanticScores(ctx, "go profiling", corpus())
	require.NoError(t, err)
	require.Len(t, scores, len(corpus()))
	for id, s := range scores {
		assert.GreaterOrEqual(t, s, 0.0, id)
		assert.LessOrEqual(t, s, 1.0, id)
	}
}
