package digest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feedwise/feedwise/internal/config"
	"github.com/feedwise/feedwise/internal/embed"
	"github.com/feedwise/feedwise/internal/feed"
	"github.com/feedwise/feedwise/internal/rank"
	"github.com/feedwise/feedwise/internal/store"
)

type staticSource struct {
	items []*feed.Item
}

func (s *staticSource) Items(context.Context, feed.Window) ([]*feed.Item, error) {
	return s.items, nil
}

type recordingSelections struct {
	saved []*store.SelectionRecord
}

func (r *recordingSelections) SaveSelection(_ context.Context, rec *store.SelectionRecord) error {
	r.saved = append(r.saved, rec)
	return nil
}

func (r *recordingSelections) ListSelections(context.Context, time.Time, int) ([]*store.SelectionRecord, error) {
	return r.saved, nil
}

func newTestBuilder(items []*feed.Item, selections store.SelectionStore) *Builder {
	blender := rank.NewBlender(
		store.NewMemoryCache(),
		embed.NewStaticEmbedder(64),
		config.Default().Search,
		time.Second,
	)
	return NewBuilder(&staticSource{items: items}, blender, selections, config.Default().Digest)
}

func digestItems() []*feed.Item {
	day := time.Date(2026, 8, 29, 8, 0, 0, 0, time.UTC)
	return []*feed.Item{
		{ID: "a", Title: "Go 1.26 plans", Source: "gonews",
			URL: "https://go.dev/blog/plans", PublishedAt: day, Relevance: 0.9},
		{ID: "b", Title: "Postgres 18 released", Source: "dbweekly",
			URL: "https://example.com/pg18", PublishedAt: day, Relevance: 0.7},
		{ID: "c", Title: "Go profiling guide", Source: "gonews",
			URL: "https://example.com/profiling", PublishedAt: day, Relevance: 0.5},
	}
}

func TestBuilderRanksByRelevanceWithoutTopic(t *testing.T) {
	ctx := context.Background()
	b := newTestBuilder(digestItems(), nil)

	sel, err := b.Build(ctx, feed.Window{}, "")
	require.NoError(t, err)
	require.Len(t, sel.Selected, 3)
	assert.Equal(t, "a", sel.Selected[0].Item.ID)
	assert.Equal(t, "b", sel.Selected[1].Item.ID)
	assert.Equal(t, "c", sel.Selected[2].Item.ID)
}

func TestBuilderTopicNudgesButRelevanceDominates(t *testing.T) {
	ctx := context.Background()
	b := newTestBuilder(digestItems(), nil)

	sel, err := b.Build(ctx, feed.Window{}, "database releases")
	require.NoError(t, err)
	require.NotEmpty(t, sel.Selected)

	// At the digest weight the upstream relevance signal still leads.
	assert.Equal(t, "a", sel.Selected[0].Item.ID)
	for _, c := range sel.Selected {
		assert.Equal(t, rank.SignalRelevance, c.Signal)
	}
}

func TestBuilderPersistsSelectionRecord(t *testing.T) {
	ctx := context.Background()
	recorder := &recordingSelections{}
	b := newTestBuilder(digestItems(), recorder)

	_, err := b.Build(ctx, feed.Window{Until: time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC)}, "")
	require.NoError(t, err)

	require.Len(t, recorder.saved, 1)
	assert.Equal(t, "digest:2026-08-30", recorder.saved[0].Context)
	assert.Len(t, recorder.saved[0].Selected, 3)
}

func TestBuilderEmptyWindow(t *testing.T) {
	ctx := context.Background()
	b := newTestBuilder(nil, nil)

	sel, err := b.Build(ctx, feed.Window{}, "")
	require.NoError(t, err)
	assert.Empty(t, sel.Selected)
	assert.Empty(t, sel.Rejected)
}

func TestBuilderAppliesDiversityConstraints(t *testing.T) {
	ctx := context.Background()
	items := digestItems()
	items = append(items, &feed.Item{
		ID: "mirror", Title: "Go 1.26 plans (syndicated)", Source: "aggregator",
		URL: "https://mirror.example.net/plans", Relevance: 0.8,
	})
	b := newTestBuilder(items, nil)

	sel, err := b.Build(ctx, feed.Window{}, "")
	require.NoError(t, err)

	require.Len(t, sel.Rejected, 1)
	assert.Equal(t, "mirror", sel.Rejected[0].ItemID)
	assert.Equal(t, store.ReasonDuplicateURL, sel.Rejected[0].Reason)
}
