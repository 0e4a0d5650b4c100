package digest

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/feedwise/feedwise/internal/config"
	"github.com/feedwise/feedwise/internal/feed"
	"github.com/feedwise/feedwise/internal/rank"
	"github.com/feedwise/feedwise/internal/store"
)

// Builder assembles a digest: it pulls items for a window from the item
// source, blends the upstream relevance signal with a semantic nudge
// toward an optional topic, applies diversity selection, and records the
// outcome for analytics.
type Builder struct {
	source     feed.Source
	blender    *rank.Blender
	selections store.SelectionStore // nil disables persistence
	config     config.DigestConfig
}

// NewBuilder wires a digest builder. selections may be nil; recording
// the outcome is useful, not required.
func NewBuilder(source feed.Source, blender *rank.Blender, selections store.SelectionStore, cfg config.DigestConfig) *Builder {
	if cfg.TargetSize <= 0 {
		cfg.TargetSize = 10
	}
	if cfg.PerSourceCap <= 0 {
		cfg.PerSourceCap = 3
	}
	return &Builder{
		source:     source,
		blender:    blender,
		selections: selections,
		config:     cfg,
	}
}

// Build produces the digest for the window. topic optionally steers the
// semantic nudge; when empty, items rank purely by the upstream
// relevance signal. A pool smaller than the target size yields a short
// digest, not an error.
func (b *Builder) Build(ctx context.Context, w feed.Window, topic string) (Selection, error) {
	items, err := b.source.Items(ctx, w)
	if err != nil {
		return Selection{}, err
	}
	if len(items) == 0 {
		return Selection{Selected: []rank.Candidate{}, Rejected: []store.Rejection{}}, nil
	}

	ranked, err := b.rankPool(ctx, items, topic)
	if err != nil {
		return Selection{}, err
	}

	sel := NewSelector(SelectorConfig{
		TargetSize:   b.config.TargetSize,
		PerSourceCap: b.config.PerSourceCap,
	}).Select(ranked)

	if b.selections != nil {
		rec := sel.Record(digestContext(w, topic))
		// The digest is already built; losing the analytics row is not
		// worth failing the request over.
		if err := b.selections.SaveSelection(context.WithoutCancel(ctx), rec); err != nil {
			slog.Warn("digest selection record not saved",
				slog.String("error", err.Error()))
		}
	}

	slog.Info("digest built",
		slog.Int("pool", len(items)),
		slog.Int("selected", len(sel.Selected)),
		slog.Int("rejected", len(sel.Rejected)))
	return sel, nil
}

// rankPool orders the pool for selection. With a topic, semantic
// similarity nudges the upstream relevance order at the digest weight;
// without one, relevance alone decides, ties broken by recency then ID.
func (b *Builder) rankPool(ctx context.Context, items []*feed.Item, topic string) ([]rank.Candidate, error) {
	if topic != "" {
		semantic, err := b.blender.SemanticScores(ctx, topic, items)
		if err != nil {
			return nil, err
		}
		return rank.Rerank(items, semantic, b.config.SemanticWeight), nil
	}

	ranked := rank.Rerank(items, nil, 0)
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Blended != ranked[j].Blended {
			return ranked[i].Blended > ranked[j].Blended
		}
		if !ranked[i].Item.PublishedAt.Equal(ranked[j].Item.PublishedAt) {
			return ranked[i].Item.PublishedAt.After(ranked[j].Item.PublishedAt)
		}
		return ranked[i].Item.ID < ranked[j].Item.ID
	})
	return ranked, nil
}

func digestContext(w feed.Window, topic string) string {
	day := w.Until
	if day.IsZero() {
		day = time.Now().UTC()
	}
	if topic != "" {
		return fmt.Sprintf("digest:%s:%s", day.Format("2006-01-02"), topic)
	}
	return "digest:" + day.Format("2006-01-02")
}
