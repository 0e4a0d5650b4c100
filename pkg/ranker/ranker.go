// Package ranker is the library-level boundary of the hybrid retrieval
// pipeline. Callers hand it items from their ingestion layer and get
// back ranked results with a per-signal breakdown, reranked lists, or a
// diversity-constrained final set. There is no wire protocol; an API
// layer invokes it in-process.
package ranker

import (
	"context"
	"time"

	"github.com/feedwise/feedwise/internal/config"
	"github.com/feedwise/feedwise/internal/digest"
	"github.com/feedwise/feedwise/internal/embed"
	"github.com/feedwise/feedwise/internal/feed"
	"github.com/feedwise/feedwise/internal/rank"
	"github.com/feedwise/feedwise/internal/store"
	"github.com/feedwise/feedwise/internal/telemetry"
)

// Result is one ranked item with its signal breakdown.
type Result struct {
	ID       string  `json:"id"`
	Score    float64 `json:"score"`
	Keyword  float64 `json:"keyword"`
	Semantic float64 `json:"semantic"`
	Signal   string  `json:"signal"`

	Item *feed.Item `json:"-"`
}

// Rejection is one item the selector skipped, with the reason.
type Rejection struct {
	ID     string `json:"id"`
	Reason string `json:"reason"`
}

// Selection is the diversity-constrained final set.
type Selection struct {
	Selected []Result    `json:"selected"`
	Rejected []Rejection `json:"rejected"`
}

// Ranker runs the pipeline. Construct it once with the cache and
// embedder capabilities; both are injected so callers control
// credentials and storage.
type Ranker struct {
	blender *rank.Blender
	metrics *telemetry.Metrics
}

// New wires a ranker from its capabilities.
func New(cache store.VectorCache, embedder embed.Embedder, cfg config.SearchConfig, embedTimeout time.Duration) *Ranker {
	return &Ranker{
		blender: rank.NewBlender(cache, embedder, cfg, embedTimeout),
		metrics: telemetry.NewMetrics(100),
	}
}

// Search ranks items against query in hybrid mode and returns at most
// limit results. The result is possibly degraded (keyword-only under
// provider outage) but never an error for a non-critical dependency
// failure.
func (r *Ranker) Search(ctx context.Context, query string, items []*feed.Item, limit int) ([]Result, error) {
	return r.SearchWithOptions(ctx, query, items, rank.Options{Mode: rank.ModeHybrid, Weight: -1, Limit: limit})
}

// SearchWithOptions ranks items with explicit mode, weight, and limit.
func (r *Ranker) SearchWithOptions(ctx context.Context, query string, items []*feed.Item, opts rank.Options) ([]Result, error) {
	start := time.Now()

	out, err := r.blender.SearchDetailed(ctx, query, items, opts)
	if err != nil {
		return nil, err
	}

	results := toResults(out.Candidates)
	r.metrics.Record(telemetry.QueryEvent{
		Query:       query,
		Mode:        opts.Mode.String(),
		ResultCount: len(results),
		Latency:     time.Since(start),
		Degraded:    telemetry.Degradation(out.Degraded),
		Timestamp:   start.UTC(),
	})
	return results, nil
}

// Rerank blends semantic scores into an already relevance-ranked list,
// leaving the upstream relevance signal dominant at low weights.
func Rerank(ranked []*feed.Item, semanticScores map[string]float64, weight float64) []Result {
	return toResults(rank.Rerank(ranked, semanticScores, weight))
}

// SemanticScores computes each item's similarity to query, for callers
// that rerank their own lists.
func (r *Ranker) SemanticScores(ctx context.Context, query string, items []*feed.Item) (map[string]float64, error) {
	return r.blender.SemanticScores(ctx, query, items)
}

// Select walks pool in rank order and returns a final set honoring the
// per-source cap and normalized-URL duplicate suppression. A pool too
// small to fill targetSize yields a short list, not an error.
func Select(pool []Result, targetSize, perSourceCap int) Selection {
	candidates := make([]rank.Candidate, 0, len(pool))
	for _, res := range pool {
		if res.Item == nil {
			continue
		}
		candidates = append(candidates, rank.Candidate{
			Item:     res.Item,
			Keyword:  res.Keyword,
			Semantic: res.Semantic,
			Blended:  res.Score,
			Signal:   rank.Signal(res.Signal),
		})
	}

	sel := digest.NewSelector(digest.SelectorConfig{
		TargetSize:   targetSize,
		PerSourceCap: perSourceCap,
	}).Select(candidates)

	out := Selection{
		Selected: toResults(sel.Selected),
		Rejected: make([]Rejection, len(sel.Rejected)),
	}
	for i, rej := range sel.Rejected {
		out.Rejected[i] = Rejection{ID: rej.ItemID, Reason: string(rej.Reason)}
	}
	return out
}

// Metrics returns a snapshot of query telemetry.
func (r *Ranker) Metrics() *telemetry.Snapshot {
	return r.metrics.Snapshot()
}

func toResults(candidates []rank.Candidate) []Result {
	results := make([]Result, len(candidates))
	for i, c := range candidates {
		results[i] = Result{
			ID:       c.Item.ID,
			Score:    c.Blended,
			Keyword:  c.Keyword,
			Semantic: c.Semantic,
			Signal:   string(c.Signal),
			Item:     c.Item,
		}
	}
	return results
}
