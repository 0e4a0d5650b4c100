package rank

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/feedwise/feedwise/internal/config"
	"github.com/feedwise/feedwise/internal/embed"
	"github.com/feedwise/feedwise/internal/feed"
	"github.com/feedwise/feedwise/internal/store"
	"github.com/feedwise/feedwise/internal/vector"
)

// semanticFloor is the minimum clamped similarity for a candidate to
// count as a semantic hit. Below it, cosine against unrelated text is
// noise, not signal.
const semanticFloor = 0.1

// Blender combines keyword and semantic scores into one ranked list.
//
// Per query it runs the keyword scorer over the full pool, resolves
// embeddings for only the top SemanticBudget candidates (cache first,
// provider adapter for misses), and blends the two signals. The fallback
// chain is explicit: no embeddings at all degrades to pure keyword
// order; a thin semantic result set falls back to term overlap; an
// embedding timeout degrades to keyword-only for that request.
type Blender struct {
	keyword      *KeywordScorer
	overlap      OverlapScorer
	cache        store.VectorCache
	embedder     embed.Embedder
	budget       int
	maxResults   int
	weight       float64
	embedTimeout time.Duration
}

// NewBlender wires the pipeline. cache and embedder are injected so
// tests can substitute fakes; neither may be nil.
func NewBlender(cache store.VectorCache, embedder embed.Embedder, cfg config.SearchConfig, embedTimeout time.Duration) *Blender {
	b := &Blender{
		keyword:      NewKeywordScorer(cfg),
		cache:        cache,
		embedder:     embedder,
		budget:       cfg.SemanticBudget,
		maxResults:   cfg.MaxResults,
		weight:       cfg.SemanticWeight,
		embedTimeout: embedTimeout,
	}
	if b.budget <= 0 {
		b.budget = 100
	}
	if b.maxResults <= 0 {
		b.maxResults = 100
	}
	if b.embedTimeout <= 0 {
		b.embedTimeout = embed.DefaultTimeout
	}
	return b
}

// Search ranks items against query. It always returns a (possibly
// degraded or shorter) result when a non-critical dependency is down;
// the only hard errors are malformed input and dimension contract
// violations.
func (b *Blender) Search(ctx context.Context, query string, items []*feed.Item, opts Options) ([]Candidate, error) {
	out, err := b.SearchDetailed(ctx, query, items, opts)
	if err != nil {
		return nil, err
	}
	return out.Candidates, nil
}

// SearchDetailed is Search plus the degradation cause, for callers that
// feed telemetry.
func (b *Blender) SearchDetailed(ctx context.Context, query string, items []*feed.Item, opts Options) (Outcome, error) {
	query = strings.TrimSpace(query)
	limit := opts.Limit
	if limit <= 0 || limit > b.maxResults {
		limit = b.maxResults
	}
	weight := opts.Weight
	if weight < 0 {
		weight = b.weight
	}
	if weight > 1 {
		weight = 1
	}

	items = dedupeItems(items)

	switch opts.Mode {
	case ModeKeywordOnly:
		return Outcome{Candidates: truncate(normalizeKeyword(b.keyword.Score(query, items)), limit)}, nil
	case ModeSemanticOnly:
		return b.searchSemantic(ctx, query, items, limit)
	default:
		return b.searchHybrid(ctx, query, items, limit, weight)
	}
}

func (b *Blender) searchHybrid(ctx context.Context, query string, items []*feed.Item, limit int, weight float64) (Outcome, error) {
	ranked := b.keyword.Score(query, items)
	if len(ranked) == 0 {
		return Outcome{Candidates: []Candidate{}}, nil
	}

	// The semantic budget bounds embedding work per query regardless of
	// corpus size.
	subset := ranked
	if len(subset) > b.budget {
		subset = subset[:b.budget]
	}
	subset = normalizeKeyword(subset)

	queryVec, vecs, cause := b.resolveVectors(ctx, query, candidateItems(subset))
	if cause != FallbackNone {
		// No usable embeddings: pure keyword order, not zero-valued
		// semantic artifacts.
		slog.Info("semantic scoring unavailable, ranking keyword-only",
			slog.String("query", query),
			slog.String("cause", string(cause)))
		return Outcome{Candidates: truncate(subset, limit), Degraded: cause}, nil
	}

	for i := range subset {
		vec, found := vecs[subset[i].Item.ID]
		if !found {
			subset[i].Blended = subset[i].Keyword * (1 - weight)
			subset[i].Signal = SignalHybrid
			continue
		}
		sim, err := vector.Cosine(queryVec, vec)
		if err != nil {
			return Outcome{}, err
		}
		subset[i].Semantic = vector.ClampUnit(sim)
		subset[i].Blended = subset[i].Semantic*weight + subset[i].Keyword*(1-weight)
		subset[i].Signal = SignalHybrid
	}

	sortCandidates(subset, func(c Candidate) float64 { return c.Blended })
	return Outcome{Candidates: truncate(subset, limit)}, nil
}

func (b *Blender) searchSemantic(ctx context.Context, query string, items []*feed.Item, limit int) (Outcome, error) {
	if query == "" {
		return Outcome{Candidates: []Candidate{}}, nil
	}

	pool := b.semanticPool(query, items)
	queryVec, vecs, cause := b.resolveVectors(ctx, query, pool)
	if cause != FallbackNone {
		slog.Info("semantic scoring unavailable, falling back to term overlap",
			slog.String("query", query),
			slog.String("cause", string(cause)))
		return Outcome{Candidates: truncate(b.overlap.Score(query, items), limit), Degraded: cause}, nil
	}

	byID := make(map[string]*feed.Item, len(pool))
	for _, it := range pool {
		byID[it.ID] = it
	}

	hits, err := b.nearest(queryVec, vecs, limit)
	if err != nil {
		return Outcome{}, err
	}

	results := make([]Candidate, 0, len(hits))
	for _, hit := range hits {
		if hit.Score <= semanticFloor {
			continue
		}
		results = append(results, Candidate{
			Item:     byID[hit.ID],
			Semantic: hit.Score,
			Blended:  hit.Score,
			Signal:   SignalSemantic,
		})
	}

	// A thin semantic result set over a small corpus favors completeness
	// over semantic purity: top up from term overlap.
	toppedUp := 0
	if minAcceptable := max(5, limit/2); len(results) < minAcceptable {
		seen := make(map[string]struct{}, len(results))
		for _, c := range results {
			seen[c.Item.ID] = struct{}{}
		}
		for _, c := range b.overlap.Score(query, items) {
			if _, dup := seen[c.Item.ID]; dup {
				continue
			}
			results = append(results, c)
			toppedUp++
			if len(results) >= limit {
				break
			}
		}
	}
	if toppedUp > 0 {
		cause = FallbackThinResults
	}
	return Outcome{Candidates: truncate(results, limit), Degraded: cause}, nil
}

// nearest ranks the resolved vectors against the query by exact
// brute-force top-K, sorted descending with ID-ascending tie-breaks so
// identical inputs always produce identical output. Pools here are
// already capped at the semantic budget, so the linear scan cost is
// fixed regardless of corpus size.
func (b *Blender) nearest(queryVec []float32, vecs map[string][]float32, limit int) ([]vector.Scored, error) {
	candidates := make([]vector.Candidate, 0, len(vecs))
	for id, vec := range vecs {
		candidates = append(candidates, vector.Candidate{ID: id, Vector: vec})
	}
	return vector.TopK(queryVec, candidates, limit)
}

// semanticPool bounds the semantic-only candidate pool at the budget,
// preferring keyword-ranked items when the pool overflows.
func (b *Blender) semanticPool(query string, items []*feed.Item) []*feed.Item {
	if len(items) <= b.budget {
		return items
	}

	pool := make([]*feed.Item, 0, b.budget)
	seen := make(map[string]struct{}, b.budget)
	for _, c := range b.keyword.Score(query, items) {
		if len(pool) == b.budget {
			return pool
		}
		pool = append(pool, c.Item)
		seen[c.Item.ID] = struct{}{}
	}
	for _, it := range items {
		if len(pool) == b.budget {
			break
		}
		if _, dup := seen[it.ID]; dup {
			continue
		}
		pool = append(pool, it)
	}
	return pool
}

// resolveVectors embeds the query and resolves item vectors, cache
// first. The embed calls run under the configured timeout; on timeout or
// cancellation the caller degrades to keyword scoring, with the cause
// reported for telemetry. Vectors the adapter substituted from its
// fallback are excluded: they carry no semantic signal and would poison
// the cache against a recovered provider. Freshly generated provider
// vectors are written back to the cache even when the request has since
// been cancelled; they stay useful for future queries.
func (b *Blender) resolveVectors(ctx context.Context, query string, items []*feed.Item) ([]float32, map[string][]float32, FallbackCause) {
	if !b.embedder.Available(ctx) {
		// Whole backend down: the semantic signal carries no
		// information at all.
		slog.Warn("embedding provider unavailable",
			slog.String("model", b.embedder.ModelName()))
		return nil, nil, FallbackProviderDown
	}

	// A provider can fail every call while still reporting available;
	// the checked embed paths catch that case by flagging substituted
	// vectors.
	reporter, _ := b.embedder.(embed.FallbackReporter)

	ectx, cancel := context.WithTimeout(ctx, b.embedTimeout)
	defer cancel()

	var (
		queryVec         []float32
		querySubstituted bool
		err              error
	)
	if reporter != nil {
		queryVec, querySubstituted, err = reporter.EmbedChecked(ectx, query)
	} else {
		queryVec, err = b.embedder.Embed(ectx, query)
	}
	if err != nil {
		slog.Warn("query embedding failed",
			slog.String("query", query),
			slog.String("error", err.Error()))
		return nil, nil, causeFromError(err)
	}
	if querySubstituted {
		// Similarities against a hash-derived query vector are noise.
		slog.Warn("query embedding fell back, semantic signal unusable",
			slog.String("query", query))
		return nil, nil, FallbackProviderDown
	}

	ids := make([]string, len(items))
	for i, it := range items {
		ids[i] = it.ID
	}
	cached, err := b.cache.Get(ctx, ids)
	if err != nil {
		// The degrading wrapper normally absorbs this; a raw cache is
		// treated the same way.
		slog.Warn("vector cache lookup failed", slog.String("error", err.Error()))
		cached = map[string][]float32{}
	}

	vecs := make(map[string][]float32, len(items))
	var missing []*feed.Item
	for _, it := range items {
		if vec, found := cached[it.ID]; found {
			vecs[it.ID] = vec
		} else {
			missing = append(missing, it)
		}
	}
	if len(missing) == 0 {
		return queryVec, vecs, FallbackNone
	}

	texts := make([]string, len(missing))
	for i, it := range missing {
		texts[i] = it.EmbeddingText()
	}
	var (
		generated   [][]float32
		substituted []bool
	)
	if reporter != nil {
		generated, substituted, err = reporter.EmbedBatchChecked(ectx, texts)
	} else {
		generated, err = b.embedder.EmbedBatch(ectx, texts)
		if err == nil {
			substituted = make([]bool, len(generated))
		}
	}
	if err != nil {
		slog.Warn("embedding batch failed, continuing with cached vectors only",
			slog.Int("missing", len(missing)),
			slog.String("error", err.Error()))
		if len(vecs) > 0 {
			return queryVec, vecs, FallbackNone
		}
		return nil, nil, causeFromError(err)
	}

	entries := make([]store.VectorEntry, 0, len(missing))
	for i, it := range missing {
		if substituted[i] {
			continue
		}
		vecs[it.ID] = generated[i]
		entries = append(entries, store.VectorEntry{
			ID:     it.ID,
			Vector: generated[i],
			Model:  b.embedder.ModelName(),
		})
	}
	if len(entries) > 0 {
		if err := b.cache.PutBatch(context.WithoutCancel(ctx), entries); err != nil {
			slog.Warn("vector cache write failed", slog.String("error", err.Error()))
		}
	}
	if len(vecs) == 0 {
		slog.Warn("every item embedding fell back, semantic signal unusable",
			slog.Int("items", len(items)))
		return nil, nil, FallbackProviderDown
	}
	return queryVec, vecs, FallbackNone
}

// causeFromError classifies an embed failure for telemetry.
func causeFromError(err error) FallbackCause {
	if errors.Is(err, context.DeadlineExceeded) {
		return FallbackTimeout
	}
	return FallbackProviderDown
}

// Rerank blends semantic scores into an already relevance-ranked list.
// The upstream relevance signal on each item takes the keyword side of
// the blend; digest ranking uses a small weight so that signal, not raw
// similarity, dominates.
func Rerank(ranked []*feed.Item, semantic map[string]float64, weight float64) []Candidate {
	if weight < 0 {
		weight = 0
	}
	if weight > 1 {
		weight = 1
	}

	out := make([]Candidate, 0, len(ranked))
	for _, it := range dedupeItems(ranked) {
		rel := vector.ClampUnit(it.Relevance)
		sem := vector.ClampUnit(semantic[it.ID])
		out = append(out, Candidate{
			Item:     it,
			Keyword:  rel,
			Semantic: sem,
			Blended:  sem*weight + rel*(1-weight),
			Signal:   SignalRelevance,
		})
	}
	sortCandidates(out, func(c Candidate) float64 { return c.Blended })
	return out
}

// SemanticScores resolves embeddings for items and returns each item's
// clamped similarity to query. Items whose vectors cannot be resolved
// are absent from the map; a fully degraded resolution returns an empty
// map.
func (b *Blender) SemanticScores(ctx context.Context, query string, items []*feed.Item) (map[string]float64, error) {
	items = dedupeItems(items)
	if len(items) > b.budget {
		items = items[:b.budget]
	}

	queryVec, vecs, cause := b.resolveVectors(ctx, query, items)
	if cause != FallbackNone {
		return map[string]float64{}, nil
	}

	scores := make(map[string]float64, len(vecs))
	for id, vec := range vecs {
		sim, err := vector.Cosine(queryVec, vec)
		if err != nil {
			return nil, err
		}
		scores[id] = vector.ClampUnit(sim)
	}
	return scores, nil
}

// normalizeKeyword rescales keyword scores to [0,1] relative to the
// pool's maximum. The input is sorted descending, so the first element
// carries the maximum.
func normalizeKeyword(cs []Candidate) []Candidate {
	if len(cs) == 0 {
		return cs
	}
	maxScore := cs[0].Keyword
	if maxScore <= 0 {
		return cs
	}
	for i := range cs {
		cs[i].Keyword /= maxScore
		cs[i].Blended = cs[i].Keyword
	}
	return cs
}

func candidateItems(cs []Candidate) []*feed.Item {
	items := make([]*feed.Item, len(cs))
	for i, c := range cs {
		items[i] = c.Item
	}
	return items
}

func dedupeItems(items []*feed.Item) []*feed.Item {
	seen := make(map[string]struct{}, len(items))
	out := make([]*feed.Item, 0, len(items))
	for _, it := range items {
		if it == nil {
			continue
		}
		if _, dup := seen[it.ID]; dup {
			continue
		}
		seen[it.ID] = struct{}{}
		out = append(out, it)
	}
	return out
}

func truncate(cs []Candidate, limit int) []Candidate {
	if len(cs) > limit {
		return cs[:limit]
	}
	return cs
}
