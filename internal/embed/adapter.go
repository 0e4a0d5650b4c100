package embed

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"
)

// AdapterConfig configures batching and degradation behavior.
type AdapterConfig struct {
	// MaxChars is the provider input ceiling; text is truncated to it at
	// a word boundary before submission (default: DefaultMaxChars).
	MaxChars int

	// ChunkSize is the maximum items per provider request
	// (default: DefaultBatchSize, capped at BatchSafetyCeiling).
	ChunkSize int

	// MaxItemsPerCall is the absolute processing ceiling for one
	// EmbedBatch call. Items beyond it receive the fallback vector
	// instead of blocking the caller indefinitely. 0 means no ceiling.
	MaxItemsPerCall int

	// Concurrency bounds in-flight provider requests (default: 5).
	Concurrency int
}

// Adapter wraps a provider with the degradation contract the ranking
// pipeline relies on: order-preserving batches, word-boundary truncation,
// chunking above the safety ceiling, and a deterministic hash-derived
// fallback vector whenever the provider fails. Downstream code always
// receives a vector of the correct dimension; provider outage is logged,
// never surfaced as an error. The Checked variants report which outputs
// were substituted so ranking can discard informationless vectors.
type Adapter struct {
	provider Embedder
	fallback *StaticEmbedder
	config   AdapterConfig
}

// Compile-time interface checks for the package's embedders.
var (
	_ Embedder         = (*Adapter)(nil)
	_ Embedder         = (*StaticEmbedder)(nil)
	_ FallbackReporter = (*Adapter)(nil)
)

// NewAdapter wraps provider with the batching and fallback policy.
// The fallback embedder is created at the provider's dimension so
// substituted vectors stay comparable.
func NewAdapter(provider Embedder, cfg AdapterConfig) *Adapter {
	if cfg.MaxChars <= 0 {
		cfg.MaxChars = DefaultMaxChars
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = DefaultBatchSize
	}
	if cfg.ChunkSize > BatchSafetyCeiling {
		cfg.ChunkSize = BatchSafetyCeiling
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}

	return &Adapter{
		provider: provider,
		fallback: NewStaticEmbedder(provider.Dimensions()),
		config:   cfg,
	}
}

// Embed generates an embedding for a single text, substituting the
// fallback vector on provider failure.
func (a *Adapter) Embed(ctx context.Context, text string) ([]float32, error) {
	vec, _, err := a.EmbedChecked(ctx, text)
	return vec, err
}

// EmbedChecked is Embed plus a flag reporting whether the result is a
// fallback substitute rather than a provider embedding.
func (a *Adapter) EmbedChecked(ctx context.Context, text string) ([]float32, bool, error) {
	text = TruncateAtWord(text, a.config.MaxChars)

	vec, err := a.provider.Embed(ctx, text)
	if err != nil {
		if ctx.Err() != nil {
			return nil, false, ctx.Err()
		}
		slog.Warn("embedding provider failed, substituting fallback vector",
			slog.String("model", a.provider.ModelName()),
			slog.String("error", err.Error()))
		vec, ferr := a.fallback.Embed(context.WithoutCancel(ctx), text)
		if ferr != nil {
			return nil, false, ferr
		}
		return vec, true, nil
	}
	return vec, false, nil
}

// EmbedBatch generates embeddings for texts, order-preserving. The batch
// is truncated per item, capped at the absolute ceiling, chunked to the
// safety ceiling, and dispatched with bounded parallelism. A failed chunk
// degrades to fallback vectors for its items; only caller cancellation
// aborts the batch.
func (a *Adapter) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vecs, _, err := a.EmbedBatchChecked(ctx, texts)
	return vecs, err
}

// EmbedBatchChecked is EmbedBatch plus a parallel slice reporting which
// results are fallback substitutes.
func (a *Adapter) EmbedBatchChecked(ctx context.Context, texts []string) ([][]float32, []bool, error) {
	if len(texts) == 0 {
		return [][]float32{}, []bool{}, nil
	}

	truncated := make([]string, len(texts))
	for i, t := range texts {
		truncated[i] = TruncateAtWord(t, a.config.MaxChars)
	}

	results := make([][]float32, len(texts))
	substituted := make([]bool, len(texts))

	// Items beyond the absolute ceiling get fallback vectors up front.
	limit := len(truncated)
	if a.config.MaxItemsPerCall > 0 && limit > a.config.MaxItemsPerCall {
		limit = a.config.MaxItemsPerCall
		slog.Warn("embedding batch exceeds processing ceiling, overflow gets fallback vectors",
			slog.Int("batch", len(truncated)),
			slog.Int("ceiling", limit))
		for i := limit; i < len(truncated); i++ {
			vec, err := a.fallback.Embed(context.WithoutCancel(ctx), truncated[i])
			if err != nil {
				return nil, nil, err
			}
			results[i] = vec
			substituted[i] = true
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.config.Concurrency)

	for start := 0; start < limit; start += a.config.ChunkSize {
		end := min(start+a.config.ChunkSize, limit)

		g.Go(func() error {
			// Cancellation stops issuing further provider calls.
			if err := gctx.Err(); err != nil {
				return err
			}

			chunk := truncated[start:end]
			vecs, err := a.provider.EmbedBatch(gctx, chunk)
			if err != nil || len(vecs) != len(chunk) {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				slog.Warn("embedding chunk failed, substituting fallback vectors",
					slog.String("model", a.provider.ModelName()),
					slog.Int("offset", start),
					slog.Int("size", len(chunk)),
					slog.Any("error", err))
				for i, t := range chunk {
					vec, ferr := a.fallback.Embed(context.WithoutCancel(gctx), t)
					if ferr != nil {
						return ferr
					}
					results[start+i] = vec
					substituted[start+i] = true
				}
				return nil
			}

			copy(results[start:end], vecs)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return results, substituted, nil
}

// Dimensions returns the provider's embedding dimension.
func (a *Adapter) Dimensions() int {
	return a.provider.Dimensions()
}

// ModelName returns the wrapped provider's model identifier.
func (a *Adapter) ModelName() string {
	return a.provider.ModelName()
}

// Available reports provider readiness. The adapter itself never becomes
// unavailable; callers use this to decide whether semantic scores will be
// meaningful or fallback-derived.
func (a *Adapter) Available(ctx context.Context) bool {
	return a.provider.Available(ctx)
}

// Close releases provider resources.
func (a *Adapter) Close() error {
	_ = a.fallback.Close()
	return a.provider.Close()
}
