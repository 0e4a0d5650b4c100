package embed

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultQueryCacheSize is the default number of query embeddings kept in
// memory. Repeated queries skip the provider round-trip entirely.
const DefaultQueryCacheSize = 1000

// CachedEmbedder wraps an Embedder with LRU caching of computed vectors.
// This is the in-memory query-side cache; durable per-item vectors live
// in the store-backed vector cache.
type CachedEmbedder struct {
	inner Embedder
	cache *lru.Cache[string, []float32]
}

var (
	_ Embedder         = (*CachedEmbedder)(nil)
	_ FallbackReporter = (*CachedEmbedder)(nil)
)

// NewCachedEmbedder creates a cached embedder wrapping inner.
func NewCachedEmbedder(inner Embedder, cacheSize int) *CachedEmbedder {
	if cacheSize <= 0 {
		cacheSize = DefaultQueryCacheSize
	}
	cache, _ := lru.New[string, []float32](cacheSize)
	return &CachedEmbedder{
		inner: inner,
		cache: cache,
	}
}

// cacheKey hashes text together with the model name so a model switch
// never serves stale vectors.
func (c *CachedEmbedder) cacheKey(text string) string {
	combined := text + "\x00" + c.inner.ModelName()
	hash := sha256.Sum256([]byte(combined))
	return hex.EncodeToString(hash[:])
}

// Embed returns the cached embedding if present, otherwise computes and
// caches it.
func (c *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vec, _, err := c.EmbedChecked(ctx, text)
	return vec, err
}

// EmbedChecked is Embed plus the inner embedder's fallback-substitution
// flag. Substituted vectors are never cached, so a recovered provider
// replaces them on the next miss.
func (c *CachedEmbedder) EmbedChecked(ctx context.Context, text string) ([]float32, bool, error) {
	key := c.cacheKey(text)

	if vec, ok := c.cache.Get(key); ok {
		return vec, false, nil
	}

	vec, substituted, err := c.embedInner(ctx, text)
	if err != nil {
		return nil, false, err
	}

	if !substituted {
		c.cache.Add(key, vec)
	}
	return vec, substituted, nil
}

func (c *CachedEmbedder) embedInner(ctx context.Context, text string) ([]float32, bool, error) {
	if reporter, ok := c.inner.(FallbackReporter); ok {
		return reporter.EmbedChecked(ctx, text)
	}
	vec, err := c.inner.Embed(ctx, text)
	return vec, false, err
}

// EmbedBatch checks the cache per text and batches only the misses, so
// partial warm batches still save provider calls.
func (c *CachedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vecs, _, err := c.EmbedBatchChecked(ctx, texts)
	return vecs, err
}

// EmbedBatchChecked is EmbedBatch plus the inner embedder's per-result
// substitution flags. Cache hits are by construction never substituted;
// substituted misses are returned but not cached.
func (c *CachedEmbedder) EmbedBatchChecked(ctx context.Context, texts []string) ([][]float32, []bool, error) {
	if len(texts) == 0 {
		return [][]float32{}, []bool{}, nil
	}

	results := make([][]float32, len(texts))
	substituted := make([]bool, len(texts))
	missIndices := make([]int, 0, len(texts))
	missTexts := make([]string, 0, len(texts))

	for i, text := range texts {
		if vec, ok := c.cache.Get(c.cacheKey(text)); ok {
			results[i] = vec
		} else {
			missIndices = append(missIndices, i)
			missTexts = append(missTexts, text)
		}
	}

	if len(missTexts) == 0 {
		return results, substituted, nil
	}

	fresh, freshSubstituted, err := c.embedBatchInner(ctx, missTexts)
	if err != nil {
		return nil, nil, err
	}

	for j, idx := range missIndices {
		results[idx] = fresh[j]
		substituted[idx] = freshSubstituted[j]
		if !freshSubstituted[j] {
			c.cache.Add(c.cacheKey(texts[idx]), fresh[j])
		}
	}

	return results, substituted, nil
}

func (c *CachedEmbedder) embedBatchInner(ctx context.Context, texts []string) ([][]float32, []bool, error) {
	if reporter, ok := c.inner.(FallbackReporter); ok {
		return reporter.EmbedBatchChecked(ctx, texts)
	}
	vecs, err := c.inner.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, nil, err
	}
	return vecs, make([]bool, len(vecs)), nil
}

// Dimensions returns the embedding dimension (passthrough).
func (c *CachedEmbedder) Dimensions() int {
	return c.inner.Dimensions()
}

// ModelName returns the model identifier (passthrough).
func (c *CachedEmbedder) ModelName() string {
	return c.inner.ModelName()
}

// Available checks if the inner embedder is ready (passthrough).
func (c *CachedEmbedder) Available(ctx context.Context) bool {
	return c.inner.Available(ctx)
}

// Close closes the inner embedder.
func (c *CachedEmbedder) Close() error {
	return c.inner.Close()
}
