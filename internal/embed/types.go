// Package embed turns text into fixed-dimension vectors. Providers sit
// behind one Embedder interface; the Adapter wrapper adds batching,
// truncation, bounded parallelism, and deterministic fallback vectors so
// downstream ranking always receives vectors of the correct dimension.
package embed

import (
	"context"
	"time"
)

// Batch and sizing constants.
const (
	// DefaultBatchSize is the chunk size for provider batch requests.
	DefaultBatchSize = 100

	// BatchSafetyCeiling is the maximum items submitted in one provider
	// request; larger inputs are chunked.
	BatchSafetyCeiling = 500

	// DefaultMaxChars is the default provider input ceiling in characters.
	DefaultMaxChars = 8000

	// DefaultConcurrency bounds in-flight provider calls per batch, to
	// respect upstream rate limits.
	DefaultConcurrency = 5

	// DefaultTimeout is the default per-request provider timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultDimensions is the dimension of the default OpenAI model.
	DefaultDimensions = 1536

	// StaticDimensions is the default dimension of the static embedder
	// when used standalone rather than as a provider fallback.
	StaticDimensions = 256
)

// Embedder generates vector embeddings for text.
type Embedder interface {
	// Embed generates an embedding for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts, order-preserving.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the embedding dimension.
	Dimensions() int

	// ModelName returns the model identifier.
	ModelName() string

	// Available checks if the embedder is ready.
	Available(ctx context.Context) bool

	// Close releases resources.
	Close() error
}

// FallbackReporter is implemented by embedders that substitute
// deterministic fallback vectors on provider failure and can report,
// per call, which outputs were substituted. Ranking uses the report to
// tell a degraded-but-informative vector set apart from one that
// carries no semantic signal at all.
type FallbackReporter interface {
	// EmbedChecked is Embed plus a flag marking a substituted result.
	EmbedChecked(ctx context.Context, text string) (vec []float32, substituted bool, err error)

	// EmbedBatchChecked is EmbedBatch plus a parallel slice marking
	// substituted results.
	EmbedBatchChecked(ctx context.Context, texts []string) (vecs [][]float32, substituted []bool, err error)
}
