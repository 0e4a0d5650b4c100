package embed

import (
	"log/slog"
	"os"

	"github.com/feedwise/feedwise/internal/config"
)

// NewFromConfig constructs the embedding stack selected by configuration:
// provider, degradation adapter, and LRU query cache. Selection happens
// once at startup; components receive the resulting Embedder by
// injection, never construct providers themselves.
//
// A missing OpenAI key does not fail construction: the static provider is
// substituted so the pipeline degrades to deterministic non-semantic
// vectors, which keyword-dominant ranking tolerates.
func NewFromConfig(cfg config.EmbeddingsConfig) (Embedder, error) {
	provider, err := newProvider(cfg)
	if err != nil {
		return nil, err
	}

	adapter := NewAdapter(provider, AdapterConfig{
		MaxChars:        cfg.MaxChars,
		ChunkSize:       cfg.BatchSize,
		MaxItemsPerCall: cfg.MaxItemsPerCall,
		Concurrency:     cfg.Concurrency,
	})

	return NewCachedEmbedder(adapter, cfg.CacheSize), nil
}

func newProvider(cfg config.EmbeddingsConfig) (Embedder, error) {
	switch cfg.Provider {
	case "openai":
		apiKey := os.Getenv("OPENAI_API_KEY")
		if apiKey == "" {
			slog.Warn("OPENAI_API_KEY not set, using static embedder",
				slog.String("requested_provider", "openai"))
			return NewStaticEmbedder(cfg.Dimensions), nil
		}
		return NewOpenAIEmbedder(OpenAIConfig{
			APIKey:            apiKey,
			Model:             cfg.Model,
			Dimensions:        cfg.Dimensions,
			RequestsPerSecond: cfg.RequestsPerSecond,
		})

	case "ollama":
		return NewOllamaEmbedder(OllamaConfig{
			Host:       cfg.OllamaHost,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
			Timeout:    cfg.Timeout,
		}), nil

	default:
		return NewStaticEmbedder(cfg.Dimensions), nil
	}
}
