// Package config loads and validates feedwise configuration.
// Precedence, highest last: built-in defaults, config file, FEEDWISE_*
// environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	ferrors "github.com/feedwise/feedwise/internal/errors"
)

// Config represents the complete feedwise configuration.
type Config struct {
	Version    int              `yaml:"version" json:"version"`
	Store      StoreConfig      `yaml:"store" json:"store"`
	Search     SearchConfig     `yaml:"search" json:"search"`
	Embeddings EmbeddingsConfig `yaml:"embeddings" json:"embeddings"`
	Digest     DigestConfig     `yaml:"digest" json:"digest"`
	Logging    LoggingConfig    `yaml:"logging" json:"logging"`
}

// StoreConfig configures the SQLite-backed item and vector stores.
type StoreConfig struct {
	// Path is the SQLite database file. Empty means in-memory.
	Path string `yaml:"path" json:"path"`
}

// SearchConfig configures the hybrid ranking pipeline.
type SearchConfig struct {
	// SemanticWeight is the weight w in blended = semantic*w + keyword*(1-w)
	// for query/search mode (0.0-1.0).
	SemanticWeight float64 `yaml:"semantic_weight" json:"semantic_weight"`

	// SemanticBudget bounds how many keyword-ranked candidates get
	// embeddings resolved per query.
	SemanticBudget int `yaml:"semantic_budget" json:"semantic_budget"`

	// TitleWeight multiplies term-frequency credit in titles versus body.
	TitleWeight float64 `yaml:"title_weight" json:"title_weight"`

	// TermCap limits repeated-term credit per field.
	TermCap int `yaml:"term_cap" json:"term_cap"`

	// MinTermLength drops query terms shorter than this from per-term
	// frequency scoring. The exact-phrase title check ignores it.
	MinTermLength int `yaml:"min_term_length" json:"min_term_length"`

	// MaxResults is the maximum allowed result limit.
	MaxResults int `yaml:"max_results" json:"max_results"`

	// KeywordBackend selects the keyword scoring backend.
	// Options: "heuristic" (default, index-free) or "bleve" (indexed,
	// for large corpora).
	KeywordBackend string `yaml:"keyword_backend" json:"keyword_backend"`
}

// EmbeddingsConfig configures the embedding provider adapter.
type EmbeddingsConfig struct {
	// Provider selects the backend: "openai", "ollama", or "static".
	// "static" is the credential-free null provider.
	Provider   string        `yaml:"provider" json:"provider"`
	Model      string        `yaml:"model" json:"model"`
	Dimensions int           `yaml:"dimensions" json:"dimensions"`
	BatchSize  int           `yaml:"batch_size" json:"batch_size"`
	Timeout    time.Duration `yaml:"timeout" json:"timeout"`

	// MaxChars is the provider input ceiling; text is truncated to it at
	// a word boundary before submission.
	MaxChars int `yaml:"max_chars" json:"max_chars"`

	// MaxItemsPerCall is the absolute processing ceiling per batch call;
	// items beyond it receive the fallback vector.
	MaxItemsPerCall int `yaml:"max_items_per_call" json:"max_items_per_call"`

	// Concurrency bounds in-flight provider calls during batch embedding.
	Concurrency int `yaml:"concurrency" json:"concurrency"`

	// RequestsPerSecond rate-limits provider calls (0 = unlimited).
	RequestsPerSecond float64 `yaml:"requests_per_second" json:"requests_per_second"`

	// OllamaHost is the Ollama API endpoint.
	OllamaHost string `yaml:"ollama_host" json:"ollama_host"`

	// CacheSize is the in-memory LRU size for query embeddings.
	CacheSize int `yaml:"cache_size" json:"cache_size"`
}

// DigestConfig configures digest ranking and diversity selection.
type DigestConfig struct {
	// SemanticWeight is the blend weight for digest mode, where the
	// upstream relevance signal stands in for the keyword side.
	SemanticWeight float64 `yaml:"semantic_weight" json:"semantic_weight"`

	// TargetSize is the default digest size.
	TargetSize int `yaml:"target_size" json:"target_size"`

	// PerSourceCap bounds how many selected items may share a source.
	PerSourceCap int `yaml:"per_source_cap" json:"per_source_cap"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	Level    string `yaml:"level" json:"level"`
	FilePath string `yaml:"file_path" json:"file_path"`
}

// Default returns the built-in defaults.
func Default() *Config {
	return &Config{
		Version: 1,
		Store: StoreConfig{
			Path: defaultStorePath(),
		},
		Search: SearchConfig{
			SemanticWeight: 0.55,
			SemanticBudget: 100,
			TitleWeight:    3.0,
			TermCap:        10,
			MinTermLength:  3,
			MaxResults:     100,
			KeywordBackend: "heuristic",
		},
		Embeddings: EmbeddingsConfig{
			Provider:        "static",
			Model:           "text-embedding-3-small",
			Dimensions:      1536,
			BatchSize:       100,
			Timeout:         30 * time.Second,
			MaxChars:        8000,
			MaxItemsPerCall: 500,
			Concurrency:     5,
			OllamaHost:      "http://localhost:11434",
			CacheSize:       1000,
		},
		Digest: DigestConfig{
			SemanticWeight: 0.2,
			TargetSize:     10,
			PerSourceCap:   3,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

func defaultStorePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "feedwise.db"
	}
	return filepath.Join(home, ".feedwise", "feedwise.db")
}

// Load reads configuration from path (optional), applies environment
// overrides, and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, ferrors.New(ferrors.ErrCodeConfigNotFound,
					fmt.Sprintf("config file not found: %s", path), err)
			}
			return nil, ferrors.Wrap(ferrors.ErrCodeConfigInvalid, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, ferrors.New(ferrors.ErrCodeConfigInvalid,
				fmt.Sprintf("invalid config file %s: %v", path, err), err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides applies FEEDWISE_* environment variables on top of the
// loaded configuration.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("FEEDWISE_STORE_PATH"); v != "" {
		cfg.Store.Path = v
	}
	if v := os.Getenv("FEEDWISE_SEMANTIC_WEIGHT"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Search.SemanticWeight = f
		}
	}
	if v := os.Getenv("FEEDWISE_SEMANTIC_BUDGET"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Search.SemanticBudget = n
		}
	}
	if v := os.Getenv("FEEDWISE_KEYWORD_BACKEND"); v != "" {
		cfg.Search.KeywordBackend = v
	}
	if v := os.Getenv("FEEDWISE_EMBED_PROVIDER"); v != "" {
		cfg.Embeddings.Provider = v
	}
	if v := os.Getenv("FEEDWISE_EMBED_MODEL"); v != "" {
		cfg.Embeddings.Model = v
	}
	if v := os.Getenv("FEEDWISE_EMBED_DIMENSIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Embeddings.Dimensions = n
		}
	}
	if v := os.Getenv("FEEDWISE_OLLAMA_HOST"); v != "" {
		cfg.Embeddings.OllamaHost = v
	}
	if v := os.Getenv("FEEDWISE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// Validate checks configuration invariants.
func (c *Config) Validate() error {
	if c.Search.SemanticWeight < 0 || c.Search.SemanticWeight > 1 {
		return ferrors.New(ferrors.ErrCodeConfigInvalid,
			fmt.Sprintf("search.semantic_weight must be in [0,1], got %v", c.Search.SemanticWeight), nil)
	}
	if c.Digest.SemanticWeight < 0 || c.Digest.SemanticWeight > 1 {
		return ferrors.New(ferrors.ErrCodeConfigInvalid,
			fmt.Sprintf("digest.semantic_weight must be in [0,1], got %v", c.Digest.SemanticWeight), nil)
	}
	if c.Search.SemanticBudget <= 0 {
		return ferrors.New(ferrors.ErrCodeConfigInvalid,
			"search.semantic_budget must be positive", nil)
	}
	if c.Search.TitleWeight < 1 {
		return ferrors.New(ferrors.ErrCodeConfigInvalid,
			"search.title_weight must be >= 1", nil)
	}
	switch c.Search.KeywordBackend {
	case "heuristic", "bleve":
	default:
		return ferrors.New(ferrors.ErrCodeConfigInvalid,
			fmt.Sprintf("search.keyword_backend must be heuristic or bleve, got %q", c.Search.KeywordBackend), nil)
	}
	switch c.Embeddings.Provider {
	case "openai", "ollama", "static":
	default:
		return ferrors.New(ferrors.ErrCodeConfigInvalid,
			fmt.Sprintf("embeddings.provider must be openai, ollama, or static, got %q", c.Embeddings.Provider), nil)
	}
	if c.Embeddings.Dimensions <= 0 {
		return ferrors.New(ferrors.ErrCodeConfigInvalid,
			"embeddings.dimensions must be positive", nil)
	}
	if c.Digest.PerSourceCap <= 0 {
		return ferrors.New(ferrors.ErrCodeConfigInvalid,
			"digest.per_source_cap must be positive", nil)
	}
	return nil
}
