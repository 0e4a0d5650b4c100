package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ferrors "github.com/feedwise/feedwise/internal/errors"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 0.55, cfg.Search.SemanticWeight)
	assert.Equal(t, 0.2, cfg.Digest.SemanticWeight)
	assert.Equal(t, 100, cfg.Search.SemanticBudget)
	assert.Equal(t, "static", cfg.Embeddings.Provider)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)

	var fe *ferrors.Error
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, ferrors.ErrCodeConfigNotFound, fe.Code)
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
version: 1
search:
  semantic_weight: 0.6
  semantic_budget: 50
  title_weight: 4
  term_cap: 10
  min_term_length: 3
  max_results: 20
  keyword_backend: bleve
embeddings:
  provider: ollama
  dimensions: 768
digest:
  semantic_weight: 0.25
  target_size: 8
  per_source_cap: 2
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 0.6, cfg.Search.SemanticWeight)
	assert.Equal(t, 50, cfg.Search.SemanticBudget)
	assert.Equal(t, "bleve", cfg.Search.KeywordBackend)
	assert.Equal(t, "ollama", cfg.Embeddings.Provider)
	assert.Equal(t, 768, cfg.Embeddings.Dimensions)
	assert.Equal(t, 2, cfg.Digest.PerSourceCap)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("FEEDWISE_SEMANTIC_WEIGHT", "0.4")
	t.Setenv("FEEDWISE_EMBED_PROVIDER", "openai")
	t.Setenv("FEEDWISE_EMBED_DIMENSIONS", "256")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 0.4, cfg.Search.SemanticWeight)
	assert.Equal(t, "openai", cfg.Embeddings.Provider)
	assert.Equal(t, 256, cfg.Embeddings.Dimensions)
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"weight above one", func(c *Config) { c.Search.SemanticWeight = 1.5 }},
		{"negative weight", func(c *Config) { c.Digest.SemanticWeight = -0.1 }},
		{"zero budget", func(c *Config) { c.Search.SemanticBudget = 0 }},
		{"title weight below one", func(c *Config) { c.Search.TitleWeight = 0.5 }},
		{"unknown backend", func(c *Config) { c.Search.KeywordBackend = "lucene" }},
		{"unknown provider", func(c *Config) { c.Embeddings.Provider = "cohere" }},
		{"zero dimensions", func(c *Config) { c.Embeddings.Dimensions = 0 }},
		{"zero source cap", func(c *Config) { c.Digest.PerSourceCap = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Equal(t, ferrors.ErrCodeConfigInvalid, ferrors.CodeOf(err))
		})
	}
}
