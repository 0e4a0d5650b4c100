package embed

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feedwise/feedwise/internal/config"
)

func TestNewFromConfigStatic(t *testing.T) {
	cfg := config.Default().Embeddings
	cfg.Provider = "static"
	cfg.Dimensions = 128

	e, err := NewFromConfig(cfg)
	require.NoError(t, err)
	defer e.Close()

	assert.Equal(t, 128, e.Dimensions())
	assert.Equal(t, "static", e.ModelName())
}

func TestNewFromConfigOpenAIWithoutKeyFallsBack(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")

	cfg := config.Default().Embeddings
	cfg.Provider = "openai"

	e, err := NewFromConfig(cfg)
	require.NoError(t, err)
	defer e.Close()

	// No credentials selects the null provider at construction time.
	assert.Equal(t, "static", e.ModelName())
}

func TestNewFromConfigOpenAIWithKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test-not-real")

	cfg := config.Default().Embeddings
	cfg.Provider = "openai"
	cfg.Model = "text-embedding-3-small"

	e, err := NewFromConfig(cfg)
	require.NoError(t, err)
	defer e.Close()

	assert.Equal(t, "text-embedding-3-small", e.ModelName())
	assert.Equal(t, 1536, e.Dimensions())
}

func TestNewFromConfigOllama(t *testing.T) {
	cfg := config.Default().Embeddings
	cfg.Provider = "ollama"
	cfg.Model = "nomic-embed-text"
	cfg.Dimensions = 768

	e, err := NewFromConfig(cfg)
	require.NoError(t, err)
	defer e.Close()

	assert.Equal(t, "nomic-embed-text", e.ModelName())
	assert.Equal(t, 768, e.Dimensions())
}
