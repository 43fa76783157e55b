package llm_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xhad/askdocs/pkg/llm"
)

func TestNewGeneratorWithConfig(t *testing.T) {
	gen, err := llm.NewGeneratorWithConfig(llm.GeneratorConfig{
		Model:   "codestral",
		BaseURL: "http://localhost:11434",
	})
	require.NoError(t, err)
	assert.Equal(t, "ollama:codestral", gen.Model())
}

func TestNewGeneratorDefaults(t *testing.T) {
	gen, err := llm.NewGeneratorWithConfig(llm.GeneratorConfig{})
	require.NoError(t, err)
	assert.Equal(t, "ollama:mistral", gen.Model())
}

func TestNewEmbedderWithConfig(t *testing.T) {
	emb, err := llm.NewEmbedderWithConfig(llm.EmbedderConfig{
		Model:     "nomic-embed-text:latest",
		BaseURL:   "http://localhost:11434",
		BatchSize: 50,
	})
	require.NoError(t, err)
	assert.NotNil(t, emb)
}
