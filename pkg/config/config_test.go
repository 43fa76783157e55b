package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	// Create temporary config file
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configData := `
llm:
  base_url: "http://localhost:11434"
  model: "llama3"
  embed_model: "nomic-embed-text:latest"
  max_answer_tokens: 500
  temperature: 0.2

database:
  url: "postgres://localhost:5432/test"
  table_name: "test_chunks"
  vector_dim: 768
  batch_size: 50

segmenter:
  max_chunk_size: 500
  overlap: 100

retrieval:
  top_k: 5
  min_similarity: 0.4
  max_context_length: 4000
  expand_context: true

synthesis:
  max_context_chars: 6000
  include_citations: true

server:
  port: 9090
`
	err := os.WriteFile(configPath, []byte(configData), 0644)
	require.NoError(t, err)

	// Test loading config
	config, err := LoadConfig(configPath)
	require.NoError(t, err)

	// Verify loaded values
	assert.Equal(t, "http://localhost:11434", config.LLM.BaseURL)
	assert.Equal(t, "llama3", config.LLM.Model)
	assert.Equal(t, 500, config.LLM.MaxAnswerTokens)
	assert.Equal(t, 0.2, config.LLM.Temperature)
	assert.Equal(t, "postgres://localhost:5432/test", config.Database.URL)
	assert.Equal(t, 500, config.Segmenter.MaxChunkSize)
	assert.Equal(t, 5, config.Retrieval.TopK)
	assert.True(t, config.Retrieval.ExpandContext)
	assert.Equal(t, 6000, config.Synthesis.MaxContextChars)
	assert.Equal(t, 9090, config.Server.Port)
}

func TestLoadConfigDefaults(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("llm:\n  model: mistral\n"), 0644))

	config, err := LoadConfig(configPath)
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:11434", config.LLM.BaseURL)
	assert.Equal(t, "nomic-embed-text:latest", config.LLM.EmbedModel)
	assert.Equal(t, 1000, config.LLM.MaxAnswerTokens)
	assert.Equal(t, 0.1, config.LLM.Temperature)
	assert.Equal(t, "chunks", config.Database.TableName)
	assert.Equal(t, 768, config.Database.VectorDim)
	assert.Equal(t, 1000, config.Segmenter.MaxChunkSize)
	assert.Equal(t, 10, config.Retrieval.TopK)
	assert.Equal(t, 0.3, config.Retrieval.MinSimilarity)
	assert.Equal(t, 8000, config.Retrieval.MaxContextLength)
	assert.Equal(t, 12000, config.Synthesis.MaxContextChars)
	assert.Equal(t, 8080, config.Server.Port)
}

func TestConfigValidation(t *testing.T) {
	valid := &Config{}
	applyDefaults(valid)

	tests := []struct {
		name         string
		mutate       func(*Config)
		expectedErrs []string
	}{
		{
			name:   "valid config",
			mutate: func(c *Config) {},
		},
		{
			name: "missing base url",
			mutate: func(c *Config) {
				c.LLM.BaseURL = ""
			},
			expectedErrs: []string{"llm.base_url: Ollama base URL is required"},
		},
		{
			name: "out of range llm settings",
			mutate: func(c *Config) {
				c.LLM.MaxAnswerTokens = 5000
				c.LLM.Temperature = 3.0
			},
			expectedErrs: []string{
				"llm.max_answer_tokens: max_answer_tokens must be between 1 and 4096",
				"llm.temperature: temperature must be between 0 and 2",
			},
		},
		{
			name: "bad database settings",
			mutate: func(c *Config) {
				c.Database.VectorDim = -1
				c.Database.BatchSize = 0
			},
			expectedErrs: []string{
				"database.vector_dim: vector_dim must be positive",
				"database.batch_size: batch_size must be positive",
			},
		},
		{
			name: "overlap exceeds chunk size",
			mutate: func(c *Config) {
				c.Segmenter.MaxChunkSize = 100
				c.Segmenter.Overlap = 100
			},
			expectedErrs: []string{
				"segmenter.overlap: overlap must be non-negative and less than max_chunk_size",
			},
		},
		{
			name: "bad retrieval settings",
			mutate: func(c *Config) {
				c.Retrieval.TopK = 0
				c.Retrieval.MinSimilarity = 1.5
			},
			expectedErrs: []string{
				"retrieval.top_k: top_k must be positive",
				"retrieval.min_similarity: min_similarity must be between 0 and 1",
			},
		},
		{
			name: "bad server port",
			mutate: func(c *Config) {
				c.Server.Port = 70000
			},
			expectedErrs: []string{"server.port: port must be between 1 and 65535"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := *valid
			tt.mutate(&config)

			errors := config.Validate()
			assert.Len(t, errors, len(tt.expectedErrs))
			for i, msg := range tt.expectedErrs {
				assert.Equal(t, msg, errors[i].Error())
			}
		})
	}
}

func TestEnvironmentOverrides(t *testing.T) {
	// Set environment variables
	os.Setenv("OLLAMA_BASE_URL", "http://env-ollama:11434")
	os.Setenv("DATABASE_URL", "postgres://env-db:5432/test")
	os.Setenv("PORT", "9999")
	defer func() {
		os.Unsetenv("OLLAMA_BASE_URL")
		os.Unsetenv("DATABASE_URL")
		os.Unsetenv("PORT")
	}()

	config := &Config{}
	mergeWithEnv(config)

	assert.Equal(t, "http://env-ollama:11434", config.LLM.BaseURL)
	assert.Equal(t, "postgres://env-db:5432/test", config.Database.URL)
	assert.Equal(t, 9999, config.Server.Port)
}
