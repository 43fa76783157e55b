package config

import (
	"fmt"
	"net/url"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	// Validate LLM config
	if c.LLM.BaseURL == "" {
		errors = append(errors, ValidationError{
			Field:   "llm.base_url",
			Message: "Ollama base URL is required",
		})
	} else if _, err := url.Parse(c.LLM.BaseURL); err != nil {
		errors = append(errors, ValidationError{
			Field:   "llm.base_url",
			Message: "invalid Ollama base URL",
		})
	}

	if c.LLM.MaxAnswerTokens < 1 || c.LLM.MaxAnswerTokens > 4096 {
		errors = append(errors, ValidationError{
			Field:   "llm.max_answer_tokens",
			Message: "max_answer_tokens must be between 1 and 4096",
		})
	}

	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		errors = append(errors, ValidationError{
			Field:   "llm.temperature",
			Message: "temperature must be between 0 and 2",
		})
	}

	// Validate Database config
	if c.Database.URL != "" {
		if _, err := url.Parse(c.Database.URL); err != nil {
			errors = append(errors, ValidationError{
				Field:   "database.url",
				Message: "invalid database URL",
			})
		}
	}

	if c.Database.VectorDim < 1 {
		errors = append(errors, ValidationError{
			Field:   "database.vector_dim",
			Message: "vector_dim must be positive",
		})
	}

	if c.Database.BatchSize < 1 {
		errors = append(errors, ValidationError{
			Field:   "database.batch_size",
			Message: "batch_size must be positive",
		})
	}

	// Validate Segmenter config
	if c.Segmenter.MaxChunkSize < 1 {
		errors = append(errors, ValidationError{
			Field:   "segmenter.max_chunk_size",
			Message: "max_chunk_size must be positive",
		})
	}

	if c.Segmenter.Overlap < 0 || c.Segmenter.Overlap >= c.Segmenter.MaxChunkSize {
		errors = append(errors, ValidationError{
			Field:   "segmenter.overlap",
			Message: "overlap must be non-negative and less than max_chunk_size",
		})
	}

	// Validate Retrieval config
	if c.Retrieval.TopK < 1 {
		errors = append(errors, ValidationError{
			Field:   "retrieval.top_k",
			Message: "top_k must be positive",
		})
	}

	if c.Retrieval.MinSimilarity < 0 || c.Retrieval.MinSimilarity > 1 {
		errors = append(errors, ValidationError{
			Field:   "retrieval.min_similarity",
			Message: "min_similarity must be between 0 and 1",
		})
	}

	if c.Retrieval.MaxContextLength < 1 {
		errors = append(errors, ValidationError{
			Field:   "retrieval.max_context_length",
			Message: "max_context_length must be positive",
		})
	}

	// Validate Synthesis config
	if c.Synthesis.MaxContextChars < 1 {
		errors = append(errors, ValidationError{
			Field:   "synthesis.max_context_chars",
			Message: "max_context_chars must be positive",
		})
	}

	// Validate Server config
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errors = append(errors, ValidationError{
			Field:   "server.port",
			Message: "port must be between 1 and 65535",
		})
	}

	return errors
}
