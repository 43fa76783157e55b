// Package llm adapts Ollama-served models to the generation and
// embedding ports of the answer pipeline.
package llm

import (
	"context"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"

	"github.com/xhad/askdocs/internal/types"
)

type GeneratorConfig struct {
	Model   string
	BaseURL string // Ollama server URL
}

// Generator implements types.Generator on top of an Ollama model.
type Generator struct {
	config GeneratorConfig
	llm    llms.Model
}

func NewGeneratorWithConfig(config GeneratorConfig) (*Generator, error) {
	if config.Model == "" {
		config.Model = "mistral"
	}
	if config.BaseURL == "" {
		config.BaseURL = "http://localhost:11434"
	}

	model, err := ollama.New(ollama.WithModel(config.Model),
		ollama.WithServerURL(config.BaseURL))
	if err != nil {
		return nil, types.Errorf(types.KindGeneration, "llm.NewGenerator", "failed to initialize LLM: %v", err)
	}

	return &Generator{config: config, llm: model}, nil
}

func (g *Generator) Model() string { return "ollama:" + g.config.Model }

// Complete runs one completion. Quota, timeout, and invalid-request
// failures all surface as generation errors; a caller deadline on ctx
// bounds the call.
func (g *Generator) Complete(ctx context.Context, prompt string, maxTokens int, temperature float64) (string, error) {
	response, err := llms.GenerateFromSinglePrompt(ctx, g.llm, prompt,
		llms.WithMaxTokens(maxTokens),
		llms.WithTemperature(temperature),
	)
	if err != nil {
		return "", types.E(types.KindGeneration, "llm.Complete", err)
	}
	return strings.TrimSpace(response), nil
}
