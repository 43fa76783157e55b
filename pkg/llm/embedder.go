package llm

import (
	"context"

	"github.com/tmc/langchaingo/llms/ollama"
	"golang.org/x/time/rate"

	"github.com/xhad/askdocs/internal/types"
)

type EmbedderConfig struct {
	Model   string
	BaseURL string // Ollama server URL
	// BatchSize bounds how many texts go to the server per request.
	BatchSize int
	// RateLimit caps embedding requests per second.
	RateLimit float64
}

// Embedder implements types.Embedder on top of an Ollama embedding
// model, batching and pacing requests to respect upstream limits.
type Embedder struct {
	config  EmbedderConfig
	client  *ollama.LLM
	limiter *rate.Limiter
}

func NewEmbedderWithConfig(config EmbedderConfig) (*Embedder, error) {
	if config.Model == "" {
		config.Model = "nomic-embed-text:latest"
	}
	if config.BaseURL == "" {
		config.BaseURL = "http://localhost:11434"
	}
	if config.BatchSize == 0 {
		config.BatchSize = 100
	}
	if config.RateLimit == 0 {
		config.RateLimit = 4
	}

	client, err := ollama.New(ollama.WithModel(config.Model),
		ollama.WithServerURL(config.BaseURL))
	if err != nil {
		return nil, types.Errorf(types.KindEmbedding, "llm.NewEmbedder", "failed to initialize embedding model: %v", err)
	}

	return &Embedder{
		config:  config,
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(config.RateLimit), 1),
	}, nil
}

// Embed returns one vector per input text, in input order.
func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	all := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += e.config.BatchSize {
		end := start + e.config.BatchSize
		if end > len(texts) {
			end = len(texts)
		}

		if err := e.limiter.Wait(ctx); err != nil {
			return nil, types.E(types.KindEmbedding, "llm.Embed", err)
		}

		batch, err := e.client.CreateEmbedding(ctx, texts[start:end])
		if err != nil {
			return nil, types.E(types.KindEmbedding, "llm.Embed", err)
		}
		all = append(all, batch...)
	}
	return all, nil
}
