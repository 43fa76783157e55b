// Package types defines the ports the answer pipeline talks to its
// external collaborators through, plus the shared error taxonomy.
package types

import (
	"context"

	"github.com/xhad/askdocs/internal/models"
)

// Embedder converts texts into fixed-dimension vectors, one per input,
// in input order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Generator produces a completion for a prompt.
type Generator interface {
	Complete(ctx context.Context, prompt string, maxTokens int, temperature float64) (string, error)
	Model() string
}

// SearchFilter scopes a similarity search to an owner and, optionally,
// a subset of documents.
type SearchFilter struct {
	OwnerID     string
	DocumentIDs []string
}

// VectorIndex persists chunk embeddings and answers similarity
// queries. Search returns results in descending similarity order.
// GetByID and ChunkAt return (nil, nil) when no chunk matches.
type VectorIndex interface {
	Add(ctx context.Context, chunks []models.Chunk, ownerID string) ([]string, error)
	Search(ctx context.Context, queryVector []float32, topN int, filter SearchFilter) ([]models.RetrievedChunk, error)
	DeleteByDocument(ctx context.Context, documentID string) error
	GetByID(ctx context.Context, chunkID string) (*models.Chunk, error)
	ChunkAt(ctx context.Context, documentID string, index int) (*models.Chunk, error)
}
