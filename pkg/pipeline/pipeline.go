// Package pipeline wires segmentation, embedding, vector search,
// ranking, and synthesis into the two top-level flows: ingesting a
// document and answering a question against the stored corpus.
package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/xhad/askdocs/internal/models"
	"github.com/xhad/askdocs/internal/types"
	"github.com/xhad/askdocs/pkg/ranker"
	"github.com/xhad/askdocs/pkg/segmenter"
	"github.com/xhad/askdocs/pkg/synth"
)

type Pipeline struct {
	segmenter segmenter.Segmenter
	ranker    ranker.Ranker
	synth     synth.Synthesizer
	embedder  types.Embedder
	index     types.VectorIndex
	topK      int
}

func New(seg segmenter.Segmenter, rank ranker.Ranker, syn synth.Synthesizer, embedder types.Embedder, index types.VectorIndex, topK int) *Pipeline {
	if topK <= 0 {
		topK = 10
	}
	return &Pipeline{
		segmenter: seg,
		ranker:    rank,
		synth:     syn,
		embedder:  embedder,
		index:     index,
		topK:      topK,
	}
}

// Ingest splits a document into chunks, embeds them, and stores them
// under ownerID. It returns the stored chunk IDs.
func (p *Pipeline) Ingest(ctx context.Context, doc models.Document, ownerID string) ([]string, error) {
	if strings.TrimSpace(doc.Content) == "" {
		return nil, types.Errorf(types.KindValidation, "pipeline.Ingest", "document %s has no content", doc.Filename)
	}

	base := models.ChunkMetadata{
		DocumentID: doc.ID,
		Filename:   doc.Filename,
		FileType:   doc.FileType,
		CreatedAt:  time.Now().UTC(),
	}

	chunks := p.segmenter.Segment(doc.Content, base)
	if len(chunks) == 0 {
		return nil, types.Errorf(types.KindSegmentation, "pipeline.Ingest", "no chunks produced for %s", doc.Filename)
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}

	vectors, err := p.embedder.Embed(ctx, texts)
	if err != nil {
		return nil, types.E(types.KindEmbedding, "pipeline.Ingest", err)
	}
	if len(vectors) != len(chunks) {
		return nil, types.Errorf(types.KindEmbedding, "pipeline.Ingest",
			"embedder returned %d vectors for %d chunks", len(vectors), len(chunks))
	}

	for i := range chunks {
		chunks[i].Embedding = vectors[i]
	}

	ids, err := p.index.Add(ctx, chunks, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to store chunks for %s: %w", doc.Filename, err)
	}
	return ids, nil
}

type AskRequest struct {
	Query            string
	OwnerID          string
	DocumentIDs      []string
	History          []models.ChatTurn
	IncludeCitations bool
}

// Ask retrieves relevant chunks for the query and synthesizes an
// answer from them.
func (p *Pipeline) Ask(ctx context.Context, req AskRequest) (*models.AnswerResult, error) {
	if strings.TrimSpace(req.Query) == "" {
		return nil, types.Errorf(types.KindValidation, "pipeline.Ask", "query is empty")
	}

	chunks, err := p.Retrieve(ctx, req.Query, types.SearchFilter{
		OwnerID:     req.OwnerID,
		DocumentIDs: req.DocumentIDs,
	})
	if err != nil {
		return nil, err
	}

	return p.synth.Synthesize(ctx, req.Query, chunks, req.History, req.IncludeCitations)
}

// Retrieve embeds the query, searches the index, and reranks the
// candidates. The search over-fetches so the reranker has room to
// filter and deduplicate.
func (p *Pipeline) Retrieve(ctx context.Context, query string, filter types.SearchFilter) ([]models.RetrievedChunk, error) {
	vectors, err := p.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, types.E(types.KindEmbedding, "pipeline.Retrieve", err)
	}
	if len(vectors) != 1 {
		return nil, types.Errorf(types.KindEmbedding, "pipeline.Retrieve",
			"embedder returned %d vectors for query", len(vectors))
	}

	candidates, err := p.index.Search(ctx, vectors[0], 2*p.topK, filter)
	if err != nil {
		return nil, err
	}

	return p.ranker.Rank(ctx, query, candidates), nil
}

// FollowUps suggests next questions based on a completed exchange.
func (p *Pipeline) FollowUps(ctx context.Context, query, answer string, chunks []models.RetrievedChunk) []string {
	return p.synth.SuggestFollowUps(ctx, query, answer, chunks)
}

// DeleteDocument removes all stored chunks for a document.
func (p *Pipeline) DeleteDocument(ctx context.Context, documentID string) error {
	if documentID == "" {
		return types.Errorf(types.KindValidation, "pipeline.DeleteDocument", "document id is empty")
	}
	return p.index.DeleteByDocument(ctx, documentID)
}
