package ranker_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xhad/askdocs/internal/models"
	"github.com/xhad/askdocs/pkg/ranker"
)

func candidate(id, content string, similarity float64) models.RetrievedChunk {
	return models.RetrievedChunk{
		Chunk: models.Chunk{
			ID:      id,
			Content: content,
			Metadata: models.ChunkMetadata{
				DocumentID: "doc-1",
			},
		},
		SimilarityScore: similarity,
	}
}

func TestRankThresholdFilter(t *testing.T) {
	r := ranker.NewWithConfig(ranker.Config{TopK: 10, MinSimilarity: 0.5})

	out := r.Rank(context.Background(), "anything", []models.RetrievedChunk{
		candidate("a", "high scoring content", 0.9),
		candidate("b", "low scoring content", 0.2),
		candidate("c", "borderline content here", 0.5),
	})

	require.Len(t, out, 2)
	for _, c := range out {
		assert.GreaterOrEqual(t, c.SimilarityScore, 0.5)
	}
}

func TestRankDeduplicatesByPrefixKey(t *testing.T) {
	r := ranker.NewWithConfig(ranker.Config{TopK: 10, MinSimilarity: -1})

	// Same text modulo case and whitespace collapses to one key.
	out := r.Rank(context.Background(), "q", []models.RetrievedChunk{
		candidate("a", "The  Quick   Brown Fox", 0.9),
		candidate("b", "the quick brown fox", 0.8),
		candidate("c", "something else entirely", 0.7),
	})

	require.Len(t, out, 2)
	assert.Equal(t, "a", out[0].ID) // first seen per key wins

	keys := make(map[string]bool)
	detector := ranker.PrefixKey{N: 100}
	for _, c := range out {
		key := detector.Key(c.Content)
		assert.False(t, keys[key])
		keys[key] = true
	}
}

func TestRankCombinedScoreNonIncreasing(t *testing.T) {
	r := ranker.NewWithConfig(ranker.Config{TopK: 20, MinSimilarity: -1})

	var candidates []models.RetrievedChunk
	for i := 0; i < 12; i++ {
		candidates = append(candidates,
			candidate(fmt.Sprintf("c%d", i), fmt.Sprintf("content number %d about databases", i), float64(i)/12))
	}

	out := r.Rank(context.Background(), "databases", candidates)
	require.NotEmpty(t, out)

	for i := 1; i < len(out); i++ {
		prev := out[i-1].SimilarityScore*0.7 + out[i-1].RelevanceScore*0.3
		cur := out[i].SimilarityScore*0.7 + out[i].RelevanceScore*0.3
		assert.GreaterOrEqual(t, prev, cur)
	}
}

func TestRankKeywordMissReducesToSimilarityOrder(t *testing.T) {
	r := ranker.NewWithConfig(ranker.Config{TopK: 10, MinSimilarity: -1})

	// None of the chunks contain the query token, and all have equal
	// length and metadata, so relevance is identical and ordering
	// follows similarity alone.
	out := r.Rank(context.Background(), "zebra", []models.RetrievedChunk{
		candidate("low", strings.Repeat("alpha ", 50), 0.3),
		candidate("high", strings.Repeat("gamma ", 50), 0.9),
		candidate("mid", strings.Repeat("delta ", 50), 0.6),
	})

	require.Len(t, out, 3)
	assert.Equal(t, []string{"high", "mid", "low"}, []string{out[0].ID, out[1].ID, out[2].ID})
}

func TestRankStableTies(t *testing.T) {
	r := ranker.NewWithConfig(ranker.Config{TopK: 10, MinSimilarity: -1})

	out := r.Rank(context.Background(), "zebra", []models.RetrievedChunk{
		candidate("first", strings.Repeat("one ", 60), 0.5),
		candidate("second", strings.Repeat("two ", 60), 0.5),
		candidate("third", strings.Repeat("six ", 60), 0.5),
	})

	require.Len(t, out, 3)
	assert.Equal(t, []string{"first", "second", "third"}, []string{out[0].ID, out[1].ID, out[2].ID})
}

func TestRankTopKCut(t *testing.T) {
	r := ranker.NewWithConfig(ranker.Config{TopK: 2, MinSimilarity: -1})

	out := r.Rank(context.Background(), "q", []models.RetrievedChunk{
		candidate("a", "unique content one", 0.9),
		candidate("b", "unique content two", 0.8),
		candidate("c", "unique content three", 0.7),
	})

	assert.Len(t, out, 2)
}

func TestRankEmptyCandidates(t *testing.T) {
	r := ranker.NewWithConfig(ranker.Config{})
	assert.Empty(t, r.Rank(context.Background(), "q", nil))
}

func TestRelevanceBonuses(t *testing.T) {
	r := ranker.NewWithConfig(ranker.Config{TopK: 10, MinSimilarity: -1})

	plain := candidate("plain", strings.Repeat("pad ", 100), 0.5)
	decorated := candidate("decorated", strings.Repeat("tad ", 100), 0.5)
	decorated.Metadata.SectionHeader = "Results"
	decorated.Metadata.CreatedAt = time.Now()

	out := r.Rank(context.Background(), "zebra", []models.RetrievedChunk{plain, decorated})

	require.Len(t, out, 2)
	assert.Equal(t, "decorated", out[0].ID)
	assert.InDelta(t, 0.2, out[0].RelevanceScore-out[1].RelevanceScore, 1e-9)
}

type fakeNeighbors struct {
	chunks map[string]string // "doc:index" -> content
	err    error
}

func (f *fakeNeighbors) ChunkAt(_ context.Context, documentID string, index int) (*models.Chunk, error) {
	if f.err != nil {
		return nil, f.err
	}
	content, ok := f.chunks[fmt.Sprintf("%s:%d", documentID, index)]
	if !ok {
		return nil, nil
	}
	return &models.Chunk{Content: content}, nil
}

func TestExpandContextSplicesNeighborsInOrder(t *testing.T) {
	neighbors := &fakeNeighbors{chunks: map[string]string{
		"doc-1:1": "before",
		"doc-1:3": "after",
	}}
	r := ranker.NewWithConfig(ranker.Config{
		TopK:          10,
		MinSimilarity: -1,
		ExpandContext: true,
		Neighbors:     neighbors,
	})

	c := candidate("a", "middle", 0.9)
	c.Metadata.ChunkIndex = 2

	out := r.Rank(context.Background(), "q", []models.RetrievedChunk{c})
	require.Len(t, out, 1)

	assert.Equal(t, "before\n\nmiddle\n\nafter", out[0].Content)
	assert.Equal(t, true, out[0].Metadata.Extra["context_expanded"])
	assert.Equal(t, 2, out[0].Metadata.Extra["context_chunks"])
}

func TestExpandContextTruncates(t *testing.T) {
	neighbors := &fakeNeighbors{chunks: map[string]string{
		"doc-1:1": strings.Repeat("x", 90),
	}}
	r := ranker.NewWithConfig(ranker.Config{
		TopK:             10,
		MinSimilarity:    -1,
		ExpandContext:    true,
		MaxContextLength: 100,
		Neighbors:        neighbors,
	})

	c := candidate("a", strings.Repeat("y", 90), 0.9)
	c.Metadata.ChunkIndex = 0

	out := r.Rank(context.Background(), "q", []models.RetrievedChunk{c})
	require.Len(t, out, 1)
	assert.Len(t, out[0].Content, 103)
	assert.True(t, strings.HasSuffix(out[0].Content, "..."))
}

func TestExpandContextLookupFailureIsNoOp(t *testing.T) {
	r := ranker.NewWithConfig(ranker.Config{
		TopK:          10,
		MinSimilarity: -1,
		ExpandContext: true,
		Neighbors:     &fakeNeighbors{err: errors.New("index offline")},
	})

	c := candidate("a", "original content", 0.9)
	c.Metadata.ChunkIndex = 5

	out := r.Rank(context.Background(), "q", []models.RetrievedChunk{c})
	require.Len(t, out, 1)
	assert.Equal(t, "original content", out[0].Content)
}

func TestExpandContextWithoutLookupIsNoOp(t *testing.T) {
	r := ranker.NewWithConfig(ranker.Config{TopK: 10, MinSimilarity: -1, ExpandContext: true})

	out := r.Rank(context.Background(), "q", []models.RetrievedChunk{candidate("a", "unchanged", 0.9)})
	require.Len(t, out, 1)
	assert.Equal(t, "unchanged", out[0].Content)
}
