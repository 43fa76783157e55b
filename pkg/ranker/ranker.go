// Package ranker filters, deduplicates, and reranks retrieved chunks
// using signals beyond the embedding similarity alone.
package ranker

import (
	"context"
	"math"
	"sort"
	"strings"

	"github.com/xhad/askdocs/internal/models"
)

// DuplicateDetector produces a normalization key used to drop
// near-duplicate chunks; the first chunk seen per key wins.
type DuplicateDetector interface {
	Key(content string) string
}

// PrefixKey is the default strategy: the first N characters of the
// content after lower-casing and collapsing whitespace runs. Coarse,
// but cheap; swap in a shingle fingerprint via Config.Duplicates for
// stronger dedup.
type PrefixKey struct {
	N int
}

func (p PrefixKey) Key(content string) string {
	normalized := strings.Join(strings.Fields(strings.ToLower(content)), " ")
	if p.N > 0 && len(normalized) > p.N {
		normalized = normalized[:p.N]
	}
	return normalized
}

// NeighborLookup resolves a chunk by document and position; used for
// context expansion. A nil chunk with nil error means not found.
type NeighborLookup interface {
	ChunkAt(ctx context.Context, documentID string, index int) (*models.Chunk, error)
}

type Config struct {
	TopK          int
	MinSimilarity float64
	// ExpandContext splices neighboring chunks around each result.
	// Requires Neighbors; otherwise results are returned unchanged.
	ExpandContext    bool
	MaxContextLength int
	Duplicates       DuplicateDetector
	Neighbors        NeighborLookup
}

type Ranker struct {
	config Config
}

func NewWithConfig(config Config) Ranker {
	if config.TopK == 0 {
		config.TopK = 10
	}
	if config.MinSimilarity == 0 {
		config.MinSimilarity = 0.3
	}
	if config.MaxContextLength == 0 {
		config.MaxContextLength = 8000
	}
	if config.Duplicates == nil {
		config.Duplicates = PrefixKey{N: 100}
	}
	return Ranker{config: config}
}

// Rank filters candidates below MinSimilarity, drops near-duplicates,
// rescores the survivors, and returns at most TopK chunks ordered by
// 0.7*similarity + 0.3*relevance. Candidates should come from an
// oversampled (2xTopK) similarity search and arrive in descending
// similarity order; ties keep that order. Empty input yields an empty
// result, never an error.
func (r Ranker) Rank(ctx context.Context, query string, candidates []models.RetrievedChunk) []models.RetrievedChunk {
	if len(candidates) == 0 {
		return nil
	}

	kept := make([]models.RetrievedChunk, 0, len(candidates))
	seen := make(map[string]bool)
	for _, c := range candidates {
		if c.SimilarityScore < r.config.MinSimilarity {
			continue
		}
		key := r.config.Duplicates.Key(c.Content)
		if seen[key] {
			continue
		}
		seen[key] = true
		kept = append(kept, c)
	}

	for i := range kept {
		kept[i].RelevanceScore = relevance(kept[i], query)
	}

	sort.SliceStable(kept, func(i, j int) bool {
		return combinedScore(kept[i]) > combinedScore(kept[j])
	})

	if len(kept) > r.config.TopK {
		kept = kept[:r.config.TopK]
	}

	if r.config.ExpandContext && r.config.Neighbors != nil {
		for i := range kept {
			kept[i] = r.expand(ctx, kept[i])
		}
	}

	return kept
}

func combinedScore(c models.RetrievedChunk) float64 {
	return c.SimilarityScore*0.7 + c.RelevanceScore*0.3
}

// relevance blends keyword overlap, a length preference, and
// structural bonuses into [0,1].
func relevance(c models.RetrievedChunk, query string) float64 {
	score := 0.0

	queryWords := wordSet(query)
	contentWords := wordSet(c.Content)
	if len(queryWords) > 0 && len(contentWords) > 0 {
		overlap := 0
		for w := range queryWords {
			if contentWords[w] {
				overlap++
			}
		}
		score += float64(overlap) / float64(len(queryWords)) * 0.4
	}

	length := len(c.Content)
	var lengthScore float64
	switch {
	case length >= 200 && length <= 1000:
		lengthScore = 1.0
	case length < 200:
		lengthScore = float64(length) / 200
	default:
		lengthScore = math.Max(0.5, 1000/float64(length))
	}
	score += lengthScore * 0.3

	if c.Metadata.SectionHeader != "" {
		score += 0.1
	}
	if !c.Metadata.CreatedAt.IsZero() {
		score += 0.1
	}

	return math.Min(score, 1.0)
}

func wordSet(s string) map[string]bool {
	set := make(map[string]bool)
	for _, w := range strings.Fields(strings.ToLower(s)) {
		set[w] = true
	}
	return set
}

// expand splices up to two neighboring chunks on each side into the
// chunk's content, in index order, truncated to MaxContextLength. Any
// lookup failure leaves the chunk unchanged.
func (r Ranker) expand(ctx context.Context, c models.RetrievedChunk) models.RetrievedChunk {
	docID := c.Metadata.DocumentID
	if docID == "" {
		return c
	}

	type piece struct {
		index   int
		content string
	}
	pieces := []piece{{c.Metadata.ChunkIndex, c.Content}}

	for _, offset := range []int{-2, -1, 1, 2} {
		idx := c.Metadata.ChunkIndex + offset
		if idx < 0 {
			continue
		}
		neighbor, err := r.config.Neighbors.ChunkAt(ctx, docID, idx)
		if err != nil || neighbor == nil {
			continue
		}
		pieces = append(pieces, piece{idx, neighbor.Content})
	}

	if len(pieces) == 1 {
		return c
	}

	sort.Slice(pieces, func(i, j int) bool { return pieces[i].index < pieces[j].index })

	var sb strings.Builder
	for i, p := range pieces {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(p.content)
	}
	combined := sb.String()
	if len(combined) > r.config.MaxContextLength {
		combined = combined[:r.config.MaxContextLength] + "..."
	}

	extra := make(map[string]interface{}, len(c.Metadata.Extra)+2)
	for k, v := range c.Metadata.Extra {
		extra[k] = v
	}
	extra["context_expanded"] = true
	extra["context_chunks"] = len(pieces) - 1

	c.Content = combined
	c.Metadata.Extra = extra
	return c
}
