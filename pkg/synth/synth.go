// Package synth assembles a bounded context window from ranked chunks,
// calls the generation backend, and turns the raw completion into a
// citation-grounded answer with a confidence estimate.
package synth

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/xhad/askdocs/internal/models"
	"github.com/xhad/askdocs/internal/types"
)

// NoContextAnswer is returned without calling the generator when
// retrieval produced nothing to ground an answer on.
const NoContextAnswer = "I couldn't find any relevant information in your documents to answer this question. Please make sure you have uploaded documents that contain information related to your query."

type Config struct {
	MaxContextChars int
	MaxAnswerTokens int
	Temperature     float64
	MaxHistoryTurns int
}

type Synthesizer struct {
	config    Config
	generator types.Generator
}

func NewWithConfig(config Config, generator types.Generator) Synthesizer {
	if config.MaxContextChars == 0 {
		config.MaxContextChars = 12000
	}
	if config.MaxAnswerTokens == 0 {
		config.MaxAnswerTokens = 1000
	}
	if config.Temperature == 0 {
		config.Temperature = 0.1
	}
	if config.MaxHistoryTurns == 0 {
		config.MaxHistoryTurns = 5
	}
	return Synthesizer{config: config, generator: generator}
}

// Synthesize answers query from the ranked chunks. With zero chunks it
// short-circuits to the fixed no-context response and never touches
// the generator. Generation failures are fatal for the call.
func (s Synthesizer) Synthesize(ctx context.Context, query string, chunks []models.RetrievedChunk, history []models.ChatTurn, includeCitations bool) (*models.AnswerResult, error) {
	start := time.Now()

	if len(chunks) == 0 {
		return &models.AnswerResult{
			Answer:          NoContextAnswer,
			Citations:       []models.Citation{},
			ConfidenceScore: 0,
			Model:           s.generator.Model(),
			ProcessingTime:  time.Since(start).Seconds(),
		}, nil
	}

	contextText, used := s.buildContext(chunks)
	prompt := s.buildPrompt(query, contextText, history)

	raw, err := s.generator.Complete(ctx, prompt, s.config.MaxAnswerTokens, s.config.Temperature)
	if err != nil {
		return nil, types.E(types.KindGeneration, "synth.Synthesize", err)
	}
	answer := strings.TrimSpace(raw)

	citations := []models.Citation{}
	if includeCitations {
		citations = extractCitations(answer, used)
	}

	return &models.AnswerResult{
		Answer:              answer,
		Citations:           citations,
		ConfidenceScore:     confidence(answer, used),
		RetrievedChunkCount: len(chunks),
		Model:               s.generator.Model(),
		ProcessingTime:      time.Since(start).Seconds(),
	}, nil
}

// buildContext renders chunks as numbered blocks in rank order,
// stopping before the block that would push the total past
// MaxContextChars. Individual chunks are never truncated here. Returns
// the rendered context and the chunks that made it in.
func (s Synthesizer) buildContext(chunks []models.RetrievedChunk) (string, []models.RetrievedChunk) {
	var sb strings.Builder
	var used []models.RetrievedChunk

	for i, chunk := range chunks {
		block := renderBlock(i+1, chunk)
		if sb.Len()+len(block) > s.config.MaxContextChars {
			break
		}
		sb.WriteString(block)
		used = append(used, chunk)
	}

	if len(used) == 0 {
		return "No relevant context found.", used
	}
	return sb.String(), used
}

func renderBlock(n int, chunk models.RetrievedChunk) string {
	var source []string
	if chunk.Metadata.Filename != "" {
		source = append(source, "Source: "+chunk.Metadata.Filename)
	}
	if chunk.Metadata.PageNumber > 0 {
		source = append(source, fmt.Sprintf("Page: %d", chunk.Metadata.PageNumber))
	}
	if chunk.Metadata.SectionHeader != "" {
		source = append(source, "Section: "+chunk.Metadata.SectionHeader)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "[%d] ", n)
	if len(source) > 0 {
		fmt.Fprintf(&sb, "(%s)\n", strings.Join(source, ", "))
	}
	sb.WriteString(chunk.Content)
	sb.WriteString("\n\n")
	return sb.String()
}

const promptTemplate = `You are an AI assistant that answers questions based on provided document context.

INSTRUCTIONS:
1. Answer questions using ONLY the information provided in the context below
2. If the context doesn't contain enough information to answer the question, say so clearly
3. Include specific references to sources using the format [1], [2], etc. that correspond to the numbered sources in the context
4. Be precise and factual - don't make assumptions or add information not in the context
5. If multiple sources support a point, reference all relevant sources
6. Structure your answer clearly with proper citations

CONTEXT:
%s

%sQUESTION: %s

Please provide a comprehensive answer with proper citations using the format [1], [2], etc.`

func (s Synthesizer) buildPrompt(query, contextText string, history []models.ChatTurn) string {
	var historyText string
	if len(history) > 0 {
		turns := history
		if len(turns) > s.config.MaxHistoryTurns {
			turns = turns[len(turns)-s.config.MaxHistoryTurns:]
		}
		var sb strings.Builder
		sb.WriteString("PREVIOUS CONVERSATION:\n")
		for _, turn := range turns {
			fmt.Fprintf(&sb, "%s: %s\n", strings.ToUpper(turn.Role), turn.Content)
		}
		sb.WriteString("\nCURRENT ")
		historyText = sb.String()
	}
	return fmt.Sprintf(promptTemplate, contextText, historyText, query)
}

var citationPattern = regexp.MustCompile(`\[(\d+)\]`)

// extractCitations maps [n] markers back to the chunks the context was
// built from, 1-based. Out-of-range markers are ignored; repeats are
// deduplicated by chunk ID in first-occurrence order.
func extractCitations(answer string, used []models.RetrievedChunk) []models.Citation {
	citations := []models.Citation{}
	seen := make(map[string]bool)

	for _, match := range citationPattern.FindAllStringSubmatch(answer, -1) {
		n, err := strconv.Atoi(match[1])
		if err != nil {
			continue
		}
		idx := n - 1
		if idx < 0 || idx >= len(used) {
			continue
		}
		chunk := used[idx]

		chunkID := chunk.ID
		if chunkID == "" {
			chunkID = fmt.Sprintf("chunk_%d", idx)
		}
		if seen[chunkID] {
			continue
		}
		seen[chunkID] = true

		excerpt := chunk.Content
		if len(excerpt) > 150 {
			excerpt = excerpt[:150] + "..."
		}

		citations = append(citations, models.Citation{
			ChunkID:         chunkID,
			DocumentID:      chunk.Metadata.DocumentID,
			Filename:        chunk.Metadata.Filename,
			PageNumber:      chunk.Metadata.PageNumber,
			SectionHeader:   chunk.Metadata.SectionHeader,
			SimilarityScore: chunk.SimilarityScore,
			Excerpt:         excerpt,
		})
	}
	return citations
}

var uncertaintyPhrases = []string{
	"i don't know", "unclear", "not sure", "might be", "possibly",
	"not enough information", "cannot determine",
}

// confidence is a heuristic, not a calibrated probability: the mean
// similarity of the chunks actually used for context, nudged by answer
// surface features and clamped to [0,1].
func confidence(answer string, used []models.RetrievedChunk) float64 {
	score := 0.1
	if len(used) > 0 {
		sum := 0.0
		for _, c := range used {
			sum += c.SimilarityScore
		}
		score = sum / float64(len(used))
	}

	if citationPattern.MatchString(answer) {
		score += 0.1
	}

	lower := strings.ToLower(answer)
	for _, phrase := range uncertaintyPhrases {
		if strings.Contains(lower, phrase) {
			score -= 0.2
			break
		}
	}

	if len(strings.Fields(answer)) < 10 {
		score -= 0.1
	}

	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

const followUpTemplate = `Based on the following question, answer, and available context, generate 3-5 relevant follow-up questions that a user might ask.

ORIGINAL QUESTION: %s

ANSWER: %s

AVAILABLE CONTEXT TOPICS: %s

Generate follow-up questions that:
1. Explore related topics mentioned in the context
2. Ask for more specific details about points mentioned in the answer
3. Connect to related concepts that might interest the user

Provide only the questions, one per line, without numbering or bullets.`

// SuggestFollowUps asks the generator for related questions. Failures
// are swallowed; callers get at most 5 questions and an empty slice at
// worst.
func (s Synthesizer) SuggestFollowUps(ctx context.Context, query, answer string, chunks []models.RetrievedChunk) []string {
	prompt := fmt.Sprintf(followUpTemplate, query, answer, summarizeTopics(chunks))

	raw, err := s.generator.Complete(ctx, prompt, s.config.MaxAnswerTokens, s.config.Temperature)
	if err != nil {
		return nil
	}

	var questions []string
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		questions = append(questions, line)
		if len(questions) == 5 {
			break
		}
	}
	return questions
}

func summarizeTopics(chunks []models.RetrievedChunk) string {
	seen := make(map[string]bool)
	var topics []string
	add := func(topic string) {
		if topic == "" || seen[topic] || len(topics) >= 10 {
			return
		}
		seen[topic] = true
		topics = append(topics, topic)
	}

	for _, c := range chunks {
		add(c.Metadata.SectionHeader)
		add(strings.TrimSuffix(c.Metadata.Filename, filepath.Ext(c.Metadata.Filename)))
	}
	return strings.Join(topics, ", ")
}
