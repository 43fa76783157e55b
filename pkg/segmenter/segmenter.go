// Package segmenter splits raw document text into addressable chunks.
// It splits on structural headings first, then packs oversized
// sections paragraph by paragraph under the size bound.
package segmenter

import (
	"regexp"
	"strings"

	"github.com/xhad/askdocs/internal/models"
)

type Config struct {
	MaxChunkSize int
	// Overlap is accepted for configuration compatibility; the packing
	// algorithm does not duplicate text between adjacent chunks.
	Overlap int
}

type Segmenter struct {
	config Config
}

func NewWithConfig(config Config) Segmenter {
	if config.MaxChunkSize == 0 {
		config.MaxChunkSize = 1000
	}
	return Segmenter{config: config}
}

var headingPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^#{1,6}\s+(.+)$`), // markdown headings
	regexp.MustCompile(`^([A-Z][A-Z\s]+)$`), // ALL CAPS lines
	regexp.MustCompile(`^\d+\.\s+(.+)$`),  // enumerated headings
}

type section struct {
	text      string
	header    string
	hasHeader bool
}

// Segment splits text into chunks carrying base plus positional and
// structural metadata. ChunkIndex is a running counter across the
// whole call, starting at 0. Empty or whitespace-only input yields no
// chunks; segmentation itself never fails.
func (s Segmenter) Segment(text string, base models.ChunkMetadata) []models.Chunk {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	var chunks []models.Chunk
	for sectionIdx, sec := range splitByHeadings(text) {
		trimmed := strings.TrimSpace(sec.text)
		if trimmed == "" {
			continue
		}

		if len(trimmed) <= s.config.MaxChunkSize {
			chunks = append(chunks, newChunk(trimmed, base, sec, sectionIdx, len(chunks), 0))
			continue
		}

		for subIdx, part := range s.packParagraphs(trimmed) {
			chunks = append(chunks, newChunk(part, base, sec, sectionIdx, len(chunks), subIdx))
		}
	}
	return chunks
}

func newChunk(content string, base models.ChunkMetadata, sec section, sectionIdx, chunkIdx, subIdx int) models.Chunk {
	meta := base
	meta.SectionHeader = sec.header
	meta.HasHeader = sec.hasHeader
	meta.ChunkIndex = chunkIdx
	meta.SectionIndex = sectionIdx
	meta.SubChunkIndex = subIdx
	meta.CharCount = len(content)
	return models.Chunk{Content: content, Metadata: meta}
}

// splitByHeadings scans lines; a heading line closes the current
// section and becomes the header of the next one. The heading line
// itself is not part of any section's content. Text before the first
// heading forms a headerless section.
func splitByHeadings(text string) []section {
	var sections []section
	var cur strings.Builder
	var curHeader string
	var curHas bool

	flush := func() {
		if strings.TrimSpace(cur.String()) != "" {
			sections = append(sections, section{text: cur.String(), header: curHeader, hasHeader: curHas})
		}
		cur.Reset()
	}

	for _, line := range strings.Split(text, "\n") {
		if header, ok := matchHeading(strings.TrimSpace(line)); ok {
			flush()
			curHeader = header
			curHas = true
			continue
		}
		cur.WriteString(line)
		cur.WriteString("\n")
	}
	flush()

	return sections
}

func matchHeading(line string) (string, bool) {
	if line == "" {
		return "", false
	}
	for _, pattern := range headingPatterns {
		if m := pattern.FindStringSubmatch(line); m != nil {
			if len(m) > 1 && strings.TrimSpace(m[1]) != "" {
				return strings.TrimSpace(m[1]), true
			}
			return line, true
		}
	}
	return "", false
}

// packParagraphs greedily packs blank-line-delimited paragraphs into
// parts no longer than MaxChunkSize. A single paragraph over the bound
// is emitted as its own oversized part rather than split mid-paragraph.
func (s Segmenter) packParagraphs(text string) []string {
	var parts []string
	var cur strings.Builder

	for _, paragraph := range strings.Split(text, "\n\n") {
		paragraph = strings.TrimSpace(paragraph)
		if paragraph == "" {
			continue
		}

		if cur.Len() > 0 && cur.Len()+len(paragraph) > s.config.MaxChunkSize {
			parts = append(parts, strings.TrimSpace(cur.String()))
			cur.Reset()
		}

		cur.WriteString(paragraph)
		cur.WriteString("\n\n")
	}

	if strings.TrimSpace(cur.String()) != "" {
		parts = append(parts, strings.TrimSpace(cur.String()))
	}

	if parts == nil {
		return []string{text}
	}
	return parts
}
