package models

import "time"

// ChunkMetadata carries the recognized metadata fields attached to a
// chunk. Format-specific fields that don't fit the fixed set go in
// Extra.
type ChunkMetadata struct {
	DocumentID    string
	Filename      string
	FileType      string
	SectionHeader string
	HasHeader     bool
	ChunkIndex    int
	SectionIndex  int
	SubChunkIndex int
	CharCount     int
	PageNumber    int
	CreatedAt     time.Time
	Extra         map[string]interface{}
}

// Chunk is the smallest retrievable unit of a document. Embedding is
// populated during ingestion, before the chunk reaches the vector
// index.
type Chunk struct {
	ID        string
	Content   string
	Metadata  ChunkMetadata
	Embedding []float32
}

// RetrievedChunk is a chunk returned by a similarity search. The
// relevance score is filled in by the ranker; both live only for the
// duration of one retrieval call.
type RetrievedChunk struct {
	Chunk
	SimilarityScore float64
	RelevanceScore  float64
}

// Citation ties a numbered marker in a generated answer back to the
// chunk that supports it.
type Citation struct {
	ChunkID         string  `json:"chunk_id"`
	DocumentID      string  `json:"document_id"`
	Filename        string  `json:"filename"`
	PageNumber      int     `json:"page_number,omitempty"`
	SectionHeader   string  `json:"section_header,omitempty"`
	SimilarityScore float64 `json:"similarity_score"`
	Excerpt         string  `json:"excerpt"`
}

// AnswerResult is the outcome of one question. Immutable after
// construction; persistence is the caller's job.
type AnswerResult struct {
	Answer              string     `json:"answer"`
	Citations           []Citation `json:"citations,omitempty"`
	ConfidenceScore     float64    `json:"confidence_score"`
	RetrievedChunkCount int        `json:"retrieved_chunk_count"`
	Model               string     `json:"model"`
	ProcessingTime      float64    `json:"processing_time"` // seconds
}

// ChatTurn is one entry of conversation history, most recent last.
type ChatTurn struct {
	Role    string // "user" or "assistant"
	Content string
}

// Document is raw extracted text plus source identity, ready for
// segmentation.
type Document struct {
	ID       string
	Source   string // file path or URL
	Filename string
	Title    string
	FileType string
	Content  string
}
