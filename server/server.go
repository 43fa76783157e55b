// Package server exposes the pipeline over HTTP: JSON endpoints for
// asking questions, searching, and managing documents, plus a
// WebSocket endpoint for interactive chat.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"regexp"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/xhad/askdocs/internal/models"
	"github.com/xhad/askdocs/internal/types"
	"github.com/xhad/askdocs/pkg/extract"
	"github.com/xhad/askdocs/pkg/pipeline"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Be careful with this in production
	},
}

type Message struct {
	Type    string      `json:"type"`
	Content string      `json:"content"`
	Data    interface{} `json:"data,omitempty"`
}

type Config struct {
	Port             int
	OwnerID          string
	IncludeCitations bool
}

type Server struct {
	config    Config
	pipeline  *pipeline.Pipeline
	extractor *extract.Extractor
}

func New(pipe *pipeline.Pipeline, extractor *extract.Extractor, config Config) *Server {
	if config.Port == 0 {
		config.Port = 8080
	}
	if config.OwnerID == "" {
		config.OwnerID = "local"
	}
	return &Server{config: config, pipeline: pipe, extractor: extractor}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /ask", s.handleAsk)
	mux.HandleFunc("POST /search", s.handleSearch)
	mux.HandleFunc("POST /documents", s.handleIngest)
	mux.HandleFunc("DELETE /documents/{id}", s.handleDelete)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("/ws", s.handleWebSocket)
	return mux
}

func (s *Server) ListenAndServe() error {
	addr := fmt.Sprintf(":%d", s.config.Port)
	log.Printf("Starting server on %s", addr)
	return http.ListenAndServe(addr, s.Handler())
}

type askRequest struct {
	Query       string        `json:"query"`
	DocumentIDs []string      `json:"document_ids,omitempty"`
	History     []historyTurn `json:"history,omitempty"`
	FollowUps   bool          `json:"follow_ups,omitempty"`
}

type historyTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type askResponse struct {
	Answer              string            `json:"answer"`
	Citations           []models.Citation `json:"citations,omitempty"`
	ConfidenceScore     float64           `json:"confidence_score"`
	RetrievedChunkCount int               `json:"retrieved_chunk_count"`
	Model               string            `json:"model"`
	ProcessingTime      float64           `json:"processing_time"`
	FollowUps           []string          `json:"follow_ups,omitempty"`
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	history := make([]models.ChatTurn, 0, len(req.History))
	for _, turn := range req.History {
		history = append(history, models.ChatTurn{Role: turn.Role, Content: turn.Content})
	}

	result, err := s.pipeline.Ask(r.Context(), pipeline.AskRequest{
		Query:            req.Query,
		OwnerID:          s.config.OwnerID,
		DocumentIDs:      req.DocumentIDs,
		History:          history,
		IncludeCitations: s.config.IncludeCitations,
	})
	if err != nil {
		writePipelineError(w, err)
		return
	}

	resp := askResponse{
		Answer:              result.Answer,
		Citations:           result.Citations,
		ConfidenceScore:     result.ConfidenceScore,
		RetrievedChunkCount: result.RetrievedChunkCount,
		Model:               result.Model,
		ProcessingTime:      result.ProcessingTime,
	}
	if req.FollowUps {
		chunks, _ := s.pipeline.Retrieve(r.Context(), req.Query, types.SearchFilter{
			OwnerID:     s.config.OwnerID,
			DocumentIDs: req.DocumentIDs,
		})
		resp.FollowUps = s.pipeline.FollowUps(r.Context(), req.Query, result.Answer, chunks)
	}

	writeJSON(w, http.StatusOK, resp)
}

type searchRequest struct {
	Query       string   `json:"query"`
	DocumentIDs []string `json:"document_ids,omitempty"`
}

type searchHit struct {
	ChunkID         string  `json:"chunk_id"`
	DocumentID      string  `json:"document_id"`
	Filename        string  `json:"filename"`
	SectionHeader   string  `json:"section_header,omitempty"`
	Content         string  `json:"content"`
	SimilarityScore float64 `json:"similarity_score"`
	RelevanceScore  float64 `json:"relevance_score"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}

	chunks, err := s.pipeline.Retrieve(r.Context(), req.Query, types.SearchFilter{
		OwnerID:     s.config.OwnerID,
		DocumentIDs: req.DocumentIDs,
	})
	if err != nil {
		writePipelineError(w, err)
		return
	}

	hits := make([]searchHit, 0, len(chunks))
	for _, c := range chunks {
		hits = append(hits, searchHit{
			ChunkID:         c.ID,
			DocumentID:      c.Metadata.DocumentID,
			Filename:        c.Metadata.Filename,
			SectionHeader:   c.Metadata.SectionHeader,
			Content:         c.Content,
			SimilarityScore: c.SimilarityScore,
			RelevanceScore:  c.RelevanceScore,
		})
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"results": hits})
}

type ingestRequest struct {
	Path string `json:"path,omitempty"`
	URL  string `json:"url,omitempty"`
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var (
		doc *models.Document
		err error
	)
	switch {
	case req.URL != "":
		doc, err = s.extractor.URL(r.Context(), req.URL)
	case req.Path != "":
		doc, err = s.extractor.File(req.Path)
	default:
		writeError(w, http.StatusBadRequest, "path or url is required")
		return
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("extraction failed: %v", err))
		return
	}

	ids, err := s.pipeline.Ingest(r.Context(), *doc, s.config.OwnerID)
	if err != nil {
		writePipelineError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"document_id": doc.ID,
		"filename":    doc.Filename,
		"chunk_count": len(ids),
	})
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.pipeline.DeleteDocument(r.Context(), id); err != nil {
		writePipelineError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			break
		}

		var msg Message
		if err := json.Unmarshal(message, &msg); err != nil {
			log.Printf("Error unmarshaling message: %v", err)
			continue
		}

		s.handleMessage(r.Context(), conn, msg)
	}
}

var urlPattern = regexp.MustCompile(`https?://[^\s]+`)

func (s *Server) handleMessage(ctx context.Context, conn *websocket.Conn, msg Message) {
	query := strings.TrimSpace(msg.Content)
	if query == "" {
		s.sendMessage(conn, "error", "empty message")
		return
	}

	// A bare URL in the message triggers ingestion
	if url := urlPattern.FindString(query); url != "" {
		s.sendMessage(conn, "status", fmt.Sprintf("Ingesting %s", url))

		doc, err := s.extractor.URL(ctx, url)
		if err != nil {
			s.sendMessage(conn, "error", fmt.Sprintf("Failed to fetch URL: %v", err))
			return
		}

		ids, err := s.pipeline.Ingest(ctx, *doc, s.config.OwnerID)
		if err != nil {
			s.sendMessage(conn, "error", fmt.Sprintf("Failed to ingest: %v", err))
			return
		}
		s.sendMessage(conn, "status", fmt.Sprintf("Stored %d chunks from %s", len(ids), doc.Filename))

		if query == url {
			return
		}
	}

	result, err := s.pipeline.Ask(ctx, pipeline.AskRequest{
		Query:            query,
		OwnerID:          s.config.OwnerID,
		IncludeCitations: s.config.IncludeCitations,
	})
	if err != nil {
		if types.IsKind(err, types.KindValidation) {
			s.sendMessage(conn, "error", err.Error())
		} else {
			log.Printf("answer failed: %v", err)
			s.sendMessage(conn, "error", "could not answer, please try again")
		}
		return
	}

	if err := conn.WriteJSON(Message{Type: "response", Content: result.Answer, Data: result}); err != nil {
		log.Printf("Error sending message: %v", err)
	}
}

func (s *Server) sendMessage(conn *websocket.Conn, msgType string, content string) {
	msg := Message{
		Type:    msgType,
		Content: content,
	}
	if err := conn.WriteJSON(msg); err != nil {
		log.Printf("Error sending message: %v", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Error encoding response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func writePipelineError(w http.ResponseWriter, err error) {
	var terr *types.Error
	if errors.As(err, &terr) && terr.Kind == types.KindValidation {
		writeError(w, http.StatusBadRequest, terr.Error())
		return
	}
	log.Printf("request failed: %v", err)
	writeError(w, http.StatusBadGateway, "could not complete request")
}
