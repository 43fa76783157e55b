// Package store persists chunk embeddings in Postgres with pgvector
// and answers cosine-similarity queries over them.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/xhad/askdocs/internal/models"
	"github.com/xhad/askdocs/internal/types"
)

type VectorStoreConfig struct {
	ConnString string
	TableName  string
	VectorDim  int
}

type VectorStore struct {
	config VectorStoreConfig
	pool   *pgxpool.Pool
}

func NewWithConfig(config VectorStoreConfig) (*VectorStore, error) {
	if config.TableName == "" {
		config.TableName = "chunks"
	}
	if config.VectorDim == 0 {
		config.VectorDim = 768
	}

	pool, err := pgxpool.New(context.Background(), config.ConnString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %v", err)
	}

	vs := &VectorStore{config: config, pool: pool}
	if err := vs.initialize(); err != nil {
		pool.Close()
		return nil, err
	}
	return vs, nil
}

func (vs *VectorStore) initialize() error {
	ctx := context.Background()

	_, err := vs.pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector")
	if err != nil {
		return fmt.Errorf("failed to create vector extension: %v", err)
	}

	createTable := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			owner_id TEXT NOT NULL,
			document_id TEXT NOT NULL,
			filename TEXT,
			file_type TEXT,
			section_header TEXT,
			has_header BOOLEAN DEFAULT FALSE,
			chunk_index INTEGER NOT NULL,
			section_index INTEGER,
			sub_chunk_index INTEGER,
			char_count INTEGER,
			page_number INTEGER,
			content TEXT NOT NULL,
			embedding vector(%d),
			extra JSONB,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`, vs.config.TableName, vs.config.VectorDim)

	_, err = vs.pool.Exec(ctx, createTable)
	if err != nil {
		return fmt.Errorf("failed to create table: %v", err)
	}

	createVectorIndex := fmt.Sprintf(`
		CREATE INDEX IF NOT EXISTS %s_embedding_idx
		ON %s
		USING ivfflat (embedding vector_cosine_ops)
		WITH (lists = 100)`,
		vs.config.TableName, vs.config.TableName)

	_, err = vs.pool.Exec(ctx, createVectorIndex)
	if err != nil {
		return fmt.Errorf("failed to create vector index: %v", err)
	}

	// Neighbor lookups resolve (document_id, chunk_index) pairs.
	createPositionIndex := fmt.Sprintf(`
		CREATE INDEX IF NOT EXISTS %s_position_idx
		ON %s (document_id, chunk_index)`,
		vs.config.TableName, vs.config.TableName)

	_, err = vs.pool.Exec(ctx, createPositionIndex)
	if err != nil {
		return fmt.Errorf("failed to create position index: %v", err)
	}

	return nil
}

// Add inserts chunks with their embeddings for one owner, generating
// an id for any chunk that lacks one. Returns ids in chunk order.
func (vs *VectorStore) Add(ctx context.Context, chunks []models.Chunk, ownerID string) ([]string, error) {
	tx, err := vs.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %v", err)
	}
	defer tx.Rollback(ctx)

	stmt := fmt.Sprintf(`
		INSERT INTO %s (id, owner_id, document_id, filename, file_type, section_header,
			has_header, chunk_index, section_index, sub_chunk_index, char_count,
			page_number, content, embedding, extra, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (id) DO UPDATE SET
			content = EXCLUDED.content,
			embedding = EXCLUDED.embedding,
			extra = EXCLUDED.extra`,
		vs.config.TableName)

	ids := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		if len(chunk.Embedding) == 0 {
			return nil, fmt.Errorf("chunk %d of document %s has no embedding",
				chunk.Metadata.ChunkIndex, chunk.Metadata.DocumentID)
		}

		id := chunk.ID
		if id == "" {
			id = uuid.NewString()
		}

		extra, err := json.Marshal(chunk.Metadata.Extra)
		if err != nil {
			return nil, fmt.Errorf("failed to encode chunk metadata: %v", err)
		}

		createdAt := chunk.Metadata.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now()
		}

		_, err = tx.Exec(ctx, stmt,
			id,
			ownerID,
			chunk.Metadata.DocumentID,
			sanitizeUTF8(chunk.Metadata.Filename),
			chunk.Metadata.FileType,
			sanitizeUTF8(chunk.Metadata.SectionHeader),
			chunk.Metadata.HasHeader,
			chunk.Metadata.ChunkIndex,
			chunk.Metadata.SectionIndex,
			chunk.Metadata.SubChunkIndex,
			chunk.Metadata.CharCount,
			chunk.Metadata.PageNumber,
			sanitizeUTF8(chunk.Content),
			pgvector.NewVector(chunk.Embedding),
			extra,
			createdAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to insert chunk: %v", err)
		}
		ids = append(ids, id)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %v", err)
	}
	return ids, nil
}

const chunkColumns = `id, document_id, filename, file_type, section_header, has_header,
	chunk_index, section_index, sub_chunk_index, char_count, page_number,
	content, extra, created_at`

// Search returns the topN most similar chunks for the owner, in
// descending similarity order. Cosine distance from pgvector is
// converted to similarity as 1 - distance.
func (vs *VectorStore) Search(ctx context.Context, queryVector []float32, topN int, filter types.SearchFilter) ([]models.RetrievedChunk, error) {
	if topN <= 0 {
		topN = 10
	}

	where := []string{"owner_id = $2"}
	args := []interface{}{pgvector.NewVector(queryVector), filter.OwnerID}
	if len(filter.DocumentIDs) > 0 {
		args = append(args, filter.DocumentIDs)
		where = append(where, fmt.Sprintf("document_id = ANY($%d)", len(args)))
	}
	args = append(args, topN)

	query := fmt.Sprintf(`
		SELECT %s, 1 - (embedding <=> $1) AS similarity
		FROM %s
		WHERE %s
		ORDER BY embedding <=> $1
		LIMIT $%d`,
		chunkColumns, vs.config.TableName, strings.Join(where, " AND "), len(args))

	rows, err := vs.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, types.E(types.KindVectorSearch, "store.Search", err)
	}
	defer rows.Close()

	var results []models.RetrievedChunk
	for rows.Next() {
		var rc models.RetrievedChunk
		var extra []byte
		err := rows.Scan(
			&rc.ID,
			&rc.Metadata.DocumentID,
			&rc.Metadata.Filename,
			&rc.Metadata.FileType,
			&rc.Metadata.SectionHeader,
			&rc.Metadata.HasHeader,
			&rc.Metadata.ChunkIndex,
			&rc.Metadata.SectionIndex,
			&rc.Metadata.SubChunkIndex,
			&rc.Metadata.CharCount,
			&rc.Metadata.PageNumber,
			&rc.Content,
			&extra,
			&rc.Metadata.CreatedAt,
			&rc.SimilarityScore,
		)
		if err != nil {
			return nil, types.E(types.KindVectorSearch, "store.Search", err)
		}
		decodeExtra(extra, &rc.Metadata)
		results = append(results, rc)
	}
	if err := rows.Err(); err != nil {
		return nil, types.E(types.KindVectorSearch, "store.Search", err)
	}
	return results, nil
}

// DeleteByDocument removes every chunk of one document.
func (vs *VectorStore) DeleteByDocument(ctx context.Context, documentID string) error {
	stmt := fmt.Sprintf("DELETE FROM %s WHERE document_id = $1", vs.config.TableName)
	if _, err := vs.pool.Exec(ctx, stmt, documentID); err != nil {
		return fmt.Errorf("failed to delete document chunks: %v", err)
	}
	return nil
}

// GetByID returns the chunk with the given id, or nil if absent.
func (vs *VectorStore) GetByID(ctx context.Context, chunkID string) (*models.Chunk, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE id = $1", chunkColumns, vs.config.TableName)
	return vs.queryOne(ctx, query, chunkID)
}

// ChunkAt returns the chunk at a position within a document, or nil if
// absent. This backs the ranker's context expansion.
func (vs *VectorStore) ChunkAt(ctx context.Context, documentID string, index int) (*models.Chunk, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE document_id = $1 AND chunk_index = $2",
		chunkColumns, vs.config.TableName)
	return vs.queryOne(ctx, query, documentID, index)
}

func (vs *VectorStore) queryOne(ctx context.Context, query string, args ...interface{}) (*models.Chunk, error) {
	var chunk models.Chunk
	var extra []byte
	err := vs.pool.QueryRow(ctx, query, args...).Scan(
		&chunk.ID,
		&chunk.Metadata.DocumentID,
		&chunk.Metadata.Filename,
		&chunk.Metadata.FileType,
		&chunk.Metadata.SectionHeader,
		&chunk.Metadata.HasHeader,
		&chunk.Metadata.ChunkIndex,
		&chunk.Metadata.SectionIndex,
		&chunk.Metadata.SubChunkIndex,
		&chunk.Metadata.CharCount,
		&chunk.Metadata.PageNumber,
		&chunk.Content,
		&extra,
		&chunk.Metadata.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch chunk: %v", err)
	}
	decodeExtra(extra, &chunk.Metadata)
	return &chunk, nil
}

func decodeExtra(raw []byte, meta *models.ChunkMetadata) {
	if len(raw) == 0 || string(raw) == "null" {
		return
	}
	_ = json.Unmarshal(raw, &meta.Extra)
}

func (vs *VectorStore) Close() {
	if vs.pool != nil {
		vs.pool.Close()
	}
}

func sanitizeUTF8(s string) string {
	if !utf8.ValidString(s) {
		v := make([]rune, 0, len(s))
		for i, r := range s {
			if r == utf8.RuneError {
				_, size := utf8.DecodeRuneInString(s[i:])
				if size == 1 {
					continue
				}
			}
			v = append(v, r)
		}
		return string(v)
	}
	return s
}
