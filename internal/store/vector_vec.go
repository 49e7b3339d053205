//go:build sqlite_vec && cgo

package store

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"

	"taskpilot/internal/logging"
	"taskpilot/internal/types"
)

// indexChunkVec mirrors a chunk embedding into the vec0 virtual table.
// The table is created on first use so the dimension can follow the
// active embedding engine. Failures are logged, not fatal: search falls
// back to in-process scoring when the index is missing rows.
func (r *DocumentRepo) indexChunkVec(ctx context.Context, tx *sql.Tx, chunkID string, emb []float32) {
	if len(emb) == 0 {
		return
	}
	create := fmt.Sprintf(`
		CREATE VIRTUAL TABLE IF NOT EXISTS vec_chunks USING vec0(
			embedding float[%d],
			chunk_id TEXT
		)`, len(emb))
	if _, err := tx.ExecContext(ctx, create); err != nil {
		logging.StoreDebug("failed to create vec_chunks table: %v", err)
		return
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO vec_chunks (embedding, chunk_id) VALUES (?, ?)`,
		encodeFloat32Blob(emb), chunkID,
	)
	if err != nil {
		logging.StoreDebug("failed to index chunk %s in vec_chunks: %v", chunkID, err)
	}
}

// dropDocVec removes a document's rows from the vec index. Called
// before the base-table delete cascades the chunks away.
func (r *DocumentRepo) dropDocVec(ctx context.Context, docID string) {
	_, err := r.db.ExecContext(ctx, `
		DELETE FROM vec_chunks
		WHERE chunk_id IN (SELECT id FROM chunks WHERE document_id = ?)`, docID)
	if err != nil {
		logging.StoreDebug("failed to drop vec rows for document %s: %v", docID, err)
	}
}

// searchChunksVec ranks chunks with sqlite-vec's cosine distance. The
// vec0 table holds distance ordering; chunk text and document metadata
// come from the joined base tables.
func (s *Store) searchChunksVec(ctx context.Context, projectID string, query []float32, topK int, threshold float64) ([]types.SearchResult, error) {
	if topK <= 0 {
		topK = 5
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT c.text, c.page, d.id, d.name,
			vec_distance_cosine(v.embedding, ?) AS distance
		FROM vec_chunks v
		JOIN chunks c ON v.chunk_id = c.id
		JOIN documents d ON c.document_id = d.id
		WHERE d.project_id = ?
		ORDER BY distance ASC
		LIMIT ?`, encodeFloat32Blob(query), projectID, topK)
	if err != nil {
		return nil, fmt.Errorf("vec search failed: %w", err)
	}
	defer rows.Close()

	var results []types.SearchResult
	for rows.Next() {
		var text, docID, docName string
		var page int
		var distance float64
		if err := rows.Scan(&text, &page, &docID, &docName, &distance); err != nil {
			return nil, fmt.Errorf("failed to scan vec result: %w", err)
		}
		// Cosine distance is 1 - similarity.
		score := 1.0 - distance
		if score < threshold {
			continue
		}
		results = append(results, types.SearchResult{
			ChunkText:    text,
			DocumentID:   docID,
			DocumentName: docName,
			Page:         page,
			Score:        score,
		})
	}
	return results, rows.Err()
}

// encodeFloat32Blob packs a vector into the little-endian blob format
// sqlite-vec expects.
func encodeFloat32Blob(vec []float32) []byte {
	buf := &bytes.Buffer{}
	if err := binary.Write(buf, binary.LittleEndian, vec); err != nil {
		return nil
	}
	return buf.Bytes()
}
