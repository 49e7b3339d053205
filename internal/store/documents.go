package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"taskpilot/internal/types"
)

// DocumentRepo persists ingested documents and their chunks.
type DocumentRepo struct {
	db *sql.DB
}

// FindByHash returns a document with a matching content hash, or ErrNotFound.
// Used to skip re-ingesting unchanged files.
func (r *DocumentRepo) FindByHash(ctx context.Context, projectID, contentHash string) (*types.Document, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, project_id, name, content_hash, chunk_count, created_at
		FROM documents WHERE project_id = ? AND content_hash = ?`, projectID, contentHash)
	return scanDocument(row)
}

// Create inserts a document and its chunks with embeddings in one transaction.
func (r *DocumentRepo) Create(ctx context.Context, projectID, name, contentHash string, chunks []types.Chunk, embeddings [][]float32) (*types.Document, error) {
	if len(chunks) != len(embeddings) {
		return nil, fmt.Errorf("chunk count %d does not match embedding count %d", len(chunks), len(embeddings))
	}

	doc := &types.Document{
		ID:          uuid.NewString(),
		ProjectID:   projectID,
		Name:        name,
		ContentHash: contentHash,
		ChunkCount:  len(chunks),
		CreatedAt:   time.Now().UTC(),
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO documents (id, project_id, name, content_hash, chunk_count, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		doc.ID, doc.ProjectID, doc.Name, doc.ContentHash, doc.ChunkCount, doc.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create document: %w", err)
	}

	for i, chunk := range chunks {
		embJSON, err := json.Marshal(embeddings[i])
		if err != nil {
			return nil, fmt.Errorf("failed to encode embedding: %w", err)
		}
		chunkID := uuid.NewString()
		_, err = tx.ExecContext(ctx, `
			INSERT INTO chunks (id, document_id, text, page, position, embedding)
			VALUES (?, ?, ?, ?, ?, ?)`,
			chunkID, doc.ID, chunk.Text, chunk.Page, i, string(embJSON),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create chunk: %w", err)
		}
		r.indexChunkVec(ctx, tx, chunkID, embeddings[i])
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit document: %w", err)
	}
	return doc, nil
}

// ListByProject returns the documents ingested for a project.
func (r *DocumentRepo) ListByProject(ctx context.Context, projectID string) ([]*types.Document, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, project_id, name, content_hash, chunk_count, created_at
		FROM documents WHERE project_id = ? ORDER BY created_at`, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	var docs []*types.Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

// Delete removes a document and its chunks.
func (r *DocumentRepo) Delete(ctx context.Context, id string) error {
	r.dropDocVec(ctx, id)
	res, err := r.db.ExecContext(ctx, "DELETE FROM documents WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func scanDocument(row rowScanner) (*types.Document, error) {
	var d types.Document
	err := row.Scan(&d.ID, &d.ProjectID, &d.Name, &d.ContentHash, &d.ChunkCount, &d.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan document: %w", err)
	}
	return &d, nil
}
