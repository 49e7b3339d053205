//go:build !sqlite_vec || !cgo

package store

import (
	"context"
	"database/sql"

	"taskpilot/internal/types"
)

func (r *DocumentRepo) indexChunkVec(ctx context.Context, tx *sql.Tx, chunkID string, emb []float32) {
}

func (r *DocumentRepo) dropDocVec(ctx context.Context, docID string) {
}

func (s *Store) searchChunksVec(ctx context.Context, projectID string, query []float32, topK int, threshold float64) ([]types.SearchResult, error) {
	return nil, errVecUnavailable
}
