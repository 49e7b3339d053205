package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"taskpilot/internal/embedding"
	"taskpilot/internal/logging"
	"taskpilot/internal/types"
)

// errVecUnavailable marks builds without the sqlite-vec extension.
var errVecUnavailable = errors.New("sqlite-vec not available")

// SearchChunks ranks a project's chunks by cosine similarity against the
// query embedding. Results below threshold are dropped, the rest returned
// best first, at most topK. With the sqlite-vec build the ranking runs
// inside SQLite; otherwise the chunks are scored in process.
func (s *Store) SearchChunks(ctx context.Context, projectID string, query []float32, topK int, threshold float64) ([]types.SearchResult, error) {
	results, err := s.searchChunksVec(ctx, projectID, query, topK, threshold)
	if err == nil {
		return results, nil
	}
	if !errors.Is(err, errVecUnavailable) {
		logging.StoreDebug("vec search failed, falling back to in-process scoring: %v", err)
	}
	return s.searchChunksBrute(ctx, projectID, query, topK, threshold)
}

func (s *Store) searchChunksBrute(ctx context.Context, projectID string, query []float32, topK int, threshold float64) ([]types.SearchResult, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.text, c.page, c.embedding, d.id, d.name
		FROM chunks c JOIN documents d ON c.document_id = d.id
		WHERE d.project_id = ?`, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to query chunks: %w", err)
	}
	defer rows.Close()

	var results []types.SearchResult
	for rows.Next() {
		var text, embJSON, docID, docName string
		var page int
		if err := rows.Scan(&text, &page, &embJSON, &docID, &docName); err != nil {
			return nil, fmt.Errorf("failed to scan chunk: %w", err)
		}
		var emb []float32
		if err := json.Unmarshal([]byte(embJSON), &emb); err != nil {
			continue
		}
		score := embedding.CosineSimilarity(query, emb)
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
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if topK > 0 && len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}
