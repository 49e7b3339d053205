package tools

import (
	"context"
	"fmt"
	"math"

	"taskpilot/internal/embedding"
	"taskpilot/internal/logging"
	"taskpilot/internal/store"
)

// SearchDocumentsTool answers questions from ingested documents via
// semantic search over stored chunk embeddings.
type SearchDocumentsTool struct {
	Store     *store.Store
	Engine    embedding.Engine
	ProjectID string
	Threshold float64
}

func (t *SearchDocumentsTool) Name() string { return "search_documents" }

func (t *SearchDocumentsTool) Description() string {
	return "Search through uploaded documents using semantic similarity. " +
		"Use this when you need to find information from the project's documents. " +
		"Returns relevant text chunks with source document and page number."
}

func (t *SearchDocumentsTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query": map[string]any{"type": "string", "description": "Natural language search query"},
			"top_k": map[string]any{"type": "integer", "description": "Number of results to return (default: 5)", "default": 5},
		},
		"required": []string{"query"},
	}
}

func (t *SearchDocumentsTool) Execute(ctx context.Context, args map[string]any) map[string]any {
	query := stringArg(args, "query")
	if query == "" {
		return Errorf("query is required")
	}
	topK := intArg(args, "top_k", 5)

	queryEmbedding, err := t.Engine.Embed(ctx, query)
	if err != nil {
		logging.ToolsError("search_documents: embed failed: %v", err)
		return Errorf("failed to embed query: %v", err)
	}

	results, err := t.Store.SearchChunks(ctx, t.ProjectID, queryEmbedding, topK, t.Threshold)
	if err != nil {
		return Errorf("search failed: %v", err)
	}

	if len(results) == 0 {
		return map[string]any{
			"found":   false,
			"message": "No relevant information found in the documents.",
			"results": []any{},
		}
	}

	out := make([]map[string]any, 0, len(results))
	for _, r := range results {
		out = append(out, map[string]any{
			"text":      r.ChunkText,
			"document":  r.DocumentName,
			"page":      r.Page,
			"relevance": math.Round(r.Score*1000) / 1000,
		})
	}
	return map[string]any{
		"found":   true,
		"message": fmt.Sprintf("Found %d relevant chunks.", len(results)),
		"results": out,
	}
}
