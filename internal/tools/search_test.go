package tools

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskpilot/internal/types"
)

// fakeEngine returns a fixed vector for every input.
type fakeEngine struct {
	vector []float32
}

func (f *fakeEngine) Embed(ctx context.Context, text string) ([]float32, error) {
	return f.vector, nil
}

func (f *fakeEngine) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = f.vector
	}
	return out, nil
}

func (f *fakeEngine) Dimensions() int { return len(f.vector) }
func (f *fakeEngine) Name() string    { return "fake" }

func TestSearchDocuments(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	chunks := []types.Chunk{
		{Text: "auth uses JWT tokens"},
		{Text: "the office is closed on fridays"},
	}
	embeddings := [][]float32{
		{1, 0},
		{0, 1},
	}
	_, err := s.Documents.Create(ctx, "p1", "handbook.md", "h1", chunks, embeddings)
	require.NoError(t, err)

	tool := &SearchDocumentsTool{
		Store:     s,
		Engine:    &fakeEngine{vector: []float32{1, 0}},
		ProjectID: "p1",
		Threshold: 0.3,
	}

	result := tool.Execute(ctx, map[string]any{"query": "how does auth work"})
	assert.Equal(t, true, result["found"])

	results := result["results"].([]map[string]any)
	require.Len(t, results, 1)
	assert.Equal(t, "auth uses JWT tokens", results[0]["text"])
	assert.Equal(t, "handbook.md", results[0]["document"])
	assert.Equal(t, 1.0, results[0]["relevance"])
}

func TestSearchDocumentsNoMatches(t *testing.T) {
	s := newTestStore(t)
	tool := &SearchDocumentsTool{
		Store:     s,
		Engine:    &fakeEngine{vector: []float32{1, 0}},
		ProjectID: "p1",
		Threshold: 0.3,
	}

	result := tool.Execute(context.Background(), map[string]any{"query": "anything"})
	assert.Equal(t, false, result["found"])
	assert.Equal(t, "No relevant information found in the documents.", result["message"])
}

func TestSearchDocumentsRequiresQuery(t *testing.T) {
	tool := &SearchDocumentsTool{Store: newTestStore(t), Engine: &fakeEngine{}, ProjectID: "p1"}
	result := tool.Execute(context.Background(), map[string]any{})
	assert.Contains(t, result["error"], "query is required")
}
