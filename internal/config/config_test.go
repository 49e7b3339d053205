package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "anthropic", cfg.LLM.Provider)
	assert.Equal(t, "120s", cfg.LLM.Timeout)
	assert.Equal(t, 4096, cfg.LLM.MaxTokens)
	assert.Equal(t, "ollama", cfg.Embedding.Provider)
	assert.Equal(t, 1000, cfg.Ingest.ChunkSize)
	assert.Equal(t, 200, cfg.Ingest.ChunkOverlap)
	assert.InDelta(t, 0.35, cfg.Ingest.SimilarityThreshold, 1e-9)
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "taskpilot.yaml")
	content := `
llm:
  provider: openai
  model: gpt-4o
  max_tokens: 2048
ingest:
  chunk_size: 500
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.Equal(t, "gpt-4o", cfg.LLM.Model)
	assert.Equal(t, 2048, cfg.LLM.MaxTokens)
	assert.Equal(t, 500, cfg.Ingest.ChunkSize)

	// Untouched sections keep their defaults.
	assert.Equal(t, "120s", cfg.LLM.Timeout)
	assert.Equal(t, 200, cfg.Ingest.ChunkOverlap)
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("llm: ["), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config")
}

func TestEnvOverridesAPIKey(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "sk-from-env")
	t.Setenv("TASKPILOT_DB", "/tmp/env.db")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "sk-from-env", cfg.LLM.APIKey)
	assert.Equal(t, "/tmp/env.db", cfg.Storage.DatabasePath)
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "taskpilot.yaml")

	cfg := DefaultConfig()
	cfg.LLM.Model = "claude-opus-4-20250514"
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "claude-opus-4-20250514", loaded.LLM.Model)
}
