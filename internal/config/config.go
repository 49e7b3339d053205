// Package config loads taskpilot configuration from YAML with environment
// variable overrides for secrets.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config holds all taskpilot configuration.
type Config struct {
	// LLM provider configuration
	LLM LLMConfig `yaml:"llm"`

	// Embedding engine configuration
	Embedding EmbeddingConfig `yaml:"embedding"`

	// Storage configuration
	Storage StorageConfig `yaml:"storage"`

	// Document ingestion configuration
	Ingest IngestConfig `yaml:"ingest"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// LLMConfig configures the chat provider.
type LLMConfig struct {
	Provider  string `yaml:"provider"` // anthropic, openai, gemini
	APIKey    string `yaml:"api_key"`
	Model     string `yaml:"model"`
	BaseURL   string `yaml:"base_url"`
	Timeout   string `yaml:"timeout"`
	MaxTokens int    `yaml:"max_tokens"`
}

// EmbeddingConfig configures the embedding engine.
type EmbeddingConfig struct {
	Provider       string `yaml:"provider"` // ollama, genai
	OllamaEndpoint string `yaml:"ollama_endpoint"`
	OllamaModel    string `yaml:"ollama_model"`
	GenAIAPIKey    string `yaml:"genai_api_key"`
	GenAIModel     string `yaml:"genai_model"`
}

// StorageConfig configures the SQLite store.
type StorageConfig struct {
	DatabasePath string `yaml:"database_path"`
}

// IngestConfig configures document ingestion.
type IngestConfig struct {
	ChunkSize    int `yaml:"chunk_size"`    // characters per chunk
	ChunkOverlap int `yaml:"chunk_overlap"` // overlapping characters between chunks

	// InboxDir, when set, is watched for new files to auto-ingest.
	InboxDir string `yaml:"inbox_dir"`

	// SimilarityThreshold is the minimum cosine similarity for search hits.
	SimilarityThreshold float64 `yaml:"similarity_threshold"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Debug bool `yaml:"debug"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		LLM: LLMConfig{
			Provider:  "anthropic",
			Model:     "claude-sonnet-4-20250514",
			Timeout:   "120s",
			MaxTokens: 4096,
		},
		Embedding: EmbeddingConfig{
			Provider:       "ollama",
			OllamaEndpoint: "http://localhost:11434",
			OllamaModel:    "embeddinggemma",
			GenAIModel:     "gemini-embedding-001",
		},
		Storage: StorageConfig{
			DatabasePath: "data/taskpilot.db",
		},
		Ingest: IngestConfig{
			ChunkSize:           1000,
			ChunkOverlap:        200,
			SimilarityThreshold: 0.35,
		},
		Logging: LoggingConfig{},
	}
}

// Load loads configuration from a YAML file. A missing file yields the
// defaults; environment variables override secrets either way.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save writes the configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0644)
}

// applyEnvOverrides lets environment variables take precedence over file
// values for API keys and endpoints.
func (c *Config) applyEnvOverrides() {
	switch c.LLM.Provider {
	case "anthropic":
		if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
			c.LLM.APIKey = key
		}
	case "openai":
		if key := os.Getenv("OPENAI_API_KEY"); key != "" {
			c.LLM.APIKey = key
		}
	case "gemini":
		if key := os.Getenv("GEMINI_API_KEY"); key != "" {
			c.LLM.APIKey = key
		}
	}

	if key := os.Getenv("GEMINI_API_KEY"); key != "" && c.Embedding.GenAIAPIKey == "" {
		c.Embedding.GenAIAPIKey = key
	}
	if host := os.Getenv("OLLAMA_HOST"); host != "" {
		c.Embedding.OllamaEndpoint = host
	}
	if path := os.Getenv("TASKPILOT_DB"); path != "" {
		c.Storage.DatabasePath = path
	}
}
