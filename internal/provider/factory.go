package provider

import (
	"fmt"
	"time"

	"taskpilot/internal/config"
)

// New creates the provider named by the configuration.
func New(cfg config.LLMConfig) (Provider, error) {
	var timeout time.Duration
	if cfg.Timeout != "" {
		d, err := time.ParseDuration(cfg.Timeout)
		if err != nil {
			return nil, fmt.Errorf("invalid llm timeout %q: %w", cfg.Timeout, err)
		}
		timeout = d
	}

	switch cfg.Provider {
	case "anthropic", "":
		return NewAnthropicProvider(cfg.APIKey, cfg.Model, cfg.BaseURL, timeout), nil
	case "openai":
		return NewOpenAIProvider(cfg.APIKey, cfg.Model, cfg.BaseURL, timeout), nil
	case "gemini":
		return NewGeminiProvider(cfg.APIKey, cfg.Model, cfg.BaseURL, timeout), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s (use 'anthropic', 'openai' or 'gemini')", cfg.Provider)
	}
}
