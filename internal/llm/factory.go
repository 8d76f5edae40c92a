package llm

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"tabletop/internal/config"
)

// NewProvider creates an LLM provider from config.
func NewProvider(cfg config.LLMConfig) (Provider, error) {
	switch cfg.Provider {
	case "openai", "openrouter", "local":
		p, err := NewOpenAIProvider(OpenAIConfig{
			APIKey:     cfg.APIKey,
			BaseURL:    cfg.BaseURL,
			Model:      cfg.Model,
			MaxRetries: cfg.MaxRetries,
			Timeout:    time.Duration(cfg.TimeoutSecs) * time.Second,
		})
		if err != nil {
			return nil, err
		}
		return p, nil
	case "anthropic", "":
		p, err := NewAnthropicProvider(AnthropicConfig{
			APIKey:     cfg.APIKey,
			BaseURL:    cfg.BaseURL,
			Model:      cfg.Model,
			MaxRetries: cfg.MaxRetries,
			Timeout:    time.Duration(cfg.TimeoutSecs) * time.Second,
		})
		if err != nil {
			return nil, err
		}
		return p, nil
	default:
		return nil, fmt.Errorf("unknown LLM provider: %s", cfg.Provider)
	}
}

// Build assembles the configured provider, chaining the fallback when one is
// set. A missing credential does not fail startup: the result is a provider
// that reports ErrMissingCredential on every call. Any other configuration
// error is returned.
func Build(cfg *config.Config, logger *slog.Logger) (Provider, error) {
	primary, err := NewProvider(cfg.LLM)
	if err != nil {
		if !isMissingCredential(err) {
			return nil, err
		}
		logger.Warn("llm provider has no credential, agent requests will fail", "provider", cfg.LLM.Provider)
		primary = Unavailable(providerName(cfg.LLM.Provider), err)
	}

	if cfg.FallbackLLM.Provider == "" {
		return primary, nil
	}
	secondary, err := NewProvider(cfg.FallbackLLM)
	if err != nil {
		if !isMissingCredential(err) {
			return nil, fmt.Errorf("fallback: %w", err)
		}
		logger.Warn("fallback llm provider has no credential, ignoring it", "provider", cfg.FallbackLLM.Provider)
		return primary, nil
	}
	return NewFallbackProvider(logger, primary, secondary), nil
}

func isMissingCredential(err error) bool {
	return errors.Is(err, ErrMissingCredential)
}

func providerName(name string) string {
	if name == "" {
		return "anthropic"
	}
	return name
}
