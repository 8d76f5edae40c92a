package llm

import (
	"context"
	"errors"
	"log/slog"
)

// FallbackProvider tries providers in order, falling back on retryable errors.
type FallbackProvider struct {
	providers []Provider
	logger    *slog.Logger
}

// NewFallbackProvider creates a provider chain. The first provider is primary.
func NewFallbackProvider(logger *slog.Logger, providers ...Provider) *FallbackProvider {
	if logger == nil {
		logger = slog.Default()
	}
	return &FallbackProvider{providers: providers, logger: logger}
}

func (f *FallbackProvider) Name() string {
	if len(f.providers) > 0 {
		return f.providers[0].Name() + "+fallback"
	}
	return "fallback"
}

func (f *FallbackProvider) DefaultModel() string {
	if len(f.providers) > 0 {
		return f.providers[0].DefaultModel()
	}
	return ""
}

// Chat sends the request to each provider in turn. The request's Model is
// cleared for secondaries so each one uses its own default.
func (f *FallbackProvider) Chat(ctx context.Context, req *ChatRequest) (*LLMResponse, error) {
	lastErr := errors.New("no LLM providers configured")
	for i, p := range f.providers {
		r := req
		if i > 0 && req.Model != "" {
			cp := *req
			cp.Model = ""
			r = &cp
		}
		resp, err := p.Chat(ctx, r)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if !isRetryable(err) || ctx.Err() != nil {
			return nil, err
		}
		f.logger.Warn("llm provider failed, trying next", "provider", p.Name(), "error", err)
	}
	return nil, lastErr
}

// isRetryable returns true for errors that warrant trying a different provider.
func isRetryable(err error) bool {
	if errors.Is(err, ErrMissingCredential) {
		return true
	}
	var llmErr *LLMError
	if !errors.As(err, &llmErr) {
		return true // unknown errors are retryable
	}
	switch llmErr.Type {
	case ErrorAuth, ErrorInvalidInput:
		return false // these won't succeed on retry
	default:
		return true
	}
}
