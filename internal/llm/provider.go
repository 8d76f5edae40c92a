package llm

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
)

// ErrMissingCredential is returned when a provider is configured without an API key.
var ErrMissingCredential = errors.New("missing LLM provider credential")

// Provider is the interface all LLM backends must implement.
type Provider interface {
	// Chat sends a chat completion request and returns the full response.
	Chat(ctx context.Context, req *ChatRequest) (*LLMResponse, error)

	// Name returns the provider name (e.g. "openai", "anthropic").
	Name() string

	// DefaultModel returns the default model for this provider.
	DefaultModel() string
}

// LLMError wraps an error with a classification for fallback logic.
type LLMError struct {
	Type    ErrorType
	Message string
	Err     error
}

func (e *LLMError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *LLMError) Unwrap() error {
	return e.Err
}

// unavailable fails every call with the error that prevented construction.
type unavailable struct {
	name string
	err  error
}

// Unavailable returns a Provider whose every Chat call fails with err
// without touching the network.
func Unavailable(name string, err error) Provider {
	return &unavailable{name: name, err: err}
}

func (u *unavailable) Name() string         { return u.name }
func (u *unavailable) DefaultModel() string { return "" }

func (u *unavailable) Chat(context.Context, *ChatRequest) (*LLMResponse, error) {
	return nil, u.err
}

// classifyStatus maps an HTTP status code to an ErrorType.
func classifyStatus(code int) ErrorType {
	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return ErrorAuth
	case code == http.StatusTooManyRequests:
		return ErrorRateLimit
	case code == http.StatusRequestTimeout:
		return ErrorTimeout
	case code >= 400 && code < 500:
		return ErrorInvalidInput
	case code >= 500:
		return ErrorServerError
	default:
		return ErrorUnknown
	}
}

// classifyTransport recognises errors that never reached the provider.
func classifyTransport(err error) (ErrorType, bool) {
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrorTimeout, true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return ErrorTimeout, true
		}
		return ErrorNetwork, true
	}
	lower := strings.ToLower(err.Error())
	switch {
	case strings.Contains(lower, "timeout") || strings.Contains(lower, "deadline"):
		return ErrorTimeout, true
	case strings.Contains(lower, "connection") || strings.Contains(lower, "dns") || strings.Contains(lower, "refused"):
		return ErrorNetwork, true
	}
	return ErrorUnknown, false
}
