package tool

import (
	"context"
	"encoding/json"
	"fmt"
)

// Definition describes a tool to the model. It is immutable once registered.
type Definition struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"inputSchema"` // JSON Schema
}

// Call is one model request to invoke a tool.
type Call struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// Result is the output of a tool execution. Exactly one of Content or Error
// describes the outcome; Data carries optional structured payload on success.
type Result struct {
	Content string         `json:"content"`
	Data    map[string]any `json:"data,omitempty"`
	Error   string         `json:"error,omitempty"`
}

// IsError reports whether the result is a failure.
func (r Result) IsError() bool {
	return r.Error != ""
}

// Text returns what the model should see for this result.
func (r Result) Text() string {
	if r.IsError() {
		return r.Error
	}
	return r.Content
}

// Failure builds a failed Result.
func Failure(format string, args ...any) Result {
	return Result{Error: fmt.Sprintf(format, args...)}
}

// Context identifies the campaign, game system and caller a tool runs for.
// It is passed by value so a handler cannot alter the caller's copy.
type Context struct {
	CampaignID  string `json:"campaignId"`
	GameSystem  string `json:"gameSystem"`
	UserID      string `json:"userId"`
	CharacterID string `json:"characterId,omitempty"`
}

// Handler runs a tool. A returned error is reported to the model as a
// failure of the named tool; it never aborts the conversation.
type Handler func(ctx context.Context, args map[string]any, tc Context) (Result, error)

// Tool bundles a definition with its handler.
type Tool interface {
	Definition() Definition
	Execute(ctx context.Context, args map[string]any, tc Context) (Result, error)
}
