package agent

import (
	"errors"

	"tabletop/internal/llm"
	"tabletop/internal/tool"
)

var (
	// ErrUnknownGameSystem is returned before any provider call when the
	// request names a game system the catalog does not know.
	ErrUnknownGameSystem = errors.New("unknown game system")
	// ErrMaxToolIterations is returned when the model keeps requesting tools
	// past the configured number of round-trips.
	ErrMaxToolIterations = errors.New("max tool iterations exceeded")
)

// Message is one prior turn of the conversation.
type Message struct {
	Role    string `json:"role"` // "user" or "assistant"
	Content string `json:"content"`
}

// Request is one player message to an agent.
type Request struct {
	Role    Role
	Message string
	Context tool.Context
	History []Message
}

// SceneMedia is passed through from the provider untouched.
type SceneMedia = llm.SceneMedia

// Response is the outcome of one agent run. ToolCalls and ToolResults are
// parallel, in invocation order, and nil when no tool ran.
type Response struct {
	Content     string        `json:"content"`
	AgentRole   Role          `json:"agentRole"`
	ToolCalls   []tool.Call   `json:"toolCalls,omitempty"`
	ToolResults []tool.Result `json:"toolResults,omitempty"`
	SceneMedia  *SceneMedia   `json:"sceneMedia,omitempty"`
}
