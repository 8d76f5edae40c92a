package eventbus

import "time"

// Topic represents an event topic.
type Topic string

const (
	TopicAgentStart   Topic = "agent_start"
	TopicAgentFinish  Topic = "agent_finish"
	TopicToolResult   Topic = "tool_result"
	TopicLLMResponse  Topic = "llm_response"
	TopicAccessDenied Topic = "access_denied"
)

// Event is a message passed through the event bus.
type Event struct {
	Topic     Topic
	Payload   any
	Timestamp time.Time
}

// Handler processes an event.
type Handler func(Event)

// AgentRun is the payload of TopicAgentStart and TopicAgentFinish.
type AgentRun struct {
	Role       string
	CampaignID string
	GameSystem string
	Iterations int           // finish only
	ToolCalls  int           // finish only
	Duration   time.Duration // finish only
	Err        error         // finish only
}

// ToolResult is the payload of TopicToolResult.
type ToolResult struct {
	Tool     string
	IsError  bool
	Duration time.Duration
}

// LLMResponse is the payload of TopicLLMResponse.
type LLMResponse struct {
	Provider     string
	StopReason   string
	InputTokens  int
	OutputTokens int
	Duration     time.Duration
	Err          error
}

// AccessDenied is the payload of TopicAccessDenied.
type AccessDenied struct {
	Reason string // "missing_token", "invalid_token" or "not_member"
}
