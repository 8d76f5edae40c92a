package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"tabletop/internal/eventbus"
	"tabletop/internal/llm"
	"tabletop/internal/tool"
)

// Run executes one request: compose the prompt, then alternate between the
// provider and the tool registry until the model answers in plain text.
// Tool calls within one reply run in order and their results go back
// together in a single turn.
func (a *Agent) Run(ctx context.Context, req Request) (resp *Response, err error) {
	start := time.Now()
	rounds := 0
	var calls []tool.Call
	var results []tool.Result

	a.bus.Publish(eventbus.TopicAgentStart, eventbus.AgentRun{
		Role:       string(a.profile.Role),
		CampaignID: req.Context.CampaignID,
		GameSystem: req.Context.GameSystem,
	})
	defer func() {
		a.bus.Publish(eventbus.TopicAgentFinish, eventbus.AgentRun{
			Role:       string(a.profile.Role),
			CampaignID: req.Context.CampaignID,
			GameSystem: req.Context.GameSystem,
			Iterations: rounds,
			ToolCalls:  len(calls),
			Duration:   time.Since(start),
			Err:        err,
		})
		attrs := []any{
			"campaign", req.Context.CampaignID,
			"game_system", req.Context.GameSystem,
			"rounds", rounds,
			"tool_calls", len(calls),
			"duration", time.Since(start),
		}
		if err != nil {
			a.logger.Warn("agent run failed", append(attrs, "error", err)...)
			return
		}
		a.logger.Info("agent run finished", attrs...)
	}()

	system, err := a.systems.Lookup(req.Context.GameSystem)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownGameSystem, req.Context.GameSystem)
	}

	chatReq := &llm.ChatRequest{
		Model:        a.model,
		SystemPrompt: a.profile.SystemPrompt(system),
		Tools:        toolDefinitions(a.tools.Definitions()),
		Messages:     toLLMMessages(trimHistory(req.History, a.cfg.HistoryTokenBudget), req.Message),
		MaxTokens:    a.cfg.MaxTokens,
		Temperature:  a.cfg.Temperature,
	}

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		reply, err := a.chat(ctx, chatReq)
		if err != nil {
			return nil, err
		}

		if len(reply.ToolCalls) == 0 {
			return &Response{
				Content:     reply.Content,
				AgentRole:   a.profile.Role,
				ToolCalls:   calls,
				ToolResults: results,
				SceneMedia:  reply.SceneMedia,
			}, nil
		}

		if rounds >= a.cfg.MaxToolIterations {
			return nil, fmt.Errorf("%w: limit is %d", ErrMaxToolIterations, a.cfg.MaxToolIterations)
		}
		rounds++

		toolResults := make([]llm.ToolResult, 0, len(reply.ToolCalls))
		for _, tc := range reply.ToolCalls {
			call, res := a.dispatch(ctx, tc, req.Context, reply.StopReason == llm.StopMaxTokens)
			calls = append(calls, call)
			results = append(results, res)
			toolResults = append(toolResults, llm.ToolResult{
				ToolCallID: tc.ID,
				Content:    res.Text(),
				IsError:    res.IsError(),
			})
		}

		chatReq.Messages = append(chatReq.Messages,
			llm.Message{Role: "assistant", Content: reply.Content, ToolCalls: reply.ToolCalls},
			llm.Message{Role: "user", ToolResults: toolResults},
		)
	}
}

// chat sends one request to the provider and reports it on the bus.
func (a *Agent) chat(ctx context.Context, req *llm.ChatRequest) (*llm.LLMResponse, error) {
	start := time.Now()
	resp, err := a.provider.Chat(ctx, req)

	evt := eventbus.LLMResponse{
		Provider: a.provider.Name(),
		Duration: time.Since(start),
		Err:      err,
	}
	if resp != nil {
		evt.StopReason = resp.StopReason
		evt.InputTokens = resp.Usage.InputTokens
		evt.OutputTokens = resp.Usage.OutputTokens
	}
	a.bus.Publish(eventbus.TopicLLMResponse, evt)

	if err != nil {
		return nil, fmt.Errorf("%s: %w", a.provider.Name(), err)
	}
	return resp, nil
}

// dispatch runs one tool call. Arguments the model sent as something other
// than a JSON object fail the call without reaching the registry, as do calls
// from a reply cut off at the token limit, whose input may be partial.
func (a *Agent) dispatch(ctx context.Context, tc llm.ToolCall, tctx tool.Context, truncated bool) (tool.Call, tool.Result) {
	start := time.Now()
	call := tool.Call{Name: tc.Name}

	var res tool.Result
	args, err := decodeArguments(tc.Arguments)
	switch {
	case truncated:
		res = tool.Failure("Tool \"%s\" was not run: the reply reached the token limit before the call was complete", tc.Name)
	case err != nil:
		res = tool.Failure("Tool \"%s\" failed: %v", tc.Name, err)
	default:
		call.Arguments = args
		res = a.tools.Execute(ctx, call, tctx)
	}

	a.bus.Publish(eventbus.TopicToolResult, eventbus.ToolResult{
		Tool:     tc.Name,
		IsError:  res.IsError(),
		Duration: time.Since(start),
	})
	if res.IsError() {
		a.logger.Info("tool call failed", "tool", tc.Name, "error", res.Error)
	} else {
		a.logger.Debug("tool call", "tool", tc.Name)
	}
	return call, res
}

func decodeArguments(raw json.RawMessage) (map[string]any, error) {
	args := map[string]any{}
	if len(raw) == 0 || string(raw) == "null" {
		return args, nil
	}
	if err := json.Unmarshal(raw, &args); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return nil, fmt.Errorf("arguments must be a JSON object")
		}
		return nil, fmt.Errorf("malformed arguments: %v", err)
	}
	if args == nil {
		args = map[string]any{}
	}
	return args, nil
}

func toolDefinitions(defs []tool.Definition) []llm.ToolDefinition {
	out := make([]llm.ToolDefinition, len(defs))
	for i, d := range defs {
		out[i] = llm.ToolDefinition{
			Name:        d.Name,
			Description: d.Description,
			Parameters:  d.InputSchema,
		}
	}
	return out
}
