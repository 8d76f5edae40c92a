package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tabletop/internal/eventbus"
)

func TestAgentRunMetrics(t *testing.T) {
	m := New()
	bus := eventbus.New()
	m.Subscribe(bus)

	bus.Publish(eventbus.TopicAgentStart, eventbus.AgentRun{Role: "narrator"})
	bus.Publish(eventbus.TopicAgentStart, eventbus.AgentRun{Role: "narrator"})
	assert.Equal(t, 2.0, testutil.ToFloat64(m.agentsActive))

	bus.Publish(eventbus.TopicAgentFinish, eventbus.AgentRun{Role: "narrator", Duration: time.Second})
	bus.Publish(eventbus.TopicAgentFinish, eventbus.AgentRun{Role: "narrator", Err: errors.New("boom")})

	assert.Equal(t, 0.0, testutil.ToFloat64(m.agentsActive))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.agentRuns.WithLabelValues("narrator", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.agentRuns.WithLabelValues("narrator", "error")))
}

func TestToolAndProviderMetrics(t *testing.T) {
	m := New()
	bus := eventbus.New()
	m.Subscribe(bus)

	bus.Publish(eventbus.TopicToolResult, eventbus.ToolResult{Tool: "roll-dice"})
	bus.Publish(eventbus.TopicToolResult, eventbus.ToolResult{Tool: "roll-dice", IsError: true})
	bus.Publish(eventbus.TopicLLMResponse, eventbus.LLMResponse{Provider: "anthropic", InputTokens: 100, OutputTokens: 20})
	bus.Publish(eventbus.TopicLLMResponse, eventbus.LLMResponse{Provider: "anthropic", Err: errors.New("429")})
	bus.Publish(eventbus.TopicAccessDenied, eventbus.AccessDenied{Reason: "not_member"})
	bus.Publish(eventbus.TopicToolResult, "ignored payload")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.toolCalls.WithLabelValues("roll-dice", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.toolCalls.WithLabelValues("roll-dice", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.providerCalls.WithLabelValues("anthropic", "error")))
	assert.Equal(t, 100.0, testutil.ToFloat64(m.providerTokens.WithLabelValues("anthropic", "input")))
	assert.Equal(t, 20.0, testutil.ToFloat64(m.providerTokens.WithLabelValues("anthropic", "output")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.accessDenied.WithLabelValues("not_member")))
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New()
	bus := eventbus.New()
	m.Subscribe(bus)
	bus.Publish(eventbus.TopicToolResult, eventbus.ToolResult{Tool: "roll-dice"})

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `tabletop_tool_calls_total{status="success",tool="roll-dice"} 1`)
	assert.Contains(t, string(body), "go_goroutines")
}
