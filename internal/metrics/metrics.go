// Package metrics exports Prometheus collectors fed from the event bus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"tabletop/internal/eventbus"
)

const namespace = "tabletop"

// Metrics holds the service collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	agentRuns       *prometheus.CounterVec
	agentDuration   *prometheus.HistogramVec
	agentsActive    prometheus.Gauge
	toolCalls       *prometheus.CounterVec
	toolDuration    *prometheus.HistogramVec
	providerCalls   *prometheus.CounterVec
	providerLatency *prometheus.HistogramVec
	providerTokens  *prometheus.CounterVec
	accessDenied    *prometheus.CounterVec
}

// New creates and registers all collectors, including the Go runtime ones.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		agentRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "agent_runs_total",
			Help:      "Total number of agent runs",
		}, []string{"role", "status"}), // status: success, error
		agentDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "agent_run_duration_seconds",
			Help:      "Duration of agent runs in seconds",
			Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"role"}),
		agentsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "agent_runs_active",
			Help:      "Number of agent runs in progress",
		}),
		toolCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tool_calls_total",
			Help:      "Total number of tool calls",
		}, []string{"tool", "status"}),
		toolDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tool_call_duration_seconds",
			Help:      "Duration of tool calls in seconds",
			Buckets:   []float64{.0005, .001, .005, .01, .05, .1, .5, 1},
		}, []string{"tool"}),
		providerCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_requests_total",
			Help:      "Total number of LLM provider calls",
		}, []string{"provider", "status"}),
		providerLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "provider_request_duration_seconds",
			Help:      "Duration of LLM provider calls in seconds",
			Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"provider"}),
		providerTokens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_tokens_total",
			Help:      "Total tokens consumed by provider calls",
		}, []string{"provider", "type"}), // type: input, output
		accessDenied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "access_denied_total",
			Help:      "Requests rejected by authentication or membership checks",
		}, []string{"reason"}),
	}

	m.registry.MustRegister(
		m.agentRuns, m.agentDuration, m.agentsActive,
		m.toolCalls, m.toolDuration,
		m.providerCalls, m.providerLatency, m.providerTokens,
		m.accessDenied,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Subscribe wires the collectors to bus events.
func (m *Metrics) Subscribe(bus *eventbus.Bus) {
	bus.Subscribe(eventbus.TopicAgentStart, func(e eventbus.Event) {
		m.agentsActive.Inc()
	})
	bus.Subscribe(eventbus.TopicAgentFinish, func(e eventbus.Event) {
		run, ok := e.Payload.(eventbus.AgentRun)
		if !ok {
			return
		}
		m.agentsActive.Dec()
		m.agentRuns.WithLabelValues(run.Role, status(run.Err != nil)).Inc()
		m.agentDuration.WithLabelValues(run.Role).Observe(run.Duration.Seconds())
	})
	bus.Subscribe(eventbus.TopicToolResult, func(e eventbus.Event) {
		res, ok := e.Payload.(eventbus.ToolResult)
		if !ok {
			return
		}
		m.toolCalls.WithLabelValues(res.Tool, status(res.IsError)).Inc()
		m.toolDuration.WithLabelValues(res.Tool).Observe(res.Duration.Seconds())
	})
	bus.Subscribe(eventbus.TopicLLMResponse, func(e eventbus.Event) {
		resp, ok := e.Payload.(eventbus.LLMResponse)
		if !ok {
			return
		}
		m.providerCalls.WithLabelValues(resp.Provider, status(resp.Err != nil)).Inc()
		m.providerLatency.WithLabelValues(resp.Provider).Observe(resp.Duration.Seconds())
		if resp.Err == nil {
			m.providerTokens.WithLabelValues(resp.Provider, "input").Add(float64(resp.InputTokens))
			m.providerTokens.WithLabelValues(resp.Provider, "output").Add(float64(resp.OutputTokens))
		}
	})
	bus.Subscribe(eventbus.TopicAccessDenied, func(e eventbus.Event) {
		denied, ok := e.Payload.(eventbus.AccessDenied)
		if !ok {
			return
		}
		m.accessDenied.WithLabelValues(denied.Reason).Inc()
	})
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func status(failed bool) string {
	if failed {
		return "error"
	}
	return "success"
}
