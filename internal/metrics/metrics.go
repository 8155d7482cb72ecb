// Package metrics exports engine activity as Prometheus collectors fed by
// lifecycle hooks.
package metrics

import (
	"context"
	"net/http"

	"github.com/aretw0/handoff/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// dispatcherLabel names the Dispatcher, whose handler ID is empty.
const dispatcherLabel = "dispatcher"

// Metrics holds the handoff collectors.
type Metrics struct {
	registry *prometheus.Registry

	transitions  *prometheus.CounterVec
	toolCalls    *prometheus.CounterVec
	toolDuration *prometheus.HistogramVec
	approvals    *prometheus.CounterVec
	pending      prometheus.Gauge
	delegations  *prometheus.CounterVec
}

// New creates the collectors on a private registry, together with the Go and
// process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "handoff_transitions_total",
			Help: "State machine nodes entered, by node.",
		}, []string{"node"}),
		toolCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "handoff_tool_calls_total",
			Help: "Executed tool calls.",
		}, []string{"handler", "tool", "risk", "outcome"}),
		toolDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "handoff_tool_duration_seconds",
			Help:    "Duration of tool executions.",
			Buckets: prometheus.DefBuckets,
		}, []string{"tool"}),
		approvals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "handoff_approvals_total",
			Help: "Approval decisions applied, by decision.",
		}, []string{"decision"}),
		pending: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "handoff_pending_approvals",
			Help: "Threads currently suspended at the approval gate.",
		}),
		delegations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "handoff_delegations_total",
			Help: "Delegations from the Dispatcher to a handler.",
		}, []string{"handler"}),
	}
	m.registry.MustRegister(
		m.transitions, m.toolCalls, m.toolDuration, m.approvals, m.pending, m.delegations,
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)
	return m
}

// Registry exposes the registry, e.g. for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// SetPending seeds the pending gauge, typically with the number of threads
// already suspended when the process starts.
func (m *Metrics) SetPending(n int) {
	m.pending.Set(float64(n))
}

// Hooks returns lifecycle hooks that record into the collectors.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnTransition: func(_ context.Context, e *domain.TransitionEvent) {
			m.transitions.WithLabelValues(e.Node).Inc()
		},
		OnToolReturn: func(_ context.Context, e *domain.ToolEvent) {
			outcome := "ok"
			if e.IsError {
				outcome = "error"
			}
			m.toolCalls.WithLabelValues(handlerLabel(e.Handler), e.ToolName, string(e.Risk), outcome).Inc()
			m.toolDuration.WithLabelValues(e.ToolName).Observe(e.Duration.Seconds())
		},
		OnSuspend: func(_ context.Context, _ *domain.ApprovalEvent) {
			m.pending.Inc()
		},
		OnResume: func(_ context.Context, e *domain.ApprovalEvent) {
			m.pending.Dec()
			decision := "deny"
			if e.Decision != nil && e.Decision.Approved {
				decision = "approve"
			}
			m.approvals.WithLabelValues(decision).Inc()
		},
		OnDelegate: func(_ context.Context, e *domain.DelegationEvent) {
			m.delegations.WithLabelValues(handlerLabel(e.Handler)).Inc()
		},
	}
}

func handlerLabel(id domain.HandlerID) string {
	if id == "" {
		return dispatcherLabel
	}
	return string(id)
}
