package metrics

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aretw0/handoff"
	"github.com/aretw0/handoff/pkg/adapters/scripted"
	"github.com/aretw0/handoff/pkg/domain"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHooks_BookingFlow(t *testing.T) {
	m := New()
	hotel := domain.HandlerSpec{
		ID:   "hotel",
		Name: "Hotel Booking Assistant",
		Delegation: domain.ToolSpec{
			Name:   "transfer_to_hotel_assistant",
			Params: []domain.Param{{Name: "request", Type: domain.ParamString, Required: true}},
		},
		Tools: []domain.Tool{
			{
				ToolSpec: domain.ToolSpec{Name: "book_hotel", Risk: domain.RiskSensitive},
				Run: func(context.Context, domain.ToolCall) (any, error) {
					return "Hotel 1 successfully booked.", nil
				},
			},
			{
				ToolSpec: domain.ToolSpec{Name: "search_hotels", Risk: domain.RiskSafe},
				Run: func(context.Context, domain.ToolCall) (any, error) {
					return nil, errors.New("index offline")
				},
			},
		},
	}
	model := scripted.New([]scripted.Step{
		scripted.Propose(scripted.Call("d1", "transfer_to_hotel_assistant", map[string]any{"request": "Hilton"})),
		scripted.Propose(scripted.Call("s1", "search_hotels", nil)),
		scripted.Propose(scripted.Call("b1", "book_hotel", nil)),
		scripted.Say("Booked."),
	})
	eng, err := handoff.New(model, domain.DispatcherSpec{}, []domain.HandlerSpec{hotel},
		handoff.WithLifecycleHooks(m.Hooks()))
	require.NoError(t, err)

	ctx := context.Background()
	res, err := eng.Send(ctx, "t1", "u1", "book the Hilton")
	require.NoError(t, err)
	require.True(t, res.Suspended())

	assert.Equal(t, 1.0, testutil.ToFloat64(m.pending))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.delegations.WithLabelValues("hotel")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.transitions.WithLabelValues("entry")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.toolCalls.WithLabelValues("hotel", "search_hotels", "safe", "error")))

	_, err = eng.Approve(ctx, "t1")
	require.NoError(t, err)

	assert.Equal(t, 0.0, testutil.ToFloat64(m.pending))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.approvals.WithLabelValues("approve")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.toolCalls.WithLabelValues("hotel", "book_hotel", "sensitive", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.transitions.WithLabelValues("end")))
	assert.Equal(t, 2, testutil.CollectAndCount(m.toolDuration))
}

func TestHooks_Events(t *testing.T) {
	m := New()
	hooks := m.Hooks()
	ctx := context.Background()

	m.SetPending(2)
	hooks.OnResume(ctx, &domain.ApprovalEvent{Handler: "car", Decision: &domain.Decision{Reason: "no"}})
	hooks.OnDelegate(ctx, &domain.DelegationEvent{Handler: "car"})
	hooks.OnToolReturn(ctx, &domain.ToolEvent{ToolName: "lookup_policy", Risk: domain.RiskSafe, Duration: 20 * time.Millisecond})

	assert.Equal(t, 1.0, testutil.ToFloat64(m.pending))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.approvals.WithLabelValues("deny")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.toolCalls.WithLabelValues("dispatcher", "lookup_policy", "safe", "ok")))
}

func TestHandler(t *testing.T) {
	m := New()
	m.Hooks().OnTransition(context.Background(), &domain.TransitionEvent{Node: "act"})

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body := rec.Body.String()
	assert.Contains(t, body, `handoff_transitions_total{node="act"} 1`)
	assert.Contains(t, body, "go_goroutines")

	expected := `
# HELP handoff_pending_approvals Threads currently suspended at the approval gate.
# TYPE handoff_pending_approvals gauge
handoff_pending_approvals 0
`
	require.NoError(t, testutil.GatherAndCompare(m.Registry(), strings.NewReader(expected), "handoff_pending_approvals"))
}
