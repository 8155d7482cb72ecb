package runtime_test

import (
	"context"
	"strings"
	"testing"

	"github.com/aretw0/handoff/internal/runtime"
	"github.com/aretw0/handoff/pkg/adapters/scripted"
	"github.com/aretw0/handoff/pkg/domain"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEngine_DelegationRoutesNextTurnToHandler(t *testing.T) {
	var transitions []string
	h := newHarness(t, runtime.WithLifecycleHooks(domain.LifecycleHooks{
		OnTransition: func(_ context.Context, e *domain.TransitionEvent) {
			transitions = append(transitions, e.Node)
		},
	}))

	delegateToFlight(h, "t1")
	assert.Equal(t, []string{"dispatcher_act", "entry", "act", "end"}, transitions)

	cp := h.load("t1")
	assert.Equal(t, domain.StatusIdle, cp.Status)
	require.Len(t, cp.State.Messages, 4)
	entry := resultFor(t, cp, "d1")
	assert.Contains(t, entry.Content, "Flight Updates & Booking Assistant")
	assert.Contains(t, entry.Content, domain.EscalateToolName)
	assert.False(t, entry.IsError)

	transitions = nil
	h.script(scripted.Say("Done."))
	res := h.mustTurn("t1", "LX0112 tomorrow please")
	assert.Equal(t, "Done.", res.Reply)
	assert.Equal(t, []string{"act", "end"}, transitions, "continuation goes straight to the handler")

	calls := h.model.Calls()
	last := calls[len(calls)-1]
	assert.Equal(t, domain.HandlerID("flight"), last.Handler)
	var names []string
	for _, spec := range last.Tools {
		names = append(names, spec.Name)
	}
	assert.Contains(t, names, domain.EscalateToolName)
	assert.NotContains(t, names, toTravelCar)
}

func TestEngine_DispatcherToolsAndReply(t *testing.T) {
	h := newHarness(t)
	h.script(
		scripted.Propose(scripted.Call("p1", "lookup_policy", map[string]any{"query": "changes"})),
		scripted.Say("You can change up to 3 hours before departure."),
	)

	res := h.mustTurn("t1", "what is the change policy?")
	assert.Equal(t, "You can change up to 3 hours before departure.", res.Reply)
	assert.Empty(t, res.Stack)
	assert.Equal(t, 1, h.rec.count("lookup_policy"))

	dispatcherTools := h.model.Calls()[0].Tools
	var names []string
	for _, spec := range dispatcherTools {
		names = append(names, spec.Name)
	}
	assert.Equal(t, []string{"lookup_policy", toTravelFlight, toTravelCar}, names)
}

func TestEngine_DelegationMissingArgsStaysWithDispatcher(t *testing.T) {
	var transitions []string
	h := newHarness(t, runtime.WithLifecycleHooks(domain.LifecycleHooks{
		OnTransition: func(_ context.Context, e *domain.TransitionEvent) {
			transitions = append(transitions, e.Node)
		},
	}))
	h.script(
		scripted.Propose(scripted.Call("d1", toTravelFlight, map[string]any{})),
		scripted.Say("What would you like to change about your flight?"),
	)

	res := h.mustTurn("t1", "flight stuff")
	assert.Empty(t, res.Stack)
	assert.Equal(t, "What would you like to change about your flight?", res.Reply)
	assert.Equal(t, []string{"dispatcher_act", "dispatcher_tools", "dispatcher_act", "end"}, transitions)

	cp := h.load("t1")
	assert.True(t, cp.State.Stack.Empty())
	answer := resultFor(t, cp, "d1")
	assert.True(t, answer.IsError)
	assert.Contains(t, answer.Content, "missing required argument(s): request")
}

func TestEngine_SensitiveDenied(t *testing.T) {
	h := newHarness(t)
	delegateToFlight(h, "t1")

	h.script(scripted.Propose(scripted.Call("u1", "update_ticket_to_new_flight",
		map[string]any{"ticket_no": "7240005432906569", "new_flight_id": 19250})))
	res := h.mustTurn("t1", "move me to LX0112")

	require.True(t, res.Suspended())
	require.NotNil(t, res.Pending)
	assert.Equal(t, domain.HandlerID("flight"), res.Pending.Handler)
	assert.Zero(t, h.rec.count("update_ticket_to_new_flight"), "must not execute before approval")
	assert.True(t, h.load("t1").Awaiting())

	h.script(scripted.Say("Understood, I kept your current flight."))
	res, err := h.resume("t1", domain.Deny("too expensive"))
	require.NoError(t, err)

	assert.Equal(t, domain.StatusIdle, res.Status)
	assert.Equal(t, []domain.HandlerID{"flight"}, res.Stack)
	assert.Zero(t, h.rec.count("update_ticket_to_new_flight"))

	denied := resultFor(t, h.load("t1"), "u1")
	assert.True(t, denied.IsDenied)
	assert.Equal(t, "API call denied by user. Reasoning: 'too expensive'. Continue assisting, accounting for the user's input.", denied.Content)
}

func TestEngine_SensitiveApproved(t *testing.T) {
	var suspended, resumed int
	h := newHarness(t, runtime.WithLifecycleHooks(domain.LifecycleHooks{
		OnSuspend: func(context.Context, *domain.ApprovalEvent) { suspended++ },
		OnResume: func(_ context.Context, e *domain.ApprovalEvent) {
			resumed++
			assert.True(t, e.Decision.Approved)
		},
	}))
	delegateToFlight(h, "t1")

	h.script(scripted.Propose(scripted.Call("u1", "update_ticket_to_new_flight",
		map[string]any{"ticket_no": "7240005432906569", "new_flight_id": 19250})))
	res := h.mustTurn("t1", "move me")
	require.True(t, res.Suspended())

	h.script(scripted.Say("Your ticket has been updated."))
	res, err := h.resume("t1", domain.Approve())
	require.NoError(t, err)

	assert.Equal(t, "Your ticket has been updated.", res.Reply)
	assert.Equal(t, 1, h.rec.count("update_ticket_to_new_flight"))
	assert.Equal(t, "Ticket successfully updated to new flight.", resultFor(t, h.load("t1"), "u1").Content)
	assert.Equal(t, 1, suspended)
	assert.Equal(t, 1, resumed)
}

func TestEngine_EscalateThenDelegateElsewhere(t *testing.T) {
	var delegations, escalations int
	h := newHarness(t, runtime.WithLifecycleHooks(domain.LifecycleHooks{
		OnDelegate: func(context.Context, *domain.DelegationEvent) { delegations++ },
		OnEscalate: func(_ context.Context, e *domain.DelegationEvent) {
			escalations++
			assert.Equal(t, "user wants to book a car instead", e.Reason)
			assert.Equal(t, 0, e.Depth)
		},
	}))
	delegateToFlight(h, "t1")

	h.script(
		scripted.Propose(scripted.Call("e1", domain.EscalateToolName,
			map[string]any{"cancel": true, "reason": "user wants to book a car instead"})),
		scripted.Propose(scripted.Call("d2", toTravelCar, map[string]any{"request": "car rental in Basel"})),
		scripted.Say("Which dates do you need the car for?"),
	)
	res := h.mustTurn("t1", "actually I'd rather rent a car")

	assert.Equal(t, []domain.HandlerID{"car"}, res.Stack)
	assert.Equal(t, "Which dates do you need the car for?", res.Reply)
	assert.Equal(t, runtime.LeaveMessage, resultFor(t, h.load("t1"), "e1").Content)
	assert.Equal(t, 2, delegations)
	assert.Equal(t, 1, escalations)
	assert.Equal(t, delegations-escalations, len(res.Stack))
}

func TestEngine_EscalateWinsOverOtherProposals(t *testing.T) {
	h := newHarness(t)
	delegateToFlight(h, "t1")

	h.script(
		scripted.Propose(
			scripted.Call("u1", "update_ticket_to_new_flight", map[string]any{"ticket_no": "1", "new_flight_id": 2}),
			scripted.Call("e1", domain.EscalateToolName, map[string]any{"reason": "off topic"}),
		),
		scripted.Say("How else can I help?"),
	)
	res := h.mustTurn("t1", "never mind")

	assert.False(t, res.Suspended())
	assert.Empty(t, res.Stack)
	assert.Zero(t, h.rec.count("update_ticket_to_new_flight"))
	skipped := resultFor(t, h.load("t1"), "u1")
	assert.True(t, skipped.IsError)
	assert.True(t, strings.HasPrefix(skipped.Content, "Not executed"))
}

func TestEngine_MixedBatchSuspendsWhole(t *testing.T) {
	h := newHarness(t)
	delegateToFlight(h, "t1")

	h.script(scripted.Propose(
		scripted.Call("s1", "search_flights", map[string]any{"departure_airport": "BSL"}),
		scripted.Call("u1", "update_ticket_to_new_flight", map[string]any{"ticket_no": "7240005432906569", "new_flight_id": 19250}),
	))
	res := h.mustTurn("t1", "find a flight and move me")

	require.True(t, res.Suspended())
	require.Len(t, res.Pending.Proposals, 2)
	assert.Zero(t, h.rec.count("search_flights"), "safe member of a sensitive batch waits too")
	assert.Zero(t, h.rec.count("update_ticket_to_new_flight"))

	h.script(scripted.Say("All set."))
	_, err := h.resume("t1", domain.Approve())
	require.NoError(t, err)
	assert.Equal(t, 1, h.rec.count("search_flights"))
	assert.Equal(t, 1, h.rec.count("update_ticket_to_new_flight"))
}

func TestEngine_ApprovalStateChecks(t *testing.T) {
	h := newHarness(t)
	delegateToFlight(h, "t1")

	_, err := h.resume("t1", domain.Approve())
	assert.ErrorIs(t, err, domain.ErrNotAwaitingApproval)

	h.script(scripted.Propose(scripted.Call("u1", "update_ticket_to_new_flight",
		map[string]any{"ticket_no": "7240005432906569", "new_flight_id": 19250})))
	h.mustTurn("t1", "move me")

	_, err = h.turn("t1", "hello?")
	assert.ErrorIs(t, err, domain.ErrAwaitingApproval)

	_, err = h.engine.Resume(h.ctx, nil, domain.Approve())
	assert.ErrorIs(t, err, domain.ErrThreadNotFound)
}

func TestEngine_ReloadAwaitingIsIdentical(t *testing.T) {
	h := newHarness(t)
	delegateToFlight(h, "t1")
	h.script(scripted.Propose(scripted.Call("u1", "update_ticket_to_new_flight",
		map[string]any{"ticket_no": "7240005432906569", "new_flight_id": 19250})))
	h.mustTurn("t1", "move me")

	first := h.load("t1")
	second := h.load("t1")
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("reload differs (-first +second):\n%s", diff)
	}

	// A rejected call must not advance the thread either.
	_, err := h.engine.Turn(h.ctx, first, "t1", "", "again")
	require.ErrorIs(t, err, domain.ErrAwaitingApproval)
	if diff := cmp.Diff(second, h.load("t1")); diff != "" {
		t.Errorf("checkpoint changed after rejected turn:\n%s", diff)
	}

	// Resume works on its own copy.
	h.script(scripted.Say("ok"))
	_, err = h.engine.Resume(h.ctx, first, domain.Deny("no"))
	require.NoError(t, err)
	if diff := cmp.Diff(second, first); diff != "" {
		t.Errorf("Resume mutated the caller's checkpoint:\n%s", diff)
	}
}

func TestEngine_VersionsIncreaseWithEverySave(t *testing.T) {
	h := newHarness(t)
	delegateToFlight(h, "t1")
	v1 := h.load("t1").Version
	// user message, dispatcher_act, entry, act, end
	assert.Equal(t, int64(5), v1)

	h.script(scripted.Say("Hi again."))
	res := h.mustTurn("t1", "hi")
	assert.Equal(t, v1+3, res.Version)
}
