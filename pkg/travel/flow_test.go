package travel_test

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/handoff"
	"github.com/aretw0/handoff/pkg/adapters/scripted"
	"github.com/aretw0/handoff/pkg/domain"
	"github.com/aretw0/handoff/pkg/travel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRebookingNeedsApproval(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

	db, err := travel.Open(":memory:")
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, db.Seed(ctx, now))

	policies, err := travel.NewPolicyIndex(ctx)
	require.NoError(t, err)
	svc := travel.NewService(db, policies, travel.WithClock(func() time.Time { return now }))

	model := scripted.New([]scripted.Step{
		scripted.Propose(scripted.Call("d1", "transfer_to_flight_assistant", map[string]any{"request": "move to a later flight"})),
		scripted.Propose(scripted.Call("u1", "update_ticket_to_new_flight", map[string]any{
			"ticket_no":     "7240005432906569",
			"new_flight_id": float64(3),
		})),
		scripted.Say("Your ticket now flies on LX0116."),
	})

	eng, err := handoff.New(model, svc.Dispatcher(), svc.Handlers(), handoff.WithContextFetcher(svc))
	require.NoError(t, err)

	res, err := eng.Send(ctx, "trip", travel.DemoPassenger, "Can I take a later flight?")
	require.NoError(t, err)
	require.True(t, res.Suspended())
	assert.Equal(t, travel.FlightHandler, res.Active)
	require.Len(t, res.Pending.Proposals, 1)

	flights, err := db.PassengerFlights(ctx, travel.DemoPassenger)
	require.NoError(t, err)
	assert.Equal(t, "LX0112", flights[0].FlightNo, "nothing runs before approval")

	cp, err := eng.Inspect(ctx, "trip")
	require.NoError(t, err)
	assert.Contains(t, cp.State.Context, "Ticket 7240005432906569")

	res, err = eng.Approve(ctx, "trip")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusIdle, res.Status)
	assert.Equal(t, "Your ticket now flies on LX0116.", res.Reply)

	cp, err = eng.Inspect(ctx, "trip")
	require.NoError(t, err)
	var result *domain.Result
	for _, m := range cp.State.Messages {
		if m.Result != nil && m.Result.ProposalID == "u1" {
			result = m.Result
		}
	}
	require.NotNil(t, result)
	assert.Equal(t, "Ticket successfully updated to new flight.", result.Content)
}
