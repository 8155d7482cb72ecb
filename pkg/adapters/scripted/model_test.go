package scripted_test

import (
	"context"
	"testing"

	"github.com/aretw0/handoff/pkg/adapters/scripted"
	"github.com/aretw0/handoff/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestModel_ReplaysInOrder(t *testing.T) {
	m := scripted.New([]scripted.Step{
		scripted.Say("hello"),
		scripted.Propose(scripted.Call("p1", "search_flights", nil)),
	})
	ctx := context.Background()
	state := domain.NewState("t1", "")

	resp, err := m.Propose(ctx, domain.ProposeRequest{State: state})
	require.NoError(t, err)
	assert.Equal(t, "hello", resp.Text)

	resp, err = m.Propose(ctx, domain.ProposeRequest{State: state, Handler: "flight"})
	require.NoError(t, err)
	require.Len(t, resp.Proposals, 1)
	assert.Equal(t, "search_flights", resp.Proposals[0].Name)

	_, err = m.Propose(ctx, domain.ProposeRequest{State: state})
	assert.ErrorIs(t, err, scripted.ErrExhausted)

	calls := m.Calls()
	require.Len(t, calls, 3)
	assert.Equal(t, domain.HandlerID("flight"), calls[1].Handler)
}

func TestModel_EchoFallback(t *testing.T) {
	m := scripted.New(nil, scripted.WithFallback(scripted.Echo))
	state := domain.NewState("t1", "")
	state.Append(domain.Message{ID: "m1", Role: domain.RoleUser, Content: "hi there"})

	resp, err := m.Propose(context.Background(), domain.ProposeRequest{State: state})
	require.NoError(t, err)
	assert.Equal(t, "You said: hi there", resp.Text)
	assert.Zero(t, m.Remaining())
}
