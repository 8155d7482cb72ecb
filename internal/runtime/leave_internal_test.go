package runtime

import (
	"context"
	"testing"

	"github.com/aretw0/handoff/pkg/adapters/memory"
	"github.com/aretw0/handoff/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEngine_LeaveOnEmptyStackAbortsWithoutSaving(t *testing.T) {
	reg, err := NewRegistry(domain.DispatcherSpec{}, domain.HandlerSpec{
		ID:         "flight",
		Name:       "Flight Assistant",
		Delegation: domain.ToolSpec{Name: "transfer_to_flight_assistant"},
	})
	require.NoError(t, err)

	store := memory.NewStore()
	e := NewEngine(reg, nil, store)
	ctx := context.Background()

	state := domain.NewState("t1", "")
	state.Append(domain.Message{ID: "m1", Role: domain.RoleAssistant, Handler: "flight",
		Proposals: []domain.Proposal{{ID: "e1", Name: domain.EscalateToolName}}})
	cp := domain.NewCheckpoint(state)

	_, err = e.run(ctx, cp, Node{Kind: NodeLeave, Handler: "flight", Proposals: state.Messages[0].Proposals})
	assert.ErrorIs(t, err, domain.ErrStackUnderflow)

	_, err = store.Load(ctx, "t1")
	assert.ErrorIs(t, err, domain.ErrThreadNotFound, "invalid transition must not be saved")
	assert.Len(t, cp.State.Messages, 1)
}

func TestNodeKind_String(t *testing.T) {
	for k := NodeKind(0); k < numNodeKinds; k++ {
		assert.NotEmpty(t, nodeNames[k], "node kind %d has no name", k)
	}
	assert.Equal(t, "node(42)", NodeKind(42).String())
	assert.Equal(t, "act(flight)", Node{Kind: NodeAct, Handler: "flight"}.String())
}
