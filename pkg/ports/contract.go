package ports

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/handoff/pkg/domain"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunCheckpointStoreContract runs a suite of tests to verify that a CheckpointStore
// implementation adheres to the defined interface contract.
func RunCheckpointStoreContract(t *testing.T, store CheckpointStore) {
	ctx := context.Background()
	threadID := "contract-test-thread-" + time.Now().Format("20060102150405")

	t.Run("Save and Load", func(t *testing.T) {
		cp := contractCheckpoint(threadID)

		err := store.Save(ctx, threadID, cp)
		require.NoError(t, err, "Save should not return error")

		loaded, err := store.Load(ctx, threadID)
		require.NoError(t, err, "Load should not return error")
		assert.Equal(t, cp.Version, loaded.Version)
		assert.Equal(t, cp.Status, loaded.Status)
		assert.Equal(t, "passenger 3442 587242", loaded.State.Context)
		assert.Equal(t, cp.State.Stack.Frames(), loaded.State.Stack.Frames())
		require.Len(t, loaded.State.Messages, 2)
		// JSON backends turn integers into float64; only check presence.
		assert.NotNil(t, loaded.State.Messages[1].Proposals[0].Args["new_flight_id"])
	})

	t.Run("Reload Awaiting Checkpoint Is Identical", func(t *testing.T) {
		cp := contractCheckpoint(threadID + "-awaiting")
		require.NoError(t, store.Save(ctx, cp.ThreadID, cp))
		defer func() { _ = store.Delete(ctx, cp.ThreadID) }()

		first, err := store.Load(ctx, cp.ThreadID)
		require.NoError(t, err)
		second, err := store.Load(ctx, cp.ThreadID)
		require.NoError(t, err)

		if diff := cmp.Diff(first, second, cmpopts.EquateApproxTime(time.Millisecond)); diff != "" {
			t.Errorf("reloaded checkpoint differs (-first +second):\n%s", diff)
		}
		assert.True(t, second.Awaiting())
		require.NotNil(t, second.Pending)
		assert.Equal(t, domain.HandlerID("flight"), second.Pending.Handler)
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+threadID)
		assert.ErrorIs(t, err, domain.ErrThreadNotFound)
		assert.NotErrorIs(t, err, domain.ErrCheckpointCorrupt)
	})

	t.Run("Delete", func(t *testing.T) {
		err := store.Save(ctx, threadID, contractCheckpoint(threadID))
		require.NoError(t, err)

		err = store.Delete(ctx, threadID)
		require.NoError(t, err, "Delete should not return error")

		_, err = store.Load(ctx, threadID)
		assert.ErrorIs(t, err, domain.ErrThreadNotFound, "Load after Delete should return ErrThreadNotFound")
	})

	t.Run("List", func(t *testing.T) {
		id1 := threadID + "-1"
		id2 := threadID + "-2"
		_ = store.Save(ctx, id1, contractCheckpoint(id1))
		_ = store.Save(ctx, id2, contractCheckpoint(id2))

		defer func() {
			_ = store.Delete(ctx, id1)
			_ = store.Delete(ctx, id2)
		}()

		threads, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, threads, id1)
		assert.Contains(t, threads, id2)
	})
}

// contractCheckpoint builds a checkpoint suspended at the approval gate.
func contractCheckpoint(threadID string) *domain.Checkpoint {
	state := domain.NewState(threadID, "3442 587242")
	state.Context = "passenger 3442 587242"
	state.Stack.Push("flight")
	state.Append(domain.Message{ID: "m1", Role: domain.RoleUser, Content: "move me to the later flight",
		CreatedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)})
	proposals := []domain.Proposal{{ID: "p1", Name: "update_ticket_to_new_flight",
		Args: map[string]any{"ticket_no": "7240005432906569", "new_flight_id": 19250}}}
	state.Append(domain.Message{ID: "m2", Role: domain.RoleAssistant, Handler: "flight", Proposals: proposals,
		CreatedAt: time.Date(2026, 1, 2, 3, 4, 6, 0, time.UTC)})

	cp := domain.NewCheckpoint(state)
	cp.Version = 7
	cp.Status = domain.StatusAwaitingApproval
	cp.Pending = &domain.PendingBatch{
		Handler:     "flight",
		MessageID:   "m2",
		Proposals:   proposals,
		RequestedAt: time.Date(2026, 1, 2, 3, 4, 6, 0, time.UTC),
	}
	cp.UpdatedAt = time.Date(2026, 1, 2, 3, 4, 6, 0, time.UTC)
	return cp
}
