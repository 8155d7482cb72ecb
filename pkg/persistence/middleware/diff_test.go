package middleware_test

import (
	"context"
	"testing"

	"github.com/aretw0/handoff/pkg/domain"
	"github.com/aretw0/handoff/pkg/persistence/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiffMiddleware_PublishesChanges(t *testing.T) {
	var diffs []*domain.CheckpointDiff
	store := middleware.Chain(NewMockStore(),
		middleware.NewDiffMiddleware(func(_ context.Context, d *domain.CheckpointDiff) { diffs = append(diffs, d) }),
		middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: generateKey(t)}),
	)
	ctx := context.Background()

	cp := domain.NewCheckpoint(domain.NewState("t1", "u1"))
	cp.State.Append(domain.Message{ID: "m1", Role: domain.RoleUser, Content: "hi"})
	cp.Version = 1
	require.NoError(t, store.Save(ctx, "t1", cp))

	require.Len(t, diffs, 1)
	assert.Len(t, diffs[0].Appended, 1, "first save is a full load")

	// Saving the same checkpoint again changes nothing.
	require.NoError(t, store.Save(ctx, "t1", cp))
	assert.Len(t, diffs, 1)

	cp = secretCheckpoint("t1")
	cp.Version = 2
	require.NoError(t, store.Save(ctx, "t1", cp))
	require.Len(t, diffs, 2)
	d := diffs[1]
	assert.Equal(t, int64(2), d.Version)
	assert.Equal(t, []domain.HandlerID{"flight"}, d.Stack)
	require.NotNil(t, d.Pending)
	assert.Equal(t, "7240005432906569", d.Pending.Proposals[0].Args["ticket_no"], "diffs see plain content")
}
