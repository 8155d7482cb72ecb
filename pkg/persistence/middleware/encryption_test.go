package middleware_test

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"io"
	"strings"
	"testing"

	"github.com/aretw0/handoff/pkg/domain"
	"github.com/aretw0/handoff/pkg/persistence/middleware"
	"github.com/aretw0/handoff/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func generateKey(t *testing.T) []byte {
	k := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, k); err != nil {
		t.Fatal(err)
	}
	return k
}

func secretCheckpoint(threadID string) *domain.Checkpoint {
	state := domain.NewState(threadID, "3442 587242")
	state.Context = "Passenger 3442 587242, ticket 7240005432906569"
	state.Stack.Push("flight")
	state.Append(domain.Message{ID: "m1", Role: domain.RoleUser, Content: "move my flight"})
	state.Append(domain.Message{ID: "m2", Role: domain.RoleAssistant, Handler: "flight",
		Proposals: []domain.Proposal{{ID: "p1", Name: "update_ticket_to_new_flight",
			Args: map[string]any{"ticket_no": "7240005432906569", "new_flight_id": float64(19250)}}}})

	cp := domain.NewCheckpoint(state)
	cp.Status = domain.StatusAwaitingApproval
	cp.Version = 3
	cp.Pending = &domain.PendingBatch{Handler: "flight", MessageID: "m2", Proposals: state.Messages[1].Proposals}
	return cp
}

func TestEncryptionMiddleware_Contract(t *testing.T) {
	mw := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: generateKey(t)})
	ports.RunCheckpointStoreContract(t, mw(NewMockStore()))
}

func TestEncryptionMiddleware_Roundtrip(t *testing.T) {
	underlying := NewMockStore()
	secure := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: generateKey(t)})(underlying)
	ctx := context.Background()

	original := secretCheckpoint("t1")
	require.NoError(t, secure.Save(ctx, "t1", original))

	// Underlying store sees only the envelope
	stored, err := underlying.Load(ctx, "t1")
	require.NoError(t, err)
	assert.Empty(t, stored.State.Messages)
	assert.True(t, strings.HasPrefix(stored.State.Context, "enc:v1:"))
	assert.NotContains(t, stored.State.Context, "7240005432906569")
	assert.Equal(t, domain.StatusAwaitingApproval, stored.Status)
	assert.Equal(t, int64(3), stored.Version)
	require.NotNil(t, stored.Pending)
	assert.Nil(t, stored.Pending.Proposals[0].Args)

	loaded, err := secure.Load(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, original.State.Context, loaded.State.Context)
	assert.Len(t, loaded.State.Messages, 2)
	assert.Equal(t, "7240005432906569", loaded.Pending.Proposals[0].Args["ticket_no"])
}

func TestEncryptionMiddleware_KeyRotation(t *testing.T) {
	underlying := NewMockStore()
	oldKey := generateKey(t)
	newKey := generateKey(t)
	ctx := context.Background()

	secureOld := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: oldKey})(underlying)
	require.NoError(t, secureOld.Save(ctx, "t1", secretCheckpoint("t1")))

	secureNew := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{
		ActiveKey:    newKey,
		FallbackKeys: [][]byte{oldKey},
	})(underlying)

	loaded, err := secureNew.Load(ctx, "t1")
	require.NoError(t, err, "fallback key must decrypt old data")

	loaded.Version++
	require.NoError(t, secureNew.Save(ctx, "t1", loaded))

	_, err = secureOld.Load(ctx, "t1")
	assert.ErrorIs(t, err, domain.ErrCheckpointCorrupt, "old key alone cannot read new data")
}

func TestEncryptionMiddleware_PlainCheckpointRejected(t *testing.T) {
	underlying := NewMockStore()
	ctx := context.Background()
	require.NoError(t, underlying.Save(ctx, "t1", secretCheckpoint("t1")))

	secure := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: generateKey(t)})(underlying)
	_, err := secure.Load(ctx, "t1")
	assert.ErrorIs(t, err, domain.ErrCheckpointCorrupt)

	_, err = secure.Load(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrThreadNotFound)
}

func TestEncryptionMiddleware_InvalidKey(t *testing.T) {
	assert.Panics(t, func() {
		middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: []byte("short-key")})
	})
}

func TestParseKey(t *testing.T) {
	raw := generateKey(t)

	key, err := middleware.ParseKey(base64.StdEncoding.EncodeToString(raw))
	require.NoError(t, err)
	assert.Equal(t, raw, key)

	key, err = middleware.ParseKey("0123456789abcdef0123456789abcdef")
	require.NoError(t, err)
	assert.Len(t, key, 32)

	_, err = middleware.ParseKey("c2hvcnQ=")
	assert.Error(t, err)
}
