package ports

import (
	"context"
	"errors"

	"github.com/aretw0/handoff/pkg/domain"
)

// CheckpointStore defines the interface for persisting thread checkpoints.
// This allows for durable execution, enabling "Suspend & Resume" across processes.
type CheckpointStore interface {
	// Save persists the checkpoint for a given thread ID.
	Save(ctx context.Context, threadID string, cp *domain.Checkpoint) error

	// Load retrieves the checkpoint for a given thread ID.
	// Returns domain.ErrThreadNotFound if no checkpoint exists and
	// domain.ErrCheckpointCorrupt if one exists but cannot be decoded.
	Load(ctx context.Context, threadID string) (*domain.Checkpoint, error)

	// Delete removes the checkpoint for a given thread ID.
	Delete(ctx context.Context, threadID string) error

	// List returns the IDs of all stored threads.
	List(ctx context.Context) ([]string, error)
}

// AwaitingLister is implemented by stores that index threads by status.
type AwaitingLister interface {
	// ListAwaiting returns the IDs of threads suspended at the approval gate.
	ListAwaiting(ctx context.Context) ([]string, error)
}

// ListAwaiting asks store for its suspended threads.
// It returns errors.ErrUnsupported when store keeps no status index.
func ListAwaiting(ctx context.Context, store CheckpointStore) ([]string, error) {
	if l, ok := store.(AwaitingLister); ok {
		return l.ListAwaiting(ctx)
	}
	return nil, errors.ErrUnsupported
}
