package middleware

import (
	"context"

	"github.com/aretw0/handoff/pkg/domain"
	"github.com/aretw0/handoff/pkg/ports"
)

// DiffPublisher receives the change produced by every successful save.
type DiffPublisher func(ctx context.Context, diff *domain.CheckpointDiff)

type diffMiddleware struct {
	next    ports.CheckpointStore
	publish DiffPublisher
}

// NewDiffMiddleware creates a middleware that publishes a domain.CheckpointDiff
// after each save, comparing against the previously stored checkpoint.
// Place it outside the encryption middleware so diffs carry plain content.
func NewDiffMiddleware(publish DiffPublisher) Middleware {
	return func(next ports.CheckpointStore) ports.CheckpointStore {
		return &diffMiddleware{next: next, publish: publish}
	}
}

func (m *diffMiddleware) Save(ctx context.Context, threadID string, cp *domain.Checkpoint) error {
	// A missing or corrupt predecessor yields a full diff.
	prev, _ := m.next.Load(ctx, threadID)

	if err := m.next.Save(ctx, threadID, cp); err != nil {
		return err
	}
	if diff := domain.Diff(prev, cp); diff != nil {
		m.publish(ctx, diff)
	}
	return nil
}

func (m *diffMiddleware) Load(ctx context.Context, threadID string) (*domain.Checkpoint, error) {
	return m.next.Load(ctx, threadID)
}

func (m *diffMiddleware) Delete(ctx context.Context, threadID string) error {
	return m.next.Delete(ctx, threadID)
}

func (m *diffMiddleware) List(ctx context.Context) ([]string, error) {
	return m.next.List(ctx)
}

func (m *diffMiddleware) ListAwaiting(ctx context.Context) ([]string, error) {
	return ports.ListAwaiting(ctx, m.next)
}
