package ports

import (
	"context"

	"github.com/aretw0/handoff/pkg/domain"
)

// Model is the language-model capability.
// It is called with the full conversation state and may be called more than once
// per turn when it comes back empty.
type Model interface {
	Propose(ctx context.Context, req domain.ProposeRequest) (*domain.ModelResponse, error)
}

// ModelFunc adapts a function to the Model interface.
type ModelFunc func(ctx context.Context, req domain.ProposeRequest) (*domain.ModelResponse, error)

func (f ModelFunc) Propose(ctx context.Context, req domain.ProposeRequest) (*domain.ModelResponse, error) {
	return f(ctx, req)
}

// ContextFetcher loads the user/account context attached to a new thread.
type ContextFetcher interface {
	FetchContext(ctx context.Context, userID string) (string, error)
}

// ApprovalNotifier announces a batch suspended at the approval gate to an
// asynchronous approval channel. Decisions come back through Engine.Resume.
type ApprovalNotifier interface {
	NotifyPending(ctx context.Context, threadID string, batch *domain.PendingBatch) error
}
