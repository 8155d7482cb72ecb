package runner

import (
	"context"

	"github.com/aretw0/handoff/pkg/domain"
)

// DefaultDenyReason is given to the model when nobody is around to approve.
const DefaultDenyReason = "No operator is available to approve this action."

// Approver decides a batch suspended at the approval gate.
// An error aborts the chat; the batch stays pending in the checkpoint.
type Approver func(ctx context.Context, batch *domain.PendingBatch) (domain.Decision, error)

// PromptApprover asks the user through the handler.
func PromptApprover(handler IOHandler) Approver {
	return handler.Approve
}

// AutoDeny rejects every batch with reason. It is the headless default.
func AutoDeny(reason string) Approver {
	if reason == "" {
		reason = DefaultDenyReason
	}
	return func(ctx context.Context, batch *domain.PendingBatch) (domain.Decision, error) {
		return domain.Deny(reason), nil
	}
}

// AutoApprove lets every batch through.
func AutoApprove() Approver {
	return func(ctx context.Context, batch *domain.PendingBatch) (domain.Decision, error) {
		return domain.Approve(), nil
	}
}
