package runner

import (
	"context"

	"github.com/aretw0/handoff/pkg/domain"
)

// IOHandler defines the strategy for interacting with the user.
// This allows switching between Text (CLI/TUI) and JSON (Structured) modes.
type IOHandler interface {
	// Input reads the next user message.
	Input(ctx context.Context) (string, error)

	// Reply presents the outcome of a turn.
	Reply(ctx context.Context, res *domain.TurnResult) error

	// Approve presents a suspended batch and reads the operator's decision.
	Approve(ctx context.Context, batch *domain.PendingBatch) (domain.Decision, error)

	// SystemOutput presents a meta-message to the user (e.g. errors, status updates).
	// This is distinct from assistant replies.
	SystemOutput(ctx context.Context, msg string) error
}

// ContentRenderer is a function that transforms the content before outputting it.
// This allows for TUI rendering (markdown to ANSI) without coupling the core package.
type ContentRenderer func(string) (string, error)
