package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrThreadNotFound is returned when no checkpoint exists for a thread ID.
	ErrThreadNotFound = errors.New("thread not found")

	// ErrCheckpointCorrupt is returned when a checkpoint exists but cannot be decoded
	// or violates its own invariants. Callers may restart the thread fresh.
	ErrCheckpointCorrupt = errors.New("checkpoint corrupt")

	// ErrStackUnderflow is returned when popping an empty delegation stack.
	// It means two Leave transitions fired for a single delegation.
	ErrStackUnderflow = errors.New("delegation stack underflow")

	// ErrAwaitingApproval is returned when a new user message arrives for a thread
	// suspended at the approval gate.
	ErrAwaitingApproval = errors.New("thread is awaiting approval")

	// ErrNotAwaitingApproval is returned when a decision is supplied for a thread
	// that is not suspended at the approval gate.
	ErrNotAwaitingApproval = errors.New("thread is not awaiting approval")

	// ErrEmptyResponse is returned when the model keeps answering with neither
	// content nor proposals after the corrective retries.
	ErrEmptyResponse = errors.New("model returned an empty response")

	// ErrStepLimitExceeded is returned when a single turn walks more transitions
	// than the engine allows.
	ErrStepLimitExceeded = errors.New("step limit exceeded")

	// ErrUnknownHandler is returned when a handler ID has no registered spec.
	ErrUnknownHandler = errors.New("unknown handler")
)

// CorruptCheckpointError carries the thread and the decode failure of a corrupt checkpoint.
type CorruptCheckpointError struct {
	ThreadID string
	Err      error
}

func (e *CorruptCheckpointError) Error() string {
	return fmt.Sprintf("checkpoint for thread %q is corrupt: %v", e.ThreadID, e.Err)
}

func (e *CorruptCheckpointError) Unwrap() error {
	return e.Err
}

// Is reports ErrCheckpointCorrupt as a match so callers can use errors.Is.
func (e *CorruptCheckpointError) Is(target error) bool {
	return target == ErrCheckpointCorrupt
}

// NewCorruptCheckpointError wraps err as a corrupt checkpoint failure for threadID.
func NewCorruptCheckpointError(threadID string, err error) error {
	return &CorruptCheckpointError{ThreadID: threadID, Err: err}
}
