package domain

import (
	"errors"
	"fmt"
	"time"
)

// Status describes where a thread stands relative to the approval gate.
type Status string

const (
	StatusIdle             Status = "idle"              // Turn finished, waiting for the next user message
	StatusRunning          Status = "running"           // A turn is walking the state machine
	StatusAwaitingApproval Status = "awaiting_approval" // Suspended at the approval gate
)

// PendingBatch is the batch of proposals suspended at the approval gate.
type PendingBatch struct {
	Handler     HandlerID  `json:"handler"`
	MessageID   string     `json:"message_id"`
	Proposals   []Proposal `json:"proposals"`
	RequestedAt time.Time  `json:"requested_at"`
}

// Checkpoint is the persisted snapshot of a thread.
type Checkpoint struct {
	ThreadID string `json:"thread_id"`

	// Version increases by one on every save, in transition order.
	Version int64 `json:"version"`

	Status  Status        `json:"status"`
	State   *State        `json:"state"`
	Pending *PendingBatch `json:"pending,omitempty"`

	UpdatedAt time.Time `json:"updated_at"`
}

// NewCheckpoint wraps a fresh state.
func NewCheckpoint(state *State) *Checkpoint {
	return &Checkpoint{
		ThreadID: state.ThreadID,
		Status:   StatusIdle,
		State:    state,
	}
}

// Awaiting reports whether the thread is suspended at the approval gate.
func (c *Checkpoint) Awaiting() bool {
	return c.Status == StatusAwaitingApproval
}

// Snapshot returns a deep copy of the checkpoint.
func (c *Checkpoint) Snapshot() *Checkpoint {
	if c == nil {
		return nil
	}
	out := *c
	out.State = c.State.Snapshot()
	if c.Pending != nil {
		p := *c.Pending
		p.Proposals = make([]Proposal, len(c.Pending.Proposals))
		for i, prop := range c.Pending.Proposals {
			p.Proposals[i] = prop.Clone()
		}
		out.Pending = &p
	}
	return &out
}

// Validate checks the checkpoint invariants. Stores and the engine treat a
// failure as a corrupt checkpoint.
func (c *Checkpoint) Validate() error {
	if c.State == nil {
		return errors.New("checkpoint has no state")
	}
	if c.ThreadID != c.State.ThreadID {
		return fmt.Errorf("checkpoint thread %q does not match state thread %q", c.ThreadID, c.State.ThreadID)
	}
	switch c.Status {
	case StatusIdle, StatusRunning:
		if c.Pending != nil {
			return fmt.Errorf("status %q carries a pending batch", c.Status)
		}
	case StatusAwaitingApproval:
		if c.Pending == nil || len(c.Pending.Proposals) == 0 {
			return errors.New("awaiting approval without a pending batch")
		}
		if top, _ := c.State.Stack.Top(); top != c.Pending.Handler {
			return fmt.Errorf("pending handler %q is not the active handler %q", c.Pending.Handler, top)
		}
	default:
		return fmt.Errorf("unknown status %q", c.Status)
	}
	return c.State.Validate()
}

// Decision is the external verdict that resumes a thread suspended at the approval gate.
type Decision struct {
	Approved bool   `json:"approve"`
	Reason   string `json:"reason,omitempty"`
}

// Approve returns an approving decision.
func Approve() Decision {
	return Decision{Approved: true}
}

// Deny returns a denying decision with the user's reason.
func Deny(reason string) Decision {
	return Decision{Reason: reason}
}

// TurnResult is what a caller sees after a turn or a resumption.
type TurnResult struct {
	ThreadID string        `json:"thread_id"`
	Reply    string        `json:"reply,omitempty"`
	Status   Status        `json:"status"`
	Active   HandlerID     `json:"active,omitempty"`
	Stack    []HandlerID   `json:"stack"`
	Pending  *PendingBatch `json:"pending,omitempty"`
	Version  int64         `json:"version"`
}

// Suspended reports whether the turn stopped at the approval gate.
func (r *TurnResult) Suspended() bool {
	return r.Status == StatusAwaitingApproval
}

// NewTurnResult summarizes a checkpoint for callers.
func NewTurnResult(cp *Checkpoint, reply string) *TurnResult {
	return &TurnResult{
		ThreadID: cp.ThreadID,
		Reply:    reply,
		Status:   cp.Status,
		Active:   cp.State.Active(),
		Stack:    cp.State.Stack.Frames(),
		Pending:  cp.Pending,
		Version:  cp.Version,
	}
}
