package domain

// CheckpointDiff represents the changes between two checkpoints of one thread.
// It is designed to be serialized to JSON for partial updates on the client.
type CheckpointDiff struct {
	// ThreadID is always present to identify the target.
	ThreadID string `json:"thread_id"`
	Version  int64  `json:"version"`

	Status *Status `json:"status,omitempty"`

	// Stack is the full new stack when it changed, null otherwise.
	// An empty array means control returned to the Dispatcher.
	Stack []HandlerID `json:"stack"`

	// Appended holds the messages added since the old checkpoint.
	// The log is append-only, so a suffix is always enough.
	Appended []Message `json:"appended,omitempty"`

	Pending        *PendingBatch `json:"pending,omitempty"`
	PendingCleared bool          `json:"pending_cleared,omitempty"`
}

// Diff calculates the difference between oldCp and newCp.
// If oldCp is nil, it returns a diff representing the entire newCp (initial load).
func Diff(oldCp, newCp *Checkpoint) *CheckpointDiff {
	if newCp == nil || newCp.State == nil {
		return nil
	}

	diff := &CheckpointDiff{
		ThreadID: newCp.ThreadID,
		Version:  newCp.Version,
	}

	if oldCp == nil || oldCp.State == nil {
		status := newCp.Status
		diff.Status = &status
		if !newCp.State.Stack.Empty() {
			diff.Stack = newCp.State.Stack.Frames()
		}
		diff.Appended = append([]Message(nil), newCp.State.Messages...)
		diff.Pending = newCp.Pending
		if diff.IsEmpty() {
			return nil
		}
		return diff
	}

	if oldCp.Status != newCp.Status {
		status := newCp.Status
		diff.Status = &status
	}
	if !oldCp.State.Stack.Equal(newCp.State.Stack) {
		diff.Stack = newCp.State.Stack.Frames()
	}
	if n := len(oldCp.State.Messages); len(newCp.State.Messages) > n {
		diff.Appended = append([]Message(nil), newCp.State.Messages[n:]...)
	}
	switch {
	case oldCp.Pending == nil && newCp.Pending != nil:
		diff.Pending = newCp.Pending
	case oldCp.Pending != nil && newCp.Pending == nil:
		diff.PendingCleared = true
	}

	if diff.IsEmpty() {
		return nil
	}
	return diff
}

// IsEmpty checks if the diff contains any actionable changes.
func (d *CheckpointDiff) IsEmpty() bool {
	return d.Status == nil &&
		d.Stack == nil &&
		len(d.Appended) == 0 &&
		d.Pending == nil &&
		!d.PendingCleared
}
