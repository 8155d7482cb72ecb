package domain

import (
	"encoding/json"
	"fmt"
)

// EncodeCheckpoint serializes a checkpoint for storage backends.
func EncodeCheckpoint(cp *Checkpoint) ([]byte, error) {
	data, err := json.Marshal(cp)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal checkpoint: %w", err)
	}
	return data, nil
}

// DecodeCheckpoint parses and validates a stored checkpoint.
// Any failure is reported as a CorruptCheckpointError for threadID.
func DecodeCheckpoint(threadID string, data []byte) (*Checkpoint, error) {
	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, NewCorruptCheckpointError(threadID, err)
	}
	if cp.ThreadID != threadID {
		return nil, NewCorruptCheckpointError(threadID, fmt.Errorf("stored under %q but belongs to %q", threadID, cp.ThreadID))
	}
	if err := cp.Validate(); err != nil {
		return nil, NewCorruptCheckpointError(threadID, err)
	}
	return &cp, nil
}
