package domain

import (
	"encoding/json"
	"fmt"
)

// HandlerID names a domain handler (e.g. "flight").
type HandlerID string

// DelegationStack records which handler is currently active.
// The top element names the active handler; an empty stack means the Dispatcher is active.
type DelegationStack struct {
	frames []HandlerID
}

// NewDelegationStack builds a stack from bottom to top.
func NewDelegationStack(frames ...HandlerID) DelegationStack {
	s := DelegationStack{}
	for _, f := range frames {
		s.Push(f)
	}
	return s
}

// Push makes id the active handler.
func (s *DelegationStack) Push(id HandlerID) {
	s.frames = append(s.frames, id)
}

// Pop removes and returns the active handler.
// Popping an empty stack returns ErrStackUnderflow and leaves the stack untouched.
func (s *DelegationStack) Pop() (HandlerID, error) {
	if len(s.frames) == 0 {
		return "", ErrStackUnderflow
	}
	top := s.frames[len(s.frames)-1]
	s.frames = s.frames[:len(s.frames)-1]
	return top, nil
}

// Top returns the active handler, if any.
func (s DelegationStack) Top() (HandlerID, bool) {
	if len(s.frames) == 0 {
		return "", false
	}
	return s.frames[len(s.frames)-1], true
}

func (s DelegationStack) Depth() int {
	return len(s.frames)
}

func (s DelegationStack) Empty() bool {
	return len(s.frames) == 0
}

// Frames returns a copy of the stack, bottom first.
func (s DelegationStack) Frames() []HandlerID {
	out := make([]HandlerID, len(s.frames))
	copy(out, s.frames)
	return out
}

// Clone returns an independent copy.
func (s DelegationStack) Clone() DelegationStack {
	return DelegationStack{frames: s.Frames()}
}

// Equal reports whether both stacks hold the same frames in the same order.
func (s DelegationStack) Equal(other DelegationStack) bool {
	if len(s.frames) != len(other.frames) {
		return false
	}
	for i := range s.frames {
		if s.frames[i] != other.frames[i] {
			return false
		}
	}
	return true
}

func (s DelegationStack) String() string {
	return fmt.Sprintf("%v", s.frames)
}

// MarshalJSON encodes the stack as a plain array, bottom first.
func (s DelegationStack) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Frames())
}

// UnmarshalJSON decodes a plain array and rejects empty handler IDs.
func (s *DelegationStack) UnmarshalJSON(data []byte) error {
	var frames []HandlerID
	if err := json.Unmarshal(data, &frames); err != nil {
		return err
	}
	for i, f := range frames {
		if f == "" {
			return fmt.Errorf("delegation stack frame %d is empty", i)
		}
	}
	s.frames = frames
	return nil
}
