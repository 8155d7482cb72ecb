package domain

import (
	"errors"
	"fmt"
)

// State is the durable record of one conversation thread.
// It is owned exclusively by the orchestrator for the duration of a turn.
type State struct {
	ThreadID string `json:"thread_id"`

	// UserID identifies the account the Context was fetched for.
	UserID string `json:"user_id,omitempty"`

	// Messages is append-only: never truncated or reordered.
	Messages []Message `json:"messages"`

	// Context is filled once at thread start and read-only afterwards.
	Context string `json:"context,omitempty"`

	Stack DelegationStack `json:"stack"`
}

// NewState creates an empty state for a thread.
func NewState(threadID, userID string) *State {
	return &State{
		ThreadID: threadID,
		UserID:   userID,
		Messages: []Message{},
	}
}

// Append adds a message to the log.
func (s *State) Append(msg Message) {
	s.Messages = append(s.Messages, msg)
}

// Last returns the most recent message.
func (s *State) Last() (Message, bool) {
	if len(s.Messages) == 0 {
		return Message{}, false
	}
	return s.Messages[len(s.Messages)-1], true
}

// Active returns the handler currently speaking for the system.
// An empty HandlerID means the Dispatcher.
func (s *State) Active() HandlerID {
	top, _ := s.Stack.Top()
	return top
}

// LastReply returns the content of the latest assistant message, if any.
func (s *State) LastReply() string {
	for i := len(s.Messages) - 1; i >= 0; i-- {
		if s.Messages[i].Role == RoleAssistant {
			return s.Messages[i].Content
		}
	}
	return ""
}

// Snapshot returns a deep copy of the state.
func (s *State) Snapshot() *State {
	if s == nil {
		return nil
	}
	out := *s
	out.Messages = make([]Message, len(s.Messages))
	for i, m := range s.Messages {
		out.Messages[i] = m.clone()
	}
	out.Stack = s.Stack.Clone()
	return &out
}

// Validate checks the message log invariants:
// every result answers an earlier proposal, and no proposal is answered twice.
func (s *State) Validate() error {
	if s.ThreadID == "" {
		return errors.New("state has no thread id")
	}
	proposed := make(map[string]bool)
	answered := make(map[string]bool)
	for i, m := range s.Messages {
		switch m.Role {
		case RoleUser, RoleAssistant:
		case RoleTool:
			if m.Result == nil {
				return fmt.Errorf("message %d: tool message without result", i)
			}
			id := m.Result.ProposalID
			if !proposed[id] {
				return fmt.Errorf("message %d: result references unknown proposal %q", i, id)
			}
			if answered[id] {
				return fmt.Errorf("message %d: proposal %q answered twice", i, id)
			}
			answered[id] = true
		default:
			return fmt.Errorf("message %d: unknown role %q", i, m.Role)
		}
		for _, p := range m.Proposals {
			if proposed[p.ID] {
				return fmt.Errorf("message %d: duplicate proposal id %q", i, p.ID)
			}
			proposed[p.ID] = true
		}
	}
	return nil
}

// Unanswered returns the proposals of msg that have no result yet.
func (s *State) Unanswered(msg Message) []Proposal {
	answered := make(map[string]bool)
	for _, m := range s.Messages {
		if m.Result != nil {
			answered[m.Result.ProposalID] = true
		}
	}
	var out []Proposal
	for _, p := range msg.Proposals {
		if !answered[p.ID] {
			out = append(out, p)
		}
	}
	return out
}
