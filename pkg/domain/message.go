package domain

import "time"

// Role identifies who authored a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool" // Carries exactly one Result
)

// Proposal is a candidate operation suggested by the model capability.
type Proposal struct {
	ID   string         `json:"id"`
	Name string         `json:"name"`
	Args map[string]any `json:"args,omitempty"`
}

// Result answers exactly one Proposal.
type Result struct {
	ProposalID string `json:"proposal_id"` // Must match Proposal.ID
	Name       string `json:"name"`
	Content    string `json:"content"`
	IsError    bool   `json:"is_error,omitempty"`
	IsDenied   bool   `json:"is_denied,omitempty"`
}

// Message is one append-only record of the conversation log.
type Message struct {
	ID      string `json:"id"`
	Role    Role   `json:"role"`
	Content string `json:"content,omitempty"`

	// Handler is the speaker of an assistant message. Empty means the Dispatcher.
	Handler HandlerID `json:"handler,omitempty"`

	Proposals []Proposal `json:"proposals,omitempty"`
	Result    *Result    `json:"result,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// HasProposals reports whether the message carries at least one proposal.
func (m Message) HasProposals() bool {
	return len(m.Proposals) > 0
}

func (m Message) clone() Message {
	out := m
	if m.Proposals != nil {
		out.Proposals = make([]Proposal, len(m.Proposals))
		for i, p := range m.Proposals {
			out.Proposals[i] = p.Clone()
		}
	}
	if m.Result != nil {
		r := *m.Result
		out.Result = &r
	}
	return out
}

// Clone returns a copy of the proposal with its own argument map.
func (p Proposal) Clone() Proposal {
	out := p
	if p.Args != nil {
		out.Args = deepCopyMap(p.Args)
	}
	return out
}

func deepCopyMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		switch val := v.(type) {
		case map[string]any:
			out[k] = deepCopyMap(val)
		case []any:
			cp := make([]any, len(val))
			copy(cp, val)
			out[k] = cp
		default:
			out[k] = v
		}
	}
	return out
}
