// Package scripted provides a deterministic ports.Model that replays queued
// responses. It backs tests and the offline "scripted" model provider.
package scripted

import (
	"context"
	"errors"
	"sync"

	"github.com/aretw0/handoff/pkg/domain"
)

// ErrExhausted is returned when the queue is empty and no fallback is set.
var ErrExhausted = errors.New("scripted model has no more responses")

// Step produces one response. It may inspect the request.
type Step func(req domain.ProposeRequest) (*domain.ModelResponse, error)

// Model replays steps in order.
type Model struct {
	mu       sync.Mutex
	steps    []Step
	calls    []domain.ProposeRequest
	fallback Step
}

// Option configures the Model.
type Option func(*Model)

// WithFallback answers every call made after the queue runs out.
func WithFallback(step Step) Option {
	return func(m *Model) {
		m.fallback = step
	}
}

// New creates a model that answers with steps in order.
func New(steps []Step, opts ...Option) *Model {
	m := &Model{steps: steps}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Push appends steps to the queue.
func (m *Model) Push(steps ...Step) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.steps = append(m.steps, steps...)
}

// Propose implements ports.Model.
func (m *Model) Propose(ctx context.Context, req domain.ProposeRequest) (*domain.ModelResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.calls = append(m.calls, req)
	var step Step
	if len(m.steps) > 0 {
		step = m.steps[0]
		m.steps = m.steps[1:]
	} else {
		step = m.fallback
	}
	m.mu.Unlock()

	if step == nil {
		return nil, ErrExhausted
	}
	return step(req)
}

// Calls returns the requests received so far.
func (m *Model) Calls() []domain.ProposeRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.ProposeRequest, len(m.calls))
	copy(out, m.calls)
	return out
}

// Remaining reports how many queued steps have not been consumed.
func (m *Model) Remaining() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.steps)
}

// Say answers with plain text.
func Say(text string) Step {
	return func(domain.ProposeRequest) (*domain.ModelResponse, error) {
		return &domain.ModelResponse{Text: text}, nil
	}
}

// Propose answers with proposals and no text.
func Propose(proposals ...domain.Proposal) Step {
	return func(domain.ProposeRequest) (*domain.ModelResponse, error) {
		out := make([]domain.Proposal, len(proposals))
		for i, p := range proposals {
			out[i] = p.Clone()
		}
		return &domain.ModelResponse{Proposals: out}, nil
	}
}

// Empty answers with neither text nor proposals.
func Empty() Step {
	return func(domain.ProposeRequest) (*domain.ModelResponse, error) {
		return &domain.ModelResponse{}, nil
	}
}

// Fail answers with err.
func Fail(err error) Step {
	return func(domain.ProposeRequest) (*domain.ModelResponse, error) {
		return nil, err
	}
}

// Call builds a proposal. The engine assigns an ID when id is empty.
func Call(id, name string, args map[string]any) domain.Proposal {
	return domain.Proposal{ID: id, Name: name, Args: args}
}

// Echo repeats the latest user message. It is the fallback of the offline provider.
func Echo(req domain.ProposeRequest) (*domain.ModelResponse, error) {
	for i := len(req.State.Messages) - 1; i >= 0; i-- {
		if m := req.State.Messages[i]; m.Role == domain.RoleUser {
			return &domain.ModelResponse{Text: "You said: " + m.Content}, nil
		}
	}
	return &domain.ModelResponse{Text: "How can I help with your trip?"}, nil
}
