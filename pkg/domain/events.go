package domain

import (
	"context"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventTransition EventType = "transition"
	EventToolCall   EventType = "tool_call"
	EventToolReturn EventType = "tool_return"
	EventSuspend    EventType = "suspend"
	EventResume     EventType = "resume"
	EventDelegate   EventType = "delegate"
	EventEscalate   EventType = "escalate"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
	ThreadID  string    `json:"thread_id"`
}

// TransitionEvent is emitted every time the walk enters a node.
type TransitionEvent struct {
	EventBase
	Node    string    `json:"node"`
	Handler HandlerID `json:"handler,omitempty"`
}

// ToolEvent represents a tool execution.
type ToolEvent struct {
	EventBase
	Handler  HandlerID      `json:"handler,omitempty"`
	ToolName string         `json:"tool_name"`
	Risk     RiskClass      `json:"risk"`
	Input    map[string]any `json:"input,omitempty"`
	Output   string         `json:"output,omitempty"`
	IsError  bool           `json:"is_error,omitempty"`
	Duration time.Duration  `json:"duration,omitempty"`
}

// ApprovalEvent is emitted when a batch suspends at the gate and when it is resumed.
type ApprovalEvent struct {
	EventBase
	Handler   HandlerID  `json:"handler"`
	Proposals []Proposal `json:"proposals"`
	Decision  *Decision  `json:"decision,omitempty"`
}

// DelegationEvent is emitted on every push and pop of the delegation stack.
type DelegationEvent struct {
	EventBase
	Handler HandlerID `json:"handler"`
	Depth   int       `json:"depth"`
	Reason  string    `json:"reason,omitempty"`
}

// LifecycleHooks defines callbacks for engine observability.
type LifecycleHooks struct {
	OnTransition func(context.Context, *TransitionEvent)
	OnToolCall   func(context.Context, *ToolEvent)
	OnToolReturn func(context.Context, *ToolEvent)
	OnSuspend    func(context.Context, *ApprovalEvent)
	OnResume     func(context.Context, *ApprovalEvent)
	OnDelegate   func(context.Context, *DelegationEvent)
	OnEscalate   func(context.Context, *DelegationEvent)
}

// MergeHooks fans every callback out to all given hook sets, in order.
func MergeHooks(all ...LifecycleHooks) LifecycleHooks {
	return LifecycleHooks{
		OnTransition: func(ctx context.Context, e *TransitionEvent) {
			for _, h := range all {
				if h.OnTransition != nil {
					h.OnTransition(ctx, e)
				}
			}
		},
		OnToolCall: func(ctx context.Context, e *ToolEvent) {
			for _, h := range all {
				if h.OnToolCall != nil {
					h.OnToolCall(ctx, e)
				}
			}
		},
		OnToolReturn: func(ctx context.Context, e *ToolEvent) {
			for _, h := range all {
				if h.OnToolReturn != nil {
					h.OnToolReturn(ctx, e)
				}
			}
		},
		OnSuspend: func(ctx context.Context, e *ApprovalEvent) {
			for _, h := range all {
				if h.OnSuspend != nil {
					h.OnSuspend(ctx, e)
				}
			}
		},
		OnResume: func(ctx context.Context, e *ApprovalEvent) {
			for _, h := range all {
				if h.OnResume != nil {
					h.OnResume(ctx, e)
				}
			}
		},
		OnDelegate: func(ctx context.Context, e *DelegationEvent) {
			for _, h := range all {
				if h.OnDelegate != nil {
					h.OnDelegate(ctx, e)
				}
			}
		},
		OnEscalate: func(ctx context.Context, e *DelegationEvent) {
			for _, h := range all {
				if h.OnEscalate != nil {
					h.OnEscalate(ctx, e)
				}
			}
		},
	}
}
