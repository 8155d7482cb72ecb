package observability

import (
	"context"
	"log/slog"

	"github.com/aretw0/handoff/pkg/domain"
)

// LoggingHooks writes every lifecycle event to logger. Tool arguments pass
// through r first; tool output is never logged, only its size.
func LoggingHooks(logger *slog.Logger, r *Redactor) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnTransition: func(ctx context.Context, e *domain.TransitionEvent) {
			logger.DebugContext(ctx, "node_enter",
				"thread_id", e.ThreadID,
				"node", e.Node,
				"handler", e.Handler,
			)
		},
		OnToolCall: func(ctx context.Context, e *domain.ToolEvent) {
			logger.InfoContext(ctx, "tool_call",
				"thread_id", e.ThreadID,
				"handler", e.Handler,
				"tool_name", e.ToolName,
				"risk", e.Risk,
				"args", r.Redact(e.Input),
			)
		},
		OnToolReturn: func(ctx context.Context, e *domain.ToolEvent) {
			level := slog.LevelInfo
			if e.IsError {
				level = slog.LevelWarn
			}
			logger.Log(ctx, level, "tool_return",
				"thread_id", e.ThreadID,
				"tool_name", e.ToolName,
				"is_error", e.IsError,
				"output_bytes", len(e.Output),
				"duration", e.Duration,
			)
		},
		OnSuspend: func(ctx context.Context, e *domain.ApprovalEvent) {
			logger.InfoContext(ctx, "approval_requested",
				"thread_id", e.ThreadID,
				"handler", e.Handler,
				"proposals", proposalAttrs(e.Proposals, r),
			)
		},
		OnResume: func(ctx context.Context, e *domain.ApprovalEvent) {
			approved := e.Decision != nil && e.Decision.Approved
			logger.InfoContext(ctx, "approval_decided",
				"thread_id", e.ThreadID,
				"handler", e.Handler,
				"approved", approved,
				"proposals", len(e.Proposals),
			)
		},
		OnDelegate: func(ctx context.Context, e *domain.DelegationEvent) {
			logger.InfoContext(ctx, "delegate",
				"thread_id", e.ThreadID,
				"handler", e.Handler,
				"depth", e.Depth,
			)
		},
		OnEscalate: func(ctx context.Context, e *domain.DelegationEvent) {
			logger.InfoContext(ctx, "escalate",
				"thread_id", e.ThreadID,
				"handler", e.Handler,
				"depth", e.Depth,
				"reason", e.Reason,
			)
		},
	}
}

type proposalView struct {
	Name string         `json:"name"`
	Args map[string]any `json:"args,omitempty"`
}

func proposalAttrs(ps []domain.Proposal, r *Redactor) []proposalView {
	out := make([]proposalView, len(ps))
	for i, p := range ps {
		out[i] = proposalView{Name: p.Name, Args: r.Redact(p.Args)}
	}
	return out
}
