// Package runtime walks the orchestration graph for one thread at a time.
//
// A turn starts at the node chosen by RouteContinuation and steps until the
// graph reaches End, a sensitive batch suspends at the approval gate, or an
// error aborts the walk. The checkpoint is saved after every transition.
package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/handoff/internal/logging"
	"github.com/aretw0/handoff/pkg/domain"
	"github.com/aretw0/handoff/pkg/ports"
	"github.com/google/uuid"
)

const (
	DefaultMaxSteps        = 25
	DefaultMaxEmptyRetries = 3
)

type stepFunc func(ctx context.Context, cp *domain.Checkpoint, node Node) (Node, error)

// Engine is the core state machine runner.
type Engine struct {
	registry *Registry
	model    ports.Model
	store    ports.CheckpointStore

	hooks           domain.LifecycleHooks
	logger          *slog.Logger
	contextFetcher  ports.ContextFetcher
	notifier        ports.ApprovalNotifier
	maxSteps        int
	maxEmptyRetries int
	now             func() time.Time
	newID           func() string

	steps [numNodeKinds]stepFunc
}

// EngineOption configures the Engine.
type EngineOption func(*Engine)

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) EngineOption {
	return func(e *Engine) {
		e.hooks = hooks
	}
}

// WithLogger sets a custom structured logger for the engine.
func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithContextFetcher sets the source of the user context loaded at thread start.
func WithContextFetcher(f ports.ContextFetcher) EngineOption {
	return func(e *Engine) {
		e.contextFetcher = f
	}
}

// WithApprovalNotifier publishes every suspended batch to an asynchronous channel.
func WithApprovalNotifier(n ports.ApprovalNotifier) EngineOption {
	return func(e *Engine) {
		e.notifier = n
	}
}

// WithMaxSteps bounds the transitions a single turn may walk.
func WithMaxSteps(n int) EngineOption {
	return func(e *Engine) {
		if n > 0 {
			e.maxSteps = n
		}
	}
}

// WithMaxEmptyRetries bounds the corrective re-invocations after an empty model response.
func WithMaxEmptyRetries(n int) EngineOption {
	return func(e *Engine) {
		if n >= 0 {
			e.maxEmptyRetries = n
		}
	}
}

// WithClock overrides time.Now, mostly for tests.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) {
		e.now = now
	}
}

// WithIDGenerator overrides the message and proposal ID source.
func WithIDGenerator(gen func() string) EngineOption {
	return func(e *Engine) {
		e.newID = gen
	}
}

// NewEngine creates a new engine with dependencies.
func NewEngine(registry *Registry, model ports.Model, store ports.CheckpointStore, opts ...EngineOption) *Engine {
	e := &Engine{
		registry:        registry,
		model:           model,
		store:           store,
		logger:          logging.NewNop(),
		maxSteps:        DefaultMaxSteps,
		maxEmptyRetries: DefaultMaxEmptyRetries,
		now:             time.Now,
		newID:           uuid.NewString,
	}
	for _, opt := range opts {
		opt(e)
	}

	e.steps = [numNodeKinds]stepFunc{
		NodeDispatcherAct:    e.dispatcherAct,
		NodeDispatcherTools:  e.dispatcherTools,
		NodeEntry:            e.entry,
		NodeAct:              e.act,
		NodeSafeExecute:      e.safeExecute,
		NodeSensitiveExecute: e.sensitiveExecute,
		NodeLeave:            e.leave,
		NodeEnd:              nil,
	}
	return e
}

// Registry returns the handler registry.
func (e *Engine) Registry() *Registry {
	return e.registry
}

// Store returns the checkpoint store the engine saves into.
func (e *Engine) Store() ports.CheckpointStore {
	return e.store
}

// Turn appends a user message to the thread and walks until the next reply or suspension.
// cp is nil for a thread without a checkpoint. The caller's checkpoint is never mutated.
func (e *Engine) Turn(ctx context.Context, cp *domain.Checkpoint, threadID, userID, text string) (*domain.TurnResult, error) {
	var work *domain.Checkpoint
	if cp == nil {
		work = domain.NewCheckpoint(domain.NewState(threadID, userID))
	} else {
		if cp.Awaiting() {
			return nil, domain.ErrAwaitingApproval
		}
		if err := cp.Validate(); err != nil {
			return nil, domain.NewCorruptCheckpointError(threadID, err)
		}
		work = cp.Snapshot()
		if work.State.UserID == "" {
			work.State.UserID = userID
		}
	}

	if len(work.State.Messages) == 0 && work.State.Context == "" && e.contextFetcher != nil {
		info, err := e.contextFetcher.FetchContext(ctx, work.State.UserID)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch user context: %w", err)
		}
		work.State.Context = info
	}

	// A previous turn aborted mid-batch leaves proposals without results.
	e.closeDangling(work)

	work.State.Append(domain.Message{
		ID:        e.newID(),
		Role:      domain.RoleUser,
		Content:   text,
		CreatedAt: e.now(),
	})
	work.Status = domain.StatusRunning
	if err := e.save(ctx, work); err != nil {
		return nil, err
	}

	e.logger.Debug("Turn started", "thread_id", threadID, "stack", work.State.Stack.String())
	return e.run(ctx, work, RouteContinuation(work.State.Stack, e.registry))
}

// Resume applies an approval decision to a suspended thread and walks on.
func (e *Engine) Resume(ctx context.Context, cp *domain.Checkpoint, decision domain.Decision) (*domain.TurnResult, error) {
	if cp == nil {
		return nil, domain.ErrThreadNotFound
	}
	if !cp.Awaiting() {
		return nil, domain.ErrNotAwaitingApproval
	}
	if err := cp.Validate(); err != nil {
		return nil, domain.NewCorruptCheckpointError(cp.ThreadID, err)
	}

	work := cp.Snapshot()
	pending := work.Pending
	work.Pending = nil
	work.Status = domain.StatusRunning

	if e.hooks.OnResume != nil {
		e.hooks.OnResume(ctx, &domain.ApprovalEvent{
			EventBase: e.event(domain.EventResume, work.ThreadID),
			Handler:   pending.Handler,
			Proposals: pending.Proposals,
			Decision:  &decision,
		})
	}
	e.logger.Info("Approval decision applied",
		"thread_id", work.ThreadID,
		"handler", pending.Handler,
		"approved", decision.Approved,
	)

	return e.run(ctx, work, Node{
		Kind:      NodeSensitiveExecute,
		Handler:   pending.Handler,
		Proposals: pending.Proposals,
		decision:  &decision,
	})
}

// run walks the graph from node until End, suspension or failure.
func (e *Engine) run(ctx context.Context, cp *domain.Checkpoint, node Node) (*domain.TurnResult, error) {
	for steps := 0; ; steps++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		e.emitTransition(ctx, cp.ThreadID, node)

		if node.Kind == NodeEnd {
			cp.Status = domain.StatusIdle
			if err := e.save(ctx, cp); err != nil {
				return nil, err
			}
			return domain.NewTurnResult(cp, cp.State.LastReply()), nil
		}

		if steps >= e.maxSteps {
			return nil, fmt.Errorf("%w: thread %s after %d transitions", domain.ErrStepLimitExceeded, cp.ThreadID, steps)
		}

		step := e.steps[node.Kind]
		if step == nil {
			return nil, fmt.Errorf("no step registered for node %s", node)
		}
		next, err := step(ctx, cp, node)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", node, err)
		}

		if err := e.save(ctx, cp); err != nil {
			return nil, err
		}
		if cp.Awaiting() {
			e.suspended(ctx, cp)
			return domain.NewTurnResult(cp, cp.State.LastReply()), nil
		}
		node = next
	}
}

// save stamps and persists the checkpoint.
func (e *Engine) save(ctx context.Context, cp *domain.Checkpoint) error {
	cp.Version++
	cp.UpdatedAt = e.now()
	if err := e.store.Save(ctx, cp.ThreadID, cp); err != nil {
		return fmt.Errorf("failed to save checkpoint: %w", err)
	}
	return nil
}

func (e *Engine) suspended(ctx context.Context, cp *domain.Checkpoint) {
	e.logger.Info("Thread suspended for approval",
		"thread_id", cp.ThreadID,
		"handler", cp.Pending.Handler,
		"proposals", len(cp.Pending.Proposals),
	)
	if e.hooks.OnSuspend != nil {
		e.hooks.OnSuspend(ctx, &domain.ApprovalEvent{
			EventBase: e.event(domain.EventSuspend, cp.ThreadID),
			Handler:   cp.Pending.Handler,
			Proposals: cp.Pending.Proposals,
		})
	}
	if e.notifier != nil {
		if err := e.notifier.NotifyPending(ctx, cp.ThreadID, cp.Pending); err != nil {
			// The checkpoint is durable; decisions can still arrive through Resume.
			e.logger.Warn("Failed to publish pending approval", "thread_id", cp.ThreadID, "err", err)
		}
	}
}

// closeDangling answers proposals left without results by an aborted walk,
// keeping the log well-formed before new input is appended.
func (e *Engine) closeDangling(cp *domain.Checkpoint) {
	for i := len(cp.State.Messages) - 1; i >= 0; i-- {
		msg := cp.State.Messages[i]
		if msg.Role != domain.RoleAssistant {
			continue
		}
		for _, p := range cp.State.Unanswered(msg) {
			e.appendResult(cp, msg.Handler, domain.Result{
				ProposalID: p.ID,
				Name:       p.Name,
				Content:    notExecutedMessage(p.Name, "The previous turn was interrupted."),
				IsError:    true,
			})
		}
		return
	}
}

func (e *Engine) appendResult(cp *domain.Checkpoint, handler domain.HandlerID, res domain.Result) {
	cp.State.Append(domain.Message{
		ID:        e.newID(),
		Role:      domain.RoleTool,
		Content:   res.Content,
		Handler:   handler,
		Result:    &res,
		CreatedAt: e.now(),
	})
}

func (e *Engine) event(t domain.EventType, threadID string) domain.EventBase {
	return domain.EventBase{Timestamp: e.now(), Type: t, ThreadID: threadID}
}

func (e *Engine) emitTransition(ctx context.Context, threadID string, node Node) {
	e.logger.Debug("Transition", "thread_id", threadID, "node", node.Kind.String(), "handler", node.Handler)
	if e.hooks.OnTransition != nil {
		e.hooks.OnTransition(ctx, &domain.TransitionEvent{
			EventBase: e.event(domain.EventTransition, threadID),
			Node:      node.Kind.String(),
			Handler:   node.Handler,
		})
	}
}
