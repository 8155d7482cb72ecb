package handoff

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/handoff/internal/logging"
	"github.com/aretw0/handoff/internal/runtime"
	"github.com/aretw0/handoff/pkg/adapters/memory"
	"github.com/aretw0/handoff/pkg/domain"
	"github.com/aretw0/handoff/pkg/ports"
	"github.com/aretw0/handoff/pkg/session"
	"github.com/google/uuid"
)

// Engine is the high-level entry point for the handoff library.
// It wraps the internal runtime with per-thread locking and checkpoint loading.
type Engine struct {
	runtime  *runtime.Engine
	sessions *session.Manager

	store       ports.CheckpointStore
	locker      ports.DistributedLocker
	lockTTL     time.Duration
	hooks       domain.LifecycleHooks
	logger      *slog.Logger
	runtimeOpts []runtime.EngineOption
}

// Option defines a functional option for configuring the Engine.
type Option func(*Engine)

// WithStore sets the checkpoint store (default: in-memory).
func WithStore(store ports.CheckpointStore) Option {
	return func(e *Engine) {
		e.store = store
	}
}

// WithLocker serializes turns of one thread across processes.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(e *Engine) {
		e.locker = locker
	}
}

// WithLockTTL bounds how long one turn may hold a thread lock (default 30s).
func WithLockTTL(ttl time.Duration) Option {
	return func(e *Engine) {
		e.lockTTL = ttl
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) {
		e.hooks = hooks
	}
}

// WithLogger sets a custom structured logger for the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithContextFetcher loads user context when a thread starts.
func WithContextFetcher(f ports.ContextFetcher) Option {
	return func(e *Engine) {
		e.runtimeOpts = append(e.runtimeOpts, runtime.WithContextFetcher(f))
	}
}

// WithApprovalNotifier publishes suspended batches to an asynchronous approval channel.
func WithApprovalNotifier(n ports.ApprovalNotifier) Option {
	return func(e *Engine) {
		e.runtimeOpts = append(e.runtimeOpts, runtime.WithApprovalNotifier(n))
	}
}

// WithMaxSteps bounds the transitions of a single turn (default 25).
func WithMaxSteps(n int) Option {
	return func(e *Engine) {
		e.runtimeOpts = append(e.runtimeOpts, runtime.WithMaxSteps(n))
	}
}

// WithMaxEmptyRetries bounds corrective retries after empty model output (default 3).
func WithMaxEmptyRetries(n int) Option {
	return func(e *Engine) {
		e.runtimeOpts = append(e.runtimeOpts, runtime.WithMaxEmptyRetries(n))
	}
}

// New initializes a new Engine for the given Dispatcher and handlers.
func New(model ports.Model, dispatcher domain.DispatcherSpec, handlers []domain.HandlerSpec, opts ...Option) (*Engine, error) {
	if model == nil {
		return nil, errors.New("a model is required")
	}
	eng := &Engine{}
	for _, opt := range opts {
		opt(eng)
	}

	if eng.logger == nil {
		eng.logger = logging.NewNop()
	}
	if eng.store == nil {
		eng.store = memory.NewStore()
	}

	registry, err := runtime.NewRegistry(dispatcher, handlers...)
	if err != nil {
		return nil, fmt.Errorf("invalid handler registry: %w", err)
	}

	runtimeOpts := []runtime.EngineOption{
		runtime.WithLifecycleHooks(eng.hooks),
		runtime.WithLogger(eng.logger),
	}
	runtimeOpts = append(runtimeOpts, eng.runtimeOpts...)
	eng.runtime = runtime.NewEngine(registry, model, eng.store, runtimeOpts...)

	sessionOpts := []session.Option{session.WithLogger(eng.logger)}
	if eng.locker != nil {
		sessionOpts = append(sessionOpts, session.WithLocker(eng.locker))
	}
	if eng.lockTTL > 0 {
		sessionOpts = append(sessionOpts, session.WithLockTTL(eng.lockTTL))
	}
	eng.sessions = session.NewManager(eng.store, sessionOpts...)

	return eng, nil
}

// Send delivers a user message to a thread and returns once the thread replies
// or suspends at the approval gate. An empty threadID starts a new thread.
func (e *Engine) Send(ctx context.Context, threadID, userID, text string) (*domain.TurnResult, error) {
	if threadID == "" {
		threadID = uuid.NewString()
	}

	var res *domain.TurnResult
	err := e.sessions.WithLock(ctx, threadID, func(ctx context.Context) error {
		cp, err := e.load(ctx, threadID)
		if err != nil && !errors.Is(err, domain.ErrThreadNotFound) {
			return err
		}
		res, err = e.runtime.Turn(ctx, cp, threadID, userID, text)
		return err
	})
	return res, err
}

// Resume applies an approval decision to a thread suspended at the approval gate.
func (e *Engine) Resume(ctx context.Context, threadID string, decision domain.Decision) (*domain.TurnResult, error) {
	var res *domain.TurnResult
	err := e.sessions.WithLock(ctx, threadID, func(ctx context.Context) error {
		cp, err := e.load(ctx, threadID)
		if err != nil {
			return err
		}
		res, err = e.runtime.Resume(ctx, cp, decision)
		return err
	})
	return res, err
}

// Approve resumes a suspended thread, executing the pending batch unchanged.
func (e *Engine) Approve(ctx context.Context, threadID string) (*domain.TurnResult, error) {
	return e.Resume(ctx, threadID, domain.Approve())
}

// Deny resumes a suspended thread, refusing the pending batch with the user's reason.
func (e *Engine) Deny(ctx context.Context, threadID, reason string) (*domain.TurnResult, error) {
	return e.Resume(ctx, threadID, domain.Deny(reason))
}

// Inspect returns the stored checkpoint of a thread.
func (e *Engine) Inspect(ctx context.Context, threadID string) (*domain.Checkpoint, error) {
	return e.sessions.Load(ctx, threadID)
}

// Delete removes a thread.
func (e *Engine) Delete(ctx context.Context, threadID string) error {
	return e.sessions.Delete(ctx, threadID)
}

// List returns the IDs of all stored threads.
func (e *Engine) List(ctx context.Context) ([]string, error) {
	return e.sessions.List(ctx)
}

// Pending returns the checkpoints of all threads suspended at the approval gate.
// Stores with a status index are asked for the suspended threads only; the
// others are scanned. Corrupt checkpoints are skipped and logged.
func (e *Engine) Pending(ctx context.Context) ([]*domain.Checkpoint, error) {
	ids, err := ports.ListAwaiting(ctx, e.store)
	if errors.Is(err, errors.ErrUnsupported) {
		ids, err = e.store.List(ctx)
	}
	if err != nil {
		return nil, err
	}
	var out []*domain.Checkpoint
	for _, id := range ids {
		cp, err := e.store.Load(ctx, id)
		if err != nil {
			if errors.Is(err, domain.ErrThreadNotFound) {
				continue
			}
			e.logger.Warn("Skipping unreadable thread", "thread_id", id, "err", err)
			continue
		}
		if cp.Awaiting() {
			out = append(out, cp)
		}
	}
	return out, nil
}

// Handlers returns the registered domain handlers.
func (e *Engine) Handlers() []domain.HandlerSpec {
	return e.runtime.Registry().Handlers()
}

// Store returns the checkpoint store.
func (e *Engine) Store() ports.CheckpointStore {
	return e.store
}

func (e *Engine) load(ctx context.Context, threadID string) (*domain.Checkpoint, error) {
	return e.store.Load(ctx, threadID)
}
