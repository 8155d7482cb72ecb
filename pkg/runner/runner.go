package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/aretw0/handoff/internal/logging"
	"github.com/aretw0/handoff/pkg/domain"
)

// errIO marks failures talking to the user, which end the chat.
var errIO = errors.New("io failure")

// Engine is the part of the handoff engine the chat loop drives.
type Engine interface {
	Send(ctx context.Context, threadID, userID, text string) (*domain.TurnResult, error)
	Resume(ctx context.Context, threadID string, decision domain.Decision) (*domain.TurnResult, error)
	Inspect(ctx context.Context, threadID string) (*domain.Checkpoint, error)
}

// Runner handles the chat loop of one thread using the provided IO.
// It uses an IOHandler strategy to abstract the interaction mode (Text vs JSON).
type Runner struct {
	Engine Engine

	// Handler is the strategy for IO. Defaults to a TextHandler on Stdin/Stdout.
	Handler IOHandler

	// Approver decides suspended batches. Defaults to prompting through the
	// Handler, or to AutoDeny when Headless.
	Approver Approver

	// Logger is used for internal debug logging.
	Logger *slog.Logger

	ThreadID string
	UserID   string
	Headless bool
	Renderer ContentRenderer

	// Signals lets Ctrl+C end the chat gracefully. Tests turn it off.
	Signals bool
}

// NewRunner creates a Runner for the engine.
func NewRunner(engine Engine, opts ...Option) *Runner {
	r := &Runner{
		Engine:  engine,
		Logger:  logging.NewNop(),
		Signals: true,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run reads messages until EOF, "exit", or an interrupt.
// A thread left awaiting approval by an earlier session is settled first.
func (r *Runner) Run(ctx context.Context) error {
	if r.Engine == nil {
		return errors.New("runner requires an engine")
	}
	if r.ThreadID == "" {
		return errors.New("runner requires a thread ID")
	}
	handler := r.resolveHandler()
	approver := r.resolveApprover(handler)

	var signals *SignalManager
	if r.Signals {
		signals = NewSignalManager(ctx)
		defer signals.Stop()
		ctx = signals.Context()
	}

	if err := r.settleExisting(ctx, handler, approver); err != nil {
		return r.finish(ctx, err)
	}

	for {
		text, err := handler.Input(ctx)
		if err != nil {
			if signals != nil {
				signals.CheckRace()
			}
			return r.finish(ctx, err)
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		if text == "exit" || text == "quit" {
			return nil
		}

		res, err := r.Engine.Send(ctx, r.ThreadID, r.UserID, text)
		if err == nil {
			err = r.settle(ctx, handler, approver, res)
		}
		if err != nil {
			if fatal(ctx, err) {
				return r.finish(ctx, err)
			}
			r.Logger.Warn("Turn failed", "thread_id", r.ThreadID, "err", err)
			if err := handler.SystemOutput(ctx, fmt.Sprintf("Error: %v", err)); err != nil {
				return err
			}
		}
	}
}

// settleExisting resumes a thread that is already waiting on the gate.
func (r *Runner) settleExisting(ctx context.Context, handler IOHandler, approver Approver) error {
	cp, err := r.Engine.Inspect(ctx, r.ThreadID)
	if errors.Is(err, domain.ErrThreadNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load thread %s: %w", r.ThreadID, err)
	}
	if !cp.Awaiting() {
		return nil
	}
	r.Logger.Debug("Thread awaiting approval", "thread_id", r.ThreadID)
	return r.settle(ctx, handler, approver, domain.NewTurnResult(cp, ""))
}

// settle shows the turn and keeps asking the approver until the thread is idle.
func (r *Runner) settle(ctx context.Context, handler IOHandler, approver Approver, res *domain.TurnResult) error {
	for {
		if err := handler.Reply(ctx, res); err != nil {
			return fmt.Errorf("%w: output: %w", errIO, err)
		}
		if !res.Suspended() {
			return nil
		}

		decision, err := approver(ctx, res.Pending)
		if err != nil {
			return fmt.Errorf("%w: approval: %w", errIO, err)
		}
		r.Logger.Debug("Approval decided", "thread_id", r.ThreadID, "approve", decision.Approved)

		res, err = r.Engine.Resume(ctx, r.ThreadID, decision)
		if err != nil {
			return err
		}
	}
}

// finish turns EOF and interrupts into a clean exit.
func (r *Runner) finish(ctx context.Context, err error) error {
	if errors.Is(err, io.EOF) {
		return nil
	}
	if ctx.Err() != nil {
		r.Logger.Debug("Runner interrupted", "err", ctx.Err())
		return nil
	}
	return err
}

// fatal reports errors the chat cannot continue past.
func fatal(ctx context.Context, err error) bool {
	return ctx.Err() != nil ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, errIO) ||
		errors.Is(err, domain.ErrCheckpointCorrupt)
}

// resolveHandler ensures a valid IOHandler is set.
func (r *Runner) resolveHandler() IOHandler {
	if r.Handler != nil {
		return r.Handler
	}
	th := NewTextHandler(os.Stdin, os.Stdout, WithTextHandlerRenderer(r.Renderer))
	r.Handler = th
	return th
}

// resolveApprover returns the configured or default approver.
func (r *Runner) resolveApprover(h IOHandler) Approver {
	if r.Approver != nil {
		return r.Approver
	}
	if r.Headless {
		return AutoDeny("")
	}
	return PromptApprover(h)
}
