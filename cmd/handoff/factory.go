package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aretw0/handoff"
	"github.com/aretw0/handoff/internal/config"
	"github.com/aretw0/handoff/internal/metrics"
	"github.com/aretw0/handoff/pkg/adapters/file"
	"github.com/aretw0/handoff/pkg/adapters/gemini"
	"github.com/aretw0/handoff/pkg/adapters/memory"
	"github.com/aretw0/handoff/pkg/adapters/redis"
	"github.com/aretw0/handoff/pkg/adapters/scripted"
	"github.com/aretw0/handoff/pkg/adapters/sqlite"
	"github.com/aretw0/handoff/pkg/domain"
	"github.com/aretw0/handoff/pkg/observability"
	"github.com/aretw0/handoff/pkg/persistence/middleware"
	"github.com/aretw0/handoff/pkg/ports"
	"github.com/aretw0/handoff/pkg/travel"
)

// stack is an engine together with the resources it holds open.
type stack struct {
	engine  *handoff.Engine
	closers []func() error
}

// Close releases the resources in reverse order of acquisition.
func (s *stack) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		errs = append(errs, s.closers[i]())
	}
	return errors.Join(errs...)
}

// engineSetup carries the optional collaborators of a surface.
type engineSetup struct {
	metrics  *metrics.Metrics
	notifier ports.ApprovalNotifier
	publish  middleware.DiffPublisher
}

// openStore builds the configured checkpoint store, wrapped with encryption
// when a key is set. The locker is nil unless the store is shared.
func (a *app) openStore(s *stack, publish middleware.DiffPublisher) (ports.CheckpointStore, ports.DistributedLocker, error) {
	var (
		store  ports.CheckpointStore
		locker ports.DistributedLocker
	)
	cfg := a.cfg.Store
	switch cfg.Kind {
	case config.StoreMemory:
		store = memory.NewStore()
	case config.StoreFile:
		store = file.New(cfg.Path)
	case config.StoreSQLite:
		db, err := sqlite.Open(cfg.Path)
		if err != nil {
			return nil, nil, err
		}
		s.closers = append(s.closers, db.Close)
		store = db
	case config.StoreRedis:
		rs := redis.New(cfg.Address, cfg.Password, cfg.DB, redis.WithTTL(cfg.TTL))
		s.closers = append(s.closers, rs.Close)
		store = rs
		locker = redis.NewLocker(rs.Client(), "handoff:")
	default:
		return nil, nil, fmt.Errorf("unknown store %q", cfg.Kind)
	}

	var mws []middleware.Middleware
	// Diff sees plaintext, so it wraps the encryption layer.
	if publish != nil {
		mws = append(mws, middleware.NewDiffMiddleware(publish))
	}
	keys, err := a.cfg.EncryptionKeys()
	if err != nil {
		return nil, nil, err
	}
	if keys != nil {
		mws = append(mws, middleware.NewEncryptionMiddleware(*keys))
	}
	a.logger.Debug("checkpoint store ready", "kind", cfg.Kind, "encrypted", keys != nil)
	return middleware.Chain(store, mws...), locker, nil
}

func (a *app) openModel(ctx context.Context) (ports.Model, error) {
	cfg := a.cfg.Model
	switch cfg.Provider {
	case config.ProviderGemini:
		opts := []gemini.Option{
			gemini.WithModelName(cfg.Name),
			gemini.WithLogger(a.logger),
		}
		if cfg.Temperature != nil {
			opts = append(opts, gemini.WithTemperature(*cfg.Temperature))
		}
		return gemini.New(ctx, cfg.APIKey, opts...)
	case config.ProviderScripted:
		a.logger.Warn("using the offline scripted model; replies echo the user")
		return scripted.New(nil, scripted.WithFallback(scripted.Echo)), nil
	default:
		return nil, fmt.Errorf("unknown model provider %q", cfg.Provider)
	}
}

// openTravel opens the travel database, seeding it on first use, and builds
// the policy index.
func (a *app) openTravel(ctx context.Context, s *stack) (*travel.Service, error) {
	db, err := travel.Open(a.cfg.Travel.DBPath)
	if err != nil {
		return nil, err
	}
	s.closers = append(s.closers, db.Close)

	if a.cfg.Travel.Seed {
		empty, err := db.Empty(ctx)
		if err != nil {
			return nil, err
		}
		if empty {
			a.logger.Info("seeding travel database", "path", a.cfg.Travel.DBPath)
			if err := db.Seed(ctx, time.Now()); err != nil {
				return nil, err
			}
		}
	}

	policyOpts := []travel.PolicyOption{travel.WithPolicyLogger(a.logger)}
	if m := a.cfg.Model.EmbeddingModel; m != "" && a.cfg.Model.APIKey != "" {
		embedder, err := gemini.NewEmbedder(ctx, a.cfg.Model.APIKey, m)
		if err != nil {
			return nil, err
		}
		policyOpts = append(policyOpts, travel.WithEmbedder(embedder))
	}
	policies, err := travel.NewPolicyIndex(ctx, policyOpts...)
	if err != nil {
		return nil, err
	}
	return travel.NewService(db, policies, travel.WithLogger(a.logger)), nil
}

// buildStack wires the configured store, model and travel domain into an engine.
func (a *app) buildStack(ctx context.Context, setup engineSetup) (*stack, error) {
	s := &stack{}
	eng, err := a.buildEngine(ctx, s, setup)
	if err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("error initializing engine: %w", err)
	}
	s.engine = eng
	return s, nil
}

func (a *app) buildEngine(ctx context.Context, s *stack, setup engineSetup) (*handoff.Engine, error) {
	store, locker, err := a.openStore(s, setup.publish)
	if err != nil {
		return nil, err
	}
	model, err := a.openModel(ctx)
	if err != nil {
		return nil, err
	}
	svc, err := a.openTravel(ctx, s)
	if err != nil {
		return nil, err
	}

	hooks := []domain.LifecycleHooks{
		observability.LoggingHooks(a.logger, observability.MustRedactor(observability.DefaultSensitiveKeys...)),
	}
	if setup.metrics != nil {
		hooks = append(hooks, setup.metrics.Hooks())
	}

	opts := []handoff.Option{
		handoff.WithStore(store),
		handoff.WithContextFetcher(svc),
		handoff.WithLifecycleHooks(domain.MergeHooks(hooks...)),
		handoff.WithMaxSteps(a.cfg.Engine.MaxSteps),
		handoff.WithMaxEmptyRetries(a.cfg.Engine.MaxEmptyRetries),
		handoff.WithLockTTL(a.cfg.Engine.LockTTL),
		handoff.WithLogger(a.logger),
	}
	if locker != nil {
		opts = append(opts, handoff.WithLocker(locker))
	}
	if setup.notifier != nil {
		opts = append(opts, handoff.WithApprovalNotifier(setup.notifier))
	}
	return handoff.New(model, svc.Dispatcher(), svc.Handlers(), opts...)
}
