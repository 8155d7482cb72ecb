package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aretw0/handoff/internal/metrics"
	httpAdapter "github.com/aretw0/handoff/pkg/adapters/http"
	"github.com/aretw0/handoff/pkg/adapters/kafka"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 5 * time.Second

func newServeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Long: `Starts the handoff engine behind a JSON API over HTTP, with live thread
updates over SSE. Prometheus metrics are served on metrics.addr, and approval
requests go through Kafka when kafka.brokers is set.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
				a.cfg.HTTP.Addr = addr
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.serve(ctx)
		},
	}
	cmd.Flags().String("addr", "", "Listen address (overrides http.addr)")
	return cmd
}

func (a *app) serve(ctx context.Context) error {
	streams := httpAdapter.NewStreamManager(a.logger)
	m := metrics.New()
	setup := engineSetup{metrics: m, publish: streams.Publish}

	kcfg := a.cfg.Kafka
	if len(kcfg.Brokers) > 0 {
		notifier := kafka.NewNotifier(kcfg.Brokers, kcfg.RequestsTopic, kafka.WithLogger(a.logger))
		defer notifier.Close()
		setup.notifier = notifier
	}

	s, err := a.buildStack(ctx, setup)
	if err != nil {
		return err
	}
	defer s.Close()

	pending, err := s.engine.Pending(ctx)
	if err != nil {
		return err
	}
	m.SetPending(len(pending))

	g, gctx := errgroup.WithContext(ctx)

	api := &http.Server{
		Addr:    a.cfg.HTTP.Addr,
		Handler: httpAdapter.NewHandler(s.engine, httpAdapter.WithStreams(streams), httpAdapter.WithLogger(a.logger)),
	}
	a.logger.Info("starting handoff server", "addr", api.Addr, "store", a.cfg.Store.Kind)
	runServer(gctx, g, api, a.logger)

	if addr := a.cfg.Metrics.Addr; addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", m.Handler())
		a.logger.Info("serving metrics", "addr", addr)
		runServer(gctx, g, &http.Server{Addr: addr, Handler: mux}, a.logger)
	}

	if len(kcfg.Brokers) > 0 {
		consumer := kafka.NewConsumer(kcfg.Brokers, kcfg.DecisionsTopic, kcfg.GroupID, s.engine, kafka.WithLogger(a.logger))
		defer consumer.Close()
		a.logger.Info("consuming approval decisions", "topic", kcfg.DecisionsTopic, "group", kcfg.GroupID)
		g.Go(func() error {
			return consumer.Run(gctx)
		})
	}

	err = g.Wait()
	a.logger.Info("handoff server stopped")
	return err
}

// runServer serves srv in the group and shuts it down once ctx is done.
func runServer(ctx context.Context, g *errgroup.Group, srv *http.Server, logger *slog.Logger) {
	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		// Give outstanding requests a deadline for completion.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("graceful shutdown did not complete", "addr", srv.Addr, "err", err)
			return srv.Close()
		}
		return nil
	})
}
