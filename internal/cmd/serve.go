package cmd

import (
	"context"
	stderrors "errors"
	"net/http"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/spf13/cobra"

	"github.com/Kingmaker16/codex-os/internal/health"
	"github.com/Kingmaker16/codex-os/internal/metrics"
	"github.com/Kingmaker16/codex-os/internal/server"
	"github.com/Kingmaker16/codex-os/internal/store"
	"github.com/Kingmaker16/codex-os/internal/telemetry"
	"github.com/Kingmaker16/codex-os/internal/version"
)

func newServeCmd(a *app) *cobra.Command {
	var address string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the orchestrator HTTP API",
		Long: `Start the HTTP API for submitting and executing graphs.

Endpoints:
  POST   /graphs               create a graph (?strict=true rejects cycles)
  GET    /graphs               list graph summaries
  GET    /graphs/{id}          fetch a graph
  DELETE /graphs/{id}          delete a graph
  POST   /graphs/{id}/execute  execute and persist a graph
  GET    /routes               route table
  POST   /routes/plan          resolve {"type": ...}
  GET    /health/live, /health/ready, /health/startup, /healthz
  GET    /metrics

SIGINT or SIGTERM fails the readiness probe and drains connections before
exiting.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if address != "" {
				a.cfg.Server.Address = address
			}
			return a.serve(cmd.Context())
		},
	}

	cmd.Flags().StringVar(&address, "address", "", "listen address (overrides server.address)")
	return cmd
}

func (a *app) serve(ctx context.Context) error {
	cfg := a.cfg

	shutdownTracing, err := telemetry.InitProvider(ctx, telemetry.Config{
		ServiceName:    "orchestrator",
		ServiceVersion: version.Version,
		Environment:    cfg.Telemetry.Environment,
		Enabled:        cfg.Telemetry.Enabled,
		Endpoint:       cfg.Telemetry.Endpoint,
		SampleRate:     cfg.Telemetry.SampleRate,
	})
	if err != nil {
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			a.logger.WithError(err).Warn("flush traces")
		}
	}()

	repo, err := store.Open(cfg.Store.Backend, cfg.Store.Path)
	if err != nil {
		return err
	}
	defer func() { _ = repo.Close() }()

	planner, err := a.planner()
	if err != nil {
		return err
	}

	notifier, err := a.hooks()
	if err != nil {
		return err
	}
	defer notifier.Wait()

	registry, m := metrics.NewRegistry()

	probes := health.NewProbeManager(version.Version)
	probes.AddChecker(health.NewStoreChecker(repo, cfg.Store.Backend))
	probeClient := cleanhttp.DefaultPooledClient()
	probeClient.Timeout = 2 * time.Second
	probes.AddChecker(health.NewServiceChecker(probeClient, planner.Services()))

	srv := server.NewServer(server.Deps{
		Store:    repo,
		Executor: a.engine(planner, m, notifier),
		Routes:   planner,
		Probes:   probes,
		Metrics:  m,
		Gatherer: registry,
		Logger:   a.logger,
	}, server.Config{
		Address:         cfg.Server.Address,
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		IdleTimeout:     cfg.Server.IdleTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	a.logger.Info("orchestrator started",
		"address", cfg.Server.Address,
		"store", cfg.Store.Backend,
		"task_types", len(planner.Types()),
		"hooks", notifier.Count(),
	)

	select {
	case err := <-errCh:
		if stderrors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	// ctx is already cancelled; the drain gets its own deadline.
	if err := srv.Shutdown(context.WithoutCancel(ctx)); err != nil {
		return err
	}
	a.logger.Info("orchestrator stopped")
	return nil
}
