// custodyd runs a custody controller behind its HTTP API.
//
// The daemon keeps state in memory and mints a process-local token, which
// makes it suitable for development and integration environments. Production
// deployments embed the controller through the Forge extension with a
// grove-backed store and a real token.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	"github.com/spf13/pflag"

	"github.com/xraph/custody"
	"github.com/xraph/custody/api"
	audithook "github.com/xraph/custody/audit_hook"
	"github.com/xraph/custody/observability"
	"github.com/xraph/custody/rbac"
	"github.com/xraph/custody/store/memory"
	"github.com/xraph/custody/token"
	"github.com/xraph/custody/types"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "custodyd: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	f := newFlags()
	if err := f.set.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if help, _ := f.set.GetBool("help"); help {
		fmt.Fprintln(os.Stderr, "Usage: custodyd [flags]")
		f.set.SetOutput(os.Stderr)
		f.set.PrintDefaults()
		return nil
	}

	cfg, err := loadConfig(f.config, f.set.Changed("config"))
	if err != nil {
		return err
	}
	f.apply(&cfg)

	logger := newLogger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	c, err := newController(cfg, logger, reg)
	if err != nil {
		return err
	}
	if err := c.Start(ctx); err != nil {
		return fmt.Errorf("start controller: %w", err)
	}
	defer func() {
		if err := c.Stop(); err != nil {
			logger.Error("stop controller", "error", err)
		}
	}()

	sched, err := newScheduler(ctx, cfg, c, logger)
	if err != nil {
		return err
	}
	sched.Start()
	defer func() { <-sched.Stop().Done() }()

	apiSrv := api.New(c,
		api.WithLogger(logger),
		api.WithRateLimit(cfg.RateLimit, cfg.RateBurst),
	)
	apiSrv.Start(ctx)

	r := chi.NewRouter()
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	r.Mount("/", apiSrv.Handler())

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("custodyd listening", "addr", cfg.Addr, "principal", cfg.Principal)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("custodyd shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// newController wires the controller with metrics and an audit log.
func newController(cfg config, logger *slog.Logger, reg *prometheus.Registry) (*custody.Controller, error) {
	self := types.Principal(cfg.Principal)

	audit := audithook.New(audithook.RecorderFunc(func(ctx context.Context, evt *audithook.AuditEvent) error {
		logger.LogAttrs(ctx, slog.LevelInfo, "audit",
			slog.String("action", evt.Action),
			slog.String("resource", evt.Resource),
			slog.String("resource_id", evt.ResourceID),
			slog.String("actor", evt.Actor),
			slog.String("severity", evt.Severity),
			slog.Any("metadata", evt.Metadata),
		)
		return nil
	}), audithook.WithLogger(logger))

	opts := []custody.Option{
		custody.WithLogger(logger),
		custody.WithPluginTimeout(cfg.PluginTimeout),
		custody.WithPlugin(observability.NewMetricsExtension(observability.NewPrometheusFactory(reg))),
		custody.WithPlugin(audit),
	}
	if cfg.Owner != "" {
		opts = append(opts, custody.WithOwner(types.Principal(cfg.Owner)))
	}
	if cfg.Custodian != "" {
		opts = append(opts, custody.WithCustodian(types.Principal(cfg.Custodian)))
	}
	if len(cfg.Operators) > 0 {
		opts = append(opts, custody.WithRole(rbac.Operator, toPrincipals(cfg.Operators)...))
	}
	if len(cfg.Pausers) > 0 {
		opts = append(opts, custody.WithRole(rbac.Pauser, toPrincipals(cfg.Pausers)...))
	}
	if cfg.Demurrage != nil {
		opts = append(opts, custody.WithDemurrage(*cfg.Demurrage))
	}
	if cfg.Fee != nil {
		opts = append(opts, custody.WithRedemptionFee(*cfg.Fee))
	}

	return custody.New(self, token.NewMemory(self), memory.New(), opts...)
}

// newScheduler registers the reconciliation sweep. It runs as the controller
// owner at the time of each run.
func newScheduler(ctx context.Context, cfg config, c *custody.Controller, logger *slog.Logger) (*cron.Cron, error) {
	sched := cron.New()
	if cfg.Reconcile == "" {
		return sched, nil
	}
	_, err := sched.AddFunc(cfg.Reconcile, func() {
		pool := c.PoolBalance()
		if err := c.Reconcile(custody.WithPrincipal(ctx, c.Owner())); err != nil {
			logger.Error("scheduled reconcile failed", "error", err)
			return
		}
		logger.Info("scheduled reconcile",
			"swept", types.FormatUnits(pool, types.DefaultDecimals),
			"custodian", c.Custodian(),
		)
	})
	if err != nil {
		return nil, fmt.Errorf("reconcile schedule %q: %w", cfg.Reconcile, err)
	}
	return sched, nil
}

func toPrincipals(in []string) []types.Principal {
	out := make([]types.Principal, 0, len(in))
	for _, p := range in {
		out = append(out, types.Principal(p))
	}
	return out
}
