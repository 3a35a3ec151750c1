package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"inventrack/internal/auth"
	"inventrack/internal/banner"
	"inventrack/internal/config"
	"inventrack/internal/domain"
	"inventrack/internal/gateway"
	"inventrack/internal/scheduler"
	"inventrack/internal/security"
	"inventrack/internal/signals"
)

// Function variables for dependency injection in tests.
var (
	requireNonRoot = security.RequireNonRoot
	notifyContext  = signals.NotifyContext
	watchConfig    = config.Watch
	runGateway     = func(srv *gateway.Server, cmd *cobra.Command) error { return srv.Run(cmd.Context()) }
)

func runServe(cmd *cobra.Command, bm buildMeta) error {
	if err := requireNonRoot(); err != nil {
		return err
	}
	ctx, stop := notifyContext(cmd.Context())
	defer stop()
	cmd.SetContext(ctx)

	path := configPath(cmd)
	a, err := loadApp(path, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	slog.SetDefault(a.logger)
	if err := a.openData(ctx); err != nil {
		return err
	}
	defer a.Close()
	if err := a.openAgent(ctx); err != nil {
		return err
	}

	if spec := a.cfg.Scheduler.LowStockCron; spec != "" {
		sched := scheduler.NewScheduler(scheduler.NewRobfigCronEngine(a.logger), scheduler.WithLogger(a.logger))
		if err := sched.AddJob(scheduler.LowStockJob(a.service, spec, a.logger)); err != nil {
			return fmt.Errorf("low-stock schedule: %w", err)
		}
		sched.Start(ctx)
		defer sched.Stop()
	}

	if err := watchConfig(ctx, path, a.logger, func(c *domain.Config) {
		lvl, err := config.ParseLevel(c.Infra.LogLevel)
		if err != nil {
			return
		}
		if lvl != a.level.Level() {
			a.level.Set(lvl)
			a.logger.Info("log level changed", "level", lvl.String())
		}
	}); err != nil {
		a.logger.Warn("config watch disabled", "path", path, "error", err)
	}

	srv, err := gateway.NewServer(a.cfg.Gateway, gateway.Deps{
		Assistant:     a.agent,
		Identities:    auth.NewResolver(a.store),
		Users:         a.store,
		Notifications: a.service,
	}, gateway.WithLogger(a.logger))
	if err != nil {
		return err
	}

	banner.Print(cmd.OutOrStdout(), banner.Info{
		Version:  bm.Version,
		Addr:     fmt.Sprintf(":%d", a.cfg.Gateway.Port),
		Provider: a.cfg.Agents.Provider,
		Model:    a.cfg.Agents.DefaultModel,
		Database: redactDSN(a.cfg.Database.URL),
	})
	return runGateway(srv, cmd)
}
