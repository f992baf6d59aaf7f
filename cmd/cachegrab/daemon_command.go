package main

import (
	"context"
	"errors"
	"time"

	"github.com/spf13/cobra"

	"github.com/cachegrab/cachegrab/internal/api"
	"github.com/cachegrab/cachegrab/internal/config"
	"github.com/cachegrab/cachegrab/internal/scheduler"
)

const shutdownTimeout = 30 * time.Second

func newDaemonCommand(ctx *commandContext) *cobra.Command {
	var noServer bool

	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Run the pipeline on a schedule and serve the status API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			sigCtx, cancel := signalContext(cmd.Context())
			defer cancel()

			a, err := newApp(sigCtx, cfg)
			if err != nil {
				return err
			}
			defer a.close()

			return runDaemon(sigCtx, a, !noServer)
		},
	}

	cmd.Flags().BoolVar(&noServer, "no-server", false, "Do not start the HTTP API")
	return cmd
}

func runDaemon(ctx context.Context, a *app, serve bool) error {
	log := a.log.WithComponent("daemon")

	sched, err := scheduler.New(a.log.Logger)
	if err != nil {
		return err
	}
	if err := scheduler.RegisterPipelineTask(sched, a.runner, a.cfg.Schedule.Cron, a.cfg.Schedule.RunOnStart); err != nil {
		return err
	}
	if err := scheduler.RegisterHistoryCleanupTask(sched, a.history, a.cfg.Database.KeepRuns); err != nil {
		return err
	}

	var server *api.Server
	serverErr := make(chan error, 1)
	if serve {
		server = api.NewServer(api.Deps{
			Config:    a.cfg,
			Runner:    a.runner,
			History:   a.history,
			Health:    a.health,
			Scheduler: sched,
			Logs:      a.recent,
			LogPath:   a.cfg.Logging.FilePath(),
			Version:   config.Version,
		}, a.log.Logger)
		go func() {
			serverErr <- server.Start(a.cfg.Server.Address())
		}()
	}

	if err := sched.Start(); err != nil {
		return err
	}
	log.Info().
		Str("cron", a.cfg.Schedule.Cron).
		Bool("dryRun", a.cfg.DryRun).
		Bool("api", serve).
		Msg("Daemon started")

	var runErr error
	select {
	case <-ctx.Done():
		log.Info().Msg("Received shutdown signal")
	case runErr = <-serverErr:
		if runErr != nil {
			log.Error().Err(runErr).Msg("API server stopped")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var errs []error
	if server != nil {
		if err := server.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, err)
		}
	}
	if err := sched.Stop(); err != nil {
		errs = append(errs, err)
	}
	log.Info().Msg("Daemon stopped")

	return errors.Join(append([]error{runErr}, errs...)...)
}
