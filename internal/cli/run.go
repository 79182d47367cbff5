package cli

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"treekeeper/internal/config"
	"treekeeper/internal/database"
	"treekeeper/internal/disk"
	"treekeeper/internal/logging"
	"treekeeper/internal/metrics"
	"treekeeper/internal/scheduler"
)

func newRunCommand(opts *options) *cobra.Command {
	var (
		once    bool
		jobName string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the configured jobs",
		Long: `Run every job of the configuration file, then again on each interval
and whenever the metrics server receives POST /trigger. With --once the
jobs run a single time and the command exits.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := opts.configPath
			if path == "" {
				path = defaultConfigPath
			}
			cfg, err := config.Load(path)
			if err != nil {
				return err
			}

			logger := logging.NewWithConfig(cfg)
			logger.Println("treekeeper starting")
			logger.Printf("config file: %s", path)
			if opts.dryRun || cfg.DryRun {
				logger.Println("DRY RUN MODE: no files will be deleted")
			}

			var db *database.HistoryDB
			if cfg.DatabasePath != "" {
				db, err = database.NewHistoryDB(cfg.DatabasePath)
				if err != nil {
					return fmt.Errorf("open history database: %w", err)
				}
				defer func() {
					if err := db.Close(); err != nil {
						logger.Printf("failed to close history database: %v", err)
					}
				}()
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if jobName != "" {
				job, ok := cfg.Job(jobName)
				if !ok {
					return fmt.Errorf("%w: no job named %q", config.ErrInvalid, jobName)
				}
				res, err := scheduler.NewRunner(cfg, opts.dryRun, logger, db).RunJob(ctx, job)
				if err != nil {
					return err
				}
				printResult(cmd, res)
				return nil
			}

			if once {
				results, err := scheduler.NewRunner(cfg, opts.dryRun, logger, db).RunOnce(ctx)
				if len(results) > 0 {
					fmt.Fprintf(cmd.OutOrStdout(), "cycle %s\n", results[0].Cycle)
				}
				for _, res := range results {
					printResult(cmd, res)
				}
				return err
			}

			metrics.Init()
			if cfg.Prometheus.Port > 0 {
				metrics.StartServer(cfg.PrometheusAddress(), logger)
				defer func() {
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					metrics.Shutdown(shutdownCtx, logger)
				}()
			}

			hc := watchComponents(cfg, db)
			metrics.SetHealthChecker(hc)
			hc.Start()
			defer hc.Stop()

			err = scheduler.RunWithDB(ctx, cfg, opts.dryRun, logger, db)
			if err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			logger.Println("treekeeper stopped")
			return nil
		},
	}

	cmd.Flags().BoolVar(&once, "once", false, "Run all jobs once and exit")
	cmd.Flags().StringVar(&jobName, "job", "", "Run only the named job once and exit")
	return cmd
}

// watchComponents registers a health check per job path and for the history database
func watchComponents(cfg *config.Config, db *database.HistoryDB) *metrics.HealthChecker {
	hc := metrics.NewHealthChecker(time.Minute)
	timeout := cfg.StaleTimeoutDuration()
	for _, job := range cfg.Jobs {
		path := job.Path
		hc.RegisterComponent("path:"+job.Name, func() error {
			return disk.CheckResponsive(path, timeout)
		}, 0)
	}
	if db != nil {
		hc.RegisterComponent("history", db.Ping, timeout)
	}
	return hc
}

func printResult(cmd *cobra.Command, res scheduler.Result) {
	out := cmd.OutOrStdout()
	switch {
	case res.Skipped:
		fmt.Fprintf(out, "%s: skipped\n", res.Job)
	default:
		fmt.Fprintf(out, "%s (%s): files=%d dirs=%d bytes=%d duration=%s\n",
			res.Job, res.Action, res.Files, res.Dirs, res.Bytes, res.Duration.Round(time.Millisecond))
	}
}
