package cli

import (
	"fmt"
	"io"
	"log"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"treekeeper/internal/config"
	"treekeeper/internal/database"
	"treekeeper/internal/limiter"
	"treekeeper/internal/safety"
	"treekeeper/internal/tree"
)

// Version is injected at build time via -ldflags
var Version = "dev"

const defaultConfigPath = "/etc/treekeeper/config.yaml"

// options holds the persistent flags shared by every subcommand
type options struct {
	configPath string
	dryRun     bool
	quiet      bool
	noColor    bool
}

// NewRootCommand creates the root cobra command for treekeeper
func NewRootCommand() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "treekeeper",
		Short: "Copy, move, clean and measure directory trees",
		Long: `treekeeper maintains directory trees on local and network filesystems.

It copies and moves files and trees, deletes expired or selected files
while keeping a configurable number of directory levels, prunes empty
directories and reports aggregated sizes. The run command executes the
jobs of a configuration file on an interval.`,
		Version:      Version,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if opts.noColor {
				color.NoColor = true
			}
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "Path to configuration file (safety roots, rate limit, history)")
	cmd.PersistentFlags().BoolVar(&opts.dryRun, "dry-run", false, "Report deletions without performing them")
	cmd.PersistentFlags().BoolVarP(&opts.quiet, "quiet", "q", false, "Suppress engine log output")
	cmd.PersistentFlags().BoolVar(&opts.noColor, "no-color", false, "Disable colored output")

	cmd.AddCommand(newCopyCommand(opts))
	cmd.AddCommand(newMoveCommand(opts))
	cmd.AddCommand(newCleanCommand(opts))
	cmd.AddCommand(newCleanDirCommand(opts))
	cmd.AddCommand(newEraseCommand(opts))
	cmd.AddCommand(newCleanSelectedCommand(opts))
	cmd.AddCommand(newPruneCommand(opts))
	cmd.AddCommand(newSizeCommand())
	cmd.AddCommand(newListCommand())
	cmd.AddCommand(newRunCommand(opts))
	cmd.AddCommand(newHistoryCommand(opts))

	return cmd
}

// session bundles what a one-shot command needs and releases it on close
type session struct {
	engine *tree.Engine
	db     *database.HistoryDB
	logger *log.Logger
}

func (s *session) close() {
	if s.db == nil {
		return
	}
	if err := s.db.Close(); err != nil {
		s.logger.Printf("failed to close history database: %v", err)
	}
}

// loadConfig reads the --config file when one was given; nil otherwise
func (o *options) loadConfig() (*config.Config, error) {
	if o.configPath == "" {
		return nil, nil
	}
	return config.Load(o.configPath)
}

func (o *options) logger(cmd *cobra.Command) *log.Logger {
	var w io.Writer = cmd.ErrOrStderr()
	if o.quiet {
		w = io.Discard
	}
	return log.New(w, "", log.LstdFlags)
}

// newSession builds an engine guarded by the safety validator. A loaded
// configuration contributes allowed roots, protected paths, pacing, dry run
// and the history database.
func (o *options) newSession(cmd *cobra.Command) (*session, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, err
	}
	logger := o.logger(cmd)

	dryRun := o.dryRun
	var allowed, protected []string
	if cfg != nil {
		dryRun = dryRun || cfg.DryRun
		allowed, protected = cfg.AllowedRoots, cfg.ProtectedPaths
	}

	engine := tree.NewEngine(logger, dryRun)
	engine.SetValidator(safety.NewValidator(allowed, protected))
	s := &session{engine: engine, logger: logger}

	if cfg == nil {
		return s, nil
	}
	if cfg.RateLimit.EntriesPerSecond > 0 {
		engine.SetPacer(limiter.NewPacer(cfg.RateLimit.EntriesPerSecond, cfg.RateLimit.Burst))
	}
	if cfg.DatabasePath != "" {
		db, err := database.NewHistoryDB(cfg.DatabasePath)
		if err != nil {
			return nil, fmt.Errorf("open history database: %w", err)
		}
		s.db = db
		engine.SetRecorder(db.ForJob("cli:" + cmd.Name()))
	}
	return s, nil
}
