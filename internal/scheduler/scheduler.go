package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"treekeeper/internal/config"
	"treekeeper/internal/database"
	"treekeeper/internal/disk"
	"treekeeper/internal/limiter"
	"treekeeper/internal/lock"
	"treekeeper/internal/logging"
	"treekeeper/internal/metrics"
	"treekeeper/internal/safety"
	"treekeeper/internal/tree"
)

// Result summarises one job execution
type Result struct {
	Cycle    string
	Job      string
	Action   string
	Files    int
	Dirs     int
	Bytes    int64
	Skipped  bool
	Duration time.Duration
}

// Runner executes configured jobs against a shared engine
type Runner struct {
	cfg     *config.Config
	logger  *log.Logger
	lg      logging.Logger
	engine  *tree.Engine
	history *database.HistoryDB
	sem     *lock.Semaphore
}

// NewRunner wires the engine with the safety validator, pacer and optional history
func NewRunner(cfg *config.Config, dryRun bool, logger *log.Logger, db *database.HistoryDB) *Runner {
	if logger == nil {
		logger = log.Default()
	}

	engine := tree.NewEngine(logger, dryRun || cfg.DryRun)
	engine.SetValidator(safety.NewValidator(cfg.AllowedRoots, cfg.ProtectedPaths))
	if cfg.RateLimit.EntriesPerSecond > 0 {
		engine.SetPacer(limiter.NewPacer(cfg.RateLimit.EntriesPerSecond, cfg.RateLimit.Burst))
	}

	r := &Runner{
		cfg:     cfg,
		logger:  logger,
		lg:      logging.NewLeveled(logger),
		engine:  engine,
		history: db,
	}
	if cfg.LockPath != "" {
		r.sem = lock.NewSemaphore(cfg.LockPath)
	}
	return r
}

// Engine exposes the configured engine, e.g. for tests swapping the deleter
func (r *Runner) Engine() *tree.Engine {
	return r.engine
}

func RunOnce(ctx context.Context, cfg *config.Config, dryRun bool, logger *log.Logger) error {
	return RunOnceWithDB(ctx, cfg, dryRun, logger, nil)
}

func RunOnceWithDB(ctx context.Context, cfg *config.Config, dryRun bool, logger *log.Logger, db *database.HistoryDB) error {
	if cfg == nil {
		return errors.New("nil config")
	}
	_, err := NewRunner(cfg, dryRun, logger, db).RunOnce(ctx)
	return err
}

// RunOnce runs every job once under the semaphore. A failing job does not
// stop the ones after it; all failures are returned joined.
func (r *Runner) RunOnce(ctx context.Context) ([]Result, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	if r.sem != nil {
		if err := r.sem.TryLock(); err != nil {
			return nil, err
		}
		defer func() {
			if err := r.sem.Unlock(); err != nil {
				r.lg.Error("Failed to release lock", "path", r.sem.Path(), "error", err)
			}
		}()
	}

	start := time.Now()
	metrics.RecordCycleRun(start)
	cycle := uuid.NewString()

	var results []Result
	var errs []error
	for i := range r.cfg.Jobs {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		job := &r.cfg.Jobs[i]
		res, err := r.runInCycle(ctx, cycle, job)
		results = append(results, res)
		if err != nil {
			r.lg.Error("Job failed", "job", job.Name, "action", job.Action, "error", err)
			errs = append(errs, fmt.Errorf("job %s: %w", job.Name, err))
		}
	}

	if r.history != nil {
		if n, err := r.history.DeleteOldRecords(r.cfg.HistoryRetentionDays); err != nil {
			r.lg.Warn("Failed to prune history", "error", err)
		} else if n > 0 {
			r.lg.Info("Pruned history", "records", n)
		}
	}

	err := errors.Join(errs...)
	if err != nil {
		metrics.ErrorsTotal.Inc()
	}
	metrics.SetCycleHealth(err == nil)
	elapsed := time.Since(start)
	metrics.CycleDuration.Observe(elapsed.Seconds())

	r.logger.Printf("cycle complete: id=%s jobs=%d failed=%d duration=%.3fs", cycle, len(results), len(errs), elapsed.Seconds())
	return results, err
}

// RunJob executes a single job as a cycle of its own
func (r *Runner) RunJob(ctx context.Context, job *config.Job) (Result, error) {
	return r.runInCycle(ctx, uuid.NewString(), job)
}

func (r *Runner) runInCycle(ctx context.Context, cycle string, job *config.Job) (Result, error) {
	res := Result{Cycle: cycle, Job: job.Name, Action: job.Action}
	start := time.Now()

	err := r.runJob(ctx, job, &res)
	res.Duration = time.Since(start)
	if !res.Skipped {
		metrics.RecordJobRun(job.Name, err)
	}
	r.updateFreeSpace(job.Path)

	if err == nil {
		r.lg.Info("Job complete", "cycle", cycle, "job", job.Name, "action", job.Action, "files", res.Files,
			"dirs", res.Dirs, "bytes", res.Bytes, "skipped", res.Skipped, "duration", res.Duration)
	}
	return res, err
}

func (r *Runner) runJob(ctx context.Context, job *config.Job, res *Result) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := disk.CheckResponsive(job.Path, r.cfg.StaleTimeoutDuration()); err != nil {
		return err
	}

	if job.MinFreePercent > 0 {
		usage, err := disk.GetUsage(job.Path)
		if err != nil {
			return err
		}
		if usage.FreePercent() >= job.MinFreePercent {
			r.lg.Info("Skipping job, enough free space", "job", job.Name,
				"free_percent", fmt.Sprintf("%.1f", usage.FreePercent()), "min_free_percent", job.MinFreePercent)
			res.Skipped = true
			return nil
		}
	}

	pred, err := BuildPredicate(job)
	if err != nil {
		return err
	}

	e := r.engine
	if r.history != nil {
		e.SetRecorder(r.history.ForCycle(res.Cycle, job.Name))
	}

	switch job.Action {
	case config.ActionClean:
		res.Files, err = e.CleanExpired(job.Path, pred, job.IsRecursive(), job.Minutes, job.SafeLevels)
	case config.ActionCleanDir:
		res.Files, err = e.CleanDir(job.Path)
	case config.ActionErase:
		res.Files, err = e.EraseDir(job.Path)
	case config.ActionCleanSelected:
		res.Files, err = e.CleanSelectedFiles(job.Path, pred, job.IsRecursive())
	case config.ActionCleanEmpty:
		res.Dirs, err = e.CleanEmptyDir(job.Path)
	case config.ActionCopy:
		err = r.copy(job, pred)
	case config.ActionMove:
		err = r.move(job)
	case config.ActionSize:
		res.Bytes, err = tree.DirectorySize(job.Path, job.IsRecursive())
		if err == nil {
			metrics.UpdateDirectorySize(job.Path, res.Bytes)
		}
	default:
		err = fmt.Errorf("unknown action %q", job.Action)
	}
	return err
}

// copy handles both a single file and a directory tree as source
func (r *Runner) copy(job *config.Job, pred tree.Predicate) error {
	info, err := tree.Stat(job.Path)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return r.engine.CopyTree(job.Path, job.Destination, job.IsRecursive(), pred, job.BufferSize)
	}
	if err := tree.CreateDir(job.Destination); err != nil {
		return err
	}
	return r.engine.CopyFile(job.Path, job.Destination, job.BufferSize)
}

func (r *Runner) move(job *config.Job) error {
	info, err := tree.Stat(job.Path)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return r.engine.MoveTree(job.Path, job.Destination, job.BufferSize)
	}

	if !r.engine.DryRun() {
		if err := tree.CreateDir(job.Destination); err != nil {
			return err
		}
	}
	var deleted bool
	if job.TimestampLayout != "" {
		deleted, err = r.engine.MoveFileStamped(job.Path, job.Destination, job.TimestampLayout)
	} else {
		deleted, err = r.engine.MoveFile(job.Path, job.Destination, job.BufferSize)
	}
	if err != nil {
		return err
	}
	if !deleted {
		return fmt.Errorf("%w: %s copied but not removed", tree.ErrDeleteFailed, job.Path)
	}
	return nil
}

func (r *Runner) updateFreeSpace(path string) {
	usage, err := disk.GetUsage(path)
	if err != nil {
		return
	}
	metrics.UpdateFreeSpacePercent(path, usage.FreePercent())
}

func Run(ctx context.Context, cfg *config.Config, dryRun bool, logger *log.Logger) error {
	return RunWithDB(ctx, cfg, dryRun, logger, nil)
}

// RunWithDB runs a cycle immediately, then on every interval tick and every
// /trigger request until ctx is cancelled.
func RunWithDB(ctx context.Context, cfg *config.Config, dryRun bool, logger *log.Logger, db *database.HistoryDB) error {
	if logger == nil {
		logger = log.Default()
	}
	if cfg == nil {
		return errors.New("nil config")
	}

	metrics.Init()
	r := NewRunner(cfg, dryRun, logger, db)

	cycle := func(reason string) {
		logger.Printf("starting cycle (%s)", reason)
		if _, err := r.RunOnce(ctx); err != nil {
			if errors.Is(err, lock.ErrHeld) {
				logger.Printf("cycle skipped: %v", err)
				return
			}
			logger.Printf("error running cycle: %v", err)
		}
	}

	cycle("startup")

	ticker := time.NewTicker(cfg.Interval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Println("scheduler shutting down")
			return ctx.Err()
		case <-ticker.C:
			cycle("interval")
		case <-metrics.Trigger():
			cycle("trigger")
		}
	}
}
