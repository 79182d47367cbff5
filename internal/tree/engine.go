package tree

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"treekeeper/internal/fsops"
	"treekeeper/internal/logging"
	"treekeeper/internal/metrics"
)

// DefaultBufferSize is the transfer buffer used when callers pass a non-positive size
const DefaultBufferSize = 1024

// DefaultTimestampLayout is the stamp prefixed by MoveFileStamped: yyyyMMddHHmmss
const DefaultTimestampLayout = "20060102150405"

// Actions written to the structured log and the history recorder
const (
	ActionDelete = "DELETE"
	ActionDryRun = "DRY_RUN"
	ActionError  = "ERROR"
	ActionCopy   = "COPY"
)

// Event describes one mutation the engine performed or attempted
type Event struct {
	Time      time.Time
	Operation string
	Action    string
	Path      string
	Object    string
	Size      int64
	Reason    string
	Error     string
}

// Recorder persists engine events, e.g. into the history database
type Recorder interface {
	RecordEvent(ev Event) error
}

// Guard authorises a root path before a destructive operation touches it
type Guard interface {
	ValidateDeleteTarget(path string) error
}

// Pacer is consulted before each entry is processed
type Pacer interface {
	Wait()
}

// Engine runs copy, move, cleanup and size walks over directory trees.
// It holds no per-walk state; every call is synchronous and assumes
// exclusive access to the subtree it operates on.
type Engine struct {
	logger   logging.Logger
	deleter  fsops.Deleter
	guard    Guard
	recorder Recorder
	pacer    Pacer
	now      func() time.Time
	dryRun   bool
}

// NewEngine creates an Engine deleting through the real filesystem
func NewEngine(logger *log.Logger, dryRun bool) *Engine {
	metrics.Init()
	return &Engine{
		logger:  logging.NewLeveled(logger),
		deleter: fsops.OSDeleter{},
		now:     time.Now,
		dryRun:  dryRun,
	}
}

// DryRun reports whether destructive operations are only reported
func (e *Engine) DryRun() bool {
	return e.dryRun
}

// SetDeleter replaces the delete backend (tests use fsops.FakeDeleter)
func (e *Engine) SetDeleter(d fsops.Deleter) {
	e.deleter = d
}

// SetValidator installs the guard consulted before destructive operations
func (e *Engine) SetValidator(g Guard) {
	e.guard = g
}

// SetRecorder installs the history recorder
func (e *Engine) SetRecorder(r Recorder) {
	e.recorder = r
}

// SetPacer installs a per-entry pacer
func (e *Engine) SetPacer(p Pacer) {
	e.pacer = p
}

// SetClock replaces the source of "now" used for expiration thresholds and stamps
func (e *Engine) SetClock(now func() time.Time) {
	e.now = now
}

func (e *Engine) validate(path string) error {
	if e.guard == nil {
		return nil
	}
	if err := e.guard.ValidateDeleteTarget(path); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

func (e *Engine) pace() {
	if e.pacer != nil {
		e.pacer.Wait()
	}
}

// removeEntry deletes one entry (or pretends to in dry run) and reports whether it is gone.
// Failures are logged and recorded but never returned: a failed delete does not abort a walk.
func (e *Engine) removeEntry(op string, ent Entry, reason string, dryRun bool) bool {
	if dryRun {
		e.logStructured(ActionDryRun, ent.Path, ent.Kind.String(), ent.Size, reason)
		e.record(op, ActionDryRun, ent, reason, nil)
		return true
	}

	if err := e.deleter.Remove(ent.Path); err != nil {
		if os.IsNotExist(err) {
			e.logger.Info("Entry already gone", "path", ent.Path)
			return false
		}
		e.logger.Error("Failed to delete", "path", ent.Path, "error", err)
		e.logStructured(ActionError, ent.Path, ent.Kind.String(), ent.Size, reason)
		e.record(op, ActionError, ent, reason, err)
		metrics.RecordDeleteError(op)
		return false
	}

	e.logStructured(ActionDelete, ent.Path, ent.Kind.String(), ent.Size, reason)
	e.record(op, ActionDelete, ent, reason, nil)
	if ent.IsDir() {
		metrics.RecordDirDeleted(op)
	} else {
		metrics.RecordFileDeleted(op, ent.Size)
	}
	return true
}

func (e *Engine) record(op, action string, ent Entry, reason string, err error) {
	if e.recorder == nil {
		return
	}
	ev := Event{
		Time:      e.now(),
		Operation: op,
		Action:    action,
		Path:      ent.Path,
		Object:    ent.Kind.String(),
		Size:      ent.Size,
		Reason:    reason,
	}
	if err != nil {
		ev.Error = err.Error()
	}
	if recErr := e.recorder.RecordEvent(ev); recErr != nil {
		e.logger.Error("Failed to record event", "path", ent.Path, "error", recErr)
	}
}

// logStructured logs: timestamp, action, path, object type, size, reason
func (e *Engine) logStructured(action, path, object string, size int64, reason string) {
	line := fmt.Sprintf("[%s] %s path=%s object=%s size=%d",
		e.now().UTC().Format(time.RFC3339),
		action,
		path,
		object,
		size,
	)
	if reason != "" {
		line += fmt.Sprintf(` reason="%s"`, strings.ReplaceAll(reason, `"`, `\"`))
	}
	e.logger.Info(line)
}
