package tree

import (
	"fmt"
	"math"
	"time"
)

// Operation names used for metrics labels, log lines and history records
const (
	OpCleanExpired  = "clean_expired"
	OpCleanDir      = "clean_dir"
	OpEraseDir      = "erase_dir"
	OpCleanSelected = "clean_selected"
	OpCleanEmpty    = "clean_empty"
	OpMoveFile      = "move_file"
	OpMoveTree      = "move_tree"
	OpCopy          = "copy"
)

const reasonEmptyDir = "empty_directory"

// cleanRun carries the parameters that stay fixed for a whole walk.
// The depth budget is not part of it: it changes per level and is passed explicitly.
type cleanRun struct {
	op        string
	pred      Predicate
	recursive bool
	threshold time.Time
	reason    string
	dryRun    bool
	ignoreAge bool
}

// CleanExpired deletes files under dir whose modification time is older than
// minutes and which pred accepts (nil accepts every file). Subdirectories are
// walked when recursive is set, each level reducing safeLevels by one; a
// directory left empty is deleted once its budget has dropped to zero or below.
// Returns the number of files deleted.
func (e *Engine) CleanExpired(dir string, pred Predicate, recursive bool, minutes, safeLevels int) (int, error) {
	if minutes < 0 {
		return 0, fmt.Errorf("negative age threshold: %d minutes", minutes)
	}
	// Any non-positive budget behaves like zero; clamping keeps safeLevels-1 from wrapping.
	if safeLevels < 0 {
		safeLevels = 0
	}
	return e.runClean(e.newCleanRun(OpCleanExpired, pred, recursive, minutes), dir, safeLevels)
}

// CleanDir deletes every file and every subdirectory under dir, keeping dir itself
func (e *Engine) CleanDir(dir string) (int, error) {
	return e.runClean(e.newCleanRun(OpCleanDir, nil, true, 0), dir, 1)
}

// EraseDir deletes every file and subdirectory under dir, then dir itself once empty
func (e *Engine) EraseDir(dir string) (int, error) {
	return e.runClean(e.newCleanRun(OpEraseDir, nil, true, 0), dir, 0)
}

// CleanSelectedFiles deletes the files pred accepts and never removes a directory
func (e *Engine) CleanSelectedFiles(dir string, pred Predicate, recursive bool) (int, error) {
	return e.runClean(e.newCleanRun(OpCleanSelected, pred, recursive, 0), dir, math.MaxInt)
}

func (e *Engine) newCleanRun(op string, pred Predicate, recursive bool, minutes int) *cleanRun {
	return &cleanRun{
		op:        op,
		pred:      pred,
		recursive: recursive,
		threshold: e.now().Add(-time.Duration(minutes) * time.Minute),
		reason:    cleanReason(op, minutes, pred),
		dryRun:    e.dryRun,
	}
}

func (e *Engine) runClean(run *cleanRun, dir string, safeLevels int) (int, error) {
	if err := checkDir(dir); err != nil {
		return 0, err
	}
	if err := e.validate(dir); err != nil {
		return 0, err
	}

	e.logger.Info("Starting cleanup", "operation", run.op, "dir", dir, "recursive", run.recursive,
		"threshold", run.threshold.Format(time.RFC3339), "safe_levels", safeLevels, "dry_run", run.dryRun)

	count, _, err := e.clean(run, dir, safeLevels)
	if err != nil {
		return count, err
	}

	e.logger.Info("Cleanup complete", "operation", run.op, "dir", dir, "files_deleted", count)
	return count, nil
}

// clean processes one directory level and reports the files deleted beneath it
// and whether dir itself was removed.
func (e *Engine) clean(run *cleanRun, dir string, safeLevels int) (int, bool, error) {
	l, err := readListing(dir)
	if err != nil {
		return 0, false, err
	}

	counter := 0
	remaining := 0

	for _, sub := range l.Dirs {
		if !run.recursive {
			remaining++
			continue
		}
		n, removed, err := e.clean(run, sub.Path, safeLevels-1)
		counter += n
		if err != nil {
			return counter, false, err
		}
		if !removed {
			remaining++
		}
	}

	for _, f := range l.Files {
		e.pace()
		expired := run.ignoreAge || f.ModTime.Before(run.threshold)
		if !expired || !accepts(run.pred, f) {
			remaining++
			continue
		}
		if e.removeEntry(run.op, f, run.reason, run.dryRun) {
			counter++
		} else {
			remaining++
		}
	}

	if safeLevels > 0 {
		return counter, false, nil
	}

	empty := remaining == 0
	if !run.dryRun {
		// Trust the filesystem over our own bookkeeping.
		empty, err = isEmptyDir(dir)
		if err != nil {
			return counter, false, err
		}
	}
	if !empty {
		return counter, false, nil
	}

	self := Entry{Path: dir, Kind: KindDir}
	return counter, e.removeEntry(run.op, self, reasonEmptyDir, run.dryRun), nil
}

func cleanReason(op string, minutes int, pred Predicate) string {
	switch {
	case minutes > 0 && pred != nil:
		return fmt.Sprintf("%s: older than %dm, selected", op, minutes)
	case minutes > 0:
		return fmt.Sprintf("%s: older than %dm", op, minutes)
	case pred != nil:
		return op + ": selected"
	default:
		return op
	}
}
