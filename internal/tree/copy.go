package tree

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"treekeeper/internal/metrics"
)

// CopyFile copies the contents of src to dst through a bufferSize transfer buffer,
// creating dst or truncating it if it already exists.
func (e *Engine) CopyFile(src, dst string, bufferSize int) error {
	n, err := e.copyFile(src, dst, bufferSize)
	if err != nil {
		return err
	}
	ent := Entry{Path: dst, Name: filepath.Base(dst), Kind: KindFile, Size: n}
	e.logStructured(ActionCopy, dst, KindFile.String(), n, "from "+src)
	e.record(OpCopy, ActionCopy, ent, "from "+src, nil)
	metrics.RecordFileCopied(n)
	return nil
}

func (e *Engine) copyFile(src, dst string, bufferSize int) (int64, error) {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}

	info, err := Stat(src)
	if err != nil {
		return 0, err
	}
	if info.IsDir() {
		return 0, fmt.Errorf("%w: %s", ErrIsADirectory, src)
	}
	if sameFile(src, dst) {
		return 0, fmt.Errorf("%w: %s and %s are the same file", ErrDestinationConflict, src, dst)
	}

	in, err := os.Open(src)
	if err != nil {
		return 0, fmt.Errorf("%w: open %s: %w", ErrIOFailure, src, err)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return 0, fmt.Errorf("%w: create %s: %w", ErrIOFailure, dst, err)
	}

	buf := make([]byte, bufferSize)
	var written int64
	for {
		nr, rerr := in.Read(buf)
		if nr > 0 {
			nw, werr := out.Write(buf[:nr])
			written += int64(nw)
			if werr == nil && nw != nr {
				werr = io.ErrShortWrite
			}
			if werr != nil {
				out.Close()
				return written, fmt.Errorf("%w: write %s: %w", ErrIOFailure, dst, werr)
			}
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			out.Close()
			return written, fmt.Errorf("%w: read %s: %w", ErrIOFailure, src, rerr)
		}
	}

	if err := out.Close(); err != nil {
		return written, fmt.Errorf("%w: close %s: %w", ErrIOFailure, dst, err)
	}
	return written, nil
}

// CopyTree replicates the directory src into dst, creating dst if absent.
// Files are copied only when pred accepts them (nil accepts all). Subdirectories
// are copied only when recursive is set and are otherwise skipped entirely.
func (e *Engine) CopyTree(src, dst string, recursive bool, pred Predicate, bufferSize int) error {
	if err := checkDir(src); err != nil {
		return err
	}
	if err := checkTreeDestination(src, dst, recursive); err != nil {
		return err
	}

	e.logger.Info("Copying tree", "src", src, "dst", dst, "recursive", recursive)
	return e.copyTree(src, dst, recursive, pred, bufferSize)
}

// checkTreeDestination rejects a destination that would make the copy read
// its own output: the source itself, or a directory inside it when recursing.
func checkTreeDestination(src, dst string, recursive bool) error {
	if sameFile(src, dst) {
		return fmt.Errorf("%w: %s and %s are the same directory", ErrDestinationConflict, src, dst)
	}
	if recursive && isWithin(dst, src) {
		return fmt.Errorf("%w: %s lies inside %s", ErrDestinationConflict, dst, src)
	}
	return nil
}

func (e *Engine) copyTree(src, dst string, recursive bool, pred Predicate, bufferSize int) error {
	l, err := readListing(src)
	if err != nil {
		return err
	}
	if err := ensureDir(dst); err != nil {
		return err
	}

	if recursive {
		for _, sub := range l.Dirs {
			if err := e.copyTree(sub.Path, filepath.Join(dst, sub.Name), true, pred, bufferSize); err != nil {
				return err
			}
		}
	}

	for _, f := range l.Files {
		e.pace()
		if !accepts(pred, f) {
			continue
		}
		target := filepath.Join(dst, f.Name)
		if f.Link {
			if err := e.copyLink(f, target); err != nil {
				return err
			}
			continue
		}
		if err := e.CopyFile(f.Path, target, bufferSize); err != nil {
			return err
		}
	}
	return nil
}

// copyLink recreates the symbolic link ent at dst with the same target,
// replacing an existing file or link there.
func (e *Engine) copyLink(ent Entry, dst string) error {
	target, err := os.Readlink(ent.Path)
	if err != nil {
		return fmt.Errorf("%w: readlink %s: %w", ErrIOFailure, ent.Path, err)
	}
	if info, err := os.Lstat(dst); err == nil {
		if info.IsDir() {
			return fmt.Errorf("%w: %s exists and is a directory", ErrDestinationConflict, dst)
		}
		if err := os.Remove(dst); err != nil {
			return fmt.Errorf("%w: replace %s: %w", ErrIOFailure, dst, err)
		}
	}
	if err := os.Symlink(target, dst); err != nil {
		return fmt.Errorf("%w: symlink %s: %w", ErrIOFailure, dst, err)
	}

	reason := "link from " + ent.Path
	copied := Entry{Path: dst, Name: filepath.Base(dst), Kind: KindFile, Size: ent.Size, Link: true}
	e.logStructured(ActionCopy, dst, "symlink", ent.Size, reason)
	e.record(OpCopy, ActionCopy, copied, reason, nil)
	metrics.RecordFileCopied(ent.Size)
	return nil
}

// sameFile reports whether a and b both exist and resolve to the same file
func sameFile(a, b string) bool {
	ai, err := os.Stat(a)
	if err != nil {
		return false
	}
	bi, err := os.Stat(b)
	if err != nil {
		return false
	}
	return os.SameFile(ai, bi)
}

// ensureDir creates dir (and parents) if absent; an existing non-directory is a conflict
func ensureDir(dir string) error {
	info, err := os.Stat(dir)
	if err == nil {
		if !info.IsDir() {
			return fmt.Errorf("%w: %s exists and is not a directory", ErrDestinationConflict, dir)
		}
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrCreateFailed, dir, err)
	}
	return nil
}

// MoveFile copies src to dst and then deletes src.
// It reports whether src was removed; a failed delete leaves the copy in place.
func (e *Engine) MoveFile(src, dst string, bufferSize int) (bool, error) {
	if err := e.validate(src); err != nil {
		return false, err
	}
	if e.dryRun {
		return e.dryRunMoveFile(src, dst)
	}
	if err := e.CopyFile(src, dst, bufferSize); err != nil {
		return false, err
	}

	info, err := os.Lstat(src)
	if err != nil {
		return false, fmt.Errorf("%w: stat %s: %w", ErrIOFailure, src, err)
	}
	ent := entryFromInfo(src, info)
	return e.removeEntry(OpMoveFile, ent, "moved to "+dst, false), nil
}

// dryRunMoveFile checks what a copy would check and reports the move
// without writing dst or removing src.
func (e *Engine) dryRunMoveFile(src, dst string) (bool, error) {
	info, err := Stat(src)
	if err != nil {
		return false, err
	}
	if info.IsDir() {
		return false, fmt.Errorf("%w: %s", ErrIsADirectory, src)
	}
	if sameFile(src, dst) {
		return false, fmt.Errorf("%w: %s and %s are the same file", ErrDestinationConflict, src, dst)
	}
	ent := entryFromInfo(src, info)
	return e.removeEntry(OpMoveFile, ent, "moved to "+dst, true), nil
}

// MoveFileStamped moves src into the directory of dst under the name
// "<now formatted with layout>_<base name of dst>".
func (e *Engine) MoveFileStamped(src, dst, layout string) (bool, error) {
	if layout == "" {
		layout = DefaultTimestampLayout
	}
	stamped := filepath.Join(filepath.Dir(dst), e.now().Format(layout)+"_"+filepath.Base(dst))
	return e.MoveFile(src, stamped, DefaultBufferSize)
}

// MoveTree copies src recursively into dst and then erases src entirely.
// An error wrapping ErrDeleteFailed is returned when src survives the erase.
// In dry run nothing is copied and every entry of src is reported as DRY_RUN.
func (e *Engine) MoveTree(src, dst string, bufferSize int) error {
	if err := e.validate(src); err != nil {
		return err
	}

	run := e.newCleanRun(OpMoveTree, nil, true, 0)
	run.ignoreAge = true
	if run.dryRun {
		if err := checkDir(src); err != nil {
			return err
		}
		if err := checkTreeDestination(src, dst, true); err != nil {
			return err
		}
		if info, err := os.Stat(dst); err == nil && !info.IsDir() {
			return fmt.Errorf("%w: %s exists and is not a directory", ErrDestinationConflict, dst)
		}
		e.logger.Info("Dry run: tree not copied", "src", src, "dst", dst)
		_, err := e.runClean(run, src, 0)
		return err
	}

	if err := e.CopyTree(src, dst, true, nil, bufferSize); err != nil {
		return err
	}
	// Everything under src was just copied, so age is irrelevant.
	if _, err := e.runClean(run, src, 0); err != nil {
		return err
	}
	if _, err := os.Lstat(src); err == nil {
		return fmt.Errorf("%w: %s still present after move", ErrDeleteFailed, src)
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: stat %s: %w", ErrIOFailure, src, err)
	}
	return nil
}
