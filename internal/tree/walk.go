package tree

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// listing is one directory's immediate entries split by kind
type listing struct {
	Dirs  []Entry
	Files []Entry
}

func (l *listing) len() int {
	return len(l.Dirs) + len(l.Files)
}

// Stat follows links like os.Stat. A missing path wraps ErrNotFound and any
// other failure wraps ErrIOFailure.
func Stat(path string) (os.FileInfo, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("%w: stat %s: %w", ErrIOFailure, path, err)
	}
	return info, nil
}

// checkDir verifies that path exists and is a directory
func checkDir(path string) error {
	info, err := Stat(path)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s", ErrNotADirectory, path)
	}
	return nil
}

// List returns the immediate entries of dir in name order
func List(dir string) ([]Entry, error) {
	l, err := readListing(dir)
	if err != nil {
		return nil, err
	}
	out := make([]Entry, 0, l.len())
	out = append(out, l.Dirs...)
	out = append(out, l.Files...)
	return out, nil
}

// readListing lists dir and classifies each entry.
// An entry that vanishes between listing and stat is skipped; any other
// failure is structural and returned to the caller.
func readListing(dir string) (*listing, error) {
	if err := checkDir(dir); err != nil {
		return nil, err
	}

	dirEntries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: list %s: %w", ErrIOFailure, dir, err)
	}

	l := &listing{}
	for _, de := range dirEntries {
		info, err := de.Info()
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("%w: stat %s: %w", ErrIOFailure, filepath.Join(dir, de.Name()), err)
		}
		e := entryFromInfo(filepath.Join(dir, de.Name()), info)
		if e.IsDir() {
			l.Dirs = append(l.Dirs, e)
		} else {
			l.Files = append(l.Files, e)
		}
	}
	return l, nil
}

// isEmptyDir re-lists dir and reports whether nothing is left in it
func isEmptyDir(dir string) (bool, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return false, fmt.Errorf("%w: list %s: %w", ErrIOFailure, dir, err)
	}
	return len(entries) == 0, nil
}

// isWithin reports whether path equals root or lies beneath it
func isWithin(path, root string) bool {
	p, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	r, err := filepath.Abs(root)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(r, p)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(os.PathSeparator)))
}
