package tree

import (
	"os"
	"time"
)

// Kind classifies a filesystem entry
type Kind int

const (
	KindFile Kind = iota
	KindDir
)

func (k Kind) String() string {
	if k == KindDir {
		return "directory"
	}
	return "file"
}

// Entry is a single path read from the host filesystem.
// Symbolic links are never followed and are classified as files, so a
// walk cannot escape the tree it was started on. Link marks them; Size is
// then the length of the link itself.
type Entry struct {
	Path    string
	Name    string
	Kind    Kind
	Size    int64
	ModTime time.Time
	Link    bool
}

// IsDir reports whether the entry is a directory
func (e Entry) IsDir() bool {
	return e.Kind == KindDir
}

func entryFromInfo(path string, info os.FileInfo) Entry {
	e := Entry{
		Path:    path,
		Name:    info.Name(),
		Kind:    KindFile,
		ModTime: info.ModTime(),
		Link:    info.Mode()&os.ModeSymlink != 0,
	}
	if info.IsDir() {
		e.Kind = KindDir
	} else {
		e.Size = info.Size()
	}
	return e
}

// Predicate decides whether a file entry is selected.
// It is only ever consulted for files, never for directories.
type Predicate interface {
	Accept(e Entry) bool
}

// PredicateFunc adapts a plain function to Predicate
type PredicateFunc func(e Entry) bool

func (f PredicateFunc) Accept(e Entry) bool {
	return f(e)
}

func accepts(p Predicate, e Entry) bool {
	return p == nil || p.Accept(e)
}
