package tree

import (
	"io"
	"log"
	"os"
	"path/filepath"
	"testing"
	"time"

	"treekeeper/internal/metrics"
)

func init() {
	metrics.Init()
}

func newTestEngine(t *testing.T, dryRun bool) *Engine {
	t.Helper()
	return NewEngine(log.New(io.Discard, "", 0), dryRun)
}

// writeAged creates path with content and sets its modification time age ago
func writeAged(t *testing.T, path, content string, age time.Duration) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	ts := time.Now().Add(-age)
	if err := os.Chtimes(path, ts, ts); err != nil {
		t.Fatalf("chtimes %s: %v", path, err)
	}
}

func mkdir(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(path, 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", path, err)
	}
}

func assertExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Lstat(path); err != nil {
		t.Errorf("expected %s to exist: %v", path, err)
	}
}

func assertGone(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Lstat(path); !os.IsNotExist(err) {
		t.Errorf("expected %s to be gone, stat err=%v", path, err)
	}
}

type recordingGuard struct {
	paths []string
	deny  map[string]error
}

func (g *recordingGuard) ValidateDeleteTarget(path string) error {
	g.paths = append(g.paths, path)
	return g.deny[path]
}

type memRecorder struct {
	events []Event
}

func (r *memRecorder) RecordEvent(ev Event) error {
	r.events = append(r.events, ev)
	return nil
}

func (r *memRecorder) actions(action string) []Event {
	var out []Event
	for _, ev := range r.events {
		if ev.Action == action {
			out = append(out, ev)
		}
	}
	return out
}
