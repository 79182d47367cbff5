package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const sampleConfig = `
allowed_roots:
  - /srv/data
  - /var/tmp/app/
interval_minutes: 5
dry_run: true
rate_limit:
  entries_per_second: 200
jobs:
  - name: old-logs
    action: clean
    path: /srv/data/logs
    minutes: 1440
    safe_levels: 1
    extensions: "log;gz"
  - name: archive
    action: move
    path: /srv/data/outbox
    destination: /srv/archive/
    recursive: false
  - name: usage
    action: size
    path: /srv/data
`

func TestParseSample(t *testing.T) {
	cfg, err := Parse(strings.NewReader(sampleConfig))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if len(cfg.Jobs) != 3 {
		t.Fatalf("jobs = %d, want 3", len(cfg.Jobs))
	}
	if cfg.Interval() != 5*time.Minute {
		t.Errorf("Interval = %v", cfg.Interval())
	}
	if !cfg.DryRun {
		t.Error("dry_run not decoded")
	}
	if cfg.AllowedRoots[1] != "/var/tmp/app" {
		t.Errorf("allowed root not cleaned: %q", cfg.AllowedRoots[1])
	}
	if cfg.RateLimit.Burst != 1 {
		t.Errorf("burst default = %d, want 1", cfg.RateLimit.Burst)
	}

	logs, ok := cfg.Job("old-logs")
	if !ok {
		t.Fatal("job old-logs not found")
	}
	if !logs.IsRecursive() || logs.Minutes != 1440 || logs.SafeLevels != 1 || !logs.HasSelection() {
		t.Errorf("unexpected old-logs job: %+v", logs)
	}

	archive, _ := cfg.Job("archive")
	if archive.IsRecursive() {
		t.Error("explicit recursive: false ignored")
	}
	if archive.Destination != "/srv/archive" {
		t.Errorf("destination not cleaned: %q", archive.Destination)
	}

	if _, ok := cfg.Job("missing"); ok {
		t.Error("unexpected job found")
	}
}

func TestDefaults(t *testing.T) {
	cfg, err := Parse(strings.NewReader("jobs:\n  - {name: a, action: clean_empty, path: /tmp/a}\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.IntervalMinutes != 15 {
		t.Errorf("interval_minutes = %d, want 15", cfg.IntervalMinutes)
	}
	if cfg.PrometheusAddress() != ":9090" {
		t.Errorf("prometheus address = %s", cfg.PrometheusAddress())
	}
	if cfg.Logging.RotationDays != 30 || cfg.Logging.Dir != "/var/log/treekeeper" {
		t.Errorf("logging defaults = %+v", cfg.Logging)
	}
	if cfg.DatabasePath != "/var/lib/treekeeper/history.db" || cfg.LockPath != "/var/lib/treekeeper/treekeeper.lock" {
		t.Errorf("path defaults = %s, %s", cfg.DatabasePath, cfg.LockPath)
	}
	if cfg.HistoryRetentionDays != 90 || cfg.StaleTimeoutDuration() != 5*time.Second {
		t.Errorf("retention/stale defaults = %d, %v", cfg.HistoryRetentionDays, cfg.StaleTimeoutDuration())
	}
	if cfg.RateLimit.EntriesPerSecond != 0 {
		t.Errorf("rate limit should default to disabled")
	}
}

func TestValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want error
	}{
		{"no jobs", "interval_minutes: 1\n", errNoJobs},
		{"missing name", "jobs:\n  - {action: clean, path: /tmp}\n", errMissingName},
		{"duplicate name", "jobs:\n  - {name: a, action: clean, path: /tmp}\n  - {name: a, action: size, path: /tmp}\n", errDuplicateName},
		{"bad action", "jobs:\n  - {name: a, action: shred, path: /tmp}\n", errInvalidAction},
		{"relative path", "jobs:\n  - {name: a, action: clean, path: tmp/x}\n", errInvalidPath},
		{"missing destination", "jobs:\n  - {name: a, action: copy, path: /tmp}\n", errMissingDest},
		{"relative destination", "jobs:\n  - {name: a, action: move, path: /tmp, destination: out}\n", errInvalidPath},
		{"negative minutes", "jobs:\n  - {name: a, action: clean, path: /tmp, minutes: -5}\n", errNegativeMinutes},
		{"bad glob", "jobs:\n  - {name: a, action: clean, path: /tmp, include: ['[ab']}\n", errInvalidFilter},
		{"bad regexp", "jobs:\n  - {name: a, action: clean, path: /tmp, pattern: '('}\n", errInvalidFilter},
		{"relative allowed root", "allowed_roots: [data]\njobs:\n  - {name: a, action: clean, path: /tmp}\n", errInvalidPath},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tt.yaml))
			if !errors.Is(err, tt.want) {
				t.Errorf("got %v, want %v", err, tt.want)
			}
			if !errors.Is(err, ErrInvalid) {
				t.Errorf("%v does not wrap ErrInvalid", err)
			}
		})
	}
}

func TestUnknownFieldRejected(t *testing.T) {
	_, err := Parse(strings.NewReader("jobs:\n  - {name: a, action: clean, path: /tmp, minuts: 5}\n"))
	if err == nil {
		t.Error("expected error for misspelled field")
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "treekeeper.yaml")
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.Jobs) != 3 {
		t.Errorf("jobs = %d, want 3", len(cfg.Jobs))
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); !errors.Is(err, ErrInvalid) {
		t.Errorf("missing file: got %v, want ErrInvalid", err)
	}
}
