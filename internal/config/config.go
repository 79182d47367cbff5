package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"
)

// Job actions
const (
	ActionClean         = "clean"
	ActionCleanDir      = "clean_dir"
	ActionErase         = "erase"
	ActionCleanSelected = "clean_selected"
	ActionCleanEmpty    = "clean_empty"
	ActionCopy          = "copy"
	ActionMove          = "move"
	ActionSize          = "size"
)

var validActions = map[string]bool{
	ActionClean:         true,
	ActionCleanDir:      true,
	ActionErase:         true,
	ActionCleanSelected: true,
	ActionCleanEmpty:    true,
	ActionCopy:          true,
	ActionMove:          true,
	ActionSize:          true,
}

// Job is one tree operation run on every cycle
type Job struct {
	Name        string `yaml:"name" json:"name"`
	Action      string `yaml:"action" json:"action"`
	Path        string `yaml:"path" json:"path"`
	Destination string `yaml:"destination" json:"destination"` // copy and move only
	Recursive   *bool  `yaml:"recursive" json:"recursive"`     // defaults to true
	Minutes     int    `yaml:"minutes" json:"minutes"`         // age threshold for clean
	SafeLevels  int    `yaml:"safe_levels" json:"safe_levels"` // depth budget for clean

	// File selection; all configured conditions must hold
	Include    []string `yaml:"include" json:"include"` // doublestar globs, any may match
	Exclude    []string `yaml:"exclude" json:"exclude"`
	Extensions string   `yaml:"extensions" json:"extensions"` // e.g. "log;gz" or "?none?"
	Prefix     []string `yaml:"prefix" json:"prefix"`
	Contains   string   `yaml:"contains" json:"contains"`
	Pattern    string   `yaml:"pattern" json:"pattern"`       // regexp on the file name
	MimeTypes  []string `yaml:"mime_types" json:"mime_types"` // detected content type, "image/*" allowed

	BufferSize      int    `yaml:"buffer_size" json:"buffer_size"`
	TimestampLayout string `yaml:"timestamp_layout" json:"timestamp_layout"` // move of a single file

	// Run only when free space on Path is below this percentage (0 = always)
	MinFreePercent float64 `yaml:"min_free_percent" json:"min_free_percent"`
}

// IsRecursive reports the effective recursion flag
func (j *Job) IsRecursive() bool {
	return j.Recursive == nil || *j.Recursive
}

// HasSelection reports whether any file selection condition is configured
func (j *Job) HasSelection() bool {
	return len(j.Include) > 0 || len(j.Exclude) > 0 || j.Extensions != "" ||
		len(j.Prefix) > 0 || j.Contains != "" || j.Pattern != "" || len(j.MimeTypes) > 0
}

type PrometheusCfg struct {
	Port int `yaml:"port" json:"port"`
}

type LoggingCfg struct {
	Dir          string `yaml:"dir" json:"dir"`
	RotationDays int    `yaml:"rotation_days" json:"rotation_days"` // Days to keep logs before rotation
}

type RateLimitCfg struct {
	EntriesPerSecond float64 `yaml:"entries_per_second" json:"entries_per_second"` // 0 disables pacing
	Burst            int     `yaml:"burst" json:"burst"`
}

type Config struct {
	Jobs                 []Job         `yaml:"jobs" json:"jobs"`
	AllowedRoots         []string      `yaml:"allowed_roots" json:"allowed_roots"`
	ProtectedPaths       []string      `yaml:"protected_paths" json:"protected_paths"`
	IntervalMinutes      int           `yaml:"interval_minutes" json:"interval_minutes"`
	Prometheus           PrometheusCfg `yaml:"prometheus" json:"prometheus"`
	Logging              LoggingCfg    `yaml:"logging" json:"logging"`
	DatabasePath         string        `yaml:"database_path" json:"database_path"`
	HistoryRetentionDays int           `yaml:"history_retention_days" json:"history_retention_days"`
	LockPath             string        `yaml:"lock_path" json:"lock_path"`
	RateLimit            RateLimitCfg  `yaml:"rate_limit" json:"rate_limit"`
	StaleTimeout         int           `yaml:"stale_timeout_seconds" json:"stale_timeout_seconds"` // Timeout for network mounts
	DryRun               bool          `yaml:"dry_run" json:"dry_run"`
}

// ErrInvalid wraps every error returned by Load and Parse
var ErrInvalid = errors.New("invalid configuration")

var (
	errNoJobs          = errors.New("configuration must specify at least one job")
	errInvalidPath     = errors.New("path must be absolute")
	errNegativeMinutes = errors.New("minutes cannot be negative")
	errInvalidAction   = errors.New("unknown job action")
	errMissingName     = errors.New("job name is required")
	errDuplicateName   = errors.New("duplicate job name")
	errMissingDest     = errors.New("destination is required")
	errInvalidFilter   = errors.New("invalid file selection")
)

func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open config: %w", ErrInvalid, err)
	}
	defer f.Close()

	return Parse(f)
}

// Parse decodes and validates configuration from r
func Parse(r io.Reader) (*Config, error) {
	cfg, err := decode(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if err := cfg.validateAndDefault(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return cfg, nil
}

func decode(r io.Reader) (*Config, error) {
	cfg := &Config{}
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	return cfg, nil
}

func (c *Config) validateAndDefault() error {
	if len(c.Jobs) == 0 {
		return errNoJobs
	}

	if c.IntervalMinutes <= 0 {
		c.IntervalMinutes = 15
	}
	if c.Prometheus.Port == 0 {
		c.Prometheus.Port = 9090
	}
	if c.Logging.RotationDays <= 0 {
		c.Logging.RotationDays = 30
	}
	if c.Logging.Dir == "" {
		c.Logging.Dir = "/var/log/treekeeper"
	}
	if c.DatabasePath == "" {
		c.DatabasePath = "/var/lib/treekeeper/history.db"
	}
	if c.HistoryRetentionDays <= 0 {
		c.HistoryRetentionDays = 90
	}
	if c.LockPath == "" {
		c.LockPath = "/var/lib/treekeeper/treekeeper.lock"
	}
	if c.RateLimit.EntriesPerSecond > 0 && c.RateLimit.Burst <= 0 {
		c.RateLimit.Burst = 1
	}
	if c.StaleTimeout <= 0 {
		c.StaleTimeout = 5
	}

	var err error
	if c.AllowedRoots, err = cleanAll(c.AllowedRoots); err != nil {
		return fmt.Errorf("allowed_roots: %w", err)
	}
	if c.ProtectedPaths, err = cleanAll(c.ProtectedPaths); err != nil {
		return fmt.Errorf("protected_paths: %w", err)
	}

	seen := make(map[string]bool, len(c.Jobs))
	for i := range c.Jobs {
		j := &c.Jobs[i]
		if j.Name == "" {
			return fmt.Errorf("job %d: %w", i, errMissingName)
		}
		if seen[j.Name] {
			return fmt.Errorf("job %s: %w", j.Name, errDuplicateName)
		}
		seen[j.Name] = true

		if err := j.validateAndDefault(); err != nil {
			return fmt.Errorf("job %s: %w", j.Name, err)
		}
	}
	return nil
}

func (j *Job) validateAndDefault() error {
	if !validActions[j.Action] {
		return fmt.Errorf("%w: %q", errInvalidAction, j.Action)
	}

	cp, err := cleanAbsolute(j.Path)
	if err != nil {
		return err
	}
	j.Path = cp

	switch j.Action {
	case ActionCopy, ActionMove:
		if j.Destination == "" {
			return errMissingDest
		}
		if j.Destination, err = cleanAbsolute(j.Destination); err != nil {
			return fmt.Errorf("destination: %w", err)
		}
	}

	if j.Minutes < 0 {
		return errNegativeMinutes
	}
	if j.BufferSize < 0 {
		j.BufferSize = 0
	}

	for _, g := range append(append([]string{}, j.Include...), j.Exclude...) {
		if !doublestar.ValidatePattern(g) {
			return fmt.Errorf("%w: glob %q", errInvalidFilter, g)
		}
	}
	if j.Pattern != "" {
		if _, err := regexp.Compile(j.Pattern); err != nil {
			return fmt.Errorf("%w: pattern %q: %w", errInvalidFilter, j.Pattern, err)
		}
	}
	return nil
}

func cleanAll(paths []string) ([]string, error) {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		cp, err := cleanAbsolute(p)
		if err != nil {
			return nil, err
		}
		out = append(out, cp)
	}
	return out, nil
}

func cleanAbsolute(p string) (string, error) {
	if p == "" {
		return "", errInvalidPath
	}
	cp := filepath.Clean(p)
	if !filepath.IsAbs(cp) {
		return "", fmt.Errorf("%w: %s", errInvalidPath, p)
	}
	return cp, nil
}

func (c *Config) Interval() time.Duration {
	return time.Duration(c.IntervalMinutes) * time.Minute
}

func (c *Config) PrometheusAddress() string {
	return fmt.Sprintf(":%d", c.Prometheus.Port)
}

func (c *Config) StaleTimeoutDuration() time.Duration {
	return time.Duration(c.StaleTimeout) * time.Second
}

// Job returns the job with the given name
func (c *Config) Job(name string) (*Job, bool) {
	for i := range c.Jobs {
		if c.Jobs[i].Name == name {
			return &c.Jobs[i], true
		}
	}
	return nil, false
}
