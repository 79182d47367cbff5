package logging

import (
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"treekeeper/internal/config"
)

const (
	defaultLogDir = "/var/log/treekeeper"
	logFile       = "treekeeper.log"
)

// New creates a logger writing to stdout and the default log file
func New() *log.Logger {
	return NewWithConfig(nil)
}

// NewWithConfig creates a logger honouring the configured directory and rotation age.
// When the log file cannot be opened the logger falls back to stdout only.
func NewWithConfig(cfg *config.Config) *log.Logger {
	dir := defaultLogDir
	rotateDays := 30
	if cfg != nil {
		if cfg.Logging.Dir != "" {
			dir = cfg.Logging.Dir
		}
		if cfg.Logging.RotationDays > 0 {
			rotateDays = cfg.Logging.RotationDays
		}
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		log.Printf("failed to ensure log directory %s: %v", dir, err)
	}

	filePath := filepath.Join(dir, logFile)
	rotateIfNeeded(filePath, rotateDays, time.Now())

	f, err := os.OpenFile(filePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		log.Printf("failed to open log file %s: %v", filePath, err)
		return log.New(os.Stdout, "", log.LstdFlags|log.Lmicroseconds)
	}

	mw := io.MultiWriter(os.Stdout, f)
	return log.New(mw, "", log.LstdFlags|log.Lmicroseconds)
}

// rotateIfNeeded renames the log file once it is older than rotationDays
// and prunes rotated copies past the same age.
func rotateIfNeeded(logPath string, rotationDays int, now time.Time) {
	info, err := os.Stat(logPath)
	if err != nil {
		return
	}

	cutoff := now.AddDate(0, 0, -rotationDays)
	if !info.ModTime().Before(cutoff) {
		return
	}

	rotatedPath := logPath + "." + info.ModTime().Format("20060102-150405")
	if err := os.Rename(logPath, rotatedPath); err != nil {
		log.Printf("failed to rotate log file: %v", err)
		return
	}

	pruneRotated(logPath, cutoff)
}

func pruneRotated(logPath string, cutoff time.Time) {
	dir := filepath.Dir(logPath)
	prefix := filepath.Base(logPath) + "."

	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), prefix) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			full := filepath.Join(dir, entry.Name())
			if err := os.Remove(full); err != nil {
				log.Printf("failed to remove old log file %s: %v", full, err)
			}
		}
	}
}
