package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"treekeeper/internal/tree"
)

// HistoryDB manages the SQLite database of engine events
type HistoryDB struct {
	db *sql.DB
}

// EventRecord represents one stored engine event
type EventRecord struct {
	ID           int64
	Timestamp    time.Time
	Job          string
	Cycle        string
	Operation    string
	Action       string
	Path         string
	FileName     string
	ObjectType   string
	Size         int64
	Reason       string
	ErrorMessage string
}

// NewHistoryDB creates a new database connection and initializes schema
func NewHistoryDB(dbPath string) (*HistoryDB, error) {
	dir := filepath.Dir(dbPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory %s: %w", dir, err)
		}
	}

	// _loc=auto parses DATETIME columns back into time.Time
	db, err := sql.Open("sqlite3", "file:"+dbPath+"?_loc=auto&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	defer func() {
		if err != nil {
			db.Close()
		}
	}()

	// Ping does not create the file; a statement does
	if _, err = db.Exec("SELECT 1"); err != nil {
		return nil, fmt.Errorf("failed to initialize database (check permissions on %s): %w", dbPath, err)
	}

	if _, err = db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}
	if _, err = db.Exec("PRAGMA synchronous=NORMAL"); err != nil {
		return nil, fmt.Errorf("failed to set synchronous mode: %w", err)
	}

	hdb := &HistoryDB{db: db}
	if err = hdb.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return hdb, nil
}

// initSchema creates tables and indexes if they don't exist
func (d *HistoryDB) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp DATETIME NOT NULL,
		job TEXT NOT NULL DEFAULT '',
		cycle TEXT NOT NULL DEFAULT '',
		operation TEXT NOT NULL,
		action TEXT NOT NULL,
		path TEXT NOT NULL,
		file_name TEXT NOT NULL DEFAULT '',
		object_type TEXT NOT NULL,
		size INTEGER NOT NULL,
		reason TEXT NOT NULL DEFAULT '',
		error_message TEXT NOT NULL DEFAULT '',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_timestamp ON events(timestamp);
	CREATE INDEX IF NOT EXISTS idx_job ON events(job);
	CREATE INDEX IF NOT EXISTS idx_cycle ON events(cycle);
	CREATE INDEX IF NOT EXISTS idx_operation ON events(operation);
	CREATE INDEX IF NOT EXISTS idx_action ON events(action);
	CREATE INDEX IF NOT EXISTS idx_path ON events(path);
	CREATE INDEX IF NOT EXISTS idx_size ON events(size);

	CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	INSERT OR IGNORE INTO schema_version (version) VALUES (1);
	`

	_, err := d.db.Exec(schema)
	return err
}

// RecordEvent stores an engine event that is not attributed to a job
func (d *HistoryDB) RecordEvent(ev tree.Event) error {
	return d.insert("", "", ev)
}

// ForJob returns a recorder that tags every event with the job name
func (d *HistoryDB) ForJob(job string) tree.Recorder {
	return jobRecorder{db: d, job: job}
}

// ForCycle returns a recorder that tags every event with the job name and
// the identifier of the scheduler cycle that ran it
func (d *HistoryDB) ForCycle(cycle, job string) tree.Recorder {
	return jobRecorder{db: d, job: job, cycle: cycle}
}

type jobRecorder struct {
	db    *HistoryDB
	job   string
	cycle string
}

func (r jobRecorder) RecordEvent(ev tree.Event) error {
	return r.db.insert(r.job, r.cycle, ev)
}

func (d *HistoryDB) insert(job, cycle string, ev tree.Event) error {
	ts := ev.Time
	if ts.IsZero() {
		ts = time.Now()
	}

	query := `
	INSERT INTO events (
		timestamp, job, cycle, operation, action, path, file_name,
		object_type, size, reason, error_message
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	// UTC keeps the stored text ordered by instant
	_, err := d.db.Exec(
		query,
		ts.UTC(),
		job,
		cycle,
		ev.Operation,
		ev.Action,
		ev.Path,
		filepath.Base(ev.Path),
		ev.Object,
		ev.Size,
		ev.Reason,
		ev.Error,
	)
	if err != nil {
		return fmt.Errorf("record %s %s: %w", ev.Action, ev.Path, err)
	}
	return nil
}

// Close closes the database connection
func (d *HistoryDB) Close() error {
	return d.db.Close()
}

// Ping verifies the database is still reachable
func (d *HistoryDB) Ping() error {
	return d.db.Ping()
}

// Vacuum optimizes the database (run periodically)
func (d *HistoryDB) Vacuum() error {
	_, err := d.db.Exec("VACUUM")
	return err
}

// DatabaseStats describes the history database itself
type DatabaseStats struct {
	TotalRecords int64
	SizeBytes    int64
	OldestRecord time.Time
	NewestRecord time.Time
}

// GetDatabaseStats returns database statistics
func (d *HistoryDB) GetDatabaseStats() (*DatabaseStats, error) {
	stats := &DatabaseStats{}

	if err := d.db.QueryRow("SELECT COUNT(*) FROM events").Scan(&stats.TotalRecords); err != nil {
		return nil, err
	}

	var pageCount, pageSize int64
	if err := d.db.QueryRow("PRAGMA page_count").Scan(&pageCount); err != nil {
		return nil, err
	}
	if err := d.db.QueryRow("PRAGMA page_size").Scan(&pageSize); err != nil {
		return nil, err
	}
	stats.SizeBytes = pageCount * pageSize

	// Aggregates lose the column type, so the bounds come back as text
	var oldest, newest sql.NullString
	err := d.db.QueryRow("SELECT MIN(timestamp), MAX(timestamp) FROM events").Scan(&oldest, &newest)
	if err != nil && err != sql.ErrNoRows {
		return nil, err
	}
	if oldest.Valid {
		stats.OldestRecord = parseStoredTime(oldest.String)
	}
	if newest.Valid {
		stats.NewestRecord = parseStoredTime(newest.String)
	}
	return stats, nil
}

var storedTimeLayouts = []string{
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05-07:00",
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
}

func parseStoredTime(s string) time.Time {
	for _, layout := range storedTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
