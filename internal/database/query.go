package database

import (
	"time"

	"treekeeper/internal/tree"
)

const eventColumns = `
	SELECT id, timestamp, job, cycle, operation, action, path, file_name,
	       object_type, size, reason, error_message
	FROM events
`

// GetRecentEvents returns the N most recent events
func (d *HistoryDB) GetRecentEvents(limit int) ([]EventRecord, error) {
	return d.queryEvents(eventColumns+`ORDER BY timestamp DESC, id DESC LIMIT ?`, limit)
}

// GetRecentEventsPaginated returns a page of recent events with the total count
func (d *HistoryDB) GetRecentEventsPaginated(limit, offset int) ([]EventRecord, int, error) {
	var total int
	if err := d.db.QueryRow("SELECT COUNT(*) FROM events").Scan(&total); err != nil {
		return nil, 0, err
	}
	records, err := d.queryEvents(eventColumns+`ORDER BY timestamp DESC, id DESC LIMIT ? OFFSET ?`, limit, offset)
	return records, total, err
}

// GetEventsByDateRange returns events within a time range
func (d *HistoryDB) GetEventsByDateRange(start, end time.Time) ([]EventRecord, error) {
	return d.queryEvents(eventColumns+`WHERE timestamp BETWEEN ? AND ? ORDER BY timestamp DESC, id DESC`,
		start.UTC(), end.UTC())
}

// GetEventsByAction returns events filtered by action (DELETE, DRY_RUN, ERROR, COPY)
func (d *HistoryDB) GetEventsByAction(action string) ([]EventRecord, error) {
	return d.queryEvents(eventColumns+`WHERE action = ? ORDER BY timestamp DESC, id DESC`, action)
}

// GetEventsByOperation returns events produced by one engine operation
func (d *HistoryDB) GetEventsByOperation(operation string) ([]EventRecord, error) {
	return d.queryEvents(eventColumns+`WHERE operation = ? ORDER BY timestamp DESC, id DESC`, operation)
}

// GetEventsByJob returns events recorded for a configured job
func (d *HistoryDB) GetEventsByJob(job string) ([]EventRecord, error) {
	return d.queryEvents(eventColumns+`WHERE job = ? ORDER BY timestamp DESC, id DESC`, job)
}

// GetEventsByCycle returns the events of one scheduler cycle in the order they happened
func (d *HistoryDB) GetEventsByCycle(cycle string) ([]EventRecord, error) {
	return d.queryEvents(eventColumns+`WHERE cycle = ? ORDER BY timestamp ASC, id ASC`, cycle)
}

// GetEventsByPath returns events whose path matches a LIKE pattern
func (d *HistoryDB) GetEventsByPath(pathPattern string) ([]EventRecord, error) {
	return d.queryEvents(eventColumns+`WHERE path LIKE ? ORDER BY timestamp DESC, id DESC`, pathPattern)
}

// GetLargestDeletions returns the N largest confirmed file deletions
func (d *HistoryDB) GetLargestDeletions(limit int) ([]EventRecord, error) {
	return d.queryEvents(eventColumns+`WHERE action = ? ORDER BY size DESC LIMIT ?`, tree.ActionDelete, limit)
}

// GetTotalSpaceFreed returns total bytes freed in a time range
func (d *HistoryDB) GetTotalSpaceFreed(start, end time.Time) (int64, error) {
	query := `
	SELECT COALESCE(SUM(size), 0)
	FROM events
	WHERE action = ? AND timestamp BETWEEN ? AND ?
	`

	var total int64
	err := d.db.QueryRow(query, tree.ActionDelete, start.UTC(), end.UTC()).Scan(&total)
	return total, err
}

// GetCountByAction returns event counts grouped by action
func (d *HistoryDB) GetCountByAction() (map[string]int, error) {
	return d.countBy(`SELECT action, COUNT(*) FROM events GROUP BY action`)
}

// GetCountByOperation returns confirmed deletion counts grouped by operation
func (d *HistoryDB) GetCountByOperation() (map[string]int, error) {
	return d.countBy(`SELECT operation, COUNT(*) FROM events WHERE action = ? GROUP BY operation`, tree.ActionDelete)
}

func (d *HistoryDB) countBy(query string, args ...interface{}) (map[string]int, error) {
	rows, err := d.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var key string
		var count int
		if err := rows.Scan(&key, &count); err != nil {
			return nil, err
		}
		counts[key] = count
	}
	return counts, rows.Err()
}

// HistoryStats holds aggregated statistics for a period
type HistoryStats struct {
	TotalDeletions  int
	TotalDryRuns    int
	TotalErrors     int
	TotalCopies     int
	TotalSpaceFreed int64
	ByOperation     map[string]int
	ByAction        map[string]int
	StartDate       time.Time
	EndDate         time.Time
}

// GetHistoryStats returns statistics for the last days
func (d *HistoryDB) GetHistoryStats(days int) (*HistoryStats, error) {
	now := time.Now()
	since := now.AddDate(0, 0, -days)

	stats := &HistoryStats{
		StartDate: since,
		EndDate:   now,
	}

	err := d.db.QueryRow(`
		SELECT
			COUNT(CASE WHEN action = ? THEN 1 END),
			COUNT(CASE WHEN action = ? THEN 1 END),
			COUNT(CASE WHEN action = ? THEN 1 END),
			COUNT(CASE WHEN action = ? THEN 1 END)
		FROM events
		WHERE timestamp >= ?
	`, tree.ActionDelete, tree.ActionDryRun, tree.ActionError, tree.ActionCopy, since.UTC()).
		Scan(&stats.TotalDeletions, &stats.TotalDryRuns, &stats.TotalErrors, &stats.TotalCopies)
	if err != nil {
		return nil, err
	}

	if stats.TotalSpaceFreed, err = d.GetTotalSpaceFreed(since, now); err != nil {
		return nil, err
	}
	if stats.ByOperation, err = d.GetCountByOperation(); err != nil {
		return nil, err
	}
	if stats.ByAction, err = d.GetCountByAction(); err != nil {
		return nil, err
	}
	return stats, nil
}

// DeleteOldRecords removes records older than the given number of days
func (d *HistoryDB) DeleteOldRecords(olderThanDays int) (int64, error) {
	cutoff := time.Now().AddDate(0, 0, -olderThanDays)

	result, err := d.db.Exec(`DELETE FROM events WHERE timestamp < ?`, cutoff.UTC())
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (d *HistoryDB) queryEvents(query string, args ...interface{}) ([]EventRecord, error) {
	rows, err := d.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []EventRecord
	for rows.Next() {
		var r EventRecord
		err := rows.Scan(
			&r.ID, &r.Timestamp, &r.Job, &r.Cycle, &r.Operation, &r.Action, &r.Path,
			&r.FileName, &r.ObjectType, &r.Size, &r.Reason, &r.ErrorMessage,
		)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}
