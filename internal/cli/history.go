package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"treekeeper/internal/database"
	"treekeeper/internal/tree"
)

const defaultHistoryPath = "/var/lib/treekeeper/history.db"

type historyQuery struct {
	dbPath     string
	recent     int
	offset     int
	stats      bool
	days       int
	action     string
	operation  string
	job        string
	cycle      string
	path       string
	largest    int
	since      string
	until      string
	info       bool
	vacuum     bool
	pruneDays  int
	jsonOutput bool
}

func newHistoryCommand(opts *options) *cobra.Command {
	q := &historyQuery{}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Query the history of copies and deletions",
		Example: `  treekeeper history --recent 10            # 10 most recent events
  treekeeper history --stats --days 7         # statistics for the last week
  treekeeper history --action DELETE          # confirmed deletions only
  treekeeper history --job logs               # events of one job
  treekeeper history --path '/var/log/%'      # events below /var/log
  treekeeper history --largest 10             # 10 largest deletions
  treekeeper history --since 2024-03-01 --until 2024-03-31`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if q.dbPath == "" {
				cfg, err := opts.loadConfig()
				if err != nil {
					return err
				}
				q.dbPath = defaultHistoryPath
				if cfg != nil && cfg.DatabasePath != "" {
					q.dbPath = cfg.DatabasePath
				}
			}

			db, err := database.NewHistoryDB(q.dbPath)
			if err != nil {
				return fmt.Errorf("open history database %s: %w", q.dbPath, err)
			}
			defer db.Close()

			return q.run(cmd.OutOrStdout(), db)
		},
	}

	f := cmd.Flags()
	f.StringVar(&q.dbPath, "db", "", "Path to history database (default from --config or "+defaultHistoryPath+")")
	f.IntVar(&q.recent, "recent", 0, "Show N most recent events")
	f.IntVar(&q.offset, "offset", 0, "Skip this many events with --recent")
	f.BoolVar(&q.stats, "stats", false, "Show statistics")
	f.IntVar(&q.days, "days", 30, "Number of days for statistics")
	f.StringVar(&q.action, "action", "", "Filter by action (DELETE, DRY_RUN, ERROR, COPY)")
	f.StringVar(&q.operation, "operation", "", "Filter by operation (e.g. clean_expired, erase_dir, copy)")
	f.StringVar(&q.job, "job", "", "Filter by job name")
	f.StringVar(&q.cycle, "cycle", "", "Show the events of one scheduler cycle")
	f.StringVar(&q.path, "path", "", "Filter by path pattern (SQL LIKE syntax)")
	f.IntVar(&q.largest, "largest", 0, "Show N largest deletions")
	f.StringVar(&q.since, "since", "", "Start of a date range (YYYY-MM-DD)")
	f.StringVar(&q.until, "until", "", "End of a date range (YYYY-MM-DD, inclusive)")
	f.BoolVar(&q.info, "info", false, "Show database size and record bounds")
	f.BoolVar(&q.vacuum, "vacuum", false, "Compact the database")
	f.IntVar(&q.pruneDays, "prune-days", 0, "Delete events older than N days")
	f.BoolVar(&q.jsonOutput, "json", false, "Output in JSON format")
	return cmd
}

var errNoQuery = errors.New("no query given, see --help")

func (q *historyQuery) run(out io.Writer, db *database.HistoryDB) error {
	switch {
	case q.vacuum:
		if err := db.Vacuum(); err != nil {
			return fmt.Errorf("vacuum: %w", err)
		}
		fmt.Fprintln(out, "database compacted")
		return nil
	case q.pruneDays > 0:
		n, err := db.DeleteOldRecords(q.pruneDays)
		if err != nil {
			return fmt.Errorf("prune history: %w", err)
		}
		fmt.Fprintf(out, "%d events deleted\n", n)
		return nil
	case q.info:
		stats, err := db.GetDatabaseStats()
		if err != nil {
			return fmt.Errorf("database stats: %w", err)
		}
		return q.emit(out, stats, func() { printDatabaseStats(out, stats) })
	case q.stats:
		return q.showStats(out, db)
	case q.recent > 0:
		records, total, err := db.GetRecentEventsPaginated(q.recent, q.offset)
		if err != nil {
			return fmt.Errorf("recent events: %w", err)
		}
		return q.emit(out, records, func() {
			fmt.Fprintf(out, "Showing %d of %d events\n\n", len(records), total)
			printRecords(out, records)
		})
	case q.since != "" || q.until != "":
		start, end, err := q.dateRange()
		if err != nil {
			return err
		}
		return q.records(out, "date range", func() ([]database.EventRecord, error) {
			return db.GetEventsByDateRange(start, end)
		})
	case q.action != "":
		return q.records(out, "action "+q.action, func() ([]database.EventRecord, error) {
			return db.GetEventsByAction(q.action)
		})
	case q.operation != "":
		return q.records(out, "operation "+q.operation, func() ([]database.EventRecord, error) {
			return db.GetEventsByOperation(q.operation)
		})
	case q.job != "":
		return q.records(out, "job "+q.job, func() ([]database.EventRecord, error) {
			return db.GetEventsByJob(q.job)
		})
	case q.cycle != "":
		return q.records(out, "cycle "+q.cycle, func() ([]database.EventRecord, error) {
			return db.GetEventsByCycle(q.cycle)
		})
	case q.path != "":
		return q.records(out, "path "+q.path, func() ([]database.EventRecord, error) {
			return db.GetEventsByPath(q.path)
		})
	case q.largest > 0:
		return q.records(out, "largest deletions", func() ([]database.EventRecord, error) {
			return db.GetLargestDeletions(q.largest)
		})
	default:
		return errNoQuery
	}
}

func (q *historyQuery) dateRange() (time.Time, time.Time, error) {
	start := time.Time{}
	end := time.Now()
	var err error
	if q.since != "" {
		if start, err = time.ParseInLocation("2006-01-02", q.since, time.Local); err != nil {
			return start, end, fmt.Errorf("invalid --since: %w", err)
		}
	}
	if q.until != "" {
		day, err := time.ParseInLocation("2006-01-02", q.until, time.Local)
		if err != nil {
			return start, end, fmt.Errorf("invalid --until: %w", err)
		}
		end = day.AddDate(0, 0, 1).Add(-time.Nanosecond)
	}
	return start, end, nil
}

func (q *historyQuery) records(out io.Writer, title string, fetch func() ([]database.EventRecord, error)) error {
	records, err := fetch()
	if err != nil {
		return fmt.Errorf("query %s: %w", title, err)
	}
	return q.emit(out, records, func() {
		fmt.Fprintf(out, "Events for %s\n\n", title)
		printRecords(out, records)
	})
}

func (q *historyQuery) emit(out io.Writer, v interface{}, text func()) error {
	if !q.jsonOutput {
		text()
		return nil
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(out, string(data))
	return nil
}

func (q *historyQuery) showStats(out io.Writer, db *database.HistoryDB) error {
	stats, err := db.GetHistoryStats(q.days)
	if err != nil {
		return fmt.Errorf("history stats: %w", err)
	}
	return q.emit(out, stats, func() {
		color.New(color.FgCyan, color.Bold).Fprintf(out, "History Statistics (Last %d days)\n", q.days)
		fmt.Fprintf(out, "Period: %s to %s\n\n", stats.StartDate.Format("2006-01-02"), stats.EndDate.Format("2006-01-02"))
		fmt.Fprintf(out, "Deletions:    %d\n", stats.TotalDeletions)
		fmt.Fprintf(out, "Dry runs:     %d\n", stats.TotalDryRuns)
		fmt.Fprintf(out, "Errors:       %d\n", stats.TotalErrors)
		fmt.Fprintf(out, "Copies:       %d\n", stats.TotalCopies)
		fmt.Fprintf(out, "Space freed:  %s\n", formatBytes(stats.TotalSpaceFreed))
		printCounts(out, "By Operation:", stats.ByOperation)
		printCounts(out, "By Action:", stats.ByAction)
	})
}

func printCounts(out io.Writer, title string, counts map[string]int) {
	if len(counts) == 0 {
		return
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fmt.Fprintf(out, "\n%s\n", title)
	for _, k := range keys {
		fmt.Fprintf(out, "  %-16s %d\n", k, counts[k])
	}
}

func printDatabaseStats(out io.Writer, stats *database.DatabaseStats) {
	fmt.Fprintf(out, "Records:  %d\n", stats.TotalRecords)
	fmt.Fprintf(out, "Size:     %s\n", formatBytes(stats.SizeBytes))
	if stats.TotalRecords > 0 {
		fmt.Fprintf(out, "Oldest:   %s\n", stats.OldestRecord.Local().Format("2006-01-02 15:04:05"))
		fmt.Fprintf(out, "Newest:   %s\n", stats.NewestRecord.Local().Format("2006-01-02 15:04:05"))
	}
}

var actionColors = map[string]*color.Color{
	tree.ActionDelete: color.New(color.FgRed),
	tree.ActionDryRun: color.New(color.FgYellow),
	tree.ActionError:  color.New(color.FgMagenta, color.Bold),
	tree.ActionCopy:   color.New(color.FgGreen),
}

func printRecords(out io.Writer, records []database.EventRecord) {
	if len(records) == 0 {
		fmt.Fprintln(out, "No records found")
		return
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tTimestamp\tJob\tOperation\tAction\tSize\tPath")
	_, _ = fmt.Fprintln(w, "--\t---------\t---\t---------\t------\t----\t----")

	for _, r := range records {
		job := r.Job
		if job == "" {
			job = "-"
		}
		action := r.Action
		if c, ok := actionColors[action]; ok {
			action = c.Sprint(action)
		}
		_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
			r.ID, r.Timestamp.Local().Format("2006-01-02 15:04:05"), job, r.Operation, action, formatBytes(r.Size), r.Path)
	}
	_ = w.Flush()
}
