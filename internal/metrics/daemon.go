package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Scheduler subsystem metrics
var (
	// ErrorsTotal tracks total errors encountered outside of per-entry deletes
	ErrorsTotal prometheus.Counter

	// CycleDuration tracks how long a full job cycle takes
	CycleDuration prometheus.Histogram

	// CycleLastRunTimestamp records Unix timestamp of the last cycle
	CycleLastRunTimestamp prometheus.Gauge

	// JobRunsTotal tracks job executions by job name and status
	JobRunsTotal *prometheus.CounterVec

	// DirectorySizeBytes tracks the last aggregated size per path
	DirectorySizeBytes *prometheus.GaugeVec

	// FreeSpacePercent tracks free space percentage of the filesystem holding a job path
	FreeSpacePercent *prometheus.GaugeVec
)

func initDaemonMetrics() {
	ErrorsTotal = NewCounter(
		"treekeeper_errors_total",
		"Total number of errors encountered by treekeeper.",
	)

	CycleDuration = NewDurationHistogram(
		"treekeeper_cycle_duration_seconds",
		"Duration of job cycles in seconds.",
	)

	CycleLastRunTimestamp = NewSizeGauge(
		"treekeeper_cycle_last_run_timestamp",
		"Timestamp of the last job cycle (Unix epoch seconds).",
	)

	JobRunsTotal = NewCounterVec(
		"treekeeper_job_runs_total",
		"Total job executions by job and status.",
		[]string{"job", "status"},
	)

	DirectorySizeBytes = NewSizeGaugeVec(
		"treekeeper_directory_size_bytes",
		"Aggregated directory size in bytes.",
		[]string{"path"},
	)

	FreeSpacePercent = NewSizeGaugeVec(
		"treekeeper_free_space_percent",
		"Free space percentage of the filesystem containing a job path.",
		[]string{"path"},
	)
}

func registerDaemonMetrics() {
	prometheus.MustRegister(ErrorsTotal)
	prometheus.MustRegister(CycleDuration)
	prometheus.MustRegister(CycleLastRunTimestamp)
	prometheus.MustRegister(JobRunsTotal)
	prometheus.MustRegister(DirectorySizeBytes)
	prometheus.MustRegister(FreeSpacePercent)
}

// RecordCycleRun updates the last run timestamp
func RecordCycleRun(at time.Time) {
	CycleLastRunTimestamp.Set(float64(at.Unix()))
}

// RecordJobRun counts one job execution
func RecordJobRun(job string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	JobRunsTotal.WithLabelValues(job, status).Inc()
}

// UpdateDirectorySize sets the aggregated size for a path
func UpdateDirectorySize(path string, bytes int64) {
	DirectorySizeBytes.WithLabelValues(path).Set(float64(bytes))
}

// UpdateFreeSpacePercent updates the free space percentage for a path
func UpdateFreeSpacePercent(path string, percent float64) {
	FreeSpacePercent.WithLabelValues(path).Set(percent)
}
