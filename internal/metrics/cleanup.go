package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Tree maintenance metrics, labelled by engine operation
// (clean_expired, clean_dir, erase_dir, clean_selected, clean_empty, move_tree, ...)
var (
	// FilesDeletedTotal tracks confirmed file deletions
	FilesDeletedTotal *prometheus.CounterVec

	// DirsDeletedTotal tracks directories removed once left empty
	DirsDeletedTotal *prometheus.CounterVec

	// DeleteErrorsTotal tracks deletions that failed without aborting the walk
	DeleteErrorsTotal *prometheus.CounterVec

	// BytesFreedTotal tracks bytes released by file deletions
	BytesFreedTotal prometheus.Counter

	// FilesCopiedTotal tracks files copied by copy and move operations
	FilesCopiedTotal prometheus.Counter

	// BytesCopiedTotal tracks bytes streamed by copy and move operations
	BytesCopiedTotal prometheus.Counter

	// CopySizeBytes records the size distribution of copied files
	CopySizeBytes prometheus.Histogram
)

func initCleanupMetrics() {
	FilesDeletedTotal = NewCounterVec(
		"treekeeper_files_deleted_total",
		"Total number of files deleted.",
		[]string{"operation"},
	)

	DirsDeletedTotal = NewCounterVec(
		"treekeeper_dirs_deleted_total",
		"Total number of directories deleted.",
		[]string{"operation"},
	)

	DeleteErrorsTotal = NewCounterVec(
		"treekeeper_delete_errors_total",
		"Total number of failed deletions.",
		[]string{"operation"},
	)

	BytesFreedTotal = NewBytesCounter(
		"treekeeper_bytes_freed_total",
		"Total bytes freed by file deletions.",
	)

	FilesCopiedTotal = NewCounter(
		"treekeeper_files_copied_total",
		"Total number of files copied.",
	)

	BytesCopiedTotal = NewBytesCounter(
		"treekeeper_bytes_copied_total",
		"Total bytes copied.",
	)

	CopySizeBytes = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "treekeeper_copy_size_bytes",
		Help:    "Size of copied files in bytes.",
		Buckets: BytesBuckets,
	})
}

func registerCleanupMetrics() {
	prometheus.MustRegister(FilesDeletedTotal)
	prometheus.MustRegister(DirsDeletedTotal)
	prometheus.MustRegister(DeleteErrorsTotal)
	prometheus.MustRegister(BytesFreedTotal)
	prometheus.MustRegister(FilesCopiedTotal)
	prometheus.MustRegister(BytesCopiedTotal)
	prometheus.MustRegister(CopySizeBytes)
}

// RecordFileDeleted counts one confirmed file deletion
func RecordFileDeleted(operation string, size int64) {
	FilesDeletedTotal.WithLabelValues(operation).Inc()
	BytesFreedTotal.Add(float64(size))
}

// RecordDirDeleted counts one directory removal
func RecordDirDeleted(operation string) {
	DirsDeletedTotal.WithLabelValues(operation).Inc()
}

// RecordDeleteError counts one failed deletion
func RecordDeleteError(operation string) {
	DeleteErrorsTotal.WithLabelValues(operation).Inc()
}

// RecordFileCopied counts one copied file of the given size
func RecordFileCopied(size int64) {
	FilesCopiedTotal.Inc()
	BytesCopiedTotal.Add(float64(size))
	CopySizeBytes.Observe(float64(size))
}
