package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Standard histogram buckets for different metric types
var (
	// DurationBuckets: 100ms to 5min for cycle durations
	DurationBuckets = []float64{0.1, 0.5, 1, 5, 10, 30, 60, 300}

	// APIBuckets: 1ms to 1s for HTTP handlers
	APIBuckets = []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1}

	// BytesBuckets: 1KB to 1GB for copied file sizes
	BytesBuckets = []float64{1024, 10240, 102400, 1048576, 10485760, 104857600, 1073741824}
)

// NewDurationHistogram creates a histogram for tracking durations in seconds
func NewDurationHistogram(name, help string) prometheus.Histogram {
	return prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    name,
		Help:    help,
		Buckets: DurationBuckets,
	})
}

// NewBytesCounter creates a counter for tracking bytes
func NewBytesCounter(name, help string) prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{
		Name: name,
		Help: help,
	})
}

func NewCounter(name, help string) prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{
		Name: name,
		Help: help,
	})
}

func NewSizeGauge(name, help string) prometheus.Gauge {
	return prometheus.NewGauge(prometheus.GaugeOpts{
		Name: name,
		Help: help,
	})
}

func NewSizeGaugeVec(name, help string, labels []string) *prometheus.GaugeVec {
	return prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: name,
		Help: help,
	}, labels)
}

func NewCounterVec(name, help string, labels []string) *prometheus.CounterVec {
	return prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: name,
		Help: help,
	}, labels)
}
