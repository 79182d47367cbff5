package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// HTTP subsystem metrics for the metrics server's own endpoints
var (
	// HTTPRequestDuration tracks request latency
	HTTPRequestDuration *prometheus.HistogramVec

	// HTTPRequestsTotal tracks requests by handler, method and status
	HTTPRequestsTotal *prometheus.CounterVec
)

func initAPIMetrics() {
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "treekeeper_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: APIBuckets,
		},
		[]string{"handler", "method", "status"},
	)

	HTTPRequestsTotal = NewCounterVec(
		"treekeeper_http_requests_total",
		"Total HTTP requests served by the treekeeper metrics server.",
		[]string{"handler", "method", "status"},
	)
}

func registerAPIMetrics() {
	prometheus.MustRegister(HTTPRequestDuration)
	prometheus.MustRegister(HTTPRequestsTotal)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// instrument counts and times every request served by h under the handler label
func instrument(handler string, h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		h.ServeHTTP(rec, r)

		status := strconv.Itoa(rec.status)
		HTTPRequestsTotal.WithLabelValues(handler, r.Method, status).Inc()
		HTTPRequestDuration.WithLabelValues(handler, r.Method, status).Observe(time.Since(start).Seconds())
	})
}
