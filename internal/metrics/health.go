package metrics

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Component health metrics
var (
	// ServiceStartTime records the daemon start timestamp
	ServiceStartTime prometheus.Gauge

	// ComponentHealthy tracks individual component health (1=healthy, 0=unhealthy)
	ComponentHealthy *prometheus.GaugeVec

	// LastHealthCheck records the timestamp of the last check per component
	LastHealthCheck *prometheus.GaugeVec

	// HealthCheckDuration tracks health check execution time
	HealthCheckDuration *prometheus.HistogramVec

	// HealthCheckFailures counts consecutive failures per component
	HealthCheckFailures *prometheus.GaugeVec

	// HealthCheckTimeouts counts checks abandoned after their timeout
	HealthCheckTimeouts prometheus.Counter
)

var errHealthCheckTimeout = errors.New("health check timeout")

func initHealthMetrics() {
	ServiceStartTime = NewSizeGauge(
		"treekeeper_start_timestamp_seconds",
		"Unix timestamp when the daemon started.",
	)

	ComponentHealthy = NewSizeGaugeVec(
		"treekeeper_component_healthy",
		"Component health status (1=healthy, 0=unhealthy).",
		[]string{"component"},
	)

	LastHealthCheck = NewSizeGaugeVec(
		"treekeeper_last_health_check_timestamp_seconds",
		"Unix timestamp of the last health check.",
		[]string{"component"},
	)

	HealthCheckDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "treekeeper_health_check_duration_seconds",
			Help:    "Time taken to execute health checks.",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"component"},
	)

	HealthCheckFailures = NewSizeGaugeVec(
		"treekeeper_health_check_failures_consecutive",
		"Consecutive health check failures per component.",
		[]string{"component"},
	)

	HealthCheckTimeouts = NewCounter(
		"treekeeper_health_check_timeouts_total",
		"Total number of health check timeouts.",
	)
}

func registerHealthMetrics() {
	prometheus.MustRegister(ServiceStartTime)
	prometheus.MustRegister(ComponentHealthy)
	prometheus.MustRegister(LastHealthCheck)
	prometheus.MustRegister(HealthCheckDuration)
	prometheus.MustRegister(HealthCheckFailures)
	prometheus.MustRegister(HealthCheckTimeouts)
}

// HealthChecker runs registered component checks on an interval,
// e.g. that a job path still answers or the history database is reachable.
type HealthChecker struct {
	mu            sync.RWMutex
	startTime     time.Time
	components    map[string]*ComponentHealth
	checkInterval time.Duration
	stopCh        chan struct{}
	wg            sync.WaitGroup
	started       bool
}

// ComponentHealth is the last known state of one component
type ComponentHealth struct {
	Name         string
	LastCheck    time.Time
	Healthy      bool
	LastError    string
	FailureCount int
	check        func() error
	timeout      time.Duration
}

// NewHealthChecker creates a checker running every interval
func NewHealthChecker(interval time.Duration) *HealthChecker {
	Init()
	hc := &HealthChecker{
		startTime:     time.Now(),
		components:    make(map[string]*ComponentHealth),
		checkInterval: interval,
		stopCh:        make(chan struct{}),
	}
	ServiceStartTime.Set(float64(hc.startTime.Unix()))
	return hc
}

// RegisterComponent adds a check returning nil when the component is healthy.
// A zero timeout waits for the check indefinitely.
func (hc *HealthChecker) RegisterComponent(name string, check func() error, timeout time.Duration) {
	hc.mu.Lock()
	defer hc.mu.Unlock()

	hc.components[name] = &ComponentHealth{
		Name:    name,
		Healthy: true,
		check:   check,
		timeout: timeout,
	}
	ComponentHealthy.WithLabelValues(name).Set(1)
	HealthCheckFailures.WithLabelValues(name).Set(0)
}

// Start runs the checks immediately and then on every interval
func (hc *HealthChecker) Start() {
	hc.mu.Lock()
	if hc.started {
		hc.mu.Unlock()
		return
	}
	hc.started = true
	hc.mu.Unlock()

	hc.wg.Add(1)
	go hc.loop()
}

// Stop halts checking and waits for a running check to finish
func (hc *HealthChecker) Stop() {
	hc.mu.Lock()
	if !hc.started {
		hc.mu.Unlock()
		return
	}
	hc.started = false
	hc.mu.Unlock()

	close(hc.stopCh)
	hc.wg.Wait()
}

func (hc *HealthChecker) loop() {
	defer hc.wg.Done()

	ticker := time.NewTicker(hc.checkInterval)
	defer ticker.Stop()

	hc.RunChecks()
	for {
		select {
		case <-ticker.C:
			hc.RunChecks()
		case <-hc.stopCh:
			return
		}
	}
}

// RunChecks executes every registered check once
func (hc *HealthChecker) RunChecks() {
	hc.mu.RLock()
	comps := make([]*ComponentHealth, 0, len(hc.components))
	for _, c := range hc.components {
		comps = append(comps, c)
	}
	hc.mu.RUnlock()

	for _, comp := range comps {
		start := time.Now()
		err := runWithTimeout(comp.check, comp.timeout)
		HealthCheckDuration.WithLabelValues(comp.Name).Observe(time.Since(start).Seconds())

		hc.mu.Lock()
		comp.LastCheck = time.Now()
		if err != nil {
			comp.Healthy = false
			comp.LastError = err.Error()
			comp.FailureCount++
			ErrorsTotal.Inc()
		} else {
			comp.Healthy = true
			comp.LastError = ""
			comp.FailureCount = 0
		}
		healthy, failures, checked := comp.Healthy, comp.FailureCount, comp.LastCheck
		hc.mu.Unlock()

		LastHealthCheck.WithLabelValues(comp.Name).Set(float64(checked.Unix()))
		HealthCheckFailures.WithLabelValues(comp.Name).Set(float64(failures))
		if healthy {
			ComponentHealthy.WithLabelValues(comp.Name).Set(1)
		} else {
			ComponentHealthy.WithLabelValues(comp.Name).Set(0)
		}
	}
}

func runWithTimeout(fn func() error, timeout time.Duration) error {
	if timeout <= 0 {
		return fn()
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- fn()
	}()

	select {
	case err := <-errCh:
		return err
	case <-time.After(timeout):
		HealthCheckTimeouts.Inc()
		return errHealthCheckTimeout
	}
}

// Components returns a snapshot of every component sorted by name
func (hc *HealthChecker) Components() []ComponentHealth {
	hc.mu.RLock()
	defer hc.mu.RUnlock()

	out := make([]ComponentHealth, 0, len(hc.components))
	for _, c := range hc.components {
		out = append(out, ComponentHealth{
			Name:         c.Name,
			LastCheck:    c.LastCheck,
			Healthy:      c.Healthy,
			LastError:    c.LastError,
			FailureCount: c.FailureCount,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// IsHealthy reports whether every component passed its last check
func (hc *HealthChecker) IsHealthy() bool {
	hc.mu.RLock()
	defer hc.mu.RUnlock()

	for _, comp := range hc.components {
		if !comp.Healthy {
			return false
		}
	}
	return true
}

// Uptime returns time since the checker was created
func (hc *HealthChecker) Uptime() time.Duration {
	return time.Since(hc.startTime)
}
