package metrics

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	initOnce    sync.Once
	serverMutex sync.Mutex
	currentSrv  *http.Server

	// triggerChannel receives a value each time POST /trigger is called
	triggerChannel chan struct{}

	// lastCycleFailed is flipped by the scheduler after every cycle
	lastCycleFailed atomic.Bool

	// healthChecker optionally contributes component state to /health
	healthChecker atomic.Pointer[HealthChecker]
)

// Init initializes and registers all metrics.
// This function is safe to call multiple times (uses sync.Once)
func Init() {
	initOnce.Do(func() {
		initCleanupMetrics()
		initDaemonMetrics()
		initAPIMetrics()
		initHealthMetrics()

		registerCleanupMetrics()
		registerDaemonMetrics()
		registerAPIMetrics()
		registerHealthMetrics()

		CycleLastRunTimestamp.Set(0)
		triggerChannel = make(chan struct{}, 1)
	})
}

// Trigger returns the channel fed by the /trigger endpoint
func Trigger() <-chan struct{} {
	return triggerChannel
}

// SetCycleHealth records whether the last job cycle succeeded
func SetCycleHealth(ok bool) {
	lastCycleFailed.Store(!ok)
}

// SetHealthChecker makes /health report the components of hc; nil detaches it
func SetHealthChecker(hc *HealthChecker) {
	healthChecker.Store(hc)
}

type healthResponse struct {
	Status     string            `json:"status"`
	Healthy    bool              `json:"healthy"`
	Components []componentStatus `json:"components,omitempty"`
}

type componentStatus struct {
	Name    string `json:"name"`
	Healthy bool   `json:"healthy"`
	Error   string `json:"error,omitempty"`
}

// Handler builds the metrics mux: /metrics, /health and /trigger
func Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", instrument("metrics", promhttp.Handler()))

	mux.Handle("/health", instrument("health", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := healthResponse{Status: "ok", Healthy: !lastCycleFailed.Load()}
		if hc := healthChecker.Load(); hc != nil {
			for _, c := range hc.Components() {
				resp.Components = append(resp.Components, componentStatus{Name: c.Name, Healthy: c.Healthy, Error: c.LastError})
				if !c.Healthy {
					resp.Healthy = false
				}
			}
		}

		code := http.StatusOK
		if !resp.Healthy {
			resp.Status = "degraded"
			code = http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		json.NewEncoder(w).Encode(resp)
	})))

	mux.Handle("/trigger", instrument("trigger", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		select {
		case triggerChannel <- struct{}{}:
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("Cycle triggered"))
		default:
			http.Error(w, "Trigger already pending", http.StatusServiceUnavailable)
		}
	})))

	return mux
}

// StartServer starts the metrics HTTP server on the specified address
func StartServer(addr string, logger *log.Logger) {
	serverMutex.Lock()
	defer serverMutex.Unlock()

	if currentSrv != nil {
		logger.Printf("metrics server already running on %s", currentSrv.Addr)
		return
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	currentSrv = srv

	go func() {
		logger.Printf("metrics server listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Printf("metrics server error: %v", err)
			ErrorsTotal.Inc()
		}
	}()
}

// Shutdown gracefully shuts down the metrics server
func Shutdown(ctx context.Context, logger *log.Logger) {
	serverMutex.Lock()
	defer serverMutex.Unlock()

	if currentSrv == nil {
		return
	}
	if err := currentSrv.Shutdown(ctx); err != nil {
		logger.Printf("metrics server shutdown error: %v", err)
		ErrorsTotal.Inc()
	}
	currentSrv = nil
}
