package metrics

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestHealthCheckerTracksFailures(t *testing.T) {
	hc := NewHealthChecker(time.Hour)

	fail := true
	hc.RegisterComponent("hc-db", func() error {
		if fail {
			return errors.New("unreachable")
		}
		return nil
	}, 0)
	hc.RegisterComponent("hc-path", func() error { return nil }, time.Second)

	hc.RunChecks()
	hc.RunChecks()
	if hc.IsHealthy() {
		t.Fatal("Expected unhealthy after failing checks")
	}
	if got := testutil.ToFloat64(HealthCheckFailures.WithLabelValues("hc-db")); got != 2 {
		t.Errorf("Expected 2 consecutive failures, got %v", got)
	}
	if got := testutil.ToFloat64(ComponentHealthy.WithLabelValues("hc-path")); got != 1 {
		t.Errorf("Expected hc-path healthy, got %v", got)
	}

	comps := hc.Components()
	if len(comps) != 2 || comps[0].Name != "hc-db" || comps[0].LastError != "unreachable" {
		t.Errorf("Unexpected components: %+v", comps)
	}

	fail = false
	hc.RunChecks()
	if !hc.IsHealthy() {
		t.Error("Expected healthy after recovery")
	}
	if got := testutil.ToFloat64(HealthCheckFailures.WithLabelValues("hc-db")); got != 0 {
		t.Errorf("Expected failures reset, got %v", got)
	}
}

func TestHealthCheckTimeout(t *testing.T) {
	hc := NewHealthChecker(time.Hour)
	release := make(chan struct{})
	defer close(release)

	hc.RegisterComponent("hc-slow", func() error {
		<-release
		return nil
	}, 20*time.Millisecond)

	before := testutil.ToFloat64(HealthCheckTimeouts)
	hc.RunChecks()
	if hc.IsHealthy() {
		t.Error("Expected timeout to mark component unhealthy")
	}
	if got := testutil.ToFloat64(HealthCheckTimeouts) - before; got != 1 {
		t.Errorf("Expected one timeout, got %v", got)
	}
}

func TestHealthEndpointReportsComponents(t *testing.T) {
	hc := NewHealthChecker(time.Hour)
	hc.RegisterComponent("hc-broken", func() error { return errors.New("stale mount") }, 0)
	hc.RunChecks()

	SetHealthChecker(hc)
	defer SetHealthChecker(nil)
	SetCycleHealth(true)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected 503 with a failing component, got %d", rec.Code)
	}

	var body healthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("Invalid JSON: %v", err)
	}
	if body.Status != "degraded" || len(body.Components) != 1 || body.Components[0].Error != "stale mount" {
		t.Errorf("Unexpected body: %+v", body)
	}
}

func TestHealthCheckerStartStop(t *testing.T) {
	hc := NewHealthChecker(10 * time.Millisecond)
	calls := make(chan struct{}, 10)
	hc.RegisterComponent("hc-loop", func() error {
		select {
		case calls <- struct{}{}:
		default:
		}
		return nil
	}, 0)

	hc.Start()
	select {
	case <-calls:
	case <-time.After(2 * time.Second):
		t.Fatal("Expected an initial check after Start")
	}
	hc.Stop()
	hc.Stop()
}
