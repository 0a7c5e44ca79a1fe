package health

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

func TestMonitor_Update(t *testing.T) {
	monitor := NewMonitor()

	monitor.Update("driver", Status{Component: "wrong-name", Status: StateHealthy})

	got, ok := monitor.Get("driver")
	if !ok {
		t.Fatal("component should exist after update")
	}
	if got.Component != "driver" {
		t.Errorf("expected component name to be overwritten, got %q", got.Component)
	}
	if got.Timestamp.IsZero() {
		t.Error("Update should stamp the status")
	}

	if _, ok := monitor.Get("missing"); ok {
		t.Error("unknown component should not exist")
	}
}

func TestMonitor_ConvenienceMethods(t *testing.T) {
	monitor := NewMonitor()
	monitor.UpdateHealthy("a", "ok")
	monitor.UpdateDegraded("b", "slow")
	monitor.UpdateUnhealthy("c", "down")

	if monitor.Count() != 3 {
		t.Fatalf("expected 3 components, got %d", monitor.Count())
	}
	all := monitor.GetAll()
	if !all["a"].IsHealthy() || !all["b"].IsDegraded() || !all["c"].IsUnhealthy() {
		t.Errorf("unexpected statuses: %+v", all)
	}
}

func TestMonitor_Probe(t *testing.T) {
	monitor := NewMonitor()

	var mu sync.Mutex
	healthy := true
	monitor.Register("transport", func() Status {
		mu.Lock()
		defer mu.Unlock()
		if healthy {
			return NewHealthy("", "connected")
		}
		return NewUnhealthy("", "disconnected")
	})

	got, ok := monitor.Get("transport")
	if !ok || !got.IsHealthy() || got.Component != "transport" {
		t.Fatalf("expected healthy transport, got %+v", got)
	}

	mu.Lock()
	healthy = false
	mu.Unlock()

	if agg := monitor.AggregateHealth("robot"); !agg.IsUnhealthy() {
		t.Errorf("expected unhealthy aggregate after probe change, got %s", agg.Status)
	}
}

func TestMonitor_RemoveAndList(t *testing.T) {
	monitor := NewMonitor()
	monitor.UpdateHealthy("b", "")
	monitor.Register("a", func() Status { return NewHealthy("", "") })

	names := monitor.ListComponents()
	if len(names) != 2 || names[0] != "a" || names[1] != "b" {
		t.Fatalf("expected sorted [a b], got %v", names)
	}

	monitor.Remove("a")
	monitor.Remove("b")
	if monitor.Count() != 0 {
		t.Errorf("expected empty monitor, got %d", monitor.Count())
	}
}

func TestMonitor_Handler(t *testing.T) {
	monitor := NewMonitor()
	monitor.UpdateHealthy("driver", "running")

	rec := httptest.NewRecorder()
	monitor.Handler("vasya").ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var status Status
	if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if status.Component != "vasya" || !status.IsHealthy() {
		t.Errorf("unexpected body: %+v", status)
	}

	monitor.UpdateUnhealthy("transport", "down")
	rec = httptest.NewRecorder()
	monitor.Handler("vasya").ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", rec.Code)
	}
}

func TestMonitor_ConcurrentAccess(t *testing.T) {
	monitor := NewMonitor()
	var wg sync.WaitGroup

	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				monitor.UpdateHealthy(string(rune('a'+i)), "ok")
			}
		}(i)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				_ = monitor.AggregateHealth("robot")
			}
		}()
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("concurrent access deadlocked")
	}

	if monitor.Count() != 10 {
		t.Errorf("expected 10 components, got %d", monitor.Count())
	}
}
