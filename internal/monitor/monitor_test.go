package monitor

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/bft-labs/refkeeper/pkg/refcount"
)

func testManager(t *testing.T, clk clock.Clock) *refcount.Manager[string, *Monitor] {
	t.Helper()
	cfg := DefaultConfig()
	cfg.ProbeInterval = time.Second
	cfg.ProbeTimeout = 5 * time.Second
	kind := NewKind(cfg, nil, clk)
	mgr := refcount.NewManager[string, *Monitor]("monitors", kind)
	mgr.Start()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := mgr.Stop(ctx); err != nil {
			t.Errorf("Stop() error = %v", err)
		}
	})
	return mgr
}

func acquireMonitor(t *testing.T, mgr *refcount.Manager[string, *Monitor], url string) *Monitor {
	t.Helper()
	got := make(chan *Monitor, 1)
	mgr.Acquire(url, func(id string, m *Monitor) { got <- m })
	select {
	case m := <-got:
		return m
	case <-time.After(5 * time.Second):
		t.Fatal("monitor never became live")
		return nil
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestMonitor_HealthyEndpoint(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	mock := clock.NewMock()
	mgr := testManager(t, mock)

	m := acquireMonitor(t, mgr, srv.URL)
	defer mgr.Release(srv.URL)

	// Readiness implies the first probe already settled.
	if m.Checks() == 0 {
		t.Error("monitor reported ready before its first probe")
	}
	if !m.Healthy() {
		t.Errorf("Healthy() = false, LastErr = %v", m.LastErr())
	}

	// Advancing the clock drives further probes.
	before := m.Checks()
	waitFor(t, "next probe", func() bool {
		mock.Add(time.Second)
		return m.Checks() > before
	})
}

func TestMonitor_UnhealthyEndpoint(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	mock := clock.NewMock()
	mgr := testManager(t, mock)

	m := acquireMonitor(t, mgr, srv.URL)
	defer mgr.Release(srv.URL)

	// An unhealthy endpoint still yields a live monitor; health is
	// reported, not gated on.
	if m.Healthy() {
		t.Error("Healthy() = true for an endpoint returning 500")
	}
	statusErr, ok := m.LastErr().(*StatusError)
	if !ok {
		t.Fatalf("LastErr() = %v, want *StatusError", m.LastErr())
	}
	if statusErr.StatusCode != http.StatusInternalServerError {
		t.Errorf("StatusCode = %d, want %d", statusErr.StatusCode, http.StatusInternalServerError)
	}
}

func TestMonitor_ReleaseStopsProbing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	mock := clock.NewMock()
	mgr := testManager(t, mock)

	m := acquireMonitor(t, mgr, srv.URL)
	mgr.Release(srv.URL)

	// The probe loop must exit and report cleanup.
	select {
	case <-m.done:
	case <-time.After(5 * time.Second):
		t.Fatal("probe loop did not stop after release")
	}

	checks := m.Checks()
	mock.Add(10 * time.Second)
	time.Sleep(20 * time.Millisecond)
	if m.Checks() != checks {
		t.Error("monitor kept probing after teardown")
	}
}

func TestMonitor_SharedAcrossReferrers(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	mgr := testManager(t, clock.NewMock())

	m1 := acquireMonitor(t, mgr, srv.URL)
	m2 := acquireMonitor(t, mgr, srv.URL)
	if m1 != m2 {
		t.Error("two referrers got different monitor instances")
	}

	// First release keeps the monitor alive for the second referrer.
	mgr.Release(srv.URL)
	if err := mgr.Flush(context.Background()); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}
	select {
	case <-m1.done:
		t.Fatal("monitor stopped while still referenced")
	case <-time.After(20 * time.Millisecond):
	}

	mgr.Release(srv.URL)
	select {
	case <-m1.done:
	case <-time.After(5 * time.Second):
		t.Fatal("monitor did not stop after the last release")
	}
}
