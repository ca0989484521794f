// Package monitor implements the endpoint monitor resource kind: one
// ref-counted HTTP prober per endpoint URL, managed by a
// refcount.Manager. The identifier of a monitor is the endpoint URL
// itself.
package monitor

import (
	"context"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/bft-labs/refkeeper/pkg/log"
	"github.com/bft-labs/refkeeper/pkg/refcount"
)

// Monitor probes one HTTP endpoint on an interval. It is a managed
// resource: the Manager starts it once it is clear to run and tears it
// down once the last referrer lets go. The probe loop runs on its own
// goroutine, so the Monitor processes its lifecycle alone, in order.
type Monitor struct {
	refcount.Base[string]

	url      string
	interval time.Duration
	client   *http.Client
	clk      clock.Clock
	logger   log.Logger
	back     *backoff

	cancel context.CancelFunc
	done   chan struct{}

	mu      sync.Mutex
	healthy bool
	checks  int
	lastErr error
}

// Start launches the probe loop. Invoked by the Manager; the Monitor
// reports ready once its first probe has settled, success or not.
func (m *Monitor) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.done = make(chan struct{})
	go m.run(ctx)
}

// OnUnreferenced stops the probe loop and reports cleanup complete once
// it has fully exited. Invoked by the Manager on its own goroutine, so
// blocking here is fine.
func (m *Monitor) OnUnreferenced() {
	m.cancel()
	<-m.done
	m.logger.Debug("monitor stopped", log.String("url", m.url))
	m.NotifyCleanupDone()
}

// Healthy reports whether the most recent probe succeeded.
func (m *Monitor) Healthy() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.healthy
}

// Checks returns the number of probes performed so far.
func (m *Monitor) Checks() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.checks
}

// LastErr returns the error from the most recent failed probe, or nil.
func (m *Monitor) LastErr() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr
}

func (m *Monitor) run(ctx context.Context) {
	defer close(m.done)

	m.probe(ctx)
	m.NotifyReady()

	for {
		wait := m.interval
		if !m.Healthy() {
			wait = m.back.Next()
		} else {
			m.back.Reset()
		}

		timer := m.clk.Timer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
		m.probe(ctx)
	}
}

func (m *Monitor) probe(ctx context.Context) {
	var probeErr error
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.url, nil)
	if err != nil {
		probeErr = err
	} else {
		resp, err := m.client.Do(req)
		if err != nil {
			probeErr = err
		} else {
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			if resp.StatusCode >= 400 {
				probeErr = &StatusError{URL: m.url, StatusCode: resp.StatusCode}
			}
		}
	}

	m.mu.Lock()
	m.checks++
	m.healthy = probeErr == nil
	m.lastErr = probeErr
	m.mu.Unlock()

	if probeErr != nil {
		// Cancellation during shutdown is not a probe failure worth noise.
		if ctx.Err() != nil {
			return
		}
		m.logger.Warn("probe failed",
			log.String("url", m.url),
			log.Err(probeErr),
		)
		return
	}
	m.logger.Debug("probe succeeded", log.String("url", m.url))
}
