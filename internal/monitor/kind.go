package monitor

import (
	"fmt"
	"net/http"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/bft-labs/refkeeper/pkg/log"
	"github.com/bft-labs/refkeeper/pkg/refcount"
)

// StatusError reports a probe that reached the endpoint but got an
// error status back.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("probe %s: unexpected status %d", e.URL, e.StatusCode)
}

// Config holds the tunables shared by every monitor of one kind.
type Config struct {
	// ProbeInterval is the delay between probes of a healthy endpoint.
	// Default: 30 seconds.
	ProbeInterval time.Duration

	// ProbeTimeout bounds a single probe request.
	// Default: 5 seconds.
	ProbeTimeout time.Duration

	// BackoffBase and BackoffMax shape the retry delays after a failed
	// probe. Defaults: 500ms and 1 minute.
	BackoffBase time.Duration
	BackoffMax  time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		ProbeInterval: 30 * time.Second,
		ProbeTimeout:  5 * time.Second,
		BackoffBase:   500 * time.Millisecond,
		BackoffMax:    time.Minute,
	}
}

// Kind constructs Monitors for a refcount.Manager.
type Kind struct {
	cfg    Config
	logger log.Logger
	clk    clock.Clock
	client *http.Client
}

// NewKind creates the monitor kind. A nil logger defaults to no-op; a
// nil clk defaults to the wall clock (tests inject a mock).
func NewKind(cfg Config, logger log.Logger, clk clock.Clock) *Kind {
	if cfg.ProbeInterval <= 0 {
		cfg.ProbeInterval = 30 * time.Second
	}
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = 5 * time.Second
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = 500 * time.Millisecond
	}
	if cfg.BackoffMax <= 0 {
		cfg.BackoffMax = time.Minute
	}
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	if clk == nil {
		clk = clock.New()
	}
	return &Kind{
		cfg:    cfg,
		logger: logger,
		clk:    clk,
		client: &http.Client{Timeout: cfg.ProbeTimeout},
	}
}

// Construct returns a not-yet-started monitor for the endpoint URL.
func (k *Kind) Construct(id string) *Monitor {
	return &Monitor{
		url:      id,
		interval: k.cfg.ProbeInterval,
		client:   k.client,
		clk:      k.clk,
		logger:   k.logger,
		back:     newBackoff(k.cfg.BackoffBase, k.cfg.BackoffMax),
	}
}

// OnStarted is a no-op: Start itself drives the monitor to readiness.
func (k *Kind) OnStarted(id string, m *Monitor) {
	k.logger.Debug("monitor started", log.String("url", id))
}

var _ refcount.Kind[string, *Monitor] = (*Kind)(nil)
