package daemon

import (
	"github.com/benbjohnson/clock"

	"github.com/bft-labs/refkeeper/pkg/log"
)

// Option configures optional behavior of the Daemon.
type Option func(*options)

type options struct {
	logger  log.Logger
	emitter EventEmitter
	clk     clock.Clock
}

func defaultOptions() options {
	return options{
		logger: log.NewNoopLogger(),
		clk:    clock.New(),
	}
}

// WithLogger sets the logger used by the daemon and everything it owns.
// If not provided, a no-op logger is used.
func WithLogger(logger log.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithEventEmitter sets a handler for lifecycle state changes.
func WithEventEmitter(emitter EventEmitter) Option {
	return func(o *options) {
		o.emitter = emitter
	}
}

// WithClock sets the clock driving probe scheduling. Tests inject a
// mock; the default is the wall clock.
func WithClock(clk clock.Clock) Option {
	return func(o *options) {
		o.clk = clk
	}
}
