package refcount

import "github.com/bft-labs/refkeeper/pkg/log"

// Option configures optional behavior of a Manager.
type Option func(*options)

type options struct {
	logger log.Logger
}

func defaultOptions() options {
	return options{
		logger: log.NewNoopLogger(),
	}
}

// WithLogger sets the logger used by the Manager and its mailbox.
// If not provided, a no-op logger is used.
func WithLogger(logger log.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}
