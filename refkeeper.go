// Package refkeeper keeps reference-counted resources alive while they are
// needed and tears them down when the last referrer goes away.
//
// The core pieces live in pkg/refcount: a Manager owns at most one live
// instance per identifier and shares it across referrers, and a Helper
// tracks the set of references one consumer holds and reports when all of
// them are ready. pkg/mailbox provides the serialized execution each of
// them runs on.
//
// Example usage:
//
//	box := mailbox.New("pools", logger)
//	mgr := refkeeper.NewManager[string, *Pool]("pools", kind, refkeeper.WithLogger(logger))
//	mgr.Start()
//	box.Start()
//	h := refkeeper.NewHelper(box, mgr, onAllReady, logger)
//	box.Send(func() { h.AcquireRef("pool-a") })
//
// The refkeeper binary (cmd/refkeeper) builds an endpoint health-monitor
// daemon on top of these pieces; Run exposes the same daemon as a library
// call.
package refkeeper

import (
	"context"

	"github.com/bft-labs/refkeeper/internal/daemon"
	"github.com/bft-labs/refkeeper/pkg/log"
	"github.com/bft-labs/refkeeper/pkg/mailbox"
	"github.com/bft-labs/refkeeper/pkg/refcount"
)

// State is the lifecycle state of a managed resource.
type State = refcount.State

// Lifecycle states of a managed resource.
const (
	StateCreated  = refcount.StateCreated
	StateStarting = refcount.StateStarting
	StateLive     = refcount.StateLive
	StateStopping = refcount.StateStopping
)

// Option configures a Manager.
type Option = refcount.Option

// WithLogger sets the logger used by a Manager.
func WithLogger(l log.Logger) Option {
	return refcount.WithLogger(l)
}

// NewManager returns a Manager that owns at most one live instance of R per
// identifier. Call Start before posting requests to it.
func NewManager[K comparable, R refcount.Resource[K]](name string, kind refcount.Kind[K, R], opts ...Option) *refcount.Manager[K, R] {
	return refcount.NewManager(name, kind, opts...)
}

// NewHelper returns a Helper that tracks the references one consumer holds
// against mgr. All Helper methods must run on box.
func NewHelper[K comparable, R refcount.Resource[K]](box *mailbox.Mailbox, mgr *refcount.Manager[K, R], onReady func(), logger log.Logger) *refcount.Helper[K, R] {
	return refcount.NewHelper(box, mgr, onReady, logger)
}

// Config holds the configuration for the endpoint monitoring daemon.
// Use DefaultConfig() to get a Config with sensible defaults.
type Config = daemon.Config

// DefaultConfig returns a Config with sensible default values.
// At minimum, you must set Endpoints before calling Run.
func DefaultConfig() Config {
	return daemon.DefaultConfig()
}

// Run starts the endpoint monitoring daemon with the given configuration.
// It blocks until the context is cancelled, then shuts down gracefully.
// A nil logger silences the daemon.
func Run(ctx context.Context, cfg Config, logger log.Logger) error {
	var opts []daemon.Option
	if logger != nil {
		opts = append(opts, daemon.WithLogger(logger))
	}
	d, err := daemon.New(cfg, opts...)
	if err != nil {
		return err
	}
	return d.Run(ctx)
}
