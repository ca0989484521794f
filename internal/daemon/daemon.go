// Package daemon wires the refcount machinery into a long-running
// agent: a Manager of endpoint monitors, a Helper tracking the desired
// endpoint set, and an optional config watcher that reconciles that set
// at runtime.
package daemon

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/bft-labs/refkeeper/internal/monitor"
	"github.com/bft-labs/refkeeper/pkg/log"
	"github.com/bft-labs/refkeeper/pkg/mailbox"
	"github.com/bft-labs/refkeeper/pkg/refcount"
)

// Daemon is the refkeeper agent. It acts as one consumer of the monitor
// Manager: the set of endpoints it requires is held in a refcount
// Helper, and every add or drop flows through acquire/release so
// monitors are shared, started, and torn down by reference count.
type Daemon struct {
	cfg    Config
	logger log.Logger
	runID  string

	lifecycle *Lifecycle
	mgr       *refcount.Manager[string, *monitor.Monitor]
	box       *mailbox.Mailbox
	helper    *refcount.Helper[string, *monitor.Monitor]

	// desired is owned by the daemon's mailbox.
	desired map[string]struct{}
}

// New creates a Daemon from cfg. The daemon is created stopped; call
// Run to start it.
func New(cfg Config, opts ...Option) (*Daemon, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	d := &Daemon{
		cfg:       cfg,
		logger:    o.logger,
		runID:     uuid.NewString(),
		lifecycle: NewLifecycle(o.logger, o.emitter),
		desired:   make(map[string]struct{}),
	}

	kind := monitor.NewKind(monitor.Config{
		ProbeInterval: cfg.ProbeInterval,
		ProbeTimeout:  cfg.ProbeTimeout,
	}, o.logger, o.clk)
	d.mgr = refcount.NewManager[string, *monitor.Monitor]("monitors", kind,
		refcount.WithLogger(o.logger))
	d.box = mailbox.New("daemon", o.logger)
	d.helper = refcount.NewHelper(d.box, d.mgr, d.onAllReady, o.logger)

	return d, nil
}

// State returns the daemon's lifecycle state.
func (d *Daemon) State() State {
	return d.lifecycle.State()
}

// Stop requests graceful shutdown of a running daemon.
func (d *Daemon) Stop() {
	d.lifecycle.Cancel()
}

// Run starts the daemon and blocks until the context is cancelled or
// Stop is called, then shuts down gracefully.
func (d *Daemon) Run(ctx context.Context) error {
	if err := d.lifecycle.TransitionTo(StateStarting, "daemon starting"); err != nil {
		return err
	}
	d.logger.Info("refkeeper starting",
		log.String("run_id", d.runID),
		log.Int("endpoints", len(d.cfg.Endpoints)),
		log.Bool("watch", d.cfg.Watch),
	)

	runCtx, cancel := context.WithCancel(ctx)
	d.lifecycle.SetCancel(cancel)
	defer cancel()

	d.mgr.Start()
	d.box.Start()
	d.Reconcile(d.cfg.Endpoints)

	if d.cfg.Watch {
		w := NewWatcher(d.cfg.ConfigPath, d.cfg.DebounceDelay, d.logger, d.Reconcile)
		d.lifecycle.AddWorker()
		go func() {
			defer d.lifecycle.WorkerDone()
			w.Run(runCtx)
		}()
	}

	if err := d.lifecycle.TransitionTo(StateRunning, "startup complete"); err != nil {
		cancel()
		d.teardownOnError("startup aborted")
		return err
	}

	<-runCtx.Done()

	if err := d.lifecycle.TransitionTo(StateStopping, "shutdown requested"); err != nil {
		d.teardownOnError("shutdown requested")
		return err
	}
	return d.shutdown()
}

// teardownOnError stops the daemon's units on an error path out of Run.
// Best effort: the caller's error wins, anything failing here is only
// logged.
func (d *Daemon) teardownOnError(reason string) {
	if d.lifecycle.State() != StateStopping {
		if err := d.lifecycle.TransitionTo(StateStopping, reason); err != nil {
			d.logger.Warn("teardown transition failed", log.Err(err))
		}
	}
	if err := d.shutdown(); err != nil {
		d.logger.Warn("teardown incomplete", log.Err(err))
	}
}

// Reconcile replaces the desired endpoint set. Safe to call from any
// goroutine; the diffing happens on the daemon's mailbox.
func (d *Daemon) Reconcile(endpoints []string) {
	d.box.Send(func() { d.reconcile(endpoints) })
}

func (d *Daemon) reconcile(endpoints []string) {
	next := make(map[string]struct{}, len(endpoints))
	for _, ep := range endpoints {
		next[ep] = struct{}{}
	}
	for ep := range next {
		if _, ok := d.desired[ep]; !ok {
			d.logger.Info("monitoring endpoint", log.String("url", ep))
			d.helper.AcquireRef(ep)
		}
	}
	for ep := range d.desired {
		if _, ok := next[ep]; !ok {
			d.logger.Info("dropping endpoint", log.String("url", ep))
			d.helper.DiscardRef(ep)
		}
	}
	d.desired = next
}

func (d *Daemon) onAllReady() {
	d.logger.Info("all endpoint monitors ready",
		log.String("run_id", d.runID),
		log.Int("count", len(d.desired)),
	)
}

func (d *Daemon) shutdown() error {
	// The watcher exits with the run context; wait for it first so no
	// reload races the teardown.
	if err := d.lifecycle.WaitWithTimeout(ShutdownTimeout); err != nil {
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()

	// Drop every reference and let the releases reach the manager. The
	// consumer mailbox must stay open until the manager is idle: a
	// discard that raced an in-flight acquire only releases once the
	// acquire callback lands back on this mailbox.
	d.box.Send(func() { d.helper.DiscardAll() })
	if err := d.box.Flush(shutdownCtx); err != nil {
		return err
	}
	if err := d.mgr.Flush(shutdownCtx); err != nil {
		return err
	}

	// Wait for every monitor to confirm cleanup before the mailboxes go
	// away.
	d.awaitReleased(shutdownCtx)

	d.box.Close()
	if err := d.mgr.Stop(shutdownCtx); err != nil {
		return err
	}

	if err := d.lifecycle.TransitionTo(StateStopped, "shutdown complete"); err != nil {
		return err
	}
	d.logger.Info("refkeeper stopped", log.String("run_id", d.runID))
	return nil
}

// awaitReleased polls the manager until no instance is current or
// draining, or the context runs out. Shutdown proceeds either way.
func (d *Daemon) awaitReleased(ctx context.Context) {
	for {
		idle := make(chan bool, 1)
		d.mgr.Inspect(func(current, draining int) { idle <- current+draining == 0 })
		select {
		case ok := <-idle:
			if ok {
				return
			}
		case <-ctx.Done():
			return
		}
		select {
		case <-time.After(10 * time.Millisecond):
		case <-ctx.Done():
			return
		}
	}
}
