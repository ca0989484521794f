package refcount

import (
	"context"
	"fmt"

	"github.com/bft-labs/refkeeper/pkg/log"
	"github.com/bft-labs/refkeeper/pkg/mailbox"
)

// Callback receives an identifier and its live resource. Callbacks
// registered through Acquire are dispatched on their own goroutines, so
// a slow consumer never blocks the Manager.
type Callback[K comparable, R Resource[K]] func(id K, res R)

// Manager owns the lifecycle of every resource of one kind. Consumers
// request references with Acquire and return them with Release;
// resources report their lifecycle milestones through
// NotifyStartupComplete and NotifyCleanupComplete (usually via the
// Base upcall helpers).
//
// All four operations are asynchronous message sends: they queue on the
// Manager's mailbox and are processed strictly one at a time, in order.
type Manager[K comparable, R Resource[K]] struct {
	name   string
	kind   Kind[K, R]
	logger log.Logger
	box    *mailbox.Mailbox

	// Owned by the mailbox goroutine; never touched from outside it.
	current  map[K]R
	draining map[K]map[*Base[K]]struct{}
	pending  map[K][]Callback[K, R]
}

// NewManager creates a Manager for one resource kind. The name is used
// in log output. Call Start before sending requests.
func NewManager[K comparable, R Resource[K]](name string, kind Kind[K, R], opts ...Option) *Manager[K, R] {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Manager[K, R]{
		name:     name,
		kind:     kind,
		logger:   o.logger,
		box:      mailbox.New(name, o.logger),
		current:  make(map[K]R),
		draining: make(map[K]map[*Base[K]]struct{}),
		pending:  make(map[K][]Callback[K, R]),
	}
}

// Start begins processing requests.
func (m *Manager[K, R]) Start() {
	m.box.Start()
}

// Stop shuts the Manager down. Requests already queued still run;
// later sends are dropped. Blocks until the mailbox drains or the
// context expires.
func (m *Manager[K, R]) Stop(ctx context.Context) error {
	m.box.Close()
	select {
	case <-m.box.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Flush blocks until every request queued before the call has been
// processed. Intended for orderly shutdown and tests.
func (m *Manager[K, R]) Flush(ctx context.Context) error {
	return m.box.Flush(ctx)
}

// Inspect runs fn on the Manager's mailbox with the number of current
// instances and of identifiers still draining. Useful for shutdown
// accounting; fn must not call back into the Manager.
func (m *Manager[K, R]) Inspect(fn func(current, draining int)) {
	m.box.Send(func() { fn(len(m.current), len(m.draining)) })
}

// Acquire registers interest in id and increments its reference count.
// The instance is constructed on first acquire and reused afterwards.
// If callback is non-nil it is invoked exactly once with the live
// resource: immediately if the instance is already live, otherwise when
// it becomes live. Callbacks are not deduplicated: registering the same
// function for the same identifier twice fires it twice. Every Acquire
// must be matched by exactly one Release.
func (m *Manager[K, R]) Acquire(id K, callback Callback[K, R]) {
	m.box.Send(func() { m.acquire(id, callback) })
}

// Release returns a reference to id. When the count reaches zero the
// instance is torn down (or discarded silently if it never started).
// Releasing an identifier with no current instance is a caller bug and
// panics.
func (m *Manager[K, R]) Release(id K) {
	m.box.Send(func() { m.release(id) })
}

// NotifyStartupComplete is the upcall a resource makes once it is ready
// for use. Notifications from stale instances, or instances in an
// unexpected state, are logged and ignored.
func (m *Manager[K, R]) NotifyStartupComplete(id K, res R) {
	m.box.Send(func() { m.onStartupComplete(id, res) })
}

// NotifyCleanupComplete is the upcall a resource makes once its
// teardown has finished. It may unblock the start of the next
// generation for id.
func (m *Manager[K, R]) NotifyCleanupComplete(id K, res R) {
	m.box.Send(func() { m.onCleanupComplete(id, res) })
}

func (m *Manager[K, R]) acquire(id K, callback Callback[K, R]) {
	res, ok := m.current[id]
	if !ok {
		m.logger.Debug("constructing resource",
			log.String("manager", m.name),
			log.Any("id", id),
		)
		res = m.kind.Construct(id)
		b := res.refBase()
		b.id = id
		b.state = StateCreated
		b.notifyReady = func() { m.NotifyStartupComplete(id, res) }
		b.notifyCleaned = func() { m.NotifyCleanupComplete(id, res) }
		m.current[id] = res
	} else {
		m.logger.Debug("reusing resource",
			log.String("manager", m.name),
			log.Any("id", id),
			log.Int("refs", res.refBase().refs),
		)
	}

	if callback != nil {
		m.pending[id] = append(m.pending[id], callback)
	}
	res.refBase().refs++

	// Depending on the state of the instance we may need to start it,
	// or call back immediately.
	m.maybeStart(id)
	m.maybeNotify(id)
}

func (m *Manager[K, R]) release(id K) {
	res, ok := m.current[id]
	if !ok {
		panic(fmt.Sprintf("refcount: release of %v on manager %q with no current instance (unmatched Release?)", id, m.name))
	}
	b := res.refBase()
	b.refs--
	if b.refs < 0 {
		panic(fmt.Sprintf("refcount: reference count for %v on manager %q dropped below zero", id, m.name))
	}
	m.logger.Debug("released reference",
		log.String("manager", m.name),
		log.Any("id", id),
		log.Int("refs", b.refs),
	)
	if b.refs > 0 {
		return
	}

	if b.state == StateCreated {
		m.logger.Debug("discarding never-started resource",
			log.String("manager", m.name),
			log.Any("id", id),
		)
	} else {
		m.logger.Debug("unreferenced, tearing down",
			log.String("manager", m.name),
			log.Any("id", id),
			log.String("state", b.state.String()),
		)
		b.state = StateStopping
		set, ok := m.draining[id]
		if !ok {
			set = make(map[*Base[K]]struct{})
			m.draining[id] = set
		}
		set[b] = struct{}{}
		go res.OnUnreferenced()
	}
	delete(m.current, id)
	// A released-to-zero identifier has no live instance left to notify.
	delete(m.pending, id)
}

func (m *Manager[K, R]) onStartupComplete(id K, res R) {
	cur, ok := m.current[id]
	if !ok || cur.refBase() != res.refBase() {
		m.logger.Info("ignoring startup notification from stale instance",
			log.String("manager", m.name),
			log.Any("id", id),
		)
		return
	}
	b := res.refBase()
	if b.state != StateStarting {
		m.logger.Info("ignoring startup notification in unexpected state",
			log.String("manager", m.name),
			log.Any("id", id),
			log.String("state", b.state.String()),
		)
		return
	}
	b.state = StateLive
	m.maybeNotify(id)
}

func (m *Manager[K, R]) onCleanupComplete(id K, res R) {
	b := res.refBase()
	set, ok := m.draining[id]
	if !ok {
		m.logger.Debug("ignoring duplicate cleanup notification",
			log.String("manager", m.name),
			log.Any("id", id),
		)
		return
	}
	if _, ok := set[b]; !ok {
		m.logger.Debug("ignoring cleanup notification from unknown instance",
			log.String("manager", m.name),
			log.Any("id", id),
		)
		return
	}
	delete(set, b)
	if len(set) == 0 {
		// The empty entry must go away or it would block the next
		// generation forever.
		delete(m.draining, id)
		m.maybeStart(id)
	}
}

// maybeStart starts the current instance for id iff it exists, has not
// been started yet, and no previous instance is still draining.
func (m *Manager[K, R]) maybeStart(id K) {
	res, ok := m.current[id]
	if !ok {
		return
	}
	b := res.refBase()
	if b.state != StateCreated {
		return
	}
	if _, stillDraining := m.draining[id]; stillDraining {
		m.logger.Debug("start deferred until previous instance drains",
			log.String("manager", m.name),
			log.Any("id", id),
		)
		return
	}
	m.logger.Debug("starting resource",
		log.String("manager", m.name),
		log.Any("id", id),
	)
	b.state = StateStarting
	res.Start()
	m.kind.OnStarted(id, res)
}

// maybeNotify flushes the pending callbacks for id if its current
// instance is live. Each callback runs on its own goroutine and fires
// exactly once.
func (m *Manager[K, R]) maybeNotify(id K) {
	res, ok := m.current[id]
	if !ok || res.refBase().state != StateLive {
		return
	}
	for _, cb := range m.pending[id] {
		cb := cb
		go cb(id, res)
	}
	delete(m.pending, id)
}
