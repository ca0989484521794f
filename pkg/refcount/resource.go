package refcount

// Resource is the contract a managed resource satisfies. The only way
// to implement it is to embed Base, which supplies the bookkeeping the
// Manager owns and the upcall handles back into it.
type Resource[K comparable] interface {
	// refBase exposes the embedded bookkeeping to the Manager.
	refBase() *Base[K]

	// Start is invoked by the Manager at most once per generation, once
	// the instance is clear to run. The resource must, at some point
	// after Start, call NotifyReady exactly once.
	Start()

	// OnUnreferenced is invoked by the Manager exactly once per started
	// generation, after the reference count reaches zero. The resource
	// must eventually, possibly after arbitrary asynchronous work, call
	// NotifyCleanupDone. Base provides a default that completes
	// immediately, for resources with no teardown work.
	OnUnreferenced()
}

// Kind supplies the hooks that specialize a Manager to one resource
// kind.
type Kind[K comparable, R Resource[K]] interface {
	// Construct returns a new, not-yet-started resource for id.
	Construct(id K) R

	// OnStarted runs immediately after the Manager has issued Start for
	// res. It must set in motion whatever eventually drives the resource
	// to call NotifyReady; it may be a no-op when Start itself is
	// enough.
	OnStarted(id K, res R)
}

// Base carries the per-generation bookkeeping for a managed resource.
// Embed it as a field of the concrete resource type.
//
// The state and reference count held here are owned and mutated only by
// the Manager, never by the resource itself or by consumers, even
// though the resource physically holds them.
type Base[K comparable] struct {
	id    K
	state State
	refs  int

	// Upcall handles into the owning Manager, installed when the
	// instance is registered. The resource never holds the Manager
	// itself.
	notifyReady   func()
	notifyCleaned func()
}

func (b *Base[K]) refBase() *Base[K] { return b }

// ID returns the identifier this instance was constructed for.
func (b *Base[K]) ID() K { return b.id }

// NotifyReady reports startup complete to the owning Manager. The
// resource must call it exactly once per generation, after Start.
// Late or duplicate calls are ignored by the Manager.
func (b *Base[K]) NotifyReady() {
	if b.notifyReady == nil {
		panic("refcount: NotifyReady on a resource not registered with a Manager")
	}
	b.notifyReady()
}

// NotifyCleanupDone reports teardown complete to the owning Manager,
// unblocking the next generation for this identifier.
func (b *Base[K]) NotifyCleanupDone() {
	if b.notifyCleaned == nil {
		panic("refcount: NotifyCleanupDone on a resource not registered with a Manager")
	}
	b.notifyCleaned()
}

// OnUnreferenced is the default teardown: it reports completion
// immediately. Resources with real cleanup work shadow this method.
func (b *Base[K]) OnUnreferenced() {
	b.NotifyCleanupDone()
}
