// Package refcount manages the lifecycle of a dynamically-sized
// collection of ref-counted, asynchronously started and stopped
// resources, keyed by opaque identifiers.
//
// A Manager owns at most one current instance per identifier, counts
// the acquire/release calls against it, starts it when it is first
// needed and tears it down when the last reference is returned.
// Because teardown is asynchronous, a fresh instance for an identifier
// may be constructed while the previous one is still draining; the
// Manager holds the new instance back until the old one confirms its
// cleanup, so two generations of the same identifier are never active
// at once.
//
// A Helper sits on the consumer side: it tracks the set of identifiers
// one consumer needs, issues the acquire and release requests, and
// fires a single callback once every required reference is live.
//
// Resources implement the Resource contract by embedding Base and
// providing Start. The per-kind construction and post-start hooks are
// supplied through a Kind, which parameterizes one generic Manager per
// resource kind.
//
// Every Manager runs behind its own mailbox (see pkg/mailbox), so its
// bookkeeping needs no locks: requests are processed strictly one at a
// time. Misuse that would corrupt the count (releasing an identifier
// with no current instance, or driving a count negative) is a caller
// bug and panics loudly rather than returning an error.
package refcount
