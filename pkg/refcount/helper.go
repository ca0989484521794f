package refcount

import (
	"github.com/bft-labs/refkeeper/pkg/log"
	"github.com/bft-labs/refkeeper/pkg/mailbox"
)

// Helper tracks the set of references one consumer needs from a
// Manager. It issues the acquire and release requests, accumulates the
// acquired resources, and fires onReady once every required reference
// is live.
//
// A Helper belongs to the consumer's mailbox: every method must be
// called from operations running on that mailbox, and the onReady
// callback fires there too. The Helper resolves the race between
// discarding an identifier and its acquire landing at the Manager by
// deferring the release until the acquire callback arrives.
type Helper[K comparable, R Resource[K]] struct {
	box     *mailbox.Mailbox
	mgr     *Manager[K, R]
	logger  log.Logger
	onReady func()

	required map[K]struct{}
	pending  map[K]struct{}
	acquired map[K]R
}

// NewHelper creates a Helper for a consumer running on box. onReady may
// be nil. A nil logger defaults to the no-op logger.
func NewHelper[K comparable, R Resource[K]](box *mailbox.Mailbox, mgr *Manager[K, R], onReady func(), logger log.Logger) *Helper[K, R] {
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	return &Helper[K, R]{
		box:      box,
		mgr:      mgr,
		logger:   logger,
		onReady:  onReady,
		required: make(map[K]struct{}),
		pending:  make(map[K]struct{}),
		acquired: make(map[K]R),
	}
}

// AcquireRef adds id to the set of references this consumer requires.
// Idempotent: a second call with no intervening DiscardRef does
// nothing.
func (h *Helper[K, R]) AcquireRef(id K) {
	if _, ok := h.required[id]; ok {
		return
	}
	h.required[id] = struct{}{}
	if _, ok := h.pending[id]; ok {
		// An earlier acquire for this id is still in flight; its
		// callback will see the id is required again.
		return
	}
	h.logger.Debug("acquiring reference", log.Any("id", id))
	h.pending[id] = struct{}{}
	h.mgr.Acquire(id, func(id K, res R) {
		h.box.Send(func() { h.onRefAcquired(id, res) })
	})
}

// DiscardRef drops id from the set of required references. Idempotent:
// does nothing if id is not required. The helper's view updates
// immediately; the release reaches the Manager now, or once an
// in-flight acquire for id resolves.
func (h *Helper[K, R]) DiscardRef(id K) {
	if _, ok := h.required[id]; !ok {
		return
	}
	h.logger.Debug("discarding reference", log.Any("id", id))
	delete(h.required, id)
	delete(h.acquired, id)
	if _, ok := h.pending[id]; !ok {
		h.mgr.Release(id)
	}
}

// DiscardAll discards every currently required reference.
func (h *Helper[K, R]) DiscardAll() {
	ids := make([]K, 0, len(h.required))
	for id := range h.required {
		ids = append(ids, id)
	}
	for _, id := range ids {
		h.DiscardRef(id)
	}
}

// Ready reports whether every required reference has been acquired.
// Compared by membership, not just size, so a stale acquired entry can
// never fake readiness.
func (h *Helper[K, R]) Ready() bool {
	if len(h.required) != len(h.acquired) {
		return false
	}
	for id := range h.required {
		if _, ok := h.acquired[id]; !ok {
			return false
		}
	}
	return true
}

// Each calls fn for every acquired reference until fn returns false.
// Like every other Helper method, only valid from the owning mailbox.
func (h *Helper[K, R]) Each(fn func(id K, res R) bool) {
	for id, res := range h.acquired {
		if !fn(id, res) {
			return
		}
	}
}

func (h *Helper[K, R]) onRefAcquired(id K, res R) {
	wasReady := h.Ready()
	delete(h.pending, id)
	if _, ok := h.required[id]; ok {
		h.acquired[id] = res
	} else {
		// Discarded while the acquire was in flight; return the
		// reference we no longer want.
		h.logger.Debug("reference discarded while in flight, releasing",
			log.Any("id", id),
		)
		h.mgr.Release(id)
	}
	if !wasReady && h.Ready() && h.onReady != nil {
		h.logger.Debug("all required references acquired")
		h.onReady()
	}
}
