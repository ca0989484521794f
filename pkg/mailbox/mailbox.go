package mailbox

import (
	"context"
	"errors"
	"sync"

	"github.com/bft-labs/refkeeper/pkg/log"
)

// ErrClosed is returned by Flush when the mailbox was closed before the
// flush fence could run.
var ErrClosed = errors.New("mailbox closed")

// Mailbox is a single-consumer queue of operations. Operations sent to
// it run strictly one at a time, in the order they were sent. Send is
// safe to call from any goroutine and never blocks.
//
// The zero value is not usable; create instances with New and call
// Start exactly once before sending.
type Mailbox struct {
	name   string
	logger log.Logger

	mu     sync.Mutex
	queue  []func()
	closed bool

	wake chan struct{}
	done chan struct{}
}

// New creates a mailbox. The name is used only in log output. A nil
// logger defaults to the no-op logger.
func New(name string, logger log.Logger) *Mailbox {
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	return &Mailbox{
		name:   name,
		logger: logger,
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

// Start launches the processing goroutine. Must be called exactly once.
func (m *Mailbox) Start() {
	go m.run()
}

// Send queues op for execution. It never blocks; the queue grows as
// needed. Operations sent after Close are dropped and logged.
func (m *Mailbox) Send(op func()) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		m.logger.Debug("dropping operation sent to closed mailbox",
			log.String("mailbox", m.name),
		)
		return
	}
	m.queue = append(m.queue, op)
	m.mu.Unlock()

	select {
	case m.wake <- struct{}{}:
	default:
	}
}

// Close stops the mailbox. Operations already queued still run;
// subsequent sends are dropped. Safe to call more than once.
func (m *Mailbox) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	m.mu.Unlock()

	select {
	case m.wake <- struct{}{}:
	default:
	}
}

// Done returns a channel closed once the processing goroutine has
// drained the queue and exited after Close.
func (m *Mailbox) Done() <-chan struct{} {
	return m.done
}

// Flush blocks until every operation queued before the call has run,
// or the context expires. Returns ErrClosed if the mailbox shut down
// before the fence was reached.
func (m *Mailbox) Flush(ctx context.Context) error {
	fence := make(chan struct{})
	m.Send(func() { close(fence) })

	select {
	case <-fence:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-m.done:
		// The fence may have run as part of the final drain.
		select {
		case <-fence:
			return nil
		default:
			return ErrClosed
		}
	}
}

func (m *Mailbox) run() {
	defer close(m.done)
	for {
		m.mu.Lock()
		if len(m.queue) == 0 {
			if m.closed {
				m.mu.Unlock()
				return
			}
			m.mu.Unlock()
			<-m.wake
			continue
		}
		op := m.queue[0]
		m.queue = m.queue[1:]
		m.mu.Unlock()

		op()
	}
}
