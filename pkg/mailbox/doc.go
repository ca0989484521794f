// Package mailbox provides the serial execution substrate the reference
// manager is built on.
//
// A Mailbox is an unbounded FIFO of operations processed one at a time,
// in arrival order, by a single goroutine. Components that own mutable
// state (a reference manager, a consumer driving a helper) each run
// behind their own mailbox, so none of their state ever needs a lock:
// no two operations on the same mailbox execute concurrently.
//
// Send never blocks the caller, which makes cross-mailbox calls
// fire-and-forget message sends. Coordination between mailboxes happens
// through explicit completion messages, never by waiting on another
// mailbox inside an operation.
package mailbox
