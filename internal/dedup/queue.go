package dedup

import "github.com/sua-org/gidence-scm/internal/evidence"

// Queue is the single-consumer FIFO between the local socket receiver and
// the dedup worker. A buffered channel gives exactly the ordering
// guarantee spec.md §5 asks for within one camera (single-consumer FIFO)
// without the busy-poll loop an explicit "10Hz when idle" scheduler would
// need in a non-async runtime — the consumer blocks on an empty queue and
// wakes immediately when work arrives, which is the Go-idiomatic reading
// of "no sleeping when work remains".
type Queue struct {
	ch chan evidence.Envelope
}

// NewQueue creates a FIFO with the given buffer capacity. Capacity only
// bounds burst absorption; the receiver's Push never drops an envelope,
// it blocks the producing goroutine instead (back-pressure, not loss).
func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = 1024
	}
	return &Queue{ch: make(chan evidence.Envelope, capacity)}
}

// Push appends an envelope to the tail of the queue.
func (q *Queue) Push(env evidence.Envelope) {
	q.ch <- env
}

// Pop blocks until an envelope is available or done is closed, in which
// case it returns (zero, false).
func (q *Queue) Pop(done <-chan struct{}) (evidence.Envelope, bool) {
	select {
	case env := <-q.ch:
		return env, true
	case <-done:
		return evidence.Envelope{}, false
	}
}
