// Package liveness tracks processor presence leases on the server
// (spec.md §4.7, component C8): a lease is refreshed on every successful
// sync and swept out 30 s after its last refresh, emitting a Left event to
// the hub.
package liveness

import (
	"log"
	"sync"
	"time"
)

const (
	leaseDuration = 30 * time.Second
	sweepInterval = 30 * time.Second
)

// Notifier is implemented by internal/hub's Hub: liveness only needs to
// announce departures, never connections.
type Notifier interface {
	BroadcastLeft(processorID string)
}

// Tracker is a map of processor_id -> expiry_ms guarded by a mutex,
// matching the original implementation's Arc<RwLock<HashMap<String,i64>>>.
type Tracker struct {
	mu       sync.Mutex
	expiry   map[string]time.Time
	notifier Notifier
	now      func() time.Time
}

func New(notifier Notifier) *Tracker {
	return &Tracker{
		expiry:   make(map[string]time.Time),
		notifier: notifier,
		now:      time.Now,
	}
}

// Refresh extends a processor's lease by leaseDuration from now. Called on
// every successful sync, including the stored==submitted no-op branch and
// the stored>submitted branch that hands back the stored view.
func (t *Tracker) Refresh(processorID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.expiry[processorID] = t.now().Add(leaseDuration)
}

// IsAlive reports whether a processor currently holds an unexpired lease.
func (t *Tracker) IsAlive(processorID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	exp, ok := t.expiry[processorID]
	return ok && t.now().Before(exp)
}

// Alive returns the set of processor ids with an unexpired lease.
func (t *Tracker) Alive() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	out := make([]string, 0, len(t.expiry))
	for id, exp := range t.expiry {
		if now.Before(exp) {
			out = append(out, id)
		}
	}
	return out
}

// Snapshot returns processor_id -> lease expiry in epoch milliseconds,
// the shape the hub sends new WebSocket clients on connect (spec.md §4.9).
func (t *Tracker) Snapshot() map[string]int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string]int64, len(t.expiry))
	for id, exp := range t.expiry {
		out[id] = exp.UnixMilli()
	}
	return out
}

// Run sweeps expired leases every sweepInterval until done is closed,
// emitting a Left event per evicted processor. Truth here is eventually
// consistent: a 30 s presence jitter window is accepted (spec.md §9).
func (t *Tracker) Run(done <-chan struct{}) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			t.sweep()
		}
	}
}

func (t *Tracker) sweep() {
	now := t.now()
	var left []string

	t.mu.Lock()
	for id, exp := range t.expiry {
		if now.After(exp) {
			delete(t.expiry, id)
			left = append(left, id)
		}
	}
	t.mu.Unlock()

	for _, id := range left {
		log.Printf("[liveness] processor %s lease expired", id)
		if t.notifier != nil {
			t.notifier.BroadcastLeft(id)
		}
	}
}
