// Package push implements the server's push notification dispatcher
// (spec.md §4.10, component C11): drains the evidence queue on a tick,
// resolves each cluster's subscriber audience, rate-limits the per-user
// socket digest, dispatches mobile push through a provider, and prunes
// subscribers on terminal provider errors.
package push

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/sua-org/gidence-scm/internal/hub"
	"github.com/sua-org/gidence-scm/internal/store"
)

const (
	tickPeriod      = 5 * time.Second
	cooldown        = 60 * time.Second
	credentialTicks = 240 // ~20 min at a 5s tick
)

// Provider abstracts the mobile push transport. statusCode follows the
// provider's own taxonomy; Dispatcher interprets 403/410 as terminal.
type Provider interface {
	Push(ctx context.Context, token, title, body string) (statusCode int, err error)
}

// Dispatcher drains a queue of freshly persisted evidence records and fans
// each out to its cluster's subscriber audience.
type Dispatcher struct {
	Store    *store.Store
	Hub      *hub.Hub
	Provider Provider

	// Rebuild returns a freshly authenticated Provider; invoked every
	// credentialTicks. May be nil if the provider never needs rotation.
	Rebuild func() (Provider, error)

	mu       sync.Mutex
	queue    []store.EvidenceRecord
	lastPush map[string]time.Time
}

func New(st *store.Store, h *hub.Hub, provider Provider, rebuild func() (Provider, error)) *Dispatcher {
	return &Dispatcher{
		Store:    st,
		Hub:      h,
		Provider: provider,
		Rebuild:  rebuild,
		lastPush: make(map[string]time.Time),
	}
}

// Enqueue implements intake.Dispatcher.
func (d *Dispatcher) Enqueue(rec store.EvidenceRecord) {
	d.mu.Lock()
	d.queue = append(d.queue, rec)
	d.mu.Unlock()
}

func (d *Dispatcher) Run(done <-chan struct{}) {
	ticker := time.NewTicker(tickPeriod)
	defer ticker.Stop()

	var tick int
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			tick++
			if tick%credentialTicks == 0 && d.Rebuild != nil {
				d.rebuildProvider()
			}
			d.drain()
		}
	}
}

func (d *Dispatcher) rebuildProvider() {
	p, err := d.Rebuild()
	if err != nil {
		log.Printf("[push] credential refresh failed, keeping existing provider: %v", err)
		return
	}
	d.Provider = p
	log.Printf("[push] provider credentials refreshed")
}

func (d *Dispatcher) drain() {
	d.mu.Lock()
	batch := d.queue
	d.queue = nil
	d.mu.Unlock()

	for _, rec := range batch {
		d.dispatch(rec)
	}
}

func (d *Dispatcher) dispatch(rec store.EvidenceRecord) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	users, err := d.Store.Users.FindByClusterOrAdmin(ctx, rec.ClusterID)
	if err != nil {
		log.Printf("[push] resolve audience for cluster %s: %v", rec.ClusterID, err)
		return
	}

	clusterName, processorName, cameraName := d.resolveNames(ctx, rec)
	title, body := notificationText(rec, processorName, cameraName)

	for _, u := range users {
		d.maybeBroadcastDigest(u.ID, rec, clusterName, processorName, cameraName)

		subs, err := d.Store.Subscribers.FindByUser(ctx, u.ID)
		if err != nil {
			log.Printf("[push] resolve subscribers for user %s: %v", u.ID, err)
			continue
		}
		for _, sub := range subs {
			d.pushOne(ctx, sub, title, body)
		}
	}
}

func (d *Dispatcher) maybeBroadcastDigest(userID string, rec store.EvidenceRecord, clusterName, processorName, cameraName string) {
	d.mu.Lock()
	last, ok := d.lastPush[userID]
	elapsed := !ok || time.Since(last) >= cooldown
	if elapsed {
		d.lastPush[userID] = time.Now()
	}
	d.mu.Unlock()

	if !elapsed || d.Hub == nil {
		return
	}
	d.Hub.BroadcastViolation([]string{userID}, hub.ViolationView{
		ID:            rec.ID,
		ClusterID:     rec.ClusterID,
		ClusterName:   clusterName,
		ProcessorID:   rec.ProcessorID,
		ProcessorName: processorName,
		CameraID:      rec.CameraID,
		CameraName:    cameraName,
		Timestamp:     rec.Timestamp,
	})
}

func (d *Dispatcher) pushOne(ctx context.Context, sub store.Subscriber, title, body string) {
	if d.Provider == nil {
		return
	}
	status, err := d.Provider.Push(ctx, sub.AppleToken, title, body)
	if err != nil {
		log.Printf("[push] dispatch to subscriber %s: %v", sub.ID, err)
		return
	}
	if status == 403 || status == 410 {
		log.Printf("[push] subscriber %s rejected with terminal status %d, pruning", sub.ID, status)
		if err := d.Store.Subscribers.Delete(ctx, sub.ID); err != nil {
			log.Printf("[push] prune subscriber %s: %v", sub.ID, err)
		}
	}
}

// resolveNames looks up the display name for each ref on an evidence
// record, falling back to the bare id when the referenced row is gone —
// the same graceful-degradation original_source's ViewEvidence::from
// applies to a dangling cluster/processor/camera reference.
func (d *Dispatcher) resolveNames(ctx context.Context, rec store.EvidenceRecord) (clusterName, processorName, cameraName string) {
	clusterName = rec.ClusterID
	if c, err := d.Store.Clusters.FindByID(ctx, rec.ClusterID); err == nil {
		clusterName = c.Name
	}
	processorName = rec.ProcessorID
	if p, err := d.Store.Processors.FindByID(ctx, rec.ProcessorID); err == nil {
		processorName = p.Name
	}
	cameraName = rec.CameraID
	if cam, err := d.Store.Cameras.FindByID(ctx, rec.CameraID); err == nil {
		cameraName = cam.Name
	}
	return clusterName, processorName, cameraName
}

func notificationText(rec store.EvidenceRecord, processorName, cameraName string) (title, body string) {
	count := 0
	for _, p := range rec.Person {
		if p.HasViolation() {
			count++
		}
	}

	title = fmt.Sprintf("%d violation(s) detected", count)
	body = fmt.Sprintf("%s / %s", processorName, cameraName)
	return title, body
}
