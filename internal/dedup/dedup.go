// Package dedup implements the windowed deduplication filter and the
// evidence artifact writer that sits between the local socket receiver and
// the webhook shipper (spec.md §4.2, component C3).
package dedup

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/sua-org/gidence-scm/internal/evidence"
)

// Window is the dedup suppression window: a repeated (camera, person)
// violation within this many milliseconds of the last one contributes
// nothing.
const Window = 600_000

// ImageSource fetches the most recent frame image for a camera. The
// default implementation reads /tmp/<camera_id>.jpg per spec.md §4.2.
type ImageSource interface {
	LatestFrame(cameraID string) ([]byte, error)
}

// FileImageSource reads the latest frame from a well-known filesystem path.
type FileImageSource struct {
	Dir string // defaults to /tmp when empty
}

func (s FileImageSource) LatestFrame(cameraID string) ([]byte, error) {
	dir := s.Dir
	if dir == "" {
		dir = "/tmp"
	}
	return os.ReadFile(filepath.Join(dir, cameraID+".jpg"))
}

type key struct {
	cameraID string
	personID string
}

type lastSeen struct {
	timestamp int64
}

// Worker drains the FIFO queue, applies the windowed dedup policy, and
// writes surviving envelopes as evidence/<id>.{json,jpg} pairs.
type Worker struct {
	queue       *Queue
	images      ImageSource
	evidenceDir string

	mu         sync.Mutex
	violations map[key]lastSeen
}

// NewWorker constructs a dedup worker writing artifacts under evidenceDir
// (created if missing).
func NewWorker(queue *Queue, images ImageSource, evidenceDir string) *Worker {
	return &Worker{
		queue:       queue,
		images:      images,
		evidenceDir: evidenceDir,
		violations:  make(map[key]lastSeen),
	}
}

// Run processes envelopes until done is closed.
func (w *Worker) Run(done <-chan struct{}) error {
	if err := os.MkdirAll(w.evidenceDir, 0o755); err != nil {
		return err
	}
	for {
		env, ok := w.queue.Pop(done)
		if !ok {
			return nil
		}
		w.process(env)
	}
}

// process applies the per-person dedup policy to one envelope and writes
// an evidence pair if at least one person contributed a new violation.
func (w *Worker) process(env evidence.Envelope) {
	newViolation := false

	w.mu.Lock()
	for _, p := range env.Person {
		k := key{cameraID: env.CameraID, personID: p.ID}
		prev, seen := w.violations[k]
		if seen && env.Timestamp-prev.timestamp < Window {
			continue
		}
		if p.HasViolation() {
			newViolation = true
			w.violations[k] = lastSeen{timestamp: env.Timestamp}
		}
	}
	w.mu.Unlock()

	if !newViolation {
		return
	}

	image, err := w.images.LatestFrame(env.CameraID)
	if err != nil {
		log.Printf("[dedup] no frame available for camera %s, dropping envelope %s: %v", env.CameraID, env.ID, err)
		return
	}

	if err := w.writeArtifact(env, image); err != nil {
		log.Printf("[dedup] failed to write evidence %s: %v", env.ID, err)
	}
}

// writeArtifact persists the jpg before the json, so a shipper scan never
// observes a json file with no sibling jpg (spec.md §8 invariant).
func (w *Worker) writeArtifact(env evidence.Envelope, image []byte) error {
	jpgPath := filepath.Join(w.evidenceDir, env.ID+".jpg")
	jsonPath := filepath.Join(w.evidenceDir, env.ID+".json")

	if err := os.WriteFile(jpgPath, image, 0o644); err != nil {
		return fmt.Errorf("write jpg: %w", err)
	}

	data, err := json.Marshal(env)
	if err != nil {
		os.Remove(jpgPath)
		return fmt.Errorf("marshal envelope: %w", err)
	}
	if err := os.WriteFile(jsonPath, data, 0o644); err != nil {
		os.Remove(jpgPath)
		return fmt.Errorf("write json: %w", err)
	}

	log.Printf("[dedup] wrote evidence pair %s (camera=%s)", env.ID, env.CameraID)
	return nil
}
