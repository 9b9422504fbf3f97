// Package reading holds the edge's volatile, process-local per-camera
// reading snapshot (spec.md §3, "Reading snapshot"). It is never persisted.
package reading

import (
	"sync"
	"time"

	"github.com/sua-org/gidence-scm/internal/evidence"
)

// Entry is the tuple tracked per camera: the latest envelope (if any), the
// millisecond time it was observed, and an instantaneous fps estimate
// derived from the gap to the previous observation.
type Entry struct {
	Evidence    *evidence.Envelope `json:"evidence,omitempty"`
	LastUpdated int64              `json:"last_update_ms"`
	FPS         float64            `json:"fps"`
}

// Snapshot tracks one Entry per camera id, updated on every ingested
// envelope and read by the edge control API's GET /reading.
type Snapshot struct {
	mu      sync.RWMutex
	cameras map[string]Entry
	now     func() time.Time
}

func New() *Snapshot {
	return &Snapshot{cameras: make(map[string]Entry), now: time.Now}
}

// Touch updates the snapshot entry for a camera with a newly ingested
// envelope, computing an fps estimate from the gap to the prior entry.
func (s *Snapshot) Touch(cameraID string, env evidence.Envelope) {
	s.mu.Lock()
	defer s.mu.Unlock()

	nowMs := s.now().UnixMilli()
	fps := 0.0
	if prev, ok := s.cameras[cameraID]; ok && prev.LastUpdated > 0 {
		gap := nowMs - prev.LastUpdated
		if gap > 0 {
			fps = 1000.0 / float64(gap)
		}
	}

	envCopy := env
	s.cameras[cameraID] = Entry{
		Evidence:    &envCopy,
		LastUpdated: nowMs,
		FPS:         fps,
	}
}

// All returns a copy of the full per-camera map.
func (s *Snapshot) All() map[string]Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]Entry, len(s.cameras))
	for k, v := range s.cameras {
		out[k] = v
	}
	return out
}
