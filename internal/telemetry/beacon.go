// Package telemetry publishes an optional MQTT presence beacon for a
// processor (spec.md §4.9 supplement, component C15). It is inert unless
// an MQTT broker host is configured; nothing in the core data path depends
// on it.
package telemetry

import (
	"encoding/json"
	"log"
	"time"

	"github.com/shirou/gopsutil/v3/process"

	"github.com/sua-org/gidence-scm/internal/mqttclient"
	"github.com/sua-org/gidence-scm/internal/procconfig"
)

const beaconPeriod = 15 * time.Second

type beaconPayload struct {
	ProcessorID  string  `json:"processor_id"`
	Version      int64   `json:"version"`
	CameraCount  int     `json:"camera_count"`
	TimestampMS  int64   `json:"timestamp_ms"`
	EnginePID    int32   `json:"engine_pid,omitempty"`
	EngineCPU    float64 `json:"engine_cpu_percent,omitempty"`
	EngineMemRSS uint64  `json:"engine_mem_rss_bytes,omitempty"`
}

// Beacon periodically publishes the processor's own status, plus the
// inference engine subprocess's resource usage when one is running, to
// "gidence-scm/<processor_id>/status" over MQTT.
type Beacon struct {
	Store  *procconfig.Store
	Client *mqttclient.Client
	Topic  string

	// PIDSource reports the current engine subprocess pid (0 if none is
	// running). Optional: nil omits engine resource fields entirely.
	PIDSource func() int32
}

// New constructs a Beacon. client may be nil, in which case Run is a no-op
// for the lifetime of done — this is the "absent MQTT host" idle case.
func New(store *procconfig.Store, client *mqttclient.Client, processorID string) *Beacon {
	return &Beacon{
		Store:  store,
		Client: client,
		Topic:  "gidence-scm/" + processorID + "/status",
	}
}

func (b *Beacon) Run(done <-chan struct{}) {
	if b.Client == nil {
		log.Printf("[telemetry] no mqtt broker configured, beacon idling")
		<-done
		return
	}

	ticker := time.NewTicker(beaconPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			b.publishOnce()
		}
	}
}

func (b *Beacon) publishOnce() {
	processor := b.Store.Processor()
	payload := beaconPayload{
		ProcessorID: processor.ID,
		Version:     processor.Version,
		CameraCount: len(b.Store.Cameras()),
		TimestampMS: time.Now().UnixMilli(),
	}

	if b.PIDSource != nil {
		if pid := b.PIDSource(); pid != 0 {
			if proc, err := process.NewProcess(pid); err == nil {
				payload.EnginePID = pid
				if cpu, err := proc.CPUPercent(); err == nil {
					payload.EngineCPU = cpu
				}
				if mem, err := proc.MemoryInfo(); err == nil && mem != nil {
					payload.EngineMemRSS = mem.RSS
				}
			}
		}
	}

	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("[telemetry] marshal beacon: %v", err)
		return
	}

	if err := b.Client.Publish(b.Topic, 0, false, data); err != nil {
		log.Printf("[telemetry] publish beacon: %v", err)
	}
}
