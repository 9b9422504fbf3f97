package socketrecv

import (
	"encoding/json"
	"net"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sua-org/gidence-scm/internal/evidence"
)

type fakeQueue struct {
	mu   sync.Mutex
	envs []evidence.Envelope
}

func (q *fakeQueue) Push(env evidence.Envelope) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.envs = append(q.envs, env)
}

func (q *fakeQueue) snapshot() []evidence.Envelope {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]evidence.Envelope, len(q.envs))
	copy(out, q.envs)
	return out
}

type fakeReading struct {
	mu      sync.Mutex
	touched []string
}

func (r *fakeReading) Touch(cameraID string, env evidence.Envelope) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.touched = append(r.touched, cameraID)
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func TestRun_AcceptsValidEnvelope(t *testing.T) {
	sockPath := filepath.Join(t.TempDir(), "gidence.sock")
	queue := &fakeQueue{}
	reading := &fakeReading{}
	recv := New(sockPath, queue, reading)

	done := make(chan struct{})
	go recv.Run(done)
	waitFor(t, time.Second, func() bool {
		_, err := net.Dial("unix", sockPath)
		return err == nil
	})
	defer close(done)

	conn, err := net.Dial("unix", sockPath)
	require.NoError(t, err)
	payload, _ := json.Marshal(evidence.Envelope{CameraID: "cam-1", Timestamp: 1000})
	_, err = conn.Write(payload)
	require.NoError(t, err)
	conn.Close()

	waitFor(t, time.Second, func() bool { return len(queue.snapshot()) == 1 })
	envs := queue.snapshot()
	assert.Equal(t, "cam-1", envs[0].CameraID)
	assert.NotEmpty(t, envs[0].ID, "receiver must assign an id to every accepted envelope")
}

func TestRun_DropsMalformedEnvelope(t *testing.T) {
	sockPath := filepath.Join(t.TempDir(), "gidence.sock")
	queue := &fakeQueue{}
	recv := New(sockPath, queue, nil)

	done := make(chan struct{})
	go recv.Run(done)
	waitFor(t, time.Second, func() bool {
		_, err := net.Dial("unix", sockPath)
		return err == nil
	})
	defer close(done)

	conn, err := net.Dial("unix", sockPath)
	require.NoError(t, err)
	_, err = conn.Write([]byte("not json"))
	require.NoError(t, err)
	conn.Close()

	time.Sleep(100 * time.Millisecond)
	assert.Empty(t, queue.snapshot())
}

func TestRun_DropsInvalidEnvelope(t *testing.T) {
	sockPath := filepath.Join(t.TempDir(), "gidence.sock")
	queue := &fakeQueue{}
	recv := New(sockPath, queue, nil)

	done := make(chan struct{})
	go recv.Run(done)
	waitFor(t, time.Second, func() bool {
		_, err := net.Dial("unix", sockPath)
		return err == nil
	})
	defer close(done)

	conn, err := net.Dial("unix", sockPath)
	require.NoError(t, err)
	payload, _ := json.Marshal(evidence.Envelope{Timestamp: 1000})
	_, err = conn.Write(payload)
	require.NoError(t, err)
	conn.Close()

	time.Sleep(100 * time.Millisecond)
	assert.Empty(t, queue.snapshot(), "an envelope missing camera_id must fail Validate and never reach the queue")
}
