package supervisor

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sua-org/gidence-scm/internal/procconfig"
)

func newTestConfigStore(t *testing.T, version int64) *procconfig.Store {
	t.Helper()
	dir := t.TempDir()
	s, err := procconfig.Load(
		filepath.Join(dir, "processor.json"),
		filepath.Join(dir, "camera.json"),
		func() procconfig.Processor {
			return procconfig.Processor{ID: "proc-1", Version: version}
		},
	)
	require.NoError(t, err)
	return s
}

func TestSimulate_NeverSpawnsAndHasNoPID(t *testing.T) {
	store := newTestConfigStore(t, 1)
	sup := New("sleep 100", store, true)

	done := make(chan struct{})
	go sup.Run(done)
	time.Sleep(50 * time.Millisecond)
	close(done)

	assert.Equal(t, int32(0), sup.PID())
}

func TestRun_SpawnsRealSubprocess(t *testing.T) {
	store := newTestConfigStore(t, 1)
	sup := New("sleep 5", store, false)

	done := make(chan struct{})
	go sup.Run(done)

	require.Eventually(t, func() bool { return sup.PID() != 0 }, time.Second, 5*time.Millisecond)
	close(done)
	require.Eventually(t, func() bool { return sup.PID() == 0 }, time.Second, 5*time.Millisecond)
}

func TestRun_RestartsOnVersionBump(t *testing.T) {
	store := newTestConfigStore(t, 1)
	sup := New("sleep 5", store, false)

	done := make(chan struct{})
	go sup.Run(done)

	require.Eventually(t, func() bool { return sup.PID() != 0 }, time.Second, 5*time.Millisecond)
	firstPID := sup.PID()

	_, err := store.UpdateProcessor(func(p *procconfig.Processor) { p.Version = p.Version + 1000 })
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		pid := sup.PID()
		return pid != 0 && pid != firstPID
	}, 3*time.Second, 20*time.Millisecond, "a processor version bump must respawn the engine with a new pid")

	close(done)
}
