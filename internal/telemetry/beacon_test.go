package telemetry

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sua-org/gidence-scm/internal/procconfig"
)

func newTestStore(t *testing.T) *procconfig.Store {
	t.Helper()
	dir := t.TempDir()
	s, err := procconfig.Load(
		filepath.Join(dir, "processor.json"),
		filepath.Join(dir, "camera.json"),
		func() procconfig.Processor { return procconfig.Processor{ID: "proc-1", Version: 1} },
	)
	require.NoError(t, err)
	return s
}

func TestRun_IdlesWithoutAClient(t *testing.T) {
	b := New(newTestStore(t), nil, "proc-1")
	done := make(chan struct{})

	finished := make(chan struct{})
	go func() {
		b.Run(done)
		close(finished)
	}()

	close(done)
	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after done was closed")
	}
}

