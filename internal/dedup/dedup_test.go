package dedup

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sua-org/gidence-scm/internal/evidence"
)

type fakeImages struct {
	frame []byte
	err   error
}

func (f fakeImages) LatestFrame(string) ([]byte, error) {
	return f.frame, f.err
}

func envelope(camera, person string, ts int64, violation bool) evidence.Envelope {
	env := evidence.Envelope{
		ID:        "env-" + person,
		CameraID:  camera,
		Timestamp: ts,
		Person: []evidence.Person{
			{ID: person},
		},
	}
	if violation {
		env.Person[0].Violation = []evidence.Violation{evidence.ViolationMissingHardhat}
	}
	return env
}

func newWorker(t *testing.T) (*Worker, string) {
	t.Helper()
	dir := t.TempDir()
	w := NewWorker(NewQueue(8), fakeImages{frame: []byte("jpg")}, dir)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	return w, dir
}

func artifactExists(dir, id string) bool {
	_, jerr := os.Stat(filepath.Join(dir, id+".json"))
	_, ierr := os.Stat(filepath.Join(dir, id+".jpg"))
	return jerr == nil && ierr == nil
}

func TestProcess_FirstViolationWritesArtifact(t *testing.T) {
	w, dir := newWorker(t)
	env := envelope("cam-1", "p1", 1_000, true)
	w.process(env)
	assert.True(t, artifactExists(dir, env.ID))
}

func TestProcess_NoViolationWritesNothing(t *testing.T) {
	w, dir := newWorker(t)
	env := envelope("cam-1", "p1", 1_000, false)
	w.process(env)
	assert.False(t, artifactExists(dir, env.ID))
}

func TestProcess_RepeatWithinWindowSuppressed(t *testing.T) {
	w, dir := newWorker(t)
	first := envelope("cam-1", "p1", 1_000, true)
	w.process(first)
	require.True(t, artifactExists(dir, first.ID))

	second := envelope("cam-1", "p1", 1_000+Window-1, true)
	second.ID = "env-p1-repeat"
	w.process(second)
	assert.False(t, artifactExists(dir, second.ID), "repeat violation inside the window must not emit a new artifact")
}

func TestProcess_RepeatAtWindowBoundaryEmits(t *testing.T) {
	w, dir := newWorker(t)
	first := envelope("cam-1", "p1", 1_000, true)
	w.process(first)
	require.True(t, artifactExists(dir, first.ID))

	second := envelope("cam-1", "p1", 1_000+Window, true)
	second.ID = "env-p1-repeat"
	w.process(second)
	assert.True(t, artifactExists(dir, second.ID), "a repeat exactly Window ms later must emit again")
}

func TestProcess_DifferentPersonNotSuppressed(t *testing.T) {
	w, dir := newWorker(t)
	w.process(envelope("cam-1", "p1", 1_000, true))
	second := envelope("cam-1", "p2", 1_000, true)
	w.process(second)
	assert.True(t, artifactExists(dir, second.ID))
}

func TestProcess_MissingFrameDropsEnvelope(t *testing.T) {
	dir := t.TempDir()
	w := NewWorker(NewQueue(8), fakeImages{err: os.ErrNotExist}, dir)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	env := envelope("cam-1", "p1", 1_000, true)
	w.process(env)
	assert.False(t, artifactExists(dir, env.ID))
}

func TestQueue_PushPopOrder(t *testing.T) {
	q := NewQueue(4)
	done := make(chan struct{})
	q.Push(envelope("cam-1", "p1", 1, true))
	q.Push(envelope("cam-1", "p2", 2, true))

	first, ok := q.Pop(done)
	require.True(t, ok)
	assert.Equal(t, "p1", first.Person[0].ID)

	second, ok := q.Pop(done)
	require.True(t, ok)
	assert.Equal(t, "p2", second.Person[0].ID)
}

func TestQueue_PopUnblocksOnDone(t *testing.T) {
	q := NewQueue(1)
	done := make(chan struct{})
	close(done)
	_, ok := q.Pop(done)
	assert.False(t, ok)
}
