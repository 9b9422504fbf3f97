package shipper

import (
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeArtifact(t *testing.T, dir, id string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, id+".jpg"), []byte("jpg"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, id+".json"), []byte(`{"id":"`+id+`"}`), 0o644))
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func TestScanAndUpload_MarksSuccessAndNeverResends(t *testing.T) {
	dir := t.TempDir()
	writeArtifact(t, dir, "ev-1")

	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := New(Config{EvidenceDir: dir, EvidenceURL: srv.URL, ProcessorID: "proc-1"}, nil)

	s.scanAndUpload()
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
	assert.True(t, exists(filepath.Join(dir, "uploaded.ev-1.json")))
	assert.True(t, exists(filepath.Join(dir, "uploaded.ev-1.jpg")))
	assert.False(t, exists(filepath.Join(dir, "ev-1.json")))

	s.scanAndUpload()
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits), "an already-uploaded pair must never be resent")
}

func TestScanAndUpload_RetriesAfterServerError(t *testing.T) {
	dir := t.TempDir()
	writeArtifact(t, dir, "ev-1")

	var mu sync.Mutex
	fail := true
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		shouldFail := fail
		mu.Unlock()
		if shouldFail {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := New(Config{EvidenceDir: dir, EvidenceURL: srv.URL, ProcessorID: "proc-1"}, nil)

	s.scanAndUpload()
	assert.True(t, exists(filepath.Join(dir, "ev-1.json")), "a 500 response must leave the pair unmarked so the next scan retries it")

	mu.Lock()
	fail = false
	mu.Unlock()
	s.scanAndUpload()
	assert.True(t, exists(filepath.Join(dir, "uploaded.ev-1.json")))
}

func TestScanAndUpload_SkipsArtifactMissingImage(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ev-1.json"), []byte(`{}`), 0o644))

	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := New(Config{EvidenceDir: dir, EvidenceURL: srv.URL}, nil)
	s.scanAndUpload()

	assert.Equal(t, int32(0), atomic.LoadInt32(&hits))
	assert.True(t, exists(filepath.Join(dir, "ev-1.json")))
}

func TestSendUpdateBeat_IncludesCameraIDs(t *testing.T) {
	dir := t.TempDir()
	received := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		received <- string(body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := New(Config{EvidenceDir: dir, UpdateURL: srv.URL, ProcessorID: "proc-1"}, func() []string {
		return []string{"cam-1", "cam-2"}
	})
	s.sendUpdateBeat()

	select {
	case body := <-received:
		assert.Contains(t, body, "cam-1")
		assert.Contains(t, body, "cam-2")
		assert.Contains(t, body, "proc-1")
	default:
		t.Fatal("update beat was never received")
	}
}
