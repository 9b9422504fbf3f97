package hub

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTargets(t *testing.T) {
	assert.True(t, targets(nil, "anyone"))
	assert.True(t, targets([]string{"a", "b"}, "b"))
	assert.False(t, targets([]string{"a", "b"}, "c"))
}

func dialHub(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	return conn
}

func TestConnect_ReceivesPresenceSnapshot(t *testing.T) {
	h := New(func() map[string]int64 { return map[string]int64{"proc-1": 12345} })
	done := make(chan struct{})
	go h.Run(done)
	defer close(done)

	srv := httptest.NewServer(http.HandlerFunc(h.ServeWS))
	defer srv.Close()

	conn := dialHub(t, srv)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(map[string]string{"connect": "user-1"}))

	var msg outbound
	conn.SetReadDeadline(time.Now().Add(time.Second))
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, int64(12345), msg.Data["proc-1"])
}

func TestBroadcastViolation_OnlyReachesTargetedUser(t *testing.T) {
	h := New(func() map[string]int64 { return map[string]int64{} })
	done := make(chan struct{})
	go h.Run(done)
	defer close(done)

	srv := httptest.NewServer(http.HandlerFunc(h.ServeWS))
	defer srv.Close()

	watched := dialHub(t, srv)
	defer watched.Close()
	require.NoError(t, watched.WriteJSON(map[string]string{"connect": "user-1"}))
	var initial outbound
	watched.SetReadDeadline(time.Now().Add(time.Second))
	require.NoError(t, watched.ReadJSON(&initial))

	other := dialHub(t, srv)
	defer other.Close()
	require.NoError(t, other.WriteJSON(map[string]string{"connect": "user-2"}))
	require.NoError(t, other.ReadJSON(&initial))

	time.Sleep(20 * time.Millisecond)
	h.BroadcastViolation([]string{"user-1"}, ViolationView{ID: "ev-1", CameraID: "cam-1"})

	var got outbound
	watched.SetReadDeadline(time.Now().Add(time.Second))
	require.NoError(t, watched.ReadJSON(&got))
	require.Len(t, got.Violation, 1)
	assert.Equal(t, "ev-1", got.Violation[0].ID)

	other.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	err := other.ReadJSON(&got)
	assert.Error(t, err, "a targeted broadcast must not reach an unrelated user")
}

func TestBroadcast_DropsClientWhoseBufferIsFull(t *testing.T) {
	h := New(func() map[string]int64 { return map[string]int64{} })
	done := make(chan struct{})
	go h.Run(done)
	defer close(done)

	slow := &client{userID: "user-1", send: make(chan outbound, clientSendBuffer)}
	healthy := &client{userID: "user-1", send: make(chan outbound, clientSendBuffer)}
	h.register <- slow
	h.register <- healthy

	for i := 0; i < cap(slow.send); i++ {
		slow.send <- outbound{}
	}

	h.BroadcastViolation(nil, ViolationView{ID: "ev-1"})

	require.Eventually(t, func() bool {
		select {
		case _, ok := <-healthy.send:
			return ok
		default:
			return false
		}
	}, time.Second, 10*time.Millisecond, "other clients must keep receiving broadcasts")

	for i := 0; i < cap(slow.send); i++ {
		<-slow.send
	}
	_, ok := <-slow.send
	assert.False(t, ok, "a client whose buffer saturates must be dropped, its send channel closed")
}

func TestBroadcastLeft_ReachesEveryClient(t *testing.T) {
	h := New(func() map[string]int64 { return map[string]int64{} })
	done := make(chan struct{})
	go h.Run(done)
	defer close(done)

	srv := httptest.NewServer(http.HandlerFunc(h.ServeWS))
	defer srv.Close()

	conn := dialHub(t, srv)
	defer conn.Close()
	require.NoError(t, conn.WriteJSON(map[string]string{"connect": "user-1"}))
	var initial outbound
	conn.SetReadDeadline(time.Now().Add(time.Second))
	require.NoError(t, conn.ReadJSON(&initial))

	time.Sleep(20 * time.Millisecond)
	h.BroadcastLeft("proc-1")

	var got outbound
	conn.SetReadDeadline(time.Now().Add(time.Second))
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, "proc-1", got.Left)
}
