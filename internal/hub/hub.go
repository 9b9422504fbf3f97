// Package hub implements the server's WebSocket fan-out (spec.md §4.10,
// component C10): clients connect, announce the user they're watching on
// behalf of, and receive violation/data/left events for that user's
// clusters.
package hub

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	clientSendBuffer = 64
	pongWait         = 75 * time.Second
	pingPeriod       = (pongWait * 9) / 10
)

// inboundRequest mirrors original_source's tagged CentralWebSocketRequest:
// {"connect": "<user_id>"} or {"disconnect": null}.
type inboundRequest struct {
	Connect    *string   `json:"connect,omitempty"`
	Disconnect *struct{} `json:"disconnect,omitempty"`
}

// outbound carries the three response shapes original_source's
// CentralWebSocketResponse enum carries.
type outbound struct {
	Violation []ViolationView  `json:"violation,omitempty"`
	Data      map[string]int64 `json:"data,omitempty"`
	Left      string           `json:"left,omitempty"`
}

// ViolationView is the projected shape pushed to the violation channel,
// opaque to the hub itself. It carries both ids and resolved display names
// for cluster/processor/camera, matching original_source's ViewEvidence
// projection, so a connected dashboard never has to re-resolve a bare id
// just to render a human label.
type ViolationView struct {
	ID            string `json:"id"`
	ClusterID     string `json:"cluster_id"`
	ClusterName   string `json:"cluster_name"`
	ProcessorID   string `json:"processor_id"`
	ProcessorName string `json:"processor_name"`
	CameraID      string `json:"camera_id"`
	CameraName    string `json:"camera_name"`
	Timestamp     int64  `json:"timestamp"`
}

type client struct {
	conn   *websocket.Conn
	send   chan outbound
	userID string
}

// Hub owns the client registry and the current processor presence map it
// hands new connections on Connect, matching the original's "send current
// processor timestamps immediately on connect" behavior.
type Hub struct {
	clients    map[*client]bool
	register   chan *client
	unregister chan *client
	broadcast  chan broadcastMsg

	presence func() map[string]int64
	upgrader websocket.Upgrader
}

type broadcastMsg struct {
	userIDs []string // empty means "every connected client"
	payload outbound
}

func New(presence func() map[string]int64) *Hub {
	return &Hub{
		clients:    make(map[*client]bool),
		register:   make(chan *client),
		unregister: make(chan *client),
		broadcast:  make(chan broadcastMsg, 256),
		presence:   presence,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Run drives the hub's single-goroutine event loop until done is closed.
func (h *Hub) Run(done <-chan struct{}) {
	for {
		select {
		case <-done:
			for c := range h.clients {
				close(c.send)
			}
			return

		case c := <-h.register:
			h.clients[c] = true
			log.Printf("[hub] client connected for user %s (total: %d)", c.userID, len(h.clients))

		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
				log.Printf("[hub] client disconnected for user %s (total: %d)", c.userID, len(h.clients))
			}

		case msg := <-h.broadcast:
			for c := range h.clients {
				if !targets(msg.userIDs, c.userID) {
					continue
				}
				select {
				case c.send <- msg.payload:
				default:
					log.Printf("[hub] dropping slow client (user %s)", c.userID)
					delete(h.clients, c)
					close(c.send)
				}
			}
		}
	}
}

func targets(userIDs []string, userID string) bool {
	if len(userIDs) == 0 {
		return true
	}
	for _, id := range userIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// BroadcastViolation pushes a violation event to the given user ids (or
// every client, when userIDs is empty — the super-admin broadcast case).
func (h *Hub) BroadcastViolation(userIDs []string, v ViolationView) {
	h.broadcast <- broadcastMsg{userIDs: userIDs, payload: outbound{Violation: []ViolationView{v}}}
}

// BroadcastLeft implements liveness.Notifier: a processor's lease expired.
func (h *Hub) BroadcastLeft(processorID string) {
	h.broadcast <- broadcastMsg{payload: outbound{Left: processorID}}
}

// ServeWS upgrades the connection and runs its read/write pumps.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[hub] upgrade error: %v", err)
		return
	}

	c := &client{conn: conn, send: make(chan outbound, clientSendBuffer)}
	go h.readPump(c)
	go h.writePump(c)
}

func (h *Hub) readPump(c *client) {
	defer func() {
		h.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		var req inboundRequest
		if err := json.Unmarshal(data, &req); err != nil {
			if string(data) == "disconnect" {
				return
			}
			continue
		}

		if req.Connect != nil {
			c.userID = *req.Connect
			h.register <- c
			c.send <- outbound{Data: h.presence()}
		} else if req.Disconnect != nil {
			return
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
