// Package socketrecv accepts length-delimited-by-EOF JSON envelopes from
// the local inference subprocess over a Unix domain socket.
package socketrecv

import (
	"bytes"
	"encoding/json"
	"io"
	"log"
	"net"
	"os"

	"github.com/rs/xid"
	"github.com/sua-org/gidence-scm/internal/evidence"
)

// Queue is the minimal FIFO the receiver appends decoded envelopes to. It
// is satisfied by dedup.Queue; kept as an interface here so the receiver
// doesn't import the dedup package.
type Queue interface {
	Push(evidence.Envelope)
}

// Reading is the per-camera volatile snapshot the receiver updates on
// every ingested envelope.
type Reading interface {
	Touch(cameraID string, env evidence.Envelope)
}

// Receiver binds a Unix socket and decodes one JSON envelope per
// connection until EOF. Malformed input and I/O errors are logged and the
// connection dropped; the accept loop itself never stops on a per-
// connection error.
type Receiver struct {
	Path    string
	Queue   Queue
	Reading Reading
}

// New constructs a Receiver. socketPath is the filesystem path of the Unix
// socket to bind (stale files at this path are removed first).
func New(socketPath string, queue Queue, reading Reading) *Receiver {
	return &Receiver{Path: socketPath, Queue: queue, Reading: reading}
}

// Run binds the socket and accepts connections until closeCh is closed.
// It removes any stale socket file at Path before binding, matching the
// spec's "binds a local socket, removing any stale file first".
func (r *Receiver) Run(closeCh <-chan struct{}) error {
	if err := os.RemoveAll(r.Path); err != nil && !os.IsNotExist(err) {
		return err
	}

	ln, err := net.Listen("unix", r.Path)
	if err != nil {
		return err
	}
	defer ln.Close()

	go func() {
		<-closeCh
		ln.Close()
	}()

	log.Printf("[socketrecv] listening on %s", r.Path)
	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-closeCh:
				return nil
			default:
			}
			log.Printf("[socketrecv] accept error: %v", err)
			continue
		}
		go r.handle(conn)
	}
}

func (r *Receiver) handle(conn net.Conn) {
	defer conn.Close()

	data, err := io.ReadAll(conn)
	if err != nil {
		log.Printf("[socketrecv] read error: %v", err)
		return
	}

	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return
	}

	var env evidence.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		log.Printf("[socketrecv] malformed envelope: %v", err)
		return
	}

	env.ID = xid.New().String()
	if err := env.Validate(); err != nil {
		log.Printf("[socketrecv] invalid envelope %s: %v", env.ID, err)
		return
	}

	if r.Reading != nil {
		r.Reading.Touch(env.CameraID, env)
	}
	r.Queue.Push(env)
}
