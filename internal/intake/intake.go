// Package intake implements the server's evidence ingestion endpoint
// (spec.md §4.9, component C9): receive a multipart evidence+image POST
// from a processor, persist both, broadcast the projection over the hub,
// and enqueue the record for push dispatch.
package intake

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"mime/multipart"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/xid"

	"github.com/sua-org/gidence-scm/internal/blobstore"
	"github.com/sua-org/gidence-scm/internal/evidence"
	"github.com/sua-org/gidence-scm/internal/hub"
	"github.com/sua-org/gidence-scm/internal/store"
)

// Dispatcher is the subset of push.Dispatcher intake needs: enqueue a
// freshly persisted record for push notification fan-out.
type Dispatcher interface {
	Enqueue(rec store.EvidenceRecord)
}

// Server wires the store, blob store, hub, and push dispatcher into the
// evidence intake HTTP handler.
type Server struct {
	Store      *store.Store
	Images     blobstore.Store
	Hub        *hub.Hub
	Dispatcher Dispatcher
}

func New(st *store.Store, images blobstore.Store, h *hub.Hub, dispatcher Dispatcher) *Server {
	return &Server{Store: st, Images: images, Hub: h, Dispatcher: dispatcher}
}

// evidenceRequest is the JSON shape of the "data" multipart field: an
// envelope minus the id, which the server assigns.
type evidenceRequest struct {
	CameraID  string            `json:"camera_id"`
	FrameID   string            `json:"frame_id"`
	Timestamp int64             `json:"timestamp"`
	Person    []evidence.Person `json:"person"`
}

// HandleCreate implements POST /evidences/{processor_id}.
func (s *Server) HandleCreate(w http.ResponseWriter, r *http.Request) {
	processorID := mux.Vars(r)["processor_id"]
	ctx := r.Context()

	processor, err := s.Store.Processors.FindByID(ctx, processorID)
	if err != nil {
		writeStatus(w, store.ErrKind(err), "processor not found")
		return
	}

	imageData, evidenceData, err := parseMultipart(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	id := xid.New().String()
	env := evidence.Envelope{
		ID:        id,
		CameraID:  evidenceData.CameraID,
		FrameID:   evidenceData.FrameID,
		Timestamp: evidenceData.Timestamp,
		Person:    evidenceData.Person,
	}
	if err := env.Validate(); err != nil {
		http.Error(w, "INVALID_EVIDENCE", http.StatusBadRequest)
		return
	}

	if err := s.Images.Save(ctx, id, imageData); err != nil {
		log.Printf("[intake] failed to save image for %s: %v", id, err)
		http.Error(w, "FAILED_TO_SAVE_IMAGE", http.StatusInternalServerError)
		return
	}

	record := store.EvidenceRecord{
		Envelope:    env,
		ClusterID:   processor.ClusterID,
		ProcessorID: processorID,
	}
	if err := s.Store.Evidence.Insert(ctx, record); err != nil {
		// roll back the already-written image so storage doesn't accumulate
		// orphans for records that never made it into the database
		s.Images.Delete(ctx, id)
		log.Printf("[intake] failed to persist evidence %s: %v", id, err)
		writeStatus(w, store.ErrKind(err), "failed to persist evidence")
		return
	}

	if s.Hub != nil && hasViolation(env) {
		clusterName := processor.ClusterID
		if cluster, err := s.Store.Clusters.FindByID(ctx, processor.ClusterID); err == nil {
			clusterName = cluster.Name
		}
		cameraName := env.CameraID
		if cam, err := s.Store.Cameras.FindByID(ctx, env.CameraID); err == nil {
			cameraName = cam.Name
		}

		s.Hub.BroadcastViolation(nil, hub.ViolationView{
			ID:            id,
			ClusterID:     processor.ClusterID,
			ClusterName:   clusterName,
			ProcessorID:   processorID,
			ProcessorName: processor.Name,
			CameraID:      env.CameraID,
			CameraName:    cameraName,
			Timestamp:     env.Timestamp,
		})
	}
	if s.Dispatcher != nil {
		s.Dispatcher.Enqueue(record)
	}

	w.WriteHeader(http.StatusCreated)
}

func hasViolation(env evidence.Envelope) bool {
	for _, p := range env.Person {
		if p.HasViolation() {
			return true
		}
	}
	return false
}

// HandleList implements GET /evidences.
func (s *Server) HandleList(w http.ResponseWriter, r *http.Request) {
	q := store.Query{
		ClusterID:   r.URL.Query().Get("cluster_id"),
		ProcessorID: r.URL.Query().Get("processor_id"),
		CameraID:    r.URL.Query().Get("camera_id"),
	}
	records, err := s.Store.Evidence.Find(r.Context(), q)
	if err != nil {
		http.Error(w, "NOT_FOUND", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

// HandleGet implements GET /evidences/{evidence_id}.
func (s *Server) HandleGet(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["evidence_id"]
	record, err := s.Store.Evidence.FindByID(r.Context(), id)
	if err != nil {
		http.Error(w, "NOT_FOUND", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

func parseMultipart(r *http.Request) ([]byte, evidenceRequest, error) {
	reader, err := r.MultipartReader()
	if err != nil {
		return nil, evidenceRequest{}, errors.New("INVALID_MULTIPART")
	}

	var imageData []byte
	var evidenceData evidenceRequest
	var haveImage, haveData bool

	for {
		part, err := reader.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, evidenceRequest{}, errors.New("INVALID_MULTIPART")
		}

		switch part.FormName() {
		case "image":
			imageData, err = readAll(part)
			if err != nil {
				continue
			}
			haveImage = len(imageData) > 0
		case "data":
			raw, err := readAll(part)
			if err != nil {
				continue
			}
			if json.Unmarshal(raw, &evidenceData) == nil {
				haveData = true
			}
		}
	}

	if !haveImage {
		return nil, evidenceRequest{}, errors.New("MISSING_IMAGE")
	}
	if !haveData {
		return nil, evidenceRequest{}, errors.New("MISSING_DATA")
	}
	return imageData, evidenceData, nil
}

func readAll(part *multipart.Part) ([]byte, error) {
	return io.ReadAll(part)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeStatus(w http.ResponseWriter, kind store.Kind, message string) {
	status := http.StatusInternalServerError
	switch kind {
	case store.KindNotFound:
		status = http.StatusNotFound
	case store.KindInvalid:
		status = http.StatusBadRequest
	case store.KindConflict:
		status = http.StatusConflict
	}
	http.Error(w, message, status)
}
