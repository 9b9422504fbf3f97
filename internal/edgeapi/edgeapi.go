// Package edgeapi implements the edge node's local control surface
// (spec.md §4.5, component C6): health, reading snapshot, processor and
// camera CRUD, and a static file server over the evidence directory.
package edgeapi

import (
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"

	"github.com/gorilla/mux"
	"github.com/sua-org/gidence-scm/internal/procconfig"
	"github.com/sua-org/gidence-scm/internal/reading"
)

// Server wires the procconfig.Store and reading.Snapshot into an
// http.Handler. The store serializes writes itself; reads share its
// read lock and wait while a write (including its file persist) holds it.
type Server struct {
	Store       *procconfig.Store
	Reading     *reading.Snapshot
	EvidenceDir string
}

func New(store *procconfig.Store, snapshot *reading.Snapshot, evidenceDir string) *Server {
	return &Server{Store: store, Reading: snapshot, EvidenceDir: evidenceDir}
}

// Router builds the full mux.Router, including the permissive CORS
// middleware spec.md §6 calls for on the edge control surface.
func (s *Server) Router() http.Handler {
	r := mux.NewRouter()
	r.Use(corsMiddleware)

	r.HandleFunc("/ping", s.handlePing).Methods(http.MethodGet, http.MethodOptions)
	r.HandleFunc("/reading", s.handleReading).Methods(http.MethodGet, http.MethodOptions)
	r.HandleFunc("/device", s.handleDevice).Methods(http.MethodGet, http.MethodOptions)
	r.HandleFunc("/frame/{camera_id}", s.handleFrame).Methods(http.MethodGet, http.MethodOptions)

	r.HandleFunc("/processor", s.handleGetProcessor).Methods(http.MethodGet, http.MethodOptions)
	r.HandleFunc("/processor", s.handlePutProcessor).Methods(http.MethodPut, http.MethodOptions)

	r.HandleFunc("/camera", s.handleListCameras).Methods(http.MethodGet, http.MethodOptions)
	r.HandleFunc("/camera", s.handleCreateCamera).Methods(http.MethodPost, http.MethodOptions)
	r.HandleFunc("/camera/{id}", s.handleGetCamera).Methods(http.MethodGet, http.MethodOptions)
	r.HandleFunc("/camera/{id}", s.handleUpdateCamera).Methods(http.MethodPut, http.MethodOptions)
	r.HandleFunc("/camera/{id}", s.handleDeleteCamera).Methods(http.MethodDelete, http.MethodOptions)

	r.PathPrefix("/evidence/").Handler(http.StripPrefix("/evidence/", http.FileServer(http.Dir(s.EvidenceDir))))

	return r
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func (s *Server) handlePing(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReading(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Reading.All())
}

func (s *Server) handleDevice(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Store.Processor())
}

func (s *Server) handleFrame(w http.ResponseWriter, r *http.Request) {
	cameraID := mux.Vars(r)["camera_id"]
	if _, ok := s.Store.Camera(cameraID); !ok {
		writeError(w, http.StatusNotFound, "camera not found")
		return
	}

	path := filepath.Join("/tmp", cameraID+".jpg")
	data, err := os.ReadFile(path)
	if err != nil {
		writeError(w, http.StatusNotFound, "no frame available")
		return
	}
	w.Header().Set("Content-Type", "image/jpeg")
	w.Write(data)
}

func (s *Server) handleGetProcessor(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Store.Processor())
}

func (s *Server) handlePutProcessor(w http.ResponseWriter, r *http.Request) {
	var in procconfig.Processor
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	updated, err := s.Store.UpdateProcessor(func(p *procconfig.Processor) {
		p.Name = in.Name
		p.Model = in.Model
		p.Address = in.Address
		p.Webhook = in.Webhook
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to persist processor")
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleListCameras(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Store.Cameras())
}

func (s *Server) handleGetCamera(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	cam, ok := s.Store.Camera(id)
	if !ok {
		writeError(w, http.StatusNotFound, "camera not found")
		return
	}
	writeJSON(w, http.StatusOK, cam)
}

func (s *Server) handleCreateCamera(w http.ResponseWriter, r *http.Request) {
	var cam procconfig.Camera
	if err := json.NewDecoder(r.Body).Decode(&cam); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	created, err := s.Store.CreateCamera(cam)
	if err != nil {
		if err == procconfig.ErrCameraExists {
			writeError(w, http.StatusConflict, "camera already exists")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to persist camera")
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleUpdateCamera(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var cam procconfig.Camera
	if err := json.NewDecoder(r.Body).Decode(&cam); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	cam.ID = id

	updated, err := s.Store.UpdateCamera(cam)
	if err != nil {
		if err == procconfig.ErrCameraNotFound {
			writeError(w, http.StatusNotFound, "camera not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to persist camera")
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteCamera(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := s.Store.DeleteCamera(id); err != nil {
		if err == procconfig.ErrCameraNotFound {
			writeError(w, http.StatusNotFound, "camera not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to persist camera")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
