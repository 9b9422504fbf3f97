// Package syncserver implements the server side of the processor/camera
// synchronization protocol (spec.md §4.6, component C7): version-vectored
// reconciliation where the server is authoritative for cluster/uniform
// assignment and the processor is authoritative for camera inventory.
package syncserver

import (
	"context"
	"encoding/json"
	"log"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/sua-org/gidence-scm/internal/liveness"
	"github.com/sua-org/gidence-scm/internal/store"
)

// Server handles POST /processors/{cluster_id}.
type Server struct {
	Store    *store.Store
	Liveness *liveness.Tracker
}

func New(st *store.Store, tracker *liveness.Tracker) *Server {
	return &Server{Store: st, Liveness: tracker}
}

type processorPayload struct {
	ID      string                 `json:"id"`
	Name    string                 `json:"name"`
	Model   string                 `json:"model"`
	Address store.ProcessorAddress `json:"address"`
	Version int64                  `json:"version"`
}

type cameraPayload struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Host string `json:"host"`
	Port uint16 `json:"port"`
}

type syncPayload struct {
	Processor processorPayload `json:"processor"`
	Camera    []cameraPayload  `json:"camera"`
}

type uniformView struct {
	ID    string   `json:"id"`
	Name  string   `json:"name"`
	Parts []string `json:"parts,omitempty"`
}

type processorView struct {
	ID       string                 `json:"id"`
	Name     string                 `json:"name"`
	Model    string                 `json:"model"`
	Address  store.ProcessorAddress `json:"address"`
	Version  int64                  `json:"version"`
	Uniforms []uniformView          `json:"uniforms,omitempty"`
}

// HandleSync implements the reconciliation described in spec.md §4.6.
func (s *Server) HandleSync(w http.ResponseWriter, r *http.Request) {
	clusterID := mux.Vars(r)["cluster_id"]
	ctx := r.Context()

	if _, err := s.Store.Clusters.FindByID(ctx, clusterID); err != nil {
		http.Error(w, "NOT_FOUND", http.StatusNotFound)
		return
	}

	var payload syncPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "INVALID_BODY", http.StatusBadRequest)
		return
	}

	existing, err := s.Store.Processors.FindByID(ctx, payload.Processor.ID)
	notFound := store.ErrKind(err) == store.KindNotFound
	if err != nil && !notFound {
		http.Error(w, "INTERNAL", http.StatusInternalServerError)
		return
	}

	if !notFound && existing.Version == payload.Processor.Version {
		// Submitted matches stored: both sides already agree, nothing to
		// reconcile beyond the lease refresh.
		s.Liveness.Refresh(payload.Processor.ID)
		w.WriteHeader(http.StatusNoContent)
		return
	}

	if !notFound && existing.Version > payload.Processor.Version {
		// Processor fell behind (e.g. restarted with stale local state):
		// refresh its lease but hand back the server's authoritative
		// descriptor, unmutated, so it can reconverge on the next tick.
		s.Liveness.Refresh(payload.Processor.ID)
		view, err := s.buildView(ctx, existing)
		if err != nil {
			http.Error(w, "INTERNAL", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(view)
		return
	}

	// Submitted version wins: accept descriptor fields and reconcile the
	// camera roster, deleting any server camera absent from the payload
	// (cascading to its evidence rows).
	if err := s.reconcileCameras(ctx, clusterID, payload); err != nil {
		log.Printf("[syncserver] reconcile cameras for %s: %v", payload.Processor.ID, err)
		http.Error(w, "INTERNAL", http.StatusInternalServerError)
		return
	}

	processor := store.Processor{
		ID:        payload.Processor.ID,
		ClusterID: clusterID,
		Name:      payload.Processor.Name,
		Model:     payload.Processor.Model,
		Address:   payload.Processor.Address,
		Version:   payload.Processor.Version,
	}
	if err := s.Store.Processors.Upsert(ctx, processor); err != nil {
		http.Error(w, "INTERNAL", http.StatusInternalServerError)
		return
	}

	s.Liveness.Refresh(processor.ID)

	view, err := s.buildView(ctx, processor)
	if err != nil {
		http.Error(w, "INTERNAL", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(view)
}

func (s *Server) reconcileCameras(ctx context.Context, clusterID string, payload syncPayload) error {
	existing, err := s.Store.Cameras.FindByProcessor(ctx, payload.Processor.ID)
	if err != nil {
		return err
	}

	submitted := make(map[string]bool, len(payload.Camera))
	for _, c := range payload.Camera {
		submitted[c.ID] = true
	}

	var toDelete []string
	for _, c := range existing {
		if !submitted[c.ID] {
			toDelete = append(toDelete, c.ID)
		}
	}
	if len(toDelete) > 0 {
		if err := s.Store.Cameras.DeleteMany(ctx, toDelete); err != nil {
			return err
		}
		for _, id := range toDelete {
			if err := s.Store.Evidence.DeleteByCamera(ctx, id); err != nil {
				log.Printf("[syncserver] cascade-delete evidence for camera %s: %v", id, err)
			}
		}
	}

	for _, c := range payload.Camera {
		cam := store.Camera{
			ID:          c.ID,
			ClusterID:   clusterID,
			ProcessorID: payload.Processor.ID,
			Name:        c.Name,
			Host:        c.Host,
			Port:        c.Port,
		}
		if err := s.Store.Cameras.Upsert(ctx, cam); err != nil {
			return err
		}
	}
	return nil
}

func (s *Server) buildView(ctx context.Context, p store.Processor) (processorView, error) {
	view := processorView{
		ID:      p.ID,
		Name:    p.Name,
		Model:   p.Model,
		Address: p.Address,
		Version: p.Version,
	}

	cluster, err := s.Store.Clusters.FindByID(ctx, p.ClusterID)
	if err != nil {
		return view, nil
	}
	if cluster.UniformID == "" {
		return view, nil
	}

	uniform, err := s.Store.Uniforms.FindByID(ctx, cluster.UniformID)
	if err != nil {
		return view, nil
	}
	view.Uniforms = []uniformView{{ID: uniform.ID, Name: uniform.Name, Parts: uniform.Parts}}
	return view, nil
}
