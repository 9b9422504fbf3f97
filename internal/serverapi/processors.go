package serverapi

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/sua-org/gidence-scm/internal/store"
)

func (s *Server) handleListProcessors(w http.ResponseWriter, r *http.Request) {
	clusterID := r.URL.Query().Get("cluster_id")
	var (
		list []store.Processor
		err  error
	)
	if clusterID != "" {
		list, err = s.Store.Processors.FindByCluster(r.Context(), clusterID)
	} else {
		list, err = s.Store.Processors.FindAll(r.Context())
	}
	if err != nil {
		writeStoreErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleGetProcessor(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	p, err := s.Store.Processors.FindByID(r.Context(), id)
	if err != nil {
		writeStoreErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// handlePutProcessor is the operator edit path (spec.md §6): bumps version
// so the next sync returns the stored view to the edge. The edge client
// keeps only the uniform list from that view; the edited descriptor fields
// are not applied on the edge.
func (s *Server) handlePutProcessor(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	existing, err := s.Store.Processors.FindByID(r.Context(), id)
	if err != nil {
		writeStoreErr(w, err)
		return
	}

	var in store.Processor
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, "INVALID_BODY", http.StatusBadRequest)
		return
	}

	existing.Name = in.Name
	existing.Model = in.Model
	existing.Address = in.Address
	existing.ClusterID = in.ClusterID
	existing.Version++

	if err := s.Store.Processors.Upsert(r.Context(), existing); err != nil {
		writeStoreErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, existing)
}

// handleDeleteProcessor cascades to the processor's evidence, per spec.md §6.
func (s *Server) handleDeleteProcessor(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := s.Store.Processors.Delete(r.Context(), id); err != nil {
		writeStoreErr(w, err)
		return
	}
	if err := s.Store.Evidence.DeleteByProcessor(r.Context(), id); err != nil {
		writeStoreErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
