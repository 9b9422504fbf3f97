package serverapi

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/sua-org/gidence-scm/internal/store"
)

func (s *Server) mountCameras(r *mux.Router) {
	r.HandleFunc("/cameras", s.requireAuth(s.handleListCameras)).Methods(http.MethodGet, http.MethodOptions)
	r.HandleFunc("/cameras/{id}", s.requireAuth(s.handleGetCamera)).Methods(http.MethodGet, http.MethodOptions)
	r.HandleFunc("/cameras/{id}", s.requireRole(store.RoleSuperAdmin, s.handleDeleteCamera)).Methods(http.MethodDelete, http.MethodOptions)
}

func (s *Server) handleListCameras(w http.ResponseWriter, r *http.Request) {
	processorID := r.URL.Query().Get("processor_id")
	if processorID == "" {
		http.Error(w, "MISSING_PROCESSOR_ID", http.StatusBadRequest)
		return
	}
	list, err := s.Store.Cameras.FindByProcessor(r.Context(), processorID)
	if err != nil {
		writeStoreErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleGetCamera(w http.ResponseWriter, r *http.Request) {
	c, err := s.Store.Cameras.FindByID(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeStoreErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// handleDeleteCamera is an operator-initiated delete; the authoritative
// roster diff still happens edge-side on the next sync (spec.md §4.6), this
// path exists so the dashboard can pre-emptively clear the server record
// and its evidence.
func (s *Server) handleDeleteCamera(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := s.Store.Cameras.Delete(r.Context(), id); err != nil {
		writeStoreErr(w, err)
		return
	}
	if err := s.Store.Evidence.DeleteByCamera(r.Context(), id); err != nil {
		writeStoreErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
