package serverapi

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/sua-org/gidence-scm/internal/store"
)

func (s *Server) mountClusters(r *mux.Router) {
	r.HandleFunc("/clusters", s.requireAuth(s.handleListClusters)).Methods(http.MethodGet, http.MethodOptions)
	r.HandleFunc("/clusters", s.requireRole(store.RoleSuperAdmin, s.handleCreateCluster)).Methods(http.MethodPost, http.MethodOptions)
	r.HandleFunc("/clusters/{id}", s.requireAuth(s.handleGetCluster)).Methods(http.MethodGet, http.MethodOptions)
	r.HandleFunc("/clusters/{id}", s.requireRole(store.RoleSuperAdmin, s.handleUpdateCluster)).Methods(http.MethodPut, http.MethodOptions)
	r.HandleFunc("/clusters/{id}", s.requireRole(store.RoleSuperAdmin, s.handleDeleteCluster)).Methods(http.MethodDelete, http.MethodOptions)
}

func (s *Server) handleListClusters(w http.ResponseWriter, r *http.Request) {
	list, err := s.Store.Clusters.FindAll(r.Context())
	if err != nil {
		writeStoreErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleGetCluster(w http.ResponseWriter, r *http.Request) {
	c, err := s.Store.Clusters.FindByID(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeStoreErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) handleCreateCluster(w http.ResponseWriter, r *http.Request) {
	var c store.Cluster
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
		http.Error(w, "INVALID_BODY", http.StatusBadRequest)
		return
	}
	if c.ID == "" {
		c.ID = newID()
	}
	if err := s.Store.Clusters.Upsert(r.Context(), c); err != nil {
		writeStoreErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (s *Server) handleUpdateCluster(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var c store.Cluster
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
		http.Error(w, "INVALID_BODY", http.StatusBadRequest)
		return
	}
	c.ID = id
	if err := s.Store.Clusters.Upsert(r.Context(), c); err != nil {
		writeStoreErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) handleDeleteCluster(w http.ResponseWriter, r *http.Request) {
	if err := s.Store.Clusters.Delete(r.Context(), mux.Vars(r)["id"]); err != nil {
		writeStoreErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
