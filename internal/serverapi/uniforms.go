package serverapi

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/sua-org/gidence-scm/internal/store"
)

func (s *Server) mountUniforms(r *mux.Router) {
	r.HandleFunc("/uniforms", s.requireAuth(s.handleListUniforms)).Methods(http.MethodGet, http.MethodOptions)
	r.HandleFunc("/uniforms", s.requireRole(store.RoleSuperAdmin, s.handleCreateUniform)).Methods(http.MethodPost, http.MethodOptions)
	r.HandleFunc("/uniforms/{id}", s.requireAuth(s.handleGetUniform)).Methods(http.MethodGet, http.MethodOptions)
	r.HandleFunc("/uniforms/{id}", s.requireRole(store.RoleSuperAdmin, s.handleUpdateUniform)).Methods(http.MethodPut, http.MethodOptions)
	r.HandleFunc("/uniforms/{id}", s.requireRole(store.RoleSuperAdmin, s.handleDeleteUniform)).Methods(http.MethodDelete, http.MethodOptions)
}

func (s *Server) handleListUniforms(w http.ResponseWriter, r *http.Request) {
	list, err := s.Store.Uniforms.FindAll(r.Context())
	if err != nil {
		writeStoreErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleGetUniform(w http.ResponseWriter, r *http.Request) {
	u, err := s.Store.Uniforms.FindByID(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeStoreErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (s *Server) handleCreateUniform(w http.ResponseWriter, r *http.Request) {
	var u store.Uniform
	if err := json.NewDecoder(r.Body).Decode(&u); err != nil {
		http.Error(w, "INVALID_BODY", http.StatusBadRequest)
		return
	}
	if u.ID == "" {
		u.ID = newID()
	}
	if err := s.Store.Uniforms.Upsert(r.Context(), u); err != nil {
		writeStoreErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, u)
}

func (s *Server) handleUpdateUniform(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var u store.Uniform
	if err := json.NewDecoder(r.Body).Decode(&u); err != nil {
		http.Error(w, "INVALID_BODY", http.StatusBadRequest)
		return
	}
	u.ID = id
	if err := s.Store.Uniforms.Upsert(r.Context(), u); err != nil {
		writeStoreErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (s *Server) handleDeleteUniform(w http.ResponseWriter, r *http.Request) {
	if err := s.Store.Uniforms.Delete(r.Context(), mux.Vars(r)["id"]); err != nil {
		writeStoreErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
