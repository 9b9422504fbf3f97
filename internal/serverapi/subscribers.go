package serverapi

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/sua-org/gidence-scm/internal/store"
)

func (s *Server) mountSubscribers(r *mux.Router) {
	r.HandleFunc("/subscribers", s.requireAuth(s.handleListSubscribers)).Methods(http.MethodGet, http.MethodOptions)
	r.HandleFunc("/subscribers", s.requireAuth(s.handleCreateSubscriber)).Methods(http.MethodPost, http.MethodOptions)
	r.HandleFunc("/subscribers/{id}", s.requireAuth(s.handleDeleteSubscriber)).Methods(http.MethodDelete, http.MethodOptions)
}

func (s *Server) handleListSubscribers(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r)
	list, err := s.Store.Subscribers.FindByUser(r.Context(), claims.Subject)
	if err != nil {
		writeStoreErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// handleCreateSubscriber registers the caller's device token, scoped to
// their own user id regardless of what the body claims.
func (s *Server) handleCreateSubscriber(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r)

	var in store.Subscriber
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, "INVALID_BODY", http.StatusBadRequest)
		return
	}
	in.ID = newID()
	in.UserID = claims.Subject

	if err := s.Store.Subscribers.Upsert(r.Context(), in); err != nil {
		writeStoreErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, in)
}

func (s *Server) handleDeleteSubscriber(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	claims := claimsFrom(r)

	sub, err := s.Store.Subscribers.FindByID(r.Context(), id)
	if err != nil {
		writeStoreErr(w, err)
		return
	}
	if sub.UserID != claims.Subject && claims.Role != store.RoleSuperAdmin {
		http.Error(w, "FORBIDDEN", http.StatusForbidden)
		return
	}
	if err := s.Store.Subscribers.Delete(r.Context(), id); err != nil {
		writeStoreErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
