package serverapi

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/sua-org/gidence-scm/internal/auth"
	"github.com/sua-org/gidence-scm/internal/store"
)

func (s *Server) mountUsers(r *mux.Router) {
	r.HandleFunc("/users/login", s.handleLogin).Methods(http.MethodPost, http.MethodOptions)
	r.HandleFunc("/users/refresh", s.handleRefresh).Methods(http.MethodPost, http.MethodOptions)
	r.HandleFunc("/users", s.requireRole(store.RoleSuperAdmin, s.handleListUsers)).Methods(http.MethodGet, http.MethodOptions)
	r.HandleFunc("/users", s.requireRole(store.RoleSuperAdmin, s.handleCreateUser)).Methods(http.MethodPost, http.MethodOptions)
	r.HandleFunc("/users/{id}", s.requireAuth(s.handleGetUser)).Methods(http.MethodGet, http.MethodOptions)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"rtk"`
}

type tokenResponse struct {
	AccessToken  string     `json:"atk"`
	RefreshToken string     `json:"rtk"`
	User         store.User `json:"user"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var in loginRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, "INVALID_BODY", http.StatusBadRequest)
		return
	}

	access, refresh, err := s.Auth.Login(r.Context(), in.Email, in.Password)
	if err != nil {
		http.Error(w, "UNAUTHORIZED", http.StatusUnauthorized)
		return
	}

	u, _ := s.Store.Users.FindByEmail(r.Context(), in.Email)
	writeJSON(w, http.StatusOK, tokenResponse{AccessToken: access, RefreshToken: refresh, User: u})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var in refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, "INVALID_BODY", http.StatusBadRequest)
		return
	}

	access, refresh, err := s.Auth.Refresh(r.Context(), in.RefreshToken)
	if err != nil {
		http.Error(w, "UNAUTHORIZED", http.StatusUnauthorized)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"atk": access, "rtk": refresh})
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	clusterID := r.URL.Query().Get("cluster_id")
	if clusterID == "" {
		http.Error(w, "MISSING_CLUSTER_ID", http.StatusBadRequest)
		return
	}
	list, err := s.Store.Users.FindByClusterOrAdmin(r.Context(), clusterID)
	if err != nil {
		writeStoreErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	claims := claimsFrom(r)
	if id != claims.Subject && claims.Role != store.RoleSuperAdmin {
		http.Error(w, "FORBIDDEN", http.StatusForbidden)
		return
	}
	u, err := s.Store.Users.FindByID(r.Context(), id)
	if err != nil {
		writeStoreErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

type createUserRequest struct {
	Email      string     `json:"email"`
	Password   string     `json:"password"`
	Role       store.Role `json:"role"`
	ClusterIDs []string   `json:"cluster_ids"`
}

func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var in createUserRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, "INVALID_BODY", http.StatusBadRequest)
		return
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		http.Error(w, "INTERNAL", http.StatusInternalServerError)
		return
	}

	u := store.User{
		ID:           newID(),
		Email:        in.Email,
		PasswordHash: hash,
		Role:         in.Role,
		ClusterIDs:   in.ClusterIDs,
	}
	if err := s.Store.Users.Insert(r.Context(), u); err != nil {
		writeStoreErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, u)
}
