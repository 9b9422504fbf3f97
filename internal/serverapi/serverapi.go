// Package serverapi wires the server's full HTTP surface (spec.md §6,
// component C14): evidence intake, the sync protocol, the WebSocket hub,
// and role-gated resource CRUD over processors/cameras/clusters/uniforms/
// users/subscribers, plus login/refresh.
package serverapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/rs/xid"

	"github.com/sua-org/gidence-scm/internal/auth"
	"github.com/sua-org/gidence-scm/internal/hub"
	"github.com/sua-org/gidence-scm/internal/intake"
	"github.com/sua-org/gidence-scm/internal/store"
	"github.com/sua-org/gidence-scm/internal/syncserver"
)

type Server struct {
	Store      *store.Store
	Hub        *hub.Hub
	Intake     *intake.Server
	SyncServer *syncserver.Server
	Auth       *auth.Service
}

func New(st *store.Store, h *hub.Hub, in *intake.Server, sync *syncserver.Server, authSvc *auth.Service) *Server {
	return &Server{Store: st, Hub: h, Intake: in, SyncServer: sync, Auth: authSvc}
}

func (s *Server) Router() http.Handler {
	r := mux.NewRouter()
	r.Use(corsMiddleware)

	r.HandleFunc("/ping", handlePing).Methods(http.MethodGet, http.MethodOptions)
	r.HandleFunc("/ws", s.Hub.ServeWS).Methods(http.MethodGet)

	r.HandleFunc("/evidences/{processor_id}", s.Intake.HandleCreate).Methods(http.MethodPost, http.MethodOptions)
	r.HandleFunc("/evidences", s.requireAuth(s.Intake.HandleList)).Methods(http.MethodGet, http.MethodOptions)
	r.HandleFunc("/evidences/by-id/{evidence_id}", s.requireAuth(s.Intake.HandleGet)).Methods(http.MethodGet, http.MethodOptions)

	r.HandleFunc("/processors/{cluster_id}", s.SyncServer.HandleSync).Methods(http.MethodPost, http.MethodOptions)
	r.HandleFunc("/processors", s.requireAuth(s.handleListProcessors)).Methods(http.MethodGet, http.MethodOptions)
	r.HandleFunc("/processors/by-id/{id}", s.requireAuth(s.handleGetProcessor)).Methods(http.MethodGet, http.MethodOptions)
	r.HandleFunc("/processors/by-id/{id}", s.requireRole(store.RoleSuperAdmin, s.handlePutProcessor)).Methods(http.MethodPut, http.MethodOptions)
	r.HandleFunc("/processors/by-id/{id}", s.requireRole(store.RoleSuperAdmin, s.handleDeleteProcessor)).Methods(http.MethodDelete, http.MethodOptions)

	r.HandleFunc("/violations", s.requireAuth(s.handleListViolations)).Methods(http.MethodGet, http.MethodOptions)

	s.mountClusters(r)
	s.mountUniforms(r)
	s.mountCameras(r)
	s.mountSubscribers(r)
	s.mountUsers(r)

	return r
}

func handlePing(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "pong"})
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

type ctxKey int

const claimsKey ctxKey = 0

// requireAuth rejects requests without a valid bearer access token.
func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, err := s.authenticate(r)
		if err != nil {
			http.Error(w, "UNAUTHORIZED", http.StatusUnauthorized)
			return
		}
		ctx := context.WithValue(r.Context(), claimsKey, claims)
		next(w, r.WithContext(ctx))
	}
}

// requireRole additionally rejects authenticated requests whose role isn't
// the super-admin (resource mutation is admin-gated; reads are merely
// authenticated).
func (s *Server) requireRole(role store.Role, next http.HandlerFunc) http.HandlerFunc {
	return s.requireAuth(func(w http.ResponseWriter, r *http.Request) {
		claims := claimsFrom(r)
		if claims == nil || claims.Role != role {
			http.Error(w, "FORBIDDEN", http.StatusForbidden)
			return
		}
		next(w, r)
	})
}

func (s *Server) authenticate(r *http.Request) (*auth.Claims, error) {
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return nil, auth.ErrInvalidToken
	}
	return s.Auth.Authenticate(strings.TrimPrefix(header, "Bearer "))
}

func claimsFrom(r *http.Request) *auth.Claims {
	claims, _ := r.Context().Value(claimsKey).(*auth.Claims)
	return claims
}

func newID() string { return xid.New().String() }

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeStoreErr(w http.ResponseWriter, err error) {
	status := http.StatusBadRequest
	switch store.ErrKind(err) {
	case store.KindNotFound:
		status = http.StatusNotFound
	case store.KindConflict:
		status = http.StatusConflict
	case store.KindInvalid:
		status = http.StatusBadRequest
	default:
		status = http.StatusInternalServerError
	}
	http.Error(w, "STORE_ERROR", status)
}
