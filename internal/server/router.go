package server

import (
	"database/sql"
	"net/http"

	"github.com/gorilla/mux"
)

// NewRouter wires all backend routes. Everything under /api except ping,
// register, and login requires a bearer token.
func NewRouter(db *sql.DB) *mux.Router {
	h := NewHandlers(db)
	r := mux.NewRouter()

	r.HandleFunc("/health", h.Health).Methods(http.MethodGet)
	r.HandleFunc("/api/ping", h.Ping).Methods(http.MethodGet)
	r.HandleFunc("/api/register", h.Register).Methods(http.MethodPost)
	r.HandleFunc("/api/login", h.Login).Methods(http.MethodPost)

	r.HandleFunc("/api/me", RequireAuth(db, h.MeGet)).Methods(http.MethodGet)
	r.HandleFunc("/api/me", RequireAuth(db, h.MePut)).Methods(http.MethodPut)
	r.HandleFunc("/api/weights", RequireAuth(db, h.WeightsList)).Methods(http.MethodGet)
	r.HandleFunc("/api/weights", RequireAuth(db, h.WeightsAdd)).Methods(http.MethodPost)
	r.HandleFunc("/api/runs", RequireAuth(db, h.RunsList)).Methods(http.MethodGet)
	r.HandleFunc("/api/runs", RequireAuth(db, h.RunsAdd)).Methods(http.MethodPost)
	r.HandleFunc("/api/summary", RequireAuth(db, h.Summary)).Methods(http.MethodGet)

	return r
}
