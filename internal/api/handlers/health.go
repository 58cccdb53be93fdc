package handlers

import (
	"net/http"
	"os"

	"github.com/jmoiron/sqlx"
)

// HealthHandler serves liveness and database health probes.
type HealthHandler struct {
	postgres *sqlx.DB
}

// NewHealthHandler creates a new health handler. postgres may be nil when the
// handler is used without a database (tests).
func NewHealthHandler(postgres *sqlx.DB) *HealthHandler {
	return &HealthHandler{postgres: postgres}
}

// Handle handles GET /health
func (h *HealthHandler) Handle(w http.ResponseWriter, r *http.Request) {
	hostname, _ := os.Hostname()
	respondWithJSON(w, http.StatusOK, map[string]string{
		"status":   "ok",
		"service":  "dealhub",
		"hostname": hostname,
	})
}

// HandleDB handles GET /health/db
func (h *HealthHandler) HandleDB(w http.ResponseWriter, r *http.Request) {
	if h.postgres == nil || h.postgres.PingContext(r.Context()) != nil {
		respondWithJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status":  "error",
			"message": "postgres unavailable",
		})
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]string{
		"status":   "ok",
		"postgres": "connected",
	})
}
