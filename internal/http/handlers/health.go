package handlers

import (
	"database/sql"
	"log"
	"net/http"
)

// HealthHandler reports service and database health
type HealthHandler struct {
	db *sql.DB
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(db *sql.DB) *HealthHandler {
	return &HealthHandler{db: db}
}

// ServeHTTP handles GET /health: probes the database with a trivial query
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var one int
	if err := h.db.QueryRowContext(r.Context(), "SELECT 1").Scan(&one); err != nil {
		log.Printf("Health check failed: %v", err)
		respondWithError(w, http.StatusInternalServerError, "database unavailable")
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"ok": true})
}
