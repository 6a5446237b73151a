package handlers

import (
	"net/http"

	"github.com/contactvault/server/internal/middleware"
)

// UsersHandler handles user-profile endpoints
type UsersHandler struct{}

// NewUsersHandler creates a new users handler
func NewUsersHandler() *UsersHandler {
	return &UsersHandler{}
}

// HandleMe handles GET /users/me. Returns the authenticated user.
func (h *UsersHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok || user == nil {
		respondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	respondJSON(w, http.StatusOK, newUserResponse(user))
}
