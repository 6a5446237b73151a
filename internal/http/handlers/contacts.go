package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/contactvault/server/internal/middleware"
	"github.com/contactvault/server/internal/model"
	"github.com/contactvault/server/internal/repo"
)

const (
	defaultPageLimit = 100
	maxPageLimit     = 500
	defaultDaysAhead = 7
)

// ContactsHandler handles the contact CRUD and query endpoints.
// Every operation is scoped to the authenticated user.
type ContactsHandler struct {
	contacts repo.ContactRepo
}

// NewContactsHandler creates a new contacts handler
func NewContactsHandler(contacts repo.ContactRepo) *ContactsHandler {
	return &ContactsHandler{contacts: contacts}
}

// contactRequest is the request body for create and full-replace update
type contactRequest struct {
	Name     string `json:"name"`
	Surname  string `json:"surname"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Birthday string `json:"birthday"` // YYYY-MM-DD
}

// contactResponse is the contact object in API responses
type contactResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Surname   string    `json:"surname"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	Birthday  string    `json:"birthday"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func newContactResponse(c model.Contact) contactResponse {
	return contactResponse{
		ID:        c.ID.String(),
		Name:      c.Name,
		Surname:   c.Surname,
		Email:     c.Email,
		Phone:     c.Phone,
		Birthday:  c.Birthday.Format("2006-01-02"),
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}

func newContactListResponse(contacts []model.Contact) []contactResponse {
	resp := make([]contactResponse, 0, len(contacts))
	for _, c := range contacts {
		resp = append(resp, newContactResponse(c))
	}
	return resp
}

// parseContactRequest decodes and validates a contact payload
func parseContactRequest(r *http.Request) (model.ContactFields, string) {
	var req contactRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return model.ContactFields{}, "invalid request body"
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Surname = strings.TrimSpace(req.Surname)
	req.Email = strings.TrimSpace(req.Email)

	if req.Name == "" || len(req.Name) > 50 {
		return model.ContactFields{}, "name is required (max 50 characters)"
	}
	if req.Surname == "" || len(req.Surname) > 50 {
		return model.ContactFields{}, "surname is required (max 50 characters)"
	}
	if !validEmail(req.Email) {
		return model.ContactFields{}, "invalid email address"
	}
	birthday, err := time.Parse("2006-01-02", req.Birthday)
	if err != nil {
		return model.ContactFields{}, "birthday must be a YYYY-MM-DD date"
	}

	return model.ContactFields{
		Name:     req.Name,
		Surname:  req.Surname,
		Email:    req.Email,
		Phone:    strings.TrimSpace(req.Phone),
		Birthday: birthday,
	}, ""
}

// paging parses offset/limit query params with defaults and bounds
func paging(r *http.Request) (offset, limit int) {
	offset = 0
	limit = defaultPageLimit
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= maxPageLimit {
			limit = n
		}
	}
	return offset, limit
}

// contactID parses the {id} path param
func contactID(r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	return id, err == nil
}

// HandleList handles GET /contacts
func (h *ContactsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	offset, limit := paging(r)

	contacts, err := h.contacts.List(r.Context(), user.ID, offset, limit)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "failed to list contacts")
		return
	}
	respondJSON(w, http.StatusOK, newContactListResponse(contacts))
}

// HandleGet handles GET /contacts/{id}
func (h *ContactsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	id, ok := contactID(r)
	if !ok {
		respondWithError(w, http.StatusBadRequest, "invalid contact id")
		return
	}

	contact, err := h.contacts.Get(r.Context(), id, user.ID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			respondWithError(w, http.StatusNotFound, "contact not found")
			return
		}
		respondWithError(w, http.StatusInternalServerError, "failed to get contact")
		return
	}
	respondJSON(w, http.StatusOK, newContactResponse(contact))
}

// HandleSearch handles GET /contacts/search
func (h *ContactsHandler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	offset, limit := paging(r)
	filters := repo.SearchFilters{
		Name:    strings.TrimSpace(r.URL.Query().Get("name")),
		Surname: strings.TrimSpace(r.URL.Query().Get("surname")),
		Email:   strings.TrimSpace(r.URL.Query().Get("email")),
	}

	contacts, err := h.contacts.Search(r.Context(), user.ID, filters, offset, limit)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "failed to search contacts")
		return
	}
	respondJSON(w, http.StatusOK, newContactListResponse(contacts))
}

// HandleBirthdays handles GET /contacts/birthdays
func (h *ContactsHandler) HandleBirthdays(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	days := defaultDaysAhead
	if v := r.URL.Query().Get("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 366 {
			respondWithError(w, http.StatusBadRequest, "days must be between 1 and 366")
			return
		}
		days = n
	}

	contacts, err := h.contacts.UpcomingBirthdays(r.Context(), user.ID, days)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "failed to query birthdays")
		return
	}
	respondJSON(w, http.StatusOK, newContactListResponse(contacts))
}

// HandleCreate handles POST /contacts
func (h *ContactsHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	fields, msg := parseContactRequest(r)
	if msg != "" {
		respondWithError(w, http.StatusBadRequest, msg)
		return
	}

	contact, err := h.contacts.Create(r.Context(), user.ID, fields)
	if err != nil {
		if errors.Is(err, repo.ErrDuplicateEmail) {
			respondWithError(w, http.StatusConflict, "contact email already exists")
			return
		}
		respondWithError(w, http.StatusInternalServerError, "failed to create contact")
		return
	}
	respondJSON(w, http.StatusCreated, newContactResponse(contact))
}

// HandleUpdate handles PUT /contacts/{id} (full-field replace)
func (h *ContactsHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	id, ok := contactID(r)
	if !ok {
		respondWithError(w, http.StatusBadRequest, "invalid contact id")
		return
	}
	fields, msg := parseContactRequest(r)
	if msg != "" {
		respondWithError(w, http.StatusBadRequest, msg)
		return
	}

	contact, err := h.contacts.Update(r.Context(), id, user.ID, fields)
	if err != nil {
		switch {
		case errors.Is(err, repo.ErrNotFound):
			respondWithError(w, http.StatusNotFound, "contact not found")
		case errors.Is(err, repo.ErrDuplicateEmail):
			respondWithError(w, http.StatusConflict, "contact email already exists")
		default:
			respondWithError(w, http.StatusInternalServerError, "failed to update contact")
		}
		return
	}
	respondJSON(w, http.StatusOK, newContactResponse(contact))
}

// HandleDelete handles DELETE /contacts/{id}
func (h *ContactsHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	id, ok := contactID(r)
	if !ok {
		respondWithError(w, http.StatusBadRequest, "invalid contact id")
		return
	}

	if err := h.contacts.Delete(r.Context(), id, user.ID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			respondWithError(w, http.StatusNotFound, "contact not found")
			return
		}
		respondWithError(w, http.StatusInternalServerError, "failed to delete contact")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
