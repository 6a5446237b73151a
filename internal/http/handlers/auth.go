package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/contactvault/server/internal/auth"
	"github.com/contactvault/server/internal/model"
)

// AuthHandler handles authentication endpoints
type AuthHandler struct {
	authService *auth.AuthService
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(authService *auth.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

// signupRequest is the request body for POST /auth/signup
type signupRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// userResponse is the user object in API responses
type userResponse struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Avatar    string    `json:"avatar,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func newUserResponse(user *model.User) userResponse {
	resp := userResponse{
		ID:        user.ID.String(),
		Username:  user.Username,
		Email:     user.Email,
		CreatedAt: user.CreatedAt,
	}
	if user.Avatar != nil {
		resp.Avatar = *user.Avatar
	}
	return resp
}

// tokenResponse is the token pair returned by login and refresh
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
}

func validEmail(email string) bool {
	_, err := mail.ParseAddress(email)
	return err == nil
}

// HandleSignup handles POST /auth/signup
func (h *AuthHandler) HandleSignup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)

	if len(req.Username) < 3 || len(req.Username) > 50 {
		respondWithError(w, http.StatusBadRequest, "username must be 3-50 characters")
		return
	}
	if !validEmail(req.Email) {
		respondWithError(w, http.StatusBadRequest, "invalid email address")
		return
	}
	// bcrypt rejects passwords over 72 bytes
	if len(req.Password) < 6 || len(req.Password) > 72 {
		respondWithError(w, http.StatusBadRequest, "password must be 6-72 characters")
		return
	}

	user, err := h.authService.Signup(r.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrEmailTaken) {
			respondWithError(w, http.StatusConflict, "account already exists")
			return
		}
		respondWithError(w, http.StatusInternalServerError, "failed to create account")
		return
	}

	respondJSON(w, http.StatusCreated, newUserResponse(&user))
}

// loginRequest is the request body for POST /auth/login
type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// HandleLogin handles POST /auth/login
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" || req.Password == "" {
		respondWithError(w, http.StatusBadRequest, "email and password are required")
		return
	}

	pair, err := h.authService.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrEmailNotConfirmed):
			respondWithError(w, http.StatusUnauthorized, "email not confirmed")
		case errors.Is(err, auth.ErrInvalidCredentials):
			respondWithError(w, http.StatusUnauthorized, "invalid credentials")
		default:
			respondWithError(w, http.StatusInternalServerError, "login failed")
		}
		return
	}

	respondJSON(w, http.StatusOK, tokenResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		TokenType:    "bearer",
	})
}

// HandleRefresh handles GET /auth/refresh_token (bearer refresh token)
func (h *AuthHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if token == "" {
		respondWithError(w, http.StatusUnauthorized, "missing refresh token")
		return
	}

	pair, err := h.authService.Refresh(r.Context(), token)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidRefreshToken) {
			respondWithError(w, http.StatusUnauthorized, "invalid refresh token")
			return
		}
		respondWithError(w, http.StatusInternalServerError, "refresh failed")
		return
	}

	respondJSON(w, http.StatusOK, tokenResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		TokenType:    "bearer",
	})
}

// HandleConfirmEmail handles GET /auth/confirmed_email/{token}
func (h *AuthHandler) HandleConfirmEmail(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	already, err := h.authService.ConfirmEmail(r.Context(), token)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidToken):
			respondWithError(w, http.StatusUnauthorized, "invalid or expired token")
		case errors.Is(err, auth.ErrVerification):
			respondWithError(w, http.StatusBadRequest, "verification error")
		default:
			respondWithError(w, http.StatusInternalServerError, "confirmation failed")
		}
		return
	}
	if already {
		respondWithMessage(w, http.StatusOK, "Your email is already confirmed")
		return
	}
	respondWithMessage(w, http.StatusOK, "Email confirmed")
}

// emailRequest is the request body for request_email and reset_password
type emailRequest struct {
	Email string `json:"email"`
}

// HandleRequestEmail handles POST /auth/request_email (resend confirmation)
func (h *AuthHandler) HandleRequestEmail(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	if !validEmail(req.Email) {
		respondWithError(w, http.StatusBadRequest, "invalid email address")
		return
	}

	already, err := h.authService.RequestConfirmationEmail(r.Context(), req.Email)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "request failed")
		return
	}
	if already {
		respondWithMessage(w, http.StatusOK, "Your email is already confirmed")
		return
	}
	respondWithMessage(w, http.StatusOK, "Check your email for confirmation.")
}

// HandleRequestPasswordReset handles POST /auth/reset_password
func (h *AuthHandler) HandleRequestPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	if !validEmail(req.Email) {
		respondWithError(w, http.StatusBadRequest, "invalid email address")
		return
	}

	if err := h.authService.RequestPasswordReset(r.Context(), req.Email); err != nil {
		respondWithError(w, http.StatusInternalServerError, "request failed")
		return
	}
	respondWithMessage(w, http.StatusOK, "Check your email for the next step.")
}

// HandleVerifyResetToken handles GET /auth/reset_password/{token}
func (h *AuthHandler) HandleVerifyResetToken(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	resetToken, err := h.authService.VerifyResetToken(r.Context(), token)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidToken):
			respondWithError(w, http.StatusUnauthorized, "invalid or expired token")
		case errors.Is(err, auth.ErrVerification):
			respondWithError(w, http.StatusBadRequest, "verification error")
		default:
			respondWithError(w, http.StatusInternalServerError, "request failed")
		}
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"reset_password_token": resetToken})
}

// setNewPasswordRequest is the request body for POST /auth/set_new_password
type setNewPasswordRequest struct {
	ResetPasswordToken string `json:"reset_password_token"`
	NewPassword        string `json:"new_password"`
	ConfirmPassword    string `json:"confirm_password"`
}

// HandleSetNewPassword handles POST /auth/set_new_password
func (h *AuthHandler) HandleSetNewPassword(w http.ResponseWriter, r *http.Request) {
	var req setNewPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ResetPasswordToken == "" {
		respondWithError(w, http.StatusBadRequest, "reset_password_token is required")
		return
	}
	if len(req.NewPassword) < 6 || len(req.NewPassword) > 72 {
		respondWithError(w, http.StatusBadRequest, "password must be 6-72 characters")
		return
	}

	err := h.authService.SetNewPassword(r.Context(), req.ResetPasswordToken, req.NewPassword, req.ConfirmPassword)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrPasswordMismatch):
			respondWithError(w, http.StatusUnauthorized, "passwords do not match")
		case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrInvalidResetToken):
			respondWithError(w, http.StatusUnauthorized, "invalid reset token")
		case errors.Is(err, auth.ErrVerification):
			respondWithError(w, http.StatusBadRequest, "verification error")
		default:
			respondWithError(w, http.StatusInternalServerError, "password update failed")
		}
		return
	}
	respondWithMessage(w, http.StatusOK, "Password successfully updated")
}

// bearerToken extracts the bearer credential from the Authorization header
func bearerToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
