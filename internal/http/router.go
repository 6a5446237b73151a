package http

import (
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/contactvault/server/internal/auth"
	"github.com/contactvault/server/internal/http/handlers"
	"github.com/contactvault/server/internal/middleware"
	"github.com/contactvault/server/internal/repo"
)

// Handlers bundles the route handlers wired by NewRouter
type Handlers struct {
	Auth     *handlers.AuthHandler
	Contacts *handlers.ContactsHandler
	Users    *handlers.UsersHandler
	Health   *handlers.HealthHandler
}

// NewRouter creates a new HTTP router with all routes configured.
// Both limiters key by client IP and run before any token or database
// work; authLimiter guards the auth endpoints, apiLimiter the rest.
func NewRouter(h Handlers, tokens *auth.TokenService, userRepo repo.UserRepo,
	authLimiter, apiLimiter middleware.Limiter) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)

	r.Get("/health", h.Health.ServeHTTP)

	r.Route("/auth", func(r chi.Router) {
		r.Use(middleware.RateLimitMiddleware(authLimiter, middleware.IPKey))
		r.Post("/signup", h.Auth.HandleSignup)
		r.Post("/login", h.Auth.HandleLogin)
		r.Get("/refresh_token", h.Auth.HandleRefresh)
		r.Get("/confirmed_email/{token}", h.Auth.HandleConfirmEmail)
		r.Post("/request_email", h.Auth.HandleRequestEmail)
		r.Post("/reset_password", h.Auth.HandleRequestPasswordReset)
		r.Get("/reset_password/{token}", h.Auth.HandleVerifyResetToken)
		r.Post("/set_new_password", h.Auth.HandleSetNewPassword)
	})

	// Protected routes (require valid access token). The limiter runs first
	// so throttled requests never reach token verification or the user lookup.
	r.Group(func(r chi.Router) {
		r.Use(middleware.RateLimitMiddleware(apiLimiter, middleware.IPKey))
		r.Use(middleware.AuthMiddleware(tokens, userRepo))

		r.Get("/users/me", h.Users.HandleMe)

		r.Route("/contacts", func(r chi.Router) {
			r.Get("/", h.Contacts.HandleList)
			r.Post("/", h.Contacts.HandleCreate)
			r.Get("/search", h.Contacts.HandleSearch)
			r.Get("/birthdays", h.Contacts.HandleBirthdays)
			r.Get("/{id}", h.Contacts.HandleGet)
			r.Put("/{id}", h.Contacts.HandleUpdate)
			r.Delete("/{id}", h.Contacts.HandleDelete)
		})
	})

	return r
}
