package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contactvault/server/internal/auth"
	"github.com/contactvault/server/internal/http/handlers"
	"github.com/contactvault/server/internal/model"
	"github.com/contactvault/server/internal/repo"
)

type staticLimiter struct {
	allowed bool
}

func (l staticLimiter) Allow(context.Context, string) bool { return l.allowed }

// countingUserRepo serves one user and counts lookups
type countingUserRepo struct {
	user    model.User
	lookups int
}

func (c *countingUserRepo) Create(context.Context, string, string, string, *string) (model.User, error) {
	return model.User{}, repo.ErrDuplicateEmail
}

func (c *countingUserRepo) GetByEmail(_ context.Context, email string) (model.User, error) {
	c.lookups++
	if email == c.user.Email {
		return c.user, nil
	}
	return model.User{}, repo.ErrNotFound
}

func (c *countingUserRepo) GetByID(_ context.Context, id uuid.UUID) (model.User, error) {
	if id == c.user.ID {
		return c.user, nil
	}
	return model.User{}, repo.ErrNotFound
}

func (c *countingUserRepo) UpdateRefreshToken(context.Context, uuid.UUID, *string) error { return nil }
func (c *countingUserRepo) UpdateResetToken(context.Context, uuid.UUID, *string) error   { return nil }
func (c *countingUserRepo) UpdatePassword(context.Context, uuid.UUID, string) error      { return nil }
func (c *countingUserRepo) ConfirmEmail(context.Context, string) error                   { return nil }

func newRouterUnderTest(apiLimiter staticLimiter) (*countingUserRepo, http.Handler, string) {
	tokens := auth.NewTokenService("test-jwt-secret-at-least-32-characters-long")
	users := &countingUserRepo{user: model.User{
		ID: uuid.New(), Username: "alice", Email: "alice@example.com", Confirmed: true,
	}}

	h := Handlers{
		Auth:     handlers.NewAuthHandler(nil),
		Contacts: handlers.NewContactsHandler(nil),
		Users:    handlers.NewUsersHandler(),
		Health:   handlers.NewHealthHandler(nil),
	}
	router := NewRouter(h, tokens, users, staticLimiter{allowed: true}, apiLimiter)

	token, _ := tokens.CreateAccessToken(users.user.Email)
	return users, router, token
}

// A throttled request must be rejected before token verification and before
// any user lookup runs.
func TestRouter_limiterRunsBeforeAuth(t *testing.T) {
	users, router, token := newRouterUnderTest(staticLimiter{allowed: false})

	req := httptest.NewRequest(http.MethodGet, "/users/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	req.RemoteAddr = "10.0.0.1:1234"
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, 0, users.lookups, "throttled request must not touch the users table")
}

func TestRouter_admittedRequestResolvesUser(t *testing.T) {
	users, router, token := newRouterUnderTest(staticLimiter{allowed: true})

	req := httptest.NewRequest(http.MethodGet, "/users/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	req.RemoteAddr = "10.0.0.1:1234"
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, users.lookups)
}
