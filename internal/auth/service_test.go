package auth

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contactvault/server/internal/model"
	"github.com/contactvault/server/internal/repo"
)

// fakeUserRepo is an in-memory repo.UserRepo for service tests
type fakeUserRepo struct {
	mu    sync.Mutex
	users map[string]*model.User // keyed by email
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[string]*model.User)}
}

func (f *fakeUserRepo) Create(_ context.Context, username, email, passwordHash string, avatar *string) (model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[email]; ok {
		return model.User{}, repo.ErrDuplicateEmail
	}
	u := &model.User{
		ID:           uuid.New(),
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
		Avatar:       avatar,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
	f.users[email] = u
	return *u, nil
}

func (f *fakeUserRepo) GetByEmail(_ context.Context, email string) (model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[email]
	if !ok {
		return model.User{}, repo.ErrNotFound
	}
	return *u, nil
}

func (f *fakeUserRepo) GetByID(_ context.Context, id uuid.UUID) (model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.ID == id {
			return *u, nil
		}
	}
	return model.User{}, repo.ErrNotFound
}

func (f *fakeUserRepo) byID(id uuid.UUID) *model.User {
	for _, u := range f.users {
		if u.ID == id {
			return u
		}
	}
	return nil
}

func (f *fakeUserRepo) UpdateRefreshToken(_ context.Context, id uuid.UUID, token *string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u := f.byID(id)
	if u == nil {
		return repo.ErrNotFound
	}
	u.RefreshToken = token
	return nil
}

func (f *fakeUserRepo) UpdateResetToken(_ context.Context, id uuid.UUID, token *string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u := f.byID(id)
	if u == nil {
		return repo.ErrNotFound
	}
	u.ResetToken = token
	return nil
}

func (f *fakeUserRepo) UpdatePassword(_ context.Context, id uuid.UUID, passwordHash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u := f.byID(id)
	if u == nil {
		return repo.ErrNotFound
	}
	u.PasswordHash = passwordHash
	return nil
}

func (f *fakeUserRepo) ConfirmEmail(_ context.Context, email string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[email]
	if !ok {
		return repo.ErrNotFound
	}
	u.Confirmed = true
	return nil
}

func (f *fakeUserRepo) confirm(email string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[email].Confirmed = true
}

func (f *fakeUserRepo) refreshToken(email string) *string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.users[email].RefreshToken
}

func (f *fakeUserRepo) resetToken(email string) *string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.users[email].ResetToken
}

// recordingDispatcher records dispatched mail for assertions
type recordingDispatcher struct {
	mu            sync.Mutex
	confirmations []string // tokens
	resets        []string
}

func (d *recordingDispatcher) SendConfirmation(_ context.Context, _, _, token string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.confirmations = append(d.confirmations, token)
	return nil
}

func (d *recordingDispatcher) SendPasswordReset(_ context.Context, _, _, token string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.resets = append(d.resets, token)
	return nil
}

func (d *recordingDispatcher) confirmationCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.confirmations)
}

func (d *recordingDispatcher) resetCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.resets)
}

func (d *recordingDispatcher) lastReset() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.resets[len(d.resets)-1]
}

func newTestService() (*AuthService, *fakeUserRepo, *recordingDispatcher) {
	users := newFakeUserRepo()
	mailer := &recordingDispatcher{}
	svc := NewAuthService(NewTokenService(testSecret), NewPasswordHasher(), users, mailer)
	return svc, users, mailer
}

func TestSignup_createsUnconfirmedUser(t *testing.T) {
	svc, users, mailer := newTestService()
	ctx := context.Background()

	user, err := svc.Signup(ctx, "alice", "alice@example.com", "s3cret")
	require.NoError(t, err)

	assert.False(t, user.Confirmed, "fresh accounts start unconfirmed")
	assert.NotEqual(t, "s3cret", user.PasswordHash, "password must never be stored in plaintext")
	assert.NotNil(t, user.Avatar)
	assert.Nil(t, user.RefreshToken)

	stored, err := users.GetByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.False(t, stored.Confirmed)

	// Confirmation mail is dispatched in the background.
	require.Eventually(t, func() bool { return mailer.confirmationCount() == 1 },
		time.Second, 10*time.Millisecond)
}

func TestSignup_duplicateEmailConflicts(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	_, err := svc.Signup(ctx, "alice", "alice@example.com", "s3cret")
	require.NoError(t, err)

	_, err = svc.Signup(ctx, "mallory", "alice@example.com", "other-pass")
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestLogin_unconfirmedFailsRegardlessOfPassword(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	_, err := svc.Signup(ctx, "alice", "alice@example.com", "s3cret")
	require.NoError(t, err)

	_, err = svc.Login(ctx, "alice@example.com", "s3cret")
	assert.ErrorIs(t, err, ErrEmailNotConfirmed)

	_, err = svc.Login(ctx, "alice@example.com", "wrong")
	assert.ErrorIs(t, err, ErrEmailNotConfirmed)
}

func TestLogin_credentialErrorsAreUniform(t *testing.T) {
	svc, users, _ := newTestService()
	ctx := context.Background()

	_, err := svc.Signup(ctx, "alice", "alice@example.com", "s3cret")
	require.NoError(t, err)
	users.confirm("alice@example.com")

	_, unknownErr := svc.Login(ctx, "nobody@example.com", "s3cret")
	_, wrongPassErr := svc.Login(ctx, "alice@example.com", "wrong")

	// Unknown email and wrong password must be indistinguishable.
	assert.ErrorIs(t, unknownErr, ErrInvalidCredentials)
	assert.ErrorIs(t, wrongPassErr, ErrInvalidCredentials)
}

func TestLogin_issuesAndPersistsTokens(t *testing.T) {
	svc, users, _ := newTestService()
	ctx := context.Background()

	_, err := svc.Signup(ctx, "alice", "alice@example.com", "s3cret")
	require.NoError(t, err)
	users.confirm("alice@example.com")

	pair, err := svc.Login(ctx, "alice@example.com", "s3cret")
	require.NoError(t, err)
	assert.NotEmpty(t, pair.AccessToken)
	assert.NotEmpty(t, pair.RefreshToken)

	stored := users.refreshToken("alice@example.com")
	require.NotNil(t, stored)
	assert.Equal(t, pair.RefreshToken, *stored)
}

func TestRefresh_rotatesAndClearsOnMismatch(t *testing.T) {
	svc, users, _ := newTestService()
	ctx := context.Background()

	_, err := svc.Signup(ctx, "alice", "alice@example.com", "s3cret")
	require.NoError(t, err)
	users.confirm("alice@example.com")

	pair, err := svc.Login(ctx, "alice@example.com", "s3cret")
	require.NoError(t, err)

	// Rotation succeeds and persists the new token.
	rotated, err := svc.Refresh(ctx, pair.RefreshToken)
	require.NoError(t, err)
	stored := users.refreshToken("alice@example.com")
	require.NotNil(t, stored)
	assert.Equal(t, rotated.RefreshToken, *stored)

	// The old token no longer matches; the mismatch clears the stored token.
	_, err = svc.Refresh(ctx, pair.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)
	assert.Nil(t, users.refreshToken("alice@example.com"))

	// Even the rotated token is now rejected, forcing re-login.
	_, err = svc.Refresh(ctx, rotated.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)
}

func TestRefresh_rejectsGarbage(t *testing.T) {
	svc, _, _ := newTestService()
	_, err := svc.Refresh(context.Background(), "not-a-token")
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)
}

func TestConfirmEmail_isIdempotent(t *testing.T) {
	svc, users, _ := newTestService()
	ctx := context.Background()

	_, err := svc.Signup(ctx, "alice", "alice@example.com", "s3cret")
	require.NoError(t, err)

	token, err := svc.tokens.CreateEmailToken("alice@example.com", ScopeEmailConfirm)
	require.NoError(t, err)

	already, err := svc.ConfirmEmail(ctx, token)
	require.NoError(t, err)
	assert.False(t, already)

	stored, _ := users.GetByEmail(ctx, "alice@example.com")
	assert.True(t, stored.Confirmed)

	// Confirming twice reports already-confirmed without erroring.
	already, err = svc.ConfirmEmail(ctx, token)
	require.NoError(t, err)
	assert.True(t, already)
}

func TestConfirmEmail_rejectsWrongScope(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	_, err := svc.Signup(ctx, "alice", "alice@example.com", "s3cret")
	require.NoError(t, err)

	reset, err := svc.tokens.CreateEmailToken("alice@example.com", ScopePasswordReset)
	require.NoError(t, err)

	_, err = svc.ConfirmEmail(ctx, reset)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestRequestConfirmationEmail(t *testing.T) {
	svc, users, mailer := newTestService()
	ctx := context.Background()

	_, err := svc.Signup(ctx, "alice", "alice@example.com", "s3cret")
	require.NoError(t, err)
	require.Eventually(t, func() bool { return mailer.confirmationCount() == 1 },
		time.Second, 10*time.Millisecond)

	// Unconfirmed: re-dispatches.
	already, err := svc.RequestConfirmationEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.False(t, already)
	require.Eventually(t, func() bool { return mailer.confirmationCount() == 2 },
		time.Second, 10*time.Millisecond)

	// Confirmed: short-circuits without dispatching.
	users.confirm("alice@example.com")
	already, err = svc.RequestConfirmationEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.True(t, already)

	// Unknown email: indistinguishable from success, no dispatch.
	already, err = svc.RequestConfirmationEmail(ctx, "nobody@example.com")
	require.NoError(t, err)
	assert.False(t, already)
	assert.Equal(t, 2, mailer.confirmationCount())
}

func TestPasswordResetFlow(t *testing.T) {
	svc, users, mailer := newTestService()
	ctx := context.Background()

	_, err := svc.Signup(ctx, "alice", "alice@example.com", "s3cret")
	require.NoError(t, err)
	users.confirm("alice@example.com")

	require.NoError(t, svc.RequestPasswordReset(ctx, "alice@example.com"))
	require.Eventually(t, func() bool { return mailer.resetCount() == 1 },
		time.Second, 10*time.Millisecond)

	// The emailed token is exchanged for the persisted reset token.
	resetToken, err := svc.VerifyResetToken(ctx, mailer.lastReset())
	require.NoError(t, err)
	stored := users.resetToken("alice@example.com")
	require.NotNil(t, stored)
	assert.Equal(t, resetToken, *stored)

	// Mismatching new/confirm fields fail.
	err = svc.SetNewPassword(ctx, resetToken, "new-pass-1", "new-pass-2")
	assert.ErrorIs(t, err, ErrPasswordMismatch)

	// Completing the reset updates the password and clears the token.
	require.NoError(t, svc.SetNewPassword(ctx, resetToken, "new-pass", "new-pass"))
	assert.Nil(t, users.resetToken("alice@example.com"))

	_, err = svc.Login(ctx, "alice@example.com", "s3cret")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = svc.Login(ctx, "alice@example.com", "new-pass")
	assert.NoError(t, err)
}

func TestSetNewPassword_rejectsUnpersistedToken(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	_, err := svc.Signup(ctx, "alice", "alice@example.com", "s3cret")
	require.NoError(t, err)

	// Valid signature and scope, but never persisted via VerifyResetToken.
	token, err := svc.tokens.CreateEmailToken("alice@example.com", ScopePasswordReset)
	require.NoError(t, err)

	err = svc.SetNewPassword(ctx, token, "new-pass", "new-pass")
	assert.ErrorIs(t, err, ErrInvalidResetToken)
}

func TestSetNewPassword_rejectsConfirmationToken(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	_, err := svc.Signup(ctx, "alice", "alice@example.com", "s3cret")
	require.NoError(t, err)

	confirm, err := svc.tokens.CreateEmailToken("alice@example.com", ScopeEmailConfirm)
	require.NoError(t, err)

	err = svc.SetNewPassword(ctx, confirm, "new-pass", "new-pass")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestRequestPasswordReset_unknownEmailIsSilent(t *testing.T) {
	svc, _, mailer := newTestService()

	require.NoError(t, svc.RequestPasswordReset(context.Background(), "nobody@example.com"))
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 0, mailer.resetCount())
}
