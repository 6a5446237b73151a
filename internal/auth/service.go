package auth

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/contactvault/server/internal/mail"
	"github.com/contactvault/server/internal/model"
	"github.com/contactvault/server/internal/repo"
)

const dispatchTimeout = 30 * time.Second

// TokenPair is an access/refresh token pair issued on login and refresh
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// AuthService orchestrates the account lifecycle: signup, login, token
// refresh, email confirmation and password reset.
type AuthService struct {
	tokens *TokenService
	hasher *PasswordHasher
	users  repo.UserRepo
	mailer mail.Dispatcher
}

// NewAuthService creates a new auth service
func NewAuthService(tokens *TokenService, hasher *PasswordHasher, users repo.UserRepo, mailer mail.Dispatcher) *AuthService {
	return &AuthService{
		tokens: tokens,
		hasher: hasher,
		users:  users,
		mailer: mailer,
	}
}

// gravatarURL builds the default avatar for a fresh account
func gravatarURL(email string) string {
	sum := md5.Sum([]byte(strings.ToLower(strings.TrimSpace(email))))
	return "https://www.gravatar.com/avatar/" + hex.EncodeToString(sum[:]) + "?d=identicon"
}

// Signup creates an unconfirmed account and dispatches a confirmation email
// in the background. Returns ErrEmailTaken if the email is already registered.
func (s *AuthService) Signup(ctx context.Context, username, email, password string) (model.User, error) {
	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return model.User{}, ErrEmailTaken
	} else if !errors.Is(err, repo.ErrNotFound) {
		return model.User{}, fmt.Errorf("signup lookup: %w", err)
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return model.User{}, err
	}

	avatar := gravatarURL(email)
	user, err := s.users.Create(ctx, username, email, hash, &avatar)
	if err != nil {
		if errors.Is(err, repo.ErrDuplicateEmail) {
			return model.User{}, ErrEmailTaken
		}
		return model.User{}, fmt.Errorf("create user: %w", err)
	}

	s.dispatchConfirmation(user.Email, user.Username)

	return user, nil
}

// dispatchConfirmation sends a confirmation email without blocking the caller.
// Failures are logged, never propagated.
func (s *AuthService) dispatchConfirmation(email, username string) {
	token, err := s.tokens.CreateEmailToken(email, ScopeEmailConfirm)
	if err != nil {
		log.Printf("Failed to create confirmation token: %v", err)
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
		defer cancel()
		if err := s.mailer.SendConfirmation(ctx, email, username, token); err != nil {
			log.Printf("Failed to send confirmation email: %v", err)
		}
	}()
}

// Login verifies credentials and issues an access/refresh token pair.
// The refresh token is persisted on the user record.
func (s *AuthService) Login(ctx context.Context, email, password string) (TokenPair, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return TokenPair{}, ErrInvalidCredentials
		}
		return TokenPair{}, fmt.Errorf("login lookup: %w", err)
	}
	if !user.Confirmed {
		return TokenPair{}, ErrEmailNotConfirmed
	}
	if !s.hasher.Verify(password, user.PasswordHash) {
		return TokenPair{}, ErrInvalidCredentials
	}

	return s.issuePair(ctx, user)
}

// Refresh exchanges a valid refresh token for a new pair. The presented token
// must exactly match the persisted one; a mismatch clears the stored token,
// forcing re-login.
func (s *AuthService) Refresh(ctx context.Context, token string) (TokenPair, error) {
	email, err := s.tokens.DecodeRefreshToken(token)
	if err != nil {
		return TokenPair{}, ErrInvalidRefreshToken
	}
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return TokenPair{}, ErrInvalidRefreshToken
		}
		return TokenPair{}, fmt.Errorf("refresh lookup: %w", err)
	}
	if user.RefreshToken == nil || *user.RefreshToken != token {
		if err := s.users.UpdateRefreshToken(ctx, user.ID, nil); err != nil {
			log.Printf("Failed to clear refresh token: %v", err)
		}
		return TokenPair{}, ErrInvalidRefreshToken
	}

	return s.issuePair(ctx, user)
}

// issuePair mints a new access/refresh pair and persists the refresh token
func (s *AuthService) issuePair(ctx context.Context, user model.User) (TokenPair, error) {
	access, err := s.tokens.CreateAccessToken(user.Email)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := s.tokens.CreateRefreshToken(user.Email)
	if err != nil {
		return TokenPair{}, err
	}
	if err := s.users.UpdateRefreshToken(ctx, user.ID, &refresh); err != nil {
		return TokenPair{}, fmt.Errorf("persist refresh token: %w", err)
	}
	return TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// ConfirmEmail marks the account behind the token as confirmed. Idempotent:
// confirming an already-confirmed account reports alreadyConfirmed without
// side effects.
func (s *AuthService) ConfirmEmail(ctx context.Context, token string) (alreadyConfirmed bool, err error) {
	email, err := s.tokens.EmailFromToken(token, ScopeEmailConfirm)
	if err != nil {
		return false, ErrInvalidToken
	}
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return false, ErrVerification
		}
		return false, fmt.Errorf("confirm lookup: %w", err)
	}
	if user.Confirmed {
		return true, nil
	}
	if err := s.users.ConfirmEmail(ctx, email); err != nil {
		return false, fmt.Errorf("confirm email: %w", err)
	}
	return false, nil
}

// RequestConfirmationEmail re-sends the confirmation email. Accounts that are
// already confirmed get the already-confirmed signal instead; unknown emails
// are indistinguishable from successful dispatch.
func (s *AuthService) RequestConfirmationEmail(ctx context.Context, email string) (alreadyConfirmed bool, err error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("request email lookup: %w", err)
	}
	if user.Confirmed {
		return true, nil
	}
	s.dispatchConfirmation(user.Email, user.Username)
	return false, nil
}

// RequestPasswordReset dispatches a reset email if the account exists. The
// response never reveals whether it does.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) error {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("reset request lookup: %w", err)
	}

	token, err := s.tokens.CreateEmailToken(user.Email, ScopePasswordReset)
	if err != nil {
		return err
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
		defer cancel()
		if err := s.mailer.SendPasswordReset(ctx, user.Email, user.Username, token); err != nil {
			log.Printf("Failed to send password reset email: %v", err)
		}
	}()
	return nil
}

// VerifyResetToken validates the emailed token and mints the reset token the
// client must present to SetNewPassword. The reset token is persisted on the
// user record so it can be matched exactly later.
func (s *AuthService) VerifyResetToken(ctx context.Context, token string) (string, error) {
	email, err := s.tokens.EmailFromToken(token, ScopePasswordReset)
	if err != nil {
		return "", ErrInvalidToken
	}
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return "", ErrVerification
		}
		return "", fmt.Errorf("reset verify lookup: %w", err)
	}

	resetToken, err := s.tokens.CreateEmailToken(user.Email, ScopePasswordReset)
	if err != nil {
		return "", err
	}
	if err := s.users.UpdateResetToken(ctx, user.ID, &resetToken); err != nil {
		return "", fmt.Errorf("persist reset token: %w", err)
	}
	return resetToken, nil
}

// SetNewPassword completes the reset flow: the presented token must exactly
// match the persisted reset token, and the two password fields must agree.
// On success the hash is replaced and the reset token cleared.
func (s *AuthService) SetNewPassword(ctx context.Context, token, newPassword, confirmPassword string) error {
	if newPassword != confirmPassword {
		return ErrPasswordMismatch
	}
	email, err := s.tokens.EmailFromToken(token, ScopePasswordReset)
	if err != nil {
		return ErrInvalidToken
	}
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrVerification
		}
		return fmt.Errorf("set password lookup: %w", err)
	}
	if user.ResetToken == nil || *user.ResetToken != token {
		return ErrInvalidResetToken
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return err
	}
	if err := s.users.UpdatePassword(ctx, user.ID, hash); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if err := s.users.UpdateResetToken(ctx, user.ID, nil); err != nil {
		return fmt.Errorf("clear reset token: %w", err)
	}
	return nil
}
