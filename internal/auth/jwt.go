package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	accessTokenExpiry  = 15 * time.Minute
	refreshTokenExpiry = 7 * 24 * time.Hour
	emailTokenExpiry   = 24 * time.Hour
)

// Token scopes. Email-action tokens carry an explicit scope so a
// confirmation token can never pass reset-token verification.
const (
	ScopeAccess        = "access"
	ScopeRefresh       = "refresh"
	ScopeEmailConfirm  = "email_confirm"
	ScopePasswordReset = "password_reset"
)

// ErrInvalidToken is returned for any token that fails signature, expiry or scope checks.
var ErrInvalidToken = errors.New("invalid or expired token")

// TokenClaims represents the signed claims for all token kinds
type TokenClaims struct {
	Scope string `json:"scope"`
	jwt.RegisteredClaims
}

// TokenService mints and verifies signed, time-limited claims tied to a user's email
type TokenService struct {
	secret []byte
}

// NewTokenService creates a new token service
func NewTokenService(secret string) *TokenService {
	return &TokenService{
		secret: []byte(secret),
	}
}

func (s *TokenService) sign(email, scope string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &TokenClaims{
		Scope: scope,
		RegisteredClaims: jwt.RegisteredClaims{
			// A unique ID keeps two tokens minted in the same second distinct,
			// so rotating a refresh token always invalidates its predecessor.
			ID:        uuid.NewString(),
			Subject:   email,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign %s token: %w", scope, err)
	}

	return tokenString, nil
}

// CreateAccessToken creates a short-lived access token (15 min expiry)
func (s *TokenService) CreateAccessToken(email string) (string, error) {
	return s.sign(email, ScopeAccess, accessTokenExpiry)
}

// CreateRefreshToken creates a long-lived refresh token (7 day expiry)
func (s *TokenService) CreateRefreshToken(email string) (string, error) {
	return s.sign(email, ScopeRefresh, refreshTokenExpiry)
}

// CreateRefreshTokenWithTTL creates a refresh token with an explicit expiry (used by tests)
func (s *TokenService) CreateRefreshTokenWithTTL(email string, ttl time.Duration) (string, error) {
	return s.sign(email, ScopeRefresh, ttl)
}

// CreateEmailToken creates a medium-lived email-action token (24h expiry).
// scope must be ScopeEmailConfirm or ScopePasswordReset.
func (s *TokenService) CreateEmailToken(email, scope string) (string, error) {
	if scope != ScopeEmailConfirm && scope != ScopePasswordReset {
		return "", fmt.Errorf("invalid email token scope %q", scope)
	}
	return s.sign(email, scope, emailTokenExpiry)
}

// verify parses the token and checks signature, expiry and scope
func (s *TokenService) verify(tokenString, scope string) (*TokenClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &TokenClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*TokenClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Scope != scope {
		return nil, ErrInvalidToken
	}
	if claims.Subject == "" {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

// DecodeAccessToken returns the subject email of a valid access token
func (s *TokenService) DecodeAccessToken(tokenString string) (string, error) {
	claims, err := s.verify(tokenString, ScopeAccess)
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}

// DecodeRefreshToken returns the subject email of a valid refresh token
func (s *TokenService) DecodeRefreshToken(tokenString string) (string, error) {
	claims, err := s.verify(tokenString, ScopeRefresh)
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}

// EmailFromToken returns the subject email of a valid email-action token with the given scope
func (s *TokenService) EmailFromToken(tokenString, scope string) (string, error) {
	claims, err := s.verify(tokenString, scope)
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}
