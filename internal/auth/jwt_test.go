package auth

import (
	"errors"
	"strings"
	"testing"
	"time"
)

const testSecret = "test-jwt-secret-at-least-32-characters-long"

func TestTokenService_accessRoundTrip(t *testing.T) {
	s := NewTokenService(testSecret)

	token, err := s.CreateAccessToken("alice@example.com")
	if err != nil {
		t.Fatalf("CreateAccessToken: %v", err)
	}

	email, err := s.DecodeAccessToken(token)
	if err != nil {
		t.Fatalf("DecodeAccessToken: %v", err)
	}
	if email != "alice@example.com" {
		t.Errorf("subject = %q, want alice@example.com", email)
	}
}

func TestTokenService_refreshRoundTrip(t *testing.T) {
	s := NewTokenService(testSecret)

	token, err := s.CreateRefreshToken("alice@example.com")
	if err != nil {
		t.Fatalf("CreateRefreshToken: %v", err)
	}

	email, err := s.DecodeRefreshToken(token)
	if err != nil {
		t.Fatalf("DecodeRefreshToken: %v", err)
	}
	if email != "alice@example.com" {
		t.Errorf("subject = %q, want alice@example.com", email)
	}
}

func TestTokenService_scopeMismatch(t *testing.T) {
	s := NewTokenService(testSecret)

	access, _ := s.CreateAccessToken("alice@example.com")
	if _, err := s.DecodeRefreshToken(access); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("access token accepted as refresh token: %v", err)
	}

	refresh, _ := s.CreateRefreshToken("alice@example.com")
	if _, err := s.DecodeAccessToken(refresh); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("refresh token accepted as access token: %v", err)
	}
}

func TestTokenService_emailTokenCrossUse(t *testing.T) {
	s := NewTokenService(testSecret)

	confirm, err := s.CreateEmailToken("alice@example.com", ScopeEmailConfirm)
	if err != nil {
		t.Fatalf("CreateEmailToken: %v", err)
	}

	// A confirmation token must never pass reset-token verification.
	if _, err := s.EmailFromToken(confirm, ScopePasswordReset); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("confirmation token accepted for password reset: %v", err)
	}
	if _, err := s.EmailFromToken(confirm, ScopeEmailConfirm); err != nil {
		t.Errorf("confirmation token rejected for its own scope: %v", err)
	}
}

func TestTokenService_rejectsUnknownEmailScope(t *testing.T) {
	s := NewTokenService(testSecret)
	if _, err := s.CreateEmailToken("alice@example.com", ScopeAccess); err == nil {
		t.Error("CreateEmailToken accepted access scope")
	}
}

func TestTokenService_expiredToken(t *testing.T) {
	s := NewTokenService(testSecret)

	token, err := s.CreateRefreshTokenWithTTL("alice@example.com", -time.Minute)
	if err != nil {
		t.Fatalf("CreateRefreshTokenWithTTL: %v", err)
	}
	if _, err := s.DecodeRefreshToken(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expired token accepted: %v", err)
	}
}

func TestTokenService_tamperedToken(t *testing.T) {
	s := NewTokenService(testSecret)

	token, _ := s.CreateAccessToken("alice@example.com")
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		t.Fatalf("unexpected token shape: %q", token)
	}
	tampered := parts[0] + "." + parts[1] + "." + strings.Repeat("A", len(parts[2]))

	if _, err := s.DecodeAccessToken(tampered); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("tampered token accepted: %v", err)
	}
}

func TestTokenService_wrongSecret(t *testing.T) {
	token, _ := NewTokenService(testSecret).CreateAccessToken("alice@example.com")

	other := NewTokenService("a-completely-different-secret-value!")
	if _, err := other.DecodeAccessToken(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("token signed with another secret accepted: %v", err)
	}
}
