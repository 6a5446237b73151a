package model

import (
	"time"

	"github.com/google/uuid"
)

// User represents a registered account
type User struct {
	ID           uuid.UUID
	Username     string
	Email        string
	PasswordHash string
	Avatar       *string
	RefreshToken *string
	ResetToken   *string
	Confirmed    bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Contact represents an address-book entry owned by a user
type Contact struct {
	ID        uuid.UUID
	Name      string
	Surname   string
	Email     string
	Phone     string
	Birthday  time.Time
	UserID    uuid.UUID
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ContactFields holds the writable fields of a contact (create and full-replace update)
type ContactFields struct {
	Name     string
	Surname  string
	Email    string
	Phone    string
	Birthday time.Time
}
