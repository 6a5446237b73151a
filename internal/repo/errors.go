package repo

import "errors"

var (
	// ErrNotFound is returned when a record does not exist or is not owned by the caller
	ErrNotFound = errors.New("record not found")
	// ErrDuplicateEmail is returned when an insert violates an email uniqueness constraint
	ErrDuplicateEmail = errors.New("email already exists")
)
