package auth

import "errors"

var (
	// ErrEmailTaken is returned when signing up with an email that already has an account
	ErrEmailTaken = errors.New("account already exists")
	// ErrInvalidCredentials is returned for unknown email or wrong password.
	// The two cases are deliberately indistinguishable to the caller.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrEmailNotConfirmed is returned when logging in before confirming the email
	ErrEmailNotConfirmed = errors.New("email not confirmed")
	// ErrInvalidRefreshToken is returned when the presented refresh token fails
	// verification or does not match the persisted one
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	// ErrInvalidResetToken is returned when the presented reset token does not
	// match the persisted one
	ErrInvalidResetToken = errors.New("invalid reset token")
	// ErrPasswordMismatch is returned when new and confirm passwords differ
	ErrPasswordMismatch = errors.New("passwords do not match")
	// ErrVerification is returned when an email-action token resolves to no known account
	ErrVerification = errors.New("verification error")
)
