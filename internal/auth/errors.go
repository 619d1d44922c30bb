package auth

import "errors"

// Sentinel errors for the auth package.
var (
	// ErrTokenInvalid indicates a JWT failed signature, expiry, or claim checks.
	ErrTokenInvalid = errors.New("token invalid")

	// ErrInvalidHash indicates a stored password hash could not be parsed.
	ErrInvalidHash = errors.New("invalid password hash")
)
