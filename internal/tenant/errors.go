package tenant

import "errors"

// Sentinel errors for the tenant package.
var (
	// ErrTenantNotFound indicates no tenant matched the lookup.
	ErrTenantNotFound = errors.New("tenant not found")

	// ErrUserNotFound indicates no user matched the lookup.
	ErrUserNotFound = errors.New("user not found")

	// ErrEmailExists indicates a signup collided with an existing account.
	ErrEmailExists = errors.New("email already registered")

	// ErrSlugExists indicates a tenant slug is already taken.
	ErrSlugExists = errors.New("tenant slug already exists")

	// ErrAuthFailed is the terminal resolution failure: no strategy produced
	// a tenant. Callers must not retry.
	ErrAuthFailed = errors.New("authentication required")

	// ErrSecretMismatch is the hard failure for a valid-looking API secret
	// presented against the wrong tenant's subdomain. It intentionally does
	// NOT fall through to later strategies.
	ErrSecretMismatch = errors.New("invalid API secret for this domain")
)
