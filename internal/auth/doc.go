// Package auth provides JWT token handling, API key generation, and
// password hashing for Sugarline Core.
//
// Access tokens are HS256 JWTs whose subject is the user ID. Passwords are
// hashed with Argon2id in PHC string format. API keys are random 256-bit
// secrets compatible with legacy Nightscout uploaders (see the tenant
// package for the legacy comparison rules).
package auth
