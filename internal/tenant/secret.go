package tenant

import (
	"crypto/sha1" //nolint:gosec // G505: SHA-1 is the legacy Nightscout wire format, not a security primitive here
	"crypto/subtle"
	"encoding/hex"
)

// hashSecret returns the lowercase hex SHA-1 of a secret, the form legacy
// uploaders (xDrip, Spike, Loop) put in the api-secret header.
func hashSecret(secret string) string {
	sum := sha1.Sum([]byte(secret)) //nolint:gosec // G401: legacy wire compatibility
	return hex.EncodeToString(sum[:])
}

// VerifySecret checks a presented api-secret value against a stored key.
//
// Legacy clients hash the secret before sending it, newer clients send it
// plain, and some deployments store the hash instead of the plain key. All
// three equivalent forms are accepted:
//
//  1. presented == SHA-1(stored)   — hashed client, plain store
//  2. presented == stored          — plain client, or both sides hashed
//  3. SHA-1(presented) == SHA-1(stored) — defensive both-plain comparison
func VerifySecret(presented, stored string) bool {
	if presented == "" || stored == "" {
		return false
	}

	if subtle.ConstantTimeCompare([]byte(presented), []byte(hashSecret(stored))) == 1 {
		return true
	}
	if subtle.ConstantTimeCompare([]byte(presented), []byte(stored)) == 1 {
		return true
	}
	return subtle.ConstantTimeCompare([]byte(hashSecret(presented)), []byte(hashSecret(stored))) == 1
}
