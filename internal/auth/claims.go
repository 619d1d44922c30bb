package auth

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Claims are the JWT claims carried by Sugarline access tokens.
// The subject is the user ID; the owning tenant is resolved from it
// at request time so tenant deactivation takes effect immediately.
type Claims struct {
	jwt.RegisteredClaims
	TokenType string `json:"typ,omitempty"`
}

// Token types.
const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

// GenerateToken creates a signed JWT for a user.
// Access tokens are short-lived and validated by signature only (no DB hit).
func GenerateToken(userID, tokenType, secret string, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}

	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
		TokenType: tokenType,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("signing %s token: %w", tokenType, err)
	}
	return signed, nil
}

// ParseToken validates and parses a JWT, returning the claims.
// It checks the signature, expiry, and required fields.
func ParseToken(tokenString, secret string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(_ *jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTokenInvalid, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrTokenInvalid
	}

	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrTokenInvalid)
	}

	return claims, nil
}

// GenerateAPIKey creates a cryptographically random API secret (256-bit hex).
// The raw value is both returned to the client and stored; legacy uploaders
// may present it plain or SHA-1 hashed (see the tenant package).
func GenerateAPIKey() (string, error) {
	b := make([]byte, 32) //nolint:mnd // 256-bit key
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating api key: %w", err)
	}
	return hex.EncodeToString(b), nil
}
