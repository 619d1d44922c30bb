package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/sugarline/sugarline-core/internal/auth"
	"github.com/sugarline/sugarline-core/internal/tenant"
)

// signupRequest is the POST /auth/signup body.
type signupRequest struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	TenantName string `json:"tenant_name"`
	TenantSlug string `json:"tenant_slug,omitempty"`
}

// loginRequest is the POST /auth/login body.
type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// tokenPair is the JWT response for signup and login.
type tokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
}

// minPasswordLength is the minimum accepted password length.
const minPasswordLength = 8

var slugPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{1,62}$`)

// handleSignup creates a tenant, its first user, and an initial API key in
// one call. The API key is returned exactly once; it is stored as-is and
// cannot be recovered later, only rotated.
func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.Email == "" || !strings.Contains(req.Email, "@") {
		writeBadRequest(w, "a valid email is required")
		return
	}
	if len(req.Password) < minPasswordLength {
		writeBadRequest(w, "password must be at least 8 characters")
		return
	}
	if req.TenantName == "" {
		writeBadRequest(w, "tenant_name is required")
		return
	}

	slug := req.TenantSlug
	if slug == "" {
		slug = slugify(req.TenantName)
	}
	if !slugPattern.MatchString(slug) {
		writeBadRequest(w, "tenant_slug must be lowercase letters, digits, and hyphens")
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		s.logger.Error("password hashing failed", "error", err)
		writeInternalError(w, "internal server error")
		return
	}

	t := &tenant.Tenant{Slug: slug, Name: req.TenantName, IsActive: true}
	if err := s.tenants.CreateTenant(r.Context(), t); err != nil {
		writeServiceError(w, err)
		return
	}

	u := &tenant.User{Email: req.Email, PasswordHash: hash, TenantID: t.ID, IsActive: true}
	if err := s.tenants.CreateUser(r.Context(), u); err != nil {
		writeServiceError(w, err)
		return
	}

	keyValue, err := auth.GenerateAPIKey()
	if err != nil {
		s.logger.Error("api key generation failed", "error", err)
		writeInternalError(w, "internal server error")
		return
	}
	key, err := s.tenants.CreateAPIKey(r.Context(), t.ID, keyValue, "initial key")
	if err != nil {
		writeServiceError(w, err)
		return
	}

	tokens, err := s.issueTokens(u.ID)
	if err != nil {
		s.logger.Error("token issue failed", "error", err)
		writeInternalError(w, "internal server error")
		return
	}

	s.logger.Info("tenant signed up", "tenant_id", t.ID, "slug", t.Slug)
	writeJSON(w, http.StatusCreated, map[string]any{
		"tenant":  t,
		"api_key": key.KeyValue,
		"tokens":  tokens,
	})
}

// handleLogin exchanges email and password for a JWT pair.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	u, err := s.tenants.GetUserByEmail(r.Context(), req.Email)
	if err != nil {
		if errors.Is(err, tenant.ErrUserNotFound) {
			// Same response as a wrong password; account existence stays private.
			writeUnauthorized(w, "invalid email or password")
			return
		}
		writeServiceError(w, err)
		return
	}
	if !u.IsActive {
		writeUnauthorized(w, "invalid email or password")
		return
	}

	ok, err := auth.VerifyPassword(req.Password, u.PasswordHash)
	if err != nil || !ok {
		writeUnauthorized(w, "invalid email or password")
		return
	}

	tokens, err := s.issueTokens(u.ID)
	if err != nil {
		s.logger.Error("token issue failed", "error", err)
		writeInternalError(w, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, tokens)
}

// handleGetAPIKey returns the caller's tenant's newest active API key.
func (s *Server) handleGetAPIKey(w http.ResponseWriter, r *http.Request) {
	key, err := s.tenants.ActiveKeyForTenant(r.Context(), tenantFromContext(r.Context()))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, key)
}

// handleRotateAPIKey revokes every active key for the caller's tenant and
// issues a fresh one. Uploaders using the old key stop working immediately.
func (s *Server) handleRotateAPIKey(w http.ResponseWriter, r *http.Request) {
	tenantID := tenantFromContext(r.Context())

	revoked, err := s.tenants.RevokeAPIKeys(r.Context(), tenantID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	keyValue, err := auth.GenerateAPIKey()
	if err != nil {
		s.logger.Error("api key generation failed", "error", err)
		writeInternalError(w, "internal server error")
		return
	}
	key, err := s.tenants.CreateAPIKey(r.Context(), tenantID, keyValue, "rotated key")
	if err != nil {
		writeServiceError(w, err)
		return
	}

	s.logger.Info("api key rotated", "tenant_id", tenantID, "revoked", revoked)
	writeJSON(w, http.StatusOK, key)
}

// issueTokens mints an access/refresh JWT pair for a user.
func (s *Server) issueTokens(userID string) (*tokenPair, error) {
	access, err := auth.GenerateToken(userID, auth.TokenTypeAccess, s.secCfg.JWT.Secret,
		time.Duration(s.secCfg.JWT.AccessTokenTTL)*time.Minute)
	if err != nil {
		return nil, err
	}
	refresh, err := auth.GenerateToken(userID, auth.TokenTypeRefresh, s.secCfg.JWT.Secret,
		time.Duration(s.secCfg.JWT.RefreshTokenTTL)*time.Minute)
	if err != nil {
		return nil, err
	}
	return &tokenPair{AccessToken: access, RefreshToken: refresh, TokenType: "bearer"}, nil
}

// slugify derives a subdomain slug from a tenant name.
func slugify(name string) string {
	var sb strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			sb.WriteRune(r)
		case r == ' ' || r == '-' || r == '_':
			sb.WriteByte('-')
		}
	}
	return strings.Trim(sb.String(), "-")
}
