package tenant

import (
	"context"
	"errors"
	"net"
	"strings"

	"github.com/sugarline/sugarline-core/internal/auth"
	"github.com/sugarline/sugarline-core/internal/infrastructure/logging"
)

// resolveFunc is a single resolution strategy. It returns the resolved tenant
// ID, whether the strategy matched, and an error only for hard failures that
// must stop the chain. Everything else, including a strategy's own lookup
// failures, falls through to the next strategy.
type resolveFunc func(ctx context.Context, creds Credentials) (string, bool, error)

// Resolver maps request credentials to a tenant ID. Strategies are tried in
// order: api-secret header, JWT bearer token, subdomain slug. The first match
// wins; if none match the request is denied with ErrAuthFailed.
type Resolver struct {
	repo       Repository
	jwtSecret  string
	reserved   map[string]struct{}
	logger     *logging.Logger
	strategies []resolveFunc
}

// NewResolver creates a Resolver. reservedSubdomains are host labels that are
// never treated as tenant slugs (www, api, and the like).
func NewResolver(repo Repository, jwtSecret string, reservedSubdomains []string, logger *logging.Logger) *Resolver {
	reserved := make(map[string]struct{}, len(reservedSubdomains))
	for _, s := range reservedSubdomains {
		reserved[strings.ToLower(s)] = struct{}{}
	}

	r := &Resolver{
		repo:      repo,
		jwtSecret: jwtSecret,
		reserved:  reserved,
		logger:    logger,
	}
	r.strategies = []resolveFunc{r.byAPISecret, r.byBearerToken, r.bySubdomain}
	return r
}

// Resolve runs the strategy chain and returns the matching tenant ID.
// Returns ErrSecretMismatch when an api-secret is presented against the
// wrong tenant's subdomain, ErrAuthFailed when nothing matches.
func (r *Resolver) Resolve(ctx context.Context, creds Credentials) (string, error) {
	for _, strategy := range r.strategies {
		tenantID, ok, err := strategy(ctx, creds)
		if err != nil {
			return "", err
		}
		if ok {
			return tenantID, nil
		}
	}
	return "", ErrAuthFailed
}

// byAPISecret matches the legacy api-secret header against stored API keys.
//
// When the request arrives on a tenant subdomain, only that tenant's keys are
// considered and a miss is a hard ErrSecretMismatch: a secret presented to
// the wrong tenant's domain must never silently resolve elsewhere. Requests
// on a bare or reserved host fall back to comparing against every active key,
// which keeps single-tenant uploaders working without a subdomain.
func (r *Resolver) byAPISecret(ctx context.Context, creds Credentials) (string, bool, error) {
	if creds.APISecret == "" {
		return "", false, nil
	}

	if slug := r.subdomainSlug(creds.Host); slug != "" {
		keys, err := r.repo.ActiveKeysForSlug(ctx, slug)
		if err != nil {
			r.logger.Warn("api key lookup failed", "slug", slug, "error", err)
			return "", false, nil
		}
		if len(keys) > 0 {
			for _, k := range keys {
				if VerifySecret(creds.APISecret, k.KeyValue) {
					return k.TenantID, true, nil
				}
			}
			r.logger.Warn("api-secret rejected for subdomain", "slug", slug)
			return "", false, ErrSecretMismatch
		}
		// Unknown slug: treat like a bare host rather than leaking whether
		// the tenant exists.
	}

	keys, err := r.repo.ActiveKeys(ctx)
	if err != nil {
		r.logger.Warn("api key lookup failed", "error", err)
		return "", false, nil
	}
	for _, k := range keys {
		if VerifySecret(creds.APISecret, k.KeyValue) {
			return k.TenantID, true, nil
		}
	}
	return "", false, nil
}

// byBearerToken matches a JWT access token and maps its user to a tenant.
// Invalid or expired tokens fall through rather than hard-failing, so a
// stale dashboard token does not block an api-secret retry by proxies that
// send both.
func (r *Resolver) byBearerToken(ctx context.Context, creds Credentials) (string, bool, error) {
	if creds.BearerToken == "" {
		return "", false, nil
	}

	claims, err := auth.ParseToken(creds.BearerToken, r.jwtSecret)
	if err != nil {
		r.logger.Debug("bearer token rejected", "error", err)
		return "", false, nil
	}
	if claims.TokenType != auth.TokenTypeAccess {
		return "", false, nil
	}

	tenantID, err := r.repo.TenantIDForUser(ctx, claims.Subject)
	if err != nil {
		if !errors.Is(err, ErrUserNotFound) {
			r.logger.Warn("tenant lookup for token subject failed", "error", err)
		}
		return "", false, nil
	}
	return tenantID, true, nil
}

// bySubdomain resolves the tenant from the Host header alone. Only active
// tenants resolve; reserved labels and bare hosts never match.
func (r *Resolver) bySubdomain(ctx context.Context, creds Credentials) (string, bool, error) {
	slug := r.subdomainSlug(creds.Host)
	if slug == "" {
		return "", false, nil
	}

	t, err := r.repo.GetActiveBySlug(ctx, slug)
	if err != nil {
		if !errors.Is(err, ErrTenantNotFound) {
			r.logger.Warn("subdomain tenant lookup failed", "slug", slug, "error", err)
		}
		return "", false, nil
	}
	return t.ID, true, nil
}

// subdomainSlug extracts the candidate tenant slug from a Host header.
// Returns "" for bare hosts, IP addresses, and reserved labels.
func (r *Resolver) subdomainSlug(host string) string {
	if host == "" {
		return ""
	}
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	if net.ParseIP(host) != nil {
		return ""
	}

	labels := strings.Split(strings.ToLower(host), ".")
	if len(labels) < 3 {
		return ""
	}
	slug := labels[0]
	if _, isReserved := r.reserved[slug]; isReserved {
		return ""
	}
	return slug
}
