package tenant

import "time"

// Tenant owns a set of CGM entries, API keys, and users. The slug is the
// tenant's subdomain identity (slug.example.com).
type Tenant struct {
	ID        string    `json:"id"`
	Slug      string    `json:"slug"`
	Name      string    `json:"name"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// APIKey is a shared upload secret for a tenant. A tenant can hold several
// active keys at once; each is independently revocable.
type APIKey struct {
	ID          string    `json:"id"`
	TenantID    string    `json:"tenant_id"`
	KeyValue    string    `json:"key_value"`
	Description string    `json:"description,omitempty"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
}

// User is a dashboard account belonging to a tenant. Bearer tokens carry the
// user ID as subject; the owning tenant is looked up at request time.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	TenantID     string    `json:"tenant_id"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
}

// Credentials carries everything a request can present for tenant
// resolution. Zero values mean "not supplied".
type Credentials struct {
	// APISecret is the legacy api-secret header value (plain or SHA-1 hashed).
	APISecret string

	// BearerToken is the JWT from an Authorization: Bearer header or the
	// WebSocket token query parameter.
	BearerToken string

	// Host is the request's Host header, used for subdomain resolution.
	Host string
}
