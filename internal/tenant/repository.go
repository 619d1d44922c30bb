package tenant

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	sqlite3 "github.com/mattn/go-sqlite3"
)

// Repository defines tenant, API key, and user persistence operations.
// This abstraction allows for different implementations (SQLite, mock, etc.)
// and enables unit testing without database dependencies.
type Repository interface {
	// CreateTenant inserts a new tenant. Returns ErrSlugExists on collision.
	CreateTenant(ctx context.Context, t *Tenant) error

	// GetActiveBySlug retrieves an active tenant by its subdomain slug.
	// Returns ErrTenantNotFound if absent or deactivated.
	GetActiveBySlug(ctx context.Context, slug string) (*Tenant, error)

	// GetTenantByID retrieves a tenant regardless of active state.
	GetTenantByID(ctx context.Context, id string) (*Tenant, error)

	// CreateUser inserts a new user. Returns ErrEmailExists on collision.
	CreateUser(ctx context.Context, u *User) error

	// GetUserByEmail retrieves a user by email address.
	GetUserByEmail(ctx context.Context, email string) (*User, error)

	// TenantIDForUser returns the owning tenant of an active user.
	TenantIDForUser(ctx context.Context, userID string) (string, error)

	// ActiveKeysForSlug returns all active API keys belonging to the active
	// tenant with the given slug.
	ActiveKeysForSlug(ctx context.Context, slug string) ([]APIKey, error)

	// ActiveKeys returns all active API keys across all tenants. Used only
	// by the tenant-agnostic resolution fallback.
	ActiveKeys(ctx context.Context) ([]APIKey, error)

	// ActiveKeyForTenant returns one active API key for a tenant, or
	// ErrTenantNotFound if the tenant has none.
	ActiveKeyForTenant(ctx context.Context, tenantID string) (*APIKey, error)

	// CreateAPIKey inserts a new active API key for a tenant.
	CreateAPIKey(ctx context.Context, tenantID, keyValue, description string) (*APIKey, error)

	// RevokeAPIKeys deactivates all API keys for a tenant. Returns the
	// number of keys revoked.
	RevokeAPIKeys(ctx context.Context, tenantID string) (int64, error)
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed tenant repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// CreateTenant inserts a new tenant. The ID is generated if empty.
func (r *SQLiteRepository) CreateTenant(ctx context.Context, t *Tenant) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}

	now := time.Now().UTC().Format(time.RFC3339)
	t.CreatedAt, _ = time.Parse(time.RFC3339, now) //nolint:errcheck // format is controlled
	t.UpdatedAt = t.CreatedAt

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO tenants (id, slug, name, is_active, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		t.ID, t.Slug, t.Name, boolToInt(t.IsActive), now, now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrSlugExists
		}
		return fmt.Errorf("creating tenant: %w", err)
	}
	return nil
}

// GetActiveBySlug retrieves an active tenant by its subdomain slug.
func (r *SQLiteRepository) GetActiveBySlug(ctx context.Context, slug string) (*Tenant, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, slug, name, is_active, created_at, updated_at
		 FROM tenants WHERE slug = ? AND is_active = 1`, slug)
	return scanTenant(row)
}

// GetTenantByID retrieves a tenant by ID regardless of active state.
func (r *SQLiteRepository) GetTenantByID(ctx context.Context, id string) (*Tenant, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, slug, name, is_active, created_at, updated_at
		 FROM tenants WHERE id = ?`, id)
	return scanTenant(row)
}

// CreateUser inserts a new user account. The ID is generated if empty.
func (r *SQLiteRepository) CreateUser(ctx context.Context, u *User) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}

	now := time.Now().UTC().Format(time.RFC3339)
	u.CreatedAt, _ = time.Parse(time.RFC3339, now) //nolint:errcheck // format is controlled

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id, email, password_hash, tenant_id, is_active, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		u.ID, strings.ToLower(u.Email), u.PasswordHash, u.TenantID, boolToInt(u.IsActive), now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrEmailExists
		}
		return fmt.Errorf("creating user: %w", err)
	}
	return nil
}

// GetUserByEmail retrieves a user by email address.
func (r *SQLiteRepository) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, email, password_hash, tenant_id, is_active, created_at
		 FROM users WHERE email = ?`, strings.ToLower(email))

	var (
		u         User
		isActive  int
		createdAt string
	)
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.TenantID, &isActive, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("querying user by email: %w", err)
	}
	u.IsActive = isActive != 0
	u.CreatedAt, _ = time.Parse(time.RFC3339, createdAt) //nolint:errcheck // format is controlled
	return &u, nil
}

// TenantIDForUser returns the owning tenant of an active user.
func (r *SQLiteRepository) TenantIDForUser(ctx context.Context, userID string) (string, error) {
	var tenantID string
	err := r.db.QueryRowContext(ctx,
		`SELECT tenant_id FROM users WHERE id = ? AND is_active = 1`, userID).Scan(&tenantID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrUserNotFound
		}
		return "", fmt.Errorf("querying tenant for user: %w", err)
	}
	return tenantID, nil
}

// ActiveKeysForSlug returns all active API keys of the active tenant with
// the given slug.
func (r *SQLiteRepository) ActiveKeysForSlug(ctx context.Context, slug string) ([]APIKey, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT k.id, k.tenant_id, k.key_value, COALESCE(k.description, ''), k.is_active, k.created_at
		 FROM api_keys k
		 JOIN tenants t ON t.id = k.tenant_id
		 WHERE t.slug = ? AND t.is_active = 1 AND k.is_active = 1`, slug)
	if err != nil {
		return nil, fmt.Errorf("querying keys for slug: %w", err)
	}
	return collectKeys(rows)
}

// ActiveKeys returns every active API key across all tenants.
func (r *SQLiteRepository) ActiveKeys(ctx context.Context) ([]APIKey, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT k.id, k.tenant_id, k.key_value, COALESCE(k.description, ''), k.is_active, k.created_at
		 FROM api_keys k
		 JOIN tenants t ON t.id = k.tenant_id
		 WHERE t.is_active = 1 AND k.is_active = 1`)
	if err != nil {
		return nil, fmt.Errorf("querying active keys: %w", err)
	}
	return collectKeys(rows)
}

// ActiveKeyForTenant returns one active API key for a tenant.
func (r *SQLiteRepository) ActiveKeyForTenant(ctx context.Context, tenantID string) (*APIKey, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, tenant_id, key_value, COALESCE(description, ''), is_active, created_at
		 FROM api_keys WHERE tenant_id = ? AND is_active = 1
		 ORDER BY created_at DESC LIMIT 1`, tenantID)

	k, err := scanKey(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTenantNotFound
		}
		return nil, err
	}
	return k, nil
}

// CreateAPIKey inserts a new active API key for a tenant.
func (r *SQLiteRepository) CreateAPIKey(ctx context.Context, tenantID, keyValue, description string) (*APIKey, error) {
	k := &APIKey{
		ID:          uuid.NewString(),
		TenantID:    tenantID,
		KeyValue:    keyValue,
		Description: description,
		IsActive:    true,
	}

	now := time.Now().UTC().Format(time.RFC3339)
	k.CreatedAt, _ = time.Parse(time.RFC3339, now) //nolint:errcheck // format is controlled

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO api_keys (id, tenant_id, key_value, description, is_active, created_at)
		 VALUES (?, ?, ?, ?, 1, ?)`,
		k.ID, k.TenantID, k.KeyValue, nullString(k.Description), now,
	)
	if err != nil {
		return nil, fmt.Errorf("creating api key: %w", err)
	}
	return k, nil
}

// RevokeAPIKeys deactivates all API keys for a tenant.
func (r *SQLiteRepository) RevokeAPIKeys(ctx context.Context, tenantID string) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE api_keys SET is_active = 0 WHERE tenant_id = ? AND is_active = 1`, tenantID)
	if err != nil {
		return 0, fmt.Errorf("revoking api keys: %w", err)
	}
	n, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	return n, nil
}

// scanTenant scans a tenant row.
func scanTenant(row *sql.Row) (*Tenant, error) {
	var (
		t                    Tenant
		isActive             int
		createdAt, updatedAt string
	)
	err := row.Scan(&t.ID, &t.Slug, &t.Name, &isActive, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTenantNotFound
		}
		return nil, fmt.Errorf("querying tenant: %w", err)
	}
	t.IsActive = isActive != 0
	t.CreatedAt, _ = time.Parse(time.RFC3339, createdAt) //nolint:errcheck // format is controlled
	t.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt) //nolint:errcheck // format is controlled
	return &t, nil
}

// scanKey scans an API key from a single-row query.
func scanKey(row *sql.Row) (*APIKey, error) {
	var (
		k         APIKey
		isActive  int
		createdAt string
	)
	err := row.Scan(&k.ID, &k.TenantID, &k.KeyValue, &k.Description, &isActive, &createdAt)
	if err != nil {
		return nil, err
	}
	k.IsActive = isActive != 0
	k.CreatedAt, _ = time.Parse(time.RFC3339, createdAt) //nolint:errcheck // format is controlled
	return &k, nil
}

// collectKeys drains a multi-row API key result set.
func collectKeys(rows *sql.Rows) ([]APIKey, error) {
	defer rows.Close() //nolint:errcheck // Read-only rows close

	var keys []APIKey
	for rows.Next() {
		var (
			k         APIKey
			isActive  int
			createdAt string
		)
		if err := rows.Scan(&k.ID, &k.TenantID, &k.KeyValue, &k.Description, &isActive, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning api key: %w", err)
		}
		k.IsActive = isActive != 0
		k.CreatedAt, _ = time.Parse(time.RFC3339, createdAt) //nolint:errcheck // format is controlled
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating api keys: %w", err)
	}
	return keys, nil
}

// isUniqueViolation reports whether err is a SQLite UNIQUE constraint error.
func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

// boolToInt converts a bool to the 0/1 SQLite convention.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// nullString returns a NULL-able value for empty strings.
func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
