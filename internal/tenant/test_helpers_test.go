package tenant

import (
	"context"
	"database/sql"
	"os"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"github.com/sugarline/sugarline-core/internal/infrastructure/config"
	"github.com/sugarline/sugarline-core/internal/infrastructure/logging"
)

// testDB creates a temporary SQLite database with the tenancy schema applied.
func testDB(t *testing.T) *sql.DB {
	t.Helper()

	f, err := os.CreateTemp("", "tenant-test-*.db")
	if err != nil {
		t.Fatalf("creating temp db: %v", err)
	}
	dbPath := f.Name()
	f.Close()
	t.Cleanup(func() { os.Remove(dbPath) })

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=ON")
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	schemaSQL := `
		CREATE TABLE tenants (
			id TEXT PRIMARY KEY,
			slug TEXT NOT NULL UNIQUE,
			name TEXT NOT NULL,
			is_active INTEGER NOT NULL DEFAULT 1,
			created_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now')),
			updated_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now'))
		) STRICT;

		CREATE TABLE api_keys (
			id TEXT PRIMARY KEY,
			tenant_id TEXT NOT NULL,
			key_value TEXT NOT NULL,
			description TEXT,
			is_active INTEGER NOT NULL DEFAULT 1,
			created_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now')),
			FOREIGN KEY (tenant_id) REFERENCES tenants(id) ON DELETE CASCADE
		) STRICT;

		CREATE TABLE users (
			id TEXT PRIMARY KEY,
			email TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			tenant_id TEXT NOT NULL,
			is_active INTEGER NOT NULL DEFAULT 1,
			created_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now')),
			FOREIGN KEY (tenant_id) REFERENCES tenants(id) ON DELETE CASCADE
		) STRICT;
	`
	if _, err := db.Exec(schemaSQL); err != nil {
		t.Fatalf("applying schema: %v", err)
	}

	return db
}

func testLogger() *logging.Logger {
	return logging.New(config.LoggingConfig{Level: "error", Format: "text"}, "test")
}

// seedTenant creates an active tenant with one active API key and returns
// the tenant and its key value.
func seedTenant(t *testing.T, repo *SQLiteRepository, slug, keyValue string) *Tenant {
	t.Helper()

	ctx := context.Background()
	tn := &Tenant{Slug: slug, Name: slug, IsActive: true}
	if err := repo.CreateTenant(ctx, tn); err != nil {
		t.Fatalf("seeding tenant %s: %v", slug, err)
	}
	if _, err := repo.CreateAPIKey(ctx, tn.ID, keyValue, "test key"); err != nil {
		t.Fatalf("seeding api key for %s: %v", slug, err)
	}
	return tn
}
