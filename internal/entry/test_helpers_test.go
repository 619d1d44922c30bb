package entry

import (
	"database/sql"
	"os"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

// Tenant fixtures shared across the package tests.
const (
	testTenantA = "tenant-a"
	testTenantB = "tenant-b"
)

// testDB creates a temporary SQLite database with the entries schema applied.
// The database file is cleaned up when the test completes.
func testDB(t *testing.T) *sql.DB {
	t.Helper()

	// Use a temp file so WAL mode works (in-memory doesn't support it)
	f, err := os.CreateTemp("", "entry-test-*.db")
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

		CREATE TABLE entries (
			id TEXT PRIMARY KEY,
			tenant_id TEXT NOT NULL,
			type TEXT NOT NULL DEFAULT 'sgv',
			date INTEGER NOT NULL,
			sys_time TEXT NOT NULL,
			date_string TEXT NOT NULL,
			utc_offset INTEGER NOT NULL DEFAULT 0,
			sgv INTEGER,
			mbg INTEGER,
			direction TEXT,
			noise INTEGER,
			filtered INTEGER,
			unfiltered INTEGER,
			rssi INTEGER,
			device TEXT,
			extra TEXT NOT NULL DEFAULT '{}',
			created_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now')),
			updated_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now')),
			FOREIGN KEY (tenant_id) REFERENCES tenants(id) ON DELETE CASCADE,
			UNIQUE (tenant_id, sys_time, type)
		) STRICT;

		CREATE INDEX idx_entries_tenant_date ON entries(tenant_id, date DESC);
		CREATE INDEX idx_entries_tenant_type_date ON entries(tenant_id, type, date DESC);
	`
	if _, err := db.Exec(schemaSQL); err != nil {
		t.Fatalf("applying schema: %v", err)
	}

	_, err = db.Exec(`
		INSERT INTO tenants (id, slug, name) VALUES ('tenant-a', 'alice', 'Alice');
		INSERT INTO tenants (id, slug, name) VALUES ('tenant-b', 'bob', 'Bob');
	`)
	if err != nil {
		t.Fatalf("seeding tenants: %v", err)
	}

	return db
}

// intPtr returns a pointer to n, for optional entry fields.
func intPtr(n int64) *int64 {
	return &n
}

// testEntry builds a normalized sgv entry at the given epoch-ms date.
func testEntry(t *testing.T, tenantID string, date int64, sgv int64) *Entry {
	t.Helper()

	e := &Entry{
		TenantID: tenantID,
		Date:     date,
		SGV:      intPtr(sgv),
		Device:   "test-uploader",
	}
	if err := Normalize(e); err != nil {
		t.Fatalf("normalizing test entry: %v", err)
	}
	return e
}
