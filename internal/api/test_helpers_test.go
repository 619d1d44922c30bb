package api

import (
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"github.com/sugarline/sugarline-core/internal/entry"
	"github.com/sugarline/sugarline-core/internal/infrastructure/config"
	"github.com/sugarline/sugarline-core/internal/infrastructure/logging"
	"github.com/sugarline/sugarline-core/internal/tenant"
)

const (
	testJWTSecret = "test-secret-key-at-least-32-characters-long"
	testAPISecret = "alice-upload-secret"
)

// testEnv is a fully wired server plus the fixtures tests poke at.
type testEnv struct {
	srv     *httptest.Server
	api     *Server
	tenants *tenant.SQLiteRepository
	entries *entry.Service
	tenant  *tenant.Tenant
}

// testServer builds a server against a temp SQLite database with one seeded
// tenant ("alice") holding the testAPISecret upload key.
func testServer(t *testing.T) *testEnv {
	t.Helper()

	db := testDB(t)
	log := logging.New(config.LoggingConfig{Level: "error", Format: "text"}, "test")

	tenantRepo := tenant.NewSQLiteRepository(db)
	entryRepo := entry.NewSQLiteRepository(db)
	resolver := tenant.NewResolver(tenantRepo, testJWTSecret, []string{"www", "api"}, log)

	ctx := context.Background()
	tn := &tenant.Tenant{Slug: "alice", Name: "Alice", IsActive: true}
	if err := tenantRepo.CreateTenant(ctx, tn); err != nil {
		t.Fatalf("seeding tenant: %v", err)
	}
	if _, err := tenantRepo.CreateAPIKey(ctx, tn.ID, testAPISecret, "test key"); err != nil {
		t.Fatalf("seeding api key: %v", err)
	}

	wsCfg := config.WebSocketConfig{MaxMessageSize: 8192, PingInterval: 30, PongTimeout: 10}
	hub := NewHub(wsCfg, log)

	hubCtx, cancel := context.WithCancel(ctx)
	t.Cleanup(cancel)
	go hub.Run(hubCtx)

	entries := entry.NewService(entryRepo, hub, nil, log)

	srv, err := New(Deps{
		Config: config.APIConfig{MaxEntryCount: 1000},
		WS:     wsCfg,
		Security: config.SecurityConfig{
			JWT: config.JWTConfig{Secret: testJWTSecret, AccessTokenTTL: 15, RefreshTokenTTL: 10080},
		},
		Logger:      log,
		Entries:     entries,
		Tenants:     tenantRepo,
		Resolver:    resolver,
		ExternalHub: hub,
		Version:     "test",
	})
	if err != nil {
		t.Fatalf("creating server: %v", err)
	}

	ts := httptest.NewServer(srv.buildRouter())
	t.Cleanup(ts.Close)

	return &testEnv{srv: ts, api: srv, tenants: tenantRepo, entries: entries, tenant: tn}
}

// testDB creates a temp database with the full schema applied.
func testDB(t *testing.T) *sql.DB {
	t.Helper()

	f, err := os.CreateTemp("", "api-test-*.db")
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
	`
	if _, err := db.Exec(schemaSQL); err != nil {
		t.Fatalf("applying schema: %v", err)
	}

	return db
}

// request performs an HTTP request against the test server with the seeded
// tenant's api-secret attached.
func (env *testEnv) request(t *testing.T, method, path string, body *string) *http.Response {
	t.Helper()
	return env.requestWithSecret(t, method, path, body, testAPISecret)
}

// requestWithSecret performs an HTTP request using a specific api-secret.
func (env *testEnv) requestWithSecret(t *testing.T, method, path string, body *string, secret string) *http.Response {
	t.Helper()

	var req *http.Request
	var err error
	if body != nil {
		req, err = http.NewRequest(method, env.srv.URL+path, strings.NewReader(*body))
	} else {
		req, err = http.NewRequest(method, env.srv.URL+path, nil)
	}
	if err != nil {
		t.Fatalf("building request: %v", err)
	}
	req.Header.Set("api-secret", secret)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}
