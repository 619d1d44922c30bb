package entry

import (
	"context"
	"errors"
	"net/url"
	"testing"
	"time"
)

func TestUpsertManyAndLatest(t *testing.T) {
	repo := NewSQLiteRepository(testDB(t))
	ctx := context.Background()

	base := int64(1704067200000)
	batch := []*Entry{
		testEntry(t, testTenantA, base, 100),
		testEntry(t, testTenantA, base+300000, 105),
		testEntry(t, testTenantA, base+600000, 110),
	}
	if err := repo.UpsertMany(ctx, batch); err != nil {
		t.Fatalf("UpsertMany failed: %v", err)
	}

	got, err := repo.Latest(ctx, testTenantA, 10)
	if err != nil {
		t.Fatalf("Latest failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(got))
	}
	if got[0].Date != base+600000 {
		t.Errorf("expected newest first, got date %d", got[0].Date)
	}
	if got[0].SGV == nil || *got[0].SGV != 110 {
		t.Errorf("expected sgv 110 on newest, got %v", got[0].SGV)
	}
}

func TestUpsertManyDeduplicates(t *testing.T) {
	repo := NewSQLiteRepository(testDB(t))
	ctx := context.Background()

	first := testEntry(t, testTenantA, 1704067200000, 100)
	if err := repo.UpsertMany(ctx, []*Entry{first}); err != nil {
		t.Fatalf("first upload failed: %v", err)
	}
	originalID := first.ID

	// Same sysTime and type, different reading and fresh ID: must update the
	// stored row in place and echo the original identity.
	dup := testEntry(t, testTenantA, 1704067200000, 142)
	if dup.ID == originalID {
		t.Fatal("test setup: duplicate got the same random ID")
	}
	if err := repo.UpsertMany(ctx, []*Entry{dup}); err != nil {
		t.Fatalf("duplicate upload failed: %v", err)
	}
	if dup.ID != originalID {
		t.Errorf("expected stored ID echoed back, got %q want %q", dup.ID, originalID)
	}

	got, err := repo.Latest(ctx, testTenantA, 10)
	if err != nil {
		t.Fatalf("Latest failed: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected dedup to keep one row, got %d", len(got))
	}
	if got[0].ID != originalID {
		t.Errorf("stored row changed identity: %q", got[0].ID)
	}
	if got[0].SGV == nil || *got[0].SGV != 142 {
		t.Errorf("expected reading refreshed to 142, got %v", got[0].SGV)
	}
}

func TestUpsertManySameSysTimeDifferentType(t *testing.T) {
	repo := NewSQLiteRepository(testDB(t))
	ctx := context.Background()

	sgv := testEntry(t, testTenantA, 1704067200000, 100)
	mbg := &Entry{TenantID: testTenantA, Type: "mbg", Date: 1704067200000, MBG: intPtr(98)}
	if err := Normalize(mbg); err != nil {
		t.Fatalf("normalizing mbg entry: %v", err)
	}

	if err := repo.UpsertMany(ctx, []*Entry{sgv, mbg}); err != nil {
		t.Fatalf("UpsertMany failed: %v", err)
	}

	got, err := repo.Latest(ctx, testTenantA, 10)
	if err != nil {
		t.Fatalf("Latest failed: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("expected distinct types to coexist at one sysTime, got %d rows", len(got))
	}
}

func TestTenantIsolation(t *testing.T) {
	repo := NewSQLiteRepository(testDB(t))
	ctx := context.Background()

	a := testEntry(t, testTenantA, 1704067200000, 100)
	if err := repo.UpsertMany(ctx, []*Entry{a}); err != nil {
		t.Fatalf("UpsertMany failed: %v", err)
	}

	got, err := repo.Latest(ctx, testTenantB, 10)
	if err != nil {
		t.Fatalf("Latest failed: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("tenant B must not see tenant A entries, got %d", len(got))
	}

	if _, err := repo.ByID(ctx, testTenantB, a.ID); !errors.Is(err, ErrEntryNotFound) {
		t.Errorf("expected ErrEntryNotFound across tenants, got %v", err)
	}

	n, err := repo.DeleteByID(ctx, testTenantB, a.ID)
	if err != nil {
		t.Fatalf("DeleteByID failed: %v", err)
	}
	if n != 0 {
		t.Errorf("cross-tenant delete must affect 0 rows, got %d", n)
	}
}

func TestLatestOfType(t *testing.T) {
	repo := NewSQLiteRepository(testDB(t))
	ctx := context.Background()

	if _, err := repo.LatestOfType(ctx, testTenantA, "sgv"); !errors.Is(err, ErrEntryNotFound) {
		t.Errorf("expected ErrEntryNotFound on empty store, got %v", err)
	}

	batch := []*Entry{
		testEntry(t, testTenantA, 1704067200000, 100),
		testEntry(t, testTenantA, 1704067500000, 105),
	}
	if err := repo.UpsertMany(ctx, batch); err != nil {
		t.Fatalf("UpsertMany failed: %v", err)
	}

	e, err := repo.LatestOfType(ctx, testTenantA, "sgv")
	if err != nil {
		t.Fatalf("LatestOfType failed: %v", err)
	}
	if e.Date != 1704067500000 {
		t.Errorf("expected most recent reading, got date %d", e.Date)
	}
}

func TestByRange(t *testing.T) {
	repo := NewSQLiteRepository(testDB(t))
	ctx := context.Background()

	base := int64(1704067200000)
	batch := []*Entry{
		testEntry(t, testTenantA, base, 100),
		testEntry(t, testTenantA, base+1000, 105),
		testEntry(t, testTenantA, base+2000, 110),
	}
	if err := repo.UpsertMany(ctx, batch); err != nil {
		t.Fatalf("UpsertMany failed: %v", err)
	}

	// Both bounds are inclusive: an entry stamped exactly at end is returned.
	got, err := repo.ByRange(ctx, testTenantA, base, base+1000, 10)
	if err != nil {
		t.Fatalf("ByRange failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 entries in [start, end], got %d", len(got))
	}
	if got[0].Date != base || got[1].Date != base+1000 {
		t.Errorf("expected ascending order, got %d then %d", got[0].Date, got[1].Date)
	}

	got, err = repo.ByRange(ctx, testTenantA, base+2000, base+2000, 10)
	if err != nil {
		t.Fatalf("ByRange failed: %v", err)
	}
	if len(got) != 1 || got[0].Date != base+2000 {
		t.Errorf("expected the exact-timestamp entry, got %d rows", len(got))
	}
}

func TestByQuery(t *testing.T) {
	repo := NewSQLiteRepository(testDB(t))
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	recent := now.Add(-time.Hour).UnixMilli()
	old := now.Add(-10 * 24 * time.Hour).UnixMilli()
	batch := []*Entry{
		testEntry(t, testTenantA, recent, 180),
		testEntry(t, testTenantA, recent+1000, 90),
		testEntry(t, testTenantA, old, 200),
	}
	if err := repo.UpsertMany(ctx, batch); err != nil {
		t.Fatalf("UpsertMany failed: %v", err)
	}

	// Unconstrained filter: the default lookback hides the 10-day-old entry.
	params, _ := url.ParseQuery("find[type]=sgv")
	f, err := ParseFilter(params)
	if err != nil {
		t.Fatalf("ParseFilter failed: %v", err)
	}
	got, err := repo.ByQuery(ctx, testTenantA, f, 10, now)
	if err != nil {
		t.Fatalf("ByQuery failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected lookback to hide old entries, got %d rows", len(got))
	}
	if got[0].Date != recent+1000 {
		t.Errorf("expected newest first, got date %d", got[0].Date)
	}

	// Value filter on top.
	params, _ = url.ParseQuery("find[sgv][$gte]=150")
	f, err = ParseFilter(params)
	if err != nil {
		t.Fatalf("ParseFilter failed: %v", err)
	}
	got, err = repo.ByQuery(ctx, testTenantA, f, 10, now)
	if err != nil {
		t.Fatalf("ByQuery failed: %v", err)
	}
	if len(got) != 1 || *got[0].SGV != 180 {
		t.Errorf("expected only the 180 reading, got %d rows", len(got))
	}

	// Explicit date bound reaches past the default window.
	params, _ = url.ParseQuery("find[date][$gte]=0")
	f, err = ParseFilter(params)
	if err != nil {
		t.Fatalf("ParseFilter failed: %v", err)
	}
	got, err = repo.ByQuery(ctx, testTenantA, f, 10, now)
	if err != nil {
		t.Fatalf("ByQuery failed: %v", err)
	}
	if len(got) != 3 {
		t.Errorf("expected date-bounded filter to see all entries, got %d", len(got))
	}
}

func TestDeleteByType(t *testing.T) {
	repo := NewSQLiteRepository(testDB(t))
	ctx := context.Background()

	mbg := &Entry{TenantID: testTenantA, Type: "mbg", Date: 1704067300000, MBG: intPtr(95)}
	if err := Normalize(mbg); err != nil {
		t.Fatalf("normalizing mbg entry: %v", err)
	}
	batch := []*Entry{
		testEntry(t, testTenantA, 1704067200000, 100),
		testEntry(t, testTenantA, 1704067500000, 105),
		mbg,
	}
	if err := repo.UpsertMany(ctx, batch); err != nil {
		t.Fatalf("UpsertMany failed: %v", err)
	}

	n, err := repo.DeleteByType(ctx, testTenantA, "sgv")
	if err != nil {
		t.Fatalf("DeleteByType failed: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 sgv rows deleted, got %d", n)
	}

	n, err = repo.DeleteByType(ctx, testTenantA, "*")
	if err != nil {
		t.Fatalf("DeleteByType(*) failed: %v", err)
	}
	if n != 1 {
		t.Errorf("expected wildcard to clear the remaining row, got %d", n)
	}
}

func TestDeleteByQuery(t *testing.T) {
	repo := NewSQLiteRepository(testDB(t))
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	batch := []*Entry{
		testEntry(t, testTenantA, now.Add(-time.Hour).UnixMilli(), 180),
		testEntry(t, testTenantA, now.Add(-2*time.Hour).UnixMilli(), 90),
	}
	if err := repo.UpsertMany(ctx, batch); err != nil {
		t.Fatalf("UpsertMany failed: %v", err)
	}

	params, _ := url.ParseQuery("find[sgv][$gte]=150")
	f, err := ParseFilter(params)
	if err != nil {
		t.Fatalf("ParseFilter failed: %v", err)
	}
	n, err := repo.DeleteByQuery(ctx, testTenantA, f, now)
	if err != nil {
		t.Fatalf("DeleteByQuery failed: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 row deleted, got %d", n)
	}

	remaining, err := repo.Latest(ctx, testTenantA, 10)
	if err != nil {
		t.Fatalf("Latest failed: %v", err)
	}
	if len(remaining) != 1 || *remaining[0].SGV != 90 {
		t.Errorf("expected only the 90 reading left, got %d rows", len(remaining))
	}
}

func TestExtraRoundTrip(t *testing.T) {
	repo := NewSQLiteRepository(testDB(t))
	ctx := context.Background()

	e := testEntry(t, testTenantA, 1704067200000, 100)
	e.Extra = map[string]any{"slope": 1.5, "trendRate": -0.2}
	if err := repo.UpsertMany(ctx, []*Entry{e}); err != nil {
		t.Fatalf("UpsertMany failed: %v", err)
	}

	got, err := repo.ByID(ctx, testTenantA, e.ID)
	if err != nil {
		t.Fatalf("ByID failed: %v", err)
	}
	if got.Extra["slope"] != 1.5 || got.Extra["trendRate"] != -0.2 {
		t.Errorf("extra fields lost in round trip: %v", got.Extra)
	}
}
