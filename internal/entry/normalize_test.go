package entry

import (
	"errors"
	"testing"
	"time"
)

func TestNormalizeFromDateString(t *testing.T) {
	e := &Entry{
		TenantID:   testTenantA,
		DateString: "2024-01-01T12:00:00+05:30",
		SGV:        intPtr(120),
	}
	if err := Normalize(e); err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}

	if e.Type != "sgv" {
		t.Errorf("expected default type sgv, got %q", e.Type)
	}
	if e.SysTime != "2024-01-01T06:30:00.000Z" {
		t.Errorf("expected sysTime in UTC millis format, got %q", e.SysTime)
	}
	if e.DateString != e.SysTime {
		t.Errorf("expected dateString rewritten to sysTime, got %q", e.DateString)
	}
	if e.UTCOffset != 330 {
		t.Errorf("expected utcOffset 330 (minutes east), got %d", e.UTCOffset)
	}
	if e.Date != 1704090600000 {
		t.Errorf("expected date filled from dateString, got %d", e.Date)
	}
	if !IsEntryID(e.ID) {
		t.Errorf("expected generated 24-hex id, got %q", e.ID)
	}
}

func TestNormalizeFromDateOnly(t *testing.T) {
	e := &Entry{
		TenantID: testTenantA,
		Date:     1704067200000, // 2024-01-01T00:00:00Z
		SGV:      intPtr(100),
	}
	if err := Normalize(e); err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}

	if e.SysTime != "2024-01-01T00:00:00.000Z" {
		t.Errorf("expected sysTime derived from date, got %q", e.SysTime)
	}
	if e.DateString != e.SysTime {
		t.Errorf("expected dateString == sysTime, got %q", e.DateString)
	}
	if e.UTCOffset != 0 {
		t.Errorf("expected utcOffset 0 without a zoned dateString, got %d", e.UTCOffset)
	}
}

func TestNormalizeDateWinsOverBadDateString(t *testing.T) {
	e := &Entry{
		TenantID:   testTenantA,
		Date:       1704067200000,
		DateString: "not a timestamp",
	}
	if err := Normalize(e); err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}

	if e.SysTime != "2024-01-01T00:00:00.000Z" {
		t.Errorf("expected fallback to date field, got sysTime %q", e.SysTime)
	}
	if e.DateString != e.SysTime {
		t.Errorf("expected unparseable dateString replaced, got %q", e.DateString)
	}
}

func TestNormalizeNoTimestampUsesServerTime(t *testing.T) {
	fixed := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	orig := timeNow
	timeNow = func() time.Time { return fixed }
	t.Cleanup(func() { timeNow = orig })

	// Uploaders omit timestamps on some records; those get stamped on arrival.
	e := &Entry{TenantID: testTenantA, Type: "mbg", MBG: intPtr(118)}
	if err := Normalize(e); err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}

	if e.Date != fixed.UnixMilli() {
		t.Errorf("expected date stamped with server time, got %d", e.Date)
	}
	if e.SysTime != "2024-01-01T12:00:00.000Z" {
		t.Errorf("expected sysTime from server time, got %q", e.SysTime)
	}
	if e.DateString != e.SysTime {
		t.Errorf("expected dateString == sysTime, got %q", e.DateString)
	}
	if e.UTCOffset != 0 {
		t.Errorf("expected utcOffset 0, got %d", e.UTCOffset)
	}
	if !IsEntryID(e.ID) {
		t.Errorf("expected generated id, got %q", e.ID)
	}
}

func TestNormalizeBadDateStringWithoutDate(t *testing.T) {
	e := &Entry{TenantID: testTenantA, DateString: "not a timestamp", SGV: intPtr(90)}

	err := Normalize(e)
	if !errors.Is(err, ErrInvalidTimestamp) {
		t.Fatalf("expected ErrInvalidTimestamp, got %v", err)
	}
}

func TestNormalizePreservesValidID(t *testing.T) {
	const id = "65a1b2c3d4e5f60718293a4b"
	e := &Entry{TenantID: testTenantA, ID: id, Date: 1704067200000}
	if err := Normalize(e); err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if e.ID != id {
		t.Errorf("expected valid id preserved, got %q", e.ID)
	}
}

func TestNormalizeReplacesInvalidID(t *testing.T) {
	e := &Entry{TenantID: testTenantA, ID: "not-an-object-id", Date: 1704067200000}
	if err := Normalize(e); err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if !IsEntryID(e.ID) {
		t.Errorf("expected malformed id replaced with 24-hex, got %q", e.ID)
	}
}

func TestNewEntryIDUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := NewEntryID()
		if !IsEntryID(id) {
			t.Fatalf("generated id %q is not 24-hex", id)
		}
		if seen[id] {
			t.Fatalf("duplicate id generated: %s", id)
		}
		seen[id] = true
	}
}
