package entry

import (
	"encoding/json"
	"testing"
)

func TestEntryMarshalWireShape(t *testing.T) {
	e := Entry{
		ID:         "65a1b2c3d4e5f60718293a4b",
		TenantID:   testTenantA,
		Type:       "sgv",
		Date:       1704067200000,
		SysTime:    "2024-01-01T00:00:00.000Z",
		DateString: "2024-01-01T00:00:00.000Z",
		UTCOffset:  0,
		SGV:        intPtr(120),
		Direction:  "Flat",
		Device:     "dexcom",
		Extra:      map[string]any{"slope": 1.5},
	}

	raw, err := json.Marshal(e)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		t.Fatalf("unmarshal round trip failed: %v", err)
	}

	if m["_id"] != "65a1b2c3d4e5f60718293a4b" {
		t.Errorf("expected _id on the wire, got %v", m["_id"])
	}
	if m["date"] != float64(1704067200000) || m["mills"] != float64(1704067200000) {
		t.Errorf("expected mills to mirror date, got date=%v mills=%v", m["date"], m["mills"])
	}
	if m["sgv"] != float64(120) {
		t.Errorf("expected sgv 120, got %v", m["sgv"])
	}
	if m["slope"] != 1.5 {
		t.Errorf("expected extra field flattened onto the object, got %v", m["slope"])
	}
	if _, present := m["tenant_id"]; present {
		t.Error("tenant_id must never appear on the wire")
	}
	if _, present := m["mbg"]; present {
		t.Error("unset optional fields must be omitted")
	}
}

func TestEntryMarshalTypedFieldsWinOverExtra(t *testing.T) {
	e := Entry{
		ID:         NewEntryID(),
		Type:       "sgv",
		Date:       1704067200000,
		SysTime:    "2024-01-01T00:00:00.000Z",
		DateString: "2024-01-01T00:00:00.000Z",
		SGV:        intPtr(120),
		Extra:      map[string]any{"sgv": 999},
	}

	raw, err := json.Marshal(e)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		t.Fatalf("unmarshal round trip failed: %v", err)
	}
	if m["sgv"] != float64(120) {
		t.Errorf("expected typed sgv to shadow extra, got %v", m["sgv"])
	}
}

func TestEntryUnmarshal(t *testing.T) {
	raw := []byte(`{
		"type": "sgv",
		"date": 1704067200000,
		"dateString": "2024-01-01T00:00:00.000Z",
		"sgv": 142,
		"direction": "FortyFiveUp",
		"device": "xdrip",
		"noise": null,
		"slope": 0.5,
		"intercept": 30000
	}`)

	var e Entry
	if err := json.Unmarshal(raw, &e); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}

	if e.Date != 1704067200000 {
		t.Errorf("expected date parsed, got %d", e.Date)
	}
	if e.SGV == nil || *e.SGV != 142 {
		t.Errorf("expected sgv 142, got %v", e.SGV)
	}
	if e.Noise != nil {
		t.Errorf("expected null noise to stay unset, got %v", *e.Noise)
	}
	if e.Direction != "FortyFiveUp" || e.Device != "xdrip" {
		t.Errorf("string fields not parsed: %q %q", e.Direction, e.Device)
	}
	if e.Extra["slope"] != 0.5 {
		t.Errorf("expected unknown field kept in extra, got %v", e.Extra["slope"])
	}
	if _, present := e.Extra["sgv"]; present {
		t.Error("typed fields must not leak into extra")
	}
}

func TestEntryUnmarshalMillsAlias(t *testing.T) {
	var e Entry
	if err := json.Unmarshal([]byte(`{"mills": 1704067200000, "sgv": 100}`), &e); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if e.Date != 1704067200000 {
		t.Errorf("expected mills accepted as date alias, got %d", e.Date)
	}

	// When both are present the explicit date wins.
	var e2 Entry
	if err := json.Unmarshal([]byte(`{"date": 1, "mills": 2}`), &e2); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if e2.Date != 1 {
		t.Errorf("expected date to win over mills, got %d", e2.Date)
	}
}

func TestEntryUnmarshalFloatDate(t *testing.T) {
	var e Entry
	if err := json.Unmarshal([]byte(`{"date": 1.7040672e12, "sgv": 100.0}`), &e); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if e.Date != 1704067200000 {
		t.Errorf("expected float date coerced to int64, got %d", e.Date)
	}
	if e.SGV == nil || *e.SGV != 100 {
		t.Errorf("expected float sgv coerced to int64, got %v", e.SGV)
	}
}
