package entry

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// DefaultType is assumed when an uploaded entry carries no type field.
// Sensor glucose values are by far the most common entry kind.
const DefaultType = "sgv"

// Entry is one CGM record: a sensor glucose value, meter glucose, calibration,
// or any other timestamped reading an uploader sends.
//
// The typed fields cover everything the query grammar and the TSV rendering
// need; anything else an uploader includes survives round-trips through Extra.
// TenantID is storage-internal and never appears on the wire.
type Entry struct {
	ID         string
	TenantID   string
	Type       string
	Date       int64  // epoch milliseconds, the canonical sort key
	SysTime    string // canonical UTC ISO-8601 with millisecond precision
	DateString string // always rewritten to SysTime on ingest
	UTCOffset  int    // minutes east of UTC, taken from the uploader's dateString

	SGV        *int64
	MBG        *int64
	Noise      *int64
	Filtered   *int64
	Unfiltered *int64
	RSSI       *int64
	Direction  string
	Device     string

	// Extra holds uploader fields outside the typed set (slope, intercept,
	// scale, delta, trendRate, ...). Keys never shadow typed fields.
	Extra map[string]any
}

// typed field names as they appear on the wire. Used to keep Extra from
// shadowing canonical fields during unmarshalling.
var typedFields = map[string]struct{}{
	"_id": {}, "type": {}, "date": {}, "sysTime": {}, "dateString": {},
	"utcOffset": {}, "mills": {}, "sgv": {}, "mbg": {}, "noise": {},
	"filtered": {}, "unfiltered": {}, "rssi": {}, "direction": {}, "device": {},
}

// NewEntryID returns a fresh 24-character lowercase hex identifier, the same
// shape legacy MongoDB ObjectIds have so existing clients keep parsing it.
func NewEntryID() string {
	b := make([]byte, 12) //nolint:mnd // 12 bytes = 24 hex chars, the ObjectId width
	if _, err := rand.Read(b); err != nil {
		panic(fmt.Sprintf("entry id generation: %v", err))
	}
	return hex.EncodeToString(b)
}

// MarshalJSON renders the entry in legacy wire shape: Extra fields flattened
// to the top level, mills mirroring date, tenant ID omitted.
func (e Entry) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, len(e.Extra)+10) //nolint:mnd // typed field headroom
	for k, v := range e.Extra {
		if _, taken := typedFields[k]; !taken {
			m[k] = v
		}
	}

	m["_id"] = e.ID
	m["type"] = e.Type
	m["date"] = e.Date
	m["mills"] = e.Date
	m["sysTime"] = e.SysTime
	m["dateString"] = e.DateString
	m["utcOffset"] = e.UTCOffset

	putOpt(m, "sgv", e.SGV)
	putOpt(m, "mbg", e.MBG)
	putOpt(m, "noise", e.Noise)
	putOpt(m, "filtered", e.Filtered)
	putOpt(m, "unfiltered", e.Unfiltered)
	putOpt(m, "rssi", e.RSSI)
	if e.Direction != "" {
		m["direction"] = e.Direction
	}
	if e.Device != "" {
		m["device"] = e.Device
	}

	return json.Marshal(m)
}

// UnmarshalJSON accepts the loose documents uploaders send: any mix of typed
// fields plus arbitrary extras, with numbers arriving as JSON floats.
func (e *Entry) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*e = Entry{}
	for key, val := range raw {
		switch key {
		case "_id":
			if err := json.Unmarshal(val, &e.ID); err != nil {
				return fmt.Errorf("field _id: %w", err)
			}
		case "type":
			if err := json.Unmarshal(val, &e.Type); err != nil {
				return fmt.Errorf("field type: %w", err)
			}
		case "date", "mills":
			// mills is an alias; date wins when both are present.
			if key == "mills" && e.Date != 0 {
				continue
			}
			n, err := jsonInt64(val)
			if err != nil {
				return fmt.Errorf("field %s: %w", key, err)
			}
			e.Date = n
		case "sysTime":
			if err := json.Unmarshal(val, &e.SysTime); err != nil {
				return fmt.Errorf("field sysTime: %w", err)
			}
		case "dateString":
			if err := json.Unmarshal(val, &e.DateString); err != nil {
				return fmt.Errorf("field dateString: %w", err)
			}
		case "utcOffset":
			n, err := jsonInt64(val)
			if err != nil {
				return fmt.Errorf("field utcOffset: %w", err)
			}
			e.UTCOffset = int(n)
		case "sgv":
			if err := takeOpt(val, &e.SGV); err != nil {
				return fmt.Errorf("field sgv: %w", err)
			}
		case "mbg":
			if err := takeOpt(val, &e.MBG); err != nil {
				return fmt.Errorf("field mbg: %w", err)
			}
		case "noise":
			if err := takeOpt(val, &e.Noise); err != nil {
				return fmt.Errorf("field noise: %w", err)
			}
		case "filtered":
			if err := takeOpt(val, &e.Filtered); err != nil {
				return fmt.Errorf("field filtered: %w", err)
			}
		case "unfiltered":
			if err := takeOpt(val, &e.Unfiltered); err != nil {
				return fmt.Errorf("field unfiltered: %w", err)
			}
		case "rssi":
			if err := takeOpt(val, &e.RSSI); err != nil {
				return fmt.Errorf("field rssi: %w", err)
			}
		case "direction":
			if err := json.Unmarshal(val, &e.Direction); err != nil {
				return fmt.Errorf("field direction: %w", err)
			}
		case "device":
			if err := json.Unmarshal(val, &e.Device); err != nil {
				return fmt.Errorf("field device: %w", err)
			}
		default:
			if e.Extra == nil {
				e.Extra = make(map[string]any)
			}
			var v any
			if err := json.Unmarshal(val, &v); err != nil {
				return fmt.Errorf("field %s: %w", key, err)
			}
			e.Extra[key] = v
		}
	}
	return nil
}

// jsonInt64 parses a JSON number (integer or float, both occur in the wild)
// as int64.
func jsonInt64(raw json.RawMessage) (int64, error) {
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		return 0, err
	}
	return int64(f), nil
}

// takeOpt parses an optional integer field, leaving dst nil on JSON null.
func takeOpt(raw json.RawMessage, dst **int64) error {
	if string(raw) == "null" {
		return nil
	}
	n, err := jsonInt64(raw)
	if err != nil {
		return err
	}
	*dst = &n
	return nil
}

// putOpt adds an optional integer field to a wire map when set.
func putOpt(m map[string]any, key string, v *int64) {
	if v != nil {
		m[key] = *v
	}
}
