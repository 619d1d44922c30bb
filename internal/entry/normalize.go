package entry

import (
	"fmt"
	"regexp"
	"time"
)

// SysTimeLayout is the canonical timestamp rendering: UTC ISO-8601 with
// millisecond precision and a literal Z suffix. Legacy dashboards parse
// exactly this shape.
const SysTimeLayout = "2006-01-02T15:04:05.000Z"

// dateStringLayouts are the timestamp shapes uploaders actually send.
// Tried in order; the first parse wins.
var dateStringLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.000-0700",
	"2006-01-02T15:04:05-0700",
	"2006-01-02T15:04:05.000",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

var entryIDPattern = regexp.MustCompile(`^[0-9a-f]{24}$`)

// timeNow is swapped in tests.
var timeNow = time.Now

// IsEntryID reports whether s has the 24-hex identifier shape.
func IsEntryID(s string) bool {
	return entryIDPattern.MatchString(s)
}

// Normalize rewrites an uploaded entry into canonical form, in place:
//
//   - Type defaults to "sgv".
//   - The uploader's dateString, when parseable, is the source of truth:
//     utcOffset becomes its zone offset in minutes and sysTime its UTC
//     rendering. A missing date is filled from it.
//   - Without a dateString, the epoch-millisecond date field drives sysTime
//     and the offset is taken as zero.
//   - With neither field, the entry is stamped with the current server time
//     in UTC; legacy uploaders omit timestamps entirely on some records.
//   - dateString is always overwritten with sysTime, so stored entries
//     render uniformly no matter what the uploader sent.
//   - A missing ID is generated; a malformed one is replaced.
//
// Returns ErrInvalidTimestamp when the only timestamp present is a
// dateString that cannot be parsed.
func Normalize(e *Entry) error {
	if e.Type == "" {
		e.Type = DefaultType
	}

	switch {
	case e.DateString != "":
		t, err := parseDateString(e.DateString)
		if err != nil {
			if e.Date == 0 {
				return fmt.Errorf("%w: %v", ErrInvalidTimestamp, err)
			}
			// Unparseable dateString with a usable date: the date wins.
			fromDate(e)
			break
		}
		_, offsetSeconds := t.Zone()
		e.UTCOffset = offsetSeconds / 60 //nolint:mnd // seconds to minutes
		e.SysTime = t.UTC().Format(SysTimeLayout)
		if e.Date == 0 {
			e.Date = t.UnixMilli()
		}

	case e.Date != 0:
		fromDate(e)

	default:
		now := timeNow().UTC()
		e.Date = now.UnixMilli()
		e.SysTime = now.Format(SysTimeLayout)
		e.UTCOffset = 0
	}

	e.DateString = e.SysTime

	if !IsEntryID(e.ID) {
		e.ID = NewEntryID()
	}
	return nil
}

// fromDate derives the canonical timestamp fields from the epoch-ms date.
func fromDate(e *Entry) {
	t := time.UnixMilli(e.Date).UTC()
	e.SysTime = t.Format(SysTimeLayout)
	e.UTCOffset = 0
}

// parseDateString tries each accepted layout; zoneless layouts parse as UTC.
func parseDateString(s string) (time.Time, error) {
	for _, layout := range dateStringLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised dateString %q", s)
}
