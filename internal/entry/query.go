package entry

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// DefaultLookback bounds unconstrained queries. A find filter with no date,
// dateString, or _id condition only sees the most recent four days, matching
// what legacy dashboards expect from an open-ended fetch.
const DefaultLookback = 4 * 24 * time.Hour

// findKeyPattern matches the legacy bracket grammar:
// find[field]=value and find[field][$op]=value.
var findKeyPattern = regexp.MustCompile(`^find\[([^\]\[]+)\](?:\[([^\]\[]+)\])?$`)

// operators maps filter operators to SQL comparison operators.
var operators = map[string]string{
	"$eq":  "=",
	"$ne":  "!=",
	"$gt":  ">",
	"$gte": ">=",
	"$lt":  "<",
	"$lte": "<=",
}

// filterColumns whitelists queryable fields and maps them to storage columns.
var filterColumns = map[string]string{
	"_id":        "id",
	"type":       "type",
	"date":       "date",
	"sysTime":    "sys_time",
	"dateString": "date_string",
	"utcOffset":  "utc_offset",
	"sgv":        "sgv",
	"mbg":        "mbg",
	"noise":      "noise",
	"filtered":   "filtered",
	"unfiltered": "unfiltered",
	"rssi":       "rssi",
	"direction":  "direction",
	"device":     "device",
}

// numericFields are cast to integers before comparison, so "170" and 170
// filter identically.
var numericFields = map[string]struct{}{
	"date": {}, "utcOffset": {}, "sgv": {}, "mbg": {}, "noise": {},
	"filtered": {}, "unfiltered": {}, "rssi": {},
}

// Condition is one parsed filter clause.
type Condition struct {
	Field  string // wire field name
	Column string // storage column
	Op     string // SQL comparison operator
	Value  any
}

// Filter is a parsed legacy find[] query.
type Filter struct {
	Conditions []Condition
}

// ParseFilter extracts find[field][$op]=value clauses from request query
// parameters. Non-find parameters are ignored; malformed clauses (unknown
// field, unknown operator, uncastable numeric value) return ErrInvalidQuery.
func ParseFilter(params url.Values) (*Filter, error) {
	f := &Filter{}
	for key, values := range params {
		if !strings.HasPrefix(key, "find[") {
			continue
		}
		m := findKeyPattern.FindStringSubmatch(key)
		if m == nil {
			return nil, fmt.Errorf("%w: malformed parameter %q", ErrInvalidQuery, key)
		}
		field, op := m[1], m[2]
		if op == "" {
			op = "$eq"
		}

		column, ok := filterColumns[field]
		if !ok {
			return nil, fmt.Errorf("%w: unknown field %q", ErrInvalidQuery, field)
		}
		sqlOp, ok := operators[op]
		if !ok {
			return nil, fmt.Errorf("%w: unsupported operator %q", ErrInvalidQuery, op)
		}

		for _, raw := range values {
			value, err := castValue(field, raw)
			if err != nil {
				return nil, err
			}
			f.Conditions = append(f.Conditions, Condition{
				Field:  field,
				Column: column,
				Op:     sqlOp,
				Value:  value,
			})
		}
	}
	return f, nil
}

// HasConditions reports whether any clause was parsed.
func (f *Filter) HasConditions() bool {
	return len(f.Conditions) > 0
}

// hasTimeConstraint reports whether the filter already bounds the result set
// by time or identity, which suppresses the default lookback window.
func (f *Filter) hasTimeConstraint() bool {
	for _, c := range f.Conditions {
		switch c.Field {
		case "date", "dateString", "sysTime", "_id":
			return true
		}
	}
	return false
}

// Translate renders the filter as an SQL fragment and its arguments. The
// fragment starts with " AND" so callers append it after the tenant clause.
// Unconstrained filters get the default lookback window relative to now.
func (f *Filter) Translate(now time.Time) (string, []any) {
	var (
		sb   strings.Builder
		args []any
	)
	for _, c := range f.Conditions {
		fmt.Fprintf(&sb, " AND %s %s ?", c.Column, c.Op)
		args = append(args, c.Value)
	}
	if !f.hasTimeConstraint() {
		sb.WriteString(" AND date >= ?")
		args = append(args, now.Add(-DefaultLookback).UnixMilli())
	}
	return sb.String(), args
}

// castValue converts a raw query value to the field's storage type.
func castValue(field, raw string) (any, error) {
	if _, numeric := numericFields[field]; !numeric {
		return raw, nil
	}
	// Uploader tooling sometimes sends integral floats ("170.0").
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return n, nil
	}
	if fv, err := strconv.ParseFloat(raw, 64); err == nil {
		return int64(fv), nil
	}
	return nil, fmt.Errorf("%w: field %q requires a numeric value, got %q", ErrInvalidQuery, field, raw)
}
