package entry

import "errors"

// Sentinel errors for the entry package.
var (
	// ErrEntryNotFound indicates no entry matched the lookup.
	ErrEntryNotFound = errors.New("entry not found")

	// ErrInvalidQuery indicates a malformed legacy find[] filter: unknown
	// field, unknown operator, or a value that cannot be cast to the
	// field's type.
	ErrInvalidQuery = errors.New("invalid query filter")

	// ErrInvalidTimestamp indicates an entry carried neither a parseable
	// dateString nor an epoch-millisecond date.
	ErrInvalidTimestamp = errors.New("entry has no usable timestamp")
)
