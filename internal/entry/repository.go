package entry

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Repository defines entry persistence operations. Every method is scoped to
// a tenant; there is no cross-tenant read path.
type Repository interface {
	// UpsertMany stores a batch of normalized entries inside one
	// transaction. Re-uploads of an existing (sysTime, type) pair update
	// the stored row in place and keep its original ID; the slice is
	// rewritten with the stored IDs.
	UpsertMany(ctx context.Context, entries []*Entry) error

	// Latest returns the most recent entries of any type, date descending.
	Latest(ctx context.Context, tenantID string, limit int) ([]Entry, error)

	// LatestOfType returns the single most recent entry of a type.
	// Returns ErrEntryNotFound when the tenant has none.
	LatestOfType(ctx context.Context, tenantID, entryType string) (*Entry, error)

	// ByType returns the most recent entries of a type, date descending.
	ByType(ctx context.Context, tenantID, entryType string, limit int) ([]Entry, error)

	// ByID returns one entry by its 24-hex identifier.
	ByID(ctx context.Context, tenantID, id string) (*Entry, error)

	// ByRange returns entries with start <= date <= end, date ascending.
	ByRange(ctx context.Context, tenantID string, start, end int64, limit int) ([]Entry, error)

	// ByQuery runs a parsed legacy filter, date descending. now anchors the
	// default lookback window for unconstrained filters.
	ByQuery(ctx context.Context, tenantID string, f *Filter, limit int, now time.Time) ([]Entry, error)

	// DeleteByID removes one entry. Returns the number of rows deleted.
	DeleteByID(ctx context.Context, tenantID, id string) (int64, error)

	// DeleteByType removes every entry of a type. "*" removes all types.
	DeleteByType(ctx context.Context, tenantID, entryType string) (int64, error)

	// DeleteByQuery removes every entry matching a parsed filter.
	DeleteByQuery(ctx context.Context, tenantID string, f *Filter, now time.Time) (int64, error)
}

const entryColumns = `id, tenant_id, type, date, sys_time, date_string, utc_offset,
	sgv, mbg, noise, filtered, unfiltered, rssi, direction, device, extra`

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed entry repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// UpsertMany stores a batch of entries in one transaction.
func (r *SQLiteRepository) UpsertMany(ctx context.Context, entries []*Entry) error {
	if len(entries) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning upsert transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	now := time.Now().UTC().Format(time.RFC3339)
	for _, e := range entries {
		extra, err := marshalExtra(e.Extra)
		if err != nil {
			return err
		}

		// The ID column is deliberately absent from the UPDATE set: a
		// re-upload refreshes the reading but keeps the stored identity.
		_, err = tx.ExecContext(ctx,
			`INSERT INTO entries (`+entryColumns+`, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT (tenant_id, sys_time, type) DO UPDATE SET
			   date = excluded.date,
			   date_string = excluded.date_string,
			   utc_offset = excluded.utc_offset,
			   sgv = excluded.sgv,
			   mbg = excluded.mbg,
			   noise = excluded.noise,
			   filtered = excluded.filtered,
			   unfiltered = excluded.unfiltered,
			   rssi = excluded.rssi,
			   direction = excluded.direction,
			   device = excluded.device,
			   extra = excluded.extra,
			   updated_at = excluded.updated_at`,
			e.ID, e.TenantID, e.Type, e.Date, e.SysTime, e.DateString, e.UTCOffset,
			optArg(e.SGV), optArg(e.MBG), optArg(e.Noise), optArg(e.Filtered),
			optArg(e.Unfiltered), optArg(e.RSSI),
			nullString(e.Direction), nullString(e.Device), extra, now, now,
		)
		if err != nil {
			return fmt.Errorf("upserting entry %s: %w", e.SysTime, err)
		}

		// Pick up the stored ID so duplicate uploads echo the original.
		var storedID string
		err = tx.QueryRowContext(ctx,
			`SELECT id FROM entries WHERE tenant_id = ? AND sys_time = ? AND type = ?`,
			e.TenantID, e.SysTime, e.Type,
		).Scan(&storedID)
		if err != nil {
			return fmt.Errorf("reading back entry %s: %w", e.SysTime, err)
		}
		e.ID = storedID
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing upsert: %w", err)
	}
	return nil
}

// Latest returns the most recent entries of any type.
func (r *SQLiteRepository) Latest(ctx context.Context, tenantID string, limit int) ([]Entry, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+entryColumns+` FROM entries
		 WHERE tenant_id = ? ORDER BY date DESC LIMIT ?`, tenantID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying latest entries: %w", err)
	}
	return collectEntries(rows)
}

// LatestOfType returns the single most recent entry of a type.
func (r *SQLiteRepository) LatestOfType(ctx context.Context, tenantID, entryType string) (*Entry, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+entryColumns+` FROM entries
		 WHERE tenant_id = ? AND type = ? ORDER BY date DESC LIMIT 1`, tenantID, entryType)

	e, err := scanEntryRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEntryNotFound
		}
		return nil, fmt.Errorf("querying latest %s entry: %w", entryType, err)
	}
	return e, nil
}

// ByType returns the most recent entries of a type.
func (r *SQLiteRepository) ByType(ctx context.Context, tenantID, entryType string, limit int) ([]Entry, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+entryColumns+` FROM entries
		 WHERE tenant_id = ? AND type = ? ORDER BY date DESC LIMIT ?`,
		tenantID, entryType, limit)
	if err != nil {
		return nil, fmt.Errorf("querying entries by type: %w", err)
	}
	return collectEntries(rows)
}

// ByID returns one entry by identifier.
func (r *SQLiteRepository) ByID(ctx context.Context, tenantID, id string) (*Entry, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+entryColumns+` FROM entries WHERE tenant_id = ? AND id = ?`, tenantID, id)

	e, err := scanEntryRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEntryNotFound
		}
		return nil, fmt.Errorf("querying entry by id: %w", err)
	}
	return e, nil
}

// ByRange returns entries inside [start, end], oldest first. Both bounds are
// inclusive; legacy clients ask for exact reading timestamps as the end.
func (r *SQLiteRepository) ByRange(ctx context.Context, tenantID string, start, end int64, limit int) ([]Entry, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+entryColumns+` FROM entries
		 WHERE tenant_id = ? AND date >= ? AND date <= ?
		 ORDER BY date ASC LIMIT ?`, tenantID, start, end, limit)
	if err != nil {
		return nil, fmt.Errorf("querying entries by range: %w", err)
	}
	return collectEntries(rows)
}

// ByQuery runs a parsed legacy filter.
func (r *SQLiteRepository) ByQuery(ctx context.Context, tenantID string, f *Filter, limit int, now time.Time) ([]Entry, error) {
	where, args := f.Translate(now)
	query := `SELECT ` + entryColumns + ` FROM entries WHERE tenant_id = ?` + where +
		` ORDER BY date DESC LIMIT ?`
	queryArgs := append([]any{tenantID}, args...)
	queryArgs = append(queryArgs, limit)

	rows, err := r.db.QueryContext(ctx, query, queryArgs...)
	if err != nil {
		return nil, fmt.Errorf("querying entries by filter: %w", err)
	}
	return collectEntries(rows)
}

// DeleteByID removes one entry.
func (r *SQLiteRepository) DeleteByID(ctx context.Context, tenantID, id string) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM entries WHERE tenant_id = ? AND id = ?`, tenantID, id)
	if err != nil {
		return 0, fmt.Errorf("deleting entry by id: %w", err)
	}
	n, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	return n, nil
}

// DeleteByType removes all entries of a type; "*" removes every entry.
func (r *SQLiteRepository) DeleteByType(ctx context.Context, tenantID, entryType string) (int64, error) {
	var (
		result sql.Result
		err    error
	)
	if entryType == "*" {
		result, err = r.db.ExecContext(ctx,
			`DELETE FROM entries WHERE tenant_id = ?`, tenantID)
	} else {
		result, err = r.db.ExecContext(ctx,
			`DELETE FROM entries WHERE tenant_id = ? AND type = ?`, tenantID, entryType)
	}
	if err != nil {
		return 0, fmt.Errorf("deleting entries by type: %w", err)
	}
	n, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	return n, nil
}

// DeleteByQuery removes every entry matching a parsed filter.
func (r *SQLiteRepository) DeleteByQuery(ctx context.Context, tenantID string, f *Filter, now time.Time) (int64, error) {
	where, args := f.Translate(now)
	query := `DELETE FROM entries WHERE tenant_id = ?` + where
	queryArgs := append([]any{tenantID}, args...)

	result, err := r.db.ExecContext(ctx, query, queryArgs...)
	if err != nil {
		return 0, fmt.Errorf("deleting entries by filter: %w", err)
	}
	n, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	return n, nil
}

// scannable covers *sql.Row and *sql.Rows.
type scannable interface {
	Scan(dest ...any) error
}

// scanEntryRow scans one entry from a row.
func scanEntryRow(row scannable) (*Entry, error) {
	var (
		e                                       Entry
		sgv, mbg, noise, filtered, unfilt, rssi sql.NullInt64
		direction, device                       sql.NullString
		extra                                   string
	)
	err := row.Scan(&e.ID, &e.TenantID, &e.Type, &e.Date, &e.SysTime, &e.DateString,
		&e.UTCOffset, &sgv, &mbg, &noise, &filtered, &unfilt, &rssi,
		&direction, &device, &extra)
	if err != nil {
		return nil, err
	}

	e.SGV = optVal(sgv)
	e.MBG = optVal(mbg)
	e.Noise = optVal(noise)
	e.Filtered = optVal(filtered)
	e.Unfiltered = optVal(unfilt)
	e.RSSI = optVal(rssi)
	e.Direction = direction.String
	e.Device = device.String

	if extra != "" && extra != "{}" {
		if err := json.Unmarshal([]byte(extra), &e.Extra); err != nil {
			return nil, fmt.Errorf("decoding entry extra fields: %w", err)
		}
	}
	return &e, nil
}

// collectEntries drains a multi-row result set.
func collectEntries(rows *sql.Rows) ([]Entry, error) {
	defer rows.Close() //nolint:errcheck // Read-only rows close

	var entries []Entry
	for rows.Next() {
		e, err := scanEntryRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning entry: %w", err)
		}
		entries = append(entries, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating entries: %w", err)
	}
	return entries, nil
}

// marshalExtra encodes the passthrough fields as JSON text.
func marshalExtra(extra map[string]any) (string, error) {
	if len(extra) == 0 {
		return "{}", nil
	}
	b, err := json.Marshal(extra)
	if err != nil {
		return "", fmt.Errorf("encoding entry extra fields: %w", err)
	}
	return string(b), nil
}

// optVal converts a nullable column to an optional int.
func optVal(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	v := n.Int64
	return &v
}

// optArg converts an optional int to a NULL-able query argument.
func optArg(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}

// nullString returns a NULL-able value for empty strings.
func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
