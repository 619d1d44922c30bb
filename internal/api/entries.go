package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/sugarline/sugarline-core/internal/entry"
)

// defaultEntryCount is the number of entries returned when the client does
// not ask for a specific count.
const defaultEntryCount = 10

// handleCreateEntries stores a batch of uploaded entries.
// The body is either one entry object or an array; uploaders send both.
func (s *Server) handleCreateEntries(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeBadRequest(w, "reading request body: "+err.Error())
		return
	}

	entries, err := decodeEntryBatch(body)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	if len(entries) == 0 {
		writeBadRequest(w, "request body contains no entries")
		return
	}

	stored, err := s.entries.Create(r.Context(), tenantFromContext(r.Context()), entries)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, stored)
}

// handleListEntries returns entries for the tenant. Selection parameters in
// priority order: find[] filter grammar, then start/end, then hours, then a
// plain count of the most recent entries.
func (s *Server) handleListEntries(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := tenantFromContext(ctx)
	params := r.URL.Query()
	count := s.entryCount(params.Get("count"))

	var (
		entries []entry.Entry
		err     error
	)
	switch {
	case hasFindParams(params):
		var f *entry.Filter
		f, err = entry.ParseFilter(params)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		entries, err = s.entries.Query(ctx, tenantID, f, count)

	case params.Get("start") != "" || params.Get("end") != "":
		var start, end int64
		start, end, err = parseTimeRange(params.Get("start"), params.Get("end"))
		if err != nil {
			writeBadRequest(w, err.Error())
			return
		}
		entries, err = s.entries.ByRange(ctx, tenantID, start, end, count)

	case params.Get("hours") != "":
		var hours int
		hours, err = strconv.Atoi(params.Get("hours"))
		if err != nil || hours < 1 {
			writeBadRequest(w, "hours must be a positive integer")
			return
		}
		now := time.Now()
		entries, err = s.entries.ByRange(ctx, tenantID,
			now.Add(-time.Duration(hours)*time.Hour).UnixMilli(), now.UnixMilli(), count)

	default:
		entries, err = s.entries.Latest(ctx, tenantID, count)
	}
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if entries == nil {
		entries = []entry.Entry{}
	}

	if conditionalGet(w, r, entries) {
		return
	}

	writeJSON(w, http.StatusOK, entries)
}

// handleCurrentEntry returns the most recent sensor glucose reading as JSON,
// or as a tab-separated line for clients that ask for plain text.
func (s *Server) handleCurrentEntry(w http.ResponseWriter, r *http.Request) {
	e, err := s.entries.Current(r.Context(), tenantFromContext(r.Context()))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if conditionalGet(w, r, []entry.Entry{*e}) {
		return
	}

	if wantsTSV(r) {
		var sgv int64
		if e.SGV != nil {
			sgv = *e.SGV
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		fmt.Fprintf(w, "%s\t%d\t%d\t%s\t%s\n", e.DateString, e.Date, sgv, e.Direction, e.Device)
		return
	}

	writeJSON(w, http.StatusOK, []entry.Entry{*e})
}

// handleGetEntriesSpec routes GET /entries/{spec}: a 24-hex value is an ID
// lookup, anything else lists entries of that type.
func (s *Server) handleGetEntriesSpec(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := tenantFromContext(ctx)
	spec := strings.TrimSuffix(chi.URLParam(r, "spec"), ".json")

	if entry.IsEntryID(spec) {
		e, err := s.entries.ByID(ctx, tenantID, spec)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		if conditionalGet(w, r, []entry.Entry{*e}) {
			return
		}
		writeJSON(w, http.StatusOK, []entry.Entry{*e})
		return
	}

	count := s.entryCount(r.URL.Query().Get("count"))
	entries, err := s.entries.ByType(ctx, tenantID, spec, count)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if entries == nil {
		entries = []entry.Entry{}
	}
	if conditionalGet(w, r, entries) {
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// handleDeleteEntries removes entries matching a find[] filter. With no
// filter clauses the default lookback window still applies, so a bare DELETE
// clears recent entries only, matching legacy behaviour.
func (s *Server) handleDeleteEntries(w http.ResponseWriter, r *http.Request) {
	f, err := entry.ParseFilter(r.URL.Query())
	if err != nil {
		writeServiceError(w, err)
		return
	}

	n, err := s.entries.DeleteByQuery(r.Context(), tenantFromContext(r.Context()), f)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"deleted": n})
}

// handleDeleteEntriesSpec routes DELETE /entries/{spec}: ID, type, or "*"
// for every entry the tenant owns. Deleting nothing is not an error.
func (s *Server) handleDeleteEntriesSpec(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := tenantFromContext(ctx)
	spec := strings.TrimSuffix(chi.URLParam(r, "spec"), ".json")

	var (
		n   int64
		err error
	)
	if entry.IsEntryID(spec) {
		n, err = s.entries.DeleteByID(ctx, tenantID, spec)
	} else {
		n, err = s.entries.DeleteByType(ctx, tenantID, spec)
	}
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"deleted": n})
}

// decodeEntryBatch parses an upload body: one entry object or an array.
func decodeEntryBatch(body []byte) ([]*entry.Entry, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, errors.New("request body is empty")
	}

	if trimmed[0] == '[' {
		var batch []*entry.Entry
		if err := json.Unmarshal(trimmed, &batch); err != nil {
			return nil, fmt.Errorf("parsing entries array: %w", err)
		}
		return batch, nil
	}

	var e entry.Entry
	if err := json.Unmarshal(trimmed, &e); err != nil {
		return nil, fmt.Errorf("parsing entry: %w", err)
	}
	return []*entry.Entry{&e}, nil
}

// entryCount parses the count parameter, applying the default and the
// configured cap. Malformed values fall back to the default rather than
// erroring; legacy uploaders send surprising things here.
func (s *Server) entryCount(raw string) int {
	count := defaultEntryCount
	if raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			count = n
		}
	}
	if max := s.cfg.MaxEntryCount; max > 0 && count > max {
		count = max
	}
	return count
}

// hasFindParams reports whether any find[] filter parameter is present.
func hasFindParams(params map[string][]string) bool {
	for key := range params {
		if strings.HasPrefix(key, "find[") {
			return true
		}
	}
	return false
}

// timeParamLayouts are the accepted shapes for start/end parameters.
var timeParamLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// parseTimeRange parses the start/end parameters, each either epoch
// milliseconds or ISO-8601. A missing start means the epoch; a missing end
// means now. Bounds are inclusive.
func parseTimeRange(startRaw, endRaw string) (int64, int64, error) {
	start := int64(0)
	end := time.Now().UnixMilli()

	if startRaw != "" {
		v, err := parseTimeParam(startRaw)
		if err != nil {
			return 0, 0, fmt.Errorf("invalid start parameter: %w", err)
		}
		start = v
	}
	if endRaw != "" {
		v, err := parseTimeParam(endRaw)
		if err != nil {
			return 0, 0, fmt.Errorf("invalid end parameter: %w", err)
		}
		end = v
	}
	return start, end, nil
}

// parseTimeParam parses one time parameter as epoch ms or ISO-8601.
func parseTimeParam(raw string) (int64, error) {
	if ms, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return ms, nil
	}
	for _, layout := range timeParamLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UnixMilli(), nil
		}
	}
	return 0, fmt.Errorf("unrecognised timestamp %q", raw)
}

// wantsTSV reports whether the client asked for the legacy tab-separated
// rendering. JSON is the default; only explicit plain-text accepts get TSV,
// and a .json path suffix always wins.
func wantsTSV(r *http.Request) bool {
	if strings.HasSuffix(r.URL.Path, ".json") {
		return false
	}
	accept := r.Header.Get("Accept")
	return strings.Contains(accept, "text/plain") ||
		strings.Contains(accept, "text/tab-separated-values")
}

// conditionalGet sets Last-Modified from the newest entry in the result set
// and reports whether the request's If-Modified-Since already covers it, in
// which case the 304 has been written and the caller must not write a body.
func conditionalGet(w http.ResponseWriter, r *http.Request, entries []entry.Entry) bool {
	lastModified, ok := newestDate(entries)
	if !ok {
		return false
	}
	w.Header().Set("Last-Modified", lastModified.Format(http.TimeFormat))

	ims := r.Header.Get("If-Modified-Since")
	if ims == "" {
		return false
	}
	since, err := http.ParseTime(ims)
	if err != nil {
		return false
	}
	if lastModified.Truncate(time.Second).After(since) {
		return false
	}
	w.WriteHeader(http.StatusNotModified)
	return true
}

// newestDate returns the most recent entry timestamp in a result set.
func newestDate(entries []entry.Entry) (time.Time, bool) {
	var max int64
	for i := range entries {
		if entries[i].Date > max {
			max = entries[i].Date
		}
	}
	if max == 0 {
		return time.Time{}, false
	}
	return time.UnixMilli(max).UTC(), true
}
