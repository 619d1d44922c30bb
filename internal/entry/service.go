package entry

import (
	"context"
	"time"

	"github.com/sugarline/sugarline-core/internal/infrastructure/logging"
)

// Notifier receives entries that were just stored, for live fan-out to
// connected dashboards. Implementations must not block: ingest latency is
// bounded by the uploader's sensor interval, not by slow readers.
type Notifier interface {
	NotifyNewEntries(tenantID string, entries []Entry)
}

// Recorder mirrors stored glucose readings into a telemetry sink.
// Implementations must be asynchronous and failure-tolerant; a down sink
// never fails an upload.
type Recorder interface {
	RecordEntry(e Entry)
}

// Service implements entry ingest and retrieval. It owns normalization and
// the post-store side effects (WebSocket fan-out, telemetry); handlers and
// the MQTT ingester both sit on top of it.
type Service struct {
	repo     Repository
	notifier Notifier
	recorder Recorder
	logger   *logging.Logger
	now      func() time.Time
}

// NewService creates an entry Service. notifier and recorder may be nil when
// the corresponding feature is disabled.
func NewService(repo Repository, notifier Notifier, recorder Recorder, logger *logging.Logger) *Service {
	return &Service{
		repo:     repo,
		notifier: notifier,
		recorder: recorder,
		logger:   logger,
		now:      time.Now,
	}
}

// Create normalizes and stores a batch of uploaded entries for a tenant,
// then fans them out to live listeners and the telemetry sink. The returned
// slice is the canonical stored form, including IDs of pre-existing rows for
// re-uploaded readings.
//
// The whole batch is rejected when any entry lacks a usable timestamp;
// partial uploads would leave the uploader's retry logic guessing.
func (s *Service) Create(ctx context.Context, tenantID string, entries []*Entry) ([]Entry, error) {
	if len(entries) == 0 {
		return []Entry{}, nil
	}

	for _, e := range entries {
		e.TenantID = tenantID
		if err := Normalize(e); err != nil {
			return nil, err
		}
	}

	if err := s.repo.UpsertMany(ctx, entries); err != nil {
		return nil, err
	}

	stored := make([]Entry, len(entries))
	for i, e := range entries {
		stored[i] = *e
	}

	if s.notifier != nil {
		s.notifier.NotifyNewEntries(tenantID, stored)
	}
	if s.recorder != nil {
		for _, e := range stored {
			s.recorder.RecordEntry(e)
		}
	}

	s.logger.Debug("entries stored", "tenant_id", tenantID, "count", len(stored))
	return stored, nil
}

// Latest returns the most recent entries of any type, newest first.
func (s *Service) Latest(ctx context.Context, tenantID string, limit int) ([]Entry, error) {
	return s.repo.Latest(ctx, tenantID, limit)
}

// Current returns the single most recent sensor glucose entry.
func (s *Service) Current(ctx context.Context, tenantID string) (*Entry, error) {
	return s.repo.LatestOfType(ctx, tenantID, DefaultType)
}

// ByType returns the most recent entries of one type, newest first.
func (s *Service) ByType(ctx context.Context, tenantID, entryType string, limit int) ([]Entry, error) {
	return s.repo.ByType(ctx, tenantID, entryType, limit)
}

// ByID returns one entry by its 24-hex identifier.
func (s *Service) ByID(ctx context.Context, tenantID, id string) (*Entry, error) {
	return s.repo.ByID(ctx, tenantID, id)
}

// ByRange returns entries with start <= date <= end, oldest first.
func (s *Service) ByRange(ctx context.Context, tenantID string, start, end int64, limit int) ([]Entry, error) {
	return s.repo.ByRange(ctx, tenantID, start, end, limit)
}

// Query runs a parsed legacy filter, newest first.
func (s *Service) Query(ctx context.Context, tenantID string, f *Filter, limit int) ([]Entry, error) {
	return s.repo.ByQuery(ctx, tenantID, f, limit, s.now())
}

// DeleteByID removes one entry, reporting how many rows went away.
func (s *Service) DeleteByID(ctx context.Context, tenantID, id string) (int64, error) {
	return s.repo.DeleteByID(ctx, tenantID, id)
}

// DeleteByType removes all entries of a type; "*" clears the tenant.
func (s *Service) DeleteByType(ctx context.Context, tenantID, entryType string) (int64, error) {
	return s.repo.DeleteByType(ctx, tenantID, entryType)
}

// DeleteByQuery removes every entry matching a parsed legacy filter.
func (s *Service) DeleteByQuery(ctx context.Context, tenantID string, f *Filter) (int64, error) {
	return s.repo.DeleteByQuery(ctx, tenantID, f, s.now())
}
