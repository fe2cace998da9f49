package ingest

import (
    "context"
    "errors"
    "fmt"
    "time"

    "call_analytics/internal/events"
    "call_analytics/internal/metrics"
    "call_analytics/internal/store"
)

// Ingestion sources, used as metric and event labels.
const (
    SourceAPI     = "api"
    SourceBatch   = "batch"
    SourceWatcher = "watcher"
)

// Service admits transcripts into the store: validate, pre-check the
// identity triple, insert, and re-classify a storage-level constraint
// rejection as a duplicate. Bus and metrics are optional.
type Service struct {
    store   *store.Store
    bus     *events.Bus
    metrics *metrics.Metrics
}

func NewService(st *store.Store, bus *events.Bus, m *metrics.Metrics) *Service {
    return &Service{store: st, bus: bus, metrics: m}
}

// Ingest runs one candidate through the full pipeline. On success the
// returned transcript has id and created_at assigned by the store.
//
// The triple pre-check is advisory: it gives a cheap rejection without a
// write attempt, but two racing inserts can both pass it. The unique index
// settles the race, and the insert's constraint rejection comes back as the
// same store.ErrDuplicate the pre-check produces.
func (s *Service) Ingest(ctx context.Context, source string, c *store.Transcript) (*store.Transcript, error) {
    // id and created_at are store-assigned; whatever the caller carried is
    // discarded.
    c.ID = 0
    c.CreatedAt = time.Time{}
    if err := Validate(c); err != nil {
        s.observe(source, events.IngestEvent{Outcome: events.OutcomeInvalid, Reason: err.Error()}, c)
        return nil, err
    }
    exists, err := s.store.ExistsTriple(ctx, c.CustomerUniqueID, c.CallDateTime, c.SupportAgentID)
    if err != nil {
        s.observe(source, events.IngestEvent{Outcome: events.OutcomeFailed, Reason: err.Error()}, c)
        return nil, fmt.Errorf("duplicate pre-check: %w", err)
    }
    if exists {
        s.observe(source, events.IngestEvent{Outcome: events.OutcomeDuplicate}, c)
        return nil, store.ErrDuplicate
    }
    rec, err := s.store.Insert(ctx, c)
    if errors.Is(err, store.ErrDuplicate) {
        // Lost the race between pre-check and write.
        s.observe(source, events.IngestEvent{Outcome: events.OutcomeDuplicate}, c)
        return nil, store.ErrDuplicate
    }
    if err != nil {
        s.observe(source, events.IngestEvent{Outcome: events.OutcomeFailed, Reason: err.Error()}, c)
        return nil, err
    }
    s.observe(source, events.IngestEvent{Outcome: events.OutcomeCreated, TranscriptID: rec.ID}, rec)
    if s.metrics != nil {
        s.metrics.RecordsStored.Inc()
    }
    return rec, nil
}

func (s *Service) observe(source string, ev events.IngestEvent, c *store.Transcript) {
    if s.metrics != nil {
        s.metrics.IngestOutcomes.WithLabelValues(source, ev.Outcome).Inc()
    }
    if s.bus != nil {
        ev.Source = source
        ev.CustomerUniqueID = c.CustomerUniqueID
        ev.SupportAgentID = c.SupportAgentID
        ev.CallDateTime = c.CallDateTime
        s.bus.Publish(ev)
    }
}
