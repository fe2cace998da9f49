package ingest

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "log"
    "os"
    "path/filepath"
    "sort"
    "strings"

    "github.com/google/uuid"

    "call_analytics/internal/store"
)

// Item pairs a candidate with a label (filename, request index) used in the
// batch report when the candidate is rejected.
type Item struct {
    Label  string
    Record *store.Transcript
}

// ItemError records one rejected batch item.
type ItemError struct {
    Item   string `json:"item"`
    Reason string `json:"reason"`
}

// Report aggregates per-item outcomes of one batch run. Duplicates are an
// expected outcome of re-runs and are counted as skips, not failures.
type Report struct {
    RunID        string      `json:"run_id"`
    CreatedIDs   []int64     `json:"created_ids"`
    SkippedCount int         `json:"skipped_count"`
    FailedCount  int         `json:"failed_count"`
    Errors       []ItemError `json:"errors"`
}

func newReport() *Report {
    return &Report{
        RunID:      uuid.NewString(),
        CreatedIDs: []int64{},
        Errors:     []ItemError{},
    }
}

// add runs one candidate and folds the outcome into the report.
func (s *Service) add(ctx context.Context, source string, report *Report, label string, rec *store.Transcript) {
    stored, err := s.Ingest(ctx, source, rec)
    switch {
    case err == nil:
        report.CreatedIDs = append(report.CreatedIDs, stored.ID)
    case errors.Is(err, store.ErrDuplicate):
        report.SkippedCount++
    default:
        report.FailedCount++
        report.Errors = append(report.Errors, ItemError{Item: label, Reason: err.Error()})
    }
}

func (s *Service) finish(source string, report *Report) {
    if s.metrics != nil {
        s.metrics.BatchRuns.Inc()
    }
    log.Printf("batch run=%s source=%s created=%d skipped=%d failed=%d",
        report.RunID, source, len(report.CreatedIDs), report.SkippedCount, report.FailedCount)
}

// IngestBatch processes items sequentially in input order. One item's
// rejection never stops the rest; the report is returned only after every
// item has been attempted.
func (s *Service) IngestBatch(ctx context.Context, source string, items []Item) *Report {
    report := newReport()
    for _, item := range items {
        s.add(ctx, source, report, item.Label, item.Record)
    }
    s.finish(source, report)
    return report
}

// IngestDir ingests every .json transcript file in dir, in ascending
// filename order. An unreadable directory fails the whole batch; an
// unreadable or unparseable file fails only that item.
func (s *Service) IngestDir(ctx context.Context, dir string) (*Report, error) {
    entries, err := os.ReadDir(dir)
    if err != nil {
        return nil, fmt.Errorf("read transcripts dir: %w", err)
    }
    names := make([]string, 0, len(entries))
    for _, e := range entries {
        if e.IsDir() || !IsTranscriptFile(e.Name()) {
            continue
        }
        names = append(names, e.Name())
    }
    sort.Strings(names)

    report := newReport()
    for _, name := range names {
        rec, err := ReadCandidate(filepath.Join(dir, name))
        if err != nil {
            report.FailedCount++
            report.Errors = append(report.Errors, ItemError{Item: name, Reason: err.Error()})
            continue
        }
        s.add(ctx, SourceBatch, report, name, rec)
    }
    s.finish(SourceBatch, report)
    return report, nil
}

// IsTranscriptFile reports whether a filename looks like a transcript drop.
func IsTranscriptFile(name string) bool {
    return strings.EqualFold(filepath.Ext(name), ".json")
}

// ReadCandidate parses one transcript JSON file into a candidate record.
func ReadCandidate(path string) (*store.Transcript, error) {
    raw, err := os.ReadFile(path)
    if err != nil {
        return nil, fmt.Errorf("read transcript file: %w", err)
    }
    var rec store.Transcript
    if err := json.Unmarshal(raw, &rec); err != nil {
        return nil, fmt.Errorf("parse transcript file: %w", err)
    }
    rec.ID = 0
    return &rec, nil
}
