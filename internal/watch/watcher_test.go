package watch

import (
    "context"
    "encoding/json"
    "os"
    "path/filepath"
    "testing"
    "time"

    "call_analytics/internal/config"
    "call_analytics/internal/ingest"
    "call_analytics/internal/queue"
    "call_analytics/internal/store"
)

func setupWatcher(t *testing.T) (*Watcher, *store.Store, string) {
    t.Helper()
    dir := t.TempDir()
    cfg := config.Config{TranscriptsDir: dir, EnableWatcher: true}
    st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
    if err != nil {
        t.Fatal(err)
    }
    t.Cleanup(func() { st.Close() })
    svc := ingest.NewService(st, nil, nil)
    q := queue.New(16, 1, 5*time.Second)
    return New(cfg, svc, q), st, dir
}

func dropTranscript(t *testing.T, dir, name, datetime string) {
    t.Helper()
    rec := store.Transcript{
        CustomerName:                 "Jordan Ellis",
        CustomerUniqueID:             "C1",
        SupportAgentName:             "Pat Moore",
        SupportAgentID:               "A1",
        CallTranscript:               "Customer reported a billing discrepancy.",
        OverallSatisfactionScore:     8,
        CategoryOfCall:               "Billing",
        CallDuration:                 5,
        CallDateTime:                 datetime,
        CallResolutionStatus:         "Resolved",
        EscalationLevel:              "None",
        FollowUpRequired:             "No",
        CustomerTier:                 "Gold",
        IssueSeverity:                "Low",
        AgentExperienceLevel:         "Senior",
        CustomerPreviousContactCount: 2,
    }
    raw, err := json.Marshal(rec)
    if err != nil {
        t.Fatal(err)
    }
    if err := os.WriteFile(filepath.Join(dir, name), raw, 0o644); err != nil {
        t.Fatal(err)
    }
}

func TestBackfillIngestsExistingFiles(t *testing.T) {
    w, st, dir := setupWatcher(t)
    dropTranscript(t, dir, "transcript_001.json", "2025-01-01 10:00:00")
    dropTranscript(t, dir, "transcript_002.json", "2025-01-02 10:00:00")

    report, err := w.Backfill(context.Background())
    if err != nil {
        t.Fatal(err)
    }
    if len(report.CreatedIDs) != 2 {
        t.Fatalf("expected 2 created, got %+v", report)
    }
    n, err := st.Count(context.Background())
    if err != nil {
        t.Fatal(err)
    }
    if n != 2 {
        t.Fatalf("expected 2 records, got %d", n)
    }
}

func TestWatcherIngestsDroppedFile(t *testing.T) {
    w, st, dir := setupWatcher(t)
    ctx, cancel := context.WithCancel(context.Background())
    defer cancel()
    w.q.Start(ctx)
    if err := w.Start(ctx); err != nil {
        t.Fatal(err)
    }

    dropTranscript(t, dir, "transcript_100.json", "2025-02-01 10:00:00")

    deadline := time.Now().Add(3 * time.Second)
    for {
        n, err := st.Count(ctx)
        if err != nil {
            t.Fatal(err)
        }
        if n == 1 {
            return
        }
        if time.Now().After(deadline) {
            t.Fatalf("dropped file was not ingested")
        }
        time.Sleep(20 * time.Millisecond)
    }
}

func TestWatcherDisabled(t *testing.T) {
    w, _, _ := setupWatcher(t)
    w.cfg.EnableWatcher = false
    if err := w.Start(context.Background()); err != nil {
        t.Fatalf("disabled watcher must start cleanly: %v", err)
    }
}
