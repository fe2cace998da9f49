package ingest

import (
    "context"
    "encoding/json"
    "fmt"
    "os"
    "path/filepath"
    "testing"

    "call_analytics/internal/store"
)

func writeTranscriptFile(t *testing.T, dir, name string, rec *store.Transcript) {
    t.Helper()
    raw, err := json.Marshal(rec)
    if err != nil {
        t.Fatal(err)
    }
    if err := os.WriteFile(filepath.Join(dir, name), raw, 0o644); err != nil {
        t.Fatal(err)
    }
}

func seedDir(t *testing.T, n int) string {
    t.Helper()
    dir := t.TempDir()
    for i := 0; i < n; i++ {
        rec := candidate()
        rec.CallDateTime = fmt.Sprintf("2025-01-%02d 10:00:00", i+1)
        writeTranscriptFile(t, dir, fmt.Sprintf("transcript_%03d.json", i+1), rec)
    }
    return dir
}

func TestIngestDirBestEffort(t *testing.T) {
    svc, st := setupService(t)
    dir := seedDir(t, 4)

    // One invalid candidate among valid ones must not stop the rest.
    bad := candidate()
    bad.CallDateTime = "2025-02-01 10:00:00"
    bad.CategoryOfCall = ""
    writeTranscriptFile(t, dir, "transcript_002a.json", bad)

    report, err := svc.IngestDir(context.Background(), dir)
    if err != nil {
        t.Fatal(err)
    }
    if len(report.CreatedIDs) != 4 {
        t.Fatalf("expected 4 created, got %d", len(report.CreatedIDs))
    }
    if report.FailedCount != 1 {
        t.Fatalf("expected 1 failed, got %d", report.FailedCount)
    }
    if report.SkippedCount != 0 {
        t.Fatalf("expected 0 skipped, got %d", report.SkippedCount)
    }
    if len(report.Errors) != 1 || report.Errors[0].Item != "transcript_002a.json" {
        t.Fatalf("expected error entry for the invalid file, got %+v", report.Errors)
    }
    if report.RunID == "" {
        t.Fatalf("expected a run id")
    }

    n, err := st.Count(context.Background())
    if err != nil {
        t.Fatal(err)
    }
    if n != 4 {
        t.Fatalf("expected 4 persisted records, got %d", n)
    }
}

func TestIngestDirRerunSkipsEverything(t *testing.T) {
    svc, _ := setupService(t)
    dir := seedDir(t, 3)
    ctx := context.Background()

    first, err := svc.IngestDir(ctx, dir)
    if err != nil {
        t.Fatal(err)
    }
    if len(first.CreatedIDs) != 3 || first.SkippedCount != 0 {
        t.Fatalf("unexpected first run: %+v", first)
    }

    second, err := svc.IngestDir(ctx, dir)
    if err != nil {
        t.Fatal(err)
    }
    if len(second.CreatedIDs) != 0 {
        t.Fatalf("re-run must create nothing, got %d", len(second.CreatedIDs))
    }
    if second.SkippedCount != 3 {
        t.Fatalf("re-run must skip all 3, got %d", second.SkippedCount)
    }
    if second.FailedCount != 0 {
        t.Fatalf("duplicates are skips, not failures: %+v", second)
    }
}

func TestIngestDirUnparseableFileFailsOnlyThatItem(t *testing.T) {
    svc, _ := setupService(t)
    dir := seedDir(t, 2)
    if err := os.WriteFile(filepath.Join(dir, "transcript_broken.json"), []byte("{not json"), 0o644); err != nil {
        t.Fatal(err)
    }

    report, err := svc.IngestDir(context.Background(), dir)
    if err != nil {
        t.Fatal(err)
    }
    if len(report.CreatedIDs) != 2 || report.FailedCount != 1 {
        t.Fatalf("expected 2 created and 1 failed, got %+v", report)
    }
}

func TestIngestDirIgnoresNonJSONFiles(t *testing.T) {
    svc, _ := setupService(t)
    dir := seedDir(t, 1)
    if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignore me"), 0o644); err != nil {
        t.Fatal(err)
    }
    report, err := svc.IngestDir(context.Background(), dir)
    if err != nil {
        t.Fatal(err)
    }
    if len(report.CreatedIDs) != 1 || report.FailedCount != 0 {
        t.Fatalf("unexpected report: %+v", report)
    }
}

func TestIngestDirMissingDirectoryFailsWholeBatch(t *testing.T) {
    svc, _ := setupService(t)
    if _, err := svc.IngestDir(context.Background(), filepath.Join(t.TempDir(), "absent")); err == nil {
        t.Fatalf("expected error for missing directory")
    }
}

func TestIngestBatchKeepsInputOrder(t *testing.T) {
    svc, _ := setupService(t)
    items := make([]Item, 0, 3)
    for i := 0; i < 3; i++ {
        rec := candidate()
        rec.CallDateTime = fmt.Sprintf("2025-03-%02d 10:00:00", i+1)
        items = append(items, Item{Label: fmt.Sprintf("item-%d", i), Record: rec})
    }
    report := svc.IngestBatch(context.Background(), SourceBatch, items)
    if len(report.CreatedIDs) != 3 {
        t.Fatalf("expected 3 created, got %d", len(report.CreatedIDs))
    }
    for i := 1; i < len(report.CreatedIDs); i++ {
        if report.CreatedIDs[i] <= report.CreatedIDs[i-1] {
            t.Fatalf("ids must be assigned in input order: %v", report.CreatedIDs)
        }
    }
}
