package watch

import (
    "context"
    "errors"
    "log"
    "path/filepath"
    "time"

    "github.com/fsnotify/fsnotify"

    "call_analytics/internal/config"
    "call_analytics/internal/ingest"
    "call_analytics/internal/queue"
    "call_analytics/internal/store"
)

// Watcher monitors the transcripts directory for new JSON files and ingests
// them through the worker queue.
type Watcher struct {
    cfg config.Config
    svc *ingest.Service
    q   *queue.Queue
}

func New(cfg config.Config, svc *ingest.Service, q *queue.Queue) *Watcher {
    return &Watcher{cfg: cfg, svc: svc, q: q}
}

func (w *Watcher) Start(ctx context.Context) error {
    if !w.cfg.EnableWatcher {
        log.Println("watcher disabled")
        return nil
    }
    watcher, err := fsnotify.NewWatcher()
    if err != nil {
        return err
    }
    go func() {
        defer watcher.Close()
        for {
            select {
            case <-ctx.Done():
                return
            case evt := <-watcher.Events:
                if evt.Op&(fsnotify.Create|fsnotify.Rename) != 0 && ingest.IsTranscriptFile(evt.Name) {
                    w.enqueue(ctx, evt.Name)
                }
            case err := <-watcher.Errors:
                log.Printf("watcher error: %v", err)
            }
        }
    }()
    return watcher.Add(w.cfg.TranscriptsDir)
}

func (w *Watcher) enqueue(ctx context.Context, path string) {
    name := filepath.Base(path)
    job := queue.Job{
        ID: name,
        Work: func(ctx context.Context) error {
            rec, err := ingest.ReadCandidate(path)
            if err != nil {
                return err
            }
            _, err = w.svc.Ingest(ctx, ingest.SourceWatcher, rec)
            if errors.Is(err, store.ErrDuplicate) {
                // Re-dropped file; already stored.
                return nil
            }
            return err
        },
    }
    // A burst of dropped files may briefly outrun the workers; retry
    // before giving up on the file.
    if ok, dropped := w.q.EnqueueWithRetry(ctx, job, 2*time.Second, 50*time.Millisecond); !ok && dropped {
        log.Printf("queue full, dropped transcript %s", name)
    }
}

// Backfill runs the batch service over existing files in the transcripts
// directory, so records dropped while the service was down are not lost.
func (w *Watcher) Backfill(ctx context.Context) (*ingest.Report, error) {
    return w.svc.IngestDir(ctx, w.cfg.TranscriptsDir)
}
