package app

import (
    "context"
    "log"
    "net/http"
    "time"

    "call_analytics/internal/config"
    "call_analytics/internal/events"
    "call_analytics/internal/httpapi"
    "call_analytics/internal/ingest"
    "call_analytics/internal/metrics"
    "call_analytics/internal/queue"
    "call_analytics/internal/stats"
    "call_analytics/internal/store"
    "call_analytics/internal/watch"
)

// App wires the data plane components together.
type App struct {
    cfg     config.Config
    store   *store.Store
    ingest  *ingest.Service
    queue   *queue.Queue
    watcher *watch.Watcher
    handler http.Handler
}

func New(cfg config.Config) (*App, error) {
    st, err := store.Open(cfg.DBPath)
    if err != nil {
        return nil, err
    }
    bus := events.NewBus()
    m := metrics.New("call_analytics")
    svc := ingest.NewService(st, bus, m)
    statSvc := stats.NewService(st.DB())
    q := queue.New(cfg.QueueSize, cfg.WorkerCount, 30*time.Second)
    watcher := watch.New(cfg, svc, q)
    server := httpapi.New(cfg, st, svc, statSvc, bus, m)

    if n, err := st.Count(context.Background()); err == nil {
        m.RecordsStored.Set(float64(n))
    }

    return &App{
        cfg:     cfg,
        store:   st,
        ingest:  svc,
        queue:   q,
        watcher: watcher,
        handler: server.Router(),
    }, nil
}

// Run starts workers, watcher, optional backfill, and the HTTP server.
func (a *App) Run(ctx context.Context) error {
    a.queue.Start(ctx)
    if a.cfg.BackfillOnStart {
        report, err := a.watcher.Backfill(ctx)
        if err != nil {
            log.Printf("backfill failed: %v", err)
        } else {
            log.Printf("backfill run=%s created=%d skipped=%d failed=%d",
                report.RunID, len(report.CreatedIDs), report.SkippedCount, report.FailedCount)
        }
    }
    if err := a.watcher.Start(ctx); err != nil {
        return err
    }
    srv := &http.Server{Addr: ":" + a.cfg.HTTPPort, Handler: a.handler}
    go func() {
        <-ctx.Done()
        shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
        defer cancel()
        _ = srv.Shutdown(shutdownCtx)
        a.queue.Stop(shutdownCtx)
    }()
    log.Printf("http listening on %s", a.cfg.HTTPPort)
    return srv.ListenAndServe()
}

func (a *App) Close() error { return a.store.Close() }

func (a *App) Store() *store.Store     { return a.store }
func (a *App) Ingest() *ingest.Service { return a.ingest }
func (a *App) Handler() http.Handler   { return a.handler }
