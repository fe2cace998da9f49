package queue

import (
    "context"
    "log"
    "sync"
    "sync/atomic"
    "time"
)

// Job is a unit of ingestion work processed by the worker pool.
type Job struct {
    ID   string
    Work func(context.Context) error
}

// Stats exposes current queue metrics.
type Stats struct {
    Length      int
    Capacity    int
    WorkerCount int
    Processed   uint64
    Failed      uint64
}

// Queue is a bounded job queue with a fixed worker pool. The watcher feeds
// it so a burst of dropped transcript files cannot stall the fsnotify loop.
type Queue struct {
    jobs        chan Job
    workerCount int
    timeout     time.Duration
    started     bool
    stopped     bool
    mu          sync.RWMutex
    wg          sync.WaitGroup
    processed   uint64
    failed      uint64
}

// New creates a Queue with the provided capacity, worker count, and per-job
// timeout.
func New(capacity, workerCount int, timeout time.Duration) *Queue {
    return &Queue{
        jobs:        make(chan Job, capacity),
        workerCount: workerCount,
        timeout:     timeout,
    }
}

// Start launches the worker pool.
func (q *Queue) Start(ctx context.Context) {
    q.mu.Lock()
    if q.started {
        q.mu.Unlock()
        return
    }
    q.started = true
    q.mu.Unlock()
    for i := 0; i < q.workerCount; i++ {
        q.wg.Add(1)
        go q.worker(ctx)
    }
}

// Enqueue attempts to queue a job without blocking. Returns false if the
// queue is full, not started, or already stopped.
func (q *Queue) Enqueue(j Job) bool {
    if q.tryEnqueue(j) {
        return true
    }
    log.Printf("queue unavailable, dropping job %s", j.ID)
    return false
}

// EnqueueWithRetry attempts to queue a job with a bounded retry window.
// Returns (enqueued, droppedFull).
func (q *Queue) EnqueueWithRetry(ctx context.Context, j Job, window, interval time.Duration) (bool, bool) {
    if q.tryEnqueue(j) {
        return true, false
    }
    deadline := time.Now().Add(window)
    for time.Now().Before(deadline) {
        select {
        case <-ctx.Done():
            return false, false
        case <-time.After(interval):
            if q.tryEnqueue(j) {
                return true, false
            }
        }
    }
    return false, true
}

// The send happens under the read lock so Stop cannot close the channel
// between the state check and the send.
func (q *Queue) tryEnqueue(j Job) bool {
    q.mu.RLock()
    defer q.mu.RUnlock()
    if !q.started || q.stopped {
        return false
    }
    select {
    case q.jobs <- j:
        return true
    default:
        return false
    }
}

// Stop stops accepting new jobs and waits for workers to drain until the
// context is done.
func (q *Queue) Stop(ctx context.Context) {
    q.mu.Lock()
    if !q.started || q.stopped {
        q.mu.Unlock()
        return
    }
    q.stopped = true
    close(q.jobs)
    q.mu.Unlock()

    done := make(chan struct{})
    go func() {
        q.wg.Wait()
        close(done)
    }()
    select {
    case <-done:
    case <-ctx.Done():
    }
}

// Stats returns current queue metrics.
func (q *Queue) Stats() Stats {
    q.mu.RLock()
    defer q.mu.RUnlock()
    return Stats{
        Length:      len(q.jobs),
        Capacity:    cap(q.jobs),
        WorkerCount: q.workerCount,
        Processed:   atomic.LoadUint64(&q.processed),
        Failed:      atomic.LoadUint64(&q.failed),
    }
}

func (q *Queue) worker(ctx context.Context) {
    defer q.wg.Done()
    for {
        select {
        case <-ctx.Done():
            return
        case j, ok := <-q.jobs:
            if !ok {
                return
            }
            q.handle(ctx, j)
        }
    }
}

func (q *Queue) handle(ctx context.Context, j Job) {
    defer func() {
        if r := recover(); r != nil {
            log.Printf("job %s panic recovered: %v", j.ID, r)
        }
    }()
    jobCtx, cancel := context.WithTimeout(ctx, q.timeout)
    err := j.Work(jobCtx)
    cancel()
    atomic.AddUint64(&q.processed, 1)
    if err != nil {
        atomic.AddUint64(&q.failed, 1)
        log.Printf("job=%s status=%v", j.ID, err)
    }
}
