package queue

import (
    "context"
    "sync/atomic"
    "testing"
    "time"
)

func TestQueueProcessesJob(t *testing.T) {
    q := New(10, 1, time.Second)
    ctx, cancel := context.WithCancel(context.Background())
    defer cancel()
    q.Start(ctx)

    var processed int32
    done := make(chan struct{})
    ok := q.Enqueue(Job{
        ID: "transcript_001.json",
        Work: func(ctx context.Context) error {
            atomic.AddInt32(&processed, 1)
            close(done)
            return nil
        },
    })
    if !ok {
        t.Fatalf("expected enqueue to succeed")
    }

    select {
    case <-done:
    case <-time.After(time.Second):
        t.Fatalf("job did not complete")
    }
    if atomic.LoadInt32(&processed) != 1 {
        t.Fatalf("job not processed")
    }
}

func TestQueueBounded(t *testing.T) {
    q := New(1, 0, 100*time.Millisecond)
    ctx, cancel := context.WithCancel(context.Background())
    defer cancel()
    q.Start(ctx)

    if ok := q.Enqueue(Job{ID: "first", Work: func(ctx context.Context) error { return nil }}); !ok {
        t.Fatalf("expected first enqueue to succeed")
    }
    if ok := q.Enqueue(Job{ID: "overflow", Work: func(ctx context.Context) error { return nil }}); ok {
        t.Fatalf("expected enqueue to be rejected when queue is full")
    }
}

func TestEnqueueWithRetryDropsWhenFull(t *testing.T) {
    q := New(1, 0, time.Second)
    ctx, cancel := context.WithCancel(context.Background())
    defer cancel()
    q.Start(ctx)

    if ok := q.Enqueue(Job{ID: "fill", Work: func(ctx context.Context) error { return nil }}); !ok {
        t.Fatalf("expected first enqueue to succeed")
    }
    ok, dropped := q.EnqueueWithRetry(ctx, Job{ID: "wait", Work: func(ctx context.Context) error { return nil }},
        50*time.Millisecond, 10*time.Millisecond)
    if ok || !dropped {
        t.Fatalf("expected retry window to expire with a drop, got ok=%v dropped=%v", ok, dropped)
    }
}

func TestEnqueueWithRetrySucceedsOnceDrained(t *testing.T) {
    q := New(1, 0, time.Second)
    ctx, cancel := context.WithCancel(context.Background())
    defer cancel()
    q.Start(ctx)

    if ok := q.Enqueue(Job{ID: "fill", Work: func(ctx context.Context) error { return nil }}); !ok {
        t.Fatalf("expected first enqueue to succeed")
    }
    go func() {
        time.Sleep(30 * time.Millisecond)
        <-q.jobs
    }()
    ok, dropped := q.EnqueueWithRetry(ctx, Job{ID: "wait", Work: func(ctx context.Context) error { return nil }},
        time.Second, 10*time.Millisecond)
    if !ok || dropped {
        t.Fatalf("expected enqueue after drain, got ok=%v dropped=%v", ok, dropped)
    }
}

func TestEnqueueAfterStopRejectedWithoutPanic(t *testing.T) {
    q := New(4, 1, time.Second)
    ctx, cancel := context.WithCancel(context.Background())
    defer cancel()
    q.Start(ctx)
    q.Stop(ctx)

    if ok := q.Enqueue(Job{ID: "late", Work: func(ctx context.Context) error { return nil }}); ok {
        t.Fatalf("expected enqueue after stop to be rejected")
    }
    // Stop is idempotent.
    q.Stop(ctx)
}

func TestEnqueueBeforeStartRejected(t *testing.T) {
    q := New(4, 1, time.Second)
    if ok := q.Enqueue(Job{ID: "early", Work: func(ctx context.Context) error { return nil }}); ok {
        t.Fatalf("expected enqueue before start to be rejected")
    }
}

func TestStatsCountsFailures(t *testing.T) {
    q := New(4, 1, time.Second)
    ctx, cancel := context.WithCancel(context.Background())
    defer cancel()
    q.Start(ctx)

    done := make(chan struct{})
    q.Enqueue(Job{ID: "bad", Work: func(ctx context.Context) error {
        defer close(done)
        return context.Canceled
    }})
    select {
    case <-done:
    case <-time.After(time.Second):
        t.Fatalf("job did not run")
    }
    // Worker updates counters after Work returns.
    deadline := time.Now().Add(time.Second)
    for {
        st := q.Stats()
        if st.Processed == 1 && st.Failed == 1 {
            return
        }
        if time.Now().After(deadline) {
            t.Fatalf("expected processed=1 failed=1, got %+v", st)
        }
        time.Sleep(5 * time.Millisecond)
    }
}
