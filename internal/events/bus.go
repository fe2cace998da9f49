package events

import (
    "sync"
    "time"
)

// Ingest outcomes published on the bus.
const (
    OutcomeCreated   = "created"
    OutcomeDuplicate = "duplicate"
    OutcomeInvalid   = "invalid"
    OutcomeFailed    = "failed"
)

// IngestEvent describes one ingestion attempt and its outcome.
type IngestEvent struct {
    Source           string    `json:"source"`
    Outcome          string    `json:"outcome"`
    TranscriptID     int64     `json:"transcript_id,omitempty"`
    CustomerUniqueID string    `json:"customer_unique_id,omitempty"`
    SupportAgentID   string    `json:"support_agent_id,omitempty"`
    CallDateTime     string    `json:"call_date_time,omitempty"`
    Reason           string    `json:"reason,omitempty"`
    At               time.Time `json:"at"`
}

// Bus provides in-process pub/sub of ingest events. Publish never blocks; a
// slow subscriber drops events instead of stalling ingestion.
type Bus struct {
    mu   sync.RWMutex
    subs map[chan IngestEvent]struct{}
}

func NewBus() *Bus {
    return &Bus{subs: make(map[chan IngestEvent]struct{})}
}

func (b *Bus) Subscribe() chan IngestEvent {
    ch := make(chan IngestEvent, 16)
    b.mu.Lock()
    defer b.mu.Unlock()
    b.subs[ch] = struct{}{}
    return ch
}

func (b *Bus) Unsubscribe(ch chan IngestEvent) {
    b.mu.Lock()
    defer b.mu.Unlock()
    if _, ok := b.subs[ch]; ok {
        delete(b.subs, ch)
        close(ch)
    }
}

func (b *Bus) Publish(ev IngestEvent) {
    if ev.At.IsZero() {
        ev.At = time.Now().UTC()
    }
    b.mu.RLock()
    defer b.mu.RUnlock()
    for ch := range b.subs {
        select {
        case ch <- ev:
        default:
        }
    }
}
