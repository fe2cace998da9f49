package httpapi

import (
    "context"
    "encoding/json"
    "errors"
    "log"
    "net/http"
    "net/url"
    "strconv"
    "strings"

    "github.com/go-chi/chi/v5"
    "github.com/gorilla/websocket"

    "call_analytics/internal/config"
    "call_analytics/internal/events"
    "call_analytics/internal/ingest"
    "call_analytics/internal/metrics"
    "call_analytics/internal/stats"
    "call_analytics/internal/store"
)

// Server exposes the transcript API, aggregate stats, and the live event
// stream used by the dashboard.
type Server struct {
    cfg      config.Config
    store    *store.Store
    ingest   *ingest.Service
    stats    *stats.Service
    bus      *events.Bus
    metrics  *metrics.Metrics
    upgrader websocket.Upgrader
}

func New(cfg config.Config, st *store.Store, svc *ingest.Service, stat *stats.Service, bus *events.Bus, m *metrics.Metrics) *Server {
    return &Server{
        cfg:     cfg,
        store:   st,
        ingest:  svc,
        stats:   stat,
        bus:     bus,
        metrics: m,
        upgrader: websocket.Upgrader{
            ReadBufferSize:  1024,
            WriteBufferSize: 1024,
            CheckOrigin: func(r *http.Request) bool {
                // Only same-origin browser clients may stream events.
                // Non-browser clients omit Origin and are allowed.
                origin := strings.TrimSpace(r.Header.Get("Origin"))
                if origin == "" {
                    return true
                }
                u, err := url.Parse(origin)
                if err != nil {
                    return false
                }
                return strings.EqualFold(u.Host, r.Host)
            },
        },
    }
}

func (s *Server) Router() http.Handler {
    r := chi.NewRouter()
    r.Get("/healthz", s.handleHealth)
    r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
    r.Route("/api", func(r chi.Router) {
        r.Post("/transcripts", s.handleCreate)
        r.Get("/transcripts", s.handleList)
        r.Post("/transcripts/batch", s.handleBatch)
        r.Get("/transcripts/{id}", s.handleGet)
        r.Put("/transcripts/{id}", s.handleUpdate)
        r.Delete("/transcripts/{id}", s.handleDelete)
        r.Get("/stats", s.handleStats)
        r.Get("/events", s.handleEvents)
    })
    return r
}

func (s *Server) handleCreate(w http.ResponseWriter, req *http.Request) {
    var candidate store.Transcript
    if err := json.NewDecoder(req.Body).Decode(&candidate); err != nil {
        s.respondError(w, "create", http.StatusBadRequest, "invalid request body: "+err.Error())
        return
    }
    rec, err := s.ingest.Ingest(req.Context(), ingest.SourceAPI, &candidate)
    if err != nil {
        s.respondIngestError(w, "create", err)
        return
    }
    s.respondJSON(w, "create", http.StatusCreated, rec)
}

func (s *Server) handleBatch(w http.ResponseWriter, req *http.Request) {
    var body struct {
        Dir string `json:"dir"`
    }
    if req.Body != nil {
        // An empty body means "use the configured directory".
        _ = json.NewDecoder(req.Body).Decode(&body)
    }
    dir := body.Dir
    if dir == "" {
        dir = s.cfg.TranscriptsDir
    }
    report, err := s.ingest.IngestDir(req.Context(), dir)
    if err != nil {
        s.respondError(w, "batch", http.StatusBadRequest, err.Error())
        return
    }
    s.respondJSON(w, "batch", http.StatusOK, report)
}

func (s *Server) handleList(w http.ResponseWriter, req *http.Request) {
    q := req.URL.Query()
    limit := s.cfg.PageSizeDefault
    if v := q.Get("limit"); v != "" {
        if n, err := strconv.Atoi(v); err == nil && n > 0 {
            limit = n
        }
    }
    if limit > s.cfg.PageSizeMax {
        limit = s.cfg.PageSizeMax
    }
    offset := 0
    if v := q.Get("offset"); v != "" {
        if n, err := strconv.Atoi(v); err == nil && n >= 0 {
            offset = n
        }
    }
    list, total, err := s.store.List(req.Context(), store.ListFilter{
        CustomerUniqueID: q.Get("customer_id"),
        SupportAgentID:   q.Get("agent_id"),
        Category:         q.Get("category"),
        Limit:            limit,
        Offset:           offset,
    })
    if err != nil {
        s.respondError(w, "list", http.StatusInternalServerError, err.Error())
        return
    }
    if list == nil {
        list = []store.Transcript{}
    }
    s.respondJSON(w, "list", http.StatusOK, map[string]any{
        "transcripts": list,
        "total":       total,
        "limit":       limit,
        "offset":      offset,
    })
}

func (s *Server) handleGet(w http.ResponseWriter, req *http.Request) {
    id, ok := s.pathID(w, req, "get")
    if !ok {
        return
    }
    rec, err := s.store.Get(req.Context(), id)
    if errors.Is(err, store.ErrNotFound) {
        s.respondError(w, "get", http.StatusNotFound, err.Error())
        return
    }
    if err != nil {
        s.respondError(w, "get", http.StatusInternalServerError, err.Error())
        return
    }
    s.respondJSON(w, "get", http.StatusOK, rec)
}

func (s *Server) handleUpdate(w http.ResponseWriter, req *http.Request) {
    id, ok := s.pathID(w, req, "update")
    if !ok {
        return
    }
    var fields map[string]any
    if err := json.NewDecoder(req.Body).Decode(&fields); err != nil {
        s.respondError(w, "update", http.StatusBadRequest, "invalid request body: "+err.Error())
        return
    }
    rec, err := s.store.UpdateFields(req.Context(), id, fields)
    switch {
    case errors.Is(err, store.ErrNoFields):
        s.respondError(w, "update", http.StatusBadRequest, err.Error())
    case errors.Is(err, store.ErrNotFound):
        s.respondError(w, "update", http.StatusNotFound, err.Error())
    case errors.Is(err, store.ErrDuplicate):
        s.respondError(w, "update", http.StatusConflict, "Duplicate record: "+err.Error())
    case err != nil:
        s.respondError(w, "update", http.StatusInternalServerError, err.Error())
    default:
        s.respondJSON(w, "update", http.StatusOK, rec)
    }
}

func (s *Server) handleDelete(w http.ResponseWriter, req *http.Request) {
    id, ok := s.pathID(w, req, "delete")
    if !ok {
        return
    }
    err := s.store.Delete(req.Context(), id)
    if errors.Is(err, store.ErrNotFound) {
        s.respondError(w, "delete", http.StatusNotFound, err.Error())
        return
    }
    if err != nil {
        s.respondError(w, "delete", http.StatusInternalServerError, err.Error())
        return
    }
    s.metrics.RecordsStored.Dec()
    s.count("delete", http.StatusNoContent)
    w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleStats(w http.ResponseWriter, req *http.Request) {
    summary, err := s.stats.Summary(req.Context())
    if err != nil {
        s.respondError(w, "stats", http.StatusInternalServerError, err.Error())
        return
    }
    s.respondJSON(w, "stats", http.StatusOK, summary)
}

func (s *Server) handleEvents(w http.ResponseWriter, req *http.Request) {
    conn, err := s.upgrader.Upgrade(w, req, nil)
    if err != nil {
        return
    }
    defer conn.Close()

    ch := s.bus.Subscribe()
    defer s.bus.Unsubscribe(ch)

    ctx, cancel := context.WithCancel(req.Context())
    defer cancel()
    go func() {
        // Reads are discarded; the pump exists to notice the peer closing.
        for {
            if _, _, err := conn.ReadMessage(); err != nil {
                cancel()
                return
            }
        }
    }()

    for {
        select {
        case <-ctx.Done():
            return
        case ev, ok := <-ch:
            if !ok {
                return
            }
            if err := conn.WriteJSON(ev); err != nil {
                return
            }
        }
    }
}

func (s *Server) handleHealth(w http.ResponseWriter, req *http.Request) {
    if err := s.store.Health(req.Context()); err != nil {
        s.respondError(w, "health", http.StatusServiceUnavailable, err.Error())
        return
    }
    w.WriteHeader(http.StatusNoContent)
}

// respondIngestError maps ingest outcomes to status signals: duplicates are
// conflicts marked with the word "Duplicate", validation failures are
// client errors carrying the reason, anything else is a server error.
func (s *Server) respondIngestError(w http.ResponseWriter, route string, err error) {
    var verr *ingest.ValidationError
    switch {
    case errors.Is(err, store.ErrDuplicate):
        s.respondError(w, route, http.StatusConflict, "Duplicate record: "+err.Error())
    case errors.As(err, &verr):
        s.respondError(w, route, http.StatusBadRequest, verr.Error())
    default:
        s.respondError(w, route, http.StatusInternalServerError, err.Error())
    }
}

func (s *Server) pathID(w http.ResponseWriter, req *http.Request, route string) (int64, bool) {
    id, err := strconv.ParseInt(chi.URLParam(req, "id"), 10, 64)
    if err != nil {
        s.respondError(w, route, http.StatusBadRequest, "invalid transcript id")
        return 0, false
    }
    return id, true
}

func (s *Server) respondJSON(w http.ResponseWriter, route string, status int, payload any) {
    s.count(route, status)
    w.Header().Set("Content-Type", "application/json")
    w.WriteHeader(status)
    if err := json.NewEncoder(w).Encode(payload); err != nil {
        log.Printf("write json: %v", err)
    }
}

func (s *Server) respondError(w http.ResponseWriter, route string, status int, msg string) {
    s.respondJSON(w, route, status, map[string]string{"error": msg})
}

func (s *Server) count(route string, status int) {
    s.metrics.HTTPRequests.WithLabelValues(route, strconv.Itoa(status/100)+"xx").Inc()
}
