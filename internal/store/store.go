package store

import (
    "context"
    "database/sql"
    "errors"
    "fmt"
    "strings"
    "time"

    "modernc.org/sqlite"
    sqlite3 "modernc.org/sqlite/lib"
)

// ErrDuplicate signals that a write collided with an existing transcript on
// the (customer_unique_id, call_date_time, support_agent_id) unique index.
var ErrDuplicate = errors.New("duplicate transcript: customer, call time, and agent already recorded")

// ErrNotFound signals a lookup by id that matched nothing.
var ErrNotFound = errors.New("transcript not found")

// Store wraps SQLite access for call transcripts.
type Store struct {
    db *sql.DB
}

func Open(path string) (*Store, error) {
    db, err := sql.Open("sqlite", path)
    if err != nil {
        return nil, err
    }
    // sqlite serializes writes anyway; a single pooled connection makes
    // concurrent ingest workers queue on the pool instead of surfacing
    // SQLITE_BUSY from the engine's lock.
    db.SetMaxOpenConns(1)
    s := &Store{db: db}
    if err := s.migrate(); err != nil {
        db.Close()
        return nil, err
    }
    return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

// DB exposes the underlying handle for read-only aggregate queries.
func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) migrate() error {
    stmts := []string{
        // Wait for other processes holding the database lock instead of
        // failing immediately.
        `PRAGMA busy_timeout = 5000;`,
        `CREATE TABLE IF NOT EXISTS transcripts (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            customer_name TEXT,
            customer_unique_id TEXT NOT NULL,
            support_agent_name TEXT,
            support_agent_id TEXT NOT NULL,
            call_transcript TEXT,
            overall_satisfaction_score INTEGER,
            category_of_call TEXT,
            call_duration REAL,
            call_date_time TEXT NOT NULL,
            call_resolution_status TEXT,
            escalation_level TEXT,
            follow_up_required TEXT,
            customer_tier TEXT,
            issue_severity TEXT,
            agent_experience_level TEXT,
            customer_previous_contact_count INTEGER,
            created_at TIMESTAMP
        );`,
        `CREATE UNIQUE INDEX IF NOT EXISTS idx_transcripts_identity
            ON transcripts(customer_unique_id, call_date_time, support_agent_id);`,
        `CREATE INDEX IF NOT EXISTS idx_transcripts_customer ON transcripts(customer_unique_id);`,
        `CREATE INDEX IF NOT EXISTS idx_transcripts_agent ON transcripts(support_agent_id);`,
        `CREATE INDEX IF NOT EXISTS idx_transcripts_datetime ON transcripts(call_date_time);`,
        `CREATE INDEX IF NOT EXISTS idx_transcripts_category ON transcripts(category_of_call);`,
    }
    for _, stmt := range stmts {
        if _, err := s.db.Exec(stmt); err != nil {
            return err
        }
    }
    return nil
}

// Transcript represents one customer-service call interaction.
type Transcript struct {
    ID                           int64     `json:"id"`
    CustomerName                 string    `json:"customer_name"`
    CustomerUniqueID             string    `json:"customer_unique_id"`
    SupportAgentName             string    `json:"support_agent_name"`
    SupportAgentID               string    `json:"support_agent_id"`
    CallTranscript               string    `json:"call_transcript"`
    OverallSatisfactionScore     int       `json:"overall_satisfaction_score"`
    CategoryOfCall               string    `json:"category_of_call"`
    CallDuration                 float64   `json:"call_duration"`
    CallDateTime                 string    `json:"call_date_time"`
    CallResolutionStatus         string    `json:"call_resolution_status"`
    EscalationLevel              string    `json:"escalation_level"`
    FollowUpRequired             string    `json:"follow_up_required"`
    CustomerTier                 string    `json:"customer_tier"`
    IssueSeverity                string    `json:"issue_severity"`
    AgentExperienceLevel         string    `json:"agent_experience_level"`
    CustomerPreviousContactCount int       `json:"customer_previous_contact_count"`
    CreatedAt                    time.Time `json:"created_at"`
}

const transcriptColumns = `id, customer_name, customer_unique_id, support_agent_name, support_agent_id,
    call_transcript, overall_satisfaction_score, category_of_call, call_duration, call_date_time,
    call_resolution_status, escalation_level, follow_up_required, customer_tier, issue_severity,
    agent_experience_level, customer_previous_contact_count, created_at`

func scanTranscript(row interface{ Scan(...any) error }) (*Transcript, error) {
    var t Transcript
    err := row.Scan(&t.ID, &t.CustomerName, &t.CustomerUniqueID, &t.SupportAgentName, &t.SupportAgentID,
        &t.CallTranscript, &t.OverallSatisfactionScore, &t.CategoryOfCall, &t.CallDuration, &t.CallDateTime,
        &t.CallResolutionStatus, &t.EscalationLevel, &t.FollowUpRequired, &t.CustomerTier, &t.IssueSeverity,
        &t.AgentExperienceLevel, &t.CustomerPreviousContactCount, &t.CreatedAt)
    if err != nil {
        return nil, err
    }
    return &t, nil
}

// Insert persists a new transcript. The unique index on the identity triple
// is authoritative: a constraint rejection is returned as ErrDuplicate, any
// other failure is surfaced as-is.
func (s *Store) Insert(ctx context.Context, t *Transcript) (*Transcript, error) {
    if t.CreatedAt.IsZero() {
        t.CreatedAt = time.Now().UTC().Truncate(time.Second)
    }
    res, err := s.db.ExecContext(ctx, `INSERT INTO transcripts(
        customer_name, customer_unique_id, support_agent_name, support_agent_id,
        call_transcript, overall_satisfaction_score, category_of_call, call_duration, call_date_time,
        call_resolution_status, escalation_level, follow_up_required, customer_tier, issue_severity,
        agent_experience_level, customer_previous_contact_count, created_at)
        VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
        t.CustomerName, t.CustomerUniqueID, t.SupportAgentName, t.SupportAgentID,
        t.CallTranscript, t.OverallSatisfactionScore, t.CategoryOfCall, t.CallDuration, t.CallDateTime,
        t.CallResolutionStatus, t.EscalationLevel, t.FollowUpRequired, t.CustomerTier, t.IssueSeverity,
        t.AgentExperienceLevel, t.CustomerPreviousContactCount, t.CreatedAt)
    if err != nil {
        if isUniqueViolation(err) {
            return nil, ErrDuplicate
        }
        return nil, fmt.Errorf("insert transcript: %w", err)
    }
    id, err := res.LastInsertId()
    if err != nil {
        return nil, fmt.Errorf("insert transcript id: %w", err)
    }
    t.ID = id
    return t, nil
}

// ExistsTriple reports whether a transcript with exactly this identity
// triple is present. Advisory: callers must still treat ErrDuplicate from
// Insert as the source of truth.
func (s *Store) ExistsTriple(ctx context.Context, customerUniqueID, callDateTime, supportAgentID string) (bool, error) {
    row := s.db.QueryRowContext(ctx,
        `SELECT 1 FROM transcripts WHERE customer_unique_id=? AND call_date_time=? AND support_agent_id=? LIMIT 1`,
        customerUniqueID, callDateTime, supportAgentID)
    var one int
    switch err := row.Scan(&one); err {
    case nil:
        return true, nil
    case sql.ErrNoRows:
        return false, nil
    default:
        return false, fmt.Errorf("triple lookup: %w", err)
    }
}

func (s *Store) Get(ctx context.Context, id int64) (*Transcript, error) {
    row := s.db.QueryRowContext(ctx, `SELECT `+transcriptColumns+` FROM transcripts WHERE id=?`, id)
    t, err := scanTranscript(row)
    if errors.Is(err, sql.ErrNoRows) {
        return nil, ErrNotFound
    }
    if err != nil {
        return nil, fmt.Errorf("get transcript: %w", err)
    }
    return t, nil
}

// updatableColumns maps JSON field names accepted on update to columns.
// id and created_at are immutable once assigned.
var updatableColumns = map[string]string{
    "customer_name":                   "customer_name",
    "customer_unique_id":              "customer_unique_id",
    "support_agent_name":              "support_agent_name",
    "support_agent_id":                "support_agent_id",
    "call_transcript":                 "call_transcript",
    "overall_satisfaction_score":      "overall_satisfaction_score",
    "category_of_call":                "category_of_call",
    "call_duration":                   "call_duration",
    "call_date_time":                  "call_date_time",
    "call_resolution_status":          "call_resolution_status",
    "escalation_level":                "escalation_level",
    "follow_up_required":              "follow_up_required",
    "customer_tier":                   "customer_tier",
    "issue_severity":                  "issue_severity",
    "agent_experience_level":          "agent_experience_level",
    "customer_previous_contact_count": "customer_previous_contact_count",
}

// ErrNoFields is returned by UpdateFields when nothing updatable was given.
var ErrNoFields = errors.New("no updatable fields in request")

// UpdateFields applies a partial update by id. There is no pre-check of the
// identity triple here; if the update would collide, the unique index
// rejects it and ErrDuplicate is returned.
func (s *Store) UpdateFields(ctx context.Context, id int64, fields map[string]any) (*Transcript, error) {
    sets := make([]string, 0, len(fields))
    args := make([]any, 0, len(fields)+1)
    for name, value := range fields {
        col, ok := updatableColumns[name]
        if !ok {
            continue
        }
        sets = append(sets, col+"=?")
        args = append(args, value)
    }
    if len(sets) == 0 {
        return nil, ErrNoFields
    }
    args = append(args, id)
    res, err := s.db.ExecContext(ctx, `UPDATE transcripts SET `+strings.Join(sets, ", ")+` WHERE id=?`, args...)
    if err != nil {
        if isUniqueViolation(err) {
            return nil, ErrDuplicate
        }
        return nil, fmt.Errorf("update transcript: %w", err)
    }
    n, err := res.RowsAffected()
    if err != nil {
        return nil, fmt.Errorf("update transcript: %w", err)
    }
    if n == 0 {
        return nil, ErrNotFound
    }
    return s.Get(ctx, id)
}

func (s *Store) Delete(ctx context.Context, id int64) error {
    res, err := s.db.ExecContext(ctx, `DELETE FROM transcripts WHERE id=?`, id)
    if err != nil {
        return fmt.Errorf("delete transcript: %w", err)
    }
    n, err := res.RowsAffected()
    if err != nil {
        return fmt.Errorf("delete transcript: %w", err)
    }
    if n == 0 {
        return ErrNotFound
    }
    return nil
}

// ListFilter narrows and pages List results. Zero values mean "no filter".
type ListFilter struct {
    CustomerUniqueID string
    SupportAgentID   string
    Category         string
    Limit            int
    Offset           int
}

// List returns one page of transcripts, newest call first, plus the total
// row count under the same filters so callers can paginate.
func (s *Store) List(ctx context.Context, f ListFilter) ([]Transcript, int, error) {
    where := make([]string, 0, 3)
    args := make([]any, 0, 5)
    if f.CustomerUniqueID != "" {
        where = append(where, "customer_unique_id=?")
        args = append(args, f.CustomerUniqueID)
    }
    if f.SupportAgentID != "" {
        where = append(where, "support_agent_id=?")
        args = append(args, f.SupportAgentID)
    }
    if f.Category != "" {
        where = append(where, "category_of_call=?")
        args = append(args, f.Category)
    }
    clause := ""
    if len(where) > 0 {
        clause = " WHERE " + strings.Join(where, " AND ")
    }

    var total int
    if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM transcripts`+clause, args...).Scan(&total); err != nil {
        return nil, 0, fmt.Errorf("count transcripts: %w", err)
    }

    limit := f.Limit
    if limit <= 0 {
        limit = 50
    }
    args = append(args, limit, f.Offset)
    rows, err := s.db.QueryContext(ctx,
        `SELECT `+transcriptColumns+` FROM transcripts`+clause+` ORDER BY call_date_time DESC, id DESC LIMIT ? OFFSET ?`,
        args...)
    if err != nil {
        return nil, 0, fmt.Errorf("list transcripts: %w", err)
    }
    defer rows.Close()
    var out []Transcript
    for rows.Next() {
        t, err := scanTranscript(rows)
        if err != nil {
            return nil, 0, fmt.Errorf("scan transcript: %w", err)
        }
        out = append(out, *t)
    }
    return out, total, rows.Err()
}

func (s *Store) Count(ctx context.Context) (int64, error) {
    var n int64
    if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM transcripts`).Scan(&n); err != nil {
        return 0, fmt.Errorf("count transcripts: %w", err)
    }
    return n, nil
}

// Health returns err if DB not reachable.
func (s *Store) Health(ctx context.Context) error {
    row := s.db.QueryRowContext(ctx, `SELECT 1`)
    var v int
    if err := row.Scan(&v); err != nil {
        return fmt.Errorf("db health: %w", err)
    }
    return nil
}

// Only the unique/primary-key extended codes count: other constraint
// failures (NOT NULL, CHECK) are storage errors, not duplicates.
func isUniqueViolation(err error) bool {
    var se *sqlite.Error
    if !errors.As(err, &se) {
        return false
    }
    switch se.Code() {
    case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
        return true
    }
    return false
}
