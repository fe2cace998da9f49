package stats

import (
    "context"
    "database/sql"
    "fmt"
)

// Service computes dashboard aggregates with read-only SQL over the
// transcripts table.
type Service struct {
    db *sql.DB
}

func NewService(db *sql.DB) *Service {
    return &Service{db: db}
}

// AgentStats is one agent's slice of the dashboard.
type AgentStats struct {
    SupportAgentID   string  `json:"support_agent_id"`
    SupportAgentName string  `json:"support_agent_name"`
    Calls            int     `json:"calls"`
    AvgSatisfaction  float64 `json:"avg_satisfaction"`
}

// DailyVolume is the call count for one calendar day.
type DailyVolume struct {
    Day   string `json:"day"`
    Calls int    `json:"calls"`
}

// Summary is the full aggregate payload served to the dashboard.
type Summary struct {
    TotalCalls         int            `json:"total_calls"`
    AvgSatisfaction    float64        `json:"avg_satisfaction"`
    AvgDurationMinutes float64        `json:"avg_duration_minutes"`
    EscalatedCalls     int            `json:"escalated_calls"`
    FollowUpsRequired  int            `json:"follow_ups_required"`
    CategoryCounts     map[string]int `json:"category_counts"`
    ResolutionCounts   map[string]int `json:"resolution_counts"`
    Agents             []AgentStats   `json:"agents"`
    DailyVolume        []DailyVolume  `json:"daily_volume"`
}

func (s *Service) Summary(ctx context.Context) (*Summary, error) {
    sum := &Summary{
        CategoryCounts:   map[string]int{},
        ResolutionCounts: map[string]int{},
        Agents:           []AgentStats{},
        DailyVolume:      []DailyVolume{},
    }

    row := s.db.QueryRowContext(ctx, `SELECT COUNT(*),
        COALESCE(AVG(overall_satisfaction_score), 0),
        COALESCE(AVG(call_duration), 0),
        COALESCE(SUM(CASE WHEN escalation_level NOT IN ('', 'None') THEN 1 ELSE 0 END), 0),
        COALESCE(SUM(CASE WHEN follow_up_required = 'Yes' THEN 1 ELSE 0 END), 0)
        FROM transcripts`)
    if err := row.Scan(&sum.TotalCalls, &sum.AvgSatisfaction, &sum.AvgDurationMinutes,
        &sum.EscalatedCalls, &sum.FollowUpsRequired); err != nil {
        return nil, fmt.Errorf("stats totals: %w", err)
    }

    if err := s.countsInto(ctx, sum.CategoryCounts,
        `SELECT category_of_call, COUNT(*) FROM transcripts GROUP BY category_of_call`); err != nil {
        return nil, err
    }
    if err := s.countsInto(ctx, sum.ResolutionCounts,
        `SELECT call_resolution_status, COUNT(*) FROM transcripts GROUP BY call_resolution_status`); err != nil {
        return nil, err
    }

    rows, err := s.db.QueryContext(ctx, `SELECT support_agent_id, MAX(support_agent_name),
        COUNT(*), COALESCE(AVG(overall_satisfaction_score), 0)
        FROM transcripts GROUP BY support_agent_id ORDER BY COUNT(*) DESC`)
    if err != nil {
        return nil, fmt.Errorf("stats agents: %w", err)
    }
    defer rows.Close()
    for rows.Next() {
        var a AgentStats
        if err := rows.Scan(&a.SupportAgentID, &a.SupportAgentName, &a.Calls, &a.AvgSatisfaction); err != nil {
            return nil, fmt.Errorf("scan agent stats: %w", err)
        }
        sum.Agents = append(sum.Agents, a)
    }
    if err := rows.Err(); err != nil {
        return nil, err
    }

    // call_date_time is validated to YYYY-MM-DD HH:MM:SS, so the day is a
    // plain prefix.
    days, err := s.db.QueryContext(ctx, `SELECT substr(call_date_time, 1, 10) AS day, COUNT(*)
        FROM transcripts GROUP BY day ORDER BY day ASC`)
    if err != nil {
        return nil, fmt.Errorf("stats daily volume: %w", err)
    }
    defer days.Close()
    for days.Next() {
        var d DailyVolume
        if err := days.Scan(&d.Day, &d.Calls); err != nil {
            return nil, fmt.Errorf("scan daily volume: %w", err)
        }
        sum.DailyVolume = append(sum.DailyVolume, d)
    }
    return sum, days.Err()
}

func (s *Service) countsInto(ctx context.Context, dst map[string]int, query string) error {
    rows, err := s.db.QueryContext(ctx, query)
    if err != nil {
        return fmt.Errorf("stats counts: %w", err)
    }
    defer rows.Close()
    for rows.Next() {
        var key string
        var n int
        if err := rows.Scan(&key, &n); err != nil {
            return fmt.Errorf("scan counts: %w", err)
        }
        dst[key] = n
    }
    return rows.Err()
}
