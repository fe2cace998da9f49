package ingest

import (
    "fmt"
    "regexp"

    "call_analytics/internal/store"
)

// ValidationKind classifies why a candidate was rejected.
type ValidationKind string

const (
    KindMissingField ValidationKind = "missing_field"
    KindOutOfRange   ValidationKind = "out_of_range"
    KindBadFormat    ValidationKind = "bad_format"
    KindBadEnum      ValidationKind = "bad_enum"
)

// ValidationError reports the first validation failure for a candidate.
type ValidationError struct {
    Kind  ValidationKind
    Field string
}

func (e *ValidationError) Error() string {
    switch e.Kind {
    case KindMissingField:
        return fmt.Sprintf("missing required field: %s", e.Field)
    case KindOutOfRange:
        return fmt.Sprintf("field %s is out of range", e.Field)
    case KindBadFormat:
        return fmt.Sprintf("field %s has invalid format", e.Field)
    case KindBadEnum:
        return fmt.Sprintf("field %s has invalid value", e.Field)
    }
    return fmt.Sprintf("invalid field: %s", e.Field)
}

var callDateTimePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}$`)

// Validate checks a candidate transcript before admission. Pure function, no
// store access. The required-field pass treats zero values as missing for
// every field, including numeric ones: a customer_previous_contact_count of
// 0 is rejected as absent. Existing data feeds count on that rejection; do
// not loosen it here without changing the ingestion contract.
func Validate(c *store.Transcript) error {
    required := []struct {
        field   string
        present bool
    }{
        {"customer_name", c.CustomerName != ""},
        {"customer_unique_id", c.CustomerUniqueID != ""},
        {"support_agent_name", c.SupportAgentName != ""},
        {"support_agent_id", c.SupportAgentID != ""},
        {"call_transcript", c.CallTranscript != ""},
        {"overall_satisfaction_score", c.OverallSatisfactionScore != 0},
        {"category_of_call", c.CategoryOfCall != ""},
        {"call_duration", c.CallDuration != 0},
        {"call_date_time", c.CallDateTime != ""},
        {"call_resolution_status", c.CallResolutionStatus != ""},
        {"escalation_level", c.EscalationLevel != ""},
        {"follow_up_required", c.FollowUpRequired != ""},
        {"customer_tier", c.CustomerTier != ""},
        {"issue_severity", c.IssueSeverity != ""},
        {"agent_experience_level", c.AgentExperienceLevel != ""},
        {"customer_previous_contact_count", c.CustomerPreviousContactCount != 0},
    }
    for _, r := range required {
        if !r.present {
            return &ValidationError{Kind: KindMissingField, Field: r.field}
        }
    }
    if c.OverallSatisfactionScore < 1 || c.OverallSatisfactionScore > 10 {
        return &ValidationError{Kind: KindOutOfRange, Field: "overall_satisfaction_score"}
    }
    if c.CallDuration <= 0 {
        return &ValidationError{Kind: KindOutOfRange, Field: "call_duration"}
    }
    if !callDateTimePattern.MatchString(c.CallDateTime) {
        return &ValidationError{Kind: KindBadFormat, Field: "call_date_time"}
    }
    if c.FollowUpRequired != "Yes" && c.FollowUpRequired != "No" {
        return &ValidationError{Kind: KindBadEnum, Field: "follow_up_required"}
    }
    return nil
}
