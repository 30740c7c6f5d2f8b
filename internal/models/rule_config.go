package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// DaysRule is a time threshold rule restricted to a set of source statuses.
type DaysRule struct {
	Enabled bool                `json:"enabled" yaml:"enabled"`
	Days    int                 `json:"days" yaml:"days" validate:"gte=0"`
	ApplyTo []ApplicationStatus `json:"applyTo" yaml:"applyTo" validate:"dive,pipeline_status"`
}

// ArchiveRule archives rejected applications after a cool-down.
type ArchiveRule struct {
	Enabled bool `json:"enabled" yaml:"enabled"`
	Days    int  `json:"days" yaml:"days" validate:"gte=0"`
}

// ToggleRule has no parameters beyond its switch.
type ToggleRule struct {
	Enabled bool `json:"enabled" yaml:"enabled"`
}

// InterviewCountRule fires once enough interviews are completed.
type InterviewCountRule struct {
	Enabled        bool `json:"enabled" yaml:"enabled"`
	InterviewCount int  `json:"interviewCount" yaml:"interviewCount" validate:"gte=1"`
}

// ReminderRule flags applications with no recent activity.
type ReminderRule struct {
	Enabled bool `json:"enabled" yaml:"enabled"`
	Days    int  `json:"days" yaml:"days" validate:"gte=0"`
}

// RuleConfig is the per-user automation configuration.
type RuleConfig struct {
	AutoRejectDays            DaysRule           `json:"autoRejectDays" yaml:"autoRejectDays"`
	AutoArchiveRejected       ArchiveRule        `json:"autoArchiveRejected" yaml:"autoArchiveRejected"`
	AutoMoveToInterview       ToggleRule         `json:"autoMoveToInterview" yaml:"autoMoveToInterview"`
	AutoMoveToPendingDecision InterviewCountRule `json:"autoMoveToPendingDecision" yaml:"autoMoveToPendingDecision"`
	AutoRejectNoResponse      DaysRule           `json:"autoRejectNoResponse" yaml:"autoRejectNoResponse"`
	InactiveReminder          ReminderRule       `json:"inactiveReminder" yaml:"inactiveReminder"`
}

// DefaultRuleConfig returns the configuration used until a user saves their own.
// Mutating rules are opt-in.
func DefaultRuleConfig() RuleConfig {
	return RuleConfig{
		AutoRejectDays: DaysRule{
			Days:    30,
			ApplyTo: []ApplicationStatus{StatusApplied},
		},
		AutoArchiveRejected:       ArchiveRule{Days: 180},
		AutoMoveToInterview:       ToggleRule{},
		AutoMoveToPendingDecision: InterviewCountRule{InterviewCount: 2},
		AutoRejectNoResponse: DaysRule{
			Days:    60,
			ApplyTo: []ApplicationStatus{StatusApplied},
		},
		InactiveReminder: ReminderRule{Enabled: true, Days: 14},
	}
}

// Value marshals the config to JSON for persistence.
func (c RuleConfig) Value() (driver.Value, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("marshal rule config: %w", err)
	}
	return data, nil
}

// Scan unmarshals JSONB payloads into the config. Sections absent from the
// payload keep their defaults.
func (c *RuleConfig) Scan(value interface{}) error {
	if value == nil {
		*c = DefaultRuleConfig()
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported type %T for RuleConfig", value)
	}
	if len(data) == 0 {
		*c = DefaultRuleConfig()
		return nil
	}
	cfg := DefaultRuleConfig()
	if err := json.Unmarshal(data, &cfg); err != nil {
		return fmt.Errorf("unmarshal rule config: %w", err)
	}
	*c = cfg
	return nil
}

// StoredRuleConfig is a persisted, versioned rule configuration.
type StoredRuleConfig struct {
	UserID    string     `db:"user_id" json:"userId"`
	Version   int        `db:"version" json:"version"`
	Config    RuleConfig `db:"config" json:"config"`
	UpdatedAt time.Time  `db:"updated_at" json:"updatedAt"`
}
