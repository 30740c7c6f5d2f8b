package models

import "time"

// RuleName identifies an automation rule.
type RuleName string

const (
	RuleAutoRejectDays            RuleName = "autoRejectDays"
	RuleAutoArchiveRejected       RuleName = "autoArchiveRejected"
	RuleAutoMoveToInterview       RuleName = "autoMoveToInterview"
	RuleInactiveReminder          RuleName = "inactiveReminder"
	RuleAutoMoveToPendingDecision RuleName = "autoMoveToPendingDecision"
	RuleAutoRejectNoResponse      RuleName = "autoRejectNoResponse"
)

// RuleNames lists every rule, including the advisory reminder.
var RuleNames = []RuleName{
	RuleAutoRejectDays,
	RuleAutoArchiveRejected,
	RuleAutoMoveToInterview,
	RuleInactiveReminder,
	RuleAutoMoveToPendingDecision,
	RuleAutoRejectNoResponse,
}

// ProposedUpdate is a candidate status transition not yet persisted.
type ProposedUpdate struct {
	ApplicationID string            `json:"applicationId"`
	NewStatus     ApplicationStatus `json:"newStatus"`
	Reason        string            `json:"reason"`
	Rule          RuleName          `json:"rule"`
}

// RunTrigger describes what started an automation run.
type RunTrigger string

const (
	RunTriggerStartup   RunTrigger = "startup"
	RunTriggerScheduled RunTrigger = "scheduled"
	RunTriggerManual    RunTrigger = "manual"
	RunTriggerCLI       RunTrigger = "cli"
)

// RunStatus captures automation run lifecycle states.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "RUNNING"
	RunStatusCompleted RunStatus = "COMPLETED"
	RunStatusPartial   RunStatus = "PARTIAL"
	RunStatusFailed    RunStatus = "FAILED"
	RunStatusCancelled RunStatus = "CANCELLED"
)

// AutomationRun is the persisted record of one engine run for one user.
type AutomationRun struct {
	ID           string     `db:"id" json:"id"`
	UserID       string     `db:"user_id" json:"userId"`
	Trigger      RunTrigger `db:"trigger" json:"trigger"`
	Status       RunStatus  `db:"status" json:"status"`
	Evaluated    int        `db:"evaluated" json:"evaluated"`
	Proposed     int        `db:"proposed" json:"proposed"`
	Applied      int        `db:"applied" json:"applied"`
	Failed       int        `db:"failed" json:"failed"`
	StartedAt    time.Time  `db:"started_at" json:"startedAt"`
	FinishedAt   *time.Time `db:"finished_at" json:"finishedAt,omitempty"`
	ErrorMessage *string    `db:"error_message" json:"errorMessage,omitempty"`
}

// AutomationRunItem records the outcome of one proposed update within a run.
type AutomationRunItem struct {
	ID            string            `db:"id" json:"id"`
	RunID         string            `db:"run_id" json:"runId"`
	ApplicationID string            `db:"application_id" json:"applicationId"`
	FromStatus    ApplicationStatus `db:"from_status" json:"fromStatus"`
	ToStatus      ApplicationStatus `db:"to_status" json:"toStatus"`
	Rule          RuleName          `db:"rule" json:"rule"`
	Reason        string            `db:"reason" json:"reason"`
	ErrorMessage  *string           `db:"error_message" json:"errorMessage,omitempty"`
	CreatedAt     time.Time         `db:"created_at" json:"createdAt"`
}

// AutomationRunFilter constrains run listing queries.
type AutomationRunFilter struct {
	UserID string
	Status []RunStatus
	Limit  int
	Offset int
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
