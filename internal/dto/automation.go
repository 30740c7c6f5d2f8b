package dto

import (
	"time"

	"github.com/noah-isme/applytrack-api/internal/models"
)

// RunResult is the outcome of one tenant run. Skipped is set when another run held the lock.
type RunResult struct {
	Skipped bool                       `json:"skipped"`
	Run     *models.AutomationRun      `json:"run,omitempty"`
	Items   []models.AutomationRunItem `json:"items,omitempty"`
}

// RunAcceptedResponse acknowledges a queued manual run.
type RunAcceptedResponse struct {
	JobID    string    `json:"jobId"`
	UserID   string    `json:"userId"`
	Enqueued time.Time `json:"enqueuedAt"`
}

// PreviewResponse reports how many applications each rule currently matches.
// Cached is set when the counts came from the preview cache.
type PreviewResponse struct {
	Counts        map[models.RuleName]int `json:"counts"`
	Applications  int                     `json:"applications"`
	ConfigVersion int                     `json:"configVersion"`
	GeneratedAt   time.Time               `json:"generatedAt"`
	Cached        bool                    `json:"-"`
}

// InactivityResponse describes the reminder state of one application.
type InactivityResponse struct {
	ApplicationID   string `json:"applicationId"`
	Inactive        bool   `json:"inactive"`
	InactiveDays    int    `json:"inactiveDays"`
	ThresholdDays   int    `json:"thresholdDays"`
	ReminderEnabled bool   `json:"reminderEnabled"`
}

// EvaluateRequest asks for a dry run over a caller supplied snapshot. Config
// falls back to the caller's stored configuration and Now to the server clock.
type EvaluateRequest struct {
	Applications []models.Application `json:"applications"`
	Config       *models.RuleConfig   `json:"config,omitempty"`
	Now          *time.Time           `json:"now,omitempty"`
}

// EvaluateResponse carries the proposals and preview of a dry run.
type EvaluateResponse struct {
	Updates     []models.ProposedUpdate `json:"updates"`
	Preview     map[models.RuleName]int `json:"preview"`
	EvaluatedAt time.Time               `json:"evaluatedAt"`
}

// ListRunsQuery is the query string accepted by the run listing endpoint.
type ListRunsQuery struct {
	Status   []models.RunStatus `form:"status"`
	Page     int                `form:"page"`
	PageSize int                `form:"page_size"`
}

// RunDetail is a run with its recorded items.
type RunDetail struct {
	Run   models.AutomationRun       `json:"run"`
	Items []models.AutomationRunItem `json:"items"`
}

// ExportFile is a rendered run log ready to be served as an attachment.
type ExportFile struct {
	Filename    string
	ContentType string
	Body        []byte
}

// SweepResult summarises one pass over every tenant.
type SweepResult struct {
	Users   int `json:"users"`
	Runs    int `json:"runs"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
	Applied int `json:"applied"`
}
