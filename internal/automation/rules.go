package automation

import (
	"fmt"
	"time"

	"github.com/noah-isme/applytrack-api/internal/models"
)

// AutoRejectDays rejects applications whose status has not changed for cfg.Days.
func AutoRejectDays(app models.Application, cfg models.DaysRule, now time.Time) (models.ProposedUpdate, bool) {
	if !cfg.Enabled || !statusIn(app.Status, cfg.ApplyTo) {
		return models.ProposedUpdate{}, false
	}
	days := DaysSinceLastStatusChange(app, now)
	if days < cfg.Days {
		return models.ProposedUpdate{}, false
	}
	return models.ProposedUpdate{
		ApplicationID: app.ID,
		NewStatus:     models.StatusRejected,
		Rule:          models.RuleAutoRejectDays,
		Reason:        fmt.Sprintf("No status change for %d days while %s (limit %d days)", days, app.Status, cfg.Days),
	}, true
}

// AutoArchiveRejected archives rejected applications after cfg.Days.
func AutoArchiveRejected(app models.Application, cfg models.ArchiveRule, now time.Time) (models.ProposedUpdate, bool) {
	if !cfg.Enabled || app.Status != models.StatusRejected {
		return models.ProposedUpdate{}, false
	}
	days := DaysSinceLastStatusChange(app, now)
	if days < cfg.Days {
		return models.ProposedUpdate{}, false
	}
	return models.ProposedUpdate{
		ApplicationID: app.ID,
		NewStatus:     models.StatusArchived,
		Rule:          models.RuleAutoArchiveRejected,
		Reason:        fmt.Sprintf("Rejected %d days ago (limit %d days)", days, cfg.Days),
	}, true
}

// AutoMoveToInterview moves applications with a scheduled interview into the interview stage.
func AutoMoveToInterview(app models.Application, cfg models.ToggleRule) (models.ProposedUpdate, bool) {
	if !cfg.Enabled || !interviewEligible(app.Status) {
		return models.ProposedUpdate{}, false
	}
	for _, interview := range app.Interviews {
		if interview.Status != models.InterviewScheduled {
			continue
		}
		reason := "Interview scheduled"
		if interview.Type != "" {
			reason = fmt.Sprintf("%s interview scheduled", interview.Type)
		}
		return models.ProposedUpdate{
			ApplicationID: app.ID,
			NewStatus:     models.StatusInterview,
			Rule:          models.RuleAutoMoveToInterview,
			Reason:        reason,
		}, true
	}
	return models.ProposedUpdate{}, false
}

// AutoMoveToPendingDecision moves interviewing applications on once enough interviews completed.
func AutoMoveToPendingDecision(app models.Application, cfg models.InterviewCountRule) (models.ProposedUpdate, bool) {
	if !cfg.Enabled || app.Status != models.StatusInterview {
		return models.ProposedUpdate{}, false
	}
	completed := countInterviews(app.Interviews, models.InterviewCompleted)
	if completed < cfg.InterviewCount {
		return models.ProposedUpdate{}, false
	}
	return models.ProposedUpdate{
		ApplicationID: app.ID,
		NewStatus:     models.StatusPendingDecision,
		Rule:          models.RuleAutoMoveToPendingDecision,
		Reason:        fmt.Sprintf("%d interviews completed (needed %d)", completed, cfg.InterviewCount),
	}, true
}

// AutoRejectNoResponse rejects applications with no recorded activity for cfg.Days.
// Unlike AutoRejectDays it reads the activity clock.
func AutoRejectNoResponse(app models.Application, cfg models.DaysRule, now time.Time) (models.ProposedUpdate, bool) {
	if !cfg.Enabled || !statusIn(app.Status, cfg.ApplyTo) {
		return models.ProposedUpdate{}, false
	}
	days := DaysSinceLastActivity(app, now)
	if days < cfg.Days {
		return models.ProposedUpdate{}, false
	}
	return models.ProposedUpdate{
		ApplicationID: app.ID,
		NewStatus:     models.StatusRejected,
		Rule:          models.RuleAutoRejectNoResponse,
		Reason:        fmt.Sprintf("No response for %d days while %s (limit %d days)", days, app.Status, cfg.Days),
	}, true
}

// IsInactive reports whether the reminder badge should be shown. It never mutates anything.
func IsInactive(app models.Application, cfg models.ReminderRule, now time.Time) bool {
	return cfg.Enabled && DaysSinceLastActivity(app, now) >= cfg.Days
}

// InactiveDays is the number of days since the last recorded activity.
func InactiveDays(app models.Application, now time.Time) int {
	return DaysSinceLastActivity(app, now)
}

func interviewEligible(status models.ApplicationStatus) bool {
	switch status {
	case models.StatusInterview, models.StatusOffer, models.StatusRejected:
		return false
	default:
		return true
	}
}

func statusIn(status models.ApplicationStatus, set []models.ApplicationStatus) bool {
	for _, candidate := range set {
		if candidate == status {
			return true
		}
	}
	return false
}

func countInterviews(interviews []models.Interview, status models.InterviewStatus) int {
	count := 0
	for _, interview := range interviews {
		if interview.Status == status {
			count++
		}
	}
	return count
}
