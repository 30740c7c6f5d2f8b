package automation

import (
	"time"

	"github.com/noah-isme/applytrack-api/internal/models"
)

type mutatingRule struct {
	name    models.RuleName
	propose func(app models.Application, cfg models.RuleConfig, now time.Time) (models.ProposedUpdate, bool)
}

// priority is the fixed evaluation order. Rejection and archival preempt
// forward progress; forward rules follow pipeline order. Reordering changes
// which of two simultaneously true rules wins.
var priority = []mutatingRule{
	{
		name: models.RuleAutoRejectDays,
		propose: func(app models.Application, cfg models.RuleConfig, now time.Time) (models.ProposedUpdate, bool) {
			return AutoRejectDays(app, cfg.AutoRejectDays, now)
		},
	},
	{
		name: models.RuleAutoArchiveRejected,
		propose: func(app models.Application, cfg models.RuleConfig, now time.Time) (models.ProposedUpdate, bool) {
			return AutoArchiveRejected(app, cfg.AutoArchiveRejected, now)
		},
	},
	{
		name: models.RuleAutoMoveToInterview,
		propose: func(app models.Application, cfg models.RuleConfig, _ time.Time) (models.ProposedUpdate, bool) {
			if !interviewEligible(app.Status) {
				return models.ProposedUpdate{}, false
			}
			return AutoMoveToInterview(app, cfg.AutoMoveToInterview)
		},
	},
	{
		name: models.RuleAutoMoveToPendingDecision,
		propose: func(app models.Application, cfg models.RuleConfig, _ time.Time) (models.ProposedUpdate, bool) {
			return AutoMoveToPendingDecision(app, cfg.AutoMoveToPendingDecision)
		},
	},
	{
		name: models.RuleAutoRejectNoResponse,
		propose: func(app models.Application, cfg models.RuleConfig, now time.Time) (models.ProposedUpdate, bool) {
			return AutoRejectNoResponse(app, cfg.AutoRejectNoResponse, now)
		},
	},
}

// Evaluate returns the first proposal produced by the rules in priority order.
// A proposal that would leave the status unchanged is skipped, which keeps
// re-evaluation of an already transitioned application idempotent.
func Evaluate(app models.Application, cfg models.RuleConfig, now time.Time) (models.ProposedUpdate, bool) {
	for _, rule := range priority {
		update, ok := rule.propose(app, cfg, now)
		if !ok || update.NewStatus == app.Status {
			continue
		}
		return update, true
	}
	return models.ProposedUpdate{}, false
}

// matches evaluates one rule's own predicate, ignoring priority.
func matches(name models.RuleName, app models.Application, cfg models.RuleConfig, now time.Time) bool {
	var ok bool
	switch name {
	case models.RuleAutoRejectDays:
		_, ok = AutoRejectDays(app, cfg.AutoRejectDays, now)
	case models.RuleAutoArchiveRejected:
		_, ok = AutoArchiveRejected(app, cfg.AutoArchiveRejected, now)
	case models.RuleAutoMoveToInterview:
		_, ok = AutoMoveToInterview(app, cfg.AutoMoveToInterview)
	case models.RuleAutoMoveToPendingDecision:
		_, ok = AutoMoveToPendingDecision(app, cfg.AutoMoveToPendingDecision)
	case models.RuleAutoRejectNoResponse:
		_, ok = AutoRejectNoResponse(app, cfg.AutoRejectNoResponse, now)
	case models.RuleInactiveReminder:
		ok = IsInactive(app, cfg.InactiveReminder, now)
	}
	return ok
}
