// Package automation implements the application pipeline rule engine.
//
// The engine is pure: it reads an application snapshot and a rule
// configuration and returns proposed status transitions. Persisting them is
// the caller's job.
package automation

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/applytrack-api/internal/models"
)

// Engine runs the rule set over application snapshots. It holds no mutable
// state and is safe for concurrent use.
type Engine struct {
	now    func() time.Time
	logger *zap.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the wall clock.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithLogger sets the logger used to report isolated evaluation faults.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// NewEngine constructs an engine reading the wall clock.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{now: time.Now, logger: zap.NewNop()}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

// Now returns the engine's notion of the current instant.
func (e *Engine) Now() time.Time {
	return e.now()
}

// EvaluateAll proposes at most one transition per application, in input order.
// An application whose evaluation faults is logged and left out of the result.
func (e *Engine) EvaluateAll(apps []models.Application, cfg models.RuleConfig) []models.ProposedUpdate {
	now := e.now()
	updates := make([]models.ProposedUpdate, 0)
	seen := make(map[string]struct{}, len(apps))
	for _, app := range apps {
		if _, dup := seen[app.ID]; dup {
			e.logger.Warn("duplicate application in snapshot", zap.String("application_id", app.ID))
			continue
		}
		seen[app.ID] = struct{}{}

		update, ok, err := e.evaluateOne(app, cfg, now)
		if err != nil {
			e.logger.Error("application evaluation failed", zap.String("application_id", app.ID), zap.Error(err))
			continue
		}
		if ok {
			updates = append(updates, update)
		}
	}
	return updates
}

// Preview counts, per rule, how many applications satisfy that rule's own
// criteria. Counts ignore priority, so one application can count toward
// several rules. Every rule name is present in the result.
func (e *Engine) Preview(apps []models.Application, cfg models.RuleConfig) map[models.RuleName]int {
	now := e.now()
	counts := make(map[models.RuleName]int, len(models.RuleNames))
	for _, name := range models.RuleNames {
		counts[name] = 0
	}
	for _, app := range apps {
		for _, name := range models.RuleNames {
			hit, err := e.matchOne(name, app, cfg, now)
			if err != nil {
				e.logger.Error("application preview failed",
					zap.String("application_id", app.ID),
					zap.String("rule", string(name)),
					zap.Error(err),
				)
				continue
			}
			if hit {
				counts[name]++
			}
		}
	}
	return counts
}

// IsInactive reports whether the application should carry the inactivity badge.
func (e *Engine) IsInactive(app models.Application, cfg models.RuleConfig) bool {
	return IsInactive(app, cfg.InactiveReminder, e.now())
}

// InactiveDays returns the number of whole days since the last activity.
func (e *Engine) InactiveDays(app models.Application) int {
	return InactiveDays(app, e.now())
}

func (e *Engine) evaluateOne(app models.Application, cfg models.RuleConfig, now time.Time) (update models.ProposedUpdate, ok bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("evaluate application %s: %v", app.ID, r)
		}
	}()
	update, ok = Evaluate(app, cfg, now)
	return update, ok, nil
}

func (e *Engine) matchOne(name models.RuleName, app models.Application, cfg models.RuleConfig, now time.Time) (hit bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("match %s for application %s: %v", name, app.ID, r)
		}
	}()
	return matches(name, app, cfg, now), nil
}
