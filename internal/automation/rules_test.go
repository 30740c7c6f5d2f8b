package automation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/applytrack-api/internal/models"
)

func appliedDaysAgo(id string, days int) models.Application {
	return models.Application{
		ID:            id,
		Status:        models.StatusApplied,
		StatusHistory: []models.StatusHistoryEntry{{Status: models.StatusApplied, Date: daysAgo(days)}},
		UpdatedAt:     daysAgo(days),
	}
}

func TestAutoRejectDays(t *testing.T) {
	cfg := models.DaysRule{Enabled: true, Days: 30, ApplyTo: []models.ApplicationStatus{models.StatusApplied}}

	update, ok := AutoRejectDays(appliedDaysAgo("a1", 40), cfg, fixedNow)
	require.True(t, ok)
	assert.Equal(t, models.StatusRejected, update.NewStatus)
	assert.Equal(t, models.RuleAutoRejectDays, update.Rule)
	assert.Contains(t, update.Reason, "40")
	assert.Contains(t, update.Reason, "applied")

	_, ok = AutoRejectDays(appliedDaysAgo("a1", 29), cfg, fixedNow)
	assert.False(t, ok)

	_, ok = AutoRejectDays(appliedDaysAgo("a1", 30), cfg, fixedNow)
	assert.True(t, ok, "threshold is inclusive")

	wishlist := appliedDaysAgo("a1", 40)
	wishlist.Status = models.StatusWishlist
	_, ok = AutoRejectDays(wishlist, cfg, fixedNow)
	assert.False(t, ok, "status outside applyTo")

	cfg.Enabled = false
	_, ok = AutoRejectDays(appliedDaysAgo("a1", 400), cfg, fixedNow)
	assert.False(t, ok)
}

func TestAutoArchiveRejected(t *testing.T) {
	cfg := models.ArchiveRule{Enabled: true, Days: 180}
	app := models.Application{ID: "r1", Status: models.StatusRejected, UpdatedAt: daysAgo(200)}

	update, ok := AutoArchiveRejected(app, cfg, fixedNow)
	require.True(t, ok)
	assert.Equal(t, models.StatusArchived, update.NewStatus)

	app.StatusHistory = []models.StatusHistoryEntry{{Status: models.StatusRejected, Date: daysAgo(10)}}
	_, ok = AutoArchiveRejected(app, cfg, fixedNow)
	assert.False(t, ok, "status-change clock prefers history")

	app.Status = models.StatusApplied
	app.StatusHistory = nil
	_, ok = AutoArchiveRejected(app, cfg, fixedNow)
	assert.False(t, ok)
}

func TestAutoMoveToInterview(t *testing.T) {
	cfg := models.ToggleRule{Enabled: true}
	app := models.Application{
		ID:     "i1",
		Status: models.StatusApplied,
		Interviews: []models.Interview{
			{Status: models.InterviewCancelled},
			{Status: models.InterviewScheduled, Type: "Phone"},
		},
	}

	update, ok := AutoMoveToInterview(app, cfg)
	require.True(t, ok)
	assert.Equal(t, models.StatusInterview, update.NewStatus)
	assert.Equal(t, "Phone interview scheduled", update.Reason)

	for _, status := range []models.ApplicationStatus{models.StatusInterview, models.StatusOffer, models.StatusRejected} {
		app.Status = status
		_, ok = AutoMoveToInterview(app, cfg)
		assert.False(t, ok, status)
	}

	app.Status = models.StatusWishlist
	app.Interviews = []models.Interview{{Status: models.InterviewCompleted}}
	_, ok = AutoMoveToInterview(app, cfg)
	assert.False(t, ok, "no scheduled interview")
}

func TestAutoMoveToPendingDecision(t *testing.T) {
	cfg := models.InterviewCountRule{Enabled: true, InterviewCount: 2}
	app := models.Application{
		ID:         "p1",
		Status:     models.StatusInterview,
		Interviews: []models.Interview{{Status: models.InterviewCompleted}, {Status: models.InterviewCompleted}},
	}

	update, ok := AutoMoveToPendingDecision(app, cfg)
	require.True(t, ok)
	assert.Equal(t, models.StatusPendingDecision, update.NewStatus)

	app.Interviews[1].Status = models.InterviewScheduled
	_, ok = AutoMoveToPendingDecision(app, cfg)
	assert.False(t, ok)

	app.Interviews[1].Status = models.InterviewCompleted
	app.Status = models.StatusApplied
	_, ok = AutoMoveToPendingDecision(app, cfg)
	assert.False(t, ok)
}

func TestAutoRejectNoResponseUsesActivityClock(t *testing.T) {
	cfg := models.DaysRule{Enabled: true, Days: 7, ApplyTo: []models.ApplicationStatus{models.StatusApplied}}
	app := models.Application{
		ID:            "n1",
		Status:        models.StatusApplied,
		StatusHistory: []models.StatusHistoryEntry{{Status: models.StatusApplied, Date: daysAgo(30)}},
		UpdatedAt:     daysAgo(2),
	}
	_, ok := AutoRejectNoResponse(app, cfg, fixedNow)
	assert.False(t, ok, "recent activity wins over old status change")

	fallback := models.Application{ID: "n2", Status: models.StatusApplied, CreatedAt: daysAgo(10)}
	update, ok := AutoRejectNoResponse(fallback, cfg, fixedNow)
	require.True(t, ok)
	assert.Equal(t, models.StatusRejected, update.NewStatus)
	assert.Equal(t, models.RuleAutoRejectNoResponse, update.Rule)
}

func TestInactiveReminder(t *testing.T) {
	cfg := models.ReminderRule{Enabled: true, Days: 14}
	app := models.Application{UpdatedAt: daysAgo(14)}
	assert.True(t, IsInactive(app, cfg, fixedNow))
	assert.Equal(t, 14, InactiveDays(app, fixedNow))

	app.UpdatedAt = daysAgo(13)
	assert.False(t, IsInactive(app, cfg, fixedNow))

	cfg.Enabled = false
	app.UpdatedAt = daysAgo(100)
	assert.False(t, IsInactive(app, cfg, fixedNow))
	assert.Equal(t, 100, InactiveDays(app, fixedNow))
}

func TestUndatableApplicationNeverAged(t *testing.T) {
	cfg := models.DaysRule{Enabled: true, Days: 1, ApplyTo: []models.ApplicationStatus{models.StatusApplied}}
	app := models.Application{ID: "u1", Status: models.StatusApplied, UpdatedAt: "???"}
	_, ok := AutoRejectDays(app, cfg, fixedNow)
	assert.False(t, ok)
	_, ok = AutoRejectNoResponse(app, cfg, fixedNow)
	assert.False(t, ok)

	cfg.Days = 0
	_, ok = AutoRejectNoResponse(app, cfg, fixedNow)
	assert.True(t, ok, "a zero-day threshold still fires")
}
