package automation

import (
	"errors"
	"math"
	"strings"
	"time"

	"github.com/noah-isme/applytrack-api/internal/models"
)

var (
	// ErrMissingDate is returned by ParseDate for empty input.
	ErrMissingDate = errors.New("date missing")
	// ErrUnknownLayout is returned by ParseDate when no supported layout matches.
	ErrUnknownLayout = errors.New("unrecognised date layout")
)

// DateError reports a timestamp that could not be parsed.
type DateError struct {
	Raw string
	Err error
}

func (e *DateError) Error() string {
	return "parse date " + `"` + e.Raw + `": ` + e.Err.Error()
}

func (e *DateError) Unwrap() error { return e.Err }

var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseDate parses the timestamp formats stored and exchanged by the tracker.
// Values without a zone are read as UTC.
func ParseDate(raw string) (time.Time, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return time.Time{}, &DateError{Raw: raw, Err: ErrMissingDate}
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, &DateError{Raw: raw, Err: ErrUnknownLayout}
}

// dateAccessor yields one candidate reference instant for an application.
type dateAccessor func(app models.Application) (time.Time, bool)

func field(get func(app models.Application) string) dateAccessor {
	return func(app models.Application) (time.Time, bool) {
		t, err := ParseDate(get(app))
		return t, err == nil
	}
}

var (
	lastStatusChange dateAccessor = func(app models.Application) (time.Time, bool) {
		if len(app.StatusHistory) == 0 {
			return time.Time{}, false
		}
		t, err := ParseDate(app.StatusHistory[len(app.StatusHistory)-1].Date)
		return t, err == nil
	}
	updatedAt   = field(func(app models.Application) string { return app.UpdatedAt })
	createdAt   = field(func(app models.Application) string { return app.CreatedAt })
	appliedDate = field(func(app models.Application) string { return app.AppliedDate })
)

// Fallback order for each clock. The first accessor that yields a date wins.
var (
	activityChain     = []dateAccessor{updatedAt, createdAt, appliedDate}
	statusChangeChain = []dateAccessor{lastStatusChange, updatedAt, createdAt, appliedDate}
)

func firstPresent(app models.Application, accessors ...dateAccessor) (time.Time, bool) {
	for _, accessor := range accessors {
		if t, ok := accessor(app); ok {
			return t, true
		}
	}
	return time.Time{}, false
}

// DaysSinceLastStatusChange counts whole days since the last recorded status
// transition, falling back to the activity clock when history is empty or its
// last date is unusable.
func DaysSinceLastStatusChange(app models.Application, now time.Time) int {
	return daysSince(app, now, statusChangeChain)
}

// DaysSinceLastActivity counts whole days since updatedAt, then createdAt, then appliedDate.
func DaysSinceLastActivity(app models.Application, now time.Time) int {
	return daysSince(app, now, activityChain)
}

// daysSince floors the elapsed time to whole days. Future dates give negative
// values. An application with no usable date is treated as age zero, so time
// based rules never act on records that cannot be dated.
func daysSince(app models.Application, now time.Time, chain []dateAccessor) int {
	ref, ok := firstPresent(app, chain...)
	if !ok {
		return 0
	}
	return int(math.Floor(now.Sub(ref).Hours() / 24))
}

// Datable reports whether any timestamp in the activity chain parses.
func Datable(app models.Application) bool {
	_, ok := firstPresent(app, activityChain...)
	return ok
}
