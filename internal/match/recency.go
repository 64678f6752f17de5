package match

import (
	"time"

	"github.com/bigrise-data/bigrise/internal/model"
)

// DefaultRecentWindowDays is the recency window: an update the same day as
// the reference date or up to seven calendar days before it counts as recent.
const DefaultRecentWindowDays = 7

// IsRecent reports whether update falls inside the window ending at the
// reference date, both bounds inclusive. Comparison is on calendar days;
// time-of-day and zone are ignored. A zero update time is never recent, and
// an update after the reference date is not recent either.
func IsRecent(update, reference time.Time, windowDays int) bool {
	if update.IsZero() {
		return false
	}
	days := int(toDay(reference).Sub(toDay(update)).Hours() / 24)
	return days >= 0 && days <= windowDays
}

// IsRecentDate is the string-valued front end: it parses the update date the
// way the upstream datasets write them and classifies unparseable or empty
// values as not recent rather than failing.
func IsRecentDate(update string, reference time.Time, windowDays int) bool {
	t, ok := model.ParseDate(update)
	if !ok {
		return false
	}
	return IsRecent(t, reference, windowDays)
}

func toDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
