package market

import (
	"time"

	"golang-market-ingestor/internal/entity"
)

// The classifier works in exchange-local civil time (NYSE, America/New_York)
// but accepts and returns UTC at the boundary.
var exchangeTZ = mustLoadLocation("America/New_York")

func mustLoadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		panic("market: " + err.Error())
	}
	return loc
}

// holidays are full-day NYSE closures.
var holidays = dateSet(
	"2024-01-01", "2024-01-15", "2024-02-19", "2024-03-29", "2024-05-27",
	"2024-06-19", "2024-07-04", "2024-09-02", "2024-11-28", "2024-12-25",
	"2025-01-01", "2025-01-09", "2025-01-20", "2025-02-17", "2025-04-18",
	"2025-05-26", "2025-06-19", "2025-07-04", "2025-09-01", "2025-11-27",
	"2025-12-25",
	"2026-01-01", "2026-01-19", "2026-02-16", "2026-04-03", "2026-05-25",
	"2026-06-19", "2026-07-03", "2026-09-07", "2026-11-26", "2026-12-25",
)

// earlyCloses are sessions where regular trading ends at 13:00 exchange time.
var earlyCloses = dateSet(
	"2024-07-03", "2024-11-29", "2024-12-24",
	"2025-07-03", "2025-11-28", "2025-12-24",
	"2026-11-27", "2026-12-24",
)

func dateSet(dates ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(dates))
	for _, d := range dates {
		set[d] = struct{}{}
	}
	return set
}

// Session boundaries in minutes since exchange-local midnight.
const (
	preOpenMinute      = 4 * 60    // 04:00
	regularOpenMinute  = 9*60 + 30 // 09:30
	regularCloseMinute = 16 * 60   // 16:00
	postCloseMinute    = 20 * 60   // 20:00
	earlyCloseMinute   = 13 * 60   // 13:00
	earlyPostEndMinute = 17 * 60   // 17:00
)

// Classify maps a UTC instant to its market session. It is pure and total:
// every valid instant maps to exactly one session, weekends and holidays
// included.
func Classify(ts time.Time) entity.Session {
	local := ts.In(exchangeTZ)

	switch local.Weekday() {
	case time.Saturday, time.Sunday:
		return entity.SessionClosed
	}

	day := local.Format("2006-01-02")
	if _, closed := holidays[day]; closed {
		return entity.SessionClosed
	}

	minute := local.Hour()*60 + local.Minute()

	if _, early := earlyCloses[day]; early {
		switch {
		case minute >= preOpenMinute && minute < regularOpenMinute:
			return entity.SessionPre
		case minute >= regularOpenMinute && minute < earlyCloseMinute:
			return entity.SessionRegular
		case minute >= earlyCloseMinute && minute < earlyPostEndMinute:
			return entity.SessionPost
		default:
			return entity.SessionClosed
		}
	}

	switch {
	case minute >= preOpenMinute && minute < regularOpenMinute:
		return entity.SessionPre
	case minute >= regularOpenMinute && minute < regularCloseMinute:
		return entity.SessionRegular
	case minute >= regularCloseMinute && minute < postCloseMinute:
		return entity.SessionPost
	default:
		return entity.SessionClosed
	}
}
