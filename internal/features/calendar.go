package features

import (
	"time"

	"inventory-analytics/internal/domain"
)

// holidays is the static retail holiday calendar (YYYY-MM-DD, UTC).
var holidays = map[string]struct{}{
	"2023-11-24": {}, "2023-12-25": {},
	"2024-01-01": {}, "2024-11-29": {}, "2024-12-25": {},
	"2025-01-01": {}, "2025-05-26": {}, "2025-07-04": {},
	"2025-11-27": {}, "2025-11-28": {}, "2025-12-25": {},
	"2026-01-01": {}, "2026-05-25": {}, "2026-07-04": {},
	"2026-11-26": {}, "2026-11-27": {}, "2026-12-25": {},
}

// IsWeekendDay reports whether t falls on Saturday or Sunday (UTC).
func IsWeekendDay(t time.Time) bool {
	wd := t.UTC().Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

// IsHolidayDay reports whether t is in the static holiday calendar.
func IsHolidayDay(t time.Time) bool {
	_, ok := holidays[domain.DateKey(t)]
	return ok
}

func boolFeature(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
