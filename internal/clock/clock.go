// Package clock supplies the canonical time source. All day-boundary
// math (inactivity, pause accounting, access windows) goes through one
// zone so learners in other timezones see consistent cutoffs.
package clock

import "time"

// CanonicalZone is the business timezone for every schedule and
// day-boundary computation.
const CanonicalZone = "Asia/Riyadh"

type Clock interface {
	Now() time.Time
}

type systemClock struct{ loc *time.Location }

// System returns the wall clock pinned to the canonical zone.
func System() Clock {
	loc, err := time.LoadLocation(CanonicalZone)
	if err != nil {
		loc = time.UTC
	}
	return &systemClock{loc: loc}
}

func (c *systemClock) Now() time.Time { return time.Now().In(c.loc) }

// DaysSince is whole elapsed days, floored. A user inactive 64.9 days is
// 64 days inactive.
func DaysSince(from, now time.Time) int {
	if now.Before(from) {
		return 0
	}
	return int(now.Sub(from) / (24 * time.Hour))
}

// CeilDays rounds elapsed time up to whole days. Pause accounting
// charges any partial day as a full day.
func CeilDays(from, now time.Time) int {
	elapsed := now.Sub(from)
	if elapsed <= 0 {
		return 0
	}
	days := int(elapsed / (24 * time.Hour))
	if elapsed%(24*time.Hour) > 0 {
		days++
	}
	return days
}
