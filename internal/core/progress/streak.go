package progress

import (
	"time"

	"github.com/comitanigiacomo/kanso-habits/internal/core/calendar"
)

type Streak struct {
	Current int `json:"current"`
	Longest int `json:"longest"`
}

// ComputeStreak scans days 1..min(elapsedDayLimit, totalDays). Longest is the
// best run of consecutive all-done days; Current is the run ending on the last
// scanned day.
func ComputeStreak(allDone DaySet, totalDays, elapsedDayLimit int) Streak {
	maxDay := min(elapsedDayLimit, totalDays)
	if maxDay <= 0 {
		return Streak{}
	}

	var s Streak
	run := 0
	for d := 1; d <= maxDay; d++ {
		if !allDone.Has(d) {
			run = 0
			continue
		}
		run++
		s.Longest = max(s.Longest, run)
	}

	for d := maxDay; d >= 1 && allDone.Has(d); d-- {
		s.Current++
	}
	return s
}

// ElapsedDayLimit is the last day of the month that has started at now:
// today's day for the current month, the whole month for past months and 0
// for future months. now's location decides what "today" is.
func ElapsedDayLimit(year int, month time.Month, now time.Time) int {
	viewed := calendar.MonthKey{Year: year, Month: month}
	switch viewed.Compare(calendar.NewMonthKey(now)) {
	case 0:
		return now.Day()
	case -1:
		return calendar.DaysInMonth(year, month)
	default:
		return 0
	}
}
