package progress

import (
	"time"

	"github.com/comitanigiacomo/kanso-habits/internal/core/calendar"
	"github.com/comitanigiacomo/kanso-habits/internal/core/domain"
)

// Summary is everything the month view derives from one snapshot.
type Summary struct {
	Month       string          `json:"month"`
	TotalDays   int             `json:"total_days"`
	ElapsedDays int             `json:"elapsed_days"`
	HabitCount  int             `json:"habit_count"`
	Weeks       []string        `json:"weeks"`
	Habits      []HabitProgress `json:"habits"`
	Daily       []DayCompletion `json:"daily"`
	AllDoneDays []int           `json:"all_done_days"`
	Streak      Streak          `json:"streak"`
	Today       int             `json:"today,omitempty"`
	ComputedAt  time.Time       `json:"computed_at"`
	// Generation is the cache generation of the month the inputs were read under.
	Generation int64 `json:"generation"`
}

// MonthSummary computes the month view at the instant now.
func MonthSummary(habits []domain.Habit, checks domain.MonthChecks, key calendar.MonthKey, now time.Time) Summary {
	total := key.Days()
	weeks := calendar.MonthWeeks(key.Year, key.Month)
	daily := ComputeDailyCompletion(habits, checks, key.Year, key.Month)
	allDone := AllDoneDays(daily)
	limit := ElapsedDayLimit(key.Year, key.Month, now)

	weekLabels := make([]string, 0, len(weeks))
	for _, w := range weeks {
		weekLabels = append(weekLabels, w.Format(calendar.DateLayout))
	}

	s := Summary{
		Month:       key.Start().Format(calendar.MonthLayout),
		TotalDays:   total,
		ElapsedDays: min(limit, total),
		HabitCount:  len(habits),
		Weeks:       weekLabels,
		Habits:      ComputeHabitProgress(habits, checks, key.Year, key.Month),
		Daily:       daily,
		AllDoneDays: allDone.Sorted(),
		Streak:      ComputeStreak(allDone, total, limit),
		ComputedAt:  now.UTC(),
	}
	if calendar.NewMonthKey(now) == key {
		s.Today = now.Day()
	}
	return s
}
