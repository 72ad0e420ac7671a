// Package progress derives completion statistics from habit schedules and
// sparse month records. Every function is pure: it reads the snapshots it is
// given and returns freshly computed values.
package progress

import (
	"time"

	"github.com/comitanigiacomo/kanso-habits/internal/core/calendar"
	"github.com/comitanigiacomo/kanso-habits/internal/core/domain"
)

// IsActiveOnDate reports whether the habit is expected on t. A missing or
// unrecognized schedule counts as active every day.
func IsActiveOnDate(h domain.Habit, t time.Time) bool {
	switch s := h.Schedule.(type) {
	case domain.WeekdaysSchedule:
		return s.Days[calendar.WeekdayIndex(t)]
	case domain.DaysOfMonthSchedule:
		return s.Contains(t.Day())
	case domain.QuotaSchedule:
		return true
	default:
		return true
	}
}

// ActiveDaySet is the set of active days of one habit in one month. Quota
// habits carry the Quota sentinel instead of a concrete set.
type ActiveDaySet struct {
	Quota bool
	Days  map[int]bool
}

func (a ActiveDaySet) Has(day int) bool {
	return a.Quota || a.Days[day]
}

// Len is the number of concrete active days; quota sets report zero.
func (a ActiveDaySet) Len() int {
	return len(a.Days)
}

func ActiveDays(h domain.Habit, year int, month time.Month) ActiveDaySet {
	if h.IsQuota() {
		return ActiveDaySet{Quota: true}
	}

	total := calendar.DaysInMonth(year, month)
	days := make(map[int]bool, total)
	for d := 1; d <= total; d++ {
		if IsActiveOnDate(h, calendar.Date(year, month, d)) {
			days[d] = true
		}
	}
	return ActiveDaySet{Days: days}
}

// percent rounds 100*num/den half up; a zero denominator yields 0.
func percent(num, den int) int {
	if den <= 0 {
		return 0
	}
	return (200*num + den) / (2 * den)
}

// MonthProgress returns the habit's completion percentage (0-100) for the month.
// weeks are the Monday-aligned week starts in view, see calendar.MonthWeeks.
func MonthProgress(h domain.Habit, row domain.DayMarks, year int, month time.Month, weeks []time.Time) int {
	if q, ok := h.Schedule.(domain.QuotaSchedule); ok {
		return quotaProgress(q, row, year, month, weeks)
	}

	active := ActiveDays(h, year, month)
	done := 0
	for d := range active.Days {
		if row.Done(d) {
			done++
		}
	}
	return percent(done, active.Len())
}

func quotaProgress(q domain.QuotaSchedule, row domain.DayMarks, year int, month time.Month, weeks []time.Time) int {
	total := calendar.DaysInMonth(year, month)
	achieved := 0

	for _, ws := range weeks {
		ws = calendar.DayOf(ws)
		we := calendar.AddDays(ws, calendar.DaysPerWeek-1)

		weekly := 0
		for d := 1; d <= total; d++ {
			date := calendar.Date(year, month, d)
			if date.Before(ws) || date.After(we) {
				continue
			}
			if row.Done(d) {
				weekly++
			}
		}
		achieved += min(weekly, q.TimesPerWeek)
	}

	return percent(achieved, q.TimesPerWeek*len(weeks))
}

type HabitProgress struct {
	HabitID string `json:"habit_id"`
	Percent int    `json:"percent"`
}

// ComputeHabitProgress evaluates MonthProgress for every habit, in order.
func ComputeHabitProgress(habits []domain.Habit, checks domain.MonthChecks, year int, month time.Month) []HabitProgress {
	weeks := calendar.MonthWeeks(year, month)
	out := make([]HabitProgress, 0, len(habits))
	for _, h := range habits {
		out = append(out, HabitProgress{
			HabitID: h.ID,
			Percent: MonthProgress(h, checks.Row(h.ID), year, month, weeks),
		})
	}
	return out
}
