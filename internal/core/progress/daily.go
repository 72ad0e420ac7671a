package progress

import (
	"sort"
	"time"

	"github.com/comitanigiacomo/kanso-habits/internal/core/calendar"
	"github.com/comitanigiacomo/kanso-habits/internal/core/domain"
)

type DayCompletion struct {
	ActiveCount int `json:"active"`
	DoneCount   int `json:"done"`
}

func (c DayCompletion) AllDone() bool {
	return c.ActiveCount > 0 && c.DoneCount == c.ActiveCount
}

// ComputeDailyCompletion sums active and done habits per day. Index 0 is day 1.
// Quota habits are active every day.
func ComputeDailyCompletion(habits []domain.Habit, checks domain.MonthChecks, year int, month time.Month) []DayCompletion {
	total := calendar.DaysInMonth(year, month)
	perDay := make([]DayCompletion, total)

	for _, h := range habits {
		active := ActiveDays(h, year, month)
		row := checks.Row(h.ID)
		for d := 1; d <= total; d++ {
			if !active.Has(d) {
				continue
			}
			perDay[d-1].ActiveCount++
			if row.Done(d) {
				perDay[d-1].DoneCount++
			}
		}
	}
	return perDay
}

// DaySet is a set of days of month.
type DaySet map[int]bool

func (s DaySet) Has(day int) bool {
	return s[day]
}

func (s DaySet) Sorted() []int {
	days := make([]int, 0, len(s))
	for d, ok := range s {
		if ok {
			days = append(days, d)
		}
	}
	sort.Ints(days)
	return days
}

// AllDoneDays keeps the days where at least one habit was active and all of them were done.
func AllDoneDays(perDay []DayCompletion) DaySet {
	set := DaySet{}
	for i, c := range perDay {
		if c.AllDone() {
			set[i+1] = true
		}
	}
	return set
}
