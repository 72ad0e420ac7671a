package domain

import (
	"errors"
	"sort"
)

var (
	ErrInvalidDay         = errors.New("invalid day for the selected month")
	ErrHabitInactiveOnDay = errors.New("habit is not scheduled on this day")
)

// DayMarks holds one habit's marks for a month, keyed by day of month.
// A missing day means not completed.
type DayMarks map[int]bool

// MonthChecks maps habit id to its marks for one month.
type MonthChecks map[string]DayMarks

func (r DayMarks) Done(day int) bool {
	return r[day]
}

// CompletedDays returns the marked days in ascending order.
func (r DayMarks) CompletedDays() []int {
	days := make([]int, 0, len(r))
	for d, ok := range r {
		if ok {
			days = append(days, d)
		}
	}
	sort.Ints(days)
	return days
}

// Row never returns nil, so callers can read from it directly.
func (m MonthChecks) Row(habitID string) DayMarks {
	if row, ok := m[habitID]; ok && row != nil {
		return row
	}
	return DayMarks{}
}

func (m MonthChecks) Done(habitID string, day int) bool {
	return m[habitID][day]
}

// Set merges a single mark, creating the habit row if needed.
func (m MonthChecks) Set(habitID string, day int, done bool) {
	row, ok := m[habitID]
	if !ok || row == nil {
		row = DayMarks{}
		m[habitID] = row
	}
	row[day] = done
}

func (m MonthChecks) Clone() MonthChecks {
	out := make(MonthChecks, len(m))
	for id, row := range m {
		cp := make(DayMarks, len(row))
		for d, v := range row {
			cp[d] = v
		}
		out[id] = cp
	}
	return out
}
