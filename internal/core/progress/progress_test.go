package progress_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/comitanigiacomo/kanso-habits/internal/core/calendar"
	"github.com/comitanigiacomo/kanso-habits/internal/core/domain"
	"github.com/comitanigiacomo/kanso-habits/internal/core/progress"
)

func marks(days ...int) domain.DayMarks {
	row := domain.DayMarks{}
	for _, d := range days {
		row[d] = true
	}
	return row
}

func habit(id string, s domain.Schedule) domain.Habit {
	return domain.Habit{ID: id, UserID: "u1", Name: id, Schedule: s}
}

func TestIsActiveOnDate(t *testing.T) {
	t.Run("Every day schedule is active on every date", func(t *testing.T) {
		h := habit("h1", domain.EveryDay())
		for _, d := range calendar.NewYearDays(time.UTC).Get(2024) {
			require.True(t, progress.IsActiveOnDate(h, d), d.String())
		}
	})

	t.Run("Weekdays uses the Monday-first index", func(t *testing.T) {
		h := habit("h1", domain.Weekend())
		sat := calendar.Date(2024, time.January, 6)
		sun := calendar.Date(2024, time.January, 7)
		mon := calendar.Date(2024, time.January, 8)

		assert.True(t, progress.IsActiveOnDate(h, sat))
		assert.True(t, progress.IsActiveOnDate(h, sun))
		assert.False(t, progress.IsActiveOnDate(h, mon))
	})

	t.Run("Days of month", func(t *testing.T) {
		h := habit("h1", domain.NewDaysOfMonthSchedule([]int{1, 15}))
		assert.True(t, progress.IsActiveOnDate(h, calendar.Date(2024, time.May, 15)))
		assert.False(t, progress.IsActiveOnDate(h, calendar.Date(2024, time.May, 16)))

		unsorted := habit("h2", domain.DaysOfMonthSchedule{Days: []int{15, 1}})
		assert.True(t, progress.IsActiveOnDate(unsorted, calendar.Date(2024, time.May, 1)))
	})

	t.Run("Quota and missing schedules are always active", func(t *testing.T) {
		d := calendar.Date(2024, time.May, 16)
		assert.True(t, progress.IsActiveOnDate(habit("q", domain.NewQuotaSchedule(0)), d))
		assert.True(t, progress.IsActiveOnDate(habit("nil", nil), d))
	})
}

func TestActiveDays(t *testing.T) {
	t.Run("Concrete set for weekday habits", func(t *testing.T) {
		set := progress.ActiveDays(habit("h1", domain.WorkWeek()), 2024, time.January)
		assert.False(t, set.Quota)
		assert.Equal(t, 23, set.Len())
		assert.True(t, set.Has(1))
		assert.False(t, set.Has(6))
	})

	t.Run("Days beyond the month length are never active", func(t *testing.T) {
		set := progress.ActiveDays(habit("h1", domain.NewDaysOfMonthSchedule([]int{29, 30, 31})), 2023, time.February)
		assert.Equal(t, 0, set.Len())
	})

	t.Run("Quota sentinel", func(t *testing.T) {
		set := progress.ActiveDays(habit("q", domain.NewQuotaSchedule(2)), 2024, time.January)
		assert.True(t, set.Quota)
		assert.True(t, set.Has(17))
	})
}

func TestMonthProgress_Scheduled(t *testing.T) {
	aprilWeeks := calendar.MonthWeeks(2024, time.April)

	tests := []struct {
		name     string
		schedule domain.Schedule
		row      domain.DayMarks
		year     int
		month    time.Month
		want     int
	}{
		{
			name:     "Days of month 1 and 15 with day 1 done",
			schedule: domain.NewDaysOfMonthSchedule([]int{1, 15}),
			row:      marks(1),
			year:     2024, month: time.April,
			want: 50,
		},
		{
			name:     "Marks on inactive days are ignored",
			schedule: domain.NewDaysOfMonthSchedule([]int{1, 15}),
			row:      marks(1, 2, 3),
			year:     2024, month: time.April,
			want: 50,
		},
		{
			name:     "Round half up on 12.5",
			schedule: domain.NewDaysOfMonthSchedule([]int{1, 2, 3, 4, 5, 6, 7, 8}),
			row:      marks(1),
			year:     2024, month: time.April,
			want: 13,
		},
		{
			name:     "Round half up on 37.5",
			schedule: domain.NewDaysOfMonthSchedule([]int{1, 2, 3, 4, 5, 6, 7, 8}),
			row:      marks(1, 2, 3),
			year:     2024, month: time.April,
			want: 38,
		},
		{
			name:     "Work week rounds to nearest",
			schedule: domain.WorkWeek(),
			row:      marks(1, 2, 3, 4, 5, 8, 9, 10, 11, 12),
			year:     2024, month: time.January,
			want: 43,
		},
		{
			name:     "No active days yields zero",
			schedule: domain.NewDaysOfMonthSchedule(nil),
			row:      marks(1, 2),
			year:     2024, month: time.April,
			want: 0,
		},
		{
			name:     "Everything done",
			schedule: domain.EveryDay(),
			row:      marks(1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16, 17, 18, 19, 20, 21, 22, 23, 24, 25, 26, 27, 28, 29, 30),
			year:     2024, month: time.April,
			want: 100,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			weeks := aprilWeeks
			if tt.month != time.April {
				weeks = calendar.MonthWeeks(tt.year, tt.month)
			}
			got := progress.MonthProgress(habit("h", tt.schedule), tt.row, tt.year, tt.month, weeks)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMonthProgress_Quota(t *testing.T) {
	// March 2021 starts on a Monday and spans exactly five Monday weeks.
	weeks := calendar.MonthWeeks(2021, time.March)
	require.Len(t, weeks, 5)

	t.Run("Four full weeks out of five", func(t *testing.T) {
		h := habit("q", domain.NewQuotaSchedule(3))
		row := marks(1, 2, 3, 8, 9, 10, 15, 16, 17, 22, 23, 24)
		assert.Equal(t, 80, progress.MonthProgress(h, row, 2021, time.March, weeks))
	})

	t.Run("Over-completion in a week is capped", func(t *testing.T) {
		h := habit("q", domain.NewQuotaSchedule(3))
		row := marks(1, 2, 3, 4, 5, 6, 7)
		assert.Equal(t, 20, progress.MonthProgress(h, row, 2021, time.March, weeks))
	})

	t.Run("Zero target yields zero", func(t *testing.T) {
		h := habit("q", domain.NewQuotaSchedule(0))
		assert.Equal(t, 0, progress.MonthProgress(h, marks(1, 2), 2021, time.March, weeks))
	})

	t.Run("No weeks in view yields zero", func(t *testing.T) {
		h := habit("q", domain.NewQuotaSchedule(3))
		assert.Equal(t, 0, progress.MonthProgress(h, marks(1, 2), 2021, time.March, nil))
	})

	t.Run("Only days inside the month count for partial weeks", func(t *testing.T) {
		// September 2024: the first week is Aug 26 - Sep 1, only Sep 1 belongs to the month.
		sepWeeks := calendar.MonthWeeks(2024, time.September)
		h := habit("q", domain.NewQuotaSchedule(1))
		row := marks(1, 2, 9, 16, 23, 30)
		assert.Equal(t, 100, progress.MonthProgress(h, row, 2024, time.September, sepWeeks))
	})

	t.Run("Percent never grows when the target grows", func(t *testing.T) {
		row := marks(1, 2, 3, 4, 9, 10, 16, 29)
		prev := 101
		for target := 1; target <= 7; target++ {
			got := progress.MonthProgress(habit("q", domain.NewQuotaSchedule(target)), row, 2021, time.March, weeks)
			assert.LessOrEqual(t, got, prev, "target %d", target)
			prev = got
		}
	})

	t.Run("Idempotent", func(t *testing.T) {
		h := habit("q", domain.NewQuotaSchedule(2))
		row := marks(1, 5, 9)
		first := progress.MonthProgress(h, row, 2021, time.March, weeks)
		assert.Equal(t, first, progress.MonthProgress(h, row, 2021, time.March, weeks))
	})
}

func TestComputeHabitProgress(t *testing.T) {
	habits := []domain.Habit{
		habit("a", domain.NewDaysOfMonthSchedule([]int{1, 15})),
		habit("b", domain.EveryDay()),
	}
	checks := domain.MonthChecks{"a": marks(1)}

	got := progress.ComputeHabitProgress(habits, checks, 2024, time.April)
	assert.Equal(t, []progress.HabitProgress{{HabitID: "a", Percent: 50}, {HabitID: "b", Percent: 0}}, got)
}
