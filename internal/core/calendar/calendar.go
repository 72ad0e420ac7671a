package calendar

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"
)

var (
	ErrInvalidMonthKey = errors.New("invalid month key (must be YYYY-M with a 0-based month)")
	ErrInvalidMonth    = errors.New("invalid month (must be YYYY-MM)")
)

const (
	DaysPerWeek = 7
	MonthLayout = "2006-01"
	DateLayout  = "2006-01-02"
)

// Date returns the calendar day as UTC midnight. Day arithmetic never runs in a
// local zone: where DST starts at midnight that midnight does not exist.
// Out of range days and months roll over the same way time.Date does.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// DayOf returns the calendar day t falls on in its own location.
func DayOf(t time.Time) time.Time {
	return Date(t.Year(), t.Month(), t.Day())
}

// DaysInMonth is computed as the last day of the month: day 0 of the following month.
func DaysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// WeekdayIndex maps a date to Monday=0 ... Sunday=6.
func WeekdayIndex(t time.Time) int {
	return (int(t.Weekday()) + 6) % DaysPerWeek
}

func StartOfMonth(t time.Time) time.Time {
	return Date(t.Year(), t.Month(), 1)
}

func EndOfMonth(t time.Time) time.Time {
	return Date(t.Year(), t.Month()+1, 0)
}

func AddDays(t time.Time, n int) time.Time {
	return t.AddDate(0, 0, n)
}

// StartOfWeek returns the Monday on or before the day of t.
func StartOfWeek(t time.Time) time.Time {
	day := DayOf(t)
	return AddDays(day, -WeekdayIndex(day))
}

func EndOfWeek(t time.Time) time.Time {
	return AddDays(StartOfWeek(t), DaysPerWeek-1)
}

func SameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// IsTodayAt reports whether the calendar day t is the day of now in now's location.
func IsTodayAt(t, now time.Time) bool {
	return SameDay(t, now)
}

func IsToday(t time.Time) bool {
	return IsTodayAt(t, time.Now())
}

// MonthWeeks lists the Monday-aligned week starts that overlap the month.
func MonthWeeks(year int, month time.Month) []time.Time {
	start := Date(year, month, 1)
	end := EndOfMonth(start)

	var weeks []time.Time
	for w := StartOfWeek(start); !w.After(end); w = AddDays(w, DaysPerWeek) {
		weeks = append(weeks, w)
	}
	return weeks
}

// MonthKey identifies one month of completion records.
type MonthKey struct {
	Year  int
	Month time.Month
}

func NewMonthKey(t time.Time) MonthKey {
	return MonthKey{Year: t.Year(), Month: t.Month()}
}

// String renders the storage form "{year}-{monthIndex}" where the index is 0-based.
func (k MonthKey) String() string {
	return fmt.Sprintf("%d-%d", k.Year, int(k.Month)-1)
}

func (k MonthKey) Days() int {
	return DaysInMonth(k.Year, k.Month)
}

func (k MonthKey) Start() time.Time {
	return Date(k.Year, k.Month, 1)
}

func (k MonthKey) Valid() bool {
	return k.Month >= time.January && k.Month <= time.December
}

// Compare orders keys chronologically.
func (k MonthKey) Compare(other MonthKey) int {
	switch {
	case k.Year < other.Year:
		return -1
	case k.Year > other.Year:
		return 1
	case k.Month < other.Month:
		return -1
	case k.Month > other.Month:
		return 1
	}
	return 0
}

// MarshalText lets month keys index JSON objects, e.g. cached year records.
func (k MonthKey) MarshalText() ([]byte, error) {
	if !k.Valid() {
		return nil, ErrInvalidMonthKey
	}
	return []byte(k.String()), nil
}

func (k *MonthKey) UnmarshalText(text []byte) error {
	parsed, err := ParseMonthKey(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

func ParseMonthKey(s string) (MonthKey, error) {
	yearStr, idxStr, ok := strings.Cut(strings.TrimSpace(s), "-")
	if !ok {
		return MonthKey{}, ErrInvalidMonthKey
	}

	year, err := strconv.Atoi(yearStr)
	if err != nil {
		return MonthKey{}, ErrInvalidMonthKey
	}
	idx, err := strconv.Atoi(idxStr)
	if err != nil || idx < 0 || idx > 11 {
		return MonthKey{}, ErrInvalidMonthKey
	}

	return MonthKey{Year: year, Month: time.Month(idx + 1)}, nil
}

// ParseMonth accepts the human form used by the API, e.g. "2024-02".
func ParseMonth(s string) (MonthKey, error) {
	t, err := time.Parse(MonthLayout, strings.TrimSpace(s))
	if err != nil {
		return MonthKey{}, ErrInvalidMonth
	}
	return NewMonthKey(t), nil
}

func YearMonths(year int) []MonthKey {
	keys := make([]MonthKey, 0, 12)
	for m := time.January; m <= time.December; m++ {
		keys = append(keys, MonthKey{Year: year, Month: m})
	}
	return keys
}

// YearDays memoizes the list of dates of a year. The table belongs to whoever
// creates it; callers share one instance explicitly. loc is the zone whose wall
// clock decides which day is today; the dates themselves are calendar days.
type YearDays struct {
	loc  *time.Location
	days map[int][]time.Time

	mu sync.RWMutex
}

func NewYearDays(loc *time.Location) *YearDays {
	if loc == nil {
		loc = time.Local
	}
	return &YearDays{
		loc:  loc,
		days: make(map[int][]time.Time),
	}
}

// Get returns the dates of year. The returned slice is shared and must not be modified.
func (y *YearDays) Get(year int) []time.Time {
	y.mu.RLock()
	days, ok := y.days[year]
	y.mu.RUnlock()
	if ok {
		return days
	}

	y.mu.Lock()
	defer y.mu.Unlock()

	if days, ok := y.days[year]; ok {
		return days
	}

	end := Date(year, time.December, 31)
	days = make([]time.Time, 0, 366)
	for d := Date(year, time.January, 1); !d.After(end); d = AddDays(d, 1) {
		days = append(days, d)
	}
	y.days[year] = days
	return days
}

func (y *YearDays) Location() *time.Location {
	return y.loc
}

func (y *YearDays) Len() int {
	y.mu.RLock()
	defer y.mu.RUnlock()
	return len(y.days)
}
