package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"slices"
	"sort"
	"strconv"
)

var (
	ErrInvalidScheduleMode = errors.New("invalid schedule mode (must be weekdays, dom, or quota)")
	ErrInvalidWeekdays     = errors.New("invalid weekdays (must contain exactly 7 entries, Monday first)")
	ErrInvalidPreset       = errors.New("invalid schedule preset (must be everyday, workweek, or weekend)")
)

const (
	ScheduleModeWeekdays    = "weekdays"
	ScheduleModeDaysOfMonth = "dom"
	ScheduleModeQuota       = "quota"

	PresetEveryDay = "everyday"
	PresetWorkWeek = "workweek"
	PresetWeekend  = "weekend"

	MinMonthDay     = 1
	MaxMonthDay     = 31
	MaxTimesPerWeek = 7
)

// Schedule decides which days a habit is expected on. The variants are
// WeekdaysSchedule, DaysOfMonthSchedule and QuotaSchedule.
type Schedule interface {
	Mode() string
	isSchedule()
}

// WeekdaysSchedule is indexed Monday=0 ... Sunday=6.
type WeekdaysSchedule struct {
	Days [7]bool
}

type DaysOfMonthSchedule struct {
	Days []int
}

// QuotaSchedule makes every day tickable; completion is judged per Monday-aligned week.
type QuotaSchedule struct {
	TimesPerWeek int
}

func (WeekdaysSchedule) Mode() string    { return ScheduleModeWeekdays }
func (DaysOfMonthSchedule) Mode() string { return ScheduleModeDaysOfMonth }
func (QuotaSchedule) Mode() string       { return ScheduleModeQuota }

func (WeekdaysSchedule) isSchedule()    {}
func (DaysOfMonthSchedule) isSchedule() {}
func (QuotaSchedule) isSchedule()       {}

func EveryDay() WeekdaysSchedule {
	return WeekdaysSchedule{Days: [7]bool{true, true, true, true, true, true, true}}
}

func WorkWeek() WeekdaysSchedule {
	return WeekdaysSchedule{Days: [7]bool{true, true, true, true, true, false, false}}
}

func Weekend() WeekdaysSchedule {
	return WeekdaysSchedule{Days: [7]bool{false, false, false, false, false, true, true}}
}

// PresetSchedule resolves the shortcuts offered by the schedule editor.
func PresetSchedule(name string) (WeekdaysSchedule, error) {
	switch name {
	case PresetEveryDay:
		return EveryDay(), nil
	case PresetWorkWeek:
		return WorkWeek(), nil
	case PresetWeekend:
		return Weekend(), nil
	default:
		return WeekdaysSchedule{}, fmt.Errorf("%w: %q", ErrInvalidPreset, name)
	}
}

func NewWeekdaysSchedule(days []bool) (WeekdaysSchedule, error) {
	if len(days) != 7 {
		return WeekdaysSchedule{}, ErrInvalidWeekdays
	}
	var s WeekdaysSchedule
	copy(s.Days[:], days)
	return s, nil
}

// NewDaysOfMonthSchedule keeps values in [1,31], unique and ascending.
func NewDaysOfMonthSchedule(days []int) DaysOfMonthSchedule {
	return DaysOfMonthSchedule{Days: normalizeMonthDays(days)}
}

func NewQuotaSchedule(timesPerWeek int) QuotaSchedule {
	return QuotaSchedule{TimesPerWeek: min(max(timesPerWeek, 0), MaxTimesPerWeek)}
}

// Contains does not rely on Days being sorted; literals skip the constructor.
func (s DaysOfMonthSchedule) Contains(day int) bool {
	return slices.Contains(s.Days, day)
}

func normalizeMonthDays(days []int) []int {
	seen := make(map[int]bool, len(days))
	out := make([]int, 0, len(days))
	for _, d := range days {
		if d < MinMonthDay || d > MaxMonthDay || seen[d] {
			continue
		}
		seen[d] = true
		out = append(out, d)
	}
	sort.Ints(out)
	return out
}

var monthDaySeparator = regexp.MustCompile(`[ ,]+`)

// ParseDaysOfMonth reads a free-form list such as "1, 10 20". Tokens that are
// not numbers or fall outside [1,31] are ignored.
func ParseDaysOfMonth(input string) []int {
	var days []int
	for _, tok := range monthDaySeparator.Split(input, -1) {
		n, err := strconv.Atoi(tok)
		if err != nil {
			continue
		}
		days = append(days, n)
	}
	return normalizeMonthDays(days)
}

// ScheduleDoc is the stored/wire form of a Schedule. Preset and
// DaysOfMonthText are input shortcuts only; they are never stored.
type ScheduleDoc struct {
	Mode            string `json:"mode"`
	Preset          string `json:"preset,omitempty"`
	DaysOfWeek      []bool `json:"daysOfWeek,omitempty"`
	DaysOfMonth     []int  `json:"daysOfMonth,omitempty"`
	DaysOfMonthText string `json:"daysOfMonthText,omitempty"`
	TimesPerWeek    *int   `json:"timesPerWeek,omitempty"`
}

func ScheduleToDoc(s Schedule) ScheduleDoc {
	switch v := s.(type) {
	case WeekdaysSchedule:
		days := make([]bool, 7)
		copy(days, v.Days[:])
		return ScheduleDoc{Mode: ScheduleModeWeekdays, DaysOfWeek: days}
	case DaysOfMonthSchedule:
		days := v.Days
		if days == nil {
			days = []int{}
		}
		return ScheduleDoc{Mode: ScheduleModeDaysOfMonth, DaysOfMonth: days}
	case QuotaSchedule:
		n := v.TimesPerWeek
		return ScheduleDoc{Mode: ScheduleModeQuota, TimesPerWeek: &n}
	default:
		return ScheduleToDoc(EveryDay())
	}
}

// Strict converts a document for the write path: unknown modes and malformed
// weekday arrays are rejected, ranges are clamped.
func (d ScheduleDoc) Strict() (Schedule, error) {
	if d.Mode == "" && d.Preset != "" {
		return PresetSchedule(d.Preset)
	}

	switch d.Mode {
	case ScheduleModeWeekdays:
		if d.DaysOfWeek == nil {
			return EveryDay(), nil
		}
		return NewWeekdaysSchedule(d.DaysOfWeek)
	case ScheduleModeDaysOfMonth:
		if d.DaysOfMonth == nil && d.DaysOfMonthText != "" {
			return DaysOfMonthSchedule{Days: ParseDaysOfMonth(d.DaysOfMonthText)}, nil
		}
		return NewDaysOfMonthSchedule(d.DaysOfMonth), nil
	case ScheduleModeQuota:
		n := 0
		if d.TimesPerWeek != nil {
			n = *d.TimesPerWeek
		}
		return NewQuotaSchedule(n), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidScheduleMode, d.Mode)
	}
}

// Lenient converts a stored document for the read path. Anything that cannot
// be understood falls back to every day being active.
func (d ScheduleDoc) Lenient() Schedule {
	s, err := d.Strict()
	if err != nil {
		return EveryDay()
	}
	return s
}

func MarshalSchedule(s Schedule) ([]byte, error) {
	return json.Marshal(ScheduleToDoc(s))
}

// UnmarshalSchedule decodes leniently. Empty input or JSON null yields EveryDay.
func UnmarshalSchedule(data []byte) (Schedule, error) {
	if len(data) == 0 || string(data) == "null" {
		return EveryDay(), nil
	}
	var doc ScheduleDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode schedule: %w", err)
	}
	return doc.Lenient(), nil
}
