package progress

import (
	"time"

	"github.com/comitanigiacomo/kanso-habits/internal/core/calendar"
	"github.com/comitanigiacomo/kanso-habits/internal/core/domain"
)

type Intensity string

const (
	IntensityNone   Intensity = "none"
	IntensityEmpty  Intensity = "empty"
	IntensityLow    Intensity = "low"
	IntensityMedium Intensity = "medium"
	IntensityHigh   Intensity = "high"
	IntensityFull   Intensity = "full"
)

// IntensityFor buckets a done/active ratio. A nil ratio means no habit was active.
func IntensityFor(ratio *float64) Intensity {
	switch {
	case ratio == nil:
		return IntensityNone
	case *ratio == 0:
		return IntensityEmpty
	case *ratio < 0.25:
		return IntensityLow
	case *ratio < 0.5:
		return IntensityMedium
	case *ratio < 0.75:
		return IntensityHigh
	default:
		return IntensityFull
	}
}

type HeatmapDay struct {
	Date      string    `json:"date"`
	Active    int       `json:"active"`
	Done      int       `json:"done"`
	Ratio     *float64  `json:"ratio"`
	Intensity Intensity `json:"intensity"`
}

// YearHeatmap evaluates every day of the year against the month records it
// belongs to. Months missing from checksByMonth count as having no marks.
func YearHeatmap(habits []domain.Habit, checksByMonth map[calendar.MonthKey]domain.MonthChecks, year int, days *calendar.YearDays) []HeatmapDay {
	dates := days.Get(year)
	out := make([]HeatmapDay, 0, len(dates))

	for _, d := range dates {
		checks := checksByMonth[calendar.NewMonthKey(d)]

		cell := HeatmapDay{Date: d.Format(calendar.DateLayout)}
		for _, h := range habits {
			if !IsActiveOnDate(h, d) {
				continue
			}
			cell.Active++
			if checks.Done(h.ID, d.Day()) {
				cell.Done++
			}
		}

		if cell.Active > 0 {
			r := float64(cell.Done) / float64(cell.Active)
			cell.Ratio = &r
		}
		cell.Intensity = IntensityFor(cell.Ratio)
		out = append(out, cell)
	}
	return out
}

// QuarterBlock is one block of the compact heatmap layout.
type QuarterBlock struct {
	Months []time.Month `json:"months"`
	Start  string       `json:"start"`
	End    string       `json:"end"`
	Weeks  []string     `json:"weeks"`
}

// QuarterBlocks splits the year into three blocks of four months, each with
// its Monday-aligned week starts.
func QuarterBlocks(year int) []QuarterBlock {
	blocks := make([]QuarterBlock, 0, 3)
	for first := time.January; first <= time.September; first += 4 {
		start := calendar.Date(year, first, 1)
		end := calendar.Date(year, first+4, 0)

		b := QuarterBlock{
			Months: []time.Month{first, first + 1, first + 2, first + 3},
			Start:  start.Format(calendar.DateLayout),
			End:    end.Format(calendar.DateLayout),
		}
		for w := calendar.StartOfWeek(start); !w.After(end); w = calendar.AddDays(w, calendar.DaysPerWeek) {
			b.Weeks = append(b.Weeks, w.Format(calendar.DateLayout))
		}
		blocks = append(blocks, b)
	}
	return blocks
}
