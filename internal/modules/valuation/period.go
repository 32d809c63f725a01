package valuation

import (
	"math"
	"strings"
	"time"

	"github.com/aristath/beam/internal/domain"
)

// Period presets accepted by ParsePeriod
const (
	Period1W  = "1W"
	Period1M  = "1M"
	Period3M  = "3M"
	Period6M  = "6M"
	Period1Y  = "1Y"
	Period5Y  = "5Y"
	Period10Y = "10Y"
	Period20Y = "20Y"
)

// DefaultPeriod is used for unknown or empty presets
const DefaultPeriod = Period1Y

// Periods lists the presets in display order
var Periods = []string{Period1W, Period1M, Period3M, Period6M, Period1Y, Period5Y, Period10Y, Period20Y}

// ParsePeriod returns the [start, end] days covered by a preset ending at now.
// Unknown presets fall back to one year.
func ParsePeriod(preset string, now time.Time) (time.Time, time.Time) {
	end := domain.Day(now)
	switch strings.ToUpper(strings.TrimSpace(preset)) {
	case Period1W:
		return end.AddDate(0, 0, -7), end
	case Period1M:
		return end.AddDate(0, 0, -30), end
	case Period3M:
		return end.AddDate(0, 0, -90), end
	case Period6M:
		return end.AddDate(0, 0, -180), end
	case Period5Y:
		return end.AddDate(-5, 0, 0), end
	case Period10Y:
		return end.AddDate(-10, 0, 0), end
	case Period20Y:
		return end.AddDate(-20, 0, 0), end
	default:
		return end.AddDate(0, 0, -365), end
	}
}

// CumulativePerformance returns (current/initial - 1) * 100 per day, relative
// to the first day. A zero or undefined initial value yields NaN throughout.
func CumulativePerformance(totals []domain.DailyTotal) []float64 {
	out := make([]float64, len(totals))
	if len(totals) == 0 {
		return out
	}
	initial := totals[0].Current
	for i, t := range totals {
		if initial == 0 || math.IsNaN(initial) {
			out[i] = math.NaN()
			continue
		}
		out[i] = (t.Current/initial - 1) * 100
	}
	return out
}

// Values extracts the current value series
func Values(totals []domain.DailyTotal) []float64 {
	out := make([]float64, len(totals))
	for i, t := range totals {
		out[i] = t.Current
	}
	return out
}
