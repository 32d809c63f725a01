package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/aristath/beam/internal/domain"
	"github.com/aristath/beam/internal/marketdata"
	"github.com/aristath/beam/pkg/formulas"
)

// TotalsSource returns daily totals for a range
type TotalsSource interface {
	Totals(ctx context.Context, start, end time.Time, currency string) ([]domain.DailyTotal, error)
}

// Lookback is the number of business days that must precede a range for
// every window to be defined on its first day.
func (p Params) Lookback() int {
	n := 0
	for _, w := range append([]int{
		p.RSIPeriod + 1,
		p.MACDSlow + p.MACDSignal,
		p.BollPeriod,
		p.VolWindow + 1,
		p.ZShortWindow,
		p.ZLongWindow,
	}, p.MAWindows...) {
		if w > n {
			n = w
		}
	}
	return n
}

// Load returns the totals of [start, end] preceded by Lookback business days
// of earlier totals, and the index of the first total inside the range.
// An empty range returns no totals and no lookback.
func Load(ctx context.Context, src TotalsSource, start, end time.Time, currency string, p Params) ([]domain.DailyTotal, int, error) {
	visible, err := src.Totals(ctx, start, end, currency)
	if err != nil {
		return nil, 0, err
	}
	n := p.Lookback()
	if len(visible) == 0 || n == 0 {
		return visible, 0, nil
	}

	first := visible[0].Date
	warm, err := src.Totals(ctx, marketdata.BusinessDaysBefore(first, n), first.AddDate(0, 0, -1), currency)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to load lookback totals: %w", err)
	}

	out := make([]domain.DailyTotal, 0, len(warm)+len(visible))
	for _, t := range warm {
		if t.Date.Before(first) {
			out = append(out, t)
		}
	}
	from := len(out)
	return append(out, visible...), from, nil
}

// Trim drops the first n points of every series. Latest is kept.
func (s IndicatorSet) Trim(n int) IndicatorSet {
	if n <= 0 {
		return s
	}
	if n > len(s.Dates) {
		n = len(s.Dates)
	}
	out := IndicatorSet{
		Dates:  s.Dates[n:],
		Values: tail(s.Values, n),
		MA:     make(map[int][]float64, len(s.MA)),
		RSI:    tail(s.RSI, n),
		MACD: formulas.MACDResult{
			MACD:      tail(s.MACD.MACD, n),
			Signal:    tail(s.MACD.Signal, n),
			Histogram: tail(s.MACD.Histogram, n),
		},
		Bollinger: formulas.Bands{
			Upper:  tail(s.Bollinger.Upper, n),
			Middle: tail(s.Bollinger.Middle, n),
			Lower:  tail(s.Bollinger.Lower, n),
		},
		Volatility: tail(s.Volatility, n),
		ZShort:     tail(s.ZShort, n),
		ZLong:      tail(s.ZLong, n),
		Latest:     s.Latest,
	}
	for k, v := range s.MA {
		out.MA[k] = tail(v, n)
	}
	return out
}

func tail(values []float64, n int) []float64 {
	if n >= len(values) {
		return []float64{}
	}
	return values[n:]
}
