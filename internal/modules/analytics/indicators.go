// Package analytics derives technical indicators from the reconstructed
// portfolio value series.
package analytics

import (
	"time"

	"github.com/aristath/beam/internal/domain"
	"github.com/aristath/beam/pkg/formulas"
)

// Params configures indicator windows
type Params struct {
	MAWindows    []int
	RSIPeriod    int
	MACDFast     int
	MACDSlow     int
	MACDSignal   int
	BollPeriod   int
	BollMult     float64
	VolWindow    int
	ZShortWindow int
	ZLongWindow  int
}

// DefaultParams returns the standard dashboard windows
func DefaultParams() Params {
	return Params{
		MAWindows:    []int{20, 50, 200},
		RSIPeriod:    14,
		MACDFast:     12,
		MACDSlow:     26,
		MACDSignal:   9,
		BollPeriod:   20,
		BollMult:     2,
		VolWindow:    20,
		ZShortWindow: 70,
		ZLongWindow:  756,
	}
}

// LatestSignal is the discrete reading of the last Z-scores
type LatestSignal struct {
	ZShort float64          `json:"z_short"`
	ZLong  float64          `json:"z_long"`
	Signal formulas.Signal `json:"signal"`
	Action formulas.Action `json:"action"`
}

// IndicatorSet holds every derived series aligned 1:1 with Dates
type IndicatorSet struct {
	Dates      []time.Time
	Values     []float64
	MA         map[int][]float64
	RSI        []float64
	MACD       formulas.MACDResult
	Bollinger  formulas.Bands
	Volatility []float64
	ZShort     []float64
	ZLong      []float64
	Latest     LatestSignal
}

// Compute derives all indicators from the current value of each daily total.
func Compute(totals []domain.DailyTotal, p Params) IndicatorSet {
	dates := make([]time.Time, len(totals))
	values := make([]float64, len(totals))
	for i, t := range totals {
		dates[i] = t.Date
		values[i] = t.Current
	}

	set := IndicatorSet{
		Dates:      dates,
		Values:     values,
		MA:         make(map[int][]float64, len(p.MAWindows)),
		RSI:        formulas.RSI(values, p.RSIPeriod),
		MACD:       formulas.MACD(values, p.MACDFast, p.MACDSlow, p.MACDSignal),
		Bollinger:  formulas.BollingerBands(values, p.BollPeriod, p.BollMult),
		Volatility: formulas.Volatility(values, p.VolWindow),
		ZShort:     formulas.ZScore(values, p.ZShortWindow),
		ZLong:      formulas.ZScore(values, p.ZLongWindow),
	}
	for _, k := range p.MAWindows {
		set.MA[k] = formulas.MovingAverage(values, k)
	}

	zs, zl := formulas.Last(set.ZShort), formulas.Last(set.ZLong)
	signal, action := formulas.ClassifyZ(zs, zl)
	set.Latest = LatestSignal{ZShort: zs, ZLong: zl, Signal: signal, Action: action}

	return set
}
