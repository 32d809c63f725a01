// Package formulas holds pure numeric functions over value series.
// Every series-returning function yields a slice aligned 1:1 with its input,
// with NaN marking points where the indicator is not yet defined.
package formulas

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// tradingDays annualizes daily statistics
const tradingDays = 252

// Mean returns the arithmetic mean, or NaN for an empty slice.
func Mean(data []float64) float64 {
	if len(data) == 0 {
		return math.NaN()
	}
	return stat.Mean(data, nil)
}

// StdDev returns the sample standard deviation, or NaN with fewer than two points.
func StdDev(data []float64) float64 {
	if len(data) < 2 {
		return math.NaN()
	}
	return stat.StdDev(data, nil)
}

// PercentReturns returns r[i] = v[i]/v[i-1] - 1. r[0] is NaN, as is any
// return whose previous value is zero or undefined.
func PercentReturns(values []float64) []float64 {
	out := nanSlice(len(values))
	for i := 1; i < len(values); i++ {
		prev := values[i-1]
		if prev == 0 || math.IsNaN(prev) || math.IsNaN(values[i]) {
			continue
		}
		out[i] = values[i]/prev - 1
	}
	return out
}

func nanSlice(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

func hasNaN(data []float64) bool {
	for _, v := range data {
		if math.IsNaN(v) {
			return true
		}
	}
	return false
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
