package formulas

import "math"

// ZScore returns (v - rolling mean) / rolling std over window points.
// Partial windows are NaN. A zero std yields 0 so charts stay continuous.
func ZScore(values []float64, window int) []float64 {
	out := nanSlice(len(values))
	if window < 2 {
		return out
	}
	for i := window - 1; i < len(values); i++ {
		w := values[i-window+1 : i+1]
		if hasNaN(w) {
			continue
		}
		sd := StdDev(w)
		if sd == 0 || !isFinite(sd) {
			out[i] = 0
			continue
		}
		out[i] = (values[i] - Mean(w)) / sd
	}
	return out
}

// Last returns the last defined value of a series, or NaN.
func Last(values []float64) float64 {
	for i := len(values) - 1; i >= 0; i-- {
		if !math.IsNaN(values[i]) {
			return values[i]
		}
	}
	return math.NaN()
}
