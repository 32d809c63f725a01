package formulas

import "math"

// Volatility returns the rolling standard deviation of percentage returns
// over window points, annualized with √252. The first defined point is at
// index window.
func Volatility(values []float64, window int) []float64 {
	returns := PercentReturns(values)
	out := nanSlice(len(values))
	if window < 2 {
		return out
	}
	scale := math.Sqrt(tradingDays)
	for i := window; i < len(values); i++ {
		w := returns[i-window+1 : i+1]
		if hasNaN(w) {
			continue
		}
		out[i] = StdDev(w) * scale
	}
	return out
}
