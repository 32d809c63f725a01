package formulas

import (
	"github.com/markcheno/go-talib"
)

// Bands holds Bollinger band series aligned with the input.
type Bands struct {
	Upper  []float64 `json:"upper"`
	Middle []float64 `json:"middle"`
	Lower  []float64 `json:"lower"`
}

// BollingerBands calculates SMA(period) ± mult × rolling standard deviation.
// Points before index period-1 are NaN.
func BollingerBands(values []float64, period int, mult float64) Bands {
	b := Bands{
		Upper:  nanSlice(len(values)),
		Middle: nanSlice(len(values)),
		Lower:  nanSlice(len(values)),
	}
	if period < 2 || len(values) < period || hasNaN(values) {
		return b
	}

	// MAType 0 = SMA
	upper, middle, lower := talib.BBands(values, period, mult, mult, 0)
	for i := period - 1; i < len(values); i++ {
		b.Upper[i] = upper[i]
		b.Middle[i] = middle[i]
		b.Lower[i] = lower[i]
	}
	return b
}
