package formulas

import (
	"github.com/markcheno/go-talib"
)

// MACDResult holds the three MACD series aligned with the input.
type MACDResult struct {
	MACD      []float64 `json:"macd"`
	Signal    []float64 `json:"signal"`
	Histogram []float64 `json:"histogram"`
}

// MACD calculates Moving Average Convergence Divergence.
//
//	MACD      = EMA(fast) - EMA(slow)
//	Signal    = EMA(MACD, signal)
//	Histogram = MACD - Signal
//
// EMAs are seeded with an SMA, so MACD is defined from index slow-1 and the
// signal line from index slow+signal-2.
func MACD(values []float64, fast, slow, signal int) MACDResult {
	res := MACDResult{
		MACD:      nanSlice(len(values)),
		Signal:    nanSlice(len(values)),
		Histogram: nanSlice(len(values)),
	}
	if fast < 1 || slow < 1 || signal < 1 || fast > slow || len(values) < slow || hasNaN(values) {
		return res
	}

	emaFast := talib.Ema(values, fast)
	emaSlow := talib.Ema(values, slow)
	start := slow - 1
	for i := start; i < len(values); i++ {
		res.MACD[i] = emaFast[i] - emaSlow[i]
	}

	line := res.MACD[start:]
	if len(line) < signal {
		return res
	}
	sig := talib.Ema(line, signal)
	for j := signal - 1; j < len(line); j++ {
		i := start + j
		res.Signal[i] = sig[j]
		res.Histogram[i] = res.MACD[i] - sig[j]
	}
	return res
}
