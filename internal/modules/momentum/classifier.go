// Package momentum classifies per-asset momentum from weekly closes.
package momentum

import (
	"math"

	"github.com/aristath/beam/pkg/formulas"
)

const (
	// MAWindow is the moving-average window in weeks
	MAWindow = 39
	// ZWindow is the window of the momentum Z-score
	ZWindow = 10
)

// Status tells whether a Result carries numbers
type Status string

const (
	StatusOK               Status = "ok"
	StatusInsufficientData Status = "insufficient_data"
	StatusUndefined        Status = "undefined"
)

// Result is the momentum reading of one asset
type Result struct {
	Ticker        string
	Status        Status
	LastPrice     float64
	MomentumPct   float64
	Z             float64
	Signal        string
	Action        string
	Justification string
}

// Classify reads weekly closes (oldest first).
//
//	MA39     = expanding-then-trailing mean over 39 weeks
//	Momentum = Price/MA39 - 1
//	Z        = (Momentum - mean10(Momentum)) / std10(Momentum)
//
// Fewer than 39 closes yield StatusInsufficientData. A flat momentum window
// has no defined Z and yields StatusUndefined with the price and momentum set.
func Classify(prices []float64, strategy Strategy) Result {
	res := Result{
		Status:      StatusInsufficientData,
		LastPrice:   math.NaN(),
		MomentumPct: math.NaN(),
		Z:           math.NaN(),
	}
	if len(prices) < MAWindow {
		return res
	}

	ma := formulas.MovingAverage(prices, MAWindow)
	momentum := make([]float64, len(prices))
	for i, p := range prices {
		momentum[i] = p/ma[i] - 1
	}

	last := len(prices) - 1
	res.LastPrice = prices[last]
	res.MomentumPct = momentum[last] * 100
	res.Status = StatusUndefined

	window := momentum[len(momentum)-ZWindow:]
	sd := formulas.StdDev(window)
	z := (momentum[last] - formulas.Mean(window)) / sd
	if sd == 0 || math.IsNaN(z) || math.IsInf(z, 0) {
		return res
	}

	v := strategy.Classify(z, momentum[last])
	res.Status = StatusOK
	res.Z = z
	res.Signal = v.Signal
	res.Action = v.Action
	res.Justification = v.Justification
	return res
}
