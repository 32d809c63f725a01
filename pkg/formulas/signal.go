package formulas

// Signal is a discrete reading of trend strength
type Signal string

// Action is the recommendation attached to a Signal
type Action string

const (
	SignalBullish Signal = "Bullish"
	SignalBearish Signal = "Bearish"
	SignalNeutral Signal = "Neutral"

	ActionBuy  Action = "Buy"
	ActionSell Action = "Sell"
	ActionHold Action = "Hold"
)

// ClassifyZ maps the latest short- and long-window Z-scores to a signal.
// Undefined inputs are neutral.
func ClassifyZ(short, long float64) (Signal, Action) {
	switch {
	case short > 1 && long > 0:
		return SignalBullish, ActionBuy
	case short < -1 && long < 0:
		return SignalBearish, ActionSell
	default:
		return SignalNeutral, ActionHold
	}
}
