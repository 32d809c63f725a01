package portfolio

import (
	"sort"
)

// AnchorCategory is sized from the other categories rather than from the total
const AnchorCategory = "Minières"

// DefaultTargets are the category weights used when none are configured
func DefaultTargets() map[string]float64 {
	return map[string]float64{
		"Minières":  0.41,
		"Asie":      0.25,
		"Energie":   0.25,
		"Matériaux": 0.01,
		"Devises":   0.08,
		"Crypto":    0.00,
		"Autre":     0.00,
	}
}

// CategoryAllocation compares one category with its target.
// Percentages are in percent, Adjustment is target minus current in
// percentage points and AdjustmentValue is in the target currency.
type CategoryAllocation struct {
	Category        string  `json:"category"`
	Value           float64 `json:"value"`
	CurrentPct      float64 `json:"current_pct"`
	TargetPct       float64 `json:"target_pct"`
	Adjustment      float64 `json:"adjustment_pp"`
	AdjustmentValue float64 `json:"adjustment_value"`
}

// Allocation groups current values by category and compares them with targets.
//
// The value adjustment sizes a theoretical portfolio from the categories other
// than AnchorCategory: base = sum(values)/sum(targets) over those categories,
// and each category should hold target*base. When the other targets sum to
// zero the current total is the base.
func Allocation(rows []HoldingRow, targets map[string]float64) []CategoryAllocation {
	values := make(map[string]float64)
	var total float64
	for _, r := range rows {
		if !isFinite(r.CurrentValue) {
			continue
		}
		values[r.Category] += r.CurrentValue
		total += r.CurrentValue
	}

	var otherValues, otherTargets float64
	for cat, t := range targets {
		if cat == AnchorCategory {
			continue
		}
		otherValues += values[cat]
		otherTargets += t
	}
	base := total
	if otherTargets > 0 {
		base = otherValues / otherTargets
	}

	categories := make(map[string]bool)
	for c := range targets {
		categories[c] = true
	}
	for c := range values {
		categories[c] = true
	}

	out := make([]CategoryAllocation, 0, len(categories))
	for c := range categories {
		target := targets[c]
		current := 0.0
		if total > 0 {
			current = values[c] / total
		}

		a := CategoryAllocation{
			Category:   c,
			Value:      values[c],
			CurrentPct: current * 100,
			TargetPct:  target * 100,
			Adjustment: (target - current) * 100,
		}
		if base > 0 {
			a.AdjustmentValue = target*base - values[c]
		} else {
			a.AdjustmentValue = -values[c]
		}
		out = append(out, a)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].CurrentPct != out[j].CurrentPct {
			return out[i].CurrentPct > out[j].CurrentPct
		}
		return out[i].Category < out[j].Category
	})
	return out
}
