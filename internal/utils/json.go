package utils

import "math"

// Nullable returns nil for NaN or infinite values so they encode as JSON null.
func Nullable(f float64) *float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

// NullableSeries applies Nullable to every point
func NullableSeries(values []float64) []*float64 {
	out := make([]*float64, len(values))
	for i, v := range values {
		out[i] = Nullable(v)
	}
	return out
}
