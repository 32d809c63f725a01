package formulas

// MovingAverage returns the trailing mean over k points. The first k-1
// points average everything seen so far, so the output has no warm-up gap.
func MovingAverage(values []float64, k int) []float64 {
	if k < 1 {
		k = 1
	}
	out := make([]float64, len(values))
	for i := range values {
		from := i - k + 1
		if from < 0 {
			from = 0
		}
		out[i] = Mean(values[from : i+1])
	}
	return out
}
