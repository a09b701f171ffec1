package backtest

// Sequence is a monotonically increasing, upper-bounded series used as the
// extra profit margin for consecutive rising sells.
//
// The values follow the quadratic through (0, start), (1, start+firstDelta)
// and (n-1, end). Absolute increments grow while relative increments shrink.
// Indexes at or past n-1 saturate at end.
type Sequence struct {
	values []float64
}

// NewSequence builds a sequence of n values. n must be at least 3 and the
// resulting values must not decrease.
func NewSequence(n int, start, firstDelta, end float64) (*Sequence, error) {
	if n < 3 {
		return nil, configError("sequence length must be at least 3, got %d", n)
	}
	if !finite(start) || !finite(firstDelta) || !finite(end) {
		return nil, configError("sequence bounds must be finite")
	}

	last := float64(n - 1)
	a := (end - start - firstDelta*last) / (last * (last - 1))
	b := firstDelta - a

	values := make([]float64, n)
	for i := range values {
		x := float64(i)
		values[i] = a*x*x + b*x + start
	}
	values[0] = start
	values[1] = start + firstDelta
	values[n-1] = end

	for i := 1; i < n; i++ {
		if values[i] < values[i-1] {
			return nil, configError(
				"sequence from %g to %g with first step %g over %d steps is not increasing",
				start, end, firstDelta, n)
		}
	}

	return &Sequence{values: values}, nil
}

// At returns the k-th value; negative k yields the first value and k past
// the end yields the cap.
func (s *Sequence) At(k int) float64 {
	if k <= 0 {
		return s.values[0]
	}
	if k >= len(s.values) {
		return s.values[len(s.values)-1]
	}
	return s.values[k]
}
