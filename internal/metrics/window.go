package metrics

import "math"

// Rolling applies reduce to a trailing window over values, assigning each
// window's result to its final sample so the output stays index-aligned
// with the input. The first window-1 results use a shrinking window rather
// than being dropped.
//
// All four raw signals are windowed reductions; keeping them on one helper
// keeps the boundary behaviour identical across signals.
func Rolling(values []float64, window int, reduce func(win []float64) float64) []float64 {
	if window < 1 {
		window = 1
	}
	out := make([]float64, len(values))
	for i := range values {
		start := i - window + 1
		if start < 0 {
			start = 0
		}
		out[i] = sanitize(reduce(values[start : i+1]))
	}
	return out
}

// RollingPair is Rolling over two aligned inputs (e.g. a signal and speed).
func RollingPair(a, b []float64, window int, reduce func(aw, bw []float64) float64) []float64 {
	if window < 1 {
		window = 1
	}
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		start := i - window + 1
		if start < 0 {
			start = 0
		}
		out[i] = sanitize(reduce(a[start:i+1], b[start:i+1]))
	}
	return out
}

// sanitize replaces the NaN/Inf a degenerate window can produce with 0 so
// non-finite values never propagate into the index model.
func sanitize(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// diff returns the per-sample first difference with a leading 0, preserving
// series length.
func diff(values []float64) []float64 {
	out := make([]float64, len(values))
	for i := 1; i < len(values); i++ {
		out[i] = values[i] - values[i-1]
	}
	return out
}
