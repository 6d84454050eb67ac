package gpr

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// mean returns the arithmetic mean, or 0 for an empty slice.
func mean(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	return stat.Mean(data, nil)
}

// recencyWeights returns exp(linspace(0, 2, n)) * scale normalized to sum to 1.
// A zero scale yields all-zero weights.
func recencyWeights(n int, scale float64) []float64 {
	if n == 0 {
		return nil
	}
	w := make([]float64, n)
	if n > 1 {
		floats.Span(w, 0, 2)
	}
	for i, x := range w {
		w[i] = math.Exp(x) * scale
	}
	sum := floats.Sum(w)
	if sum == 0 {
		return w
	}
	floats.Scale(1/sum, w)
	return w
}

// minMax normalizes v into [0, 1] against [lo, hi]; a zero-width range yields 0.5.
func minMax(v, lo, hi float64) float64 {
	if hi <= lo {
		return 0.5
	}
	return (v - lo) / (hi - lo)
}

// bounds returns the minimum and maximum of data. data must be non-empty.
func bounds(data []float64) (lo, hi float64) {
	return floats.Min(data), floats.Max(data)
}

// linearNext fits y = a + b*x over x = 0..n-1 and evaluates it at x = n.
func linearNext(y []float64) float64 {
	x := make([]float64, len(y))
	floats.Span(x, 0, float64(len(y)-1))
	a, b := stat.LinearRegression(x, y, nil, false)
	return a + b*float64(len(y))
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
