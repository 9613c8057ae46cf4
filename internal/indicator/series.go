// Package indicator provides deterministic technical indicator calculations
// over bar data.
//
// Every function maps an input series to a Series of equal length. Entries
// inside an indicator's warmup window are "undefined", represented as NaN
// rather than a computed zero. Rolling windows follow the usual convention:
// a window that contains an undefined input yields an undefined output.
package indicator

import (
	"math"

	"tradesim/internal/model"
)

// Series is an indicator series aligned 1:1 with its source bars.
type Series []float64

// Defined reports whether the value at index i has left the warmup window.
func (s Series) Defined(i int) bool {
	return i >= 0 && i < len(s) && !math.IsNaN(s[i])
}

// Last returns the most recent value and whether it is defined.
func (s Series) Last() (float64, bool) {
	if len(s) == 0 {
		return math.NaN(), false
	}
	v := s[len(s)-1]
	return v, !math.IsNaN(v)
}

// undefined returns an all-NaN series of length n.
func undefined(n int) Series {
	s := make(Series, n)
	for i := range s {
		s[i] = math.NaN()
	}
	return s
}

// Closes extracts the close prices from a bar sequence.
func Closes(bars []model.Bar) []float64 {
	out := make([]float64, len(bars))
	for i := range bars {
		out[i] = bars[i].Close
	}
	return out
}

// Highs extracts the high prices from a bar sequence.
func Highs(bars []model.Bar) []float64 {
	out := make([]float64, len(bars))
	for i := range bars {
		out[i] = bars[i].High
	}
	return out
}

// Lows extracts the low prices from a bar sequence.
func Lows(bars []model.Bar) []float64 {
	out := make([]float64, len(bars))
	for i := range bars {
		out[i] = bars[i].Low
	}
	return out
}

// rollingMean computes the trailing arithmetic mean over a window of n values.
// Maintains a running sum and a count of NaN entries inside the window so the
// pass stays O(len(values)) regardless of n.
func rollingMean(values []float64, n int) Series {
	out := undefined(len(values))
	if n <= 0 || len(values) < n {
		return out
	}
	sum := 0.0
	nans := 0
	for i, v := range values {
		if math.IsNaN(v) {
			nans++
		} else {
			sum += v
		}
		if i >= n {
			old := values[i-n]
			if math.IsNaN(old) {
				nans--
			} else {
				sum -= old
			}
		}
		if i >= n-1 && nans == 0 {
			out[i] = sum / float64(n)
		}
	}
	return out
}

// rollingStd computes the trailing sample standard deviation (ddof=1) over a
// window of n values. Recomputed per window for numerical robustness; the
// window sizes used here are small.
func rollingStd(values []float64, n int) Series {
	out := undefined(len(values))
	if n <= 1 || len(values) < n {
		return out
	}
	for i := n - 1; i < len(values); i++ {
		window := values[i-n+1 : i+1]
		mean := 0.0
		ok := true
		for _, v := range window {
			if math.IsNaN(v) {
				ok = false
				break
			}
			mean += v
		}
		if !ok {
			continue
		}
		mean /= float64(n)
		var ss float64
		for _, v := range window {
			d := v - mean
			ss += d * d
		}
		out[i] = math.Sqrt(ss / float64(n-1))
	}
	return out
}

// rollingMax computes the trailing maximum over a window of n values.
func rollingMax(values []float64, n int) Series {
	return rollingExtreme(values, n, func(a, b float64) bool { return b > a })
}

// rollingMin computes the trailing minimum over a window of n values.
func rollingMin(values []float64, n int) Series {
	return rollingExtreme(values, n, func(a, b float64) bool { return b < a })
}

func rollingExtreme(values []float64, n int, better func(cur, cand float64) bool) Series {
	out := undefined(len(values))
	if n <= 0 || len(values) < n {
		return out
	}
	for i := n - 1; i < len(values); i++ {
		best := values[i-n+1]
		ok := !math.IsNaN(best)
		for _, v := range values[i-n+2 : i+1] {
			if math.IsNaN(v) {
				ok = false
				break
			}
			if better(best, v) {
				best = v
			}
		}
		if ok {
			out[i] = best
		}
	}
	return out
}

// diff returns values[i] - values[i-1]; index 0 is undefined.
func diff(values []float64) Series {
	out := undefined(len(values))
	for i := 1; i < len(values); i++ {
		out[i] = values[i] - values[i-1]
	}
	return out
}
