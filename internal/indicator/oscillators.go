package indicator

import "math"

// StochasticResult holds the %K and %D lines of the stochastic oscillator.
type StochasticResult struct {
	K Series
	D Series
}

// Stochastic computes the stochastic oscillator:
//
//	%K = 100 * (close - lowestLow(k)) / (highestHigh(k) - lowestLow(k))
//	%D = SMA(%K, d)
//
// %K is undefined while the k-window is warming up or when the window range
// is zero.
func Stochastic(high, low, close []float64, kPeriod, dPeriod int) StochasticResult {
	hh := rollingMax(high, kPeriod)
	ll := rollingMin(low, kPeriod)

	k := undefined(len(close))
	for i := range close {
		if !hh.Defined(i) || !ll.Defined(i) || hh[i] == ll[i] {
			continue
		}
		k[i] = 100 * (close[i] - ll[i]) / (hh[i] - ll[i])
	}
	return StochasticResult{K: k, D: rollingMean(k, dPeriod)}
}

// trueRange computes the per-bar true range:
// max(high-low, |high-prevClose|, |low-prevClose|). The first bar falls back
// to high-low since there is no previous close.
func trueRange(high, low, close []float64) []float64 {
	tr := make([]float64, len(close))
	for i := range close {
		hl := high[i] - low[i]
		if i == 0 {
			tr[i] = hl
			continue
		}
		hc := math.Abs(high[i] - close[i-1])
		lc := math.Abs(low[i] - close[i-1])
		tr[i] = math.Max(hl, math.Max(hc, lc))
	}
	return tr
}

// ATR computes the Average True Range: the rolling mean of the true range
// over n bars. The first n-1 points are undefined.
func ATR(high, low, close []float64, n int) Series {
	return rollingMean(trueRange(high, low, close), n)
}

// WilliamsR computes Williams %R:
//
//	%R = -100 * (highestHigh(n) - close) / (highestHigh(n) - lowestLow(n))
//
// Undefined during warmup and when the window range is zero.
func WilliamsR(high, low, close []float64, n int) Series {
	hh := rollingMax(high, n)
	ll := rollingMin(low, n)

	out := undefined(len(close))
	for i := range close {
		if !hh.Defined(i) || !ll.Defined(i) || hh[i] == ll[i] {
			continue
		}
		out[i] = -100 * (hh[i] - close[i]) / (hh[i] - ll[i])
	}
	return out
}

// ADX computes the Average Directional Index from directional movement:
//
//	+DM = high diff when it dominates, else 0; -DM mirrored for lows
//	+DI = 100 * avg(+DM, n) / ATR(n); -DI analogous
//	DX  = 100 * |+DI - -DI| / (+DI + -DI)
//	ADX = avg(DX, n)
//
// Undefined until roughly two warmup windows have elapsed, and whenever
// +DI + -DI is zero.
func ADX(high, low, close []float64, n int) Series {
	atr := ATR(high, low, close, n)

	plusDM := make([]float64, len(close))
	minusDM := make([]float64, len(close))
	for i := 1; i < len(close); i++ {
		up := high[i] - high[i-1]
		down := low[i-1] - low[i]
		if up > down && up > 0 {
			plusDM[i] = up
		}
		if down > up && down > 0 {
			minusDM[i] = down
		}
	}

	avgPlus := rollingMean(plusDM, n)
	avgMinus := rollingMean(minusDM, n)

	dx := undefined(len(close))
	for i := range close {
		if !avgPlus.Defined(i) || !avgMinus.Defined(i) || !atr.Defined(i) || atr[i] == 0 {
			continue
		}
		plusDI := 100 * avgPlus[i] / atr[i]
		minusDI := 100 * avgMinus[i] / atr[i]
		if plusDI+minusDI == 0 {
			continue
		}
		dx[i] = 100 * math.Abs(plusDI-minusDI) / (plusDI + minusDI)
	}
	return rollingMean(dx, n)
}
