package indicator

// SMA computes the trailing arithmetic mean of the last n values.
// The first n-1 points are undefined.
func SMA(values []float64, n int) Series {
	return rollingMean(values, n)
}

// EMA computes the exponentially weighted mean with smoothing factor
// alpha = 2/(n+1), following the recursive recurrence
//
//	EMA_t = alpha*x_t + (1-alpha)*EMA_{t-1}
//
// seeded from the first observation, so every point is defined.
func EMA(values []float64, n int) Series {
	out := undefined(len(values))
	if n <= 0 || len(values) == 0 {
		return out
	}
	alpha := 2.0 / float64(n+1)
	out[0] = values[0]
	for i := 1; i < len(values); i++ {
		out[i] = alpha*values[i] + (1-alpha)*out[i-1]
	}
	return out
}

// emaSeries applies the same recurrence to a series that may carry undefined
// leading entries (e.g. a MACD line): the recurrence seeds from the first
// defined value.
func emaSeries(values Series, n int) Series {
	out := undefined(len(values))
	if n <= 0 {
		return out
	}
	alpha := 2.0 / float64(n+1)
	seeded := false
	prev := 0.0
	for i, v := range values {
		if !values.Defined(i) {
			continue
		}
		if !seeded {
			prev = v
			seeded = true
		} else {
			prev = alpha*v + (1-alpha)*prev
		}
		out[i] = prev
	}
	return out
}
