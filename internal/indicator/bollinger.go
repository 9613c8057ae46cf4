package indicator

// Bands holds the Bollinger band series. Width is the band width relative to
// the middle band, in percent.
type Bands struct {
	Upper  Series
	Middle Series
	Lower  Series
	Width  Series
}

// Bollinger computes Bollinger bands over a window of n values with k
// standard deviations:
//
//	middle = SMA(n)
//	upper  = middle + k*sigma(n)
//	lower  = middle - k*sigma(n)
//	width  = (upper-lower)/middle * 100
//
// sigma is the trailing sample standard deviation. The first n-1 points are
// undefined.
func Bollinger(values []float64, n int, k float64) Bands {
	middle := rollingMean(values, n)
	std := rollingStd(values, n)

	upper := undefined(len(values))
	lower := undefined(len(values))
	width := undefined(len(values))
	for i := range values {
		if !middle.Defined(i) || !std.Defined(i) {
			continue
		}
		upper[i] = middle[i] + k*std[i]
		lower[i] = middle[i] - k*std[i]
		if middle[i] != 0 {
			width[i] = (upper[i] - lower[i]) / middle[i] * 100
		}
	}
	return Bands{Upper: upper, Middle: middle, Lower: lower, Width: width}
}
