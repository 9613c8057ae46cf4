package indicator

import "math"

// RSI computes the Relative Strength Index over trailing n price diffs:
//
//	RS  = avg(gain, n) / avg(loss, n)
//	RSI = 100 - 100/(1+RS)
//
// Averages are simple rolling means of the gain/loss components. The first n
// points are undefined (n diffs require n+1 prices). When the trailing loss
// average is zero RS is undefined and the point stays NaN rather than
// dividing by zero.
func RSI(values []float64, n int) Series {
	out := undefined(len(values))
	if n <= 0 || len(values) <= n {
		return out
	}
	gains := make([]float64, len(values))
	losses := make([]float64, len(values))
	gains[0], losses[0] = math.NaN(), math.NaN()
	for i := 1; i < len(values); i++ {
		d := values[i] - values[i-1]
		if d > 0 {
			gains[i] = d
		} else {
			losses[i] = -d
		}
	}
	avgGain := rollingMean(gains, n)
	avgLoss := rollingMean(losses, n)
	for i := range values {
		if !avgGain.Defined(i) || !avgLoss.Defined(i) || avgLoss[i] == 0 {
			continue
		}
		rs := avgGain[i] / avgLoss[i]
		out[i] = 100 - 100/(1+rs)
	}
	return out
}
