package indicator

// MACDResult holds the MACD line, its signal line, and the histogram.
type MACDResult struct {
	Line      Series
	Signal    Series
	Histogram Series
}

// MACD computes EMA(fast) - EMA(slow), a signal line that is the EMA of that
// difference, and the histogram line - signal.
func MACD(values []float64, fast, slow, signal int) MACDResult {
	emaFast := EMA(values, fast)
	emaSlow := EMA(values, slow)

	line := undefined(len(values))
	for i := range values {
		if emaFast.Defined(i) && emaSlow.Defined(i) {
			line[i] = emaFast[i] - emaSlow[i]
		}
	}
	sig := emaSeries(line, signal)

	hist := undefined(len(values))
	for i := range values {
		if line.Defined(i) && sig.Defined(i) {
			hist[i] = line[i] - sig[i]
		}
	}
	return MACDResult{Line: line, Signal: sig, Histogram: hist}
}
