package backtest

import "sort"

// MetricBest names the winning strategy for one comparison metric.
type MetricBest struct {
	Strategy string  `json:"strategy"`
	Value    float64 `json:"value"`
}

// Comparison ranks a set of backtest results against each other.
type Comparison struct {
	Strategies []string              `json:"strategies"`
	Best       map[string]MetricBest `json:"best_strategies"`
}

// Compare ranks results per metric. Drawdown is minimized; everything else
// is maximized. Results are visited in strategy-name order so ties resolve
// deterministically.
func Compare(results map[string]*Result) Comparison {
	names := make([]string, 0, len(results))
	for name := range results {
		names = append(names, name)
	}
	sort.Strings(names)

	cmp := Comparison{
		Strategies: names,
		Best:       make(map[string]MetricBest),
	}
	if len(names) == 0 {
		return cmp
	}

	metrics := []struct {
		name        string
		value       func(*Result) float64
		lowerBetter bool
	}{
		{"total_return", func(r *Result) float64 { return r.TotalReturn }, false},
		{"max_drawdown", func(r *Result) float64 { return r.MaxDrawdown }, true},
		{"sharpe_ratio", func(r *Result) float64 { return r.Sharpe }, false},
		{"win_rate", func(r *Result) float64 { return r.TradeAnalysis.WinRate }, false},
		{"volatility", func(r *Result) float64 { return r.Volatility }, true},
	}

	for _, m := range metrics {
		best := names[0]
		bestVal := m.value(results[best])
		for _, name := range names[1:] {
			v := m.value(results[name])
			if (m.lowerBetter && v < bestVal) || (!m.lowerBetter && v > bestVal) {
				best, bestVal = name, v
			}
		}
		cmp.Best[m.name] = MetricBest{Strategy: best, Value: bestVal}
	}
	return cmp
}
