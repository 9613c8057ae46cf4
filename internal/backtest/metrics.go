package backtest

import (
	"math"
	"sort"

	"tradesim/internal/model"
)

// analyze fills the risk-adjusted metrics and trade analysis of a result
// from its equity curve and trade log. Ratios that would divide by zero
// resolve to a sentinel (+Inf or 0), never to a panic.
func analyze(r *Result, cfg Config) {
	rets := barReturns(r.EquityCurve)
	periods := float64(cfg.PeriodsPerYear)
	rfPerBar := cfg.RiskFreeRate / periods

	excess := make([]float64, len(rets))
	for i, v := range rets {
		excess[i] = v - rfPerBar
	}

	meanRet := mean(rets)
	r.AnnualReturn = meanRet * periods * 100
	r.Volatility = stddev(rets) * math.Sqrt(periods) * 100

	if sd := stddev(excess); sd > 0 {
		r.Sharpe = mean(excess) / sd * math.Sqrt(periods)
	}

	var downside []float64
	for _, v := range rets {
		if v < 0 {
			downside = append(downside, v)
		}
	}
	if sd := stddev(downside); sd > 0 {
		r.Sortino = mean(excess) / sd * math.Sqrt(periods)
	} else if mean(excess) > 0 {
		// No downside observed: infinitely good by construction.
		r.Sortino = math.Inf(1)
	}

	annual := meanRet * periods
	switch {
	case r.MaxDrawdown > 0:
		r.Calmar = annual / (r.MaxDrawdown / 100)
	case annual > 0:
		r.Calmar = math.Inf(1)
	}

	if len(rets) > 0 {
		r.VaR95 = percentile(rets, 5) * 100
	}
	r.MaxConsecutiveLosses = maxConsecutiveLosses(rets)
	r.TradeAnalysis = analyzeTrades(r.Trades)
}

// barReturns computes per-bar simple returns from the equity curve.
func barReturns(curve []model.EquityPoint) []float64 {
	if len(curve) < 2 {
		return nil
	}
	out := make([]float64, 0, len(curve)-1)
	for i := 1; i < len(curve); i++ {
		prev := curve[i-1].Equity
		if prev == 0 {
			out = append(out, 0)
			continue
		}
		out = append(out, (curve[i].Equity-prev)/prev)
	}
	return out
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// stddev is the sample standard deviation (ddof=1).
func stddev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	m := mean(values)
	var ss float64
	for _, v := range values {
		d := v - m
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(values)-1))
}

// percentile computes the q-th percentile with linear interpolation between
// the two closest ranks.
func percentile(values []float64, q float64) float64 {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	rank := q / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	if lo >= len(sorted)-1 {
		return sorted[len(sorted)-1]
	}
	frac := rank - float64(lo)
	return sorted[lo] + frac*(sorted[lo+1]-sorted[lo])
}

// maxConsecutiveLosses returns the longest run of strictly negative returns.
func maxConsecutiveLosses(rets []float64) int {
	longest, streak := 0, 0
	for _, v := range rets {
		if v < 0 {
			streak++
			if streak > longest {
				longest = streak
			}
		} else {
			streak = 0
		}
	}
	return longest
}

// analyzeTrades pairs the i-th buy with the i-th sell to compute round-trip
// statistics. Pairs where the sell does not follow the buy are skipped.
func analyzeTrades(trades []model.Trade) TradeAnalysis {
	var buys, sells []model.Trade
	for _, t := range trades {
		switch t.Side {
		case model.ActionBuy:
			buys = append(buys, t)
		case model.ActionSell:
			sells = append(sells, t)
		}
	}

	n := len(buys)
	if len(sells) < n {
		n = len(sells)
	}
	var rets []float64
	var durations []float64
	for i := 0; i < n; i++ {
		if !sells[i].Timestamp.After(buys[i].Timestamp) {
			continue
		}
		rets = append(rets, (sells[i].Price-buys[i].Price)/buys[i].Price)
		durations = append(durations, sells[i].Timestamp.Sub(buys[i].Timestamp).Hours()/24)
	}
	if len(rets) == 0 {
		return TradeAnalysis{}
	}

	var wins, losses []float64
	maxWin, maxLoss := rets[0], rets[0]
	for _, v := range rets {
		if v > 0 {
			wins = append(wins, v)
		} else if v < 0 {
			losses = append(losses, v)
		}
		if v > maxWin {
			maxWin = v
		}
		if v < maxLoss {
			maxLoss = v
		}
	}

	profitFactor := math.Inf(1)
	if lossSum := sum(losses); lossSum != 0 {
		profitFactor = math.Abs(sum(wins) / lossSum)
	}

	return TradeAnalysis{
		TotalTrades:   len(rets),
		WinningTrades: len(wins),
		LosingTrades:  len(losses),
		WinRate:       float64(len(wins)) / float64(len(rets)) * 100,
		AvgReturn:     mean(rets) * 100,
		AvgWinReturn:  mean(wins) * 100,
		AvgLossReturn: mean(losses) * 100,
		MaxWin:        maxWin * 100,
		MaxLoss:       maxLoss * 100,
		ProfitFactor:  profitFactor,
		AvgDuration:   mean(durations),
	}
}

func sum(values []float64) float64 {
	s := 0.0
	for _, v := range values {
		s += v
	}
	return s
}
