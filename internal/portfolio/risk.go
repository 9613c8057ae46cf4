package portfolio

import (
	"log"
	"sort"
	"time"

	"tradesim/internal/model"
)

// Limits defines the ledger's risk thresholds. Fractions are of portfolio
// value (MaxPositionSize, MaxDrawdown) or of entry price (StopLoss,
// TakeProfit).
type Limits struct {
	MaxPositions    int     `json:"max_positions"`
	MaxPositionSize float64 `json:"max_position_size"`
	MaxDrawdown     float64 `json:"max_drawdown"`
	StopLoss        float64 `json:"stop_loss"`
	TakeProfit      float64 `json:"take_profit"`
}

// DefaultLimits returns conservative defaults.
func DefaultLimits() Limits {
	return Limits{
		MaxPositions:    10,
		MaxPositionSize: 0.20,
		MaxDrawdown:     0.15,
		StopLoss:        0.05,
		TakeProfit:      0.15,
	}
}

// Limits returns the configured risk limits.
func (p *Portfolio) Limits() Limits { return p.limits }

// RiskReport is the outcome of a risk-limit sweep.
type RiskReport struct {
	DrawdownExceeded bool     `json:"drawdown_exceeded"`
	Drawdown         float64  `json:"drawdown"`
	Closed           []string `json:"closed,omitempty"`
}

// CheckRiskLimits runs a risk sweep independent of signal generation: it
// compares the current drawdown from the historical peak against the limit
// and force-closes any position past its stop-loss or take-profit threshold.
// Positions are checked in symbol order so sweeps are deterministic.
func (p *Portfolio) CheckRiskLimits(prices map[string]float64, commission float64, ts time.Time) RiskReport {
	var report RiskReport

	p.mu.RLock()
	value := p.totalValueLocked(prices)
	peak := 0.0
	for _, rec := range p.history {
		if rec.PortfolioValue > peak {
			peak = rec.PortfolioValue
		}
	}
	type breach struct {
		symbol string
		price  float64
		reason string
	}
	var breaches []breach
	for _, symbol := range sortedPositionKeys(p.positions) {
		pos := p.positions[symbol]
		price := pos.LastPrice
		if v, ok := prices[symbol]; ok {
			price = v
		}
		change := (price - pos.EntryPrice) / pos.EntryPrice
		switch {
		case change <= -p.limits.StopLoss:
			breaches = append(breaches, breach{symbol, price, model.ReasonStopLoss})
		case change >= p.limits.TakeProfit:
			breaches = append(breaches, breach{symbol, price, model.ReasonTakeProfit})
		}
	}
	p.mu.RUnlock()

	if peak > 0 {
		report.Drawdown = (peak - value) / peak
		if report.Drawdown > p.limits.MaxDrawdown {
			report.DrawdownExceeded = true
			log.Printf("[risk] max drawdown exceeded: %.2f%% > %.2f%%",
				report.Drawdown*100, p.limits.MaxDrawdown*100)
		}
	}

	for _, b := range breaches {
		log.Printf("[risk] %s triggered for %s at %.2f", b.reason, b.symbol, b.price)
		if err := p.RemovePosition(b.symbol, 0, b.price, commission, ts, b.reason); err != nil {
			log.Printf("[risk] force close %s failed: %v", b.symbol, err)
			continue
		}
		report.Closed = append(report.Closed, b.symbol)
	}
	return report
}

func sortedPositionKeys(m map[string]*Position) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
