// Package portfolio implements the position ledger: cash, open positions,
// and the append-only trade log, guarded by risk limits.
//
// All mutation goes through AddPosition/RemovePosition under a single mutex,
// since cash is shared across symbols. Rejected orders leave the ledger
// unchanged.
package portfolio

import (
	"fmt"
	"log"
	"sync"
	"time"

	"tradesim/internal/model"
)

// Position is one symbol's open holding.
//
// EntryPrice is the cost-weighted average across fills; CostBasis is the
// total cash outlay backing the current shares, commission included. The two
// reconcile as CostBasis/Shares ~= EntryPrice on every fill.
type Position struct {
	Symbol     string    `json:"symbol"`
	Shares     float64   `json:"shares"`
	EntryPrice float64   `json:"entry_price"`
	CostBasis  float64   `json:"cost_basis"`
	LastPrice  float64   `json:"last_price"`
	LastUpdate time.Time `json:"last_update"`
}

// PositionInfo is a valuation snapshot of an open position.
type PositionInfo struct {
	Symbol           string  `json:"symbol"`
	Shares           float64 `json:"shares"`
	EntryPrice       float64 `json:"entry_price"`
	CurrentPrice     float64 `json:"current_price"`
	CostBasis        float64 `json:"cost_basis"`
	PositionValue    float64 `json:"position_value"`
	UnrealizedPnL    float64 `json:"unrealized_pnl"`
	UnrealizedReturn float64 `json:"unrealized_return"`
	Weight           float64 `json:"weight"`
}

// Summary is the portfolio-level snapshot exposed to the API layer.
type Summary struct {
	PortfolioValue float64                 `json:"portfolio_value"`
	Cash           float64                 `json:"cash"`
	TotalReturn    float64                 `json:"total_return"`
	PositionCount  int                     `json:"position_count"`
	Positions      map[string]PositionInfo `json:"positions"`
}

// PerformanceRecord is one point of the portfolio's performance history.
type PerformanceRecord struct {
	Timestamp      time.Time `json:"timestamp"`
	PortfolioValue float64   `json:"portfolio_value"`
	Cash           float64   `json:"cash"`
	TotalReturn    float64   `json:"total_return"`
	PositionCount  int       `json:"position_count"`
}

// Portfolio tracks cash and open positions across symbols.
type Portfolio struct {
	mu sync.RWMutex

	initialCapital float64
	cash           float64
	limits         Limits

	positions map[string]*Position
	trades    []model.Trade
	history   []PerformanceRecord
}

// New creates an empty portfolio with the given starting capital and limits.
func New(initialCapital float64, limits Limits) *Portfolio {
	return &Portfolio{
		initialCapital: initialCapital,
		cash:           initialCapital,
		limits:         limits,
		positions:      make(map[string]*Position),
	}
}

// Cash returns the current cash balance.
func (p *Portfolio) Cash() float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.cash
}

// InitialCapital returns the starting capital.
func (p *Portfolio) InitialCapital() float64 { return p.initialCapital }

// TotalValue returns cash plus the market value of all open positions.
// Symbols absent from prices are valued at their last known price.
func (p *Portfolio) TotalValue(prices map[string]float64) float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.totalValueLocked(prices)
}

func (p *Portfolio) totalValueLocked(prices map[string]float64) float64 {
	total := p.cash
	for symbol, pos := range p.positions {
		price := pos.LastPrice
		if v, ok := prices[symbol]; ok {
			price = v
		}
		total += pos.Shares * price
	}
	return total
}

// CanOpen reports whether a buy of qty shares at price would be accepted.
// Checks run in a fixed order: cash, then concentration, then position count.
func (p *Portfolio) CanOpen(symbol string, qty, price float64) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.canOpenLocked(symbol, qty, price)
}

func (p *Portfolio) canOpenLocked(symbol string, qty, price float64) error {
	value := qty * price
	if value > p.cash {
		return fmt.Errorf("%w: need %.2f, have %.2f", ErrInsufficientCash, value, p.cash)
	}
	if total := p.totalValueLocked(nil); total > 0 && value/total > p.limits.MaxPositionSize {
		return fmt.Errorf("%w: %.1f%% of portfolio, limit %.1f%%",
			ErrPositionTooLarge, value/total*100, p.limits.MaxPositionSize*100)
	}
	if _, held := p.positions[symbol]; !held && len(p.positions) >= p.limits.MaxPositions {
		return fmt.Errorf("%w: %d open", ErrMaxPositionsReached, len(p.positions))
	}
	return nil
}

// AddPosition buys qty shares of symbol at price, charging value*commission.
// Adding to an existing position re-prices the entry via cost-weighted
// average. The trade carries reason on the log (may be empty).
func (p *Portfolio) AddPosition(symbol string, qty, price, commission float64, ts time.Time, reason string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.canOpenLocked(symbol, qty, price); err != nil {
		return err
	}

	value := qty * price
	commCost := value * commission
	totalCost := value + commCost
	if totalCost > p.cash {
		return fmt.Errorf("%w: need %.2f with commission, have %.2f", ErrInsufficientCash, totalCost, p.cash)
	}

	p.cash -= totalCost

	if pos, ok := p.positions[symbol]; ok {
		newShares := pos.Shares + qty
		newBasis := pos.CostBasis + totalCost
		pos.Shares = newShares
		pos.CostBasis = newBasis
		pos.EntryPrice = newBasis / newShares
		pos.LastPrice = price
		pos.LastUpdate = ts
	} else {
		p.positions[symbol] = &Position{
			Symbol:     symbol,
			Shares:     qty,
			EntryPrice: price,
			CostBasis:  totalCost,
			LastPrice:  price,
			LastUpdate: ts,
		}
	}

	p.trades = append(p.trades, model.Trade{
		Timestamp:  ts,
		Symbol:     symbol,
		Side:       model.ActionBuy,
		Quantity:   qty,
		Price:      price,
		Value:      value,
		Commission: commCost,
		Reason:     reason,
	})
	return nil
}

// RemovePosition sells qty shares of symbol at price. qty <= 0 sells the
// whole position. Partial sells reduce the cost basis proportionally to the
// shares sold; the entry price is unchanged.
func (p *Portfolio) RemovePosition(symbol string, qty, price, commission float64, ts time.Time, reason string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.removeLocked(symbol, qty, price, commission, ts, reason)
}

func (p *Portfolio) removeLocked(symbol string, qty, price, commission float64, ts time.Time, reason string) error {
	pos, ok := p.positions[symbol]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSymbol, symbol)
	}
	if qty <= 0 {
		qty = pos.Shares
	}
	if qty > pos.Shares {
		return fmt.Errorf("%w: selling %.4f, holding %.4f", ErrInsufficientShares, qty, pos.Shares)
	}

	value := qty * price
	commCost := value * commission
	p.cash += value - commCost

	remaining := pos.Shares - qty
	if remaining > 0 {
		costPerShare := pos.CostBasis / pos.Shares
		pos.Shares = remaining
		pos.CostBasis = remaining * costPerShare
		pos.LastPrice = price
		pos.LastUpdate = ts
	} else {
		delete(p.positions, symbol)
	}

	p.trades = append(p.trades, model.Trade{
		Timestamp:  ts,
		Symbol:     symbol,
		Side:       model.ActionSell,
		Quantity:   qty,
		Price:      price,
		Value:      value,
		Commission: commCost,
		Reason:     reason,
	})
	return nil
}

// UpdatePrice records the latest market price for an open position.
func (p *Portfolio) UpdatePrice(symbol string, price float64, ts time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if pos, ok := p.positions[symbol]; ok {
		pos.LastPrice = price
		pos.LastUpdate = ts
	}
}

// PositionInfo returns a valuation snapshot for symbol, or ErrUnknownSymbol.
// A zero price falls back to the last known price.
func (p *Portfolio) PositionInfo(symbol string, price float64) (PositionInfo, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	pos, ok := p.positions[symbol]
	if !ok {
		return PositionInfo{}, fmt.Errorf("%w: %s", ErrUnknownSymbol, symbol)
	}
	if price == 0 {
		price = pos.LastPrice
	}
	return p.infoLocked(pos, price), nil
}

func (p *Portfolio) infoLocked(pos *Position, price float64) PositionInfo {
	value := pos.Shares * price
	pnl := value - pos.CostBasis
	ret := 0.0
	if pos.CostBasis > 0 {
		ret = pnl / pos.CostBasis * 100
	}
	weight := 0.0
	if total := p.totalValueLocked(map[string]float64{pos.Symbol: price}); total > 0 {
		weight = value / total * 100
	}
	return PositionInfo{
		Symbol:           pos.Symbol,
		Shares:           pos.Shares,
		EntryPrice:       pos.EntryPrice,
		CurrentPrice:     price,
		CostBasis:        pos.CostBasis,
		PositionValue:    value,
		UnrealizedPnL:    pnl,
		UnrealizedReturn: ret,
		Weight:           weight,
	}
}

// Positions returns a snapshot of all open positions.
func (p *Portfolio) Positions() []Position {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]Position, 0, len(p.positions))
	for _, pos := range p.positions {
		out = append(out, *pos)
	}
	return out
}

// Trades returns a copy of the trade log.
func (p *Portfolio) Trades() []model.Trade {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]model.Trade, len(p.trades))
	copy(out, p.trades)
	return out
}

// GetSummary builds the portfolio summary at the given prices.
func (p *Portfolio) GetSummary(prices map[string]float64) Summary {
	p.mu.RLock()
	defer p.mu.RUnlock()

	total := p.totalValueLocked(prices)
	infos := make(map[string]PositionInfo, len(p.positions))
	for symbol, pos := range p.positions {
		price := pos.LastPrice
		if v, ok := prices[symbol]; ok {
			price = v
		}
		infos[symbol] = p.infoLocked(pos, price)
	}
	return Summary{
		PortfolioValue: total,
		Cash:           p.cash,
		TotalReturn:    (total - p.initialCapital) / p.initialCapital * 100,
		PositionCount:  len(p.positions),
		Positions:      infos,
	}
}

// UpdatePerformance appends a performance record at the given prices and
// returns it. The history feeds the risk-limit drawdown check.
func (p *Portfolio) UpdatePerformance(prices map[string]float64, ts time.Time) PerformanceRecord {
	p.mu.Lock()
	defer p.mu.Unlock()

	total := p.totalValueLocked(prices)
	rec := PerformanceRecord{
		Timestamp:      ts,
		PortfolioValue: total,
		Cash:           p.cash,
		TotalReturn:    (total - p.initialCapital) / p.initialCapital * 100,
		PositionCount:  len(p.positions),
	}
	p.history = append(p.history, rec)
	return rec
}

// History returns a copy of the performance history.
func (p *Portfolio) History() []PerformanceRecord {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]PerformanceRecord, len(p.history))
	copy(out, p.history)
	return out
}

// Rebalance adjusts holdings toward the target weights (fractions of total
// portfolio value) at the given prices. Rejected buy orders are logged and
// skipped so the remaining symbols still rebalance.
func (p *Portfolio) Rebalance(targetWeights map[string]float64, prices map[string]float64, commission float64, ts time.Time) {
	total := p.TotalValue(prices)

	for _, symbol := range sortedKeys(targetWeights) {
		price, ok := prices[symbol]
		if !ok || price <= 0 {
			log.Printf("[portfolio] rebalance: no price for %s, skipping", symbol)
			continue
		}
		current := 0.0
		p.mu.RLock()
		if pos, held := p.positions[symbol]; held {
			current = pos.Shares
		}
		p.mu.RUnlock()

		target := total * targetWeights[symbol] / price
		diff := target - current
		switch {
		case diff > 0:
			if err := p.AddPosition(symbol, diff, price, commission, ts, "rebalance"); err != nil {
				log.Printf("[portfolio] rebalance buy %s rejected: %v", symbol, err)
			}
		case diff < 0:
			if err := p.RemovePosition(symbol, -diff, price, commission, ts, "rebalance"); err != nil {
				log.Printf("[portfolio] rebalance sell %s rejected: %v", symbol, err)
			}
		}
	}
}
