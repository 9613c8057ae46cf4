// Package paper runs the live paper-trading engine: it consumes quotes from a
// data feed, maintains per-symbol bar histories, generates signals, and places
// simulated orders against a portfolio ledger. No real money moves.
package paper

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"tradesim/internal/barbuf"
	"tradesim/internal/metrics"
	"tradesim/internal/model"
	"tradesim/internal/notification"
	"tradesim/internal/portfolio"
	"tradesim/internal/strategy"
)

// Config holds paper-engine parameters. Zero values fall back to the same
// defaults the backtest engine uses so a paper session is comparable to a
// simulation of the same strategy.
type Config struct {
	InitialCapital float64
	Commission     float64 // rate, e.g. 0.001
	Slippage       float64 // rate, e.g. 0.0005
	PositionSize   float64 // fraction of portfolio value per buy
	Limits         portfolio.Limits
	HistorySize    int // bars kept per symbol

	// MarketHoursOnly gates polling schedulers to the regular US equity
	// session. Streaming feeds are unaffected.
	MarketHoursOnly bool

	Recorder model.Recorder        // nil disables persistence
	Notifier notification.Notifier // nil disables alerts
	Metrics  *metrics.Metrics      // nil disables instrumentation
}

// DefaultConfig returns the standard paper-trading parameters.
func DefaultConfig() Config {
	return Config{
		InitialCapital: 10000,
		Commission:     0.001,
		Slippage:       0.0005,
		PositionSize:   0.1,
		Limits:         portfolio.DefaultLimits(),
		HistorySize:    512,
	}
}

// Engine is the paper-trading loop. Quotes arrive via OnQuote and are
// processed one at a time by Run; all trading decisions happen on that single
// goroutine, so strategy state needs no locking.
type Engine struct {
	cfg    Config
	ledger *portfolio.Portfolio

	strategies []strategy.Strategy
	histories  map[string]*barbuf.History
	lastSignal map[string]model.Action // strategy|symbol -> last emitted label
	prices     map[string]float64
	peak       float64

	mu     sync.Mutex // guards orders, seq, and cross-goroutine price reads
	orders []*model.Order
	seq    int

	quoteCh  chan model.Quote
	stop     chan struct{}
	stopOnce sync.Once
}

// New creates a paper engine with the given configuration.
func New(cfg Config) *Engine {
	if cfg.InitialCapital <= 0 {
		cfg.InitialCapital = 10000
	}
	if cfg.PositionSize <= 0 {
		cfg.PositionSize = 0.1
	}
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = 512
	}
	return &Engine{
		cfg:        cfg,
		ledger:     portfolio.New(cfg.InitialCapital, cfg.Limits),
		histories:  make(map[string]*barbuf.History),
		lastSignal: make(map[string]model.Action),
		prices:     make(map[string]float64),
		peak:       cfg.InitialCapital,
		quoteCh:    make(chan model.Quote, 256),
		stop:       make(chan struct{}),
	}
}

// AddStrategy registers a strategy. Must be called before Run.
func (e *Engine) AddStrategy(s strategy.Strategy) {
	e.strategies = append(e.strategies, s)
	log.Printf("[paper] strategy %s registered", s.Name())
}

// Ledger exposes the underlying portfolio for summary and position queries.
func (e *Engine) Ledger() *portfolio.Portfolio { return e.ledger }

// OnQuote enqueues a quote for processing. Never blocks: if the engine is
// behind, the quote is dropped and counted.
func (e *Engine) OnQuote(q model.Quote) {
	select {
	case e.quoteCh <- q:
	default:
		if e.cfg.Metrics != nil {
			e.cfg.Metrics.DroppedQuotes.Inc()
		}
		log.Printf("[paper] quote channel full, dropping %s", q.Symbol)
	}
}

// Run processes quotes until ctx is cancelled or Stop is called.
func (e *Engine) Run(ctx context.Context) {
	log.Printf("[paper] engine started, capital %.2f, %d strategies",
		e.cfg.InitialCapital, len(e.strategies))
	for {
		select {
		case <-ctx.Done():
			log.Printf("[paper] engine stopped: %v", ctx.Err())
			return
		case <-e.stop:
			log.Printf("[paper] engine stopped")
			return
		case q := <-e.quoteCh:
			e.handleQuote(ctx, q)
		}
	}
}

// Stop terminates Run. Safe to call more than once.
func (e *Engine) Stop() {
	e.stopOnce.Do(func() { close(e.stop) })
}

func (e *Engine) handleQuote(ctx context.Context, q model.Quote) {
	if q.Symbol == "" || q.Price <= 0 {
		return
	}
	if e.cfg.Metrics != nil {
		e.cfg.Metrics.QuotesTotal.Inc()
	}

	bar := q.Bar()
	hist, ok := e.histories[q.Symbol]
	if !ok {
		hist = barbuf.New(e.cfg.HistorySize)
		e.histories[q.Symbol] = hist
	}
	hist.Append(bar)
	if e.cfg.Recorder != nil {
		e.cfg.Recorder.SaveBar(bar)
	}

	e.mu.Lock()
	e.prices[q.Symbol] = q.Price
	e.mu.Unlock()
	e.ledger.UpdatePrice(q.Symbol, q.Price, q.Timestamp)

	bars := hist.Bars()
	for _, strat := range e.strategies {
		e.evaluate(ctx, strat, bars, q)
	}

	e.sweepRiskLimits(ctx, q.Timestamp)
	e.publishState(q.Timestamp)
}

// evaluate runs one strategy over the symbol's history and acts on the latest
// signal. An order is placed only when the signal label changes from the last
// one emitted for this strategy and symbol, so a persistent buy regime does
// not pyramid into the same position on every quote.
func (e *Engine) evaluate(ctx context.Context, strat strategy.Strategy, bars []model.Bar, q model.Quote) {
	start := time.Now()
	signals := strat.Generate(bars)
	if e.cfg.Metrics != nil {
		e.cfg.Metrics.SignalGenDur.Observe(time.Since(start).Seconds())
	}
	if len(signals) == 0 {
		return
	}
	sig := signals[len(signals)-1]

	if e.cfg.Metrics != nil {
		e.cfg.Metrics.SignalsTotal.WithLabelValues(strat.Name(), string(sig.Label)).Inc()
	}

	key := strat.Name() + "|" + q.Symbol
	if e.lastSignal[key] == sig.Label {
		return
	}
	e.lastSignal[key] = sig.Label
	if sig.Label == model.ActionHold {
		return
	}
	if e.cfg.Recorder != nil {
		e.cfg.Recorder.SaveSignal(sig)
	}
	log.Printf("[paper] %s signal %s %s at %.2f (%s)",
		strat.Name(), sig.Label, q.Symbol, q.Price, sig.Reason)

	switch sig.Label {
	case model.ActionBuy:
		value := e.ledger.TotalValue(e.prices) * e.cfg.PositionSize
		fill := q.Price * (1 + e.cfg.Slippage)
		qty := value / fill
		if qty <= 0 {
			return
		}
		order := e.placeOrder(q.Symbol, model.ActionBuy, qty, q.Timestamp)
		e.executeOrder(ctx, order, q.Price, q.Timestamp, sig.Reason)
	case model.ActionSell:
		info, err := e.ledger.PositionInfo(q.Symbol, q.Price)
		if err != nil {
			return // nothing to sell
		}
		order := e.placeOrder(q.Symbol, model.ActionSell, info.Shares, q.Timestamp)
		e.executeOrder(ctx, order, q.Price, q.Timestamp, sig.Reason)
	}
}

// placeOrder creates a pending order with a sequential PAPER-<n> ID.
func (e *Engine) placeOrder(symbol string, side model.Action, qty float64, ts time.Time) *model.Order {
	e.mu.Lock()
	e.seq++
	order := &model.Order{
		OrderID:   fmt.Sprintf("PAPER-%d", e.seq),
		Symbol:    symbol,
		Side:      side,
		Quantity:  qty,
		Status:    model.OrderPending,
		CreatedAt: ts,
		UpdatedAt: ts,
	}
	e.orders = append(e.orders, order)
	e.mu.Unlock()

	if e.cfg.Metrics != nil {
		e.cfg.Metrics.OrdersTotal.WithLabelValues(string(side), string(model.OrderPending)).Inc()
	}
	return order
}

// executeOrder fills a pending order at the quoted price adjusted for
// slippage, or rejects it if the ledger refuses the position change.
func (e *Engine) executeOrder(ctx context.Context, order *model.Order, price float64, ts time.Time, reason string) {
	var fill float64
	var err error
	switch order.Side {
	case model.ActionBuy:
		fill = price * (1 + e.cfg.Slippage)
		err = e.ledger.AddPosition(order.Symbol, order.Quantity, fill, e.cfg.Commission, ts, reason)
	case model.ActionSell:
		fill = price * (1 - e.cfg.Slippage)
		err = e.ledger.RemovePosition(order.Symbol, order.Quantity, fill, e.cfg.Commission, ts, reason)
	default:
		err = fmt.Errorf("unsupported order side %q", order.Side)
	}

	e.mu.Lock()
	order.UpdatedAt = ts
	if err != nil {
		order.Status = model.OrderRejected
		order.Reason = err.Error()
	} else {
		order.Status = model.OrderFilled
		order.FilledQty = order.Quantity
		order.FilledPrice = fill
	}
	e.mu.Unlock()

	if e.cfg.Metrics != nil {
		e.cfg.Metrics.OrdersTotal.WithLabelValues(string(order.Side), string(order.Status)).Inc()
	}

	if err != nil {
		log.Printf("[paper] order %s rejected: %v", order.OrderID, err)
		e.notify(ctx, notification.Alert{
			Level:   notification.AlertWarning,
			Symbol:  order.Symbol,
			Title:   fmt.Sprintf("order %s rejected", order.OrderID),
			Message: err.Error(),
		})
		return
	}

	trades := e.ledger.Trades()
	trade := trades[len(trades)-1]
	if e.cfg.Metrics != nil {
		e.cfg.Metrics.TradesTotal.Inc()
	}
	if e.cfg.Recorder != nil {
		e.cfg.Recorder.SaveTrade(trade)
	}
	log.Printf("[paper] order %s filled: %s %.4f %s at %.4f",
		order.OrderID, order.Side, order.FilledQty, order.Symbol, order.FilledPrice)
	e.notify(ctx, notification.TradeAlert(trade))
}

// sweepRiskLimits runs the ledger's stop-loss/take-profit/drawdown checks and
// records and announces any forced closes.
func (e *Engine) sweepRiskLimits(ctx context.Context, ts time.Time) {
	before := len(e.ledger.Trades())
	report := e.ledger.CheckRiskLimits(e.prices, e.cfg.Commission, ts)
	if len(report.Closed) == 0 && !report.DrawdownExceeded {
		return
	}

	trades := e.ledger.Trades()
	for _, trade := range trades[before:] {
		if e.cfg.Metrics != nil {
			e.cfg.Metrics.TradesTotal.Inc()
		}
		if e.cfg.Recorder != nil {
			e.cfg.Recorder.SaveTrade(trade)
		}
		e.notify(ctx, notification.RiskAlert(trade.Symbol, trade.Reason, trade.Price))
	}
	if report.DrawdownExceeded {
		e.notify(ctx, notification.Alert{
			Level:   notification.AlertCritical,
			Title:   "max drawdown exceeded",
			Message: fmt.Sprintf("drawdown %.2f%% over limit", report.Drawdown*100),
		})
	}
}

// publishState updates the performance history and portfolio gauges.
func (e *Engine) publishState(ts time.Time) {
	rec := e.ledger.UpdatePerformance(e.prices, ts)
	if rec.PortfolioValue > e.peak {
		e.peak = rec.PortfolioValue
	}
	if e.cfg.Metrics == nil {
		return
	}
	e.cfg.Metrics.EquityGauge.Set(rec.PortfolioValue)
	if e.peak > 0 {
		e.cfg.Metrics.DrawdownGauge.Set((e.peak - rec.PortfolioValue) / e.peak * 100)
	}
	e.cfg.Metrics.OpenPositions.Set(float64(rec.PositionCount))
}

func (e *Engine) notify(ctx context.Context, alert notification.Alert) {
	if e.cfg.Notifier == nil {
		return
	}
	if err := e.cfg.Notifier.Send(ctx, alert); err != nil {
		log.Printf("[paper] notification failed: %v", err)
	}
}

// SubmitOrder places and executes a manual order at the latest known price
// for the symbol. A sell with qty <= 0 closes the full position. Used by the
// HTTP API; strategy-driven orders do not go through here.
func (e *Engine) SubmitOrder(ctx context.Context, symbol string, side model.Action, qty float64) (model.Order, error) {
	if side != model.ActionBuy && side != model.ActionSell {
		return model.Order{}, fmt.Errorf("unsupported order side %q", side)
	}

	e.mu.Lock()
	price, ok := e.prices[symbol]
	e.mu.Unlock()
	if !ok {
		return model.Order{}, fmt.Errorf("no quote seen for %s", symbol)
	}

	if side == model.ActionSell && qty <= 0 {
		info, err := e.ledger.PositionInfo(symbol, price)
		if err != nil {
			return model.Order{}, err
		}
		qty = info.Shares
	}
	if qty <= 0 {
		return model.Order{}, fmt.Errorf("order quantity must be positive")
	}

	order := e.placeOrder(symbol, side, qty, time.Now().UTC())
	e.executeOrder(ctx, order, price, order.CreatedAt, "manual")

	e.mu.Lock()
	out := *order
	e.mu.Unlock()
	return out, nil
}

// Orders returns a snapshot of all orders placed so far.
func (e *Engine) Orders() []model.Order {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]model.Order, 0, len(e.orders))
	for _, o := range e.orders {
		out = append(out, *o)
	}
	return out
}

// Summary returns the current portfolio snapshot at the latest known prices.
func (e *Engine) Summary() portfolio.Summary {
	e.mu.Lock()
	prices := make(map[string]float64, len(e.prices))
	for sym, p := range e.prices {
		prices[sym] = p
	}
	e.mu.Unlock()
	return e.ledger.GetSummary(prices)
}
