// Package backtest implements the simulation engine and performance
// analyzer.
//
// The engine drives a strategy's signal sequence through a single-symbol
// ledger bar by bar: risk exits (stop-loss/take-profit) are checked before
// new signals and suppress them on the same bar, entries are sized as a
// fraction of current cash, and any position left open at the end of the
// data is liquidated at the final close. The pass is single-threaded and
// fully deterministic.
package backtest

import (
	"fmt"
	"log"

	"tradesim/internal/model"
	"tradesim/internal/strategy"
)

// Config holds the simulation parameters.
type Config struct {
	InitialCapital float64
	PositionSize   float64 // fraction of cash committed per entry
	Commission     float64 // fee rate on traded notional
	Slippage       float64 // adverse price deviation per fill
	StopLoss       float64 // close when price falls this fraction below entry
	TakeProfit     float64 // close when price rises this fraction above entry

	RiskFreeRate   float64 // annual, for Sharpe/Sortino
	PeriodsPerYear int     // bars per year for annualization

	// OnBar, when set, is invoked after each simulated bar with the number
	// of bars processed and the total. Used for progress reporting.
	OnBar func(done, total int)

	// Recorder receives trades and signals as they happen. Nil disables
	// persistence.
	Recorder model.Recorder
}

// DefaultConfig returns the stock simulation parameters.
func DefaultConfig() Config {
	return Config{
		InitialCapital: 10000,
		PositionSize:   0.1,
		Commission:     0.001,
		Slippage:       0.0005,
		StopLoss:       0.05,
		TakeProfit:     0.15,
		RiskFreeRate:   0.02,
		PeriodsPerYear: 252,
	}
}

// Engine runs backtests.
type Engine struct {
	cfg Config
}

// New creates an engine with the given config. Zero annualization fields
// fall back to defaults.
func New(cfg Config) *Engine {
	if cfg.PeriodsPerYear == 0 {
		cfg.PeriodsPerYear = 252
	}
	return &Engine{cfg: cfg}
}

// Run simulates strat over bars and returns the analyzed result.
func (e *Engine) Run(strat strategy.Strategy, bars []model.Bar) (*Result, error) {
	if err := model.ValidateBars(bars); err != nil {
		return nil, fmt.Errorf("backtest: %w", err)
	}

	signals := strat.Generate(bars)
	if len(signals) != len(bars) {
		return nil, fmt.Errorf("backtest: strategy %s produced %d signals for %d bars",
			strat.Name(), len(signals), len(bars))
	}

	cfg := e.cfg
	cash := cfg.InitialCapital
	shares := 0.0
	entryPrice := 0.0

	var trades []model.Trade
	equity := make([]model.EquityPoint, 0, len(bars))

	peak := cfg.InitialCapital
	maxDrawdown := 0.0

	record := func(t model.Trade) {
		trades = append(trades, t)
		if cfg.Recorder != nil {
			cfg.Recorder.SaveTrade(t)
		}
	}

	for i := range bars {
		bar := &bars[i]
		price := bar.Close
		sig := signals[i]
		if cfg.Recorder != nil && sig.Label != model.ActionHold {
			cfg.Recorder.SaveSignal(sig)
		}

		// Risk exits run before new signals and suppress them on this bar.
		riskExit := false
		if shares > 0 {
			change := (price - entryPrice) / entryPrice
			switch {
			case change <= -cfg.StopLoss:
				cash += e.close(record, bar, shares, model.ReasonStopLoss)
				shares = 0
				riskExit = true
			case change >= cfg.TakeProfit:
				cash += e.close(record, bar, shares, model.ReasonTakeProfit)
				shares = 0
				riskExit = true
			}
		}

		if !riskExit {
			switch {
			case sig.Label == model.ActionBuy && shares == 0:
				notional := cash * cfg.PositionSize
				execPrice := price * (1 + cfg.Slippage)
				commission := notional * cfg.Commission
				if notional+commission > cash {
					log.Printf("[backtest] %s: buy at %s skipped, need %.2f, have %.2f",
						strat.Name(), bar.Timestamp.Format("2006-01-02"), notional+commission, cash)
					break
				}
				qty := notional / execPrice
				cash -= notional + commission
				shares = qty
				entryPrice = price
				record(model.Trade{
					Timestamp:  bar.Timestamp,
					Symbol:     bar.Symbol,
					Side:       model.ActionBuy,
					Quantity:   qty,
					Price:      execPrice,
					Value:      notional,
					Commission: commission,
					Reason:     sig.Reason,
				})
			case sig.Label == model.ActionSell && shares > 0:
				cash += e.close(record, bar, shares, sig.Reason)
				shares = 0
			}
		}

		equity = append(equity, model.EquityPoint{
			Timestamp:     bar.Timestamp,
			Equity:        cash + shares*price,
			Cash:          cash,
			PositionValue: shares * price,
		})

		if pt := equity[len(equity)-1].Equity; pt > peak {
			peak = pt
		} else if dd := (peak - pt) / peak; dd > maxDrawdown {
			maxDrawdown = dd
		}

		if cfg.OnBar != nil {
			cfg.OnBar(i+1, len(bars))
		}
	}

	// Forced end-of-data liquidation at the final close, friction-free, so
	// the final equity point is fully realized as cash.
	if shares > 0 {
		last := &bars[len(bars)-1]
		value := shares * last.Close
		cash += value
		record(model.Trade{
			Timestamp: last.Timestamp,
			Symbol:    last.Symbol,
			Side:      model.ActionSell,
			Quantity:  shares,
			Price:     last.Close,
			Value:     value,
			Reason:    model.ReasonEndOfData,
		})
		shares = 0
	}

	result := &Result{
		Strategy:       strat.Name(),
		Symbol:         bars[0].Symbol,
		InitialCapital: cfg.InitialCapital,
		FinalEquity:    cash,
		TotalReturn:    (cash - cfg.InitialCapital) / cfg.InitialCapital * 100,
		MaxDrawdown:    maxDrawdown * 100,
		TotalTrades:    len(trades),
		Trades:         trades,
		EquityCurve:    equity,
	}
	analyze(result, cfg)

	log.Printf("[backtest] %s: %d bars, %d trades, return %.2f%%, max drawdown %.2f%%",
		strat.Name(), len(bars), result.TotalTrades, result.TotalReturn, result.MaxDrawdown)
	return result, nil
}

// close sells the whole position at the bar's close with slippage and
// commission applied, records the trade, and returns the net proceeds.
func (e *Engine) close(record func(model.Trade), bar *model.Bar, shares float64, reason string) float64 {
	execPrice := bar.Close * (1 - e.cfg.Slippage)
	value := shares * execPrice
	commission := value * e.cfg.Commission
	record(model.Trade{
		Timestamp:  bar.Timestamp,
		Symbol:     bar.Symbol,
		Side:       model.ActionSell,
		Quantity:   shares,
		Price:      execPrice,
		Value:      value,
		Commission: commission,
		Reason:     reason,
	})
	return value - commission
}
