// cmd/backtest runs a trading strategy over historical bars and prints a
// performance report. Bars come from a recorded SQLite session (--db) or from
// the deterministic synthetic feed.
//
// Usage:
//
//	go run ./cmd/backtest --strategy=sma_crossover --symbol=AAPL --period=1y
//	go run ./cmd/backtest --strategy=all --symbol=AAPL --db=data/tradesim.db
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math"
	"os"
	"time"

	"tradesim/internal/backtest"
	"tradesim/internal/feed"
	"tradesim/internal/model"
	"tradesim/internal/strategy"
	sqlitestore "tradesim/internal/store/sqlite"

	"github.com/schollz/progressbar/v3"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	// Flags
	stratName := flag.String("strategy", "sma_crossover", "Strategy name, or 'all' to compare every registered strategy")
	symbol := flag.String("symbol", "AAPL", "Symbol to backtest")
	period := flag.String("period", "1y", "History period for the synthetic feed (e.g. 30d, 3mo, 1y)")
	dbPath := flag.String("db", "", "SQLite database with recorded bars (empty: synthetic feed)")
	seed := flag.Int64("seed", 42, "Synthetic feed seed")
	capital := flag.Float64("capital", 10000, "Initial capital")
	position := flag.Float64("position", 0.1, "Fraction of cash per entry")
	commission := flag.Float64("commission", 0.001, "Commission rate")
	slippage := flag.Float64("slippage", 0.0005, "Slippage rate")
	stopLoss := flag.Float64("stop", 0.05, "Stop loss fraction")
	takeProfit := flag.Float64("take", 0.15, "Take profit fraction")
	jsonOut := flag.String("json", "", "Write full results as JSON to this file")

	fast := flag.Int("fast", 0, "SMA crossover fast period (0: default)")
	slow := flag.Int("slow", 0, "SMA crossover slow period (0: default)")
	rsiPeriod := flag.Int("rsi", 0, "RSI period (0: default)")
	flag.Parse()

	bars, err := loadBars(*dbPath, *symbol, *period, *seed)
	if err != nil {
		log.Fatalf("[backtest] loading bars failed: %v", err)
	}
	log.Printf("[backtest] %d bars for %s", len(bars), *symbol)

	cfg := backtest.Config{
		InitialCapital: *capital,
		PositionSize:   *position,
		Commission:     *commission,
		Slippage:       *slippage,
		StopLoss:       *stopLoss,
		TakeProfit:     *takeProfit,
		RiskFreeRate:   0.02,
		PeriodsPerYear: 252,
	}
	stratCfg := strategy.Config{FastPeriod: *fast, SlowPeriod: *slow, RSIPeriod: *rsiPeriod}

	names := []string{*stratName}
	if *stratName == "all" {
		names = strategy.Names()
	}

	results := make(map[string]*backtest.Result, len(names))
	for _, name := range names {
		strat, err := strategy.New(name, stratCfg)
		if err != nil {
			log.Fatalf("[backtest] %v", err)
		}

		bar := initProgressBar(len(bars), name)
		runCfg := cfg
		runCfg.OnBar = func(done, total int) {
			bar.Set(done)
		}

		result, err := backtest.New(runCfg).Run(strat, bars)
		if err != nil {
			log.Fatalf("[backtest] %s failed: %v", name, err)
		}
		bar.Finish()
		fmt.Println()
		results[name] = result
		printReport(result)
	}

	if len(results) > 1 {
		printComparison(backtest.Compare(results))
	}

	if *jsonOut != "" {
		data, err := json.MarshalIndent(results, "", "  ")
		if err != nil {
			log.Fatalf("[backtest] marshal results: %v", err)
		}
		if err := os.WriteFile(*jsonOut, data, 0o644); err != nil {
			log.Fatalf("[backtest] write %s: %v", *jsonOut, err)
		}
		log.Printf("[backtest] results written to %s", *jsonOut)
	}
}

func loadBars(dbPath, symbol, period string, seed int64) ([]model.Bar, error) {
	if dbPath != "" {
		reader, err := sqlitestore.NewReader(dbPath)
		if err != nil {
			return nil, err
		}
		defer reader.Close()
		bars, err := reader.ReadBars(symbol, 0)
		if err != nil {
			return nil, err
		}
		if len(bars) == 0 {
			return nil, fmt.Errorf("no recorded bars for %s in %s", symbol, dbPath)
		}
		return bars, nil
	}

	start := time.Now().UTC().AddDate(-1, 0, 0)
	synthetic := feed.NewSynthetic(seed, start)
	return synthetic.GetBars(context.Background(), symbol, period, "1d")
}

func initProgressBar(total int, name string) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetElapsedTime(true),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetDescription(fmt.Sprintf("Backtesting %s...", name)),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}))
}

func printReport(r *backtest.Result) {
	fmt.Println()
	fmt.Println("╔══════════════════════════════════════════════╗")
	fmt.Printf("║  %-44s║\n", fmt.Sprintf("BACKTEST: %s on %s", r.Strategy, r.Symbol))
	fmt.Println("╠══════════════════════════════════════════════╣")
	fmt.Printf("║  Initial capital:   %-24.2f ║\n", r.InitialCapital)
	fmt.Printf("║  Final equity:      %-24.2f ║\n", r.FinalEquity)
	fmt.Printf("║  Total return:      %-23.2f%% ║\n", r.TotalReturn)
	fmt.Printf("║  Annual return:     %-23.2f%% ║\n", r.AnnualReturn)
	fmt.Printf("║  Max drawdown:      %-23.2f%% ║\n", r.MaxDrawdown)
	fmt.Printf("║  Sharpe ratio:      %-24s ║\n", ratio(r.Sharpe))
	fmt.Printf("║  Sortino ratio:     %-24s ║\n", ratio(r.Sortino))
	fmt.Printf("║  Calmar ratio:      %-24s ║\n", ratio(r.Calmar))
	fmt.Printf("║  Volatility:        %-23.2f%% ║\n", r.Volatility)
	fmt.Printf("║  VaR (95%%):         %-23.2f%% ║\n", r.VaR95)
	fmt.Printf("║  Trades:            %-24d ║\n", r.TotalTrades)
	fmt.Printf("║  Win rate:          %-23.2f%% ║\n", r.TradeAnalysis.WinRate)
	fmt.Printf("║  Profit factor:     %-24s ║\n", ratio(r.TradeAnalysis.ProfitFactor))
	fmt.Println("╚══════════════════════════════════════════════╝")
}

func printComparison(c backtest.Comparison) {
	fmt.Println()
	fmt.Println("Best strategy per metric:")
	for _, metric := range []string{"total_return", "sharpe_ratio", "max_drawdown", "win_rate", "volatility"} {
		if best, ok := c.Best[metric]; ok {
			fmt.Printf("  %-14s %-16s %.2f\n", metric, best.Strategy, best.Value)
		}
	}
}

func ratio(v float64) string {
	if math.IsNaN(v) {
		return "n/a"
	}
	if math.IsInf(v, 1) {
		return "inf"
	}
	if math.IsInf(v, -1) {
		return "-inf"
	}
	return fmt.Sprintf("%.2f", v)
}
