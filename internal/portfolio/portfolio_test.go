package portfolio

import (
	"errors"
	"math"
	"testing"
	"time"

	"tradesim/internal/model"
)

var t0 = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

func approx(a, b float64) bool {
	return math.Abs(a-b) <= 1e-9
}

func TestCanOpen_InsufficientCash(t *testing.T) {
	p := New(100, DefaultLimits())
	err := p.CanOpen("AAPL", 11, 10)
	if !errors.Is(err, ErrInsufficientCash) {
		t.Fatalf("expected ErrInsufficientCash, got %v", err)
	}
}

func TestCanOpen_CheckOrder(t *testing.T) {
	limits := DefaultLimits()
	limits.MaxPositions = 1
	p := New(10000, limits)

	// Concentration breach reported before position-count breach.
	if err := p.CanOpen("AAPL", 30, 100); !errors.Is(err, ErrPositionTooLarge) {
		t.Errorf("expected ErrPositionTooLarge, got %v", err)
	}

	if err := p.AddPosition("AAPL", 10, 100, 0, t0, ""); err != nil {
		t.Fatalf("AddPosition: %v", err)
	}
	if err := p.CanOpen("MSFT", 5, 100); !errors.Is(err, ErrMaxPositionsReached) {
		t.Errorf("expected ErrMaxPositionsReached, got %v", err)
	}
	// Adding to the held symbol is not a new position.
	if err := p.CanOpen("AAPL", 5, 100); err != nil {
		t.Errorf("adding to held symbol: unexpected %v", err)
	}
}

func TestAddPosition_WeightedAverageRepricing(t *testing.T) {
	limits := DefaultLimits()
	limits.MaxPositionSize = 1.0
	p := New(10000, limits)

	if err := p.AddPosition("AAPL", 10, 100, 0, t0, ""); err != nil {
		t.Fatalf("first buy: %v", err)
	}
	if err := p.AddPosition("AAPL", 10, 120, 0, t0.Add(time.Hour), ""); err != nil {
		t.Fatalf("second buy: %v", err)
	}

	info, err := p.PositionInfo("AAPL", 120)
	if err != nil {
		t.Fatalf("PositionInfo: %v", err)
	}
	if !approx(info.EntryPrice, 110) {
		t.Errorf("entry price: expected 110, got %v", info.EntryPrice)
	}
	if !approx(info.CostBasis, 2200) {
		t.Errorf("cost basis: expected 2200, got %v", info.CostBasis)
	}
	if !approx(p.Cash(), 10000-2200) {
		t.Errorf("cash: expected 7800, got %v", p.Cash())
	}
}

func TestAddPosition_CommissionInCostBasis(t *testing.T) {
	limits := DefaultLimits()
	limits.MaxPositionSize = 1.0
	p := New(10000, limits)

	if err := p.AddPosition("AAPL", 10, 100, 0.001, t0, ""); err != nil {
		t.Fatalf("AddPosition: %v", err)
	}
	info, _ := p.PositionInfo("AAPL", 100)
	if !approx(info.CostBasis, 1001) {
		t.Errorf("cost basis: expected 1001, got %v", info.CostBasis)
	}
	if !approx(p.Cash(), 8999) {
		t.Errorf("cash: expected 8999, got %v", p.Cash())
	}
	trades := p.Trades()
	if len(trades) != 1 || !approx(trades[0].Commission, 1) {
		t.Errorf("trade commission: expected 1, got %+v", trades)
	}
}

func TestRemovePosition_PartialSellReducesBasisProportionally(t *testing.T) {
	limits := DefaultLimits()
	limits.MaxPositionSize = 1.0
	p := New(10000, limits)

	if err := p.AddPosition("AAPL", 10, 100, 0, t0, ""); err != nil {
		t.Fatalf("AddPosition: %v", err)
	}
	if err := p.RemovePosition("AAPL", 4, 110, 0, t0.Add(time.Hour), ""); err != nil {
		t.Fatalf("RemovePosition: %v", err)
	}

	info, err := p.PositionInfo("AAPL", 110)
	if err != nil {
		t.Fatalf("PositionInfo: %v", err)
	}
	if !approx(info.Shares, 6) {
		t.Errorf("shares: expected 6, got %v", info.Shares)
	}
	if !approx(info.CostBasis, 600) {
		t.Errorf("cost basis: expected 600, got %v", info.CostBasis)
	}
	if !approx(info.EntryPrice, 100) {
		t.Errorf("entry price must not re-average on sells, got %v", info.EntryPrice)
	}
	if !approx(p.Cash(), 10000-1000+440) {
		t.Errorf("cash: expected 9440, got %v", p.Cash())
	}
}

func TestRemovePosition_FullSellDestroysPosition(t *testing.T) {
	p := New(10000, DefaultLimits())
	if err := p.AddPosition("AAPL", 10, 100, 0, t0, ""); err != nil {
		t.Fatalf("AddPosition: %v", err)
	}
	// qty <= 0 sells everything
	if err := p.RemovePosition("AAPL", 0, 105, 0, t0, ""); err != nil {
		t.Fatalf("RemovePosition: %v", err)
	}
	if _, err := p.PositionInfo("AAPL", 105); !errors.Is(err, ErrUnknownSymbol) {
		t.Errorf("expected position destroyed, got %v", err)
	}
	if len(p.Positions()) != 0 {
		t.Errorf("expected no open positions")
	}
}

func TestRemovePosition_Rejections(t *testing.T) {
	p := New(10000, DefaultLimits())
	if err := p.RemovePosition("AAPL", 1, 100, 0, t0, ""); !errors.Is(err, ErrUnknownSymbol) {
		t.Errorf("expected ErrUnknownSymbol, got %v", err)
	}
	if err := p.AddPosition("AAPL", 10, 100, 0, t0, ""); err != nil {
		t.Fatalf("AddPosition: %v", err)
	}
	if err := p.RemovePosition("AAPL", 11, 100, 0, t0, ""); !errors.Is(err, ErrInsufficientShares) {
		t.Errorf("expected ErrInsufficientShares, got %v", err)
	}
	// Rejection leaves the ledger unchanged.
	if !approx(p.Cash(), 9000) {
		t.Errorf("cash changed on rejected order: %v", p.Cash())
	}
	if len(p.Trades()) != 1 {
		t.Errorf("trade log grew on rejected order")
	}
}

func TestCheckRiskLimits_ForceClosesInSymbolOrder(t *testing.T) {
	limits := DefaultLimits()
	limits.MaxPositionSize = 1.0
	p := New(100000, limits)

	for _, sym := range []string{"ZZZ", "AAA", "MMM"} {
		if err := p.AddPosition(sym, 10, 100, 0, t0, ""); err != nil {
			t.Fatalf("AddPosition %s: %v", sym, err)
		}
	}

	prices := map[string]float64{
		"AAA": 94,  // -6%: stop loss
		"MMM": 100, // flat: untouched
		"ZZZ": 116, // +16%: take profit
	}
	report := p.CheckRiskLimits(prices, 0, t0.Add(time.Hour))

	if len(report.Closed) != 2 || report.Closed[0] != "AAA" || report.Closed[1] != "ZZZ" {
		t.Fatalf("expected [AAA ZZZ] closed, got %v", report.Closed)
	}
	trades := p.Trades()
	last := trades[len(trades)-1]
	if last.Symbol != "ZZZ" || last.Reason != model.ReasonTakeProfit {
		t.Errorf("expected ZZZ take_profit close, got %+v", last)
	}
	if _, err := p.PositionInfo("MMM", 100); err != nil {
		t.Errorf("MMM must stay open: %v", err)
	}
}

func TestCheckRiskLimits_DrawdownFromHistoricalPeak(t *testing.T) {
	limits := DefaultLimits()
	limits.MaxPositionSize = 1.0
	p := New(10000, limits)

	if err := p.AddPosition("AAPL", 50, 100, 0, t0, ""); err != nil {
		t.Fatalf("AddPosition: %v", err)
	}
	p.UpdatePerformance(map[string]float64{"AAPL": 140}, t0) // peak 12000
	report := p.CheckRiskLimits(map[string]float64{"AAPL": 96}, 0, t0.Add(time.Hour))

	// Value 9800 against peak 12000: 18.3% drawdown exceeds the 15% limit.
	if !report.DrawdownExceeded {
		t.Errorf("expected drawdown breach, drawdown=%v", report.Drawdown)
	}
	if math.Abs(report.Drawdown-(12000-9800)/12000.0) > 1e-9 {
		t.Errorf("drawdown: got %v", report.Drawdown)
	}
}

func TestGetSummary(t *testing.T) {
	p := New(10000, DefaultLimits())
	if err := p.AddPosition("AAPL", 10, 100, 0, t0, ""); err != nil {
		t.Fatalf("AddPosition: %v", err)
	}
	s := p.GetSummary(map[string]float64{"AAPL": 110})
	if !approx(s.PortfolioValue, 9000+1100) {
		t.Errorf("portfolio value: expected 10100, got %v", s.PortfolioValue)
	}
	if !approx(s.TotalReturn, 1) {
		t.Errorf("total return: expected 1%%, got %v", s.TotalReturn)
	}
	info, ok := s.Positions["AAPL"]
	if !ok {
		t.Fatalf("missing AAPL in summary")
	}
	if !approx(info.UnrealizedPnL, 100) {
		t.Errorf("unrealized pnl: expected 100, got %v", info.UnrealizedPnL)
	}
}

func TestRebalance_MovesTowardTargets(t *testing.T) {
	limits := DefaultLimits()
	limits.MaxPositionSize = 1.0
	p := New(10000, limits)

	prices := map[string]float64{"AAPL": 100, "MSFT": 200}
	p.Rebalance(map[string]float64{"AAPL": 0.5, "MSFT": 0.3}, prices, 0, t0)

	a, err := p.PositionInfo("AAPL", 100)
	if err != nil {
		t.Fatalf("AAPL: %v", err)
	}
	m, err := p.PositionInfo("MSFT", 200)
	if err != nil {
		t.Fatalf("MSFT: %v", err)
	}
	if !approx(a.PositionValue, 5000) || !approx(m.PositionValue, 3000) {
		t.Errorf("position values: AAPL=%v MSFT=%v", a.PositionValue, m.PositionValue)
	}

	// Shrinking a target sells the difference.
	p.Rebalance(map[string]float64{"AAPL": 0.2}, prices, 0, t0.Add(time.Hour))
	a, _ = p.PositionInfo("AAPL", 100)
	if !approx(a.PositionValue, 2000) {
		t.Errorf("after shrink: expected 2000, got %v", a.PositionValue)
	}
}
