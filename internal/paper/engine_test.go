package paper

import (
	"context"
	"math"
	"sync/atomic"
	"testing"
	"time"

	"tradesim/internal/model"
	"tradesim/internal/notification"
)

// scripted emits an action keyed by how many bars it has seen, hold otherwise.
type scripted struct {
	name string
	acts map[int]model.Action
}

func (s *scripted) Name() string { return s.name }

func (s *scripted) Generate(bars []model.Bar) []model.Signal {
	out := make([]model.Signal, len(bars))
	for i, b := range bars {
		out[i] = model.Hold(s.name, b)
	}
	if act, ok := s.acts[len(bars)]; ok && len(bars) > 0 {
		last := &out[len(out)-1]
		last.Label = act
		last.Strength = 50
		last.Reason = "scripted"
	}
	return out
}

type memRecorder struct {
	trades  []model.Trade
	bars    []model.Bar
	signals []model.Signal
}

func (r *memRecorder) SaveTrade(t model.Trade)   { r.trades = append(r.trades, t) }
func (r *memRecorder) SaveBar(b model.Bar)       { r.bars = append(r.bars, b) }
func (r *memRecorder) SaveSignal(s model.Signal) { r.signals = append(r.signals, s) }

type memNotifier struct {
	alerts []notification.Alert
}

func (n *memNotifier) Send(ctx context.Context, a notification.Alert) error {
	n.alerts = append(n.alerts, a)
	return nil
}

func quoteAt(symbol string, price float64, ts time.Time) model.Quote {
	return model.Quote{Symbol: symbol, Price: price, Timestamp: ts}
}

func frictionless(rec *memRecorder, not *memNotifier) Config {
	cfg := DefaultConfig()
	cfg.Commission = 0
	cfg.Slippage = 0
	if rec != nil {
		cfg.Recorder = rec
	}
	if not != nil {
		cfg.Notifier = not
	}
	return cfg
}

func TestBuySignalFillsOrder(t *testing.T) {
	rec := &memRecorder{}
	not := &memNotifier{}
	e := New(frictionless(rec, not))
	e.AddStrategy(&scripted{name: "stub", acts: map[int]model.Action{1: model.ActionBuy}})

	t0 := time.Date(2026, 3, 2, 14, 30, 0, 0, time.UTC)
	e.handleQuote(context.Background(), quoteAt("AAPL", 100, t0))

	orders := e.Orders()
	if len(orders) != 1 {
		t.Fatalf("orders = %d, want 1", len(orders))
	}
	o := orders[0]
	if o.OrderID != "PAPER-1" {
		t.Errorf("order id = %q, want PAPER-1", o.OrderID)
	}
	if o.Status != model.OrderFilled {
		t.Fatalf("status = %s, want filled (reason %q)", o.Status, o.Reason)
	}
	// 10% of 10000 at 100/share.
	if math.Abs(o.FilledQty-10) > 1e-9 {
		t.Errorf("filled qty = %v, want 10", o.FilledQty)
	}
	if math.Abs(o.FilledPrice-100) > 1e-9 {
		t.Errorf("filled price = %v, want 100", o.FilledPrice)
	}
	if len(rec.trades) != 1 || rec.trades[0].Side != model.ActionBuy {
		t.Fatalf("recorded trades = %+v, want one buy", rec.trades)
	}
	if len(rec.bars) != 1 {
		t.Errorf("recorded bars = %d, want 1", len(rec.bars))
	}
	if len(not.alerts) != 1 || not.alerts[0].Symbol != "AAPL" {
		t.Fatalf("alerts = %+v, want one AAPL fill alert", not.alerts)
	}
	pos := e.Ledger().Positions()
	if len(pos) != 1 || math.Abs(pos[0].Shares-10) > 1e-9 {
		t.Fatalf("positions = %+v, want 10 shares AAPL", pos)
	}
}

func TestRepeatedSignalDoesNotPyramid(t *testing.T) {
	e := New(frictionless(&memRecorder{}, nil))
	e.AddStrategy(&scripted{name: "stub", acts: map[int]model.Action{
		1: model.ActionBuy,
		2: model.ActionBuy,
		3: model.ActionBuy,
	}})

	t0 := time.Date(2026, 3, 2, 14, 30, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		e.handleQuote(context.Background(), quoteAt("AAPL", 100+float64(i), t0.Add(time.Duration(i)*time.Minute)))
	}

	if got := len(e.Orders()); got != 1 {
		t.Fatalf("orders = %d, want 1: repeated buy labels must be gated", got)
	}
}

func TestSignalResumesAfterTransition(t *testing.T) {
	e := New(frictionless(&memRecorder{}, nil))
	e.AddStrategy(&scripted{name: "stub", acts: map[int]model.Action{
		1: model.ActionBuy,
		3: model.ActionSell,
		5: model.ActionBuy,
	}})

	t0 := time.Date(2026, 3, 2, 14, 30, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		e.handleQuote(context.Background(), quoteAt("AAPL", 100, t0.Add(time.Duration(i)*time.Minute)))
	}

	orders := e.Orders()
	if len(orders) != 3 {
		t.Fatalf("orders = %d, want buy/sell/buy", len(orders))
	}
	wantSides := []model.Action{model.ActionBuy, model.ActionSell, model.ActionBuy}
	wantIDs := []string{"PAPER-1", "PAPER-2", "PAPER-3"}
	for i, o := range orders {
		if o.Side != wantSides[i] || o.OrderID != wantIDs[i] {
			t.Errorf("order %d = %s %s, want %s %s", i, o.OrderID, o.Side, wantIDs[i], wantSides[i])
		}
	}
}

func TestSellWithoutPositionPlacesNoOrder(t *testing.T) {
	e := New(frictionless(&memRecorder{}, nil))
	e.AddStrategy(&scripted{name: "stub", acts: map[int]model.Action{1: model.ActionSell}})

	e.handleQuote(context.Background(), quoteAt("AAPL", 100, time.Now().UTC()))

	if got := len(e.Orders()); got != 0 {
		t.Fatalf("orders = %d, want 0 when there is nothing to sell", got)
	}
}

func TestOversizedOrderRejected(t *testing.T) {
	not := &memNotifier{}
	cfg := frictionless(&memRecorder{}, not)
	cfg.PositionSize = 0.5
	cfg.Limits.MaxPositionSize = 0.05
	e := New(cfg)
	e.AddStrategy(&scripted{name: "stub", acts: map[int]model.Action{1: model.ActionBuy}})

	e.handleQuote(context.Background(), quoteAt("AAPL", 100, time.Now().UTC()))

	orders := e.Orders()
	if len(orders) != 1 {
		t.Fatalf("orders = %d, want 1", len(orders))
	}
	if orders[0].Status != model.OrderRejected || orders[0].Reason == "" {
		t.Fatalf("order = %+v, want rejected with reason", orders[0])
	}
	if len(e.Ledger().Positions()) != 0 {
		t.Error("rejection must not open a position")
	}
	if cash := e.Ledger().Cash(); math.Abs(cash-10000) > 1e-9 {
		t.Errorf("cash = %v, want untouched 10000", cash)
	}
	if len(not.alerts) != 1 || not.alerts[0].Level != notification.AlertWarning {
		t.Fatalf("alerts = %+v, want one rejection warning", not.alerts)
	}
}

func TestStopLossSweepClosesPosition(t *testing.T) {
	rec := &memRecorder{}
	not := &memNotifier{}
	e := New(frictionless(rec, not))
	e.AddStrategy(&scripted{name: "stub", acts: map[int]model.Action{1: model.ActionBuy}})

	t0 := time.Date(2026, 3, 2, 14, 30, 0, 0, time.UTC)
	e.handleQuote(context.Background(), quoteAt("AAPL", 100, t0))
	// 6% below entry, past the 5% stop.
	e.handleQuote(context.Background(), quoteAt("AAPL", 94, t0.Add(time.Minute)))

	if len(e.Ledger().Positions()) != 0 {
		t.Fatal("position should be force-closed by the stop loss")
	}
	if len(rec.trades) != 2 {
		t.Fatalf("recorded trades = %d, want buy + forced sell", len(rec.trades))
	}
	closeTrade := rec.trades[1]
	if closeTrade.Reason != model.ReasonStopLoss || closeTrade.Side != model.ActionSell {
		t.Fatalf("close trade = %+v, want sell with reason %s", closeTrade, model.ReasonStopLoss)
	}
	var sawCritical bool
	for _, a := range not.alerts {
		if a.Level == notification.AlertCritical && a.Symbol == "AAPL" {
			sawCritical = true
		}
	}
	if !sawCritical {
		t.Fatalf("alerts = %+v, want a critical risk alert for AAPL", not.alerts)
	}
}

func TestTakeProfitSweepClosesPosition(t *testing.T) {
	rec := &memRecorder{}
	e := New(frictionless(rec, nil))
	e.AddStrategy(&scripted{name: "stub", acts: map[int]model.Action{1: model.ActionBuy}})

	t0 := time.Date(2026, 3, 2, 14, 30, 0, 0, time.UTC)
	e.handleQuote(context.Background(), quoteAt("AAPL", 100, t0))
	// 16% above entry, past the 15% take profit.
	e.handleQuote(context.Background(), quoteAt("AAPL", 116, t0.Add(time.Minute)))

	if len(e.Ledger().Positions()) != 0 {
		t.Fatal("position should be force-closed by the take profit")
	}
	if got := rec.trades[len(rec.trades)-1].Reason; got != model.ReasonTakeProfit {
		t.Fatalf("close reason = %q, want %s", got, model.ReasonTakeProfit)
	}
	// Profit at 116 on a 100 entry.
	if cash := e.Ledger().Cash(); cash <= 10000 {
		t.Errorf("cash = %v, want above initial capital after take profit", cash)
	}
}

func TestMultipleSymbolsIndependentHistories(t *testing.T) {
	e := New(frictionless(&memRecorder{}, nil))
	e.AddStrategy(&scripted{name: "stub", acts: map[int]model.Action{2: model.ActionBuy}})

	t0 := time.Date(2026, 3, 2, 14, 30, 0, 0, time.UTC)
	// AAPL reaches two bars, MSFT only one: only AAPL should trigger.
	e.handleQuote(context.Background(), quoteAt("AAPL", 100, t0))
	e.handleQuote(context.Background(), quoteAt("MSFT", 200, t0.Add(time.Second)))
	e.handleQuote(context.Background(), quoteAt("AAPL", 101, t0.Add(time.Minute)))

	orders := e.Orders()
	if len(orders) != 1 || orders[0].Symbol != "AAPL" {
		t.Fatalf("orders = %+v, want a single AAPL buy", orders)
	}
}

func TestOnQuoteNeverBlocks(t *testing.T) {
	e := New(frictionless(nil, nil))
	done := make(chan struct{})
	go func() {
		for i := 0; i < 1000; i++ {
			e.OnQuote(model.Quote{Symbol: "AAPL", Price: 100, Timestamp: time.Now()})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("OnQuote blocked with no consumer running")
	}
}

func TestSchedulerStops(t *testing.T) {
	var calls atomic.Int64
	sched := NewScheduler("AAPL", 5*time.Millisecond, func(string) {
		calls.Add(1)
	})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sched.Run(ctx)

	time.Sleep(40 * time.Millisecond)
	sched.Stop()
	if !sched.Stopped() {
		t.Fatal("Stopped() = false after Stop")
	}
	n := calls.Load()
	if n == 0 {
		t.Fatal("scheduler never fired")
	}
	time.Sleep(40 * time.Millisecond)
	if got := calls.Load(); got != n {
		t.Fatalf("scheduler fired %d more times after Stop", got-n)
	}
}

func TestSubmitOrderManual(t *testing.T) {
	e := New(frictionless(&memRecorder{}, nil))

	// No quote yet: rejected up front.
	if _, err := e.SubmitOrder(context.Background(), "AAPL", model.ActionBuy, 5); err == nil {
		t.Fatal("want error before any quote is seen")
	}

	t0 := time.Date(2026, 3, 2, 14, 30, 0, 0, time.UTC)
	e.handleQuote(context.Background(), quoteAt("AAPL", 100, t0))

	order, err := e.SubmitOrder(context.Background(), "AAPL", model.ActionBuy, 5)
	if err != nil {
		t.Fatalf("SubmitOrder buy: %v", err)
	}
	if order.Status != model.OrderFilled || math.Abs(order.FilledQty-5) > 1e-9 {
		t.Fatalf("order = %+v, want 5 shares filled", order)
	}

	// Sell with qty 0 closes the whole position.
	order, err = e.SubmitOrder(context.Background(), "AAPL", model.ActionSell, 0)
	if err != nil {
		t.Fatalf("SubmitOrder sell: %v", err)
	}
	if math.Abs(order.FilledQty-5) > 1e-9 {
		t.Errorf("sell qty = %v, want full 5 shares", order.FilledQty)
	}
	if len(e.Ledger().Positions()) != 0 {
		t.Error("position should be closed")
	}
}

func TestSummaryReflectsLatestPrices(t *testing.T) {
	e := New(frictionless(&memRecorder{}, nil))
	e.AddStrategy(&scripted{name: "stub", acts: map[int]model.Action{1: model.ActionBuy}})

	t0 := time.Date(2026, 3, 2, 14, 30, 0, 0, time.UTC)
	e.handleQuote(context.Background(), quoteAt("AAPL", 100, t0))
	// Small move that trips neither risk limit.
	e.handleQuote(context.Background(), quoteAt("AAPL", 102, t0.Add(time.Minute)))

	sum := e.Summary()
	// 9000 cash + 10 shares at 102.
	if math.Abs(sum.PortfolioValue-10020) > 1e-9 {
		t.Errorf("portfolio value = %v, want 10020", sum.PortfolioValue)
	}
	if sum.PositionCount != 1 {
		t.Errorf("position count = %d, want 1", sum.PositionCount)
	}
}
