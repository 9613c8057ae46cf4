package model

// ── Storage Port Interfaces ──
// These interfaces decouple the engines from concrete storage implementations
// (SQLite, Redis). Persistence is fire-and-forget: implementations log their
// own failures and must never block or abort a running simulation.

// TradeSink records executed trades.
type TradeSink interface {
	SaveTrade(trade Trade)
}

// BarSink records ingested market data.
type BarSink interface {
	SaveBar(bar Bar)
}

// SignalSink records generated signals.
type SignalSink interface {
	SaveSignal(signal Signal)
}

// Recorder is the composite persistence collaborator consumed by the paper
// engine. A nil Recorder disables persistence entirely.
type Recorder interface {
	TradeSink
	BarSink
	SignalSink
}
