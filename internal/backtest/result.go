package backtest

import (
	"encoding/json"
	"math"

	"tradesim/internal/model"
)

// Result is the full outcome of one backtest run. Percentage fields carry
// their values already scaled by 100. Ratio fields may be +Inf (no downside
// observed) and are encoded as JSON null.
type Result struct {
	Strategy       string  `json:"strategy"`
	Symbol         string  `json:"symbol"`
	InitialCapital float64 `json:"initial_capital"`
	FinalEquity    float64 `json:"final_equity"`
	TotalReturn    float64 `json:"total_return"`
	AnnualReturn   float64 `json:"annual_return"`
	MaxDrawdown    float64 `json:"max_drawdown"`

	Sharpe     float64 `json:"sharpe_ratio"`
	Sortino    float64 `json:"sortino_ratio"`
	Calmar     float64 `json:"calmar_ratio"`
	Volatility float64 `json:"volatility"`
	VaR95      float64 `json:"var_95"`

	MaxConsecutiveLosses int `json:"max_consecutive_losses"`
	TotalTrades          int `json:"total_trades"`

	Trades        []model.Trade       `json:"trades"`
	EquityCurve   []model.EquityPoint `json:"equity_curve"`
	TradeAnalysis TradeAnalysis       `json:"trade_analysis"`
}

// TradeAnalysis summarizes the paired round trips of a trade log. Pairing is
// positional: the i-th buy is matched with the i-th sell. Under interleaved
// buys across symbols this can mis-attribute durations; see the package
// documentation for the pairing policy.
type TradeAnalysis struct {
	TotalTrades   int     `json:"total_trades"`
	WinningTrades int     `json:"winning_trades"`
	LosingTrades  int     `json:"losing_trades"`
	WinRate       float64 `json:"win_rate"`
	AvgReturn     float64 `json:"avg_return"`
	AvgWinReturn  float64 `json:"avg_winning_return"`
	AvgLossReturn float64 `json:"avg_losing_return"`
	MaxWin        float64 `json:"max_win"`
	MaxLoss       float64 `json:"max_loss"`
	ProfitFactor  float64 `json:"profit_factor"`
	AvgDuration   float64 `json:"avg_trade_duration"` // calendar days
}

// jsonFloat encodes non-finite values as null: encoding/json rejects NaN and
// +/-Inf outright, and downstream consumers treat null as "not applicable".
type jsonFloat float64

func (f jsonFloat) MarshalJSON() ([]byte, error) {
	v := float64(f)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return []byte("null"), nil
	}
	return json.Marshal(v)
}

// MarshalJSON encodes the result with non-finite ratios sanitized to null.
func (r Result) MarshalJSON() ([]byte, error) {
	type alias Result
	return json.Marshal(struct {
		alias
		Sharpe       jsonFloat `json:"sharpe_ratio"`
		Sortino      jsonFloat `json:"sortino_ratio"`
		Calmar       jsonFloat `json:"calmar_ratio"`
		VaR95        jsonFloat `json:"var_95"`
		Volatility   jsonFloat `json:"volatility"`
		AnnualReturn jsonFloat `json:"annual_return"`
	}{
		alias:        alias(r),
		Sharpe:       jsonFloat(r.Sharpe),
		Sortino:      jsonFloat(r.Sortino),
		Calmar:       jsonFloat(r.Calmar),
		VaR95:        jsonFloat(r.VaR95),
		Volatility:   jsonFloat(r.Volatility),
		AnnualReturn: jsonFloat(r.AnnualReturn),
	})
}

// MarshalJSON encodes the analysis with a possibly infinite profit factor
// sanitized to null.
func (a TradeAnalysis) MarshalJSON() ([]byte, error) {
	type alias TradeAnalysis
	return json.Marshal(struct {
		alias
		ProfitFactor jsonFloat `json:"profit_factor"`
	}{
		alias:        alias(a),
		ProfitFactor: jsonFloat(a.ProfitFactor),
	})
}
