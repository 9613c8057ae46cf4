package model

import "time"

// Trade close reasons recorded by the simulation and paper engines.
const (
	ReasonStopLoss   = "stop_loss"
	ReasonTakeProfit = "take_profit"
	ReasonEndOfData  = "end_of_data"
	ReasonRiskLimit  = "risk_limit"
)

// Trade is an executed fill. Price is the post-slippage execution price;
// Commission is the fee charged on Value. Immutable once recorded.
type Trade struct {
	Timestamp  time.Time `json:"timestamp"`
	Symbol     string    `json:"symbol"`
	Side       Action    `json:"side"` // buy or sell
	Quantity   float64   `json:"quantity"`
	Price      float64   `json:"price"`
	Value      float64   `json:"value"` // Quantity * Price
	Commission float64   `json:"commission"`
	Reason     string    `json:"reason,omitempty"`
}

// EquityPoint is one sample of the portfolio equity curve.
// Equity = Cash + PositionValue.
type EquityPoint struct {
	Timestamp     time.Time `json:"timestamp"`
	Equity        float64   `json:"equity"`
	Cash          float64   `json:"cash"`
	PositionValue float64   `json:"position_value"`
}
