package model

import "time"

// Action is a trading action recommended by a strategy or carried by an order.
type Action string

const (
	ActionHold Action = "hold"
	ActionBuy  Action = "buy"
	ActionSell Action = "sell"
)

// Signal is a strategy's recommendation for a single bar.
//
// Strength is a heuristic confidence score in [0,100], not a probability.
// Indicators holds the values the strategy used to decide; entries that were
// still inside their warmup window are absent rather than zero.
type Signal struct {
	Strategy   string             `json:"strategy"`
	Symbol     string             `json:"symbol"`
	Timestamp  time.Time          `json:"timestamp"`
	Price      float64            `json:"price"`
	Label      Action             `json:"label"`
	Strength   float64            `json:"strength"`
	Reason     string             `json:"reason,omitempty"`
	Indicators map[string]float64 `json:"indicators,omitempty"`
}

// Hold returns a hold signal for the given bar with no indicator snapshot.
func Hold(strategy string, bar Bar) Signal {
	return Signal{
		Strategy:  strategy,
		Symbol:    bar.Symbol,
		Timestamp: bar.Timestamp,
		Price:     bar.Close,
		Label:     ActionHold,
	}
}
