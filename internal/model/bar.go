// Package model defines the shared data types flowing through the system:
// OHLCV bars, strategy signals, orders, trades, and equity points.
//
// All prices are float64 (IEEE double precision). Bars are immutable once
// ingested; Signals and Trades are immutable once created.
package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Bar is one OHLCV sample for a symbol at a timestamp.
type Bar struct {
	Symbol    string    `json:"symbol"`
	Timestamp time.Time `json:"timestamp"` // UTC
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    int64     `json:"volume"`
}

// JSON returns the JSON-encoded bar (ignoring errors for hot-path usage).
func (b *Bar) JSON() []byte {
	out, _ := json.Marshal(b)
	return out
}

var (
	ErrEmptyBars         = errors.New("empty bar sequence")
	ErrBarOrder          = errors.New("bar timestamps must be strictly increasing")
	ErrNonPositivePrice  = errors.New("bar prices must be positive")
	ErrInconsistentRange = errors.New("bar high must be >= low")
)

// ValidateBars enforces the bar-sequence invariants: strictly increasing
// timestamps (no duplicates), all prices positive, high >= low.
func ValidateBars(bars []Bar) error {
	if len(bars) == 0 {
		return ErrEmptyBars
	}
	for i := range bars {
		b := &bars[i]
		if b.Open <= 0 || b.High <= 0 || b.Low <= 0 || b.Close <= 0 {
			return fmt.Errorf("bar %d (%s): %w", i, b.Timestamp.Format(time.RFC3339), ErrNonPositivePrice)
		}
		if b.High < b.Low {
			return fmt.Errorf("bar %d (%s): %w", i, b.Timestamp.Format(time.RFC3339), ErrInconsistentRange)
		}
		if i > 0 && !bars[i-1].Timestamp.Before(b.Timestamp) {
			return fmt.Errorf("bar %d (%s): %w", i, b.Timestamp.Format(time.RFC3339), ErrBarOrder)
		}
	}
	return nil
}

// Quote is a single live price sample delivered by a data feed.
type Quote struct {
	Symbol    string    `json:"symbol"`
	Price     float64   `json:"price"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Volume    int64     `json:"volume"`
	Timestamp time.Time `json:"timestamp"` // UTC
}

// Bar converts the quote into a single-sample bar, filling missing OHLC
// fields from the last price.
func (q *Quote) Bar() Bar {
	open, high, low := q.Open, q.High, q.Low
	if open <= 0 {
		open = q.Price
	}
	if high <= 0 {
		high = q.Price
	}
	if low <= 0 {
		low = q.Price
	}
	return Bar{
		Symbol:    q.Symbol,
		Timestamp: q.Timestamp,
		Open:      open,
		High:      high,
		Low:       low,
		Close:     q.Price,
		Volume:    q.Volume,
	}
}
