package strategy

import (
	"fmt"
	"log"

	"tradesim/internal/indicator"
	"tradesim/internal/model"
)

// Bollinger signals on band interaction, mixing mean reversion with breakout
// and trend continuation.
//
// Rules are checked in strict priority order per bar; the first match wins:
//
//  1. touch reversion: price at/beyond a band while the bands are wide (>5%)
//  2. breakout: position ratio beyond [−0.05, 1.05], trend-following entry
//  3. squeeze: band width under 3%, direction from the middle band, strength 30
//  4. trend continuation: position ratio above 0.8 or below 0.2, strength 40
type Bollinger struct {
	period int
	stdDev float64
}

// NewBollinger creates the Bollinger band strategy with the given window and
// standard-deviation multiple.
func NewBollinger(period int, stdDev float64) *Bollinger {
	return &Bollinger{period: period, stdDev: stdDev}
}

func (s *Bollinger) Name() string { return "bollinger" }

func (s *Bollinger) Generate(bars []model.Bar) []model.Signal {
	if len(bars) < s.period {
		log.Printf("[strategy] %s: insufficient data, need %d bars, got %d", s.Name(), s.period, len(bars))
		return holds(s.Name(), bars)
	}

	closes := indicator.Closes(bars)
	bands := indicator.Bollinger(closes, s.period, s.stdDev)

	out := make([]model.Signal, len(bars))
	for i := range bars {
		sig := model.Hold(s.Name(), bars[i])
		if !bands.Upper.Defined(i) || !bands.Middle.Defined(i) || !bands.Lower.Defined(i) {
			out[i] = sig
			continue
		}
		price := bars[i].Close
		upper, middle, lower := bands.Upper[i], bands.Middle[i], bands.Lower[i]
		width := bands.Width[i]
		// Position of price inside the band envelope: 0 at the lower band,
		// 1 at the upper. Can leave [0,1] on breakouts.
		position := 0.0
		if upper != lower {
			position = (price - lower) / (upper - lower)
		}
		sig.Indicators = map[string]float64{
			"bb_upper":    upper,
			"bb_middle":   middle,
			"bb_lower":    lower,
			"bb_width":    width,
			"bb_position": position,
		}

		switch {
		case price <= lower && width > 5:
			sig.Label = model.ActionBuy
			sig.Strength = clampStrength((lower - price) / lower * 1000)
			sig.Reason = fmt.Sprintf("price at lower band (%.2f <= %.2f)", price, lower)
		case price >= upper && width > 5:
			sig.Label = model.ActionSell
			sig.Strength = clampStrength((price - upper) / upper * 1000)
			sig.Reason = fmt.Sprintf("price at upper band (%.2f >= %.2f)", price, upper)
		case price > upper && position > 1.05:
			sig.Label = model.ActionBuy
			sig.Strength = clampStrength((price - upper) / upper * 500)
			sig.Reason = "bullish breakout above upper band"
		case price < lower && position < -0.05:
			sig.Label = model.ActionSell
			sig.Strength = clampStrength((lower - price) / lower * 500)
			sig.Reason = "bearish breakdown below lower band"
		case width < 3 && price > middle:
			sig.Label = model.ActionBuy
			sig.Strength = 30
			sig.Reason = "low volatility squeeze, price above middle"
		case width < 3 && price < middle:
			sig.Label = model.ActionSell
			sig.Strength = 30
			sig.Reason = "low volatility squeeze, price below middle"
		case position > 0.8 && price > middle:
			sig.Label = model.ActionBuy
			sig.Strength = 40
			sig.Reason = "trend following: price in upper half of bands"
		case position < 0.2 && price < middle:
			sig.Label = model.ActionSell
			sig.Strength = 40
			sig.Reason = "trend following: price in lower half of bands"
		}
		out[i] = sig
	}
	return out
}
