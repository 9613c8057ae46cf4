package strategy

import (
	"fmt"
	"log"
	"math"

	"tradesim/internal/indicator"
	"tradesim/internal/model"
)

// SMACrossover signals on moving-average crossings.
//
// Buy: fast SMA crosses above slow SMA (golden cross)
// Sell: fast SMA crosses below slow SMA (death cross)
//
// Strength is the relative gap between the averages at the crossing bar.
type SMACrossover struct {
	fastPeriod int
	slowPeriod int
}

// NewSMACrossover creates the crossover strategy. fastPeriod < slowPeriod
// (e.g. 20 and 50).
func NewSMACrossover(fastPeriod, slowPeriod int) *SMACrossover {
	return &SMACrossover{fastPeriod: fastPeriod, slowPeriod: slowPeriod}
}

func (s *SMACrossover) Name() string { return "sma_crossover" }

func (s *SMACrossover) Generate(bars []model.Bar) []model.Signal {
	if len(bars) < s.slowPeriod+1 {
		log.Printf("[strategy] %s: insufficient data, need %d bars, got %d", s.Name(), s.slowPeriod+1, len(bars))
		return holds(s.Name(), bars)
	}

	closes := indicator.Closes(bars)
	fast := indicator.SMA(closes, s.fastPeriod)
	slow := indicator.SMA(closes, s.slowPeriod)

	out := make([]model.Signal, len(bars))
	for i := range bars {
		sig := model.Hold(s.Name(), bars[i])
		if fast.Defined(i) && slow.Defined(i) {
			sig.Indicators = map[string]float64{
				"sma_fast": fast[i],
				"sma_slow": slow[i],
			}
			// A crossing needs the previous bar's averages too.
			if fast.Defined(i-1) && slow.Defined(i-1) {
				switch cross(fast[i-1], slow[i-1], fast[i], slow[i]) {
				case model.ActionBuy:
					sig.Label = model.ActionBuy
					sig.Strength = clampStrength((fast[i] - slow[i]) / slow[i] * 100)
					sig.Reason = fmt.Sprintf("golden cross: fast %.2f > slow %.2f", fast[i], slow[i])
				case model.ActionSell:
					sig.Label = model.ActionSell
					sig.Strength = clampStrength(math.Abs(fast[i]-slow[i]) / slow[i] * 100)
					sig.Reason = fmt.Sprintf("death cross: fast %.2f < slow %.2f", fast[i], slow[i])
				}
			}
		}
		out[i] = sig
	}
	return out
}

// cross classifies the transition between two consecutive fast/slow pairs.
// Returns ActionHold when no crossing occurred.
func cross(prevFast, prevSlow, fast, slow float64) model.Action {
	if prevFast <= prevSlow && fast > slow {
		return model.ActionBuy
	}
	if prevFast >= prevSlow && fast < slow {
		return model.ActionSell
	}
	return model.ActionHold
}
