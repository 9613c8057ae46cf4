package strategy

import (
	"fmt"
	"log"

	"tradesim/internal/indicator"
	"tradesim/internal/model"
)

// RSIMomentum signals on RSI extremes confirmed by a 20-period SMA trend
// filter.
//
// Primary buy: RSI below the oversold threshold with price above the SMA.
// Primary sell: RSI above the overbought threshold with price below the SMA.
// Two softer momentum rules fire at fixed strength 50 when RSI is merely
// leaning (<40 or >60) and price sits 2% beyond the SMA. Rules are evaluated
// in order; the first match wins.
type RSIMomentum struct {
	period     int
	oversold   float64
	overbought float64
}

// trendPeriod is the SMA confirmation window shared by all RSI rules.
const trendPeriod = 20

// NewRSIMomentum creates the RSI momentum strategy with the given period and
// oversold/overbought thresholds.
func NewRSIMomentum(period int, oversold, overbought float64) *RSIMomentum {
	return &RSIMomentum{period: period, oversold: oversold, overbought: overbought}
}

func (s *RSIMomentum) Name() string { return "rsi_momentum" }

func (s *RSIMomentum) Generate(bars []model.Bar) []model.Signal {
	need := s.period + 1
	if trendPeriod > need {
		need = trendPeriod
	}
	if len(bars) < need {
		log.Printf("[strategy] %s: insufficient data, need %d bars, got %d", s.Name(), need, len(bars))
		return holds(s.Name(), bars)
	}

	closes := indicator.Closes(bars)
	rsi := indicator.RSI(closes, s.period)
	sma := indicator.SMA(closes, trendPeriod)

	out := make([]model.Signal, len(bars))
	for i := range bars {
		sig := model.Hold(s.Name(), bars[i])
		if !rsi.Defined(i) || !sma.Defined(i) {
			out[i] = sig
			continue
		}
		price := bars[i].Close
		sig.Indicators = map[string]float64{
			"rsi":    rsi[i],
			"sma_20": sma[i],
		}

		switch {
		case rsi[i] < s.oversold && price > sma[i]:
			sig.Label = model.ActionBuy
			sig.Strength = clampStrength((s.oversold - rsi[i]) / s.oversold * 100)
			sig.Reason = fmt.Sprintf("rsi oversold (%.1f) and price above sma", rsi[i])
		case rsi[i] > s.overbought && price < sma[i]:
			sig.Label = model.ActionSell
			sig.Strength = clampStrength((rsi[i] - s.overbought) / (100 - s.overbought) * 100)
			sig.Reason = fmt.Sprintf("rsi overbought (%.1f) and price below sma", rsi[i])
		case rsi[i] < 40 && price > sma[i]*1.02:
			sig.Label = model.ActionBuy
			sig.Strength = 50
			sig.Reason = "momentum buy: rsi recovering and price above sma"
		case rsi[i] > 60 && price < sma[i]*0.98:
			sig.Label = model.ActionSell
			sig.Strength = 50
			sig.Reason = "momentum sell: rsi declining and price below sma"
		}
		out[i] = sig
	}
	return out
}
