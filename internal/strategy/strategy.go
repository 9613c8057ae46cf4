// Package strategy implements the signal generators.
//
// A Strategy maps a bar sequence to a same-length sequence of signals.
// Generators never fail on short input: when the indicator warmup window
// exceeds the available history they log a warning once and emit holds, so
// callers can treat every bar sequence uniformly.
package strategy

import (
	"errors"
	"fmt"

	"tradesim/internal/model"
)

// ErrUnknownStrategy is returned by New for an unregistered strategy name.
var ErrUnknownStrategy = errors.New("unknown strategy")

// Strategy is the interface all signal generators implement.
type Strategy interface {
	// Name returns the registry name of the strategy.
	Name() string

	// Generate maps bars to one signal per bar. It never returns an error:
	// insufficient history degrades to hold signals.
	Generate(bars []model.Bar) []model.Signal
}

// Config carries the tunable parameters for every built-in strategy.
// Zero values are replaced with the defaults below.
type Config struct {
	FastPeriod int // crossover fast SMA, default 20
	SlowPeriod int // crossover slow SMA, default 50

	RSIPeriod  int     // default 14
	Oversold   float64 // default 30
	Overbought float64 // default 70

	BBPeriod int     // default 20
	BBStdDev float64 // default 2
}

func (c Config) withDefaults() Config {
	if c.FastPeriod == 0 {
		c.FastPeriod = 20
	}
	if c.SlowPeriod == 0 {
		c.SlowPeriod = 50
	}
	if c.RSIPeriod == 0 {
		c.RSIPeriod = 14
	}
	if c.Oversold == 0 {
		c.Oversold = 30
	}
	if c.Overbought == 0 {
		c.Overbought = 70
	}
	if c.BBPeriod == 0 {
		c.BBPeriod = 20
	}
	if c.BBStdDev == 0 {
		c.BBStdDev = 2
	}
	return c
}

// Names lists the registered strategy names in registry order.
func Names() []string {
	return []string{"sma_crossover", "rsi_momentum", "bollinger"}
}

// New constructs a strategy by registry name.
func New(name string, cfg Config) (Strategy, error) {
	cfg = cfg.withDefaults()
	switch name {
	case "sma_crossover":
		return NewSMACrossover(cfg.FastPeriod, cfg.SlowPeriod), nil
	case "rsi_momentum":
		return NewRSIMomentum(cfg.RSIPeriod, cfg.Oversold, cfg.Overbought), nil
	case "bollinger":
		return NewBollinger(cfg.BBPeriod, cfg.BBStdDev), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, name)
	}
}

// holds returns an all-hold signal sequence for bars.
func holds(name string, bars []model.Bar) []model.Signal {
	out := make([]model.Signal, len(bars))
	for i := range bars {
		out[i] = model.Hold(name, bars[i])
	}
	return out
}

// clampStrength bounds a strength score to the [0, 100] scale.
func clampStrength(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
