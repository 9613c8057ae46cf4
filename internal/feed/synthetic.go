package feed

import (
	"context"
	"fmt"
	"hash/fnv"
	"math/rand"
	"sync"
	"time"

	"tradesim/internal/model"
)

// Synthetic generates seeded random-walk data. The same seed and symbol
// always produce the same bar sequence, which keeps backtests reproducible
// without a network dependency.
type Synthetic struct {
	seed  int64
	start time.Time

	mu     sync.Mutex
	prices map[string]float64
	rng    *rand.Rand
}

// NewSynthetic creates a synthetic feed. start anchors the first bar's
// timestamp; a zero start defaults to one period before today.
func NewSynthetic(seed int64, start time.Time) *Synthetic {
	return &Synthetic{
		seed:   seed,
		start:  start,
		prices: make(map[string]float64),
		rng:    rand.New(rand.NewSource(seed)),
	}
}

// basePrice derives a stable starting price in [50, 250) from the symbol.
func (s *Synthetic) basePrice(symbol string) float64 {
	h := fnv.New64a()
	h.Write([]byte(symbol))
	return 50 + float64(h.Sum64()%200)
}

func (s *Synthetic) symbolSeed(symbol string) int64 {
	h := fnv.New64a()
	h.Write([]byte(symbol))
	return s.seed ^ int64(h.Sum64())
}

// GetBars generates a daily random walk of the requested period. Repeated
// calls with the same symbol and period return identical data.
func (s *Synthetic) GetBars(ctx context.Context, symbol, period, interval string) ([]model.Bar, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if interval != "" && interval != "1d" {
		return nil, fmt.Errorf("%w: unsupported interval %q", ErrBadPeriod, interval)
	}
	n, err := parsePeriod(period)
	if err != nil {
		return nil, err
	}

	start := s.start
	if start.IsZero() {
		start = time.Now().UTC().AddDate(0, 0, -n)
	}
	start = start.Truncate(24 * time.Hour)

	rng := rand.New(rand.NewSource(s.symbolSeed(symbol)))
	price := s.basePrice(symbol)
	bars := make([]model.Bar, n)
	for i := 0; i < n; i++ {
		open := price
		change := (rng.Float64()*2 - 1) * 0.02
		close := open * (1 + change)
		high := open
		if close > high {
			high = close
		}
		high *= 1 + rng.Float64()*0.005
		low := open
		if close < low {
			low = close
		}
		low *= 1 - rng.Float64()*0.005

		bars[i] = model.Bar{
			Symbol:    symbol,
			Timestamp: start.AddDate(0, 0, i),
			Open:      open,
			High:      high,
			Low:       low,
			Close:     close,
			Volume:    1000 + rng.Int63n(9000),
		}
		price = close
	}
	return bars, nil
}

// LatestQuote advances the symbol's live random walk by one step and returns
// the new quote.
func (s *Synthetic) LatestQuote(ctx context.Context, symbol string) (model.Quote, error) {
	if err := ctx.Err(); err != nil {
		return model.Quote{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	price, ok := s.prices[symbol]
	if !ok {
		price = s.basePrice(symbol)
	}
	price *= 1 + (s.rng.Float64()*2-1)*0.02
	s.prices[symbol] = price

	return model.Quote{
		Symbol:    symbol,
		Price:     price,
		Volume:    1000 + s.rng.Int63n(9000),
		Timestamp: time.Now().UTC(),
	}, nil
}
