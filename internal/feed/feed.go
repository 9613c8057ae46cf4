// Package feed provides market data sources: historical bar providers for
// backtesting and live quote sources for paper trading.
package feed

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"tradesim/internal/model"
)

// ErrSymbolNotFound is returned when a provider has no data for a symbol.
var ErrSymbolNotFound = errors.New("symbol not found")

// ErrBadPeriod is returned for an unparseable period or interval string.
var ErrBadPeriod = errors.New("bad period")

// HistoricalProvider serves ordered bar sequences for backtesting.
// Period is a duration string like "30d", "6mo", "1y"; interval is the bar
// width ("1d" is the only width the synthetic provider generates).
type HistoricalProvider interface {
	GetBars(ctx context.Context, symbol, period, interval string) ([]model.Bar, error)
}

// QuoteSource serves the latest quote for a symbol.
type QuoteSource interface {
	LatestQuote(ctx context.Context, symbol string) (model.Quote, error)
}

// parsePeriod converts a period string into a number of daily bars.
// Accepted suffixes: d (days), mo (months of ~21 trading days), y (years of
// 252 trading days).
func parsePeriod(period string) (int, error) {
	p := strings.ToLower(strings.TrimSpace(period))
	var mult int
	var num string
	switch {
	case strings.HasSuffix(p, "mo"):
		mult, num = 21, strings.TrimSuffix(p, "mo")
	case strings.HasSuffix(p, "y"):
		mult, num = 252, strings.TrimSuffix(p, "y")
	case strings.HasSuffix(p, "d"):
		mult, num = 1, strings.TrimSuffix(p, "d")
	default:
		return 0, fmt.Errorf("%w: %q", ErrBadPeriod, period)
	}
	n, err := strconv.Atoi(num)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%w: %q", ErrBadPeriod, period)
	}
	return n * mult, nil
}
