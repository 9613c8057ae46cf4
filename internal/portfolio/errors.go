package portfolio

import "errors"

// Order rejection reasons. A rejected order leaves the ledger unchanged.
var (
	ErrInsufficientCash    = errors.New("insufficient cash")
	ErrInsufficientShares  = errors.New("insufficient shares")
	ErrPositionTooLarge    = errors.New("position size exceeds limit")
	ErrMaxPositionsReached = errors.New("max positions reached")
	ErrUnknownSymbol       = errors.New("unknown symbol")
)
