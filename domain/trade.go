package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type TradeSide string

const (
	TradeSideBuy  TradeSide = "buy"
	TradeSideSell TradeSide = "sell"
)

// ParseTradeSide maps the venue side token onto the canonical side.
// Unrecognized tokens are an error rather than an implicit buy.
func ParseTradeSide(token string) (TradeSide, error) {
	switch token {
	case "BUY":
		return TradeSideBuy, nil
	case "SELL":
		return TradeSideSell, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownTradeSide, token)
}

// Trade is the canonical trade record delivered to the sink.
type Trade struct {
	ID     string
	Symbol *MarketSymbol
	Side   TradeSide
	Size   decimal.Decimal
	Price  decimal.Decimal
	Time   time.Time
}
