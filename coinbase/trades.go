package coinbase

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spooky-finn/go-coinbase-feed/domain"
)

type rawTrade struct {
	TradeID   json.Number `json:"trade_id"`
	Side      string      `json:"side"`
	Size      string      `json:"size"`
	Price     string      `json:"price"`
	ProductID string      `json:"product_id"`
	Time      string      `json:"time"`
}

// normalizeTrade maps one raw venue trade onto the canonical record.
// An unrecognized side token fails the trade instead of silently
// counting it as a buy.
func normalizeTrade(raw rawTrade, symbols domain.SymbolTranslator) (*domain.Trade, error) {
	symbol, err := symbols.ToNormalized(raw.ProductID)
	if err != nil {
		return nil, err
	}

	side, err := domain.ParseTradeSide(raw.Side)
	if err != nil {
		return nil, err
	}

	size, err := decimal.NewFromString(raw.Size)
	if err != nil {
		return nil, fmt.Errorf("bad trade size %q: %w", raw.Size, err)
	}
	price, err := decimal.NewFromString(raw.Price)
	if err != nil {
		return nil, fmt.Errorf("bad trade price %q: %w", raw.Price, err)
	}

	ts, err := time.Parse(time.RFC3339Nano, raw.Time)
	if err != nil {
		return nil, fmt.Errorf("bad trade time %q: %w", raw.Time, err)
	}

	return &domain.Trade{
		ID:     raw.TradeID.String(),
		Symbol: symbol,
		Side:   side,
		Size:   size,
		Price:  price,
		Time:   ts,
	}, nil
}
