package domain

import "errors"

var (
	ErrOrderBookNotFound  = errors.New("orderbook not found")
	ErrMissingCredentials = errors.New("missing api credentials")
	ErrSymbolNotFound     = errors.New("symbol not found")
	ErrUnknownTradeSide   = errors.New("unknown trade side")
)
