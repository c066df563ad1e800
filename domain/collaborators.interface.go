package domain

import "time"

// Sink receives normalized records as the engine produces them. A book
// passed to the sink is never mid-batch: update batches apply
// atomically before delivery.
type Sink interface {
	Trade(t *Trade, received time.Time)
	BookSnapshot(book *OrderBook, received time.Time)
	BookUpdate(book *OrderBook, delta *Delta, venueTime, received time.Time)
}

// CredentialsProvider exposes the api key pair used for request
// signing.
type CredentialsProvider interface {
	KeyID() string
	KeySecret() string
}

// SymbolTranslator converts between venue product ids and normalized
// market symbols, both directions.
type SymbolTranslator interface {
	ToNormalized(venueID string) (*MarketSymbol, error)
	ToVenue(symbol *MarketSymbol) (string, error)
}
