package usecase

import (
	"github.com/spooky-finn/go-coinbase-feed/domain"
)

// OrderBookSnapshotUseCase serves point-in-time depth views of the
// locally maintained books to downstream consumers (strategies,
// recorders), decoupled from the live synchronization path.
type OrderBookSnapshotUseCase struct {
	storage *domain.OrderBookStorage
}

func NewOrderBookSnapshotUseCase(storage *domain.OrderBookStorage) *OrderBookSnapshotUseCase {
	return &OrderBookSnapshotUseCase{
		storage: storage,
	}
}

// GetOrderBookSnapshot returns up to limit levels per side of the
// symbol's book, best first. domain.ErrOrderBookNotFound when the
// book has not been seeded (or is mid-resynchronization).
func (o *OrderBookSnapshotUseCase) GetOrderBookSnapshot(symbol *domain.MarketSymbol, limit int) (*domain.BookView, error) {
	book, err := o.storage.Get(symbol.String())
	if err != nil {
		return nil, err
	}
	return book.TakeSnapshot(limit), nil
}
