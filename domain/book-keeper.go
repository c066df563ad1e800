package domain

import (
	"sync"

	"github.com/shopspring/decimal"
)

// BookKeeper owns every piece of symbol-scoped synchronization state
// for one connection: the order books, the order record and the
// sequence baselines. Keeping it in one explicit value makes a reset
// an observable state replacement instead of a side effect scattered
// over fields.
//
// Message processing happens on the connection's single goroutine.
// The internal mutex exists because a resynchronization fetch
// completes on another goroutine; it does not make interleaved
// multi-writer update streams safe.
type BookKeeper struct {
	mu       sync.Mutex
	storage  *OrderBookStorage
	orders   map[string]OrderRecord
	guard    *SequenceGuard
	epochs   map[string]uint64
	maxDepth int
}

func NewBookKeeper(storage *OrderBookStorage, maxDepth int) *BookKeeper {
	return &BookKeeper{
		storage:  storage,
		orders:   make(map[string]OrderRecord),
		guard:    NewSequenceGuard(),
		epochs:   make(map[string]uint64),
		maxDepth: maxDepth,
	}
}

func (k *BookKeeper) Book(symbol string) (*OrderBook, error) {
	return k.storage.Get(symbol)
}

// Orders returns the order record of the current epoch for the
// symbol, nil when the last snapshot carried no order detail.
func (k *BookKeeper) Orders(symbol string) OrderRecord {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.orders[symbol]
}

// ClassifySequence runs the incoming sequence number through the
// sequence guard.
func (k *BookKeeper) ClassifySequence(symbol string, seq int64) Verdict {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.guard.Classify(symbol, seq)
}

// AdvanceBaseline moves the symbol's sequence baseline forward after
// updates have been folded into the book outside the Classify path,
// as when buffered updates are replayed over a fresh snapshot. A
// no-op while tracking is inactive or when seq is not ahead of the
// current baseline.
func (k *BookKeeper) AdvanceBaseline(symbol string, seq int64) {
	k.mu.Lock()
	defer k.mu.Unlock()

	last, ok := k.guard.Baseline(symbol)
	if !ok || seq <= last {
		return
	}
	k.guard.SetBaseline(symbol, seq)
}

// SeedBook replaces the symbol's book with snapshot depth,
// establishing a fresh epoch of content. The book is created on first
// use. orders and baseline may be nil when the snapshot source does
// not provide them.
func (k *BookKeeper) SeedBook(symbol *MarketSymbol, bids, asks map[string]decimal.Decimal, orders OrderRecord, baseline *int64) *OrderBook {
	sym := symbol.String()

	book, err := k.storage.Get(sym)
	if err != nil {
		book = NewOrderBook(symbol, k.maxDepth)
		k.storage.Add(sym, book)
	}
	book.ApplySnapshot(bids, asks)

	k.mu.Lock()
	defer k.mu.Unlock()

	if orders == nil {
		delete(k.orders, sym)
	} else {
		k.orders[sym] = orders
	}
	if baseline != nil {
		k.guard.SetBaseline(sym, *baseline)
	}
	return book
}

// Reset clears the book, the order record and the sequence baseline
// for one symbol, bumps its epoch and returns the new epoch so the
// replacement fetch can be tagged. Other symbols are untouched.
func (k *BookKeeper) Reset(symbol string) uint64 {
	k.storage.Remove(symbol)

	k.mu.Lock()
	defer k.mu.Unlock()

	delete(k.orders, symbol)
	k.guard.Reset(symbol)
	k.epochs[symbol]++
	return k.epochs[symbol]
}

// Epoch reports the current resynchronization epoch for the symbol.
func (k *BookKeeper) Epoch(symbol string) uint64 {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.epochs[symbol]
}

func (k *BookKeeper) BookCount() int {
	return k.storage.Count()
}
