package domain

import "sync"

// OrderBookStorage is the lookup of live books by normalized symbol,
// shared between the connection's processing context and read-side
// consumers.
type OrderBookStorage struct {
	mu    sync.RWMutex
	books map[string]*OrderBook
}

func NewOrderBookStorage() *OrderBookStorage {
	return &OrderBookStorage{
		books: make(map[string]*OrderBook),
	}
}

func (o *OrderBookStorage) Add(symbol string, orderBook *OrderBook) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.books[symbol] = orderBook
}

func (o *OrderBookStorage) Get(symbol string) (*OrderBook, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	book, ok := o.books[symbol]
	if !ok {
		return nil, ErrOrderBookNotFound
	}
	return book, nil
}

func (o *OrderBookStorage) Remove(symbol string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.books, symbol)
}

func (o *OrderBookStorage) Count() int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return len(o.books)
}
