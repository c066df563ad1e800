package domain

import (
	"sort"
	"sync"

	"github.com/shopspring/decimal"
)

type Side string

const (
	SideBid Side = "bid"
	SideAsk Side = "ask"
)

// PriceLevel is one aggregated depth level. A zero Quantity is the
// removal sentinel in updates and deltas and is never stored.
type PriceLevel struct {
	Price    decimal.Decimal
	Quantity decimal.Decimal
}

// LevelChange is one entry of an incremental update batch.
type LevelChange struct {
	Side     Side
	Price    decimal.Decimal
	Quantity decimal.Decimal
}

// Delta holds the changes actually applied by one update batch, per
// side, in batch order. Removals are recorded with a zero quantity and
// only when the level existed.
type Delta struct {
	Bids []PriceLevel
	Asks []PriceLevel
}

// BookView is a point-in-time, depth-limited copy of a book handed to
// read-side consumers. Levels are sorted best first.
type BookView struct {
	Symbol string
	Bids   []PriceLevel
	Asks   []PriceLevel
}

// OrderBook keeps the aggregated L2 depth for a single symbol. Price
// levels are keyed by the canonical decimal rendering of the price so
// "100.50" and "100.5" land on the same level.
//
// Mutations must come from the connection's single processing
// goroutine; the mutex only makes TakeSnapshot safe against a
// mid-batch read from another goroutine.
type OrderBook struct {
	Symbol *MarketSymbol

	maxDepth int
	bids     map[string]decimal.Decimal
	asks     map[string]decimal.Decimal

	updateMx sync.Mutex
}

// NewOrderBook creates an empty book. maxDepth of zero means
// unbounded.
func NewOrderBook(symbol *MarketSymbol, maxDepth int) *OrderBook {
	return &OrderBook{
		Symbol:   symbol,
		maxDepth: maxDepth,
		bids:     make(map[string]decimal.Decimal),
		asks:     make(map[string]decimal.Decimal),
	}
}

// ApplySnapshot replaces both sides wholesale. The caller hands over
// ownership of the maps.
func (ob *OrderBook) ApplySnapshot(bids, asks map[string]decimal.Decimal) {
	ob.updateMx.Lock()
	defer ob.updateMx.Unlock()

	if bids == nil {
		bids = make(map[string]decimal.Decimal)
	}
	if asks == nil {
		asks = make(map[string]decimal.Decimal)
	}
	ob.bids = bids
	ob.asks = asks
	ob.trimDepth()
}

// ApplyUpdate applies one batch of level changes atomically with
// respect to TakeSnapshot and returns the delta of what actually
// changed.
func (ob *OrderBook) ApplyUpdate(changes []LevelChange) *Delta {
	ob.updateMx.Lock()
	defer ob.updateMx.Unlock()

	delta := &Delta{}
	for _, change := range changes {
		side := ob.bids
		if change.Side == SideAsk {
			side = ob.asks
		}

		key := change.Price.String()
		if change.Quantity.IsZero() {
			if _, ok := side[key]; !ok {
				continue
			}
			delete(side, key)
		} else {
			side[key] = change.Quantity
		}

		level := PriceLevel{Price: change.Price, Quantity: change.Quantity}
		if change.Side == SideAsk {
			delta.Asks = append(delta.Asks, level)
		} else {
			delta.Bids = append(delta.Bids, level)
		}
	}

	ob.trimDepth()
	return delta
}

// TakeSnapshot copies up to limit levels per side, best first. A limit
// of zero returns the whole book.
func (ob *OrderBook) TakeSnapshot(limit int) *BookView {
	ob.updateMx.Lock()
	defer ob.updateMx.Unlock()

	bids := sortedLevels(ob.bids, true)
	asks := sortedLevels(ob.asks, false)

	if limit > 0 && len(bids) > limit {
		bids = bids[:limit]
	}
	if limit > 0 && len(asks) > limit {
		asks = asks[:limit]
	}

	return &BookView{
		Symbol: ob.Symbol.String(),
		Bids:   bids,
		Asks:   asks,
	}
}

// Depth reports the retained level count per side.
func (ob *OrderBook) Depth() (bids int, asks int) {
	ob.updateMx.Lock()
	defer ob.updateMx.Unlock()
	return len(ob.bids), len(ob.asks)
}

// trimDepth drops levels beyond maxDepth, starting from the side
// farthest away from the best price. Callers hold updateMx.
func (ob *OrderBook) trimDepth() {
	if ob.maxDepth <= 0 {
		return
	}

	if len(ob.bids) > ob.maxDepth {
		for _, level := range sortedLevels(ob.bids, true)[ob.maxDepth:] {
			delete(ob.bids, level.Price.String())
		}
	}
	if len(ob.asks) > ob.maxDepth {
		for _, level := range sortedLevels(ob.asks, false)[ob.maxDepth:] {
			delete(ob.asks, level.Price.String())
		}
	}
}

func sortedLevels(side map[string]decimal.Decimal, descending bool) []PriceLevel {
	levels := make([]PriceLevel, 0, len(side))
	for key, qty := range side {
		price, err := decimal.NewFromString(key)
		if err != nil {
			// keys are produced by decimal.String, this cannot happen
			continue
		}
		levels = append(levels, PriceLevel{Price: price, Quantity: qty})
	}

	sort.Slice(levels, func(i, j int) bool {
		if descending {
			return levels[i].Price.GreaterThan(levels[j].Price)
		}
		return levels[i].Price.LessThan(levels[j].Price)
	})

	return levels
}
