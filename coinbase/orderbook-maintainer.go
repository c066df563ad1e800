package coinbase

import (
	"context"
	"sync"
	"time"

	"github.com/gammazero/deque"
	"github.com/spooky-finn/go-coinbase-feed/domain"
	promclient "github.com/spooky-finn/go-coinbase-feed/infrastructure/prometheus"
)

// SnapshotSource is the slice of the sync API the maintainer depends
// on.
type SnapshotSource interface {
	BookSnapshots(ctx context.Context, productIDs []string) ([]*SnapshotResult, error)
}

type bufferedUpdate struct {
	seq       *int64
	changes   []domain.LevelChange
	venueTime time.Time
}

type resyncState struct {
	epoch   uint64
	pending deque.Deque[bufferedUpdate]
}

// OrderbookMaintainer drives snapshot seeding and gap recovery for
// the connection's book state. At most one fetch is in flight per
// symbol: gap signals raised while one is running coalesce into a
// no-op. Every fetch carries the epoch assigned at reset time and a
// result whose epoch no longer matches is discarded instead of
// resurrecting superseded state. Live updates arriving for a symbol
// whose fetch is in flight are queued and replayed once the snapshot
// has seeded the book.
type OrderbookMaintainer struct {
	syncAPI SnapshotSource
	keeper  *domain.BookKeeper
	symbols domain.SymbolTranslator
	sink    domain.Sink

	mu       sync.Mutex
	inFlight map[string]*resyncState
}

func NewOrderbookMaintainer(syncAPI SnapshotSource, keeper *domain.BookKeeper, symbols domain.SymbolTranslator, sink domain.Sink) *OrderbookMaintainer {
	return &OrderbookMaintainer{
		syncAPI:  syncAPI,
		keeper:   keeper,
		symbols:  symbols,
		sink:     sink,
		inFlight: make(map[string]*resyncState),
	}
}

// SeedBooks fetches authoritative depth for the given symbols and
// seeds their books, blocking until done. Meant to run once after the
// subscribe handshake; the sync API applies the warm-up delay and the
// inter-request spacing. The stream listener should already be
// running so updates landing mid-fetch get buffered.
func (m *OrderbookMaintainer) SeedBooks(ctx context.Context, symbols []*domain.MarketSymbol) error {
	m.mu.Lock()
	for _, symbol := range symbols {
		sym := symbol.String()
		if _, ok := m.inFlight[sym]; ok {
			continue
		}
		m.inFlight[sym] = &resyncState{epoch: m.keeper.Reset(sym)}
	}
	m.mu.Unlock()

	return m.fetchAndSeed(ctx, symbols)
}

// ScheduleResync clears all state for the symbol and schedules
// exactly one replacement fetch. A no-op when a fetch for the symbol
// is already in flight.
func (m *OrderbookMaintainer) ScheduleResync(symbol *domain.MarketSymbol) {
	sym := symbol.String()

	m.mu.Lock()
	if _, ok := m.inFlight[sym]; ok {
		m.mu.Unlock()
		return
	}
	m.inFlight[sym] = &resyncState{epoch: m.keeper.Reset(sym)}
	m.mu.Unlock()

	promclient.ResyncCounter.Inc()
	promclient.OpenOrderBookGauge.Set(float64(m.keeper.BookCount()))

	go func() {
		if err := m.fetchAndSeed(context.Background(), []*domain.MarketSymbol{symbol}); err != nil {
			logger.Errorf("resync fetch for %s failed: %s", sym, err)
		}
	}()
}

// BufferWhileResyncing queues a live update for a symbol whose
// snapshot fetch is in flight. Reports whether the update was taken.
func (m *OrderbookMaintainer) BufferWhileResyncing(symbol *domain.MarketSymbol, seq *int64, changes []domain.LevelChange, venueTime time.Time) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.inFlight[symbol.String()]
	if !ok {
		return false
	}
	state.pending.PushBack(bufferedUpdate{seq: seq, changes: changes, venueTime: venueTime})
	return true
}

func (m *OrderbookMaintainer) fetchAndSeed(ctx context.Context, symbols []*domain.MarketSymbol) error {
	productIDs := make([]string, len(symbols))
	for i, symbol := range symbols {
		productID, err := m.symbols.ToVenue(symbol)
		if err != nil {
			m.abandon(symbols)
			return err
		}
		productIDs[i] = productID
	}

	results, err := m.syncAPI.BookSnapshots(ctx, productIDs)
	if err != nil {
		m.abandon(symbols)
		return err
	}

	received := time.Now()
	for i, res := range results {
		m.complete(symbols[i], res, received)
	}
	return nil
}

// abandon drops the in-flight markers after a failed fetch. The
// symbol state stays cleared; recovery happens on the next gap or an
// explicit caller retry.
func (m *OrderbookMaintainer) abandon(symbols []*domain.MarketSymbol) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, symbol := range symbols {
		delete(m.inFlight, symbol.String())
	}
}

func (m *OrderbookMaintainer) complete(symbol *domain.MarketSymbol, res *SnapshotResult, received time.Time) {
	sym := symbol.String()

	m.mu.Lock()
	state, ok := m.inFlight[sym]
	if ok {
		delete(m.inFlight, sym)
	}
	if !ok || state.epoch != m.keeper.Epoch(sym) {
		m.mu.Unlock()
		logger.Warnf("discarding superseded snapshot for %s", sym)
		return
	}

	book := m.keeper.SeedBook(symbol, res.Bids, res.Asks, res.Orders, res.Sequence)

	type replayed struct {
		delta     *domain.Delta
		venueTime time.Time
	}
	replays := make([]replayed, 0, state.pending.Len())
	for state.pending.Len() > 0 {
		upd := state.pending.PopFront()
		// updates older than the snapshot's reference point were
		// already folded into it
		if res.Sequence != nil && upd.seq != nil && *upd.seq <= *res.Sequence {
			continue
		}
		replays = append(replays, replayed{delta: book.ApplyUpdate(upd.changes), venueTime: upd.venueTime})
		// replayed updates bypass Classify, so the baseline has to
		// follow them or the next live update reads as a gap
		if upd.seq != nil {
			m.keeper.AdvanceBaseline(sym, *upd.seq)
		}
	}
	m.mu.Unlock()

	promclient.OpenOrderBookGauge.Set(float64(m.keeper.BookCount()))

	m.sink.BookSnapshot(book, received)
	for _, r := range replays {
		m.sink.BookUpdate(book, r.delta, r.venueTime, received)
	}
}
