package coinbase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spooky-finn/go-coinbase-feed/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type maintainerFixture struct {
	maintainer *OrderbookMaintainer
	keeper     *domain.BookKeeper
	source     *fakeSnapshotSource
	sink       *fakeSink
}

func newMaintainerFixture(t *testing.T) *maintainerFixture {
	t.Helper()

	keeper := domain.NewBookKeeper(domain.NewOrderBookStorage(), 0)
	source := &fakeSnapshotSource{}
	sink := &fakeSink{}

	return &maintainerFixture{
		maintainer: NewOrderbookMaintainer(source, keeper, testSymbolTable(t), sink),
		keeper:     keeper,
		source:     source,
		sink:       sink,
	}
}

func TestOrderbookMaintainer_SeedBooks(t *testing.T) {
	f := newMaintainerFixture(t)
	f.source.results = map[string]*SnapshotResult{
		"BTC-USD": {
			ProductID: "BTC-USD",
			Bids:      map[string]decimal.Decimal{"100": decimal.RequireFromString("2")},
			Asks:      map[string]decimal.Decimal{"101": decimal.RequireFromString("1")},
			Orders:    make(domain.OrderRecord),
			Sequence:  seqp(50),
		},
	}

	symbols := []*domain.MarketSymbol{mustTableSymbol(t, "BTC-USD"), mustTableSymbol(t, "ETH-USD")}
	require.NoError(t, f.maintainer.SeedBooks(context.Background(), symbols))

	require.Equal(t, 1, f.source.callCount())
	assert.Equal(t, []string{"BTC-USD", "ETH-USD"}, f.source.calls[0])

	book, err := f.keeper.Book("btc_usd")
	require.NoError(t, err)
	bids, asks := book.Depth()
	assert.Equal(t, 1, bids)
	assert.Equal(t, 1, asks)

	_, err = f.keeper.Book("eth_usd")
	assert.NoError(t, err)

	// the snapshot's sequence becomes the tracking baseline
	assert.Equal(t, domain.SeqStale, f.keeper.ClassifySequence("btc_usd", 50))
	assert.Equal(t, domain.SeqAccept, f.keeper.ClassifySequence("btc_usd", 51))

	calls := f.sink.snapshot()
	require.Len(t, calls, 2)
	assert.Equal(t, "snapshot", calls[0].kind)
	assert.Equal(t, "snapshot", calls[1].kind)
}

func TestOrderbookMaintainer_SingleFlight(t *testing.T) {
	f := newMaintainerFixture(t)
	f.source.gate = make(chan struct{})
	symbol := mustTableSymbol(t, "BTC-USD")

	f.maintainer.ScheduleResync(symbol)
	f.maintainer.ScheduleResync(symbol)
	f.maintainer.ScheduleResync(symbol)

	assert.Eventually(t, func() bool { return f.source.callCount() == 1 }, time.Second, 10*time.Millisecond)

	close(f.source.gate)
	assert.Eventually(t, func() bool {
		_, err := f.keeper.Book("btc_usd")
		return err == nil
	}, time.Second, 10*time.Millisecond)

	assert.Equal(t, 1, f.source.callCount(), "coalesced gap signals share one fetch")
}

func TestOrderbookMaintainer_SupersededResultDiscarded(t *testing.T) {
	f := newMaintainerFixture(t)
	f.source.gate = make(chan struct{})
	symbol := mustTableSymbol(t, "BTC-USD")

	f.maintainer.ScheduleResync(symbol)
	assert.Eventually(t, func() bool { return f.source.callCount() == 1 }, time.Second, 10*time.Millisecond)

	// the symbol is reset again while the fetch is in flight, so the
	// pending result belongs to a dead epoch
	f.keeper.Reset("btc_usd")
	close(f.source.gate)

	assert.Never(t, func() bool {
		_, err := f.keeper.Book("btc_usd")
		return err == nil
	}, 200*time.Millisecond, 20*time.Millisecond, "a superseded snapshot must not seed the book")

	assert.Empty(t, f.sink.snapshot())
}

func TestOrderbookMaintainer_ReplaysBufferedUpdates(t *testing.T) {
	f := newMaintainerFixture(t)
	f.source.gate = make(chan struct{})
	f.source.results = map[string]*SnapshotResult{
		"BTC-USD": {
			ProductID: "BTC-USD",
			Bids:      map[string]decimal.Decimal{"100": decimal.RequireFromString("2")},
			Asks:      map[string]decimal.Decimal{"101": decimal.RequireFromString("1")},
			Orders:    make(domain.OrderRecord),
			Sequence:  seqp(50),
		},
	}
	symbol := mustTableSymbol(t, "BTC-USD")

	f.maintainer.ScheduleResync(symbol)
	assert.Eventually(t, func() bool { return f.source.callCount() == 1 }, time.Second, 10*time.Millisecond)

	folded := []domain.LevelChange{{Side: domain.SideBid, Price: decimal.RequireFromString("999"), Quantity: decimal.RequireFromString("9")}}
	kept := []domain.LevelChange{{Side: domain.SideBid, Price: decimal.RequireFromString("105"), Quantity: decimal.RequireFromString("3")}}

	require.True(t, f.maintainer.BufferWhileResyncing(symbol, seqp(50), folded, time.Now()))
	require.True(t, f.maintainer.BufferWhileResyncing(symbol, seqp(51), kept, time.Now()))

	close(f.source.gate)
	assert.Eventually(t, func() bool {
		_, err := f.keeper.Book("btc_usd")
		return err == nil
	}, time.Second, 10*time.Millisecond)

	book, err := f.keeper.Book("btc_usd")
	require.NoError(t, err)
	view := book.TakeSnapshot(0)

	prices := make([]string, 0, len(view.Bids))
	for _, level := range view.Bids {
		prices = append(prices, level.Price.String())
	}
	assert.Contains(t, prices, "105", "update newer than the snapshot is replayed")
	assert.NotContains(t, prices, "999", "update already folded into the snapshot is skipped")

	assert.Eventually(t, func() bool { return len(f.sink.snapshot()) == 2 }, time.Second, 10*time.Millisecond)
	calls := f.sink.snapshot()
	assert.Equal(t, "snapshot", calls[0].kind)
	assert.Equal(t, "update", calls[1].kind)

	// the baseline follows the replayed updates, so the stream
	// resumes without a spurious gap
	assert.Equal(t, domain.SeqStale, f.keeper.ClassifySequence("btc_usd", 51))
	assert.Equal(t, domain.SeqAccept, f.keeper.ClassifySequence("btc_usd", 52))
}

func TestOrderbookMaintainer_FetchErrorAbandons(t *testing.T) {
	f := newMaintainerFixture(t)
	f.source.err = errors.New("rate limited")
	symbol := mustTableSymbol(t, "BTC-USD")

	err := f.maintainer.SeedBooks(context.Background(), []*domain.MarketSymbol{symbol})
	require.Error(t, err)

	// the marker is dropped so a later gap can schedule a fresh fetch
	assert.False(t, f.maintainer.BufferWhileResyncing(symbol, seqp(1), nil, time.Now()))
	_, bookErr := f.keeper.Book("btc_usd")
	assert.ErrorIs(t, bookErr, domain.ErrOrderBookNotFound)

	f.source.err = nil
	f.maintainer.ScheduleResync(symbol)
	assert.Eventually(t, func() bool {
		_, err := f.keeper.Book("btc_usd")
		return err == nil
	}, time.Second, 10*time.Millisecond)
}

func TestOrderbookMaintainer_UnknownSymbolFailsSeed(t *testing.T) {
	f := newMaintainerFixture(t)

	unknown, err := domain.NewMarketSymbol("doge", "usd")
	require.NoError(t, err)

	err = f.maintainer.SeedBooks(context.Background(), []*domain.MarketSymbol{unknown})
	assert.ErrorIs(t, err, domain.ErrSymbolNotFound)
	assert.Equal(t, 0, f.source.callCount())
}
