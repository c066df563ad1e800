package coinbase

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spooky-finn/go-coinbase-feed/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSymbolTable(t *testing.T) *SymbolTable {
	t.Helper()

	table := NewSymbolTable()
	for _, pair := range [][2]string{{"BTC-USD", "BTC"}, {"ETH-USD", "ETH"}} {
		symbol, err := domain.NewMarketSymbol(pair[1], "USD")
		require.NoError(t, err)
		table.add(pair[0], symbol, decimal.RequireFromString("0.01"))
	}
	return table
}

func TestNormalizeTrade(t *testing.T) {
	raw := rawTrade{
		TradeID:   "43736593",
		Side:      "SELL",
		Size:      "0.01235647",
		Price:     "8506.26",
		ProductID: "BTC-USD",
		Time:      "2024-05-21T00:26:05.585Z",
	}

	trade, err := normalizeTrade(raw, testSymbolTable(t))
	require.NoError(t, err)

	assert.Equal(t, "43736593", trade.ID)
	assert.Equal(t, "btc_usd", trade.Symbol.String())
	assert.Equal(t, domain.TradeSideSell, trade.Side)
	assert.True(t, trade.Size.Equal(decimal.RequireFromString("0.01235647")))
	assert.True(t, trade.Price.Equal(decimal.RequireFromString("8506.26")))
	assert.Equal(t, time.Date(2024, 5, 21, 0, 26, 5, 585000000, time.UTC), trade.Time.UTC())
}

func TestNormalizeTrade_RejectsUnknownSide(t *testing.T) {
	raw := rawTrade{
		TradeID:   "1",
		Side:      "MAYBE",
		Size:      "1",
		Price:     "1",
		ProductID: "BTC-USD",
		Time:      "2024-05-21T00:26:05Z",
	}

	_, err := normalizeTrade(raw, testSymbolTable(t))
	assert.ErrorIs(t, err, domain.ErrUnknownTradeSide)
}

func TestNormalizeTrade_UnknownProduct(t *testing.T) {
	raw := rawTrade{TradeID: "1", Side: "BUY", Size: "1", Price: "1", ProductID: "DOGE-USD", Time: "2024-05-21T00:26:05Z"}

	_, err := normalizeTrade(raw, testSymbolTable(t))
	assert.ErrorIs(t, err, domain.ErrSymbolNotFound)
}

func TestNormalizeTrade_BadFields(t *testing.T) {
	base := rawTrade{TradeID: "1", Side: "BUY", Size: "1", Price: "1", ProductID: "BTC-USD", Time: "2024-05-21T00:26:05Z"}

	bad := base
	bad.Size = "a lot"
	_, err := normalizeTrade(bad, testSymbolTable(t))
	assert.Error(t, err)

	bad = base
	bad.Time = "yesterday"
	_, err = normalizeTrade(bad, testSymbolTable(t))
	assert.Error(t, err)
}
