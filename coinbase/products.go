package coinbase

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/spooky-finn/go-coinbase-feed/domain"
)

type productsResponse struct {
	Products []struct {
		ProductID       string `json:"product_id"`
		BaseCurrencyID  string `json:"base_currency_id"`
		QuoteCurrencyID string `json:"quote_currency_id"`
		QuoteIncrement  string `json:"quote_increment"`
	} `json:"products"`
}

// SymbolTable is the bidirectional venue product id to normalized
// symbol mapping, built from venue product metadata.
type SymbolTable struct {
	byVenue      map[string]*domain.MarketSymbol
	byNormalized map[string]string
	tickSize     map[string]decimal.Decimal
}

func NewSymbolTable() *SymbolTable {
	return &SymbolTable{
		byVenue:      make(map[string]*domain.MarketSymbol),
		byNormalized: make(map[string]string),
		tickSize:     make(map[string]decimal.Decimal),
	}
}

func (t *SymbolTable) add(venueID string, symbol *domain.MarketSymbol, tickSize decimal.Decimal) {
	t.byVenue[venueID] = symbol
	t.byNormalized[symbol.String()] = venueID
	t.tickSize[symbol.String()] = tickSize
}

func (t *SymbolTable) ToNormalized(venueID string) (*domain.MarketSymbol, error) {
	symbol, ok := t.byVenue[venueID]
	if !ok {
		return nil, fmt.Errorf("%w: venue id %q", domain.ErrSymbolNotFound, venueID)
	}
	return symbol, nil
}

func (t *SymbolTable) ToVenue(symbol *domain.MarketSymbol) (string, error) {
	venueID, ok := t.byNormalized[symbol.String()]
	if !ok {
		return "", fmt.Errorf("%w: %s", domain.ErrSymbolNotFound, symbol)
	}
	return venueID, nil
}

// TickSize reports the venue quote increment for the symbol.
func (t *SymbolTable) TickSize(symbol *domain.MarketSymbol) (decimal.Decimal, bool) {
	size, ok := t.tickSize[symbol.String()]
	return size, ok
}

func (t *SymbolTable) Len() int {
	return len(t.byVenue)
}

// Products fetches venue product metadata over the signed REST API
// and builds the symbol table from it.
func (api *SyncAPI) Products(ctx context.Context) (*SymbolTable, error) {
	body, err := api.get(ctx, api.endpoint+"/products", "/products")
	if err != nil {
		return nil, fmt.Errorf("failed to get products: %w", err)
	}

	data := &productsResponse{}
	if err := json.Unmarshal(body, data); err != nil {
		return nil, fmt.Errorf("failed to unmarshal products response: %w, data: %s", err, body)
	}

	table := NewSymbolTable()
	for _, entry := range data.Products {
		symbol, err := domain.NewMarketSymbol(entry.BaseCurrencyID, entry.QuoteCurrencyID)
		if err != nil {
			logger.Warnf("skipping product %s: %s", entry.ProductID, err)
			continue
		}

		tickSize, err := decimal.NewFromString(entry.QuoteIncrement)
		if err != nil {
			tickSize = decimal.Zero
		}
		table.add(entry.ProductID, symbol, tickSize)
	}

	logger.Infof("loaded %d products from the venue", table.Len())
	return table, nil
}
