package coinbase

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/spooky-finn/go-coinbase-feed/domain"
)

var logger = logrus.WithField("component", "coinbase")

const (
	restBasePath        = "/api/v3/brokerage"
	defaultRestEndpoint = "https://api.coinbase.com" + restBasePath

	// The venue needs some time to start buffering stream messages
	// for us before the snapshot is requested; fetching sooner can
	// yield a snapshot whose reference point is behind the updates
	// already in flight.
	snapshotWarmUpDelay = 2 * time.Second

	// Self-imposed spacing between snapshot requests, 3 per second.
	snapshotRequestSpacing = 300 * time.Millisecond
)

// SnapshotResult is one parsed full-depth snapshot: aggregated L2
// sides plus the per-order detail recovered from discrete rows.
type SnapshotResult struct {
	ProductID string
	Bids      map[string]decimal.Decimal
	Asks      map[string]decimal.Decimal
	Orders    domain.OrderRecord

	// Sequence is the snapshot's reference sequence when the venue
	// provides one. Advanced Trade pricebook responses currently
	// omit it, leaving the sequence guard dormant.
	Sequence *int64
}

// SyncAPI is the authoritative REST side of the venue: full-depth
// snapshots and product metadata.
type SyncAPI struct {
	endpoint string
	client   *http.Client
	signer   *Signer

	warmUp  time.Duration
	spacing time.Duration
}

func NewSyncAPI(signer *Signer, endpoint string) *SyncAPI {
	if endpoint == "" {
		endpoint = defaultRestEndpoint
	}
	return &SyncAPI{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 10 * time.Second},
		signer:   signer,
		warmUp:   snapshotWarmUpDelay,
		spacing:  snapshotRequestSpacing,
	}
}

type priceLevelModel struct {
	Price string `json:"price"`
	Size  string `json:"size"`
}

type pricebookResponse struct {
	Pricebook struct {
		ProductID string            `json:"product_id"`
		Bids      []priceLevelModel `json:"bids"`
		Asks      []priceLevelModel `json:"asks"`
		Sequence  *int64            `json:"sequence,string,omitempty"`
	} `json:"pricebook"`
}

// BookSnapshot fetches and parses full depth for one product. A
// transport error or an unparseable response fails the attempt; there
// is no retry at this layer.
func (api *SyncAPI) BookSnapshot(ctx context.Context, productID string) (*SnapshotResult, error) {
	requestURL := fmt.Sprintf("%s/product_book?product_id=%s", api.endpoint, url.QueryEscape(productID))
	body, err := api.get(ctx, requestURL, "/product_book")
	if err != nil {
		return nil, fmt.Errorf("failed to get order book snapshot for %s: %w", productID, err)
	}

	data := &pricebookResponse{}
	if err := json.Unmarshal(body, data); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot response: %w, data: %s", err, body)
	}

	orders := make(domain.OrderRecord)
	bids, err := parseSnapshotSide(domain.SideBid, data.Pricebook.Bids, orders)
	if err != nil {
		return nil, fmt.Errorf("failed to parse snapshot bids for %s: %w", productID, err)
	}
	asks, err := parseSnapshotSide(domain.SideAsk, data.Pricebook.Asks, orders)
	if err != nil {
		return nil, fmt.Errorf("failed to parse snapshot asks for %s: %w", productID, err)
	}

	return &SnapshotResult{
		ProductID: productID,
		Bids:      bids,
		Asks:      asks,
		Orders:    orders,
		Sequence:  data.Pricebook.Sequence,
	}, nil
}

// BookSnapshots fetches depth for a set of products sequentially:
// the warm-up delay first, then one request every spacing interval to
// respect the venue request quota. The first error aborts the run.
func (api *SyncAPI) BookSnapshots(ctx context.Context, productIDs []string) ([]*SnapshotResult, error) {
	if err := sleepCtx(ctx, api.warmUp); err != nil {
		return nil, err
	}

	results := make([]*SnapshotResult, 0, len(productIDs))
	for i, productID := range productIDs {
		if i > 0 {
			if err := sleepCtx(ctx, api.spacing); err != nil {
				return nil, err
			}
		}

		res, err := api.BookSnapshot(ctx, productID)
		if err != nil {
			return nil, err
		}
		results = append(results, res)
	}

	return results, nil
}

func (api *SyncAPI) get(ctx context.Context, requestURL, signPath string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, err
	}
	api.signer.SignREST(http.MethodGet, restBasePath+signPath).Apply(req)

	res, err := api.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, err
	}
	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d: %s", res.StatusCode, body)
	}
	return body, nil
}

// parseSnapshotSide aggregates discrete order rows into price levels
// and records each row in the order record under its synthetic
// identity. Rows sharing side, size and price collide in the record
// while still both counting toward the level aggregate.
func parseSnapshotSide(side domain.Side, rows []priceLevelModel, orders domain.OrderRecord) (map[string]decimal.Decimal, error) {
	levels := make(map[string]decimal.Decimal, len(rows))
	for _, row := range rows {
		price, err := decimal.NewFromString(row.Price)
		if err != nil {
			return nil, fmt.Errorf("bad price %q: %w", row.Price, err)
		}
		size, err := decimal.NewFromString(row.Size)
		if err != nil {
			return nil, fmt.Errorf("bad size %q: %w", row.Size, err)
		}

		orders[domain.SyntheticOrderID(side, size, price)] = domain.PriceLevel{Price: price, Quantity: size}

		key := price.String()
		levels[key] = levels[key].Add(size)
	}
	return levels, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
