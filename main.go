package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spooky-finn/go-coinbase-feed/coinbase"
	"github.com/spooky-finn/go-coinbase-feed/config"
	"github.com/spooky-finn/go-coinbase-feed/domain"
	promclient "github.com/spooky-finn/go-coinbase-feed/infrastructure/prometheus"
)

// logSink prints every delivered record; a real consumer plugs in its
// own domain.Sink here.
type logSink struct{}

func (logSink) Trade(t *domain.Trade, received time.Time) {
	logrus.Infof("trade %s %s %s %s@%s", t.Symbol, t.Side, t.ID, t.Size, t.Price)
}

func (logSink) BookSnapshot(book *domain.OrderBook, received time.Time) {
	bids, asks := book.Depth()
	logrus.Infof("book snapshot %s: %d bids, %d asks", book.Symbol, bids, asks)
}

func (logSink) BookUpdate(book *domain.OrderBook, delta *domain.Delta, venueTime, received time.Time) {
	logrus.Debugf("book update %s: %d bid changes, %d ask changes", book.Symbol, len(delta.Bids), len(delta.Asks))
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("failed to load config: %s", err)
	}

	signer, err := coinbase.NewSigner(cfg.Credentials)
	if err != nil {
		// auth failures are fatal, and only here at setup
		logrus.Fatalf("failed to build request signer: %s", err)
	}

	syncAPI := coinbase.NewSyncAPI(signer, cfg.RestEndpoint)

	table, err := syncAPI.Products(context.Background())
	if err != nil {
		logrus.Fatalf("failed to load venue products: %s", err)
	}

	symbols := make([]*domain.MarketSymbol, 0, len(cfg.Products))
	for _, productID := range cfg.Products {
		symbol, err := table.ToNormalized(productID)
		if err != nil {
			logrus.Fatalf("unknown product %s: %s", productID, err)
		}
		if tick, ok := table.TickSize(symbol); ok {
			logrus.Infof("tracking %s (tick size %s)", symbol, tick)
		}
		symbols = append(symbols, symbol)
	}

	storage := domain.NewOrderBookStorage()
	keeper := domain.NewBookKeeper(storage, cfg.MaxDepth)
	sink := logSink{}
	maintainer := coinbase.NewOrderbookMaintainer(syncAPI, keeper, table, sink)

	client := coinbase.NewStreamClient(cfg.WsEndpoint)
	streamAPI := coinbase.NewStreamAPI(client, signer, table, keeper, maintainer, sink, []coinbase.ChannelSubscription{
		{Channel: coinbase.ChannelLevel2, ProductIDs: cfg.Products},
		{Channel: coinbase.ChannelTrades, ProductIDs: cfg.Products},
	})

	// the connection runs the handshake itself after the first dial
	// and again after every reconnect
	if err := client.Connect(streamAPI.Subscribe); err != nil {
		logrus.Fatalf("failed to connect to the stream: %s", err)
	}

	go streamAPI.Listen()
	go promclient.StartPromClientServer(cfg.MetricsAddr)

	if err := maintainer.SeedBooks(context.Background(), symbols); err != nil {
		logrus.Errorf("initial book seeding failed: %s", err)
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	streamAPI.Stop()
	client.Close()
}
