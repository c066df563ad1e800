package coinbase

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spooky-finn/go-coinbase-feed/config"
	"github.com/spooky-finn/go-coinbase-feed/domain"
	"github.com/spooky-finn/go-coinbase-feed/helpers"
	promclient "github.com/spooky-finn/go-coinbase-feed/infrastructure/prometheus"
)

const (
	// subscribe channel names
	ChannelLevel2     = "level2"
	ChannelTrades     = "market_trades"
	channelHeartbeats = "heartbeats"

	// inbound data channel names
	channelBookData = "l2_data"
	channelAck      = "subscriptions"
)

// Conn is the websocket surface the stream API needs, implemented by
// StreamClient.
type Conn interface {
	WriteJSON(v interface{}) error
	ReadMessage() ([]byte, error)
}

// ChannelSubscription is one configured channel with its product set.
type ChannelSubscription struct {
	Channel    string
	ProductIDs []string
}

type subscribeMessage struct {
	Type       string   `json:"type"`
	ProductIDs []string `json:"product_ids"`
	Channel    string   `json:"channel"`
	APIKey     string   `json:"api_key"`
	Timestamp  string   `json:"timestamp"`
	Signature  string   `json:"signature"`
}

type levelUpdateModel struct {
	Side        string `json:"side"`
	PriceLevel  string `json:"price_level"`
	NewQuantity string `json:"new_quantity"`
}

type eventModel struct {
	Type      string             `json:"type"`
	ProductID string             `json:"product_id"`
	Updates   []levelUpdateModel `json:"updates"`
	Trades    []rawTrade         `json:"trades"`
}

type inboundMessage struct {
	Channel     string       `json:"channel"`
	SequenceNum *int64       `json:"sequence_num"`
	Timestamp   string       `json:"timestamp"`
	Events      []eventModel `json:"events"`
}

// StreamAPI drives the subscribe handshake and routes every decoded
// inbound message to the book keeper, the resync maintainer or the
// trade path. One instance serves one logical connection and must be
// fed from a single goroutine so per-symbol arrival order is kept.
type StreamAPI struct {
	conn          Conn
	signer        *Signer
	symbols       domain.SymbolTranslator
	keeper        *domain.BookKeeper
	maintainer    *OrderbookMaintainer
	sink          domain.Sink
	subscriptions []ChannelSubscription

	done chan struct{}
}

func NewStreamAPI(
	conn Conn,
	signer *Signer,
	symbols domain.SymbolTranslator,
	keeper *domain.BookKeeper,
	maintainer *OrderbookMaintainer,
	sink domain.Sink,
	subscriptions []ChannelSubscription,
) *StreamAPI {
	return &StreamAPI{
		conn:          conn,
		signer:        signer,
		symbols:       symbols,
		keeper:        keeper,
		maintainer:    maintainer,
		sink:          sink,
		subscriptions: subscriptions,
		done:          make(chan struct{}),
	}
}

// Subscribe issues one signed subscribe per configured channel, then
// one heartbeat subscribe over the deduplicated union of all product
// ids in first-seen order, per the venue best-practices doc.
func (s *StreamAPI) Subscribe() error {
	seen := make(map[string]bool)
	union := make([]string, 0)

	for _, sub := range s.subscriptions {
		if err := s.subscribe(sub.Channel, sub.ProductIDs); err != nil {
			return err
		}
		for _, productID := range sub.ProductIDs {
			if !seen[productID] {
				seen[productID] = true
				union = append(union, productID)
			}
		}
	}

	return s.subscribe(channelHeartbeats, union)
}

func (s *StreamAPI) subscribe(channel string, productIDs []string) error {
	auth := s.signer.SignSubscribe(channel, productIDs)
	msg := subscribeMessage{
		Type:       "subscribe",
		ProductIDs: productIDs,
		Channel:    channel,
		APIKey:     auth.APIKey,
		Timestamp:  auth.Timestamp,
		Signature:  auth.Signature,
	}

	if config.DebugMode {
		logger.Debugf("subscribing: %s", helpers.ToJsonString(msg))
	}

	if err := s.conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("failed to send subscribe msg for channel=%s: %w", channel, err)
	}
	return nil
}

// Listen consumes the connection until Stop or a terminal read error.
func (s *StreamAPI) Listen() {
	for {
		select {
		case <-s.done:
			return
		default:
		}

		msg, err := s.conn.ReadMessage()
		if err != nil {
			logger.Errorf("stream read ended: %s", err)
			return
		}
		s.Route(msg, time.Now())
	}
}

func (s *StreamAPI) Stop() {
	close(s.done)
}

// Route dispatches one decoded inbound message. No message-level
// failure is fatal to the connection: malformed payloads and unknown
// channels are logged and dropped.
func (s *StreamAPI) Route(raw []byte, received time.Time) {
	var msg inboundMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		logger.Warnf("dropping malformed message: %s", err)
		promclient.DroppedMessageCounter.Inc()
		return
	}

	// venue timestamps are RFC3339; a missing one is tolerated
	venueTime, _ := time.Parse(time.RFC3339Nano, msg.Timestamp)

	switch msg.Channel {
	case channelBookData:
		s.routeBook(&msg, venueTime, received)
	case ChannelTrades:
		s.routeTrades(&msg, received)
	case channelAck, channelHeartbeats:
		// subscription acks and heartbeats carry no book state
	default:
		logger.Warnf("ignoring message on unexpected channel %q", msg.Channel)
		promclient.DroppedMessageCounter.Inc()
	}
}

func (s *StreamAPI) routeTrades(msg *inboundMessage, received time.Time) {
	for _, event := range msg.Events {
		// snapshot events replay historic trades, deliberately skipped
		if event.Type != "update" {
			continue
		}

		for _, raw := range event.Trades {
			trade, err := normalizeTrade(raw, s.symbols)
			if err != nil {
				logger.Warnf("dropping trade: %s", err)
				promclient.DroppedMessageCounter.Inc()
				continue
			}
			s.sink.Trade(trade, received)
		}
	}
}

func (s *StreamAPI) routeBook(msg *inboundMessage, venueTime, received time.Time) {
	for _, event := range msg.Events {
		symbol, err := s.symbols.ToNormalized(event.ProductID)
		if err != nil {
			logger.Warnf("dropping book event: %s", err)
			promclient.DroppedMessageCounter.Inc()
			continue
		}

		switch event.Type {
		case "snapshot":
			s.applyBookSnapshot(symbol, event, received)
		case "update":
			s.applyBookUpdate(symbol, msg, event, venueTime, received)
		default:
			logger.Warnf("ignoring book event of type %q for %s", event.Type, symbol)
		}
	}
}

func (s *StreamAPI) applyBookSnapshot(symbol *domain.MarketSymbol, event eventModel, received time.Time) {
	bids, asks, err := parseSnapshotUpdates(event.Updates)
	if err != nil {
		logger.Warnf("dropping book snapshot for %s: %s", symbol, err)
		promclient.DroppedMessageCounter.Inc()
		return
	}

	// a stream snapshot carries no order-level detail and no sequence
	// baseline
	book := s.keeper.SeedBook(symbol, bids, asks, nil, nil)
	promclient.OpenOrderBookGauge.Set(float64(s.keeper.BookCount()))
	s.sink.BookSnapshot(book, received)
}

func (s *StreamAPI) applyBookUpdate(symbol *domain.MarketSymbol, msg *inboundMessage, event eventModel, venueTime, received time.Time) {
	sym := symbol.String()

	if msg.SequenceNum != nil {
		switch s.keeper.ClassifySequence(sym, *msg.SequenceNum) {
		case domain.SeqStale:
			return
		case domain.SeqGap:
			logger.Warnf("missing sequence number detected for %s, resetting", sym)
			promclient.SequenceGapCounter.Inc()
			s.maintainer.ScheduleResync(symbol)
			return
		}
	}

	changes, err := parseLevelChanges(event.Updates)
	if err != nil {
		logger.Warnf("dropping book update for %s: %s", sym, err)
		promclient.DroppedMessageCounter.Inc()
		return
	}

	if s.maintainer.BufferWhileResyncing(symbol, msg.SequenceNum, changes, venueTime) {
		return
	}

	book, err := s.keeper.Book(sym)
	if err != nil {
		// update before any snapshot has seeded this symbol
		logger.Warnf("dropping book update for %s: %s", sym, err)
		promclient.DroppedMessageCounter.Inc()
		return
	}

	delta := book.ApplyUpdate(changes)
	s.sink.BookUpdate(book, delta, venueTime, received)
}

func parseLevelChanges(rows []levelUpdateModel) ([]domain.LevelChange, error) {
	changes := make([]domain.LevelChange, 0, len(rows))
	for _, row := range rows {
		price, err := decimal.NewFromString(row.PriceLevel)
		if err != nil {
			return nil, fmt.Errorf("bad price level %q: %w", row.PriceLevel, err)
		}
		qty, err := decimal.NewFromString(row.NewQuantity)
		if err != nil {
			return nil, fmt.Errorf("bad quantity %q: %w", row.NewQuantity, err)
		}

		// the venue names the ask side "offer"
		side := domain.SideAsk
		if row.Side == "bid" {
			side = domain.SideBid
		}

		changes = append(changes, domain.LevelChange{Side: side, Price: price, Quantity: qty})
	}
	return changes, nil
}

func parseSnapshotUpdates(rows []levelUpdateModel) (bids, asks map[string]decimal.Decimal, err error) {
	changes, err := parseLevelChanges(rows)
	if err != nil {
		return nil, nil, err
	}

	bids = make(map[string]decimal.Decimal)
	asks = make(map[string]decimal.Decimal)
	for _, change := range changes {
		if change.Quantity.IsZero() {
			continue
		}
		if change.Side == domain.SideBid {
			bids[change.Price.String()] = change.Quantity
		} else {
			asks[change.Price.String()] = change.Quantity
		}
	}
	return bids, asks, nil
}
