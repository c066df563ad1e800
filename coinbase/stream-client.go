package coinbase

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/recws-org/recws"
)

const defaultWebsocketEndpoint = "wss://advanced-trade-ws.coinbase.com"

// StreamClient wraps the auto-reconnecting websocket connection to
// the venue stream.
type StreamClient struct {
	endpoint string
	conn     *recws.RecConn
}

func NewStreamClient(endpoint string) *StreamClient {
	if endpoint == "" {
		endpoint = defaultWebsocketEndpoint
	}
	return &StreamClient{
		endpoint: endpoint,
		conn:     nil,
	}
}

// Connect dials the venue websocket. onReconnect, when set, runs
// after every successful (re)connect so the subscribe handshake can
// be replayed on a fresh connection.
func (c *StreamClient) Connect(onReconnect func() error) error {
	conn := &recws.RecConn{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: 5 * time.Second,
		SubscribeHandler: onReconnect,
		NonVerbose:       true,
		Conn:             nil,
	}

	conn.Dial(c.endpoint, nil)
	c.conn = conn
	logger.Info("connected to the coinbase stream websocket")

	return nil
}

// ReadMessage blocks for the next frame. Transient read failures are
// absorbed while the underlying connection reconnects; a normal close
// ends the stream.
func (c *StreamClient) ReadMessage() ([]byte, error) {
	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil, err
			}
			time.Sleep(100 * time.Millisecond)
			continue
		}
		return msg, nil
	}
}

func (c *StreamClient) WriteJSON(v interface{}) error {
	return c.conn.WriteJSON(v)
}

func (c *StreamClient) IsConnected() bool {
	return c.conn != nil && c.conn.IsConnected()
}

func (c *StreamClient) Close() error {
	c.conn.Close()
	return nil
}
