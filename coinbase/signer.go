package coinbase

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/spooky-finn/go-coinbase-feed/domain"
	"github.com/spooky-finn/go-coinbase-feed/helpers"
)

// RESTAuth carries the signed header fields of a private REST request.
type RESTAuth struct {
	Key       string
	Timestamp string
	Signature string
}

// Apply sets the venue auth headers on an outbound request.
func (a RESTAuth) Apply(req *http.Request) {
	req.Header.Set("CB-ACCESS-KEY", a.Key)
	req.Header.Set("CB-ACCESS-TIMESTAMP", a.Timestamp)
	req.Header.Set("CB-ACCESS-SIGN", a.Signature)
}

// SubscribeAuth carries the signed payload fields of a websocket
// subscribe message.
type SubscribeAuth struct {
	APIKey    string
	Timestamp string
	Signature string
}

// Signer produces authenticated fields for private REST requests and
// stream subscriptions. Both modes share one primitive: HMAC-SHA256
// over a mode-specific message string, hex encoded. Timestamps are
// generated fresh per call because the venue validates freshness
// server-side.
type Signer struct {
	keyID     string
	keySecret string
}

func NewSigner(creds domain.CredentialsProvider) (*Signer, error) {
	if creds.KeyID() == "" || creds.KeySecret() == "" {
		return nil, fmt.Errorf("%w: key id and key secret are required", domain.ErrMissingCredentials)
	}
	return &Signer{
		keyID:     creds.KeyID(),
		keySecret: creds.KeySecret(),
	}, nil
}

// SignREST signs a REST request; the message is timestamp, HTTP method
// and request path concatenated. The path excludes the query string.
func (s *Signer) SignREST(method, path string) RESTAuth {
	return s.SignRESTAt(time.Now().Unix(), method, path)
}

func (s *Signer) SignRESTAt(timestamp int64, method, path string) RESTAuth {
	ts := helpers.IntToString(timestamp)
	return RESTAuth{
		Key:       s.keyID,
		Timestamp: ts,
		Signature: s.sign(ts + method + path),
	}
}

// SignSubscribe signs a stream subscription; the message is timestamp,
// channel name and the comma-joined product id list concatenated.
func (s *Signer) SignSubscribe(channel string, productIDs []string) SubscribeAuth {
	return s.SignSubscribeAt(time.Now().Unix(), channel, productIDs)
}

func (s *Signer) SignSubscribeAt(timestamp int64, channel string, productIDs []string) SubscribeAuth {
	ts := helpers.IntToString(timestamp)
	return SubscribeAuth{
		APIKey:    s.keyID,
		Timestamp: ts,
		Signature: s.sign(ts + channel + strings.Join(productIDs, ",")),
	}
}

func (s *Signer) sign(message string) string {
	mac := hmac.New(sha256.New, []byte(s.keySecret))
	mac.Write([]byte(message))
	return hex.EncodeToString(mac.Sum(nil))
}
