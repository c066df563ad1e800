package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spooky-finn/go-coinbase-feed/domain"
)

// DebugMode enables verbose subscribe/dispatch logging.
var DebugMode bool

// Credentials is the api key pair handed to the request signer.
type Credentials struct {
	ID     string
	Secret string
}

func (c Credentials) KeyID() string     { return c.ID }
func (c Credentials) KeySecret() string { return c.Secret }

type Config struct {
	Credentials Credentials

	// Endpoint overrides, empty means venue defaults.
	RestEndpoint string
	WsEndpoint   string

	// Product ids to subscribe to, e.g. BTC-USD.
	Products []string

	// MaxDepth caps retained book levels per side, zero is unbounded.
	MaxDepth int

	MetricsAddr string
}

// Load reads the runtime configuration from the environment (an
// optional .env file included). Missing credentials are a startup
// failure: the engine cannot sign snapshot requests without them.
func Load() (*Config, error) {
	godotenv.Load()

	DebugMode = os.Getenv("DEBUG") == "true"

	cfg := &Config{
		Credentials: Credentials{
			ID:     os.Getenv("COINBASE_KEY_ID"),
			Secret: os.Getenv("COINBASE_KEY_SECRET"),
		},
		RestEndpoint: os.Getenv("COINBASE_REST_ENDPOINT"),
		WsEndpoint:   os.Getenv("COINBASE_WS_ENDPOINT"),
		Products:     splitList(os.Getenv("COINBASE_PRODUCTS")),
		MetricsAddr:  getenvDefault("METRICS_ADDR", ":8080"),
	}

	if cfg.Credentials.ID == "" || cfg.Credentials.Secret == "" {
		return nil, fmt.Errorf("%w: COINBASE_KEY_ID and COINBASE_KEY_SECRET must be set", domain.ErrMissingCredentials)
	}

	if raw := os.Getenv("BOOK_MAX_DEPTH"); raw != "" {
		maxDepth, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid BOOK_MAX_DEPTH %q: %w", raw, err)
		}
		cfg.MaxDepth = maxDepth
	}

	if len(cfg.Products) == 0 {
		return nil, fmt.Errorf("COINBASE_PRODUCTS must list at least one product id")
	}

	return cfg, nil
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}

	items := make([]string, 0)
	for _, item := range strings.Split(raw, ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			items = append(items, item)
		}
	}
	return items
}

func getenvDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
