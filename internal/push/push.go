// Package push maintains the WebSocket feed from the trading server: market
// data ticks, trade updates, and order updates for the one currently-viewed
// symbol.
package push

import (
	"encoding/json"
	"errors"
	"time"
)

var (
	ErrNotConnected    = errors.New("not connected")
	ErrStaleConnection = errors.New("connection stale (no ping)")
	ErrAlreadyClosed   = errors.New("already closed")
)

// envelope is the outer frame of every server message.
type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Server event names.
const (
	eventMarketData  = "market_data"
	eventTradeUpdate = "trade_update"
	eventOrderUpdate = "order_update"
)

// request is a client-to-server frame.
type request struct {
	Event  string `json:"event"`
	Symbol string `json:"symbol,omitempty"`
}

// MarketData is a live price tick for a symbol.
type MarketData struct {
	Symbol    string  `json:"symbol"`
	Price     float64 `json:"price"`
	Volume    float64 `json:"volume"`
	Timestamp int64   `json:"timestamp"` // Epoch milliseconds; 0 means "now"
}

// TradeUpdate reports a fill executed by the server.
type TradeUpdate struct {
	ID        string  `json:"id"`
	Symbol    string  `json:"symbol"`
	Side      string  `json:"side"`
	Quantity  float64 `json:"quantity"`
	Price     float64 `json:"price"`
	Timestamp int64   `json:"timestamp"`
}

// OrderUpdate reports an order state change.
type OrderUpdate struct {
	ID     string  `json:"id"`
	Symbol string  `json:"symbol"`
	Status string  `json:"status"`
	Filled float64 `json:"filled"`
}

// Handlers receives parsed feed events. Nil fields are skipped. Handlers run
// on the feed's dispatch goroutine and must not block.
type Handlers struct {
	MarketData  func(MarketData)
	TradeUpdate func(TradeUpdate)
	OrderUpdate func(OrderUpdate)
}

// FeedConfig configures the push feed.
type FeedConfig struct {
	URL               string
	APIKey            string
	PingTimeout       time.Duration // Max silence before the connection is considered stale
	WriteTimeout      time.Duration
	BufferSize        int // Inbound message channel depth
	ReconnectBaseWait time.Duration
	ReconnectMaxWait  time.Duration
}

// DefaultFeedConfig returns sensible defaults for a local trading server.
func DefaultFeedConfig(url string) FeedConfig {
	return FeedConfig{
		URL:               url,
		PingTimeout:       60 * time.Second,
		WriteTimeout:      5 * time.Second,
		BufferSize:        1000,
		ReconnectBaseWait: time.Second,
		ReconnectMaxWait:  30 * time.Second,
	}
}
