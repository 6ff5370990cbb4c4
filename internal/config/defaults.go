package config

import (
	"time"

	"github.com/rickgao/tradedeck/internal/model"
)

// Default values for optional configuration fields.
const (
	DefaultRestURL            = "http://localhost:5000/api"
	DefaultWSURL              = "ws://localhost:5000/ws"
	DefaultAPITimeout         = 5 * time.Second
	DefaultMaxRetries         = 2
	DefaultQuoteTTL           = 5 * time.Second
	DefaultHistoryTTL         = 45 * time.Second
	DefaultSyntheticTTL       = 30 * time.Second
	DefaultDashboardRefresh   = 30 * time.Second
	DefaultChartRefresh       = 60 * time.Second
	DefaultDemoTick           = 1 * time.Second
	DefaultMaxPoints          = 500
	DefaultReconnectBaseDelay = 1 * time.Second
	DefaultReconnectMaxDelay  = 30 * time.Second
	DefaultSubscribeTimeout   = 5 * time.Second
	DefaultPushBufferSize     = 1000
	DefaultChartBackend       = "stream"
	DefaultSymbol             = "BTC/USD"
	DefaultListenAddr         = ":8090"
)

func (c *DashboardConfig) applyDefaults() {
	// Server defaults
	if c.Server.RestURL == "" {
		c.Server.RestURL = DefaultRestURL
	}
	if c.Server.WSURL == "" {
		c.Server.WSURL = DefaultWSURL
	}
	if c.Server.Timeout == 0 {
		c.Server.Timeout = DefaultAPITimeout
	}
	if c.Server.MaxRetries == 0 {
		c.Server.MaxRetries = DefaultMaxRetries
	}

	// Cache defaults
	if c.Cache.QuoteTTL == 0 {
		c.Cache.QuoteTTL = DefaultQuoteTTL
	}
	if c.Cache.HistoryTTL == 0 {
		c.Cache.HistoryTTL = DefaultHistoryTTL
	}
	if c.Cache.SyntheticTTL == 0 {
		c.Cache.SyntheticTTL = DefaultSyntheticTTL
	}

	// Refresh defaults
	if c.Refresh.Dashboard == 0 {
		c.Refresh.Dashboard = DefaultDashboardRefresh
	}
	if c.Refresh.Chart == 0 {
		c.Refresh.Chart = DefaultChartRefresh
	}
	if c.Refresh.DemoTick == 0 {
		c.Refresh.DemoTick = DefaultDemoTick
	}

	// Series defaults
	if c.Series.MaxPoints == 0 {
		c.Series.MaxPoints = DefaultMaxPoints
	}

	// Push defaults
	if c.Push.ReconnectBaseDelay == 0 {
		c.Push.ReconnectBaseDelay = DefaultReconnectBaseDelay
	}
	if c.Push.ReconnectMaxDelay == 0 {
		c.Push.ReconnectMaxDelay = DefaultReconnectMaxDelay
	}
	if c.Push.SubscribeTimeout == 0 {
		c.Push.SubscribeTimeout = DefaultSubscribeTimeout
	}
	if c.Push.BufferSize == 0 {
		c.Push.BufferSize = DefaultPushBufferSize
	}

	// Chart defaults
	if c.Chart.Backend == "" {
		c.Chart.Backend = DefaultChartBackend
	}

	// View defaults
	if c.View.Symbol == "" {
		c.View.Symbol = DefaultSymbol
	}
	if c.View.Timeframe == "" {
		c.View.Timeframe = model.Timeframe1D
	}

	// Listen defaults
	if c.Listen.Addr == "" {
		c.Listen.Addr = DefaultListenAddr
	}
}
