package config

import (
	"time"

	"github.com/rickgao/tradedeck/internal/model"
)

// DashboardConfig is the root configuration for a dashboard feed daemon.
type DashboardConfig struct {
	Server  ServerConfig  `yaml:"server"`
	Cache   CacheConfig   `yaml:"cache"`
	Refresh RefreshConfig `yaml:"refresh"`
	Series  SeriesConfig  `yaml:"series"`
	Push    PushConfig    `yaml:"push"`
	Chart   ChartConfig   `yaml:"chart"`
	View    ViewConfig    `yaml:"view"`
	Listen  ListenConfig  `yaml:"listen"`
}

// ServerConfig holds trading server API settings.
type ServerConfig struct {
	RestURL    string        `yaml:"rest_url"`
	WSURL      string        `yaml:"ws_url"`
	APIKey     string        `yaml:"api_key"`
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries int           `yaml:"max_retries"`
}

// CacheConfig holds per-class cache TTLs.
type CacheConfig struct {
	QuoteTTL     time.Duration `yaml:"quote_ttl"`     // Live ticking snapshots
	HistoryTTL   time.Duration `yaml:"history_ttl"`   // Symbol detail / historical candles
	SyntheticTTL time.Duration `yaml:"synthetic_ttl"` // Generated fallback series
}

// RefreshConfig holds the fixed timer periods.
type RefreshConfig struct {
	Dashboard time.Duration `yaml:"dashboard"` // Account/positions/trades/strategies refresh
	Chart     time.Duration `yaml:"chart"`     // Historical chart redraw
	DemoTick  time.Duration `yaml:"demo_tick"` // Live tick simulation while in demo mode
}

// SeriesConfig holds series store settings.
type SeriesConfig struct {
	MaxPoints int `yaml:"max_points"` // Retained length per series
}

// PushConfig holds push channel (WebSocket) settings.
type PushConfig struct {
	ReconnectBaseDelay time.Duration `yaml:"reconnect_base_delay"`
	ReconnectMaxDelay  time.Duration `yaml:"reconnect_max_delay"`
	SubscribeTimeout   time.Duration `yaml:"subscribe_timeout"`
	BufferSize         int           `yaml:"buffer_size"`
}

// ChartConfig holds chart adapter settings.
type ChartConfig struct {
	Backend string `yaml:"backend"` // "stream" or "snapshot"
}

// ViewConfig holds the initial selection.
type ViewConfig struct {
	Symbol    string          `yaml:"symbol"`
	Timeframe model.Timeframe `yaml:"timeframe"`
}

// ListenConfig holds the daemon's own HTTP listener settings.
type ListenConfig struct {
	Addr string `yaml:"addr"` // Health + chart stream endpoint
}
