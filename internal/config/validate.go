package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate checks that all required fields are set and values are valid.
func (c *DashboardConfig) Validate() error {
	if c.Server.RestURL == "" {
		return errors.New("server.rest_url is required")
	}
	if c.Server.WSURL == "" {
		return errors.New("server.ws_url is required")
	}
	if !strings.HasPrefix(c.Server.WSURL, "ws://") && !strings.HasPrefix(c.Server.WSURL, "wss://") {
		return fmt.Errorf("server.ws_url must use ws:// or wss://, got %q", c.Server.WSURL)
	}

	if c.Cache.QuoteTTL <= 0 {
		return errors.New("cache.quote_ttl must be > 0")
	}
	if c.Cache.HistoryTTL <= 0 {
		return errors.New("cache.history_ttl must be > 0")
	}

	if c.Refresh.Dashboard <= 0 {
		return errors.New("refresh.dashboard must be > 0")
	}
	if c.Refresh.Chart <= 0 {
		return errors.New("refresh.chart must be > 0")
	}
	if c.Refresh.DemoTick <= 0 {
		return errors.New("refresh.demo_tick must be > 0")
	}

	if c.Series.MaxPoints < 2 {
		return fmt.Errorf("series.max_points must be >= 2, got %d", c.Series.MaxPoints)
	}

	if c.Push.BufferSize < 1 {
		return errors.New("push.buffer_size must be >= 1")
	}
	if c.Push.ReconnectBaseDelay > c.Push.ReconnectMaxDelay {
		return fmt.Errorf("push.reconnect_base_delay (%s) cannot exceed reconnect_max_delay (%s)",
			c.Push.ReconnectBaseDelay, c.Push.ReconnectMaxDelay)
	}

	switch c.Chart.Backend {
	case "stream", "snapshot":
	default:
		return fmt.Errorf("chart.backend must be \"stream\" or \"snapshot\", got %q", c.Chart.Backend)
	}

	if c.View.Symbol == "" {
		return errors.New("view.symbol is required")
	}
	if !c.View.Timeframe.Valid() {
		return fmt.Errorf("view.timeframe %q is not supported", c.View.Timeframe)
	}

	return nil
}
