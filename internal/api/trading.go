package api

import (
	"context"
	"fmt"
)

// GetTradingStatus reports whether the trading engine is running.
func (c *Client) GetTradingStatus(ctx context.Context) (bool, error) {
	var resp tradingStatusResponse
	if err := c.get(ctx, "/trading/status", nil, &resp); err != nil {
		return false, fmt.Errorf("get trading status: %w", err)
	}
	return resp.IsTrading, nil
}

// StartTrading starts the trading engine.
func (c *Client) StartTrading(ctx context.Context) error {
	var ack ackResponse
	if err := c.post(ctx, "/trading/start", nil, &ack); err != nil {
		return fmt.Errorf("start trading: %w", err)
	}
	if !ack.Success {
		return fmt.Errorf("start trading rejected: %s", ack.Message)
	}
	return nil
}

// StopTrading stops the trading engine.
func (c *Client) StopTrading(ctx context.Context) error {
	var ack ackResponse
	if err := c.post(ctx, "/trading/stop", nil, &ack); err != nil {
		return fmt.Errorf("stop trading: %w", err)
	}
	if !ack.Success {
		return fmt.Errorf("stop trading rejected: %s", ack.Message)
	}
	return nil
}
