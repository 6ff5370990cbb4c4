package api

import (
	"context"
	"fmt"
	"net/url"

	"github.com/rickgao/tradedeck/internal/model"
)

// GetStrategies fetches all configured strategies.
func (c *Client) GetStrategies(ctx context.Context) ([]model.Strategy, error) {
	var wire []wireStrategy
	if err := c.get(ctx, "/strategies", nil, &wire); err != nil {
		return nil, fmt.Errorf("get strategies: %w", err)
	}

	strategies := make([]model.Strategy, 0, len(wire))
	for _, w := range wire {
		strategies = append(strategies, w.toModel())
	}
	return strategies, nil
}

// CreateStrategy adds a new strategy.
func (c *Client) CreateStrategy(ctx context.Context, req CreateStrategyRequest) error {
	var ack ackResponse
	if err := c.post(ctx, "/strategies", req, &ack); err != nil {
		return fmt.Errorf("create strategy: %w", err)
	}
	if !ack.Success {
		return fmt.Errorf("create strategy rejected: %s", ack.Message)
	}
	return nil
}

// DeleteStrategy removes a strategy.
func (c *Client) DeleteStrategy(ctx context.Context, id string) error {
	var ack ackResponse
	if err := c.delete(ctx, "/strategies/"+url.PathEscape(id), &ack); err != nil {
		return fmt.Errorf("delete strategy %s: %w", id, err)
	}
	if !ack.Success {
		return fmt.Errorf("delete strategy %s rejected: %s", id, ack.Message)
	}
	return nil
}

// ToggleStrategy flips a strategy between active and paused.
func (c *Client) ToggleStrategy(ctx context.Context, id string) error {
	var ack ackResponse
	if err := c.post(ctx, "/strategies/"+url.PathEscape(id)+"/toggle", nil, &ack); err != nil {
		return fmt.Errorf("toggle strategy %s: %w", id, err)
	}
	if !ack.Success {
		return fmt.Errorf("toggle strategy %s rejected: %s", id, ack.Message)
	}
	return nil
}

// StopStrategy asks the server to stop a strategy and close its position.
// The overlay manager calls this exactly once per trailing-stop trigger.
func (c *Client) StopStrategy(ctx context.Context, id string) error {
	var ack ackResponse
	if err := c.post(ctx, "/strategies/"+url.PathEscape(id)+"/stop", nil, &ack); err != nil {
		return fmt.Errorf("stop strategy %s: %w", id, err)
	}
	if !ack.Success {
		return fmt.Errorf("stop strategy %s rejected: %s", id, ack.Message)
	}
	return nil
}

// GetSignals fetches buy/sell signals for a symbol.
func (c *Client) GetSignals(ctx context.Context, symbol string) ([]model.Signal, error) {
	query := url.Values{}
	query.Set("symbol", symbol)

	var wire []wireSignal
	if err := c.get(ctx, "/strategies/signals", query, &wire); err != nil {
		return nil, fmt.Errorf("get signals: %w", err)
	}

	signals := make([]model.Signal, 0, len(wire))
	for _, w := range wire {
		signals = append(signals, w.toModel())
	}
	return signals, nil
}
