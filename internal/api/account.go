package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/rickgao/tradedeck/internal/model"
)

// GetAccount fetches the account snapshot.
func (c *Client) GetAccount(ctx context.Context) (model.Account, error) {
	var wire wireAccount
	if err := c.get(ctx, "/account", nil, &wire); err != nil {
		return model.Account{}, fmt.Errorf("get account: %w", err)
	}
	return wire.toModel(), nil
}

// GetAccountHistory fetches the portfolio value series for a timeframe. The
// server has sent two shapes over time: an array of {timestamp, value} rows
// and a column-oriented {timestamps, values} object. Both are normalized to
// model.TimePoint.
func (c *Client) GetAccountHistory(ctx context.Context, timeframe model.Timeframe) ([]model.TimePoint, error) {
	query := url.Values{}
	query.Set("timeframe", string(timeframe))

	body, err := c.doWithRetry(ctx, http.MethodGet, "/account/history", query, nil)
	if err != nil {
		return nil, fmt.Errorf("get account history: %w", err)
	}

	var rows []wireHistoryPoint
	if err := json.Unmarshal(body, &rows); err == nil {
		points := make([]model.TimePoint, 0, len(rows))
		for _, r := range rows {
			if r.Timestamp.Millis() == 0 {
				continue
			}
			points = append(points, model.TimePoint{Timestamp: r.Timestamp.Millis(), Value: r.Value})
		}
		return points, nil
	}

	var cols wireHistoryColumns
	if err := json.Unmarshal(body, &cols); err != nil {
		return nil, fmt.Errorf("unmarshal account history: %w", err)
	}
	if len(cols.Timestamps) != len(cols.Values) {
		return nil, fmt.Errorf("account history columns mismatch: %d timestamps, %d values",
			len(cols.Timestamps), len(cols.Values))
	}

	points := make([]model.TimePoint, 0, len(cols.Values))
	for i, ts := range cols.Timestamps {
		if ts.Millis() == 0 {
			continue
		}
		points = append(points, model.TimePoint{Timestamp: ts.Millis(), Value: cols.Values[i]})
	}
	return points, nil
}

// GetPositions fetches all open positions.
func (c *Client) GetPositions(ctx context.Context) ([]model.Position, error) {
	var wire []wirePosition
	if err := c.get(ctx, "/positions", nil, &wire); err != nil {
		return nil, fmt.Errorf("get positions: %w", err)
	}

	positions := make([]model.Position, 0, len(wire))
	for _, w := range wire {
		positions = append(positions, w.toModel())
	}
	return positions, nil
}

// GetTrades fetches recent trades, newest first.
func (c *Client) GetTrades(ctx context.Context, limit int) ([]model.Trade, error) {
	query := url.Values{}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}

	var wire []wireTrade
	if err := c.get(ctx, "/trades", query, &wire); err != nil {
		return nil, fmt.Errorf("get trades: %w", err)
	}

	trades := make([]model.Trade, 0, len(wire))
	for _, w := range wire {
		trades = append(trades, w.toModel())
	}
	return trades, nil
}
