package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/rickgao/tradedeck/internal/model"
)

// encodingVariants returns the ordered list of path encodings to try for a
// symbol. Symbols like "BTC/USD" are rejected by some router configurations in
// percent-encoded form, so the literal slash and a dash alias are tried next.
func encodingVariants(symbol string) []string {
	escaped := url.PathEscape(symbol)
	if escaped == symbol {
		return []string{symbol}
	}

	variants := []string{escaped, symbol}
	if strings.Contains(symbol, "/") {
		variants = append(variants, strings.ReplaceAll(symbol, "/", "-"))
	}
	return variants
}

// GetHistorical fetches historical candles for a symbol. Each encoding variant
// of the symbol path segment is attempted in order, stopping at the first
// success. Credential failures are surfaced immediately and never retried on
// an alternate encoding.
func (c *Client) GetHistorical(ctx context.Context, symbol string, timeframe model.Timeframe, limit int) ([]model.CandlePoint, error) {
	query := url.Values{}
	query.Set("timeframe", string(timeframe))
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}

	var lastErr error
	for _, variant := range encodingVariants(symbol) {
		body, err := c.doWithRetry(ctx, http.MethodGet, "/historical/"+variant, query, nil)
		if err != nil {
			if errors.Is(err, ErrCredentialsRequired) {
				return nil, err
			}
			lastErr = err
			c.logger.Debug("historical fetch variant failed",
				"symbol", symbol,
				"variant", variant,
				"error", err,
			)
			continue
		}

		var wire []wireCandle
		if err := json.Unmarshal(body, &wire); err != nil {
			lastErr = fmt.Errorf("unmarshal candles: %w", err)
			continue
		}

		return toCandles(wire), nil
	}

	return nil, fmt.Errorf("historical %s: %w", symbol, lastErr)
}
