package api

import (
	"context"
	"fmt"
	"net/url"

	"github.com/rickgao/tradedeck/internal/model"
)

// GetSymbols fetches the tradable symbol list, optionally filtered by a search
// term. The endpoint historically returned either quote objects or bare symbol
// strings; both forms are accepted.
func (c *Client) GetSymbols(ctx context.Context, search string) ([]model.SymbolQuote, error) {
	query := url.Values{}
	if search != "" {
		query.Set("search", search)
	}

	var wire []wireSymbol
	if err := c.get(ctx, "/symbols", query, &wire); err != nil {
		return nil, fmt.Errorf("get symbols: %w", err)
	}

	quotes := make([]model.SymbolQuote, 0, len(wire))
	for _, w := range wire {
		if w.Symbol == "" {
			continue
		}
		quotes = append(quotes, w.toModel())
	}
	return quotes, nil
}
