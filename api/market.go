package api

import (
	"cmp"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"strings"
)

// GetQuote fetches GET /quote/{symbol} and normalizes it. A payload without a
// positive numeric price yields ErrInvalidPrice.
func (c *Client) GetQuote(ctx context.Context, symbol string) (Quote, error) {
	symbol = strings.TrimSpace(symbol)
	if symbol == "" {
		return Quote{}, ErrEmptySymbol
	}

	var dto quoteDTO
	if err := c.do(ctx, http.MethodGet, "/quote/"+url.PathEscape(symbol), nil, &dto); err != nil {
		return Quote{}, fmt.Errorf("get quote %s: %w", symbol, err)
	}
	return dto.normalize(symbol)
}

// GetChart fetches the candle history for symbol via POST /chart.
func (c *Client) GetChart(ctx context.Context, symbol string) ([]Candle, error) {
	symbol = strings.TrimSpace(symbol)
	if symbol == "" {
		return nil, ErrEmptySymbol
	}

	body := map[string]string{"symbol": symbol}
	var dtos []candleDTO
	if err := c.do(ctx, http.MethodPost, "/chart", body, &dtos); err != nil {
		return nil, fmt.Errorf("get chart %s: %w", symbol, err)
	}

	candles := make([]Candle, 0, len(dtos))
	for _, dto := range dtos {
		candle, err := dto.normalize()
		if err != nil {
			return nil, fmt.Errorf("get chart %s: %w", symbol, err)
		}
		candles = append(candles, candle)
	}
	// the backend sends newest first
	slices.SortFunc(candles, func(a, b Candle) int {
		return cmp.Compare(a.Timestamp, b.Timestamp)
	})
	return candles, nil
}

// SearchStocks looks up symbols by code or name via GET /stocks/search?q=.
func (c *Client) SearchStocks(ctx context.Context, query string) ([]StockMatch, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}

	var matches []StockMatch
	if err := c.do(ctx, http.MethodGet, "/stocks/search", nil, &matches, withQuery(url.Values{"q": {query}})); err != nil {
		return nil, fmt.Errorf("search stocks %q: %w", query, err)
	}
	return matches, nil
}
