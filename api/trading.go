package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// GetAutoTradeStatus fetches GET /auto-trade/status.
func (c *Client) GetAutoTradeStatus(ctx context.Context) (AutoTradeStatus, error) {
	var dto autoTradeStatusDTO
	if err := c.do(ctx, http.MethodGet, "/auto-trade/status", nil, &dto); err != nil {
		return AutoTradeStatus{}, fmt.Errorf("get auto-trade status: %w", err)
	}
	return dto.normalize()
}

type autoTradeStartRequest struct {
	Stocks         []string `json:"stocks"`
	AmountPerStock int64    `json:"amount_per_stock"`
}

// StartAutoTrade asks the engine to trade stocks with amountPerStock each.
// A success=false answer is returned as *RejectedError alongside the result.
func (c *Client) StartAutoTrade(ctx context.Context, stocks []string, amountPerStock int64) (*CommandResult, error) {
	if len(stocks) == 0 {
		return nil, ErrEmptySymbol
	}

	req := autoTradeStartRequest{
		Stocks:         stocks,
		AmountPerStock: amountPerStock,
	}
	return c.command(ctx, "/auto-trade/start", req)
}

// StopAutoTrade halts the engine.
func (c *Client) StopAutoTrade(ctx context.Context) (*CommandResult, error) {
	return c.command(ctx, "/auto-trade/stop", nil)
}

// PlaceOrder submits one order. The client order id doubles as the
// Idempotency-Key header so the backend can drop duplicates.
func (c *Client) PlaceOrder(ctx context.Context, order OrderRequest) (*CommandResult, error) {
	if order.Symbol == "" {
		return nil, ErrEmptySymbol
	}

	var opts []requestOption
	if order.ClientOrderID != "" {
		opts = append(opts, withHeader("Idempotency-Key", order.ClientOrderID))
	}
	return c.command(ctx, "/order", order, opts...)
}

func (c *Client) command(ctx context.Context, endpoint string, body any, opts ...requestOption) (*CommandResult, error) {
	var result CommandResult
	if err := c.do(ctx, http.MethodPost, endpoint, body, &result, opts...); err != nil {
		return nil, fmt.Errorf("POST %s: %w", endpoint, err)
	}
	if !result.Success {
		return &result, &RejectedError{Message: result.Message}
	}
	return &result, nil
}

// ErrorMessage turns a command error into the text shown to the user: the server
// message for rejections, fallback otherwise.
func ErrorMessage(err error, fallback string) string {
	if msg, ok := IsRejected(err); ok && msg != "" {
		return msg
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return fmt.Sprintf("%s (HTTP %d)", fallback, statusErr.Code)
	}
	return fallback
}
