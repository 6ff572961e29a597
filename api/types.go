package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Number decodes a JSON value that the backend sends either as a number or as a
// numeric string ("72000", "0.0142"). Null, missing and empty strings leave it invalid.
type Number struct {
	Value float64
	Valid bool
}

func (n *Number) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*n = Number{}
		return nil
	}

	raw := string(data)
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("%w: %v", ErrMalformedPayload, err)
		}
		raw = strings.TrimSpace(s)
		if raw == "" {
			*n = Number{}
			return nil
		}
	}

	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return fmt.Errorf("%w: %q is not a number", ErrMalformedPayload, raw)
	}

	*n = Number{Value: f, Valid: true}
	return nil
}

func (n Number) MarshalJSON() ([]byte, error) {
	if !n.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(n.Value)
}

// Quote is the normalized price snapshot of one symbol. ChangePct is a fraction
// (0.0123 means +1.23%).
type Quote struct {
	Symbol    string
	Name      string
	Price     float64
	ChangePct float64
}

// ChangePct derives the fractional change from the previous close.
func ChangePct(price, prevClose float64) float64 {
	if prevClose <= 0 {
		return 0
	}
	return price/prevClose - 1
}

type quoteDTO struct {
	Symbol    string `json:"symbol"`
	Name      string `json:"name"`
	Price     Number `json:"price"`
	ChangePct Number `json:"changePct"`
	PrevClose Number `json:"prevClose"`
	Timestamp string `json:"timestamp"`
}

func (d quoteDTO) normalize(symbol string) (Quote, error) {
	if !d.Price.Valid || d.Price.Value <= 0 {
		return Quote{}, fmt.Errorf("%w for %s", ErrInvalidPrice, symbol)
	}

	q := Quote{
		Symbol: d.Symbol,
		Name:   d.Name,
		Price:  d.Price.Value,
	}
	if q.Symbol == "" {
		q.Symbol = symbol
	}

	switch {
	case d.ChangePct.Valid:
		q.ChangePct = d.ChangePct.Value
	case d.PrevClose.Valid:
		q.ChangePct = ChangePct(q.Price, d.PrevClose.Value)
	}

	return q, nil
}

// AutoTradeStatus is the server-side state of the auto-trade engine.
type AutoTradeStatus struct {
	Running        bool
	Stocks         []string
	Count          int
	AmountPerStock float64
}

// Active reports whether symbol is under active auto-trading.
func (s AutoTradeStatus) Active(symbol string) bool {
	if !s.Running || symbol == "" {
		return false
	}
	return slices.Contains(s.Stocks, symbol)
}

type autoTradeStatusDTO struct {
	Running        *bool    `json:"running"`
	Stocks         []string `json:"stocks"`
	Count          int      `json:"count"`
	AmountPerStock Number   `json:"amount_per_stock"`
}

func (d autoTradeStatusDTO) normalize() (AutoTradeStatus, error) {
	if d.Running == nil {
		return AutoTradeStatus{}, fmt.Errorf("%w: auto-trade status without running flag", ErrMalformedPayload)
	}

	status := AutoTradeStatus{
		Running:        *d.Running,
		Stocks:         d.Stocks,
		Count:          d.Count,
		AmountPerStock: d.AmountPerStock.Value,
	}
	if status.Count == 0 {
		status.Count = len(status.Stocks)
	}
	return status, nil
}

// CommandResult is the acknowledgement of a start/stop/order command.
type CommandResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	OrderID string `json:"orderId"`
}

type Side string

const (
	Buy  Side = "BUY"
	Sell Side = "SELL"
)

type OrderType string

const (
	Market OrderType = "MARKET"
	Limit  OrderType = "LIMIT"
)

// OrderRequest is the body of POST /order. Price is 0 for market orders.
type OrderRequest struct {
	Symbol        string    `json:"symbol"`
	Side          Side      `json:"side"`
	Type          OrderType `json:"type"`
	Price         float64   `json:"price"`
	Qty           int64     `json:"qty"`
	ClientOrderID string    `json:"client_order_id,omitempty"`
}

// Candle is one OHLC bar; Timestamp is unix milliseconds.
type Candle struct {
	Timestamp int64
	Open      float64
	High      float64
	Low       float64
	Close     float64
}

func (c Candle) Time() time.Time {
	return time.UnixMilli(c.Timestamp)
}

type candleDTO struct {
	Timestamp Number `json:"timestamp"`
	Open      Number `json:"open"`
	High      Number `json:"high"`
	Low       Number `json:"low"`
	Close     Number `json:"close"`
}

func (d candleDTO) normalize() (Candle, error) {
	if !d.Timestamp.Valid || !d.Open.Valid || !d.High.Valid || !d.Low.Valid || !d.Close.Valid {
		return Candle{}, fmt.Errorf("%w: incomplete candle", ErrMalformedPayload)
	}
	return Candle{
		Timestamp: int64(d.Timestamp.Value),
		Open:      d.Open.Value,
		High:      d.High.Value,
		Low:       d.Low.Value,
		Close:     d.Close.Value,
	}, nil
}

// StockMatch is a search hit.
type StockMatch struct {
	Symbol string `json:"symbol"`
	Name   string `json:"name"`
	Market string `json:"market"`
}

// Portfolio is the account summary. Money fields arrive as decimal strings.
type Portfolio struct {
	Currency    string
	TotalEquity float64
	Cash        float64
	PnLDay      float64
	PnLDayPct   float64
	UpdatedAt   time.Time
}

type portfolioDTO struct {
	Currency    string `json:"currency"`
	TotalEquity Number `json:"totalEquity"`
	Cash        Number `json:"cash"`
	PnLDay      Number `json:"pnlDay"`
	PnLDayPct   Number `json:"pnlDayPct"`
	UpdatedAt   string `json:"updatedAt"`
}

func (d portfolioDTO) normalize() Portfolio {
	p := Portfolio{
		Currency:    d.Currency,
		TotalEquity: d.TotalEquity.Value,
		Cash:        d.Cash.Value,
		PnLDay:      d.PnLDay.Value,
		PnLDayPct:   d.PnLDayPct.Value,
	}
	if t, err := time.Parse(time.RFC3339, d.UpdatedAt); err == nil {
		p.UpdatedAt = t
	}
	return p
}

// Position is one holding.
type Position struct {
	Symbol    string
	Name      string
	Qty       float64
	AvgPrice  float64
	LastPrice float64
	PnL       float64
	PnLPct    float64
}

type positionDTO struct {
	Symbol    string `json:"symbol"`
	Name      string `json:"name"`
	Qty       Number `json:"qty"`
	AvgPrice  Number `json:"avgPrice"`
	LastPrice Number `json:"lastPrice"`
	PnL       Number `json:"pnl"`
	PnLPct    Number `json:"pnlPct"`
}

func (d positionDTO) normalize() Position {
	return Position{
		Symbol:    d.Symbol,
		Name:      d.Name,
		Qty:       d.Qty.Value,
		AvgPrice:  d.AvgPrice.Value,
		LastPrice: d.LastPrice.Value,
		PnL:       d.PnL.Value,
		PnLPct:    d.PnLPct.Value,
	}
}
