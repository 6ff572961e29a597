package trade

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"tradepilot/api"
)

// PriceStep is the tick applied by StepPrice.
const PriceStep = 100

// Submitter is implemented by *api.Client.
type Submitter interface {
	PlaceOrder(ctx context.Context, order api.OrderRequest) (*api.CommandResult, error)
}

// OrderResultMsg carries a settled order back into Update.
type OrderResultMsg struct {
	ticket  *OrderTicket
	gen     uint64
	Request api.OrderRequest
	Result  *api.CommandResult
	Err     error
}

// OrderRecord is one settled submission, kept for the trade screen's history.
type OrderRecord struct {
	ClientOrderID string
	OrderID       string
	Symbol        string
	Side          api.Side
	Type          api.OrderType
	Price         float64
	Qty           int64
	Status        string
	Message       string
	SubmitTime    time.Time
	CompleteTime  time.Time
}

// OrderTicket is the order form of the trade screen. Price and Qty hold the raw
// text the user typed.
type OrderTicket struct {
	client Submitter
	logger zerolog.Logger

	Symbol string
	Side   api.Side
	Type   api.OrderType
	Price  string
	Qty    string

	clientID  string
	gen       uint64
	inFlight  bool
	submitted time.Time
	history   []OrderRecord
}

func NewOrderTicket(client Submitter, logger zerolog.Logger) *OrderTicket {
	return &OrderTicket{
		client:   client,
		logger:   logger.With().Str("component", "order").Logger(),
		Side:     api.Buy,
		Type:     api.Market,
		clientID: uuid.NewString(),
	}
}

// Reset clears the form for symbol. A result still in flight for the previous
// form is ignored when it arrives.
func (o *OrderTicket) Reset(symbol string) {
	o.Symbol = strings.TrimSpace(symbol)
	o.Side = api.Buy
	o.Type = api.Market
	o.Price = ""
	o.Qty = ""
	o.gen++
	o.inFlight = false
	o.clientID = uuid.NewString()
}

func (o *OrderTicket) ClientOrderID() string {
	return o.clientID
}

func (o *OrderTicket) InFlight() bool {
	return o.inFlight
}

func (o *OrderTicket) History() []OrderRecord {
	out := make([]OrderRecord, len(o.history))
	copy(out, o.history)
	return out
}

func (o *OrderTicket) ToggleSide() {
	if o.Side == api.Buy {
		o.Side = api.Sell
	} else {
		o.Side = api.Buy
	}
}

func (o *OrderTicket) ToggleType() {
	if o.Type == api.Market {
		o.Type = api.Limit
	} else {
		o.Type = api.Market
	}
}

// StepPrice moves the limit price by steps*PriceStep, starting from lastPrice
// when no price was typed yet. The price never goes below one step.
func (o *OrderTicket) StepPrice(steps int, lastPrice float64) {
	base, err := parseNumber(o.Price)
	if err != nil || !base.IsPositive() {
		base = decimal.NewFromFloat(lastPrice).Round(0)
	}
	next := base.Add(decimal.NewFromInt(int64(steps * PriceStep)))
	if floor := decimal.NewFromInt(PriceStep); next.LessThan(floor) {
		next = floor
	}
	o.Price = next.String()
}

func (o *OrderTicket) qty() (int64, error) {
	return parseWhole(o.Qty)
}

func (o *OrderTicket) price() (decimal.Decimal, error) {
	d, err := parseNumber(o.Price)
	if err != nil {
		return decimal.Zero, err
	}
	if !d.IsPositive() {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}

// Validate reports why the form cannot be submitted.
func (o *OrderTicket) Validate() error {
	if o.Symbol == "" {
		return api.ErrEmptySymbol
	}
	if _, err := o.qty(); err != nil {
		return fmt.Errorf("%w: quantity must be a positive whole number", ErrInvalidOrder)
	}
	if o.Type == api.Limit {
		if _, err := o.price(); err != nil {
			return fmt.Errorf("%w: limit price must be positive", ErrInvalidOrder)
		}
	}
	return nil
}

// CanSubmit is qty > 0 and (MARKET or price > 0), with nothing in flight.
func (o *OrderTicket) CanSubmit() bool {
	return !o.inFlight && o.Validate() == nil
}

// Notional is price x qty, using lastPrice for market orders. Zero when the form
// is incomplete.
func (o *OrderTicket) Notional(lastPrice float64) decimal.Decimal {
	qty, err := o.qty()
	if err != nil {
		return decimal.Zero
	}
	price := decimal.NewFromFloat(lastPrice)
	if o.Type == api.Limit {
		if price, err = o.price(); err != nil {
			return decimal.Zero
		}
	}
	return price.Mul(decimal.NewFromInt(qty))
}

// Request builds the POST /order body.
func (o *OrderTicket) Request() (api.OrderRequest, error) {
	if err := o.Validate(); err != nil {
		return api.OrderRequest{}, err
	}
	qty, _ := o.qty()
	req := api.OrderRequest{
		Symbol:        o.Symbol,
		Side:          o.Side,
		Type:          o.Type,
		Qty:           qty,
		ClientOrderID: o.clientID,
	}
	if o.Type == api.Limit {
		price, _ := o.price()
		req.Price = price.InexactFloat64()
	}
	return req, nil
}

// Submit sends the order once. The ticket stays locked until the result arrives.
func (o *OrderTicket) Submit() (tea.Cmd, error) {
	if o.inFlight {
		return nil, ErrCommandInFlight
	}
	req, err := o.Request()
	if err != nil {
		return nil, err
	}

	o.inFlight = true
	o.submitted = time.Now()
	o.logger.Info().
		Str("symbol", req.Symbol).
		Str("side", string(req.Side)).
		Str("type", string(req.Type)).
		Float64("price", req.Price).
		Int64("qty", req.Qty).
		Str("client_order_id", req.ClientOrderID).
		Msg("submitting order")

	client, ticket, gen := o.client, o, o.gen
	return func() tea.Msg {
		res, err := client.PlaceOrder(context.Background(), req)
		return OrderResultMsg{ticket: ticket, gen: gen, Request: req, Result: res, Err: err}
	}, nil
}

// Update applies a settled order. The client order id rotates after a success
// or a rejection; after a transport failure it is kept so a retry of the same
// form is deduplicated by the backend.
func (o *OrderTicket) Update(msg tea.Msg) (OrderRecord, bool) {
	res, isResult := msg.(OrderResultMsg)
	if !isResult || res.ticket != o || res.gen != o.gen {
		return OrderRecord{}, false
	}
	o.inFlight = false

	rec := OrderRecord{
		ClientOrderID: res.Request.ClientOrderID,
		Symbol:        res.Request.Symbol,
		Side:          res.Request.Side,
		Type:          res.Request.Type,
		Price:         res.Request.Price,
		Qty:           res.Request.Qty,
		SubmitTime:    o.submitted,
		CompleteTime:  time.Now(),
	}
	if res.Result != nil {
		rec.OrderID = res.Result.OrderID
		rec.Message = res.Result.Message
	}

	_, rejected := api.IsRejected(res.Err)
	switch {
	case res.Err == nil:
		rec.Status = "accepted"
		if rec.Message == "" {
			rec.Message = fmt.Sprintf("%s %d %s accepted", res.Request.Side, res.Request.Qty, res.Request.Symbol)
		}
	case rejected:
		rec.Status = "rejected"
		rec.Message = api.ErrorMessage(res.Err, "Order rejected")
	default:
		rec.Status = "failed"
		rec.Message = api.ErrorMessage(res.Err, "Order failed")
	}

	if res.Err == nil || rejected {
		o.clientID = uuid.NewString()
	}

	o.logger.Info().
		Str("client_order_id", rec.ClientOrderID).
		Str("order_id", rec.OrderID).
		Str("status", rec.Status).
		Err(res.Err).
		Msg("order settled")

	o.history = append(o.history, rec)
	return rec, true
}

func (r OrderRecord) Failed() bool {
	return r.Status != "accepted"
}
