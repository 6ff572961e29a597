package trade_test

import (
	"errors"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"tradepilot/api"
	"tradepilot/internal/fakebackend"
	"tradepilot/trade"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

func newTicket(t *testing.T) (*trade.OrderTicket, *fakebackend.Server) {
	t.Helper()
	backend := fakebackend.New()
	srv := httptest.NewServer(backend.Handler())
	t.Cleanup(srv.Close)

	client := api.NewClient(api.Options{BaseURL: srv.URL, Logger: zerolog.Nop()})
	ticket := trade.NewOrderTicket(client, zerolog.Nop())
	ticket.Reset("005930")
	return ticket, backend
}

func TestCanSubmit(t *testing.T) {
	tests := []struct {
		name  string
		typ   api.OrderType
		price string
		qty   string
		want  bool
	}{
		{name: "market with qty", typ: api.Market, qty: "10", want: true},
		{name: "market without qty", typ: api.Market, qty: "", want: false},
		{name: "market zero qty", typ: api.Market, qty: "0", want: false},
		{name: "fractional qty", typ: api.Market, qty: "1.5", want: false},
		{name: "limit with price", typ: api.Limit, price: "79,000", qty: "3", want: true},
		{name: "limit without price", typ: api.Limit, qty: "3", want: false},
		{name: "limit zero price", typ: api.Limit, price: "0", qty: "3", want: false},
		{name: "limit negative price", typ: api.Limit, price: "-100", qty: "3", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ticket := trade.NewOrderTicket(nil, zerolog.Nop())
			ticket.Reset("005930")
			ticket.Type = tt.typ
			ticket.Price = tt.price
			ticket.Qty = tt.qty

			if got := ticket.CanSubmit(); got != tt.want {
				t.Fatalf("CanSubmit() = %v, want %v (validate: %v)", got, tt.want, ticket.Validate())
			}
			if !tt.want && !errors.Is(ticket.Validate(), trade.ErrInvalidOrder) {
				t.Fatalf("expected ErrInvalidOrder, got %v", ticket.Validate())
			}
		})
	}
}

func TestNotional(t *testing.T) {
	ticket := trade.NewOrderTicket(nil, zerolog.Nop())
	ticket.Reset("005930")
	ticket.Qty = "10"

	if got := ticket.Notional(79200); !got.Equal(decimal.NewFromInt(792000)) {
		t.Fatalf("market notional = %s", got)
	}

	ticket.Type = api.Limit
	ticket.Price = "78,500"
	if got := ticket.Notional(79200); !got.Equal(decimal.NewFromInt(785000)) {
		t.Fatalf("limit notional = %s", got)
	}

	ticket.Qty = ""
	if got := ticket.Notional(79200); !got.IsZero() {
		t.Fatalf("incomplete form must have zero notional, got %s", got)
	}
}

func TestStepPrice(t *testing.T) {
	ticket := trade.NewOrderTicket(nil, zerolog.Nop())
	ticket.Reset("005930")
	ticket.Type = api.Limit

	ticket.StepPrice(1, 79200)
	if ticket.Price != "79300" {
		t.Fatalf("first step must start from the last price, got %q", ticket.Price)
	}
	ticket.StepPrice(-2, 79200)
	if ticket.Price != "79100" {
		t.Fatalf("got %q", ticket.Price)
	}

	ticket.Price = "150"
	ticket.StepPrice(-5, 0)
	if ticket.Price != "100" {
		t.Fatalf("price must not go below one step, got %q", ticket.Price)
	}
}

func TestSubmitPlacesOneOrder(t *testing.T) {
	ticket, backend := newTicket(t)
	ticket.Qty = "10"

	cmd, err := ticket.Submit()
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := ticket.Submit(); !errors.Is(err, trade.ErrCommandInFlight) {
		t.Fatalf("duplicate submit must be refused while in flight, got %v", err)
	}

	firstID := ticket.ClientOrderID()
	rec, ok := ticket.Update(cmd())
	if !ok || rec.Failed() || rec.OrderID == "" {
		t.Fatalf("unexpected record %+v", rec)
	}
	if rec.ClientOrderID != firstID {
		t.Fatalf("record carries %q, want %q", rec.ClientOrderID, firstID)
	}
	if ticket.ClientOrderID() == firstID {
		t.Fatalf("client order id must rotate after a settled order")
	}

	orders := backend.Orders()
	if len(orders) != 1 || orders[0].Qty != 10 || orders[0].Side != "BUY" || orders[0].Type != "MARKET" {
		t.Fatalf("unexpected orders %+v", orders)
	}
	if orders[0].IdempotencyKey != firstID {
		t.Fatalf("Idempotency-Key = %q, want %q", orders[0].IdempotencyKey, firstID)
	}
}

func TestRetryAfterTransportFailureIsDeduplicated(t *testing.T) {
	ticket, backend := newTicket(t)
	ticket.Qty = "5"
	backend.FailNext("/order", 1)

	cmd, _ := ticket.Submit()
	id := ticket.ClientOrderID()
	rec, _ := ticket.Update(cmd())
	if rec.Status != "failed" {
		t.Fatalf("expected failed status, got %+v", rec)
	}
	if ticket.ClientOrderID() != id {
		t.Fatalf("client order id must be kept after a transport failure")
	}

	cmd, _ = ticket.Submit()
	rec, _ = ticket.Update(cmd())
	if rec.Failed() {
		t.Fatalf("retry failed: %+v", rec)
	}

	// a third tap with the same id would be a duplicate; the id rotated so it is a new order
	cmd, _ = ticket.Submit()
	ticket.Update(cmd())
	if n := len(backend.Orders()); n != 2 {
		t.Fatalf("expected 2 distinct orders, got %d", n)
	}
}

func TestRejectedOrderRotatesID(t *testing.T) {
	ticket, backend := newTicket(t)
	ticket.Type = api.Limit
	ticket.Qty = "1"
	ticket.Price = "79,000"
	backend.RejectOrders("Insufficient balance")

	req, err := ticket.Request()
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if req.Price != 79000 || req.Qty != 1 || req.ClientOrderID == "" {
		t.Fatalf("unexpected request %+v", req)
	}

	cmd, err := ticket.Submit()
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	id := ticket.ClientOrderID()
	rec, _ := ticket.Update(cmd())
	if rec.Status != "rejected" || rec.Message != "Insufficient balance" {
		t.Fatalf("expected rejection with server message, got %+v", rec)
	}
	if ticket.ClientOrderID() == id {
		t.Fatalf("id must rotate after a rejection")
	}
	if len(backend.Orders()) != 0 {
		t.Fatalf("rejected order recorded")
	}
}

func TestResetIgnoresResultOfPreviousForm(t *testing.T) {
	ticket, _ := newTicket(t)
	ticket.Qty = "1"

	cmd, _ := ticket.Submit()
	msg := cmd()
	ticket.Reset("000660")

	if _, ok := ticket.Update(msg); ok {
		t.Fatalf("result for the previous form must be ignored")
	}
	if ticket.InFlight() {
		t.Fatalf("reset must unlock the ticket")
	}
	if len(ticket.History()) != 0 {
		t.Fatalf("stale result recorded in history")
	}
}
