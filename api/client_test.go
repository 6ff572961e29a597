package api_test

import (
	"context"
	"errors"
	"math"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"tradepilot/api"
	"tradepilot/internal/fakebackend"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

func newTestClient(t *testing.T) (*api.Client, *fakebackend.Server) {
	t.Helper()
	backend := fakebackend.New()
	srv := httptest.NewServer(backend.Handler())
	t.Cleanup(srv.Close)

	client := api.NewClient(api.Options{
		BaseURL: srv.URL,
		Logger:  zerolog.Nop(),
	})
	return client, backend
}

func TestGetQuoteNormalizesPayloads(t *testing.T) {
	tests := []struct {
		name          string
		payload       gin.H
		wantPrice     float64
		wantChangePct float64
	}{
		{
			name:          "numeric price with string changePct",
			payload:       gin.H{"symbol": "005930", "price": 79200, "changePct": "0.0142"},
			wantPrice:     79200,
			wantChangePct: 0.0142,
		},
		{
			name:          "string price derived from prevClose",
			payload:       gin.H{"symbol": "005930", "price": "80000", "prevClose": 64000},
			wantPrice:     80000,
			wantChangePct: 0.25,
		},
		{
			name:          "no change information",
			payload:       gin.H{"symbol": "005930", "price": "70000"},
			wantPrice:     70000,
			wantChangePct: 0,
		},
		{
			name:          "changePct wins over prevClose",
			payload:       gin.H{"symbol": "005930", "price": 100, "changePct": 0.5, "prevClose": 50},
			wantPrice:     100,
			wantChangePct: 0.5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, backend := newTestClient(t)
			backend.SetQuote("005930", tt.payload)

			q, err := client.GetQuote(context.Background(), "005930")
			if err != nil {
				t.Fatalf("GetQuote returned error: %v", err)
			}
			if q.Price != tt.wantPrice {
				t.Fatalf("Price=%v, expected %v", q.Price, tt.wantPrice)
			}
			if math.Abs(q.ChangePct-tt.wantChangePct) > 1e-12 {
				t.Fatalf("ChangePct=%v, expected %v", q.ChangePct, tt.wantChangePct)
			}
			if q.Symbol != "005930" {
				t.Fatalf("Symbol=%q, expected 005930", q.Symbol)
			}
		})
	}
}

func TestGetQuoteRejectsBadPrices(t *testing.T) {
	tests := []struct {
		name    string
		payload gin.H
		wantErr error
	}{
		{name: "zero price", payload: gin.H{"price": "0"}, wantErr: api.ErrInvalidPrice},
		{name: "negative price", payload: gin.H{"price": -5}, wantErr: api.ErrInvalidPrice},
		{name: "missing price", payload: gin.H{"symbol": "005930"}, wantErr: api.ErrInvalidPrice},
		{name: "non-numeric price", payload: gin.H{"price": "n/a"}, wantErr: api.ErrMalformedPayload},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, backend := newTestClient(t)
			backend.SetQuote("005930", tt.payload)

			_, err := client.GetQuote(context.Background(), "005930")
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err=%v, expected %v", err, tt.wantErr)
			}
			if !errors.Is(err, api.ErrMalformedPayload) {
				t.Fatalf("err=%v should classify as malformed payload", err)
			}
		})
	}
}

func TestGetQuoteEmptySymbolSkipsRequest(t *testing.T) {
	client, backend := newTestClient(t)

	if _, err := client.GetQuote(context.Background(), "  "); !errors.Is(err, api.ErrEmptySymbol) {
		t.Fatalf("err=%v, expected ErrEmptySymbol", err)
	}
	if n := len(backend.Requests()); n != 0 {
		t.Fatalf("requests=%d, expected 0", n)
	}
}

func TestAutoTradeLifecycle(t *testing.T) {
	client, backend := newTestClient(t)
	ctx := context.Background()

	status, err := client.GetAutoTradeStatus(ctx)
	if err != nil {
		t.Fatalf("GetAutoTradeStatus: %v", err)
	}
	if status.Running || status.Active("005930") {
		t.Fatalf("engine should start stopped, got %+v", status)
	}

	res, err := client.StartAutoTrade(ctx, []string{"005930"}, 2000000)
	if err != nil {
		t.Fatalf("StartAutoTrade: %v", err)
	}
	if !res.Success || res.Message == "" {
		t.Fatalf("unexpected start result %+v", res)
	}
	if n := len(backend.RequestsTo("/auto-trade/start")); n != 1 {
		t.Fatalf("start requests=%d, expected 1", n)
	}

	status, err = client.GetAutoTradeStatus(ctx)
	if err != nil {
		t.Fatalf("GetAutoTradeStatus: %v", err)
	}
	if !status.Active("005930") || status.AmountPerStock != 2000000 || status.Count != 1 {
		t.Fatalf("unexpected status after start %+v", status)
	}

	if _, err := client.StopAutoTrade(ctx); err != nil {
		t.Fatalf("StopAutoTrade: %v", err)
	}
	status, err = client.GetAutoTradeStatus(ctx)
	if err != nil {
		t.Fatalf("GetAutoTradeStatus: %v", err)
	}
	if status.Running {
		t.Fatalf("engine should be stopped, got %+v", status)
	}
}

func TestStartAutoTradeRejection(t *testing.T) {
	client, backend := newTestClient(t)
	backend.RejectStart("Kiwoom not connected")

	res, err := client.StartAutoTrade(context.Background(), []string{"005930"}, 1000000)
	msg, ok := api.IsRejected(err)
	if !ok {
		t.Fatalf("err=%v, expected a rejection", err)
	}
	if msg != "Kiwoom not connected" {
		t.Fatalf("message=%q", msg)
	}
	if res == nil || res.Success {
		t.Fatalf("result=%+v, expected unsuccessful result", res)
	}
	if got := api.ErrorMessage(err, "start failed"); got != "Kiwoom not connected" {
		t.Fatalf("ErrorMessage=%q", got)
	}
}

func TestPlaceOrderDeduplicatesByClientOrderID(t *testing.T) {
	client, backend := newTestClient(t)
	ctx := context.Background()

	order := api.OrderRequest{
		Symbol:        "005930",
		Side:          api.Buy,
		Type:          api.Limit,
		Price:         79000,
		Qty:           3,
		ClientOrderID: "a4f1c9e2-0d0b-4a39-9a57-2f3b0c3b5e11",
	}

	first, err := client.PlaceOrder(ctx, order)
	if err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}
	second, err := client.PlaceOrder(ctx, order)
	if err != nil {
		t.Fatalf("PlaceOrder (retry): %v", err)
	}

	if first.OrderID != second.OrderID {
		t.Fatalf("order ids differ: %q vs %q", first.OrderID, second.OrderID)
	}
	if n := len(backend.Orders()); n != 1 {
		t.Fatalf("orders=%d, expected 1", n)
	}
	reqs := backend.RequestsTo("/order")
	if len(reqs) != 2 || reqs[0].IdempotencyKey != order.ClientOrderID {
		t.Fatalf("idempotency header not sent: %+v", reqs)
	}
}

func TestRequestHeaders(t *testing.T) {
	client, backend := newTestClient(t)
	ctx := context.Background()

	if _, err := client.GetPortfolio(ctx); err != nil {
		t.Fatalf("GetPortfolio: %v", err)
	}
	client.SetToken("tok-123")
	if _, err := client.GetPositions(ctx); err != nil {
		t.Fatalf("GetPositions: %v", err)
	}

	reqs := backend.Requests()
	if len(reqs) != 2 {
		t.Fatalf("requests=%d, expected 2", len(reqs))
	}
	if reqs[0].Authorization != "" {
		t.Fatalf("unexpected Authorization header %q", reqs[0].Authorization)
	}
	if reqs[1].Authorization != "Bearer tok-123" {
		t.Fatalf("Authorization=%q, expected bearer token", reqs[1].Authorization)
	}
	if reqs[0].RequestID == "" || reqs[0].RequestID == reqs[1].RequestID {
		t.Fatalf("request ids should be unique: %q %q", reqs[0].RequestID, reqs[1].RequestID)
	}
}

func TestHTTPFailureIsStatusError(t *testing.T) {
	client, backend := newTestClient(t)
	backend.FailNext("/portfolio", 1)

	_, err := client.GetPortfolio(context.Background())
	var statusErr *api.StatusError
	if !errors.As(err, &statusErr) || statusErr.Code != 500 {
		t.Fatalf("err=%v, expected HTTP 500 StatusError", err)
	}

	p, err := client.GetPortfolio(context.Background())
	if err != nil {
		t.Fatalf("GetPortfolio after failure: %v", err)
	}
	if p.Currency != "KRW" || p.TotalEquity != 10792000 || p.UpdatedAt.IsZero() {
		t.Fatalf("unexpected portfolio %+v", p)
	}
}

func TestSearchAndChart(t *testing.T) {
	client, _ := newTestClient(t)
	ctx := context.Background()

	matches, err := client.SearchStocks(ctx, "naver")
	if err != nil {
		t.Fatalf("SearchStocks: %v", err)
	}
	if len(matches) != 1 || matches[0].Symbol != "035420" {
		t.Fatalf("unexpected matches %+v", matches)
	}
	if _, err := client.SearchStocks(ctx, ""); !errors.Is(err, api.ErrEmptyQuery) {
		t.Fatalf("err=%v, expected ErrEmptyQuery", err)
	}

	candles, err := client.GetChart(ctx, "005930")
	if err != nil {
		t.Fatalf("GetChart: %v", err)
	}
	if len(candles) != 30 {
		t.Fatalf("candles=%d, expected 30", len(candles))
	}
	for i := 1; i < len(candles); i++ {
		if candles[i-1].Timestamp >= candles[i].Timestamp {
			t.Fatalf("candles not oldest first at %d: %d >= %d", i, candles[i-1].Timestamp, candles[i].Timestamp)
		}
	}
	// the fake backend builds day 0 as the newest candle, close 50500
	if last := candles[len(candles)-1]; last.Close != 50500 {
		t.Fatalf("newest close=%v, expected 50500", last.Close)
	}
	for _, c := range candles {
		if c.High < c.Open || c.High < c.Close || c.Low > c.Open || c.Low > c.Close {
			t.Fatalf("inconsistent candle %+v", c)
		}
	}
}
