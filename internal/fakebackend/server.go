// Package fakebackend is an in-memory stand-in for the trading backend. It serves
// the same routes and payload shapes (including numeric strings) and lets tests
// inject failures and rejections.
package fakebackend

import (
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// Stock is one entry of the searchable listing.
type Stock struct {
	Symbol string `json:"symbol"`
	Name   string `json:"name"`
	Market string `json:"market"`
}

// Order is an accepted order as the backend recorded it.
type Order struct {
	ID             string  `json:"orderId"`
	Symbol         string  `json:"symbol"`
	Side           string  `json:"side"`
	Type           string  `json:"type"`
	Price          float64 `json:"price"`
	Qty            int64   `json:"qty"`
	ClientOrderID  string  `json:"client_order_id"`
	IdempotencyKey string  `json:"-"`
}

// Request is a recorded inbound request.
type Request struct {
	Method         string
	Path           string
	Authorization  string
	IdempotencyKey string
	RequestID      string
}

type Server struct {
	mu sync.Mutex

	quotes    map[string]gin.H
	stocks    []Stock
	positions []gin.H

	running        bool
	autoStocks     []string
	amountPerStock int64
	rejectStart    string
	rejectOrder    string

	orders  []Order
	byKey   map[string]string
	failing map[string]int

	requests []Request
}

// New returns a backend seeded with a few KOSPI listings.
func New() *Server {
	return &Server{
		quotes: map[string]gin.H{
			"005930": {"symbol": "005930", "name": "삼성전자", "price": 79200, "changePct": "0.0142"},
			"000660": {"symbol": "000660", "name": "SK하이닉스", "price": "201000", "prevClose": 198000},
			"035720": {"symbol": "035720", "name": "카카오", "price": "41250", "changePct": "-0.0085"},
		},
		stocks: []Stock{
			{Symbol: "005930", Name: "삼성전자", Market: "KOSPI"},
			{Symbol: "000660", Name: "SK하이닉스", Market: "KOSPI"},
			{Symbol: "035420", Name: "NAVER", Market: "KOSPI"},
			{Symbol: "035720", Name: "카카오", Market: "KOSPI"},
		},
		positions: []gin.H{
			{"symbol": "005930", "name": "삼성전자", "qty": "10", "avgPrice": "70000", "lastPrice": "79200", "pnl": "92000", "pnlPct": "0.1314"},
		},
		byKey:   make(map[string]string),
		failing: make(map[string]int),
	}
}

// Handler builds the gin engine serving the backend routes.
func (s *Server) Handler() http.Handler {
	r := gin.New()
	r.Use(gin.Recovery(), s.record())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})
	r.GET("/quote/:symbol", s.getQuote)
	r.POST("/chart", s.getChart)
	r.GET("/stocks/search", s.searchStocks)
	r.GET("/auto-trade/status", s.autoTradeStatus)
	r.POST("/auto-trade/start", s.startAutoTrade)
	r.POST("/auto-trade/stop", s.stopAutoTrade)
	r.POST("/order", s.placeOrder)
	r.GET("/portfolio", s.getPortfolio)
	r.GET("/positions", s.getPositions)

	return r
}

// record logs every request and answers 500 while a failure is armed for its path.
func (s *Server) record() gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path

		s.mu.Lock()
		s.requests = append(s.requests, Request{
			Method:         c.Request.Method,
			Path:           path,
			Authorization:  c.GetHeader("Authorization"),
			IdempotencyKey: c.GetHeader("Idempotency-Key"),
			RequestID:      c.GetHeader("X-Request-ID"),
		})
		fail := s.failing[path] > 0
		if fail {
			s.failing[path]--
		}
		s.mu.Unlock()

		if fail {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"detail": "injected failure"})
			return
		}
		c.Next()
	}
}

// SetQuote replaces the raw quote payload served for symbol.
func (s *Server) SetQuote(symbol string, payload gin.H) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.quotes[symbol] = payload
}

// FailNext makes the next n requests to path answer HTTP 500.
func (s *Server) FailNext(path string, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failing[path] = n
}

// RejectStart makes /auto-trade/start answer success=false with msg. Empty msg clears it.
func (s *Server) RejectStart(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rejectStart = msg
}

// RejectOrders makes /order answer success=false with msg. Empty msg clears it.
func (s *Server) RejectOrders(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rejectOrder = msg
}

// SetAutoTrade overrides the engine state as if changed by another client.
func (s *Server) SetAutoTrade(running bool, stocks []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = running
	s.autoStocks = append([]string(nil), stocks...)
}

func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

// RequestsTo returns the recorded requests whose path equals path.
func (s *Server) RequestsTo(path string) []Request {
	var out []Request
	for _, r := range s.Requests() {
		if r.Path == path {
			out = append(out, r)
		}
	}
	return out
}

func (s *Server) Orders() []Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Order(nil), s.orders...)
}

func (s *Server) getQuote(c *gin.Context) {
	symbol := c.Param("symbol")

	s.mu.Lock()
	payload, ok := s.quotes[symbol]
	s.mu.Unlock()

	if !ok {
		c.JSON(http.StatusOK, gin.H{"symbol": symbol, "price": "0", "changePct": "0.0", "timestamp": ""})
		return
	}
	c.JSON(http.StatusOK, payload)
}

func (s *Server) getChart(c *gin.Context) {
	var req struct {
		Symbol string `json:"symbol"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Symbol == "" {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": "symbol is required"})
		return
	}

	base := 50000.0
	now := time.Now().UnixMilli()
	candles := make([]gin.H, 0, 30)
	for i := 0; i < 30; i++ {
		open := base
		var closePrice float64
		switch i % 3 {
		case 0:
			closePrice = open + 500 + float64(i*40)
		case 1:
			closePrice = open - 500 - float64(i*30)
		default:
			closePrice = open + 100
		}
		candles = append(candles, gin.H{
			"timestamp": now - int64(i)*86400000,
			"open":      open,
			"high":      max(open, closePrice) + 300,
			"low":       min(open, closePrice) - 200,
			"close":     closePrice,
		})
		base = closePrice
	}
	c.JSON(http.StatusOK, candles)
}

func (s *Server) searchStocks(c *gin.Context) {
	q := strings.ToLower(strings.TrimSpace(c.Query("q")))
	if q == "" {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": "q is required"})
		return
	}

	results := make([]Stock, 0)
	for _, st := range s.stocks {
		if strings.Contains(st.Symbol, q) || strings.Contains(strings.ToLower(st.Name), q) {
			results = append(results, st)
		}
		if len(results) == 10 {
			break
		}
	}
	c.JSON(http.StatusOK, results)
}

func (s *Server) autoTradeStatus(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	amount := int64(0)
	if s.running {
		amount = s.amountPerStock
	}
	stocks := s.autoStocks
	if stocks == nil {
		stocks = []string{}
	}
	c.JSON(http.StatusOK, gin.H{
		"running":          s.running,
		"stocks":           stocks,
		"count":            len(stocks),
		"amount_per_stock": amount,
	})
}

func (s *Server) startAutoTrade(c *gin.Context) {
	var req struct {
		Stocks         []string `json:"stocks"`
		AmountPerStock int64    `json:"amount_per_stock"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": err.Error()})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.rejectStart != "" {
		c.JSON(http.StatusOK, gin.H{"success": false, "message": s.rejectStart, "stocks": req.Stocks})
		return
	}
	if len(req.Stocks) == 0 {
		c.JSON(http.StatusOK, gin.H{"success": false, "message": "No stocks provided", "stocks": []string{}})
		return
	}
	if req.AmountPerStock == 0 {
		req.AmountPerStock = 1000000
	}

	s.running = true
	s.autoStocks = req.Stocks
	s.amountPerStock = req.AmountPerStock
	c.JSON(http.StatusOK, gin.H{
		"success":          true,
		"message":          fmt.Sprintf("Auto trade started for %d stocks with %d each", len(req.Stocks), req.AmountPerStock),
		"stocks":           req.Stocks,
		"amount_per_stock": req.AmountPerStock,
	})
}

func (s *Server) stopAutoTrade(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.running = false
	s.autoStocks = nil
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Auto trade stopped"})
}

func (s *Server) placeOrder(c *gin.Context) {
	var req Order
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": err.Error()})
		return
	}
	req.IdempotencyKey = c.GetHeader("Idempotency-Key")

	s.mu.Lock()
	defer s.mu.Unlock()

	if req.IdempotencyKey != "" {
		if id, ok := s.byKey[req.IdempotencyKey]; ok {
			c.JSON(http.StatusOK, gin.H{"success": true, "orderId": id, "message": "Duplicate order ignored"})
			return
		}
	}
	if s.rejectOrder != "" {
		c.JSON(http.StatusOK, gin.H{"success": false, "orderId": "NONE", "message": s.rejectOrder})
		return
	}
	if req.Symbol == "" || req.Qty <= 0 {
		c.JSON(http.StatusOK, gin.H{"success": false, "orderId": "NONE", "message": "Invalid order"})
		return
	}
	if req.Type == "LIMIT" && req.Price <= 0 {
		c.JSON(http.StatusOK, gin.H{"success": false, "orderId": "NONE", "message": "Limit price required"})
		return
	}

	req.ID = fmt.Sprintf("ORD%d", len(s.orders)+1)
	s.orders = append(s.orders, req)
	if req.IdempotencyKey != "" {
		s.byKey[req.IdempotencyKey] = req.ID
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "orderId": req.ID, "message": "Order sent"})
}

func (s *Server) getPortfolio(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"currency":    "KRW",
		"totalEquity": "10792000",
		"cash":        "10000000",
		"pnlDay":      "50000",
		"pnlDayPct":   "0.005",
		"updatedAt":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) getPositions(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.JSON(http.StatusOK, s.positions)
}
