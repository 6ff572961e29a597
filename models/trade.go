package models

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/cursor"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	"tradepilot/api"
	"tradepilot/config"
	"tradepilot/market"
	"tradepilot/trade"
)

type tradeMode int

const (
	modeView tradeMode = iota
	modeAmount
	modeConfirmStart
	modeConfirmStop
	modeOrder
)

type orderField int

const (
	fieldQty orderField = iota
	fieldPrice
)

type ChartLoader interface {
	GetChart(ctx context.Context, symbol string) ([]api.Candle, error)
}

type chartLoadedMsg struct {
	gen     uint64
	candles []api.Candle
	err     error
}

// TradeScreen is one symbol's live view. Entering it starts a quote session and
// an auto-trade status session; leaving ends both.
type TradeScreen struct {
	chartLoader ChartLoader
	cfg         *config.Config
	logger      zerolog.Logger

	Quotes *market.QuotePoller
	Status *market.StatusPoller
	Trader *trade.AutoTrader
	Ticket *trade.OrderTicket

	Symbol string
	Name   string

	Candles      []api.Candle
	ChartErr     error
	ChartLoading bool
	chartGen     uint64

	mode          tradeMode
	field         orderField
	amount        textinput.Model
	pendingAmount int64

	// Inline validation message; does not block input.
	Inline string
	// Blocking alert; only enter/esc dismiss it.
	Alert  string
	Notice string
}

func NewTradeScreen(backend Backend, cfg *config.Config, limits trade.Limits, logger zerolog.Logger, schedule market.Scheduler) *TradeScreen {
	ti := textinput.New()
	ti.CharLimit = 16
	ti.Prompt = "₩ "
	ti.Cursor.SetMode(cursor.CursorStatic)

	status := market.NewStatusPoller(backend, logger, schedule)
	return &TradeScreen{
		chartLoader: backend,
		cfg:         cfg,
		logger:      logger.With().Str("screen", "trade").Logger(),
		Quotes:      market.NewQuotePoller(backend, logger, schedule),
		Status:      status,
		Trader:      trade.NewAutoTrader(backend, status, limits, logger),
		Ticket:      trade.NewOrderTicket(backend, logger),
		amount:      ti,
	}
}

// Enter binds the screen to symbol and starts its sessions. Any previous
// session is torn down first.
func (t *TradeScreen) Enter(symbol, name string) tea.Cmd {
	t.Leave()

	symbol = strings.TrimSpace(symbol)
	if symbol == "" {
		return nil
	}
	if symbol != t.Symbol {
		t.Ticket.Reset(symbol)
		t.Candles = nil
	}
	t.Symbol = symbol
	t.Name = name
	t.Trader.Bind(symbol)
	t.Notice = ""

	t.logger.Info().Str("symbol", symbol).Msg("trade screen entered")
	return tea.Batch(
		t.Quotes.Start(symbol, t.cfg.Poll.QuoteInterval),
		t.Status.Start(symbol, t.cfg.Poll.StatusInterval),
		t.loadChart(),
	)
}

// Leave ends both polling sessions. Late results of them are dropped.
func (t *TradeScreen) Leave() {
	t.Quotes.Stop()
	t.Status.Stop()
	t.chartGen++
	t.ChartLoading = false
	t.mode = modeView
	t.Inline = ""
	t.Alert = ""
}

func (t *TradeScreen) Active() bool {
	return t.Quotes.Running() || t.Status.Running()
}

func (t *TradeScreen) loadChart() tea.Cmd {
	t.chartGen++
	t.ChartLoading = true
	t.ChartErr = nil
	gen, loader, symbol := t.chartGen, t.chartLoader, t.Symbol
	return func() tea.Msg {
		candles, err := loader.GetChart(context.Background(), symbol)
		return chartLoadedMsg{gen: gen, candles: candles, err: err}
	}
}

func (t *TradeScreen) Update(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case chartLoadedMsg:
		if msg.gen != t.chartGen {
			return nil
		}
		t.ChartLoading = false
		if msg.err != nil {
			t.ChartErr = msg.err
			t.logger.Warn().Err(msg.err).Str("symbol", t.Symbol).Msg("chart load failed")
			return nil
		}
		t.Candles = msg.candles
		return nil

	case market.ActiveChangedMsg:
		if msg.Symbol == t.Symbol && !msg.Provisional {
			if msg.Active {
				t.Notice = "Auto-trade is running for " + msg.Symbol
			} else {
				t.Notice = "Auto-trade is off for " + msg.Symbol
			}
		}
		return nil

	case trade.CommandResultMsg:
		out, ok, cmd := t.Trader.Update(msg)
		if !ok {
			return nil
		}
		if out.Err != nil {
			t.Alert = out.Message
		} else {
			t.Notice = out.Message
		}
		return cmd

	case trade.OrderResultMsg:
		rec, ok := t.Ticket.Update(msg)
		if !ok {
			return nil
		}
		if rec.Failed() {
			t.Alert = rec.Message
		} else {
			t.Notice = fmt.Sprintf("%s (order %s)", rec.Message, rec.OrderID)
			t.Ticket.Qty = ""
			t.mode = modeView
		}
		return nil
	}

	return tea.Batch(t.Quotes.Update(msg), t.Status.Update(msg))
}

// HandleKey consumes a key press. handled is false when the key should fall
// through to the app (esc on the main view leaves the screen).
func (t *TradeScreen) HandleKey(msg tea.KeyMsg) (tea.Cmd, bool) {
	if t.Alert != "" {
		if key.Matches(msg, keys.Select, keys.Back) {
			t.Alert = ""
		}
		return nil, true
	}

	switch t.mode {
	case modeAmount:
		return t.handleAmountKeys(msg), true
	case modeConfirmStart:
		return t.handleConfirmStart(msg), true
	case modeConfirmStop:
		return t.handleConfirmStop(msg), true
	case modeOrder:
		return t.handleOrderKeys(msg), true
	}

	switch {
	case key.Matches(msg, keys.AutoTrade):
		t.Inline = ""
		switch t.Trader.State() {
		case trade.Running:
			t.mode = modeConfirmStop
		case trade.Stopped:
			t.mode = modeAmount
			t.amount.SetValue(t.Trader.SuggestedAmount())
			t.amount.CursorEnd()
			t.amount.Focus()
		default:
			t.Inline = trade.ErrCommandInFlight.Error()
		}
		return nil, true

	case key.Matches(msg, keys.Order):
		t.mode = modeOrder
		t.field = fieldQty
		t.Inline = ""
		return nil, true

	case key.Matches(msg, keys.Refresh):
		return t.loadChart(), true
	}
	return nil, false
}

func (t *TradeScreen) handleAmountKeys(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, keys.Back):
		t.mode = modeView
		t.amount.Blur()
		t.Inline = ""
		return nil

	case key.Matches(msg, keys.Select):
		amount, step, err := t.Trader.PrepareStart(t.amount.Value())
		if err != nil {
			t.Inline = err.Error()
			return nil
		}
		t.amount.Blur()
		t.Inline = ""
		if step == trade.StepConfirmLarge {
			t.pendingAmount = amount
			t.mode = modeConfirmStart
			return nil
		}
		t.mode = modeView
		return t.issue(t.Trader.Start(amount, false))
	}

	var cmd tea.Cmd
	t.amount, cmd = t.amount.Update(msg)
	return cmd
}

func (t *TradeScreen) handleConfirmStart(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, keys.Yes):
		t.mode = modeView
		return t.issue(t.Trader.Start(t.pendingAmount, true))
	case key.Matches(msg, keys.No):
		t.mode = modeView
		t.pendingAmount = 0
	}
	return nil
}

func (t *TradeScreen) handleConfirmStop(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, keys.Yes):
		t.mode = modeView
		return t.issue(t.Trader.Stop(true))
	case key.Matches(msg, keys.No):
		t.mode = modeView
	}
	return nil
}

func (t *TradeScreen) issue(cmd tea.Cmd, err error) tea.Cmd {
	if err != nil {
		t.Inline = err.Error()
		return nil
	}
	return cmd
}

func (t *TradeScreen) handleOrderKeys(msg tea.KeyMsg) tea.Cmd {
	ticket := t.Ticket
	switch {
	case key.Matches(msg, keys.Back):
		t.mode = modeView
		t.Inline = ""
		return nil

	case key.Matches(msg, keys.Select):
		cmd, err := ticket.Submit()
		if err != nil {
			t.Inline = err.Error()
			return nil
		}
		t.Inline = ""
		return cmd

	case key.Matches(msg, keys.NextField):
		if ticket.Type == api.Limit && t.field == fieldQty {
			t.field = fieldPrice
		} else {
			t.field = fieldQty
		}

	case key.Matches(msg, keys.ToggleSide):
		ticket.ToggleSide()

	case key.Matches(msg, keys.ToggleType):
		ticket.ToggleType()
		if ticket.Type == api.Market {
			t.field = fieldQty
		}

	case key.Matches(msg, keys.PriceUp):
		if ticket.Type == api.Limit {
			ticket.StepPrice(1, t.Quotes.LastPrice())
		}

	case key.Matches(msg, keys.PriceDown):
		if ticket.Type == api.Limit {
			ticket.StepPrice(-1, t.Quotes.LastPrice())
		}

	case msg.Type == tea.KeyBackspace:
		t.editField(func(s string) string {
			if s == "" {
				return s
			}
			r := []rune(s)
			return string(r[:len(r)-1])
		})

	case msg.Type == tea.KeyRunes:
		text := string(msg.Runes)
		if strings.Trim(text, "0123456789.,") == "" {
			t.editField(func(s string) string { return s + text })
		}
	}
	return nil
}

func (t *TradeScreen) editField(edit func(string) string) {
	if t.Ticket.InFlight() {
		return
	}
	if t.field == fieldPrice {
		t.Ticket.Price = edit(t.Ticket.Price)
	} else {
		t.Ticket.Qty = edit(t.Ticket.Qty)
	}
	t.Inline = ""
}

// Blocking reports whether an alert or prompt is open.
func (t *TradeScreen) Blocking() bool {
	return t.Alert != "" || t.mode != modeView
}

func (t *TradeScreen) Mode() tradeMode {
	return t.mode
}

