package market

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	"tradepilot/api"
)

const DefaultQuoteInterval = 2 * time.Second

// QuoteFetcher is implemented by *api.Client.
type QuoteFetcher interface {
	GetQuote(ctx context.Context, symbol string) (api.Quote, error)
}

// QuoteState is what the trade screen renders. Quote keeps the last good value
// across failed polls.
type QuoteState struct {
	Quote     *api.Quote
	Loading   bool
	Err       error
	UpdatedAt time.Time
}

// QuotePoller polls one symbol's quote on a fixed interval.
type QuotePoller struct {
	fetcher QuoteFetcher
	logger  zerolog.Logger
	task    *Task[api.Quote]

	symbol string
	state  QuoteState
}

func NewQuotePoller(fetcher QuoteFetcher, logger zerolog.Logger, schedule Scheduler) *QuotePoller {
	return &QuotePoller{
		fetcher: fetcher,
		logger:  logger.With().Str("component", "quote_poller").Logger(),
		task:    NewTask[api.Quote](schedule),
	}
}

// Start begins polling symbol. A blank symbol stops polling and starts nothing.
// Switching to another symbol drops the previous symbol's quote.
func (p *QuotePoller) Start(symbol string, interval time.Duration) tea.Cmd {
	p.Stop()

	symbol = strings.TrimSpace(symbol)
	if symbol == "" {
		return nil
	}
	if interval <= 0 {
		interval = DefaultQuoteInterval
	}

	if symbol != p.symbol {
		p.state = QuoteState{}
	}
	p.symbol = symbol
	p.state.Loading = true
	p.state.Err = nil

	p.logger.Debug().Str("symbol", symbol).Dur("interval", interval).Msg("quote polling started")

	fetcher := p.fetcher
	return p.task.Start(func(ctx context.Context) (api.Quote, error) {
		return fetcher.GetQuote(ctx, symbol)
	}, interval)
}

// Stop tears the session down. It is idempotent.
func (p *QuotePoller) Stop() {
	if p.task.Running() {
		p.logger.Debug().Str("symbol", p.symbol).Msg("quote polling stopped")
	}
	p.task.Stop()
}

func (p *QuotePoller) Update(msg tea.Msg) tea.Cmd {
	res, ok, cmd := p.task.Update(msg)
	if !ok {
		return cmd
	}

	p.state.Loading = false

	err := res.Err
	if err == nil && res.Value.Price <= 0 {
		err = fmt.Errorf("%w for %s", api.ErrInvalidPrice, p.symbol)
	}
	if err != nil {
		p.state.Err = err
		p.logger.Warn().Err(err).Str("symbol", p.symbol).Msg("quote fetch failed")
		return cmd
	}

	q := res.Value
	p.state.Quote = &q
	p.state.Err = nil
	p.state.UpdatedAt = res.At
	return cmd
}

func (p *QuotePoller) State() QuoteState {
	return p.state
}

func (p *QuotePoller) Symbol() string {
	return p.symbol
}

func (p *QuotePoller) Running() bool {
	return p.task.Running()
}

// LastPrice is the last good price, 0 before the first successful poll.
func (p *QuotePoller) LastPrice() float64 {
	if p.state.Quote == nil {
		return 0
	}
	return p.state.Quote.Price
}
