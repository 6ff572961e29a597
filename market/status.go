package market

import (
	"context"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	"tradepilot/api"
)

const DefaultStatusInterval = 3 * time.Second

// StatusFetcher is implemented by *api.Client.
type StatusFetcher interface {
	GetAutoTradeStatus(ctx context.Context) (api.AutoTradeStatus, error)
}

// ActiveChangedMsg is published whenever the bound symbol's auto-trade flag flips.
type ActiveChangedMsg struct {
	Symbol      string
	Active      bool
	Provisional bool
}

// StatusPoller polls the auto-trade engine and projects it onto one symbol.
// Failed polls are best-effort: logged, never surfaced, flag left unchanged.
type StatusPoller struct {
	fetcher StatusFetcher
	logger  zerolog.Logger
	task    *Task[api.AutoTradeStatus]

	symbol    string
	flag      Flag
	status    api.AutoTradeStatus
	hasStatus bool
	lastErr   error
	changes   int
}

func NewStatusPoller(fetcher StatusFetcher, logger zerolog.Logger, schedule Scheduler) *StatusPoller {
	return &StatusPoller{
		fetcher: fetcher,
		logger:  logger.With().Str("component", "autotrade_status").Logger(),
		task:    NewTask[api.AutoTradeStatus](schedule),
	}
}

// Start binds the poller to symbol and issues the first status fetch.
func (p *StatusPoller) Start(symbol string, interval time.Duration) tea.Cmd {
	p.Stop()

	symbol = strings.TrimSpace(symbol)
	if symbol == "" {
		return nil
	}
	if interval <= 0 {
		interval = DefaultStatusInterval
	}

	if symbol != p.symbol {
		p.flag = Flag{}
		p.status = api.AutoTradeStatus{}
		p.hasStatus = false
	}
	p.symbol = symbol
	p.lastErr = nil

	fetcher := p.fetcher
	return p.task.Start(func(ctx context.Context) (api.AutoTradeStatus, error) {
		return fetcher.GetAutoTradeStatus(ctx)
	}, interval)
}

func (p *StatusPoller) Stop() {
	p.task.Stop()
}

func (p *StatusPoller) Update(msg tea.Msg) tea.Cmd {
	res, ok, cmd := p.task.Update(msg)
	if !ok {
		return cmd
	}

	if res.Err != nil {
		p.lastErr = res.Err
		p.logger.Warn().Err(res.Err).Str("symbol", p.symbol).Msg("auto-trade status fetch failed")
		return cmd
	}

	p.lastErr = nil
	p.status = res.Value
	p.hasStatus = true

	prev := p.flag.Value()
	next := res.Value.Active(p.symbol)
	p.flag.SetAuthoritative(next)

	if next == prev {
		return cmd
	}
	return tea.Batch(cmd, p.publish(false))
}

// SetProvisional records the outcome of a successful start/stop command until the
// next poll confirms or overrides it.
func (p *StatusPoller) SetProvisional(active bool) tea.Cmd {
	prev := p.flag.Value()
	p.flag.SetProvisional(active)
	if prev == active {
		return nil
	}
	return p.publish(true)
}

func (p *StatusPoller) publish(provisional bool) tea.Cmd {
	active := p.flag.Value()
	p.changes++
	p.logger.Info().
		Str("symbol", p.symbol).
		Bool("active", active).
		Bool("provisional", provisional).
		Msg("auto-trade status changed")

	msg := ActiveChangedMsg{Symbol: p.symbol, Active: active, Provisional: provisional}
	return func() tea.Msg { return msg }
}

// Active is the reconciled flag for the bound symbol.
func (p *StatusPoller) Active() bool {
	return p.flag.Value()
}

// Confirmed reports whether Active is backed by a server read rather than a local command.
func (p *StatusPoller) Confirmed() bool {
	return p.flag.Known() && !p.flag.Provisional()
}

// Status is the last successfully fetched engine status.
func (p *StatusPoller) Status() (api.AutoTradeStatus, bool) {
	return p.status, p.hasStatus
}

func (p *StatusPoller) LastError() error {
	return p.lastErr
}

// Changes counts published flips.
func (p *StatusPoller) Changes() int {
	return p.changes
}

func (p *StatusPoller) Symbol() string {
	return p.symbol
}

func (p *StatusPoller) Running() bool {
	return p.task.Running()
}
