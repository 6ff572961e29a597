package models

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	"tradepilot/api"
	"tradepilot/market"
)

type PortfolioFetcher interface {
	GetPortfolio(ctx context.Context) (api.Portfolio, error)
	GetPositions(ctx context.Context) ([]api.Position, error)
}

type PortfolioSnapshot struct {
	Portfolio api.Portfolio
	Positions []api.Position
}

// PortfolioScreen refreshes the account summary and positions while visible.
type PortfolioScreen struct {
	fetcher  PortfolioFetcher
	interval time.Duration
	logger   zerolog.Logger
	task     *market.Task[PortfolioSnapshot]

	Data      *PortfolioSnapshot
	Loading   bool
	Err       error
	UpdatedAt time.Time
}

func NewPortfolioScreen(fetcher PortfolioFetcher, interval time.Duration, logger zerolog.Logger, schedule market.Scheduler) *PortfolioScreen {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &PortfolioScreen{
		fetcher:  fetcher,
		interval: interval,
		logger:   logger.With().Str("screen", "portfolio").Logger(),
		task:     market.NewTask[PortfolioSnapshot](schedule),
	}
}

func (p *PortfolioScreen) Start() tea.Cmd {
	p.Loading = true
	p.Err = nil
	fetcher := p.fetcher
	return p.task.Start(func(ctx context.Context) (PortfolioSnapshot, error) {
		summary, err := fetcher.GetPortfolio(ctx)
		if err != nil {
			return PortfolioSnapshot{}, err
		}
		positions, err := fetcher.GetPositions(ctx)
		if err != nil {
			return PortfolioSnapshot{}, err
		}
		return PortfolioSnapshot{Portfolio: summary, Positions: positions}, nil
	}, p.interval)
}

func (p *PortfolioScreen) Stop() {
	p.task.Stop()
	p.Loading = false
}

func (p *PortfolioScreen) Running() bool {
	return p.task.Running()
}

// Refresh restarts the session so the fetch happens now.
func (p *PortfolioScreen) Refresh() tea.Cmd {
	if p.task.InFlight() {
		return nil
	}
	return p.Start()
}

func (p *PortfolioScreen) Update(msg tea.Msg) tea.Cmd {
	res, ok, cmd := p.task.Update(msg)
	if !ok {
		return cmd
	}
	p.Loading = false
	if res.Err != nil {
		p.Err = fmt.Errorf("failed to load portfolio: %w", res.Err)
		p.logger.Warn().Err(res.Err).Msg("portfolio refresh failed")
		return cmd
	}
	snapshot := res.Value
	p.Data = &snapshot
	p.Err = nil
	p.UpdatedAt = res.At
	return cmd
}
