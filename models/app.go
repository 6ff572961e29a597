package models

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	"tradepilot/api"
	"tradepilot/auth"
	"tradepilot/config"
	"tradepilot/market"
	"tradepilot/trade"
)

// Backend is the slice of *api.Client the screens use.
type Backend interface {
	market.QuoteFetcher
	market.StatusFetcher
	trade.Commander
	trade.Submitter
	GetChart(ctx context.Context, symbol string) ([]api.Candle, error)
	SearchStocks(ctx context.Context, query string) ([]api.StockMatch, error)
	GetPortfolio(ctx context.Context) (api.Portfolio, error)
	GetPositions(ctx context.Context) ([]api.Position, error)
	SetToken(token string)
}

// TokenStore is implemented by *auth.Store.
type TokenStore interface {
	Save(token string, now time.Time) (*auth.TokenData, error)
	Clear() error
}

type Options struct {
	Backend Backend
	Tokens  TokenStore
	Config  *config.Config
	Logger  zerolog.Logger
	// Token restored at startup, nil when logged out.
	Token *auth.TokenData

	// Overridable for tests.
	Schedule  market.Scheduler
	Clipboard func() (string, error)
	Now       func() time.Time
}

// App states
const (
	StateMenu = iota
	StateLogin
	StatePortfolio
	StateSearch
	StateTrade
	StateHelp
)

// Menu entries, in Choices order.
const (
	choicePortfolio = iota
	choiceSearch
	choiceTrade
	choiceLogin
	choiceHelp
	choiceLogout
	choiceExit
)

type LoginForm struct {
	Token string
	Show  bool
}

type AppModel struct {
	State         int
	Choices       []string
	Cursor        int
	Width         int
	Height        int
	Authenticated bool
	Username      string
	Error         string
	Notice        string
	Verifying     bool

	LoginForm LoginForm

	backend   Backend
	tokens    TokenStore
	cfg       *config.Config
	logger    zerolog.Logger
	clipboard func() (string, error)
	now       func() time.Time

	portfolio *PortfolioScreen
	search    *SearchScreen
	trade     *TradeScreen
}

func NewAppModel(opts Options) *AppModel {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	if opts.Clipboard == nil {
		opts.Clipboard = clipboard.ReadAll
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	logger := opts.Logger.With().Str("component", "ui").Logger()

	limits := trade.Limits{
		MinAmount:     cfg.AutoTrade.MinAmount,
		ConfirmAbove:  cfg.AutoTrade.ConfirmAbove,
		DefaultAmount: cfg.AutoTrade.DefaultAmount,
	}

	m := &AppModel{
		State: StateMenu,
		Choices: []string{
			"💼 Portfolio",
			"🔍 Search Stocks",
			"💹 Trade",
			"🔐 Setup Token",
			"❓ Help",
			"🔓 Logout",
			"🚪 Exit",
		},
		backend:   opts.Backend,
		tokens:    opts.Tokens,
		cfg:       cfg,
		logger:    logger,
		clipboard: opts.Clipboard,
		now:       opts.Now,
		portfolio: NewPortfolioScreen(opts.Backend, cfg.Poll.PortfolioInterval, logger, opts.Schedule),
		search:    NewSearchScreen(opts.Backend),
		trade:     NewTradeScreen(opts.Backend, cfg, limits, logger, opts.Schedule),
	}

	if opts.Token != nil && opts.Token.Valid(m.now()) {
		m.Authenticated = true
		m.Username = opts.Token.Subject
		opts.Backend.SetToken(opts.Token.Token)
	}
	return m
}

func (m *AppModel) Init() tea.Cmd {
	return nil
}

// Trade exposes the trade screen for inspection.
func (m *AppModel) Trade() *TradeScreen {
	return m.trade
}

func (m *AppModel) Portfolio() *PortfolioScreen {
	return m.portfolio
}

func (m *AppModel) Search() *SearchScreen {
	return m.search
}

// setState tears down the polling sessions of the screen being left before the
// next screen starts its own.
func (m *AppModel) setState(next int) tea.Cmd {
	if m.State == next {
		return nil
	}
	switch m.State {
	case StatePortfolio:
		m.portfolio.Stop()
	case StateTrade:
		m.trade.Leave()
	case StateSearch:
		m.search.Blur()
	}

	m.State = next
	m.Error = ""

	switch next {
	case StatePortfolio:
		return m.portfolio.Start()
	case StateSearch:
		m.search.Focus()
	}
	return nil
}

// openTrade enters the trade screen for symbol, restarting its pollers when
// the symbol differs from the current one.
func (m *AppModel) openTrade(symbol, name string) tea.Cmd {
	leave := m.setState(StateTrade)
	return tea.Batch(leave, m.trade.Enter(symbol, name))
}

type tokenVerifiedMsg struct {
	data *auth.TokenData
	err  error
}

func (m *AppModel) submitToken() tea.Cmd {
	data, err := m.tokens.Save(m.LoginForm.Token, m.now())
	if err != nil {
		m.Error = err.Error()
		return nil
	}

	m.Verifying = true
	m.Error = ""
	m.backend.SetToken(data.Token)
	backend := m.backend
	return func() tea.Msg {
		_, err := backend.GetPortfolio(context.Background())
		return tokenVerifiedMsg{data: data, err: err}
	}
}

func (m *AppModel) handleTokenVerified(msg tokenVerifiedMsg) tea.Cmd {
	m.Verifying = false

	var statusErr *api.StatusError
	if errors.As(msg.err, &statusErr) && (statusErr.Code == http.StatusUnauthorized || statusErr.Code == http.StatusForbidden) {
		m.backend.SetToken("")
		if err := m.tokens.Clear(); err != nil {
			m.logger.Error().Err(err).Msg("failed to clear rejected token")
		}
		m.Error = "Token rejected by server"
		return nil
	}

	m.Authenticated = true
	m.Username = msg.data.Subject
	m.LoginForm = LoginForm{}
	if msg.err != nil {
		m.logger.Warn().Err(msg.err).Msg("token saved but verification request failed")
		m.Notice = "Token saved (server unreachable, not verified)"
	} else {
		m.Notice = "Token saved"
	}
	m.logger.Info().Str("subject", msg.data.Subject).Time("expires_at", msg.data.Expiry()).Msg("token stored")
	return m.setState(StateMenu)
}

func (m *AppModel) logout() {
	m.portfolio.Stop()
	m.trade.Leave()
	m.backend.SetToken("")
	if err := m.tokens.Clear(); err != nil {
		m.logger.Error().Err(err).Msg("failed to clear token")
	}
	m.Authenticated = false
	m.Username = ""
	m.Notice = "Logged out"
	m.logger.Info().Msg("logged out")
}

func (m *AppModel) pasteToken() {
	text, err := m.clipboard()
	if err != nil || text == "" {
		return
	}
	text = strings.ReplaceAll(text, "\n", "")
	text = strings.ReplaceAll(text, "\r", "")
	m.LoginForm.Token = strings.TrimSpace(text)
}

func (m *AppModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		return m, nil

	case tea.KeyMsg:
		return m.handleKeyPress(msg)

	case tokenVerifiedMsg:
		return m, m.handleTokenVerified(msg)

	case searchResultMsg:
		m.search.Update(msg)
		return m, nil
	}

	// Each screen ignores messages that belong to another screen or to a
	// session that has already ended.
	return m, tea.Batch(
		m.portfolio.Update(msg),
		m.trade.Update(msg),
	)
}

func (m *AppModel) View() string {
	switch m.State {
	case StateLogin:
		return m.loginView()
	case StatePortfolio:
		return m.portfolioView()
	case StateSearch:
		return m.searchView()
	case StateTrade:
		return m.tradeView()
	case StateHelp:
		return m.helpView()
	default:
		return m.menuView()
	}
}
