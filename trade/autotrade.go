package trade

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"

	"tradepilot/api"
)

// Limits bound the amount per stock accepted by Start.
type Limits struct {
	MinAmount     int64
	ConfirmAbove  int64
	DefaultAmount int64
}

func DefaultLimits() Limits {
	return Limits{
		MinAmount:     10_000,
		ConfirmAbove:  100_000_000,
		DefaultAmount: 1_000_000,
	}
}

type State int

const (
	Stopped State = iota
	Starting
	Running
	Stopping
)

func (s State) String() string {
	switch s {
	case Starting:
		return "Starting"
	case Running:
		return "Running"
	case Stopping:
		return "Stopping"
	default:
		return "Stopped"
	}
}

type Command int

const (
	CommandStart Command = iota + 1
	CommandStop
)

func (c Command) String() string {
	if c == CommandStop {
		return "stop"
	}
	return "start"
}

// Step is what the UI must do next with an entered amount.
type Step int

const (
	StepSubmit Step = iota
	StepConfirmLarge
)

// Commander is implemented by *api.Client.
type Commander interface {
	StartAutoTrade(ctx context.Context, stocks []string, amountPerStock int64) (*api.CommandResult, error)
	StopAutoTrade(ctx context.Context) (*api.CommandResult, error)
}

// ActiveFlag is the reconciled auto-trade flag of the bound symbol
// (market.StatusPoller).
type ActiveFlag interface {
	Active() bool
	SetProvisional(active bool) tea.Cmd
}

// CommandResultMsg carries a settled start/stop command back into Update.
type CommandResultMsg struct {
	trader  *AutoTrader
	gen     uint64
	Command Command
	Symbol  string
	Amount  int64
	Result  *api.CommandResult
	Err     error
}

// Outcome is a settled command as the UI should present it.
type Outcome struct {
	Command Command
	Message string
	Err     error
}

// AutoTrader issues auto-trade start/stop commands for one symbol. At most one
// command is in flight; results feed the flag provisionally.
type AutoTrader struct {
	client Commander
	flag   ActiveFlag
	limits Limits
	logger zerolog.Logger

	symbol  string
	gen     uint64
	pending Command
}

func NewAutoTrader(client Commander, flag ActiveFlag, limits Limits, logger zerolog.Logger) *AutoTrader {
	return &AutoTrader{
		client: client,
		flag:   flag,
		limits: limits,
		logger: logger.With().Str("component", "autotrade").Logger(),
	}
}

// Bind points the trader at symbol. Results of commands issued for another
// symbol are ignored. Rebinding the same symbol keeps an outstanding command
// and its in-flight guard.
func (a *AutoTrader) Bind(symbol string) {
	symbol = strings.TrimSpace(symbol)
	if symbol == a.symbol {
		return
	}
	a.symbol = symbol
	a.gen++
	a.pending = 0
}

func (a *AutoTrader) Symbol() string {
	return a.symbol
}

func (a *AutoTrader) Limits() Limits {
	return a.limits
}

func (a *AutoTrader) InFlight() bool {
	return a.pending != 0
}

func (a *AutoTrader) State() State {
	switch a.pending {
	case CommandStart:
		return Starting
	case CommandStop:
		return Stopping
	}
	if a.flag != nil && a.flag.Active() {
		return Running
	}
	return Stopped
}

// SuggestedAmount is the prefilled value of the amount prompt.
func (a *AutoTrader) SuggestedAmount() string {
	return humanize.Comma(a.limits.DefaultAmount)
}

// PrepareStart validates the entered amount without touching the network.
func (a *AutoTrader) PrepareStart(input string) (int64, Step, error) {
	if a.InFlight() {
		return 0, StepSubmit, ErrCommandInFlight
	}
	amount, err := parseWhole(input)
	if err != nil {
		return 0, StepSubmit, err
	}
	if err := a.checkAmount(amount); err != nil {
		return 0, StepSubmit, err
	}
	if amount > a.limits.ConfirmAbove {
		return amount, StepConfirmLarge, nil
	}
	return amount, StepSubmit, nil
}

func (a *AutoTrader) checkAmount(amount int64) error {
	if amount < a.limits.MinAmount {
		return fmt.Errorf("%w: %s < %s", ErrAmountTooSmall, humanize.Comma(amount), humanize.Comma(a.limits.MinAmount))
	}
	return nil
}

// Start issues the start command. confirmed must be true for amounts above
// Limits.ConfirmAbove.
func (a *AutoTrader) Start(amount int64, confirmed bool) (tea.Cmd, error) {
	if a.InFlight() {
		return nil, ErrCommandInFlight
	}
	if a.symbol == "" {
		return nil, api.ErrEmptySymbol
	}
	if err := a.checkAmount(amount); err != nil {
		return nil, err
	}
	if amount > a.limits.ConfirmAbove && !confirmed {
		return nil, ErrConfirmationRequired
	}

	a.pending = CommandStart
	a.logger.Info().Str("symbol", a.symbol).Int64("amount_per_stock", amount).Msg("starting auto-trade")

	client, trader, gen, symbol := a.client, a, a.gen, a.symbol
	return func() tea.Msg {
		res, err := client.StartAutoTrade(context.Background(), []string{symbol}, amount)
		return CommandResultMsg{trader: trader, gen: gen, Command: CommandStart, Symbol: symbol, Amount: amount, Result: res, Err: err}
	}, nil
}

// Stop issues the stop command once the user confirmed it.
func (a *AutoTrader) Stop(confirmed bool) (tea.Cmd, error) {
	if a.InFlight() {
		return nil, ErrCommandInFlight
	}
	if !confirmed {
		return nil, ErrConfirmationRequired
	}

	a.pending = CommandStop
	a.logger.Info().Str("symbol", a.symbol).Msg("stopping auto-trade")

	client, trader, gen, symbol := a.client, a, a.gen, a.symbol
	return func() tea.Msg {
		res, err := client.StopAutoTrade(context.Background())
		return CommandResultMsg{trader: trader, gen: gen, Command: CommandStop, Symbol: symbol, Result: res, Err: err}
	}, nil
}

// Update applies a settled command. ok is false for messages that are not this
// trader's or belong to an earlier binding.
func (a *AutoTrader) Update(msg tea.Msg) (Outcome, bool, tea.Cmd) {
	res, isResult := msg.(CommandResultMsg)
	if !isResult || res.trader != a || res.gen != a.gen {
		return Outcome{}, false, nil
	}
	a.pending = 0

	out := Outcome{Command: res.Command}
	if res.Err != nil {
		out.Err = res.Err
		out.Message = api.ErrorMessage(res.Err, fmt.Sprintf("Failed to %s auto-trade", res.Command))
		a.logger.Warn().Err(res.Err).Str("symbol", res.Symbol).Stringer("command", res.Command).Msg("auto-trade command failed")
		return out, true, nil
	}

	active := res.Command == CommandStart
	if res.Result != nil && res.Result.Message != "" {
		out.Message = res.Result.Message
	} else if active {
		out.Message = fmt.Sprintf("Auto-trade started for %s (%s per stock)", res.Symbol, humanize.Comma(res.Amount))
	} else {
		out.Message = "Auto-trade stopped"
	}

	var cmd tea.Cmd
	if a.flag != nil {
		cmd = a.flag.SetProvisional(active)
	}
	return out, true, cmd
}
