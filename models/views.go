package models

import (
	"fmt"
	"strings"
	"time"

	"tradepilot/api"
	"tradepilot/trade"
	"tradepilot/ui"
)

const (
	chartWidth  = 60
	chartHeight = 10
)

func (m *AppModel) menuView() string {
	title := ui.TitleStyle.Render("📈 TRADEPILOT")

	var content strings.Builder
	if m.Authenticated {
		who := m.Username
		if who == "" {
			who = "token"
		}
		content.WriteString(ui.SuccessStyle.Render("● Logged in as "+who) + "\n\n")
	} else {
		content.WriteString(ui.DisabledStyle.Render("○ Not logged in") + "\n\n")
	}

	for i, choice := range m.Choices {
		cursor := "  "
		style := ui.UnselectedStyle
		if m.Cursor == i {
			cursor = "▶ "
			style = ui.SelectedStyle
		}
		if m.requiresAuth(i) && !m.Authenticated {
			style = ui.DisabledStyle
		}
		content.WriteString(cursor + style.Render(choice) + "\n")
	}

	var status string
	switch {
	case m.Error != "":
		status = ui.ErrorStyle.Render("❌ " + m.Error)
	case m.Notice != "":
		status = ui.SuccessStyle.Render("✓ " + m.Notice)
	}

	footer := helpLine(keys.Up, keys.Down, keys.Select, keys.Quit)
	return fmt.Sprintf("%s\n%s\n%s\n%s", title, ui.MenuStyle.Render(content.String()), status, footer)
}

func (m *AppModel) loginView() string {
	title := ui.HeaderStyle.Render("🔐 API TOKEN SETUP")

	var content strings.Builder
	if m.Error != "" {
		content.WriteString(ui.ErrorStyle.Render("❌ "+m.Error) + "\n\n")
	}

	if m.Verifying {
		content.WriteString(ui.LoadingStyle.Render("🔄 Verifying token...") + "\n")
	} else {
		content.WriteString("Paste the bearer token issued by the trading server:\n\n")

		input := m.LoginForm.Token
		if !m.LoginForm.Show && input != "" {
			input = strings.Repeat("*", min(len([]rune(input)), 48))
		}
		content.WriteString(ui.InputStyle.Render(input+"│") + "\n\n")
		content.WriteString(helpLine(keys.Paste, keys.ToggleMask, keys.ClearInput, keys.Select, keys.Back) + "\n")
	}

	footer := ui.InfoStyle.Render("The token is stored in your config directory with owner-only permissions")
	return fmt.Sprintf("%s\n%s\n%s", title, ui.MenuStyle.Render(content.String()), footer)
}

func (m *AppModel) portfolioView() string {
	p := m.portfolio
	title := ui.HeaderStyle.Render("💼 PORTFOLIO")

	var content strings.Builder
	if p.Err != nil {
		content.WriteString(ui.ErrorStyle.Render("❌ "+p.Err.Error()) + "\n\n")
	}

	switch {
	case p.Data == nil && p.Loading:
		content.WriteString(ui.LoadingStyle.Render("🔄 Loading portfolio...") + "\n")
	case p.Data == nil:
		content.WriteString("No portfolio data yet.\n")
	default:
		s := p.Data.Portfolio
		content.WriteString(fmt.Sprintf("Total Equity:  %s\n", ui.FormatMarketValue(s.TotalEquity)))
		content.WriteString(fmt.Sprintf("Cash:          %s\n", ui.FormatPrice(s.Cash)))
		content.WriteString(fmt.Sprintf("Today:         %s (%s)\n\n", ui.FormatCurrency(s.PnLDay), ui.FormatPercentage(s.PnLDayPct)))

		if len(p.Data.Positions) == 0 {
			content.WriteString("No positions.\n")
		} else {
			content.WriteString(ui.TableHeaderStyle.Render(fmt.Sprintf("%-8s %-12s %8s %12s %12s %14s %9s",
				"Code", "Name", "Qty", "Avg", "Last", "P&L", "P&L %")) + "\n")
			content.WriteString(strings.Repeat("─", 82) + "\n")
			for _, pos := range p.Data.Positions {
				content.WriteString(fmt.Sprintf("%-8s %-12s %8s %12s %12s %s %s\n",
					pos.Symbol,
					truncate(pos.Name, 12),
					ui.Qty(int64(pos.Qty)),
					ui.Won(pos.AvgPrice),
					ui.Won(pos.LastPrice),
					padStyled(ui.FormatCurrency(pos.PnL), ui.SignedWon(pos.PnL), 14),
					padStyled(ui.FormatPercentage(pos.PnLPct), ui.Percent(pos.PnLPct), 9),
				))
			}
		}
	}

	updated := "never"
	if !p.UpdatedAt.IsZero() {
		updated = p.UpdatedAt.Format(time.TimeOnly)
	}
	footer := ui.InfoStyle.Render(fmt.Sprintf("Updated %s • %s", updated, helpLine(keys.Refresh, keys.Back)))
	return fmt.Sprintf("%s\n%s\n%s", title, ui.MenuStyle.Render(content.String()), footer)
}

func (m *AppModel) searchView() string {
	s := m.search
	title := ui.HeaderStyle.Render("🔍 SEARCH STOCKS")

	var content strings.Builder
	if m.Notice != "" {
		content.WriteString(ui.InfoStyle.Render(m.Notice) + "\n\n")
	}
	content.WriteString(s.InputView() + "\n\n")

	switch {
	case s.Loading:
		content.WriteString(ui.LoadingStyle.Render("🔄 Searching...") + "\n")
	case s.Err != nil:
		content.WriteString(ui.ErrorStyle.Render("❌ "+api.ErrorMessage(s.Err, "Search failed")) + "\n")
	case s.searched != "" && len(s.Results) == 0:
		content.WriteString(fmt.Sprintf("No stocks match %q.\n", s.searched))
	default:
		for i, r := range s.Results {
			line := fmt.Sprintf("%-8s %-20s %s", r.Symbol, r.Name, ui.DisabledStyle.Render(r.Market))
			if i == s.Cursor && !s.Stale() {
				content.WriteString("▶ " + ui.SelectedStyle.Render(line) + "\n")
			} else {
				content.WriteString("  " + line + "\n")
			}
		}
	}

	hint := "enter search"
	if _, ok := s.Selected(); ok {
		hint = "enter open"
	}
	footer := ui.InfoStyle.Render(hint + " • " + helpLine(keys.Up, keys.Down, keys.Back))
	return fmt.Sprintf("%s\n%s\n%s", title, ui.MenuStyle.Render(content.String()), footer)
}

func (m *AppModel) tradeView() string {
	t := m.trade
	name := t.Name
	quote := t.Quotes.State()
	if name == "" && quote.Quote != nil {
		name = quote.Quote.Name
	}
	title := ui.HeaderStyle.Render(fmt.Sprintf("💹 %s %s", t.Symbol, name))

	if t.Alert != "" {
		alert := ui.AlertStyle.Render(ui.ErrorStyle.Render("⚠ "+t.Alert) + "\n\n" + "Press enter to continue")
		return fmt.Sprintf("%s\n%s", title, alert)
	}

	var content strings.Builder
	content.WriteString(t.quoteLine() + "   " + t.statusBadge() + "\n\n")

	switch {
	case t.ChartErr != nil:
		content.WriteString(ui.DisabledStyle.Render("chart unavailable") + "\n")
	case t.ChartLoading && len(t.Candles) == 0:
		content.WriteString(ui.LoadingStyle.Render("🔄 Loading chart...") + "\n")
	default:
		content.WriteString(ui.RenderChart(t.Candles, chartWidth, chartHeight) + "\n")
	}
	content.WriteString("\n")

	switch t.mode {
	case modeAmount:
		limits := t.Trader.Limits()
		content.WriteString(fmt.Sprintf("Amount per stock (min %s):\n", ui.Won(float64(limits.MinAmount))))
		content.WriteString(t.amount.View() + "\n")
		content.WriteString(helpLine(keys.Select, keys.Back) + "\n")
	case modeConfirmStart:
		content.WriteString(ui.ConfirmStyle.Render(fmt.Sprintf(
			"Start auto-trade for %s with %s per stock?\nThis is above %s.\n\n%s",
			t.Symbol, ui.Won(float64(t.pendingAmount)), ui.Won(float64(t.Trader.Limits().ConfirmAbove)),
			helpLine(keys.Yes, keys.No))) + "\n")
	case modeConfirmStop:
		content.WriteString(ui.ConfirmStyle.Render(fmt.Sprintf(
			"Stop the auto-trade engine?\n\n%s", helpLine(keys.Yes, keys.No))) + "\n")
	case modeOrder:
		content.WriteString(t.orderView() + "\n")
	}

	if t.Inline != "" {
		content.WriteString(ui.ErrorStyle.Render(t.Inline) + "\n")
	} else if t.Notice != "" {
		content.WriteString(ui.SuccessStyle.Render(t.Notice) + "\n")
	}

	footer := ui.InfoStyle.Render(helpLine(keys.AutoTrade, keys.Order, keys.Refresh, keys.Back))
	return fmt.Sprintf("%s\n%s\n%s", title, ui.MenuStyle.Render(content.String()), footer)
}

func (t *TradeScreen) quoteLine() string {
	state := t.Quotes.State()
	if state.Quote == nil {
		if state.Err != nil {
			return ui.DisabledStyle.Render("fetch failed")
		}
		return ui.LoadingStyle.Render("loading quote...")
	}

	line := ui.FormatPrice(state.Quote.Price) + " " + ui.FormatPercentage(state.Quote.ChangePct)
	if state.Err != nil {
		line += " " + ui.DisabledStyle.Render("(fetch failed)")
	}
	return line
}

func (t *TradeScreen) statusBadge() string {
	switch t.Trader.State() {
	case trade.Starting:
		return ui.LoadingStyle.Render("AUTO starting...")
	case trade.Stopping:
		return ui.LoadingStyle.Render("AUTO stopping...")
	}
	if t.Status.Active() {
		badge := ui.ActiveBadge.Render("AUTO ON")
		if !t.Status.Confirmed() {
			badge += ui.DisabledStyle.Render(" (pending)")
		}
		return badge
	}
	return ui.InactiveBadge.Render("AUTO OFF")
}

func (t *TradeScreen) orderView() string {
	o := t.Ticket
	var b strings.Builder

	side := ui.PositiveStyle.Render("BUY")
	if o.Side == api.Sell {
		side = ui.NegativeStyle.Render("SELL")
	}
	b.WriteString(fmt.Sprintf("Side: %s   Type: %s\n", side, o.Type))

	qty := o.Qty + cursorMark(t.field == fieldQty)
	b.WriteString("Qty:   " + ui.InputStyle.Render(qty) + "\n")
	if o.Type == api.Limit {
		price := o.Price + cursorMark(t.field == fieldPrice)
		b.WriteString("Price: " + ui.InputStyle.Render(price) + "\n")
	}

	if n := o.Notional(t.Quotes.LastPrice()); n.IsPositive() {
		b.WriteString("Est. total: " + ui.DecimalWon(n) + "\n")
	}

	if o.InFlight() {
		b.WriteString(ui.LoadingStyle.Render("🔄 Submitting order...") + "\n")
	}
	b.WriteString(helpLine(keys.ToggleSide, keys.ToggleType, keys.NextField, keys.PriceUp, keys.PriceDown, keys.Select, keys.Back))
	return ui.ConfirmStyle.Render(b.String())
}

func (m *AppModel) helpView() string {
	title := ui.HeaderStyle.Render("❓ HELP")

	var content strings.Builder
	content.WriteString("Screens\n")
	content.WriteString("  Portfolio   account summary and holdings, refreshed while open\n")
	content.WriteString("  Search      find a stock by name or code and open its trade screen\n")
	content.WriteString("  Trade       live quote, chart, auto-trade and manual orders\n\n")
	content.WriteString("Trade screen\n")
	for _, b := range []string{
		helpLine(keys.AutoTrade),
		helpLine(keys.Order),
		helpLine(keys.ToggleSide, keys.ToggleType),
		helpLine(keys.PriceUp, keys.PriceDown),
		helpLine(keys.Refresh),
	} {
		content.WriteString("  " + b + "\n")
	}
	content.WriteString("\nAuto-trade amounts below the minimum are refused; large amounts ask for confirmation.\n")

	footer := ui.InfoStyle.Render(helpLine(keys.Back, keys.Quit))
	return fmt.Sprintf("%s\n%s\n%s", title, ui.MenuStyle.Render(content.String()), footer)
}

func cursorMark(focused bool) string {
	if focused {
		return "│"
	}
	return ""
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

// padStyled right-aligns a rendered string using the width of its plain text.
func padStyled(rendered, plain string, width int) string {
	if pad := width - len([]rune(plain)); pad > 0 {
		return strings.Repeat(" ", pad) + rendered
	}
	return rendered
}
