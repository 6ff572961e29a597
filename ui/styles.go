package ui

import (
	"fmt"
	"math"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"
)

var (
	// Main styles
	TitleStyle = lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#7D56F4")).
		Background(lipgloss.Color("#000000")).
		Padding(1, 2).
		Align(lipgloss.Center)

	MenuStyle = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#874BFD")).
		Padding(1, 2).
		MarginTop(1)

	SelectedStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#EE6FF8")).
		Bold(true)

	UnselectedStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#FAFAFA"))

	DisabledStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#666666"))

	HeaderStyle = lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#FAFAFA")).
		Background(lipgloss.Color("#7D56F4")).
		Padding(0, 1)

	InfoStyle = lipgloss.NewStyle().
		BorderStyle(lipgloss.NormalBorder()).
		BorderTop(true).
		BorderForeground(lipgloss.Color("#874BFD"))

	// Data display styles
	ValueStyle = lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#FAFAFA"))

	// Korean market convention: gains red, losses blue.
	PositiveStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#FF5F5F")).
		Bold(true)

	NegativeStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#5F87FF")).
		Bold(true)

	NeutralStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#FAFAFA"))

	TableHeaderStyle = lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#7D56F4"))

	LoadingStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#FFA500")).
		Bold(true)

	ErrorStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#FF5F87"))

	SuccessStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#04B575"))

	InputStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#FAFAFA")).
		Background(lipgloss.Color("#874BFD")).
		Padding(0, 1)

	PriceStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#FFA500")).
		Bold(true)

	MarketValueStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#00CED1")).
		Bold(true)

	// Blocking alert shown until acknowledged
	AlertStyle = lipgloss.NewStyle().
		Border(lipgloss.DoubleBorder()).
		BorderForeground(lipgloss.Color("#FF5F87")).
		Padding(1, 3)

	ConfirmStyle = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#FFA500")).
		Padding(1, 3)

	ActiveBadge = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#000000")).
		Background(lipgloss.Color("#04B575")).
		Bold(true).
		Padding(0, 1)

	InactiveBadge = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#FAFAFA")).
		Background(lipgloss.Color("#444444")).
		Padding(0, 1)
)

// Won formats a KRW amount rounded to the won: "₩79,200".
func Won(value float64) string {
	n := int64(math.Round(value))
	if n < 0 {
		return "-₩" + humanize.Comma(-n)
	}
	return "₩" + humanize.Comma(n)
}

// SignedWon always carries a sign: "+₩1,200", "-₩300".
func SignedWon(value float64) string {
	if math.Round(value) >= 0 {
		return "+" + Won(value)
	}
	return Won(value)
}

// Percent renders a fraction (0.0142) as "+1.42%".
func Percent(fraction float64) string {
	return fmt.Sprintf("%+.2f%%", fraction*100)
}

// Compact uses Korean units: 조, 억, 만.
func Compact(value float64) string {
	abs := math.Abs(value)
	switch {
	case abs >= 1e12:
		return fmt.Sprintf("%.1f조", value/1e12)
	case abs >= 1e8:
		return fmt.Sprintf("%.1f억", value/1e8)
	case abs >= 1e4:
		return fmt.Sprintf("%.1f만", value/1e4)
	}
	return humanize.Comma(int64(math.Round(value)))
}

func Qty(n int64) string {
	return humanize.Comma(n)
}

func DecimalWon(d decimal.Decimal) string {
	return Won(d.Round(0).InexactFloat64())
}

func FormatPrice(value float64) string {
	return PriceStyle.Render(Won(value))
}

func FormatCurrency(value float64) string {
	return signed(value, SignedWon(value))
}

func FormatPercentage(fraction float64) string {
	return signed(fraction, Percent(fraction))
}

func FormatMarketValue(value float64) string {
	return MarketValueStyle.Render(Won(value))
}

func signed(value float64, text string) string {
	switch {
	case value > 0:
		return PositiveStyle.Render(text)
	case value < 0:
		return NegativeStyle.Render(text)
	}
	return NeutralStyle.Render(text)
}
