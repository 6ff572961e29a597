package ui

import (
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"tradepilot/api"
)

var (
	upCandle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5F5F"))
	downCandle = lipgloss.NewStyle().Foreground(lipgloss.Color("#5F87FF"))
	axisStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#666666"))
)

type ChartStats struct {
	High      float64
	Low       float64
	First     float64
	Last      float64
	ChangePct float64
}

// Stats summarizes candles. ok is false for an empty series.
func Stats(candles []api.Candle) (ChartStats, bool) {
	if len(candles) == 0 {
		return ChartStats{}, false
	}
	s := ChartStats{
		High:  candles[0].High,
		Low:   candles[0].Low,
		First: candles[0].Open,
		Last:  candles[len(candles)-1].Close,
	}
	for _, c := range candles[1:] {
		s.High = math.Max(s.High, c.High)
		s.Low = math.Min(s.Low, c.Low)
	}
	s.ChangePct = api.ChangePct(s.Last, s.First)
	return s, true
}

// Cell runes of the candle grid.
const (
	cellEmpty = ' '
	cellWick  = '│'
	cellBody  = '┃'
)

// Grid lays the newest width candles out on height rows, top row first. Each
// column is one candle.
func Grid(candles []api.Candle, width, height int) [][]rune {
	if width <= 0 || height <= 0 {
		return nil
	}
	if len(candles) > width {
		candles = candles[len(candles)-width:]
	}

	stats, ok := Stats(candles)
	grid := make([][]rune, height)
	for r := range grid {
		grid[r] = []rune(strings.Repeat(string(cellEmpty), len(candles)))
	}
	if !ok {
		return grid
	}

	row := func(v float64) int {
		if stats.High == stats.Low {
			return height / 2
		}
		frac := (v - stats.Low) / (stats.High - stats.Low)
		// row 0 is the top
		return height - 1 - int(math.Round(frac*float64(height-1)))
	}

	for col, c := range candles {
		top, bottom := row(c.High), row(c.Low)
		bodyTop := row(math.Max(c.Open, c.Close))
		bodyBottom := row(math.Min(c.Open, c.Close))
		for r := top; r <= bottom; r++ {
			if r >= bodyTop && r <= bodyBottom {
				grid[r][col] = cellBody
			} else {
				grid[r][col] = cellWick
			}
		}
	}
	return grid
}

// RenderChart draws a compact candle chart with a high/low axis and a stats line.
func RenderChart(candles []api.Candle, width, height int) string {
	stats, ok := Stats(candles)
	if !ok {
		return DisabledStyle.Render("No chart data")
	}

	labelHigh, labelLow := Won(stats.High), Won(stats.Low)
	labelWidth := max(lipgloss.Width(labelHigh), lipgloss.Width(labelLow))
	width = max(width-labelWidth-2, 1)

	grid := Grid(candles, width, height)
	if len(candles) > width {
		candles = candles[len(candles)-width:]
	}

	var b strings.Builder
	for r, cells := range grid {
		label := ""
		switch r {
		case 0:
			label = labelHigh
		case len(grid) - 1:
			label = labelLow
		}
		b.WriteString(axisStyle.Render(padLeft(label, labelWidth) + " ┤"))
		for col, cell := range cells {
			if cell == cellEmpty {
				b.WriteRune(cell)
				continue
			}
			style := upCandle
			if candles[col].Close < candles[col].Open {
				style = downCandle
			}
			b.WriteString(style.Render(string(cell)))
		}
		b.WriteByte('\n')
	}

	b.WriteString("H " + Won(stats.High) + "  L " + Won(stats.Low) + "  Last " + Won(stats.Last) + "  ")
	b.WriteString(FormatPercentage(stats.ChangePct))
	return b.String()
}

func padLeft(s string, width int) string {
	if w := lipgloss.Width(s); w < width {
		return strings.Repeat(" ", width-w) + s
	}
	return s
}
