package models

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Up     key.Binding
	Down   key.Binding
	Select key.Binding
	Back   key.Binding
	Quit   key.Binding

	Refresh    key.Binding
	Paste      key.Binding
	ClearInput key.Binding
	ToggleMask key.Binding

	AutoTrade  key.Binding
	Order      key.Binding
	NextField  key.Binding
	ToggleSide key.Binding
	ToggleType key.Binding
	PriceUp    key.Binding
	PriceDown  key.Binding
	Yes        key.Binding
	No         key.Binding
}

var keys = keyMap{
	Up:     key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
	Down:   key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
	Select: key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "select")),
	Back:   key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back")),
	Quit:   key.NewBinding(key.WithKeys("ctrl+c", "q"), key.WithHelp("q", "quit")),

	Refresh:    key.NewBinding(key.WithKeys("r", "f5"), key.WithHelp("r", "refresh")),
	Paste:      key.NewBinding(key.WithKeys("ctrl+v"), key.WithHelp("ctrl+v", "paste")),
	ClearInput: key.NewBinding(key.WithKeys("ctrl+a"), key.WithHelp("ctrl+a", "clear")),
	ToggleMask: key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "show/hide")),

	AutoTrade:  key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "auto-trade on/off")),
	Order:      key.NewBinding(key.WithKeys("o"), key.WithHelp("o", "order")),
	NextField:  key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "next field")),
	ToggleSide: key.NewBinding(key.WithKeys("left", "right"), key.WithHelp("←/→", "buy/sell")),
	ToggleType: key.NewBinding(key.WithKeys("t"), key.WithHelp("t", "market/limit")),
	PriceUp:    key.NewBinding(key.WithKeys("+", "="), key.WithHelp("+", "price +100")),
	PriceDown:  key.NewBinding(key.WithKeys("-"), key.WithHelp("-", "price -100")),
	Yes:        key.NewBinding(key.WithKeys("y", "enter"), key.WithHelp("y", "confirm")),
	No:         key.NewBinding(key.WithKeys("n", "esc"), key.WithHelp("n", "cancel")),
}

func helpLine(bindings ...key.Binding) string {
	var out string
	for i, b := range bindings {
		if i > 0 {
			out += " • "
		}
		h := b.Help()
		out += h.Key + " " + h.Desc
	}
	return out
}
