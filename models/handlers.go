package models

import (
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
)

func (m *AppModel) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type == tea.KeyCtrlC {
		m.shutdown()
		return m, tea.Quit
	}

	// Screens with text entry get the key before the global bindings so that
	// typing "q" into a field does not leave the screen.
	switch m.State {
	case StateLogin:
		return m, m.handleLoginKeys(msg)
	case StateSearch:
		return m, m.handleSearchKeys(msg)
	case StateTrade:
		if cmd, handled := m.trade.HandleKey(msg); handled {
			return m, cmd
		}
	}

	switch {
	case key.Matches(msg, keys.Quit):
		if m.State == StateMenu {
			m.shutdown()
			return m, tea.Quit
		}
		return m, m.setState(StateMenu)

	case key.Matches(msg, keys.Back):
		return m, m.setState(StateMenu)
	}

	switch m.State {
	case StateMenu:
		return m, m.handleMenuKeys(msg)
	case StatePortfolio:
		if key.Matches(msg, keys.Refresh) {
			return m, m.portfolio.Refresh()
		}
	}
	return m, nil
}

func (m *AppModel) shutdown() {
	m.portfolio.Stop()
	m.trade.Leave()
	m.logger.Info().Msg("shutting down")
}

func (m *AppModel) handleMenuKeys(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, keys.Up):
		if m.Cursor > 0 {
			m.Cursor--
		}
	case key.Matches(msg, keys.Down):
		if m.Cursor < len(m.Choices)-1 {
			m.Cursor++
		}
	case key.Matches(msg, keys.Select):
		return m.handleMenuSelection()
	}
	return nil
}

func (m *AppModel) requiresAuth(choice int) bool {
	switch choice {
	case choicePortfolio, choiceSearch, choiceTrade, choiceLogout:
		return true
	}
	return false
}

func (m *AppModel) handleMenuSelection() tea.Cmd {
	m.Notice = ""
	if m.requiresAuth(m.Cursor) && !m.Authenticated {
		m.Error = "Please set up your API token first"
		return nil
	}
	m.Error = ""

	switch m.Cursor {
	case choicePortfolio:
		return m.setState(StatePortfolio)
	case choiceSearch:
		return m.setState(StateSearch)
	case choiceTrade:
		if m.trade.Symbol == "" {
			m.Notice = "Search for a stock to trade first"
			return m.setState(StateSearch)
		}
		return m.openTrade(m.trade.Symbol, m.trade.Name)
	case choiceLogin:
		m.LoginForm = LoginForm{}
		return m.setState(StateLogin)
	case choiceHelp:
		return m.setState(StateHelp)
	case choiceLogout:
		m.logout()
	case choiceExit:
		m.shutdown()
		return tea.Quit
	}
	return nil
}

func (m *AppModel) handleLoginKeys(msg tea.KeyMsg) tea.Cmd {
	if m.Verifying {
		return nil
	}

	switch {
	case key.Matches(msg, keys.Back):
		m.LoginForm = LoginForm{}
		return m.setState(StateMenu)

	case key.Matches(msg, keys.Select):
		if m.LoginForm.Token == "" {
			m.Error = "Token cannot be empty"
			return nil
		}
		return m.submitToken()

	case key.Matches(msg, keys.Paste):
		m.pasteToken()

	case key.Matches(msg, keys.ClearInput):
		m.LoginForm.Token = ""

	case key.Matches(msg, keys.ToggleMask):
		m.LoginForm.Show = !m.LoginForm.Show

	case msg.Type == tea.KeyBackspace:
		if r := []rune(m.LoginForm.Token); len(r) > 0 {
			m.LoginForm.Token = string(r[:len(r)-1])
		}

	case msg.Type == tea.KeyRunes:
		m.LoginForm.Token += string(msg.Runes)
	}
	m.Error = ""
	return nil
}

func (m *AppModel) handleSearchKeys(msg tea.KeyMsg) tea.Cmd {
	s := m.search
	switch {
	case key.Matches(msg, keys.Back):
		return m.setState(StateMenu)

	case msg.Type == tea.KeyUp:
		s.Move(-1)
		return nil

	case msg.Type == tea.KeyDown:
		s.Move(1)
		return nil

	case key.Matches(msg, keys.Select):
		if s.Loading {
			return nil
		}
		if match, ok := s.Selected(); ok {
			return m.openTrade(match.Symbol, match.Name)
		}
		return s.Submit()
	}
	return s.UpdateInput(msg)
}
