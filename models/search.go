package models

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/cursor"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"tradepilot/api"
)

type StockSearcher interface {
	SearchStocks(ctx context.Context, query string) ([]api.StockMatch, error)
}

type searchResultMsg struct {
	seq     int
	query   string
	results []api.StockMatch
	err     error
}

// SearchScreen looks stocks up by name or code. Only the answer to the latest
// query is kept.
type SearchScreen struct {
	searcher StockSearcher
	input    textinput.Model

	Results  []api.StockMatch
	Cursor   int
	Loading  bool
	Err      error
	searched string
	seq      int
}

func NewSearchScreen(searcher StockSearcher) *SearchScreen {
	ti := textinput.New()
	ti.Placeholder = "삼성전자 or 005930"
	ti.CharLimit = 40
	ti.Prompt = "🔍 "
	ti.Cursor.SetMode(cursor.CursorStatic)
	return &SearchScreen{searcher: searcher, input: ti}
}

func (s *SearchScreen) Focus() {
	s.input.Focus()
}

func (s *SearchScreen) Blur() {
	s.input.Blur()
}

func (s *SearchScreen) Query() string {
	return strings.TrimSpace(s.input.Value())
}

func (s *SearchScreen) SetQuery(q string) {
	s.input.SetValue(q)
	s.input.CursorEnd()
}

// Stale reports whether the input changed since the results were fetched.
func (s *SearchScreen) Stale() bool {
	return s.Query() != s.searched
}

func (s *SearchScreen) Submit() tea.Cmd {
	query := s.Query()
	if query == "" {
		s.Err = api.ErrEmptyQuery
		return nil
	}

	s.seq++
	s.Loading = true
	s.Err = nil
	seq, searcher := s.seq, s.searcher
	return func() tea.Msg {
		results, err := searcher.SearchStocks(context.Background(), query)
		return searchResultMsg{seq: seq, query: query, results: results, err: err}
	}
}

func (s *SearchScreen) Update(msg searchResultMsg) {
	if msg.seq != s.seq {
		return
	}
	s.Loading = false
	s.searched = msg.query
	s.Cursor = 0
	if msg.err != nil {
		s.Err = msg.err
		s.Results = nil
		return
	}
	s.Results, s.Err = selectable(msg.results)
}

// selectable drops the backend's placeholder rows (market INFO or ERROR). An
// ERROR row with no real match becomes the search error.
func selectable(rows []api.StockMatch) ([]api.StockMatch, error) {
	var (
		out    []api.StockMatch
		errRow *api.StockMatch
	)
	for i, r := range rows {
		switch strings.ToUpper(r.Market) {
		case "INFO":
		case "ERROR":
			if errRow == nil {
				errRow = &rows[i]
			}
		default:
			out = append(out, r)
		}
	}
	if len(out) == 0 && errRow != nil {
		return nil, &api.RejectedError{Message: errRow.Name}
	}
	return out, nil
}

func (s *SearchScreen) Move(delta int) {
	if len(s.Results) == 0 {
		return
	}
	s.Cursor = min(max(s.Cursor+delta, 0), len(s.Results)-1)
}

// Selected is the highlighted result, if the results match the input.
func (s *SearchScreen) Selected() (api.StockMatch, bool) {
	if s.Stale() || len(s.Results) == 0 {
		return api.StockMatch{}, false
	}
	return s.Results[s.Cursor], true
}

func (s *SearchScreen) UpdateInput(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	s.input, cmd = s.input.Update(msg)
	return cmd
}

func (s *SearchScreen) InputView() string {
	return s.input.View()
}
