package market

import (
	"context"
	"errors"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	"tradepilot/api"
)

type fakeQuotes struct {
	calls  []string
	quotes map[string]api.Quote
	err    error
}

func (f *fakeQuotes) GetQuote(ctx context.Context, symbol string) (api.Quote, error) {
	f.calls = append(f.calls, symbol)
	if f.err != nil {
		return api.Quote{}, f.err
	}
	return f.quotes[symbol], nil
}

type fakeStatus struct {
	status api.AutoTradeStatus
	err    error
	calls  int
}

func (f *fakeStatus) GetAutoTradeStatus(ctx context.Context) (api.AutoTradeStatus, error) {
	f.calls++
	if f.err != nil {
		return api.AutoTradeStatus{}, f.err
	}
	return f.status, nil
}

func TestQuotePollerLifecycle(t *testing.T) {
	rec := &recordingScheduler{}
	fetcher := &fakeQuotes{quotes: map[string]api.Quote{
		"005930": {Symbol: "005930", Name: "삼성전자", Price: 79200, ChangePct: 0.0142},
	}}
	p := NewQuotePoller(fetcher, zerolog.Nop(), rec.schedule)

	cmd := p.Start("005930", 0)
	if !p.State().Loading {
		t.Fatalf("expected loading state before the first response")
	}

	next := p.Update(run(t, cmd))
	st := p.State()
	if st.Loading || st.Err != nil || st.Quote == nil || st.Quote.Price != 79200 {
		t.Fatalf("unexpected state after first poll: %+v", st)
	}
	if rec.last() != DefaultQuoteInterval {
		t.Fatalf("expected default interval %v, got %v", DefaultQuoteInterval, rec.last())
	}

	// tick then fetch
	fetch := p.Update(run(t, next))
	p.Update(run(t, fetch))
	if len(fetcher.calls) != 2 {
		t.Fatalf("expected 2 fetches, got %v", fetcher.calls)
	}
}

func TestQuotePollerKeepsLastQuoteOnFailure(t *testing.T) {
	rec := &recordingScheduler{}
	fetcher := &fakeQuotes{quotes: map[string]api.Quote{
		"000660": {Symbol: "000660", Price: 201000},
	}}
	p := NewQuotePoller(fetcher, zerolog.Nop(), rec.schedule)

	next := p.Update(run(t, p.Start("000660", 2000*time.Millisecond)))

	fetcher.err = errors.New("connection refused")
	fetch := p.Update(run(t, next))
	next = p.Update(run(t, fetch))

	st := p.State()
	if st.Err == nil {
		t.Fatalf("expected error to be recorded")
	}
	if st.Quote == nil || st.Quote.Price != 201000 {
		t.Fatalf("last good quote must survive a failed poll, got %+v", st.Quote)
	}
	if next == nil || rec.last() != 2000*time.Millisecond {
		t.Fatalf("failed poll must reschedule after 2000ms, got %v", rec.delays)
	}

	fetcher.err = nil
	fetch = p.Update(run(t, next))
	p.Update(run(t, fetch))
	if p.State().Err != nil {
		t.Fatalf("error must clear after a successful poll")
	}
}

func TestQuotePollerRejectsNonPositivePrice(t *testing.T) {
	fetcher := &fakeQuotes{quotes: map[string]api.Quote{"035720": {Symbol: "035720", Price: 0}}}
	p := NewQuotePoller(fetcher, zerolog.Nop(), (&recordingScheduler{}).schedule)

	p.Update(run(t, p.Start("035720", time.Second)))

	st := p.State()
	if !errors.Is(st.Err, api.ErrInvalidPrice) {
		t.Fatalf("expected ErrInvalidPrice, got %v", st.Err)
	}
	if st.Quote != nil || p.LastPrice() != 0 {
		t.Fatalf("invalid price must not be displayed")
	}
}

func TestQuotePollerBlankSymbolStartsNothing(t *testing.T) {
	fetcher := &fakeQuotes{}
	p := NewQuotePoller(fetcher, zerolog.Nop(), nil)

	if cmd := p.Start("   ", time.Second); cmd != nil {
		t.Fatalf("blank symbol must not start polling")
	}
	if p.Running() || len(fetcher.calls) != 0 {
		t.Fatalf("blank symbol started a session")
	}
}

func TestQuotePollerSymbolSwitchDropsOldResults(t *testing.T) {
	rec := &recordingScheduler{}
	fetcher := &fakeQuotes{quotes: map[string]api.Quote{
		"005930": {Symbol: "005930", Price: 79200},
		"000660": {Symbol: "000660", Price: 201000},
	}}
	p := NewQuotePoller(fetcher, zerolog.Nop(), rec.schedule)

	first := p.Update(run(t, p.Start("005930", time.Second)))
	if p.LastPrice() != 79200 {
		t.Fatalf("expected first symbol price")
	}

	stale := run(t, first)
	cmd := p.Start("000660", time.Second)
	if p.State().Quote != nil {
		t.Fatalf("switching symbols must drop the previous quote")
	}

	if next := p.Update(stale); next != nil {
		t.Fatalf("stale tick from the previous symbol issued a fetch")
	}
	p.Update(run(t, cmd))
	if p.LastPrice() != 201000 || p.Symbol() != "000660" {
		t.Fatalf("expected new symbol's quote, got %v for %s", p.LastPrice(), p.Symbol())
	}
	for _, s := range fetcher.calls[1:] {
		if s != "000660" {
			t.Fatalf("fetch for old symbol after switch: %v", fetcher.calls)
		}
	}
}

func TestQuotePollerStopDiscardsInFlight(t *testing.T) {
	fetcher := &fakeQuotes{quotes: map[string]api.Quote{"005930": {Symbol: "005930", Price: 79200}}}
	p := NewQuotePoller(fetcher, zerolog.Nop(), nil)

	msg := run(t, p.Start("005930", time.Second))
	p.Stop()
	if cmd := p.Update(msg); cmd != nil {
		t.Fatalf("stopped poller rescheduled")
	}
	if p.State().Quote != nil {
		t.Fatalf("stopped poller applied a late result")
	}
}

func TestStatusPollerPublishesOnlyOnChange(t *testing.T) {
	rec := &recordingScheduler{}
	fetcher := &fakeStatus{status: api.AutoTradeStatus{Running: false}}
	p := NewStatusPoller(fetcher, zerolog.Nop(), rec.schedule)

	next := p.Update(run(t, p.Start("005930", 0)))
	if p.Changes() != 0 || p.Active() {
		t.Fatalf("inactive -> inactive must not publish")
	}
	if rec.last() != DefaultStatusInterval {
		t.Fatalf("expected status interval %v, got %v", DefaultStatusInterval, rec.last())
	}

	fetcher.status = api.AutoTradeStatus{Running: true, Stocks: []string{"005930"}, Count: 1}
	fetch := p.Update(run(t, next))
	next = p.Update(run(t, fetch))

	var changed []ActiveChangedMsg
	for _, msg := range drain(next) {
		if m, ok := msg.(ActiveChangedMsg); ok {
			changed = append(changed, m)
		}
	}
	if len(changed) != 1 || !changed[0].Active || changed[0].Symbol != "005930" || changed[0].Provisional {
		t.Fatalf("expected one authoritative change to active, got %+v", changed)
	}

	// unchanged poll publishes nothing
	tick := tickMsg[api.AutoTradeStatus]{task: p.task, gen: p.task.session.Generation()}
	p.Update(run(t, p.Update(tick)))
	if p.Changes() != 1 {
		t.Fatalf("expected exactly one published change, got %d", p.Changes())
	}
}

func TestStatusPollerActiveRequiresRunningEngine(t *testing.T) {
	fetcher := &fakeStatus{status: api.AutoTradeStatus{Running: false, Stocks: []string{"005930"}}}
	p := NewStatusPoller(fetcher, zerolog.Nop(), (&recordingScheduler{}).schedule)

	p.Update(run(t, p.Start("005930", time.Second)))
	if p.Active() {
		t.Fatalf("symbol listed on a stopped engine must not be active")
	}
}

func TestStatusPollerFailureLeavesFlagUnchanged(t *testing.T) {
	rec := &recordingScheduler{}
	fetcher := &fakeStatus{status: api.AutoTradeStatus{Running: true, Stocks: []string{"005930"}}}
	p := NewStatusPoller(fetcher, zerolog.Nop(), rec.schedule)

	var tick tea.Msg
	for _, msg := range drain(p.Update(run(t, p.Start("005930", time.Second)))) {
		if m, ok := msg.(tickMsg[api.AutoTradeStatus]); ok {
			tick = m
		}
	}
	if !p.Active() {
		t.Fatalf("expected active after first poll")
	}
	if tick == nil {
		t.Fatalf("expected the next poll to be scheduled")
	}

	fetcher.err = errors.New("timeout")
	fetch := p.Update(tick)
	next := p.Update(run(t, fetch))
	if !p.Active() || p.LastError() == nil {
		t.Fatalf("failed poll must keep the flag and record the error")
	}
	if next == nil {
		t.Fatalf("failed poll must keep polling")
	}
}

func TestStatusPollerProvisionalIsOverriddenByServer(t *testing.T) {
	rec := &recordingScheduler{}
	fetcher := &fakeStatus{status: api.AutoTradeStatus{Running: false}}
	p := NewStatusPoller(fetcher, zerolog.Nop(), rec.schedule)

	next := p.Update(run(t, p.Start("005930", time.Second)))

	msgs := drain(p.SetProvisional(true))
	if len(msgs) != 1 {
		t.Fatalf("expected one change message, got %v", msgs)
	}
	if m := msgs[0].(ActiveChangedMsg); !m.Active || !m.Provisional {
		t.Fatalf("unexpected provisional message %+v", m)
	}
	if !p.Active() || p.Confirmed() {
		t.Fatalf("expected provisional active")
	}
	if cmd := p.SetProvisional(true); cmd != nil {
		t.Fatalf("repeating the same provisional value must not publish")
	}

	// server still reports stopped: authoritative read wins
	fetch := p.Update(run(t, next))
	next = p.Update(run(t, fetch))
	if p.Active() || !p.Confirmed() {
		t.Fatalf("authoritative read must override the provisional value")
	}

	var flipped bool
	for _, msg := range drain(next) {
		if m, ok := msg.(ActiveChangedMsg); ok && !m.Active && !m.Provisional {
			flipped = true
		}
	}
	if !flipped {
		t.Fatalf("override must be published")
	}
}

func TestFlag(t *testing.T) {
	var f Flag
	if f.Value() || f.Known() || f.Provisional() {
		t.Fatalf("zero flag must be false and unknown")
	}
	f.SetProvisional(true)
	if !f.Value() || !f.Provisional() {
		t.Fatalf("provisional value not visible")
	}
	f.SetAuthoritative(false)
	if f.Value() || f.Provisional() || !f.Known() {
		t.Fatalf("authoritative value must replace provisional")
	}
}
