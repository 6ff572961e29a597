package market

import (
	"context"
	"errors"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

type recordingScheduler struct {
	delays []time.Duration
}

func (r *recordingScheduler) schedule(d time.Duration, msg tea.Msg) tea.Cmd {
	r.delays = append(r.delays, d)
	return func() tea.Msg { return msg }
}

func (r *recordingScheduler) last() time.Duration {
	if len(r.delays) == 0 {
		return 0
	}
	return r.delays[len(r.delays)-1]
}

// drain runs cmd and flattens batches into their messages.
func drain(cmd tea.Cmd) []tea.Msg {
	if cmd == nil {
		return nil
	}
	msg := cmd()
	if batch, ok := msg.(tea.BatchMsg); ok {
		var out []tea.Msg
		for _, c := range batch {
			out = append(out, drain(c)...)
		}
		return out
	}
	return []tea.Msg{msg}
}

func run(t *testing.T, cmd tea.Cmd) tea.Msg {
	t.Helper()
	if cmd == nil {
		t.Fatalf("expected a command, got nil")
	}
	return cmd()
}

func TestTaskFetchesImmediatelyAndChainsOnSettle(t *testing.T) {
	rec := &recordingScheduler{}
	task := NewTask[int](rec.schedule)

	n := 0
	cmd := task.Start(func(ctx context.Context) (int, error) {
		n++
		return n, nil
	}, 2*time.Second)

	if !task.InFlight() {
		t.Fatalf("expected a fetch in flight after Start")
	}
	if len(rec.delays) != 0 {
		t.Fatalf("first fetch must not wait for the interval, got delays %v", rec.delays)
	}

	res, ok, next := task.Update(run(t, cmd))
	if !ok || res.Value != 1 || res.Err != nil {
		t.Fatalf("unexpected first result: %+v ok=%v", res, ok)
	}
	if rec.last() != 2*time.Second {
		t.Fatalf("expected continuation after 2s, got %v", rec.last())
	}

	_, ok, fetch := task.Update(run(t, next))
	if ok {
		t.Fatalf("tick must not produce a result")
	}
	res, ok, _ = task.Update(run(t, fetch))
	if !ok || res.Value != 2 {
		t.Fatalf("unexpected second result: %+v ok=%v", res, ok)
	}
	if task.Fetches() != 2 {
		t.Fatalf("expected 2 fetches, got %d", task.Fetches())
	}
}

func TestTaskDropsResultsAfterStop(t *testing.T) {
	rec := &recordingScheduler{}
	task := NewTask[int](rec.schedule)

	cmd := task.Start(func(ctx context.Context) (int, error) { return 7, nil }, time.Second)
	msg := run(t, cmd)
	task.Stop()

	_, ok, next := task.Update(msg)
	if ok || next != nil {
		t.Fatalf("late result of a stopped task must be dropped, ok=%v cmd=%v", ok, next != nil)
	}
	if len(rec.delays) != 0 {
		t.Fatalf("stopped task must not reschedule, got %v", rec.delays)
	}
}

func TestTaskDropsResultsOfPreviousSession(t *testing.T) {
	rec := &recordingScheduler{}
	task := NewTask[string](rec.schedule)

	old := task.Start(func(ctx context.Context) (string, error) { return "old", nil }, time.Second)
	fresh := task.Start(func(ctx context.Context) (string, error) { return "new", nil }, time.Second)

	if _, ok, _ := task.Update(run(t, old)); ok {
		t.Fatalf("result of the previous session must be dropped")
	}
	res, ok, _ := task.Update(run(t, fresh))
	if !ok || res.Value != "new" {
		t.Fatalf("expected the live session's result, got %+v ok=%v", res, ok)
	}
}

func TestTaskNeverOverlapsFetches(t *testing.T) {
	task := NewTask[int](nil)
	task.Start(func(ctx context.Context) (int, error) { return 1, nil }, time.Second)

	stray := tickMsg[int]{task: task, gen: task.session.Generation()}
	_, _, cmd := task.Update(stray)
	if cmd != nil {
		t.Fatalf("tick while a fetch is in flight must not issue another fetch")
	}
	if task.Fetches() != 1 {
		t.Fatalf("expected 1 fetch, got %d", task.Fetches())
	}
}

func TestTaskIgnoresOtherTasksMessages(t *testing.T) {
	a := NewTask[int](nil)
	b := NewTask[int](nil)
	cmdA := a.Start(func(ctx context.Context) (int, error) { return 1, nil }, time.Second)
	b.Start(func(ctx context.Context) (int, error) { return 2, nil }, time.Second)

	if _, ok, _ := b.Update(run(t, cmdA)); ok {
		t.Fatalf("task b consumed a message addressed to task a")
	}
	if !b.InFlight() {
		t.Fatalf("task b state changed by a foreign message")
	}
}

func TestTaskReschedulesAfterFailure(t *testing.T) {
	rec := &recordingScheduler{}
	task := NewTask[int](rec.schedule)

	boom := errors.New("boom")
	cmd := task.Start(func(ctx context.Context) (int, error) { return 0, boom }, 2*time.Second)

	res, ok, next := task.Update(run(t, cmd))
	if !ok || !errors.Is(res.Err, boom) {
		t.Fatalf("expected failed result, got %+v ok=%v", res, ok)
	}
	if next == nil || rec.last() != 2*time.Second {
		t.Fatalf("failure must reschedule after the normal interval, got %v", rec.delays)
	}
}

func TestStopCancelsSessionContext(t *testing.T) {
	task := NewTask[int](nil)

	var seen context.Context
	cmd := task.Start(func(ctx context.Context) (int, error) {
		seen = ctx
		return 0, nil
	}, time.Second)
	run(t, cmd)

	if seen.Err() != nil {
		t.Fatalf("context canceled while the session is live")
	}
	task.Stop()
	task.Stop()
	if !errors.Is(seen.Err(), context.Canceled) {
		t.Fatalf("expected context canceled after Stop, got %v", seen.Err())
	}
	if task.Running() {
		t.Fatalf("task still running after Stop")
	}
}
