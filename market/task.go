package market

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// Scheduler delivers msg to the program after d.
type Scheduler func(d time.Duration, msg tea.Msg) tea.Cmd

// TickScheduler schedules through tea.Tick.
func TickScheduler(d time.Duration, msg tea.Msg) tea.Cmd {
	return tea.Tick(d, func(time.Time) tea.Msg {
		return msg
	})
}

// FetchFunc performs one fetch. ctx is canceled when the owning session ends.
type FetchFunc[T any] func(ctx context.Context) (T, error)

// Result is a settled fetch of the live session.
type Result[T any] struct {
	Value T
	Err   error
	At    time.Time
}

type fetchedMsg[T any] struct {
	task  *Task[T]
	gen   uint64
	value T
	err   error
	at    time.Time
}

type tickMsg[T any] struct {
	task *Task[T]
	gen  uint64
}

// Task is a cancellable fetch loop driven by the Bubble Tea event loop. The next
// fetch is scheduled only after the previous one settled, so a task never has
// more than one fetch or pending tick outstanding.
type Task[T any] struct {
	fetch    FetchFunc[T]
	interval time.Duration
	schedule Scheduler
	session  Session
	inFlight bool
	fetches  int
}

func NewTask[T any](schedule Scheduler) *Task[T] {
	if schedule == nil {
		schedule = TickScheduler
	}
	return &Task[T]{schedule: schedule}
}

// Start tears down any previous session and issues the first fetch immediately.
func (t *Task[T]) Start(fetch FetchFunc[T], interval time.Duration) tea.Cmd {
	t.Stop()
	t.fetch = fetch
	t.interval = interval
	t.session.Begin()
	return t.issue()
}

// Stop ends the session. Pending ticks and late responses of it are dropped.
func (t *Task[T]) Stop() {
	t.session.End()
	t.inFlight = false
}

func (t *Task[T]) Running() bool {
	return t.session.Alive()
}

func (t *Task[T]) InFlight() bool {
	return t.inFlight
}

// Fetches counts the fetches issued over the task's lifetime.
func (t *Task[T]) Fetches() int {
	return t.fetches
}

func (t *Task[T]) Interval() time.Duration {
	return t.interval
}

// Update consumes the task's own messages. ok is true only for a settled fetch of
// the live session; cmd schedules the continuation.
func (t *Task[T]) Update(msg tea.Msg) (res Result[T], ok bool, cmd tea.Cmd) {
	switch msg := msg.(type) {
	case fetchedMsg[T]:
		if msg.task != t || !t.session.Owns(msg.gen) {
			return res, false, nil
		}
		t.inFlight = false
		res = Result[T]{Value: msg.value, Err: msg.err, At: msg.at}
		return res, true, t.schedule(t.interval, tickMsg[T]{task: t, gen: msg.gen})

	case tickMsg[T]:
		if msg.task != t || !t.session.Owns(msg.gen) || t.inFlight {
			return res, false, nil
		}
		return res, false, t.issue()
	}
	return res, false, nil
}

func (t *Task[T]) issue() tea.Cmd {
	t.inFlight = true
	t.fetches++

	task := t
	gen := t.session.Generation()
	ctx := t.session.Context()
	fetch := t.fetch

	return func() tea.Msg {
		value, err := fetch(ctx)
		return fetchedMsg[T]{task: task, gen: gen, value: value, err: err, at: time.Now()}
	}
}
