package scheduler

import (
	"io"
	"log/slog"
	"testing"

	"github.com/me/rspd/internal/cache"
	"github.com/me/rspd/pkg/model"
)

type testPort struct{ name string }

func (p *testPort) Name() string { return p.name }

// journal records the order in which commands were applied and completed.
type journal struct {
	applied   []string
	completed []string
	results   map[string]model.RoundResult
	completes map[string]int
}

func newJournal() *journal {
	return &journal{results: map[string]model.RoundResult{}, completes: map[string]int{}}
}

type testCommand struct {
	BaseCommand
	id      string
	j       *journal
	fronts  int
	backs   int
	stamped []model.Timestamp // timestamp at each back apply
}

func newTestCommand(j *journal, id string, owner Port, op model.Operation, ts int64, period int64) *testCommand {
	return &testCommand{
		BaseCommand: NewBaseCommand(owner, id, op, model.NewTimestamp(ts, 0), period),
		id:          id,
		j:           j,
	}
}

func (c *testCommand) Apply(state *cache.State, isFront bool) {
	if isFront {
		c.fronts++
		return
	}
	c.backs++
	c.stamped = append(c.stamped, state.Time)
	c.j.applied = append(c.j.applied, c.id)
}

func (c *testCommand) Complete(state *cache.State, result model.RoundResult) {
	c.j.completed = append(c.j.completed, c.id)
	c.j.results[c.id] = result
	c.j.completes[c.id]++
}

// testAction completes after needs port events (0 = on the first event it
// sees, including timer and tick events).
type testAction struct {
	port     Port
	needs    int
	cont     bool
	seen     int
	kinds    []EventKind
	resets   int
	finished int
}

func (a *testAction) BoardPort() Port { return a.port }

func (a *testAction) Dispatch(ev Event) Progress {
	a.kinds = append(a.kinds, ev.Kind)
	if ev.Kind == EventPort {
		a.seen++
	}
	if a.seen >= a.needs {
		a.seen = 0
		a.finished++
		return Done
	}
	return Waiting
}

func (a *testAction) Continue() bool { return a.cont }

func (a *testAction) Reset() {
	a.resets++
	a.seen = 0
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestScheduler creates a scheduler over a one-board cache and records
// every closed round.
func newTestScheduler(t *testing.T) (*Scheduler, *[]model.Round) {
	t.Helper()
	var rounds []model.Round
	c := cache.New(map[string]int{"rsp0": 4})
	s := New(DefaultConfig(), c, discardLogger(), WithRoundHook(func(r model.Round) {
		rounds = append(rounds, r)
	}))
	return s, &rounds
}

func runAt(s *Scheduler, sec int64) {
	s.Run(Event{Kind: EventTimer, Time: model.NewTimestamp(sec, 0)})
}

func ids(cmds []Command) []string {
	out := make([]string, len(cmds))
	for i, c := range cmds {
		out[i] = c.(*testCommand).id
	}
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
