package scheduler

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/me/rspd/pkg/model"
)

// Config holds scheduler configuration.
type Config struct {
	// SyncInterval is the tick period in whole seconds.
	SyncInterval int64
	// SchedulingDelay is the minimum number of intervals between
	// admission and execution of a command.
	SchedulingDelay int64
	// JitterTolerance is the largest timer offset from a whole second that
	// is accepted without a warning.
	JitterTolerance time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		SyncInterval:    1,
		SchedulingDelay: 2,
		JitterTolerance: 10 * time.Millisecond,
	}
}

// Option configures optional Scheduler behaviour.
type Option func(*Scheduler)

// WithRoundHook registers fn to be called on the scheduling goroutine
// after every round closes. fn must not block.
func WithRoundHook(fn func(model.Round)) Option {
	return func(s *Scheduler) {
		s.onRound = fn
	}
}

// WithClock replaces time.Now for round bookkeeping.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) {
		s.clock = now
	}
}

type round struct {
	id      string
	tick    model.Timestamp
	started time.Time
}

// Scheduler decides once per interval which commands are due, applies them
// to the cache, and drives one synchronization round per board.
//
// The scheduler is not safe for concurrent use. All methods must be called
// from one goroutine (see Loop).
type Scheduler struct {
	cfg    Config
	cache  Cache
	logger *slog.Logger
	clock  func() time.Time

	later    *Queue
	periodic *Queue
	now      *Queue
	done     *Queue

	ports     []Port
	pipelines map[Port]*pipeline

	state   model.SchedulerState
	current model.Timestamp
	round   round
	rounds  int64
	forced  int64
	onRound func(model.Round)
}

// New creates an idle scheduler.
func New(cfg Config, c Cache, logger *slog.Logger, opts ...Option) *Scheduler {
	if cfg.SyncInterval <= 0 {
		cfg.SyncInterval = 1
	}
	seq := new(uint64)
	s := &Scheduler{
		cfg:       cfg,
		cache:     c,
		logger:    logger.With("component", "scheduler"),
		clock:     time.Now,
		later:     newQueueWithSeq("later", seq),
		periodic:  newQueueWithSeq("periodic", seq),
		now:       newQueueWithSeq("now", seq),
		done:      newQueueWithSeq("done", seq),
		pipelines: make(map[Port]*pipeline),
		state:     model.SchedulerIdle,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State returns IDLE or SYNCING.
func (s *Scheduler) State() model.SchedulerState { return s.state }

// CurrentTime returns the tick of the latest round.
func (s *Scheduler) CurrentTime() model.Timestamp { return s.current }

// SetCurrentTime sets the reference time used for admission before the
// first tick arrives.
func (s *Scheduler) SetCurrentTime(ts model.Timestamp) {
	s.current, _ = ts.Round()
}

// Cache returns the cache driven by this scheduler.
func (s *Scheduler) Cache() Cache { return s.cache }

// AddSyncAction appends a step to its board's pipeline. The order of calls
// defines the protocol sequence of each board.
func (s *Scheduler) AddSyncAction(a SyncAction) {
	port := a.BoardPort()
	p, ok := s.pipelines[port]
	if !ok {
		p = newPipeline(port)
		s.pipelines[port] = p
		s.ports = append(s.ports, port)
	}
	p.add(a)
}

// Enter admits cmd into the later or periodic queue and returns its
// effective timestamp. Commands requested earlier than current time plus
// the scheduling delay are moved to that time and still executed. Any
// other queue kind, or a command without an owner, is a programming error
// and panics.
func (s *Scheduler) Enter(cmd Command, kind model.QueueKind) model.Timestamp {
	var q *Queue
	switch kind {
	case model.QueueLater:
		q = s.later
	case model.QueuePeriodic:
		q = s.periodic
	default:
		panic(fmt.Sprintf("scheduler: invalid queue kind %q", kind))
	}
	if cmd.Owner() == nil {
		panic("scheduler: command has no owner")
	}

	earliest := s.current.Add(s.cfg.SchedulingDelay * s.cfg.SyncInterval)
	if ts := cmd.Timestamp(); ts.Before(earliest) {
		if !ts.IsZero() {
			s.logger.Warn("missed deadline",
				"stage", "admission",
				"owner", cmd.Owner().Name(),
				"requested", ts,
				"effective", earliest,
			)
		}
		cmd.SetTimestamp(earliest)
	}

	q.Push(cmd)
	s.logger.Debug("command entered",
		"queue", kind,
		"operation", cmd.Operation(),
		"owner", cmd.Owner().Name(),
		"timestamp", cmd.Timestamp(),
		"period", cmd.Period(),
	)
	return cmd.Timestamp()
}

// Cancel removes every queued command owned by owner and returns how many
// were removed.
func (s *Scheduler) Cancel(owner Port) int {
	return s.remove(owner, nil)
}

// RemoveSubscription removes the commands of owner with the given handle.
func (s *Scheduler) RemoveSubscription(owner Port, handle string) int {
	return s.remove(owner, &handle)
}

// remove drains all four queues. A periodic command that is also waiting
// in done is counted once.
func (s *Scheduler) remove(owner Port, handle *string) int {
	removed := make(map[Command]struct{})
	for _, q := range []*Queue{s.later, s.periodic, s.now, s.done} {
		for _, cmd := range q.RemoveByOwner(owner, handle) {
			removed[cmd] = struct{}{}
		}
	}
	if len(removed) > 0 {
		s.logger.Debug("commands removed", "owner", owner.Name(), "count", len(removed))
	}
	return len(removed)
}

// Run handles the timer event of a new interval. A round still in flight
// is force-closed first.
func (s *Scheduler) Run(ev Event) {
	if s.state == model.SchedulerSyncing {
		s.forceComplete()
	}

	s.updateCurrentTime(ev.Time)
	s.scheduleCommands()
	s.processCommands()
	s.initiateSync(ev)
}

// Dispatch feeds a port event to the first incomplete step of that port's
// pipeline, and closes the round once every port is complete.
func (s *Scheduler) Dispatch(ev Event, port Port) Status {
	p, ok := s.pipelines[port]
	if !ok || s.state != model.SchedulerSyncing || p.done {
		s.logger.Debug("unhandled port event", "port", port.Name(), "state", s.state)
		return NotHandled
	}

	p.advance(ev)
	if s.allComplete() {
		s.completeSync(model.RoundCompleted, nil)
	}
	return Handled
}

func (s *Scheduler) forceComplete() {
	var names []string
	for _, port := range s.ports {
		p := s.pipelines[port]
		if p.done {
			continue
		}
		names = append(names, port.Name())
		s.logger.Error("sync round incomplete",
			"tick", s.round.tick,
			"port", port.Name(),
			"step", p.describe(),
		)
		p.abort()
	}
	s.completeSync(model.RoundForcedIncomplete, names)
}

func (s *Scheduler) updateCurrentTime(sample model.Timestamp) {
	rounded, offset := sample.Round()
	if offset < 0 {
		offset = -offset
	}
	if offset > s.cfg.JitterTolerance {
		s.logger.Warn("timer jitter", "sample", sample, "offset", offset)
	}
	if !s.current.IsZero() && rounded.BeforeOrEqual(s.current) {
		s.logger.Warn("timer did not advance", "sample", sample, "current", s.current)
	}
	s.current = rounded
}

// scheduleCommands moves the due commands of later and periodic into now.
func (s *Scheduler) scheduleCommands() {
	s.promote(s.later, false)
	s.promote(s.periodic, true)
}

func (s *Scheduler) promote(q *Queue, keep bool) {
	for _, e := range q.popDue(s.current, s.cfg.SyncInterval, keep) {
		deadline := e.cmd.Timestamp().Add(-leadTime(e.cmd.Operation(), s.cfg.SyncInterval))
		if deadline.Before(s.current) {
			s.logger.Warn("missed deadline",
				"stage", "schedule",
				"queue", q.Name(),
				"owner", e.cmd.Owner().Name(),
				"timestamp", e.cmd.Timestamp(),
				"current", s.current,
			)
		}
		s.now.pushEntry(e)
	}
}

// processCommands applies now to both buffers in timestamp order and
// moves the commands to done.
func (s *Scheduler) processCommands() {
	front, back := s.cache.Front(), s.cache.Back()
	back.Time = s.current
	for s.now.Len() > 0 {
		e := s.now.popEntry()
		e.cmd.Apply(front, true)
		e.cmd.Apply(back, false)
		s.done.pushEntry(e)
	}
}

// initiateSync starts a round on every board.
func (s *Scheduler) initiateSync(ev Event) {
	s.state = model.SchedulerSyncing
	s.round = round{
		id:      uuid.New().String(),
		tick:    s.current,
		started: s.clock(),
	}

	for _, port := range s.ports {
		s.pipelines[port].begin()
	}
	for _, port := range s.ports {
		s.pipelines[port].advance(ev)
	}
	if s.allComplete() {
		s.completeSync(model.RoundCompleted, nil)
	}
}

func (s *Scheduler) allComplete() bool {
	for _, p := range s.pipelines {
		if !p.done {
			return false
		}
	}
	return true
}

// completeSync swaps the buffers and finalizes done.
func (s *Scheduler) completeSync(result model.RoundResult, incomplete []string) {
	s.cache.SwapBuffers()
	front := s.cache.Front()

	n := 0
	for s.done.Len() > 0 {
		cmd := s.done.Pop()
		cmd.Complete(front, result)
		n++
		if cmd.Period() > 0 {
			s.rearm(cmd)
		}
	}

	s.state = model.SchedulerIdle
	front.Schedule(s.round.tick.Add(s.cfg.SyncInterval))
	s.rounds++
	if result == model.RoundForcedIncomplete {
		s.forced++
	}

	s.logger.Debug("round complete", "tick", s.round.tick, "result", result, "commands", n)
	if s.onRound != nil {
		s.onRound(model.Round{
			ID:                s.round.id,
			Tick:              s.round.tick,
			Result:            result,
			IncompletePorts:   incomplete,
			CommandsCompleted: n,
			StartedAt:         s.round.started,
			CompletedAt:       s.clock(),
		})
	}
}

// rearm advances a periodic command by whole periods until it lies at
// least one period after the round it ran in.
func (s *Scheduler) rearm(cmd Command) {
	p := cmd.Period()
	next := cmd.Timestamp().Add(p)
	floor := s.round.tick.Add(p)
	for next.Before(floor) {
		next = next.Add(p)
	}
	s.periodic.Reschedule(cmd, next)
}

// Status returns a snapshot of the queues and per-port progress.
func (s *Scheduler) Status() model.SchedulerStatus {
	st := model.SchedulerStatus{
		State:       s.state,
		CurrentTime: s.current,
		Later:       s.later.Len(),
		Periodic:    s.periodic.Len(),
		Now:         s.now.Len(),
		Done:        s.done.Len(),
		Rounds:      s.rounds,
		Forced:      s.forced,
		Ports:       make(map[string]string, len(s.ports)),
	}
	for _, port := range s.ports {
		st.Ports[port.Name()] = s.pipelines[port].describe()
	}
	return st
}
