package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/me/rspd/pkg/model"
)

// ErrLoopStopped is returned by Do after the loop exited.
var ErrLoopStopped = errors.New("scheduler loop stopped")

type portEvent struct {
	port Port
	ev   Event
}

type request struct {
	fn   func(*Scheduler)
	done chan struct{}
}

// Loop is the event dispatcher that owns a Scheduler. It produces one timer
// event per sync interval, aligned to whole intervals of wall-clock time,
// and serializes port events and client requests onto one goroutine.
type Loop struct {
	sched    *Scheduler
	interval time.Duration
	logger   *slog.Logger
	now      func() time.Time

	events   chan portEvent
	requests chan request
	stopCh   chan struct{}
	doneCh   chan struct{}
	stopOnce sync.Once
	started  atomic.Bool
}

// NewLoop creates a loop for sched. cfg.SyncInterval sets the tick period.
func NewLoop(sched *Scheduler, cfg Config, logger *slog.Logger) *Loop {
	interval := time.Duration(cfg.SyncInterval) * time.Second
	if interval <= 0 {
		interval = time.Second
	}
	return &Loop{
		sched:    sched,
		interval: interval,
		logger:   logger.With("component", "loop"),
		now:      time.Now,
		events:   make(chan portEvent, 256),
		requests: make(chan request),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Post queues a port event. It returns false if the loop is stopping.
// Safe for concurrent use.
func (l *Loop) Post(port Port, ev Event) bool {
	select {
	case l.events <- portEvent{port: port, ev: ev}:
		return true
	case <-l.stopCh:
		return false
	case <-l.doneCh:
		return false
	}
}

// Do runs fn on the scheduling goroutine and waits for it to return.
// Safe for concurrent use.
func (l *Loop) Do(ctx context.Context, fn func(*Scheduler)) error {
	req := request{fn: fn, done: make(chan struct{})}
	select {
	case l.requests <- req:
	case <-l.doneCh:
		return ErrLoopStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-req.done:
		return nil
	case <-l.doneCh:
		return ErrLoopStopped
	}
}

// Tick runs a single scheduling round for t on the loop goroutine, outside
// the regular timer.
func (l *Loop) Tick(ctx context.Context, t time.Time) error {
	return l.Do(ctx, func(s *Scheduler) { s.Run(TimerEvent(t)) })
}

// Start runs the loop. Blocks until ctx is cancelled or Stop is called.
func (l *Loop) Start(ctx context.Context) error {
	l.started.Store(true)
	defer close(l.doneCh)

	l.sched.SetCurrentTime(model.FromTime(l.now()))
	l.logger.Info("scheduler loop started", "interval", l.interval)

	timer := time.NewTimer(l.untilNextTick())
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			l.logger.Info("scheduler loop stopping (context cancelled)")
			return ctx.Err()
		case <-l.stopCh:
			l.logger.Info("scheduler loop stopping (stop called)")
			return nil
		case t := <-timer.C:
			l.sched.Run(TimerEvent(t))
			timer.Reset(l.untilNextTick())
		case pe := <-l.events:
			if pe.ev.Err != nil {
				l.logger.Warn("port error", "port", pe.port.Name(), "error", pe.ev.Err)
			}
			l.sched.Dispatch(pe.ev, pe.port)
		case req := <-l.requests:
			req.fn(l.sched)
			close(req.done)
		}
	}
}

// Stop shuts down the loop and waits for the current event to finish.
func (l *Loop) Stop() error {
	l.stopOnce.Do(func() { close(l.stopCh) })
	if l.started.Load() {
		<-l.doneCh
	}
	return nil
}

func (l *Loop) untilNextTick() time.Duration {
	now := l.now()
	next := now.Truncate(l.interval).Add(l.interval)
	return next.Sub(now)
}
