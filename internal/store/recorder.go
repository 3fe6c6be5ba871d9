package store

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/me/rspd/pkg/model"
)

// Recorder journals scheduler callbacks on its own goroutine. RecordRound
// and Deliver are called on the scheduling goroutine and never block: when
// the buffer is full the entry is dropped and counted.
type Recorder struct {
	store  Store
	logger *slog.Logger
	now    func() time.Time

	mu     sync.RWMutex
	closed bool
	jobs   chan job
	done   chan struct{}

	dropped atomic.Int64
}

type job struct {
	round  *model.Round
	result *model.CommandResult
	at     time.Time
	flush  chan struct{}
}

// NewRecorder starts a recorder writing to st.
func NewRecorder(st Store, buffer int, logger *slog.Logger) *Recorder {
	if buffer <= 0 {
		buffer = 1024
	}
	r := &Recorder{
		store:  st,
		logger: logger.With("component", "recorder"),
		now:    time.Now,
		jobs:   make(chan job, buffer),
		done:   make(chan struct{}),
	}
	go r.run()
	return r
}

// RecordRound queues a closed round.
func (r *Recorder) RecordRound(round model.Round) {
	r.enqueue(job{round: &round})
}

// Deliver queues a command result. It makes Recorder a command sink.
func (r *Recorder) Deliver(res model.CommandResult) {
	r.enqueue(job{result: &res, at: r.now()})
}

// Dropped returns the number of entries lost to a full buffer.
func (r *Recorder) Dropped() int64 { return r.dropped.Load() }

func (r *Recorder) enqueue(j job) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		r.dropped.Add(1)
		return
	}
	select {
	case r.jobs <- j:
	default:
		r.dropped.Add(1)
		r.logger.Warn("journal buffer full, entry dropped")
	}
}

func (r *Recorder) run() {
	defer close(r.done)
	ctx := context.Background()
	for j := range r.jobs {
		switch {
		case j.round != nil:
			if err := r.store.RecordRound(ctx, j.round); err != nil {
				r.logger.Error("record round", "id", j.round.ID, "error", err)
			}
		case j.result != nil:
			if err := r.store.CompleteCommand(ctx, *j.result, j.at); err != nil {
				r.logger.Error("complete command", "id", j.result.ID, "error", err)
			}
		case j.flush != nil:
			close(j.flush)
		}
	}
}

// Flush waits until every entry queued before the call is written.
func (r *Recorder) Flush(ctx context.Context) error {
	ack := make(chan struct{})
	r.mu.RLock()
	if r.closed {
		r.mu.RUnlock()
		return nil
	}
	select {
	case r.jobs <- job{flush: ack}:
		r.mu.RUnlock()
	case <-ctx.Done():
		r.mu.RUnlock()
		return ctx.Err()
	}
	select {
	case <-ack:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting entries and waits for the queue to drain.
func (r *Recorder) Close() error {
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.jobs)
	}
	r.mu.Unlock()
	<-r.done
	return nil
}
