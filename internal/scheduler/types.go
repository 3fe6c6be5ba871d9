package scheduler

import (
	"context"
	"time"

	"github.com/me/rspd/internal/cache"
	"github.com/me/rspd/pkg/model"
)

// Port identifies an endpoint the scheduler talks to or on behalf of: a
// board connection for sync actions, or a client connection owning
// commands. Ports are compared with ==, so implementations must be
// comparable (pointers or small value types).
type Port interface {
	Name() string
}

// Command is a schedulable register access. The scheduler owns only its
// queuing lifecycle; what it reads or writes is up to the implementation.
// Implementations must be pointer types.
type Command interface {
	Timestamp() model.Timestamp
	SetTimestamp(ts model.Timestamp)
	Operation() model.Operation
	// Period is the recurrence in seconds; 0 for one-shot commands.
	Period() int64
	// Owner is the client port that requested the command. It must not
	// be nil.
	Owner() Port
	// Handle identifies the command for targeted removal.
	Handle() string

	// Apply records the command's effect in state. It is called once with
	// the front buffer (isFront=true) and once with the back buffer.
	Apply(state *cache.State, isFront bool)
	// Complete is called after the round closed, with the new front buffer.
	Complete(state *cache.State, result model.RoundResult)
}

// Cache is the double buffer consumed by the scheduler.
type Cache interface {
	Front() *cache.State
	Back() *cache.State
	SwapBuffers()
}

// Progress is reported by a SyncAction after handling an event.
type Progress int

const (
	// Waiting means the step needs another port event.
	Waiting Progress = iota
	// Done means the step completed.
	Done
)

// SyncAction is one step of a board's synchronization protocol.
type SyncAction interface {
	// BoardPort is the board connection this step belongs to.
	BoardPort() Port
	// Dispatch feeds an event to the step.
	Dispatch(ev Event) Progress
	// Continue reports whether the next step of the same board may start
	// immediately once this one is done. If false, the next step waits for
	// the next port event.
	Continue() bool
	// Reset aborts any in-flight exchange and returns to the initial state.
	Reset()
}

// EventKind distinguishes the events fed to the scheduler.
type EventKind int

const (
	EventTimer EventKind = iota + 1
	EventTick
	EventPort
)

func (k EventKind) String() string {
	switch k {
	case EventTimer:
		return "timer"
	case EventTick:
		return "tick"
	case EventPort:
		return "port"
	}
	return "unknown"
}

// Event is an input to the scheduler or a sync step.
type Event struct {
	Kind EventKind
	// Time is the wall-clock sample of a timer event.
	Time model.Timestamp
	// Payload is the raw frame of a port event.
	Payload []byte
	// Err is set when the transport failed instead of delivering a frame.
	Err error
}

// TimerEvent builds the per-interval event.
func TimerEvent(t time.Time) Event {
	return Event{Kind: EventTimer, Time: model.FromTime(t)}
}

// TickEvent is fed to the next step when the previous one completed within
// the same call.
func TickEvent() Event {
	return Event{Kind: EventTick}
}

// PortEvent wraps a frame received from a board.
func PortEvent(payload []byte) Event {
	return Event{Kind: EventPort, Payload: payload}
}

// Status is the result of Scheduler.Dispatch.
type Status int

const (
	NotHandled Status = iota
	Handled
)

// Driver runs a scheduler from real time. Implemented by Loop.
type Driver interface {
	// Start begins the scheduling loop. Blocks until ctx is cancelled.
	Start(ctx context.Context) error

	// Stop gracefully shuts down the loop.
	Stop() error

	// Do runs fn on the scheduling goroutine and waits for it.
	Do(ctx context.Context, fn func(*Scheduler)) error
}
