// Package command implements the register accesses clients schedule:
// one-shot writes and reads, and periodic reads (subscriptions).
package command

import (
	"github.com/me/rspd/internal/cache"
	"github.com/me/rspd/internal/scheduler"
	"github.com/me/rspd/pkg/model"
)

// ClientPort identifies the client that owns a command. Two ports with the
// same name are the same owner, so a client can cancel its commands from a
// later connection.
type ClientPort string

// Name returns the owner name.
func (p ClientPort) Name() string { return string(p) }

// Sink receives the result of every completed command.
type Sink interface {
	Deliver(res model.CommandResult)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(res model.CommandResult)

// Deliver calls f(res).
func (f SinkFunc) Deliver(res model.CommandResult) { f(res) }

type discard struct{}

func (discard) Deliver(model.CommandResult) {}

// target is the register range a command touches and where its results go.
type target struct {
	id       string
	board    string
	register int
	sink     Sink
}

func newTarget(id, board string, reg int, sink Sink) target {
	if sink == nil {
		sink = discard{}
	}
	return target{id: id, board: board, register: reg, sink: sink}
}

// ID returns the command ID.
func (t *target) ID() string { return t.id }

// Board returns the board the command addresses.
func (t *target) Board() string { return t.board }

// Register returns the first register of the range.
func (t *target) Register() int { return t.register }

func (t *target) deliver(cmd scheduler.Command, state *cache.State, count int, result model.RoundResult) {
	res := model.CommandResult{
		ID:        t.id,
		Owner:     cmd.Owner().Name(),
		Board:     t.board,
		Register:  t.register,
		Operation: cmd.Operation(),
		Timestamp: cmd.Timestamp(),
		Result:    result,
		Periodic:  cmd.Period() > 0,
	}
	if bank, err := state.Bank(t.board); err == nil && t.register+count <= bank.Len() {
		res.Values = bank.Values(t.register, count)
	}
	t.sink.Deliver(res)
}

// RegisterWrite stores values starting at a register.
type RegisterWrite struct {
	scheduler.BaseCommand
	target
	values []uint32
}

// NewRegisterWrite creates a write. A zero at means "as soon as possible".
func NewRegisterWrite(id string, owner scheduler.Port, board string, reg int, values []uint32, at model.Timestamp, sink Sink) *RegisterWrite {
	return &RegisterWrite{
		BaseCommand: scheduler.NewBaseCommand(owner, id, model.OperationWrite, at, 0),
		target:      newTarget(id, board, reg, sink),
		values:      append([]uint32(nil), values...),
	}
}

// Apply makes the values visible in the front buffer at once and stages
// them as pending writes in the back buffer for the board to pick up.
func (c *RegisterWrite) Apply(state *cache.State, isFront bool) {
	bank, err := state.Bank(c.board)
	if err != nil {
		return
	}
	for i, v := range c.values {
		reg := c.register + i
		if reg >= bank.Len() {
			return
		}
		if isFront {
			bank.Set(reg, v)
		} else {
			bank.Stage(reg, v)
		}
	}
}

// Complete reports the written range as seen after the round.
func (c *RegisterWrite) Complete(state *cache.State, result model.RoundResult) {
	c.deliver(c, state, len(c.values), result)
}

// RegisterRead reads count registers in the round it is scheduled for.
type RegisterRead struct {
	scheduler.BaseCommand
	target
	count int
}

// NewRegisterRead creates a one-shot read. count < 1 reads one register.
func NewRegisterRead(id string, owner scheduler.Port, board string, reg, count int, at model.Timestamp, sink Sink) *RegisterRead {
	return newRead(id, owner, board, reg, count, at, 0, sink)
}

func newRead(id string, owner scheduler.Port, board string, reg, count int, at model.Timestamp, period int64, sink Sink) *RegisterRead {
	if count < 1 {
		count = 1
	}
	return &RegisterRead{
		BaseCommand: scheduler.NewBaseCommand(owner, id, model.OperationRead, at, period),
		target:      newTarget(id, board, reg, sink),
		count:       count,
	}
}

// Count returns the number of registers read.
func (c *RegisterRead) Count() int { return c.count }

// Apply requests the range from the board. The front buffer is not touched.
func (c *RegisterRead) Apply(state *cache.State, isFront bool) {
	if isFront {
		return
	}
	bank, err := state.Bank(c.board)
	if err != nil {
		return
	}
	for reg := c.register; reg < c.register+c.count && reg < bank.Len(); reg++ {
		bank.RequestRead(reg)
	}
}

// Complete reports the values the board returned.
func (c *RegisterRead) Complete(state *cache.State, result model.RoundResult) {
	c.deliver(c, state, c.count, result)
}

// Subscription is a read repeated every period seconds until removed.
type Subscription struct {
	RegisterRead
	samples int
}

// NewSubscription creates a periodic read starting at at.
func NewSubscription(id string, owner scheduler.Port, board string, reg, count int, at model.Timestamp, period int64, sink Sink) *Subscription {
	return &Subscription{RegisterRead: *newRead(id, owner, board, reg, count, at, period, sink)}
}

// Complete delivers one sample.
func (c *Subscription) Complete(state *cache.State, result model.RoundResult) {
	c.samples++
	c.deliver(c, state, c.count, result)
}

// Samples returns how many samples were delivered so far.
func (c *Subscription) Samples() int { return c.samples }

// FromRequest builds the command for a validated request and returns the
// queue it belongs in.
func FromRequest(id string, req model.CommandRequest, sink Sink) (scheduler.Command, model.QueueKind) {
	owner := ClientPort(req.Owner)
	at := model.NewTimestamp(req.At, 0)
	switch {
	case req.Operation == model.OperationWrite:
		return NewRegisterWrite(id, owner, req.Board, req.Register, req.Values, at, sink), model.QueueLater
	case req.Period > 0:
		return NewSubscription(id, owner, req.Board, req.Register, req.Count, at, req.Period, sink), model.QueuePeriodic
	default:
		return NewRegisterRead(id, owner, req.Board, req.Register, req.Count, at, sink), model.QueueLater
	}
}
