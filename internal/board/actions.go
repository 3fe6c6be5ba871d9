package board

import (
	"log/slog"

	"github.com/me/rspd/internal/cache"
	"github.com/me/rspd/internal/logging"
	"github.com/me/rspd/internal/scheduler"
)

// BackBuffer gives an action access to the buffer of the round in flight.
type BackBuffer interface {
	Back() *cache.State
}

// exchange is one request/reply pair with the board. A step starts it on
// the timer or tick event that activates the step, then waits for the
// reply carrying the same sequence number. Replies to earlier (aborted)
// requests are dropped.
type exchange struct {
	port    *Port
	buffers BackBuffer
	logger  *slog.Logger

	awaiting bool
	seq      uint32
	regs     []int
}

func (x *exchange) bank() *cache.Bank {
	b, err := x.buffers.Back().Bank(x.port.Name())
	if err != nil {
		x.logger.Error("board missing from cache", "error", err)
		return nil
	}
	return b
}

// send transmits f and reports whether a reply is now awaited.
func (x *exchange) send(f *Frame) bool {
	seq, err := x.port.Send(f)
	if err != nil {
		x.logger.Error("send failed", "op", f.Op, "error", err)
		return false
	}
	x.awaiting = true
	x.seq = seq
	x.regs = f.Registers
	return true
}

// reply decodes a port event addressed to the pending request. It returns
// nil for events that do not belong to it.
func (x *exchange) reply(ev scheduler.Event, want Op) (*Frame, bool) {
	if ev.Err != nil {
		x.logger.Warn("transport error, giving up exchange", "seq", x.seq, "error", ev.Err)
		return nil, true
	}
	f, err := DecodeFrame(ev.Payload)
	if err != nil {
		x.logger.Warn("undecodable reply", "error", err)
		return nil, false
	}
	if f.Seq != x.seq || f.Op != want {
		x.logger.Debug("stale reply", "seq", f.Seq, "want_seq", x.seq, "op", f.Op)
		return nil, false
	}
	if f.Status != StatusOK {
		x.logger.Warn("board rejected request", "seq", f.Seq, "status", f.Status)
		return nil, true
	}
	return f, true
}

func (x *exchange) BoardPort() scheduler.Port { return x.port }

// Continue lets the next step of the board start in the same call.
func (x *exchange) Continue() bool { return true }

// Reset drops the request in flight; its reply will be ignored.
func (x *exchange) Reset() {
	x.awaiting = false
	x.regs = nil
}

// WriteAction flushes the pending writes of its board from the back buffer
// and confirms them once the board acknowledges. Writes that are not
// acknowledged stay pending and are flushed again next round.
type WriteAction struct {
	exchange
}

// NewWriteAction creates the write step for port.
func NewWriteAction(port *Port, buffers BackBuffer, logger *slog.Logger) *WriteAction {
	return &WriteAction{exchange{
		port:    port,
		buffers: buffers,
		logger:  logging.ForBoard(logger, "write_action", port.Name()),
	}}
}

// Dispatch implements scheduler.SyncAction.
func (a *WriteAction) Dispatch(ev scheduler.Event) scheduler.Progress {
	if !a.awaiting {
		if ev.Kind == scheduler.EventPort {
			return scheduler.Waiting
		}
		bank := a.bank()
		if bank == nil {
			return scheduler.Done
		}
		regs := bank.Pending()
		if len(regs) == 0 {
			return scheduler.Done
		}
		values := make([]uint32, len(regs))
		for i, r := range regs {
			values[i] = bank.Value(r)
		}
		f := &Frame{Op: OpWrite, Registers: regs, Values: values, Tick: a.buffers.Back().Time.Seconds()}
		if !a.send(f) {
			return scheduler.Done
		}
		return scheduler.Waiting
	}

	if ev.Kind != scheduler.EventPort {
		return scheduler.Waiting
	}
	f, finished := a.reply(ev, OpAck)
	if !finished {
		return scheduler.Waiting
	}
	if f != nil {
		if bank := a.bank(); bank != nil {
			for _, r := range a.regs {
				bank.Confirm(r)
			}
		}
	}
	a.Reset()
	return scheduler.Done
}

// ReadAction reads the requested registers of its board, plus the status
// registers it always polls, into the back buffer.
type ReadAction struct {
	exchange
	status []int
}

// NewReadAction creates the read step for port. status lists registers
// read back every round.
func NewReadAction(port *Port, buffers BackBuffer, status []int, logger *slog.Logger) *ReadAction {
	return &ReadAction{
		exchange: exchange{
			port:    port,
			buffers: buffers,
			logger:  logging.ForBoard(logger, "read_action", port.Name()),
		},
		status: append([]int(nil), status...),
	}
}

// Dispatch implements scheduler.SyncAction.
func (a *ReadAction) Dispatch(ev scheduler.Event) scheduler.Progress {
	if !a.awaiting {
		if ev.Kind == scheduler.EventPort {
			return scheduler.Waiting
		}
		bank := a.bank()
		if bank == nil {
			return scheduler.Done
		}
		regs := a.registers(bank)
		if len(regs) == 0 {
			return scheduler.Done
		}
		f := &Frame{Op: OpRead, Registers: regs, Tick: a.buffers.Back().Time.Seconds()}
		if !a.send(f) {
			return scheduler.Done
		}
		return scheduler.Waiting
	}

	if ev.Kind != scheduler.EventPort {
		return scheduler.Waiting
	}
	f, finished := a.reply(ev, OpData)
	if !finished {
		return scheduler.Waiting
	}
	if f != nil {
		if bank := a.bank(); bank != nil {
			for i, r := range f.Registers {
				if r >= 0 && r < bank.Len() && i < len(f.Values) {
					bank.Fulfil(r, f.Values[i])
				}
			}
		}
	}
	a.Reset()
	return scheduler.Done
}

// registers merges requested and status registers, ascending.
func (a *ReadAction) registers(bank *cache.Bank) []int {
	want := make([]bool, bank.Len())
	for _, r := range bank.Requested() {
		want[r] = true
	}
	for _, r := range a.status {
		if r >= 0 && r < len(want) {
			want[r] = true
		}
	}
	var regs []int
	for r, ok := range want {
		if ok {
			regs = append(regs, r)
		}
	}
	return regs
}
