package board

import (
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/me/rspd/internal/config"
	"github.com/me/rspd/internal/logging"
)

var ErrClosed = errors.New("transport closed")

// Sim is a simulated board: a register file that answers frames after a
// configurable latency. Status registers are recomputed on every read when
// an expression is configured. A stalled Sim accepts frames and never
// answers.
type Sim struct {
	name    string
	latency time.Duration
	deliver Deliver
	logger  *slog.Logger

	stall  atomic.Bool
	closed atomic.Bool

	mu     sync.Mutex
	regs   []uint32
	status map[int]bool
	expr   *StatusExpr
	frames int
	timers map[*time.Timer]struct{}
}

// NewSim creates the simulator for one board of the station.
func NewSim(b config.Board, deliver Deliver, logger *slog.Logger) (*Sim, error) {
	s := &Sim{
		name:    b.Name,
		latency: b.Latency,
		deliver: deliver,
		logger:  logging.ForBoard(logger, "sim", b.Name),
		regs:    make([]uint32, b.Registers),
		status:  make(map[int]bool, len(b.StatusRegisters)),
		timers:  make(map[*time.Timer]struct{}),
	}
	for _, r := range b.StatusRegisters {
		s.status[r] = true
	}
	if b.Expr != "" {
		expr, err := CompileStatusExpr(b.Expr)
		if err != nil {
			return nil, err
		}
		s.expr = expr
	}
	s.stall.Store(b.Stall)
	return s, nil
}

// SetStall switches reply suppression on or off.
func (s *Sim) SetStall(on bool) { s.stall.Store(on) }

// Frames returns the number of frames received.
func (s *Sim) Frames() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frames
}

// Registers returns a copy of the register file.
func (s *Sim) Registers() []uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]uint32(nil), s.regs...)
}

// Send implements Transport.
func (s *Sim) Send(data []byte) error {
	if s.closed.Load() {
		return ErrClosed
	}
	req, err := DecodeFrame(data)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.frames++
	reply := s.handle(req)
	s.mu.Unlock()

	if s.stall.Load() {
		s.logger.Debug("stalled, dropping frame", "seq", req.Seq, "op", req.Op)
		return nil
	}

	out, err := EncodeFrame(reply)
	if err != nil {
		return err
	}
	s.schedule(out)
	return nil
}

// handle applies req to the register file. Caller holds mu.
func (s *Sim) handle(req *Frame) *Frame {
	reply := &Frame{Seq: req.Seq, Tick: req.Tick, Registers: req.Registers}
	for _, r := range req.Registers {
		if r < 0 || r >= len(s.regs) {
			reply.Status = StatusBadRegister
			break
		}
	}

	switch req.Op {
	case OpWrite:
		reply.Op = OpAck
		reply.Registers = nil
		if reply.Status != StatusOK {
			return reply
		}
		for i, r := range req.Registers {
			s.regs[r] = req.Values[i]
		}
	case OpRead:
		reply.Op = OpData
		if reply.Status != StatusOK {
			return reply
		}
		reply.Values = make([]uint32, len(req.Registers))
		for i, r := range req.Registers {
			if s.status[r] && s.expr != nil {
				v, err := s.expr.Eval(r, req.Tick, s.regs[r])
				if err != nil {
					s.logger.Warn("status expression failed", "register", r, "error", err)
				} else {
					s.regs[r] = v
				}
			}
			reply.Values[i] = s.regs[r]
		}
	default:
		reply.Op = OpAck
		reply.Status = StatusBadRequest
		reply.Registers = nil
	}
	return reply
}

// schedule delivers out after the latency, always from another goroutine.
func (s *Sim) schedule(out []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var t *time.Timer
	t = time.AfterFunc(s.latency, func() {
		s.mu.Lock()
		delete(s.timers, t)
		s.mu.Unlock()
		if s.closed.Load() {
			return
		}
		s.deliver(out, nil)
	})
	s.timers[t] = struct{}{}
}

// Close stops pending replies.
func (s *Sim) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for t := range s.timers {
		t.Stop()
	}
	clear(s.timers)
	return nil
}
