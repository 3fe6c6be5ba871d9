package board

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/me/rspd/internal/logging"
	"github.com/me/rspd/internal/scheduler"
)

// Transport carries encoded frames to one board. Replies are delivered
// asynchronously through the Deliver function the transport was built
// with, never from inside Send.
type Transport interface {
	Send(frame []byte) error
	Close() error
}

// Deliver hands a reply frame (or a transport failure) back to the host.
type Deliver func(payload []byte, err error)

var ErrNotAttached = errors.New("port has no transport")

// Port is the connection to one board. It identifies the board to the
// scheduler and numbers outgoing frames.
type Port struct {
	name   string
	logger *slog.Logger

	mu        sync.Mutex
	transport Transport
	seq       uint32
}

// NewPort creates a port without a transport; see Attach.
func NewPort(name string, logger *slog.Logger) *Port {
	return &Port{
		name:   name,
		logger: logging.ForBoard(logger, "port", name),
	}
}

// Name returns the board name.
func (p *Port) Name() string { return p.name }

// Attach sets the transport used by Send.
func (p *Port) Attach(t Transport) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.transport = t
}

// Receiver returns a Deliver that posts replies to the scheduler loop as
// port events of p.
func (p *Port) Receiver(post func(scheduler.Port, scheduler.Event) bool) Deliver {
	return func(payload []byte, err error) {
		ev := scheduler.PortEvent(payload)
		ev.Err = err
		if !post(p, ev) {
			p.logger.Debug("reply dropped, loop stopped")
		}
	}
}

// Send assigns the next sequence number to f and transmits it.
func (p *Port) Send(f *Frame) (uint32, error) {
	p.mu.Lock()
	t := p.transport
	p.seq++
	if p.seq == 0 {
		p.seq = 1
	}
	f.Seq = p.seq
	p.mu.Unlock()

	if t == nil {
		return 0, ErrNotAttached
	}
	data, err := EncodeFrame(f)
	if err != nil {
		return 0, err
	}
	p.logger.Debug("frame sent", "seq", f.Seq, "op", f.Op, "registers", len(f.Registers))
	if err := t.Send(data); err != nil {
		return 0, err
	}
	return f.Seq, nil
}

// Close closes the transport, if any.
func (p *Port) Close() error {
	p.mu.Lock()
	t := p.transport
	p.transport = nil
	p.mu.Unlock()
	if t == nil {
		return nil
	}
	return t.Close()
}
