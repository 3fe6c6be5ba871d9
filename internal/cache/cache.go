// Package cache holds the double-buffered register state of the station.
//
// The back buffer absorbs the effects of the commands scheduled in the
// current cycle and is filled by the board sync actions. The front buffer
// is what clients see. SwapBuffers promotes back to front at the end of a
// synchronization round.
package cache

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/me/rspd/pkg/model"
)

var (
	ErrUnknownBoard    = errors.New("unknown board")
	ErrUnknownRegister = errors.New("register out of range")
)

// Bank is the register file of one board.
type Bank struct {
	values   []uint32
	pending  []bool // write not yet confirmed by the board
	requests []bool // read requested for the next round
}

func newBank(n int) *Bank {
	return &Bank{
		values:   make([]uint32, n),
		pending:  make([]bool, n),
		requests: make([]bool, n),
	}
}

// Len returns the number of registers.
func (b *Bank) Len() int { return len(b.values) }

// Value returns register reg.
func (b *Bank) Value(reg int) uint32 { return b.values[reg] }

// Values returns a copy of count registers starting at reg.
func (b *Bank) Values(reg, count int) []uint32 {
	out := make([]uint32, count)
	copy(out, b.values[reg:reg+count])
	return out
}

// Set stores a confirmed value (no pending flag).
func (b *Bank) Set(reg int, v uint32) {
	b.values[reg] = v
}

// Stage stores a value and marks it as pending write.
func (b *Bank) Stage(reg int, v uint32) {
	b.values[reg] = v
	b.pending[reg] = true
}

// RequestRead marks reg for reading in the next round.
func (b *Bank) RequestRead(reg int) {
	b.requests[reg] = true
}

// Pending returns the registers with unconfirmed writes, ascending.
func (b *Bank) Pending() []int {
	return flagged(b.pending)
}

// Requested returns the registers marked for reading, ascending.
func (b *Bank) Requested() []int {
	return flagged(b.requests)
}

// Confirm clears the pending flag of reg.
func (b *Bank) Confirm(reg int) {
	b.pending[reg] = false
}

// Fulfil stores a value read from hardware and clears the read request.
func (b *Bank) Fulfil(reg int, v uint32) {
	b.values[reg] = v
	b.requests[reg] = false
}

func (b *Bank) clearRequests() {
	clear(b.requests)
}

func (b *Bank) copyFrom(o *Bank) {
	copy(b.values, o.values)
	copy(b.pending, o.pending)
	copy(b.requests, o.requests)
}

func flagged(flags []bool) []int {
	var out []int
	for i, f := range flags {
		if f {
			out = append(out, i)
		}
	}
	return out
}

// State is one of the two buffers.
type State struct {
	// Time is the tick of the round that produced this state.
	Time model.Timestamp
	// NextUpdate is the tick at which the next round is expected to close.
	NextUpdate model.Timestamp

	banks map[string]*Bank
	order []string
}

func newState(boards map[string]int) *State {
	s := &State{banks: make(map[string]*Bank, len(boards))}
	for name, n := range boards {
		s.banks[name] = newBank(n)
		s.order = append(s.order, name)
	}
	sort.Strings(s.order)
	return s
}

// Bank returns the register file of board.
func (s *State) Bank(board string) (*Bank, error) {
	b, ok := s.banks[board]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownBoard, board)
	}
	return b, nil
}

// CheckRange validates a register range on board.
func (s *State) CheckRange(board string, reg, count int) error {
	b, err := s.Bank(board)
	if err != nil {
		return err
	}
	if reg < 0 || count < 1 || reg+count > b.Len() {
		return fmt.Errorf("%w: %s[%d:%d] (board has %d)", ErrUnknownRegister, board, reg, reg+count, b.Len())
	}
	return nil
}

// Boards returns the board names in sorted order.
func (s *State) Boards() []string {
	return append([]string(nil), s.order...)
}

// Clear drops the read-request flags of every bank. Pending writes are
// kept until a board confirms them.
func (s *State) Clear() {
	for _, b := range s.banks {
		b.clearRequests()
	}
}

// Schedule records the tick of the next update cycle.
func (s *State) Schedule(next model.Timestamp) {
	s.NextUpdate = next
}

// Print writes a register dump.
func (s *State) Print(w io.Writer) {
	fmt.Fprintf(w, "time=%s next=%s\n", s.Time, s.NextUpdate)
	for _, name := range s.order {
		b := s.banks[name]
		var sb strings.Builder
		for i, v := range b.values {
			if i > 0 {
				sb.WriteByte(' ')
			}
			fmt.Fprintf(&sb, "%08x", v)
			if b.pending[i] {
				sb.WriteByte('*')
			}
		}
		fmt.Fprintf(w, "%-8s %s\n", name, sb.String())
	}
}

// Snapshot is a JSON view of a State.
type Snapshot struct {
	Time       model.Timestamp     `json:"time"`
	NextUpdate model.Timestamp     `json:"next_update"`
	Boards     map[string][]uint32 `json:"boards"`
	Pending    map[string][]int    `json:"pending,omitempty"`
}

// Snapshot copies the state.
func (s *State) Snapshot() Snapshot {
	snap := Snapshot{
		Time:       s.Time,
		NextUpdate: s.NextUpdate,
		Boards:     make(map[string][]uint32, len(s.banks)),
	}
	for name, b := range s.banks {
		snap.Boards[name] = b.Values(0, b.Len())
		if p := b.Pending(); len(p) > 0 {
			if snap.Pending == nil {
				snap.Pending = make(map[string][]int)
			}
			snap.Pending[name] = p
		}
	}
	return snap
}

func (s *State) copyFrom(o *State) {
	s.Time = o.Time
	s.NextUpdate = o.NextUpdate
	for name, b := range s.banks {
		b.copyFrom(o.banks[name])
	}
}

// Cache is the front/back pair.
type Cache struct {
	front *State
	back  *State
}

// New creates a cache for the given boards (name -> register count).
func New(boards map[string]int) *Cache {
	return &Cache{
		front: newState(boards),
		back:  newState(boards),
	}
}

// Front returns the externally visible state.
func (c *Cache) Front() *State { return c.front }

// Back returns the state being assembled for the current round.
func (c *Cache) Back() *State { return c.back }

// SwapBuffers promotes back to front. The new back starts as a copy of
// the new front without read requests. Writes a board did not confirm
// stay pending and are flushed again in the next round.
func (c *Cache) SwapBuffers() {
	c.front, c.back = c.back, c.front
	c.back.copyFrom(c.front)
	c.back.Clear()
}
