package scheduler

import (
	"container/heap"

	"github.com/me/rspd/pkg/model"
)

// entry is a queued command. seq is the admission sequence number and
// breaks timestamp ties FIFO; it travels with the command between queues.
type entry struct {
	cmd   Command
	seq   uint64
	index int
}

type entryHeap []*entry

func (h entryHeap) Len() int { return len(h) }

func (h entryHeap) Less(i, j int) bool {
	if c := h[i].cmd.Timestamp().Compare(h[j].cmd.Timestamp()); c != 0 {
		return c < 0
	}
	return h[i].seq < h[j].seq
}

func (h entryHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *entryHeap) Push(x any) {
	e := x.(*entry)
	e.index = len(*h)
	*h = append(*h, e)
}

func (h *entryHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*h = old[:n-1]
	return e
}

// Queue orders commands by (timestamp, admission order).
type Queue struct {
	name string
	h    entryHeap
	seq  *uint64
}

// NewQueue creates an empty queue with its own sequence counter.
func NewQueue(name string) *Queue {
	return &Queue{name: name, seq: new(uint64)}
}

func newQueueWithSeq(name string, seq *uint64) *Queue {
	return &Queue{name: name, seq: seq}
}

// Name returns the queue's role.
func (q *Queue) Name() string { return q.name }

// Len returns the number of queued commands.
func (q *Queue) Len() int { return len(q.h) }

// Push admits cmd.
func (q *Queue) Push(cmd Command) {
	*q.seq++
	q.pushEntry(&entry{cmd: cmd, seq: *q.seq})
}

func (q *Queue) pushEntry(e *entry) {
	heap.Push(&q.h, e)
}

func (q *Queue) popEntry() *entry {
	return heap.Pop(&q.h).(*entry)
}

// peek returns the earliest command without removing it, or nil.
func (q *Queue) peek() Command {
	if len(q.h) == 0 {
		return nil
	}
	return q.h[0].cmd
}

// Pop removes and returns the earliest command, or nil.
func (q *Queue) Pop() Command {
	if len(q.h) == 0 {
		return nil
	}
	return q.popEntry().cmd
}

// commands returns the queued commands in order without modifying the queue.
func (q *Queue) commands() []Command {
	tmp := make(entryHeap, len(q.h))
	for i, e := range q.h {
		tmp[i] = &entry{cmd: e.cmd, seq: e.seq}
	}
	heap.Init(&tmp)
	out := make([]Command, 0, len(tmp))
	for tmp.Len() > 0 {
		out = append(out, heap.Pop(&tmp).(*entry).cmd)
	}
	return out
}

// leadTime returns how far ahead of its timestamp an operation must be
// dispatched: writes have to reach the hardware one interval early to take
// effect at their nominal time.
func leadTime(op model.Operation, interval int64) int64 {
	if op == model.OperationWrite {
		return interval
	}
	return 0
}

// popDue returns the entries due at current, in order. An entry is due when
// its timestamp <= current + leadTime(op). With keep set the entries stay
// queued and copies are returned (periodic queue); otherwise they are
// removed (later queue).
//
// Entries are inspected in order up to current+interval, the largest lead
// time. A read in that window that is not due yet does not block a write
// behind it.
func (q *Queue) popDue(current model.Timestamp, interval int64, keep bool) []*entry {
	bound := current.Add(interval)
	var due, skipped []*entry
	for len(q.h) > 0 {
		ts := q.h[0].cmd.Timestamp()
		if bound.Before(ts) {
			break
		}
		e := q.popEntry()
		if ts.BeforeOrEqual(current.Add(leadTime(e.cmd.Operation(), interval))) {
			due = append(due, e)
		} else {
			skipped = append(skipped, e)
		}
	}
	for _, e := range skipped {
		q.pushEntry(e)
	}
	if !keep {
		return due
	}
	copies := make([]*entry, len(due))
	for i, e := range due {
		q.pushEntry(e)
		copies[i] = &entry{cmd: e.cmd, seq: e.seq}
	}
	return copies
}

// RemoveByOwner drops every command owned by owner (and with the given
// handle, if handle is non-nil) and returns the removed commands. The
// relative order of the remaining commands is unchanged.
func (q *Queue) RemoveByOwner(owner Port, handle *string) []Command {
	var removed []Command
	kept := q.h[:0]
	for _, e := range q.h {
		if e.cmd.Owner() == owner && (handle == nil || e.cmd.Handle() == *handle) {
			removed = append(removed, e.cmd)
			continue
		}
		kept = append(kept, e)
	}
	for i := len(kept); i < len(q.h); i++ {
		q.h[i] = nil
	}
	q.h = kept
	for i, e := range q.h {
		e.index = i
	}
	heap.Init(&q.h)
	return removed
}

// Reschedule moves cmd to ts. It returns false if cmd is not queued.
func (q *Queue) Reschedule(cmd Command, ts model.Timestamp) bool {
	for _, e := range q.h {
		if e.cmd == cmd {
			cmd.SetTimestamp(ts)
			heap.Fix(&q.h, e.index)
			return true
		}
	}
	return false
}
