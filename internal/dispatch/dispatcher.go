package dispatch

import (
	"sync"

	"snapsolve/internal/types"
)

// Sink receives results in delivery order. Deliver must not block for long;
// it is called while the Dispatcher holds its lock.
type Sink interface {
	Deliver(Result)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Result)

func (f SinkFunc) Deliver(r Result) { f(r) }

// Ticket identifies one issued transition attempt.
type Ticket struct {
	SessionID string
	Seq       uint64
	Stage     types.Transition
}

type slot struct {
	done     bool
	suppress bool
	result   Result
}

type sessionQueue struct {
	nextSeq uint64
	deliver uint64
	pending map[uint64]*slot
}

// Dispatcher assigns per-session sequence numbers at issuance and releases
// results strictly in that order. Abandoned attempts release their slot
// without emitting anything.
type Dispatcher struct {
	sink Sink

	mu       sync.Mutex
	sessions map[string]*sessionQueue
}

func NewDispatcher(sink Sink) *Dispatcher {
	if sink == nil {
		sink = SinkFunc(func(Result) {})
	}
	return &Dispatcher{sink: sink, sessions: map[string]*sessionQueue{}}
}

// Begin reserves the next sequence number for sessionID.
func (d *Dispatcher) Begin(sessionID string, stage types.Transition) Ticket {
	d.mu.Lock()
	defer d.mu.Unlock()
	q := d.sessions[sessionID]
	if q == nil {
		q = &sessionQueue{nextSeq: 1, deliver: 1, pending: map[uint64]*slot{}}
		d.sessions[sessionID] = q
	}
	t := Ticket{SessionID: sessionID, Seq: q.nextSeq, Stage: stage}
	q.pending[t.Seq] = &slot{}
	q.nextSeq++
	return t
}

// Complete records the outcome for t and flushes every result that is now in order.
// It reports whether t's result was (or will be) delivered.
func (d *Dispatcher) Complete(t Ticket, r Result) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	q, s := d.slotLocked(t)
	if s == nil || s.done {
		return false
	}
	r.SessionID = t.SessionID
	r.Seq = t.Seq
	r.Stage = t.Stage
	s.done = true
	s.result = r
	d.flushLocked(q)
	return true
}

// Abandon releases t without emitting a message.
func (d *Dispatcher) Abandon(t Ticket) {
	d.mu.Lock()
	defer d.mu.Unlock()
	q, s := d.slotLocked(t)
	if s == nil || s.done {
		return
	}
	s.done = true
	s.suppress = true
	d.flushLocked(q)
}

// Drop forgets sessionID. Outstanding tickets for it are suppressed.
func (d *Dispatcher) Drop(sessionID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.sessions, sessionID)
}

// Pending reports how many attempts for sessionID have not been released yet.
func (d *Dispatcher) Pending(sessionID string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	q := d.sessions[sessionID]
	if q == nil {
		return 0
	}
	return len(q.pending)
}

func (d *Dispatcher) slotLocked(t Ticket) (*sessionQueue, *slot) {
	q := d.sessions[t.SessionID]
	if q == nil {
		return nil, nil
	}
	return q, q.pending[t.Seq]
}

func (d *Dispatcher) flushLocked(q *sessionQueue) {
	for {
		s, ok := q.pending[q.deliver]
		if !ok || !s.done {
			return
		}
		delete(q.pending, q.deliver)
		q.deliver++
		if !s.suppress {
			d.sink.Deliver(s.result)
		}
	}
}
