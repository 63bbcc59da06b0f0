// Package sched implements the deadline wheel of spec §4.8: a monotonic
// queue of (deadline, aggregate-id, reason) entries that fires into an
// aggregate's command intake rather than calling into it directly, per
// spec §9's guidance for resolving the scheduler/aggregate cyclic
// reference.
//
// Grounded on the teacher's mempool.Poller.Run (internal/mempool/poller.go)
// for the ctx.Done()-driven dispatch loop shape, generalized from a fixed
// ticker to a container/heap timer wheel so a single time.Timer always
// sleeps until exactly the next deadline instead of polling.
package sched

import (
	"container/heap"
	"context"
	"log"
	"sync"
	"time"
)

// Reason names the cause of a scheduled deadline, per spec §4.8.
type Reason string

const (
	ReasonTableAutoStart     Reason = "table-auto-start"
	ReasonTableActionTimeout Reason = "table-action-timeout"
	ReasonTableNextHand      Reason = "table-next-hand"
	ReasonDuelCommitTimeout  Reason = "duel-commit-timeout"
	ReasonDuelRevealTimeout  Reason = "duel-reveal-timeout"
	ReasonDuelOpenExpiry     Reason = "duel-open-expiry"
)

// Expiry is what the wheel hands to a dispatcher when a deadline fires.
// AggregateID is intentionally an opaque string: the wheel never holds a
// reference to the aggregate itself (spec §9).
type Expiry struct {
	AggregateID string
	Reason      Reason
	Deadline    time.Time
}

// Clock abstracts wall-clock access so tests can drive the wheel with a
// fake clock instead of real sleeps (spec §9).
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

func (realClock) Now() time.Time                  { return time.Now() }
func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

type entry struct {
	deadline time.Time
	id       string
	reason   Reason
	index    int // heap.Interface bookkeeping
	seq      uint64
}

// entryHeap is a min-heap on deadline, used only internally by Wheel.
type entryHeap []*entry

func (h entryHeap) Len() int            { return len(h) }
func (h entryHeap) Less(i, j int) bool  { return h[i].deadline.Before(h[j].deadline) }
func (h entryHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index, h[j].index = i, j
}

func (h *entryHeap) Push(x interface{}) {
	e := x.(*entry)
	e.index = len(*h)
	*h = append(*h, e)
}

func (h *entryHeap) Pop() interface{} {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*h = old[:n-1]
	return e
}

// key identifies a single slot in the wheel; scheduling onto an occupied
// key supersedes the previous deadline (spec §4.8 idempotent rescheduling).
type key struct {
	id     string
	reason Reason
}

// Wheel is a single-writer deadline queue. One dispatcher goroutine wakes
// exactly when the next entry is due and emits it on Expired(); it never
// polls on a fixed tick.
type Wheel struct {
	clock Clock

	mu      sync.Mutex
	heap    entryHeap
	byKey   map[key]*entry
	seq     uint64
	wake    chan struct{}
	expired chan Expiry
}

// New constructs a Wheel using the real wall clock.
func New() *Wheel {
	return NewWithClock(realClock{})
}

// NewWithClock constructs a Wheel driven by clock, for deterministic tests.
func NewWithClock(clock Clock) *Wheel {
	return &Wheel{
		clock:   clock,
		byKey:   make(map[key]*entry),
		wake:    make(chan struct{}, 1),
		expired: make(chan Expiry, 256),
	}
}

// Expired is the channel of fired deadlines. A consumer routes each Expiry
// through its aggregate's command intake (spec §9).
func (w *Wheel) Expired() <-chan Expiry { return w.expired }

// Schedule sets (or replaces) the deadline for (aggregateID, reason).
// Rescheduling the same key supersedes the prior deadline (spec §4.8).
func (w *Wheel) Schedule(aggregateID string, reason Reason, deadline time.Time) {
	w.mu.Lock()
	k := key{id: aggregateID, reason: reason}
	if existing, ok := w.byKey[k]; ok {
		heap.Remove(&w.heap, existing.index)
		delete(w.byKey, k)
	}
	w.seq++
	e := &entry{deadline: deadline, id: aggregateID, reason: reason, seq: w.seq}
	heap.Push(&w.heap, e)
	w.byKey[k] = e
	w.mu.Unlock()

	select {
	case w.wake <- struct{}{}:
	default:
	}
}

// Cancel removes a pending deadline for (aggregateID, reason), if any.
func (w *Wheel) Cancel(aggregateID string, reason Reason) {
	w.mu.Lock()
	defer w.mu.Unlock()
	k := key{id: aggregateID, reason: reason}
	if existing, ok := w.byKey[k]; ok {
		heap.Remove(&w.heap, existing.index)
		delete(w.byKey, k)
	}
}

// Run is the dispatcher loop: it sleeps until the earliest pending
// deadline, fires every entry due at or before now, and otherwise waits
// for either the clock or a reschedule to wake it. It returns when ctx is
// cancelled.
func (w *Wheel) Run(ctx context.Context) {
	for {
		w.mu.Lock()
		var timer <-chan time.Time
		if w.heap.Len() > 0 {
			d := w.heap[0].deadline.Sub(w.clock.Now())
			if d < 0 {
				d = 0
			}
			timer = w.clock.After(d)
		}
		w.mu.Unlock()

		select {
		case <-ctx.Done():
			return
		case <-w.wake:
			continue
		case <-timer:
			w.fireDue()
		}
	}
}

func (w *Wheel) fireDue() {
	now := w.clock.Now()
	var due []Expiry
	w.mu.Lock()
	for w.heap.Len() > 0 && !w.heap[0].deadline.After(now) {
		e := heap.Pop(&w.heap).(*entry)
		delete(w.byKey, key{id: e.id, reason: e.reason})
		due = append(due, Expiry{AggregateID: e.id, Reason: e.reason, Deadline: e.deadline})
	}
	w.mu.Unlock()

	for _, ex := range due {
		select {
		case w.expired <- ex:
		default:
			log.Printf("sched: expired channel full, dropping %s/%s", ex.AggregateID, ex.Reason)
		}
	}
}
