// Package kmutex implements the non-reentrant sleep lock (spec.md §4.C),
// built directly on waitq and sched: ownership is handed off atomically on
// Unlock so no intermediate "free" state is ever observable, which is what
// prevents convoys and re-acquire races under cooperative scheduling.
package kmutex

import (
	"sync"

	"github.com/dnrj/nucleus/internal/defs"
	"github.com/dnrj/nucleus/internal/sched"
	"github.com/dnrj/nucleus/internal/waitq"
)

// Mutex_t is a sleep lock with at most one holder at a time.
type Mutex_t struct {
	mu      sync.Mutex
	holder  sched.Schedulable
	waiters *waitq.Waitq_t
	sched   *sched.Sched_t
}

// New returns an unheld mutex scheduled on s.
func New(s *sched.Sched_t) *Mutex_t {
	return &Mutex_t{waiters: waitq.New(), sched: s}
}

// Lock acquires the mutex for self, sleeping uninterruptibly if it is held.
// It panics if self already holds the mutex (non-reentrant, spec.md §4.C).
func (m *Mutex_t) Lock(self sched.Schedulable) {
	m.mu.Lock()
	if m.holder == self {
		m.mu.Unlock()
		panic("kmutex: thread already holds this mutex")
	}
	if m.holder == nil {
		m.holder = self
		m.mu.Unlock()
		return
	}
	m.mu.Unlock()
	// Unlock() will set m.holder = self before waking us; no further
	// bookkeeping is needed on our side.
	m.sched.SleepOn(self, m.waiters)
}

// LockCancellable is as Lock, but returns -defs.EINTR if self is cancelled
// while parked, without ever becoming the holder. A cancellation that comes
// after Unlock has already handed self the mutex does not undo the handoff:
// LockCancellable then returns 0 with self as the holder.
func (m *Mutex_t) LockCancellable(self sched.Schedulable) defs.Err_t {
	m.mu.Lock()
	if m.holder == self {
		m.mu.Unlock()
		panic("kmutex: thread already holds this mutex")
	}
	if m.holder == nil {
		m.holder = self
		m.mu.Unlock()
		return 0
	}
	m.mu.Unlock()
	err := m.sched.CancellableSleepOn(self, m.waiters)
	if err != 0 && m.Holder() == self {
		return 0
	}
	return err
}

// Unlock releases the mutex held by self. If a thread is waiting, ownership
// transfers directly to it (it becomes the new holder before it is made
// runnable); otherwise the mutex becomes free. Unlock panics if self is not
// the current holder.
func (m *Mutex_t) Unlock(self sched.Schedulable) {
	m.mu.Lock()
	if m.holder != self {
		m.mu.Unlock()
		panic("kmutex: unlock by non-holder")
	}
	next := m.waiters.Dequeue()
	if next == nil {
		m.holder = nil
		m.mu.Unlock()
		return
	}
	nt := next.(sched.Schedulable)
	m.holder = nt
	m.mu.Unlock()
	m.sched.MakeRunnable(nt)
}

// Holder returns the current holder, or nil if the mutex is free. Intended
// for tests and invariant checks (spec.md §8 invariant 7), not control flow.
func (m *Mutex_t) Holder() sched.Schedulable {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.holder
}
