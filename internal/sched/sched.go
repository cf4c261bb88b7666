// Package sched implements the single-CPU cooperative scheduler (spec.md
// §4.B): exactly one goroutine performs kernel-visible work at a time, and a
// thread only stops running at an explicit suspension point.
//
// The "kernel stack + saved context" the teacher's Thread_t would hold is
// instead a live goroutine per thread; the cooperative, non-preemptive
// discipline is enforced by a golang.org/x/sync/semaphore.Weighted of weight
// one standing in for the single CPU core. A thread wishing to run contends
// for that semaphore; Acquire serves waiters in the order they call it, so
// FIFO wake order (spec.md §5) falls out of the semaphore's own fairness
// guarantee for the common single-target wakeup (wakeup_on, mutex handoff).
// A thread parked on a wait queue is blocked on its own private channel
// instead, and only starts contending for the CPU once something makes it
// Runnable again — this is what keeps a sleeping thread from racing a woken
// one for the core.
package sched

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/dnrj/nucleus/internal/defs"
	"github.com/dnrj/nucleus/internal/kstats"
	"github.com/dnrj/nucleus/internal/waitq"
)

// State is a thread's position in the lifecycle state machine (spec.md §3).
type State int

const (
	Runnable State = iota
	Running
	SleepUninterruptible
	SleepCancellable
	Exited
)

func (s State) String() string {
	switch s {
	case Runnable:
		return "runnable"
	case Running:
		return "running"
	case SleepUninterruptible:
		return "sleep-uninterruptible"
	case SleepCancellable:
		return "sleep-cancellable"
	case Exited:
		return "exited"
	default:
		return "unknown"
	}
}

// Schedulable is the minimal view the scheduler needs of a kernel thread.
// thread.Thread_t implements it; thread depends on sched, never the reverse,
// matching the A -> B -> C -> D dependency order in spec.md §2.
type Schedulable interface {
	waitq.Parked

	State() State
	SetState(State)

	Cancelled() bool
	SetCancelled(bool)

	// Wchan reports the wait queue this thread is currently parked on, or
	// nil. Used by Cancel to pull a cancellable sleeper out of its queue.
	Wchan() *waitq.Waitq_t

	// GoAhead must not block: it signals that this thread may now contend
	// for the CPU. WaitGoAhead blocks the thread's own goroutine until
	// GoAhead has been called for it.
	GoAhead()
	WaitGoAhead()
}

// Sched_t is the process-wide cooperative scheduler.
type Sched_t struct {
	cpu *semaphore.Weighted

	// Stats, if set, is incremented on every CPU handoff. Left nil by New
	// so tests that have no registry to report to pay nothing for it.
	Stats *kstats.Kstats_t

	mu      sync.Mutex
	current Schedulable
}

// New returns a scheduler with its single CPU slot free.
func New() *Sched_t {
	return &Sched_t{cpu: semaphore.NewWeighted(1)}
}

// Current returns the thread presently holding the CPU, or nil if none does
// (the system is idle).
func (s *Sched_t) Current() Schedulable {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

func (s *Sched_t) setCurrent(t Schedulable) {
	s.mu.Lock()
	s.current = t
	s.mu.Unlock()
}

// MakeRunnable sets t's state to Runnable and lets its goroutine start
// contending for the CPU. It does not block and does not itself run t.
func (s *Sched_t) MakeRunnable(t Schedulable) {
	t.SetState(Runnable)
	t.GoAhead()
}

// Enter is called by a thread's own goroutine: once, the first time it is
// scheduled, and again every time it resumes after yielding the CPU. It
// blocks until the thread has been made runnable and has won the CPU.
func (s *Sched_t) Enter(t Schedulable) {
	t.WaitGoAhead()
	_ = s.cpu.Acquire(context.Background(), 1)
	t.SetState(Running)
	s.setCurrent(t)
	if s.Stats != nil {
		s.Stats.ContextSwitch.Inc()
	}
}

// Leave releases the CPU. The caller must already have moved t out of the
// Running state and, if parking t on a wait queue, have enqueued it there.
func (s *Sched_t) Leave(t Schedulable) {
	s.mu.Lock()
	if s.current == t {
		s.current = nil
	}
	s.mu.Unlock()
	s.cpu.Release(1)
}

// SleepOn parks t on q in SleepUninterruptible and yields the CPU. It
// returns once some WakeupOn/BroadcastOn call makes t runnable again.
func (s *Sched_t) SleepOn(t Schedulable, q *waitq.Waitq_t) {
	t.SetState(SleepUninterruptible)
	q.Enqueue(t)
	s.Leave(t)
	s.Enter(t)
}

// CancellableSleepOn is as SleepOn, but t may be woken early by Cancel; in
// that case it returns -defs.EINTR without ever having been dequeued by a
// WakeupOn/BroadcastOn call. On a normal wake it returns 0.
func (s *Sched_t) CancellableSleepOn(t Schedulable, q *waitq.Waitq_t) defs.Err_t {
	t.SetState(SleepCancellable)
	q.Enqueue(t)
	s.Leave(t)
	s.Enter(t)
	if t.Cancelled() {
		return -defs.EINTR
	}
	return 0
}

// WakeupOn dequeues one parked thread from q (FIFO), makes it runnable, and
// returns it, or returns nil if q was empty.
func (s *Sched_t) WakeupOn(q *waitq.Waitq_t) Schedulable {
	v := q.Dequeue()
	if v == nil {
		return nil
	}
	t := v.(Schedulable)
	s.MakeRunnable(t)
	return t
}

// BroadcastOn makes every thread parked on q runnable, in FIFO order.
func (s *Sched_t) BroadcastOn(q *waitq.Waitq_t) {
	for _, v := range q.Broadcast() {
		s.MakeRunnable(v.(Schedulable))
	}
}

// Cancel sets t's cancellation flag. If t is currently in cancellable
// sleep, it is pulled out of its wait queue and made runnable immediately,
// waking with -defs.EINTR; otherwise this only sets the flag, to be
// observed by a future cancellable sleep.
func (s *Sched_t) Cancel(t Schedulable) {
	t.SetCancelled(true)
	if t.State() == SleepCancellable {
		if q := t.Wchan(); q != nil {
			q.Remove(t)
		}
		s.MakeRunnable(t)
	}
}
