// Package thread implements the kernel thread (spec.md §4.D): a goroutine
// plus the per-thread state machine the scheduler drives. Ownership of the
// thread list lives in the owning process (spec.md §3); this package only
// knows its owner through the small ProcHooks callback, to avoid an import
// cycle with proc (thread depends on sched, proc depends on thread).
package thread

import (
	"sync"

	"github.com/dnrj/nucleus/internal/defs"
	"github.com/dnrj/nucleus/internal/sched"
	"github.com/dnrj/nucleus/internal/waitq"
)

// ProcHooks is implemented by the owning process.
type ProcHooks interface {
	// ThreadExited is invoked by the last act of a thread's life, once its
	// state is already Exited. The hook decides whether this was the
	// process's last live thread and, if so, runs full process cleanup; in
	// either case it must end by releasing the CPU (sched.Leave).
	ThreadExited(t *Thread_t)
}

// Fn is a thread body: the "func(arg1, arg2)" entry point from spec.md §4.D.
type Fn func(arg1, arg2 any) int

// Thread_t is one kernel thread.
type Thread_t struct {
	Tid   defs.Tid_t
	Name  string
	Sched *sched.Sched_t
	Owner ProcHooks

	mu        sync.Mutex
	state     sched.State
	cancelled bool
	wchan     *waitq.Waitq_t
	retval    int
	exited    bool

	goAhead chan struct{}
}

var nextTid int64
var tidMu sync.Mutex

func allocTid() defs.Tid_t {
	tidMu.Lock()
	defer tidMu.Unlock()
	nextTid++
	return defs.Tid_t(nextTid)
}

// Create allocates a new thread bound to owner and s, starts its goroutine,
// and makes it Runnable (spec.md §4.D: "state = Runnable"). The goroutine
// runs fn(arg1, arg2) and then exits with its return value. Create never
// runs fn itself synchronously; fn starts once the thread wins the CPU.
func Create(owner ProcHooks, s *sched.Sched_t, name string, fn Fn, arg1, arg2 any) *Thread_t {
	t := &Thread_t{
		Tid:     allocTid(),
		Name:    name,
		Sched:   s,
		Owner:   owner,
		state:   sched.Runnable,
		goAhead: make(chan struct{}, 1),
	}
	go func() {
		s.Enter(t)
		ret := fn(arg1, arg2)
		t.Exit(ret)
	}()
	s.MakeRunnable(t)
	return t
}

// Clone deep-copies what is required to resume t2 in a new process: fresh
// list linkage and a fresh goroutine. The goroutine is started here but
// blocks in Sched.Enter until t2 is made runnable, which Clone does not do —
// the caller (fork) finishes setting up the child and then calls
// sched.MakeRunnable (spec.md §4.F step 4/7).
func (t *Thread_t) Clone(owner ProcHooks, fn Fn, arg1, arg2 any) *Thread_t {
	t2 := &Thread_t{
		Tid:     allocTid(),
		Name:    t.Name,
		Sched:   t.Sched,
		Owner:   owner,
		state:   sched.Runnable,
		goAhead: make(chan struct{}, 1),
	}
	go func() {
		t.Sched.Enter(t2)
		ret := fn(arg1, arg2)
		t2.Exit(ret)
	}()
	return t2
}

// --- sched.Schedulable ---

func (t *Thread_t) State() sched.State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

func (t *Thread_t) SetState(s sched.State) {
	t.mu.Lock()
	t.state = s
	t.mu.Unlock()
}

func (t *Thread_t) Cancelled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cancelled
}

func (t *Thread_t) SetCancelled(v bool) {
	t.mu.Lock()
	t.cancelled = v
	t.mu.Unlock()
}

func (t *Thread_t) Wchan() *waitq.Waitq_t {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.wchan
}

// SetWchan implements waitq.Parked; q is nil when the thread is removed
// from a queue (woken) and a *waitq.Waitq_t while parked.
func (t *Thread_t) SetWchan(q interface{}) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if q == nil {
		t.wchan = nil
		return
	}
	t.wchan = q.(*waitq.Waitq_t)
}

func (t *Thread_t) GoAhead() {
	select {
	case t.goAhead <- struct{}{}:
	default:
		// already signaled and not yet consumed; MakeRunnable is not
		// expected to be called twice on an already-runnable thread, but
		// a redundant signal must never block the caller.
	}
}

func (t *Thread_t) WaitGoAhead() {
	<-t.goAhead
	t.SetWchan(nil)
}

// --- lifecycle ---

// Retval returns the value this (already-exited) thread exited with.
func (t *Thread_t) Retval() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.retval
}

// Exit sets the thread's exit value, marks it Exited, asserts it is parked
// on no wait queue, and hands off to the owning process's cleanup hook
// (spec.md §4.D). If there is no owner (a thread created outside any
// process, e.g. in a unit test), it simply releases the CPU.
//
// Exit is idempotent: a thread body may call Process_t.Exit itself (to set
// an explicit status and cancel its siblings) and then simply return, which
// drives this same method a second time via the Create/Clone goroutine
// wrapper. The second call is a no-op rather than a double cleanup/double
// CPU-release.
func (t *Thread_t) Exit(retval int) {
	t.mu.Lock()
	if t.exited {
		t.mu.Unlock()
		return
	}
	if t.wchan != nil {
		t.mu.Unlock()
		panic("thread exiting while still parked on a wait queue")
	}
	t.exited = true
	t.retval = retval
	t.mu.Unlock()
	t.SetState(sched.Exited)
	if t.Owner != nil {
		t.Owner.ThreadExited(t)
		return
	}
	t.Sched.Leave(t)
}

// Cancel is the thread-layer wrapper around sched.Cancel (spec.md §4.D):
// cancelling self is equivalent to exiting; cancelling another thread
// stashes retval and wakes it if it is in cancellable sleep.
func Cancel(self, target *Thread_t, retval int) {
	if self == target {
		self.Exit(retval)
		return
	}
	target.mu.Lock()
	target.retval = retval
	target.mu.Unlock()
	target.Sched.Cancel(target)
}
