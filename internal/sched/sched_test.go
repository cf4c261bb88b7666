package sched_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dnrj/nucleus/internal/defs"
	"github.com/dnrj/nucleus/internal/sched"
	"github.com/dnrj/nucleus/internal/waitq"
)

// fakeThread is the minimal sched.Schedulable a test needs, mirroring
// thread.Thread_t's own goAhead-channel handshake without depending on the
// thread package (sched sits below thread in spec.md §2's dependency order).
type fakeThread struct {
	mu      sync.Mutex
	state   sched.State
	cancel  bool
	wchan   *waitq.Waitq_t
	goAhead chan struct{}
}

func newFakeThread() *fakeThread {
	return &fakeThread{goAhead: make(chan struct{}, 1)}
}

func (f *fakeThread) State() sched.State { f.mu.Lock(); defer f.mu.Unlock(); return f.state }
func (f *fakeThread) SetState(s sched.State) {
	f.mu.Lock()
	f.state = s
	f.mu.Unlock()
}
func (f *fakeThread) Cancelled() bool { f.mu.Lock(); defer f.mu.Unlock(); return f.cancel }
func (f *fakeThread) SetCancelled(v bool) {
	f.mu.Lock()
	f.cancel = v
	f.mu.Unlock()
}
func (f *fakeThread) Wchan() *waitq.Waitq_t { f.mu.Lock(); defer f.mu.Unlock(); return f.wchan }
func (f *fakeThread) SetWchan(q interface{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if q == nil {
		f.wchan = nil
		return
	}
	f.wchan = q.(*waitq.Waitq_t)
}
func (f *fakeThread) GoAhead() {
	select {
	case f.goAhead <- struct{}{}:
	default:
	}
}
func (f *fakeThread) WaitGoAhead() {
	<-f.goAhead
	f.SetWchan(nil)
}

func TestMakeRunnableThenEnterGrantsTheCPU(t *testing.T) {
	s := sched.New()
	ft := newFakeThread()

	done := make(chan struct{})
	go func() {
		s.Enter(ft)
		require.Same(t, ft, s.Current())
		s.Leave(ft)
		close(done)
	}()
	s.MakeRunnable(ft)
	<-done
	require.Nil(t, s.Current())
}

func TestOnlyOneThreadRunsAtATime(t *testing.T) {
	s := sched.New()
	a := newFakeThread()
	b := newFakeThread()

	aRunning := make(chan struct{})
	bEntered := make(chan struct{}, 1)
	release := make(chan struct{})

	go func() {
		s.Enter(a)
		close(aRunning)
		<-release
		s.Leave(a)
	}()
	s.MakeRunnable(a)
	<-aRunning // a now holds the CPU

	go func() {
		s.Enter(b)
		bEntered <- struct{}{}
		s.Leave(b)
	}()
	s.MakeRunnable(b)

	select {
	case <-bEntered:
		t.Fatal("b entered while a still held the CPU")
	case <-time.After(30 * time.Millisecond):
	}

	close(release)
	<-bEntered
}

func TestSleepOnAndWakeupOn(t *testing.T) {
	s := sched.New()
	q := waitq.New()
	ft := newFakeThread()

	woke := make(chan struct{})
	go func() {
		s.Enter(ft)
		s.SleepOn(ft, q)
		close(woke)
		s.Leave(ft)
	}()
	s.MakeRunnable(ft)

	require.Eventually(t, func() bool { return q.Len() == 1 }, time.Second, time.Millisecond)
	woken := s.WakeupOn(q)
	require.Same(t, ft, woken)
	<-woke
}

func TestCancellableSleepOnWakesWithEINTR(t *testing.T) {
	s := sched.New()
	q := waitq.New()
	ft := newFakeThread()

	result := make(chan struct{ err int })
	go func() {
		s.Enter(ft)
		err := s.CancellableSleepOn(ft, q)
		result <- struct{ err int }{int(err)}
		s.Leave(ft)
	}()
	s.MakeRunnable(ft)

	require.Eventually(t, func() bool { return q.Len() == 1 }, time.Second, time.Millisecond)
	s.Cancel(ft)
	r := <-result
	require.Equal(t, int(-defs.EINTR), r.err)
	require.True(t, q.Empty())
}
