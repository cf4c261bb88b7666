package thread_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dnrj/nucleus/internal/sched"
	"github.com/dnrj/nucleus/internal/thread"
)

// recordingOwner captures the thread passed to ThreadExited and signals a
// channel, giving tests a synchronization point that does not poll
// scheduler state. Like every real ProcHooks implementation it must still
// release the CPU on the exiting thread's behalf.
type recordingOwner struct {
	s      *sched.Sched_t
	exited chan *thread.Thread_t
}

func newRecordingOwner(s *sched.Sched_t) *recordingOwner {
	return &recordingOwner{s: s, exited: make(chan *thread.Thread_t, 8)}
}

func (o *recordingOwner) ThreadExited(t *thread.Thread_t) {
	o.exited <- t
	o.s.Leave(t)
}

func TestCreateRunsBodyAndExits(t *testing.T) {
	s := sched.New()
	owner := newRecordingOwner(s)

	t1 := thread.Create(owner, s, "worker", func(arg1, arg2 any) int {
		return 42
	}, nil, nil)

	exited := <-owner.exited
	require.Same(t, t1, exited)
	require.Equal(t, 42, t1.Retval())
	require.Equal(t, sched.Exited, t1.State())
}

func TestExitIsIdempotent(t *testing.T) {
	s := sched.New()
	owner := newRecordingOwner(s)

	t1 := thread.Create(owner, s, "double-exit", func(arg1, arg2 any) int {
		return 1
	}, nil, nil)
	<-owner.exited

	// A second Exit call (as happens when a body calls Process_t.Exit itself
	// and then also returns normally) must not re-run the owner hook or
	// overwrite the first retval.
	t1.Exit(99)
	require.Equal(t, 1, t1.Retval())
	require.Len(t, owner.exited, 0)
}

func TestCloneStartsASeparateThreadUnderTheSameOwner(t *testing.T) {
	s := sched.New()
	owner := newRecordingOwner(s)

	parentDone := make(chan *thread.Thread_t, 1)
	parent := thread.Create(owner, s, "parent", func(arg1, arg2 any) int {
		parentDone <- nil
		return 0
	}, nil, nil)
	<-owner.exited

	child := parent.Clone(owner, func(arg1, arg2 any) int {
		return 7
	}, nil, nil)
	s.MakeRunnable(child)

	exited := <-owner.exited
	require.Same(t, child, exited)
	require.Equal(t, 7, child.Retval())
	require.NotEqual(t, parent.Tid, child.Tid)
}

func TestCancelSelfIsEquivalentToExit(t *testing.T) {
	s := sched.New()
	owner := newRecordingOwner(s)

	started := make(chan struct{})
	proceed := make(chan struct{})
	var self *thread.Thread_t
	self = thread.Create(owner, s, "cancel-self", func(arg1, arg2 any) int {
		close(started)
		<-proceed
		thread.Cancel(self, self, 13)
		return 0 // unreachable in a real kernel; Cancel(self, self, ...) exits directly
	}, nil, nil)
	<-started
	close(proceed)

	exited := <-owner.exited
	require.Same(t, self, exited)
	require.Equal(t, 13, self.Retval())
}
