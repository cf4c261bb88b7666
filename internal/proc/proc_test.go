package proc_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dnrj/nucleus/internal/defs"
	"github.com/dnrj/nucleus/internal/kctx"
	"github.com/dnrj/nucleus/internal/limits"
	"github.com/dnrj/nucleus/internal/memfs"
	"github.com/dnrj/nucleus/internal/proc"
	"github.com/dnrj/nucleus/internal/sched"
	"github.com/dnrj/nucleus/internal/thread"
)

// harnessOwner owns the threads runAsThread starts and only releases the CPU
// when one exits. Were init their owner, each such thread would be init's
// last thread, and its exit would run init's process cleanup (dropping
// init's children) between the steps of a test.
type harnessOwner struct{ s *sched.Sched_t }

func (o harnessOwner) ThreadExited(t *thread.Thread_t) { o.s.Leave(t) }

// runAsThread starts fn as a fresh thread and blocks until it exits, handing
// fn a ready-to-use kernel context. This is the
// thread.Create-plus-done-channel synchronization pattern every test in this
// file uses in place of polling scheduler state.
func runAsThread(s *sched.Sched_t, fn func(ctx *kctx.Ctx_t)) {
	ctxCh := make(chan *kctx.Ctx_t, 1)
	done := make(chan struct{}, 1)
	body := func(arg1, arg2 any) int {
		fn(<-ctxCh)
		close(done)
		return 0
	}
	t := thread.Create(harnessOwner{s}, s, "test", body, nil, nil)
	ctxCh <- &kctx.Ctx_t{Self: t, Sched: s}
	<-done
}

func boot() (*sched.Sched_t, *proc.ProcTable_t, *proc.Process_t) {
	s := sched.New()
	fs := memfs.New()
	pt := proc.NewTable(s)
	idle := pt.CreateIdle(fs.Root)
	init, err := pt.Create("init", idle)
	if err != 0 {
		panic(err)
	}
	return s, pt, init
}

func TestForkThenWaitpidReapsChild(t *testing.T) {
	s, pt, init := boot()

	var childPid defs.Pid_t
	runAsThread(s, func(ctx *kctx.Ctx_t) {
		childFn := func(child *proc.Process_t, cctx *kctx.Ctx_t) int {
			return 0
		}
		pid, err := proc.Fork(ctx, pt, init, "child", childFn)
		require.Zero(t, err)
		childPid = pid
	})
	require.NotZero(t, childPid)

	var reapedPid defs.Pid_t
	var status int
	runAsThread(s, func(ctx *kctx.Ctx_t) {
		pid, st, err := proc.Waitpid(ctx, init, childPid, defs.WAIT_NONE)
		require.Zero(t, err)
		reapedPid = pid
		status = st
	})
	require.Equal(t, childPid, reapedPid)
	require.Zero(t, status)
}

func TestWaitpidAnyReapsTwoChildren(t *testing.T) {
	s, pt, init := boot()

	seen := map[defs.Pid_t]bool{}
	runAsThread(s, func(ctx *kctx.Ctx_t) {
		for i := 0; i < 2; i++ {
			childFn := func(child *proc.Process_t, cctx *kctx.Ctx_t) int { return 0 }
			pid, err := proc.Fork(ctx, pt, init, "child", childFn)
			require.Zero(t, err)
			seen[pid] = false
		}
	})
	require.Len(t, seen, 2)

	runAsThread(s, func(ctx *kctx.Ctx_t) {
		for i := 0; i < 2; i++ {
			pid, _, err := proc.Waitpid(ctx, init, -1, defs.WAIT_NONE)
			require.Zero(t, err)
			_, wasChild := seen[pid]
			require.True(t, wasChild)
			seen[pid] = true
		}
		_, _, err := proc.Waitpid(ctx, init, -1, defs.WAIT_NONE)
		require.Equal(t, -defs.ECHILD, err)
	})
	for pid, reaped := range seen {
		require.True(t, reaped, "pid %d was never reaped", pid)
	}
}

func TestExitStatusPropagatesToWaitpid(t *testing.T) {
	s, pt, init := boot()

	var childPid defs.Pid_t
	runAsThread(s, func(ctx *kctx.Ctx_t) {
		childFn := func(child *proc.Process_t, cctx *kctx.Ctx_t) int {
			child.Exit(cctx, 42)
			return 0
		}
		pid, err := proc.Fork(ctx, pt, init, "child", childFn)
		require.Zero(t, err)
		childPid = pid
	})

	var status int
	runAsThread(s, func(ctx *kctx.Ctx_t) {
		_, st, err := proc.Waitpid(ctx, init, childPid, defs.WAIT_NONE)
		require.Zero(t, err)
		status = st
	})
	require.Equal(t, 42, status)
}

// TestZombiePidNotReusedBeforeReap guards spec.md's testable invariant 1
// (the global process list holds exactly one process per live pid): a dead,
// unreaped child must still occupy its pid and its process-budget slot,
// since only waitpid's reap step retires either.
func TestZombiePidNotReusedBeforeReap(t *testing.T) {
	s, pt, init := boot()

	var childPid defs.Pid_t
	var budgetAfterFork int64
	runAsThread(s, func(ctx *kctx.Ctx_t) {
		budgetBefore := limits.System.Procs.Remaining()
		childFn := func(child *proc.Process_t, cctx *kctx.Ctx_t) int { return 0 }
		pid, err := proc.Fork(ctx, pt, init, "child", childFn)
		require.Zero(t, err)
		childPid = pid
		budgetAfterFork = limits.System.Procs.Remaining()
		require.Equal(t, budgetBefore-1, budgetAfterFork)

		// The calling thread still holds the CPU at this point, so the
		// child (merely Runnable) cannot have run, let alone reached Dead;
		// its pid must still be reserved in the global table regardless.
		_, stillLive := pt.Lookup(pid)
		require.True(t, stillLive)
	})

	// Still unreaped: pid and budget slot remain held.
	_, stillLive := pt.Lookup(childPid)
	require.True(t, stillLive)
	require.Equal(t, budgetAfterFork, limits.System.Procs.Remaining())

	runAsThread(s, func(ctx *kctx.Ctx_t) {
		pid, _, err := proc.Waitpid(ctx, init, childPid, defs.WAIT_NONE)
		require.Zero(t, err)
		require.Equal(t, childPid, pid)
	})

	_, stillLive = pt.Lookup(childPid)
	require.False(t, stillLive, "reap must retire the pid from the global table")
	require.Equal(t, budgetAfterFork+1, limits.System.Procs.Remaining(),
		"reap must return the process-budget slot")
}
