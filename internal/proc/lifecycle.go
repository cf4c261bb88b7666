package proc

import (
	"github.com/dnrj/nucleus/internal/defs"
	"github.com/dnrj/nucleus/internal/kctx"
	"github.com/dnrj/nucleus/internal/limits"
	"github.com/dnrj/nucleus/internal/mm"
	"github.com/dnrj/nucleus/internal/thread"
	"github.com/dnrj/nucleus/internal/vfs"
	"github.com/dnrj/nucleus/internal/vm"
)

// ChildFn is a fork child's entry point: it runs as the child process's
// sole thread, with its own process and kernel context already bound —
// unlike a real fork there is no saved parent instruction pointer to
// resume from in a goroutine-based simulation, so the caller supplies the
// child's entry point directly (documented as a teaching-grade
// simplification of spec.md §4.F).
type ChildFn func(child *Process_t, cctx *kctx.Ctx_t) int

// Fork creates a child of self (spec.md §4.F): a new pid and address space
// sharing the parent's open files and cwd, with every private mapping
// replaced on both sides by a fresh shadow over the same bottom object
// (step 3: "increment the bottom object's refcount by two", which the two
// NewShadow calls below deliver literally) and every shared mapping simply
// re-referenced.
func Fork(ctx *kctx.Ctx_t, pt *ProcTable_t, self *Process_t, name string, childFn ChildFn) (defs.Pid_t, defs.Err_t) {
	child, err := pt.Create(name, self)
	if err != 0 {
		return 0, err
	}

	child.Vmm = self.Vmm.Clone(child)
	parentAreas := self.Vmm.Areas()
	childAreas := child.Vmm.Areas()
	for i, pa := range parentAreas {
		ca := childAreas[i]
		if pa.Flags&vm.MapPrivate != 0 {
			bottom := pa.Obj
			pa.Obj = mm.NewShadow(bottom)
			ca.Obj = mm.NewShadow(bottom)
		} else {
			pa.Obj.Ref()
			ca.Obj = pa.Obj
		}
	}

	// The child's thread.Fn body must close over its own *thread.Thread_t to
	// build a kctx.Ctx_t, but that pointer does not exist until Clone
	// returns; a buffered channel hands it off race-free instead of reading
	// a variable the spawned goroutine might race to see before it is set.
	cctxCh := make(chan *kctx.Ctx_t, 1)
	wrapped := thread.Fn(func(arg1, arg2 any) int {
		cctx := <-cctxCh
		return childFn(child, cctx)
	})

	selfThread := ctx.Self.(*thread.Thread_t)
	childThread := selfThread.Clone(child, wrapped, nil, nil)
	child.addThread(childThread)
	cctxCh <- &kctx.Ctx_t{Self: childThread, Sched: child.Sched}
	child.Sched.MakeRunnable(childThread)

	return child.Pid, 0
}

// findDeadChild returns the first reapable (Dead) child, if any.
func (p *Process_t) findDeadChild() *Process_t {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, c := range p.Children {
		if c.State() == Dead {
			return c
		}
	}
	return nil
}

func (p *Process_t) findChild(pid defs.Pid_t) *Process_t {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, c := range p.Children {
		if c.Pid == pid {
			return c
		}
	}
	return nil
}

func (p *Process_t) hasChildren() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Children) > 0
}

// reap removes child from self's children list, retires its pid from the
// global table, and gives back its slot in the process-count budget (spec.md
// §4.F: reaping — not exiting — is what removes a zombie from the global
// list). By the time a child reaches Dead, proc_cleanup has already run for
// it, so only this bookkeeping remains.
func (p *Process_t) reap(child *Process_t) (defs.Pid_t, int, defs.Err_t) {
	p.mu.Lock()
	for i, c := range p.Children {
		if c == child {
			p.Children = append(p.Children[:i], p.Children[i+1:]...)
			break
		}
	}
	p.mu.Unlock()

	child.Table.remove(child.Pid)
	limits.System.Procs.Give()

	return child.Pid, child.ExitStatus(), 0
}

// Waitpid implements spec.md §4.F: pid == -1 reaps any dead child, sleeping
// on self's PWait queue when none is yet dead; pid > 0 waits for that
// specific child. ECHILD when self has no matching children at all.
func Waitpid(ctx *kctx.Ctx_t, self *Process_t, pid defs.Pid_t, options int) (defs.Pid_t, int, defs.Err_t) {
	if pid == -1 {
		for {
			if dead := self.findDeadChild(); dead != nil {
				return self.reap(dead)
			}
			if !self.hasChildren() {
				return 0, 0, -defs.ECHILD
			}
			if err := ctx.CancellableSleepOn(self.PWait); err != 0 {
				return 0, 0, err
			}
		}
	}

	for {
		child := self.findChild(pid)
		if child == nil {
			return 0, 0, -defs.ECHILD
		}
		if child.State() == Dead {
			return self.reap(child)
		}
		if err := ctx.CancellableSleepOn(self.PWait); err != 0 {
			return 0, 0, err
		}
	}
}

// Exit implements spec.md §4.F: every other thread in the process is
// cancelled, then the calling thread exits itself, which drives
// ThreadExited/cleanup once it is the last thread standing.
func (p *Process_t) Exit(ctx *kctx.Ctx_t, status int) {
	self := ctx.Self.(*thread.Thread_t)

	p.mu.Lock()
	p.exitStatus = status
	others := make([]*thread.Thread_t, 0, len(p.Threads))
	for _, t := range p.Threads {
		if t != self {
			others = append(others, t)
		}
	}
	p.mu.Unlock()

	for _, t := range others {
		thread.Cancel(self, t, status)
	}
	self.Exit(status)
}

// ThreadExited implements thread.ProcHooks: once every thread in the
// process has exited, it runs full process cleanup, then always releases
// the CPU on t's behalf (spec.md §4.D contract).
func (p *Process_t) ThreadExited(t *thread.Thread_t) {
	p.mu.Lock()
	for i, th := range p.Threads {
		if th == t {
			p.Threads = append(p.Threads[:i], p.Threads[i+1:]...)
			break
		}
	}
	last := len(p.Threads) == 0
	p.mu.Unlock()

	if last {
		p.cleanup(t)
	}
	p.Sched.Leave(t)
}

// cleanup is proc_cleanup (spec.md §4.F): record t's return value as the
// process's exit status, release the cwd reference, close every open fd,
// put every vmarea's memory object, reparent live children to init, and
// wake whoever is waitpid'ing on self. The pid itself stays reserved in the
// global table until a parent actually reaps it (Process_t.reap).
func (p *Process_t) cleanup(t *thread.Thread_t) {
	cleanupCtx := &kctx.Ctx_t{Self: t, Sched: p.Sched}

	p.mu.Lock()
	p.state = Dead
	p.exitStatus = t.Retval()
	p.mu.Unlock()

	vfs.Vput(p.Vfs.Cwd.Get())

	for i := 0; i < limits.NFILES; i++ {
		if f := p.Vfs.Fds.Raw(i); f != nil {
			vfs.Fput(f)
			p.Vfs.Fds.Clear(i)
		}
	}

	for _, a := range p.Vmm.Areas() {
		a.Obj.Put(cleanupCtx)
	}

	p.mu.Lock()
	kids := p.Children
	p.Children = nil
	parent := p.Parent
	p.mu.Unlock()

	init := p.Table.Init
	for _, c := range kids {
		c.mu.Lock()
		c.Parent = init
		c.mu.Unlock()
		if init != nil && init != p {
			init.mu.Lock()
			init.Children = append(init.Children, c)
			init.mu.Unlock()
		}
	}

	if parent != nil {
		p.Sched.BroadcastOn(parent.PWait)
	}
}

// KillAll cancels every process other than idle, init, the reserved kernel
// daemon pid, and self (spec.md §6 shutdown sequence), then exits self
// unless self is init itself.
func KillAll(ctx *kctx.Ctx_t, pt *ProcTable_t, self *Process_t) {
	caller := ctx.Self.(*thread.Thread_t)
	for _, p := range pt.All() {
		if p.Pid == defs.Pid_t(defs.PID_IDLE) ||
			p.Pid == defs.Pid_t(defs.PID_INIT) ||
			p.Pid == defs.Pid_t(defs.PID_KERNEL_DAEMON) ||
			p == self {
			continue
		}
		p.mu.Lock()
		threads := append([]*thread.Thread_t(nil), p.Threads...)
		p.mu.Unlock()
		for _, t := range threads {
			thread.Cancel(caller, t, 0)
		}
	}
	if self.Pid != defs.Pid_t(defs.PID_INIT) {
		self.Exit(ctx, 0)
	}
}
