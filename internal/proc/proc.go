// Package proc implements the process container and its fork/waitpid/exit
// lifecycle (spec.md §4.E/§4.F), grounded on the teacher's proc package
// naming (Proc_t, ptable) and the Weenix do_fork/do_waitpid/proc_cleanup
// shape found in original_source/kernel/proc.
package proc

import (
	"sync"

	"github.com/dnrj/nucleus/internal/defs"
	"github.com/dnrj/nucleus/internal/limits"
	"github.com/dnrj/nucleus/internal/sched"
	"github.com/dnrj/nucleus/internal/thread"
	"github.com/dnrj/nucleus/internal/vfs"
	"github.com/dnrj/nucleus/internal/vm"
	"github.com/dnrj/nucleus/internal/waitq"
)

// State is a process's lifecycle state (spec.md §3).
type State int

const (
	Running State = iota
	Dead
)

// Process_t is the container of a pid's threads, file table, cwd, and
// address space (spec.md §3).
type Process_t struct {
	Pid   defs.Pid_t
	Name  string
	Sched *sched.Sched_t
	Vfs   *vfs.Ctx_t
	Vmm   *vm.Vmmap_t
	Table *ProcTable_t

	mu         sync.Mutex
	Parent     *Process_t
	Children   []*Process_t
	Threads    []*thread.Thread_t
	state      State
	exitStatus int
	PWait      *waitq.Waitq_t
}

// State reports the process's current lifecycle state.
func (p *Process_t) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// ExitStatus reports the status recorded by Exit/Cleanup.
func (p *Process_t) ExitStatus() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.exitStatus
}

// addThread attaches t to the process's thread list.
func (p *Process_t) addThread(t *thread.Thread_t) {
	p.mu.Lock()
	p.Threads = append(p.Threads, t)
	p.mu.Unlock()
}

// ProcTable_t is the global process list plus pid allocation (spec.md §4.E).
type ProcTable_t struct {
	mu    sync.Mutex
	procs map[defs.Pid_t]*Process_t
	next  defs.Pid_t

	Sched *sched.Sched_t
	Idle  *Process_t
	Init  *Process_t
}

// NewTable returns an empty process table bound to s.
func NewTable(s *sched.Sched_t) *ProcTable_t {
	return &ProcTable_t{
		procs: make(map[defs.Pid_t]*Process_t),
		next:  defs.Pid_t(defs.PID_KERNEL_DAEMON) + 1,
		Sched: s,
	}
}

// Lookup returns the live process for pid, if any.
func (pt *ProcTable_t) Lookup(pid defs.Pid_t) (*Process_t, bool) {
	pt.mu.Lock()
	defer pt.mu.Unlock()
	p, ok := pt.procs[pid]
	return p, ok
}

// All returns a snapshot of every live process, for KillAll and tests.
func (pt *ProcTable_t) All() []*Process_t {
	pt.mu.Lock()
	defer pt.mu.Unlock()
	out := make([]*Process_t, 0, len(pt.procs))
	for _, p := range pt.procs {
		out = append(out, p)
	}
	return out
}

func (pt *ProcTable_t) remove(pid defs.Pid_t) {
	pt.mu.Lock()
	delete(pt.procs, pid)
	pt.mu.Unlock()
}

// allocPid assigns PID_INIT to the second process ever created, then cycles
// from PID_KERNEL_DAEMON+1 upward, wrapping at ProcMaxCount and skipping
// in-use pids, grounded on the teacher's Sysatomic_t admission idiom.
func (pt *ProcTable_t) allocPid() (defs.Pid_t, defs.Err_t) {
	pt.mu.Lock()
	defer pt.mu.Unlock()
	if pt.Init == nil {
		return defs.Pid_t(defs.PID_INIT), 0
	}
	start := pt.next
	for {
		pid := pt.next
		pt.next++
		if pt.next >= defs.Pid_t(limits.ProcMaxCount) {
			pt.next = defs.Pid_t(defs.PID_KERNEL_DAEMON) + 1
		}
		if _, inUse := pt.procs[pid]; !inUse {
			return pid, 0
		}
		if pt.next == start {
			return 0, -defs.ENOMEM
		}
	}
}

// CreateIdle creates the first process, pid IDLE, with no parent (spec.md
// §4.E). root is the filesystem root vnode installed as its cwd.
func (pt *ProcTable_t) CreateIdle(root *vfs.Vnode_t) *Process_t {
	p := &Process_t{
		Pid:   defs.Pid_t(defs.PID_IDLE),
		Name:  "idle",
		Sched: pt.Sched,
		Vfs:   vfs.NewCtx(root),
		Table: pt,
		state: Running,
		PWait: waitq.New(),
	}
	p.Vmm = vm.NewVmmap(p)
	pt.mu.Lock()
	pt.procs[p.Pid] = p
	pt.Idle = p
	pt.mu.Unlock()
	return p
}

// Create creates a new process as a child of parent (spec.md §4.E): a fresh
// pid, a copy of parent's VFS context (cwd vref'd and every open fd fref'd,
// see vfs.Ctx_t.Clone), a fresh page directory (simulated: a fresh vmmap),
// and an empty wait queue. The first call after CreateIdle
// becomes the init process and is recorded for later reparenting.
func (pt *ProcTable_t) Create(name string, parent *Process_t) (*Process_t, defs.Err_t) {
	if !limits.System.Procs.Take() {
		return nil, -defs.ENOMEM
	}
	pid, err := pt.allocPid()
	if err != 0 {
		limits.System.Procs.Give()
		return nil, err
	}

	p := &Process_t{
		Pid:    pid,
		Name:   name,
		Sched:  pt.Sched,
		Vfs:    parent.Vfs.Clone(),
		Table:  pt,
		Parent: parent,
		state:  Running,
		PWait:  waitq.New(),
	}
	p.Vmm = vm.NewVmmap(p)

	pt.mu.Lock()
	pt.procs[pid] = p
	if pt.Init == nil {
		pt.Init = p
	}
	pt.mu.Unlock()

	parent.mu.Lock()
	parent.Children = append(parent.Children, p)
	parent.mu.Unlock()
	return p, 0
}
