// Package limits holds the system-wide resource bounds referenced by the
// process and VFS layers, grounded on the teacher's Syslimit_t/Sysatomic_t.
package limits

import "sync/atomic"

// Fixed sizing constants from spec.md §3/§6.
const (
	// NFILES is the size of each process's fixed file-descriptor table.
	NFILES = 256
	// NAME_LEN bounds a single path component.
	NAME_LEN = 255
	// MAXPATHLEN bounds a full path.
	MAXPATHLEN = 4096
	// ProcMaxCount bounds live pids; pid allocation wraps here.
	ProcMaxCount = 1 << 16
)

// Atomic_t is a budget counter that can be atomically taken from and given
// back to, grounded on the teacher's Sysatomic_t.
type Atomic_t struct {
	n int64
}

// NewAtomic returns a counter initialized to budget.
func NewAtomic(budget int64) *Atomic_t {
	return &Atomic_t{n: budget}
}

// Take decrements the counter by one, refusing (and leaving the counter
// unchanged) if that would take it negative.
func (a *Atomic_t) Take() bool {
	if atomic.AddInt64(&a.n, -1) >= 0 {
		return true
	}
	atomic.AddInt64(&a.n, 1)
	return false
}

// Give returns one unit to the counter.
func (a *Atomic_t) Give() {
	atomic.AddInt64(&a.n, 1)
}

// Remaining reports the current budget.
func (a *Atomic_t) Remaining() int64 {
	return atomic.LoadInt64(&a.n)
}

// System is the process-wide set of configured limits. bootcfg may replace
// the values at boot time before any process is created.
var System = struct {
	Vnodes *Atomic_t
	Procs  *Atomic_t
}{
	Vnodes: NewAtomic(20000),
	Procs:  NewAtomic(ProcMaxCount),
}
