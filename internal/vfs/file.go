package vfs

import (
	"sync"

	"github.com/dnrj/nucleus/internal/defs"
	"github.com/dnrj/nucleus/internal/limits"
)

// File_t is the file object shared by every fd that dup'd from a common
// open (spec.md §3): mode bits, byte position, and a vnode reference.
type File_t struct {
	mu      sync.Mutex
	refcnt  int
	Vn      *Vnode_t
	Pos     uint64
	Mode    int // access mode (O_RDONLY|O_WRONLY|O_RDWR) OR'd with O_APPEND
}

// Fdtable_t is a process's fixed-size file-descriptor table (spec.md §3).
type Fdtable_t struct {
	mu    sync.Mutex
	slots [limits.NFILES]*File_t
}

// NewFdtable returns an empty fd table.
func NewFdtable() *Fdtable_t {
	return &Fdtable_t{}
}

// AllocSlot finds an empty slot, reserving nothing in it (the caller must
// Install before another AllocSlot call can see it as free).
func (t *Fdtable_t) AllocSlot() (int, defs.Err_t) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i, f := range t.slots {
		if f == nil {
			return i, 0
		}
	}
	return -1, -defs.EMFILE
}

// Install places f into slot fd, which must currently be empty.
func (t *Fdtable_t) Install(fd int, f *File_t) {
	t.mu.Lock()
	t.slots[fd] = f
	t.mu.Unlock()
}

// Raw returns the slot's current value without adjusting any refcount.
func (t *Fdtable_t) Raw(fd int) *File_t {
	t.mu.Lock()
	defer t.mu.Unlock()
	if fd < 0 || fd >= limits.NFILES {
		return nil
	}
	return t.slots[fd]
}

// Clear empties slot fd.
func (t *Fdtable_t) Clear(fd int) {
	t.mu.Lock()
	t.slots[fd] = nil
	t.mu.Unlock()
}

// InUse reports whether fd names a currently open descriptor.
func (t *Fdtable_t) InUse(fd int) bool {
	return t.Raw(fd) != nil
}

// Clone returns a fresh table with every occupied slot's file object
// fref'd, for fork's fd-table copy step (spec.md §4.F step 5).
func (t *Fdtable_t) Clone() *Fdtable_t {
	t.mu.Lock()
	defer t.mu.Unlock()
	nt := &Fdtable_t{}
	for i, f := range t.slots {
		if f != nil {
			Fref(f)
			nt.slots[i] = f
		}
	}
	return nt
}

// Fget implements spec.md §4.G: fd == -1 allocates a fresh, unshared file
// object with refcount 1; otherwise the table slot's file object gains one
// reference. EBADF if fd names an empty or out-of-range slot.
func Fget(t *Fdtable_t, fd int) (*File_t, defs.Err_t) {
	if fd == -1 {
		return &File_t{refcnt: 1}, 0
	}
	if fd < 0 || fd >= limits.NFILES {
		return nil, -defs.EBADF
	}
	f := t.Raw(fd)
	if f == nil {
		return nil, -defs.EBADF
	}
	Fref(f)
	return f, 0
}

// Fref adds one reference to f.
func Fref(f *File_t) {
	f.mu.Lock()
	f.refcnt++
	f.mu.Unlock()
}

// Fput drops one reference to f, releasing its vnode reference once the
// last reference is gone.
func Fput(f *File_t) {
	if f == nil {
		return
	}
	f.mu.Lock()
	f.refcnt--
	dead := f.refcnt == 0
	vn := f.Vn
	f.mu.Unlock()
	if dead {
		Vput(vn)
	}
}

// Refcount reports f's current refcount; for tests, not control flow.
func (f *File_t) Refcount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.refcnt
}

// Cwd_t holds a process's current-working-directory vnode reference,
// serialized against concurrent chdir (grounded on the teacher's Cwd_t,
// minus path tracking: getcwd reconstruction is a non-goal, spec.md §1).
type Cwd_t struct {
	mu sync.Mutex
	v  *Vnode_t
}

// NewCwd wraps an already-referenced root vnode as the initial cwd.
func NewCwd(v *Vnode_t) *Cwd_t {
	return &Cwd_t{v: v}
}

// Get returns the current cwd vnode without adjusting its refcount.
func (c *Cwd_t) Get() *Vnode_t {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.v
}

// Set installs v (already referenced by the caller) as the new cwd.
func (c *Cwd_t) Set(v *Vnode_t) {
	c.mu.Lock()
	c.v = v
	c.mu.Unlock()
}

// Ctx_t bundles the per-process VFS-layer state: its fd table, its cwd, and
// the (mount-less, single) filesystem root (spec.md §3 process attributes).
type Ctx_t struct {
	Fds  *Fdtable_t
	Cwd  *Cwd_t
	Root *Vnode_t
}

// NewCtx builds a fresh Ctx_t rooted at root with cwd also at root and an
// empty fd table, the shape of a brand-new process (spec.md §4.E).
func NewCtx(root *Vnode_t) *Ctx_t {
	// Root is a permanent, kernel-owned reference held for the life of the
	// boot filesystem (there is no unmount, spec.md §1 non-goals); only the
	// cwd pointer is a per-process reference that fork/chdir/cleanup manage.
	Vref(root)
	return &Ctx_t{Fds: NewFdtable(), Cwd: NewCwd(root), Root: root}
}

// Clone copies fd table (fref'ing each entry) and cwd (vref) for fork's
// steps 5 (spec.md §4.F): the child starts with its own Ctx_t sharing the
// same root, same cwd vnode, and the same open files as the parent.
func (c *Ctx_t) Clone() *Ctx_t {
	cwd := c.Cwd.Get()
	Vref(cwd)
	return &Ctx_t{Fds: c.Fds.Clone(), Cwd: NewCwd(cwd), Root: c.Root}
}
