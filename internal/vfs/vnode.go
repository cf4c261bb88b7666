// Package vfs implements the path resolver, vnode/file-object cache, and
// do_* syscall surface (spec.md §4.G/§4.H/§4.I), grounded on the teacher's
// fd package for the file-object half and on its fs/ufs packages for the
// do_*-named syscall split. File-object state is folded into this package
// rather than a standalone fd package because the vnode mmap operation must
// return an mm.Mmobj_i, and fd would otherwise import back into vfs.
package vfs

import (
	"sync"

	"github.com/dnrj/nucleus/internal/defs"
	"github.com/dnrj/nucleus/internal/mm"
	"github.com/dnrj/nucleus/internal/stat"
	"github.com/dnrj/nucleus/internal/ustr"
)

// Dirent_t is one directory entry returned by Readdir/DoGetdent.
type Dirent_t struct {
	Ino  uint64
	Name string
}

// Size reports the encoded size DoGetdent reports for a successful read,
// standing in for the source's sizeof(dirent).
func (d Dirent_t) Size() int {
	return 8 + len(d.Name)
}

// VnodeOps_i is the per-filesystem operations table (spec.md §3). A
// filesystem implements this once and shares the same value across every
// vnode it hands out; the core never interprets on-disk structures, only
// dispatches through this interface.
type VnodeOps_i interface {
	Lookup(dir *Vnode_t, name ustr.Ustr) (*Vnode_t, defs.Err_t)
	Create(dir *Vnode_t, name ustr.Ustr) (*Vnode_t, defs.Err_t)
	Mkdir(dir *Vnode_t, name ustr.Ustr) (*Vnode_t, defs.Err_t)
	Rmdir(dir *Vnode_t, name ustr.Ustr) defs.Err_t
	Mknod(dir *Vnode_t, name ustr.Ustr, mode uint, rdev defs.Devid_t) (*Vnode_t, defs.Err_t)
	Link(from *Vnode_t, dir *Vnode_t, name ustr.Ustr) defs.Err_t
	Unlink(dir *Vnode_t, name ustr.Ustr) defs.Err_t
	Read(v *Vnode_t, pos uint64, buf []byte) (int, defs.Err_t)
	Write(v *Vnode_t, pos uint64, buf []byte) (int, defs.Err_t)
	Readdir(v *Vnode_t, pos uint64) (Dirent_t, int, defs.Err_t)
	Stat(v *Vnode_t) (stat.Stat_t, defs.Err_t)
	Mmap(v *Vnode_t) (mm.Mmobj_i, defs.Err_t)
	Truncate(v *Vnode_t) defs.Err_t
}

// Vnode_t is a refcounted handle onto one filesystem inode (spec.md §3).
type Vnode_t struct {
	mu      sync.Mutex
	refcnt  int
	cache   *VnodeCache_t
	Ops     VnodeOps_i
	Ino     uint64
	Mode    uint
	Devid   defs.Devid_t
}

// VnodeCache_t maps inode numbers to live Vnode_t handles so that two
// lookups of the same inode (e.g. via two different names, i.e. hard
// links) return the identical handle, per spec.md §4.G ("vget(fs, vno)").
type VnodeCache_t struct {
	mu    sync.Mutex
	table map[uint64]*Vnode_t
}

// NewVnodeCache returns an empty vnode cache.
func NewVnodeCache() *VnodeCache_t {
	return &VnodeCache_t{table: make(map[uint64]*Vnode_t)}
}

// Vget returns the cached vnode for ino with its refcount incremented, or
// calls mk to construct a fresh one (installed with refcount 1) if this is
// the first live handle to that inode.
func (c *VnodeCache_t) Vget(ino uint64, mk func() *Vnode_t) *Vnode_t {
	c.mu.Lock()
	if v, ok := c.table[ino]; ok {
		c.mu.Unlock()
		Vref(v)
		return v
	}
	c.mu.Unlock()

	v := mk()
	v.cache = c
	v.refcnt = 1

	c.mu.Lock()
	if existing, ok := c.table[ino]; ok {
		c.mu.Unlock()
		Vref(existing)
		return existing
	}
	c.table[ino] = v
	c.mu.Unlock()
	return v
}

func (c *VnodeCache_t) forget(ino uint64) {
	c.mu.Lock()
	delete(c.table, ino)
	c.mu.Unlock()
}

// NewVnode constructs a vnode handle for the cache's mk callback; it is not
// itself refcounted until Vget installs it.
func NewVnode(cache *VnodeCache_t, ops VnodeOps_i, ino uint64, mode uint, devid defs.Devid_t) *Vnode_t {
	return &Vnode_t{cache: cache, Ops: ops, Ino: ino, Mode: mode, Devid: devid}
}

// Vref adds one reference to v.
func Vref(v *Vnode_t) {
	v.mu.Lock()
	v.refcnt++
	v.mu.Unlock()
}

// Vput releases one reference to v, removing it from its cache once the
// last reference is gone.
func Vput(v *Vnode_t) {
	if v == nil {
		return
	}
	v.mu.Lock()
	v.refcnt--
	dead := v.refcnt == 0
	cache := v.cache
	ino := v.Ino
	v.mu.Unlock()
	if dead && cache != nil {
		cache.forget(ino)
	}
}

// Refcount reports v's current refcount; for tests and invariant checks
// (spec.md §8 invariant 3), not control flow.
func (v *Vnode_t) Refcount() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.refcnt
}

// IsDir reports whether v is a directory vnode.
func (v *Vnode_t) IsDir() bool {
	return v.Mode&defs.S_IFDIR != 0
}

// IsDevice reports whether v is a character or block device vnode.
func (v *Vnode_t) IsDevice() bool {
	return v.Mode&(defs.S_IFCHR|defs.S_IFBLK) != 0
}

// Mmap satisfies vm.FileBacking so a Vnode_t can back a file-mapped vmarea
// without vm importing this package.
func (v *Vnode_t) Mmap() (mm.Mmobj_i, defs.Err_t) {
	return v.Ops.Mmap(v)
}
