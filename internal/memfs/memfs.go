// Package memfs is the reference, in-memory filesystem that implements
// vfs.VnodeOps_i (spec.md §4.I EXPANSION): directories are maps of name to
// inode number, regular files are growable byte buffers. On-disk formats
// are out of scope (spec.md §1); this is what makes every do_* syscall and
// the round-trip properties in spec.md §8 exercisable without one.
package memfs

import (
	"sort"
	"sync"

	"github.com/dnrj/nucleus/internal/defs"
	"github.com/dnrj/nucleus/internal/mm"
	"github.com/dnrj/nucleus/internal/stat"
	"github.com/dnrj/nucleus/internal/ustr"
	"github.com/dnrj/nucleus/internal/vfs"
)

const rootIno = 1

type node_t struct {
	mu    sync.Mutex
	ino   uint64
	mode  uint
	devid defs.Devid_t
	dir   map[string]uint64 // only set when mode&S_IFDIR != 0
	data  []byte            // only used when mode&S_IFREG != 0
	nlink int
}

// Fs_t is one in-memory filesystem instance.
type Fs_t struct {
	mu      sync.Mutex
	nodes   map[uint64]*node_t
	nextIno uint64
	cache   *vfs.VnodeCache_t
	Root    *vfs.Vnode_t
}

// New constructs an empty filesystem with just a root directory and wraps
// it in a vnode, ready to be installed as a process's vfs.Ctx_t.Root.
func New() *Fs_t {
	fs := &Fs_t{nodes: make(map[uint64]*node_t), nextIno: rootIno + 1, cache: vfs.NewVnodeCache()}
	root := &node_t{ino: rootIno, mode: defs.S_IFDIR, dir: map[string]uint64{}, nlink: 2}
	root.dir["."] = rootIno
	root.dir[".."] = rootIno
	fs.nodes[rootIno] = root
	fs.Root = fs.vnodeFor(rootIno, root.mode, root.devid)
	return fs
}

func (fs *Fs_t) allocIno() uint64 {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	ino := fs.nextIno
	fs.nextIno++
	return ino
}

func (fs *Fs_t) node(ino uint64) *node_t {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.nodes[ino]
}

func (fs *Fs_t) vnodeFor(ino uint64, mode uint, devid defs.Devid_t) *vfs.Vnode_t {
	return fs.cache.Vget(ino, func() *vfs.Vnode_t {
		return vfs.NewVnode(fs.cache, fs, ino, mode, devid)
	})
}

// --- vfs.VnodeOps_i ---

func (fs *Fs_t) Lookup(dir *vfs.Vnode_t, name ustr.Ustr) (*vfs.Vnode_t, defs.Err_t) {
	n := fs.node(dir.Ino)
	n.mu.Lock()
	ino, ok := n.dir[name.String()]
	n.mu.Unlock()
	if !ok {
		return nil, -defs.ENOENT
	}
	child := fs.node(ino)
	return fs.vnodeFor(ino, child.mode, child.devid), 0
}

func (fs *Fs_t) Create(dir *vfs.Vnode_t, name ustr.Ustr) (*vfs.Vnode_t, defs.Err_t) {
	n := fs.node(dir.Ino)
	n.mu.Lock()
	defer n.mu.Unlock()
	if _, exists := n.dir[name.String()]; exists {
		return nil, -defs.EEXIST
	}
	ino := fs.allocIno()
	fs.mu.Lock()
	fs.nodes[ino] = &node_t{ino: ino, mode: defs.S_IFREG, nlink: 1}
	fs.mu.Unlock()
	n.dir[name.String()] = ino
	return fs.vnodeFor(ino, defs.S_IFREG, 0), 0
}

func (fs *Fs_t) Mkdir(dir *vfs.Vnode_t, name ustr.Ustr) (*vfs.Vnode_t, defs.Err_t) {
	n := fs.node(dir.Ino)
	n.mu.Lock()
	defer n.mu.Unlock()
	if _, exists := n.dir[name.String()]; exists {
		return nil, -defs.EEXIST
	}
	ino := fs.allocIno()
	child := &node_t{ino: ino, mode: defs.S_IFDIR, dir: map[string]uint64{}, nlink: 2}
	child.dir["."] = ino
	child.dir[".."] = dir.Ino
	fs.mu.Lock()
	fs.nodes[ino] = child
	fs.mu.Unlock()
	n.dir[name.String()] = ino
	n.nlink++
	return fs.vnodeFor(ino, defs.S_IFDIR, 0), 0
}

func (fs *Fs_t) Rmdir(dir *vfs.Vnode_t, name ustr.Ustr) defs.Err_t {
	n := fs.node(dir.Ino)
	n.mu.Lock()
	ino, ok := n.dir[name.String()]
	if !ok {
		n.mu.Unlock()
		return -defs.ENOENT
	}
	child := fs.node(ino)
	child.mu.Lock()
	if child.mode&defs.S_IFDIR == 0 {
		child.mu.Unlock()
		n.mu.Unlock()
		return -defs.ENOTDIR
	}
	if len(child.dir) > 2 { // more than "." and ".."
		child.mu.Unlock()
		n.mu.Unlock()
		return -defs.ENOTEMPTY
	}
	child.mu.Unlock()
	delete(n.dir, name.String())
	n.nlink--
	n.mu.Unlock()

	fs.mu.Lock()
	delete(fs.nodes, ino)
	fs.mu.Unlock()
	return 0
}

func (fs *Fs_t) Mknod(dir *vfs.Vnode_t, name ustr.Ustr, mode uint, rdev defs.Devid_t) (*vfs.Vnode_t, defs.Err_t) {
	n := fs.node(dir.Ino)
	n.mu.Lock()
	defer n.mu.Unlock()
	if _, exists := n.dir[name.String()]; exists {
		return nil, -defs.EEXIST
	}
	ino := fs.allocIno()
	fs.mu.Lock()
	fs.nodes[ino] = &node_t{ino: ino, mode: mode, devid: rdev, nlink: 1}
	fs.mu.Unlock()
	n.dir[name.String()] = ino
	return fs.vnodeFor(ino, mode, rdev), 0
}

func (fs *Fs_t) Link(from *vfs.Vnode_t, dir *vfs.Vnode_t, name ustr.Ustr) defs.Err_t {
	n := fs.node(dir.Ino)
	n.mu.Lock()
	if _, exists := n.dir[name.String()]; exists {
		n.mu.Unlock()
		return -defs.EEXIST
	}
	n.dir[name.String()] = from.Ino
	n.mu.Unlock()

	target := fs.node(from.Ino)
	target.mu.Lock()
	target.nlink++
	target.mu.Unlock()
	return 0
}

func (fs *Fs_t) Unlink(dir *vfs.Vnode_t, name ustr.Ustr) defs.Err_t {
	n := fs.node(dir.Ino)
	n.mu.Lock()
	ino, ok := n.dir[name.String()]
	if !ok {
		n.mu.Unlock()
		return -defs.ENOENT
	}
	delete(n.dir, name.String())
	n.mu.Unlock()

	target := fs.node(ino)
	target.mu.Lock()
	target.nlink--
	dead := target.nlink <= 0
	target.mu.Unlock()
	if dead {
		fs.mu.Lock()
		delete(fs.nodes, ino)
		fs.mu.Unlock()
	}
	return 0
}

func (fs *Fs_t) Read(v *vfs.Vnode_t, pos uint64, buf []byte) (int, defs.Err_t) {
	n := fs.node(v.Ino)
	switch n.devid {
	case defs.DevZero:
		for i := range buf {
			buf[i] = 0
		}
		return len(buf), 0
	case defs.DevNull, defs.DevTTY0:
		return 0, 0
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if pos >= uint64(len(n.data)) {
		return 0, 0
	}
	return copy(buf, n.data[pos:]), 0
}

func (fs *Fs_t) Write(v *vfs.Vnode_t, pos uint64, buf []byte) (int, defs.Err_t) {
	n := fs.node(v.Ino)
	switch n.devid {
	case defs.DevNull, defs.DevZero, defs.DevTTY0:
		return len(buf), 0
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	needed := pos + uint64(len(buf))
	if needed > uint64(len(n.data)) {
		grown := make([]byte, needed)
		copy(grown, n.data)
		n.data = grown
	}
	copy(n.data[pos:], buf)
	return len(buf), 0
}

func (fs *Fs_t) Readdir(v *vfs.Vnode_t, pos uint64) (vfs.Dirent_t, int, defs.Err_t) {
	n := fs.node(v.Ino)
	n.mu.Lock()
	defer n.mu.Unlock()
	names := make([]string, 0, len(n.dir))
	for name := range n.dir {
		names = append(names, name)
	}
	sort.Strings(names)
	idx := int(pos)
	if idx >= len(names) {
		return vfs.Dirent_t{}, 0, 0
	}
	name := names[idx]
	return vfs.Dirent_t{Ino: n.dir[name], Name: name}, 1, 0
}

func (fs *Fs_t) Stat(v *vfs.Vnode_t) (stat.Stat_t, defs.Err_t) {
	n := fs.node(v.Ino)
	n.mu.Lock()
	defer n.mu.Unlock()
	return stat.Stat_t{
		Ino:   n.ino,
		Mode:  n.mode,
		Size:  uint64(len(n.data)),
		Rdev:  n.devid,
		Nlink: n.nlink,
	}, 0
}

func (fs *Fs_t) Mmap(v *vfs.Vnode_t) (mm.Mmobj_i, defs.Err_t) {
	n := fs.node(v.Ino)
	if n.mode&defs.S_IFREG == 0 {
		return nil, -defs.ENODEV
	}
	return newFileMmobj(fs, v.Ino), 0
}

func (fs *Fs_t) Truncate(v *vfs.Vnode_t) defs.Err_t {
	n := fs.node(v.Ino)
	if n.mode&(defs.S_IFCHR|defs.S_IFBLK) != 0 {
		return -defs.ENXIO
	}
	n.mu.Lock()
	n.data = n.data[:0]
	n.mu.Unlock()
	return 0
}
