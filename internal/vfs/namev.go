package vfs

import (
	"github.com/dnrj/nucleus/internal/defs"
	"github.com/dnrj/nucleus/internal/limits"
	"github.com/dnrj/nucleus/internal/ustr"
)

// Lookup resolves one path component inside dir (spec.md §4.H). The
// returned vnode's refcount is already incremented; on failure dir's
// refcount is left unchanged.
func Lookup(dir *Vnode_t, name ustr.Ustr) (*Vnode_t, defs.Err_t) {
	if dir == nil {
		panic("vfs: Lookup of nil directory")
	}
	if !dir.IsDir() {
		return nil, -defs.ENOTDIR
	}
	if len(name) == 0 {
		Vref(dir)
		return dir, 0
	}
	if len(name) > limits.NAME_LEN {
		return nil, -defs.ENAMETOOLONG
	}
	return dir.Ops.Lookup(dir, name)
}

// DirNamev resolves every path component but the last (spec.md §4.H). If
// path is absolute, resolution starts at root; otherwise at base (the
// caller's cwd). It returns the parent vnode (refcount incremented) and the
// unresolved basename. DirNamev does not check that the returned parent is a
// directory. It avoids the original source's two named namev bugs
// (component length via slash-scan, not strlen; the basename is never vput
// while still being read — see spec.md §9 known bugs).
func DirNamev(root *Vnode_t, path ustr.Ustr, base *Vnode_t) (*Vnode_t, ustr.Ustr, defs.Err_t) {
	cur := base
	if path.IsAbsolute() {
		cur = root
	}
	if cur == nil {
		return nil, nil, -defs.ENOENT
	}
	Vref(cur)

	rest := path
	for {
		comp, ok := ustr.NextComponent(rest)
		if !ok {
			// Path was empty, all-slash, or we've consumed every
			// component: cur is itself the parent and there is no
			// basename left to resolve (e.g. a bare "/").
			return cur, ustr.MkUstr(), 0
		}
		_, ok2 := ustr.NextComponent(comp.Rest)
		if !ok2 {
			// comp is the final component: leave it unresolved.
			return cur, comp.Name, 0
		}
		child, err := Lookup(cur, comp.Name)
		if err != 0 {
			Vput(cur)
			return nil, nil, err
		}
		Vput(cur)
		cur = child
		rest = comp.Rest
	}
}

// OpenNamev resolves path fully, creating the final component if it is
// absent and O_CREAT is set (spec.md §4.H). The returned vnode's refcount
// is incremented.
func OpenNamev(root *Vnode_t, path ustr.Ustr, flags int, base *Vnode_t) (*Vnode_t, defs.Err_t) {
	dir, name, err := DirNamev(root, path, base)
	if err != 0 {
		return nil, err
	}
	vn, err2 := Lookup(dir, name)
	if err2 == -defs.ENOENT && flags&defs.O_CREAT != 0 {
		vn, err2 = dir.Ops.Create(dir, name)
	}
	Vput(dir)
	return vn, err2
}
