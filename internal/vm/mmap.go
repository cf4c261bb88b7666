package vm

import (
	"github.com/dnrj/nucleus/internal/defs"
	"github.com/dnrj/nucleus/internal/kctx"
	"github.com/dnrj/nucleus/internal/mm"
)

// FileBacking is the minimal view of an open file DoMmap needs: produce the
// memory object backing its mapping. vfs.Vnode_t satisfies this through its
// Ops.Mmap method; kept as an interface here so vm never imports vfs.
type FileBacking interface {
	Mmap() (mm.Mmobj_i, defs.Err_t)
}

// DoMmap validates and installs a new mapping (spec.md §4.M). lopage==0
// with flags&MapFixed==0 means "pick any gap"; file may be nil for an
// anonymous mapping. On success it returns the mapping's base page number;
// the caller is responsible for flushing the TLB over the mapped range
// (tlb_flush is a collaborator interface, spec.md §6, out of scope here).
func DoMmap(ctx *kctx.Ctx_t, m *Vmmap_t, lopage, npages uint64, prot, flags int, file FileBacking, off uint64) (uint64, defs.Err_t) {
	if npages == 0 {
		return 0, -defs.EINVAL
	}
	if flags&MapFixed != 0 && lopage == 0 {
		return 0, -defs.EINVAL
	}

	var obj mm.Mmobj_i
	if flags&MapAnon == 0 {
		if file == nil {
			return 0, -defs.EINVAL
		}
		o, err := file.Mmap()
		if err != 0 {
			return 0, err
		}
		obj = o
	}

	dir := DirLoHi
	area, err := m.Map(ctx, obj, lopage, npages, prot, flags, off, dir)
	if err != 0 {
		return 0, err
	}
	return area.Start, 0
}

// DoMunmap validates and removes a mapping (spec.md §4.M). The caller is
// responsible for the subsequent TLB flush.
func DoMunmap(ctx *kctx.Ctx_t, m *Vmmap_t, lopage, npages uint64) defs.Err_t {
	if npages == 0 {
		return -defs.EINVAL
	}
	return m.Remove(ctx, lopage, npages)
}

// PageFault resolves a user-space fault at page vfn with the given cause
// (spec.md §4.M). It returns -EFAULT when the current process should be
// killed (no mapping, or a permission violation); 0 on success, with frame
// populated and a writable flag the caller uses when installing the
// page-table entry through a defs.PTMapper_i.
func PageFault(ctx *kctx.Ctx_t, m *Vmmap_t, vfn uint64, cause int) (frame *mm.Pframe_t, writable bool, err defs.Err_t) {
	area := m.Lookup(vfn)
	if area == nil {
		return nil, false, -defs.EFAULT
	}
	if area.Prot&cause != cause {
		return nil, false, -defs.EFAULT
	}
	pagenum := vfn - area.Start + area.Off
	forwrite := cause == CauseWrite
	pf, perr := area.Obj.Lookuppage(ctx, pagenum, forwrite)
	if perr != 0 {
		return nil, false, perr
	}
	if ctx.Sched != nil && ctx.Sched.Stats != nil {
		ctx.Sched.Stats.PageFaults.Inc()
	}
	return pf, forwrite, 0
}
