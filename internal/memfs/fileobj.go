package memfs

import (
	"sync"

	"github.com/dnrj/nucleus/internal/defs"
	"github.com/dnrj/nucleus/internal/kctx"
	"github.com/dnrj/nucleus/internal/mm"
)

// fileMmobj_t is the file-backed memory object mm.Mmobj_i: the EXPANSION
// contributor that lets VFILE-type vmareas (spec.md §3 vmarea flags) be
// exercised end to end, since memfs is the only filesystem this core ships.
type fileMmobj_t struct {
	mu       sync.Mutex
	refcount int
	pages    map[uint64]*mm.Pframe_t
	fs       *Fs_t
	ino      uint64
}

func newFileMmobj(fs *Fs_t, ino uint64) *fileMmobj_t {
	return &fileMmobj_t{refcount: 1, pages: make(map[uint64]*mm.Pframe_t), fs: fs, ino: ino}
}

func (o *fileMmobj_t) Ref() {
	o.mu.Lock()
	o.refcount++
	o.mu.Unlock()
}

func (o *fileMmobj_t) Refcount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.refcount
}

func (o *fileMmobj_t) ResidentPages() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.pages)
}

func (o *fileMmobj_t) Lookuppage(ctx *kctx.Ctx_t, pagenum uint64, forwrite bool) (*mm.Pframe_t, defs.Err_t) {
	o.mu.Lock()
	if pf, ok := o.pages[pagenum]; ok {
		o.mu.Unlock()
		return pf, 0
	}
	o.mu.Unlock()

	pf := mm.NewPframe(o, pagenum)
	if err := o.Fillpage(ctx, pf); err != 0 {
		return nil, err
	}

	o.mu.Lock()
	if existing, ok := o.pages[pagenum]; ok {
		o.mu.Unlock()
		return existing, 0
	}
	o.pages[pagenum] = pf
	o.refcount++
	o.mu.Unlock()
	return pf, 0
}

func (o *fileMmobj_t) Fillpage(ctx *kctx.Ctx_t, pf *mm.Pframe_t) defs.Err_t {
	n := o.fs.node(o.ino)
	n.mu.Lock()
	start := pf.Pagenum * mm.PageSize
	if start < uint64(len(n.data)) {
		copy(pf.Data[:], n.data[start:])
	}
	n.mu.Unlock()
	return 0
}

func (o *fileMmobj_t) Dirtypage(pf *mm.Pframe_t) {
	pf.Dirty = true
}

func (o *fileMmobj_t) Cleanpage(ctx *kctx.Ctx_t, pf *mm.Pframe_t) defs.Err_t {
	if !pf.Dirty {
		return 0
	}
	n := o.fs.node(o.ino)
	n.mu.Lock()
	start := pf.Pagenum * mm.PageSize
	needed := start + mm.PageSize
	if needed > uint64(len(n.data)) {
		grown := make([]byte, needed)
		copy(grown, n.data)
		n.data = grown
	}
	copy(n.data[start:needed], pf.Data[:])
	n.mu.Unlock()
	pf.Dirty = false
	return 0
}

func (o *fileMmobj_t) Put(ctx *kctx.Ctx_t) {
	o.mu.Lock()
	o.refcount--
	garbage := o.refcount == len(o.pages)
	o.mu.Unlock()
	if garbage {
		for _, pf := range o.pages {
			o.Cleanpage(ctx, pf)
		}
		o.mu.Lock()
		o.pages = make(map[uint64]*mm.Pframe_t)
		o.mu.Unlock()
	}
}
