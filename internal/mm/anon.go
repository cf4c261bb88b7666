package mm

import (
	"sync"

	"github.com/dnrj/nucleus/internal/defs"
	"github.com/dnrj/nucleus/internal/kctx"
)

// Anon_t is the anonymous, zero-fill-on-demand memory object (spec.md
// §4.K). refcount counts external referents (vmareas and shadows that point
// at this object) plus one for every resident page it currently holds — so
// "refcount == len(pages)" means no external referent remains and the
// object is garbage, matching spec.md §8 invariant 5.
type Anon_t struct {
	mu       sync.Mutex
	refcount int
	pages    map[uint64]*Pframe_t
}

// NewAnon returns a fresh anonymous object with one external reference.
func NewAnon() *Anon_t {
	return &Anon_t{refcount: 1, pages: make(map[uint64]*Pframe_t)}
}

func (a *Anon_t) Ref() {
	a.mu.Lock()
	a.refcount++
	a.mu.Unlock()
}

func (a *Anon_t) Refcount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.refcount
}

func (a *Anon_t) ResidentPages() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.pages)
}

// Lookuppage returns the zero-fill page for pagenum, allocating it on first
// touch. forwrite is irrelevant here: every page of an anonymous object is
// already privately owned by it. Allocating a new page pins it: the page
// itself counts as the "+1" that keeps refcount ahead of resident_pages
// until the object's last external referent lets go.
func (a *Anon_t) Lookuppage(ctx *kctx.Ctx_t, pagenum uint64, forwrite bool) (*Pframe_t, defs.Err_t) {
	a.mu.Lock()
	if pf, ok := a.pages[pagenum]; ok {
		a.mu.Unlock()
		return pf, 0
	}
	a.mu.Unlock()

	pf := NewPframe(a, pagenum)
	if err := a.Fillpage(ctx, pf); err != 0 {
		return nil, err
	}

	a.mu.Lock()
	if existing, ok := a.pages[pagenum]; ok {
		// Lost a race with a concurrent fault on the same page; the loser's
		// frame is simply discarded.
		a.mu.Unlock()
		return existing, 0
	}
	a.pages[pagenum] = pf
	a.refcount++
	a.mu.Unlock()
	return pf, 0
}

// Fillpage is a no-op: Pframe_t.Data is already zero-filled by allocation.
func (a *Anon_t) Fillpage(ctx *kctx.Ctx_t, pf *Pframe_t) defs.Err_t {
	return 0
}

func (a *Anon_t) Dirtypage(pf *Pframe_t) {
	pf.mu.Lock()
	pf.Dirty = true
	pf.mu.Unlock()
}

// Cleanpage is a no-op: an anonymous object has no backing store to flush to.
func (a *Anon_t) Cleanpage(ctx *kctx.Ctx_t, pf *Pframe_t) defs.Err_t {
	return 0
}

// Put drops one external reference. If that brings refcount down to the
// resident-page count, every page was only held up by its own pin and the
// object is garbage: drop all pages at once.
func (a *Anon_t) Put(ctx *kctx.Ctx_t) {
	a.mu.Lock()
	a.refcount--
	if a.refcount == len(a.pages) {
		a.pages = make(map[uint64]*Pframe_t)
	}
	a.mu.Unlock()
}
