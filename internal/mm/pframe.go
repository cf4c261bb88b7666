// Package mm implements the memory-object and page-frame layer (spec.md
// §4.J/§4.K): a pluggable ref/put/lookuppage/fillpage/dirtypage/cleanpage
// contract, with anonymous and copy-on-write shadow implementations. A page
// frame's "physical address" is simulated as a plain byte array; the real
// physical allocator is out of scope (spec.md §1) and is not modeled here.
package mm

import (
	"sync"

	"github.com/dnrj/nucleus/internal/defs"
	"github.com/dnrj/nucleus/internal/kctx"
	"github.com/dnrj/nucleus/internal/waitq"
)

// PageSize is the simulated hardware page size.
const PageSize = 4096

// Mmobj_i is the memory-object contract every vmarea's backing store
// implements (spec.md §4.J).
type Mmobj_i interface {
	// Ref adds one reference to the object (an additional vmarea or shadow
	// pointing at it).
	Ref()
	// Put drops one reference. When refcount meets resident-page count the
	// object is garbage: anonymous and shadow implementations free every
	// resident page and, for shadows, drop their own reference on what they
	// shadow (spec.md §8 invariant 5).
	Put(ctx *kctx.Ctx_t)
	// Lookuppage returns the page frame backing pagenum, allocating or
	// materializing it as needed. It may block on another page's Busy flag.
	// When forwrite is true the returned frame is guaranteed privately
	// writable (the shadow COW materialization hook).
	Lookuppage(ctx *kctx.Ctx_t, pagenum uint64, forwrite bool) (*Pframe_t, defs.Err_t)
	// Fillpage populates a freshly allocated, still-empty frame.
	Fillpage(ctx *kctx.Ctx_t, pf *Pframe_t) defs.Err_t
	// Dirtypage marks a frame modified.
	Dirtypage(pf *Pframe_t)
	// Cleanpage writes a dirty frame back to its backing store, if any.
	Cleanpage(ctx *kctx.Ctx_t, pf *Pframe_t) defs.Err_t

	Refcount() int
	ResidentPages() int
}

// Pframe_t is one physical-page-equivalent frame (spec.md §3).
type Pframe_t struct {
	Obj     Mmobj_i
	Pagenum uint64
	Data    [PageSize]byte

	mu      sync.Mutex
	busy    bool
	Dirty   bool
	Pinned  bool
	waiters *waitq.Waitq_t
}

// NewPframe allocates a fresh, non-busy, zero-filled frame for obj/pagenum.
func NewPframe(obj Mmobj_i, pagenum uint64) *Pframe_t {
	return &Pframe_t{Obj: obj, Pagenum: pagenum, waiters: waitq.New()}
}

// Acquire blocks until the frame is not Busy, then marks it Busy. Mirrors
// the "lookuppage may block while a frame is Busy" contract in spec.md §4.J.
func (pf *Pframe_t) Acquire(ctx *kctx.Ctx_t) {
	pf.mu.Lock()
	for pf.busy {
		pf.mu.Unlock()
		ctx.SleepOn(pf.waiters)
		pf.mu.Lock()
	}
	pf.busy = true
	pf.mu.Unlock()
}

// Release clears Busy and wakes everyone waiting on this frame.
func (pf *Pframe_t) Release(ctx *kctx.Ctx_t) {
	pf.mu.Lock()
	pf.busy = false
	pf.mu.Unlock()
	ctx.BroadcastOn(pf.waiters)
}

// Busy reports the frame's current busy state, for tests and invariant
// checks; not for control flow (races against concurrent Acquire/Release).
func (pf *Pframe_t) Busy() bool {
	pf.mu.Lock()
	defer pf.mu.Unlock()
	return pf.busy
}
