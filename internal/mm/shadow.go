package mm

import (
	"sync"

	"github.com/dnrj/nucleus/internal/defs"
	"github.com/dnrj/nucleus/internal/kctx"
)

// Shadow_t is one link in a copy-on-write chain (spec.md §4.K). It shadows
// another Mmobj_i — another Shadow_t, an Anon_t, or a file-backed object —
// which is never itself a shadow at chain bottom (spec.md §8 invariant 6).
// Like Anon_t, refcount counts external referents plus one per resident page.
type Shadow_t struct {
	mu       sync.Mutex
	refcount int
	pages    map[uint64]*Pframe_t
	shadowed Mmobj_i
}

// NewShadow returns a shadow of shadowed with one external reference,
// taking a reference on shadowed on its caller's behalf.
func NewShadow(shadowed Mmobj_i) *Shadow_t {
	shadowed.Ref()
	return &Shadow_t{refcount: 1, pages: make(map[uint64]*Pframe_t), shadowed: shadowed}
}

// Shadowed returns the object this shadow shadows, for tests and for the
// fork path installing a fresh pair of shadows over an existing bottom.
func (s *Shadow_t) Shadowed() Mmobj_i {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.shadowed
}

func (s *Shadow_t) Ref() {
	s.mu.Lock()
	s.refcount++
	s.mu.Unlock()
}

func (s *Shadow_t) Refcount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refcount
}

func (s *Shadow_t) ResidentPages() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pages)
}

// Lookuppage implements the two COW lookup modes from spec.md §4.K: a read
// walks the chain for the first resident copy without copying anything; a
// write materializes a fresh private copy in this shadow.
func (s *Shadow_t) Lookuppage(ctx *kctx.Ctx_t, pagenum uint64, forwrite bool) (*Pframe_t, defs.Err_t) {
	s.mu.Lock()
	if pf, ok := s.pages[pagenum]; ok {
		s.mu.Unlock()
		return pf, 0
	}
	shadowed := s.shadowed
	s.mu.Unlock()

	if !forwrite {
		return shadowed.Lookuppage(ctx, pagenum, false)
	}

	src, err := shadowed.Lookuppage(ctx, pagenum, false)
	if err != 0 {
		return nil, err
	}
	src.Acquire(ctx)
	pf := NewPframe(s, pagenum)
	pf.Data = src.Data
	pf.Dirty = true
	src.Release(ctx)

	s.mu.Lock()
	if existing, ok := s.pages[pagenum]; ok {
		s.mu.Unlock()
		return existing, 0
	}
	s.pages[pagenum] = pf
	s.refcount++
	s.mu.Unlock()
	return pf, 0
}

// Fillpage is unused: materialization happens inline in Lookuppage so the
// freshly copied bytes can be installed atomically with the page-table map.
func (s *Shadow_t) Fillpage(ctx *kctx.Ctx_t, pf *Pframe_t) defs.Err_t {
	return 0
}

func (s *Shadow_t) Dirtypage(pf *Pframe_t) {
	pf.mu.Lock()
	pf.Dirty = true
	pf.mu.Unlock()
}

func (s *Shadow_t) Cleanpage(ctx *kctx.Ctx_t, pf *Pframe_t) defs.Err_t {
	return 0
}

// Put drops one external reference. When the chain node becomes garbage its
// pages are dropped and it releases its own reference on what it shadows,
// same rule recursively applied down the chain.
func (s *Shadow_t) Put(ctx *kctx.Ctx_t) {
	s.mu.Lock()
	s.refcount--
	garbage := s.refcount == len(s.pages)
	var shadowed Mmobj_i
	if garbage {
		s.pages = make(map[uint64]*Pframe_t)
		shadowed = s.shadowed
		s.shadowed = nil
	}
	s.mu.Unlock()
	if shadowed != nil {
		shadowed.Put(ctx)
	}
}
