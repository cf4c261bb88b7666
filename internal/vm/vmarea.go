// Package vm implements the per-process address-space map (spec.md §4.L)
// and the mmap syscalls plus page-fault handler (spec.md §4.M).
package vm

import (
	"container/list"
	"sync"

	"github.com/dnrj/nucleus/internal/defs"
	"github.com/dnrj/nucleus/internal/kctx"
	"github.com/dnrj/nucleus/internal/mm"
)

// PageSize matches mm.PageSize; vm works in page numbers, not byte addresses.
const PageSize = mm.PageSize

// User address space bounds (page numbers), outside of which no vmarea may
// lie (spec.md §3 vmarea invariant).
const (
	UserMemLow  = 0x1000
	UserMemHigh = 0x30000
)

// Protection bits.
const (
	ProtRead  = 1 << 0
	ProtWrite = 1 << 1
	ProtExec  = 1 << 2
)

// Mapping flags.
const (
	MapShared  = 1 << 0
	MapPrivate = 1 << 1
	MapFixed   = 1 << 2
	MapAnon    = 1 << 3
)

// Fault cause bits, matching protection bits so "prot & cause == cause" is
// the permission check from spec.md §4.M step 2.
const (
	CauseRead  = ProtRead
	CauseWrite = ProtWrite
	CauseExec  = ProtExec
)

// Direction for FindRange's first-fit search.
const (
	DirLoHi = 0
	DirHiLo = 1
)

// Vmarea_t is one contiguous mapped page range (spec.md §3).
type Vmarea_t struct {
	Start uint64 // inclusive page number
	End   uint64 // exclusive page number
	Off   uint64 // page offset into Obj
	Prot  int
	Flags int
	Map   *Vmmap_t
	Obj   mm.Mmobj_i
}

func (a *Vmarea_t) clone() *Vmarea_t {
	return &Vmarea_t{Start: a.Start, End: a.End, Off: a.Off, Prot: a.Prot, Flags: a.Flags}
}

// Vmmap_t is a process's address-space map: a sorted, non-overlapping
// sequence of vmareas (spec.md §3).
type Vmmap_t struct {
	mu    sync.Mutex
	areas *list.List
	Owner any // back-pointer to the owning process; opaque to this package
}

// NewVmmap returns an empty address-space map.
func NewVmmap(owner any) *Vmmap_t {
	return &Vmmap_t{areas: list.New(), Owner: owner}
}

// Insert places area into map's sorted list. Panics (a precondition
// violation, spec.md §4.L) if area overlaps an existing one, is inverted,
// or falls outside user memory.
func (m *Vmmap_t) Insert(area *Vmarea_t) {
	if area.Start >= area.End {
		panic("vm: inverted vmarea")
	}
	if area.Start < UserMemLow || area.End > UserMemHigh {
		panic("vm: vmarea outside user memory")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var at *list.Element
	for e := m.areas.Front(); e != nil; e = e.Next() {
		other := e.Value.(*Vmarea_t)
		if area.Start < other.End && other.Start < area.End {
			panic("vm: overlapping vmarea")
		}
		if at == nil && other.Start > area.Start {
			at = e
		}
	}
	area.Map = m
	if at == nil {
		m.areas.PushBack(area)
	} else {
		m.areas.InsertBefore(area, at)
	}
}

// unlinkLocked removes area from the list. Caller must hold m.mu.
func (m *Vmmap_t) unlinkLocked(area *Vmarea_t) {
	for e := m.areas.Front(); e != nil; e = e.Next() {
		if e.Value.(*Vmarea_t) == area {
			m.areas.Remove(e)
			return
		}
	}
}

// Lookup returns the area containing page vfn, or nil.
func (m *Vmmap_t) Lookup(vfn uint64) *Vmarea_t {
	m.mu.Lock()
	defer m.mu.Unlock()
	for e := m.areas.Front(); e != nil; e = e.Next() {
		a := e.Value.(*Vmarea_t)
		if vfn >= a.Start && vfn < a.End {
			return a
		}
	}
	return nil
}

// Areas returns a snapshot slice of every area, in sorted order, for tests
// and for fork's per-area shadow installation (spec.md §4.F step 3).
func (m *Vmmap_t) Areas() []*Vmarea_t {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Vmarea_t, 0, m.areas.Len())
	for e := m.areas.Front(); e != nil; e = e.Next() {
		out = append(out, e.Value.(*Vmarea_t))
	}
	return out
}

// FindRange first-fits npages contiguous pages into the gaps between
// areas (and before the first / after the last), returning the start page
// or -1 if none suffices (spec.md §4.L).
func (m *Vmmap_t) FindRange(npages uint64, dir int) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	type gap struct{ lo, hi uint64 }
	var gaps []gap
	cursor := uint64(UserMemLow)
	for e := m.areas.Front(); e != nil; e = e.Next() {
		a := e.Value.(*Vmarea_t)
		if a.Start > cursor {
			gaps = append(gaps, gap{cursor, a.Start})
		}
		cursor = a.End
	}
	if cursor < UserMemHigh {
		gaps = append(gaps, gap{cursor, UserMemHigh})
	}

	if dir == DirHiLo {
		for i := len(gaps) - 1; i >= 0; i-- {
			if gaps[i].hi-gaps[i].lo >= npages {
				return int64(gaps[i].hi - npages)
			}
		}
		return -1
	}
	for _, g := range gaps {
		if g.hi-g.lo >= npages {
			return int64(g.lo)
		}
	}
	return -1
}

// Clone produces a new map whose areas mirror the originals in start, end,
// off, prot, and flags; memory objects are left nil — the caller (fork)
// installs shadows (spec.md §4.L).
func (m *Vmmap_t) Clone(owner any) *Vmmap_t {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := NewVmmap(owner)
	for e := m.areas.Front(); e != nil; e = e.Next() {
		a := e.Value.(*Vmarea_t).clone()
		a.Map = out
		out.areas.PushBack(a)
	}
	return out
}

// IsRangeEmpty reports whether no area overlaps [start, start+npages).
func (m *Vmmap_t) IsRangeEmpty(start, npages uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	end := start + npages
	for e := m.areas.Front(); e != nil; e = e.Next() {
		a := e.Value.(*Vmarea_t)
		if start < a.End && a.Start < end {
			return false
		}
	}
	return true
}

// Map allocates and inserts a new area backed by obj (nil means anonymous),
// choosing a location via FindRange when lopage==0, otherwise evicting any
// colliding mapping first. If flags has MapPrivate, obj is wrapped in a
// fresh shadow (spec.md §4.L).
func (m *Vmmap_t) Map(ctx *kctx.Ctx_t, obj mm.Mmobj_i, lopage, npages uint64, prot, flags int, off uint64, dir int) (*Vmarea_t, defs.Err_t) {
	if obj == nil {
		obj = mm.NewAnon()
	}
	if flags&MapPrivate != 0 {
		obj = mm.NewShadow(obj)
	}

	start := lopage
	if start == 0 {
		found := m.FindRange(npages, dir)
		if found < 0 {
			return nil, -defs.ENOMEM
		}
		start = uint64(found)
	} else {
		if err := m.Remove(ctx, start, npages); err != 0 {
			return nil, err
		}
	}

	area := &Vmarea_t{Start: start, End: start + npages, Off: off, Prot: prot, Flags: flags, Obj: obj}
	m.Insert(area)
	return area, 0
}

// Remove unmaps [lopage, lopage+npages), splitting, shortening, or removing
// overlapping areas as needed (spec.md §4.L, the four cases).
func (m *Vmmap_t) Remove(ctx *kctx.Ctx_t, lopage, npages uint64) defs.Err_t {
	lo, hi := lopage, lopage+npages

	m.mu.Lock()
	var overlapping []*Vmarea_t
	for e := m.areas.Front(); e != nil; e = e.Next() {
		a := e.Value.(*Vmarea_t)
		if lo < a.End && a.Start < hi {
			overlapping = append(overlapping, a)
		}
	}
	m.mu.Unlock()

	for _, a := range overlapping {
		switch {
		case lo <= a.Start && hi >= a.End:
			// Case 4: region fully contains the area.
			m.mu.Lock()
			m.unlinkLocked(a)
			m.mu.Unlock()
			a.Obj.Put(ctx)

		case lo > a.Start && hi < a.End:
			// Case 1: region fully inside the area — split in two.
			tail := &Vmarea_t{Start: hi, End: a.End, Off: a.Off + (hi - a.Start), Prot: a.Prot, Flags: a.Flags, Obj: a.Obj}
			a.Obj.Ref()
			a.End = lo
			m.Insert(tail)

		case lo <= a.Start:
			// Case 3: region overlaps the area's head.
			a.Off += hi - a.Start
			a.Start = hi

		default:
			// Case 2: region overlaps the area's tail.
			a.End = lo
		}
	}
	return 0
}
