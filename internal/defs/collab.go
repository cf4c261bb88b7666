package defs

// PTMapper_i is the page-table collaborator: hardware bring-up and MMU
// primitives are out of scope (spec.md §1), so the core only depends on this
// interface and ships no implementation of it.
type PTMapper_i interface {
	// PtMap installs one page-table entry in the address space identified
	// by pd, mapping vaddr to paddr with the given directory/table flags.
	PtMap(pd uintptr, vaddr, paddr uintptr, pdflags, ptflags uint)
	// PtUnmapRange removes every mapping in [lo, hi) from pd.
	PtUnmapRange(pd uintptr, lo, hi uintptr)
}

// TLBFlusher_i is the TLB-shootdown collaborator (spec.md §6).
type TLBFlusher_i interface {
	FlushOne(addr uintptr)
	FlushAll()
}
