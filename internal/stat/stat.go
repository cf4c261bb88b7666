// Package stat defines the kernel-visible stat structure returned by
// do_stat, modeled on the teacher's Stat_t but with exported fields in
// place of its accessor methods.
package stat

import "github.com/dnrj/nucleus/internal/defs"

// Stat_t mirrors a vnode's externally-visible metadata.
type Stat_t struct {
	Dev   defs.Devid_t
	Ino   uint64
	Mode  uint
	Size  uint64
	Rdev  defs.Devid_t
	Nlink int
}
