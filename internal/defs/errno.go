// Package defs holds the types, error codes, and flag/mode bit constants
// shared by every subsystem: the wait-queue/scheduler/mutex layer, the VFS,
// and the virtual-memory subsystem. Nothing in this package blocks or
// allocates; it is pure constants and small value types.
package defs

import "fmt"

// Err_t is the kernel-wide result type: zero or positive is success (often a
// byte count or fd), negative is -errno. Every operation in this module
// returns one instead of the (T, error) idiom, matching spec.md §7.
type Err_t int

// Errno returns the positive errno magnitude of e, or 0 if e is not an error.
func (e Err_t) Errno() int {
	if e >= 0 {
		return 0
	}
	return int(-e)
}

// Error implements the error interface so Err_t can be wrapped when it
// crosses into ordinary Go error-returning code (e.g. bootcfg, kstats).
func (e Err_t) Error() string {
	if e >= 0 {
		return "success"
	}
	if name, ok := errnoNames[int(-e)]; ok {
		return name
	}
	return fmt.Sprintf("errno %d", -e)
}

// The fixed error taxonomy from spec.md §6.
const (
	EINVAL     Err_t = 1
	EBADF      Err_t = 2
	EMFILE     Err_t = 3
	ENFILE     Err_t = 4
	ENOMEM     Err_t = 5
	ENAMETOOLONG Err_t = 6
	ENOENT     Err_t = 7
	EISDIR     Err_t = 8
	ENOTDIR    Err_t = 9
	EEXIST     Err_t = 10
	ENOTEMPTY  Err_t = 11
	EFAULT     Err_t = 12
	ECHILD     Err_t = 13
	EINTR      Err_t = 14
	EACCES     Err_t = 15
	EAGAIN     Err_t = 16
	EOVERFLOW  Err_t = 17
	ENODEV     Err_t = 18
	ENXIO      Err_t = 19
	// ENOHEAP completes the errno table; nothing in this module returns it.
	// An exhausted resource budget (see internal/limits) is reported as
	// ENOMEM.
	ENOHEAP Err_t = 20
)

var errnoNames = map[int]string{
	1: "EINVAL", 2: "EBADF", 3: "EMFILE", 4: "ENFILE", 5: "ENOMEM",
	6: "ENAMETOOLONG", 7: "ENOENT", 8: "EISDIR", 9: "ENOTDIR", 10: "EEXIST",
	11: "ENOTEMPTY", 12: "EFAULT", 13: "ECHILD", 14: "EINTR", 15: "EACCES",
	16: "EAGAIN", 17: "EOVERFLOW", 18: "ENODEV", 19: "ENXIO", 20: "ENOHEAP",
}
