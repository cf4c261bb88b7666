package defs

// Tid_t identifies a thread; Pid_t identifies a process (spec.md §3).
type Tid_t int
type Pid_t int
