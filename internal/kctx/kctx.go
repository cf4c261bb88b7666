// Package kctx carries the "current thread, current scheduler" pair that
// every blocking kernel operation needs, instead of reaching for hidden
// global state (spec.md §9 design note: "pass them as an explicit kernel
// context into every operation"). It is a leaf package so every layer above
// the scheduler can depend on it without creating import cycles.
package kctx

import (
	"github.com/dnrj/nucleus/internal/defs"
	"github.com/dnrj/nucleus/internal/sched"
	"github.com/dnrj/nucleus/internal/waitq"
)

// Ctx_t identifies the thread on whose behalf a call is being made and the
// scheduler it runs under. Every function in this module that may sleep
// takes one explicitly.
type Ctx_t struct {
	Self  sched.Schedulable
	Sched *sched.Sched_t
}

// SleepOn parks the context's thread on q uninterruptibly.
func (c *Ctx_t) SleepOn(q *waitq.Waitq_t) {
	c.Sched.SleepOn(c.Self, q)
}

// CancellableSleepOn parks the context's thread on q cancellably.
func (c *Ctx_t) CancellableSleepOn(q *waitq.Waitq_t) defs.Err_t {
	return c.Sched.CancellableSleepOn(c.Self, q)
}

// WakeupOn wakes one thread parked on q.
func (c *Ctx_t) WakeupOn(q *waitq.Waitq_t) sched.Schedulable {
	return c.Sched.WakeupOn(q)
}

// BroadcastOn wakes every thread parked on q.
func (c *Ctx_t) BroadcastOn(q *waitq.Waitq_t) {
	c.Sched.BroadcastOn(q)
}
