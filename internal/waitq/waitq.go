// Package waitq implements the FIFO wait queue used by the scheduler and
// the mutex (spec.md §4.A). It is grounded on the teacher's BlkList_t
// list-wrapper idiom (biscuit fs.BlkList_t), swapped to hold parked threads
// instead of disk blocks.
package waitq

import (
	"container/list"
	"sync"
)

// Parked is satisfied by anything that can sit on a wait queue. thread.Thread_t
// implements it; the interface lives here (rather than importing thread) to
// keep waitq a leaf package per the dependency order in spec.md §2.
type Parked interface {
	// SetWchan records which queue (if any) this thread is parked on,
	// satisfying invariant 8 in spec.md §8.
	SetWchan(q interface{})
}

// Waitq_t is an ordered, FIFO sequence of parked threads.
type Waitq_t struct {
	mu sync.Mutex
	l  *list.List
}

// New returns an empty wait queue.
func New() *Waitq_t {
	return &Waitq_t{l: list.New()}
}

// Enqueue parks t at the back of the queue and records the queue on t.
func (q *Waitq_t) Enqueue(t Parked) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.l.PushBack(t)
	t.SetWchan(q)
}

// Dequeue removes and returns the thread at the front of the queue, or nil
// if the queue is empty. Dequeue does not clear the returned thread's wchan;
// callers that make the thread runnable again are responsible for that.
func (q *Waitq_t) Dequeue() Parked {
	q.mu.Lock()
	defer q.mu.Unlock()
	e := q.l.Front()
	if e == nil {
		return nil
	}
	q.l.Remove(e)
	return e.Value.(Parked)
}

// Remove removes t from the queue if present, reporting whether it was
// found. Used by cancellation to pull a specific thread out of the middle
// of the queue.
func (q *Waitq_t) Remove(t Parked) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	for e := q.l.Front(); e != nil; e = e.Next() {
		if e.Value.(Parked) == t {
			q.l.Remove(e)
			return true
		}
	}
	return false
}

// Broadcast drains the queue, returning every parked thread in enqueue
// order so the caller can make each one runnable.
func (q *Waitq_t) Broadcast() []Parked {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]Parked, 0, q.l.Len())
	for e := q.l.Front(); e != nil; e = e.Next() {
		out = append(out, e.Value.(Parked))
	}
	q.l.Init()
	return out
}

// Len reports the number of parked threads.
func (q *Waitq_t) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.l.Len()
}

// Empty reports whether the queue has no parked threads.
func (q *Waitq_t) Empty() bool {
	return q.Len() == 0
}
