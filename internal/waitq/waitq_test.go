package waitq_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dnrj/nucleus/internal/waitq"
)

// fakeParked is the minimal waitq.Parked implementation a test needs; the
// real implementation lives on thread.Thread_t.
type fakeParked struct {
	name  string
	wchan interface{}
}

func (f *fakeParked) SetWchan(q interface{}) { f.wchan = q }

func TestEnqueueDequeueIsFIFO(t *testing.T) {
	q := waitq.New()
	a := &fakeParked{name: "a"}
	b := &fakeParked{name: "b"}
	c := &fakeParked{name: "c"}
	q.Enqueue(a)
	q.Enqueue(b)
	q.Enqueue(c)
	require.Equal(t, 3, q.Len())

	require.Same(t, a, q.Dequeue())
	require.Same(t, b, q.Dequeue())
	require.Same(t, c, q.Dequeue())
	require.True(t, q.Empty())
	require.Nil(t, q.Dequeue())
}

func TestEnqueueRecordsWchan(t *testing.T) {
	q := waitq.New()
	a := &fakeParked{}
	q.Enqueue(a)
	require.Same(t, q, a.wchan)
}

func TestRemoveFromMiddle(t *testing.T) {
	q := waitq.New()
	a := &fakeParked{name: "a"}
	b := &fakeParked{name: "b"}
	c := &fakeParked{name: "c"}
	q.Enqueue(a)
	q.Enqueue(b)
	q.Enqueue(c)

	require.True(t, q.Remove(b))
	require.False(t, q.Remove(b), "removing twice finds nothing the second time")
	require.Equal(t, 2, q.Len())

	require.Same(t, a, q.Dequeue())
	require.Same(t, c, q.Dequeue())
}

func TestBroadcastDrainsInOrder(t *testing.T) {
	q := waitq.New()
	a := &fakeParked{name: "a"}
	b := &fakeParked{name: "b"}
	q.Enqueue(a)
	q.Enqueue(b)

	woken := q.Broadcast()
	require.Equal(t, []waitq.Parked{a, b}, woken)
	require.True(t, q.Empty())
}
