// Package schedule runs deferred actions at tick-relative deadlines so that
// delayed transitions stay independent of wall-clock time.
package schedule

import "container/heap"

// Handle identifies a scheduled action so that it can be cancelled.
type Handle uint64

type item struct {
	due    uint64
	seq    uint64
	handle Handle
	action func()
}

type items []*item

func (q items) Len() int { return len(q) }

func (q items) Less(i, j int) bool {
	if q[i].due != q[j].due {
		return q[i].due < q[j].due
	}
	return q[i].seq < q[j].seq
}

func (q items) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *items) Push(x any) { *q = append(*q, x.(*item)) }

func (q *items) Pop() any {
	old := *q
	n := len(old)
	it := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]
	return it
}

// Queue orders actions by due tick, breaking ties by scheduling order.
type Queue struct {
	heap      items
	seq       uint64
	cancelled map[Handle]struct{}
}

// NewQueue returns an empty queue.
func NewQueue() *Queue {
	return &Queue{cancelled: make(map[Handle]struct{})}
}

// At schedules action to run when the clock reaches due.
func (q *Queue) At(due uint64, action func()) Handle {
	q.seq++
	h := Handle(q.seq)
	heap.Push(&q.heap, &item{due: due, seq: q.seq, handle: h, action: action})
	return h
}

// Cancel prevents a pending action from running. Unknown or already-run
// handles are ignored.
func (q *Queue) Cancel(h Handle) {
	for _, it := range q.heap {
		if it.handle == h {
			q.cancelled[h] = struct{}{}
			return
		}
	}
}

// Pending returns the number of actions that will still run.
func (q *Queue) Pending() int {
	return len(q.heap) - len(q.cancelled)
}

// RunDue executes, in order, every action due at or before now and returns how
// many ran.
func (q *Queue) RunDue(now uint64) int {
	ran := 0
	for len(q.heap) > 0 && q.heap[0].due <= now {
		it := heap.Pop(&q.heap).(*item)
		if _, skip := q.cancelled[it.handle]; skip {
			delete(q.cancelled, it.handle)
			continue
		}
		it.action()
		ran++
	}
	return ran
}
