package timectrl

import (
	"container/heap"
	"fmt"
	"sort"
	"time"
)

type event struct {
	id    string
	when  time.Time
	seq   uint64
	fn    func()
	index int
}

// before orders events by time, then by scheduling order.
func (e *event) before(o *event) bool {
	if e.when.Equal(o.when) {
		return e.seq < o.seq
	}
	return e.when.Before(o.when)
}

type eventHeap []*event

func (h eventHeap) Len() int           { return len(h) }
func (h eventHeap) Less(i, j int) bool { return h[i].before(h[j]) }
func (h eventHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *eventHeap) Push(x any) {
	ev := x.(*event)
	ev.index = len(*h)
	*h = append(*h, ev)
}

func (h *eventHeap) Pop() any {
	old := *h
	n := len(old)
	ev := old[n-1]
	old[n-1] = nil
	ev.index = -1
	*h = old[:n-1]
	return ev
}

// eventQueue holds pending callbacks. Cancelled events are removed eagerly,
// so every entry in the heap is live. Not safe for concurrent use; callers
// hold their own lock.
type eventQueue struct {
	prefix string
	seq    uint64
	heap   eventHeap
	byID   map[string]*event
}

func newEventQueue(prefix string) *eventQueue {
	return &eventQueue{prefix: prefix, byID: make(map[string]*event)}
}

func (q *eventQueue) push(at time.Time, fn func()) string {
	q.seq++
	ev := &event{
		id:   fmt.Sprintf("%s-%d", q.prefix, q.seq),
		when: at,
		seq:  q.seq,
		fn:   fn,
	}
	heap.Push(&q.heap, ev)
	q.byID[ev.id] = ev
	return ev.id
}

func (q *eventQueue) remove(id string) bool {
	ev, ok := q.byID[id]
	if !ok {
		return false
	}
	delete(q.byID, id)
	heap.Remove(&q.heap, ev.index)
	return true
}

func (q *eventQueue) next() (time.Time, bool) {
	if len(q.heap) == 0 {
		return time.Time{}, false
	}
	return q.heap[0].when, true
}

// popDue removes the earliest event if it is due at now.
func (q *eventQueue) popDue(now time.Time) *event {
	if len(q.heap) == 0 || q.heap[0].when.After(now) {
		return nil
	}
	ev := heap.Pop(&q.heap).(*event)
	delete(q.byID, ev.id)
	return ev
}

func (q *eventQueue) len() int { return len(q.heap) }

// ids lists pending event IDs in the order they would run.
func (q *eventQueue) ids() []string {
	evs := make([]*event, len(q.heap))
	copy(evs, q.heap)
	sort.Slice(evs, func(i, j int) bool { return evs[i].before(evs[j]) })
	out := make([]string, len(evs))
	for i, ev := range evs {
		out[i] = ev.id
	}
	return out
}
