package actor

import "container/heap"

// taskHeap is a container/heap min-heap over *Task keyed by
// (ExecuteAt, insertSeq) ascending, per spec.md §4.3 "Scheduling order":
// ties at the same execute_at resolve FIFO by insertion order.
type taskHeap []*Task

func (h taskHeap) Len() int { return len(h) }

func (h taskHeap) Less(i, j int) bool {
	if !h[i].ExecuteAt.Equal(h[j].ExecuteAt) {
		return h[i].ExecuteAt.Before(h[j].ExecuteAt)
	}
	return h[i].insertSeq < h[j].insertSeq
}

func (h taskHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *taskHeap) Push(x any) {
	*h = append(*h, x.(*Task))
}

func (h *taskHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}

// schedule wraps taskHeap with the insertion counter described in spec.md
// §4.3: strictly increasing, reset only when the heap is fully cleared
// (i.e. on cancellation, per spec.md §4.4's cancellation protocol).
type schedule struct {
	h       taskHeap
	nextSeq uint64
}

func newSchedule() *schedule {
	s := &schedule{}
	heap.Init(&s.h)
	return s
}

func (s *schedule) push(t *Task) {
	t.insertSeq = s.nextSeq
	s.nextSeq++
	heap.Push(&s.h, t)
}

func (s *schedule) peek() (*Task, bool) {
	if len(s.h) == 0 {
		return nil, false
	}
	return s.h[0], true
}

func (s *schedule) pop() *Task {
	return heap.Pop(&s.h).(*Task)
}

func (s *schedule) len() int { return len(s.h) }

// clear empties the heap and resets the insertion counter, per spec.md
// §4.3's rule that a resource-method exception or an explicit cancel
// clears all pending scheduled work for that worker.
func (s *schedule) clear() {
	s.h = s.h[:0]
	s.nextSeq = 0
}
