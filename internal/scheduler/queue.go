package scheduler

import (
	"container/heap"
	"errors"
	"fmt"
	"sort"
)

// ErrQueueEmpty is returned by PopFront on an empty queue.
var ErrQueueEmpty = errors.New("crossing queue is empty")

// QueueEntry is the ordering key of a waiting vehicle.
type QueueEntry struct {
	Priority        int
	ArrivalSequence int64
	VehicleID       int64
}

// less orders by priority, then arrival. The id comparison is never reached
// while arrival sequences are unique but keeps the order total.
func (a QueueEntry) less(b QueueEntry) bool {
	if a.Priority != b.Priority {
		return a.Priority < b.Priority
	}
	if a.ArrivalSequence != b.ArrivalSequence {
		return a.ArrivalSequence < b.ArrivalSequence
	}
	return a.VehicleID < b.VehicleID
}

type entryHeap []QueueEntry

func (h entryHeap) Len() int           { return len(h) }
func (h entryHeap) Less(i, j int) bool { return h[i].less(h[j]) }
func (h entryHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *entryHeap) Push(x any)        { *h = append(*h, x.(QueueEntry)) }
func (h *entryHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	*h = old[:n-1]
	return e
}

// Queue is a min-first priority queue of waiting vehicles.
// It is not safe for concurrent use.
type Queue struct {
	entries entryHeap
	members map[int64]struct{}
}

// NewQueue returns an empty queue.
func NewQueue() *Queue {
	return &Queue{members: make(map[int64]struct{})}
}

// Push enqueues a vehicle. A vehicle may only be queued once.
func (q *Queue) Push(vehicleID int64, priority int, arrivalSequence int64) error {
	if _, ok := q.members[vehicleID]; ok {
		return fmt.Errorf("vehicle %d already queued", vehicleID)
	}
	heap.Push(&q.entries, QueueEntry{
		Priority:        priority,
		ArrivalSequence: arrivalSequence,
		VehicleID:       vehicleID,
	})
	q.members[vehicleID] = struct{}{}
	return nil
}

// PeekFront returns the vehicle eligible to cross next.
func (q *Queue) PeekFront() (int64, bool) {
	if len(q.entries) == 0 {
		return 0, false
	}
	return q.entries[0].VehicleID, true
}

// PopFront removes and returns the front vehicle.
func (q *Queue) PopFront() (int64, error) {
	if len(q.entries) == 0 {
		return 0, ErrQueueEmpty
	}
	e := heap.Pop(&q.entries).(QueueEntry)
	delete(q.members, e.VehicleID)
	return e.VehicleID, nil
}

// IsFront reports whether vehicleID is at the head of a non-empty queue.
func (q *Queue) IsFront(vehicleID int64) bool {
	front, ok := q.PeekFront()
	return ok && front == vehicleID
}

// Contains reports whether vehicleID is queued.
func (q *Queue) Contains(vehicleID int64) bool {
	_, ok := q.members[vehicleID]
	return ok
}

// Len returns the number of queued vehicles.
func (q *Queue) Len() int {
	return len(q.entries)
}

// Entries returns the queue contents in service order.
func (q *Queue) Entries() []QueueEntry {
	out := make([]QueueEntry, len(q.entries))
	copy(out, q.entries)
	sort.Slice(out, func(i, j int) bool { return out[i].less(out[j]) })
	return out
}

// Clear empties the queue.
func (q *Queue) Clear() {
	q.entries = nil
	q.members = make(map[int64]struct{})
}
