package redelivery

import (
	"container/heap"
	"context"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

type entry[T any] struct {
	item T
	due  time.Time
	seq  uint64
}

type entries[T any] []entry[T]

func (h entries[T]) Len() int { return len(h) }
func (h entries[T]) Less(i, j int) bool {
	if h[i].due.Equal(h[j].due) {
		return h[i].seq < h[j].seq
	}
	return h[i].due.Before(h[j].due)
}
func (h entries[T]) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *entries[T]) Push(x any)   { *h = append(*h, x.(entry[T])) }
func (h *entries[T]) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = entry[T]{}
	*h = old[:n-1]
	return e
}

// Heap is a bounded min-heap of items ordered by due time. Schedule blocks
// while the heap is full.
type Heap[T any] struct {
	capacity int
	slots    *semaphore.Weighted

	mu      sync.Mutex
	entries entries[T]
	seq     uint64
}

func New[T any](capacity int) *Heap[T] {
	if capacity <= 0 {
		capacity = 1
	}
	return &Heap[T]{
		capacity: capacity,
		slots:    semaphore.NewWeighted(int64(capacity)),
		entries:  make(entries[T], 0, capacity),
	}
}

// Schedule inserts item with the given due time, waiting for capacity until
// ctx is done.
func (h *Heap[T]) Schedule(ctx context.Context, item T, due time.Time) error {
	if err := h.slots.Acquire(ctx, 1); err != nil {
		return err
	}
	h.mu.Lock()
	h.seq++
	heap.Push(&h.entries, entry[T]{item: item, due: due, seq: h.seq})
	h.mu.Unlock()
	return nil
}

// DrainDue pops every item due at or before now and passes it to fn in heap
// order. Items for which fn returns false stay scheduled and keep their slot.
// It returns the number of items fn accepted.
func (h *Heap[T]) DrainDue(now time.Time, fn func(T) bool) int {
	h.mu.Lock()
	var due []entry[T]
	for len(h.entries) > 0 && !h.entries[0].due.After(now) {
		due = append(due, heap.Pop(&h.entries).(entry[T]))
	}
	h.mu.Unlock()

	var accepted int
	var kept []entry[T]
	for _, e := range due {
		if fn(e.item) {
			accepted++
			continue
		}
		kept = append(kept, e)
	}
	if accepted > 0 {
		h.slots.Release(int64(accepted))
	}
	if len(kept) > 0 {
		h.mu.Lock()
		for _, e := range kept {
			heap.Push(&h.entries, e)
		}
		h.mu.Unlock()
	}
	return accepted
}

// NextDue returns the earliest due time, if any item is scheduled.
func (h *Heap[T]) NextDue() (time.Time, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.entries) == 0 {
		return time.Time{}, false
	}
	return h.entries[0].due, true
}

// Clear drops every scheduled item and returns them.
func (h *Heap[T]) Clear() []T {
	h.mu.Lock()
	out := make([]T, 0, len(h.entries))
	for _, e := range h.entries {
		out = append(out, e.item)
	}
	h.entries = h.entries[:0]
	h.mu.Unlock()
	if len(out) > 0 {
		h.slots.Release(int64(len(out)))
	}
	return out
}

func (h *Heap[T]) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.entries)
}

func (h *Heap[T]) Cap() int { return h.capacity }
