package queue

import (
	"container/list"
	"context"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

// Queue is a bounded FIFO. Offer blocks while the queue is full; a free slot
// is returned to waiting producers whenever an item leaves the queue.
// Items are compared by identity, so the same item must not be offered twice
// while it is still queued.
type Queue[T comparable] struct {
	capacity int
	slots    *semaphore.Weighted

	mu    sync.Mutex
	items *list.List
	index map[T]*list.Element
}

func New[T comparable](capacity int) *Queue[T] {
	if capacity <= 0 {
		capacity = 1
	}
	return &Queue[T]{
		capacity: capacity,
		slots:    semaphore.NewWeighted(int64(capacity)),
		items:    list.New(),
		index:    make(map[T]*list.Element, capacity),
	}
}

// Offer appends item, waiting up to timeout for a free slot. A non-positive
// timeout waits until ctx is done. It reports whether the item was queued.
func (q *Queue[T]) Offer(ctx context.Context, item T, timeout time.Duration) bool {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	if err := q.slots.Acquire(ctx, 1); err != nil {
		return false
	}
	q.push(item)
	return true
}

// TryOffer appends item only if a slot is free right now.
func (q *Queue[T]) TryOffer(item T) bool {
	if !q.slots.TryAcquire(1) {
		return false
	}
	q.push(item)
	return true
}

func (q *Queue[T]) push(item T) {
	q.mu.Lock()
	q.index[item] = q.items.PushBack(item)
	q.mu.Unlock()
}

// Peek returns up to n items from the head without removing them.
func (q *Queue[T]) Peek(n int) []T {
	q.mu.Lock()
	defer q.mu.Unlock()
	if n <= 0 || n > q.items.Len() {
		n = q.items.Len()
	}
	out := make([]T, 0, n)
	for e := q.items.Front(); e != nil && len(out) < n; e = e.Next() {
		out = append(out, e.Value.(T))
	}
	return out
}

// Remove deletes item wherever it sits in the queue.
func (q *Queue[T]) Remove(item T) bool {
	q.mu.Lock()
	e, ok := q.index[item]
	if ok {
		q.unlink(e)
	}
	q.mu.Unlock()
	if ok {
		q.slots.Release(1)
	}
	return ok
}

// Drain removes and returns every queued item.
func (q *Queue[T]) Drain() []T {
	q.mu.Lock()
	out := make([]T, 0, q.items.Len())
	for e := q.items.Front(); e != nil; e = q.items.Front() {
		out = append(out, q.unlink(e))
	}
	q.mu.Unlock()
	if len(out) > 0 {
		q.slots.Release(int64(len(out)))
	}
	return out
}

func (q *Queue[T]) unlink(e *list.Element) T {
	item := q.items.Remove(e).(T)
	delete(q.index, item)
	return item
}

func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.items.Len()
}

func (q *Queue[T]) Cap() int { return q.capacity }
