package pubsub

import (
	"context"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"
)

// admission bounds concurrent processing across all subscriptions.
type admission struct {
	sem   *semaphore.Weighted
	size  int
	inUse atomic.Int64
}

func newAdmission(size int) *admission {
	return &admission{sem: semaphore.NewWeighted(int64(size)), size: size}
}

// tryAcquire waits up to timeout for a permit. Every successful call must be
// paired with release.
func (a *admission) tryAcquire(ctx context.Context, timeout time.Duration) bool {
	if a.sem.TryAcquire(1) {
		a.inUse.Add(1)
		return true
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := a.sem.Acquire(ctx, 1); err != nil {
		return false
	}
	a.inUse.Add(1)
	return true
}

func (a *admission) release() {
	a.inUse.Add(-1)
	a.sem.Release(1)
}

func (a *admission) acquired() int {
	return int(a.inUse.Load())
}
