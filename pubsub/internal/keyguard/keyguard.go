package keyguard

import "sync"

type busyKey struct {
	subscription string
	key          string
}

// Guard tracks which parallelization keys are being processed, per
// subscription. It is safe for concurrent use without external locking.
type Guard struct {
	busy sync.Map
}

func New() *Guard {
	return &Guard{}
}

// TryMarkBusy marks key busy for subscription. It returns false if the key is
// already busy.
func (g *Guard) TryMarkBusy(subscription, key string) bool {
	_, loaded := g.busy.LoadOrStore(busyKey{subscription: subscription, key: key}, struct{}{})
	return !loaded
}

func (g *Guard) ClearBusy(subscription, key string) {
	g.busy.Delete(busyKey{subscription: subscription, key: key})
}

// Count returns the number of busy keys for subscription.
func (g *Guard) Count(subscription string) int {
	var n int
	g.busy.Range(func(k, _ any) bool {
		if k.(busyKey).subscription == subscription {
			n++
		}
		return true
	})
	return n
}
