package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

var ErrClosed = errors.New("worker: pool closed")

// Pool runs each submitted job on its own goroutine. Concurrency is bounded by
// the caller; the pool only tracks running jobs so shutdown can wait for them.
type Pool struct {
	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.RWMutex
	closed  bool
	wg      sync.WaitGroup
	running atomic.Int64
}

func New(parent context.Context) *Pool {
	ctx, cancel := context.WithCancel(parent)
	return &Pool{ctx: ctx, cancel: cancel}
}

// Submit starts fn. The context passed to fn is cancelled by Abandon.
func (p *Pool) Submit(fn func(context.Context)) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrClosed
	}
	p.wg.Add(1)
	p.running.Add(1)
	go func() {
		defer p.wg.Done()
		defer p.running.Add(-1)
		fn(p.ctx)
	}()
	return nil
}

// Close rejects further submissions.
func (p *Pool) Close() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
}

// Wait blocks until every running job returns or ctx is done.
func (p *Pool) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Abandon cancels the context of running jobs without waiting for them.
func (p *Pool) Abandon() {
	p.cancel()
}

func (p *Pool) Running() int {
	return int(p.running.Load())
}
