package pubsub

import (
	"context"
	"slices"
	"time"
)

type inflightKey struct {
	subscription string
	key          string
}

// loop is the single dispatcher. It decides what runs next; the worker pool
// runs it.
func (c *Client) loop() {
	defer close(c.loopDone)
	timer := time.NewTimer(c.cfg.queuePoll())
	defer timer.Stop()
	for {
		c.pass()
		timer.Reset(c.nextWait())
		select {
		case <-c.ctx.Done():
			return
		case <-c.wake:
		case <-timer.C:
		}
	}
}

func (c *Client) nextWait() time.Duration {
	wait := c.cfg.queuePoll()
	if due, ok := c.redelivery.NextDue(); ok {
		if until := time.Until(due); until < wait {
			wait = max(until, time.Millisecond)
		}
	}
	return wait
}

func (c *Client) pass() {
	queues := c.topicQueues()
	names := make([]string, 0, len(queues))
	for name := range queues {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		if c.ctx.Err() != nil {
			return
		}
		if !c.scan(queues[name]) {
			break
		}
	}
	c.sweepRedeliveries()
	c.teardownIdle()
}

// scan considers up to max_messages_to_poll head entries of one topic queue.
// It returns false when no admission permit could be obtained, which ends the
// pass.
func (c *Client) scan(tq *topicQueue) bool {
	skipped := map[inflightKey]struct{}{}
	for _, d := range tq.q.Peek(c.cfg.MaxMessagesToPoll) {
		sub := c.reg.subscriber(d.subscription)
		if sub == nil || !sub.started() {
			if tq.q.Remove(d) {
				c.dropOrphan(d)
			}
			continue
		}

		// once a key is skipped, later entries with the same key wait too
		k := inflightKey{subscription: d.subscription, key: d.key}
		if _, ok := skipped[k]; ok {
			continue
		}
		if !c.guard.TryMarkBusy(d.subscription, d.key) {
			skipped[k] = struct{}{}
			continue
		}
		if !c.admission.tryAcquire(c.ctx, c.cfg.queuePoll()) {
			c.guard.ClearBusy(d.subscription, d.key)
			return false
		}
		tq.q.Remove(d)
		c.dispatch(sub, d)
	}
	return true
}

func (c *Client) dispatch(sub *subscriberEntry, d *delivery) {
	err := c.pool.Submit(func(ctx context.Context) {
		defer c.signal()
		defer c.guard.ClearBusy(d.subscription, d.key)
		defer c.admission.release()
		sub.run(ctx, d)
	})
	if err != nil {
		c.admission.release()
		c.guard.ClearBusy(d.subscription, d.key)
		c.logger.Error(c.ctx, "failed to submit message", "subscription", d.subscription, "message", d.messageID, "err", err)
	}
}

func (c *Client) dropOrphan(d *delivery) {
	meta := d.metadata()
	if c.hooks.OnOrphan != nil {
		c.hooks.OnOrphan(d.ctx, meta)
	}
	c.logger.Debug(c.ctx, "orphan message acked", "subscription", d.subscription, "message", d.messageID)
}

// sweepRedeliveries moves due redeliveries back into their topic queues.
// Deliveries whose topic queue was torn down are dropped; deliveries whose
// queue is full stay scheduled for the next sweep.
func (c *Client) sweepRedeliveries() {
	moved := c.redelivery.DrainDue(time.Now(), func(d *delivery) bool {
		tq := c.lookupQueue(d.topic)
		if tq == nil {
			c.dropOrphan(d)
			return true
		}
		return tq.q.TryOffer(d)
	})
	if moved > 0 {
		c.signal()
	}
}
