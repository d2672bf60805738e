package pubsub

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"
)

// Topic names a stream of messages of type M.
type Topic[M any] struct {
	Name string
}

// Publisher publishes to one topic. A topic has at most one live publisher.
type Publisher[M any] struct {
	client *Client
	topic  Topic[M]
	closed atomic.Bool
}

func NewPublisher[M any](c *Client, t Topic[M]) (*Publisher[M], error) {
	if t.Name == "" {
		return nil, fmt.Errorf("%w: topic name required", ErrInvalidArgument)
	}
	if err := c.guardOpen(); err != nil {
		return nil, err
	}
	if err := c.reg.registerPublisher(t.Name); err != nil {
		return nil, err
	}
	c.reg.registerTopic(t.Name)
	return &Publisher[M]{client: c, topic: t}, nil
}

func (p *Publisher[M]) Topic() string { return p.topic.Name }

// Publish fans msg out to every started subscription of the topic and returns
// the message id. A copy that cannot be queued within the publish timeout is
// logged and dropped for that subscription only; Publish still succeeds. A
// topic without started subscriptions accepts and drops the message.
func (p *Publisher[M]) Publish(ctx context.Context, msg M, opts ...PublishOption) (string, error) {
	if p.closed.Load() {
		return "", ErrPublisherClosed
	}
	po := publishOptions{}
	for _, opt := range opts {
		opt(&po)
	}
	return p.client.publish(ctx, p.topic.Name, msg, po)
}

// Close releases the topic so another publisher can be created for it.
func (p *Publisher[M]) Close() error {
	if p.closed.CompareAndSwap(false, true) {
		p.client.reg.unregisterPublisher(p.topic.Name)
	}
	return nil
}

func (c *Client) publish(ctx context.Context, topic string, payload any, po publishOptions) (string, error) {
	if err := c.guardOpen(); err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	id, err := c.ids.New()
	if err != nil {
		return "", err
	}
	if po.dedupeKey != "" && c.opts.dedupe != nil {
		if prev, dup := c.checkDuplicate(ctx, topic, po.dedupeKey, id); dup {
			c.logger.Debug(ctx, "duplicate publish suppressed", "topic", topic, "key", po.dedupeKey, "message", prev)
			return prev, nil
		}
	}

	subs := c.reg.started(topic)
	if len(subs) == 0 {
		c.logger.Debug(ctx, "no started subscriptions, message dropped", "topic", topic, "message", id)
		if c.hooks.OnPublish != nil {
			c.hooks.OnPublish(ctx, topic, id, 0)
		}
		return id, nil
	}

	tq := c.acquireQueue(topic)
	defer tq.release()

	offerCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(c.ctx, cancel)
	defer stop()

	captured := context.WithoutCancel(ctx)
	now := time.Now()
	var queued int
	for _, sub := range subs {
		envID, err := c.ids.New()
		if err != nil {
			return "", err
		}
		d := &delivery{
			id:           envID,
			messageID:    id,
			topic:        topic,
			subscription: sub.name,
			key:          sub.keyOf(payload),
			payload:      payload,
			ctx:          captured,
			attributes:   cloneMap(po.attributes),
			publishedAt:  now,
			remaining:    c.cfg.MaxRedeliveryAttempts,
		}
		if tq.q.Offer(offerCtx, d, c.cfg.publishTimeout()) {
			queued++
			c.signal()
			continue
		}
		c.onPublishDrop(ctx, d)
	}
	if c.hooks.OnPublish != nil {
		c.hooks.OnPublish(ctx, topic, id, queued)
	}
	return id, nil
}

func (c *Client) onPublishDrop(ctx context.Context, d *delivery) {
	err := fmt.Errorf("%w: subscription %q", ErrPublishTimeout, d.subscription)
	if c.isClosed() {
		err = ErrShutdown
	}
	if c.hooks.OnPublishDrop != nil {
		c.hooks.OnPublishDrop(ctx, d.metadata(), err)
	}
	c.dropLog.Do(func() {
		c.logger.Warn(ctx, "message dropped for subscription", "topic", d.topic, "subscription", d.subscription, "message", d.messageID, "err", err)
	})
}

// checkDuplicate records key for topic and reports the id of an earlier
// publish with the same key. Store failures disable de-duplication for this
// publish.
func (c *Client) checkDuplicate(ctx context.Context, topic, key, id string) (string, bool) {
	storeKey := "membus:dedupe:" + topic + ":" + key
	ok, err := c.opts.dedupe.SetNX(ctx, storeKey, id, c.opts.dedupTT)
	if err != nil {
		c.logger.Warn(ctx, "dedupe store failed", "topic", topic, "key", key, "err", err)
		return "", false
	}
	if ok {
		return "", false
	}
	prev, err := c.opts.dedupe.Get(ctx, storeKey)
	if err != nil {
		c.logger.Warn(ctx, "dedupe lookup failed", "topic", topic, "key", key, "err", err)
		return "", false
	}
	return prev, true
}
