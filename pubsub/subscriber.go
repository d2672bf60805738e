package pubsub

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Subscription names a consumer group of one topic. Key extracts the
// parallelization key of a message; a nil Key serializes the whole
// subscription.
type Subscription[M any] struct {
	Name  string
	Topic Topic[M]
	Key   func(M) string
}

// Subscriber delivers envelopes of one subscription to a handler once
// started.
type Subscriber[M any] struct {
	client       *Client
	subscription Subscription[M]
	handler      Handler[M]
	options      subscriberOptions
	entry        *subscriberEntry
}

func NewSubscriber[M any](c *Client, s Subscription[M], h Handler[M], opts ...SubscriberOption) (*Subscriber[M], error) {
	if s.Name == "" || s.Topic.Name == "" {
		return nil, fmt.Errorf("%w: subscription and topic names required", ErrInvalidArgument)
	}
	if h == nil {
		return nil, fmt.Errorf("%w: handler required", ErrInvalidArgument)
	}
	sopts := defaultSubscriberOptions()
	for _, opt := range opts {
		opt(&sopts)
	}
	if len(sopts.unsupported) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedSubscriberOption, strings.Join(sopts.unsupported, ", "))
	}
	if err := c.guardOpen(); err != nil {
		return nil, err
	}
	if err := c.reg.registerSubscription(s.Name, s.Topic.Name); err != nil {
		return nil, err
	}

	sub := &Subscriber[M]{client: c, subscription: s, handler: h, options: sopts}
	sub.entry = &subscriberEntry{
		name:  s.Name,
		topic: s.Topic.Name,
		keyOf: sub.keyOf,
		run:   sub.process,
	}
	if err := c.reg.registerSubscriber(sub.entry); err != nil {
		return nil, err
	}
	c.reg.registerTopic(s.Topic.Name)
	return sub, nil
}

func (s *Subscriber[M]) Name() string { return s.subscription.Name }

func (s *Subscriber[M]) Topic() string { return s.subscription.Topic.Name }

// Start makes the subscriber eligible for fan-out. Starting twice is a no-op;
// a closed subscriber cannot be started.
func (s *Subscriber[M]) Start() error {
	if s.entry.state.CompareAndSwap(int32(stateCreated), int32(stateStarted)) {
		s.client.logger.Info(s.client.ctx, "subscriber started", "subscription", s.Name(), "topic", s.Topic())
		s.client.signal()
		return nil
	}
	if s.entry.loadState() == stateClosed {
		return ErrSubscriberClosed
	}
	return nil
}

// Close unbinds the subscriber. Messages still queued for it are acked and
// dropped by the dispatcher. Handlers already running are not interrupted.
func (s *Subscriber[M]) Close() error {
	if subscriberState(s.entry.state.Swap(int32(stateClosed))) == stateClosed {
		return nil
	}
	s.client.reg.unregisterSubscriber(s.entry)
	s.client.logger.Info(s.client.ctx, "subscriber closed", "subscription", s.Name())
	s.client.signal()
	return nil
}

func (s *Subscriber[M]) Health() SubscriberHealth {
	return s.entry.snapshot()
}

func (s *Subscriber[M]) keyOf(payload any) string {
	if s.subscription.Key == nil {
		return s.subscription.Name
	}
	msg, _ := payload.(M)
	return s.subscription.Key(msg)
}

// process runs one delivery attempt on a worker goroutine. The handler sees
// the values of the publisher's context and is cancelled when the client
// abandons its workers or the process timeout elapses.
func (s *Subscriber[M]) process(parent context.Context, d *delivery) {
	c := s.client
	ctx, cancel := context.WithCancel(context.WithoutCancel(d.ctx))
	defer cancel()
	stop := context.AfterFunc(parent, cancel)
	defer stop()
	if s.options.processTimeout > 0 {
		var cancelTimeout context.CancelFunc
		ctx, cancelTimeout = context.WithTimeout(ctx, s.options.processTimeout)
		defer cancelTimeout()
	}

	d.attempt++
	env := newEnvelope[M](c, d)
	meta := env.meta
	if c.hooks.OnDeliver != nil {
		c.hooks.OnDeliver(ctx, meta)
	}
	s.entry.record(func(h *SubscriberHealth) {
		h.Delivered++
		h.LastMessageID = meta.MessageID
	})

	start := time.Now()
	result, err := s.invoke(ctx, env)
	if err != nil {
		if c.hooks.OnHandlerError != nil {
			c.hooks.OnHandlerError(ctx, meta, err)
		}
		s.entry.record(func(h *SubscriberHealth) {
			h.Failures++
			h.LastError = err.Error()
		})
		c.logger.Warn(ctx, "handler failed", "subscription", s.Name(), "message", meta.MessageID, "attempt", meta.Attempt, "err", err)
		result = s.options.errorPolicy.result()
	}

	if !env.Settled() {
		settleCtx := context.WithoutCancel(ctx)
		status, err := env.settle(settleCtx, result)
		if status == StatusUnsupported {
			// the only terminal outcome left is ack
			c.logger.Warn(ctx, "unsupported settlement, acking", "subscription", s.Name(), "message", meta.MessageID, "err", err)
			status, err = env.Ack(settleCtx)
		}
		if err != nil {
			c.logger.Debug(ctx, "settlement", "subscription", s.Name(), "message", meta.MessageID, "status", status.String(), "err", err)
		}
	}
	if c.hooks.OnComplete != nil {
		c.hooks.OnComplete(ctx, meta, time.Since(start))
	}
}

func (s *Subscriber[M]) invoke(ctx context.Context, env *Envelope[M]) (result Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = ErrHandlerPanic.Wrap(fmt.Errorf("%v", r))
		}
	}()
	return s.handler.Handle(ctx, env)
}
