package pubsub

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/infigaming-com/go-membus/pubsub/internal/backoff"
	"github.com/infigaming-com/go-membus/pubsub/internal/keyguard"
	"github.com/infigaming-com/go-membus/pubsub/internal/queue"
	"github.com/infigaming-com/go-membus/pubsub/internal/redelivery"
	"github.com/infigaming-com/go-membus/pubsub/internal/worker"
	"github.com/infigaming-com/go-membus/uid"
)

// Client owns every piece of bus state: the registry, the topic queues, the
// redelivery heap, the admission permits and the dispatch loop.
type Client struct {
	cfg    Config
	opts   options
	logger Logger
	hooks  Hooks

	ctx    context.Context
	cancel context.CancelFunc

	reg        *registry
	redelivery *redelivery.Heap[*delivery]
	admission  *admission
	guard      *keyguard.Guard
	pool       *worker.Pool
	delay      backoff.Uniform
	ids        uid.UID

	queuesMu sync.RWMutex
	queues   map[string]*topicQueue

	wake     chan struct{}
	loopDone chan struct{}
	dropLog  rate.Sometimes

	mu     sync.RWMutex
	closed bool
}

type topicQueue struct {
	name string
	q    *queue.Queue[*delivery]
	// publishers currently offering into q; the loop never tears down a
	// queue with pending offers
	pending atomic.Int32
}

func New(ctx context.Context, opts ...Option) (*Client, error) {
	base := defaultOptions()
	for _, opt := range opts {
		opt(&base)
	}
	if err := base.config.Validate(); err != nil {
		return nil, err
	}
	logger := base.logger
	if logger == nil {
		logger = noopLogger{}
	}
	cfg := base.config
	clientCtx, cancel := context.WithCancel(ctx)
	c := &Client{
		cfg:        cfg,
		opts:       base,
		logger:     logger,
		hooks:      base.hooks,
		ctx:        clientCtx,
		cancel:     cancel,
		reg:        newRegistry(),
		redelivery: redelivery.New[*delivery](cfg.MaxRedeliveryMessages),
		admission:  newAdmission(cfg.MaxMessagesInProcessing),
		guard:      keyguard.New(),
		pool:       worker.New(ctx),
		delay:      backoff.New(cfg.minRedeliveryDelay(), cfg.maxRedeliveryDelay()),
		ids:        base.ids,
		queues:     map[string]*topicQueue{},
		wake:       make(chan struct{}, 1),
		loopDone:   make(chan struct{}),
		dropLog:    rate.Sometimes{First: 5, Interval: time.Second},
	}
	go c.loop()
	return c, nil
}

func (c *Client) Config() Config { return c.cfg }

// Close stops the dispatch loop and rejects new publishes. It then waits for
// running handlers up to the termination timeout (or ctx). Handlers still
// running after that have their context cancelled and are abandoned.
// Messages still queued or awaiting redelivery are dropped.
func (c *Client) Close(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	c.cancel()
	<-c.loopDone
	c.pool.Close()

	waitCtx, cancel := context.WithTimeout(ctx, c.cfg.terminationTimeout())
	defer cancel()
	var result error
	if err := c.pool.Wait(waitCtx); err != nil {
		result = ErrTerminationTimeout.Wrap(err)
		c.logger.Warn(ctx, "abandoning running handlers", "running", c.pool.Running(), "err", err)
	}
	c.pool.Abandon()

	var dropped int
	c.queuesMu.Lock()
	for name, tq := range c.queues {
		dropped += len(tq.q.Drain())
		delete(c.queues, name)
	}
	c.queuesMu.Unlock()
	dropped += len(c.redelivery.Clear())
	c.logger.Info(ctx, "pubsub client closed", "dropped", dropped)
	return result
}

func (c *Client) guardOpen() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed || c.ctx.Err() != nil {
		return ErrShutdown
	}
	return nil
}

func (c *Client) isClosed() bool {
	return c.guardOpen() != nil
}

// signal wakes the dispatch loop. Signals coalesce.
func (c *Client) signal() {
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

// acquireQueue returns the queue of topic, creating it if needed, and
// registers the caller as a pending producer. Callers must call release.
func (c *Client) acquireQueue(topic string) *topicQueue {
	c.queuesMu.Lock()
	defer c.queuesMu.Unlock()
	tq, ok := c.queues[topic]
	if !ok {
		tq = &topicQueue{name: topic, q: queue.New[*delivery](c.cfg.MaxMessagesInQueue)}
		c.queues[topic] = tq
	}
	tq.pending.Add(1)
	return tq
}

func (tq *topicQueue) release() {
	tq.pending.Add(-1)
}

func (c *Client) lookupQueue(topic string) *topicQueue {
	c.queuesMu.RLock()
	defer c.queuesMu.RUnlock()
	return c.queues[topic]
}

func (c *Client) topicQueues() map[string]*topicQueue {
	c.queuesMu.RLock()
	defer c.queuesMu.RUnlock()
	out := make(map[string]*topicQueue, len(c.queues))
	for k, v := range c.queues {
		out[k] = v
	}
	return out
}

// teardownIdle removes empty queues whose topic has no started subscriber.
func (c *Client) teardownIdle() {
	c.queuesMu.Lock()
	defer c.queuesMu.Unlock()
	for name, tq := range c.queues {
		if tq.pending.Load() > 0 || tq.q.Len() > 0 || c.reg.hasStarted(name) {
			continue
		}
		delete(c.queues, name)
		c.logger.Debug(c.ctx, "topic queue torn down", "topic", name)
	}
}

func (c *Client) ack(ctx context.Context, d *delivery, meta MessageMetadata) (AckStatus, error) {
	c.recordHealth(d.subscription, func(h *SubscriberHealth) { h.Acked++ })
	if c.hooks.OnAck != nil {
		c.hooks.OnAck(ctx, meta)
	}
	return StatusSuccessful, nil
}

func (c *Client) nack(ctx context.Context, d *delivery, meta MessageMetadata) (AckStatus, error) {
	c.recordHealth(d.subscription, func(h *SubscriberHealth) { h.Nacked++ })
	if c.isClosed() {
		return StatusOther, ErrShutdown
	}
	if d.remaining <= 0 {
		if c.hooks.OnExhausted != nil {
			c.hooks.OnExhausted(ctx, meta)
		}
		c.logger.Debug(ctx, "redelivery exhausted", "subscription", d.subscription, "message", d.messageID)
		return StatusFailedPrecondition, ErrRedeliveryExhausted
	}
	d.remaining--
	delay := c.delay.Next()
	d.due = time.Now().Add(delay)

	scheduleCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.cfg.publishTimeout())
	defer cancel()
	stop := context.AfterFunc(c.ctx, cancel)
	defer stop()
	if err := c.redelivery.Schedule(scheduleCtx, d, d.due); err != nil {
		c.logger.Warn(ctx, "redelivery schedule failed", "subscription", d.subscription, "message", d.messageID, "err", err)
		if c.isClosed() {
			return StatusOther, ErrShutdown
		}
		return StatusOther, ErrRedeliveryQueueFull.Wrap(err)
	}
	if c.hooks.OnNack != nil {
		c.hooks.OnNack(ctx, meta, delay)
	}
	c.signal()
	return StatusSuccessful, nil
}

func (c *Client) recordHealth(subscription string, fn func(h *SubscriberHealth)) {
	if e := c.reg.subscriber(subscription); e != nil {
		e.record(fn)
	}
}

func (c *Client) String() string {
	return fmt.Sprintf("pubsub Client topics=%d subscribers=%d", len(c.reg.topicNames()), len(c.reg.subscriberEntries()))
}
