package pubsub

import (
	"time"

	"github.com/infigaming-com/go-membus/cache"
	"github.com/infigaming-com/go-membus/uid"
)

type Option func(*options)

type SubscriberOption func(*subscriberOptions)

type PublishOption func(*publishOptions)

type options struct {
	config  Config
	logger  Logger
	hooks   Hooks
	dedupe  cache.Cache
	dedupTT time.Duration
	ids     uid.UID
}

type subscriberOptions struct {
	processTimeout time.Duration
	errorPolicy    ErrorPolicy
	unsupported    []string
}

type publishOptions struct {
	attributes map[string]string
	dedupeKey  string
}

func defaultOptions() options {
	return options{
		config:  DefaultConfig(),
		dedupTT: 5 * time.Minute,
		ids:     uid.NewUUIDV7(),
	}
}

func defaultSubscriberOptions() subscriberOptions {
	return subscriberOptions{errorPolicy: AckOnError}
}

// WithConfig replaces every named option at once.
func WithConfig(cfg Config) Option {
	return func(o *options) {
		o.config = cfg
	}
}

func WithLogger(logger Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

func WithHooks(h Hooks) Option {
	return func(o *options) {
		o.hooks = h
	}
}

func WithMaxMessagesInQueue(n int) Option {
	return func(o *options) {
		o.config.MaxMessagesInQueue = n
	}
}

func WithMaxMessagesInProcessing(n int) Option {
	return func(o *options) {
		o.config.MaxMessagesInProcessing = n
	}
}

func WithMaxMessagesToPoll(n int) Option {
	return func(o *options) {
		o.config.MaxMessagesToPoll = n
	}
}

func WithMaxRedeliveryMessages(n int) Option {
	return func(o *options) {
		o.config.MaxRedeliveryMessages = n
	}
}

func WithMaxRedeliveryAttempts(n int) Option {
	return func(o *options) {
		o.config.MaxRedeliveryAttempts = n
	}
}

// WithRedeliveryDelay sets the bounds of the uniformly random redelivery delay.
func WithRedeliveryDelay(min, max time.Duration) Option {
	return func(o *options) {
		o.config.MinDelayForRedeliverySeconds = min.Seconds()
		o.config.MaxDelayForRedeliverySeconds = max.Seconds()
	}
}

func WithPublishTimeout(d time.Duration) Option {
	return func(o *options) {
		o.config.PublishTimeoutMs = int(d.Milliseconds())
	}
}

func WithQueuePoll(d time.Duration) Option {
	return func(o *options) {
		o.config.QueuePollMs = int(d.Milliseconds())
	}
}

func WithTerminationTimeout(d time.Duration) Option {
	return func(o *options) {
		o.config.TerminationTimeoutMs = int(d.Milliseconds())
	}
}

// WithDeduplication enables publish de-duplication for messages published
// with WithDeduplicationKey. Keys are remembered in store for ttl.
func WithDeduplication(store cache.Cache, ttl time.Duration) Option {
	return func(o *options) {
		o.dedupe = store
		if ttl > 0 {
			o.dedupTT = ttl
		}
	}
}

// WithIDGenerator replaces the UUIDv7 generator used for message and
// envelope ids.
func WithIDGenerator(ids uid.UID) Option {
	return func(o *options) {
		if ids != nil {
			o.ids = ids
		}
	}
}

// WithProcessTimeout bounds a single handler invocation. The handler context
// is cancelled when it elapses.
func WithProcessTimeout(d time.Duration) SubscriberOption {
	return func(o *subscriberOptions) {
		if d > 0 {
			o.processTimeout = d
		}
	}
}

func WithErrorPolicy(p ErrorPolicy) SubscriberOption {
	return func(o *subscriberOptions) {
		o.errorPolicy = p
	}
}

// WithAckDeadline is a lease setting of durable brokers. The in-process bus
// has no leases and rejects it at registration.
func WithAckDeadline(time.Duration) SubscriberOption {
	return func(o *subscriberOptions) {
		o.unsupported = append(o.unsupported, "ack_deadline")
	}
}

// WithMaxExtension is rejected at registration, see WithAckDeadline.
func WithMaxExtension(time.Duration) SubscriberOption {
	return func(o *subscriberOptions) {
		o.unsupported = append(o.unsupported, "max_extension")
	}
}

// WithDeadLetterTopic is rejected at registration: exhausted messages are
// discarded.
func WithDeadLetterTopic(string) SubscriberOption {
	return func(o *subscriberOptions) {
		o.unsupported = append(o.unsupported, "dead_letter_topic")
	}
}

func WithAttributes(attrs map[string]string) PublishOption {
	return func(o *publishOptions) {
		if len(attrs) == 0 {
			return
		}
		if o.attributes == nil {
			o.attributes = map[string]string{}
		}
		for k, v := range attrs {
			o.attributes[k] = v
		}
	}
}

// WithDeduplicationKey marks a publish as idempotent under key. It has no
// effect unless the client was built WithDeduplication.
func WithDeduplicationKey(key string) PublishOption {
	return func(o *publishOptions) {
		o.dedupeKey = key
	}
}
