package pubsub

import (
	"context"
	"sync/atomic"
	"time"
)

type AckStatus int

const (
	StatusSuccessful AckStatus = iota
	StatusFailedPrecondition
	StatusOther
	StatusUnsupported
)

func (s AckStatus) String() string {
	switch s {
	case StatusSuccessful:
		return "SUCCESSFUL"
	case StatusFailedPrecondition:
		return "FAILED_PRECONDITION"
	case StatusOther:
		return "OTHER"
	case StatusUnsupported:
		return "UNSUPPORTED"
	default:
		return "UNKNOWN"
	}
}

type resultKind int

const (
	resultAck resultKind = iota
	resultNack
	resultNackWithDelay
)

// Result is the outcome a Handler reports for an envelope it did not settle
// itself.
type Result struct {
	kind  resultKind
	delay time.Duration
}

func Ack() Result                          { return Result{kind: resultAck} }
func Nack() Result                         { return Result{kind: resultNack} }
func NackWithDelay(d time.Duration) Result { return Result{kind: resultNackWithDelay, delay: d} }

// ErrorPolicy decides the outcome when a handler returns an error or panics.
type ErrorPolicy int

const (
	// AckOnError treats a failed handler as processed. The message is not
	// retried; handlers that want a retry return Nack.
	AckOnError ErrorPolicy = iota
	NackOnError
)

func (p ErrorPolicy) result() Result {
	if p == NackOnError {
		return Nack()
	}
	return Ack()
}

type Handler[M any] interface {
	Handle(ctx context.Context, env *Envelope[M]) (Result, error)
}

type HandlerFunc[M any] func(ctx context.Context, env *Envelope[M]) (Result, error)

func (f HandlerFunc[M]) Handle(ctx context.Context, env *Envelope[M]) (Result, error) {
	return f(ctx, env)
}

// delivery is the per-subscription copy of a published message while it moves
// between the topic queue, the redelivery heap and a worker.
type delivery struct {
	id           string
	messageID    string
	topic        string
	subscription string
	key          string
	payload      any
	ctx          context.Context
	attributes   map[string]string
	publishedAt  time.Time

	// owned by whoever holds the delivery: a worker, or the heap/queue
	remaining int
	attempt   int
	due       time.Time
}

func (d *delivery) metadata() MessageMetadata {
	return MessageMetadata{
		ID:           d.id,
		MessageID:    d.messageID,
		Topic:        d.topic,
		Subscription: d.subscription,
		Key:          d.key,
		Attempt:      d.attempt,
		Attributes:   cloneMap(d.attributes),
	}
}

// Envelope is one delivery attempt of a message to a subscription. It is
// settled at most once, by the handler or by the bus after the handler
// returns.
type Envelope[M any] struct {
	client  *Client
	d       *delivery
	meta    MessageMetadata
	payload M
	settled atomic.Bool
}

func newEnvelope[M any](c *Client, d *delivery) *Envelope[M] {
	payload, _ := d.payload.(M)
	return &Envelope[M]{client: c, d: d, meta: d.metadata(), payload: payload}
}

func (e *Envelope[M]) ID() string                    { return e.meta.ID }
func (e *Envelope[M]) MessageID() string             { return e.meta.MessageID }
func (e *Envelope[M]) Topic() string                 { return e.meta.Topic }
func (e *Envelope[M]) Subscription() string          { return e.meta.Subscription }
func (e *Envelope[M]) Key() string                   { return e.meta.Key }
func (e *Envelope[M]) Attempt() int                  { return e.meta.Attempt }
func (e *Envelope[M]) Attributes() map[string]string { return cloneMap(e.meta.Attributes) }
func (e *Envelope[M]) Payload() M                    { return e.payload }
func (e *Envelope[M]) Settled() bool                 { return e.settled.Load() }

// Ack marks the message processed. It always succeeds on the first call.
func (e *Envelope[M]) Ack(ctx context.Context) (AckStatus, error) {
	if !e.settled.CompareAndSwap(false, true) {
		return StatusFailedPrecondition, ErrAlreadySettled
	}
	return e.client.ack(ctx, e.d, e.meta)
}

// Nack schedules a redelivery after a random delay if attempts remain. Once
// attempts are exhausted it returns StatusFailedPrecondition and the message
// is discarded.
func (e *Envelope[M]) Nack(ctx context.Context) (AckStatus, error) {
	if !e.settled.CompareAndSwap(false, true) {
		return StatusFailedPrecondition, ErrAlreadySettled
	}
	return e.client.nack(ctx, e.d, e.meta)
}

// NackWithDelay is not available in-process. It fails fast and leaves the
// envelope unsettled.
func (e *Envelope[M]) NackWithDelay(context.Context, time.Duration) (AckStatus, error) {
	return StatusUnsupported, ErrUnsupportedOperation
}

func (e *Envelope[M]) settle(ctx context.Context, r Result) (AckStatus, error) {
	switch r.kind {
	case resultNack:
		return e.Nack(ctx)
	case resultNackWithDelay:
		return e.NackWithDelay(ctx, r.delay)
	default:
		return e.Ack(ctx)
	}
}

func cloneMap(src map[string]string) map[string]string {
	if len(src) == 0 {
		return nil
	}
	cloned := make(map[string]string, len(src))
	for k, v := range src {
		cloned[k] = v
	}
	return cloned
}
