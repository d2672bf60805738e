package metrics

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/infigaming-com/go-membus/pubsub"
)

const (
	attrTopic        = attribute.Key("membus.topic")
	attrSubscription = attribute.Key("membus.subscription")
)

type busInstruments struct {
	published     metric.Int64Counter
	dropped       metric.Int64Counter
	delivered     metric.Int64Counter
	acked         metric.Int64Counter
	nacked        metric.Int64Counter
	exhausted     metric.Int64Counter
	orphaned      metric.Int64Counter
	handlerErrors metric.Int64Counter
	duration      metric.Float64Histogram
}

// NewBusHooks returns pubsub.Hooks recording bus activity on meter. Counters
// carry the topic and, where one exists, the subscription.
func NewBusHooks(meter metric.Meter) (pubsub.Hooks, error) {
	var (
		in   busInstruments
		errs []error
	)
	counter := func(name, desc string) metric.Int64Counter {
		c, err := meter.Int64Counter(name, metric.WithDescription(desc), metric.WithUnit("{message}"))
		errs = append(errs, err)
		return c
	}
	in.published = counter("membus.published", "Messages accepted by Publish")
	in.dropped = counter("membus.dropped", "Envelopes dropped at publish time")
	in.delivered = counter("membus.delivered", "Handler invocations")
	in.acked = counter("membus.acked", "Envelopes acked")
	in.nacked = counter("membus.nacked", "Envelopes scheduled for redelivery")
	in.exhausted = counter("membus.exhausted", "Envelopes discarded after the last attempt")
	in.orphaned = counter("membus.orphaned", "Envelopes dropped because their subscriber went away")
	in.handlerErrors = counter("membus.handler_errors", "Handler errors and panics")

	var err error
	in.duration, err = meter.Float64Histogram("membus.process.duration",
		metric.WithDescription("Handler processing time"),
		metric.WithUnit("s"),
	)
	errs = append(errs, err)
	if err := errors.Join(errs...); err != nil {
		return pubsub.Hooks{}, err
	}

	return pubsub.Hooks{
		OnPublish: func(ctx context.Context, topic, _ string, _ int) {
			in.published.Add(ctx, 1, metric.WithAttributes(attrTopic.String(topic)))
		},
		OnPublishDrop: func(ctx context.Context, meta pubsub.MessageMetadata, _ error) {
			in.dropped.Add(ctx, 1, withMeta(meta))
		},
		OnDeliver: func(ctx context.Context, meta pubsub.MessageMetadata) {
			in.delivered.Add(ctx, 1, withMeta(meta))
		},
		OnComplete: func(ctx context.Context, meta pubsub.MessageMetadata, took time.Duration) {
			in.duration.Record(ctx, took.Seconds(), withMeta(meta))
		},
		OnAck: func(ctx context.Context, meta pubsub.MessageMetadata) {
			in.acked.Add(ctx, 1, withMeta(meta))
		},
		OnNack: func(ctx context.Context, meta pubsub.MessageMetadata, _ time.Duration) {
			in.nacked.Add(ctx, 1, withMeta(meta))
		},
		OnExhausted: func(ctx context.Context, meta pubsub.MessageMetadata) {
			in.exhausted.Add(ctx, 1, withMeta(meta))
		},
		OnOrphan: func(ctx context.Context, meta pubsub.MessageMetadata) {
			in.orphaned.Add(ctx, 1, withMeta(meta))
		},
		OnHandlerError: func(ctx context.Context, meta pubsub.MessageMetadata, _ error) {
			in.handlerErrors.Add(ctx, 1, withMeta(meta))
		},
	}, nil
}

func withMeta(meta pubsub.MessageMetadata) metric.MeasurementOption {
	return metric.WithAttributes(attrTopic.String(meta.Topic), attrSubscription.String(meta.Subscription))
}
