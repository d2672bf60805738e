package pubsub

import "github.com/infigaming-com/go-membus/errors"

const (
	ErrCodeRegistrationConflict = 20000 + iota
	ErrCodeUnsupportedSubscriberOption
	ErrCodePublishTimeout
	ErrCodeShutdown
	ErrCodeRedeliveryExhausted
	ErrCodeRedeliveryQueueFull
	ErrCodeUnsupportedOperation
	ErrCodeAlreadySettled
	ErrCodePublisherClosed
	ErrCodeSubscriberClosed
	ErrCodeInvalidConfig
	ErrCodeInvalidArgument
	ErrCodeTerminationTimeout
	ErrCodeHandlerPanic
)

var (
	// ErrRegistrationConflict is returned when a publisher, subscription or
	// subscriber name is already bound.
	ErrRegistrationConflict = errors.NewError(ErrCodeRegistrationConflict, "pubsub: registration conflict", nil)

	// ErrUnsupportedSubscriberOption is returned when a subscriber asks for a
	// capability only durable brokers provide.
	ErrUnsupportedSubscriberOption = errors.NewError(ErrCodeUnsupportedSubscriberOption, "pubsub: unsupported subscriber option", nil)

	// ErrPublishTimeout is reported to hooks when one fan-out copy could not be
	// queued in time. Publish itself does not return it.
	ErrPublishTimeout = errors.NewError(ErrCodePublishTimeout, "pubsub: publish timeout", nil)

	ErrShutdown             = errors.NewError(ErrCodeShutdown, "pubsub: client closed", nil)
	ErrRedeliveryExhausted  = errors.NewError(ErrCodeRedeliveryExhausted, "pubsub: redelivery attempts exhausted", nil)
	ErrRedeliveryQueueFull  = errors.NewError(ErrCodeRedeliveryQueueFull, "pubsub: redelivery queue full", nil)
	ErrUnsupportedOperation = errors.NewError(ErrCodeUnsupportedOperation, "pubsub: operation not supported in-process", nil)
	ErrAlreadySettled       = errors.NewError(ErrCodeAlreadySettled, "pubsub: envelope already settled", nil)
	ErrPublisherClosed      = errors.NewError(ErrCodePublisherClosed, "pubsub: publisher closed", nil)
	ErrSubscriberClosed     = errors.NewError(ErrCodeSubscriberClosed, "pubsub: subscriber closed", nil)
	ErrInvalidConfig        = errors.NewError(ErrCodeInvalidConfig, "pubsub: invalid config", nil)
	ErrInvalidArgument      = errors.NewError(ErrCodeInvalidArgument, "pubsub: invalid argument", nil)
	ErrTerminationTimeout   = errors.NewError(ErrCodeTerminationTimeout, "pubsub: workers still running after termination timeout", nil)
	ErrHandlerPanic         = errors.NewError(ErrCodeHandlerPanic, "pubsub: handler panicked", nil)
)
