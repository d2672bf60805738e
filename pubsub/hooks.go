package pubsub

import (
	"context"
	"time"
)

type Logger interface {
	Debug(ctx context.Context, msg string, kv ...any)
	Info(ctx context.Context, msg string, kv ...any)
	Warn(ctx context.Context, msg string, kv ...any)
	Error(ctx context.Context, msg string, kv ...any)
}

// Hooks are optional observers invoked at fixed points of the message
// lifecycle. They run on the calling goroutine and must not block.
type Hooks struct {
	OnPublish      func(ctx context.Context, topic, messageID string, fanout int)
	OnPublishDrop  func(ctx context.Context, meta MessageMetadata, err error)
	OnDeliver      func(ctx context.Context, meta MessageMetadata)
	OnComplete     func(ctx context.Context, meta MessageMetadata, took time.Duration)
	OnAck          func(ctx context.Context, meta MessageMetadata)
	OnNack         func(ctx context.Context, meta MessageMetadata, delay time.Duration)
	OnExhausted    func(ctx context.Context, meta MessageMetadata)
	OnOrphan       func(ctx context.Context, meta MessageMetadata)
	OnHandlerError func(ctx context.Context, meta MessageMetadata, err error)
}

type MessageMetadata struct {
	ID           string
	MessageID    string
	Topic        string
	Subscription string
	Key          string
	Attempt      int
	Attributes   map[string]string
}

type noopLogger struct{}

func (noopLogger) Debug(context.Context, string, ...any) {}
func (noopLogger) Info(context.Context, string, ...any)  {}
func (noopLogger) Warn(context.Context, string, ...any)  {}
func (noopLogger) Error(context.Context, string, ...any) {}
