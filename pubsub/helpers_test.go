package pubsub_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/infigaming-com/go-membus/pubsub"
)

type order struct {
	ID       string
	Customer string
}

var orders = pubsub.Topic[order]{Name: "orders"}

func newTestClient(t *testing.T, opts ...pubsub.Option) *pubsub.Client {
	t.Helper()
	base := []pubsub.Option{
		pubsub.WithQueuePoll(10 * time.Millisecond),
		pubsub.WithPublishTimeout(200 * time.Millisecond),
		pubsub.WithRedeliveryDelay(20*time.Millisecond, 40*time.Millisecond),
		pubsub.WithTerminationTimeout(time.Second),
	}
	c, err := pubsub.New(context.Background(), append(base, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = c.Close(context.Background())
	})
	return c
}

func startSubscriber[M any](t *testing.T, c *pubsub.Client, s pubsub.Subscription[M], h pubsub.HandlerFunc[M], opts ...pubsub.SubscriberOption) *pubsub.Subscriber[M] {
	t.Helper()
	sub, err := pubsub.NewSubscriber[M](c, s, h, opts...)
	require.NoError(t, err)
	require.NoError(t, sub.Start())
	return sub
}

// recorder collects deliveries seen by a handler.
type recorder[M any] struct {
	mu    sync.Mutex
	seen  []delivery[M]
	added chan struct{}
}

type delivery[M any] struct {
	ID        string
	MessageID string
	Payload   M
	Attempt   int
	At        time.Time
}

func newRecorder[M any]() *recorder[M] {
	return &recorder[M]{added: make(chan struct{}, 1024)}
}

func (r *recorder[M]) add(env *pubsub.Envelope[M]) {
	r.mu.Lock()
	r.seen = append(r.seen, delivery[M]{
		ID:        env.ID(),
		MessageID: env.MessageID(),
		Payload:   env.Payload(),
		Attempt:   env.Attempt(),
		At:        time.Now(),
	})
	r.mu.Unlock()
	r.added <- struct{}{}
}

func (r *recorder[M]) all() []delivery[M] {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]delivery[M](nil), r.seen...)
}

func (r *recorder[M]) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.seen)
}

func (r *recorder[M]) wait(t *testing.T, n int) []delivery[M] {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for r.len() < n {
		select {
		case <-r.added:
		case <-deadline:
			t.Fatalf("timed out waiting for %d deliveries, got %d", n, r.len())
		}
	}
	return r.all()
}

func (r *recorder[M]) ack(ctx context.Context, env *pubsub.Envelope[M]) (pubsub.Result, error) {
	r.add(env)
	return pubsub.Ack(), nil
}
