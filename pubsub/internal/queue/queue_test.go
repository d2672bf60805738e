package queue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type item struct{ n int }

func TestQueueFIFO(t *testing.T) {
	q := New[*item](4)
	ctx := context.Background()
	items := []*item{{1}, {2}, {3}}
	for _, it := range items {
		require.True(t, q.Offer(ctx, it, time.Second))
	}
	assert.Equal(t, 3, q.Len())
	for _, want := range items {
		got := q.Peek(1)
		require.Len(t, got, 1)
		assert.Same(t, want, got[0])
		require.True(t, q.Remove(got[0]))
	}
	assert.Equal(t, 0, q.Len())
}

func TestQueueOfferTimesOutWhenFull(t *testing.T) {
	q := New[*item](1)
	ctx := context.Background()
	require.True(t, q.Offer(ctx, &item{1}, time.Second))

	start := time.Now()
	assert.False(t, q.Offer(ctx, &item{2}, 30*time.Millisecond))
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
	assert.False(t, q.TryOffer(&item{3}))
	assert.Equal(t, 1, q.Len())
}

func TestQueueOfferUnblocksWhenSpaceFrees(t *testing.T) {
	q := New[*item](1)
	ctx := context.Background()
	first := &item{1}
	require.True(t, q.Offer(ctx, first, time.Second))

	done := make(chan bool, 1)
	go func() {
		done <- q.Offer(ctx, &item{2}, 2*time.Second)
	}()

	time.Sleep(20 * time.Millisecond)
	require.True(t, q.Remove(first))

	select {
	case ok := <-done:
		assert.True(t, ok)
	case <-time.After(time.Second):
		t.Fatal("offer did not unblock")
	}
}

func TestQueuePeekRemoveDrain(t *testing.T) {
	q := New[*item](5)
	a, b, c := &item{1}, &item{2}, &item{3}
	for _, it := range []*item{a, b, c} {
		require.True(t, q.TryOffer(it))
	}

	assert.Equal(t, []*item{a, b}, q.Peek(2))
	assert.Equal(t, []*item{a, b, c}, q.Peek(0))

	assert.True(t, q.Remove(b))
	assert.False(t, q.Remove(b))
	assert.Equal(t, []*item{a, c}, q.Peek(10))

	assert.Equal(t, []*item{a, c}, q.Drain())
	assert.Equal(t, 0, q.Len())
	for i := 0; i < q.Cap(); i++ {
		assert.True(t, q.TryOffer(&item{i}))
	}
}
