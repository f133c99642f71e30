package watch

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receive[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v, ok := <-ch:
		require.True(t, ok, "channel closed")
		return v
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for value")
	}
	var zero T
	return zero
}

func requireClosed[T any](t *testing.T, ch <-chan T) {
	t.Helper()
	select {
	case _, ok := <-ch:
		require.False(t, ok, "expected closed channel")
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for close")
	}
}

func TestFeed_SubscribeReceivesCurrentValue(t *testing.T) {
	f := NewWithValue([]int{})
	defer f.Close()

	ch := f.Subscribe(context.Background())
	assert.Equal(t, []int{}, receive(t, ch))
}

func TestFeed_NoValueUntilPublish(t *testing.T) {
	f := New[int]()
	defer f.Close()

	ch := f.Subscribe(context.Background())
	select {
	case v := <-ch:
		t.Fatalf("unexpected value %d", v)
	case <-time.After(20 * time.Millisecond):
	}

	f.Publish(7)
	assert.Equal(t, 7, receive(t, ch))
}

func TestFeed_PublishReachesAllSubscribers(t *testing.T) {
	f := New[string]()
	defer f.Close()

	a := f.Subscribe(context.Background())
	b := f.Subscribe(context.Background())

	f.Publish("hello")
	assert.Equal(t, "hello", receive(t, a))
	assert.Equal(t, "hello", receive(t, b))
}

func TestFeed_SlowSubscriberSeesLatest(t *testing.T) {
	f := New[int]()
	defer f.Close()

	ch := f.Subscribe(context.Background())
	for i := 1; i <= 100; i++ {
		f.Publish(i)
	}

	assert.Equal(t, 100, receive(t, ch))
	select {
	case v := <-ch:
		t.Fatalf("unexpected extra value %d", v)
	default:
	}
}

func TestFeed_CancelClosesChannel(t *testing.T) {
	f := New[int]()
	defer f.Close()

	ctx, cancel := context.WithCancel(context.Background())
	ch := f.Subscribe(ctx)
	cancel()

	requireClosed(t, ch)
	assert.Eventually(t, func() bool { return f.Subscribers() == 0 }, time.Second, 5*time.Millisecond)
}

func TestFeed_CloseClosesSubscribers(t *testing.T) {
	f := NewWithValue(1)
	ch := f.Subscribe(context.Background())
	assert.Equal(t, 1, receive(t, ch))

	f.Close()
	requireClosed(t, ch)

	// Publishing after close is ignored and later subscriptions are already closed.
	f.Publish(2)
	requireClosed(t, f.Subscribe(context.Background()))
}

func TestFeed_ConcurrentPublishers(t *testing.T) {
	f := New[int]()
	defer f.Close()

	ch := f.Subscribe(context.Background())

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			f.Publish(n)
		}(i)
	}
	wg.Wait()

	got := receive(t, ch)
	current, ok := f.Value()
	require.True(t, ok)
	assert.Equal(t, current, got)
}
