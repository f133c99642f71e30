// Package watch implements live sequences: a Feed holds the latest value of some
// state and pushes it to every subscriber whenever it changes.
package watch

import (
	"context"
	"sync"
)

// Feed broadcasts the latest value of T to any number of subscribers.
//
// Each subscriber channel has room for one value. When a subscriber falls behind,
// its pending value is replaced by the newer one, so Publish never blocks and a
// reader always ends up at the most recent state. Published values are shared
// between subscribers and must not be mutated after Publish.
type Feed[T any] struct {
	mu     sync.Mutex
	value  T
	has    bool
	subs   map[*subscriber[T]]struct{}
	done   chan struct{}
	closed bool
}

type subscriber[T any] struct {
	ch chan T
}

// offer delivers v, replacing a value the reader has not taken yet.
// Callers hold the feed lock, so no other sender races on ch.
func (s *subscriber[T]) offer(v T) {
	select {
	case s.ch <- v:
		return
	default:
	}
	select {
	case <-s.ch:
	default:
	}
	select {
	case s.ch <- v:
	default:
	}
}

// New creates a feed with no value. Subscribers receive nothing until the first Publish.
func New[T any]() *Feed[T] {
	return &Feed[T]{
		subs: make(map[*subscriber[T]]struct{}),
		done: make(chan struct{}),
	}
}

// NewWithValue creates a feed whose subscribers immediately receive v.
func NewWithValue[T any](v T) *Feed[T] {
	f := New[T]()
	f.value = v
	f.has = true
	return f
}

// Publish stores v as the current value and pushes it to all subscribers.
// Publishing to a closed feed is a no-op.
func (f *Feed[T]) Publish(v T) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return
	}
	f.value = v
	f.has = true
	for s := range f.subs {
		s.offer(v)
	}
}

// Value returns the current value and whether one was ever published.
func (f *Feed[T]) Value() (T, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.value, f.has
}

// Subscribe returns a channel that first yields the current value (if any) and
// then every later one. The channel is closed when ctx is done or the feed is closed.
func (f *Feed[T]) Subscribe(ctx context.Context) <-chan T {
	s := &subscriber[T]{ch: make(chan T, 1)}

	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		close(s.ch)
		return s.ch
	}
	if f.has {
		s.ch <- f.value
	}
	f.subs[s] = struct{}{}
	f.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
			f.remove(s)
		case <-f.done:
		}
	}()

	return s.ch
}

// Subscribers returns the number of live subscriptions.
func (f *Feed[T]) Subscribers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

func (f *Feed[T]) remove(s *subscriber[T]) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.subs[s]; !ok {
		return
	}
	delete(f.subs, s)
	close(s.ch)
}

// Close closes every subscriber channel. Later Subscribe calls get a closed channel.
func (f *Feed[T]) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return
	}
	f.closed = true
	close(f.done)
	for s := range f.subs {
		close(s.ch)
	}
	f.subs = make(map[*subscriber[T]]struct{})
}
