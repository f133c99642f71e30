package refresh

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmcdole/reel/internal/connectivity"
)

type fakeRefresher struct {
	mu       sync.Mutex
	calls    int
	failures int // fail this many calls first
}

func (f *fakeRefresher) RefreshPopularCache(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.calls <= f.failures {
		return errors.New("catalog unavailable")
	}
	return nil
}

func (f *fakeRefresher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func startScheduler(t *testing.T, s *Scheduler) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Error("scheduler did not stop")
		}
	})
}

func onlineTracker() *connectivity.Tracker {
	tracker := connectivity.NewTracker(connectivity.NewStatic(true), nil)
	tracker.Observe(true)
	return tracker
}

func TestNextBackoff(t *testing.T) {
	assert.Equal(t, 30*time.Second, nextBackoff(0, 30*time.Second, time.Hour))
	assert.Equal(t, time.Minute, nextBackoff(30*time.Second, 30*time.Second, time.Hour))
	assert.Equal(t, time.Hour, nextBackoff(45*time.Minute, 30*time.Second, time.Hour))
}

func TestScheduler_RunsOnStartAndInterval(t *testing.T) {
	refresher := &fakeRefresher{}
	s := NewScheduler(refresher, onlineTracker(), Config{Interval: 20 * time.Millisecond}, nil)
	startScheduler(t, s)

	assert.Eventually(t, func() bool { return refresher.count() >= 3 }, time.Second, 5*time.Millisecond)
}

func TestScheduler_RetriesWithBackoff(t *testing.T) {
	refresher := &fakeRefresher{failures: 2}
	s := NewScheduler(refresher, onlineTracker(), Config{
		Interval:     time.Hour,
		RetryInitial: 5 * time.Millisecond,
		RetryMax:     20 * time.Millisecond,
	}, nil)
	startScheduler(t, s)

	require.Eventually(t, func() bool { return refresher.count() == 3 }, time.Second, 5*time.Millisecond)

	// After the success the next run is an interval away
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 3, refresher.count())
}

func TestScheduler_SkipsWhileOffline(t *testing.T) {
	refresher := &fakeRefresher{}
	tracker := connectivity.NewTracker(connectivity.NewStatic(false), nil)
	tracker.Observe(false)

	s := NewScheduler(refresher, tracker, Config{Interval: time.Hour}, nil)
	startScheduler(t, s)

	time.Sleep(30 * time.Millisecond)
	assert.Zero(t, refresher.count())

	tracker.Observe(true)
	assert.Eventually(t, func() bool { return refresher.count() == 1 }, time.Second, 5*time.Millisecond)
}

func TestScheduler_Trigger(t *testing.T) {
	refresher := &fakeRefresher{}
	s := NewScheduler(refresher, onlineTracker(), Config{Interval: time.Hour}, nil)
	startScheduler(t, s)

	require.Eventually(t, func() bool { return refresher.count() == 1 }, time.Second, 5*time.Millisecond)

	s.Trigger()
	assert.Eventually(t, func() bool { return refresher.count() == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, "refresh-scheduler", s.String())
}
