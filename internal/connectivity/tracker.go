package connectivity

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/mmcdole/reel/internal/domain"
	"github.com/mmcdole/reel/internal/metrics"
	"github.com/mmcdole/reel/internal/watch"
)

// State is the connectivity state seen by the tracker.
type State int

const (
	Unknown State = iota // No observation yet
	Online
	Offline
)

func (s State) String() string {
	switch s {
	case Online:
		return "online"
	case Offline:
		return "offline"
	default:
		return "unknown"
	}
}

// PreferCache reports whether callers should read the local popular cache
// instead of the remote paged listing.
func (s State) PreferCache() bool {
	return s == Offline
}

// Event is one connectivity transition.
type Event struct {
	From    State
	To      State
	Message string
}

const (
	MessageLost     = "Lost connection"
	MessageRestored = "Connection restored"
)

const eventBuffer = 16

// Tracker follows a connectivity monitor and emits an Event on every
// Online/Offline transition. The first observation only sets the state.
type Tracker struct {
	monitor domain.ConnectivityMonitor
	logger  *slog.Logger

	mu     sync.Mutex
	state  State
	subs   map[chan Event]struct{}
	states *watch.Feed[State]
}

// NewTracker creates a tracker for monitor. Call Serve to start following it.
func NewTracker(monitor domain.ConnectivityMonitor, logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{
		monitor: monitor,
		logger:  logger,
		subs:    make(map[chan Event]struct{}),
		states:  watch.NewWithValue(Unknown),
	}
}

// State returns the current state.
func (t *Tracker) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// States returns a live channel of the current state.
func (t *Tracker) States(ctx context.Context) <-chan State {
	return t.states.Subscribe(ctx)
}

// Subscribe returns a channel of transitions. Events are dropped for a
// subscriber whose buffer is full. The channel closes when ctx is done.
func (t *Tracker) Subscribe(ctx context.Context) <-chan Event {
	ch := make(chan Event, eventBuffer)

	t.mu.Lock()
	t.subs[ch] = struct{}{}
	t.mu.Unlock()

	go func() {
		<-ctx.Done()
		t.mu.Lock()
		delete(t.subs, ch)
		close(ch)
		t.mu.Unlock()
	}()

	return ch
}

// Serve follows the monitor until ctx is done. It implements suture.Service.
func (t *Tracker) Serve(ctx context.Context) error {
	signal := t.monitor.Watch(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case online, ok := <-signal:
			if !ok {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return errors.New("connectivity monitor closed")
			}
			t.Observe(online)
		}
	}
}

func (t *Tracker) String() string {
	return "connectivity-tracker"
}

// Observe records one reachability reading.
func (t *Tracker) Observe(online bool) {
	next := Offline
	if online {
		next = Online
	}
	metrics.SetOnline(online)

	t.mu.Lock()
	prev := t.state
	t.state = next
	if prev == next {
		t.mu.Unlock()
		return
	}
	t.states.Publish(next)
	if prev == Unknown {
		t.mu.Unlock()
		t.logger.Info("connectivity initial state", "state", next.String())
		return
	}

	ev := Event{From: prev, To: next, Message: MessageLost}
	if next == Online {
		ev.Message = MessageRestored
	}
	for ch := range t.subs {
		select {
		case ch <- ev:
		default:
			t.logger.Warn("connectivity event dropped", "to", next.String())
		}
	}
	t.mu.Unlock()

	metrics.ConnectivityTransitions.WithLabelValues(next.String()).Inc()
	t.logger.Info("connectivity changed", "from", prev.String(), "to", next.String())
}
