// Package refresh keeps the popular-movies cache warm in the background.
package refresh

import (
	"context"
	"log/slog"
	"time"

	"github.com/mmcdole/reel/internal/connectivity"
	"github.com/mmcdole/reel/internal/domain"
	"github.com/mmcdole/reel/internal/metrics"
)

// Defaults for Config
const (
	DefaultInterval     = 6 * time.Hour
	DefaultRetryInitial = 30 * time.Second
	DefaultRetryMax     = time.Hour
)

// Config sets the refresh cadence.
type Config struct {
	Interval     time.Duration // Between successful refreshes
	RetryInitial time.Duration // First delay after a failure, doubled per failure
	RetryMax     time.Duration // Upper bound on the retry delay
}

// Connectivity is the part of connectivity.Tracker the scheduler needs.
type Connectivity interface {
	State() connectivity.State
	Subscribe(ctx context.Context) <-chan connectivity.Event
}

// Scheduler refreshes the popular cache on start, on every interval, when the
// connection is restored and on demand. Failed refreshes are retried with
// exponential backoff. Nothing runs while offline. It implements suture.Service.
type Scheduler struct {
	refresher domain.Refresher
	conn      Connectivity
	cfg       Config
	logger    *slog.Logger
	trigger   chan struct{}
}

// NewScheduler creates a scheduler. Zero config fields take the defaults.
func NewScheduler(refresher domain.Refresher, conn Connectivity, cfg Config, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.RetryInitial <= 0 {
		cfg.RetryInitial = DefaultRetryInitial
	}
	if cfg.RetryMax < cfg.RetryInitial {
		cfg.RetryMax = max(DefaultRetryMax, cfg.RetryInitial)
	}
	return &Scheduler{
		refresher: refresher,
		conn:      conn,
		cfg:       cfg,
		logger:    logger,
		trigger:   make(chan struct{}, 1),
	}
}

// Trigger requests a refresh as soon as possible. Requests made while one is
// pending are merged.
func (s *Scheduler) Trigger() {
	select {
	case s.trigger <- struct{}{}:
	default:
	}
}

// Serve runs until ctx is done.
func (s *Scheduler) Serve(ctx context.Context) error {
	events := s.conn.Subscribe(ctx)
	timer := time.NewTimer(0)
	defer timer.Stop()

	var backoff time.Duration
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if ev.To != connectivity.Online {
				continue
			}
			s.logger.Info("connection restored, refreshing popular cache")
			backoff = 0
			timer.Reset(s.run(ctx, &backoff))

		case <-s.trigger:
			timer.Reset(s.run(ctx, &backoff))

		case <-timer.C:
			timer.Reset(s.run(ctx, &backoff))
		}
	}
}

// run performs one refresh and returns the delay until the next one.
func (s *Scheduler) run(ctx context.Context, backoff *time.Duration) time.Duration {
	if s.conn.State() == connectivity.Offline {
		s.logger.Debug("offline, skipping popular refresh")
		metrics.RefreshTotal.WithLabelValues("skipped_offline").Inc()
		*backoff = 0
		return s.cfg.Interval
	}

	if err := s.refresher.RefreshPopularCache(ctx); err != nil {
		*backoff = nextBackoff(*backoff, s.cfg.RetryInitial, s.cfg.RetryMax)
		s.logger.Warn("failed to refresh popular cache, will retry", "error", err, "retry_in", backoff.String())
		return *backoff
	}

	*backoff = 0
	return s.cfg.Interval
}

func nextBackoff(current, initial, limit time.Duration) time.Duration {
	if current <= 0 {
		return initial
	}
	next := current * 2
	if next > limit {
		return limit
	}
	return next
}

func (s *Scheduler) String() string {
	return "refresh-scheduler"
}
