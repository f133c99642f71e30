// Package connectivity reports whether the catalog is reachable and turns the
// raw reachability signal into Online/Offline transitions.
package connectivity

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/mmcdole/reel/internal/watch"
)

const (
	defaultProbeInterval = 15 * time.Second
	defaultProbeTimeout  = 5 * time.Second
)

// ProbeConfig configures the HTTP reachability probe.
type ProbeConfig struct {
	URL      string
	Interval time.Duration
	Timeout  time.Duration
}

// Probe implements domain.ConnectivityMonitor by periodically requesting a URL.
// Any HTTP response counts as reachable; only transport failures count as offline.
// It runs as a suture service.
type Probe struct {
	url      string
	interval time.Duration
	client   *http.Client
	feed     *watch.Feed[bool]
	logger   *slog.Logger
}

// NewProbe creates a probe. It reports nothing until Serve runs its first check.
func NewProbe(cfg ProbeConfig, logger *slog.Logger) *Probe {
	if logger == nil {
		logger = slog.Default()
	}
	interval := cfg.Interval
	if interval <= 0 {
		interval = defaultProbeInterval
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultProbeTimeout
	}

	return &Probe{
		url:      cfg.URL,
		interval: interval,
		client:   &http.Client{Timeout: timeout},
		feed:     watch.New[bool](),
		logger:   logger,
	}
}

// Check performs one probe request.
func (p *Probe) Check(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, p.url, nil)
	if err != nil {
		p.logger.Error("failed to build probe request", "url", p.url, "error", err)
		return false
	}

	resp, err := p.client.Do(req)
	if err != nil {
		p.logger.Debug("probe failed", "url", p.url, "error", err)
		return false
	}
	resp.Body.Close()
	return true
}

// Watch returns the live reachability signal.
func (p *Probe) Watch(ctx context.Context) <-chan bool {
	return p.feed.Subscribe(ctx)
}

// Serve probes immediately and then on every interval until ctx is done.
func (p *Probe) Serve(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		online := p.Check(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		p.feed.Publish(online)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (p *Probe) String() string {
	return "connectivity-probe"
}

// Static is a manually driven monitor, for tests and for --offline runs.
type Static struct {
	feed *watch.Feed[bool]
}

// NewStatic creates a monitor reporting online until Set says otherwise.
func NewStatic(online bool) *Static {
	return &Static{feed: watch.NewWithValue(online)}
}

// Set publishes a new reachability value.
func (s *Static) Set(online bool) {
	s.feed.Publish(online)
}

func (s *Static) Watch(ctx context.Context) <-chan bool {
	return s.feed.Subscribe(ctx)
}
