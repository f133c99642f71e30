// Package app wires the stores, catalog client, repository and background
// services from configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/mmcdole/reel/internal/adapter"
	"github.com/mmcdole/reel/internal/catalog"
	"github.com/mmcdole/reel/internal/connectivity"
	"github.com/mmcdole/reel/internal/domain"
	"github.com/mmcdole/reel/internal/metrics"
	"github.com/mmcdole/reel/internal/movies"
	"github.com/mmcdole/reel/internal/refresh"
	"github.com/mmcdole/reel/internal/store"
	"github.com/mmcdole/reel/internal/store/sqlite"
	"github.com/mmcdole/reel/internal/supervisor"
)

// sqliteFileName is the database file of the sqlite driver, next to the bolt one.
const sqliteFileName = "reel.sqlite"

// Store is what a storage backend provides.
type Store interface {
	domain.FavoritesStore
	domain.PopularStore
	Close() error
}

// App holds every wired component.
type App struct {
	Config     *adapter.Config
	Logger     *slog.Logger
	Store      Store
	Catalog    *catalog.CircuitBreakerClient
	Repository *movies.Repository
	Probe      *connectivity.Probe
	Tracker    *connectivity.Tracker
	Scheduler  *refresh.Scheduler
	Opener     *adapter.Opener

	sink *adapter.CrashLog
}

// New builds the application from cfg. Close releases the store and crash log.
func New(cfg *adapter.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	st, err := OpenStore(cfg)
	if err != nil {
		return nil, err
	}

	sink, err := adapter.OpenCrashLog(&cfg.CrashLog)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("failed to open crash log: %w", err)
	}

	client := catalog.NewClient(catalog.Config{
		BaseURL:           cfg.Catalog.BaseURL,
		APIKey:            cfg.Catalog.APIKey,
		ImageBaseURL:      cfg.Catalog.ImageBaseURL,
		Timeout:           cfg.Catalog.Timeout,
		RequestsPerSecond: cfg.Catalog.RequestsPerSecond,
		Burst:             cfg.Catalog.Burst,
	}, logger)
	breaker := catalog.NewCircuitBreakerClient(client, catalog.DefaultBreakerSettings(), logger)

	repo := movies.NewRepository(breaker, st, st, sink, logger,
		movies.WithWindowPages(cfg.Paging.WindowPages))

	probe := connectivity.NewProbe(connectivity.ProbeConfig{
		URL:      cfg.ProbeURL(),
		Interval: cfg.Connectivity.Interval,
		Timeout:  cfg.Connectivity.Timeout,
	}, logger)
	tracker := connectivity.NewTracker(probe, logger)

	scheduler := refresh.NewScheduler(repo, tracker, refresh.Config{
		Interval:     cfg.Refresh.Interval,
		RetryInitial: cfg.Refresh.RetryInitial,
		RetryMax:     cfg.Refresh.RetryMax,
	}, logger)

	return &App{
		Config:     cfg,
		Logger:     logger,
		Store:      st,
		Catalog:    breaker,
		Repository: repo,
		Probe:      probe,
		Tracker:    tracker,
		Scheduler:  scheduler,
		Opener:     adapter.NewOpener(&cfg.Browser, logger),
		sink:       sink,
	}, nil
}

// OpenStore opens the configured backend in the per-catalog directory.
func OpenStore(cfg *adapter.Config) (Store, error) {
	switch cfg.Store.Driver {
	case adapter.StoreDriverSQLite:
		dir := store.Dir(cfg.Store.Dir, cfg.Catalog.BaseURL)
		if err := ensureDir(dir); err != nil {
			return nil, err
		}
		st, err := sqlite.New(filepath.Join(dir, sqliteFileName))
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite store: %w", err)
		}
		return st, nil
	case adapter.StoreDriverBolt, "":
		st, err := store.Open(cfg.Store.Dir, cfg.Catalog.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to open bolt store: %w", err)
		}
		return st, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

func ensureDir(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create store dir: %w", err)
	}
	return nil
}

// Supervise builds the supervisor tree running the probe, tracker and refresh
// scheduler, plus the metrics listener when an address is configured.
func (a *App) Supervise() *supervisor.Tree {
	tree := supervisor.NewTree(a.Logger, supervisor.DefaultTreeConfig())
	tree.AddSyncService(a.Probe)
	tree.AddSyncService(a.Tracker)
	tree.AddSyncService(a.Scheduler)
	if a.Config.Metrics.Addr != "" {
		tree.AddTelemetryService(metrics.NewServer(a.Config.Metrics.Addr, a.Logger))
	}
	return tree
}

// CheckConnectivity probes once and feeds the result to the tracker. One-shot
// commands use it instead of running the probe service.
func (a *App) CheckConnectivity(ctx context.Context) connectivity.State {
	a.Tracker.Observe(a.Probe.Check(ctx))
	return a.Tracker.State()
}

// Close releases the crash log and the store.
func (a *App) Close() error {
	return errors.Join(a.sink.Close(), a.Store.Close())
}
