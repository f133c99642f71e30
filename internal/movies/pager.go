package movies

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/mmcdole/reel/internal/domain"
	"github.com/mmcdole/reel/internal/watch"
)

// FetchFunc loads one 1-based page.
type FetchFunc func(ctx context.Context, page int) ([]domain.Movie, error)

// Page is one loaded page of the remote listing. A key of 0 means "none":
// PrevKey is 0 only on page 1 and NextKey is 0 only after an empty page.
type Page struct {
	Key     int
	PrevKey int
	NextKey int
	Movies  []domain.Movie
}

// LoadState is the pager's load status.
type LoadState int

const (
	LoadIdle LoadState = iota
	LoadLoading
	LoadFailed
)

func (s LoadState) String() string {
	switch s {
	case LoadLoading:
		return "loading"
	case LoadFailed:
		return "failed"
	default:
		return "idle"
	}
}

type direction int

const (
	forward direction = iota
	backward
)

// Snapshot is a copy of the pager state.
type Snapshot struct {
	Pages  []Page
	Movies []domain.Movie // All held pages, flattened in page order
	State  LoadState
	Key    int   // Key being loaded, or the key that failed
	Err    error // Set when State is LoadFailed
	End    bool  // The last held page was empty
}

// Pager is a lazily loaded, restartable cursor over the remote popular listing.
// It holds at most window pages. Loads are serialized; a waiting caller can give
// up through its context.
type Pager struct {
	fetch  FetchFunc
	window int
	logger *slog.Logger

	sem  chan struct{} // held for the duration of a load
	mu   sync.Mutex    // guards the fields below
	feed *watch.Feed[Snapshot]

	pages    []Page
	startKey int
	state    LoadState
	key      int
	dir      direction
	err      error
}

// NewPager creates a pager. window <= 0 keeps every page.
func NewPager(fetch FetchFunc, window int, logger *slog.Logger) *Pager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pager{
		fetch:    fetch,
		window:   window,
		logger:   logger,
		sem:      make(chan struct{}, 1),
		feed:     watch.NewWithValue(Snapshot{}),
		startKey: 1,
	}
}

func (p *Pager) acquire(ctx context.Context) error {
	select {
	case p.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Pager) release() {
	<-p.sem
}

// LoadNext loads the page after the last held one, or the first page if none is
// held. It reports false without loading once the end of the listing was reached.
func (p *Pager) LoadNext(ctx context.Context) (Page, bool, error) {
	if err := p.acquire(ctx); err != nil {
		return Page{}, false, err
	}
	defer p.release()

	p.mu.Lock()
	key := p.startKey
	if n := len(p.pages); n > 0 {
		key = p.pages[n-1].NextKey
	}
	p.mu.Unlock()

	if key == 0 {
		return Page{}, false, nil
	}
	return p.load(ctx, key, forward)
}

// LoadPrevious loads the page before the first held one. It reports false when
// nothing is held or the first held page is page 1.
func (p *Pager) LoadPrevious(ctx context.Context) (Page, bool, error) {
	if err := p.acquire(ctx); err != nil {
		return Page{}, false, err
	}
	defer p.release()

	p.mu.Lock()
	key := 0
	if len(p.pages) > 0 {
		key = p.pages[0].PrevKey
	}
	p.mu.Unlock()

	if key == 0 {
		return Page{}, false, nil
	}
	return p.load(ctx, key, backward)
}

// Retry re-issues the load that failed. It reports false if nothing failed.
func (p *Pager) Retry(ctx context.Context) (Page, bool, error) {
	if err := p.acquire(ctx); err != nil {
		return Page{}, false, err
	}
	defer p.release()

	p.mu.Lock()
	failed := p.state == LoadFailed
	key, dir := p.key, p.dir
	p.mu.Unlock()

	if !failed {
		return Page{}, false, nil
	}
	return p.load(ctx, key, dir)
}

// Refresh discards every page and loads page 1.
func (p *Pager) Refresh(ctx context.Context) (Page, bool, error) {
	return p.restart(ctx, func() int { return 1 })
}

// RefreshAt discards every page and loads the page nearest the item at anchor.
// The key is taken from the window as it stands once earlier loads have finished.
func (p *Pager) RefreshAt(ctx context.Context, anchor int) (Page, bool, error) {
	return p.restart(ctx, func() int { return p.RefreshKey(anchor) })
}

// restart resolves the key while holding sem so no load can move the window
// between choosing the key and dropping the pages.
func (p *Pager) restart(ctx context.Context, keyFor func() int) (Page, bool, error) {
	if err := p.acquire(ctx); err != nil {
		return Page{}, false, err
	}
	defer p.release()

	key := keyFor()

	p.mu.Lock()
	p.pages = nil
	p.startKey = key
	p.state = LoadIdle
	p.key = 0
	p.err = nil
	p.publishLocked()
	p.mu.Unlock()

	return p.load(ctx, key, forward)
}

// RefreshKey returns the key to reload so that the item at position anchor of the
// flattened listing is shown again. Anchors outside the held window are clamped
// to its first or last page. With nothing held it returns page 1.
func (p *Pager) RefreshKey(anchor int) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.pages) == 0 {
		return 1
	}

	closest := p.pages[len(p.pages)-1]
	if anchor <= 0 {
		closest = p.pages[0]
	} else {
		offset := 0
		for _, page := range p.pages {
			if anchor < offset+len(page.Movies) {
				closest = page
				break
			}
			offset += len(page.Movies)
		}
	}

	switch {
	case closest.PrevKey != 0:
		return closest.PrevKey + 1
	case closest.NextKey != 0:
		return closest.NextKey - 1
	default:
		return 1
	}
}

// load fetches key and places it at the end (forward) or front (backward) of the
// window. Callers hold sem.
func (p *Pager) load(ctx context.Context, key int, dir direction) (Page, bool, error) {
	p.mu.Lock()
	p.state = LoadLoading
	p.key = key
	p.dir = dir
	p.err = nil
	p.publishLocked()
	p.mu.Unlock()

	movies, err := p.fetch(ctx, key)

	p.mu.Lock()
	defer p.mu.Unlock()

	if err != nil {
		if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
			p.state = LoadIdle
			p.publishLocked()
			return Page{}, false, err
		}
		p.state = LoadFailed
		p.err = err
		p.publishLocked()
		p.logger.Warn("failed to load page", "page", key, "error", err)
		return Page{}, false, err
	}

	page := Page{Key: key, Movies: movies}
	if key > 1 {
		page.PrevKey = key - 1
	}
	if len(movies) > 0 {
		page.NextKey = key + 1
	}

	if dir == forward {
		p.pages = append(p.pages, page)
		if p.window > 0 && len(p.pages) > p.window {
			p.pages = append([]Page(nil), p.pages[len(p.pages)-p.window:]...)
		}
	} else {
		p.pages = append([]Page{page}, p.pages...)
		if p.window > 0 && len(p.pages) > p.window {
			p.pages = p.pages[:p.window]
		}
	}

	p.state = LoadIdle
	p.key = 0
	p.publishLocked()
	return page, true, nil
}

func (p *Pager) snapshotLocked() Snapshot {
	snap := Snapshot{
		Pages: make([]Page, len(p.pages)),
		State: p.state,
		Key:   p.key,
		Err:   p.err,
	}
	copy(snap.Pages, p.pages)
	for _, page := range p.pages {
		snap.Movies = append(snap.Movies, page.Movies...)
	}
	if n := len(p.pages); n > 0 && p.pages[n-1].NextKey == 0 {
		snap.End = true
	}
	return snap
}

func (p *Pager) publishLocked() {
	p.feed.Publish(p.snapshotLocked())
}

// Snapshot returns a copy of the current state.
func (p *Pager) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshotLocked()
}

// Updates returns a live channel of snapshots, starting with the current one.
func (p *Pager) Updates(ctx context.Context) <-chan Snapshot {
	return p.feed.Subscribe(ctx)
}

// Close ends every Updates channel.
func (p *Pager) Close() {
	p.feed.Close()
}
