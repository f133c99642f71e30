package movies

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmcdole/reel/internal/domain"
)

// listing serves 2 movies per page up to last, then empty pages.
type listing struct {
	mu    sync.Mutex
	last  int
	fail  map[int]error
	calls []int
}

func newListing(last int) *listing {
	return &listing{last: last, fail: make(map[int]error)}
}

func (l *listing) fetch(ctx context.Context, page int) ([]domain.Movie, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, page)
	if err := l.fail[page]; err != nil {
		return nil, err
	}
	if page > l.last {
		return nil, nil
	}
	return moviesRange(page*10+1, page*10+2), nil
}

func (l *listing) callLog() []int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]int(nil), l.calls...)
}

func keys(pages []Page) []int {
	out := make([]int, len(pages))
	for i, p := range pages {
		out[i] = p.Key
	}
	return out
}

func TestPager_FirstPage(t *testing.T) {
	l := newListing(3)
	p := NewPager(l.fetch, 0, nil)

	page, loaded, err := p.LoadNext(context.Background())
	require.NoError(t, err)
	require.True(t, loaded)

	assert.Equal(t, 1, page.Key)
	assert.Equal(t, 0, page.PrevKey)
	assert.Equal(t, 2, page.NextKey)
	assert.Equal(t, []int{11, 12}, ids(page.Movies))
}

func TestPager_StopsAfterEmptyPage(t *testing.T) {
	l := newListing(2)
	p := NewPager(l.fetch, 0, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, loaded, err := p.LoadNext(ctx)
		require.NoError(t, err)
		require.True(t, loaded)
	}

	snap := p.Snapshot()
	require.Len(t, snap.Pages, 3)
	assert.Equal(t, 0, snap.Pages[2].NextKey)
	assert.True(t, snap.End)
	assert.Equal(t, []int{11, 12, 21, 22}, ids(snap.Movies))

	_, loaded, err := p.LoadNext(ctx)
	require.NoError(t, err)
	assert.False(t, loaded)
	assert.Equal(t, []int{1, 2, 3}, l.callLog(), "no load after the end")
}

func TestPager_FailureKeepsEarlierPages(t *testing.T) {
	l := newListing(5)
	boom := domain.NewOpError("page", domain.ErrTransport, errors.New("timeout"))
	l.fail[2] = boom
	p := NewPager(l.fetch, 0, nil)
	ctx := context.Background()

	_, _, err := p.LoadNext(ctx)
	require.NoError(t, err)

	_, loaded, err := p.LoadNext(ctx)
	assert.False(t, loaded)
	assert.ErrorIs(t, err, domain.ErrTransport)

	snap := p.Snapshot()
	assert.Equal(t, LoadFailed, snap.State)
	assert.Equal(t, 2, snap.Key)
	assert.ErrorIs(t, snap.Err, domain.ErrTransport)
	assert.Equal(t, []int{1}, keys(snap.Pages))

	delete(l.fail, 2)
	page, loaded, err := p.Retry(ctx)
	require.NoError(t, err)
	require.True(t, loaded)
	assert.Equal(t, 2, page.Key)

	snap = p.Snapshot()
	assert.Equal(t, LoadIdle, snap.State)
	assert.Nil(t, snap.Err)
	assert.Equal(t, []int{1, 2}, keys(snap.Pages))
}

func TestPager_RetryWithoutFailure(t *testing.T) {
	l := newListing(1)
	p := NewPager(l.fetch, 0, nil)

	_, loaded, err := p.Retry(context.Background())
	require.NoError(t, err)
	assert.False(t, loaded)
	assert.Empty(t, l.callLog())
}

func TestPager_Refresh(t *testing.T) {
	l := newListing(5)
	p := NewPager(l.fetch, 0, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, _, err := p.LoadNext(ctx)
		require.NoError(t, err)
	}

	page, loaded, err := p.Refresh(ctx)
	require.NoError(t, err)
	require.True(t, loaded)
	assert.Equal(t, 1, page.Key)
	assert.Equal(t, []int{1}, keys(p.Snapshot().Pages))
}

func TestPager_WindowEviction(t *testing.T) {
	l := newListing(10)
	p := NewPager(l.fetch, 2, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, _, err := p.LoadNext(ctx)
		require.NoError(t, err)
	}
	assert.Equal(t, []int{2, 3}, keys(p.Snapshot().Pages))

	page, loaded, err := p.LoadPrevious(ctx)
	require.NoError(t, err)
	require.True(t, loaded)
	assert.Equal(t, 1, page.Key)
	assert.Equal(t, []int{1, 2}, keys(p.Snapshot().Pages))

	_, loaded, err = p.LoadPrevious(ctx)
	require.NoError(t, err)
	assert.False(t, loaded, "nothing before page 1")

	// Forward again continues from the last held page
	page, _, err = p.LoadNext(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, page.Key)
}

func TestPager_RefreshKey(t *testing.T) {
	l := newListing(10)
	p := NewPager(l.fetch, 2, nil)
	ctx := context.Background()

	assert.Equal(t, 1, p.RefreshKey(0), "nothing held")

	for i := 0; i < 3; i++ {
		_, _, err := p.LoadNext(ctx)
		require.NoError(t, err)
	}
	// Held: page 2 (items 0-1), page 3 (items 2-3)
	assert.Equal(t, 2, p.RefreshKey(0))
	assert.Equal(t, 2, p.RefreshKey(1))
	assert.Equal(t, 3, p.RefreshKey(3))
	assert.Equal(t, 3, p.RefreshKey(100), "clamped to the last page")
	assert.Equal(t, 2, p.RefreshKey(-4), "clamped to the first page")
}

func TestPager_RefreshAt(t *testing.T) {
	l := newListing(10)
	p := NewPager(l.fetch, 0, nil)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		_, _, err := p.LoadNext(ctx)
		require.NoError(t, err)
	}

	page, loaded, err := p.RefreshAt(ctx, 5)
	require.NoError(t, err)
	require.True(t, loaded)
	assert.Equal(t, 3, page.Key)
	assert.Equal(t, 2, page.PrevKey)
	assert.Equal(t, []int{3}, keys(p.Snapshot().Pages))

	page, _, err = p.LoadPrevious(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, page.Key)
}

func TestPager_RefreshAtWaitsForInFlightLoad(t *testing.T) {
	gate := make(chan struct{})
	started := make(chan struct{}, 1)
	fetch := func(ctx context.Context, page int) ([]domain.Movie, error) {
		if page == 2 {
			select {
			case started <- struct{}{}:
			default:
			}
			<-gate
		}
		return moviesRange(page*10+1, page*10+2), nil
	}

	p := NewPager(fetch, 0, nil)
	ctx := context.Background()
	_, _, err := p.LoadNext(ctx)
	require.NoError(t, err)

	loadDone := make(chan error, 1)
	go func() {
		_, _, err := p.LoadNext(ctx)
		loadDone <- err
	}()
	<-started

	// Item 3 only exists once page 2 lands
	type result struct {
		page Page
		err  error
	}
	refreshDone := make(chan result, 1)
	go func() {
		page, _, err := p.RefreshAt(ctx, 3)
		refreshDone <- result{page, err}
	}()

	time.Sleep(20 * time.Millisecond)
	close(gate)

	require.NoError(t, <-loadDone)
	res := <-refreshDone
	require.NoError(t, res.err)
	assert.Equal(t, 2, res.page.Key)
	assert.Equal(t, []int{2}, keys(p.Snapshot().Pages))
}

func TestPager_LoadsAreSerialized(t *testing.T) {
	release := make(chan struct{})
	var inFlight, maxInFlight atomic.Int32

	fetch := func(ctx context.Context, page int) ([]domain.Movie, error) {
		n := inFlight.Add(1)
		defer inFlight.Add(-1)
		for {
			m := maxInFlight.Load()
			if n <= m || maxInFlight.CompareAndSwap(m, n) {
				break
			}
		}
		<-release
		return moviesRange(page, page), nil
	}

	p := NewPager(fetch, 0, nil)

	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.LoadNext(context.Background())
		}()
	}

	// A waiter can give up
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	require.Eventually(t, func() bool { return inFlight.Load() == 1 }, time.Second, time.Millisecond)
	_, _, err := p.LoadNext(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), maxInFlight.Load())
	assert.Equal(t, []int{1, 2, 3}, keys(p.Snapshot().Pages))
}

func TestPager_Updates(t *testing.T) {
	l := newListing(3)
	p := NewPager(l.fetch, 0, nil)
	defer p.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	updates := p.Updates(ctx)

	first := <-updates
	assert.Empty(t, first.Pages)

	_, _, err := p.LoadNext(ctx)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		select {
		case snap := <-updates:
			return len(snap.Pages) == 1 && snap.State == LoadIdle
		default:
			return false
		}
	}, time.Second, 5*time.Millisecond)
}

func TestRepository_PagersAreIndependent(t *testing.T) {
	f := newFixture(t)
	f.catalog.pages[1] = moviesRange(1, 2)
	f.catalog.pages[2] = moviesRange(3, 4)
	ctx := context.Background()

	a := f.repo.PagedMovies()
	b := f.repo.PagedMovies()

	_, _, err := a.LoadNext(ctx)
	require.NoError(t, err)
	_, _, err = a.LoadNext(ctx)
	require.NoError(t, err)

	page, _, err := b.LoadNext(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, page.Key)
	assert.Len(t, a.Snapshot().Pages, 2)
	assert.Len(t, b.Snapshot().Pages, 1)
}

func TestRepository_PagerEndsOnEmptyRemotePage(t *testing.T) {
	f := newFixture(t)
	f.catalog.pages[1] = moviesRange(1, 2)
	ctx := context.Background()

	p := f.repo.PagedMovies()
	_, _, err := p.LoadNext(ctx)
	require.NoError(t, err)

	page, loaded, err := p.LoadNext(ctx)
	require.NoError(t, err)
	require.True(t, loaded)
	assert.Equal(t, 0, page.NextKey)

	_, loaded, err = p.LoadNext(ctx)
	require.NoError(t, err)
	assert.False(t, loaded)

	pageCalls, _ := f.catalog.calls()
	assert.Equal(t, 2, pageCalls)
}
