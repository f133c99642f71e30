package app

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmcdole/reel/internal/adapter"
	"github.com/mmcdole/reel/internal/connectivity"
	"github.com/mmcdole/reel/internal/domain"
)

// newCatalogServer serves a one-page popular listing and 404 for everything else.
func newCatalogServer(t *testing.T) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var popularCalls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/movie/popular":
			popularCalls.Add(1)
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, `{"page":1,"total_pages":1,"results":[
				{"id":550,"title":"Fight Club","release_date":"1999-10-15","vote_average":8.4,"genre_ids":[18]},
				{"id":603,"title":"The Matrix","release_date":"1999-03-30","vote_average":8.2,"genre_ids":[28,878]}
			]}`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return srv, &popularCalls
}

func testConfig(t *testing.T, baseURL string, driver adapter.StoreDriver) *adapter.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := adapter.DefaultConfig()
	cfg.Catalog.BaseURL = baseURL
	cfg.Catalog.APIKey = "test-key"
	cfg.Catalog.RequestsPerSecond = 0
	cfg.Store.Driver = driver
	cfg.Store.Dir = filepath.Join(dir, "cache")
	cfg.CrashLog.File = filepath.Join(dir, "crash.log")
	cfg.Logging.File = filepath.Join(dir, "reel.log")
	cfg.Connectivity.Interval = 50 * time.Millisecond
	return cfg
}

func TestApp_RefreshAndPersist(t *testing.T) {
	for _, driver := range []adapter.StoreDriver{adapter.StoreDriverBolt, adapter.StoreDriverSQLite} {
		t.Run(string(driver), func(t *testing.T) {
			srv, _ := newCatalogServer(t)
			cfg := testConfig(t, srv.URL, driver)
			ctx := context.Background()

			a, err := New(cfg, adapter.NullLogger())
			require.NoError(t, err)

			assert.Equal(t, connectivity.Online, a.CheckConnectivity(ctx))
			require.NoError(t, a.Repository.RefreshPopularCache(ctx))
			a.Repository.AddToFavorites(ctx, domain.Movie{ID: 1, Title: "Local Only"})
			require.NoError(t, a.Close())

			// Reopen: cached rows survive without the network
			srv.Close()
			a, err = New(cfg, adapter.NullLogger())
			require.NoError(t, err)
			defer a.Close()

			popular, err := a.Repository.ListPopular(ctx)
			require.NoError(t, err)
			require.Len(t, popular, 2)
			assert.Equal(t, "Fight Club", popular[0].Title)
			assert.Equal(t, []string{"Action", "Science Fiction"}, popular[1].Genres)

			movie, err := a.Repository.GetMovieDetails(ctx, 1)
			require.NoError(t, err)
			assert.Equal(t, "Local Only", movie.Title)

			assert.Equal(t, connectivity.Offline, a.CheckConnectivity(ctx))
		})
	}
}

func TestApp_CatalogsDoNotShareCache(t *testing.T) {
	srv, _ := newCatalogServer(t)
	cfg := testConfig(t, srv.URL, adapter.StoreDriverBolt)
	ctx := context.Background()

	a, err := New(cfg, adapter.NullLogger())
	require.NoError(t, err)
	require.NoError(t, a.Repository.RefreshPopularCache(ctx))
	require.NoError(t, a.Close())

	other := *cfg
	other.Catalog.BaseURL = srv.URL + "/other"
	b, err := New(&other, adapter.NullLogger())
	require.NoError(t, err)
	defer b.Close()

	popular, err := b.Repository.ListPopular(ctx)
	require.NoError(t, err)
	assert.Empty(t, popular)
}

func TestApp_SuperviseRefreshesOnStart(t *testing.T) {
	srv, calls := newCatalogServer(t)
	cfg := testConfig(t, srv.URL, adapter.StoreDriverBolt)

	a, err := New(cfg, adapter.NullLogger())
	require.NoError(t, err)
	defer a.Close()

	ctx, cancel := context.WithCancel(context.Background())
	errCh := a.Supervise().ServeBackground(ctx)

	require.Eventually(t, func() bool {
		movies, err := a.Repository.ListPopular(context.Background())
		return err == nil && len(movies) == 2
	}, 2*time.Second, 10*time.Millisecond)
	assert.GreaterOrEqual(t, calls.Load(), int32(1))

	require.Eventually(t, func() bool {
		return a.Tracker.State() == connectivity.Online
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-errCh:
	case <-time.After(5 * time.Second):
		t.Fatal("supervisor did not stop")
	}
}

func TestOpenStore_UnknownDriver(t *testing.T) {
	cfg := testConfig(t, "http://localhost", "postgres")
	_, err := OpenStore(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown store driver")
}
