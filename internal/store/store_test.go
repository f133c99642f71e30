package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmcdole/reel/internal/domain"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenFile(filepath.Join(t.TempDir(), FileName))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func testMovie(id int, title string) domain.Movie {
	return domain.Movie{
		ID:          id,
		Title:       title,
		Overview:    "overview",
		PosterURL:   "https://image.tmdb.org/t/p/w500/poster.jpg",
		Rating:      7.5,
		ReleaseDate: "2023-01-15",
		Genres:      []string{"Action", "Drama"},
	}
}

func ids(movies []domain.Movie) []int {
	out := make([]int, 0, len(movies))
	for _, m := range movies {
		out = append(out, m.ID)
	}
	return out
}

func next(t *testing.T, ch <-chan []domain.Movie) []domain.Movie {
	t.Helper()
	select {
	case movies, ok := <-ch:
		require.True(t, ok, "watch channel closed")
		return movies
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for emission")
		return nil
	}
}

func TestStore_FavoriteRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	movie := testMovie(1, "Test")

	require.NoError(t, s.UpsertFavorite(ctx, movie))

	got, ok, err := s.GetFavorite(ctx, 1)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, movie, got)

	require.NoError(t, s.DeleteFavorite(ctx, 1))

	_, ok, err = s.GetFavorite(ctx, 1)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_UpsertReplacesRow(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertFavorite(ctx, testMovie(1, "Test")))
	require.NoError(t, s.UpsertFavorite(ctx, testMovie(2, "Other")))
	require.NoError(t, s.UpsertFavorite(ctx, testMovie(1, "Test2")))

	favorites, err := s.ListFavorites(ctx)
	require.NoError(t, err)
	require.Len(t, favorites, 2)

	// Replace behaves as delete-then-insert, so the row moves to the end.
	assert.Equal(t, []int{2, 1}, ids(favorites))
	assert.Equal(t, "Test2", favorites[1].Title)
}

func TestStore_EmptyGenresSurvive(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	movie := testMovie(3, "No genres")
	movie.Genres = []string{}
	require.NoError(t, s.UpsertFavorite(ctx, movie))

	got, ok, err := s.GetFavorite(ctx, 3)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Nil(t, got.Genres)

	favorites, err := s.ListFavorites(ctx)
	require.NoError(t, err)
	require.Len(t, favorites, 1)
	assert.Equal(t, got, favorites[0], "listing and lookup agree")
}

func TestStore_DeleteMissingFavorite(t *testing.T) {
	s := newTestStore(t)
	assert.NoError(t, s.DeleteFavorite(context.Background(), 42))
}

func TestStore_WatchFavorites(t *testing.T) {
	s := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := s.WatchFavorites(ctx)
	require.NoError(t, err)

	first := next(t, ch)
	assert.NotNil(t, first)
	assert.Empty(t, first)

	require.NoError(t, s.UpsertFavorite(ctx, testMovie(1, "One")))
	assert.Equal(t, []int{1}, ids(next(t, ch)))

	require.NoError(t, s.UpsertFavorite(ctx, testMovie(2, "Two")))
	assert.Equal(t, []int{1, 2}, ids(next(t, ch)))

	require.NoError(t, s.DeleteFavorite(ctx, 1))
	assert.Equal(t, []int{2}, ids(next(t, ch)))
}

func TestStore_ReplacePopular(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.InsertPopular(ctx, []domain.Movie{testMovie(9, "Old"), testMovie(8, "Older")}))

	fresh := []domain.Movie{testMovie(3, "C"), testMovie(1, "A"), testMovie(2, "B")}
	require.NoError(t, s.ReplacePopular(ctx, fresh))

	popular, err := s.ListPopular(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int{3, 1, 2}, ids(popular))

	_, ok, err := s.GetPopular(ctx, 9)
	require.NoError(t, err)
	assert.False(t, ok)

	got, ok, err := s.GetPopular(ctx, 1)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "A", got.Title)
}

func TestStore_ReplacePopularEmitsOnce(t *testing.T) {
	s := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, s.InsertPopular(ctx, []domain.Movie{testMovie(1, "A")}))

	ch, err := s.WatchPopular(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int{1}, ids(next(t, ch)))

	require.NoError(t, s.ReplacePopular(ctx, []domain.Movie{testMovie(2, "B")}))
	assert.Equal(t, []int{2}, ids(next(t, ch)))

	select {
	case movies := <-ch:
		t.Fatalf("unexpected emission %v", ids(movies))
	case <-time.After(20 * time.Millisecond):
	}
}

func TestStore_ClearPopular(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.InsertPopular(ctx, []domain.Movie{testMovie(1, "A"), testMovie(2, "B")}))
	require.NoError(t, s.ClearPopular(ctx))

	popular, err := s.ListPopular(ctx)
	require.NoError(t, err)
	assert.Empty(t, popular)
}

func TestStore_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	ctx := context.Background()

	s, err := OpenFile(path)
	require.NoError(t, err)
	require.NoError(t, s.UpsertFavorite(ctx, testMovie(5, "Kept")))
	require.NoError(t, s.ReplacePopular(ctx, []domain.Movie{testMovie(6, "Cached")}))
	require.NoError(t, s.Close())

	s, err = OpenFile(path)
	require.NoError(t, err)
	defer s.Close()

	favorites, err := s.ListFavorites(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int{5}, ids(favorites))

	popular, err := s.ListPopular(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int{6}, ids(popular))
}

func TestStore_ClosedStore(t *testing.T) {
	s, err := OpenFile(filepath.Join(t.TempDir(), FileName))
	require.NoError(t, err)

	ctx := context.Background()
	ch, err := s.WatchFavorites(ctx)
	require.NoError(t, err)
	next(t, ch)

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	_, open := <-ch
	assert.False(t, open)

	_, err = s.ListFavorites(ctx)
	assert.ErrorIs(t, err, domain.ErrStoreClosed)
	assert.ErrorIs(t, s.UpsertFavorite(ctx, testMovie(1, "A")), domain.ErrStoreClosed)
	_, _, err = s.GetPopular(ctx, 1)
	assert.ErrorIs(t, err, domain.ErrStoreClosed)
	_, err = s.WatchPopular(ctx)
	assert.ErrorIs(t, err, domain.ErrStoreClosed)
}

func TestOpen_NamespacesByCatalog(t *testing.T) {
	base := t.TempDir()

	a, err := Open(base, "https://api.themoviedb.org/3/")
	require.NoError(t, err)
	defer a.Close()
	require.NoError(t, a.UpsertFavorite(context.Background(), testMovie(1, "A")))

	b, err := Open(base, "https://other.example.com/3")
	require.NoError(t, err)
	defer b.Close()

	favorites, err := b.ListFavorites(context.Background())
	require.NoError(t, err)
	assert.Empty(t, favorites)

	// Case and trailing slash do not change the directory.
	assert.Equal(t, Dir(base, "https://api.themoviedb.org/3/"), Dir(base, "HTTPS://api.themoviedb.org/3"))
	_, err = os.Stat(filepath.Join(Dir(base, "https://api.themoviedb.org/3"), FileName))
	assert.NoError(t, err)
}
