package movies

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mmcdole/reel/internal/domain"
	"github.com/mmcdole/reel/internal/store"
)

var errDisk = errors.New("disk I/O error")

// fakeCatalog serves pages and movies from maps and counts every call.
type fakeCatalog struct {
	mu        sync.Mutex
	pages     map[int][]domain.Movie
	movies    map[int]domain.Movie
	pageErr   map[int]error
	byIDErr   error
	pageCalls int
	idCalls   int
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{
		pages:   make(map[int][]domain.Movie),
		movies:  make(map[int]domain.Movie),
		pageErr: make(map[int]error),
	}
}

func (f *fakeCatalog) FetchPage(ctx context.Context, page int) (domain.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pageCalls++
	if err := ctx.Err(); err != nil {
		return domain.Page{}, err
	}
	if err := f.pageErr[page]; err != nil {
		return domain.Page{}, err
	}
	return domain.Page{Number: page, Movies: f.pages[page]}, nil
}

func (f *fakeCatalog) FetchByID(ctx context.Context, id int) (domain.Movie, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.idCalls++
	if f.byIDErr != nil {
		return domain.Movie{}, f.byIDErr
	}
	m, ok := f.movies[id]
	if !ok {
		return domain.Movie{}, domain.ErrNotFound
	}
	return m, nil
}

func (f *fakeCatalog) calls() (pages, ids int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pageCalls, f.idCalls
}

// fakeSink records reported errors.
type fakeSink struct {
	mu     sync.Mutex
	errors []error
	logs   []string
}

func (s *fakeSink) Log(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs = append(s.logs, message)
}

func (s *fakeSink) LogError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errors = append(s.errors, err)
}

func (s *fakeSink) messages() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.logs...)
}

func (s *fakeSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.errors)
}

// brokenStore fails every call.
type brokenStore struct{}

func (brokenStore) WatchFavorites(context.Context) (<-chan []domain.Movie, error) {
	return nil, errDisk
}
func (brokenStore) ListFavorites(context.Context) ([]domain.Movie, error) { return nil, errDisk }
func (brokenStore) GetFavorite(context.Context, int) (domain.Movie, bool, error) {
	return domain.Movie{}, false, errDisk
}
func (brokenStore) UpsertFavorite(context.Context, domain.Movie) error { return errDisk }
func (brokenStore) DeleteFavorite(context.Context, int) error          { return errDisk }
func (brokenStore) WatchPopular(context.Context) (<-chan []domain.Movie, error) {
	return nil, errDisk
}
func (brokenStore) ListPopular(context.Context) ([]domain.Movie, error) { return nil, errDisk }
func (brokenStore) GetPopular(context.Context, int) (domain.Movie, bool, error) {
	return domain.Movie{}, false, errDisk
}
func (brokenStore) ClearPopular(context.Context) error                  { return errDisk }
func (brokenStore) InsertPopular(context.Context, []domain.Movie) error  { return errDisk }
func (brokenStore) ReplacePopular(context.Context, []domain.Movie) error { return errDisk }

func newBoltStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.OpenFile(filepath.Join(t.TempDir(), store.FileName))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func movie(id int, title string) domain.Movie {
	return domain.Movie{
		ID:          id,
		Title:       title,
		Overview:    fmt.Sprintf("overview of %s", title),
		Rating:      7,
		ReleaseDate: "2024-05-01",
		Genres:      []string{"Drama"},
	}
}

func moviesRange(from, to int) []domain.Movie {
	var out []domain.Movie
	for id := from; id <= to; id++ {
		out = append(out, movie(id, fmt.Sprintf("Movie %d", id)))
	}
	return out
}

func ids(movies []domain.Movie) []int {
	out := make([]int, 0, len(movies))
	for _, m := range movies {
		out = append(out, m.ID)
	}
	return out
}
