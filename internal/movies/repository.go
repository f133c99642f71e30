// Package movies reconciles the remote catalog, the favorites store and the
// popular-movies cache into one view for the UI and the CLI.
package movies

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/mmcdole/reel/internal/domain"
	"github.com/mmcdole/reel/internal/metrics"
	"github.com/mmcdole/reel/internal/search"
)

// DefaultWindowPages is the number of pages a pager holds in memory.
const DefaultWindowPages = 5

// Operation names used in errors and logs
const (
	opPage          = "page"
	opRefresh       = "refresh"
	opDetails       = "details"
	opPopular       = "popular"
	opFavorites     = "favorites"
	opAddFavorite   = "add favorite"
	opDelFavorite   = "remove favorite"
	opSearch        = "search"
	opWatchFavorite = "watch favorites"
	opWatchPopular  = "watch popular"
)

// Repository is the single entry point for movie data. Every error it returns is a
// *domain.OpError matching one of domain.ErrNotFound, domain.ErrTransport or
// domain.ErrStorage, except context cancellation which is returned as is.
type Repository struct {
	catalog   domain.CatalogClient
	favorites domain.FavoritesStore
	popular   domain.PopularStore
	sink      domain.LogSink
	logger    *slog.Logger

	windowPages int
	now         func() time.Time
}

// Option configures a Repository.
type Option func(*Repository)

// WithWindowPages sets how many pages each pager keeps. Zero or less keeps all.
func WithWindowPages(n int) Option {
	return func(r *Repository) { r.windowPages = n }
}

// NewRepository creates a repository over its collaborators.
func NewRepository(
	catalog domain.CatalogClient,
	favorites domain.FavoritesStore,
	popular domain.PopularStore,
	sink domain.LogSink,
	logger *slog.Logger,
	opts ...Option,
) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	if sink == nil {
		sink = discardSink{}
	}
	r := &Repository{
		catalog:     catalog,
		favorites:   favorites,
		popular:     popular,
		sink:        sink,
		logger:      logger,
		windowPages: DefaultWindowPages,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// fail wraps err in its class, reports it and returns it. Context cancellation
// is passed through unreported.
func (r *Repository) fail(ctx context.Context, op string, class, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
		return ctxErr
	}
	opErr := domain.NewOpError(op, class, err)
	r.logger.Error("failed to "+op, "class", class.Error(), "error", err)
	r.sink.Log(op + " failed: " + class.Error())
	r.sink.LogError(opErr)
	return opErr
}

// remoteClass maps a catalog error onto not-found or transport.
func remoteClass(err error) error {
	if errors.Is(err, domain.ErrNotFound) {
		return domain.ErrNotFound
	}
	return domain.ErrTransport
}

// === Remote ===

// GetMoviePage fetches one page of popular movies from the catalog. Failures are
// not retried.
func (r *Repository) GetMoviePage(ctx context.Context, page int) ([]domain.Movie, error) {
	p, err := r.catalog.FetchPage(ctx, page)
	if err != nil {
		return nil, r.fail(ctx, opPage, domain.ErrTransport, err)
	}
	r.logger.Debug("fetched movie page", "page", page, "count", len(p.Movies))
	return p.Movies, nil
}

// PagedMovies returns a new pager over the remote listing. Pagers share nothing.
func (r *Repository) PagedMovies() *Pager {
	return NewPager(r.GetMoviePage, r.windowPages, r.logger)
}

// RefreshPopularCache fetches page 1 and, only if that succeeds, replaces the
// popular cache with it in one atomic write. On failure the cache is untouched.
func (r *Repository) RefreshPopularCache(ctx context.Context) error {
	page, err := r.catalog.FetchPage(ctx, 1)
	if err != nil {
		metrics.RecordRefresh("failure", r.now())
		return r.fail(ctx, opRefresh, domain.ErrTransport, err)
	}

	if err := r.popular.ReplacePopular(ctx, page.Movies); err != nil {
		metrics.RecordRefresh("failure", r.now())
		return r.fail(ctx, opRefresh, domain.ErrStorage, err)
	}

	metrics.RecordRefresh("success", r.now())
	r.logger.Info("refreshed popular cache", "count", len(page.Movies))
	return nil
}

// GetMovieDetails returns a favorite without touching the network, otherwise the
// catalog's record. A favorites read failure is reported and the catalog is tried.
func (r *Repository) GetMovieDetails(ctx context.Context, id int) (domain.Movie, error) {
	movie, ok, err := r.favorites.GetFavorite(ctx, id)
	if err != nil {
		if ctx.Err() != nil {
			return domain.Movie{}, ctx.Err()
		}
		r.fail(ctx, opDetails, domain.ErrStorage, err)
	} else if ok {
		return movie, nil
	}

	movie, err = r.catalog.FetchByID(ctx, id)
	if err != nil {
		class := remoteClass(err)
		if class == domain.ErrNotFound {
			r.logger.Debug("movie not found", "id", id)
			return domain.Movie{}, domain.NewOpError(opDetails, class, err)
		}
		return domain.Movie{}, r.fail(ctx, opDetails, class, err)
	}
	return movie, nil
}

// === Local ===

// GetPopularMovie reads one movie from the popular cache only.
func (r *Repository) GetPopularMovie(ctx context.Context, id int) (domain.Movie, error) {
	movie, ok, err := r.popular.GetPopular(ctx, id)
	if err != nil {
		return domain.Movie{}, r.fail(ctx, opPopular, domain.ErrStorage, err)
	}
	if !ok {
		return domain.Movie{}, domain.NewOpError(opPopular, domain.ErrNotFound, nil)
	}
	return movie, nil
}

// Favorites emits the favorites immediately and after every change.
func (r *Repository) Favorites(ctx context.Context) (<-chan []domain.Movie, error) {
	ch, err := r.favorites.WatchFavorites(ctx)
	if err != nil {
		return nil, r.fail(ctx, opWatchFavorite, domain.ErrStorage, err)
	}
	return ch, nil
}

// PopularMovies emits the cached popular movies immediately and after every refresh.
func (r *Repository) PopularMovies(ctx context.Context) (<-chan []domain.Movie, error) {
	ch, err := r.popular.WatchPopular(ctx)
	if err != nil {
		return nil, r.fail(ctx, opWatchPopular, domain.ErrStorage, err)
	}
	return ch, nil
}

// ListFavorites returns the current favorites.
func (r *Repository) ListFavorites(ctx context.Context) ([]domain.Movie, error) {
	favorites, err := r.favorites.ListFavorites(ctx)
	if err != nil {
		return nil, r.fail(ctx, opFavorites, domain.ErrStorage, err)
	}
	return favorites, nil
}

// ListPopular returns the cached popular movies.
func (r *Repository) ListPopular(ctx context.Context) ([]domain.Movie, error) {
	popular, err := r.popular.ListPopular(ctx)
	if err != nil {
		return nil, r.fail(ctx, opPopular, domain.ErrStorage, err)
	}
	return popular, nil
}

// AddToFavorites stores movie as a favorite, replacing any earlier copy.
// Store failures are reported and swallowed.
func (r *Repository) AddToFavorites(ctx context.Context, movie domain.Movie) {
	err := r.favorites.UpsertFavorite(ctx, movie)
	metrics.RecordFavorite("add", err)
	if err != nil {
		r.fail(ctx, opAddFavorite, domain.ErrStorage, err)
		return
	}
	r.logger.Debug("added favorite", "id", movie.ID)
}

// RemoveFromFavorites deletes the favorite with movie's id.
// Store failures are reported and swallowed.
func (r *Repository) RemoveFromFavorites(ctx context.Context, movie domain.Movie) {
	err := r.favorites.DeleteFavorite(ctx, movie.ID)
	metrics.RecordFavorite("remove", err)
	if err != nil {
		r.fail(ctx, opDelFavorite, domain.ErrStorage, err)
		return
	}
	r.logger.Debug("removed favorite", "id", movie.ID)
}

// IsFavorite reports whether id is a favorite. Read failures count as false.
func (r *Repository) IsFavorite(ctx context.Context, id int) bool {
	_, ok, err := r.favorites.GetFavorite(ctx, id)
	if err != nil {
		r.fail(ctx, opFavorites, domain.ErrStorage, err)
		return false
	}
	return ok
}

// ToggleFavorite adds or removes movie and returns whether it is now a favorite.
func (r *Repository) ToggleFavorite(ctx context.Context, movie domain.Movie) bool {
	if r.IsFavorite(ctx, movie.ID) {
		r.RemoveFromFavorites(ctx, movie)
		return false
	}
	r.AddToFavorites(ctx, movie)
	return true
}

// SearchCached ranks favorites and cached popular movies against query without
// touching the network. A favorite shadows a cached copy of the same movie.
func (r *Repository) SearchCached(ctx context.Context, query string) ([]domain.Movie, error) {
	favorites, err := r.favorites.ListFavorites(ctx)
	if err != nil {
		return nil, r.fail(ctx, opSearch, domain.ErrStorage, err)
	}
	popular, err := r.popular.ListPopular(ctx)
	if err != nil {
		return nil, r.fail(ctx, opSearch, domain.ErrStorage, err)
	}
	return search.Rank(query, search.Merge(favorites, popular)), nil
}

type discardSink struct{}

func (discardSink) Log(string)     {}
func (discardSink) LogError(error) {}
