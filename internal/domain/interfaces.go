package domain

import "context"

// CatalogClient: Network operations against the remote movie catalog.
// Failures surface as errors and are never retried by the client.
type CatalogClient interface {
	// FetchPage returns one page of popular movies (1-based)
	FetchPage(ctx context.Context, page int) (Page, error)

	// FetchByID returns the full record of one movie, ErrNotFound if the catalog does not know it
	FetchByID(ctx context.Context, id int) (Movie, error)
}

// FavoritesStore: Durable keyed set of movies the user marked.
// Upserts replace every field of an existing id.
type FavoritesStore interface {
	// WatchFavorites emits the full set on subscribe and after every write.
	// The channel closes when ctx is done or the store is closed.
	WatchFavorites(ctx context.Context) (<-chan []Movie, error)

	ListFavorites(ctx context.Context) ([]Movie, error)
	GetFavorite(ctx context.Context, id int) (Movie, bool, error)
	UpsertFavorite(ctx context.Context, movie Movie) error
	DeleteFavorite(ctx context.Context, id int) error
}

// PopularStore: Snapshot of the last successfully fetched popular page.
type PopularStore interface {
	// WatchPopular emits the full snapshot on subscribe and after every write.
	WatchPopular(ctx context.Context) (<-chan []Movie, error)

	ListPopular(ctx context.Context) ([]Movie, error)
	GetPopular(ctx context.Context, id int) (Movie, bool, error)
	ClearPopular(ctx context.Context) error
	InsertPopular(ctx context.Context, movies []Movie) error

	// ReplacePopular clears the snapshot and inserts movies as one atomic unit.
	// No reader observes the state between the clear and the insert.
	ReplacePopular(ctx context.Context, movies []Movie) error
}

// ConnectivityMonitor produces a live signal of network reachability.
type ConnectivityMonitor interface {
	Watch(ctx context.Context) <-chan bool
}

// LogSink receives failure reports. Implementations never block and never fail.
type LogSink interface {
	Log(message string)
	LogError(err error)
}

// Refresher repopulates the popular cache. Implemented by the movie repository
// and invoked by the background scheduler.
type Refresher interface {
	RefreshPopularCache(ctx context.Context) error
}
