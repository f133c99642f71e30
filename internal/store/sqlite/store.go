// Package sqlite implements the favorites store and popular cache on SQLite.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/mmcdole/reel/internal/domain"
	"github.com/mmcdole/reel/internal/watch"
)

const (
	tableFavorites = "favorites"
	tablePopular   = "popular_movies"
)

const movieColumns = "id, title, overview, poster_url, backdrop_url, rating, release_date, genres"

// Store implements domain.FavoritesStore and domain.PopularStore using SQLite.
type Store struct {
	mu     sync.RWMutex
	db     *sql.DB
	closed bool

	favorites *watch.Feed[[]domain.Movie]
	popular   *watch.Feed[[]domain.Movie]
}

// New opens or creates the database at dbPath.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open movie database: %w", err)
	}
	return newStore(db)
}

// NewInMemory creates a new in-memory SQLite store (useful for testing).
func NewInMemory() (*Store, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to open in-memory database: %w", err)
	}
	// Every connection to :memory: is a separate database.
	db.SetMaxOpenConns(1)
	return newStore(db)
}

func newStore(db *sql.DB) (*Store, error) {
	s := &Store{db: db}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize movie database: %w", err)
	}

	ctx := context.Background()
	favorites, err := s.query(ctx, s.db, tableFavorites)
	if err != nil {
		db.Close()
		return nil, err
	}
	popular, err := s.query(ctx, s.db, tablePopular)
	if err != nil {
		db.Close()
		return nil, err
	}

	s.favorites = watch.NewWithValue(favorites)
	s.popular = watch.NewWithValue(popular)
	return s, nil
}

// initialize creates the necessary tables.
func (s *Store) initialize() error {
	// id is declared INT, not INTEGER, so it does not alias rowid and a
	// replaced row gets a fresh rowid.
	schema := `
		CREATE TABLE IF NOT EXISTS favorites (
			id INT PRIMARY KEY,
			title TEXT NOT NULL,
			overview TEXT NOT NULL,
			poster_url TEXT NOT NULL DEFAULT '',
			backdrop_url TEXT NOT NULL DEFAULT '',
			rating REAL NOT NULL DEFAULT 0,
			release_date TEXT NOT NULL,
			genres TEXT NOT NULL DEFAULT ''
		);

		CREATE TABLE IF NOT EXISTS popular_movies (
			id INT PRIMARY KEY,
			title TEXT NOT NULL,
			overview TEXT NOT NULL,
			poster_url TEXT NOT NULL DEFAULT '',
			backdrop_url TEXT NOT NULL DEFAULT '',
			rating REAL NOT NULL DEFAULT 0,
			release_date TEXT NOT NULL,
			genres TEXT NOT NULL DEFAULT ''
		);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database and every open watch channel.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	s.favorites.Close()
	s.popular.Close()
	return s.db.Close()
}

// queryer is satisfied by *sql.DB and *sql.Tx.
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanMovie(row scanner) (domain.Movie, error) {
	var (
		m      domain.Movie
		genres string
	)
	err := row.Scan(&m.ID, &m.Title, &m.Overview, &m.PosterURL, &m.BackdropURL, &m.Rating, &m.ReleaseDate, &genres)
	if err != nil {
		return domain.Movie{}, err
	}
	m.Genres = domain.DecodeGenres(genres)
	return m, nil
}

// query lists a table in rowid order. INSERT OR REPLACE assigns a fresh rowid,
// so a replaced row sorts last.
func (s *Store) query(ctx context.Context, q queryer, table string) ([]domain.Movie, error) {
	rows, err := q.QueryContext(ctx, "SELECT "+movieColumns+" FROM "+table+" ORDER BY rowid")
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", table, err)
	}
	defer rows.Close()

	movies := make([]domain.Movie, 0)
	for rows.Next() {
		m, err := scanMovie(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan %s row: %w", table, err)
		}
		movies = append(movies, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", table, err)
	}
	return movies, nil
}

func insert(ctx context.Context, q queryer, table string, m domain.Movie) error {
	_, err := q.ExecContext(ctx,
		"INSERT OR REPLACE INTO "+table+" ("+movieColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
		m.ID, m.Title, m.Overview, m.PosterURL, m.BackdropURL, m.Rating, m.ReleaseDate, domain.EncodeGenres(m.Genres),
	)
	return err
}

func (s *Store) get(ctx context.Context, table string, id int) (domain.Movie, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return domain.Movie{}, false, domain.ErrStoreClosed
	}

	row := s.db.QueryRowContext(ctx, "SELECT "+movieColumns+" FROM "+table+" WHERE id = ?", id)
	m, err := scanMovie(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Movie{}, false, nil
	}
	if err != nil {
		return domain.Movie{}, false, fmt.Errorf("failed to get movie %d from %s: %w", id, table, err)
	}
	return m, true, nil
}

// write runs fn in a transaction and publishes the table's committed contents.
func (s *Store) write(ctx context.Context, table string, feed *watch.Feed[[]domain.Movie], fn func(tx *sql.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return domain.ErrStoreClosed
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	snapshot, err := s.query(ctx, tx, table)
	if err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	feed.Publish(snapshot)
	return nil
}

func (s *Store) list(feed *watch.Feed[[]domain.Movie]) ([]domain.Movie, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, domain.ErrStoreClosed
	}

	movies, _ := feed.Value()
	out := make([]domain.Movie, len(movies))
	copy(out, movies)
	return out, nil
}

func (s *Store) subscribe(ctx context.Context, feed *watch.Feed[[]domain.Movie]) (<-chan []domain.Movie, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, domain.ErrStoreClosed
	}
	return feed.Subscribe(ctx), nil
}

// WatchFavorites emits the favorites on subscribe and after every write.
func (s *Store) WatchFavorites(ctx context.Context) (<-chan []domain.Movie, error) {
	return s.subscribe(ctx, s.favorites)
}

// ListFavorites returns favorites in insertion order.
func (s *Store) ListFavorites(ctx context.Context) ([]domain.Movie, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.list(s.favorites)
}

func (s *Store) GetFavorite(ctx context.Context, id int) (domain.Movie, bool, error) {
	return s.get(ctx, tableFavorites, id)
}

// UpsertFavorite inserts movie or replaces every column of an existing row.
func (s *Store) UpsertFavorite(ctx context.Context, movie domain.Movie) error {
	err := s.write(ctx, tableFavorites, s.favorites, func(tx *sql.Tx) error {
		return insert(ctx, tx, tableFavorites, movie)
	})
	if err != nil {
		return fmt.Errorf("failed to save favorite %d: %w", movie.ID, err)
	}
	return nil
}

func (s *Store) DeleteFavorite(ctx context.Context, id int) error {
	err := s.write(ctx, tableFavorites, s.favorites, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, "DELETE FROM favorites WHERE id = ?", id)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to delete favorite %d: %w", id, err)
	}
	return nil
}

func (s *Store) WatchPopular(ctx context.Context) (<-chan []domain.Movie, error) {
	return s.subscribe(ctx, s.popular)
}

func (s *Store) ListPopular(ctx context.Context) ([]domain.Movie, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.list(s.popular)
}

func (s *Store) GetPopular(ctx context.Context, id int) (domain.Movie, bool, error) {
	return s.get(ctx, tablePopular, id)
}

func (s *Store) ClearPopular(ctx context.Context) error {
	err := s.write(ctx, tablePopular, s.popular, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, "DELETE FROM popular_movies")
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to clear popular movies: %w", err)
	}
	return nil
}

func (s *Store) InsertPopular(ctx context.Context, movies []domain.Movie) error {
	err := s.write(ctx, tablePopular, s.popular, func(tx *sql.Tx) error {
		return insertAll(ctx, tx, movies)
	})
	if err != nil {
		return fmt.Errorf("failed to insert popular movies: %w", err)
	}
	return nil
}

// ReplacePopular clears the table and inserts movies in one transaction.
func (s *Store) ReplacePopular(ctx context.Context, movies []domain.Movie) error {
	err := s.write(ctx, tablePopular, s.popular, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM popular_movies"); err != nil {
			return err
		}
		return insertAll(ctx, tx, movies)
	})
	if err != nil {
		return fmt.Errorf("failed to replace popular movies: %w", err)
	}
	return nil
}

func insertAll(ctx context.Context, tx *sql.Tx, movies []domain.Movie) error {
	for _, m := range movies {
		if err := insert(ctx, tx, tablePopular, m); err != nil {
			return err
		}
	}
	return nil
}
