// Package store persists favorites and the popular-movies cache in a bbolt file.
package store

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	bolt "go.etcd.io/bbolt"

	"github.com/mmcdole/reel/internal/domain"
	"github.com/mmcdole/reel/internal/watch"
)

// Bucket names
var (
	bucketFavorites = []byte("favorites")
	bucketPopular   = []byte("popular_movies")
)

// FileName is the database file created inside the per-catalog directory.
const FileName = "reel.db"

// movieRow is the persisted shape of a movie. Seq orders rows by insertion.
type movieRow struct {
	ID          int     `json:"id"`
	Title       string  `json:"title"`
	Overview    string  `json:"overview"`
	PosterURL   string  `json:"poster_url"`
	BackdropURL string  `json:"backdrop_url"`
	Rating      float64 `json:"rating"`
	ReleaseDate string  `json:"release_date"`
	Genres      string  `json:"genres"`
	Seq         uint64  `json:"seq"`
}

func toRow(m domain.Movie, seq uint64) movieRow {
	return movieRow{
		ID:          m.ID,
		Title:       m.Title,
		Overview:    m.Overview,
		PosterURL:   m.PosterURL,
		BackdropURL: m.BackdropURL,
		Rating:      m.Rating,
		ReleaseDate: m.ReleaseDate,
		Genres:      domain.EncodeGenres(m.Genres),
		Seq:         seq,
	}
}

func (r movieRow) movie() domain.Movie {
	return domain.Movie{
		ID:          r.ID,
		Title:       r.Title,
		Overview:    r.Overview,
		PosterURL:   r.PosterURL,
		BackdropURL: r.BackdropURL,
		Rating:      r.Rating,
		ReleaseDate: r.ReleaseDate,
		Genres:      domain.DecodeGenres(r.Genres),
	}
}

// Store implements domain.FavoritesStore and domain.PopularStore using BoltDB.
type Store struct {
	db     *bolt.DB
	mu     sync.RWMutex // Serializes writes with their feed publish; guards closed
	closed bool

	// Latest committed contents, served to watchers and list calls
	favorites *watch.Feed[[]domain.Movie]
	popular   *watch.Feed[[]domain.Movie]
}

// Open opens the store for one catalog. Each catalog URL gets its own directory
// under baseDir so two catalogs never share cached rows.
func Open(baseDir, catalogURL string) (*Store, error) {
	dir := baseDir
	if catalogURL != "" {
		dir = filepath.Join(baseDir, hashCatalogURL(catalogURL))
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create store dir: %w", err)
	}
	return OpenFile(filepath.Join(dir, FileName))
}

// OpenFile opens or creates the bolt database at path.
func OpenFile(path string) (*Store, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt db: %w", err)
	}

	var favorites, popular []domain.Movie
	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{bucketFavorites, bucketPopular} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		if favorites, err = readAll(tx.Bucket(bucketFavorites)); err != nil {
			return err
		}
		popular, err = readAll(tx.Bucket(bucketPopular))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize bolt db: %w", err)
	}

	return &Store{
		db:        db,
		favorites: watch.NewWithValue(favorites),
		popular:   watch.NewWithValue(popular),
	}, nil
}

// Dir returns the directory Open uses for catalogURL.
func Dir(baseDir, catalogURL string) string {
	if catalogURL == "" {
		return baseDir
	}
	return filepath.Join(baseDir, hashCatalogURL(catalogURL))
}

func hashCatalogURL(catalogURL string) string {
	normalized := strings.TrimRight(strings.ToLower(catalogURL), "/")
	hash := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(hash[:6])
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

// === Generic helpers ===

func itob(id int) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(id))
	return b
}

// readAll returns the bucket's movies in insertion order, never nil.
func readAll(b *bolt.Bucket) ([]domain.Movie, error) {
	var rows []movieRow
	err := b.ForEach(func(_, v []byte) error {
		var row movieRow
		if err := json.Unmarshal(v, &row); err != nil {
			return err
		}
		rows = append(rows, row)
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(rows, func(i, j int) bool { return rows[i].Seq < rows[j].Seq })
	movies := make([]domain.Movie, 0, len(rows))
	for _, row := range rows {
		movies = append(movies, row.movie())
	}
	return movies, nil
}

// put writes m under its id. A replaced row takes a new sequence number and
// moves to the end of the listing.
func put(b *bolt.Bucket, m domain.Movie) error {
	seq, err := b.NextSequence()
	if err != nil {
		return err
	}
	data, err := json.Marshal(toRow(m, seq))
	if err != nil {
		return err
	}
	return b.Put(itob(m.ID), data)
}

func clearBucket(b *bolt.Bucket) error {
	var keys [][]byte
	c := b.Cursor()
	for k, _ := c.First(); k != nil; k, _ = c.Next() {
		keys = append(keys, append([]byte(nil), k...))
	}
	for _, k := range keys {
		if err := b.Delete(k); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) get(ctx context.Context, bucket []byte, id int) (domain.Movie, bool, error) {
	if err := ctx.Err(); err != nil {
		return domain.Movie{}, false, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return domain.Movie{}, false, domain.ErrStoreClosed
	}

	var data []byte
	s.db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket(bucket).Get(itob(id)); v != nil {
			data = make([]byte, len(v))
			copy(data, v)
		}
		return nil
	})
	if data == nil {
		return domain.Movie{}, false, nil
	}

	var row movieRow
	if err := json.Unmarshal(data, &row); err != nil {
		return domain.Movie{}, false, fmt.Errorf("failed to decode movie %d: %w", id, err)
	}
	return row.movie(), true, nil
}

// update runs fn in one bolt transaction and, once committed, publishes the
// bucket's new contents to feed.
func (s *Store) update(ctx context.Context, bucket []byte, feed *watch.Feed[[]domain.Movie], fn func(b *bolt.Bucket) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return domain.ErrStoreClosed
	}

	var snapshot []domain.Movie
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucket)
		if err := fn(b); err != nil {
			return err
		}
		var err error
		snapshot, err = readAll(b)
		return err
	})
	if err != nil {
		return err
	}

	feed.Publish(snapshot)
	return nil
}

func (s *Store) list(ctx context.Context, feed *watch.Feed[[]domain.Movie]) ([]domain.Movie, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

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

// === Favorites ===

func (s *Store) WatchFavorites(ctx context.Context) (<-chan []domain.Movie, error) {
	return s.subscribe(ctx, s.favorites)
}

func (s *Store) ListFavorites(ctx context.Context) ([]domain.Movie, error) {
	return s.list(ctx, s.favorites)
}

func (s *Store) GetFavorite(ctx context.Context, id int) (domain.Movie, bool, error) {
	return s.get(ctx, bucketFavorites, id)
}

func (s *Store) UpsertFavorite(ctx context.Context, movie domain.Movie) error {
	err := s.update(ctx, bucketFavorites, s.favorites, func(b *bolt.Bucket) error {
		return put(b, movie)
	})
	if err != nil {
		return fmt.Errorf("failed to save favorite %d: %w", movie.ID, err)
	}
	return nil
}

func (s *Store) DeleteFavorite(ctx context.Context, id int) error {
	err := s.update(ctx, bucketFavorites, s.favorites, func(b *bolt.Bucket) error {
		return b.Delete(itob(id))
	})
	if err != nil {
		return fmt.Errorf("failed to delete favorite %d: %w", id, err)
	}
	return nil
}

// === Popular cache ===

func (s *Store) WatchPopular(ctx context.Context) (<-chan []domain.Movie, error) {
	return s.subscribe(ctx, s.popular)
}

func (s *Store) ListPopular(ctx context.Context) ([]domain.Movie, error) {
	return s.list(ctx, s.popular)
}

func (s *Store) GetPopular(ctx context.Context, id int) (domain.Movie, bool, error) {
	return s.get(ctx, bucketPopular, id)
}

func (s *Store) ClearPopular(ctx context.Context) error {
	if err := s.update(ctx, bucketPopular, s.popular, clearBucket); err != nil {
		return fmt.Errorf("failed to clear popular movies: %w", err)
	}
	return nil
}

func (s *Store) InsertPopular(ctx context.Context, movies []domain.Movie) error {
	err := s.update(ctx, bucketPopular, s.popular, func(b *bolt.Bucket) error {
		for _, m := range movies {
			if err := put(b, m); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to insert popular movies: %w", err)
	}
	return nil
}

// ReplacePopular clears the cache and inserts movies in a single transaction.
func (s *Store) ReplacePopular(ctx context.Context, movies []domain.Movie) error {
	err := s.update(ctx, bucketPopular, s.popular, func(b *bolt.Bucket) error {
		if err := clearBucket(b); err != nil {
			return err
		}
		for _, m := range movies {
			if err := put(b, m); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to replace popular movies: %w", err)
	}
	return nil
}
