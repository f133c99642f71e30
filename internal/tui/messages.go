package tui

import (
	"github.com/mmcdole/reel/internal/connectivity"
	"github.com/mmcdole/reel/internal/domain"
	"github.com/mmcdole/reel/internal/movies"
)

// Message types for the TUI

// ErrMsg represents an error
type ErrMsg struct {
	Err     error
	Context string
}

// Error implements the error interface
func (e ErrMsg) Error() string {
	if e.Context != "" {
		return e.Context + ": " + e.Err.Error()
	}
	return e.Err.Error()
}

// PagerUpdateMsg carries a new state of the popular pager
type PagerUpdateMsg struct {
	Snapshot movies.Snapshot
}

// PageLoadedMsg signals that a pager load finished. Err is nil on success.
type PageLoadedMsg struct {
	Err error
}

// FavoritesMsg carries the current favorites set
type FavoritesMsg struct {
	Movies []domain.Movie
}

// PopularCacheMsg carries the current popular cache snapshot
type PopularCacheMsg struct {
	Movies []domain.Movie
}

// ConnectivityMsg signals an Online/Offline transition
type ConnectivityMsg struct {
	Event connectivity.Event
}

// DetailsLoadedMsg carries the resolved record for the details view
type DetailsLoadedMsg struct {
	ID    int
	Movie domain.Movie
	Err   error
}

// FavoriteToggledMsg signals that a movie was added to or removed from favorites
type FavoriteToggledMsg struct {
	Movie domain.Movie
	Added bool
}

// StatusMsg sets a transient toast
type StatusMsg struct {
	Message string
	IsError bool
}

// ClearStatusMsg clears the toast with the given id
type ClearStatusMsg struct {
	ID int
}
