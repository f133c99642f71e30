package tui

import (
	"context"
	"errors"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/mmcdole/reel/internal/domain"
	"github.com/mmcdole/reel/internal/movies"
)

// Command factories for async operations

// loadTimeout bounds a single page or details request
const loadTimeout = 30 * time.Second

type pagerOp func(ctx context.Context) (movies.Page, bool, error)

func pagerCmd(ctx context.Context, op pagerOp) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(ctx, loadTimeout)
		defer cancel()

		_, _, err := op(ctx)
		return PageLoadedMsg{Err: err}
	}
}

// LoadNextCmd appends the next popular page
func LoadNextCmd(ctx context.Context, pager *movies.Pager) tea.Cmd {
	return pagerCmd(ctx, pager.LoadNext)
}

// LoadPreviousCmd prepends the page before the first held one
func LoadPreviousCmd(ctx context.Context, pager *movies.Pager) tea.Cmd {
	return pagerCmd(ctx, pager.LoadPrevious)
}

// RetryCmd repeats the failed page load
func RetryCmd(ctx context.Context, pager *movies.Pager) tea.Cmd {
	return pagerCmd(ctx, pager.Retry)
}

// RefreshCmd restarts paging around the page the user is looking at
func RefreshCmd(ctx context.Context, pager *movies.Pager, anchor int) tea.Cmd {
	return pagerCmd(ctx, func(ctx context.Context) (movies.Page, bool, error) {
		return pager.RefreshAt(ctx, anchor)
	})
}

// LoadDetailsCmd resolves the full record of a movie. With preferCache the
// popular cache is consulted first and the catalog only on a miss.
func LoadDetailsCmd(ctx context.Context, svc MovieService, id int, preferCache bool) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(ctx, loadTimeout)
		defer cancel()

		if preferCache {
			movie, err := svc.GetPopularMovie(ctx, id)
			if !errors.Is(err, domain.ErrNotFound) {
				return DetailsLoadedMsg{ID: id, Movie: movie, Err: err}
			}
		}
		movie, err := svc.GetMovieDetails(ctx, id)
		return DetailsLoadedMsg{ID: id, Movie: movie, Err: err}
	}
}

// ToggleFavoriteCmd flips the favorite status of a movie
func ToggleFavoriteCmd(ctx context.Context, svc MovieService, movie domain.Movie) tea.Cmd {
	return func() tea.Msg {
		added := svc.ToggleFavorite(ctx, movie)
		return FavoriteToggledMsg{Movie: movie, Added: added}
	}
}

// OpenURLCmd opens url in the browser
func OpenURLCmd(opener URLOpener, url string) tea.Cmd {
	return func() tea.Msg {
		if err := opener.Open(url); err != nil {
			return ErrMsg{Err: err, Context: "opening browser"}
		}
		return StatusMsg{Message: "Opened " + url}
	}
}

// ClearStatusCmd clears the toast with id after delay
func ClearStatusCmd(id int, delay time.Duration) tea.Cmd {
	return tea.Tick(delay, func(time.Time) tea.Msg {
		return ClearStatusMsg{ID: id}
	})
}
