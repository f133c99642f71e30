package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/mmcdole/reel/internal/catalog"
	"github.com/mmcdole/reel/internal/connectivity"
	"github.com/mmcdole/reel/internal/domain"
	"github.com/mmcdole/reel/internal/tui/styles"
)

// NewPopularCommand creates the popular command.
func NewPopularCommand(opts *GlobalOptions) *cobra.Command {
	var page int

	cmd := &cobra.Command{
		Use:   "popular",
		Short: "List popular movies",
		Long:  "List one page of popular movies from the catalog, or the cached listing when offline.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if page < 1 {
				return fmt.Errorf("invalid page %d", page)
			}
			return runPopular(cmd, opts, page)
		},
	}

	cmd.Flags().IntVarP(&page, "page", "p", 1, "Page of the remote listing")
	return cmd
}

func runPopular(cmd *cobra.Command, opts *GlobalOptions, page int) error {
	s, err := openApp(opts)
	if err != nil {
		return err
	}
	defer s.Close()

	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	var list []domain.Movie
	if !s.Config.IsConfigured() || s.CheckConnectivity(ctx).PreferCache() {
		fmt.Fprintln(cmd.ErrOrStderr(), styles.DimStyle.Render("Offline: showing cached movies"))
		list, err = s.Repository.ListPopular(ctx)
	} else {
		list, err = s.Repository.GetMoviePage(ctx, page)
	}
	if err != nil {
		return err
	}

	favorites, err := favoriteIDs(ctx, s)
	if err != nil {
		return err
	}
	printMovies(out, list, favorites)
	return nil
}

// NewRefreshCommand creates the refresh command.
func NewRefreshCommand(opts *GlobalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Replace the cached popular movies with the first remote page",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openApp(opts)
			if err != nil {
				return err
			}
			defer s.Close()

			if !s.Config.IsConfigured() {
				return errNotConfigured
			}
			if err := s.Repository.RefreshPopularCache(cmd.Context()); err != nil {
				return err
			}

			cached, err := s.Repository.ListPopular(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), styles.SuccessStyle.Render(fmt.Sprintf("✓ Cached %d popular movies", len(cached))))
			return nil
		},
	}
}

// NewDetailsCommand creates the details command.
func NewDetailsCommand(opts *GlobalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "details ID",
		Short: "Show the full record of a movie",
		Long:  "Show a movie, read from favorites when present and from the catalog otherwise. Offline, the cached popular listing is read first.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			s, err := openApp(opts)
			if err != nil {
				return err
			}
			defer s.Close()

			movie, err := resolveDetails(cmd.Context(), s, id)
			if err != nil {
				if errors.Is(err, domain.ErrNotFound) {
					return fmt.Errorf("movie %d not found", id)
				}
				return err
			}
			printDetails(cmd.OutOrStdout(), movie, s.Repository.IsFavorite(cmd.Context(), id))
			return nil
		},
	}
}

// resolveDetails reads the popular cache before the catalog when the catalog
// cannot be reached.
func resolveDetails(ctx context.Context, s *session, id int) (domain.Movie, error) {
	if !s.Config.IsConfigured() || s.CheckConnectivity(ctx).PreferCache() {
		movie, err := s.Repository.GetPopularMovie(ctx, id)
		if !errors.Is(err, domain.ErrNotFound) {
			return movie, err
		}
	}
	return s.Repository.GetMovieDetails(ctx, id)
}

// NewSearchCommand creates the search command.
func NewSearchCommand(opts *GlobalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "search QUERY",
		Short: "Search favorites and cached popular movies",
		Long:  "Search favorites and the cached popular listing by title. Works offline.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openApp(opts)
			if err != nil {
				return err
			}
			defer s.Close()

			ctx := cmd.Context()
			results, err := s.Repository.SearchCached(ctx, strings.Join(args, " "))
			if err != nil {
				return err
			}
			if len(results) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), styles.DimStyle.Render("No matches"))
				return nil
			}

			favorites, err := favoriteIDs(ctx, s)
			if err != nil {
				return err
			}
			printMovies(cmd.OutOrStdout(), results, favorites)
			return nil
		},
	}
}

func parseID(arg string) (int, error) {
	id, err := strconv.Atoi(arg)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid movie id %q", arg)
	}
	return id, nil
}

func favoriteIDs(ctx context.Context, s *session) (map[int]bool, error) {
	favorites, err := s.Repository.ListFavorites(ctx)
	if err != nil {
		return nil, err
	}
	ids := make(map[int]bool, len(favorites))
	for _, m := range favorites {
		ids[m.ID] = true
	}
	return ids, nil
}

var (
	headerStyle = lipgloss.NewStyle().Foreground(styles.CatalogBlue).Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
)

// printMovies writes movies as a table, starring favorites.
func printMovies(w io.Writer, movies []domain.Movie, favorites map[int]bool) {
	if len(movies) == 0 {
		fmt.Fprintln(w, styles.DimStyle.Render("No movies"))
		return
	}

	rows := make([][]string, 0, len(movies))
	for _, m := range movies {
		star := ""
		if favorites[m.ID] {
			star = styles.FavoriteChar
		}
		rows = append(rows, []string{star, strconv.Itoa(m.ID), m.Title, m.Year(), m.FormattedRating(), m.GenreList()})
	}

	t := table.New().
		Border(lipgloss.HiddenBorder()).
		Headers("", "ID", "TITLE", "YEAR", "RATING", "GENRES").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			if col == 0 {
				return cellStyle.Foreground(styles.Gold)
			}
			return cellStyle
		})
	fmt.Fprintln(w, t.Render())
}

func printDetails(w io.Writer, m domain.Movie, favorite bool) {
	title := m.Title
	if favorite {
		title = styles.FavoriteChar + " " + title
	}
	fmt.Fprintln(w, styles.TitleStyle.Render(title))

	released := "unknown"
	if m.Year() != "" {
		released = m.ReleaseDate
	}
	field := func(label, value string) {
		if value != "" {
			fmt.Fprintln(w, styles.LabelStyle.Render(label)+value)
		}
	}
	field("ID", strconv.Itoa(m.ID))
	field("Released", released)
	field("Rating", m.FormattedRating())
	field("Genres", m.GenreList())
	field("Poster", m.PosterURL)
	field("Page", catalog.WebURL(m.ID))

	if m.Overview != "" {
		fmt.Fprintln(w)
		fmt.Fprintln(w, lipgloss.NewStyle().Width(80).Render(m.Overview))
	}
}

// connectivityLabel renders a state for status lines
func connectivityLabel(state connectivity.State) string {
	switch state {
	case connectivity.Online:
		return styles.SuccessStyle.Render("online")
	case connectivity.Offline:
		return styles.ErrorStyle.Render("offline")
	default:
		return styles.DimStyle.Render(state.String())
	}
}
