package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mmcdole/reel/internal/tui/styles"
)

// NewFavoritesCommand creates the favorites command and its subcommands.
func NewFavoritesCommand(opts *GlobalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "favorites",
		Aliases: []string{"fav"},
		Short:   "Manage favorite movies",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List favorite movies",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				s, err := openApp(opts)
				if err != nil {
					return err
				}
				defer s.Close()

				favorites, err := s.Repository.ListFavorites(cmd.Context())
				if err != nil {
					return err
				}
				all := make(map[int]bool, len(favorites))
				for _, m := range favorites {
					all[m.ID] = true
				}
				printMovies(cmd.OutOrStdout(), favorites, all)
				return nil
			},
		},
		&cobra.Command{
			Use:   "add ID",
			Short: "Add a movie to favorites",
			Long:  "Fetch the movie's record and store it as a favorite so it stays available offline.",
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

				ctx := cmd.Context()
				movie, err := s.Repository.GetMovieDetails(ctx, id)
				if err != nil {
					// Fall back to the cached listing copy
					cached, cacheErr := s.Repository.GetPopularMovie(ctx, id)
					if cacheErr != nil {
						return fmt.Errorf("failed to resolve movie %d: %w", id, err)
					}
					movie = cached
				}

				s.Repository.AddToFavorites(ctx, movie)
				if !s.Repository.IsFavorite(ctx, id) {
					return fmt.Errorf("failed to save favorite %d", id)
				}
				fmt.Fprintln(cmd.OutOrStdout(), styles.SuccessStyle.Render(fmt.Sprintf("✓ Added %q to favorites", movie.Title)))
				return nil
			},
		},
		&cobra.Command{
			Use:     "remove ID",
			Aliases: []string{"rm"},
			Short:   "Remove a movie from favorites",
			Args:    cobra.ExactArgs(1),
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

				ctx := cmd.Context()
				if !s.Repository.IsFavorite(ctx, id) {
					return fmt.Errorf("movie %d is not a favorite", id)
				}
				// Favorites resolve locally
				movie, err := s.Repository.GetMovieDetails(ctx, id)
				if err != nil {
					return err
				}

				s.Repository.RemoveFromFavorites(ctx, movie)
				if s.Repository.IsFavorite(ctx, id) {
					return fmt.Errorf("failed to remove favorite %d", id)
				}
				fmt.Fprintln(cmd.OutOrStdout(), styles.SuccessStyle.Render(fmt.Sprintf("✓ Removed %q from favorites", movie.Title)))
				return nil
			},
		},
	)

	return cmd
}
