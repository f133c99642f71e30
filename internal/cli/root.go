// Package cli implements the reel command line.
package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/mmcdole/reel/internal/adapter"
	"github.com/mmcdole/reel/internal/app"
)

// errNotConfigured is returned by commands that need the catalog API key
var errNotConfigured = errors.New("no catalog API key configured, run `reel config init`")

// GlobalOptions are the flags shared by every command.
type GlobalOptions struct {
	ConfigFile string
}

// NewRootCommand creates the root command.
func NewRootCommand(version string) *cobra.Command {
	opts := &GlobalOptions{}

	cmd := &cobra.Command{
		Use:           "reel",
		Short:         "Reel - browse popular movies, online or off",
		Long:          "Reel lists popular movies from a remote catalog, keeps favorites locally and falls back to a cached listing when offline.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBrowse(cmd, opts, version)
		},
	}

	cmd.PersistentFlags().StringVar(&opts.ConfigFile, "config", "", "config file (default "+adapter.ConfigFile()+")")

	cmd.AddCommand(
		NewBrowseCommand(opts, version),
		NewPopularCommand(opts),
		NewRefreshCommand(opts),
		NewDetailsCommand(opts),
		NewSearchCommand(opts),
		NewFavoritesCommand(opts),
		NewDaemonCommand(opts),
		NewConfigCommand(opts),
	)

	return cmd
}

func loadConfig(opts *GlobalOptions) (*adapter.Config, error) {
	if opts.ConfigFile != "" {
		cfg, err := adapter.LoadConfigFile(opts.ConfigFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		return cfg, nil
	}
	cfg, err := adapter.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// session is an opened application plus the log file behind its logger.
type session struct {
	*app.App
	logCloser io.Closer
}

func (s *session) Close() error {
	err := s.App.Close()
	if s.logCloser != nil {
		err = errors.Join(err, s.logCloser.Close())
	}
	return err
}

// openApp loads the config, sets up logging and wires the application.
func openApp(opts *GlobalOptions) (*session, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}
	return openAppWith(cfg)
}

func openAppWith(cfg *adapter.Config) (*session, error) {
	logger, closer, err := adapter.SetupLogger(&cfg.Logging)
	if err != nil {
		// Fall back to null logger if file logging fails
		logger = adapter.NullLogger()
		closer = nil
	}
	slog.SetDefault(logger)

	a, err := app.New(cfg, logger)
	if err != nil {
		if closer != nil {
			closer.Close()
		}
		return nil, fmt.Errorf("failed to start: %w", err)
	}
	return &session{App: a, logCloser: closer}, nil
}
