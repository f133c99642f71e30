package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/mmcdole/reel/internal/tui"
)

// NewBrowseCommand creates the browse command.
func NewBrowseCommand(opts *GlobalOptions, version string) *cobra.Command {
	return &cobra.Command{
		Use:   "browse",
		Short: "Browse popular movies and favorites in the terminal UI",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBrowse(cmd, opts, version)
		},
	}
}

func runBrowse(cmd *cobra.Command, opts *GlobalOptions, version string) error {
	if !isTerminal(cmd.InOrStdin()) || !isTerminal(cmd.OutOrStdout()) {
		return errors.New("browse needs an interactive terminal, see `reel --help` for scriptable commands")
	}

	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	if !cfg.IsConfigured() {
		return runSetupFlow(cmd, cfg, opts.ConfigFile)
	}

	s, err := openApp(opts)
	if err != nil {
		return err
	}
	defer s.Close()

	logger := s.Logger
	logger.Info("starting reel", "version", version)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	// Probe, tracker and scheduler run for as long as the UI does
	done := s.Supervise().ServeBackground(ctx)

	model := tui.NewModel(ctx, s.Repository, s.Tracker, s.Opener)
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))

	logger.Info("starting TUI")
	_, runErr := p.Run()

	cancel()
	if err := <-done; err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("supervisor stopped with error", "error", err)
	}

	if runErr != nil && !errors.Is(runErr, tea.ErrProgramKilled) {
		logger.Error("TUI error", "error", runErr)
		return fmt.Errorf("TUI error: %w", runErr)
	}

	logger.Info("shutting down")
	return nil
}

// isTerminal reports whether v is a file attached to a terminal
func isTerminal(v any) bool {
	f, ok := v.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
