package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/mmcdole/reel/internal/adapter"
	"github.com/mmcdole/reel/internal/catalog"
	"github.com/mmcdole/reel/internal/tui/styles"
)

// clearSpinnerLine clears the spinner line from the terminal
const clearSpinnerLine = "\r                                    \r"

// verifyTimeout bounds the test request made with a new API key
const verifyTimeout = 15 * time.Second

// NewConfigCommand creates the config command and its subcommands.
func NewConfigCommand(opts *GlobalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the configuration file",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "init",
			Short: "Set the catalog API key and write the config file",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, err := loadConfig(opts)
				if err != nil {
					// A broken file is replaced
					cfg = adapter.DefaultConfig()
				}
				return runSetupFlow(cmd, cfg, opts.ConfigFile)
			},
		},
		&cobra.Command{
			Use:   "path",
			Short: "Print the config file location",
			Args:  cobra.NoArgs,
			Run: func(cmd *cobra.Command, args []string) {
				path := opts.ConfigFile
				if path == "" {
					path = adapter.ConfigFile()
				}
				fmt.Fprintln(cmd.OutOrStdout(), path)
			},
		},
	)

	return cmd
}

// runSetupFlow asks for the API key until the catalog accepts it, then saves
// the config.
func runSetupFlow(cmd *cobra.Command, cfg *adapter.Config, path string) error {
	out := cmd.OutOrStdout()
	in := cmd.InOrStdin()
	reader := bufio.NewReader(in)

	fmt.Fprintln(out)
	fmt.Fprintln(out, "Welcome to Reel!")
	fmt.Fprintln(out)
	fmt.Fprintf(out, "Catalog: %s\n", cfg.Catalog.BaseURL)

	var apiKey string
	for {
		fmt.Fprint(out, "Enter your API key: ")
		key, err := readSecret(in, reader)
		fmt.Fprintln(out)
		if err != nil {
			return fmt.Errorf("failed to read input: %w", err)
		}
		apiKey = strings.TrimSpace(key)

		if apiKey == "" {
			fmt.Fprintln(out, "API key cannot be empty. Please try again.")
			continue
		}

		if err := verifyWithSpinner(cmd.Context(), out, cfg, apiKey); err != nil {
			fmt.Fprintf(out, "%s\n", styles.ErrorStyle.Render("✗ Could not verify API key: "+err.Error()))
			if errors.Is(err, context.Canceled) {
				return err
			}
			fmt.Fprintln(out, "Please check the key and try again.")
			fmt.Fprintln(out)
			continue
		}
		break
	}

	cfg.Catalog.APIKey = apiKey
	if path == "" {
		path = adapter.ConfigFile()
	}
	if err := adapter.SaveConfigTo(cfg, path); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, styles.SuccessStyle.Render("✓ Configuration saved to "+path))
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Run reel again to start browsing.")
	return nil
}

// readSecret reads a line without echo when in is a terminal.
func readSecret(in io.Reader, reader *bufio.Reader) (string, error) {
	if isTerminal(in) {
		b, err := term.ReadPassword(int(in.(*os.File).Fd()))
		return string(b), err
	}
	line, err := reader.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return line, nil
}

// verifyWithSpinner fetches the first popular page with apiKey, animating a
// spinner meanwhile.
func verifyWithSpinner(ctx context.Context, out io.Writer, cfg *adapter.Config, apiKey string) error {
	ctx, cancel := context.WithTimeout(ctx, verifyTimeout)
	defer cancel()

	client := catalog.NewClient(catalog.Config{
		BaseURL:      cfg.Catalog.BaseURL,
		APIKey:       apiKey,
		ImageBaseURL: cfg.Catalog.ImageBaseURL,
		Timeout:      cfg.Catalog.Timeout,
	}, adapter.NullLogger())

	resultCh := make(chan error, 1)
	go func() {
		_, err := client.FetchPage(ctx, 1)
		resultCh <- err
	}()

	frame := 0
	fmt.Fprintf(out, "\r%s Verifying API key...", styles.SpinnerFrames[frame])

	ticker := time.NewTicker(80 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case err := <-resultCh:
			fmt.Fprint(out, clearSpinnerLine)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, styles.SuccessStyle.Render("✓ API key accepted"))
			return nil

		case <-ticker.C:
			frame++
			fmt.Fprintf(out, "\r%s Verifying API key...", styles.SpinnerFrames[frame%len(styles.SpinnerFrames)])

		case <-ctx.Done():
			fmt.Fprint(out, clearSpinnerLine)
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return errors.New("verification timed out")
			}
			return ctx.Err()
		}
	}
}
