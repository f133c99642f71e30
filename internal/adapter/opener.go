package adapter

import (
	"fmt"
	"log/slog"
	"os/exec"
	"runtime"
)

// Opener opens movie pages and artwork in a browser
type Opener struct {
	command string   // configured browser command, empty for system default
	args    []string // additional arguments placed before the URL
	logger  *slog.Logger

	start func(cmd *exec.Cmd) error
}

// NewOpener creates an Opener. An empty command uses the system default handler.
func NewOpener(cfg *BrowserConfig, logger *slog.Logger) *Opener {
	if logger == nil {
		logger = slog.Default()
	}
	return &Opener{
		command: cfg.Command,
		args:    cfg.Args,
		logger:  logger,
		start:   func(cmd *exec.Cmd) error { return cmd.Start() },
	}
}

// Open launches url without waiting for the browser to exit.
func (o *Opener) Open(url string) error {
	cmd := o.buildCommand(url)
	o.logger.Info("opening url", "command", cmd.Path, "url", url)
	if err := o.start(cmd); err != nil {
		return fmt.Errorf("failed to open %s: %w", url, err)
	}
	return nil
}

func (o *Opener) buildCommand(url string) *exec.Cmd {
	if o.command != "" {
		args := append(append([]string{}, o.args...), url)
		return exec.Command(o.command, args...)
	}

	switch runtime.GOOS {
	case "darwin":
		return exec.Command("open", url)
	case "windows":
		return exec.Command("cmd", "/c", "start", "", url)
	default:
		return exec.Command("xdg-open", url)
	}
}
