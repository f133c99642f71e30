package adapter

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLogLevel("debug"))
	assert.Equal(t, slog.LevelInfo, parseLogLevel("INFO"))
	assert.Equal(t, slog.LevelWarn, parseLogLevel("warning"))
	assert.Equal(t, slog.LevelError, parseLogLevel("ERROR"))
	assert.Equal(t, slog.LevelInfo, parseLogLevel(""))
}

func TestSetupLogger_WritesJSONAtLevel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "reel.log")

	logger, closer, err := SetupLogger(&LoggingConfig{File: path, Level: "WARN"})
	require.NoError(t, err)

	logger.Info("hidden")
	logger.Warn("failed to refresh popular cache", "attempt", 2)
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "hidden")
	assert.Contains(t, string(data), `"msg":"failed to refresh popular cache"`)
	assert.Contains(t, string(data), `"attempt":2`)
}
