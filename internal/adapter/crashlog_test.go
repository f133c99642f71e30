package adapter

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmcdole/reel/internal/metrics"
)

// gatedWriter blocks every write until the gate is opened.
type gatedWriter struct {
	gate chan struct{}
	mu   sync.Mutex
	buf  bytes.Buffer
}

func (w *gatedWriter) Write(p []byte) (int, error) {
	<-w.gate
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buf.Write(p)
}

func (w *gatedWriter) lines() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return strings.Split(strings.TrimSpace(w.buf.String()), "\n")
}

func TestCrashLog_WritesRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "crash.log")
	sink, err := OpenCrashLog(&CrashLogConfig{File: path, Buffer: 8})
	require.NoError(t, err)

	sink.Log("refresh started")
	sink.LogError(errors.New("details: catalog unavailable"))
	sink.LogError(nil)
	require.NoError(t, sink.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], `"msg":"refresh started"`)
	assert.Contains(t, lines[1], `"level":"ERROR"`)
	assert.Contains(t, lines[1], "details: catalog unavailable")
	assert.Zero(t, sink.Dropped())
}

func TestCrashLog_DropsWhenFull(t *testing.T) {
	before := testutil.ToFloat64(metrics.CrashLogDropped)

	w := &gatedWriter{gate: make(chan struct{})}
	sink := NewCrashLog(w, 1)

	// At most one record is being written and one is queued
	for i := 0; i < 10; i++ {
		sink.Log("record")
	}
	dropped := sink.Dropped()
	assert.GreaterOrEqual(t, dropped, uint64(8))
	assert.Equal(t, float64(dropped), testutil.ToFloat64(metrics.CrashLogDropped)-before)

	close(w.gate)
	require.NoError(t, sink.Close())
	assert.Len(t, w.lines(), int(10-dropped))
}

func TestCrashLog_AfterClose(t *testing.T) {
	var buf bytes.Buffer
	sink := NewCrashLog(&buf, 4)
	require.NoError(t, sink.Close())
	require.NoError(t, sink.Close())

	sink.Log("late")
	assert.Equal(t, uint64(1), sink.Dropped())
	assert.Empty(t, buf.String())
}
