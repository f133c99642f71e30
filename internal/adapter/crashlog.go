package adapter

import (
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/mmcdole/reel/internal/metrics"
)

// DefaultCrashLogBuffer is used when a non-positive buffer size is requested.
const DefaultCrashLogBuffer = 256

type crashRecord struct {
	message string
	err     error
}

// CrashLog implements domain.LogSink. Records are queued and written by a single
// goroutine onto their own JSON log. When the queue is full the record is dropped
// and counted; callers never block.
type CrashLog struct {
	logger  *slog.Logger
	closer  io.Closer
	records chan crashRecord
	done    chan struct{}
	dropped atomic.Uint64

	mu     sync.RWMutex // guards closed and sends on records
	closed bool
}

// NewCrashLog starts a crash log writing to w. If w is an io.Closer it is closed
// by Close.
func NewCrashLog(w io.Writer, buffer int) *CrashLog {
	if buffer <= 0 {
		buffer = DefaultCrashLogBuffer
	}
	c := &CrashLog{
		logger:  slog.New(slog.NewJSONHandler(w, nil)),
		records: make(chan crashRecord, buffer),
		done:    make(chan struct{}),
	}
	if closer, ok := w.(io.Closer); ok {
		c.closer = closer
	}
	go c.run()
	return c
}

// OpenCrashLog opens the configured crash log file.
func OpenCrashLog(cfg *CrashLogConfig) (*CrashLog, error) {
	f, err := openLogFile(cfg.File)
	if err != nil {
		return nil, err
	}
	return NewCrashLog(f, cfg.Buffer), nil
}

func (c *CrashLog) run() {
	defer close(c.done)
	for rec := range c.records {
		if rec.err != nil {
			c.logger.Error("operation failed", "error", rec.err.Error())
			continue
		}
		c.logger.Info(rec.message)
	}
}

// Log records a message.
func (c *CrashLog) Log(message string) {
	c.enqueue(crashRecord{message: message})
}

// LogError records a failure. Nil errors are ignored.
func (c *CrashLog) LogError(err error) {
	if err == nil {
		return
	}
	c.enqueue(crashRecord{err: err})
}

func (c *CrashLog) enqueue(rec crashRecord) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		c.drop()
		return
	}
	select {
	case c.records <- rec:
	default:
		c.drop()
	}
}

func (c *CrashLog) drop() {
	c.dropped.Add(1)
	metrics.CrashLogDropped.Inc()
}

// Dropped returns how many records were discarded.
func (c *CrashLog) Dropped() uint64 {
	return c.dropped.Load()
}

// Close flushes queued records and closes the underlying writer.
func (c *CrashLog) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	close(c.records)
	c.mu.Unlock()

	<-c.done
	if c.closer != nil {
		return c.closer.Close()
	}
	return nil
}
