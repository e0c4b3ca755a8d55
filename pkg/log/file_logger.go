package log

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/fxamacker/cbor/v2"
	"gopkg.in/natefinch/lumberjack.v2"
)

// FileLogger appends tagged event records to a file. Endpoints must never
// stall on their log, so write failures are counted instead of returned;
// Err reports the first one. It is safe for concurrent use.
type FileLogger struct {
	mu     sync.Mutex
	w      io.WriteCloser
	enc    *cbor.Encoder
	closed bool

	failed uint64
	err    error
}

// NewFileLogger opens path for appending, creating it and its directory as
// needed.
func NewFileLogger(path string) (*FileLogger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	return newFileLogger(f), nil
}

// RotateConfig configures a size-rotated protocol log.
type RotateConfig struct {
	Filename   string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// NewRotatingFileLogger rolls the log over once it reaches MaxSizeMB
// (16 when unset). Records never straddle two files.
func NewRotatingFileLogger(cfg RotateConfig) *FileLogger {
	if cfg.MaxSizeMB <= 0 {
		cfg.MaxSizeMB = 16
	}
	return newFileLogger(&lumberjack.Logger{
		Filename:   cfg.Filename,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   cfg.Compress,
	})
}

func newFileLogger(w io.WriteCloser) *FileLogger {
	return &FileLogger{w: w, enc: newRecordEncoder(w)}
}

// Log appends ev. Events logged after Close are dropped silently.
func (l *FileLogger) Log(ev Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	if err := l.enc.Encode(ev); err != nil {
		l.failed++
		if l.err == nil {
			l.err = err
		}
	}
}

// Failed returns the number of events that could not be written.
func (l *FileLogger) Failed() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.failed
}

// Err returns the first write error, if any.
func (l *FileLogger) Err() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.err
}

// Close closes the file. Further calls return nil.
func (l *FileLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	return l.w.Close()
}

var _ Logger = (*FileLogger)(nil)
