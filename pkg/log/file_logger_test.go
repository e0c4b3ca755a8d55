package log

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rf24node/rf24node-go/pkg/frame"
)

func readAll(t *testing.T, path string) []Event {
	t.Helper()
	r, err := NewReader(path)
	require.NoError(t, err)
	defer r.Close()
	events, err := r.All()
	require.NoError(t, err)
	return events
}

func TestFileLoggerCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "node", "test.rlog")

	logger, err := NewFileLogger(path)
	require.NoError(t, err)
	defer logger.Close()

	assert.FileExists(t, path)
}

func TestFileLoggerRecord(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.rlog")
	logger, err := NewFileLogger(path)
	require.NoError(t, err)

	logger.Log(Event{
		Timestamp:    time.Now(),
		ConnectionID: "conn-123",
		Direction:    DirectionIn,
		Layer:        LayerLink,
		Category:     CategoryData,
		Frame: &FrameEvent{
			Header: FrameHeader{Number: 1, Type: frame.TypeUserData},
			Size:   9,
			Data:   []byte{1, 0, 0, 0, 0, 0, 1, 0, 7},
		},
	})
	require.NoError(t, logger.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	// 0xDA: tag with a four byte number.
	assert.Equal(t, []byte{0xDA, 'R', 'F', '2', '4'}, data[:5])

	ev, err := UnmarshalEvent(data)
	require.NoError(t, err)
	assert.Equal(t, "conn-123", ev.ConnectionID)
	require.NotNil(t, ev.Frame)
	assert.Equal(t, 9, ev.Frame.Size)
	assert.NoError(t, logger.Err())
}

func TestFileLoggerAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.rlog")
	for _, id := range []string{"first", "second"} {
		logger, err := NewFileLogger(path)
		require.NoError(t, err)
		logger.Log(Event{Timestamp: time.Now(), ConnectionID: id})
		require.NoError(t, logger.Close())
	}

	events := readAll(t, path)
	require.Len(t, events, 2)
	assert.Equal(t, "second", events[1].ConnectionID)
}

type failingWriter struct{ closed bool }

func (w *failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }
func (w *failingWriter) Close() error              { w.closed = true; return nil }

func TestFileLoggerCountsFailures(t *testing.T) {
	w := &failingWriter{}
	logger := newFileLogger(w)

	logger.Log(Event{ConnectionID: "a"})
	logger.Log(Event{ConnectionID: "b"})
	assert.Equal(t, uint64(2), logger.Failed())
	assert.EqualError(t, logger.Err(), "disk full")

	require.NoError(t, logger.Close())
	assert.True(t, w.closed)
	require.NoError(t, logger.Close(), "second close")

	logger.Log(Event{})
	assert.Equal(t, uint64(2), logger.Failed(), "events after close are dropped, not failed")
}

func TestFileLoggerConcurrent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.rlog")
	logger, err := NewFileLogger(path)
	require.NoError(t, err)

	const writers, each = 8, 25
	var wg sync.WaitGroup
	for range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range each {
				logger.Log(Event{Timestamp: time.Now(), Category: CategoryState})
			}
		}()
	}
	wg.Wait()
	require.NoError(t, logger.Close())

	assert.Len(t, readAll(t, path), writers*each)
}

func TestRotatingFileLogger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "node.rlog")
	logger := NewRotatingFileLogger(RotateConfig{Filename: path, MaxBackups: 2})

	logger.Log(Event{Timestamp: time.Now(), ConnectionID: "rot"})
	require.NoError(t, logger.Close())

	events := readAll(t, path)
	require.Len(t, events, 1)
	assert.Equal(t, "rot", events[0].ConnectionID)
}
