package log

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/rf24node/rf24node-go/pkg/address"
	"github.com/rf24node/rf24node-go/pkg/frame"
)

// Filter selects log events. Zero-valued fields match everything.
type Filter struct {
	ConnectionID string
	Direction    *Direction
	Layer        *Layer
	Category     *Category

	// Events in [TimeStart, TimeEnd) match.
	TimeStart *time.Time
	TimeEnd   *time.Time

	// Address matches events logged by this node, sent to or by it, or
	// carrying a frame it originated or was the destination of.
	Address *address.Logical

	// FrameType applies to frame and control events; other events never
	// match a set FrameType.
	FrameType *frame.Type
}

// Match reports whether ev passes every set criterion.
func (f Filter) Match(ev Event) bool {
	switch {
	case f.ConnectionID != "" && ev.ConnectionID != f.ConnectionID,
		f.Direction != nil && ev.Direction != *f.Direction,
		f.Layer != nil && ev.Layer != *f.Layer,
		f.Category != nil && ev.Category != *f.Category,
		f.TimeStart != nil && ev.Timestamp.Before(*f.TimeStart),
		f.TimeEnd != nil && !ev.Timestamp.Before(*f.TimeEnd),
		f.Address != nil && !ev.involves(*f.Address):
		return false
	}
	if f.FrameType == nil {
		return true
	}
	t, ok := ev.frameType()
	return ok && t == *f.FrameType
}

func (e Event) frameType() (frame.Type, bool) {
	switch {
	case e.Frame != nil:
		return e.Frame.Header.Type, true
	case e.Control != nil:
		return e.Control.Type, true
	}
	return 0, false
}

func (e Event) involves(a address.Logical) bool {
	if e.LocalAddr == a || (e.PeerAddr != nil && *e.PeerAddr == a) {
		return true
	}
	return e.Frame != nil && (e.Frame.Header.Src == a || e.Frame.Header.Dst == a)
}

// Reader streams events out of a protocol log. It reads one record at a
// time, so logs larger than memory can be filtered and exported.
type Reader struct {
	src    io.Closer
	dec    *cbor.Decoder
	filter Filter
	n      int
}

// NewReader opens the log at path and yields every event.
func NewReader(path string) (*Reader, error) {
	return NewFilteredReader(path, Filter{})
}

// NewFilteredReader opens the log at path and yields the events filter
// matches.
func NewFilteredReader(path string, filter Filter) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	return NewStreamReader(f, filter), nil
}

// NewStreamReader reads a log from r. Close closes r when it is an
// io.Closer.
func NewStreamReader(r io.Reader, filter Filter) *Reader {
	c, _ := r.(io.Closer)
	return &Reader{src: c, dec: newRecordDecoder(r), filter: filter}
}

// Next returns the next matching event, or io.EOF at the end of the log.
// A truncated final record, as left by a crash mid-write, also reads as
// io.EOF.
func (r *Reader) Next() (Event, error) {
	for {
		var ev Event
		err := r.dec.Decode(&ev)
		switch {
		case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
			return Event{}, io.EOF
		case err != nil:
			return Event{}, fmt.Errorf("record %d: %w", r.n+1, badRecord(err))
		}
		r.n++
		if r.filter.Match(ev) {
			return ev, nil
		}
	}
}

// Records returns how many records have been decoded, matching or not.
func (r *Reader) Records() int { return r.n }

// All drains the reader.
func (r *Reader) All() ([]Event, error) {
	var out []Event
	for {
		ev, err := r.Next()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, ev)
	}
}

// Close releases the underlying file.
func (r *Reader) Close() error {
	if r.src == nil {
		return nil
	}
	return r.src.Close()
}
