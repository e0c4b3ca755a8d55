package frame

import (
	"fmt"
	"time"

	"github.com/rf24node/rf24node-go/pkg/address"
)

// FragmentCount returns the number of packets needed to carry n payload bytes.
func FragmentCount(n int) int {
	if n <= MaxPayloadSize {
		return 1
	}
	return (n + MaxPayloadSize - 1) / MaxPayloadSize
}

// Fragment splits payload into packet-sized frames sharing h.Number. Payloads
// that fit a single packet produce one frame carrying h unchanged.
func Fragment(h Header, payload []byte) ([]Frame, error) {
	if len(payload) > MaxMessageSize {
		return nil, fmt.Errorf("%w: %d > %d", ErrMessageTooLarge, len(payload), MaxMessageSize)
	}
	n := FragmentCount(len(payload))
	if n == 1 {
		return []Frame{{Header: h, Payload: payload}}, nil
	}

	frames := make([]Frame, 0, n)
	for i := 0; i < n; i++ {
		start := i * MaxPayloadSize
		end := min(start+MaxPayloadSize, len(payload))

		fh := h
		switch i {
		case 0:
			fh.Type = TypeFragmentFirst
			fh.Reserved = uint8(n)
		case n - 1:
			fh.Type = TypeFragmentLast
			fh.Reserved = uint8(h.Type)
		default:
			fh.Type = TypeFragmentMore
			fh.Reserved = uint8(i)
		}
		frames = append(frames, Frame{Header: fh, Payload: payload[start:end]})
	}
	return frames, nil
}

// DefaultReassemblyTimeout bounds how long a partial message is kept.
const DefaultReassemblyTimeout = 3 * time.Second

// maxPartial bounds the number of messages reassembled at once.
const maxPartial = 8

type reassemblyKey struct {
	src    address.Logical
	number uint16
}

type partial struct {
	header    Header
	total     int
	next      int
	data      []byte
	firstSeen time.Time
}

// Reassembler joins fragmented messages. Fragments of one message must arrive
// in order, which holds for a single tree path. It is not safe for concurrent
// use.
type Reassembler struct {
	timeout time.Duration
	pending map[reassemblyKey]*partial
}

// NewReassembler creates a reassembler. A zero timeout selects
// DefaultReassemblyTimeout.
func NewReassembler(timeout time.Duration) *Reassembler {
	if timeout <= 0 {
		timeout = DefaultReassemblyTimeout
	}
	return &Reassembler{
		timeout: timeout,
		pending: make(map[reassemblyKey]*partial),
	}
}

// Add feeds one frame. Non-fragment frames are returned as complete
// immediately. For fragments, Add returns the joined frame once the last
// fragment arrives; until then complete is false. A fragment that does not
// continue a known message discards that message and returns
// ErrUnexpectedFragment.
func (r *Reassembler) Add(f Frame, now time.Time) (msg Frame, complete bool, err error) {
	if !f.Type.IsFragment() {
		return f, true, nil
	}

	key := reassemblyKey{src: f.Src, number: f.Number}

	if f.Type == TypeFragmentFirst {
		total := int(f.Reserved)
		if total < 2 || total > MaxFragments {
			return Frame{}, false, fmt.Errorf("%w: bad fragment count %d", ErrUnexpectedFragment, total)
		}
		r.makeRoom(now)
		r.pending[key] = &partial{
			header:    f.Header,
			total:     total,
			next:      1,
			data:      append(make([]byte, 0, total*MaxPayloadSize), f.Payload...),
			firstSeen: now,
		}
		return Frame{}, false, nil
	}

	p, ok := r.pending[key]
	if !ok {
		return Frame{}, false, fmt.Errorf("%w: %v without first", ErrUnexpectedFragment, f.Header)
	}

	switch f.Type {
	case TypeFragmentMore:
		if int(f.Reserved) != p.next || p.next >= p.total-1 {
			delete(r.pending, key)
			return Frame{}, false, fmt.Errorf("%w: index %d, want %d", ErrUnexpectedFragment, f.Reserved, p.next)
		}
		p.data = append(p.data, f.Payload...)
		p.next++
		return Frame{}, false, nil

	default: // TypeFragmentLast
		delete(r.pending, key)
		if p.next != p.total-1 {
			return Frame{}, false, fmt.Errorf("%w: last after %d of %d", ErrUnexpectedFragment, p.next, p.total)
		}
		h := p.header
		h.Type = Type(f.Reserved)
		h.Reserved = 0
		return Frame{Header: h, Payload: append(p.data, f.Payload...)}, true, nil
	}
}

// Expire drops partial messages older than the timeout and returns how many
// were dropped.
func (r *Reassembler) Expire(now time.Time) int {
	dropped := 0
	for k, p := range r.pending {
		if now.Sub(p.firstSeen) > r.timeout {
			delete(r.pending, k)
			dropped++
		}
	}
	return dropped
}

// Pending returns the number of incomplete messages.
func (r *Reassembler) Pending() int {
	return len(r.pending)
}

// Reset drops all partial messages.
func (r *Reassembler) Reset() {
	clear(r.pending)
}

func (r *Reassembler) makeRoom(now time.Time) {
	if len(r.pending) < maxPartial {
		return
	}
	r.Expire(now)
	for len(r.pending) >= maxPartial {
		var oldest reassemblyKey
		var oldestAt time.Time
		first := true
		for k, p := range r.pending {
			if first || p.firstSeen.Before(oldestAt) {
				oldest, oldestAt, first = k, p.firstSeen, false
			}
		}
		delete(r.pending, oldest)
	}
}
