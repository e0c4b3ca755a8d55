package physical

import (
	"fmt"
	"sync"

	"github.com/rf24node/rf24node-go/pkg/address"
	"github.com/rf24node/rf24node-go/pkg/frame"
)

// DefaultInboxSize is the number of packets a MemLink buffers.
const DefaultInboxSize = 64

// FilterFunc decides whether a packet from one radio reaches another.
type FilterFunc func(from, to address.Logical) bool

// Medium delivers packets between bound MemLinks.
type Medium struct {
	mu        sync.RWMutex
	links     map[address.Logical]*MemLink
	filter    FilterFunc
	inboxSize int
}

// NewMedium creates an empty medium.
func NewMedium() *Medium {
	return &Medium{
		links:     make(map[address.Logical]*MemLink),
		inboxSize: DefaultInboxSize,
	}
}

// SetInboxSize changes the buffer size of links created afterwards.
func (m *Medium) SetInboxSize(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n > 0 {
		m.inboxSize = n
	}
}

// SetFilter installs f to drop packets between specific radios. A nil
// filter delivers everything.
func (m *Medium) SetFilter(f FilterFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.filter = f
}

// NewLink creates an unbound radio on the medium.
func (m *Medium) NewLink() *MemLink {
	m.mu.RLock()
	size := m.inboxSize
	m.mu.RUnlock()
	return &MemLink{
		medium: m,
		addr:   address.Invalid,
		inbox:  make(chan Packet, size),
	}
}

// Bound reports whether a radio listens on addr.
func (m *Medium) Bound(addr address.Logical) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.links[addr]
	return ok
}

func (m *Medium) bind(l *MemLink, addr address.Logical) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if other, ok := m.links[addr]; ok && other != l {
		return fmt.Errorf("%w: %v", ErrAddressInUse, addr)
	}
	if l.addr != address.Invalid {
		delete(m.links, l.addr)
	}
	m.links[addr] = l
	l.addr = addr
	return nil
}

func (m *Medium) unbind(l *MemLink) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.links[l.addr] == l {
		delete(m.links, l.addr)
	}
}

func (m *Medium) deliver(from *MemLink, next address.Logical, packet []byte) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if next == address.Multicast {
		for addr, dst := range m.links {
			if dst == from || (m.filter != nil && !m.filter(from.addr, addr)) {
				continue
			}
			// Multicast is unacknowledged: full inboxes just miss it.
			dst.push(Packet{From: from.addr, Data: clone(packet)})
		}
		return nil
	}

	dst, ok := m.links[next]
	if !ok || (m.filter != nil && !m.filter(from.addr, next)) {
		return fmt.Errorf("%w: %v", ErrUnreachable, next)
	}
	if !dst.push(Packet{From: from.addr, Data: clone(packet)}) {
		return fmt.Errorf("%w: %v", ErrBusy, next)
	}
	return nil
}

func clone(b []byte) []byte {
	return append([]byte(nil), b...)
}

// MemLink is a radio attached to a Medium.
type MemLink struct {
	medium *Medium
	addr   address.Logical
	inbox  chan Packet

	mu     sync.Mutex
	closed bool
}

var _ Link = (*MemLink)(nil)

// Addr returns the bound address, or address.Invalid.
func (l *MemLink) Addr() address.Logical {
	l.medium.mu.RLock()
	defer l.medium.mu.RUnlock()
	return l.addr
}

// Bind implements Link.
func (l *MemLink) Bind(addr address.Logical) error {
	if l.isClosed() {
		return ErrClosed
	}
	return l.medium.bind(l, addr)
}

// Send implements Link.
func (l *MemLink) Send(next address.Logical, packet []byte) error {
	if l.isClosed() {
		return ErrClosed
	}
	if len(packet) < frame.HeaderSize || len(packet) > frame.PacketSize {
		return fmt.Errorf("%w: %d bytes", ErrPacketSize, len(packet))
	}
	if l.Addr() == address.Invalid {
		return ErrNotBound
	}
	return l.medium.deliver(l, next, packet)
}

// Recv implements Link.
func (l *MemLink) Recv() (Packet, bool, error) {
	if l.isClosed() {
		return Packet{}, false, ErrClosed
	}
	select {
	case p := <-l.inbox:
		return p, true, nil
	default:
		return Packet{}, false, nil
	}
}

// Close implements Link.
func (l *MemLink) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	l.mu.Unlock()

	l.medium.unbind(l)
	return nil
}

func (l *MemLink) push(p Packet) bool {
	select {
	case l.inbox <- p:
		return true
	default:
		return false
	}
}

func (l *MemLink) isClosed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closed
}
