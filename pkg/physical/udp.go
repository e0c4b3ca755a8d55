package physical

import (
	"encoding/binary"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	"github.com/rf24node/rf24node-go/pkg/address"
	"github.com/rf24node/rf24node-go/pkg/frame"
)

// udpHeaderSize is the next hop and sender prefixed to every datagram.
const udpHeaderSize = 4

// UDPConfig describes a UDPLink.
type UDPConfig struct {
	// Listen is the local UDP address, e.g. "127.0.0.1:9001".
	Listen string

	// Peers maps neighbour addresses to their UDP endpoints. Multicast
	// packets and packets for temporary addresses go to every peer.
	Peers map[address.Logical]string

	// InboxSize bounds the packets buffered between Recv calls.
	InboxSize int
}

// UDPLink emulates radio neighbours over UDP.
type UDPLink struct {
	conn *net.UDPConn
	rx   chan Packet
	done chan struct{}

	mu      sync.Mutex
	peers   map[address.Logical]*net.UDPAddr
	addr    address.Logical
	closed  bool
	readErr error

	dropped atomic.Uint64
}

var _ Link = (*UDPLink)(nil)

// ListenUDP opens a UDP link and starts its reader.
func ListenUDP(cfg UDPConfig) (*UDPLink, error) {
	laddr, err := net.ResolveUDPAddr("udp", cfg.Listen)
	if err != nil {
		return nil, fmt.Errorf("resolve listen address %q: %w", cfg.Listen, err)
	}

	peers := make(map[address.Logical]*net.UDPAddr, len(cfg.Peers))
	for a, endpoint := range cfg.Peers {
		ua, err := resolvePeer(a, endpoint)
		if err != nil {
			return nil, err
		}
		peers[a] = ua
	}

	conn, err := net.ListenUDP("udp", laddr)
	if err != nil {
		return nil, fmt.Errorf("listen %q: %w", cfg.Listen, err)
	}

	size := cfg.InboxSize
	if size <= 0 {
		size = DefaultInboxSize
	}
	l := &UDPLink{
		conn:  conn,
		peers: peers,
		rx:    make(chan Packet, size),
		done:  make(chan struct{}),
		addr:  address.Invalid,
	}
	go l.readLoop()
	return l, nil
}

func resolvePeer(a address.Logical, endpoint string) (*net.UDPAddr, error) {
	if !a.IsValid() {
		return nil, fmt.Errorf("%w: peer %v", address.ErrInvalidAddress, a)
	}
	ua, err := net.ResolveUDPAddr("udp", endpoint)
	if err != nil {
		return nil, fmt.Errorf("resolve peer %v at %q: %w", a, endpoint, err)
	}
	return ua, nil
}

// AddPeer adds or replaces a neighbour.
func (l *UDPLink) AddPeer(a address.Logical, endpoint string) error {
	ua, err := resolvePeer(a, endpoint)
	if err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.peers[a] = ua
	return nil
}

// LocalAddr returns the socket address the link listens on.
func (l *UDPLink) LocalAddr() net.Addr { return l.conn.LocalAddr() }

// Bind implements Link.
func (l *UDPLink) Bind(addr address.Logical) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return ErrClosed
	}
	l.addr = addr
	return nil
}

// Send implements Link. Datagrams are unacknowledged, so only neighbours
// missing from the peer table are reported unreachable.
func (l *UDPLink) Send(next address.Logical, packet []byte) error {
	if len(packet) < frame.HeaderSize || len(packet) > frame.PacketSize {
		return fmt.Errorf("%w: %d bytes", ErrPacketSize, len(packet))
	}
	l.mu.Lock()
	closed, from := l.closed, l.addr
	var targets []*net.UDPAddr
	if ua, ok := l.peers[next]; ok {
		targets = append(targets, ua)
	} else if next == address.Multicast || next.IsUnassigned() {
		// Temporary addresses have no table entry; every peer gets the
		// datagram and only the owner of next keeps it.
		for _, ua := range l.peers {
			targets = append(targets, ua)
		}
	}
	l.mu.Unlock()
	if closed {
		return ErrClosed
	}
	if from == address.Invalid {
		return ErrNotBound
	}
	if next != address.Multicast && len(targets) == 0 {
		return fmt.Errorf("%w: %v", ErrUnreachable, next)
	}

	dgram := make([]byte, udpHeaderSize+len(packet))
	binary.LittleEndian.PutUint16(dgram[0:2], uint16(next))
	binary.LittleEndian.PutUint16(dgram[2:4], uint16(from))
	copy(dgram[udpHeaderSize:], packet)

	for _, ua := range targets {
		if _, err := l.conn.WriteToUDP(dgram, ua); err != nil {
			return fmt.Errorf("udp send to %v: %w", next, err)
		}
	}
	return nil
}

// Recv implements Link.
func (l *UDPLink) Recv() (Packet, bool, error) {
	select {
	case p := <-l.rx:
		return p, true, nil
	default:
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return Packet{}, false, ErrClosed
	}
	return Packet{}, false, l.readErr
}

// Close implements Link.
func (l *UDPLink) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	l.mu.Unlock()

	err := l.conn.Close()
	<-l.done
	return err
}

// Dropped returns the number of datagrams discarded because the inbox was
// full.
func (l *UDPLink) Dropped() uint64 { return l.dropped.Load() }

func (l *UDPLink) readLoop() {
	defer close(l.done)

	buf := make([]byte, udpHeaderSize+frame.PacketSize+1)
	for {
		n, _, err := l.conn.ReadFromUDP(buf)
		if err != nil {
			l.mu.Lock()
			if !l.closed && !errors.Is(err, net.ErrClosed) {
				l.readErr = fmt.Errorf("udp read: %w", err)
			}
			l.mu.Unlock()
			return
		}
		if n < udpHeaderSize+frame.HeaderSize || n > udpHeaderSize+frame.PacketSize {
			continue
		}

		next := address.Logical(binary.LittleEndian.Uint16(buf[0:2]))
		l.mu.Lock()
		own := l.addr
		l.mu.Unlock()
		if own == address.Invalid || (next != own && next != address.Multicast) {
			continue
		}

		p := Packet{
			From: address.Logical(binary.LittleEndian.Uint16(buf[2:4])),
			Data: clone(buf[udpHeaderSize:n]),
		}
		select {
		case l.rx <- p:
		default:
			l.dropped.Add(1)
		}
	}
}
