package physical

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"go.bug.st/serial"

	"github.com/rf24node/rf24node-go/pkg/address"
	"github.com/rf24node/rf24node-go/pkg/frame"
)

// Bridge opcodes.
const (
	opBind     = 'B'
	opTransmit = 'T'
	opReceive  = 'R'
	opTxError  = 'E'
)

const (
	defaultSerialBaudRate    = 115200
	defaultSerialReadTimeout = 300 * time.Millisecond
	serialRxBuffer           = 64
)

// SerialConfig selects the bridge port.
type SerialConfig struct {
	Port        string
	BaudRate    int
	ReadTimeout time.Duration
}

// SerialLink talks to a radio bridge over a serial port. A reader goroutine
// decodes bridge messages into a buffer that Recv drains without blocking.
type SerialLink struct {
	port io.ReadWriteCloser
	bw   *BridgeWriter

	rx   chan Packet
	done chan struct{}

	mu      sync.Mutex
	addr    address.Logical
	closed  bool
	readErr error

	dropped    atomic.Uint64
	txFailures atomic.Uint64
}

var _ Link = (*SerialLink)(nil)

// OpenSerial opens the bridge on cfg.Port.
func OpenSerial(cfg SerialConfig) (*SerialLink, error) {
	if cfg.Port == "" {
		return nil, errors.New("serial port is empty")
	}
	if cfg.BaudRate == 0 {
		cfg.BaudRate = defaultSerialBaudRate
	}
	if cfg.BaudRate < 0 {
		return nil, fmt.Errorf("invalid serial baud rate: %d", cfg.BaudRate)
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = defaultSerialReadTimeout
	}

	port, err := serial.Open(cfg.Port, &serial.Mode{BaudRate: cfg.BaudRate})
	if err != nil {
		return nil, fmt.Errorf("open serial port %q: %w", cfg.Port, err)
	}
	if err := port.SetReadTimeout(cfg.ReadTimeout); err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("set serial read timeout: %w", err)
	}
	return NewSerialLink(port), nil
}

// NewSerialLink runs the bridge protocol over an already open port.
func NewSerialLink(port io.ReadWriteCloser) *SerialLink {
	l := &SerialLink{
		port: port,
		bw:   NewBridgeWriter(port),
		rx:   make(chan Packet, serialRxBuffer),
		done: make(chan struct{}),
		addr: address.Invalid,
	}
	go l.readLoop()
	return l
}

// Bind implements Link.
func (l *SerialLink) Bind(addr address.Logical) error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return ErrClosed
	}
	l.mu.Unlock()

	msg := []byte{opBind, 0, 0}
	binary.LittleEndian.PutUint16(msg[1:], uint16(addr))
	if err := l.bw.WriteMessage(msg); err != nil {
		return err
	}

	l.mu.Lock()
	l.addr = addr
	l.mu.Unlock()
	return nil
}

// Send implements Link. Delivery failures are reported asynchronously by the
// bridge and only counted.
func (l *SerialLink) Send(next address.Logical, packet []byte) error {
	if len(packet) < frame.HeaderSize || len(packet) > frame.PacketSize {
		return fmt.Errorf("%w: %d bytes", ErrPacketSize, len(packet))
	}
	l.mu.Lock()
	closed, bound := l.closed, l.addr != address.Invalid
	l.mu.Unlock()
	if closed {
		return ErrClosed
	}
	if !bound {
		return ErrNotBound
	}

	msg := make([]byte, 3+len(packet))
	msg[0] = opTransmit
	binary.LittleEndian.PutUint16(msg[1:3], uint16(next))
	copy(msg[3:], packet)
	return l.bw.WriteMessage(msg)
}

// Recv implements Link.
func (l *SerialLink) Recv() (Packet, bool, error) {
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
	if l.readErr != nil {
		return Packet{}, false, l.readErr
	}
	return Packet{}, false, nil
}

// Close implements Link. It waits for the reader goroutine to exit.
func (l *SerialLink) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	l.mu.Unlock()

	err := l.port.Close()
	<-l.done
	return err
}

// Dropped returns the number of received packets discarded because Recv was
// not called often enough.
func (l *SerialLink) Dropped() uint64 { return l.dropped.Load() }

// TxFailures returns the number of transmissions the bridge reported as
// unacknowledged.
func (l *SerialLink) TxFailures() uint64 { return l.txFailures.Load() }

func (l *SerialLink) readLoop() {
	defer close(l.done)

	br := NewBridgeReader(&timeoutReader{r: l.port, closed: l.isClosed})
	for {
		msg, err := br.ReadMessage()
		if err != nil {
			l.mu.Lock()
			if !l.closed {
				l.readErr = fmt.Errorf("serial bridge: %w", err)
			}
			l.mu.Unlock()
			return
		}

		switch msg[0] {
		case opReceive:
			if len(msg) < 3+frame.HeaderSize {
				continue
			}
			p := Packet{
				From: address.Logical(binary.LittleEndian.Uint16(msg[1:3])),
				Data: msg[3:],
			}
			select {
			case l.rx <- p:
			default:
				l.dropped.Add(1)
			}
		case opTxError:
			l.txFailures.Add(1)
		}
	}
}

func (l *SerialLink) isClosed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closed
}

// timeoutReader turns the zero-byte reads of a port with a read timeout into
// retries, and into io.EOF once the link is closed.
type timeoutReader struct {
	r      io.Reader
	closed func() bool
}

func (t *timeoutReader) Read(p []byte) (int, error) {
	for {
		n, err := t.r.Read(p)
		if n > 0 || err != nil {
			return n, err
		}
		if t.closed() {
			return 0, io.EOF
		}
	}
}
