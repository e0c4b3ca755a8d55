package endpoint

import (
	"fmt"
	"time"

	"github.com/rf24node/rf24node-go/pkg/address"
	"github.com/rf24node/rf24node-go/pkg/frame"
	"github.com/rf24node/rf24node-go/pkg/wire"
)

// Write queues data for dst. Messages larger than one packet are split into
// fragments, all of which must fit the tx queue. Transmission happens in
// ProcessMessageBuffers. data is copied.
func (e *Endpoint) Write(dst address.Logical, data []byte) error {
	e.mustOpen()
	if e.state != StateConnected {
		return ErrNotConnected
	}
	if len(data) == 0 || len(data) > frame.MaxMessageSize {
		return fmt.Errorf("%w: %d bytes", ErrInvalidPayload, len(data))
	}
	if !dst.IsValid() && dst != address.Multicast {
		return fmt.Errorf("%w: %v", ErrNoRoute, dst)
	}

	h := frame.Header{
		Number: e.nextSeq(),
		Dst:    dst,
		Src:    e.addr,
		Type:   frame.TypeUserData,
	}
	frames, err := frame.Fragment(h, append([]byte(nil), data...))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}
	if err := e.tx.PushAll(frames); err != nil {
		return fmt.Errorf("%w: %d packets, %d free", ErrTxQueueFull, len(frames), e.tx.Free())
	}
	e.txMsgLens = append(e.txMsgLens, len(data))
	return nil
}

// Read copies the next received message into buf and returns its length.
func (e *Endpoint) Read(buf []byte) (int, error) {
	n, _, err := e.ReadFrom(buf)
	return n, err
}

// ReadFrom is Read that also returns the originator of the message. A buffer
// too small for the message fails and leaves the message queued.
func (e *Endpoint) ReadFrom(buf []byte) (int, address.Logical, error) {
	e.mustOpen()
	if e.rx == nil {
		return 0, address.Invalid, ErrRxQueueEmpty
	}
	f, ok := e.rx.Peek()
	if !ok {
		return 0, address.Invalid, ErrRxQueueEmpty
	}
	if len(buf) < len(f.Payload) {
		return 0, address.Invalid, fmt.Errorf("%w: need %d, have %d", ErrBufferTooSmall, len(f.Payload), len(buf))
	}
	_, _ = e.rx.Pop()
	return copy(buf, f.Payload), f.Src, nil
}

// PacketAvailable reports whether Read would return a message.
func (e *Endpoint) PacketAvailable() bool {
	e.mustOpen()
	return e.rx != nil && e.rx.Len() > 0
}

// NextPacketLength returns the length of the next message, or 0.
func (e *Endpoint) NextPacketLength() int {
	e.mustOpen()
	if e.rx == nil {
		return 0
	}
	f, ok := e.rx.Peek()
	if !ok {
		return 0
	}
	return len(f.Payload)
}

// Ping sends an echo request to dst. The answer is counted in
// Stats().PongsReceived and Stats().LastRTT; it never reaches Read.
func (e *Endpoint) Ping(dst address.Logical) error {
	e.mustOpen()
	if e.state != StateConnected {
		return ErrNotConnected
	}
	if !dst.IsValid() || dst == e.addr {
		return fmt.Errorf("%w: %v", ErrNoRoute, dst)
	}
	e.userPing.seq = userPingBit | (e.userPing.seq+1)&^userPingBit
	e.userPing.sent = e.opts.now()
	if err := e.sendControl(dst, &wire.Ping{Sequence: e.userPing.seq}); err != nil {
		e.userPing.sent = time.Time{}
		return fmt.Errorf("%w: ping %v: %w", ErrLink, dst, err)
	}
	e.stats.PingsSent++
	return nil
}
