package endpoint

import (
	"fmt"
	"time"

	"github.com/rf24node/rf24node-go/pkg/address"
	"github.com/rf24node/rf24node-go/pkg/frame"
	"github.com/rf24node/rf24node-go/pkg/log"
	"github.com/rf24node/rf24node-go/pkg/wire"
)

// userPingBit marks ping sequences issued by Ping, keeping them apart from
// keepalive sequences.
const userPingBit uint32 = 1 << 31

// route returns the neighbour a frame for dst is handed to.
func (e *Endpoint) route(dst address.Logical) (address.Logical, error) {
	switch {
	case dst == address.Multicast:
		return address.Multicast, nil
	case dst.IsUnassigned():
		// Negotiating nodes are only reachable by their direct neighbours.
		return dst, nil
	}
	next, ok := address.NextHop(e.addr, dst)
	if !ok {
		return address.Invalid, fmt.Errorf("%w: %v from %v", ErrNoRoute, dst, e.source())
	}
	return next, nil
}

// sendControl encodes msg into a single frame and transmits it right away.
// Control frames bypass the tx queue.
func (e *Endpoint) sendControl(dst address.Logical, msg wire.Message) error {
	payload, err := wire.Encode(msg)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrFail, err)
	}
	next, err := e.route(dst)
	if err != nil {
		return err
	}
	f := frame.Frame{
		Header: frame.Header{
			Number: e.nextSeq(),
			Dst:    dst,
			Src:    e.source(),
			Type:   msg.FrameType(),
		},
		Payload: payload,
	}
	e.logControl(log.DirectionOut, dst, msg)
	return e.sendFrame(next, f, log.DirectionOut)
}

// sendControlBestEffort sends msg and only logs a failure. Losses are
// covered by retries or keepalive timeouts.
func (e *Endpoint) sendControlBestEffort(dst address.Logical, msg wire.Message) {
	if err := e.sendControl(dst, msg); err != nil {
		e.debugLog("control send failed", "type", msg.FrameType(), "dst", dst, "error", err)
	}
}

// sendFrame puts one encoded frame on the link.
func (e *Endpoint) sendFrame(next address.Logical, f frame.Frame, dir log.Direction) error {
	var buf frame.Buffer
	if err := f.Encode(&buf); err != nil {
		return fmt.Errorf("%w: %w", ErrFail, err)
	}
	e.logFrame(dir, next, f.Header, buf.Bytes())
	if err := e.link.Send(next, buf.Bytes()); err != nil {
		return err
	}
	e.stats.TxPackets++
	return nil
}

// queueControl hands a received control message to the next
// ProcessMessageRequests or ProcessDHCPServer pass.
func (e *Endpoint) queueControl(f frame.Frame, from address.Logical) {
	msg, err := wire.Decode(f.Type, f.Payload)
	if err != nil {
		e.stats.RxErrors++
		e.logError(log.LayerNetwork, "decode control", err)
		return
	}
	e.logControl(log.DirectionIn, from, msg)

	in := inbound{hdr: f.Header, from: from, msg: msg}
	if e.server != nil && f.Dst == e.addr {
		switch msg.(type) {
		case *wire.AddressRelay, *wire.AddressRenew:
			e.pushWork(&e.dhcpWork, in)
			return
		}
	}
	e.pushWork(&e.ctrl, in)
}

func (e *Endpoint) pushWork(q *[]inbound, in inbound) {
	if len(*q) >= maxPendingControl {
		e.stats.RxDropped++
		e.debugLog("control backlog full", "type", in.hdr.Type)
		return
	}
	*q = append(*q, in)
}

// handleControl dispatches one message from the control backlog.
func (e *Endpoint) handleControl(in inbound, now time.Time) {
	src := in.hdr.Src
	switch msg := in.msg.(type) {
	case *wire.ConnectRequest:
		e.handleConnectRequest(src, msg, now)
	case *wire.ConnectAck:
		e.handleConnectAck(src, msg, now)
	case *wire.ConnectNak:
		e.handleConnectNak(src, msg)
	case *wire.Disconnect:
		e.handleDisconnect(src, msg)
	case *wire.Ping:
		e.handlePing(src, msg, now)
	case *wire.Pong:
		e.handlePong(msg, now)
	case *wire.AddressRequest:
		e.handleAddressRequest(in.hdr, msg)
	case *wire.AddressOffer:
		e.handleAddressOffer(in.hdr, msg, now)
	case *wire.AddressNak:
		e.handleAddressNak(in.hdr, msg)
	case *wire.AddressRenewAck:
		e.handleRenewAck(src, msg, now)
	default:
		e.debugLog("ignoring control message", "type", in.hdr.Type, "src", src)
	}
}

func (e *Endpoint) handlePing(src address.Logical, msg *wire.Ping, now time.Time) {
	if e.state != StateConnected {
		return
	}
	if address.IsDirectDescendant(e.addr, src) && msg.Sequence&userPingBit == 0 {
		if _, ok := e.children[src]; !ok {
			e.sendControlBestEffort(src, &wire.Disconnect{Reason: wire.ReasonNotParent})
			return
		}
		e.children[src] = now
	}
	e.sendControlBestEffort(src, &wire.Pong{Sequence: msg.Sequence})
}

func (e *Endpoint) handlePong(msg *wire.Pong, now time.Time) {
	if msg.Sequence&userPingBit != 0 {
		if msg.Sequence == e.userPing.seq && !e.userPing.sent.IsZero() {
			e.stats.PongsReceived++
			e.stats.LastRTT = now.Sub(e.userPing.sent)
			e.userPing.sent = time.Time{}
		}
		return
	}
	if rtt, ok := e.keepAlive.PongReceived(msg.Sequence, now); ok {
		e.stats.LastRTT = rtt
	}
}
