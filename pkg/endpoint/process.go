package endpoint

import (
	"errors"
	"fmt"
	"time"

	"github.com/rf24node/rf24node-go/pkg/address"
	"github.com/rf24node/rf24node-go/pkg/frame"
	"github.com/rf24node/rf24node-go/pkg/log"
	"github.com/rf24node/rf24node-go/pkg/physical"
)

// ProcessMessageBuffers moves packets between the link and the queues. It
// reads up to the rx budget from the link, routing transit packets and
// reassembling local ones, then transmits up to the tx budget of queued
// packets while connected. It only fails on link errors.
func (e *Endpoint) ProcessMessageBuffers() error {
	e.mustOpen()
	if err := e.requireConfigured(); err != nil {
		return err
	}
	now := e.opts.now()

	for range e.opts.rxBudget {
		pkt, ok, err := e.link.Recv()
		if err != nil {
			e.logError(log.LayerLink, "receive", err)
			return fmt.Errorf("%w: receive: %w", ErrLink, err)
		}
		if !ok {
			break
		}
		e.receive(pkt, now)
	}
	if n := e.reasm.Expire(now); n > 0 {
		e.stats.RxErrors += uint64(n)
		e.debugLog("incomplete messages expired", "count", n)
	}

	if e.state != StateConnected {
		return nil
	}
	for range e.opts.txBudget {
		f, err := e.tx.Pop()
		if err != nil {
			break
		}
		if err := e.transmitQueued(f, now); err != nil {
			return err
		}
	}
	return nil
}

// ProcessDHCPServer answers queued address relays and renewals and reclaims
// expired leases. It does nothing on endpoints without a lease server.
func (e *Endpoint) ProcessDHCPServer() error {
	e.mustOpen()
	if err := e.requireConfigured(); err != nil {
		return err
	}
	if e.server == nil {
		e.dhcpWork = nil
		return nil
	}
	if n := e.serveLeases(e.opts.now()); n > 0 {
		e.debugLog("lease requests served", "count", n)
	}
	return nil
}

// ProcessMessageRequests handles received network-control messages and runs
// the protocol timers: connect retries, keepalive and lease expiry.
func (e *Endpoint) ProcessMessageRequests() error {
	e.mustOpen()
	if err := e.requireConfigured(); err != nil {
		return err
	}
	now := e.opts.now()

	work := e.ctrl
	e.ctrl = nil
	for _, in := range work {
		e.handleControl(in, now)
	}
	e.connectTimers(now)
	e.addressTimers(now)
	return nil
}

// ProcessEventHandlers invokes the registered handlers for every event
// raised since the previous call.
func (e *Endpoint) ProcessEventHandlers() error {
	e.mustOpen()
	e.events.dispatch()
	return nil
}

func (e *Endpoint) requireConfigured() error {
	if e.state == StateUnconfigured {
		return fmt.Errorf("%w: not configured", ErrInvalidState)
	}
	return nil
}

// isLocal reports whether a frame for dst is consumed by this endpoint.
func (e *Endpoint) isLocal(dst address.Logical) bool {
	if dst == address.Multicast {
		return true
	}
	if e.addr.IsValid() && dst == e.addr {
		return true
	}
	return e.temp.IsUnassigned() && dst == e.temp
}

func (e *Endpoint) receive(pkt physical.Packet, now time.Time) {
	e.stats.RxPackets++
	f, err := frame.Decode(pkt.Data)
	if err != nil {
		e.stats.RxErrors++
		e.logError(log.LayerLink, "decode packet", err)
		return
	}
	e.logFrame(log.DirectionIn, pkt.From, f.Header, pkt.Data)

	if f.Dst == address.Multicast && f.Src == e.source() {
		return
	}
	switch {
	case !e.isLocal(f.Dst):
		e.forward(f)
	case f.Type.IsControl():
		e.queueControl(f, pkt.From)
	default:
		e.deliverLocal(f, now)
	}
}

// deliverLocal reassembles f and queues complete user messages for Read.
func (e *Endpoint) deliverLocal(f frame.Frame, now time.Time) {
	msg, complete, err := e.reasm.Add(f, now)
	if err != nil {
		e.stats.RxErrors++
		e.debugLog("fragment dropped", "header", f.Header, "error", err)
		return
	}
	if !complete {
		return
	}
	if msg.Type != frame.TypeUserData {
		e.stats.RxErrors++
		e.debugLog("unknown message type", "type", msg.Type, "src", msg.Src)
		return
	}
	if err := e.rx.Push(msg); err != nil {
		e.stats.RxDropped++
		e.debugLog("rx queue full", "src", msg.Src, "len", len(msg.Payload))
		return
	}
	e.stats.MessagesReceived++
	e.events.emit(Event{Kind: EventMsgRx, Peer: msg.Src, Length: len(msg.Payload)})
}

// forward relays a transit frame one hop closer to its destination.
func (e *Endpoint) forward(f frame.Frame) {
	if e.state != StateConnected || f.Dst.IsUnassigned() {
		e.stats.RxDropped++
		return
	}
	next, err := e.route(f.Dst)
	if err != nil {
		e.stats.RxDropped++
		e.debugLog("no route for transit frame", "header", f.Header)
		return
	}
	if err := e.sendFrame(next, f, log.DirectionForward); err != nil {
		e.stats.TxDropped++
		e.debugLog("forward failed", "header", f.Header, "next", next, "error", err)
		return
	}
	e.stats.Forwarded++
}

// transmitQueued sends one packet from the tx queue. Only errors that leave
// the link unusable are returned; single lost packets are counted.
func (e *Endpoint) transmitQueued(f frame.Frame, now time.Time) error {
	var err error
	if f.Dst == e.addr {
		e.deliverLocal(f, now)
	} else {
		var next address.Logical
		next, err = e.route(f.Dst)
		if err == nil {
			err = e.sendFrame(next, f, log.DirectionOut)
		}
	}

	if err != nil {
		e.stats.TxDropped++
		e.txFailed = true
		if !physical.IsTransient(err) && !errors.Is(err, ErrNoRoute) {
			e.logError(log.LayerLink, "transmit", err)
			e.completeTx(f)
			return fmt.Errorf("%w: transmit: %w", ErrLink, err)
		}
	}
	e.completeTx(f)
	return nil
}

// completeTx raises MSG_TX once the last packet of a message was handed to
// the link.
func (e *Endpoint) completeTx(f frame.Frame) {
	if f.Type != frame.TypeUserData && f.Type != frame.TypeFragmentLast {
		return
	}
	if len(e.txMsgLens) == 0 {
		return
	}
	n := e.txMsgLens[0]
	e.txMsgLens = e.txMsgLens[1:]
	failed := e.txFailed
	e.txFailed = false
	if failed {
		return
	}
	e.stats.MessagesSent++
	e.events.emit(Event{Kind: EventMsgTx, Peer: f.Dst, Length: n})
}
