package endpoint

import (
	"fmt"
	"time"

	"github.com/rf24node/rf24node-go/pkg/address"
	"github.com/rf24node/rf24node-go/pkg/connection"
	"github.com/rf24node/rf24node-go/pkg/log"
	"github.com/rf24node/rf24node-go/pkg/physical"
	"github.com/rf24node/rf24node-go/pkg/wire"
)

// Connect joins the network. Root nodes are connected immediately. Other
// nodes send a connect request to their parent and stay Connecting until
// ProcessMessageRequests sees the answer or the retries run out.
func (e *Endpoint) Connect() error {
	e.mustOpen()
	if e.state != StateAddressAssigned && e.state != StateDisconnected {
		return fmt.Errorf("%w: connect in %v", ErrInvalidState, e.state)
	}
	return e.startConnect(e.opts.now())
}

// Disconnect leaves the network, treating queued frames according to the
// disconnect policy.
func (e *Endpoint) Disconnect() error {
	e.mustOpen()
	if e.state != StateConnected && e.state != StateConnecting {
		return fmt.Errorf("%w: disconnect in %v", ErrInvalidState, e.state)
	}
	e.teardown(wire.ReasonRequested, true)
	return nil
}

// Reconnect connects a disconnected endpoint again. A connected endpoint is
// disconnected first.
func (e *Endpoint) Reconnect() error {
	e.mustOpen()
	switch e.state {
	case StateConnected:
		e.teardown(wire.ReasonRequested, true)
	case StateDisconnected:
	default:
		return fmt.Errorf("%w: reconnect in %v", ErrInvalidState, e.state)
	}
	return e.startConnect(e.opts.now())
}

func (e *Endpoint) startConnect(now time.Time) error {
	if e.addr.IsRoot() {
		e.setState(StateConnected, "root")
		e.events.emit(Event{Kind: EventConnect, Peer: address.Invalid})
		return nil
	}
	if !e.parent.IsValid() {
		return fmt.Errorf("%w: no parent for %v", ErrInvalidState, e.addr)
	}

	e.connect.id = newRequestID()
	e.connect.retry = e.newRetry()
	e.connect.retry.Start(now)
	e.stats.ConnectAttempts++
	e.setState(StateConnecting, "connect")

	if err := e.sendControl(e.parent, &wire.ConnectRequest{RequestID: e.connect.id}); err != nil && !physical.IsTransient(err) {
		e.connect.stop()
		e.setState(StateDisconnected, err.Error())
		return fmt.Errorf("%w: %w", ErrLink, err)
	}
	return nil
}

// teardown ends the connection and raises DISCONNECT.
func (e *Endpoint) teardown(reason wire.Reason, notifyParent bool) {
	wasConnected := e.state == StateConnected
	e.setState(StateDisconnecting, reason.String())

	if notifyParent && wasConnected && e.parent.IsValid() {
		e.sendControlBestEffort(e.parent, &wire.Disconnect{Reason: reason})
	}
	for _, child := range e.Children() {
		e.sendControlBestEffort(child, &wire.Disconnect{Reason: wire.ReasonShutdown})
		e.logState(log.StateEntityChild, child.String(), "", "parent disconnecting")
	}
	clear(e.children)

	e.connect.stop()
	e.keepAlive.Stop()
	e.applyDisconnectPolicy()

	e.setState(StateDisconnected, reason.String())
	e.events.emit(Event{Kind: EventDisconnect, Peer: e.parent, Reason: reason.String()})
}

func (e *Endpoint) applyDisconnectPolicy() {
	switch e.opts.disconnectPolicy {
	case DisconnectFlush:
		e.flushTx(e.opts.now())
	case DisconnectDropAll:
		e.rx.Clear()
		e.reasm.Reset()
	}
	if e.tx.Len() > 0 {
		e.debugLog("dropping queued frames", "count", e.tx.Len(), "policy", e.opts.disconnectPolicy)
	}
	e.tx.Clear()
	e.txMsgLens = nil
	e.txFailed = false
}

// flushTx transmits everything queued, ignoring per-packet losses.
func (e *Endpoint) flushTx(now time.Time) {
	for e.tx.Len() > 0 {
		f, err := e.tx.Pop()
		if err != nil {
			return
		}
		if err := e.transmitQueued(f, now); err != nil {
			e.warnLog("flush aborted", "error", err)
			return
		}
	}
}

func (e *Endpoint) handleConnectRequest(src address.Logical, msg *wire.ConnectRequest, now time.Time) {
	switch {
	case !address.IsDirectDescendant(e.addr, src):
		e.sendControlBestEffort(src, &wire.ConnectNak{RequestID: msg.RequestID, Reason: wire.ReasonNotParent})
	case e.state != StateConnected:
		e.sendControlBestEffort(src, &wire.ConnectNak{RequestID: msg.RequestID, Reason: wire.ReasonShutdown})
	default:
		if _, ok := e.children[src]; !ok {
			e.logState(log.StateEntityChild, "", src.String(), "connected")
		}
		e.children[src] = now
		e.sendControlBestEffort(src, &wire.ConnectAck{
			RequestID:        msg.RequestID,
			KeepaliveSeconds: e.keepAlive.Config().IntervalSeconds(),
		})
	}
}

func (e *Endpoint) handleConnectAck(src address.Logical, msg *wire.ConnectAck, now time.Time) {
	if e.state != StateConnecting || src != e.parent || msg.RequestID != e.connect.id {
		return
	}
	e.connect.stop()
	e.keepAlive.Start(now)
	e.setState(StateConnected, "accepted by parent")
	e.events.emit(Event{Kind: EventConnect, Peer: e.parent})
}

func (e *Endpoint) handleConnectNak(src address.Logical, msg *wire.ConnectNak) {
	if e.state != StateConnecting || src != e.parent || msg.RequestID != e.connect.id {
		return
	}
	e.connect.stop()
	e.setState(StateDisconnected, msg.Reason.String())
	e.events.emit(Event{Kind: EventDisconnect, Peer: e.parent, Reason: msg.Reason.String()})
}

func (e *Endpoint) handleDisconnect(src address.Logical, msg *wire.Disconnect) {
	if _, ok := e.children[src]; ok {
		delete(e.children, src)
		e.logState(log.StateEntityChild, src.String(), "", msg.Reason.String())
		return
	}
	if src == e.parent && (e.state == StateConnected || e.state == StateConnecting) {
		e.teardown(msg.Reason, false)
	}
}

// connectTimers retransmits connect requests and runs the parent keepalive.
func (e *Endpoint) connectTimers(now time.Time) {
	if e.state == StateConnecting && e.connect.retry.Due(now) {
		if !e.connect.retry.Advance(now) {
			e.setState(StateDisconnected, "connect timeout")
			e.events.emit(Event{Kind: EventDisconnect, Peer: e.parent, Reason: "connect timeout"})
			return
		}
		e.stats.ConnectAttempts++
		e.sendControlBestEffort(e.parent, &wire.ConnectRequest{RequestID: e.connect.id})
	}

	if e.state == StateConnected && !e.addr.IsRoot() {
		switch action, seq := e.keepAlive.Tick(now); action {
		case connection.ActionExpired:
			e.teardown(wire.ReasonKeepalive, false)
		case connection.ActionPing:
			e.sendControlBestEffort(e.parent, &wire.Ping{Sequence: seq})
		}
	}

	if len(e.children) > 0 {
		timeout := e.keepAlive.Config().ChildTimeout()
		for child, seen := range e.children {
			if now.Sub(seen) > timeout {
				delete(e.children, child)
				e.logState(log.StateEntityChild, child.String(), "", "keepalive timeout")
			}
		}
	}
}
