package endpoint

import (
	"errors"
	"fmt"
	"time"

	"github.com/rf24node/rf24node-go/pkg/address"
	"github.com/rf24node/rf24node-go/pkg/dhcp"
	"github.com/rf24node/rf24node-go/pkg/frame"
	"github.com/rf24node/rf24node-go/pkg/log"
	"github.com/rf24node/rf24node-go/pkg/physical"
	"github.com/rf24node/rf24node-go/pkg/wire"
)

// RequestAddress starts negotiating an address in MESH mode. It returns once
// the request is on the air; the outcome is reported by
// AddressRequestStatus after later ProcessMessageRequests passes. A
// previously held address is given up.
func (e *Endpoint) RequestAddress() error {
	e.mustOpen()
	if e.mode != ModeMesh {
		return fmt.Errorf("%w: address request in %v mode", ErrWrongMode, e.mode)
	}
	if e.state == StateUnconfigured || e.state.active() {
		return fmt.Errorf("%w: address request in %v", ErrInvalidState, e.state)
	}
	if e.addrReq.active() {
		return ErrRequestPending
	}

	if e.addr.IsValid() {
		e.logState(log.StateEntityAddress, e.addr.String(), "", "new request")
		e.dropAddress()
	}
	if !e.temp.IsUnassigned() {
		if err := e.bindTemp(); err != nil {
			return fmt.Errorf("%w: bind temporary address: %w", ErrLink, err)
		}
	}

	now := e.opts.now()
	e.addrReq.id = newRequestID()
	e.addrReq.retry = e.newRetry()
	e.addrReq.retry.Start(now)
	e.addrStatus = RequestPending
	e.setState(StateConfigured, "address request")

	err := e.sendControl(address.Multicast, &wire.AddressRequest{RequestID: e.addrReq.id})
	if err != nil && !physical.IsTransient(err) {
		e.addrReq.stop()
		e.addrStatus = RequestFailed
		return fmt.Errorf("%w: %w", ErrLink, err)
	}
	e.debugLog("address requested", "request", e.addrReq.id)
	return nil
}

// AddressRequestStatus reports the outcome of the last RequestAddress.
func (e *Endpoint) AddressRequestStatus() RequestStatus {
	e.mustOpen()
	return e.addrStatus
}

// RenewAddressReservation asks the lease's root to extend the lease. The
// ack is applied by a later ProcessMessageRequests pass.
func (e *Endpoint) RenewAddressReservation() error {
	e.mustOpen()
	if e.lease == nil {
		return ErrNoLease
	}
	if e.renew.active() {
		return ErrRequestPending
	}
	return e.startRenew(e.opts.now())
}

func (e *Endpoint) startRenew(now time.Time) error {
	e.renew.id = newRequestID()
	e.renew.retry = e.newRetry()
	e.renew.retry.Start(now)
	e.renewFor = e.lease.ExpiresAt

	err := e.sendControl(e.lease.Root, &wire.AddressRenew{RequestID: e.renew.id})
	if err != nil && !physical.IsTransient(err) {
		e.renew.stop()
		return fmt.Errorf("%w: renew: %w", ErrLink, err)
	}
	return nil
}

// dropAddress forgets the current address without touching the link.
func (e *Endpoint) dropAddress() {
	e.addr = address.Invalid
	e.parent = address.Invalid
	e.lease = nil
	e.renewFor = time.Time{}
	e.renew.stop()
	e.server = nil
	clear(e.children)
}

// loseAddress ends the connection and returns to Configured after a lease
// ran out or was refused.
func (e *Endpoint) loseAddress(reason wire.Reason) {
	if e.state.active() {
		e.teardown(reason, true)
	}
	old := e.addr
	e.dropAddress()
	if err := e.bindTemp(); err != nil {
		e.warnLog("failed to bind temporary address", "error", err)
		e.temp = address.Invalid
	}
	e.addrStatus = RequestIdle
	e.logState(log.StateEntityAddress, old.String(), "", reason.String())
	e.setState(StateConfigured, reason.String())
}

// childMask has bit (id-1) set for every bound child.
func (e *Endpoint) childMask() uint8 {
	var mask uint8
	for c := range e.children {
		if id := c.ChildID(); id >= 1 && id <= address.MaxChildren {
			mask |= 1 << (id - 1)
		}
	}
	return mask
}

const allChildren = 1<<address.MaxChildren - 1

// handleAddressRequest relays a neighbour's multicast request to the root.
func (e *Endpoint) handleAddressRequest(h frame.Header, msg *wire.AddressRequest) {
	if e.state != StateConnected || !h.Src.IsUnassigned() {
		return
	}
	if e.addr.Level() >= address.MaxLevel || e.childMask() == allChildren {
		return
	}
	relay := &wire.AddressRelay{
		RequestID: msg.RequestID,
		Temp:      h.Src,
		Parent:    e.addr,
		Occupied:  e.childMask(),
	}
	if e.server != nil {
		e.pushWork(&e.dhcpWork, inbound{
			hdr:  frame.Header{Dst: e.addr, Src: e.addr, Type: relay.FrameType()},
			from: e.addr,
			msg:  relay,
		})
		return
	}
	root, _ := e.addr.Root()
	e.sendControlBestEffort(root, relay)
}

// relayToTemp passes an answer from the root on to the negotiating
// neighbour. It reports whether f was meant for someone else.
func (e *Endpoint) relayToTemp(h frame.Header, temp address.Logical, msg wire.Message) bool {
	if !e.addr.IsValid() || h.Dst != e.addr || !temp.IsUnassigned() || temp == e.temp {
		return false
	}
	payload, err := wire.Encode(msg)
	if err != nil {
		e.warnLog("failed to re-encode answer", "error", err)
		return true
	}
	f := frame.Frame{Header: h, Payload: payload}
	f.Dst = temp
	if err := e.sendFrame(temp, f, log.DirectionForward); err != nil {
		e.debugLog("relay to requester failed", "temp", temp, "error", err)
		return true
	}
	e.stats.Forwarded++
	return true
}

func (e *Endpoint) handleAddressOffer(h frame.Header, msg *wire.AddressOffer, now time.Time) {
	if e.relayToTemp(h, msg.Temp, msg) {
		return
	}
	if !e.addrReq.active() || msg.Temp != e.temp || msg.RequestID != e.addrReq.id {
		return
	}
	parent, ok := msg.Address.Parent()
	if !msg.Address.IsChild() || !ok || parent != msg.Parent {
		e.warnLog("ignoring malformed offer", "address", msg.Address, "parent", msg.Parent)
		return
	}
	if msg.LeaseSeconds == 0 {
		e.addrReq.stop()
		e.addrStatus = RequestFailed
		e.warnLog("refusing offer without lease time", "address", msg.Address)
		return
	}
	if err := e.link.Bind(msg.Address); err != nil {
		e.addrReq.stop()
		e.addrStatus = RequestFailed
		e.logError(log.LayerLink, "bind offered address", err)
		return
	}

	root, _ := msg.Address.Root()
	e.addrReq.stop()
	e.addr = msg.Address
	e.parent = msg.Parent
	e.temp = address.Invalid
	e.lease = &Lease{Root: root, GrantedAt: now, ExpiresAt: now.Add(msg.Lease())}
	e.renewFor = time.Time{}
	e.addrStatus = RequestAssigned
	e.logState(log.StateEntityAddress, "", msg.Address.String(), "lease "+msg.Lease().String())
	e.setState(StateAddressAssigned, "address offered")
}

func (e *Endpoint) handleAddressNak(h frame.Header, msg *wire.AddressNak) {
	if e.relayToTemp(h, msg.Temp, msg) {
		return
	}
	switch {
	case e.addrReq.active() && msg.Temp == e.temp && msg.RequestID == e.addrReq.id:
		e.addrReq.stop()
		e.addrStatus = RequestFailed
		e.debugLog("address request refused", "reason", msg.Reason)
	case e.renew.active() && msg.RequestID == e.renew.id:
		e.renew.stop()
		e.loseAddress(msg.Reason)
	}
}

func (e *Endpoint) handleRenewAck(src address.Logical, msg *wire.AddressRenewAck, now time.Time) {
	if !e.renew.active() || msg.RequestID != e.renew.id || e.lease == nil || src != e.lease.Root {
		return
	}
	e.renew.stop()
	if msg.LeaseSeconds == 0 {
		e.loseAddress(wire.ReasonLeaseExpired)
		return
	}
	e.lease.GrantedAt = now
	e.lease.ExpiresAt = now.Add(msg.Lease())
	e.renewFor = time.Time{}
	e.logState(log.StateEntityAddress, e.addr.String(), e.addr.String(), "lease renewed")
}

// addressTimers retransmits address and renew requests and enforces the
// lease.
func (e *Endpoint) addressTimers(now time.Time) {
	if e.addrReq.active() && e.addrReq.retry.Due(now) {
		if e.addrReq.retry.Advance(now) {
			e.sendControlBestEffort(address.Multicast, &wire.AddressRequest{RequestID: e.addrReq.id})
		} else {
			e.addrStatus = RequestFailed
			e.debugLog("address request timed out", "request", e.addrReq.id)
		}
	}

	if e.lease == nil {
		return
	}
	if !now.Before(e.lease.ExpiresAt) {
		e.loseAddress(wire.ReasonLeaseExpired)
		return
	}

	if e.renew.active() && e.renew.retry.Due(now) {
		if e.renew.retry.Advance(now) {
			e.sendControlBestEffort(e.lease.Root, &wire.AddressRenew{RequestID: e.renew.id})
		}
	}
	half := e.lease.GrantedAt.Add(e.lease.ExpiresAt.Sub(e.lease.GrantedAt) / 2)
	if e.opts.autoRenew && !e.renew.active() && !e.renewFor.Equal(e.lease.ExpiresAt) && !now.Before(half) {
		if err := e.startRenew(now); err != nil {
			e.warnLog("auto renew failed", "error", err)
		}
	}
}

// serveLeases answers queued relays and renewals on a root.
func (e *Endpoint) serveLeases(now time.Time) int {
	e.releaseHeldNaks()

	work := e.dhcpWork
	e.dhcpWork = nil
	for _, in := range work {
		switch msg := in.msg.(type) {
		case *wire.AddressRelay:
			e.serveRelay(msg, now)
		case *wire.AddressRenew:
			e.serveRenew(in.hdr.Src, msg, now)
		}
	}
	for _, l := range e.server.Expire(now) {
		e.logState(log.StateEntityAddress, l.Address.String(), "", "lease expired")
	}
	return len(work)
}

// nakHoldPasses is how many lease server passes a refusal waits for another
// relay of the same request, which may sit deeper in the tree and still
// have room.
const nakHoldPasses = 2

type heldNak struct {
	dst  address.Logical
	nak  wire.AddressNak
	left int
}

func (e *Endpoint) holdNak(dst address.Logical, nak wire.AddressNak) {
	if e.held == nil {
		e.held = make(map[uint32]*heldNak)
	}
	if _, ok := e.held[nak.RequestID]; ok {
		return
	}
	e.held[nak.RequestID] = &heldNak{dst: dst, nak: nak, left: nakHoldPasses}
}

func (e *Endpoint) releaseHeldNaks() {
	for id, h := range e.held {
		h.left--
		if h.left > 0 {
			continue
		}
		delete(e.held, id)
		nak := h.nak
		e.sendControlBestEffort(h.dst, &nak)
	}
}

func (e *Endpoint) serveRelay(msg *wire.AddressRelay, now time.Time) {
	// The root answers its own neighbours directly.
	dst := msg.Parent
	if msg.Parent == e.addr {
		dst = msg.Temp
	}

	l, err := e.server.Offer(dhcp.Request{
		RequestID: msg.RequestID,
		Temp:      msg.Temp,
		Parent:    msg.Parent,
		Occupied:  msg.Occupied,
	}, now)
	switch {
	case errors.Is(err, dhcp.ErrDuplicate):
		return
	case errors.Is(err, dhcp.ErrForeignTree):
		e.holdNak(dst, wire.AddressNak{RequestID: msg.RequestID, Temp: msg.Temp, Reason: wire.ReasonNotParent})
		return
	case err != nil:
		e.holdNak(dst, wire.AddressNak{RequestID: msg.RequestID, Temp: msg.Temp, Reason: wire.ReasonNoSpace})
		return
	}

	delete(e.held, msg.RequestID)
	e.logState(log.StateEntityAddress, "", l.Address.String(), "leased to "+msg.Temp.String())
	e.sendControlBestEffort(dst, &wire.AddressOffer{
		RequestID:    msg.RequestID,
		Temp:         msg.Temp,
		Address:      l.Address,
		Parent:       l.Parent,
		LeaseSeconds: l.RemainingSeconds(now),
	})
}

func (e *Endpoint) serveRenew(src address.Logical, msg *wire.AddressRenew, now time.Time) {
	l, err := e.server.Renew(src, now)
	if err != nil {
		e.sendControlBestEffort(src, &wire.AddressNak{RequestID: msg.RequestID, Reason: wire.ReasonUnknownLease})
		return
	}
	e.sendControlBestEffort(src, &wire.AddressRenewAck{
		RequestID:    msg.RequestID,
		LeaseSeconds: l.RemainingSeconds(now),
	})
}
