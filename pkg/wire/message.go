package wire

import (
	"errors"
	"time"

	"github.com/rf24node/rf24node-go/pkg/address"
	"github.com/rf24node/rf24node-go/pkg/frame"
)

// Codec errors.
var (
	ErrUnknownType = errors.New("unknown control type")
	ErrTooLarge    = errors.New("control payload exceeds packet")
)

// Message is a control payload bound to a frame type.
type Message interface {
	FrameType() frame.Type
}

// Reason explains a refusal or a teardown.
type Reason uint8

const (
	ReasonNone         Reason = 0
	ReasonRequested    Reason = 1
	ReasonLeaseExpired Reason = 2
	ReasonKeepalive    Reason = 3
	ReasonNoSpace      Reason = 4
	ReasonNotParent    Reason = 5
	ReasonUnknownLease Reason = 6
	ReasonShutdown     Reason = 7
)

// String returns the reason name.
func (r Reason) String() string {
	switch r {
	case ReasonNone:
		return "none"
	case ReasonRequested:
		return "requested"
	case ReasonLeaseExpired:
		return "lease expired"
	case ReasonKeepalive:
		return "keepalive timeout"
	case ReasonNoSpace:
		return "no address space"
	case ReasonNotParent:
		return "not parent"
	case ReasonUnknownLease:
		return "unknown lease"
	case ReasonShutdown:
		return "shutdown"
	default:
		return "unknown"
	}
}

// ConnectRequest asks the parent to accept the sender as a child.
//
//	{ 1: requestId }
type ConnectRequest struct {
	RequestID uint32 `cbor:"1,keyasint"`
}

// ConnectAck accepts a ConnectRequest.
//
//	{ 1: requestId, 2: keepaliveSeconds }
type ConnectAck struct {
	RequestID        uint32 `cbor:"1,keyasint"`
	KeepaliveSeconds uint16 `cbor:"2,keyasint,omitempty"`
}

// ConnectNak refuses a ConnectRequest.
type ConnectNak struct {
	RequestID uint32 `cbor:"1,keyasint"`
	Reason    Reason `cbor:"2,keyasint"`
}

// Disconnect tells the peer the link is being torn down.
type Disconnect struct {
	Reason Reason `cbor:"1,keyasint"`
}

// Ping requests a Pong carrying the same sequence.
type Ping struct {
	Sequence uint32 `cbor:"1,keyasint"`
}

// Pong answers a Ping.
type Pong struct {
	Sequence uint32 `cbor:"1,keyasint"`
}

// AddressRequest is multicast by a node negotiating an address. The source
// address of the frame is the node's temporary address.
type AddressRequest struct {
	RequestID uint32 `cbor:"1,keyasint"`
}

// AddressRelay forwards an AddressRequest to the root of the relay's tree.
// Occupied has bit (id-1) set for every child id already in use below Parent.
//
//	{ 1: requestId, 2: temp, 3: parent, 4: occupied }
type AddressRelay struct {
	RequestID uint32          `cbor:"1,keyasint"`
	Temp      address.Logical `cbor:"2,keyasint"`
	Parent    address.Logical `cbor:"3,keyasint"`
	Occupied  uint8           `cbor:"4,keyasint,omitempty"`
}

// AddressOffer assigns Address below Parent for LeaseSeconds.
//
//	{ 1: requestId, 2: temp, 3: address, 4: parent, 5: leaseSeconds }
type AddressOffer struct {
	RequestID    uint32          `cbor:"1,keyasint"`
	Temp         address.Logical `cbor:"2,keyasint"`
	Address      address.Logical `cbor:"3,keyasint"`
	Parent       address.Logical `cbor:"4,keyasint"`
	LeaseSeconds uint32          `cbor:"5,keyasint"`
}

// Lease returns the offered lease duration.
func (m *AddressOffer) Lease() time.Duration {
	return time.Duration(m.LeaseSeconds) * time.Second
}

// AddressNak refuses an AddressRequest or AddressRenew.
type AddressNak struct {
	RequestID uint32          `cbor:"1,keyasint"`
	Temp      address.Logical `cbor:"2,keyasint,omitempty"`
	Reason    Reason          `cbor:"3,keyasint"`
}

// AddressRenew asks the root to extend the sender's lease.
type AddressRenew struct {
	RequestID uint32 `cbor:"1,keyasint"`
}

// AddressRenewAck confirms a renewal.
type AddressRenewAck struct {
	RequestID    uint32 `cbor:"1,keyasint"`
	LeaseSeconds uint32 `cbor:"2,keyasint"`
}

// Lease returns the renewed lease duration.
func (m *AddressRenewAck) Lease() time.Duration {
	return time.Duration(m.LeaseSeconds) * time.Second
}

// FrameType implementations.
func (*ConnectRequest) FrameType() frame.Type  { return frame.TypeConnectReq }
func (*ConnectAck) FrameType() frame.Type      { return frame.TypeConnectAck }
func (*ConnectNak) FrameType() frame.Type      { return frame.TypeConnectNak }
func (*Disconnect) FrameType() frame.Type      { return frame.TypeDisconnect }
func (*Ping) FrameType() frame.Type            { return frame.TypePing }
func (*Pong) FrameType() frame.Type            { return frame.TypePong }
func (*AddressRequest) FrameType() frame.Type  { return frame.TypeAddrRequest }
func (*AddressRelay) FrameType() frame.Type    { return frame.TypeAddrRelay }
func (*AddressOffer) FrameType() frame.Type    { return frame.TypeAddrOffer }
func (*AddressNak) FrameType() frame.Type      { return frame.TypeAddrNak }
func (*AddressRenew) FrameType() frame.Type    { return frame.TypeAddrRenew }
func (*AddressRenewAck) FrameType() frame.Type { return frame.TypeAddrRenewAck }
