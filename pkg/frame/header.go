package frame

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/rf24node/rf24node-go/pkg/address"
)

// Packet geometry.
const (
	// HeaderSize is the encoded header length in bytes.
	HeaderSize = 8

	// PacketSize is the largest physical packet.
	PacketSize = 32

	// MaxPayloadSize is the payload room left in a single packet.
	MaxPayloadSize = PacketSize - HeaderSize

	// MaxFragments is the largest number of packets a message may span.
	MaxFragments = 6

	// MaxMessageSize is the largest payload accepted for transmission.
	MaxMessageSize = MaxPayloadSize * MaxFragments
)

// Frame errors.
var (
	ErrShortPacket        = errors.New("packet shorter than header")
	ErrPayloadTooLarge    = errors.New("payload exceeds packet size")
	ErrMessageTooLarge    = errors.New("message exceeds maximum size")
	ErrEmptyMessage       = errors.New("message is empty")
	ErrUnexpectedFragment = errors.New("unexpected fragment")
)

// Type identifies the content of a frame.
type Type uint8

// User and network-control message types. Types at or above 0x80 are consumed
// by the endpoint and never surface to the application.
const (
	TypeUserData Type = 0x01

	TypeConnectReq Type = 0x80
	TypeConnectAck Type = 0x81
	TypeConnectNak Type = 0x82
	TypeDisconnect Type = 0x83
	TypePing       Type = 0x84
	TypePong       Type = 0x85

	TypeFragmentFirst Type = 0x90
	TypeFragmentMore  Type = 0x91
	TypeFragmentLast  Type = 0x92

	TypeAddrRequest  Type = 0xC0
	TypeAddrRelay    Type = 0xC1
	TypeAddrOffer    Type = 0xC2
	TypeAddrNak      Type = 0xC3
	TypeAddrRenew    Type = 0xC4
	TypeAddrRenewAck Type = 0xC5
)

// IsControl reports whether t is a network-control type.
func (t Type) IsControl() bool {
	return t >= 0x80 && !t.IsFragment()
}

// IsFragment reports whether t marks part of a fragmented message.
func (t Type) IsFragment() bool {
	return t >= TypeFragmentFirst && t <= TypeFragmentLast
}

// String returns the type name.
func (t Type) String() string {
	switch t {
	case TypeUserData:
		return "USER_DATA"
	case TypeConnectReq:
		return "CONNECT_REQ"
	case TypeConnectAck:
		return "CONNECT_ACK"
	case TypeConnectNak:
		return "CONNECT_NAK"
	case TypeDisconnect:
		return "DISCONNECT"
	case TypePing:
		return "PING"
	case TypePong:
		return "PONG"
	case TypeFragmentFirst:
		return "FRAGMENT_FIRST"
	case TypeFragmentMore:
		return "FRAGMENT_MORE"
	case TypeFragmentLast:
		return "FRAGMENT_LAST"
	case TypeAddrRequest:
		return "ADDR_REQUEST"
	case TypeAddrRelay:
		return "ADDR_RELAY"
	case TypeAddrOffer:
		return "ADDR_OFFER"
	case TypeAddrNak:
		return "ADDR_NAK"
	case TypeAddrRenew:
		return "ADDR_RENEW"
	case TypeAddrRenewAck:
		return "ADDR_RENEW_ACK"
	default:
		return fmt.Sprintf("TYPE(0x%02X)", uint8(t))
	}
}

// Header is the fixed 8-byte frame header.
type Header struct {
	Number   uint16
	Dst      address.Logical
	Src      address.Logical
	Type     Type
	Reserved uint8
}

// Put writes h into the first HeaderSize bytes of b.
// It panics if b is too short.
func (h Header) Put(b []byte) {
	_ = b[HeaderSize-1]
	binary.LittleEndian.PutUint16(b[0:2], h.Number)
	binary.LittleEndian.PutUint16(b[2:4], uint16(h.Dst))
	binary.LittleEndian.PutUint16(b[4:6], uint16(h.Src))
	b[6] = byte(h.Type)
	b[7] = h.Reserved
}

// MarshalBinary implements encoding.BinaryMarshaler.
func (h Header) MarshalBinary() ([]byte, error) {
	b := make([]byte, HeaderSize)
	h.Put(b)
	return b, nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler. Bytes beyond the
// header are ignored.
func (h *Header) UnmarshalBinary(b []byte) error {
	if len(b) < HeaderSize {
		return fmt.Errorf("%w: %d bytes", ErrShortPacket, len(b))
	}
	h.Number = binary.LittleEndian.Uint16(b[0:2])
	h.Dst = address.Logical(binary.LittleEndian.Uint16(b[2:4]))
	h.Src = address.Logical(binary.LittleEndian.Uint16(b[4:6]))
	h.Type = Type(b[6])
	h.Reserved = b[7]
	return nil
}

// String formats the header for logs.
func (h Header) String() string {
	return fmt.Sprintf("#%d %v->%v %v/%d", h.Number, h.Src, h.Dst, h.Type, h.Reserved)
}
