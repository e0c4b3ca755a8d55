package physical

import (
	"errors"

	"github.com/rf24node/rf24node-go/pkg/address"
)

// Link errors.
var (
	// ErrClosed is returned by operations on a closed link.
	ErrClosed = errors.New("link closed")

	// ErrNotBound is returned when sending before an address was bound.
	ErrNotBound = errors.New("link not bound")

	// ErrUnreachable means no neighbour acknowledged the packet.
	ErrUnreachable = errors.New("neighbour unreachable")

	// ErrBusy means the neighbour's receive buffer is full.
	ErrBusy = errors.New("neighbour busy")

	// ErrAddressInUse is returned when binding an address another radio holds.
	ErrAddressInUse = errors.New("address already in use")

	// ErrPacketSize is returned for empty or oversized packets.
	ErrPacketSize = errors.New("invalid packet size")
)

// Packet is one received radio packet.
type Packet struct {
	// From is the neighbour that transmitted the packet. It is not the
	// originator of the frame, which is in the frame header.
	From address.Logical

	// Data is the raw packet (header and payload).
	Data []byte
}

// Link moves raw packets between neighbouring radios. Implementations must
// not block in Send or Recv.
type Link interface {
	// Bind makes the radio listen on addr. Binding again replaces the
	// previous address.
	Bind(addr address.Logical) error

	// Send transmits packet to the neighbour next, or to every radio in
	// range when next is address.Multicast.
	Send(next address.Logical, packet []byte) error

	// Recv returns the next pending packet. ok is false when nothing is
	// pending.
	Recv() (pkt Packet, ok bool, err error)

	// Close releases the radio.
	Close() error
}

// IsTransient reports whether err only affected a single packet, leaving
// the link usable.
func IsTransient(err error) bool {
	return errors.Is(err, ErrUnreachable) || errors.Is(err, ErrBusy)
}
