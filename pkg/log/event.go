package log

import (
	"fmt"
	"strings"
	"time"

	"github.com/rf24node/rf24node-go/pkg/address"
	"github.com/rf24node/rf24node-go/pkg/frame"
)

// Event is one entry of the protocol trace. Exactly one of Frame, Control,
// StateChange and Error is set. Keys are small integers to keep records
// compact; they must never be renumbered.
type Event struct {
	Timestamp    time.Time `cbor:"1,keyasint"`
	ConnectionID string    `cbor:"2,keyasint"`
	Direction    Direction `cbor:"3,keyasint"`
	Layer        Layer     `cbor:"4,keyasint"`
	Category     Category  `cbor:"5,keyasint"`

	// LocalAddr is the address of the logging endpoint when the event
	// happened, Invalid before one was assigned.
	LocalAddr address.Logical `cbor:"6,keyasint"`

	// PeerAddr is the neighbour a packet came from or went to.
	PeerAddr *address.Logical `cbor:"7,keyasint,omitempty"`

	Frame       *FrameEvent       `cbor:"10,keyasint,omitempty"`
	Control     *ControlEvent     `cbor:"11,keyasint,omitempty"`
	StateChange *StateChangeEvent `cbor:"12,keyasint,omitempty"`
	Error       *ErrorEventData   `cbor:"14,keyasint,omitempty"`
}

// Label names what the event carries: the frame type for packets and
// control messages, otherwise its kind.
func (e Event) Label() string {
	if t, ok := e.frameType(); ok {
		return t.String()
	}
	switch {
	case e.StateChange != nil:
		return "State"
	case e.Error != nil:
		return "Error"
	}
	return "Unknown"
}

// enumNames maps the small enums below to their names, indexed by value.
type enumNames []string

func (n enumNames) name(v uint8) string {
	if int(v) < len(n) {
		return n[v]
	}
	return "UNKNOWN"
}

func (n enumNames) parse(kind, s string) (uint8, error) {
	for i, name := range n {
		if strings.EqualFold(s, name) {
			return uint8(i), nil
		}
	}
	return 0, fmt.Errorf("invalid %s %q (want one of %s)", kind, s, strings.ToLower(strings.Join(n, ", ")))
}

// Direction is the flow of a packet relative to the logging endpoint.
type Direction uint8

const (
	DirectionIn Direction = iota
	DirectionOut
	// DirectionForward marks transit packets relayed for other nodes.
	DirectionForward
)

var directionNames = enumNames{"IN", "OUT", "FWD"}

func (d Direction) String() string { return directionNames.name(uint8(d)) }

// MarshalText encodes the direction by name in JSON exports.
func (d Direction) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

// ParseDirection accepts IN, OUT and FWD (or FORWARD), in any case.
func ParseDirection(s string) (Direction, error) {
	if strings.EqualFold(s, "forward") {
		return DirectionForward, nil
	}
	v, err := directionNames.parse("direction", s)
	return Direction(v), err
}

// Layer is the part of the stack that recorded an event.
type Layer uint8

const (
	// LayerLink records raw packets.
	LayerLink Layer = iota
	// LayerNetwork records routing, fragmentation and control traffic.
	LayerNetwork
	// LayerEndpoint records the endpoint lifecycle.
	LayerEndpoint
)

var layerNames = enumNames{"LINK", "NETWORK", "ENDPOINT"}

func (l Layer) String() string { return layerNames.name(uint8(l)) }

func (l Layer) MarshalText() ([]byte, error) { return []byte(l.String()), nil }

func ParseLayer(s string) (Layer, error) {
	v, err := layerNames.parse("layer", s)
	return Layer(v), err
}

// Category classifies an event.
type Category uint8

const (
	CategoryData Category = iota
	CategoryControl
	CategoryState
	CategoryError
)

var categoryNames = enumNames{"DATA", "CONTROL", "STATE", "ERROR"}

func (c Category) String() string { return categoryNames.name(uint8(c)) }

func (c Category) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

func ParseCategory(s string) (Category, error) {
	v, err := categoryNames.parse("category", s)
	return Category(v), err
}

// FrameEvent is one packet as it crossed the link or was relayed.
type FrameEvent struct {
	Header FrameHeader `cbor:"1,keyasint"`
	// Size includes the header.
	Size int    `cbor:"2,keyasint"`
	Data []byte `cbor:"3,keyasint,omitempty"`
}

// FrameHeader mirrors frame.Header under stable keys.
type FrameHeader struct {
	Number   uint16          `cbor:"1,keyasint"`
	Dst      address.Logical `cbor:"2,keyasint"`
	Src      address.Logical `cbor:"3,keyasint"`
	Type     frame.Type      `cbor:"4,keyasint"`
	Reserved uint8           `cbor:"5,keyasint,omitempty"`
}

func NewFrameHeader(h frame.Header) FrameHeader {
	return FrameHeader{Number: h.Number, Dst: h.Dst, Src: h.Src, Type: h.Type, Reserved: h.Reserved}
}

// ControlEvent is a decoded control message. Payload holds the wire message
// when logged and a generic CBOR value when read back.
type ControlEvent struct {
	Type    frame.Type `cbor:"1,keyasint"`
	Payload any        `cbor:"2,keyasint,omitempty"`
}

// StateChangeEvent records a transition of the endpoint, its address or one
// of its children. OldState is empty for a new child, NewState for a
// released one.
type StateChangeEvent struct {
	Entity   StateEntity `cbor:"1,keyasint"`
	OldState string      `cbor:"2,keyasint,omitempty"`
	NewState string      `cbor:"3,keyasint"`
	Reason   string      `cbor:"4,keyasint,omitempty"`
}

// StateEntity says what a StateChangeEvent is about.
type StateEntity uint8

const (
	StateEntityConnection StateEntity = iota
	StateEntityAddress
	StateEntityChild
)

var entityNames = enumNames{"CONNECTION", "ADDRESS", "CHILD"}

func (s StateEntity) String() string { return entityNames.name(uint8(s)) }

func (s StateEntity) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// ErrorEventData records a failure. Code carries the endpoint status when
// the failure surfaced through the API.
type ErrorEventData struct {
	Layer   Layer  `cbor:"1,keyasint"`
	Message string `cbor:"2,keyasint"`
	Code    *int   `cbor:"3,keyasint,omitempty"`
	Context string `cbor:"4,keyasint,omitempty"`
}
