package endpoint

import (
	"fmt"

	"github.com/rf24node/rf24node-go/pkg/address"
)

// EventKind identifies an endpoint event.
type EventKind uint8

const (
	// EventConnect fires when the endpoint becomes connected.
	EventConnect EventKind = iota

	// EventDisconnect fires when a connection ends or a connect attempt
	// gives up.
	EventDisconnect

	// EventMsgTx fires when the last packet of a written message left the
	// endpoint.
	EventMsgTx

	// EventMsgRx fires when a complete message was queued for Read.
	EventMsgRx

	numEventKinds
)

// String returns the event name.
func (k EventKind) String() string {
	switch k {
	case EventConnect:
		return "CONNECT"
	case EventDisconnect:
		return "DISCONNECT"
	case EventMsgTx:
		return "MSG_TX"
	case EventMsgRx:
		return "MSG_RX"
	default:
		return fmt.Sprintf("EVENT(%d)", uint8(k))
	}
}

// Event describes something that happened during a processing pass.
type Event struct {
	Kind EventKind

	// Peer is the parent for CONNECT and DISCONNECT, the destination for
	// MSG_TX and the source for MSG_RX.
	Peer address.Logical

	// Length is the message length for MSG_TX and MSG_RX.
	Length int

	// Reason explains a DISCONNECT.
	Reason string
}

// Handler is invoked synchronously from ProcessEventHandlers. It may call
// Read, Write and the introspection methods but must not block or call a
// Process method.
type Handler func(Event)

// HandlerPolicy decides what OnEvent does with an already registered
// handler.
type HandlerPolicy uint8

const (
	// HandlerReplace keeps one handler per event; the last registration
	// wins.
	HandlerReplace HandlerPolicy = iota

	// HandlerAppend calls every registered handler in registration order.
	HandlerAppend
)

// String returns the policy name.
func (p HandlerPolicy) String() string {
	switch p {
	case HandlerReplace:
		return "REPLACE"
	case HandlerAppend:
		return "APPEND"
	default:
		return "UNKNOWN"
	}
}

// dispatcher queues events until ProcessEventHandlers runs.
type dispatcher struct {
	policy   HandlerPolicy
	handlers [numEventKinds][]Handler
	pending  []Event
}

func (d *dispatcher) register(kind EventKind, h Handler) error {
	if kind >= numEventKinds {
		return fmt.Errorf("%w: %v", ErrInvalidEvent, kind)
	}
	switch {
	case h == nil:
		d.handlers[kind] = nil
	case d.policy == HandlerAppend:
		d.handlers[kind] = append(d.handlers[kind], h)
	default:
		d.handlers[kind] = []Handler{h}
	}
	return nil
}

func (d *dispatcher) emit(ev Event) {
	d.pending = append(d.pending, ev)
}

// dispatch runs handlers for the events pending at call time. Events raised
// by the handlers themselves wait for the next pass.
func (d *dispatcher) dispatch() int {
	events := d.pending
	d.pending = nil
	for _, ev := range events {
		for _, h := range d.handlers[ev.Kind] {
			h(ev)
		}
	}
	return len(events)
}
