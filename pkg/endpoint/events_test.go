package endpoint

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rf24node/rf24node-go/pkg/address"
)

func TestHandlerReplace(t *testing.T) {
	n := newNetwork(t)
	root := n.static(address.RootNode0)

	var first, second int
	require.NoError(t, root.OnEvent(EventConnect, func(Event) { first++ }))
	require.NoError(t, root.OnEvent(EventConnect, func(Event) { second++ }))
	n.connect(root)

	assert.Equal(t, 0, first)
	assert.Equal(t, 1, second)
}

func TestHandlerAppend(t *testing.T) {
	n := newNetwork(t)
	root := n.static(address.RootNode0, WithHandlerPolicy(HandlerAppend))

	var order []string
	require.NoError(t, root.OnEvent(EventConnect, func(Event) { order = append(order, "a") }))
	require.NoError(t, root.OnEvent(EventConnect, func(Event) { order = append(order, "b") }))
	n.connect(root)

	assert.Equal(t, []string{"a", "b"}, order)
	assert.Equal(t, "APPEND", HandlerAppend.String())
}

func TestHandlerCleared(t *testing.T) {
	n := newNetwork(t)
	root := n.static(address.RootNode0)
	r := record(t, root, EventConnect)
	require.NoError(t, root.OnEvent(EventConnect, nil))

	n.connect(root)
	assert.Empty(t, r.events)
}

func TestOnEventInvalidKind(t *testing.T) {
	n := newNetwork(t)
	ep := n.add()

	err := ep.OnEvent(EventKind(7), func(Event) {})
	assert.ErrorIs(t, err, ErrInvalidEvent)
	assert.Equal(t, StatusNotSupported, StatusOf(err))
	assert.Equal(t, "EVENT(7)", EventKind(7).String())
}

func TestEventsWaitForHandlerPass(t *testing.T) {
	n := newNetwork(t)
	root := n.static(address.RootNode0)
	n.connect(root)
	r := record(t, root, EventMsgTx, EventMsgRx)

	require.NoError(t, root.Write(address.RootNode0, []byte("hi")))
	require.NoError(t, root.ProcessMessageBuffers())
	assert.Empty(t, r.events, "handlers only run in ProcessEventHandlers")

	require.NoError(t, root.ProcessEventHandlers())
	require.Equal(t, []EventKind{EventMsgRx, EventMsgTx}, r.kinds())
	assert.Equal(t, 2, r.events[0].Length)
	assert.Equal(t, address.RootNode0, r.events[0].Peer)
}

func TestEventsRaisedByHandlersAreDeferred(t *testing.T) {
	var d dispatcher
	calls := 0
	require.NoError(t, d.register(EventMsgRx, func(Event) {
		calls++
		d.emit(Event{Kind: EventMsgRx})
	}))

	d.emit(Event{Kind: EventMsgRx})
	assert.Equal(t, 1, d.dispatch())
	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, d.dispatch())
	assert.Equal(t, 2, calls)
}
