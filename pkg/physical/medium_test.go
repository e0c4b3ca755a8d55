package physical

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rf24node/rf24node-go/pkg/address"
)

func testPacket(fill byte) []byte {
	return bytes.Repeat([]byte{fill}, 12)
}

func TestMediumUnicast(t *testing.T) {
	m := NewMedium()
	a, b := m.NewLink(), m.NewLink()
	require.NoError(t, a.Bind(address.RootNode0))
	require.NoError(t, b.Bind(1))

	require.NoError(t, a.Send(1, testPacket(0x11)))

	p, ok, err := b.Recv()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, address.RootNode0, p.From)
	assert.Equal(t, testPacket(0x11), p.Data)

	_, ok, err = b.Recv()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMediumCopiesPacket(t *testing.T) {
	m := NewMedium()
	a, b := m.NewLink(), m.NewLink()
	require.NoError(t, a.Bind(0))
	require.NoError(t, b.Bind(1))

	pkt := testPacket(0x01)
	require.NoError(t, a.Send(1, pkt))
	pkt[0] = 0xFF

	p, ok, _ := b.Recv()
	require.True(t, ok)
	assert.Equal(t, byte(0x01), p.Data[0])
}

func TestMediumUnreachable(t *testing.T) {
	m := NewMedium()
	a := m.NewLink()
	require.NoError(t, a.Bind(0))

	err := a.Send(1, testPacket(0))
	assert.ErrorIs(t, err, ErrUnreachable)
	assert.True(t, IsTransient(err))
}

func TestMediumBusy(t *testing.T) {
	m := NewMedium()
	m.SetInboxSize(2)
	a, b := m.NewLink(), m.NewLink()
	require.NoError(t, a.Bind(0))
	require.NoError(t, b.Bind(1))

	require.NoError(t, a.Send(1, testPacket(1)))
	require.NoError(t, a.Send(1, testPacket(2)))
	err := a.Send(1, testPacket(3))
	assert.ErrorIs(t, err, ErrBusy)
	assert.True(t, IsTransient(err))
}

func TestMediumMulticast(t *testing.T) {
	m := NewMedium()
	a, b, c := m.NewLink(), m.NewLink(), m.NewLink()
	require.NoError(t, a.Bind(0))
	require.NoError(t, b.Bind(1))
	require.NoError(t, c.Bind(address.UnassignedFirst))

	require.NoError(t, a.Send(address.Multicast, testPacket(7)))

	for _, l := range []*MemLink{b, c} {
		p, ok, err := l.Recv()
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, address.RootNode0, p.From)
	}
	_, ok, _ := a.Recv()
	assert.False(t, ok, "sender must not hear its own multicast")
}

func TestMediumFilter(t *testing.T) {
	m := NewMedium()
	a, b := m.NewLink(), m.NewLink()
	require.NoError(t, a.Bind(0))
	require.NoError(t, b.Bind(1))

	m.SetFilter(func(from, to address.Logical) bool { return false })
	assert.ErrorIs(t, a.Send(1, testPacket(0)), ErrUnreachable)
	require.NoError(t, a.Send(address.Multicast, testPacket(0)))
	_, ok, _ := b.Recv()
	assert.False(t, ok)

	m.SetFilter(nil)
	assert.NoError(t, a.Send(1, testPacket(0)))
}

func TestMemLinkBind(t *testing.T) {
	m := NewMedium()
	a, b := m.NewLink(), m.NewLink()

	assert.Equal(t, address.Invalid, a.Addr())
	assert.ErrorIs(t, a.Send(1, testPacket(0)), ErrNotBound)

	require.NoError(t, a.Bind(address.UnassignedFirst))
	assert.True(t, m.Bound(address.UnassignedFirst))

	// Rebinding releases the temporary address.
	require.NoError(t, a.Bind(1))
	assert.False(t, m.Bound(address.UnassignedFirst))
	assert.True(t, m.Bound(1))

	err := b.Bind(1)
	assert.ErrorIs(t, err, ErrAddressInUse)
}

func TestMemLinkPacketSize(t *testing.T) {
	m := NewMedium()
	a := m.NewLink()
	require.NoError(t, a.Bind(0))

	assert.ErrorIs(t, a.Send(1, make([]byte, 7)), ErrPacketSize)
	assert.ErrorIs(t, a.Send(1, make([]byte, 33)), ErrPacketSize)
}

func TestMemLinkClose(t *testing.T) {
	m := NewMedium()
	a := m.NewLink()
	require.NoError(t, a.Bind(0))

	require.NoError(t, a.Close())
	require.NoError(t, a.Close())
	assert.False(t, m.Bound(0))

	_, _, err := a.Recv()
	assert.True(t, errors.Is(err, ErrClosed))
	assert.ErrorIs(t, a.Send(1, testPacket(0)), ErrClosed)
	assert.ErrorIs(t, a.Bind(0), ErrClosed)
}
