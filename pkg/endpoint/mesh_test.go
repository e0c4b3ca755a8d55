package endpoint

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rf24node/rf24node-go/pkg/address"
	"github.com/rf24node/rf24node-go/pkg/connection"
	"github.com/rf24node/rf24node-go/pkg/dhcp"
	"github.com/rf24node/rf24node-go/pkg/frame"
	"github.com/rf24node/rf24node-go/pkg/wire"
)

func TestMeshAddressFromRoot(t *testing.T) {
	n := newNetwork(t)
	root := n.static(address.RootNode0)
	n.connect(root)
	node := n.mesh()

	assert.Equal(t, RequestIdle, node.AddressRequestStatus())
	require.NoError(t, node.RequestAddress())
	assert.Equal(t, RequestPending, node.AddressRequestStatus())
	assert.ErrorIs(t, node.RequestAddress(), ErrRequestPending)
	assert.Equal(t, address.Invalid, node.Address())

	n.pump(2)
	assert.Equal(t, RequestAssigned, node.AddressRequestStatus())
	assert.Equal(t, address.Logical(0o1), node.Address())
	assert.Equal(t, address.RootNode0, node.Parent())
	assert.Equal(t, StateAddressAssigned, node.State())

	lease, ok := node.Lease()
	require.True(t, ok)
	assert.Equal(t, address.RootNode0, lease.Root)
	assert.Equal(t, n.clock.Now().Add(dhcp.DefaultLeaseDuration), lease.ExpiresAt)

	leases := root.Leases()
	require.Len(t, leases, 1)
	assert.Equal(t, address.Logical(0o1), leases[0].Address)

	n.connect(node)
	assert.Equal(t, []address.Logical{0o1}, root.Children())
}

func TestMeshAddressesAreUnique(t *testing.T) {
	n := newNetwork(t)
	root := n.static(address.RootNode0)
	n.connect(root)

	a := n.mesh()
	assert.Equal(t, address.Logical(0o1), n.lease(a))
	n.connect(a)

	// Both the root and a hear the request; the root's own relay wins.
	b := n.mesh()
	assert.Equal(t, address.Logical(0o2), n.lease(b))
	assert.Len(t, root.Leases(), 2)
}

func TestMeshAddressThroughRelay(t *testing.T) {
	n := newNetwork(t)
	root := n.static(address.RootNode0)
	n.connect(root)
	a := n.mesh()
	n.lease(a)
	n.connect(a)

	// b is only in range of a.
	n.medium.SetFilter(func(from, to address.Logical) bool {
		far := func(x address.Logical) bool { return x.IsUnassigned() || x == 0o11 }
		return !(from == address.RootNode0 && far(to)) && !(far(from) && to == address.RootNode0)
	})
	b := n.mesh()
	assert.Equal(t, address.Logical(0o11), n.lease(b))
	assert.Equal(t, address.Logical(0o1), b.Parent())
	assert.Greater(t, a.Stats().Forwarded, uint64(0))

	n.connect(b)
	assert.Equal(t, []address.Logical{0o11}, a.Children())

	require.NoError(t, b.Write(address.RootNode0, []byte("via a")))
	n.pump(3)
	buf := make([]byte, 8)
	got, src, err := root.ReadFrom(buf)
	require.NoError(t, err)
	assert.Equal(t, "via a", string(buf[:got]))
	assert.Equal(t, address.Logical(0o11), src)
}

func TestMeshAddressSpaceExhausted(t *testing.T) {
	n := newNetwork(t)
	root := n.static(address.RootNode0)
	n.connect(root)

	for range address.MaxChildren {
		n.lease(n.mesh())
	}
	assert.Equal(t, address.MaxChildren, len(root.Leases()))

	late := n.mesh()
	require.NoError(t, late.RequestAddress())
	n.pump(6)
	assert.Equal(t, RequestFailed, late.AddressRequestStatus())
	assert.Equal(t, StateConfigured, late.State())
	assert.Equal(t, address.Invalid, late.Address())
}

func TestMeshFullRootDefersToChildRelay(t *testing.T) {
	n := newNetwork(t)
	root := n.static(address.RootNode0)
	n.connect(root)
	for i := range address.MaxChildren {
		node := n.mesh()
		require.Equal(t, address.Logical(i+1), n.lease(node))
		n.connect(node)
	}

	// The root has no free slot, its first child does.
	late := n.mesh()
	assert.Equal(t, address.Logical(0o11), n.lease(late))
	assert.Equal(t, address.Logical(0o1), late.Parent())
	n.connect(late)
	assert.Len(t, root.Leases(), address.MaxChildren+1)
}

func TestMeshRequestTimesOut(t *testing.T) {
	n := newNetwork(t)
	node := n.mesh(WithRetry(connection.BackoffConfig{
		Initial: 100 * time.Millisecond,
		Max:     100 * time.Millisecond,
	}, 2))

	require.NoError(t, node.RequestAddress())
	for range 5 {
		n.clock.Advance(100 * time.Millisecond)
		n.pump(1)
	}
	assert.Equal(t, RequestFailed, node.AddressRequestStatus())

	// A failed request can be retried.
	require.NoError(t, node.RequestAddress())
	assert.Equal(t, RequestPending, node.AddressRequestStatus())
}

func TestMeshShortLeases(t *testing.T) {
	tests := []struct {
		lease, want time.Duration
	}{
		{500 * time.Millisecond, time.Second},
		{1500 * time.Millisecond, 2 * time.Second},
	}
	for _, tt := range tests {
		n := newNetwork(t)
		root := n.static(address.RootNode0, WithLeaseDuration(tt.lease))
		n.connect(root)
		node := n.mesh()

		assert.Equal(t, address.Logical(0o1), n.lease(node), "lease %s", tt.lease)
		lease, ok := node.Lease()
		require.True(t, ok)
		assert.Equal(t, n.clock.Now().Add(tt.want), lease.ExpiresAt)
		n.connect(node)
	}
}

func TestMeshRejectsZeroLeaseOffer(t *testing.T) {
	n := newNetwork(t)
	node := n.mesh()
	require.NoError(t, node.RequestAddress())

	offer := &wire.AddressOffer{
		RequestID: node.addrReq.id,
		Temp:      node.temp,
		Address:   0o1,
		Parent:    address.RootNode0,
	}
	node.handleAddressOffer(frame.Header{Src: address.RootNode0, Dst: node.temp, Type: offer.FrameType()}, offer, n.clock.Now())

	assert.Equal(t, RequestFailed, node.AddressRequestStatus())
	assert.Equal(t, StateConfigured, node.State())
	assert.Equal(t, address.Invalid, node.Address())
	_, ok := node.Lease()
	assert.False(t, ok)
}

func TestMeshConnectRequiresAddress(t *testing.T) {
	n := newNetwork(t)
	node := n.mesh()

	assert.ErrorIs(t, node.Connect(), ErrInvalidState)
	assert.ErrorIs(t, node.RenewAddressReservation(), ErrNoLease)
	assert.Equal(t, StatusFail, StatusOf(node.RenewAddressReservation()))
}

func TestLeaseRenewal(t *testing.T) {
	n := newNetwork(t)
	root := n.static(address.RootNode0, WithLeaseDuration(time.Minute))
	n.connect(root)
	node := n.mesh()
	n.lease(node)
	n.connect(node)

	n.clock.Advance(40 * time.Second)
	require.NoError(t, node.RenewAddressReservation())
	n.pump(2)

	lease, ok := node.Lease()
	require.True(t, ok)
	assert.Equal(t, n.clock.Now().Add(time.Minute), lease.ExpiresAt)

	n.clock.Advance(40 * time.Second)
	n.pump(1)
	assert.True(t, node.IsConnected(), "renewed lease outlives the original")
}

func TestLeaseAutoRenew(t *testing.T) {
	n := newNetwork(t)
	root := n.static(address.RootNode0, WithLeaseDuration(time.Minute))
	n.connect(root)
	node := n.mesh(WithAutoRenew(true))
	n.lease(node)
	n.connect(node)

	for range 12 {
		n.clock.Advance(10 * time.Second)
		n.pump(2)
	}
	assert.True(t, node.IsConnected())
	assert.Equal(t, address.Logical(0o1), node.Address())
	lease, _ := node.Lease()
	assert.True(t, lease.ExpiresAt.After(n.clock.Now()))
}

func TestLeaseExpiryForcesDisconnect(t *testing.T) {
	n := newNetwork(t)
	root := n.static(address.RootNode0, WithLeaseDuration(time.Minute))
	n.connect(root)
	node := n.mesh()
	n.lease(node)
	n.connect(node)
	r := record(t, node, EventDisconnect)

	n.clock.Advance(time.Minute)
	n.pump(2)

	assert.Equal(t, StateConfigured, node.State())
	assert.Equal(t, address.Invalid, node.Address())
	assert.Equal(t, RequestIdle, node.AddressRequestStatus())
	_, ok := node.Lease()
	assert.False(t, ok)
	require.Len(t, r.events, 1)
	assert.Equal(t, "lease expired", r.events[0].Reason)

	assert.Empty(t, root.Leases(), "root reclaims the lease")
	assert.Empty(t, root.Children())

	// The node can lease again.
	assert.Equal(t, address.Logical(0o1), n.lease(node))
}

func TestRenewUnknownLeaseDropsAddress(t *testing.T) {
	n := newNetwork(t)
	root := n.static(address.RootNode0)
	n.connect(root)
	node := n.mesh()
	n.lease(node)
	n.connect(node)

	require.True(t, root.server.Release(0o1))
	require.NoError(t, node.RenewAddressReservation())
	assert.ErrorIs(t, node.RenewAddressReservation(), ErrRequestPending)
	n.pump(2)

	assert.Equal(t, StateConfigured, node.State())
	assert.Equal(t, address.Invalid, node.Address())
}

func TestLeasesPersist(t *testing.T) {
	store := &memStore{}
	n := newNetwork(t)
	root := n.static(address.RootNode0, WithLeaseStore(store))
	n.connect(root)
	n.lease(n.mesh())

	require.Len(t, store.leases, 1)
	assert.Equal(t, address.Logical(0o1), store.leases[0].Address)

	// A restarted root restores the table and keeps the address taken.
	require.NoError(t, root.Close())
	root = n.static(address.RootNode0, WithLeaseStore(store))
	n.connect(root)
	assert.Len(t, root.Leases(), 1)
	assert.Equal(t, address.Logical(0o2), n.lease(n.mesh()))
}

type memStore struct {
	leases []dhcp.Lease
}

func (m *memStore) Load() ([]dhcp.Lease, error) { return m.leases, nil }

func (m *memStore) Save(leases []dhcp.Lease) error {
	m.leases = append([]dhcp.Lease(nil), leases...)
	return nil
}
