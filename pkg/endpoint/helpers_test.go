package endpoint

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rf24node/rf24node-go/pkg/address"
	"github.com/rf24node/rf24node-go/pkg/physical"
)

var t0 = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

type fakeClock struct{ now time.Time }

func newClock() *fakeClock { return &fakeClock{now: t0} }

func (c *fakeClock) Now() time.Time          { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

// network is a set of endpoints sharing one in-memory medium and clock.
type network struct {
	t      *testing.T
	medium *physical.Medium
	clock  *fakeClock
	eps    []*Endpoint
}

func newNetwork(t *testing.T) *network {
	return &network{t: t, medium: physical.NewMedium(), clock: newClock()}
}

func (n *network) add(opts ...Option) *Endpoint {
	n.t.Helper()
	opts = append([]Option{WithClock(n.clock.Now)}, opts...)
	ep := New(n.medium.NewLink(), opts...)
	require.NoError(n.t, ep.Configure(DefaultConfig(16, 16)))
	n.eps = append(n.eps, ep)
	n.t.Cleanup(func() { _ = ep.Close() })
	return ep
}

func (n *network) static(addr address.Logical, opts ...Option) *Endpoint {
	n.t.Helper()
	ep := n.add(opts...)
	require.NoError(n.t, ep.SetNetworkingMode(ModeStatic))
	require.NoError(n.t, ep.SetEndpointStaticAddress(addr))
	return ep
}

func (n *network) mesh(opts ...Option) *Endpoint {
	n.t.Helper()
	ep := n.add(opts...)
	require.NoError(n.t, ep.SetNetworkingMode(ModeMesh))
	return ep
}

// pump runs every processing pass of every endpoint for the given number of
// rounds.
func (n *network) pump(rounds int) {
	n.t.Helper()
	for range rounds {
		for _, ep := range n.eps {
			if ep.closed {
				continue
			}
			require.NoError(n.t, ep.ProcessMessageBuffers())
			require.NoError(n.t, ep.ProcessDHCPServer())
			require.NoError(n.t, ep.ProcessMessageRequests())
			require.NoError(n.t, ep.ProcessEventHandlers())
		}
	}
}

// connect connects eps in order, pumping until each is connected.
func (n *network) connect(eps ...*Endpoint) {
	n.t.Helper()
	for _, ep := range eps {
		require.NoError(n.t, ep.Connect())
		n.pump(3)
		require.Equal(n.t, StateConnected, ep.State(), "endpoint %v", ep.Address())
	}
}

// lease negotiates an address for a MESH endpoint.
func (n *network) lease(ep *Endpoint) address.Logical {
	n.t.Helper()
	require.NoError(n.t, ep.RequestAddress())
	n.pump(4)
	require.Equal(n.t, RequestAssigned, ep.AddressRequestStatus())
	require.Equal(n.t, StateAddressAssigned, ep.State())
	return ep.Address()
}

// recorder collects dispatched events.
type recorder struct {
	events []Event
}

func (r *recorder) handler(ev Event) { r.events = append(r.events, ev) }

func (r *recorder) kinds() []EventKind {
	out := make([]EventKind, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Kind)
	}
	return out
}

func record(t *testing.T, ep *Endpoint, kinds ...EventKind) *recorder {
	t.Helper()
	r := &recorder{}
	for _, k := range kinds {
		require.NoError(t, ep.OnEvent(k, r.handler))
	}
	return r
}

func allKinds() []EventKind {
	return []EventKind{EventConnect, EventDisconnect, EventMsgTx, EventMsgRx}
}
