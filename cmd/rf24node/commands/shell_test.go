package commands

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rf24node/rf24node-go/pkg/address"
	"github.com/rf24node/rf24node-go/pkg/endpoint"
	"github.com/rf24node/rf24node-go/pkg/physical"
)

// startTestNode runs a static root over an in-memory medium.
func startTestNode(t *testing.T) (*node, context.Context) {
	t.Helper()
	ep := endpoint.New(physical.NewMedium().NewLink())
	require.NoError(t, ep.Configure(endpoint.DefaultConfig(16, 16)))
	require.NoError(t, ep.SetNetworkingMode(endpoint.ModeStatic))
	require.NoError(t, ep.SetEndpointStaticAddress(address.RootNode0))

	n := &node{
		ep:     ep,
		runner: endpoint.NewRunner(ep, time.Millisecond),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- n.runner.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
		_ = ep.Close()
	})
	return n, ctx
}

// connected reads the endpoint state on the runner goroutine.
func connected(t *testing.T, ctx context.Context, n *node) bool {
	t.Helper()
	var ok bool
	require.NoError(t, n.runner.Do(ctx, func(ep *endpoint.Endpoint) error {
		ok = ep.IsConnected()
		return nil
	}))
	return ok
}

func TestShellCommands(t *testing.T) {
	n, ctx := startTestNode(t)
	var out bytes.Buffer

	assert.False(t, n.exec(ctx, "status", &out))
	assert.Contains(t, out.String(), "State:   ADDRESS_ASSIGNED (STATIC)")

	out.Reset()
	assert.False(t, n.exec(ctx, "connect", &out))
	assert.Empty(t, out.String())
	assert.True(t, connected(t, ctx, n))

	out.Reset()
	n.exec(ctx, "send 0 hello there", &out)
	assert.Empty(t, out.String())
	assert.Eventually(t, func() bool {
		var got bool
		_ = n.runner.Do(ctx, func(ep *endpoint.Endpoint) error {
			got = ep.PacketAvailable()
			return nil
		})
		return got
	}, time.Second, 5*time.Millisecond)

	out.Reset()
	n.exec(ctx, "ping 0", &out)
	assert.Contains(t, out.String(), "(FAIL)")

	out.Reset()
	n.exec(ctx, "disconnect", &out)
	assert.True(t, n.hold.Load())
	assert.False(t, connected(t, ctx, n))

	out.Reset()
	n.exec(ctx, "send 0 late", &out)
	assert.Contains(t, out.String(), "error:")

	n.exec(ctx, "connect", &out)
	assert.False(t, n.hold.Load())

	assert.True(t, n.exec(ctx, "quit", &out))
}

func TestShellUsageErrors(t *testing.T) {
	n, ctx := startTestNode(t)

	tests := map[string]string{
		"send 0":       "usage: send",
		"ping":         "usage: ping",
		"send zz text": "invalid",
		"frobnicate":   "unknown command",
		"renew":        "(FAIL)",
	}
	for line, want := range tests {
		var out bytes.Buffer
		assert.False(t, n.exec(ctx, line, &out))
		assert.Contains(t, out.String(), want, line)
	}

	var out bytes.Buffer
	assert.False(t, n.exec(ctx, "   ", &out))
	assert.Empty(t, out.String())
	n.exec(ctx, "help", &out)
	assert.Contains(t, out.String(), "Commands:")
}

func TestEnsureConnected(t *testing.T) {
	n, ctx := startTestNode(t)

	n.hold.Store(true)
	n.ensureConnected(ctx)
	assert.False(t, connected(t, ctx, n))

	n.hold.Store(false)
	n.ensureConnected(ctx)
	assert.True(t, connected(t, ctx, n))
}

func TestParseDestination(t *testing.T) {
	a, err := parseDestination("MULTICAST")
	require.NoError(t, err)
	assert.Equal(t, address.Multicast, a)

	a, err = parseDestination("0:012")
	require.NoError(t, err)
	assert.Equal(t, address.Logical(0o12), a)
}

func TestPrintableOrHex(t *testing.T) {
	assert.Equal(t, "hi", printableOrHex([]byte("hi")))
	assert.Equal(t, "00ff", printableOrHex([]byte{0x00, 0xFF}))
}
