package commands

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rf24node/rf24node-go/internal/config"
	"github.com/rf24node/rf24node-go/pkg/endpoint"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Link.UDP.Listen = "127.0.0.1:0"
	cfg.Node.Interval = time.Millisecond
	cfg.Leases.Path = filepath.Join(dir, "leases.db")
	cfg.ProtocolLog.Path = filepath.Join(dir, "proto.cbor")
	return cfg
}

func TestNewNodeStaticRoot(t *testing.T) {
	cfg := testConfig(t)
	cfg.Leases.Store = "sqlite"
	cfg.ProtocolLog.Enabled = true
	cfg.Log.Level = "debug"

	n, err := newNode(context.Background(), cfg, io.Discard, io.Discard)
	require.NoError(t, err)
	defer n.close()

	assert.Equal(t, endpoint.StateAddressAssigned, n.ep.State())
	assert.Equal(t, endpoint.ModeStatic, n.ep.Mode())
	// logger, protocol log, lease store, endpoint
	assert.Len(t, n.closers, 4)
}

func TestNewNodeMesh(t *testing.T) {
	cfg := testConfig(t)
	cfg.Node.Mode = "mesh"
	cfg.Leases.Store = "json"

	n, err := newNode(context.Background(), cfg, io.Discard, io.Discard)
	require.NoError(t, err)
	defer n.close()

	assert.Equal(t, endpoint.StateConfigured, n.ep.State())
	assert.Len(t, n.closers, 2, "mesh nodes keep no lease store")
}

func TestNodeServesMetrics(t *testing.T) {
	cfg := testConfig(t)
	cfg.Metrics.Listen = "127.0.0.1:0"

	n, err := newNode(context.Background(), cfg, io.Discard, io.Discard)
	require.NoError(t, err)
	defer n.close()
	require.NotNil(t, n.metrics)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = n.runner.Run(ctx) }()

	resp, err := http.Get("http://" + n.metrics.Addr().String() + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `rf24node_state{state="ADDRESS_ASSIGNED"} 1`)
	assert.Contains(t, string(body), "rf24node_leases 0")
}

func TestNewNodeLinkError(t *testing.T) {
	cfg := testConfig(t)
	cfg.Link.Type = "serial"
	cfg.Link.Serial.Port = filepath.Join(t.TempDir(), "no-such-tty")

	_, err := newNode(context.Background(), cfg, io.Discard, io.Discard)
	assert.Error(t, err)
}

func TestRunNodeConnectsUntilCancelled(t *testing.T) {
	cfg := testConfig(t)
	cfg.Leases.Store = "json"

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	var out bytes.Buffer
	require.NoError(t, runNode(ctx, cfg, false, &out))
	assert.Contains(t, out.String(), "connected as 0:000")
}

func TestNodeCommandBadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "node.yaml")
	require.NoError(t, os.WriteFile(path, []byte("node:\n  mode: dynamic\n"), 0o644))

	cmd := NewRootCommand()
	cmd.SetArgs([]string{"node", "-c", path})
	assert.Error(t, cmd.Execute())
}

func TestNewNodeDiscoveryNeedsUDP(t *testing.T) {
	cfg := testConfig(t)
	cfg.Link.UDP.Discovery.Enabled = true

	n, err := newNode(context.Background(), cfg, io.Discard, io.Discard)
	require.NoError(t, err)
	defer n.close()
	assert.NotNil(t, n.udp)
	assert.Nil(t, n.adv, "advertising starts with the runner")

	cfg = testConfig(t)
	m, err := newNode(context.Background(), cfg, io.Discard, io.Discard)
	require.NoError(t, err)
	defer m.close()
	assert.Nil(t, m.udp)
	require.NoError(t, m.discover(context.Background()))
}
