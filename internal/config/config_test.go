package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rf24node/rf24node-go/pkg/address"
	"github.com/rf24node/rf24node-go/pkg/endpoint"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rf24node.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefaults(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "static", cfg.Node.Mode)
	assert.Equal(t, 256, cfg.Node.RxQueueSize)
	assert.Equal(t, 128, cfg.Node.TxQueueSize)
	assert.Equal(t, endpoint.DefaultRunInterval, cfg.Node.Interval)
	assert.Equal(t, 15*time.Second, cfg.Node.KeepAlive.PingInterval)
	assert.Equal(t, "udp", cfg.Link.Type)
	assert.False(t, cfg.Link.UDP.Discovery.Enabled)
	assert.Equal(t, 2*time.Minute, cfg.Link.UDP.Discovery.TTL)
	assert.Equal(t, 10*time.Minute, cfg.Leases.Duration)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.False(t, cfg.ProtocolLog.Enabled)
	assert.Empty(t, cfg.Metrics.Listen)
	assert.Equal(t, "/metrics", cfg.Metrics.Path)

	addr, err := cfg.Node.StaticAddress()
	require.NoError(t, err)
	assert.Equal(t, address.RootNode0, addr)
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
node:
  mode: static
  address: "0:012"
  rx_queue_size: 32
  interval: 50ms
  disconnect_policy: flush
  keepalive:
    ping_interval: 5s
link:
  type: udp
  udp:
    listen: 127.0.0.1:24012
    peers:
      "0:002": 127.0.0.1:24002
      "10": 127.0.0.1:24010
leases:
  store: sqlite
  path: /tmp/leases.db
log:
  level: debug
  format: json
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	addr, err := cfg.Node.StaticAddress()
	require.NoError(t, err)
	assert.Equal(t, address.Logical(0o12), addr)

	parent, err := cfg.Node.ParentAddress(addr)
	require.NoError(t, err)
	assert.Equal(t, address.Logical(0o2), parent)

	policy, err := cfg.Node.Policy()
	require.NoError(t, err)
	assert.Equal(t, endpoint.DisconnectFlush, policy)

	assert.Equal(t, 32, cfg.Node.RxQueueSize)
	assert.Equal(t, 128, cfg.Node.TxQueueSize, "unset keys keep defaults")
	assert.Equal(t, 50*time.Millisecond, cfg.Node.Interval)
	assert.Equal(t, 5*time.Second, cfg.Node.KeepAlive.PingInterval)
	assert.Equal(t, 3, cfg.Node.KeepAlive.MaxMissedPongs)

	peers, err := cfg.Link.UDP.PeerAddresses()
	require.NoError(t, err)
	assert.Equal(t, map[address.Logical]string{
		0o2:  "127.0.0.1:24002",
		0o12: "127.0.0.1:24010",
	}, peers)

	assert.Equal(t, "sqlite", cfg.Leases.Store)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("RF24NODE_NODE_MODE", "mesh")
	t.Setenv("RF24NODE_LOG_LEVEL", "warn")
	t.Setenv("RF24NODE_LINK_TYPE", "serial")

	cfg, err := Load(writeConfig(t, "log:\n  level: debug\n"))
	require.NoError(t, err)

	mode, err := cfg.Node.NetworkingMode()
	require.NoError(t, err)
	assert.Equal(t, endpoint.ModeMesh, mode)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, "serial", cfg.Link.Type)
	assert.Equal(t, "/dev/ttyUSB0", cfg.Link.Serial.Port)
}

func TestValidation(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"log level", "log:\n  level: verbose\n"},
		{"log format", "log:\n  format: xml\n"},
		{"mode", "node:\n  mode: dynamic\n"},
		{"address", "node:\n  address: \"0:006\"\n"},
		{"parent", "node:\n  address: \"0:012\"\n  parent: nowhere\n"},
		{"policy", "node:\n  disconnect_policy: keep\n"},
		{"rx queue", "node:\n  rx_queue_size: 0\n"},
		{"tx queue", "node:\n  tx_queue_size: 70000\n"},
		{"link", "link:\n  type: spi\n"},
		{"peer", "link:\n  udp:\n    peers:\n      bogus: 127.0.0.1:1\n"},
		{"store", "leases:\n  store: redis\n"},
		{"log file", "log:\n  file:\n    enabled: true\n    path: \"\"\n"},
		{"discovery ttl", "link:\n  udp:\n    discovery:\n      enabled: true\n      ttl: 10ms\n"},
		{"ping interval", "node:\n  keepalive:\n    ping_interval: 24h\n"},
		{"metrics path", "metrics:\n  listen: 127.0.0.1:9124\n  path: metrics\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestMeshIgnoresStaticAddress(t *testing.T) {
	cfg, err := Load(writeConfig(t, "node:\n  mode: mesh\n  address: junk\n"))
	require.NoError(t, err)
	assert.Equal(t, "mesh", cfg.Node.Mode)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
