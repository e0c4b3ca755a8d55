// Package config loads rf24node configuration using viper.
//
// Values come from an optional YAML file, overridden by RF24NODE_*
// environment variables (RF24NODE_NODE_ADDRESS for node.address).
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/rf24node/rf24node-go/pkg/address"
	"github.com/rf24node/rf24node-go/pkg/connection"
	"github.com/rf24node/rf24node-go/pkg/endpoint"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "RF24NODE"

// Config is the complete node configuration.
type Config struct {
	Node        NodeConfig        `mapstructure:"node"`
	Link        LinkConfig        `mapstructure:"link"`
	Leases      LeaseConfig       `mapstructure:"leases"`
	Log         LogConfig         `mapstructure:"log"`
	ProtocolLog ProtocolLogConfig `mapstructure:"protocol_log"`
	Metrics     MetricsConfig     `mapstructure:"metrics"`
}

// NodeConfig describes the endpoint itself.
type NodeConfig struct {
	Mode             string          `mapstructure:"mode"`    // static | mesh
	Address          string          `mapstructure:"address"` // static only, "1010" or "1:012"
	Parent           string          `mapstructure:"parent"`  // static only, empty = tree parent
	RxQueueSize      int             `mapstructure:"rx_queue_size"`
	TxQueueSize      int             `mapstructure:"tx_queue_size"`
	Interval         time.Duration   `mapstructure:"interval"`
	DisconnectPolicy string          `mapstructure:"disconnect_policy"` // drop_tx | drop_all | flush
	AutoRenew        bool            `mapstructure:"auto_renew"`
	KeepAlive        KeepAliveConfig `mapstructure:"keepalive"`
}

// KeepAliveConfig tunes parent liveness checks.
type KeepAliveConfig struct {
	PingInterval   time.Duration `mapstructure:"ping_interval"`
	PongTimeout    time.Duration `mapstructure:"pong_timeout"`
	MaxMissedPongs int           `mapstructure:"max_missed_pongs"`
}

// LinkConfig selects the physical link.
type LinkConfig struct {
	Type   string       `mapstructure:"type"` // udp | serial
	UDP    UDPConfig    `mapstructure:"udp"`
	Serial SerialConfig `mapstructure:"serial"`
}

// UDPConfig configures the UDP radio emulation.
type UDPConfig struct {
	Listen    string            `mapstructure:"listen"`
	Peers     map[string]string `mapstructure:"peers"` // neighbour address -> host:port
	Discovery DiscoveryConfig   `mapstructure:"discovery"`
}

// DiscoveryConfig finds UDP neighbours over mDNS in addition to Peers.
type DiscoveryConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	Interface string        `mapstructure:"interface"`
	TTL       time.Duration `mapstructure:"ttl"`
}

// SerialConfig configures the serial radio bridge.
type SerialConfig struct {
	Port     string `mapstructure:"port"`
	BaudRate int    `mapstructure:"baud_rate"`
}

// LeaseConfig configures the lease server of a root node.
type LeaseConfig struct {
	Duration time.Duration `mapstructure:"duration"`
	Store    string        `mapstructure:"store"` // none | json | sqlite
	Path     string        `mapstructure:"path"`
}

// LogConfig configures operational logging.
type LogConfig struct {
	Level  string        `mapstructure:"level"`  // debug | info | warn | error
	Format string        `mapstructure:"format"` // text | json
	File   LogFileConfig `mapstructure:"file"`
}

// LogFileConfig adds a rotated log file next to stderr.
type LogFileConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	Path       string `mapstructure:"path"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// ProtocolLogConfig records protocol events to a CBOR file.
type ProtocolLogConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Path      string `mapstructure:"path"`
	MaxSizeMB int    `mapstructure:"max_size_mb"`
}

// MetricsConfig serves Prometheus metrics over HTTP. An empty Listen
// disables the endpoint.
type MetricsConfig struct {
	Listen string `mapstructure:"listen"`
	Path   string `mapstructure:"path"`
}

// Load reads the configuration at path. An empty path uses defaults and
// environment overrides only.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	cfg, err := Load("")
	if err != nil {
		panic(fmt.Sprintf("config: invalid defaults: %v", err))
	}
	return cfg
}

func setDefaults(v *viper.Viper) {
	// Node defaults
	v.SetDefault("node.mode", "static")
	v.SetDefault("node.address", "0")
	v.SetDefault("node.parent", "")
	v.SetDefault("node.rx_queue_size", 256)
	v.SetDefault("node.tx_queue_size", 128)
	v.SetDefault("node.interval", endpoint.DefaultRunInterval)
	v.SetDefault("node.disconnect_policy", "drop_tx")
	v.SetDefault("node.auto_renew", true)
	v.SetDefault("node.keepalive.ping_interval", 15*time.Second)
	v.SetDefault("node.keepalive.pong_timeout", 2*time.Second)
	v.SetDefault("node.keepalive.max_missed_pongs", 3)

	// Link defaults
	v.SetDefault("link.type", "udp")
	v.SetDefault("link.udp.listen", "127.0.0.1:24000")
	v.SetDefault("link.udp.peers", map[string]string{})
	v.SetDefault("link.udp.discovery.enabled", false)
	v.SetDefault("link.udp.discovery.interface", "")
	v.SetDefault("link.udp.discovery.ttl", 2*time.Minute)
	v.SetDefault("link.serial.port", "/dev/ttyUSB0")
	v.SetDefault("link.serial.baud_rate", 115200)

	// Lease defaults
	v.SetDefault("leases.duration", 10*time.Minute)
	v.SetDefault("leases.store", "none")
	v.SetDefault("leases.path", "leases.json")

	// Log defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.file.enabled", false)
	v.SetDefault("log.file.path", "rf24node.log")
	v.SetDefault("log.file.max_size_mb", 10)
	v.SetDefault("log.file.max_backups", 3)
	v.SetDefault("log.file.max_age_days", 7)
	v.SetDefault("log.file.compress", true)

	v.SetDefault("protocol_log.enabled", false)
	v.SetDefault("protocol_log.path", "rf24node.cbor")
	v.SetDefault("protocol_log.max_size_mb", 16)

	v.SetDefault("metrics.listen", "")
	v.SetDefault("metrics.path", "/metrics")
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Log.Level] {
		return fmt.Errorf("invalid log level: %s (must be debug/info/warn/error)", c.Log.Level)
	}
	if c.Log.Format != "json" && c.Log.Format != "text" {
		return fmt.Errorf("invalid log format: %s (must be json/text)", c.Log.Format)
	}
	if c.Log.File.Enabled && c.Log.File.Path == "" {
		return fmt.Errorf("log.file.path is required when log.file.enabled=true")
	}

	mode, err := c.Node.NetworkingMode()
	if err != nil {
		return err
	}
	if mode == endpoint.ModeStatic {
		addr, err := c.Node.StaticAddress()
		if err != nil {
			return err
		}
		if _, err := c.Node.ParentAddress(addr); err != nil {
			return err
		}
	}
	if _, err := c.Node.Policy(); err != nil {
		return err
	}
	if c.Node.RxQueueSize < 1 || c.Node.RxQueueSize > 0xFFFF {
		return fmt.Errorf("node.rx_queue_size out of range: %d", c.Node.RxQueueSize)
	}
	if c.Node.TxQueueSize < 1 || c.Node.TxQueueSize > 0xFFFF {
		return fmt.Errorf("node.tx_queue_size out of range: %d", c.Node.TxQueueSize)
	}
	if ka := c.Node.KeepAlive; ka.PingInterval > connection.MaxPingInterval {
		return fmt.Errorf("node.keepalive.ping_interval must be at most %s: %s", connection.MaxPingInterval, ka.PingInterval)
	}

	switch c.Link.Type {
	case "udp":
		if c.Link.UDP.Listen == "" {
			return fmt.Errorf("link.udp.listen is required for link.type=udp")
		}
		if _, err := c.Link.UDP.PeerAddresses(); err != nil {
			return err
		}
		if d := c.Link.UDP.Discovery; d.Enabled && d.TTL < time.Second {
			return fmt.Errorf("link.udp.discovery.ttl must be at least 1s: %s", d.TTL)
		}
	case "serial":
		if c.Link.Serial.Port == "" {
			return fmt.Errorf("link.serial.port is required for link.type=serial")
		}
	default:
		return fmt.Errorf("unsupported link.type: %s (must be udp/serial)", c.Link.Type)
	}

	if c.Metrics.Listen != "" && !strings.HasPrefix(c.Metrics.Path, "/") {
		return fmt.Errorf("metrics.path must start with /: %q", c.Metrics.Path)
	}

	switch c.Leases.Store {
	case "none":
	case "json", "sqlite":
		if c.Leases.Path == "" {
			return fmt.Errorf("leases.path is required for leases.store=%s", c.Leases.Store)
		}
	default:
		return fmt.Errorf("unsupported leases.store: %s (must be none/json/sqlite)", c.Leases.Store)
	}
	return nil
}

// NetworkingMode parses Mode.
func (n NodeConfig) NetworkingMode() (endpoint.NetworkingMode, error) {
	return endpoint.ParseMode(n.Mode)
}

// StaticAddress parses Address.
func (n NodeConfig) StaticAddress() (address.Logical, error) {
	a, err := address.Parse(n.Address)
	if err != nil {
		return address.Invalid, fmt.Errorf("node.address: %w", err)
	}
	return a, nil
}

// ParentAddress parses Parent, defaulting to the tree parent of self.
func (n NodeConfig) ParentAddress(self address.Logical) (address.Logical, error) {
	if n.Parent == "" {
		p, _ := self.Parent()
		return p, nil
	}
	a, err := address.Parse(n.Parent)
	if err != nil {
		return address.Invalid, fmt.Errorf("node.parent: %w", err)
	}
	return a, nil
}

// Policy parses DisconnectPolicy.
func (n NodeConfig) Policy() (endpoint.DisconnectPolicy, error) {
	switch strings.ToLower(n.DisconnectPolicy) {
	case "drop_tx", "":
		return endpoint.DisconnectDropTx, nil
	case "drop_all":
		return endpoint.DisconnectDropAll, nil
	case "flush":
		return endpoint.DisconnectFlush, nil
	default:
		return 0, fmt.Errorf("invalid node.disconnect_policy: %s (must be drop_tx/drop_all/flush)", n.DisconnectPolicy)
	}
}

// PeerAddresses parses the keys of Peers.
func (u UDPConfig) PeerAddresses() (map[address.Logical]string, error) {
	out := make(map[address.Logical]string, len(u.Peers))
	for k, ep := range u.Peers {
		a, err := address.Parse(k)
		if err != nil {
			return nil, fmt.Errorf("link.udp.peers: %w", err)
		}
		out[a] = ep
	}
	return out, nil
}
