package discovery

import (
	"errors"
	"net"
	"strconv"
	"time"

	"github.com/rf24node/rf24node-go/pkg/address"
)

// Service constants.
const (
	ServiceType = "_rf24node._udp"
	Domain      = "local."

	// MaxInstanceNameLen is the DNS-SD limit for instance labels.
	MaxInstanceNameLen = 63

	// DefaultTTL is the record TTL used when Config.TTL is zero.
	DefaultTTL = 2 * time.Minute
)

// TXT record keys.
const (
	TXTKeyID      = "id"
	TXTKeyAddress = "addr"
)

// Discovery errors.
var (
	ErrMissingRequired = errors.New("missing required TXT record")
	ErrInvalidTXT      = errors.New("invalid TXT record")
	ErrNoAddresses     = errors.New("service has no IP address")
	ErrClosed          = errors.New("advertiser closed")
)

// Config selects the interface and TTL used for mDNS traffic.
type Config struct {
	// Interface restricts mDNS to one network interface. Empty means all.
	Interface string

	// TTL of advertised records. Zero uses DefaultTTL.
	TTL time.Duration
}

func (c Config) ttl() time.Duration {
	if c.TTL > 0 {
		return c.TTL
	}
	return DefaultTTL
}

// interfaces returns the configured interface, or nil for all of them.
func (c Config) interfaces() []net.Interface {
	if c.Interface == "" {
		return nil
	}
	iface, err := net.InterfaceByName(c.Interface)
	if err != nil {
		return nil
	}
	return []net.Interface{*iface}
}

// Peer is a neighbour found by a Browser.
type Peer struct {
	Instance  string
	Host      string
	Port      uint16
	Addresses []string

	// ID is the advertised endpoint ID.
	ID string

	// Address is the neighbour's logical address.
	Address address.Logical
}

// Endpoint returns "ip:port" for the first known IP address.
func (p Peer) Endpoint() (string, error) {
	if len(p.Addresses) == 0 {
		return "", ErrNoAddresses
	}
	return net.JoinHostPort(p.Addresses[0], strconv.Itoa(int(p.Port))), nil
}

// InstanceName derives the DNS-SD instance name from an endpoint ID.
func InstanceName(id string) string {
	name := "rf24-" + id
	if len(name) > MaxInstanceNameLen {
		name = name[:MaxInstanceNameLen]
	}
	return name
}
