package endpoint

import (
	"fmt"
	"strings"
)

// ConfigVersion1 is the only supported EndpointConfig version.
const ConfigVersion1 uint32 = 1

// EndpointConfig sizes the queues of an endpoint. Queue sizes are counted in
// frame slots: one slot holds one packet on the tx side and one complete
// message on the rx side.
type EndpointConfig struct {
	Version     uint32
	RxQueueSize uint16
	TxQueueSize uint16
}

// DefaultConfig returns a version 1 config with the given queue sizes.
func DefaultConfig(rx, tx uint16) EndpointConfig {
	return EndpointConfig{Version: ConfigVersion1, RxQueueSize: rx, TxQueueSize: tx}
}

// Validate checks the version and queue sizes.
func (c EndpointConfig) Validate() error {
	if c.Version != ConfigVersion1 {
		return fmt.Errorf("%w: %d", ErrUnsupportedVersion, c.Version)
	}
	if c.RxQueueSize == 0 || c.TxQueueSize == 0 {
		return fmt.Errorf("%w: rx=%d tx=%d", ErrInvalidQueueSize, c.RxQueueSize, c.TxQueueSize)
	}
	return nil
}

// NetworkingMode selects how an endpoint obtains its address.
type NetworkingMode uint8

const (
	// ModeUnset is the mode before SetNetworkingMode.
	ModeUnset NetworkingMode = iota

	// ModeStatic uses a fixed address set by SetEndpointStaticAddress.
	ModeStatic

	// ModeMesh obtains an address from the root's lease server.
	ModeMesh
)

// String returns the mode name.
func (m NetworkingMode) String() string {
	switch m {
	case ModeUnset:
		return "UNSET"
	case ModeStatic:
		return "STATIC"
	case ModeMesh:
		return "MESH"
	default:
		return "UNKNOWN"
	}
}

// ParseMode accepts "static" or "mesh" in any case.
func ParseMode(s string) (NetworkingMode, error) {
	switch strings.ToLower(s) {
	case "static":
		return ModeStatic, nil
	case "mesh":
		return ModeMesh, nil
	default:
		return ModeUnset, fmt.Errorf("%w: %q", ErrInvalidMode, s)
	}
}
