package endpoint

// State is the lifecycle state of an endpoint.
type State uint8

const (
	StateUnconfigured State = iota
	StateConfigured
	StateAddressAssigned
	StateConnecting
	StateConnected
	StateDisconnecting
	StateDisconnected
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateUnconfigured:
		return "UNCONFIGURED"
	case StateConfigured:
		return "CONFIGURED"
	case StateAddressAssigned:
		return "ADDRESS_ASSIGNED"
	case StateConnecting:
		return "CONNECTING"
	case StateConnected:
		return "CONNECTED"
	case StateDisconnecting:
		return "DISCONNECTING"
	case StateDisconnected:
		return "DISCONNECTED"
	default:
		return "UNKNOWN"
	}
}

// active reports whether s holds a connection or is negotiating one.
func (s State) active() bool {
	return s == StateConnecting || s == StateConnected || s == StateDisconnecting
}

// RequestStatus is the outcome of the last RequestAddress call.
type RequestStatus uint8

const (
	RequestIdle RequestStatus = iota
	RequestPending
	RequestAssigned
	RequestFailed
)

// String returns the status name.
func (r RequestStatus) String() string {
	switch r {
	case RequestIdle:
		return "IDLE"
	case RequestPending:
		return "PENDING"
	case RequestAssigned:
		return "ASSIGNED"
	case RequestFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// DisconnectPolicy decides what happens to queued frames on Disconnect.
type DisconnectPolicy uint8

const (
	// DisconnectDropTx discards pending transmissions and keeps received
	// messages readable.
	DisconnectDropTx DisconnectPolicy = iota

	// DisconnectDropAll discards both queues.
	DisconnectDropAll

	// DisconnectFlush transmits pending frames before disconnecting.
	// Received messages stay readable.
	DisconnectFlush
)

// String returns the policy name.
func (p DisconnectPolicy) String() string {
	switch p {
	case DisconnectDropTx:
		return "DROP_TX"
	case DisconnectDropAll:
		return "DROP_ALL"
	case DisconnectFlush:
		return "FLUSH"
	default:
		return "UNKNOWN"
	}
}
