package endpoint

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/rf24node/rf24node-go/pkg/address"
	"github.com/rf24node/rf24node-go/pkg/connection"
	"github.com/rf24node/rf24node-go/pkg/dhcp"
	"github.com/rf24node/rf24node-go/pkg/frame"
	"github.com/rf24node/rf24node-go/pkg/log"
	"github.com/rf24node/rf24node-go/pkg/physical"
	"github.com/rf24node/rf24node-go/pkg/queue"
	"github.com/rf24node/rf24node-go/pkg/wire"
)

// maxPendingControl bounds the control frames waiting for a processing pass.
const maxPendingControl = 64

// Stats counts endpoint activity since creation.
type Stats struct {
	RxPackets uint64
	TxPackets uint64

	// RxErrors counts undecodable packets and broken fragment sequences.
	RxErrors uint64

	// RxDropped counts messages lost to a full rx queue.
	RxDropped uint64

	// TxDropped counts packets no neighbour accepted.
	TxDropped uint64

	// Forwarded counts transit packets relayed for other nodes.
	Forwarded uint64

	MessagesSent     uint64
	MessagesReceived uint64

	ConnectAttempts uint64
	PingsSent       uint64
	PongsReceived   uint64
	LastRTT         time.Duration
}

// Lease describes the address lease held by a MESH endpoint.
type Lease struct {
	Root      address.Logical
	GrantedAt time.Time
	ExpiresAt time.Time
}

// inbound is a decoded control message waiting for a processing pass.
type inbound struct {
	hdr  frame.Header
	from address.Logical
	msg  wire.Message
}

type pending struct {
	id    uint32
	retry *connection.Retry
}

func (p *pending) active() bool { return p.retry != nil && p.retry.Active() }

func (p *pending) stop() {
	if p.retry != nil {
		p.retry.Stop()
	}
}

// Endpoint is one participant of an RF24Node network. It spawns no
// goroutines: the owner drives it by calling the four Process methods
// periodically. An Endpoint must be owned by a single goroutine; see Runner
// for shared use.
type Endpoint struct {
	link physical.Link
	opts options
	id   string

	state  State
	cfg    EndpointConfig
	mode   NetworkingMode
	addr   address.Logical
	parent address.Logical
	temp   address.Logical

	rx        *queue.Queue
	tx        *queue.Queue
	txMsgLens []int
	txFailed  bool
	reasm     *frame.Reassembler
	seq       uint16

	events   dispatcher
	ctrl     []inbound
	dhcpWork []inbound
	server   *dhcp.Server
	held     map[uint32]*heldNak
	children map[address.Logical]time.Time

	connect    pending
	addrReq    pending
	addrStatus RequestStatus
	renew      pending
	lease      *Lease
	renewFor   time.Time
	keepAlive  *connection.KeepAlive
	userPing   struct {
		seq  uint32
		sent time.Time
	}

	stats  Stats
	closed bool
}

// New creates an unconfigured endpoint transmitting over link. The endpoint
// takes ownership of the link and closes it in Close.
func New(link physical.Link, opts ...Option) *Endpoint {
	if link == nil {
		panic("endpoint: nil link")
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	e := &Endpoint{
		link:      link,
		opts:      o,
		id:        uuid.NewString(),
		addr:      address.Invalid,
		parent:    address.Invalid,
		temp:      address.Invalid,
		reasm:     frame.NewReassembler(o.reassemblyTimeout),
		children:  make(map[address.Logical]time.Time),
		keepAlive: connection.NewKeepAlive(o.keepAlive),
	}
	e.events.policy = o.handlerPolicy
	return e
}

// ID returns the identifier used for this endpoint in protocol logs.
func (e *Endpoint) ID() string { return e.id }

// State returns the lifecycle state.
func (e *Endpoint) State() State {
	e.mustOpen()
	return e.state
}

// Mode returns the networking mode.
func (e *Endpoint) Mode() NetworkingMode {
	e.mustOpen()
	return e.mode
}

// Address returns the assigned address, or address.Invalid.
func (e *Endpoint) Address() address.Logical {
	e.mustOpen()
	return e.addr
}

// Parent returns the parent address, or address.Invalid for roots and
// unaddressed endpoints.
func (e *Endpoint) Parent() address.Logical {
	e.mustOpen()
	return e.parent
}

// Children returns the children currently bound to this endpoint, in
// ascending order.
func (e *Endpoint) Children() []address.Logical {
	e.mustOpen()
	out := make([]address.Logical, 0, len(e.children))
	for c := range e.children {
		out = append(out, c)
	}
	slices.Sort(out)
	return out
}

// Lease returns the current address lease of a MESH endpoint.
func (e *Endpoint) Lease() (Lease, bool) {
	e.mustOpen()
	if e.lease == nil {
		return Lease{}, false
	}
	return *e.lease, true
}

// Leases returns the lease table of a root endpoint.
func (e *Endpoint) Leases() []dhcp.Lease {
	e.mustOpen()
	if e.server == nil {
		return nil
	}
	return e.server.Leases()
}

// Stats returns a snapshot of the counters.
func (e *Endpoint) Stats() Stats {
	e.mustOpen()
	return e.stats
}

// IsConnected reports whether the endpoint is connected.
func (e *Endpoint) IsConnected() bool {
	e.mustOpen()
	return e.state == StateConnected
}

// EndpointStatus reports the detailed endpoint status. It has no
// implementation and always returns ErrNotImplemented.
func (e *Endpoint) EndpointStatus() error {
	e.mustOpen()
	return ErrNotImplemented
}

// Configure applies cfg. Re-applying replaces both queues and discards their
// contents; it is rejected while a connection is active.
func (e *Endpoint) Configure(cfg EndpointConfig) error {
	e.mustOpen()
	if e.state.active() {
		return fmt.Errorf("%w: configure in %v", ErrInvalidState, e.state)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	e.cfg = cfg
	e.rx = queue.New(int(cfg.RxQueueSize))
	e.tx = queue.New(int(cfg.TxQueueSize))
	e.txMsgLens = nil
	e.reasm.Reset()
	if e.state == StateUnconfigured {
		e.setState(StateConfigured, "configured")
	}
	e.debugLog("configured", "rx", cfg.RxQueueSize, "tx", cfg.TxQueueSize)
	return nil
}

// Config returns the applied configuration.
func (e *Endpoint) Config() EndpointConfig {
	e.mustOpen()
	return e.cfg
}

// SetNetworkingMode selects STATIC or MESH addressing. It is only accepted
// while configured and unaddressed.
func (e *Endpoint) SetNetworkingMode(mode NetworkingMode) error {
	e.mustOpen()
	if mode != ModeStatic && mode != ModeMesh {
		return fmt.Errorf("%w: %d", ErrInvalidMode, mode)
	}
	if e.state != StateConfigured || e.addrStatus == RequestPending {
		return fmt.Errorf("%w: set mode in %v", ErrInvalidState, e.state)
	}
	e.mode = mode
	return nil
}

// SetEndpointStaticAddress assigns addr in STATIC mode and binds it on the
// link. The parent defaults to the tree parent of addr.
func (e *Endpoint) SetEndpointStaticAddress(addr address.Logical) error {
	e.mustOpen()
	if e.mode != ModeStatic {
		return fmt.Errorf("%w: static address in %v mode", ErrWrongMode, e.mode)
	}
	if !e.addressable() {
		return fmt.Errorf("%w: set address in %v", ErrInvalidState, e.state)
	}
	if !addr.IsValid() {
		return fmt.Errorf("%w: %v", ErrInvalidAddress, addr)
	}

	var srv *dhcp.Server
	if addr.IsRoot() {
		var err error
		srv, err = dhcp.NewServer(addr, dhcp.Config{
			LeaseDuration: e.opts.leaseDuration,
			Store:         e.opts.leaseStore,
			Logger:        e.opts.logger,
		})
		if err != nil {
			return fmt.Errorf("%w: %w", ErrFail, err)
		}
	}
	if err := e.link.Bind(addr); err != nil {
		return fmt.Errorf("%w: bind %v: %w", ErrLink, addr, err)
	}

	old := e.addr
	e.addr = addr
	e.parent, _ = addr.Parent()
	e.temp = address.Invalid
	e.server = srv
	clear(e.children)
	e.logState(log.StateEntityAddress, old.String(), addr.String(), "static")
	e.setState(StateAddressAssigned, "static address")
	return nil
}

// SetParentStaticAddress sets the parent of a STATIC endpoint. It must be
// the tree parent of the endpoint's own address, which must be set first.
func (e *Endpoint) SetParentStaticAddress(parent address.Logical) error {
	e.mustOpen()
	if e.mode != ModeStatic {
		return fmt.Errorf("%w: static parent in %v mode", ErrWrongMode, e.mode)
	}
	if !e.addressable() || !e.addr.IsValid() {
		return fmt.Errorf("%w: set parent in %v", ErrInvalidState, e.state)
	}
	want, ok := e.addr.Parent()
	if !ok || parent != want {
		return fmt.Errorf("%w: %v is not the parent of %v", ErrInvalidAddress, parent, e.addr)
	}
	e.parent = parent
	return nil
}

// OnEvent registers h for kind. A nil handler clears the slot.
func (e *Endpoint) OnEvent(kind EventKind, h Handler) error {
	e.mustOpen()
	return e.events.register(kind, h)
}

// Close releases the link. Any later call other than Close panics.
func (e *Endpoint) Close() error {
	if e.closed {
		return nil
	}
	if e.state == StateConnected || e.state == StateConnecting {
		e.teardown(wire.ReasonShutdown, true)
	}
	e.closed = true
	e.ctrl = nil
	e.dhcpWork = nil
	return e.link.Close()
}

func (e *Endpoint) mustOpen() {
	if e.closed {
		panic("endpoint: use after Close")
	}
}

// addressable reports whether an address may be (re)assigned now.
func (e *Endpoint) addressable() bool {
	switch e.state {
	case StateConfigured, StateAddressAssigned, StateDisconnected:
		return true
	default:
		return false
	}
}

func (e *Endpoint) setState(s State, reason string) {
	if s == e.state {
		return
	}
	old := e.state
	e.state = s
	e.logState(log.StateEntityConnection, old.String(), s.String(), reason)
	e.debugLog("state change", "from", old, "to", s, "reason", reason)
}

func (e *Endpoint) newRetry() *connection.Retry {
	b := connection.NewBackoff(e.opts.backoff, uint64(e.opts.now().UnixNano()))
	return connection.NewRetry(b, e.opts.maxAttempts)
}

func (e *Endpoint) nextSeq() uint16 {
	e.seq++
	return e.seq
}

// source returns the address frames originate from.
func (e *Endpoint) source() address.Logical {
	if e.addr.IsValid() {
		return e.addr
	}
	return e.temp
}

func newRequestID() uint32 {
	for {
		if id := rand.Uint32(); id != 0 {
			return id
		}
	}
}

// bindTemp binds a random temporary address for negotiation.
func (e *Endpoint) bindTemp() error {
	span := uint32(address.UnassignedLast-address.UnassignedFirst) + 1
	var err error
	for range 8 {
		t := address.UnassignedFirst + address.Logical(rand.Uint32N(span))
		if err = e.link.Bind(t); err == nil {
			e.temp = t
			return nil
		}
		if !errors.Is(err, physical.ErrAddressInUse) {
			break
		}
	}
	return err
}

func (e *Endpoint) debugLog(msg string, args ...any) {
	if e.opts.logger != nil {
		e.opts.logger.Debug(msg, append([]any{"addr", e.source()}, args...)...)
	}
}

func (e *Endpoint) warnLog(msg string, args ...any) {
	if e.opts.logger != nil {
		e.opts.logger.Warn(msg, append([]any{"addr", e.source()}, args...)...)
	}
}
