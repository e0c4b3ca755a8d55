package endpoint

import (
	"log/slog"
	"time"

	"github.com/rf24node/rf24node-go/pkg/connection"
	"github.com/rf24node/rf24node-go/pkg/dhcp"
	"github.com/rf24node/rf24node-go/pkg/frame"
	"github.com/rf24node/rf24node-go/pkg/log"
)

// Default processing budgets.
const (
	// DefaultRxBudget is the number of link packets one ProcessMessageBuffers
	// pass reads.
	DefaultRxBudget = 64

	// DefaultTxBudget is the number of queued packets one
	// ProcessMessageBuffers pass transmits.
	DefaultTxBudget = 32
)

type options struct {
	logger      *slog.Logger
	protoLogger log.Logger
	now         func() time.Time

	handlerPolicy    HandlerPolicy
	disconnectPolicy DisconnectPolicy

	keepAlive   connection.KeepAliveConfig
	backoff     connection.BackoffConfig
	maxAttempts int

	leaseDuration time.Duration
	leaseStore    dhcp.Store
	autoRenew     bool

	rxBudget          int
	txBudget          int
	reassemblyTimeout time.Duration
}

func defaultOptions() options {
	return options{
		protoLogger:       log.NoopLogger{},
		now:               time.Now,
		keepAlive:         connection.DefaultKeepAliveConfig(),
		backoff:           connection.DefaultBackoffConfig(),
		maxAttempts:       connection.DefaultMaxAttempts,
		leaseDuration:     dhcp.DefaultLeaseDuration,
		rxBudget:          DefaultRxBudget,
		txBudget:          DefaultTxBudget,
		reassemblyTimeout: frame.DefaultReassemblyTimeout,
	}
}

// Option configures an Endpoint at construction.
type Option func(*options)

// WithLogger sets the logger for debug output. If nil, logging is disabled.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithProtocolLogger records every packet, control message and state change.
func WithProtocolLogger(l log.Logger) Option {
	return func(o *options) { o.protoLogger = log.OrNoop(l) }
}

// WithClock replaces time.Now for all protocol timers.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithHandlerPolicy selects replace or append semantics for OnEvent.
func WithHandlerPolicy(p HandlerPolicy) Option {
	return func(o *options) { o.handlerPolicy = p }
}

// WithDisconnectPolicy selects what Disconnect does with queued frames.
func WithDisconnectPolicy(p DisconnectPolicy) Option {
	return func(o *options) { o.disconnectPolicy = p }
}

// WithKeepAlive configures parent liveness checks. Zero fields take
// defaults.
func WithKeepAlive(cfg connection.KeepAliveConfig) Option {
	return func(o *options) { o.keepAlive = cfg }
}

// WithRetry configures retransmission of connect, address and renew
// requests. Zero fields of b take defaults, except Jitter.
func WithRetry(b connection.BackoffConfig, maxAttempts int) Option {
	return func(o *options) {
		o.backoff = b
		o.maxAttempts = maxAttempts
	}
}

// WithLeaseDuration sets the lease granted by a root's lease server.
func WithLeaseDuration(d time.Duration) Option {
	return func(o *options) { o.leaseDuration = d }
}

// WithLeaseStore persists a root's lease table.
func WithLeaseStore(s dhcp.Store) Option {
	return func(o *options) { o.leaseStore = s }
}

// WithAutoRenew renews a leased address once half the lease has passed.
func WithAutoRenew(on bool) Option {
	return func(o *options) { o.autoRenew = on }
}

// WithBudgets bounds the packets read and transmitted per
// ProcessMessageBuffers pass. Non-positive values keep the defaults.
func WithBudgets(rx, tx int) Option {
	return func(o *options) {
		if rx > 0 {
			o.rxBudget = rx
		}
		if tx > 0 {
			o.txBudget = tx
		}
	}
}

// WithReassemblyTimeout bounds how long a partially received message is
// kept.
func WithReassemblyTimeout(d time.Duration) Option {
	return func(o *options) { o.reassemblyTimeout = d }
}
