package connection

import "time"

// A connected child pings its parent every PingInterval. A ping that is not
// answered within PongTimeout counts as missed and is retried at once;
// MaxMissedPongs misses in a row end the connection.
const (
	DefaultPingInterval   = 15 * time.Second
	DefaultPongTimeout    = 2 * time.Second
	DefaultMaxMissedPongs = 3

	// MaxPingInterval is the longest interval a connect ack can announce.
	MaxPingInterval = 65535 * time.Second
)

// KeepAliveConfig configures parent liveness checks.
type KeepAliveConfig struct {
	PingInterval   time.Duration
	PongTimeout    time.Duration
	MaxMissedPongs int
}

func DefaultKeepAliveConfig() KeepAliveConfig {
	return KeepAliveConfig{
		PingInterval:   DefaultPingInterval,
		PongTimeout:    DefaultPongTimeout,
		MaxMissedPongs: DefaultMaxMissedPongs,
	}
}

func (c KeepAliveConfig) normalized() KeepAliveConfig {
	switch {
	case c.PingInterval <= 0:
		c.PingInterval = DefaultPingInterval
	case c.PingInterval > MaxPingInterval:
		c.PingInterval = MaxPingInterval
	}
	if c.PongTimeout <= 0 {
		c.PongTimeout = DefaultPongTimeout
	}
	if c.MaxMissedPongs <= 0 {
		c.MaxMissedPongs = DefaultMaxMissedPongs
	}
	return c
}

// IntervalSeconds is PingInterval in whole seconds, rounded up, as carried
// by connect acks.
func (c KeepAliveConfig) IntervalSeconds() uint16 {
	d := min(max(c.PingInterval, 0), MaxPingInterval)
	return uint16((d + time.Second - 1) / time.Second)
}

// DetectionDelay is the longest a child can take to notice a dead parent.
func (c KeepAliveConfig) DetectionDelay() time.Duration {
	return c.PingInterval*time.Duration(c.MaxMissedPongs) + c.PongTimeout
}

// ChildTimeout is how long a parent keeps a child it has not heard from. It
// exceeds DetectionDelay by one interval, so a live child always pings
// before its parent gives up on it.
func (c KeepAliveConfig) ChildTimeout() time.Duration {
	return c.DetectionDelay() + c.PingInterval
}

// Action is what a Tick asks the owner to do.
type Action uint8

const (
	ActionNone Action = iota
	// ActionPing asks for a ping carrying the returned sequence number.
	ActionPing
	// ActionExpired reports that the parent stopped answering. The tracker
	// has stopped.
	ActionExpired
)

// KeepAlive tracks the link to a parent. It is driven by Tick from the
// owner's processing pass and is not safe for concurrent use.
type KeepAlive struct {
	cfg KeepAliveConfig

	running bool
	seq     uint32
	missed  int

	// nextPing is when the next ping is due while none is outstanding.
	nextPing time.Time

	awaiting bool
	sentAt   time.Time
}

// NewKeepAlive creates a stopped tracker. Zero fields of cfg take defaults.
func NewKeepAlive(cfg KeepAliveConfig) *KeepAlive {
	return &KeepAlive{cfg: cfg.normalized()}
}

// Config returns the effective configuration.
func (k *KeepAlive) Config() KeepAliveConfig { return k.cfg }

// Start begins monitoring; the first ping is due one interval after now.
func (k *KeepAlive) Start(now time.Time) {
	k.running = true
	k.missed = 0
	k.awaiting = false
	k.nextPing = now.Add(k.cfg.PingInterval)
}

func (k *KeepAlive) Stop() {
	k.running = false
	k.awaiting = false
}

func (k *KeepAlive) Running() bool { return k.running }

// Missed returns the number of consecutive unanswered pings.
func (k *KeepAlive) Missed() int { return k.missed }

// Tick advances the tracker to now.
func (k *KeepAlive) Tick(now time.Time) (Action, uint32) {
	if !k.running {
		return ActionNone, 0
	}
	if k.awaiting {
		if now.Sub(k.sentAt) < k.cfg.PongTimeout {
			return ActionNone, 0
		}
		k.awaiting = false
		k.missed++
		if k.missed >= k.cfg.MaxMissedPongs {
			k.running = false
			return ActionExpired, 0
		}
		return k.ping(now)
	}
	if now.Before(k.nextPing) {
		return ActionNone, 0
	}
	return k.ping(now)
}

func (k *KeepAlive) ping(now time.Time) (Action, uint32) {
	k.seq++
	k.awaiting = true
	k.sentAt = now
	return ActionPing, k.seq
}

// PongReceived matches a pong against the outstanding ping and returns the
// round trip time. Late and duplicate pongs report false.
func (k *KeepAlive) PongReceived(seq uint32, now time.Time) (time.Duration, bool) {
	if !k.awaiting || seq != k.seq {
		return 0, false
	}
	k.awaiting = false
	k.missed = 0
	k.nextPing = k.sentAt.Add(k.cfg.PingInterval)
	return now.Sub(k.sentAt), true
}
