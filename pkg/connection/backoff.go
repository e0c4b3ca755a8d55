package connection

import (
	"math/rand/v2"
	"time"
)

// Retransmission timing for connect, address and renew requests. A request
// crosses at most a handful of radio hops, so the first retry comes quickly
// and the schedule tops out after a few seconds.
const (
	DefaultInitialDelay = 250 * time.Millisecond
	DefaultMaxDelay     = 8 * time.Second
	DefaultMultiplier   = 2.0
	DefaultJitter       = 0.25
)

// BackoffConfig describes an exponential retransmission schedule. Zero
// Initial, Max and Multiplier take the defaults; a zero Jitter disables
// jitter.
type BackoffConfig struct {
	Initial    time.Duration
	Max        time.Duration
	Multiplier float64

	// Jitter is the largest random extension of a delay, as a fraction of
	// the delay. Nodes that lost their parent together spread their
	// requests out instead of colliding on the air again.
	Jitter float64
}

// DefaultBackoffConfig returns the schedule used when no WithRetry option is
// given.
func DefaultBackoffConfig() BackoffConfig {
	return BackoffConfig{
		Initial:    DefaultInitialDelay,
		Max:        DefaultMaxDelay,
		Multiplier: DefaultMultiplier,
		Jitter:     DefaultJitter,
	}
}

func (c BackoffConfig) normalized() BackoffConfig {
	if c.Initial <= 0 {
		c.Initial = DefaultInitialDelay
	}
	if c.Max <= 0 {
		c.Max = DefaultMaxDelay
	}
	if c.Max < c.Initial {
		c.Max = c.Initial
	}
	if c.Multiplier <= 1 {
		c.Multiplier = DefaultMultiplier
	}
	c.Jitter = min(max(c.Jitter, 0), 1)
	return c
}

// Base returns the un-jittered delay after transmission n, counting from 0.
func (c BackoffConfig) Base(n int) time.Duration {
	c = c.normalized()
	d := float64(c.Initial)
	for range n {
		d *= c.Multiplier
		if d >= float64(c.Max) {
			return c.Max
		}
	}
	return time.Duration(d)
}

// Steps lists the distinct base delays up to and including Max.
func (c BackoffConfig) Steps() []time.Duration {
	c = c.normalized()
	var out []time.Duration
	for n := 0; ; n++ {
		d := c.Base(n)
		out = append(out, d)
		if d == c.Max {
			return out
		}
	}
}

// Backoff hands out jittered delays for a BackoffConfig. It is owned by a
// single endpoint and is not safe for concurrent use.
type Backoff struct {
	cfg BackoffConfig
	rng *rand.Rand
}

// NewBackoff creates a schedule. Equal seeds yield equal jitter, which keeps
// simulations reproducible.
func NewBackoff(cfg BackoffConfig, seed uint64) *Backoff {
	return &Backoff{
		cfg: cfg.normalized(),
		rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
}

// Config returns the normalized schedule.
func (b *Backoff) Config() BackoffConfig { return b.cfg }

// Delay returns the wait after transmission n, jitter included. The result
// lies in [Base(n), Base(n)*(1+Jitter)].
func (b *Backoff) Delay(n int) time.Duration {
	d := b.cfg.Base(n)
	if b.cfg.Jitter == 0 {
		return d
	}
	return d + time.Duration(float64(d)*b.cfg.Jitter*b.rng.Float64())
}
