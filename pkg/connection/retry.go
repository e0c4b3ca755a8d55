package connection

import "time"

// DefaultMaxAttempts is the default number of transmissions before a retried
// exchange gives up.
const DefaultMaxAttempts = 6

// Retry schedules retransmissions of a pending request against a caller
// supplied clock. It spawns no goroutines; the owner polls Due from its
// processing pass.
type Retry struct {
	backoff     *Backoff
	maxAttempts int

	active   bool
	attempts int
	deadline time.Time
}

// NewRetry creates a retry schedule. A nil backoff selects the defaults
// without jitter and a non-positive maxAttempts selects DefaultMaxAttempts.
func NewRetry(b *Backoff, maxAttempts int) *Retry {
	if b == nil {
		cfg := DefaultBackoffConfig()
		cfg.Jitter = 0
		b = NewBackoff(cfg, 0)
	}
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	return &Retry{backoff: b, maxAttempts: maxAttempts}
}

// Start records the first transmission at now.
func (r *Retry) Start(now time.Time) {
	r.active = true
	r.attempts = 1
	r.deadline = now.Add(r.backoff.Delay(0))
}

// Due reports whether the current attempt has timed out.
func (r *Retry) Due(now time.Time) bool {
	return r.active && !now.Before(r.deadline)
}

// Advance records a retransmission at now. It returns false, and stops the
// schedule, once the attempt budget is spent.
func (r *Retry) Advance(now time.Time) bool {
	if !r.active {
		return false
	}
	if r.attempts >= r.maxAttempts {
		r.Stop()
		return false
	}
	r.deadline = now.Add(r.backoff.Delay(r.attempts))
	r.attempts++
	return true
}

// Stop cancels the schedule.
func (r *Retry) Stop() {
	r.active = false
}

// Active reports whether a request is outstanding.
func (r *Retry) Active() bool { return r.active }

// Attempts returns the number of transmissions since Start.
func (r *Retry) Attempts() int { return r.attempts }

// Deadline returns when the current attempt times out.
func (r *Retry) Deadline() time.Time { return r.deadline }
