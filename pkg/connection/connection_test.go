package connection

import (
	"testing"
	"time"
)

func TestBackoffBase(t *testing.T) {
	cfg := DefaultBackoffConfig()
	want := []time.Duration{
		250 * time.Millisecond,
		500 * time.Millisecond,
		time.Second,
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
		8 * time.Second,
	}
	for n, w := range want {
		if got := cfg.Base(n); got != w {
			t.Errorf("Base(%d) = %v, want %v", n, got, w)
		}
	}

	steps := cfg.Steps()
	if len(steps) != 6 || steps[0] != DefaultInitialDelay || steps[5] != DefaultMaxDelay {
		t.Errorf("Steps() = %v", steps)
	}
}

func TestBackoffNormalize(t *testing.T) {
	tests := []struct {
		name string
		cfg  BackoffConfig
		n    int
		want time.Duration
	}{
		{"zero config", BackoffConfig{}, 0, DefaultInitialDelay},
		{"zero multiplier", BackoffConfig{Initial: 100 * time.Millisecond, Max: time.Second}, 2, 400 * time.Millisecond},
		{"max below initial", BackoffConfig{Initial: time.Second, Max: time.Millisecond}, 3, time.Second},
		{"custom", BackoffConfig{Initial: 100 * time.Millisecond, Max: 500 * time.Millisecond, Multiplier: 3}, 1, 300 * time.Millisecond},
		{"capped", BackoffConfig{Initial: 100 * time.Millisecond, Max: 500 * time.Millisecond, Multiplier: 3}, 2, 500 * time.Millisecond},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cfg.Base(tt.n); got != tt.want {
				t.Errorf("Base(%d) = %v, want %v", tt.n, got, tt.want)
			}
		})
	}
}

func TestBackoffJitter(t *testing.T) {
	cfg := BackoffConfig{Initial: time.Second, Max: time.Second, Jitter: 0.5}
	b := NewBackoff(cfg, 7)

	distinct := map[time.Duration]bool{}
	for range 20 {
		d := b.Delay(0)
		if d < time.Second || d > 1500*time.Millisecond {
			t.Fatalf("Delay(0) = %v outside [1s, 1.5s]", d)
		}
		distinct[d] = true
	}
	if len(distinct) < 2 {
		t.Error("jittered delays never varied")
	}

	// Equal seeds replay the same delays.
	x, y := NewBackoff(cfg, 42), NewBackoff(cfg, 42)
	for n := range 5 {
		if dx, dy := x.Delay(n), y.Delay(n); dx != dy {
			t.Errorf("seeded Delay(%d): %v != %v", n, dx, dy)
		}
	}

	if got := NewBackoff(BackoffConfig{Jitter: -1}, 1).Config().Jitter; got != 0 {
		t.Errorf("negative jitter normalized to %v", got)
	}
	if got := NewBackoff(BackoffConfig{}, 1).Delay(0); got != DefaultInitialDelay {
		t.Errorf("unjittered Delay(0) = %v", got)
	}
}

func fixedBackoff(d time.Duration) *Backoff {
	return NewBackoff(BackoffConfig{Initial: d, Max: d}, 1)
}

func TestRetry(t *testing.T) {
	t.Run("Schedule", func(t *testing.T) {
		now := time.Unix(1000, 0)
		r := NewRetry(fixedBackoff(time.Second), 3)

		if r.Active() || r.Due(now) {
			t.Fatal("idle retry should not be due")
		}

		r.Start(now)
		if r.Attempts() != 1 {
			t.Errorf("Attempts() = %d, want 1", r.Attempts())
		}
		if r.Due(now.Add(999 * time.Millisecond)) {
			t.Error("should not be due before deadline")
		}
		if !r.Due(now.Add(time.Second)) {
			t.Error("should be due at deadline")
		}

		now = now.Add(time.Second)
		if !r.Advance(now) || r.Attempts() != 2 {
			t.Fatalf("second attempt refused, attempts=%d", r.Attempts())
		}
		now = now.Add(time.Second)
		if !r.Advance(now) || r.Attempts() != 3 {
			t.Fatalf("third attempt refused, attempts=%d", r.Attempts())
		}
		now = now.Add(time.Second)
		if r.Advance(now) {
			t.Error("budget should be exhausted")
		}
		if r.Active() {
			t.Error("exhausted retry should be inactive")
		}
	})

	t.Run("Stop", func(t *testing.T) {
		now := time.Unix(0, 0)
		r := NewRetry(fixedBackoff(time.Second), 0)
		r.Start(now)
		r.Stop()
		if r.Due(now.Add(time.Hour)) {
			t.Error("stopped retry should never be due")
		}
		if r.Advance(now) {
			t.Error("stopped retry should not advance")
		}
	})

	t.Run("Defaults", func(t *testing.T) {
		r := NewRetry(nil, 0)
		now := time.Unix(0, 0)
		r.Start(now)
		for r.Advance(now) {
		}
		if r.Attempts() != DefaultMaxAttempts {
			t.Errorf("Attempts() = %d, want %d", r.Attempts(), DefaultMaxAttempts)
		}
	})
}

func TestKeepAliveConfig(t *testing.T) {
	cfg := NewKeepAlive(KeepAliveConfig{PingInterval: 10 * time.Second}).Config()
	if cfg.PongTimeout != DefaultPongTimeout || cfg.MaxMissedPongs != DefaultMaxMissedPongs {
		t.Errorf("zero fields not defaulted: %+v", cfg)
	}

	def := DefaultKeepAliveConfig()
	if got, want := def.DetectionDelay(), 47*time.Second; got != want {
		t.Errorf("DetectionDelay = %v, want %v", got, want)
	}
	if got, want := def.ChildTimeout(), 62*time.Second; got != want {
		t.Errorf("ChildTimeout = %v, want %v", got, want)
	}
}

func TestKeepAliveIntervalSeconds(t *testing.T) {
	tests := []struct {
		interval time.Duration
		want     uint16
	}{
		{15 * time.Second, 15},
		{1500 * time.Millisecond, 2},
		{MaxPingInterval, 65535},
		{24 * time.Hour, 65535},
	}
	for _, tt := range tests {
		if got := (KeepAliveConfig{PingInterval: tt.interval}).IntervalSeconds(); got != tt.want {
			t.Errorf("IntervalSeconds(%v) = %d, want %d", tt.interval, got, tt.want)
		}
	}

	cfg := NewKeepAlive(KeepAliveConfig{PingInterval: 24 * time.Hour}).Config()
	if cfg.PingInterval != MaxPingInterval {
		t.Errorf("PingInterval = %v, want clamped to %v", cfg.PingInterval, MaxPingInterval)
	}
}

func testKeepAlive(start time.Time) *KeepAlive {
	ka := NewKeepAlive(KeepAliveConfig{
		PingInterval:   10 * time.Second,
		PongTimeout:    time.Second,
		MaxMissedPongs: 3,
	})
	ka.Start(start)
	return ka
}

func TestKeepAlivePingCycle(t *testing.T) {
	start := time.Unix(100, 0)
	ka := NewKeepAlive(KeepAliveConfig{PingInterval: 10 * time.Second})
	if a, _ := ka.Tick(start.Add(time.Hour)); a != ActionNone {
		t.Error("stopped keepalive should not ping")
	}

	ka = testKeepAlive(start)
	if a, _ := ka.Tick(start.Add(9 * time.Second)); a != ActionNone {
		t.Error("ping before interval")
	}
	a, seq := ka.Tick(start.Add(10 * time.Second))
	if a != ActionPing || seq != 1 {
		t.Fatalf("Tick = %v, %d; want ping 1", a, seq)
	}
	if a, _ := ka.Tick(start.Add(10*time.Second + 500*time.Millisecond)); a != ActionNone {
		t.Error("ping while one is outstanding")
	}

	rtt, ok := ka.PongReceived(1, start.Add(10*time.Second+300*time.Millisecond))
	if !ok || rtt != 300*time.Millisecond {
		t.Errorf("PongReceived = %v, %v", rtt, ok)
	}
	if _, ok := ka.PongReceived(1, start.Add(11*time.Second)); ok {
		t.Error("duplicate pong matched")
	}

	// The interval runs from the previous ping, not from the pong.
	if a, _ := ka.Tick(start.Add(19 * time.Second)); a != ActionNone {
		t.Error("ping before interval")
	}
	if a, seq := ka.Tick(start.Add(20 * time.Second)); a != ActionPing || seq != 2 {
		t.Errorf("Tick = %v, %d; want ping 2", a, seq)
	}
}

func TestKeepAliveExpires(t *testing.T) {
	now := time.Unix(0, 0)
	ka := testKeepAlive(now)

	now = now.Add(10 * time.Second)
	if a, _ := ka.Tick(now); a != ActionPing {
		t.Fatal("expected first ping")
	}

	// A missed pong is retried right away until the budget is spent.
	for i := 1; i < 3; i++ {
		now = now.Add(time.Second)
		if a, _ := ka.Tick(now); a != ActionPing {
			t.Fatalf("miss %d: Tick = %v", i, a)
		}
		if ka.Missed() != i {
			t.Errorf("Missed() = %d, want %d", ka.Missed(), i)
		}
	}

	now = now.Add(time.Second)
	if a, _ := ka.Tick(now); a != ActionExpired {
		t.Fatalf("Tick = %v, want expired", a)
	}
	if ka.Running() {
		t.Error("keepalive should stop after expiry")
	}
}

func TestKeepAliveRecovers(t *testing.T) {
	now := time.Unix(0, 0)
	ka := testKeepAlive(now)

	now = now.Add(10 * time.Second)
	ka.Tick(now)
	now = now.Add(time.Second)
	_, seq := ka.Tick(now)
	if ka.Missed() != 1 {
		t.Fatalf("Missed() = %d, want 1", ka.Missed())
	}

	// Only the retry's sequence number counts.
	if _, ok := ka.PongReceived(seq-1, now); ok {
		t.Error("stale pong matched")
	}
	if _, ok := ka.PongReceived(seq, now.Add(100*time.Millisecond)); !ok {
		t.Fatal("pong should match")
	}
	if ka.Missed() != 0 {
		t.Errorf("Missed() = %d after pong, want 0", ka.Missed())
	}

	ka.Stop()
	if a, _ := ka.Tick(now.Add(time.Hour)); a != ActionNone || ka.Running() {
		t.Error("stopped keepalive ticked")
	}
}
