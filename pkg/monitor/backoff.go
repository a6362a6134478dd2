package monitor

import (
	"math/rand"
	"sync"
	"time"
)

// Reconnect backoff defaults.
const (
	// DefaultBackoffInitial is the delay before the first retry.
	DefaultBackoffInitial = 1 * time.Second

	// DefaultBackoffMax caps the delay between retries.
	DefaultBackoffMax = 30 * time.Second

	// DefaultBackoffMultiplier grows the delay after each failure.
	DefaultBackoffMultiplier = 2.0

	// DefaultBackoffJitter is the maximum jitter as a fraction of the
	// base delay, spreading out retries from many clients.
	DefaultBackoffJitter = 0.25
)

// BackoffConfig customizes retry delays. Zero values take defaults.
type BackoffConfig struct {
	Initial    time.Duration
	Max        time.Duration
	Multiplier float64
	Jitter     float64
}

func (c BackoffConfig) withDefaults() BackoffConfig {
	if c.Initial <= 0 {
		c.Initial = DefaultBackoffInitial
	}
	if c.Max <= 0 {
		c.Max = DefaultBackoffMax
	}
	if c.Multiplier <= 1 {
		c.Multiplier = DefaultBackoffMultiplier
	}
	if c.Jitter < 0 {
		c.Jitter = 0
	}
	return c
}

// backoff produces capped exponential retry delays with jitter.
type backoff struct {
	mu sync.Mutex

	cfg      BackoffConfig
	current  time.Duration
	attempts int
	rng      *rand.Rand
}

func newBackoff(cfg BackoffConfig) *backoff {
	cfg = cfg.withDefaults()
	return &backoff{
		cfg:     cfg,
		current: cfg.Initial,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// next returns the delay to wait before the upcoming retry and
// advances the sequence.
func (b *backoff) next() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()

	delay := b.jittered(b.current)

	b.attempts++
	grown := time.Duration(float64(b.current) * b.cfg.Multiplier)
	if grown > b.cfg.Max {
		grown = b.cfg.Max
	}
	b.current = grown

	return delay
}

// reset restarts the sequence. Called after a healthy connection.
func (b *backoff) reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.current = b.cfg.Initial
	b.attempts = 0
}

// attemptCount returns the number of retries since the last reset.
func (b *backoff) attemptCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.attempts
}

func (b *backoff) jittered(d time.Duration) time.Duration {
	if b.cfg.Jitter <= 0 {
		return d
	}
	return d + time.Duration(float64(d)*b.cfg.Jitter*b.rng.Float64())
}
