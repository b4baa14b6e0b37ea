package connection

import (
	"math/rand"
	"sync"
	"time"
)

// Reconnect defaults.
const (
	// DefaultReconnect is the delay before retrying after a drop.
	DefaultReconnect = 1 * time.Second

	// MaxBackoff caps growing backoff sequences when no Max is configured.
	MaxBackoff = 60 * time.Second
)

// BackoffConfig configures reconnect delays. With Multiplier 1 and no jitter
// every retry waits Initial.
type BackoffConfig struct {
	Initial    time.Duration
	Max        time.Duration
	Multiplier float64
	Jitter     float64
}

// FixedBackoff returns a configuration that always waits d.
func FixedBackoff(d time.Duration) BackoffConfig {
	return BackoffConfig{Initial: d, Max: d, Multiplier: 1}
}

// ExponentialBackoff returns a doubling configuration from initial to max
// with 25% jitter.
func ExponentialBackoff(initial, max time.Duration) BackoffConfig {
	return BackoffConfig{Initial: initial, Max: max, Multiplier: 2, Jitter: 0.25}
}

// Backoff calculates reconnect delays.
type Backoff struct {
	mu sync.Mutex

	current    time.Duration
	initial    time.Duration
	max        time.Duration
	multiplier float64
	jitter     float64
	attempts   int

	rng *rand.Rand
}

// NewBackoff creates a fixed backoff of DefaultReconnect.
func NewBackoff() *Backoff {
	return NewBackoffWithConfig(FixedBackoff(DefaultReconnect))
}

// NewBackoffWithConfig creates a backoff calculator with custom settings.
func NewBackoffWithConfig(cfg BackoffConfig) *Backoff {
	if cfg.Initial <= 0 {
		cfg.Initial = DefaultReconnect
	}
	if cfg.Multiplier < 1 {
		cfg.Multiplier = 1
	}
	if cfg.Max <= 0 {
		if cfg.Multiplier == 1 {
			cfg.Max = cfg.Initial
		} else {
			cfg.Max = MaxBackoff
		}
	}
	if cfg.Max < cfg.Initial {
		cfg.Max = cfg.Initial
	}
	if cfg.Jitter < 0 {
		cfg.Jitter = 0
	}

	return &Backoff{
		current:    cfg.Initial,
		initial:    cfg.Initial,
		max:        cfg.Max,
		multiplier: cfg.Multiplier,
		jitter:     cfg.Jitter,
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Next returns the next delay (with jitter) and advances the backoff.
func (b *Backoff) Next() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()

	delay := b.addJitter(b.current)

	b.attempts++
	next := time.Duration(float64(b.current) * b.multiplier)
	if next > b.max {
		next = b.max
	}
	b.current = next

	return delay
}

// Reset returns to the initial delay. Called after a successful handshake.
func (b *Backoff) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.current = b.initial
	b.attempts = 0
}

// Attempts returns the number of delays handed out since the last reset.
func (b *Backoff) Attempts() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.attempts
}

// Current returns the current base delay (without jitter).
func (b *Backoff) Current() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.current
}

func (b *Backoff) addJitter(d time.Duration) time.Duration {
	if b.jitter <= 0 {
		return d
	}
	return d + time.Duration(float64(d)*b.jitter*b.rng.Float64())
}
