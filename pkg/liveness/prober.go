// Package liveness detects silent peer death with periodic heartbeat calls.
//
// A Prober pings the peer every Interval. Each ping gets its own Timeout;
// if any ping stays unanswered past it, the prober stops and reports the
// peer dead exactly once. A Timeout of zero disables failure detection:
// a hung peer is then never reported.
package liveness

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/upnode-go/upnode/pkg/rpc"
)

// ErrNoInterval is returned by New when Interval is not positive.
var ErrNoInterval = errors.New("ping interval must be positive")

// Config configures a Prober.
type Config struct {
	// Interval is the period between heartbeats.
	Interval time.Duration

	// Timeout is how long one heartbeat may stay unanswered. Zero disables
	// failure detection.
	Timeout time.Duration
}

// Stats contains heartbeat statistics.
type Stats struct {
	Sent     uint64
	Answered uint64
	Failed   uint64
	LastPing time.Time
	LastRTT  time.Duration
	Dead     bool
}

// Prober runs heartbeats against one peer.
type Prober struct {
	config Config
	pinger rpc.Pingable
	onDead func()
	onRTT  func(rtt time.Duration)

	sent     atomic.Uint64
	answered atomic.Uint64
	failed   atomic.Uint64
	dead     atomic.Bool
	deadOnce sync.Once

	mu       sync.Mutex
	running  bool
	cancel   context.CancelFunc
	lastPing time.Time
	lastRTT  time.Duration
	wg       sync.WaitGroup
}

// New creates a prober. onDead is called once, from a prober goroutine,
// when a heartbeat times out.
func New(config Config, pinger rpc.Pingable, onDead func()) (*Prober, error) {
	if config.Interval <= 0 {
		return nil, ErrNoInterval
	}
	if config.Timeout < 0 {
		config.Timeout = 0
	}
	return &Prober{config: config, pinger: pinger, onDead: onDead}, nil
}

// SetRTTCallback sets a callback for answered heartbeats. Must be called
// before Start.
func (p *Prober) SetRTTCallback(cb func(rtt time.Duration)) {
	p.onRTT = cb
}

// Start begins the heartbeat loop. The first heartbeat is sent one Interval
// after Start. Start on a running prober is a no-op.
func (p *Prober) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running || p.dead.Load() {
		return
	}
	ctx, p.cancel = context.WithCancel(ctx)
	p.running = true

	p.wg.Add(1)
	go p.loop(ctx)
}

// Stop ends the heartbeat loop and abandons outstanding heartbeats. It does
// not wait for them; use Wait for that.
func (p *Prober) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.running {
		return
	}
	p.running = false
	p.cancel()
}

// Wait blocks until every prober goroutine has returned.
func (p *Prober) Wait() {
	p.wg.Wait()
}

// IsRunning returns true while the heartbeat loop is active.
func (p *Prober) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// Stats returns current heartbeat statistics.
func (p *Prober) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Stats{
		Sent:     p.sent.Load(),
		Answered: p.answered.Load(),
		Failed:   p.failed.Load(),
		LastPing: p.lastPing,
		LastRTT:  p.lastRTT,
		Dead:     p.dead.Load(),
	}
}

func (p *Prober) loop(ctx context.Context) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.wg.Add(1)
			go p.probe(ctx)
		}
	}
}

// probe sends one heartbeat and waits for its reply or timeout.
func (p *Prober) probe(ctx context.Context) {
	defer p.wg.Done()

	start := time.Now()
	p.mu.Lock()
	p.lastPing = start
	p.mu.Unlock()
	p.sent.Add(1)

	result := make(chan error, 1)
	go func() { result <- p.pinger.Ping(ctx) }()

	var timeout <-chan time.Time
	if p.config.Timeout > 0 {
		timer := time.NewTimer(p.config.Timeout)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case err := <-result:
		if err != nil {
			// Transport failures surface through the channel itself.
			p.failed.Add(1)
			return
		}
		rtt := time.Since(start)
		p.answered.Add(1)
		p.mu.Lock()
		p.lastRTT = rtt
		p.mu.Unlock()
		if p.onRTT != nil && ctx.Err() == nil {
			p.onRTT(rtt)
		}
	case <-timeout:
		p.failed.Add(1)
		p.declareDead()
	case <-ctx.Done():
	}
}

func (p *Prober) declareDead() {
	p.deadOnce.Do(func() {
		p.dead.Store(true)
		p.Stop()
		if p.onDead != nil {
			p.onDead()
		}
	})
}
