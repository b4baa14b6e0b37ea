package connection

import (
	"errors"
	"fmt"
	"time"

	"github.com/upnode-go/upnode/pkg/liveness"
	"github.com/upnode-go/upnode/pkg/log"
	"github.com/upnode-go/upnode/pkg/rpc"
)

// run is the supervisor loop. Attempts are strictly sequential, so at most
// one transport exists per handle.
func (h *Handle) run() {
	defer close(h.done)
	defer h.setState(StateClosed, "closed")
	h.logState("", StateConnecting.String(), "start")

	attempt := 0
	for {
		h.attemptOnce()
		if h.ctx.Err() != nil {
			return
		}

		delay := h.backoff.Next()
		h.debugLog("waiting before reconnect", "delay", delay)
		timer := time.NewTimer(delay)
		select {
		case <-h.ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
		if h.Closed() {
			return
		}

		attempt++
		h.emit(Reconnect{Attempt: attempt, Delay: delay})
	}
}

// attemptOnce dials, handshakes and serves one channel until it ends.
func (h *Handle) attemptOnce() {
	h.setState(StateConnecting, "")

	network, address, err := h.config.resolve(h.ctx)
	if err != nil {
		h.attemptFailed(fmt.Errorf("resolve: %w", err))
		return
	}

	conn, err := h.config.Dialer.Dial(h.ctx, network, address)
	if err != nil {
		h.attemptFailed(err)
		return
	}
	h.debugLog("connected", "network", network, "address", address)

	ch := rpc.NewChannel(conn, rpc.Config{
		Constructor:    h.config.Constructor,
		Middleware:     h.config.Middleware,
		Role:           log.RoleClient,
		MaxMessageSize: h.config.MaxMessageSize,
		ProtocolLogger: h.config.ProtocolLogger,
		Logger:         h.config.Logger,
	})

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		_ = conn.Close()
		return
	}
	h.channel = ch
	h.mu.Unlock()

	h.setState(StateHandshaking, "")
	if err := ch.Start(h.ctx); err != nil {
		h.teardown(ch, nil)
		return
	}

	select {
	case <-ch.Ready():
	case <-ch.Done():
		h.teardown(ch, nil)
		return
	case <-h.ctx.Done():
		h.teardown(ch, nil)
		return
	}

	remote := ch.Remote()
	if h.Closed() {
		h.teardown(ch, nil)
		return
	}
	h.emit(Remote{Remote: remote})
	h.setState(StateReady, remote.ID())
	h.backoff.Reset()

	// The peer stays unpublished while Block runs, so invocations it makes
	// queue behind earlier entries.
	if h.config.Block != nil {
		h.callSafely("block", func() { h.config.Block(remote, ch) }, true)
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		h.teardown(ch, nil)
		return
	}
	h.remote = remote
	batch := h.queue.Drain()
	h.mu.Unlock()

	for _, cb := range batch {
		if h.Closed() {
			break
		}
		cb(remote, ch)
	}
	if h.Closed() {
		h.teardown(ch, nil)
		return
	}
	h.emit(Up{Remote: remote})

	prober := h.startProber(remote, ch)

	select {
	case <-ch.Done():
	case <-h.ctx.Done():
	}
	h.teardown(ch, prober)
}

// startProber starts heartbeats on ch when enabled. A peer without ping
// only yields an Error event.
func (h *Handle) startProber(remote *rpc.Remote, ch *rpc.Channel) *liveness.Prober {
	if h.config.Ping <= 0 {
		return nil
	}
	pinger, ok := remote.Pingable()
	if !ok {
		h.emit(Error{Kind: ErrorMissingPing, Err: ErrMissingPing})
		return nil
	}

	prober, err := liveness.New(liveness.Config{
		Interval: h.config.Ping,
		Timeout:  h.config.Timeout,
	}, pinger, func() {
		h.debugLog("heartbeat timed out", "timeout", h.config.Timeout)
		h.logHeartbeat(ch.ID(), 0, true)
		_ = ch.Close()
	})
	if err != nil {
		h.debugLog("prober not started", "error", err)
		return nil
	}
	prober.SetRTTCallback(func(rtt time.Duration) {
		h.logHeartbeat(ch.ID(), rtt, false)
		h.emit(Ping{Elapsed: rtt})
	})
	prober.Start(ch.Context())
	return prober
}

// attemptFailed reports an attempt that never produced a channel.
func (h *Handle) attemptFailed(err error) {
	if h.ctx.Err() != nil {
		return
	}
	h.debugLog("connect failed", "error", err)
	h.emit(Down{Err: err})
}

// teardown ends ch and clears the peer. It is the single exit path of an
// attempt that produced a channel.
func (h *Handle) teardown(ch *rpc.Channel, prober *liveness.Prober) {
	h.setState(StateEnding, "")

	h.mu.Lock()
	if h.channel == ch {
		h.channel = nil
		h.remote = nil
	}
	h.mu.Unlock()

	if prober != nil {
		prober.Stop()
	}
	_ = ch.Close()
	<-ch.Done()

	err := ch.Err()
	if errors.Is(err, rpc.ErrProtocol) {
		h.emit(Error{Kind: ErrorProtocol, Err: err})
	}
	if h.config.ProtocolLogger != nil && err != nil {
		h.config.ProtocolLogger.Log(log.NewErrorEvent(h.id, log.RoleClient, log.LayerConnection, err, "channel ended"))
	}
	h.emit(Down{Err: err})
}

func (h *Handle) logHeartbeat(connID string, rtt time.Duration, timedOut bool) {
	if h.config.ProtocolLogger == nil {
		return
	}
	h.config.ProtocolLogger.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: connID,
		Layer:        log.LayerConnection,
		Category:     log.CategoryHeartbeat,
		LocalRole:    log.RoleClient,
		Heartbeat:    &log.HeartbeatEvent{RTT: rtt, TimedOut: timedOut},
	})
}
