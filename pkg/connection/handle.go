package connection

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/upnode-go/upnode/pkg/log"
	"github.com/upnode-go/upnode/pkg/queue"
	"github.com/upnode-go/upnode/pkg/rpc"
)

// Handle is a durable logical connection. It survives any number of
// transport drops; each drop is followed by a reconnect after the backoff
// delay until Close is called.
type Handle struct {
	id      string
	config  Config
	backoff *Backoff
	queue   queue.Queue

	mu      sync.Mutex
	state   State
	remote  *rpc.Remote
	channel *rpc.Channel
	closed  bool

	subMu   sync.Mutex
	subs    map[uint64]func(Event)
	nextSub uint64

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a handle and starts connecting in the background.
func New(config Config) (*Handle, error) {
	if err := config.validate(); err != nil {
		return nil, err
	}
	h := newHandle(config)
	go h.run()
	return h, nil
}

func newHandle(config Config) *Handle {
	h := &Handle{
		id:      uuid.New().String(),
		config:  config,
		backoff: NewBackoffWithConfig(config.Backoff),
		subs:    make(map[uint64]func(Event)),
		done:    make(chan struct{}),
	}
	h.ctx, h.cancel = context.WithCancel(context.Background())
	return h
}

// ID returns the handle ID used in logs.
func (h *Handle) ID() string {
	return h.id
}

// Invoke runs cb with the current peer, or queues it until a peer is ready.
// On a closed handle cb is dropped.
func (h *Handle) Invoke(cb queue.Callback) {
	h.InvokeTimeout(0, cb)
}

// InvokeTimeout is Invoke with a deadline: if no peer becomes ready within
// timeout, cb runs once with (nil, nil) and is removed from the queue.
// A timeout of zero waits indefinitely.
func (h *Handle) InvokeTimeout(timeout time.Duration, cb queue.Callback) {
	if cb == nil {
		return
	}
	cb = h.guard(cb)

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	if h.remote != nil {
		remote, ch := h.remote, h.channel
		h.mu.Unlock()
		cb(remote, ch)
		return
	}
	h.queue.PushTimeout(timeout, cb)
	h.mu.Unlock()
}

// Close ends the handle: no further attempts are made, the active channel
// is ended and a Close event is emitted. Close does not wait for the
// supervisor to exit; use Done for that. Repeated calls are safe.
func (h *Handle) Close() {
	h.mu.Lock()
	h.closed = true
	ch := h.channel
	h.mu.Unlock()

	if ch != nil {
		_ = ch.End()
	}
	h.cancel()
	h.emit(Close{})
}

// Remote returns the current peer, or nil when none is ready.
func (h *Handle) Remote() *rpc.Remote {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.remote
}

// Channel returns the active channel, or nil between attempts.
func (h *Handle) Channel() *rpc.Channel {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.channel
}

// State returns the supervisor state.
func (h *Handle) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// Closed reports whether Close was called.
func (h *Handle) Closed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closed
}

// QueueLen returns the number of queued invocations.
func (h *Handle) QueueLen() int {
	return h.queue.Len()
}

// Done is closed once the supervisor has exited after Close.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Subscribe registers fn for every event and returns a function that
// removes it. fn may be called from several goroutines and must not block
// for long: the supervisor waits for it.
func (h *Handle) Subscribe(fn func(Event)) (cancel func()) {
	h.subMu.Lock()
	id := h.nextSub
	h.nextSub++
	h.subs[id] = fn
	h.subMu.Unlock()

	return func() {
		h.subMu.Lock()
		delete(h.subs, id)
		h.subMu.Unlock()
	}
}

// Events returns a channel receiving every event, buffered to size. Events
// are dropped when the buffer is full. Call the returned function to stop.
func (h *Handle) Events(size int) (<-chan Event, func()) {
	ch := make(chan Event, size)
	cancel := h.Subscribe(func(e Event) {
		select {
		case ch <- e:
		default:
		}
	})
	return ch, cancel
}

func (h *Handle) emit(e Event) {
	h.subMu.Lock()
	subs := make([]func(Event), 0, len(h.subs))
	for _, fn := range h.subs {
		subs = append(subs, fn)
	}
	h.subMu.Unlock()

	h.debugLog("event", "name", e.Name(), "detail", Describe(e))
	for _, fn := range subs {
		h.callSafely("subscriber", func() { fn(e) }, false)
	}
}

// guard wraps a queued or immediate callback so a panic surfaces as an
// Error event instead of killing the supervisor.
func (h *Handle) guard(cb queue.Callback) queue.Callback {
	return func(remote *rpc.Remote, ch *rpc.Channel) {
		h.callSafely("invoke", func() { cb(remote, ch) }, true)
	}
}

func (h *Handle) callSafely(what string, fn func(), report bool) {
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("%s callback panicked: %v", what, r)
			h.debugLog("callback panic", "error", err)
			if report {
				h.emit(Error{Kind: ErrorCallback, Err: err})
			}
		}
	}()
	fn()
}

func (h *Handle) setState(s State, reason string) {
	h.mu.Lock()
	old := h.state
	h.state = s
	h.mu.Unlock()
	if old != s {
		h.logState(old.String(), s.String(), reason)
	}
}

func (h *Handle) logState(oldState, newState, reason string) {
	if h.config.ProtocolLogger != nil {
		h.config.ProtocolLogger.Log(log.NewStateEvent(h.id, log.RoleClient, log.StateEntityHandle, oldState, newState, reason))
	}
}

func (h *Handle) debugLog(msg string, args ...any) {
	if h.config.Logger != nil {
		h.config.Logger.Debug(msg, append([]any{"handle", h.id}, args...)...)
	}
}
