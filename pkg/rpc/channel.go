package rpc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/upnode-go/upnode/pkg/log"
	"github.com/upnode-go/upnode/pkg/transport"
	"github.com/upnode-go/upnode/pkg/wire"
)

// closeWriteTimeout bounds the best-effort close message sent by End.
const closeWriteTimeout = time.Second

// Config configures a Channel.
type Config struct {
	// Constructor builds the local API. Nil exposes only ping.
	Constructor Constructor

	// Middleware runs after the constructor.
	Middleware []Middleware

	// WithoutPing skips installing the no-op ping method, for peers that
	// should not be probed.
	WithoutPing bool

	// ID identifies the channel in logs and in the hello message.
	// Defaults to a random UUID.
	ID string

	// Role is recorded in protocol log events.
	Role log.Role

	// MaxMessageSize is the maximum frame payload (default: 64KB).
	MaxMessageSize uint32

	// OnRemote is called once, from the read loop, when the peer's hello
	// arrives.
	OnRemote func(remote *Remote)

	// ProtocolLogger receives frame and message events (optional).
	ProtocolLogger log.Logger

	// Logger is the optional logger for debug output.
	// If nil, logging is disabled.
	Logger *slog.Logger
}

// Channel is one RPC session over one transport.
type Channel struct {
	config Config
	conn   net.Conn
	framer *transport.Framer
	local  Methods
	id     string

	nextID    atomic.Uint32
	pending   map[uint32]chan *wire.Message
	pendingMu sync.Mutex

	remote    atomic.Pointer[Remote]
	ready     chan struct{}
	readyOnce sync.Once

	started atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc

	done      chan struct{}
	closeOnce sync.Once
	err       error
}

// NewChannel wraps conn and builds the local API. The channel does not read
// or write until Start.
func NewChannel(conn net.Conn, config Config) *Channel {
	if config.ID == "" {
		config.ID = uuid.New().String()
	}
	if config.MaxMessageSize == 0 {
		config.MaxMessageSize = transport.DefaultMaxMessageSize
	}

	ch := &Channel{
		config:  config,
		conn:    conn,
		framer:  transport.NewFramerWithMaxSize(conn, config.MaxMessageSize),
		id:      config.ID,
		pending: make(map[uint32]chan *wire.Message),
		ready:   make(chan struct{}),
		done:    make(chan struct{}),
	}
	ch.ctx, ch.cancel = context.WithCancel(context.Background())
	if config.ProtocolLogger != nil {
		ch.framer.SetLogger(config.ProtocolLogger, config.ID)
	}
	if config.WithoutPing {
		ch.local = build(config.Constructor, ch, config.Middleware...)
	} else {
		ch.local = Build(config.Constructor, ch, config.Middleware...)
	}
	return ch
}

// Start begins reading and sends the hello message. ctx bounds the lifetime
// of the channel: cancelling it closes the channel.
func (c *Channel) Start(ctx context.Context) error {
	if !c.started.CompareAndSwap(false, true) {
		return errors.New("channel already started")
	}
	c.logState("", "OPEN", "")

	go c.readLoop()
	go func() {
		select {
		case <-ctx.Done():
			c.finish(ctx.Err())
		case <-c.done:
		}
	}()

	if err := c.send(wire.NewHello(c.id, c.local.Names())); err != nil {
		c.finish(err)
		return fmt.Errorf("send hello: %w", err)
	}
	return nil
}

// ID returns the channel ID.
func (c *Channel) ID() string {
	return c.id
}

// Local returns the methods exposed to the peer.
func (c *Channel) Local() Methods {
	return c.local
}

// RemoteAddr returns the transport's remote address.
func (c *Channel) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

// Context is cancelled when the channel terminates. Incoming calls run
// under it.
func (c *Channel) Context() context.Context {
	return c.ctx
}

// Ready is closed when the peer's hello has arrived.
func (c *Channel) Ready() <-chan struct{} {
	return c.ready
}

// Remote returns the peer proxy, or nil before Ready.
func (c *Channel) Remote() *Remote {
	return c.remote.Load()
}

// Done is closed when the channel has terminated.
func (c *Channel) Done() <-chan struct{} {
	return c.done
}

// Err returns the termination cause, or nil while the channel is live.
func (c *Channel) Err() error {
	select {
	case <-c.done:
		return c.err
	default:
		return nil
	}
}

// Close destroys the transport immediately.
func (c *Channel) Close() error {
	c.finish(ErrClosedLocally)
	return nil
}

// End tells the peer the channel is closing, then destroys the transport.
func (c *Channel) End() error {
	select {
	case <-c.done:
		return nil
	default:
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(closeWriteTimeout))
	err := c.send(wire.NewClose())
	c.finish(ErrClosedLocally)
	return err
}

// call performs one outgoing call and waits for its reply.
func (c *Channel) call(ctx context.Context, method string, result any, args ...any) error {
	select {
	case <-c.done:
		return ErrChannelClosed
	default:
	}

	id := c.nextID.Add(1)
	if id == 0 {
		id = c.nextID.Add(1)
	}
	msg, err := wire.NewCall(id, method, args...)
	if err != nil {
		return err
	}

	replyCh := make(chan *wire.Message, 1)
	c.pendingMu.Lock()
	c.pending[id] = replyCh
	c.pendingMu.Unlock()
	defer func() {
		c.pendingMu.Lock()
		delete(c.pending, id)
		c.pendingMu.Unlock()
	}()

	if err := c.send(msg); err != nil {
		return fmt.Errorf("%w: %v", ErrChannelClosed, err)
	}

	select {
	case reply := <-replyCh:
		if reply.IsError() {
			return &RemoteError{Method: method, Message: reply.Error}
		}
		if result != nil && len(reply.Result) > 0 {
			if err := wire.Unmarshal(reply.Result, result); err != nil {
				return fmt.Errorf("decode %s result: %w", method, err)
			}
		}
		return nil
	case <-c.done:
		return ErrChannelClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Channel) send(msg *wire.Message) error {
	data, err := wire.EncodeMessage(msg)
	if err != nil {
		return err
	}
	if err := c.framer.WriteFrame(data); err != nil {
		return err
	}
	c.logMessage(msg, log.DirectionOut)
	return nil
}

func (c *Channel) readLoop() {
	for {
		data, err := c.framer.ReadFrame()
		if err != nil {
			c.finish(err)
			return
		}

		msg, err := wire.DecodeMessage(data)
		if err != nil {
			c.finish(fmt.Errorf("%w: %v", ErrProtocol, err))
			return
		}
		c.logMessage(msg, log.DirectionIn)

		switch msg.Type {
		case wire.TypeHello:
			if c.remote.Load() != nil {
				c.finish(fmt.Errorf("%w: duplicate hello", ErrProtocol))
				return
			}
			c.handleHello(msg)
		case wire.TypeCall:
			go c.dispatch(msg)
		case wire.TypeReply:
			c.pendingMu.Lock()
			replyCh, ok := c.pending[msg.ID]
			c.pendingMu.Unlock()
			if ok {
				select {
				case replyCh <- msg:
				default:
				}
			}
		case wire.TypeClose:
			c.finish(ErrPeerClosed)
			return
		}
	}
}

func (c *Channel) handleHello(msg *wire.Message) {
	remote := newRemote(c, msg.SessionID, msg.Methods)
	c.remote.Store(remote)
	c.readyOnce.Do(func() { close(c.ready) })
	c.debugLog("remote ready", "peer", msg.SessionID, "methods", msg.Methods)
	if c.config.OnRemote != nil {
		c.config.OnRemote(remote)
	}
}

func (c *Channel) dispatch(msg *wire.Message) {
	call := &Call{ch: c, id: msg.ID, method: msg.Method, args: msg.Args}

	result, err := c.invoke(call)
	var reply *wire.Message
	if err != nil {
		reply = wire.NewErrorReply(msg.ID, err.Error())
	} else {
		reply, err = wire.NewReply(msg.ID, result)
		if err != nil {
			reply = wire.NewErrorReply(msg.ID, err.Error())
		}
	}
	if err := c.send(reply); err != nil {
		c.debugLog("reply failed", "method", msg.Method, "error", err)
	}
}

func (c *Channel) invoke(call *Call) (result any, err error) {
	fn, ok := c.local[call.method]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownMethod, call.method)
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s panicked: %v", call.method, r)
		}
	}()
	return fn(c.ctx, call)
}

func (c *Channel) finish(cause error) {
	c.closeOnce.Do(func() {
		if errors.Is(cause, io.EOF) || errors.Is(cause, net.ErrClosed) {
			cause = fmt.Errorf("%w: %v", ErrChannelClosed, cause)
		}
		c.err = cause
		close(c.done)
		c.cancel()
		c.conn.Close()
		c.logState("OPEN", "CLOSED", cause.Error())
		c.debugLog("channel closed", "cause", cause)
	})
}

func (c *Channel) peerID() string {
	if r := c.remote.Load(); r != nil {
		return r.ID()
	}
	return ""
}

func (c *Channel) remoteAddr() string {
	if addr := c.conn.RemoteAddr(); addr != nil {
		return addr.String()
	}
	return ""
}

func (c *Channel) logMessage(msg *wire.Message, direction log.Direction) {
	if c.config.ProtocolLogger == nil {
		return
	}
	c.config.ProtocolLogger.Log(log.Event{
		Timestamp:     time.Now(),
		ConnectionID:  c.id,
		Direction:     direction,
		Layer:         log.LayerRPC,
		Category:      log.CategoryMessage,
		LocalRole:     c.config.Role,
		RemoteAddr:    c.remoteAddr(),
		PeerSessionID: c.peerID(),
		Message: &log.MessageEvent{
			Type:     msg.Type,
			ID:       msg.ID,
			Method:   msg.Method,
			ArgCount: len(msg.Args),
			Error:    msg.Error,
			Methods:  msg.Methods,
		},
	})
}

func (c *Channel) logState(oldState, newState, reason string) {
	if c.config.ProtocolLogger == nil {
		return
	}
	event := log.NewStateEvent(c.id, c.config.Role, log.StateEntityChannel, oldState, newState, reason)
	event.RemoteAddr = c.remoteAddr()
	event.PeerSessionID = c.peerID()
	c.config.ProtocolLogger.Log(event)
}

func (c *Channel) debugLog(msg string, args ...any) {
	if c.config.Logger != nil {
		c.config.Logger.Debug(msg, append([]any{"channel", c.id}, args...)...)
	}
}
