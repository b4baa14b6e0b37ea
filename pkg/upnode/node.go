package upnode

import (
	"context"
	"errors"
	"net"
	"strconv"
	"sync"

	"github.com/google/uuid"

	"github.com/upnode-go/upnode/pkg/connection"
	"github.com/upnode-go/upnode/pkg/discovery"
	"github.com/upnode-go/upnode/pkg/rpc"
	"github.com/upnode-go/upnode/pkg/session"
	"github.com/upnode-go/upnode/pkg/transport"
)

// Ping installs a no-op ping method when the API lacks one, so peers can
// probe this side.
var Ping rpc.Middleware = rpc.EnsurePing

// Node binds an API constructor to connections and listeners.
type Node struct {
	id   string
	cons rpc.Constructor
	mw   []rpc.Middleware

	mu        sync.Mutex
	listeners []*Listener
}

// New creates a node. A nil constructor exposes only ping.
func New(cons rpc.Constructor, mw ...rpc.Middleware) *Node {
	return &Node{
		id:   uuid.New().String(),
		cons: cons,
		mw:   mw,
	}
}

// ID returns the node ID advertised over mDNS.
func (n *Node) ID() string {
	return n.id
}

// Connect returns a durable handle to a listener. The handle starts
// connecting immediately and keeps reconnecting until Close.
func (n *Node) Connect(args ...any) (*connection.Handle, error) {
	opts, err := ParseArgs(args...)
	if err != nil {
		return nil, err
	}
	return connection.New(n.connectConfig(opts))
}

func (n *Node) connectConfig(opts Options) connection.Config {
	cfg := connection.Config{
		Dialer:         transport.NewDialer(transport.DialerConfig{TLS: opts.TLS}),
		Constructor:    n.cons,
		Middleware:     n.mw,
		Ping:           opts.Ping,
		Timeout:        opts.Timeout,
		Backoff:        opts.backoff(),
		Block:          opts.Block,
		ProtocolLogger: opts.ProtocolLogger,
		Logger:         opts.Logger,
	}

	switch {
	case opts.Service != "":
		cfg.Resolver = discovery.NewResolver(opts.Service)
	case opts.Path != "":
		cfg.Network, cfg.Address = "unix", opts.Path
	default:
		host := opts.Host
		if host == "" {
			host = DefaultHost
		}
		port := opts.Port
		if !opts.portSet {
			port = transport.DefaultPort
		}
		cfg.Network, cfg.Address = "tcp", net.JoinHostPort(host, strconv.Itoa(port))
	}
	return cfg
}

// Listen starts accepting connections. Every accepted connection serves
// this node's API and is probed by a server heartbeat.
func (n *Node) Listen(args ...any) (*Listener, error) {
	opts, err := ParseArgs(args...)
	if err != nil {
		return nil, err
	}

	sessCfg := session.DefaultConfig()
	sessCfg.Constructor = n.cons
	sessCfg.Middleware = n.mw
	sessCfg.ProtocolLogger = opts.ProtocolLogger
	sessCfg.Logger = opts.Logger
	if opts.SessionPing > 0 {
		sessCfg.PingInterval = opts.SessionPing
	}
	if opts.SessionTimeout > 0 {
		sessCfg.PingTimeout = opts.SessionTimeout
	}
	sessions := session.NewManager(sessCfg)

	srvCfg := transport.ServerConfig{
		TLS:     opts.TLS,
		Handler: sessions.Handle,
		Logger:  opts.Logger,
	}
	if opts.Path != "" {
		srvCfg.Network, srvCfg.Address = "unix", opts.Path
	} else {
		port := opts.Port
		if !opts.portSet {
			port = transport.DefaultPort
		}
		srvCfg.Network, srvCfg.Address = "tcp", net.JoinHostPort(opts.Host, strconv.Itoa(port))
	}

	server, err := transport.NewServer(srvCfg)
	if err != nil {
		return nil, err
	}
	if err := server.Start(context.Background()); err != nil {
		return nil, err
	}

	l := &Listener{server: server, sessions: sessions}
	if opts.Advertise != "" && opts.Path == "" {
		if err := l.advertise(opts.Advertise, n.id, opts); err != nil {
			_ = server.Stop()
			return nil, err
		}
	}

	n.mu.Lock()
	n.listeners = append(n.listeners, l)
	n.mu.Unlock()
	return l, nil
}

// Listeners returns the listeners started by this node and not yet closed
// through Close.
func (n *Node) Listeners() []*Listener {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]*Listener(nil), n.listeners...)
}

// Close stops every listener started by this node and ends their sessions.
// Outbound handles are closed individually.
func (n *Node) Close() error {
	n.mu.Lock()
	listeners := n.listeners
	n.listeners = nil
	n.mu.Unlock()

	var errs []error
	for _, l := range listeners {
		errs = append(errs, l.Close())
	}
	return errors.Join(errs...)
}

// Connect connects with an API that only answers ping.
func Connect(args ...any) (*connection.Handle, error) {
	return New(nil).Connect(args...)
}

// Listen listens with an API that only answers ping.
func Listen(args ...any) (*Listener, error) {
	return New(nil).Listen(args...)
}
