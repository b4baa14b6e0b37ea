package transport

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
)

// Server errors.
var (
	ErrServerRunning = errors.New("server already running")
	ErrNoHandler     = errors.New("handler is required")
)

// Handler serves one accepted transport. The connection is closed and
// untracked when Handler returns. ctx is cancelled when the server stops.
type Handler func(ctx context.Context, conn net.Conn)

// ServerConfig configures a Server.
type ServerConfig struct {
	// Network is "tcp" (default) or "unix".
	Network string

	// Address to listen on (e.g. ":7000", "127.0.0.1:0", "/tmp/upnode.sock").
	Address string

	// TLS enables TLS when non-nil.
	TLS *tls.Config

	// Handler serves each accepted connection.
	Handler Handler

	// OnError is called for accept and handshake errors.
	OnError func(err error)

	// Logger is the optional logger for debug output.
	// If nil, logging is disabled.
	Logger *slog.Logger
}

// Server is an acceptor that hands every accepted transport to a Handler.
type Server struct {
	config   ServerConfig
	tlsConf  *tls.Config
	listener net.Listener

	conns   map[net.Conn]struct{}
	connsMu sync.RWMutex

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewServer creates a new Server.
func NewServer(config ServerConfig) (*Server, error) {
	if config.Handler == nil {
		return nil, ErrNoHandler
	}
	if config.Network == "" {
		config.Network = "tcp"
	}
	if config.Address == "" && config.Network == "tcp" {
		config.Address = fmt.Sprintf(":%d", DefaultPort)
	}

	return &Server{
		config:  config,
		tlsConf: withALPN(config.TLS),
		conns:   make(map[net.Conn]struct{}),
	}, nil
}

// Start opens the listener and begins accepting connections.
func (s *Server) Start(ctx context.Context) error {
	if s.running.Load() {
		return ErrServerRunning
	}

	listener, err := net.Listen(s.config.Network, s.config.Address)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	s.listener = listener
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.running.Store(true)

	s.debugLog("listening", "network", s.config.Network, "addr", listener.Addr().String(), "tls", s.tlsConf != nil)

	s.wg.Add(1)
	go s.acceptLoop()

	return nil
}

// Stop closes the listener and every tracked connection, then waits for
// all handlers to return. Stop on a stopped server is a no-op.
func (s *Server) Stop() error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}

	s.cancel()
	err := s.listener.Close()

	s.connsMu.Lock()
	for conn := range s.conns {
		conn.Close()
	}
	s.connsMu.Unlock()

	s.wg.Wait()
	s.debugLog("stopped", "addr", s.listener.Addr().String())

	if errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}

// Addr returns the listen address, or nil before Start.
func (s *Server) Addr() net.Addr {
	if s.listener != nil {
		return s.listener.Addr()
	}
	return nil
}

// Running reports whether the server is accepting connections.
func (s *Server) Running() bool {
	return s.running.Load()
}

// ConnectionCount returns the number of tracked connections.
func (s *Server) ConnectionCount() int {
	s.connsMu.RLock()
	defer s.connsMu.RUnlock()
	return len(s.conns)
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if !s.running.Load() {
				return
			}
			s.reportError(fmt.Errorf("accept error: %w", err))
			if errors.Is(err, net.ErrClosed) {
				return
			}
			continue
		}

		s.wg.Add(1)
		go s.handleConnection(conn)
	}
}

func (s *Server) handleConnection(conn net.Conn) {
	defer s.wg.Done()

	if s.tlsConf != nil {
		tlsConn := tls.Server(conn, s.tlsConf)
		if err := tlsConn.HandshakeContext(s.ctx); err != nil {
			conn.Close()
			s.reportError(fmt.Errorf("TLS handshake failed: %w", err))
			return
		}
		if err := VerifyConnection(tlsConn.ConnectionState()); err != nil {
			tlsConn.Close()
			s.reportError(err)
			return
		}
		conn = tlsConn
	}

	if !s.track(conn) {
		conn.Close()
		return
	}
	s.debugLog("accepted", "remote", conn.RemoteAddr().String())

	s.config.Handler(s.ctx, conn)

	conn.Close()
	s.untrack(conn)
	s.debugLog("closed", "remote", conn.RemoteAddr().String())
}

// track registers conn unless the server is already stopping.
func (s *Server) track(conn net.Conn) bool {
	s.connsMu.Lock()
	defer s.connsMu.Unlock()
	if !s.running.Load() {
		return false
	}
	s.conns[conn] = struct{}{}
	return true
}

func (s *Server) untrack(conn net.Conn) {
	s.connsMu.Lock()
	delete(s.conns, conn)
	s.connsMu.Unlock()
}

func (s *Server) reportError(err error) {
	s.debugLog("server error", "error", err)
	if s.config.OnError != nil {
		s.config.OnError(err)
	}
}

func (s *Server) debugLog(msg string, args ...any) {
	if s.config.Logger != nil {
		s.config.Logger.Debug(msg, args...)
	}
}
