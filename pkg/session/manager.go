package session

import (
	"context"
	"net"
	"time"

	"github.com/upnode-go/upnode/pkg/liveness"
	"github.com/upnode-go/upnode/pkg/log"
	"github.com/upnode-go/upnode/pkg/rpc"
	"github.com/upnode-go/upnode/pkg/transport"
)

// Manager serves accepted connections.
type Manager struct {
	config   Config
	sessions *tracker
}

// Compile-time check that Manager.Handle fits the transport server.
var _ transport.Handler = (*Manager)(nil).Handle

// NewManager creates a session manager.
func NewManager(config Config) *Manager {
	if config.PingInterval < 0 {
		config.PingInterval = 0
	}
	if config.PingTimeout < 0 {
		config.PingTimeout = 0
	}
	if config.HandshakeTimeout <= 0 {
		config.HandshakeTimeout = DefaultHandshakeTimeout
	}
	return &Manager{config: config, sessions: newTracker()}
}

// Handle serves one accepted connection until the session ends. It is
// meant to be used as transport.ServerConfig.Handler.
func (m *Manager) Handle(ctx context.Context, conn net.Conn) {
	s := m.open(ctx, conn)
	if s == nil {
		return
	}
	<-s.ch.Done()
	m.teardown(s)
}

// open runs the handshake and registers the session. It returns nil when
// the connection ended first.
func (m *Manager) open(ctx context.Context, conn net.Conn) *Session {
	s := newSession("")
	s.ch = rpc.NewChannel(conn, rpc.Config{
		Constructor:    m.config.Constructor,
		Middleware:     m.middleware(s),
		Role:           log.RoleServer,
		MaxMessageSize: m.config.MaxMessageSize,
		ProtocolLogger: m.config.ProtocolLogger,
		Logger:         m.config.Logger,
	})
	s.id = s.ch.ID()

	if err := s.ch.Start(ctx); err != nil {
		m.debugLog("session start failed", "session", s.id, "error", err)
		return nil
	}

	timer := time.NewTimer(m.config.HandshakeTimeout)
	defer timer.Stop()
	select {
	case <-s.ch.Ready():
	case <-s.ch.Done():
		m.debugLog("session ended before handshake", "session", s.id, "error", s.ch.Err())
		return nil
	case <-timer.C:
		m.debugLog("handshake timed out", "session", s.id)
		_ = s.ch.Close()
		return nil
	}

	m.sessions.Add(s)
	m.logState(s, "HANDSHAKING", "READY", "")
	m.debugLog("session ready", "session", s.id, "peer", s.Remote().ID(), "remote", conn.RemoteAddr().String())
	m.startHeartbeat(s)

	if m.config.OnSession != nil {
		m.config.OnSession(s)
	}
	return s
}

// startHeartbeat probes the peer when it exposes ping. An unanswered
// heartbeat ends the session gracefully.
func (m *Manager) startHeartbeat(s *Session) {
	if m.config.PingInterval <= 0 {
		return
	}
	pinger, ok := s.Remote().Pingable()
	if !ok {
		m.debugLog("peer has no ping, heartbeat disabled", "session", s.id)
		return
	}
	prober, err := liveness.New(liveness.Config{
		Interval: m.config.PingInterval,
		Timeout:  m.config.PingTimeout,
	}, pinger, func() {
		m.debugLog("heartbeat timed out", "session", s.id)
		s.End()
	})
	if err != nil {
		return
	}
	s.mu.Lock()
	s.prober = prober
	s.mu.Unlock()
	prober.Start(s.ch.Context())
}

// middleware appends ping installation and activity tracking to the
// configured middleware.
func (m *Manager) middleware(s *Session) []rpc.Middleware {
	mw := make([]rpc.Middleware, 0, len(m.config.Middleware)+2)
	mw = append(mw, m.config.Middleware...)
	return append(mw, rpc.EnsurePing, s.activity)
}

// teardown untracks s and reports its end. Safe to call more than once.
func (m *Manager) teardown(s *Session) {
	s.endOnce.Do(func() {
		s.mu.Lock()
		if s.prober != nil {
			s.prober.Stop()
		}
		s.mu.Unlock()
		_ = s.ch.Close()
		<-s.ch.Done()
		s.err = s.ch.Err()

		removed := m.sessions.Remove(s)
		close(s.ended)
		m.logState(s, "READY", "ENDED", errString(s.err))
		m.debugLog("session ended", "session", s.id, "error", s.err)

		if removed && m.config.OnSessionEnd != nil {
			m.config.OnSessionEnd(s, s.err)
		}
	})
}

// Sessions returns the ready sessions, oldest first.
func (m *Manager) Sessions() []*Session {
	return m.sessions.List()
}

// Session returns the session with id.
func (m *Manager) Session(id string) (*Session, bool) {
	return m.sessions.Get(id)
}

// Count returns the number of ready sessions.
func (m *Manager) Count() int {
	return m.sessions.Len()
}

// EndIdle ends sessions without inbound calls for maxIdle and returns how
// many were ended.
func (m *Manager) EndIdle(maxIdle time.Duration) int {
	return m.sessions.EndIdle(maxIdle)
}

// CloseAll ends every session and returns how many were ended.
func (m *Manager) CloseAll() int {
	return m.sessions.EndAll()
}

func (m *Manager) logState(s *Session, oldState, newState, reason string) {
	if m.config.ProtocolLogger != nil {
		m.config.ProtocolLogger.Log(log.NewStateEvent(s.id, log.RoleServer, log.StateEntitySession, oldState, newState, reason))
	}
}

func (m *Manager) debugLog(msg string, args ...any) {
	if m.config.Logger != nil {
		m.config.Logger.Debug(msg, args...)
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
