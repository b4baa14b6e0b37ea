package session

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/upnode-go/upnode/pkg/liveness"
	"github.com/upnode-go/upnode/pkg/rpc"
)

// Session is one accepted connection.
type Session struct {
	id        string
	ch        *rpc.Channel
	startedAt time.Time

	mu           sync.Mutex
	prober       *liveness.Prober
	lastActivity time.Time

	endOnce sync.Once
	ended   chan struct{}
	err     error
}

func newSession(id string) *Session {
	now := time.Now()
	return &Session{
		id:           id,
		startedAt:    now,
		lastActivity: now,
		ended:        make(chan struct{}),
	}
}

// ID returns the session ID. It is also the ID announced in the hello.
func (s *Session) ID() string {
	return s.id
}

// Channel returns the session's channel.
func (s *Session) Channel() *rpc.Channel {
	return s.ch
}

// Remote returns the connected peer, or nil before the handshake.
func (s *Session) Remote() *rpc.Remote {
	return s.ch.Remote()
}

// RemoteAddr returns the peer's transport address.
func (s *Session) RemoteAddr() net.Addr {
	return s.ch.RemoteAddr()
}

// StartedAt returns when the connection was accepted.
func (s *Session) StartedAt() time.Time {
	return s.startedAt
}

// LastActivity returns when the peer last called a method.
func (s *Session) LastActivity() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActivity
}

// Heartbeat returns the server heartbeat statistics. ok is false when no
// heartbeat runs for this session.
func (s *Session) Heartbeat() (stats liveness.Stats, ok bool) {
	s.mu.Lock()
	p := s.prober
	s.mu.Unlock()
	if p == nil {
		return liveness.Stats{}, false
	}
	return p.Stats(), true
}

// End tells the peer the session is over and closes the transport.
func (s *Session) End() {
	_ = s.ch.End()
}

// Done is closed after teardown.
func (s *Session) Done() <-chan struct{} {
	return s.ended
}

// Err returns why the session ended, or nil while it is live.
func (s *Session) Err() error {
	select {
	case <-s.ended:
		return s.err
	default:
		return nil
	}
}

// touch records inbound activity.
func (s *Session) touch() {
	s.mu.Lock()
	s.lastActivity = time.Now()
	s.mu.Unlock()
}

// activity wraps every local method so inbound calls update LastActivity.
func (s *Session) activity(local rpc.Methods, _ *rpc.Channel) {
	for name, fn := range local {
		local[name] = func(ctx context.Context, call *rpc.Call) (any, error) {
			s.touch()
			return fn(ctx, call)
		}
	}
}
