package session

import (
	"log/slog"
	"time"

	"github.com/upnode-go/upnode/pkg/log"
	"github.com/upnode-go/upnode/pkg/rpc"
)

// Defaults for accepted sessions.
const (
	DefaultPingInterval     = 10 * time.Second
	DefaultPingTimeout      = 100 * time.Second
	DefaultHandshakeTimeout = 10 * time.Second
)

// Config configures a Manager.
type Config struct {
	// Constructor builds the API exposed to each connecting peer.
	Constructor rpc.Constructor

	// Middleware runs after Constructor on every session.
	Middleware []rpc.Middleware

	// PingInterval is the server heartbeat period. Zero disables it.
	PingInterval time.Duration

	// PingTimeout ends a session whose heartbeat stays unanswered this long.
	// Zero disables liveness failure.
	PingTimeout time.Duration

	// HandshakeTimeout bounds the wait for the peer's hello.
	HandshakeTimeout time.Duration

	// MaxMessageSize is the maximum frame payload (default: 64KB).
	MaxMessageSize uint32

	// OnSession is called when a session becomes ready.
	OnSession func(s *Session)

	// OnSessionEnd is called once per tracked session after teardown.
	OnSessionEnd func(s *Session, err error)

	// ProtocolLogger receives frame, message and state events (optional).
	ProtocolLogger log.Logger

	// Logger is the optional logger for debug output.
	// If nil, logging is disabled.
	Logger *slog.Logger
}

// DefaultConfig returns the default heartbeat configuration.
func DefaultConfig() Config {
	return Config{
		PingInterval:     DefaultPingInterval,
		PingTimeout:      DefaultPingTimeout,
		HandshakeTimeout: DefaultHandshakeTimeout,
	}
}
