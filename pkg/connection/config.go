package connection

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/upnode-go/upnode/pkg/log"
	"github.com/upnode-go/upnode/pkg/rpc"
	"github.com/upnode-go/upnode/pkg/transport"
)

// Heartbeat defaults for outbound handles.
const (
	// DefaultPingInterval is the period between heartbeats.
	DefaultPingInterval = 10 * time.Second

	// DefaultPingTimeout is how long a heartbeat may stay unanswered.
	DefaultPingTimeout = 5 * time.Second
)

// Configuration errors.
var (
	ErrNoAddress = errors.New("address or resolver is required")
)

// ErrMissingPing is carried by Error events of kind ErrorMissingPing.
var ErrMissingPing = errors.New("remote does not implement ping")

// BlockFunc runs once per successful handshake, before queued invocations
// are flushed.
type BlockFunc func(remote *rpc.Remote, ch *rpc.Channel)

// Resolver yields the target for one connection attempt.
type Resolver interface {
	Resolve(ctx context.Context) (network, address string, err error)
}

// Config configures a Handle.
type Config struct {
	// Network is "tcp" (default) or "unix".
	Network string

	// Address is the dial target ("host:port" or a socket path).
	Address string

	// Resolver, when set, is asked for the target before every attempt and
	// takes precedence over Network and Address.
	Resolver Resolver

	// Dialer opens transports (default: plain transport.Dialer).
	Dialer transport.ConnDialer

	// Constructor builds the API this side exposes to the peer.
	Constructor rpc.Constructor

	// Middleware runs after Constructor on every channel.
	Middleware []rpc.Middleware

	// Ping is the heartbeat period. Zero disables heartbeats.
	Ping time.Duration

	// Timeout is how long a heartbeat may stay unanswered before the channel
	// is torn down. Zero disables liveness failure.
	Timeout time.Duration

	// Backoff configures the delay between attempts.
	Backoff BackoffConfig

	// Block runs once per successful handshake.
	Block BlockFunc

	// MaxMessageSize is the maximum frame payload (default: 64KB).
	MaxMessageSize uint32

	// ProtocolLogger receives frame, message and state events (optional).
	ProtocolLogger log.Logger

	// Logger is the optional logger for debug output.
	// If nil, logging is disabled.
	Logger *slog.Logger
}

// DefaultConfig returns a configuration with the default heartbeat and a
// fixed one-second reconnect delay. Network and Address are left empty.
func DefaultConfig() Config {
	return Config{
		Network: "tcp",
		Ping:    DefaultPingInterval,
		Timeout: DefaultPingTimeout,
		Backoff: FixedBackoff(DefaultReconnect),
	}
}

func (c *Config) validate() error {
	if c.Resolver == nil && c.Address == "" {
		return ErrNoAddress
	}
	if c.Network == "" {
		c.Network = "tcp"
	}
	if c.Dialer == nil {
		c.Dialer = transport.NewDialer(transport.DialerConfig{})
	}
	if c.Ping < 0 {
		c.Ping = 0
	}
	if c.Timeout < 0 {
		c.Timeout = 0
	}
	return nil
}

// resolve returns the target for the next attempt.
func (c *Config) resolve(ctx context.Context) (string, string, error) {
	if c.Resolver != nil {
		return c.Resolver.Resolve(ctx)
	}
	return c.Network, c.Address, nil
}
