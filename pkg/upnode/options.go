package upnode

import (
	"crypto/tls"
	"log/slog"
	"time"

	"github.com/upnode-go/upnode/pkg/connection"
	"github.com/upnode-go/upnode/pkg/log"
)

// Defaults applied when no Options argument is given.
const (
	DefaultPing      = connection.DefaultPingInterval
	DefaultTimeout   = connection.DefaultPingTimeout
	DefaultReconnect = connection.DefaultReconnect
	DefaultHost      = "localhost"
)

// Options configures Connect and Listen.
type Options struct {
	// Ping is the heartbeat period of outbound handles. Zero disables it.
	Ping time.Duration

	// Timeout tears a channel down when a heartbeat stays unanswered this
	// long. Zero disables liveness failure.
	Timeout time.Duration

	// Reconnect is the delay before a retry. Zero means DefaultReconnect.
	Reconnect time.Duration

	// Backoff, when set, replaces the fixed Reconnect delay.
	Backoff *connection.BackoffConfig

	// Block runs once per successful handshake of an outbound handle.
	Block connection.BlockFunc

	// Host is the connect target or the listen address. Connect defaults
	// to DefaultHost; Listen binds all interfaces when empty.
	Host string

	// Port is the TCP port. See ParseArgs for how it is set.
	Port int

	// Path selects a unix socket instead of TCP.
	Path string

	// TLS enables TLS. For Connect it is a client config, for Listen a
	// server config.
	TLS *tls.Config

	// Service resolves the connect target over mDNS by instance name
	// before every attempt.
	Service string

	// Advertise registers the listener over mDNS under this instance name.
	Advertise string

	// SessionPing and SessionTimeout configure the heartbeat of accepted
	// sessions. Zero means the session defaults (10s and 100s).
	SessionPing    time.Duration
	SessionTimeout time.Duration

	// ProtocolLogger receives protocol events of every channel (optional).
	ProtocolLogger log.Logger

	// Logger is the optional logger for debug output.
	// If nil, logging is disabled.
	Logger *slog.Logger

	portSet bool
}

// DefaultOptions returns the options used when none are passed.
func DefaultOptions() Options {
	return Options{
		Ping:      DefaultPing,
		Timeout:   DefaultTimeout,
		Reconnect: DefaultReconnect,
	}
}

// backoff returns the reconnect schedule.
func (o *Options) backoff() connection.BackoffConfig {
	if o.Backoff != nil {
		return *o.Backoff
	}
	if o.Reconnect <= 0 {
		return connection.FixedBackoff(DefaultReconnect)
	}
	return connection.FixedBackoff(o.Reconnect)
}
