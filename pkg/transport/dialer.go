package transport

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"time"
)

// DefaultConnectTimeout bounds a single dial attempt.
const DefaultConnectTimeout = 10 * time.Second

// DialerConfig configures a Dialer.
type DialerConfig struct {
	// TLS enables TLS when non-nil.
	TLS *tls.Config

	// ConnectTimeout bounds dial plus handshake (default: 10s).
	ConnectTimeout time.Duration
}

// Dialer opens transports to a listener. The zero value dials plain
// connections with the default timeout.
type Dialer struct {
	config DialerConfig
}

// NewDialer creates a Dialer.
func NewDialer(config DialerConfig) *Dialer {
	if config.ConnectTimeout == 0 {
		config.ConnectTimeout = DefaultConnectTimeout
	}
	config.TLS = withALPN(config.TLS)
	return &Dialer{config: config}
}

// Dial connects to address over network ("tcp" or "unix"). For TLS dialers
// the handshake completes before Dial returns.
func (d *Dialer) Dial(ctx context.Context, network, address string) (net.Conn, error) {
	timeout := d.config.ConnectTimeout
	if timeout == 0 {
		timeout = DefaultConnectTimeout
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	nd := &net.Dialer{}
	conn, err := nd.DialContext(ctx, network, address)
	if err != nil {
		return nil, fmt.Errorf("dial failed: %w", err)
	}
	if d.config.TLS == nil {
		return conn, nil
	}

	tlsConf := d.config.TLS
	if tlsConf.ServerName == "" && !tlsConf.InsecureSkipVerify && network == "tcp" {
		if host, _, err := net.SplitHostPort(address); err == nil {
			tlsConf = tlsConf.Clone()
			tlsConf.ServerName = host
		}
	}

	tlsConn := tls.Client(conn, tlsConf)
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("TLS handshake failed: %w", err)
	}
	if err := VerifyConnection(tlsConn.ConnectionState()); err != nil {
		tlsConn.Close()
		return nil, fmt.Errorf("connection verification failed: %w", err)
	}
	return tlsConn, nil
}
