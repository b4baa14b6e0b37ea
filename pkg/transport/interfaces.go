package transport

import (
	"context"
	"net"
)

// Acceptor represents a listening transport.
// Implemented by Server.
type Acceptor interface {
	// Start begins accepting connections.
	Start(ctx context.Context) error

	// Stop closes the listener and every accepted connection.
	Stop() error

	// Addr returns the listen address.
	Addr() net.Addr

	// ConnectionCount returns the number of active connections.
	ConnectionCount() int
}

// ConnDialer opens transports.
// Implemented by Dialer.
type ConnDialer interface {
	Dial(ctx context.Context, network, address string) (net.Conn, error)
}

// FrameReadWriter provides length-prefixed frame I/O.
// Implemented by Framer.
type FrameReadWriter interface {
	// ReadFrame reads a length-prefixed frame.
	ReadFrame() ([]byte, error)

	// WriteFrame writes a length-prefixed frame.
	WriteFrame(data []byte) error
}

// Compile-time interface satisfaction checks.
var (
	_ Acceptor        = (*Server)(nil)
	_ ConnDialer      = (*Dialer)(nil)
	_ FrameReadWriter = (*Framer)(nil)
)
