package rpc

import (
	"errors"
	"fmt"
)

// Channel errors.
var (
	// ErrChannelClosed is returned by calls on a channel that has terminated.
	ErrChannelClosed = errors.New("channel closed")

	// ErrClosedLocally is the termination cause after Close or End.
	ErrClosedLocally = errors.New("channel closed locally")

	// ErrPeerClosed is the termination cause when the peer sent a close message.
	ErrPeerClosed = errors.New("channel closed by peer")

	// ErrProtocol indicates the peer sent a malformed or unexpected message.
	ErrProtocol = errors.New("protocol error")

	// ErrUnknownMethod is returned when calling a method the other side does
	// not expose.
	ErrUnknownMethod = errors.New("unknown method")

	// ErrNotReady is returned when the peer's hello has not arrived yet.
	ErrNotReady = errors.New("remote not ready")
)

// RemoteError carries an error string returned by the peer's method.
type RemoteError struct {
	Method  string
	Message string
}

// Error implements error.
func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote %s: %s", e.Method, e.Message)
}
