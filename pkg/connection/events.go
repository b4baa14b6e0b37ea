package connection

import (
	"fmt"
	"time"

	"github.com/upnode-go/upnode/pkg/rpc"
)

// Event is a handle lifecycle notification. The concrete types are Up, Down,
// Remote, Reconnect, Ping, Error and Close.
type Event interface {
	// Name returns the lowercase event name.
	Name() string
	isEvent()
}

// Up is emitted once per successful handshake, after the queue was flushed.
type Up struct {
	Remote *rpc.Remote
}

// Down is emitted when a channel or a connection attempt ends.
type Down struct {
	Err error
}

// Remote is emitted on handshake completion, before Up.
type Remote struct {
	Remote *rpc.Remote
}

// Reconnect is emitted when a retry starts.
type Reconnect struct {
	Attempt int
	Delay   time.Duration
}

// Ping is emitted after each answered heartbeat.
type Ping struct {
	Elapsed time.Duration
}

// Error is emitted for protocol violations and failing callbacks. It never
// tears the channel down by itself.
type Error struct {
	Kind ErrorKind
	Err  error
}

// Close is emitted by Handle.Close.
type Close struct{}

func (Up) Name() string        { return "up" }
func (Down) Name() string      { return "down" }
func (Remote) Name() string    { return "remote" }
func (Reconnect) Name() string { return "reconnect" }
func (Ping) Name() string      { return "ping" }
func (Error) Name() string     { return "error" }
func (Close) Name() string     { return "close" }

func (Up) isEvent()        {}
func (Down) isEvent()      {}
func (Remote) isEvent()    {}
func (Reconnect) isEvent() {}
func (Ping) isEvent()      {}
func (Error) isEvent()     {}
func (Close) isEvent()     {}

// ErrorKind classifies Error events.
type ErrorKind uint8

const (
	// ErrorMissingPing: heartbeats are enabled but the peer exposes no ping.
	ErrorMissingPing ErrorKind = iota + 1

	// ErrorProtocol: the peer sent malformed or unexpected messages.
	ErrorProtocol

	// ErrorCallback: a Block, queued or subscriber callback panicked.
	ErrorCallback
)

// String returns the error kind name.
func (k ErrorKind) String() string {
	switch k {
	case ErrorMissingPing:
		return "MISSING_PING"
	case ErrorProtocol:
		return "PROTOCOL"
	case ErrorCallback:
		return "CALLBACK"
	default:
		return "UNKNOWN"
	}
}

// Describe renders an event for logs and consoles.
func Describe(e Event) string {
	switch ev := e.(type) {
	case Up:
		return fmt.Sprintf("up peer=%s", peerID(ev.Remote))
	case Remote:
		return fmt.Sprintf("remote peer=%s methods=%v", peerID(ev.Remote), peerMethods(ev.Remote))
	case Down:
		if ev.Err != nil {
			return fmt.Sprintf("down: %v", ev.Err)
		}
		return "down"
	case Reconnect:
		return fmt.Sprintf("reconnect attempt=%d delay=%s", ev.Attempt, ev.Delay)
	case Ping:
		return fmt.Sprintf("ping %s", ev.Elapsed)
	case Error:
		return fmt.Sprintf("error %s: %v", ev.Kind, ev.Err)
	case Close:
		return "close"
	default:
		return e.Name()
	}
}

func peerID(r *rpc.Remote) string {
	if r == nil {
		return ""
	}
	return r.ID()
}

func peerMethods(r *rpc.Remote) []string {
	if r == nil {
		return nil
	}
	return r.Methods()
}
