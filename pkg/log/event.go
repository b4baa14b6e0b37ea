package log

import (
	"time"

	"github.com/upnode-go/upnode/pkg/wire"
)

// Event represents a protocol log event captured at any layer.
// CBOR encoding uses integer keys for compactness.
type Event struct {
	// Timestamp when the event occurred (nanosecond precision).
	Timestamp time.Time `cbor:"1,keyasint"`

	// ConnectionID identifies the channel, session or handle (UUID).
	ConnectionID string `cbor:"2,keyasint"`

	// Direction indicates message flow.
	Direction Direction `cbor:"3,keyasint"`

	// Layer where the event was captured.
	Layer Layer `cbor:"4,keyasint"`

	// Category classifies the event type.
	Category Category `cbor:"5,keyasint"`

	// LocalRole indicates whether this side dialed or accepted.
	LocalRole Role `cbor:"6,keyasint,omitempty"`

	// RemoteAddr is the peer address (IP:port or socket path).
	RemoteAddr string `cbor:"7,keyasint,omitempty"`

	// PeerSessionID is the session ID announced in the peer's hello.
	PeerSessionID string `cbor:"8,keyasint,omitempty"`

	// Type-specific payload (one of these will be set).
	Frame       *FrameEvent       `cbor:"10,keyasint,omitempty"`
	Message     *MessageEvent     `cbor:"11,keyasint,omitempty"`
	StateChange *StateChangeEvent `cbor:"12,keyasint,omitempty"`
	Heartbeat   *HeartbeatEvent   `cbor:"13,keyasint,omitempty"`
	Error       *ErrorEventData   `cbor:"14,keyasint,omitempty"`
}

// Direction indicates the direction of message flow.
type Direction uint8

const (
	// DirectionIn indicates an incoming message.
	DirectionIn Direction = 0
	// DirectionOut indicates an outgoing message.
	DirectionOut Direction = 1
)

// String returns the direction name.
func (d Direction) String() string {
	switch d {
	case DirectionIn:
		return "IN"
	case DirectionOut:
		return "OUT"
	default:
		return "UNKNOWN"
	}
}

// Layer indicates which layer captured the event.
type Layer uint8

const (
	// LayerTransport is the framing layer (raw bytes).
	LayerTransport Layer = 0
	// LayerRPC is the channel layer (decoded messages).
	LayerRPC Layer = 1
	// LayerConnection is the handle/session lifecycle layer.
	LayerConnection Layer = 2
)

// String returns the layer name.
func (l Layer) String() string {
	switch l {
	case LayerTransport:
		return "TRANSPORT"
	case LayerRPC:
		return "RPC"
	case LayerConnection:
		return "CONNECTION"
	default:
		return "UNKNOWN"
	}
}

// Category classifies the event type.
type Category uint8

const (
	// CategoryMessage indicates a frame or channel message.
	CategoryMessage Category = 0
	// CategoryHeartbeat indicates a heartbeat sample or timeout.
	CategoryHeartbeat Category = 1
	// CategoryState indicates a state change.
	CategoryState Category = 2
	// CategoryError indicates an error event.
	CategoryError Category = 3
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryMessage:
		return "MESSAGE"
	case CategoryHeartbeat:
		return "HEARTBEAT"
	case CategoryState:
		return "STATE"
	case CategoryError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Role indicates which side of the connection logged the event.
type Role uint8

const (
	// RoleClient is the dialing side (a Handle).
	RoleClient Role = 0
	// RoleServer is the accepting side (a Session).
	RoleServer Role = 1
)

// String returns the role name.
func (r Role) String() string {
	switch r {
	case RoleClient:
		return "CLIENT"
	case RoleServer:
		return "SERVER"
	default:
		return "UNKNOWN"
	}
}

// FrameEvent captures raw frame data at the transport layer.
type FrameEvent struct {
	// Size is the frame size in bytes (including length prefix).
	Size int `cbor:"1,keyasint"`

	// Data is the raw frame bytes (may be truncated for large frames).
	Data []byte `cbor:"2,keyasint,omitempty"`

	// Truncated indicates if Data was truncated.
	Truncated bool `cbor:"3,keyasint,omitempty"`
}

// MessageEvent captures a decoded channel message.
type MessageEvent struct {
	// Type is the wire message type.
	Type wire.MessageType `cbor:"1,keyasint"`

	// ID correlates calls and replies (0 for hello/close).
	ID uint32 `cbor:"2,keyasint,omitempty"`

	// Method is the called method (calls only).
	Method string `cbor:"3,keyasint,omitempty"`

	// ArgCount is the number of call arguments.
	ArgCount int `cbor:"4,keyasint,omitempty"`

	// Error is the error string of a failed reply.
	Error string `cbor:"5,keyasint,omitempty"`

	// Methods lists the methods announced in a hello.
	Methods []string `cbor:"6,keyasint,omitempty"`
}

// StateChangeEvent captures handle, channel and session lifecycle events.
type StateChangeEvent struct {
	// Entity being changed.
	Entity StateEntity `cbor:"1,keyasint"`

	// OldState is the previous state (may be empty).
	OldState string `cbor:"2,keyasint,omitempty"`

	// NewState is the new state.
	NewState string `cbor:"3,keyasint"`

	// Reason for the change (if available).
	Reason string `cbor:"4,keyasint,omitempty"`
}

// StateEntity indicates what entity changed state.
type StateEntity uint8

const (
	// StateEntityHandle is the caller-facing handle.
	StateEntityHandle StateEntity = 0
	// StateEntityChannel is one physical RPC channel.
	StateEntityChannel StateEntity = 1
	// StateEntitySession is one accepted connection on a listener.
	StateEntitySession StateEntity = 2
)

// String returns the state entity name.
func (s StateEntity) String() string {
	switch s {
	case StateEntityHandle:
		return "HANDLE"
	case StateEntityChannel:
		return "CHANNEL"
	case StateEntitySession:
		return "SESSION"
	default:
		return "UNKNOWN"
	}
}

// HeartbeatEvent captures one heartbeat outcome.
type HeartbeatEvent struct {
	// RTT is the round-trip time of an answered heartbeat.
	RTT time.Duration `cbor:"1,keyasint,omitempty"`

	// TimedOut is set when no reply arrived within the timeout.
	TimedOut bool `cbor:"2,keyasint,omitempty"`
}

// ErrorEventData captures errors at any layer.
type ErrorEventData struct {
	// Layer where the error occurred.
	Layer Layer `cbor:"1,keyasint"`

	// Message is the error message.
	Message string `cbor:"2,keyasint"`

	// Context describes what operation was being performed.
	Context string `cbor:"3,keyasint,omitempty"`
}

// NewStateEvent builds a state change event.
func NewStateEvent(connID string, role Role, entity StateEntity, oldState, newState, reason string) Event {
	return Event{
		Timestamp:    time.Now(),
		ConnectionID: connID,
		Layer:        LayerConnection,
		Category:     CategoryState,
		LocalRole:    role,
		StateChange: &StateChangeEvent{
			Entity:   entity,
			OldState: oldState,
			NewState: newState,
			Reason:   reason,
		},
	}
}

// NewErrorEvent builds an error event.
func NewErrorEvent(connID string, role Role, layer Layer, err error, context string) Event {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return Event{
		Timestamp:    time.Now(),
		ConnectionID: connID,
		Layer:        layer,
		Category:     CategoryError,
		LocalRole:    role,
		Error: &ErrorEventData{
			Layer:   layer,
			Message: msg,
			Context: context,
		},
	}
}
