package wire

import (
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// PingMethod is the method name used for heartbeats.
const PingMethod = "ping"

// Validation errors.
var (
	ErrUnknownType   = errors.New("unknown message type")
	ErrMissingID     = errors.New("missing message id")
	ErrMissingMethod = errors.New("missing method name")
)

// MessageType discriminates channel messages.
type MessageType uint8

const (
	// TypeHello announces the sender's session and exposed methods.
	TypeHello MessageType = 1

	// TypeCall invokes a method on the peer.
	TypeCall MessageType = 2

	// TypeReply answers a call.
	TypeReply MessageType = 3

	// TypeClose ends the channel.
	TypeClose MessageType = 4
)

// String returns the message type name.
func (t MessageType) String() string {
	switch t {
	case TypeHello:
		return "HELLO"
	case TypeCall:
		return "CALL"
	case TypeReply:
		return "REPLY"
	case TypeClose:
		return "CLOSE"
	default:
		return "UNKNOWN"
	}
}

// IsValid reports whether t is a known message type.
func (t MessageType) IsValid() bool {
	return t >= TypeHello && t <= TypeClose
}

// Message is the single frame payload exchanged on a channel.
//
// CBOR encoding:
//
//	{
//	  1: type,       // uint8
//	  2: id,         // uint32, call/reply correlation
//	  3: method,     // string, calls only
//	  4: args,       // array of individually encoded values
//	  5: result,     // encoded value, replies only
//	  6: error,      // string, failed replies only
//	  7: sessionId,  // string, hello only
//	  8: methods     // array of strings, hello only
//	}
type Message struct {
	Type      MessageType       `cbor:"1,keyasint"`
	ID        uint32            `cbor:"2,keyasint,omitempty"`
	Method    string            `cbor:"3,keyasint,omitempty"`
	Args      []cbor.RawMessage `cbor:"4,keyasint,omitempty"`
	Result    cbor.RawMessage   `cbor:"5,keyasint,omitempty"`
	Error     string            `cbor:"6,keyasint,omitempty"`
	SessionID string            `cbor:"7,keyasint,omitempty"`
	Methods   []string          `cbor:"8,keyasint,omitempty"`
}

// Validate checks the fields required by the message type.
func (m *Message) Validate() error {
	if !m.Type.IsValid() {
		return fmt.Errorf("%w: %d", ErrUnknownType, m.Type)
	}
	switch m.Type {
	case TypeCall:
		if m.ID == 0 {
			return ErrMissingID
		}
		if m.Method == "" {
			return ErrMissingMethod
		}
	case TypeReply:
		if m.ID == 0 {
			return ErrMissingID
		}
	}
	return nil
}

// IsError returns true if the message is a failed reply.
func (m *Message) IsError() bool {
	return m.Type == TypeReply && m.Error != ""
}

// NewHello creates a hello message.
func NewHello(sessionID string, methods []string) *Message {
	return &Message{
		Type:      TypeHello,
		SessionID: sessionID,
		Methods:   methods,
	}
}

// NewCall creates a call message with encoded arguments.
func NewCall(id uint32, method string, args ...any) (*Message, error) {
	raw, err := EncodeArgs(args...)
	if err != nil {
		return nil, err
	}
	return &Message{
		Type:   TypeCall,
		ID:     id,
		Method: method,
		Args:   raw,
	}, nil
}

// NewReply creates a successful reply. A nil result encodes as absent.
func NewReply(id uint32, result any) (*Message, error) {
	msg := &Message{Type: TypeReply, ID: id}
	if result == nil {
		return msg, nil
	}
	data, err := Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("result: %w", err)
	}
	msg.Result = data
	return msg, nil
}

// NewErrorReply creates a failed reply.
func NewErrorReply(id uint32, errMsg string) *Message {
	return &Message{Type: TypeReply, ID: id, Error: errMsg}
}

// NewClose creates a close message.
func NewClose() *Message {
	return &Message{Type: TypeClose}
}
